// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package parallel

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianPlan/services/planner/concurrency"
	"github.com/AleutianAI/AleutianPlan/services/planner/sas"
)

func TestIDAllocator_ConcurrentUnique(t *testing.T) {
	var ids IDAllocator
	const workers, per = 8, 1000

	out := make([][]uint64, workers)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < per; i++ {
				out[w] = append(out[w], ids.Alloc())
			}
		}(w)
	}
	wg.Wait()

	seen := make(map[uint64]bool, workers*per)
	for _, batch := range out {
		for _, id := range batch {
			assert.False(t, seen[id], "id %d allocated twice", id)
			seen[id] = true
		}
	}
	assert.Len(t, seen, workers*per)
}

func TestNodeOrdering(t *testing.T) {
	a := Node{ID: 1, G: 1, H: 1} // f=2
	b := Node{ID: 2, G: 3, H: 0} // f=3
	c := Node{ID: 3, G: 2, H: 1} // f=3, h tie-break loses to b
	d := Node{ID: 4, G: 3, H: 0} // equal to b except id

	assert.True(t, nodeBefore(a, b))
	assert.True(t, nodeBefore(b, c))
	assert.True(t, nodeBefore(b, d))
	assert.False(t, nodeBefore(d, b))
}

func TestClosedTable_PruneOrUpdate(t *testing.T) {
	ct := NewClosedTable(8)
	s := sas.State{1, 2, 3}

	assert.False(t, ct.PruneOrUpdate(s, 5, 10), "first visit stores")
	assert.True(t, ct.PruneOrUpdate(s, 5, 11), "equal g prunes")
	assert.True(t, ct.PruneOrUpdate(s, 7, 12), "worse g prunes")
	assert.False(t, ct.PruneOrUpdate(s, 3, 13), "better g updates")

	e, ok := ct.Get(s)
	require.True(t, ok)
	assert.Equal(t, int32(3), e.BestG)
	assert.Equal(t, uint64(13), e.NodeID)

	_, ok = ct.Get(sas.State{0, 0, 0})
	assert.False(t, ok)
}

func TestClosedTable_StripeRounding(t *testing.T) {
	ct := NewClosedTable(5)
	assert.Len(t, ct.stripes, 8, "stripe count rounds up to a power of two")

	ct = NewClosedTable(0)
	assert.Len(t, ct.stripes, 1)
}

func TestClosedTable_Concurrent(t *testing.T) {
	ct := NewClosedTable(16)
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				s := sas.State{i % 50, w % 3}
				ct.PruneOrUpdate(s, int32(i), uint64(w*1000+i))
				ct.Get(s)
			}
		}(w)
	}
	wg.Wait()
	assert.Equal(t, 150, ct.Len())
}

func TestStateStore(t *testing.T) {
	ss := NewStateStore(4)
	ss.Put(7, sas.State{1, 2})

	out := make(sas.State, 2)
	require.True(t, ss.Get(7, out))
	assert.Equal(t, sas.State{1, 2}, out)
	assert.False(t, ss.Get(8, out))

	ref, ok := ss.GetRead(7)
	require.True(t, ok)
	assert.Equal(t, sas.State{1, 2}, ref.S)
	ref.Release()

	_, ok = ss.GetRead(8)
	assert.False(t, ok)
}

func TestMultiQueueOpen_PopOrderAndSteal(t *testing.T) {
	o := NewSharedOpen(OpenMultiQueue, 2, 0, 0)
	rng := concurrency.NewXorShift32(1)

	// Queue 0 gets two nodes, queue 1 stays empty.
	o.Push(0, Node{ID: 1, G: 5, H: 0})
	o.Push(0, Node{ID: 2, G: 1, H: 0})
	assert.Equal(t, uint64(2), o.Len())

	var st WorkerStats
	n, ok := o.Pop(0, &rng, &st)
	require.True(t, ok)
	assert.Equal(t, uint64(2), n.ID, "smaller f pops first")
	assert.Zero(t, st.Steals)

	// Popping from the other queue steals the remaining node.
	n, ok = o.Pop(1, &rng, &st)
	require.True(t, ok)
	assert.Equal(t, uint64(1), n.ID)
	assert.Equal(t, uint64(1), st.Steals)

	_, ok = o.Pop(0, &rng, &st)
	assert.False(t, ok)
	assert.True(t, o.Empty())
}

func TestTwoLevelBucketOpen_DrainsByF(t *testing.T) {
	o := NewSharedOpen(OpenTwoLevelBucket, 1, 4, 2)
	rng := concurrency.NewXorShift32(9)

	for i := 0; i < 20; i++ {
		o.Push(0, Node{ID: uint64(i), G: int32(20 - i), H: 0})
	}
	assert.Equal(t, uint64(20), o.Len())

	var st WorkerStats
	popped := 0
	for {
		_, ok := o.Pop(0, &rng, &st)
		if !ok {
			break
		}
		popped++
	}
	assert.Equal(t, 20, popped, "the sweep fallback drains every shard")
	assert.True(t, o.Empty())
}

func TestTwoLevelBucketOpen_ShardMinimum(t *testing.T) {
	o := NewSharedOpen(OpenTwoLevelBucket, 1, 1, 2)
	rng := concurrency.NewXorShift32(3)

	o.Push(0, Node{ID: 1, G: 9, H: 4})
	o.Push(0, Node{ID: 2, G: 9, H: 1})
	o.Push(0, Node{ID: 3, G: 2, H: 3})

	var st WorkerStats
	n, ok := o.Pop(0, &rng, &st)
	require.True(t, ok)
	assert.Equal(t, uint64(3), n.ID, "single shard pops the exact (f,h) minimum")
}

func TestPickShard_InRange(t *testing.T) {
	for id := uint64(0); id < 1000; id++ {
		assert.Less(t, pickShard(id, 7), uint32(7))
	}
}

func TestHashState_Distinguishes(t *testing.T) {
	a := hashState(sas.State{0, 1})
	b := hashState(sas.State{1, 0})
	assert.NotEqual(t, a, b)
	assert.Equal(t, a, hashState(sas.State{0, 1}))
}
