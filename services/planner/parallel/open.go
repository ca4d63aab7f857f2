// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package parallel

import (
	"container/heap"
	"sync"
	"sync/atomic"

	"github.com/AleutianAI/AleutianPlan/services/planner/concurrency"
	"github.com/AleutianAI/AleutianPlan/services/planner/pq"
)

// OpenKind selects the shared open list implementation.
type OpenKind uint8

const (
	// OpenMultiQueue shards plain binary heaps, one lock each, with a
	// steal scan on local emptiness.
	OpenMultiQueue OpenKind = iota
	// OpenTwoLevelBucket shards bucket queues by a multiplicative hash
	// of the node id, popping via k-choice sampling.
	OpenTwoLevelBucket
)

// SharedOpen is the facade the workers push to and pop from. Pop
// returns false on transient emptiness; the caller decides whether
// the search is actually done.
type SharedOpen struct {
	kind OpenKind
	mq   *multiQueueOpen
	tlb  *twoLevelBucketOpen
}

// NewSharedOpen builds the selected variant. numQueues drives the
// multi-queue layout, shards and kChoice the bucket layout; zero
// values fall back to sane minimums.
func NewSharedOpen(kind OpenKind, numQueues, shards, kChoice uint32) *SharedOpen {
	if numQueues == 0 {
		numQueues = 1
	}
	if shards == 0 {
		shards = max(2, numQueues)
	}
	if kChoice == 0 {
		kChoice = 2
	}
	return &SharedOpen{
		kind: kind,
		mq:   newMultiQueueOpen(numQueues),
		tlb:  newTwoLevelBucketOpen(shards, kChoice),
	}
}

func (o *SharedOpen) Push(qid uint32, n Node) {
	switch o.kind {
	case OpenMultiQueue:
		o.mq.push(qid, n)
	case OpenTwoLevelBucket:
		o.tlb.push(n)
	}
}

func (o *SharedOpen) Pop(qid uint32, rng *concurrency.XorShift32, st *WorkerStats) (Node, bool) {
	switch o.kind {
	case OpenMultiQueue:
		return o.mq.pop(qid, st)
	case OpenTwoLevelBucket:
		return o.tlb.pop(qid, rng, st)
	}
	return Node{}, false
}

func (o *SharedOpen) Empty() bool { return o.Len() == 0 }

func (o *SharedOpen) Len() uint64 {
	switch o.kind {
	case OpenMultiQueue:
		return o.mq.size.Load()
	case OpenTwoLevelBucket:
		return o.tlb.size.Load()
	}
	return 0
}

// nodeHeap is a binary min-heap under nodeBefore.
type nodeHeap []Node

func (h nodeHeap) Len() int            { return len(h) }
func (h nodeHeap) Less(i, j int) bool  { return nodeBefore(h[i], h[j]) }
func (h nodeHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *nodeHeap) Push(x any) { *h = append(*h, x.(Node)) }
func (h *nodeHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

type multiQueueOpen struct {
	qs   []mqQueue
	size atomic.Uint64
}

type mqQueue struct {
	mu sync.Mutex
	h  nodeHeap
	_  [16]byte
}

func newMultiQueueOpen(n uint32) *multiQueueOpen {
	return &multiQueueOpen{qs: make([]mqQueue, n)}
}

func (o *multiQueueOpen) push(qid uint32, n Node) {
	q := &o.qs[qid%uint32(len(o.qs))]
	q.mu.Lock()
	heap.Push(&q.h, n)
	q.mu.Unlock()
	o.size.Add(1)
}

func (o *multiQueueOpen) pop(qid uint32, st *WorkerStats) (Node, bool) {
	n := uint32(len(o.qs))

	q := &o.qs[qid%n]
	q.mu.Lock()
	if q.h.Len() > 0 {
		out := heap.Pop(&q.h).(Node)
		q.mu.Unlock()
		o.size.Add(^uint64(0))
		return out, true
	}
	q.mu.Unlock()

	// Local queue dry: steal from the others in ring order.
	for t := uint32(0); t < n; t++ {
		q := &o.qs[(qid+1+t)%n]
		q.mu.Lock()
		if q.h.Len() > 0 {
			out := heap.Pop(&q.h).(Node)
			q.mu.Unlock()
			o.size.Add(^uint64(0))
			if st != nil {
				st.Steals++
			}
			return out, true
		}
		q.mu.Unlock()
	}
	return Node{}, false
}

type twoLevelBucketOpen struct {
	shards  []bucketShard
	size    atomic.Uint64
	kChoice uint32
}

type bucketShard struct {
	mu      concurrency.TicketLock
	pq      *pq.TwoLevelBucketPQ
	store   map[pq.Value]Node
	nextVal uint32
	count   uint64
}

func newTwoLevelBucketOpen(shards, kChoice uint32) *twoLevelBucketOpen {
	o := &twoLevelBucketOpen{
		shards:  make([]bucketShard, shards),
		kChoice: kChoice,
	}
	for i := range o.shards {
		o.shards[i].pq = pq.NewTwoLevelBucketPQ()
		o.shards[i].store = make(map[pq.Value]Node)
	}
	return o
}

// pickShard spreads sequential ids across shards with a Fibonacci
// multiplicative hash.
func pickShard(id uint64, n uint32) uint32 {
	x := id * 11400714819323198485
	return uint32((x >> 32) % uint64(n))
}

func (o *twoLevelBucketOpen) push(n Node) {
	sh := &o.shards[pickShard(n.ID, uint32(len(o.shards)))]
	key := pq.PackAsc(int(n.G+n.H), int(n.H))

	sh.mu.Lock()
	vid := pq.Value(sh.nextVal)
	sh.nextVal++
	sh.store[vid] = n
	sh.pq.Insert(vid, key)
	sh.count++
	sh.mu.Unlock()

	o.size.Add(1)
}

func (o *twoLevelBucketOpen) pop(qid uint32, rng *concurrency.XorShift32, st *WorkerStats) (Node, bool) {
	s := uint32(len(o.shards))
	if o.size.Load() == 0 {
		return Node{}, false
	}

	seed := rng.Next()
	for t := uint32(0); t < o.kChoice; t++ {
		sh := &o.shards[(qid+seed+t)%s]
		if n, ok := o.tryPop(sh); ok {
			return n, true
		}
		if st != nil {
			st.EmptyProbes++
		}
	}

	// All sampled shards were dry: sweep every shard once so a
	// straggler node cannot stall progress.
	for sid := uint32(0); sid < s; sid++ {
		if n, ok := o.tryPop(&o.shards[sid]); ok {
			if st != nil {
				st.Steals++
			}
			return n, true
		}
	}
	return Node{}, false
}

func (o *twoLevelBucketOpen) tryPop(sh *bucketShard) (Node, bool) {
	sh.mu.Lock()
	defer sh.mu.Unlock()

	if sh.count == 0 || sh.pq.Empty() {
		return Node{}, false
	}
	vid, _ := sh.pq.ExtractMin()
	n, ok := sh.store[vid]
	if !ok {
		return Node{}, false
	}
	delete(sh.store, vid)
	sh.count--
	o.size.Add(^uint64(0))
	return n, true
}
