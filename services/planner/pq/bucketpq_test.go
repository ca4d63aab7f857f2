// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package pq

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// queue is the surface shared by both bucket queue flavors, so the
// contract tests run against each.
type queue interface {
	Insert(Value, Key)
	ExtractMin() (Value, Key)
	DecreaseKey(Value, Key)
	IncreaseKey(Value, Key)
	Contains(Value) bool
	Remove(Value)
	KeyOf(Value) Key
	Clear()
	Empty() bool
	Len() int
}

func eachQueue(t *testing.T, fn func(t *testing.T, q queue)) {
	t.Run("BucketPQ", func(t *testing.T) { fn(t, NewBucketPQ()) })
	t.Run("TwoLevelBucketPQ", func(t *testing.T) { fn(t, NewTwoLevelBucketPQ()) })
}

func TestQueue_ExtractOrder(t *testing.T) {
	eachQueue(t, func(t *testing.T, q queue) {
		q.Insert(3, PackAsc(5, 7))
		q.Insert(1, PackAsc(3, 9))
		q.Insert(2, PackAsc(5, 2))
		require.Equal(t, 3, q.Len())

		v, k := q.ExtractMin()
		assert.Equal(t, Value(1), v)
		assert.Equal(t, PackAsc(3, 9), k)

		v, k = q.ExtractMin()
		assert.Equal(t, Value(2), v)
		assert.Equal(t, PackAsc(5, 2), k)

		v, k = q.ExtractMin()
		assert.Equal(t, Value(3), v)
		assert.Equal(t, PackAsc(5, 7), k)

		assert.True(t, q.Empty())
	})
}

func TestQueue_LIFOWithinBucket(t *testing.T) {
	eachQueue(t, func(t *testing.T, q queue) {
		k := PackAsc(2, 2)
		q.Insert(10, k)
		q.Insert(11, k)
		q.Insert(12, k)

		v, _ := q.ExtractMin()
		assert.Equal(t, Value(12), v)
		v, _ = q.ExtractMin()
		assert.Equal(t, Value(11), v)
		v, _ = q.ExtractMin()
		assert.Equal(t, Value(10), v)
	})
}

func TestQueue_DecreaseKey(t *testing.T) {
	eachQueue(t, func(t *testing.T, q queue) {
		q.Insert(7, PackAsc(10, 5))
		q.DecreaseKey(7, PackAsc(4, 1))

		v, k := q.ExtractMin()
		assert.Equal(t, Value(7), v)
		assert.Equal(t, PackAsc(4, 1), k)
	})
}

func TestQueue_DecreaseKeyResortsAgainstOthers(t *testing.T) {
	eachQueue(t, func(t *testing.T, q queue) {
		q.Insert(1, PackAsc(6, 1))
		q.Insert(2, PackAsc(9, 9))
		q.DecreaseKey(2, PackAsc(5, 0))

		v, _ := q.ExtractMin()
		assert.Equal(t, Value(2), v)
		v, _ = q.ExtractMin()
		assert.Equal(t, Value(1), v)
	})
}

func TestQueue_IncreaseKey(t *testing.T) {
	eachQueue(t, func(t *testing.T, q queue) {
		q.Insert(1, PackAsc(1, 1))
		q.Insert(2, PackAsc(2, 2))
		q.IncreaseKey(1, PackAsc(3, 3))

		v, _ := q.ExtractMin()
		assert.Equal(t, Value(2), v)
		v, k := q.ExtractMin()
		assert.Equal(t, Value(1), v)
		assert.Equal(t, PackAsc(3, 3), k)
	})
}

func TestQueue_RemoveAndContains(t *testing.T) {
	eachQueue(t, func(t *testing.T, q queue) {
		q.Insert(1, PackAsc(1, 0))
		q.Insert(2, PackAsc(1, 0))
		q.Insert(3, PackAsc(2, 0))
		require.True(t, q.Contains(2))

		q.Remove(2)
		assert.False(t, q.Contains(2))
		assert.Equal(t, 2, q.Len())

		// Removing the only entry of the minimum bucket must advance it.
		q.Remove(1)
		v, k := q.ExtractMin()
		assert.Equal(t, Value(3), v)
		assert.Equal(t, PackAsc(2, 0), k)

		// Remove of an absent value is a no-op.
		q.Remove(99)
		assert.True(t, q.Empty())
	})
}

func TestQueue_KeyOf(t *testing.T) {
	eachQueue(t, func(t *testing.T, q queue) {
		assert.Equal(t, KeyMax, q.KeyOf(5))
		q.Insert(5, PackAsc(8, 3))
		assert.Equal(t, PackAsc(8, 3), q.KeyOf(5))
		q.ExtractMin()
		assert.Equal(t, KeyMax, q.KeyOf(5))
	})
}

func TestQueue_ReinsertAfterExtract(t *testing.T) {
	eachQueue(t, func(t *testing.T, q queue) {
		q.Insert(4, PackAsc(3, 3))
		q.ExtractMin()
		q.Insert(4, PackAsc(1, 1))

		v, k := q.ExtractMin()
		assert.Equal(t, Value(4), v)
		assert.Equal(t, PackAsc(1, 1), k)
	})
}

func TestQueue_Clear(t *testing.T) {
	eachQueue(t, func(t *testing.T, q queue) {
		for i := Value(0); i < 16; i++ {
			q.Insert(i, PackAsc(int(i), 0))
		}
		q.Clear()
		assert.True(t, q.Empty())
		assert.False(t, q.Contains(0))

		q.Insert(0, PackAsc(0, 0))
		v, _ := q.ExtractMin()
		assert.Equal(t, Value(0), v)
	})
}

func TestQueue_DoubleInsertPanics(t *testing.T) {
	eachQueue(t, func(t *testing.T, q queue) {
		q.Insert(1, PackAsc(1, 1))
		assert.Panics(t, func() { q.Insert(1, PackAsc(2, 2)) })
	})
}

func TestQueue_ExtractEmptyPanics(t *testing.T) {
	eachQueue(t, func(t *testing.T, q queue) {
		assert.Panics(t, func() { q.ExtractMin() })
	})
}

func TestQueue_DecreaseKeyLargerPanics(t *testing.T) {
	eachQueue(t, func(t *testing.T, q queue) {
		q.Insert(1, PackAsc(1, 1))
		assert.Panics(t, func() { q.DecreaseKey(1, PackAsc(5, 5)) })
	})
}

func TestQueue_InterleavedMonotoneDrain(t *testing.T) {
	eachQueue(t, func(t *testing.T, q queue) {
		// Drive the min cursor back and forth across f layers.
		q.Insert(1, PackAsc(10, 0))
		q.Insert(2, PackAsc(20, 0))
		v, _ := q.ExtractMin()
		require.Equal(t, Value(1), v)

		q.Insert(3, PackAsc(5, 0))
		v, _ = q.ExtractMin()
		require.Equal(t, Value(3), v)

		q.Insert(4, PackAsc(15, 3))
		q.Insert(5, PackAsc(15, 1))
		v, _ = q.ExtractMin()
		require.Equal(t, Value(5), v)
		v, _ = q.ExtractMin()
		require.Equal(t, Value(4), v)
		v, _ = q.ExtractMin()
		require.Equal(t, Value(2), v)
		assert.True(t, q.Empty())
	})
}
