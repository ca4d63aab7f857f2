// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package concurrency

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSpinLock_MutualExclusion(t *testing.T) {
	var l SpinLock
	var wg sync.WaitGroup
	counter := 0

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				l.Lock()
				counter++
				l.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 8000, counter)
}

func TestSpinLock_TryLock(t *testing.T) {
	var l SpinLock
	assert.True(t, l.TryLock())
	assert.False(t, l.TryLock())
	l.Unlock()
	assert.True(t, l.TryLock())
	l.Unlock()
}

func TestTicketLock_MutualExclusion(t *testing.T) {
	var l TicketLock
	var wg sync.WaitGroup
	counter := 0

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				l.Lock()
				counter++
				l.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 8000, counter)
}

func TestXorShift32_ZeroSeed(t *testing.T) {
	r := NewXorShift32(0)
	assert.NotZero(t, r.Next(), "zero seed must not produce the all-zero sequence")
}

func TestXorShift32_Deterministic(t *testing.T) {
	a := NewXorShift32(634)
	b := NewXorShift32(634)
	for i := 0; i < 100; i++ {
		assert.Equal(t, a.Next(), b.Next())
	}
}

func TestXorShift32_UniformBounds(t *testing.T) {
	r := NewXorShift32(42)
	seen := make(map[uint32]bool)
	for i := 0; i < 10000; i++ {
		v := r.Uniform(7)
		assert.Less(t, v, uint32(7))
		seen[v] = true
	}
	assert.Len(t, seen, 7, "all residues should appear over 10k draws")
}

func TestStripeIndex(t *testing.T) {
	assert.Equal(t, uint32(3), StripeIndex(11, 8))
	assert.Equal(t, uint32(0), StripeIndex(16, 8))
	for h := uint64(0); h < 100; h++ {
		assert.Less(t, StripeIndex(h, 5), uint32(5))
	}
}

func TestBarrier_ReleasesAllParties(t *testing.T) {
	const n = 4
	b := NewBarrier(n)
	var passed atomic.Uint32
	var wg sync.WaitGroup

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b.Wait()
			passed.Add(1)
			b.Wait() // reusable across phases
			passed.Add(1)
		}()
	}
	wg.Wait()
	assert.Equal(t, uint32(2*n), passed.Load())
}

func TestPaddedCounter(t *testing.T) {
	var c PaddedCounter
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				c.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, uint64(4000), c.Load())
}

func TestBackoff_EventuallyYields(t *testing.T) {
	var b Backoff
	for i := 0; i < 20; i++ {
		b.Wait()
	}
	b.Reset()
	b.Wait() // short spin again after reset
}
