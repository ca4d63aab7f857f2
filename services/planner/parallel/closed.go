// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package parallel

import (
	"sync"

	"github.com/AleutianAI/AleutianPlan/services/planner/sas"
)

// ClosedEntry is the best known cost and owning node for a state.
type ClosedEntry struct {
	BestG  int32
	NodeID uint64
}

// ClosedTable is the shared duplicate table: a power-of-two number of
// stripes, each a map from state key to entry under its own RWMutex.
// PruneOrUpdate is the sole linearization point for duplicate
// decisions; everything downstream of a false return may assume it
// owns the state at that g.
type ClosedTable struct {
	stripes []closedStripe
	mask    uint64
}

type closedStripe struct {
	mu sync.RWMutex
	m  map[string]ClosedEntry
	_  [24]byte
}

// NewClosedTable rounds stripes up to a power of two, minimum 1.
func NewClosedTable(stripes uint32) *ClosedTable {
	n := uint32(1)
	for n < stripes {
		n <<= 1
	}
	t := &ClosedTable{stripes: make([]closedStripe, n), mask: uint64(n - 1)}
	for i := range t.stripes {
		t.stripes[i].m = make(map[string]ClosedEntry)
	}
	return t
}

// hashState mixes each variable value into an FNV-style accumulator.
func hashState(s sas.State) uint64 {
	x := uint64(1469598103934665603)
	for _, v := range s {
		y := uint64(v) ^ (uint64(v) << 32)
		x ^= y
		x *= 1099511628211
	}
	return x
}

func (t *ClosedTable) stripeFor(s sas.State) *closedStripe {
	return &t.stripes[hashState(s)&t.mask]
}

// PruneOrUpdate returns true when the state is already closed at a
// cost no worse than g. Otherwise it records (g, id) and returns
// false.
func (t *ClosedTable) PruneOrUpdate(s sas.State, g int32, id uint64) bool {
	st := t.stripeFor(s)
	key := s.Key()

	st.mu.Lock()
	defer st.mu.Unlock()

	e, ok := st.m[key]
	if ok && e.BestG <= g {
		return true
	}
	st.m[key] = ClosedEntry{BestG: g, NodeID: id}
	return false
}

// Get returns the entry for s if one exists.
func (t *ClosedTable) Get(s sas.State) (ClosedEntry, bool) {
	st := t.stripeFor(s)
	key := s.Key()

	st.mu.RLock()
	defer st.mu.RUnlock()

	e, ok := st.m[key]
	return e, ok
}

// Len counts entries across all stripes. Approximate while workers
// are still writing.
func (t *ClosedTable) Len() int {
	n := 0
	for i := range t.stripes {
		t.stripes[i].mu.RLock()
		n += len(t.stripes[i].m)
		t.stripes[i].mu.RUnlock()
	}
	return n
}
