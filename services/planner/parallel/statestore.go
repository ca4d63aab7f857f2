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

// StateStore maps node ids to their concrete states, striped by id so
// workers touching different ids rarely contend.
type StateStore struct {
	stripes []storeStripe
}

type storeStripe struct {
	mu sync.RWMutex
	m  map[uint64]sas.State
}

func NewStateStore(stripes uint32) *StateStore {
	if stripes == 0 {
		stripes = 1
	}
	s := &StateStore{stripes: make([]storeStripe, stripes)}
	for i := range s.stripes {
		s.stripes[i].m = make(map[uint64]sas.State)
	}
	return s
}

func (ss *StateStore) stripeFor(id uint64) *storeStripe {
	return &ss.stripes[id%uint64(len(ss.stripes))]
}

// Put stores s under id. The store takes ownership of the slice.
func (ss *StateStore) Put(id uint64, s sas.State) {
	st := ss.stripeFor(id)
	st.mu.Lock()
	st.m[id] = s
	st.mu.Unlock()
}

// Get copies the state for id into out. out must have the right
// length. Returns false when the id is unknown.
func (ss *StateStore) Get(id uint64, out sas.State) bool {
	st := ss.stripeFor(id)
	st.mu.RLock()
	defer st.mu.RUnlock()

	s, ok := st.m[id]
	if !ok {
		return false
	}
	copy(out, s)
	return true
}

// ReadRef exposes a state without copying while holding its stripe
// read-locked. Release must be called exactly once.
type ReadRef struct {
	S  sas.State
	mu *sync.RWMutex
}

func (r *ReadRef) Release() { r.mu.RUnlock() }

// GetRead returns a locked reference to the state for id, or false.
func (ss *StateStore) GetRead(id uint64) (ReadRef, bool) {
	st := ss.stripeFor(id)
	st.mu.RLock()
	s, ok := st.m[id]
	if !ok {
		st.mu.RUnlock()
		return ReadRef{}, false
	}
	return ReadRef{S: s, mu: &st.mu}, true
}
