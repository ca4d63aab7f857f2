// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package sas

import "encoding/binary"

// Clone returns an independent copy of s.
func (s State) Clone() State {
	c := make(State, len(s))
	copy(c, s)
	return c
}

// Key returns an exact, map-usable encoding of the state. Two states
// compare equal iff their keys are equal.
func (s State) Key() string {
	buf := make([]byte, 4*len(s))
	for i, v := range s {
		binary.LittleEndian.PutUint32(buf[4*i:], uint32(v))
	}
	return string(buf)
}

// Hash64 mixes the state into a 64-bit value (FNV-1a with a golden-ratio
// pre-mix per element). Used for stripe selection; exactness is the job
// of Key, not Hash64.
func (s State) Hash64() uint64 {
	h := uint64(1469598103934665603)
	for _, x := range s {
		y := uint64(int64(x)) + 0x9e3779b97f4a7c15
		h ^= y
		h *= 1099511628211
	}
	return h
}

// undoEntry is one overwritten variable on the undo log.
type undoEntry struct {
	varID int
	old   int
}

// UndoLog records in-place state mutations so the expansion loop can
// reuse a single work state: mark, apply, visit the successor, restore.
//
// The zero value is ready to use.
type UndoLog struct {
	entries []undoEntry
}

// Mark returns the current log length. Pass it to UndoTo to roll back
// everything recorded after this point.
func (u *UndoLog) Mark() int { return len(u.entries) }

// UndoTo restores s to its content at the time mark was taken and
// truncates the log. Entries are replayed newest-first so repeated
// writes to one variable resolve to the oldest value.
func (u *UndoLog) UndoTo(s State, mark int) {
	for i := len(u.entries) - 1; i >= mark; i-- {
		e := u.entries[i]
		s[e.varID] = e.old
	}
	u.entries = u.entries[:mark]
}

// Reset drops all recorded entries without touching any state.
func (u *UndoLog) Reset() { u.entries = u.entries[:0] }

// ApplyWithUndo writes every effect of op into s, recording the previous
// values on log. The caller must have checked applicability; effects are
// written in declaration order so the last write to a variable wins.
func ApplyWithUndo(s State, op *Operator, log *UndoLog) {
	for i := range op.PrePosts {
		pp := &op.PrePosts[i]
		log.entries = append(log.entries, undoEntry{varID: pp.Var, old: s[pp.Var]})
		s[pp.Var] = pp.Post
	}
}

// Apply returns a fresh successor of s under op without touching s.
func Apply(s State, op *Operator) State {
	n := s.Clone()
	for i := range op.PrePosts {
		n[op.PrePosts[i].Var] = op.PrePosts[i].Post
	}
	return n
}
