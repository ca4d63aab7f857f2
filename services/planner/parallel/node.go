// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package parallel

import (
	"math"
	"sync/atomic"
)

// NoParent and NoOp mark the root node.
const (
	NoParent = math.MaxUint64
	NoOp     = math.MaxUint32
)

// Node is a search node without its state; states live in the
// StateStore keyed by ID. Nodes are copied by value between the open
// list and workers.
type Node struct {
	ID     uint64
	Parent uint64
	G      int32
	H      int32
	Op     uint32
}

func (n Node) f() int32 { return n.G + n.H }

// nodeBefore orders nodes by smaller f, then smaller h, then smaller
// id. The id component makes the order total so the multi-queue heaps
// pop deterministically under equal estimates.
func nodeBefore(a, b Node) bool {
	if a.f() != b.f() {
		return a.f() < b.f()
	}
	if a.H != b.H {
		return a.H < b.H
	}
	return a.ID < b.ID
}

// IDAllocator hands out monotonically increasing node ids from a
// single atomic counter.
type IDAllocator struct {
	next atomic.Uint64
}

func (a *IDAllocator) Alloc() uint64 { return a.next.Add(1) - 1 }

// Reset restarts allocation at start. Only safe with no concurrent
// Alloc callers.
func (a *IDAllocator) Reset(start uint64) { a.next.Store(start) }
