// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package pq implements the bucketed, index-addressable priority queues
// used by the planner's best-first search engines.
//
// Keys are 32-bit integers packing an (f, h) pair: f in the high 16 bits,
// h in the low 16 bits. Lexicographic (f, h) order therefore coincides
// with plain integer order on the packed key. Values are 32-bit node ids.
//
// Two queue flavors are provided:
//
//   - BucketPQ: a flat array of buckets indexed by the full packed key,
//     with a min-key cursor. Suited to h-primary orderings (GBFS).
//   - TwoLevelBucketPQ: an outer f-layer array of inner h-bucket arrays,
//     with bitset occupancy tracking on both levels. Suited to A*.
//
// Both support O(1) amortized insert, extract-min, decrease/increase-key
// and remove via a positions directory. Precondition violations (double
// insert, extract from empty, key change on an absent value) panic; they
// are programmer errors, not recoverable runtime faults.
package pq

// Key is a packed (f, h) priority. Smaller is better.
type Key = uint32

// Value is a node id addressable by the positions directory.
type Value = uint32

const (
	// HBits is the width of the h field inside a packed key.
	HBits = 16

	// HMask selects the h field of a packed key.
	HMask Key = (1 << HBits) - 1

	// KeyMax is the sentinel returned by KeyOf for absent values.
	KeyMax Key = ^Key(0)

	// PseudoInf is a finite stand-in for an infinite heuristic value.
	// It exceeds the 16-bit field on purpose: packing saturates it to
	// the representable edge so unreachable states still order last.
	PseudoInf = 1 << 16
)

func sat16(x int) Key {
	if x < 0 {
		x = 0
	}
	if x > int(HMask) {
		x = int(HMask)
	}
	return Key(x)
}

// PackAsc packs (f, h) with h ascending: among equal f, smaller h wins.
// Negative inputs clamp to zero and oversized inputs saturate to 0xFFFF.
func PackAsc(f, h int) Key {
	return sat16(f)<<HBits | sat16(h)
}

// PackDesc packs (f, h) with h descending relative to the domain upper
// bound hMax: among equal f, larger h wins. Used by orderings that prefer
// deeper progress first.
func PackDesc(f, h, hMax int) Key {
	if h < 0 {
		h = 0
	}
	return sat16(f)<<HBits | sat16(hMax-h)
}

// UnpackF extracts the f field of a packed key.
func UnpackF(k Key) int { return int(k >> HBits) }

// UnpackH extracts the h field of a packed key.
func UnpackH(k Key) int { return int(k & HMask) }
