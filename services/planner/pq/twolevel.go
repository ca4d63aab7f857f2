// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package pq

// hLayer holds the h-indexed buckets of one f value plus their occupancy
// bitset.
type hLayer struct {
	buckets [][]Value
	hbits   *Bitset
}

func (l *hLayer) ensureH(h uint32) {
	for int(h) >= len(l.buckets) {
		l.buckets = append(l.buckets, nil)
	}
	l.hbits.EnsureWordFor(h)
}

// tlPosition records the (f, h, index) location of a present value.
type tlPosition struct {
	f       uint32
	h       uint32
	idx     uint32
	present bool
}

// TwoLevelBucketPQ is a bucket queue with an outer array indexed by f and
// inner arrays indexed by h. Non-empty f layers and, within each layer,
// non-empty h slots are tracked by bitsets so extract-min finds the
// lexicographic (f, h) minimum without scanning empties.
//
// Within one (f, h) bucket, ExtractMin pops the most recently pushed
// value (LIFO).
//
// Thread Safety: not safe for concurrent use; the sharded open list
// wraps each instance in its own lock.
type TwoLevelBucketPQ struct {
	layers []hLayer
	fbits  *Bitset
	pos    []tlPosition
	count  uint64
}

// NewTwoLevelBucketPQ returns an empty queue.
func NewTwoLevelBucketPQ() *TwoLevelBucketPQ {
	return &TwoLevelBucketPQ{fbits: NewBitset()}
}

// Empty reports whether the queue holds no values.
func (q *TwoLevelBucketPQ) Empty() bool { return q.count == 0 }

// Len returns the number of present values.
func (q *TwoLevelBucketPQ) Len() int { return int(q.count) }

// Insert adds v with packed key k. Panics if v is already present.
func (q *TwoLevelBucketPQ) Insert(v Value, k Key) {
	q.ensurePos(v)

	p := &q.pos[v]
	if p.present {
		panic("pq: insert of a value already present")
	}

	f := uint32(UnpackF(k))
	h := uint32(UnpackH(k))
	q.ensureF(f)
	q.layers[f].ensureH(h)

	l := &q.layers[f]
	b := &l.buckets[h]
	p.present = true
	p.f = f
	p.h = h
	p.idx = uint32(len(*b))
	*b = append(*b, v)

	if !l.hbits.Test(h) {
		l.hbits.Set(h)
	}
	if !q.fbits.Test(f) {
		q.fbits.Set(f)
	}
	q.count++
}

// ExtractMin removes and returns a value with the lexicographically
// minimal (f, h). Panics if empty.
func (q *TwoLevelBucketPQ) ExtractMin() (Value, Key) {
	if q.count == 0 {
		panic("pq: extract from empty queue")
	}

	f := q.fbits.FindFirst()
	l := &q.layers[f]
	h := l.hbits.FindFirst()

	b := &l.buckets[h]
	last := len(*b) - 1
	v := (*b)[last]
	*b = (*b)[:last]

	p := &q.pos[v]
	p.present = false
	q.count--

	if len(*b) == 0 {
		l.hbits.Clear(uint32(h))
		if !l.hbits.Any() {
			q.fbits.Clear(uint32(f))
		}
	}

	return v, Key(f)<<HBits | Key(h)&HMask
}

// DecreaseKey moves v to a smaller key. Panics if v is absent or the new
// key is larger than the current one.
func (q *TwoLevelBucketPQ) DecreaseKey(v Value, newKey Key) {
	q.changeKey(v, newKey, false)
}

// IncreaseKey moves v to a new key with no monotonicity requirement.
func (q *TwoLevelBucketPQ) IncreaseKey(v Value, newKey Key) {
	q.changeKey(v, newKey, true)
}

// Contains reports whether v is present.
func (q *TwoLevelBucketPQ) Contains(v Value) bool {
	return int(v) < len(q.pos) && q.pos[v].present
}

// Remove deletes v in O(1) by swapping with the last value in its bucket.
// Removing an absent value is a no-op.
func (q *TwoLevelBucketPQ) Remove(v Value) {
	if !q.Contains(v) {
		return
	}
	p := &q.pos[v]
	l := &q.layers[p.f]
	b := &l.buckets[p.h]

	last := uint32(len(*b) - 1)
	if p.idx != last {
		moved := (*b)[last]
		(*b)[p.idx] = moved
		q.pos[moved].idx = p.idx
	}
	*b = (*b)[:last]

	if len(*b) == 0 {
		l.hbits.Clear(p.h)
		if !l.hbits.Any() {
			q.fbits.Clear(p.f)
		}
	}
	p.present = false
	q.count--
}

// KeyOf returns the current key of v, or KeyMax if v is absent.
func (q *TwoLevelBucketPQ) KeyOf(v Value) Key {
	if !q.Contains(v) {
		return KeyMax
	}
	p := &q.pos[v]
	return Key(p.f)<<HBits | Key(p.h)&HMask
}

// Clear resets the queue to empty, releasing all storage.
func (q *TwoLevelBucketPQ) Clear() {
	q.layers = nil
	q.pos = nil
	q.fbits = NewBitset()
	q.count = 0
}

func (q *TwoLevelBucketPQ) ensurePos(v Value) {
	for int(v) >= len(q.pos) {
		q.pos = append(q.pos, tlPosition{})
	}
}

func (q *TwoLevelBucketPQ) ensureF(f uint32) {
	for int(f) >= len(q.layers) {
		q.layers = append(q.layers, hLayer{hbits: NewBitset()})
	}
	q.fbits.EnsureWordFor(f)
}

func (q *TwoLevelBucketPQ) changeKey(v Value, newKey Key, allowIncrease bool) {
	if !q.Contains(v) {
		panic("pq: key change on a value not present")
	}

	nf := uint32(UnpackF(newKey))
	nh := uint32(UnpackH(newKey))
	p := &q.pos[v]

	if !allowIncrease {
		oldKey := Key(p.f)<<HBits | Key(p.h)&HMask
		if newKey > oldKey {
			panic("pq: decrease-key with a larger key")
		}
	}
	if nf == p.f && nh == p.h {
		return
	}

	lOld := &q.layers[p.f]
	bOld := &lOld.buckets[p.h]
	last := uint32(len(*bOld) - 1)
	if p.idx != last {
		moved := (*bOld)[last]
		(*bOld)[p.idx] = moved
		q.pos[moved].idx = p.idx
	}
	*bOld = (*bOld)[:last]
	if len(*bOld) == 0 {
		lOld.hbits.Clear(p.h)
		if !lOld.hbits.Any() {
			q.fbits.Clear(p.f)
		}
	}

	q.ensureF(nf)
	q.layers[nf].ensureH(nh)

	lNew := &q.layers[nf]
	bNew := &lNew.buckets[nh]
	p.f = nf
	p.h = nh
	p.idx = uint32(len(*bNew))
	*bNew = append(*bNew, v)

	if !lNew.hbits.Test(nh) {
		lNew.hbits.Set(nh)
	}
	if !q.fbits.Test(nf) {
		q.fbits.Set(nf)
	}
}
