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
)

func TestPackAsc_RoundTrip(t *testing.T) {
	cases := []struct {
		name string
		f, h int
		outF int
		outH int
	}{
		{"zero", 0, 0, 0, 0},
		{"small", 3, 9, 3, 9},
		{"max field", 0xFFFF, 0xFFFF, 0xFFFF, 0xFFFF},
		{"f saturates", 0x12345, 7, 0xFFFF, 7},
		{"h saturates", 7, 0x10000, 7, 0xFFFF},
		{"negative clamps", -4, -1, 0, 0},
		{"pseudo infinity", 5, PseudoInf, 5, 0xFFFF},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			k := PackAsc(tc.f, tc.h)
			assert.Equal(t, tc.outF, UnpackF(k))
			assert.Equal(t, tc.outH, UnpackH(k))
		})
	}
}

func TestPackAsc_OrdersLexicographically(t *testing.T) {
	assert.Less(t, PackAsc(3, 9), PackAsc(5, 2))
	assert.Less(t, PackAsc(5, 2), PackAsc(5, 7))
	assert.Less(t, PackAsc(5, 7), PackAsc(6, 0))
}

func TestPackDesc_ReversesH(t *testing.T) {
	const hMax = 100
	// Same f: larger h packs smaller, so it pops first.
	assert.Less(t, PackDesc(4, 90, hMax), PackDesc(4, 10, hMax))
	// h above hMax clamps to zero distance.
	assert.Equal(t, PackDesc(4, hMax, hMax), PackDesc(4, hMax+5, hMax))
}

func TestBitset_MinWordTracking(t *testing.T) {
	b := NewBitset()
	assert.False(t, b.Any())
	assert.Equal(t, -1, b.FindFirst())

	b.Set(200)
	b.Set(70)
	b.Set(3)
	assert.True(t, b.Any())
	assert.Equal(t, 3, b.FindFirst())

	b.Clear(3)
	assert.Equal(t, 70, b.FindFirst())
	b.Clear(70)
	assert.Equal(t, 200, b.FindFirst())
	b.Clear(200)
	assert.False(t, b.Any())
	assert.Equal(t, -1, b.FindFirst())
}

func TestBitset_ClearAbsentIsNoop(t *testing.T) {
	b := NewBitset()
	b.Clear(1024)
	assert.False(t, b.Any())
	b.Set(5)
	b.Clear(4096)
	assert.Equal(t, 5, b.FindFirst())
}
