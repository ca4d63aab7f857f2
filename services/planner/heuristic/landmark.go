// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package heuristic

import "github.com/AleutianAI/AleutianPlan/services/planner/sas"

// LandmarkCount counts fact landmarks not yet satisfied.
//
// Landmarks are computed once, over the delete relaxation from the
// initial state: a fact l is a landmark of f when every relaxed plan
// achieving f makes l true at some point. The landmark set of the task
// is the union over the goal facts. Evaluate then counts the landmarks
// the given state does not satisfy.
//
// The count is path independent: a landmark already consumed earlier
// on the search path but false in s is counted again. That keeps
// Evaluate stateless and safe for concurrent use, at the price of some
// accuracy against path-dependent landmark heuristics.
type LandmarkCount struct {
	rt        *relaxedTask
	landmarks []int32
}

// NewLandmarkCount computes the task's fact landmarks by fixpoint
// propagation over the relaxed planning graph from the initial state.
func NewLandmarkCount(t *sas.Task) *LandmarkCount {
	rt := newRelaxedTask(t)
	h := &LandmarkCount{rt: rt}

	sc := newExploreScratch(rt)
	rt.explore(t.Init, sc)

	words := (rt.numFacts + 63) / 64
	full := make(lmSet, words)
	for f := 0; f < rt.numFacts; f++ {
		full.set(int32(f))
	}

	// lm[f] starts at {f} for initially true facts and the full set
	// for everything else; unreachable facts keep the full set and
	// never contribute.
	lm := make([]lmSet, rt.numFacts)
	for f := range lm {
		lm[f] = make(lmSet, words)
		if sc.factLayer[f] == 0 {
			lm[f].set(int32(f))
		} else {
			copy(lm[f], full)
		}
	}

	preUnion := make(lmSet, words)
	changed := true
	for changed {
		changed = false
		for oi := range rt.pre {
			if sc.opLayer[oi] < 0 {
				continue
			}
			preUnion.clear()
			for _, p := range rt.pre[oi] {
				preUnion.or(lm[p])
			}
			for _, f := range rt.add[oi] {
				if sc.factLayer[f] == 0 {
					continue
				}
				// lm(f) := lm(f) ∩ ({f} ∪ pre landmarks), over
				// all achievers.
				if lm[f].intersectWith(preUnion, f) {
					changed = true
				}
			}
		}
	}

	seen := make(lmSet, words)
	for _, g := range rt.goal {
		if sc.factLayer[g] < 0 {
			continue
		}
		seen.or(lm[g])
	}
	for f := int32(0); int(f) < rt.numFacts; f++ {
		if seen.test(f) {
			h.landmarks = append(h.landmarks, f)
		}
	}
	return h
}

func (h *LandmarkCount) Evaluate(_ *sas.Task, s sas.State) float64 {
	miss := 0
	for _, l := range h.landmarks {
		v, val := h.rt.factVarVal(l)
		if s[v] != val {
			miss++
		}
	}
	return float64(miss)
}

func (h *LandmarkCount) Integral() bool { return true }
func (h *LandmarkCount) Name() string   { return "landmark-count" }

// factVarVal inverts fact ids back to (variable, value).
func (rt *relaxedTask) factVarVal(f int32) (int, int) {
	lo, hi := 0, len(rt.offsets)-1
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if int32(rt.offsets[mid]) <= f {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return lo, int(f) - rt.offsets[lo]
}

// lmSet is a fixed-width bitset over fact ids.
type lmSet []uint64

func (s lmSet) set(f int32)       { s[f>>6] |= 1 << (uint(f) & 63) }
func (s lmSet) test(f int32) bool { return s[f>>6]&(1<<(uint(f)&63)) != 0 }

func (s lmSet) clear() {
	for i := range s {
		s[i] = 0
	}
}

func (s lmSet) or(o lmSet) {
	for i := range s {
		s[i] |= o[i]
	}
}

// intersectWith narrows s to s ∩ (other ∪ {keep}) and reports whether
// any bit was dropped.
func (s lmSet) intersectWith(other lmSet, keep int32) bool {
	changed := false
	kw, kb := keep>>6, uint64(1)<<(uint(keep)&63)
	for i := range s {
		m := other[i]
		if int32(i) == kw {
			m |= kb
		}
		if nv := s[i] & m; nv != s[i] {
			s[i] = nv
			changed = true
		}
	}
	return changed
}
