// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package heuristic

import (
	"sync"

	"github.com/AleutianAI/AleutianPlan/services/planner/sas"
)

// FF is the relaxed-plan heuristic. It builds the relaxed planning
// graph from the evaluated state, extracts one relaxed plan by chasing
// first achievers backward from the goal facts, and returns the summed
// cost of the chosen operators, each counted once. States whose
// relaxation cannot reach the goal get Inf.
//
// The estimate is not admissible but is a strong guide for greedy
// search. Evaluations are independent; scratch buffers are pooled so
// the parallel engine can call Evaluate from many workers.
type FF struct {
	rt       *relaxedTask
	integral bool
	pool     sync.Pool
}

// NewFF precomputes the delete-free projection of t.
func NewFF(t *sas.Task) *FF {
	h := &FF{rt: newRelaxedTask(t), integral: t.IntegerCosts(1e-12)}
	h.pool.New = func() any { return newFFScratch(h.rt) }
	return h
}

type ffScratch struct {
	ex     *exploreScratch
	chosen []bool
	stack  []int32
	marked []bool
}

func newFFScratch(rt *relaxedTask) *ffScratch {
	return &ffScratch{
		ex:     newExploreScratch(rt),
		chosen: make([]bool, len(rt.pre)),
		stack:  make([]int32, 0, len(rt.goal)),
		marked: make([]bool, rt.numFacts),
	}
}

func (h *FF) Evaluate(_ *sas.Task, s sas.State) float64 {
	sc := h.pool.Get().(*ffScratch)
	defer h.pool.Put(sc)

	if !h.rt.explore(s, sc.ex) {
		return Inf
	}

	for i := range sc.chosen {
		sc.chosen[i] = false
	}
	for i := range sc.marked {
		sc.marked[i] = false
	}
	sc.stack = sc.stack[:0]

	for _, g := range h.rt.goal {
		sc.stack = append(sc.stack, g)
	}

	total := 0.0
	for len(sc.stack) > 0 {
		f := sc.stack[len(sc.stack)-1]
		sc.stack = sc.stack[:len(sc.stack)-1]
		if sc.marked[f] {
			continue
		}
		sc.marked[f] = true

		oi := sc.ex.firstAchiever[f]
		if oi < 0 {
			continue // true in s
		}
		if !sc.chosen[oi] {
			sc.chosen[oi] = true
			total += h.rt.cost[oi]
		}
		for _, p := range h.rt.pre[oi] {
			if !sc.marked[p] {
				sc.stack = append(sc.stack, p)
			}
		}
	}
	return total
}

func (h *FF) Integral() bool { return h.integral }
func (h *FF) Name() string   { return "ff" }
