// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package heuristic

import "github.com/AleutianAI/AleutianPlan/services/planner/sas"

// relaxedTask is the delete-free projection of a SAS+ task over atomic
// facts. A fact is one (variable, value) pair; fact ids are contiguous
// with per-variable offsets. Operators keep their precondition facts
// (prevail, effect conditions, constrained pre values) and the facts
// they add; deletes vanish under the relaxation.
type relaxedTask struct {
	offsets  []int
	numFacts int
	pre      [][]int32
	add      [][]int32
	cost     []float64
	goal     []int32

	// consumers[f] lists the operators with fact f among their
	// preconditions; achievers[f] lists the operators adding f.
	consumers [][]int32
	achievers [][]int32
}

func newRelaxedTask(t *sas.Task) *relaxedTask {
	rt := &relaxedTask{offsets: make([]int, len(t.Vars))}
	n := 0
	for v := range t.Vars {
		rt.offsets[v] = n
		n += t.Vars[v].Domain
	}
	rt.numFacts = n

	rt.pre = make([][]int32, len(t.Ops))
	rt.add = make([][]int32, len(t.Ops))
	rt.cost = make([]float64, len(t.Ops))
	rt.consumers = make([][]int32, n)
	rt.achievers = make([][]int32, n)

	for oi := range t.Ops {
		op := &t.Ops[oi]
		rt.cost[oi] = op.Cost

		seen := map[int32]struct{}{}
		addPre := func(v, val int) {
			f := rt.fact(v, val)
			if _, ok := seen[f]; !ok {
				seen[f] = struct{}{}
				rt.pre[oi] = append(rt.pre[oi], f)
				rt.consumers[f] = append(rt.consumers[f], int32(oi))
			}
		}
		for _, p := range op.Prevail {
			addPre(p.Var, p.Val)
		}
		for i := range op.PrePosts {
			pp := &op.PrePosts[i]
			for _, c := range pp.Conds {
				addPre(c.Var, c.Val)
			}
			if pp.Pre >= 0 {
				addPre(pp.Var, pp.Pre)
			}
		}
		for i := range op.PrePosts {
			f := rt.fact(op.PrePosts[i].Var, op.PrePosts[i].Post)
			rt.add[oi] = append(rt.add[oi], f)
			rt.achievers[f] = append(rt.achievers[f], int32(oi))
		}
	}

	for _, g := range t.Goal {
		rt.goal = append(rt.goal, rt.fact(g.Var, g.Val))
	}
	return rt
}

func (rt *relaxedTask) fact(v, val int) int32 {
	return int32(rt.offsets[v] + val)
}

// exploreScratch holds per-evaluation working storage so concurrent
// evaluations never share state.
type exploreScratch struct {
	factLayer     []int32
	opLayer       []int32
	firstAchiever []int32
	missing       []int32
	queue         []int32
}

func newExploreScratch(rt *relaxedTask) *exploreScratch {
	return &exploreScratch{
		factLayer:     make([]int32, rt.numFacts),
		opLayer:       make([]int32, len(rt.pre)),
		firstAchiever: make([]int32, rt.numFacts),
		missing:       make([]int32, len(rt.pre)),
		queue:         make([]int32, 0, rt.numFacts),
	}
}

// explore runs the relaxed planning graph forward from s. It fills
// sc.factLayer (first layer each fact appears, -1 unreachable),
// sc.opLayer (first layer each operator fires, -1 never) and
// sc.firstAchiever (the operator that first added each fact, -1 for
// state facts). Returns false if some goal fact is unreachable.
func (rt *relaxedTask) explore(s sas.State, sc *exploreScratch) bool {
	for i := range sc.factLayer {
		sc.factLayer[i] = -1
		sc.firstAchiever[i] = -1
	}
	for oi := range sc.opLayer {
		sc.opLayer[oi] = -1
		sc.missing[oi] = int32(len(rt.pre[oi]))
	}
	sc.queue = sc.queue[:0]

	push := func(f, layer, achiever int32) {
		if sc.factLayer[f] >= 0 {
			return
		}
		sc.factLayer[f] = layer
		sc.firstAchiever[f] = achiever
		sc.queue = append(sc.queue, f)
	}

	for v, val := range s {
		push(rt.fact(v, val), 0, -1)
	}

	ready := make([]int32, 0, 16)
	for oi := range rt.pre {
		if sc.missing[oi] == 0 {
			ready = append(ready, int32(oi))
		}
	}

	layer := int32(0)
	head := 0
	for {
		for head < len(sc.queue) {
			f := sc.queue[head]
			head++
			for _, oi := range rt.consumers[f] {
				sc.missing[oi]--
				if sc.missing[oi] == 0 {
					ready = append(ready, oi)
				}
			}
		}
		if len(ready) == 0 {
			break
		}
		next := layer + 1
		fired := ready
		ready = ready[len(ready):]
		for _, oi := range fired {
			sc.opLayer[oi] = layer
			for _, f := range rt.add[oi] {
				push(f, next, oi)
			}
		}
		layer = next
	}

	for _, g := range rt.goal {
		if sc.factLayer[g] < 0 {
			return false
		}
	}
	return true
}
