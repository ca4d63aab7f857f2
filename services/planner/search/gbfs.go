// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package search

import (
	"container/heap"
	"context"

	"github.com/AleutianAI/AleutianPlan/services/planner/heuristic"
	"github.com/AleutianAI/AleutianPlan/services/planner/pq"
	"github.com/AleutianAI/AleutianPlan/services/planner/sas"
)

// Gbfs runs greedy best-first search, ordering open nodes by (h, g)
// and expanding every state at most once.
//
// A dual-queue scheme gives precedence to successors whose estimate
// improved on their parent: those go to a preferred queue that is
// drained before the normal one. Keys never change after insertion,
// so the bucket queues need no stale-entry filtering here.
func Gbfs(ctx context.Context, t *sas.Task, h heuristic.Heuristic, p Params) (*Result, error) {
	r := &Result{}
	s0 := t.Init.Clone()
	r.Nodes = append(r.Nodes, Node{S: s0, Parent: -1, Act: -1})

	if t.IsGoal(s0) {
		r.Solved = true
		return r, nil
	}

	indexOf := make(map[string]int, 1<<15)
	indexOf[s0.Key()] = 0

	log := p.logger()
	doMutex := p.Mutex.ShouldCheck(t)
	log.Debug("gbfs start", "mutex_check", doMutex, "operators", len(t.Ops))

	budget := NewCPUBudget(p.CPULimit)
	if integerMode(t, h) {
		log.Debug("integer costs and heuristic, using bucket queues")
		return gbfsInt(ctx, t, h, p, r, indexOf, doMutex, budget)
	}
	log.Debug("non-integral costs or heuristic, using binary heaps")
	return gbfsFloat(ctx, t, h, p, r, indexOf, doMutex, budget)
}

func gbfsInt(ctx context.Context, t *sas.Task, h heuristic.Heuristic, p Params, r *Result, indexOf map[string]int, doMutex bool, budget *CPUBudget) (*Result, error) {
	s0 := r.Nodes[0].S

	meta := make([]metaI, 1, 1<<15)
	openPref := pq.NewTwoLevelBucketPQ()
	openNorm := pq.NewTwoLevelBucketPQ()

	h0 := roundInt(h.Evaluate(t, s0))
	r.Stats.Evaluated++
	meta[0] = metaI{g: 0, h: int32(h0)}
	// The root has no parent estimate to improve on.
	openNorm.Insert(0, pq.PackAsc(h0, 0))

	work := s0.Clone()
	var undo sas.UndoLog

	for !openPref.Empty() || !openNorm.Empty() {
		if err := budget.Check(ctx); err != nil {
			return r, err
		}

		var u32 pq.Value
		if !openPref.Empty() {
			u32, _ = openPref.ExtractMin()
		} else {
			u32, _ = openNorm.ExtractMin()
		}
		u := int(u32)

		su := r.Nodes[u].S
		if t.IsGoal(su) {
			r.Solved = true
			r.Plan = extractPlan(r.Nodes, u)
			r.PlanCost = sas.EvalPlanCost(t, r.Plan)
			return r, nil
		}

		meta[u].closed = true
		r.Stats.Expanded++
		if r.Stats.Expanded > p.MaxExpansions {
			break
		}

		copy(work, su)
		for a := range t.Ops {
			op := &t.Ops[a]
			if !t.Applicable(work, op) {
				continue
			}

			mark := undo.Mark()
			sas.ApplyWithUndo(work, op, &undo)
			r.Stats.Generated++

			if doMutex && sas.ViolatesMutex(t, work) {
				undo.UndoTo(work, mark)
				continue
			}

			skey := work.Key()
			if _, dup := indexOf[skey]; dup {
				undo.UndoTo(work, mark)
				r.Stats.Duplicates++
				continue
			}

			hv := roundInt(h.Evaluate(t, work))
			r.Stats.Evaluated++
			preferred := hv < int(meta[u].h)

			v := len(r.Nodes)
			r.Nodes = append(r.Nodes, Node{S: work.Clone(), Parent: int32(u), Act: int32(a)})
			indexOf[skey] = v
			undo.UndoTo(work, mark)

			gv := int(meta[u].g) + roundInt(op.Cost)
			meta = append(meta, metaI{g: int32(gv), h: int32(hv)})
			if preferred {
				openPref.Insert(pq.Value(v), pq.PackAsc(hv, gv))
			} else {
				openNorm.Insert(pq.Value(v), pq.PackAsc(hv, gv))
			}
		}
	}
	return r, nil
}

func gbfsFloat(ctx context.Context, t *sas.Task, h heuristic.Heuristic, p Params, r *Result, indexOf map[string]int, doMutex bool, budget *CPUBudget) (*Result, error) {
	s0 := r.Nodes[0].S

	meta := make([]metaD, 1, 1<<15)
	openPref := &floatHeap{}
	openNorm := &floatHeap{}

	h0 := h.Evaluate(t, s0)
	r.Stats.Evaluated++
	meta[0] = metaD{g: 0, h: h0}
	heap.Push(openNorm, floatItem{k1: h0, k2: 0, id: 0})

	work := s0.Clone()
	var undo sas.UndoLog

	for openPref.Len() > 0 || openNorm.Len() > 0 {
		if err := budget.Check(ctx); err != nil {
			return r, err
		}

		var cur floatItem
		if openPref.Len() > 0 {
			cur = heap.Pop(openPref).(floatItem)
		} else {
			cur = heap.Pop(openNorm).(floatItem)
		}
		u := cur.id

		su := r.Nodes[u].S
		if t.IsGoal(su) {
			r.Solved = true
			r.Plan = extractPlan(r.Nodes, u)
			r.PlanCost = sas.EvalPlanCost(t, r.Plan)
			return r, nil
		}

		meta[u].closed = true
		r.Stats.Expanded++
		if r.Stats.Expanded > p.MaxExpansions {
			break
		}

		copy(work, su)
		for a := range t.Ops {
			op := &t.Ops[a]
			if !t.Applicable(work, op) {
				continue
			}

			mark := undo.Mark()
			sas.ApplyWithUndo(work, op, &undo)
			r.Stats.Generated++

			if doMutex && sas.ViolatesMutex(t, work) {
				undo.UndoTo(work, mark)
				continue
			}

			skey := work.Key()
			if _, dup := indexOf[skey]; dup {
				undo.UndoTo(work, mark)
				r.Stats.Duplicates++
				continue
			}

			hv := h.Evaluate(t, work)
			r.Stats.Evaluated++
			preferred := hv < meta[u].h

			v := len(r.Nodes)
			r.Nodes = append(r.Nodes, Node{S: work.Clone(), Parent: int32(u), Act: int32(a)})
			indexOf[skey] = v
			undo.UndoTo(work, mark)

			gv := meta[u].g + op.Cost
			meta = append(meta, metaD{g: gv, h: hv})
			if preferred {
				heap.Push(openPref, floatItem{k1: hv, k2: gv, id: v})
			} else {
				heap.Push(openNorm, floatItem{k1: hv, k2: gv, id: v})
			}
		}
	}
	return r, nil
}
