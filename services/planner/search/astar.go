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
	"math"

	"github.com/AleutianAI/AleutianPlan/services/planner/heuristic"
	"github.com/AleutianAI/AleutianPlan/services/planner/pq"
	"github.com/AleutianAI/AleutianPlan/services/planner/sas"
)

// Astar runs A* from the task's initial state.
//
// With integral costs and heuristic the open list is a two-level
// bucket queue keyed by packed (f,h); stale entries are filtered by
// re-deriving the key from the node's current g and h on pop.
// Otherwise a lazy-deletion heap over float keys is used with an
// epsilon tie tolerance.
//
// The returned Result carries partial statistics even when the search
// stops on a budget error or context cancellation.
func Astar(ctx context.Context, t *sas.Task, h heuristic.Heuristic, p Params) (*Result, error) {
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
	log.Debug("astar start", "mutex_check", doMutex, "operators", len(t.Ops))

	budget := NewCPUBudget(p.CPULimit)
	if integerMode(t, h) {
		log.Debug("integer costs and heuristic, using bucket queue")
		return astarInt(ctx, t, h, p, r, indexOf, doMutex, budget)
	}
	log.Debug("non-integral costs or heuristic, using binary heap")
	return astarFloat(ctx, t, h, p, r, indexOf, doMutex, budget)
}

type metaI struct {
	g, h   int32
	closed bool
}

func astarInt(ctx context.Context, t *sas.Task, h heuristic.Heuristic, p Params, r *Result, indexOf map[string]int, doMutex bool, budget *CPUBudget) (*Result, error) {
	s0 := r.Nodes[0].S

	meta := make([]metaI, 1, 1<<15)
	open := pq.NewTwoLevelBucketPQ()

	h0 := roundInt(h.Evaluate(t, s0))
	r.Stats.Evaluated++
	meta[0] = metaI{g: 0, h: int32(h0)}
	open.Insert(0, pq.PackAsc(h0, h0))

	work := s0.Clone()
	var undo sas.UndoLog

	for !open.Empty() {
		if err := budget.Check(ctx); err != nil {
			return r, err
		}

		u32, key := open.ExtractMin()
		u := int(u32)
		fu, hu := pq.UnpackF(key), pq.UnpackH(key)

		// Skip entries left behind by key changes.
		if fu != int(meta[u].g+meta[u].h) || hu != int(meta[u].h) {
			continue
		}

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
			v, dup := indexOf[skey]
			if !dup {
				v = len(r.Nodes)
				r.Nodes = append(r.Nodes, Node{S: work.Clone(), Parent: int32(u), Act: int32(a)})
				indexOf[skey] = v
			}
			undo.UndoTo(work, mark)

			tg := int(meta[u].g) + roundInt(op.Cost)

			if !dup {
				hv := roundInt(h.Evaluate(t, r.Nodes[v].S))
				r.Stats.Evaluated++
				meta = append(meta, metaI{g: int32(tg), h: int32(hv)})
				open.Insert(pq.Value(v), pq.PackAsc(tg+hv, hv))
				continue
			}

			if tg >= int(meta[v].g) {
				r.Stats.Duplicates++
				continue
			}

			meta[v].g = int32(tg)
			r.Nodes[v].Parent = int32(u)
			r.Nodes[v].Act = int32(a)

			hv := roundInt(h.Evaluate(t, r.Nodes[v].S))
			r.Stats.Evaluated++
			meta[v].h = int32(hv)
			newKey := pq.PackAsc(tg+hv, hv)

			if meta[v].closed {
				if !p.ReopenClosed {
					r.Stats.Duplicates++
					continue
				}
				meta[v].closed = false
				open.Insert(pq.Value(v), newKey)
			} else if open.Contains(pq.Value(v)) {
				cur := open.KeyOf(pq.Value(v))
				if newKey < cur {
					open.DecreaseKey(pq.Value(v), newKey)
				} else if newKey > cur {
					open.IncreaseKey(pq.Value(v), newKey)
				}
			} else {
				open.Insert(pq.Value(v), newKey)
			}
		}
	}
	return r, nil
}

type metaD struct {
	g, h   float64
	closed bool
}

const floatEps = 1e-12

func astarFloat(ctx context.Context, t *sas.Task, h heuristic.Heuristic, p Params, r *Result, indexOf map[string]int, doMutex bool, budget *CPUBudget) (*Result, error) {
	s0 := r.Nodes[0].S

	meta := make([]metaD, 1, 1<<15)
	open := &floatHeap{}

	h0 := h.Evaluate(t, s0)
	r.Stats.Evaluated++
	meta[0] = metaD{g: 0, h: h0}
	heap.Push(open, floatItem{k1: h0, k2: h0, id: 0})

	work := s0.Clone()
	var undo sas.UndoLog

	for open.Len() > 0 {
		if err := budget.Check(ctx); err != nil {
			return r, err
		}

		cur := heap.Pop(open).(floatItem)
		u := cur.id

		// Lazy deletion: drop entries whose f no longer matches.
		if math.Abs(cur.k1-(meta[u].g+meta[u].h)) > floatEps {
			continue
		}

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
			v, dup := indexOf[skey]
			if !dup {
				v = len(r.Nodes)
				r.Nodes = append(r.Nodes, Node{S: work.Clone(), Parent: int32(u), Act: int32(a)})
				indexOf[skey] = v
			}
			undo.UndoTo(work, mark)

			tg := meta[u].g + op.Cost

			if !dup {
				hv := h.Evaluate(t, r.Nodes[v].S)
				r.Stats.Evaluated++
				meta = append(meta, metaD{g: tg, h: hv})
				heap.Push(open, floatItem{k1: tg + hv, k2: hv, id: v})
				continue
			}

			if tg+floatEps >= meta[v].g {
				r.Stats.Duplicates++
				continue
			}

			meta[v].g = tg
			r.Nodes[v].Parent = int32(u)
			r.Nodes[v].Act = int32(a)

			meta[v].h = h.Evaluate(t, r.Nodes[v].S)
			r.Stats.Evaluated++
			if meta[v].closed {
				if !p.ReopenClosed {
					r.Stats.Duplicates++
					continue
				}
				meta[v].closed = false
			}
			heap.Push(open, floatItem{k1: meta[v].g + meta[v].h, k2: meta[v].h, id: v})
		}
	}
	return r, nil
}
