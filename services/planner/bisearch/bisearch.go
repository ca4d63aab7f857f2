// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package bisearch implements bidirectional search: A* forward from
// the initial state and uniform-cost regression backward from the
// goal's partial state, expanded in alternating turns.
//
// A meeting is a concrete forward state satisfying every pinned value
// of a backward partial state; the cheapest meeting seen so far is
// tracked and the joined plan is reconstructed when the search stops.
// Only integral costs and heuristics are supported.
package bisearch

import (
	"context"
	"errors"
	"math"

	"github.com/AleutianAI/AleutianPlan/services/planner/heuristic"
	"github.com/AleutianAI/AleutianPlan/services/planner/pq"
	"github.com/AleutianAI/AleutianPlan/services/planner/sas"
	"github.com/AleutianAI/AleutianPlan/services/planner/search"
)

// ErrNonIntegral rejects tasks the bidirectional engine cannot run:
// the backward queue has no non-integer mode.
var ErrNonIntegral = errors.New("bisearch: non-integral action costs or heuristic")

// Params extends the sequential search parameters.
type Params struct {
	search.Params

	// StopOnFirstMeet ends the search at the first frontier meeting
	// instead of draining both queues for a cheaper one. Faster,
	// possibly suboptimal.
	StopOnFirstMeet bool
}

func DefaultParams() Params {
	return Params{Params: search.DefaultParams()}
}

// Result extends the sequential result with meeting details.
type Result struct {
	search.Result

	// Meet is true when the plan was joined at a frontier meeting
	// rather than found by one direction alone.
	Meet bool

	// RegPlanLen is the number of trailing plan steps contributed by
	// the regression side.
	RegPlanLen int
}

type backNode struct {
	s      regState
	parent int32
	act    int32
}

type metaF struct {
	g, h   int32
	closed bool
}

type metaB struct {
	g      int32
	closed bool
}

// BidirAstar runs the bidirectional engine. When no meeting is found
// and neither direction reaches the other's root, the task is
// reported unsolved.
func BidirAstar(ctx context.Context, t *sas.Task, h heuristic.Heuristic, p Params) (*Result, error) {
	r := &Result{}
	s0 := t.Init.Clone()
	g0 := goalRegState(t)

	if g0.satisfies(s0) {
		r.Solved = true
		r.Meet = true
		r.Nodes = append(r.Nodes, search.Node{S: s0, Parent: -1, Act: -1})
		return r, nil
	}

	if !t.IntegerCosts(1e-12) || !h.Integral() {
		return nil, ErrNonIntegral
	}

	r.Nodes = append(r.Nodes, search.Node{S: s0, Parent: -1, Act: -1})
	indexFwd := make(map[string]int, 1<<15)
	indexFwd[s0.Key()] = 0

	backNodes := []backNode{{s: g0, parent: -1, act: -1}}
	indexBwd := make(map[string]int, 1<<15)
	indexBwd[g0.key()] = 0

	log := p.Params.Logger
	doMutex := p.Mutex.ShouldCheck(t)
	if log != nil {
		log.Debug("bidirectional astar start", "mutex_check", doMutex, "operators", len(t.Ops))
	}

	metaFwd := make([]metaF, 1, 1<<15)
	metaBwd := make([]metaB, 1, 1<<15)
	openFwd := pq.NewTwoLevelBucketPQ()
	openBwd := pq.NewTwoLevelBucketPQ()

	h0 := roundInt(h.Evaluate(t, s0))
	r.Stats.Evaluated++
	metaFwd[0] = metaF{g: 0, h: int32(h0)}
	openFwd.Insert(0, pq.PackAsc(h0, h0))

	// The regression side runs uniform-cost: f is g, h is zero.
	metaBwd[0] = metaB{g: 0}
	openBwd.Insert(0, pq.PackAsc(0, 0))

	haveMeeting := false
	bestCost := math.Inf(1)
	bestF, bestB := -1, -1

	// noteMeeting records the cheapest known frontier crossing.
	noteMeeting := func(fID, bID int) {
		cand := float64(metaFwd[fID].g) + float64(metaBwd[bID].g)
		if cand+1e-12 < bestCost {
			bestCost = cand
			haveMeeting = true
			bestF, bestB = fID, bID
		}
	}

	budget := search.NewCPUBudget(p.CPULimit)
	workF := s0.Clone()
	var undoF sas.UndoLog
	forwardTurn := true

	for !openFwd.Empty() || !openBwd.Empty() {
		if err := budget.Check(ctx); err != nil {
			return r, err
		}
		if r.Stats.Expanded > p.MaxExpansions {
			break
		}

		if forwardTurn {
			for !openFwd.Empty() {
				u32, key := openFwd.ExtractMin()
				u := int(u32)
				if metaFwd[u].closed {
					continue
				}
				if pq.UnpackF(key) != int(metaFwd[u].g+metaFwd[u].h) ||
					pq.UnpackH(key) != int(metaFwd[u].h) {
					continue
				}

				su := r.Nodes[u].S
				if t.IsGoal(su) {
					r.Solved = true
					r.Plan = extractForward(r.Nodes, u)
					r.PlanCost = sas.EvalPlanCost(t, r.Plan)
					return r, nil
				}

				metaFwd[u].closed = true
				r.Stats.Expanded++

				copy(workF, su)
				for a := range t.Ops {
					op := &t.Ops[a]
					if !t.Applicable(workF, op) {
						continue
					}

					mark := undoF.Mark()
					sas.ApplyWithUndo(workF, op, &undoF)
					r.Stats.Generated++

					if doMutex && sas.ViolatesMutex(t, workF) {
						undoF.UndoTo(workF, mark)
						continue
					}

					skey := workF.Key()
					v, dup := indexFwd[skey]
					if !dup {
						v = len(r.Nodes)
						r.Nodes = append(r.Nodes, search.Node{S: workF.Clone(), Parent: int32(u), Act: int32(a)})
						indexFwd[skey] = v
					}
					undoF.UndoTo(workF, mark)

					tg := int(metaFwd[u].g) + roundInt(op.Cost)

					if !dup {
						hv := roundInt(h.Evaluate(t, r.Nodes[v].S))
						r.Stats.Evaluated++
						metaFwd = append(metaFwd, metaF{g: int32(tg), h: int32(hv)})
						openFwd.Insert(pq.Value(v), pq.PackAsc(tg+hv, hv))
					} else {
						if tg >= int(metaFwd[v].g) {
							r.Stats.Duplicates++
							continue
						}
						metaFwd[v].g = int32(tg)
						r.Nodes[v].Parent = int32(u)
						r.Nodes[v].Act = int32(a)

						hv := roundInt(h.Evaluate(t, r.Nodes[v].S))
						r.Stats.Evaluated++
						metaFwd[v].h = int32(hv)
						newKey := pq.PackAsc(tg+hv, hv)

						if metaFwd[v].closed {
							if !p.ReopenClosed {
								r.Stats.Duplicates++
								continue
							}
							metaFwd[v].closed = false
							openFwd.Insert(pq.Value(v), newKey)
						} else if openFwd.Contains(pq.Value(v)) {
							cur := openFwd.KeyOf(pq.Value(v))
							if newKey < cur {
								openFwd.DecreaseKey(pq.Value(v), newKey)
							} else if newKey > cur {
								openFwd.IncreaseKey(pq.Value(v), newKey)
							}
						} else {
							openFwd.Insert(pq.Value(v), newKey)
						}
					}

					// New or improved forward state: look for backward
					// states it already satisfies.
					sv := r.Nodes[v].S
					for bID := range backNodes {
						if backNodes[bID].s.satisfies(sv) {
							noteMeeting(v, bID)
						}
					}
				}
				break
			}
		} else if !openBwd.Empty() {
			for !openBwd.Empty() {
				u32, _ := openBwd.ExtractMin()
				u := int(u32)
				if metaBwd[u].closed {
					continue
				}

				su := backNodes[u].s
				if su.satisfies(s0) {
					r.Solved = true
					for id := u; id >= 0 && backNodes[id].parent >= 0; id = int(backNodes[id].parent) {
						r.Plan = append(r.Plan, int(backNodes[id].act))
					}
					r.PlanCost = sas.EvalPlanCost(t, r.Plan)
					r.RegPlanLen = len(r.Plan)
					return r, nil
				}

				metaBwd[u].closed = true
				r.Stats.Expanded++

				for a := range t.Ops {
					op := &t.Ops[a]
					prev := make(regState, len(t.Vars))
					if !regress(t, op, su, prev) {
						continue
					}
					r.Stats.Generated++

					tg := int(metaBwd[u].g) + roundInt(op.Cost)

					bkey := prev.key()
					v, dup := indexBwd[bkey]
					if !dup {
						v = len(backNodes)
						backNodes = append(backNodes, backNode{s: prev, parent: int32(u), act: int32(a)})
						indexBwd[bkey] = v
						metaBwd = append(metaBwd, metaB{g: int32(tg)})
						openBwd.Insert(pq.Value(v), pq.PackAsc(tg, 0))
					} else {
						if tg >= int(metaBwd[v].g) {
							r.Stats.Duplicates++
							continue
						}
						metaBwd[v].g = int32(tg)
						backNodes[v].parent = int32(u)
						backNodes[v].act = int32(a)
						newKey := pq.PackAsc(tg, 0)

						if metaBwd[v].closed {
							if !p.ReopenClosed {
								r.Stats.Duplicates++
								continue
							}
							metaBwd[v].closed = false
							openBwd.Insert(pq.Value(v), newKey)
						} else if openBwd.Contains(pq.Value(v)) {
							cur := openBwd.KeyOf(pq.Value(v))
							if newKey < cur {
								openBwd.DecreaseKey(pq.Value(v), newKey)
							} else if newKey > cur {
								openBwd.IncreaseKey(pq.Value(v), newKey)
							}
						} else {
							openBwd.Insert(pq.Value(v), newKey)
						}
					}

					// New or improved backward state: look for forward
					// states already satisfying it.
					rv := backNodes[v].s
					for fID := range r.Nodes {
						if rv.satisfies(r.Nodes[fID].S) {
							noteMeeting(fID, v)
						}
					}
				}
				break
			}
		}

		forwardTurn = !forwardTurn
		if p.StopOnFirstMeet && haveMeeting {
			break
		}
	}

	if !haveMeeting {
		return r, nil
	}

	prefix := extractForward(r.Nodes, bestF)
	var suffix []int
	for id := bestB; id >= 0 && backNodes[id].parent >= 0; id = int(backNodes[id].parent) {
		suffix = append(suffix, int(backNodes[id].act))
	}

	r.Plan = append(prefix, suffix...)
	r.Solved = true
	r.Meet = true
	r.RegPlanLen = len(suffix)
	r.PlanCost = sas.EvalPlanCost(t, r.Plan)
	return r, nil
}

func roundInt(v float64) int {
	if v >= float64(pq.PseudoInf) || math.IsInf(v, 1) {
		return pq.PseudoInf
	}
	return int(math.Round(v))
}

func extractForward(nodes []search.Node, goal int) []int {
	var acts []int
	for v := goal; v >= 0 && nodes[v].Parent >= 0; v = int(nodes[v].Parent) {
		acts = append(acts, int(nodes[v].Act))
	}
	for i, j := 0, len(acts)-1; i < j; i, j = i+1, j-1 {
		acts[i], acts[j] = acts[j], acts[i]
	}
	return acts
}
