// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package parallel implements shared-open parallel A*: N workers pull
// from a sharded open list, settle duplicates through a striped closed
// table, and post the first goal they observe.
//
// The posted plan is not guaranteed optimal in general. With an
// admissible consistent heuristic and the bucket open list the found
// cost matches sequential A* in practice, but cross-shard priority
// order is approximate and another worker may still be improving a
// closed entry when the goal is posted.
package parallel

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/AleutianPlan/services/planner/concurrency"
	"github.com/AleutianAI/AleutianPlan/services/planner/heuristic"
	"github.com/AleutianAI/AleutianPlan/services/planner/pq"
	"github.com/AleutianAI/AleutianPlan/services/planner/sas"
)

// ErrNonIntegral rejects tasks with non-integer costs or heuristics;
// node g and h values are 32-bit integers.
var ErrNonIntegral = errors.New("parallel: non-integral action costs or heuristic")

// Params configures the worker pool and the shared open list.
type Params struct {
	NumWorkers uint32
	OpenKind   OpenKind

	// NumQueues is the multi-queue width; zero means 2*NumWorkers.
	NumQueues uint32
	// NumShards is the bucket shard count; zero means NumWorkers.
	NumShards uint32
	// KChoice is the number of shards sampled per pop.
	KChoice uint32

	// TimeLimit bounds wall time; zero disables.
	TimeLimit time.Duration

	Mutex  sas.MutexMode
	Seed   uint32
	Logger *slog.Logger
}

func DefaultParams() Params {
	return Params{
		NumWorkers: 1,
		OpenKind:   OpenTwoLevelBucket,
		KChoice:    2,
		Mutex:      sas.MutexAuto,
		Seed:       634,
	}
}

func (p *Params) sanitize() {
	if p.NumWorkers == 0 {
		p.NumWorkers = 1
	}
	if p.NumQueues == 0 {
		p.NumQueues = 2 * p.NumWorkers
	}
	if p.NumShards == 0 {
		p.NumShards = p.NumWorkers
	}
	if p.KChoice == 0 {
		p.KChoice = 2
	}
	if p.Seed == 0 {
		p.Seed = 634
	}
}

// Result carries the plan and the reduced per-worker counters.
type Result struct {
	Solved   bool
	Plan     []int
	PlanCost float64
	Stats    WorkerStats
}

// termConfirmRounds is how many backoff-spaced re-checks an idle
// worker performs before trusting that the open list is drained.
const termConfirmRounds = 8

// Astar runs the parallel engine and blocks until the workers join.
func Astar(ctx context.Context, t *sas.Task, h heuristic.Heuristic, p Params) (*Result, error) {
	p.sanitize()
	if !t.IntegerCosts(1e-12) || !h.Integral() {
		return nil, ErrNonIntegral
	}

	log := p.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	doMutex := p.Mutex.ShouldCheck(t)
	log.Debug("parallel astar start",
		"workers", p.NumWorkers, "open_kind", int(p.OpenKind),
		"queues", p.NumQueues, "shards", p.NumShards, "k_choice", p.KChoice,
		"mutex_check", doMutex)

	var ids IDAllocator
	closed := NewClosedTable(max(1024, 64*p.NumWorkers))
	store := NewStateStore(max(2048, 128*p.NumWorkers))
	open := NewSharedOpen(p.OpenKind, p.NumQueues, p.NumShards, p.KChoice)
	term := NewTermination(p.TimeLimit)
	stats := NewGlobalStats(p.NumWorkers)

	// Registry of every node ever generated, for plan reconstruction.
	var regMu concurrency.TicketLock
	registry := make(map[uint64]Node, 1<<16)

	s0 := t.Init.Clone()
	root := Node{ID: ids.Alloc(), Parent: NoParent, Op: NoOp, G: 0}
	t0 := time.Now()
	root.H = int32(roundInt(h.Evaluate(t, s0)))
	stats.PerWorker[0].HEvalTime += time.Since(t0)
	stats.PerWorker[0].Evaluated++

	store.Put(root.ID, s0)
	closed.PruneOrUpdate(s0, root.G, root.ID)
	registry[root.ID] = root
	open.Push(0, root)

	var done atomic.Bool
	var active atomic.Int64
	active.Store(int64(p.NumWorkers))

	var goalID atomic.Uint64
	goalID.Store(NoParent)

	worker := func(tid uint32) func() error {
		return func() error {
			st := &stats.PerWorker[tid]
			rng := concurrency.NewXorShift32(p.Seed + tid)
			cur := make(sas.State, len(t.Vars))
			work := make(sas.State, len(t.Vars))
			var undo sas.UndoLog
			var idle concurrency.Backoff
			wasActive := true

			for !done.Load() {
				if err := ctx.Err(); err != nil {
					done.Store(true)
					return err
				}
				if term.TimedOut() {
					done.Store(true)
					return nil
				}

				n, ok := open.Pop(tid, &rng, st)
				if !ok {
					if wasActive {
						active.Add(-1)
						wasActive = false
					}
					if open.Len() == 0 && active.Load() == 0 {
						// Re-sample across a backoff window before
						// declaring the search exhausted.
						stable := true
						var confirm concurrency.Backoff
						for i := 0; i < termConfirmRounds; i++ {
							confirm.Wait()
							if open.Len() != 0 || active.Load() != 0 || done.Load() {
								stable = false
								break
							}
						}
						if stable {
							done.Store(true)
							return nil
						}
					} else {
						idle.Wait()
					}
					continue
				}

				idle.Reset()
				if !wasActive {
					active.Add(1)
					wasActive = true
				}
				st.Pops++
				if sz := open.Len(); sz > st.MaxOpenSeen {
					st.MaxOpenSeen = sz
				}

				if !store.Get(n.ID, cur) {
					continue
				}
				st.Expanded++

				if t.IsGoal(cur) {
					goalID.CompareAndSwap(NoParent, n.ID)
					done.Store(true)
					return nil
				}

				copy(work, cur)
				for a := range t.Ops {
					op := &t.Ops[a]
					if !t.Applicable(work, op) {
						continue
					}

					mark := undo.Mark()
					sas.ApplyWithUndo(work, op, &undo)

					if doMutex && sas.ViolatesMutex(t, work) {
						undo.UndoTo(work, mark)
						continue
					}

					nid := ids.Alloc()
					g2 := n.G + int32(roundInt(op.Cost))

					prevSeen := false
					if _, had := closed.Get(work); had {
						prevSeen = true
					}
					if closed.PruneOrUpdate(work, g2, nid) {
						st.Duplicates++
						undo.UndoTo(work, mark)
						continue
					}
					if prevSeen {
						st.Reopened++
					}

					t0 := time.Now()
					hv := roundInt(h.Evaluate(t, work))
					st.HEvalTime += time.Since(t0)
					st.Evaluated++

					succ := work.Clone()
					undo.UndoTo(work, mark)
					st.Generated++

					if hv >= pq.PseudoInf {
						continue
					}

					nxt := Node{ID: nid, Parent: n.ID, G: g2, H: int32(hv), Op: uint32(a)}
					store.Put(nid, succ)

					regMu.Lock()
					registry[nid] = nxt
					regMu.Unlock()

					open.Push(tid, nxt)
					st.Pushes++
				}
			}
			return nil
		}
	}

	eg, ctx := errgroup.WithContext(ctx)
	for tid := uint32(0); tid < p.NumWorkers; tid++ {
		eg.Go(worker(tid))
	}
	err := eg.Wait()
	done.Store(true)

	r := &Result{Stats: stats.Sum()}
	if err != nil {
		return r, err
	}

	gid := goalID.Load()
	if gid == NoParent {
		log.Debug("parallel astar exhausted", "expanded", r.Stats.Expanded)
		return r, nil
	}

	for id := gid; ; {
		n, ok := registry[id]
		if !ok || n.Parent == NoParent {
			break
		}
		r.Plan = append(r.Plan, int(n.Op))
		id = n.Parent
	}
	for i, j := 0, len(r.Plan)-1; i < j; i, j = i+1, j-1 {
		r.Plan[i], r.Plan[j] = r.Plan[j], r.Plan[i]
	}

	r.Solved = true
	r.PlanCost = sas.EvalPlanCost(t, r.Plan)
	log.Debug("parallel astar solved",
		"plan_len", len(r.Plan), "cost", r.PlanCost, "expanded", r.Stats.Expanded)
	return r, nil
}

func roundInt(v float64) int {
	if v >= float64(pq.PseudoInf) || math.IsInf(v, 1) {
		return pq.PseudoInf
	}
	return int(math.Round(v))
}
