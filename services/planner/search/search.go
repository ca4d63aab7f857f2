// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package search implements the sequential forward engines: A* and
// greedy best-first search over SAS+ tasks.
//
// Both engines keep every generated state in a node arena and address
// open-list entries by node id. When all operator costs and heuristic
// estimates are integral they run on the packed-key bucket queues from
// the pq package; otherwise they fall back to a lazy-deletion binary
// heap over float keys.
package search

import (
	"errors"
	"io"
	"log/slog"
	"math"
	"time"

	"github.com/AleutianAI/AleutianPlan/services/planner/heuristic"
	"github.com/AleutianAI/AleutianPlan/services/planner/pq"
	"github.com/AleutianAI/AleutianPlan/services/planner/sas"
)

// ErrCPUBudget is returned when the process CPU time passes the
// configured limit before the search finishes.
var ErrCPUBudget = errors.New("search: CPU time budget exceeded")

// Node records one generated state with its parent link for plan
// reconstruction.
type Node struct {
	S      sas.State
	Parent int32
	Act    int32
}

// Stats counts search effort.
type Stats struct {
	Expanded   uint64
	Generated  uint64
	Evaluated  uint64
	Duplicates uint64
}

// Result is the outcome of one engine run. Nodes holds the full arena
// so callers can inspect the explored space.
type Result struct {
	Solved   bool
	PlanCost float64
	Plan     []int
	Nodes    []Node
	Stats    Stats
}

// Params tunes an engine run.
type Params struct {
	// MaxExpansions stops the search after this many expansions.
	MaxExpansions uint64

	// ReopenClosed lets A* move closed nodes back to open when a
	// cheaper path is found. Required for optimality with
	// inadmissible or inconsistent heuristics.
	ReopenClosed bool

	// Mutex selects whether generated states are checked against the
	// task's mutex groups.
	Mutex sas.MutexMode

	// CPULimit bounds process CPU time, zero means unlimited.
	CPULimit time.Duration

	// Logger receives start and queue-mode notes at debug level; the
	// engines log no per-expansion progress. Nil discards.
	Logger *slog.Logger
}

// DefaultParams matches the defaults of the command line front end.
func DefaultParams() Params {
	return Params{
		MaxExpansions: 1 << 62,
		ReopenClosed:  true,
		Mutex:         sas.MutexAuto,
	}
}

func (p *Params) logger() *slog.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// roundInt converts a non-negative estimate or cost to the integer
// grid, saturating heuristic infinity to the packed-key edge.
func roundInt(v float64) int {
	if v >= float64(pq.PseudoInf) || math.IsInf(v, 1) {
		return pq.PseudoInf
	}
	return int(math.Round(v))
}

// extractPlan walks parent links from the goal node back to the root.
func extractPlan(nodes []Node, goal int) []int {
	var acts []int
	for v := goal; v >= 0 && nodes[v].Parent >= 0; v = int(nodes[v].Parent) {
		acts = append(acts, int(nodes[v].Act))
	}
	for i, j := 0, len(acts)-1; i < j; i, j = i+1, j-1 {
		acts[i], acts[j] = acts[j], acts[i]
	}
	return acts
}

// integerMode reports whether the packed bucket queues can carry the
// run: integral action costs and an integral heuristic.
func integerMode(t *sas.Task, h heuristic.Heuristic) bool {
	return t.IntegerCosts(1e-12) && h.Integral()
}

// floatItem orders the fallback heap lexicographically by (k1, k2).
type floatItem struct {
	k1, k2 float64
	id     int
}

type floatHeap []floatItem

func (h floatHeap) Len() int { return len(h) }

func (h floatHeap) Less(i, j int) bool {
	if h[i].k1 != h[j].k1 {
		return h[i].k1 < h[j].k1
	}
	return h[i].k2 < h[j].k2
}

func (h floatHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *floatHeap) Push(x any) { *h = append(*h, x.(floatItem)) }

func (h *floatHeap) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	*h = old[:n-1]
	return it
}
