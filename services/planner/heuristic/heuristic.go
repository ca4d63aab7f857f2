// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package heuristic provides the goal-distance estimators consumed by
// the search engines.
//
// A heuristic maps (task, state) to a non-negative estimate or +Inf for
// states from which it considers the goal unreachable. Engines that pack
// priorities into 16-bit fields saturate Inf to the representable edge.
package heuristic

import (
	"fmt"
	"math"

	"github.com/AleutianAI/AleutianPlan/services/planner/sas"
)

// Inf is the estimate for states the heuristic proves dead.
var Inf = math.Inf(1)

// Heuristic estimates the remaining cost to a goal state.
//
// Evaluate must be safe for concurrent use: the parallel engine calls it
// from many workers at once.
type Heuristic interface {
	// Evaluate returns the estimate for s, >= 0 or Inf.
	Evaluate(t *sas.Task, s sas.State) float64

	// Integral reports whether every estimate is an integer. The
	// integer search fast path requires it.
	Integral() bool

	// Name identifies the heuristic in logs and metrics.
	Name() string
}

// Blind estimates zero everywhere, degrading A* to uniform-cost search.
type Blind struct{}

func (Blind) Evaluate(*sas.Task, sas.State) float64 { return 0 }
func (Blind) Integral() bool                        { return true }
func (Blind) Name() string                          { return "blind" }

// GoalCount counts unmet goal literals.
type GoalCount struct{}

func (GoalCount) Evaluate(t *sas.Task, s sas.State) float64 {
	miss := 0
	for _, g := range t.Goal {
		if s[g.Var] != g.Val {
			miss++
		}
	}
	return float64(miss)
}

func (GoalCount) Integral() bool { return true }
func (GoalCount) Name() string   { return "goal-count" }

// WeightedGoalCount scales GoalCount by a constant factor.
type WeightedGoalCount struct {
	W float64
}

func (h WeightedGoalCount) Evaluate(t *sas.Task, s sas.State) float64 {
	return h.W * GoalCount{}.Evaluate(t, s)
}

func (h WeightedGoalCount) Integral() bool {
	return h.W == math.Trunc(h.W)
}

func (h WeightedGoalCount) Name() string {
	return fmt.Sprintf("weighted-goal-count(%g)", h.W)
}

// New constructs a heuristic by its configuration name. FF and landmark
// precompute task-level structures, so the task is required up front.
func New(name string, weight float64, t *sas.Task) (Heuristic, error) {
	switch name {
	case "blind":
		return Blind{}, nil
	case "goal-count", "goalcount":
		return GoalCount{}, nil
	case "weighted-goal-count":
		if weight < 0 {
			return nil, fmt.Errorf("weighted-goal-count: negative weight %g", weight)
		}
		return WeightedGoalCount{W: weight}, nil
	case "ff":
		return NewFF(t), nil
	case "landmark", "landmark-count":
		return NewLandmarkCount(t), nil
	}
	return nil, fmt.Errorf("unknown heuristic %q", name)
}
