// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package heuristic

import (
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianPlan/services/planner/sas"
)

func switchTask() *sas.Task {
	return &sas.Task{
		Vars: []sas.Variable{{Name: "switch", Domain: 2}},
		Init: sas.State{0},
		Goal: []sas.VarVal{{Var: 0, Val: 1}},
		Ops: []sas.Operator{{
			Name:     "switch_on",
			PrePosts: []sas.PrePost{{Var: 0, Pre: 0, Post: 1}},
			Cost:     1,
		}},
	}
}

// gridTask is a 3-position line with unit steps right and a costly
// direct jump from the left end to the right end.
func gridTask() *sas.Task {
	mv := func(name string, from, to int, cost float64) sas.Operator {
		return sas.Operator{
			Name:     name,
			PrePosts: []sas.PrePost{{Var: 0, Pre: from, Post: to}},
			Cost:     cost,
		}
	}
	return &sas.Task{
		Vars: []sas.Variable{{Name: "pos", Domain: 3}},
		Init: sas.State{0},
		Goal: []sas.VarVal{{Var: 0, Val: 2}},
		Ops: []sas.Operator{
			mv("right-0-1", 0, 1, 1),
			mv("right-1-2", 1, 2, 1),
			mv("jump-0-2", 0, 2, 3),
		},
	}
}

func deadTask() *sas.Task {
	return &sas.Task{
		Vars: []sas.Variable{{Name: "switch", Domain: 2}},
		Init: sas.State{0},
		Goal: []sas.VarVal{{Var: 0, Val: 1}},
	}
}

func TestBlind(t *testing.T) {
	task := gridTask()
	h := Blind{}
	assert.Equal(t, 0.0, h.Evaluate(task, task.Init))
	assert.True(t, h.Integral())
	assert.Equal(t, "blind", h.Name())
}

func TestGoalCount(t *testing.T) {
	task := &sas.Task{
		Vars: []sas.Variable{{Domain: 2}, {Domain: 2}},
		Goal: []sas.VarVal{{Var: 0, Val: 1}, {Var: 1, Val: 1}},
	}
	h := GoalCount{}
	assert.Equal(t, 2.0, h.Evaluate(task, sas.State{0, 0}))
	assert.Equal(t, 1.0, h.Evaluate(task, sas.State{1, 0}))
	assert.Equal(t, 0.0, h.Evaluate(task, sas.State{1, 1}))
	assert.True(t, h.Integral())
}

func TestWeightedGoalCount(t *testing.T) {
	task := switchTask()
	h := WeightedGoalCount{W: 2.5}
	assert.Equal(t, 2.5, h.Evaluate(task, sas.State{0}))
	assert.False(t, h.Integral())
	assert.True(t, WeightedGoalCount{W: 3}.Integral())
}

func TestFF_GridEstimates(t *testing.T) {
	task := gridTask()
	h := NewFF(task)

	// The first achiever of the goal fact is the direct jump, so the
	// extracted relaxed plan from the left end is the jump alone.
	assert.Equal(t, 3.0, h.Evaluate(task, sas.State{0}))
	assert.Equal(t, 1.0, h.Evaluate(task, sas.State{1}))
	assert.Equal(t, 0.0, h.Evaluate(task, sas.State{2}))
	assert.True(t, h.Integral())
	assert.Equal(t, "ff", h.Name())
}

func TestFF_SwitchAndDeadEnd(t *testing.T) {
	task := switchTask()
	h := NewFF(task)
	assert.Equal(t, 1.0, h.Evaluate(task, sas.State{0}))
	assert.Equal(t, 0.0, h.Evaluate(task, sas.State{1}))

	dead := deadTask()
	assert.True(t, math.IsInf(NewFF(dead).Evaluate(dead, dead.Init), 1))
}

func TestFF_ChainedPreconditions(t *testing.T) {
	// have-key then open-door: the relaxed plan needs both operators.
	task := &sas.Task{
		Vars: []sas.Variable{
			{Name: "key", Domain: 2},
			{Name: "door", Domain: 2},
		},
		Init: sas.State{0, 0},
		Goal: []sas.VarVal{{Var: 1, Val: 1}},
		Ops: []sas.Operator{
			{
				Name:     "take-key",
				PrePosts: []sas.PrePost{{Var: 0, Pre: 0, Post: 1}},
				Cost:     2,
			},
			{
				Name:     "open-door",
				Prevail:  []sas.VarVal{{Var: 0, Val: 1}},
				PrePosts: []sas.PrePost{{Var: 1, Pre: 0, Post: 1}},
				Cost:     4,
			},
		},
	}
	h := NewFF(task)
	assert.Equal(t, 6.0, h.Evaluate(task, sas.State{0, 0}))
	assert.Equal(t, 4.0, h.Evaluate(task, sas.State{1, 0}))
}

func TestFF_NonIntegralCosts(t *testing.T) {
	task := gridTask()
	task.Ops[0].Cost = 1.5
	assert.False(t, NewFF(task).Integral())
}

func TestFF_ConcurrentEvaluate(t *testing.T) {
	task := gridTask()
	h := NewFF(task)

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				assert.Equal(t, 3.0, h.Evaluate(task, sas.State{0}))
				assert.Equal(t, 1.0, h.Evaluate(task, sas.State{1}))
			}
		}()
	}
	wg.Wait()
}

func TestLandmarkCount_Grid(t *testing.T) {
	task := gridTask()
	h := NewLandmarkCount(task)

	// Landmarks of the goal fact are pos=2 itself and pos=0: every
	// relaxed plan starts at the left end. pos=1 is not a landmark
	// because the jump bypasses it.
	assert.Equal(t, 1.0, h.Evaluate(task, sas.State{0}))
	assert.Equal(t, 2.0, h.Evaluate(task, sas.State{1}),
		"path-independent count charges the spent initial landmark again")
	assert.True(t, h.Integral())
	assert.Equal(t, "landmark-count", h.Name())
}

func TestLandmarkCount_Chain(t *testing.T) {
	// A strict chain makes every intermediate fact a landmark.
	task := &sas.Task{
		Vars: []sas.Variable{{Name: "pos", Domain: 4}},
		Init: sas.State{0},
		Goal: []sas.VarVal{{Var: 0, Val: 3}},
		Ops: []sas.Operator{
			{Name: "s01", PrePosts: []sas.PrePost{{Var: 0, Pre: 0, Post: 1}}, Cost: 1},
			{Name: "s12", PrePosts: []sas.PrePost{{Var: 0, Pre: 1, Post: 2}}, Cost: 1},
			{Name: "s23", PrePosts: []sas.PrePost{{Var: 0, Pre: 2, Post: 3}}, Cost: 1},
		},
	}
	h := NewLandmarkCount(task)
	assert.Equal(t, 3.0, h.Evaluate(task, sas.State{0}))
	assert.Equal(t, 3.0, h.Evaluate(task, sas.State{1}))
}

func TestLandmarkCount_UnreachableGoal(t *testing.T) {
	dead := deadTask()
	h := NewLandmarkCount(dead)
	// Unreachable goal facts contribute no landmarks.
	assert.Equal(t, 0.0, h.Evaluate(dead, dead.Init))
}

func TestNewFactory(t *testing.T) {
	task := switchTask()

	for name, want := range map[string]string{
		"blind":               "blind",
		"goal-count":          "goal-count",
		"goalcount":           "goal-count",
		"ff":                  "ff",
		"landmark":            "landmark-count",
		"landmark-count":      "landmark-count",
		"weighted-goal-count": "weighted-goal-count(1.5)",
	} {
		h, err := New(name, 1.5, task)
		require.NoError(t, err, name)
		assert.Equal(t, want, h.Name())
	}

	_, err := New("weighted-goal-count", -1, task)
	assert.Error(t, err)
	_, err = New("nope", 0, task)
	assert.Error(t, err)
}
