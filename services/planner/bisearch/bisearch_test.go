// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package bisearch

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianPlan/services/planner/heuristic"
	"github.com/AleutianAI/AleutianPlan/services/planner/sas"
)

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

func TestGoalRegState(t *testing.T) {
	task := &sas.Task{
		Vars: []sas.Variable{{Domain: 2}, {Domain: 3}, {Domain: 2}},
		Goal: []sas.VarVal{{Var: 1, Val: 2}},
	}
	g := goalRegState(task)
	assert.Equal(t, regState{sas.Unknown, 2, sas.Unknown}, g)
}

func TestRegStateSatisfies(t *testing.T) {
	reg := regState{sas.Unknown, 1}
	assert.True(t, reg.satisfies(sas.State{0, 1}))
	assert.True(t, reg.satisfies(sas.State{1, 1}))
	assert.False(t, reg.satisfies(sas.State{0, 0}))
}

func TestRegStateKey(t *testing.T) {
	a := regState{sas.Unknown, 0}
	b := regState{0, sas.Unknown}
	assert.NotEqual(t, a.key(), b.key(), "unknown must differ from value 0")
	assert.Equal(t, a.key(), a.clone().key())
}

func TestRegress(t *testing.T) {
	task := gridTask()
	prev := make(regState, 1)

	t.Run("relevant effect", func(t *testing.T) {
		ok := regress(task, &task.Ops[1], regState{2}, prev)
		require.True(t, ok)
		assert.Equal(t, regState{1}, prev)
	})

	t.Run("contradicting effect", func(t *testing.T) {
		// right-0-1 produces pos=1, the pinned value is 2.
		assert.False(t, regress(task, &task.Ops[0], regState{2}, prev))
	})

	t.Run("irrelevant operator", func(t *testing.T) {
		assert.False(t, regress(task, &task.Ops[1], regState{sas.Unknown}, prev))
	})
}

func TestRegress_PrevailAndConds(t *testing.T) {
	task := &sas.Task{
		Vars: []sas.Variable{{Domain: 2}, {Domain: 2}, {Domain: 2}},
	}
	op := &sas.Operator{
		Name:    "guarded",
		Prevail: []sas.VarVal{{Var: 1, Val: 1}},
		PrePosts: []sas.PrePost{{
			Conds: []sas.VarVal{{Var: 2, Val: 0}},
			Var:   0, Pre: 0, Post: 1,
		}},
	}
	prev := make(regState, 3)

	ok := regress(task, op, regState{1, sas.Unknown, sas.Unknown}, prev)
	require.True(t, ok)
	assert.Equal(t, regState{0, 1, 0}, prev, "pre, prevail and condition all pinned")

	// Prevail pinned to a conflicting value on the after side.
	assert.False(t, regress(task, op, regState{1, 0, sas.Unknown}, prev))

	// Condition variable pinned to a conflicting value.
	assert.False(t, regress(task, op, regState{1, sas.Unknown, 1}, prev))
}

func TestBidirAstar_Grid(t *testing.T) {
	task := gridTask()
	r, err := BidirAstar(context.Background(), task, heuristic.Blind{}, DefaultParams())
	require.NoError(t, err)
	require.True(t, r.Solved)
	assert.NoError(t, sas.ValidatePlan(task, r.Plan))
	assert.Equal(t, 2.0, r.PlanCost)
}

func TestBidirAstar_StopOnFirstMeet(t *testing.T) {
	task := gridTask()
	p := DefaultParams()
	p.StopOnFirstMeet = true

	r, err := BidirAstar(context.Background(), task, heuristic.Blind{}, p)
	require.NoError(t, err)
	require.True(t, r.Solved)
	assert.NoError(t, sas.ValidatePlan(task, r.Plan))
}

func TestBidirAstar_InitSatisfiesGoal(t *testing.T) {
	task := gridTask()
	task.Goal = []sas.VarVal{{Var: 0, Val: 0}}

	r, err := BidirAstar(context.Background(), task, heuristic.Blind{}, DefaultParams())
	require.NoError(t, err)
	assert.True(t, r.Solved)
	assert.True(t, r.Meet)
	assert.Empty(t, r.Plan)
}

func TestBidirAstar_Unsolvable(t *testing.T) {
	task := &sas.Task{
		Vars: []sas.Variable{{Name: "switch", Domain: 2}},
		Init: sas.State{0},
		Goal: []sas.VarVal{{Var: 0, Val: 1}},
	}
	r, err := BidirAstar(context.Background(), task, heuristic.Blind{}, DefaultParams())
	require.NoError(t, err)
	assert.False(t, r.Solved)
}

func TestBidirAstar_NonIntegralRejected(t *testing.T) {
	task := gridTask()
	task.Ops[0].Cost = 1.5

	_, err := BidirAstar(context.Background(), task, heuristic.Blind{}, DefaultParams())
	assert.ErrorIs(t, err, ErrNonIntegral)
}

func TestBidirAstar_TwoVarChain(t *testing.T) {
	// take-key then open-door; the goal pins only the door, so the
	// regression side must pin the key via the prevail condition.
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
				Cost:     1,
			},
			{
				Name:     "open-door",
				Prevail:  []sas.VarVal{{Var: 0, Val: 1}},
				PrePosts: []sas.PrePost{{Var: 1, Pre: 0, Post: 1}},
				Cost:     1,
			},
		},
	}
	r, err := BidirAstar(context.Background(), task, heuristic.GoalCount{}, DefaultParams())
	require.NoError(t, err)
	require.True(t, r.Solved)
	assert.Equal(t, []int{0, 1}, r.Plan)
	assert.Equal(t, 2.0, r.PlanCost)
}
