// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package parallel

import (
	"context"
	"fmt"
	"testing"
	"time"

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

func chainTask(n int) *sas.Task {
	t := &sas.Task{
		Vars: []sas.Variable{{Name: "pos", Domain: n}},
		Init: sas.State{0},
		Goal: []sas.VarVal{{Var: 0, Val: n - 1}},
	}
	for i := 0; i < n-1; i++ {
		t.Ops = append(t.Ops, sas.Operator{
			Name:     fmt.Sprintf("step-%d", i),
			PrePosts: []sas.PrePost{{Var: 0, Pre: i, Post: i + 1}},
			Cost:     1,
		})
	}
	return t
}

func TestAstar_SingleWorkerOptimal(t *testing.T) {
	task := gridTask()
	for _, kind := range []OpenKind{OpenMultiQueue, OpenTwoLevelBucket} {
		t.Run(fmt.Sprintf("kind-%d", kind), func(t *testing.T) {
			p := DefaultParams()
			p.OpenKind = kind

			r, err := Astar(context.Background(), task, heuristic.Blind{}, p)
			require.NoError(t, err)
			require.True(t, r.Solved)
			assert.Equal(t, []int{0, 1}, r.Plan)
			assert.Equal(t, 2.0, r.PlanCost)
			assert.NoError(t, sas.ValidatePlan(task, r.Plan))
			assert.NotZero(t, r.Stats.Expanded)
			assert.NotZero(t, r.Stats.Reopened, "cheaper route into the goal state reopens it")
		})
	}
}

func TestAstar_MultiWorker(t *testing.T) {
	// With several workers the first posted goal may come from the
	// expensive jump, so only validity is asserted.
	task := gridTask()
	for _, kind := range []OpenKind{OpenMultiQueue, OpenTwoLevelBucket} {
		t.Run(fmt.Sprintf("kind-%d", kind), func(t *testing.T) {
			p := DefaultParams()
			p.OpenKind = kind
			p.NumWorkers = 4

			r, err := Astar(context.Background(), task, heuristic.GoalCount{}, p)
			require.NoError(t, err)
			require.True(t, r.Solved)
			assert.NoError(t, sas.ValidatePlan(task, r.Plan))
		})
	}
}

func TestAstar_MultiWorkerChain(t *testing.T) {
	task := chainTask(50)
	p := DefaultParams()
	p.NumWorkers = 4

	r, err := Astar(context.Background(), task, heuristic.Blind{}, p)
	require.NoError(t, err)
	require.True(t, r.Solved)
	assert.NoError(t, sas.ValidatePlan(task, r.Plan))
	assert.Equal(t, 49.0, r.PlanCost, "a chain has exactly one plan")
}

func TestAstar_InitIsGoal(t *testing.T) {
	task := gridTask()
	task.Goal = []sas.VarVal{{Var: 0, Val: 0}}

	r, err := Astar(context.Background(), task, heuristic.Blind{}, DefaultParams())
	require.NoError(t, err)
	assert.True(t, r.Solved)
	assert.Empty(t, r.Plan)
	assert.Equal(t, 0.0, r.PlanCost)
}

func TestAstar_Unsolvable(t *testing.T) {
	task := &sas.Task{
		Vars: []sas.Variable{{Name: "switch", Domain: 2}},
		Init: sas.State{0},
		Goal: []sas.VarVal{{Var: 0, Val: 1}},
	}
	p := DefaultParams()
	p.NumWorkers = 2

	r, err := Astar(context.Background(), task, heuristic.Blind{}, p)
	require.NoError(t, err)
	assert.False(t, r.Solved)
}

func TestAstar_NonIntegralRejected(t *testing.T) {
	task := gridTask()
	task.Ops[0].Cost = 1.5

	_, err := Astar(context.Background(), task, heuristic.Blind{}, DefaultParams())
	assert.ErrorIs(t, err, ErrNonIntegral)
}

func TestAstar_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Astar(ctx, chainTask(100), heuristic.Blind{}, DefaultParams())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAstar_TimeLimit(t *testing.T) {
	p := DefaultParams()
	p.TimeLimit = time.Nanosecond

	r, err := Astar(context.Background(), chainTask(1000), heuristic.Blind{}, p)
	require.NoError(t, err)
	assert.False(t, r.Solved)
}

func TestAstar_StatsReduced(t *testing.T) {
	task := chainTask(20)
	p := DefaultParams()
	p.NumWorkers = 2

	r, err := Astar(context.Background(), task, heuristic.GoalCount{}, p)
	require.NoError(t, err)
	require.True(t, r.Solved)
	assert.NotZero(t, r.Stats.Generated)
	assert.NotZero(t, r.Stats.Pushes)
	assert.NotZero(t, r.Stats.Pops)
	assert.GreaterOrEqual(t, r.Stats.Evaluated, r.Stats.Generated)
}
