// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package sas

import (
	"fmt"
	"strconv"
	"strings"
)

// EvalPlanCost sums the costs of the plan's operators.
func EvalPlanCost(t *Task, plan []int) float64 {
	c := 0.0
	for _, a := range plan {
		c += t.Ops[a].Cost
	}
	return c
}

// PlanToString renders a numbered human-readable listing of the plan.
func PlanToString(t *Task, plan []int) string {
	var b strings.Builder
	for i, a := range plan {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%d: %s [cost=%g]", i, t.Ops[a].Name, t.Ops[a].Cost)
	}
	return b.String()
}

// PlanToVal renders the plan in the format the VAL plan validator
// consumes: one parenthesized operator name per line, then cost and
// length trailers.
func PlanToVal(t *Task, plan []int) string {
	var b strings.Builder
	for i, a := range plan {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteByte('(')
		b.WriteString(t.Ops[a].Name)
		b.WriteByte(')')
	}
	b.WriteString("\n; cost = ")
	b.WriteString(strconv.FormatFloat(EvalPlanCost(t, plan), 'g', 17, 64))
	b.WriteString("\n; length = ")
	b.WriteString(strconv.Itoa(len(plan)))
	b.WriteByte('\n')
	return b.String()
}

// ValidatePlan replays the plan from the initial state, checking that
// every step is applicable and the final state satisfies the goal.
func ValidatePlan(t *Task, plan []int) error {
	s := t.Init.Clone()
	for step, a := range plan {
		if a < 0 || a >= len(t.Ops) {
			return fmt.Errorf("plan step %d: operator id %d out of range", step, a)
		}
		op := &t.Ops[a]
		if !t.Applicable(s, op) {
			return fmt.Errorf("plan step %d: operator %q not applicable", step, op.Name)
		}
		for i := range op.PrePosts {
			s[op.PrePosts[i].Var] = op.PrePosts[i].Post
		}
	}
	if !t.IsGoal(s) {
		return fmt.Errorf("plan reaches a non-goal state")
	}
	return nil
}
