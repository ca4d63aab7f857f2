// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package sas models grounded multi-valued planning tasks in the SAS+
// formalism produced by the Fast Downward translator, and provides the
// primitives the search engines are built on: applicability tests,
// in-place operator application with undo, mutex filtering, the file
// reader, and plan formatting.
package sas

import (
	"errors"
	"fmt"
)

// ErrInvalidTask wraps every task-consistency failure found by
// Task.Validate so callers can classify it.
var ErrInvalidTask = errors.New("invalid task")

// State assigns one domain value to every variable, indexed by variable
// id. Regression code reuses the type with Unknown entries.
type State []int

// Unknown marks an unconstrained variable in a partial (regression)
// state.
const Unknown = -1

// VarVal is a (variable, value) literal.
type VarVal struct {
	Var int
	Val int
}

// Variable describes one multi-valued state variable.
type Variable struct {
	Name   string
	Domain int
}

// PrePost is one effect of an operator: under the conjunctive Conds the
// variable Var transitions from Pre to Post. Pre == -1 means the prior
// value is unconstrained.
type PrePost struct {
	Conds []VarVal
	Var   int
	Pre   int
	Post  int
}

// Operator is a grounded action.
type Operator struct {
	Name     string
	Prevail  []VarVal
	PrePosts []PrePost
	Cost     float64
}

// MutexGroup is a set of literals of which at most one may hold in any
// reachable state.
type MutexGroup struct {
	Lits []VarVal
}

// Task is a complete grounded planning task. It is immutable during
// search; engines share it freely across goroutines.
type Task struct {
	Version int
	Metric  int
	Vars    []Variable
	Init    State
	Goal    []VarVal
	Ops     []Operator
	Mutexes []MutexGroup
}

// IsGoal reports whether s satisfies every goal literal.
func (t *Task) IsGoal(s State) bool {
	for _, g := range t.Goal {
		if s[g.Var] != g.Val {
			return false
		}
	}
	return true
}

// Applicable reports whether op can fire in s: every prevail literal
// holds, every effect condition holds, and every constrained Pre value
// matches.
func (t *Task) Applicable(s State, op *Operator) bool {
	for _, p := range op.Prevail {
		if s[p.Var] != p.Val {
			return false
		}
	}
	for i := range op.PrePosts {
		for _, c := range op.PrePosts[i].Conds {
			if s[c.Var] != c.Val {
				return false
			}
		}
	}
	for i := range op.PrePosts {
		pp := &op.PrePosts[i]
		if pp.Pre >= 0 && s[pp.Var] != pp.Pre {
			return false
		}
	}
	return true
}

// IntegerCosts reports whether every operator cost is integral within
// eps. The integer search fast path requires it.
func (t *Task) IntegerCosts(eps float64) bool {
	for i := range t.Ops {
		c := t.Ops[i].Cost
		r := c - float64(int64(c))
		if r > eps || r < -eps {
			return false
		}
	}
	return true
}

// Validate checks the structural consistency of the task: init length,
// and every variable/value reference being inside its domain. Returns an
// error wrapping ErrInvalidTask with a precise location on the first
// violation found.
func (t *Task) Validate() error {
	nvars := len(t.Vars)
	if len(t.Init) != nvars {
		return fmt.Errorf("%w: init size %d does not match %d variables",
			ErrInvalidTask, len(t.Init), nvars)
	}

	checkVar := func(v int, where string) error {
		if v < 0 || v >= nvars {
			return fmt.Errorf("%w: variable out of range at %s: var=%d nvars=%d",
				ErrInvalidTask, where, v, nvars)
		}
		return nil
	}
	checkVal := func(v, val int, where string) error {
		if err := checkVar(v, where); err != nil {
			return err
		}
		if dom := t.Vars[v].Domain; val < 0 || val >= dom {
			return fmt.Errorf("%w: value out of domain at %s: var=%d val=%d domain=%d",
				ErrInvalidTask, where, v, val, dom)
		}
		return nil
	}

	for v, val := range t.Init {
		if err := checkVal(v, val, "init"); err != nil {
			return err
		}
	}
	for _, g := range t.Goal {
		if err := checkVal(g.Var, g.Val, "goal"); err != nil {
			return err
		}
	}
	for i := range t.Ops {
		op := &t.Ops[i]
		if op.Cost < 0 {
			return fmt.Errorf("%w: negative cost on operator %q", ErrInvalidTask, op.Name)
		}
		for _, p := range op.Prevail {
			if err := checkVal(p.Var, p.Val, "prevail of "+op.Name); err != nil {
				return err
			}
		}
		for j := range op.PrePosts {
			pp := &op.PrePosts[j]
			for _, c := range pp.Conds {
				if err := checkVal(c.Var, c.Val, "condition of "+op.Name); err != nil {
					return err
				}
			}
			if err := checkVar(pp.Var, "effect of "+op.Name); err != nil {
				return err
			}
			if pp.Pre >= 0 {
				if err := checkVal(pp.Var, pp.Pre, "pre of "+op.Name); err != nil {
					return err
				}
			}
			if err := checkVal(pp.Var, pp.Post, "post of "+op.Name); err != nil {
				return err
			}
		}
	}
	for gi, g := range t.Mutexes {
		for _, l := range g.Lits {
			if err := checkVal(l.Var, l.Val, fmt.Sprintf("mutex group %d", gi)); err != nil {
				return err
			}
		}
	}
	return nil
}
