// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package bisearch

import (
	"encoding/binary"

	"github.com/AleutianAI/AleutianPlan/services/planner/sas"
)

// regState is a partial state: one value per variable, sas.Unknown
// for variables the backward search has not constrained yet.
type regState []int

// goalRegState is the root of the regression search: the goal literals
// pinned, everything else unknown.
func goalRegState(t *sas.Task) regState {
	g := make(regState, len(t.Vars))
	for v := range g {
		g[v] = sas.Unknown
	}
	for _, gl := range t.Goal {
		g[gl.Var] = gl.Val
	}
	return g
}

// satisfies reports whether the concrete state s meets every pinned
// value of reg.
func (reg regState) satisfies(s sas.State) bool {
	for v, val := range reg {
		if val >= 0 && s[v] != val {
			return false
		}
	}
	return true
}

// key serializes the partial state for map lookup. The +1 shift keeps
// unknown distinct from value 0.
func (reg regState) key() string {
	b := make([]byte, 4*len(reg))
	for i, v := range reg {
		binary.LittleEndian.PutUint32(b[4*i:], uint32(v+1))
	}
	return string(b)
}

func (reg regState) clone() regState {
	c := make(regState, len(reg))
	copy(c, reg)
	return c
}

// regress computes the weakest partial state from which applying op
// yields a state satisfying reg. prev must have the same length as
// reg; on success it holds the regressed state.
//
// op must be relevant: at least one pinned value of reg is produced
// by an effect, and no effect contradicts a pinned value. Prevail and
// effect conditions hold unchanged on both sides of the transition,
// so a pinned conflicting value on either side rejects the operator.
func regress(t *sas.Task, op *sas.Operator, reg, prev regState) bool {
	copy(prev, reg)

	relevant := false
	for i := range op.PrePosts {
		pp := &op.PrePosts[i]
		if gv := reg[pp.Var]; gv >= 0 {
			if gv != pp.Post {
				return false
			}
			relevant = true
		}
	}
	if !relevant {
		return false
	}

	for _, p := range op.Prevail {
		if reg[p.Var] >= 0 && reg[p.Var] != p.Val {
			return false
		}
		if prev[p.Var] >= 0 && prev[p.Var] != p.Val {
			return false
		}
		prev[p.Var] = p.Val
	}

	for i := range op.PrePosts {
		for _, c := range op.PrePosts[i].Conds {
			if reg[c.Var] >= 0 && reg[c.Var] != c.Val {
				return false
			}
			if prev[c.Var] >= 0 && prev[c.Var] != c.Val {
				return false
			}
			prev[c.Var] = c.Val
		}
	}

	// Constrained pre values replace the effect's post on the before
	// side. A pinned before value may only disagree when it was the
	// regressed effect value itself.
	for i := range op.PrePosts {
		pp := &op.PrePosts[i]
		if pp.Pre < 0 {
			continue
		}
		if before := prev[pp.Var]; before >= 0 && before != pp.Pre {
			if !(reg[pp.Var] >= 0 && before == reg[pp.Var]) {
				return false
			}
		}
		prev[pp.Var] = pp.Pre
	}

	for v := range prev {
		if prev[v] >= t.Vars[v].Domain {
			return false
		}
	}
	return true
}
