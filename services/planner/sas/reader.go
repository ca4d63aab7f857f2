// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package sas

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// ErrParse wraps every SAS reader failure. The message carries the
// 0-based line index of the offending input.
var ErrParse = errors.New("sas parse error")

// ReadFile parses the SAS+ task at path.
func ReadFile(path string) (*Task, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: cannot open %s: %v", ErrParse, path, err)
	}
	defer f.Close()
	return Read(f)
}

// Read parses a SAS+ task from r. The format is the line-oriented layout
// emitted by the Fast Downward translator: version, metric, variables,
// optional mutex groups, initial state, goal, operators. Axiom sections
// and trailing counters are tolerated and skipped.
func Read(r io.Reader) (*Task, error) {
	p := &sasParser{}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		p.lines = append(p.lines, strings.TrimSpace(sc.Text()))
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	return p.parse()
}

type sasParser struct {
	lines []string
	i     int
}

func (p *sasParser) errf(format string, args ...any) error {
	return fmt.Errorf("%w: line %d: %s", ErrParse, p.i, fmt.Sprintf(format, args...))
}

func (p *sasParser) expect(key string) error {
	if p.i >= len(p.lines) || p.lines[p.i] != key {
		return p.errf("expected %q", key)
	}
	p.i++
	return nil
}

func (p *sasParser) nextLine(what string) (string, error) {
	if p.i >= len(p.lines) {
		return "", p.errf("unexpected EOF reading %s", what)
	}
	l := p.lines[p.i]
	p.i++
	return l, nil
}

func (p *sasParser) nextInt(what string) (int, error) {
	l, err := p.nextLine(what)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(l)
	if err != nil {
		return 0, p.errf("not an integer in %s: %q", what, l)
	}
	return n, nil
}

func (p *sasParser) nextPair(what string) (VarVal, error) {
	l, err := p.nextLine(what)
	if err != nil {
		return VarVal{}, err
	}
	fs := strings.Fields(l)
	if len(fs) != 2 {
		return VarVal{}, p.errf("bad %s row: %q", what, l)
	}
	v, err1 := strconv.Atoi(fs[0])
	val, err2 := strconv.Atoi(fs[1])
	if err1 != nil || err2 != nil {
		return VarVal{}, p.errf("bad %s row: %q", what, l)
	}
	return VarVal{Var: v, Val: val}, nil
}

func (p *sasParser) parse() (*Task, error) {
	t := &Task{}

	if err := p.expect("begin_version"); err != nil {
		return nil, err
	}
	v, err := p.nextInt("version")
	if err != nil {
		return nil, err
	}
	t.Version = v
	if err := p.expect("end_version"); err != nil {
		return nil, err
	}

	if err := p.expect("begin_metric"); err != nil {
		return nil, err
	}
	m, err := p.nextInt("metric")
	if err != nil {
		return nil, err
	}
	t.Metric = m
	if err := p.expect("end_metric"); err != nil {
		return nil, err
	}

	nvars, err := p.nextInt("variable count")
	if err != nil {
		return nil, err
	}
	t.Vars = make([]Variable, 0, nvars)
	for v := 0; v < nvars; v++ {
		if err := p.parseVariable(t); err != nil {
			return nil, err
		}
	}

	if err := p.parseMutexSection(t); err != nil {
		return nil, err
	}

	if err := p.expect("begin_state"); err != nil {
		return nil, err
	}
	t.Init = make(State, nvars)
	for v := 0; v < nvars; v++ {
		val, err := p.nextInt("initial state")
		if err != nil {
			return nil, err
		}
		t.Init[v] = val
	}
	if err := p.expect("end_state"); err != nil {
		return nil, err
	}

	if err := p.expect("begin_goal"); err != nil {
		return nil, err
	}
	g, err := p.nextInt("goal count")
	if err != nil {
		return nil, err
	}
	t.Goal = make([]VarVal, 0, g)
	for k := 0; k < g; k++ {
		pair, err := p.nextPair("goal")
		if err != nil {
			return nil, err
		}
		t.Goal = append(t.Goal, pair)
	}
	if err := p.expect("end_goal"); err != nil {
		return nil, err
	}

	// Operators, interleaved with counters, axiom blocks and blank
	// lines that the translator may emit; only operator blocks matter.
	for p.i < len(p.lines) {
		if p.lines[p.i] == "begin_operator" {
			p.i++
			if err := p.parseOperator(t); err != nil {
				return nil, err
			}
			continue
		}
		p.i++
	}
	return t, nil
}

func (p *sasParser) parseVariable(t *Task) error {
	if err := p.expect("begin_variable"); err != nil {
		return err
	}
	name, err := p.nextLine("variable name")
	if err != nil {
		return err
	}
	if _, err := p.nextInt("axiom layer"); err != nil {
		return err
	}
	dom, err := p.nextInt("domain size")
	if err != nil {
		return err
	}
	for k := 0; k < dom; k++ {
		if _, err := p.nextLine("variable atoms"); err != nil {
			return err
		}
	}
	if err := p.expect("end_variable"); err != nil {
		return err
	}
	t.Vars = append(t.Vars, Variable{Name: name, Domain: dom})
	return nil
}

func (p *sasParser) parseMutexSection(t *Task) error {
	// A mutex count line is optional; some writers emit bare groups.
	if p.i < len(p.lines) && p.lines[p.i] != "begin_state" {
		if n, err := strconv.Atoi(p.lines[p.i]); err == nil {
			p.i++
			t.Mutexes = make([]MutexGroup, 0, n)
			for k := 0; k < n; k++ {
				if err := p.parseMutexGroup(t); err != nil {
					return err
				}
			}
		}
		for p.i < len(p.lines) && p.lines[p.i] == "begin_mutex_group" {
			if err := p.parseMutexGroup(t); err != nil {
				return err
			}
		}
	}
	return nil
}

func (p *sasParser) parseMutexGroup(t *Task) error {
	if err := p.expect("begin_mutex_group"); err != nil {
		return err
	}
	k, err := p.nextInt("mutex literal count")
	if err != nil {
		return err
	}
	g := MutexGroup{Lits: make([]VarVal, 0, k)}
	for j := 0; j < k; j++ {
		pair, err := p.nextPair("mutex")
		if err != nil {
			return err
		}
		g.Lits = append(g.Lits, pair)
	}
	if err := p.expect("end_mutex_group"); err != nil {
		return err
	}
	t.Mutexes = append(t.Mutexes, g)
	return nil
}

func (p *sasParser) parseOperator(t *Task) error {
	name, err := p.nextLine("operator name")
	if err != nil {
		return err
	}
	op := Operator{Name: name}

	k, err := p.nextInt("prevail count")
	if err != nil {
		return err
	}
	op.Prevail = make([]VarVal, 0, k)
	for j := 0; j < k; j++ {
		pair, err := p.nextPair("prevail")
		if err != nil {
			return err
		}
		op.Prevail = append(op.Prevail, pair)
	}

	l, err := p.nextInt("effect count")
	if err != nil {
		return err
	}
	op.PrePosts = make([]PrePost, 0, l)
	for j := 0; j < l; j++ {
		pp, err := p.parsePrePost()
		if err != nil {
			return err
		}
		op.PrePosts = append(op.PrePosts, pp)
	}

	cost, err := p.nextInt("operator cost")
	if err != nil {
		return err
	}
	op.Cost = float64(cost)
	if t.Metric == 0 {
		// Without an action-cost metric every operator costs one.
		op.Cost = 1
	}

	if err := p.expect("end_operator"); err != nil {
		return err
	}
	t.Ops = append(t.Ops, op)
	return nil
}

func (p *sasParser) parsePrePost() (PrePost, error) {
	l, err := p.nextLine("effect")
	if err != nil {
		return PrePost{}, err
	}
	fs := strings.Fields(l)
	at := 0
	take := func() (int, bool) {
		if at >= len(fs) {
			return 0, false
		}
		n, err := strconv.Atoi(fs[at])
		if err != nil {
			return 0, false
		}
		at++
		return n, true
	}

	c, ok := take()
	if !ok {
		return PrePost{}, p.errf("bad effect row: %q", l)
	}
	pp := PrePost{Conds: make([]VarVal, 0, c)}
	for j := 0; j < c; j++ {
		cv, ok1 := take()
		cval, ok2 := take()
		if !ok1 || !ok2 {
			return PrePost{}, p.errf("bad effect condition in row: %q", l)
		}
		pp.Conds = append(pp.Conds, VarVal{Var: cv, Val: cval})
	}
	var ok1, ok2, ok3 bool
	pp.Var, ok1 = take()
	pp.Pre, ok2 = take()
	pp.Post, ok3 = take()
	if !ok1 || !ok2 || !ok3 {
		return PrePost{}, p.errf("bad effect triple in row: %q", l)
	}
	return pp, nil
}
