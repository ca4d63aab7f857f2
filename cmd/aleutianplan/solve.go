// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/sys/unix"
	"golang.org/x/time/rate"

	"github.com/AleutianAI/AleutianPlan/pkg/logging"
	"github.com/AleutianAI/AleutianPlan/pkg/ux"
	"github.com/AleutianAI/AleutianPlan/services/planner/bisearch"
	"github.com/AleutianAI/AleutianPlan/services/planner/heuristic"
	"github.com/AleutianAI/AleutianPlan/services/planner/parallel"
	"github.com/AleutianAI/AleutianPlan/services/planner/sas"
	"github.com/AleutianAI/AleutianPlan/services/planner/search"
	"github.com/AleutianAI/AleutianPlan/services/planner/telemetry"
)

// Exit codes follow the planner-competition conventions.
const (
	exitSolved     = 0
	exitNoPlan     = 1
	exitIncomplete = 3
	exitFatal      = 9
	exitParse      = 10
	exitCPUBudget  = 101
	exitMemBudget  = 102
)

// exitError carries a process exit code out of a cobra RunE function.
// A nil wrapped error means the run already reported its outcome.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit code %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

var errMemBudget = errors.New("resident memory budget exceeded")

// outcome is the algorithm-independent reduction of an engine result.
type outcome struct {
	solved   bool
	plan     []int
	planCost float64

	expanded   uint64
	generated  uint64
	evaluated  uint64
	duplicates uint64
	hEvalTime  time.Duration
	openPeak   uint64
}

func runSolve(cmd *cobra.Command, args []string) error {
	config, err := LoadConfig(configPath)
	if err != nil {
		return &exitError{exitFatal, err}
	}
	applyFlagOverrides(cmd, &config)
	if err := config.Validate(); err != nil {
		return &exitError{exitFatal, err}
	}

	logger := logging.New(logging.Config{
		Level:   logging.ParseLevel(config.LogLevel),
		LogDir:  config.LogDir,
		Service: "aleutianplan",
	})
	defer logger.Close()

	runID := uuid.NewString()
	log := logger.Slog().With("run_id", runID)

	task, err := sas.ReadFile(args[0])
	if err != nil {
		return &exitError{exitParse, err}
	}
	if err := task.Validate(); err != nil {
		return &exitError{exitParse, err}
	}
	log.Info("task loaded", "file", args[0],
		"vars", len(task.Vars), "operators", len(task.Ops), "mutex_groups", len(task.Mutexes))

	h, err := heuristic.New(config.Heuristic, config.Weight, task)
	if err != nil {
		return &exitError{exitFatal, err}
	}

	if config.MetricsAddr != "" {
		srv := telemetry.Serve(config.MetricsAddr)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	if config.MemBudgetMB > 0 {
		go watchMemory(ctx, cancel, config.MemBudgetMB)
	}
	go reportProgress(ctx, log)

	start := time.Now()
	out, err := dispatch(ctx, task, h, config, log)
	elapsed := time.Since(start)

	obs := telemetry.Observation{
		Algo:       config.Algorithm,
		Outcome:    telemetry.OutcomeExhausted,
		Duration:   elapsed,
		Expanded:   out.expanded,
		Generated:  out.generated,
		Evaluated:  out.evaluated,
		Duplicates: out.duplicates,
		HEvalTime:  out.hEvalTime,
		OpenPeak:   out.openPeak,
		PlanCost:   out.planCost,
	}
	recorder := telemetry.Recorder(telemetry.NopRecorder{})
	if config.MetricsAddr != "" {
		recorder = telemetry.PromRecorder{}
	}

	if err != nil {
		code := exitFatal
		switch {
		case errors.Is(context.Cause(ctx), errMemBudget):
			code, obs.Outcome = exitMemBudget, telemetry.OutcomeBudget
			err = errMemBudget
		case errors.Is(err, search.ErrCPUBudget):
			code, obs.Outcome = exitCPUBudget, telemetry.OutcomeBudget
		case errors.Is(err, context.Canceled):
			code, obs.Outcome = exitIncomplete, telemetry.OutcomeError
			err = fmt.Errorf("search interrupted: %w", err)
		default:
			obs.Outcome = telemetry.OutcomeError
		}
		recorder.Record(obs)
		log.Error("solve failed", "error", err, "elapsed", elapsed)
		return &exitError{code, err}
	}

	summary := ux.SolveSummary{
		Algo:      config.Algorithm,
		Heuristic: h.Name(),
		Solved:    out.solved,
		PlanCost:  out.planCost,
		PlanLen:   len(out.plan),
		Expanded:  out.expanded,
		Generated: out.generated,
		Evaluated: out.evaluated,
		Duration:  elapsed,
	}

	if !out.solved {
		recorder.Record(obs)
		ux.PrintSolveSummary(summary)
		if config.MaxExpansions > 0 && out.expanded > config.MaxExpansions {
			log.Warn("expansion cap reached before a plan was found",
				"cap", config.MaxExpansions)
			return &exitError{code: exitIncomplete}
		}
		log.Info("search space exhausted, task has no plan")
		return &exitError{code: exitNoPlan}
	}

	if err := sas.ValidatePlan(task, out.plan); err != nil {
		return &exitError{exitFatal, fmt.Errorf("engine produced an invalid plan: %w", err)}
	}

	obs.Outcome = telemetry.OutcomeSolved
	recorder.Record(obs)
	log.Info("plan found", "cost", out.planCost, "length", len(out.plan), "elapsed", elapsed)

	if config.PlanOut != "" {
		if werr := os.WriteFile(config.PlanOut, []byte(sas.PlanToVal(task, out.plan)), 0o644); werr != nil {
			return &exitError{exitFatal, fmt.Errorf("write plan file: %w", werr)}
		}
		log.Info("plan written", "path", config.PlanOut)
	}

	printPlan(task, out.plan)
	ux.PrintSolveSummary(summary)
	return nil
}

func dispatch(ctx context.Context, t *sas.Task, h heuristic.Heuristic, config Config, log *slog.Logger) (outcome, error) {
	mutex, _ := sas.ParseMutexMode(config.CheckMutex)

	params := search.DefaultParams()
	params.ReopenClosed = config.ReopenClosed
	params.Mutex = mutex
	params.CPULimit = time.Duration(config.CPUBudgetSec) * time.Second
	params.Logger = log
	if config.MaxExpansions > 0 {
		params.MaxExpansions = config.MaxExpansions
	}

	switch config.Algorithm {
	case "astar":
		r, err := search.Astar(ctx, t, h, params)
		return fromSequential(r), err

	case "gbfs":
		r, err := search.Gbfs(ctx, t, h, params)
		return fromSequential(r), err

	case "bidirectional":
		bp := bisearch.Params{Params: params, StopOnFirstMeet: config.StopOnFirstMeet}
		r, err := bisearch.BidirAstar(ctx, t, h, bp)
		if r == nil {
			return outcome{}, err
		}
		return fromSequential(&r.Result), err

	case "parallel-astar":
		pp := parallel.DefaultParams()
		pp.NumWorkers = uint32(config.Threads)
		pp.NumQueues = uint32(config.NumQueues)
		pp.NumShards = uint32(config.NumShards)
		pp.KChoice = uint32(config.KSelect)
		pp.TimeLimit = time.Duration(config.TimeLimitSec) * time.Second
		pp.Mutex = mutex
		pp.Logger = log
		if config.OpenKind == "multi-queue" {
			pp.OpenKind = parallel.OpenMultiQueue
		} else {
			pp.OpenKind = parallel.OpenTwoLevelBucket
		}
		r, err := parallel.Astar(ctx, t, h, pp)
		if r == nil {
			return outcome{}, err
		}
		return outcome{
			solved:     r.Solved,
			plan:       r.Plan,
			planCost:   r.PlanCost,
			expanded:   r.Stats.Expanded,
			generated:  r.Stats.Generated,
			evaluated:  r.Stats.Evaluated,
			duplicates: r.Stats.Duplicates,
			hEvalTime:  r.Stats.HEvalTime,
			openPeak:   r.Stats.MaxOpenSeen,
		}, err
	}
	return outcome{}, fmt.Errorf("unknown algorithm %q", config.Algorithm)
}

func fromSequential(r *search.Result) outcome {
	if r == nil {
		return outcome{}
	}
	return outcome{
		solved:     r.Solved,
		plan:       r.Plan,
		planCost:   r.PlanCost,
		expanded:   r.Stats.Expanded,
		generated:  r.Stats.Generated,
		evaluated:  r.Stats.Evaluated,
		duplicates: r.Stats.Duplicates,
	}
}

// printPlan writes the plan to stdout: VAL format at machine level so
// pipelines can consume it, a numbered listing otherwise.
func printPlan(t *sas.Task, plan []int) {
	if ux.GetPersonality().Level == ux.PersonalityMachine {
		fmt.Print(sas.PlanToVal(t, plan))
		return
	}
	ux.Title("Plan")
	for _, line := range strings.Split(sas.PlanToString(t, plan), "\n") {
		if line != "" {
			ux.Info(line)
		}
	}
}

// reportProgress emits a throttled liveness line while the engine runs.
func reportProgress(ctx context.Context, log *slog.Logger) {
	lim := rate.NewLimiter(rate.Every(5*time.Second), 1)
	start := time.Now()
	for {
		if err := lim.Wait(ctx); err != nil {
			return
		}
		log.Debug("solve in progress", "elapsed", time.Since(start).Round(time.Second))
	}
}

// watchMemory cancels the search when the process resident set passes
// the budget. Maxrss is reported in KiB on Linux.
func watchMemory(ctx context.Context, cancel context.CancelCauseFunc, budgetMB int) {
	t := time.NewTicker(250 * time.Millisecond)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			var ru unix.Rusage
			if err := unix.Getrusage(unix.RUSAGE_SELF, &ru); err != nil {
				continue
			}
			if ru.Maxrss > int64(budgetMB)*1024 {
				cancel(errMemBudget)
				return
			}
		}
	}
}

func runValidate(cmd *cobra.Command, args []string) error {
	task, err := sas.ReadFile(args[0])
	if err != nil {
		return &exitError{exitParse, err}
	}
	if err := task.Validate(); err != nil {
		return &exitError{exitParse, err}
	}
	ux.Success(fmt.Sprintf("task OK: %d variables, %d operators, %d mutex groups",
		len(task.Vars), len(task.Ops), len(task.Mutexes)))

	if len(args) < 2 {
		return nil
	}

	plan, err := readPlanFile(task, args[1])
	if err != nil {
		return &exitError{exitParse, err}
	}
	if err := sas.ValidatePlan(task, plan); err != nil {
		ux.Error(err.Error())
		return &exitError{code: exitIncomplete, err: err}
	}
	ux.Success(fmt.Sprintf("plan OK: cost %g, %d steps", sas.EvalPlanCost(task, plan), len(plan)))
	return nil
}

// readPlanFile parses a VAL-format plan: one "(operator name)" line per
// step, ';' lines are comments.
func readPlanFile(t *sas.Task, path string) ([]int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	byName := make(map[string]int, len(t.Ops))
	for i := range t.Ops {
		byName[t.Ops[i].Name] = i
	}

	var plan []int
	for ln, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, ";") {
			continue
		}
		name := strings.TrimSuffix(strings.TrimPrefix(line, "("), ")")
		op, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("plan line %d: unknown operator %q", ln+1, name)
		}
		plan = append(plan, op)
	}
	return plan, nil
}
