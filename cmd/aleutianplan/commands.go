// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianPlan/pkg/ux"
)

// --- Global Command Variables ---
var (
	configPath       string
	personalityLevel string // UX personality level (full/standard/minimal/machine)

	flagAlgorithm       string
	flagHeuristic       string
	flagWeight          float64
	flagCPUBudgetSec    int
	flagMemBudgetMB     int
	flagTimeLimitSec    int
	flagCheckMutex      string
	flagReopenClosed    bool
	flagMaxExpansions   uint64
	flagStopOnFirstMeet bool
	flagThreads         uint
	flagOpenKind        string
	flagNumQueues       uint
	flagNumShards       uint
	flagKSelect         uint
	flagPlanOut         string
	flagMetricsAddr     string
	flagLogLevel        string
	flagLogDir          string

	rootCmd = &cobra.Command{
		Use:   "aleutianplan",
		Short: "A forward heuristic state-space planner for grounded SAS+ tasks",
		Long: `AleutianPlan searches grounded SAS+ planning tasks for operator
				sequences from the initial state to a goal, with cost-optimal (A*),
				satisficing (GBFS), bidirectional, and parallel shared-open engines.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if personalityLevel != "" {
				ux.SetPersonalityLevel(ux.ParsePersonalityLevel(personalityLevel))
			} else {
				ux.InitPersonality()
			}
		},
	}

	solveCmd = &cobra.Command{
		Use:   "solve [task.sas]",
		Short: "Search a SAS+ task for a plan",
		Args:  cobra.ExactArgs(1),
		RunE:  runSolve, // Defined in solve.go
	}

	validateCmd = &cobra.Command{
		Use:   "validate [task.sas] [plan-file]",
		Short: "Check a SAS+ task file, and optionally replay a plan against it",
		Args:  cobra.RangeArgs(1, 2),
		RunE:  runValidate, // Defined in solve.go
	}
)

// applyFlagOverrides copies every flag the user set on the command line
// over the file/env configuration.
func applyFlagOverrides(cmd *cobra.Command, config *Config) {
	set := map[string]func(){
		"algo":               func() { config.Algorithm = flagAlgorithm },
		"heuristic":          func() { config.Heuristic = flagHeuristic },
		"weight":             func() { config.Weight = flagWeight },
		"cpu-budget-sec":     func() { config.CPUBudgetSec = flagCPUBudgetSec },
		"mem-budget-mb":      func() { config.MemBudgetMB = flagMemBudgetMB },
		"time-limit-sec":     func() { config.TimeLimitSec = flagTimeLimitSec },
		"check-mutex":        func() { config.CheckMutex = flagCheckMutex },
		"reopen-closed":      func() { config.ReopenClosed = flagReopenClosed },
		"max-expansions":     func() { config.MaxExpansions = flagMaxExpansions },
		"stop-on-first-meet": func() { config.StopOnFirstMeet = flagStopOnFirstMeet },
		"threads":            func() { config.Threads = flagThreads },
		"open-kind":          func() { config.OpenKind = flagOpenKind },
		"num-queues":         func() { config.NumQueues = flagNumQueues },
		"num-shards":         func() { config.NumShards = flagNumShards },
		"k-select":           func() { config.KSelect = flagKSelect },
		"plan-out":           func() { config.PlanOut = flagPlanOut },
		"metrics-addr":       func() { config.MetricsAddr = flagMetricsAddr },
		"log-level":          func() { config.LogLevel = flagLogLevel },
		"log-dir":            func() { config.LogDir = flagLogDir },
	}
	for name, apply := range set {
		if cmd.Flags().Changed(name) {
			apply()
		}
	}
}

// init runs when the Go program starts
func init() {
	rootCmd.PersistentFlags().StringVar(&personalityLevel, "personality", "",
		"Output style: full (default, rich), standard, minimal, or machine (scripting)")

	rootCmd.AddCommand(solveCmd)
	solveCmd.Flags().StringVar(&configPath, "config", "", "Path to a YAML/JSON configuration file")
	solveCmd.Flags().StringVar(&flagAlgorithm, "algo", "astar",
		"Search algorithm: astar, gbfs, bidirectional, or parallel-astar")
	solveCmd.Flags().StringVar(&flagHeuristic, "heuristic", "goal-count",
		"Heuristic: blind, goal-count, weighted-goal-count, ff, or landmark")
	solveCmd.Flags().Float64Var(&flagWeight, "weight", 1, "Weight for weighted-goal-count")
	solveCmd.Flags().IntVar(&flagCPUBudgetSec, "cpu-budget-sec", 0,
		"Process CPU time budget in seconds (0 = unlimited, exit 101 on trip)")
	solveCmd.Flags().IntVar(&flagMemBudgetMB, "mem-budget-mb", 0,
		"Resident memory budget in MB (0 = unlimited, exit 102 on trip)")
	solveCmd.Flags().IntVar(&flagTimeLimitSec, "time-limit-sec", 0,
		"Wall time limit for parallel-astar in seconds (0 = unlimited)")
	solveCmd.Flags().StringVar(&flagCheckMutex, "check-mutex", "auto",
		"Mutex filtering of successors: auto, on, or off")
	solveCmd.Flags().BoolVar(&flagReopenClosed, "reopen-closed", true,
		"Re-open closed states when a cheaper path is found")
	solveCmd.Flags().Uint64Var(&flagMaxExpansions, "max-expansions", 0,
		"Stop after this many expansions (0 = unlimited)")
	solveCmd.Flags().BoolVar(&flagStopOnFirstMeet, "stop-on-first-meet", false,
		"Bidirectional: stop at the first frontier meeting")
	solveCmd.Flags().UintVar(&flagThreads, "threads", 1, "Worker count for parallel-astar")
	solveCmd.Flags().StringVar(&flagOpenKind, "open-kind", "two-level-bucket",
		"Parallel open list: multi-queue or two-level-bucket")
	solveCmd.Flags().UintVar(&flagNumQueues, "num-queues", 0,
		"Multi-queue width (0 = derive from threads)")
	solveCmd.Flags().UintVar(&flagNumShards, "num-shards", 0,
		"Bucket open-list shard count (0 = derive from threads)")
	solveCmd.Flags().UintVar(&flagKSelect, "k-select", 2, "k-choice sampling fan-out")
	solveCmd.Flags().StringVar(&flagPlanOut, "plan-out", "", "Write the plan in VAL format to this file")
	solveCmd.Flags().StringVar(&flagMetricsAddr, "metrics-addr", "",
		"Serve prometheus /metrics on this address during the solve")
	solveCmd.Flags().StringVar(&flagLogLevel, "log-level", "info", "Log level: debug, info, warn, error")
	solveCmd.Flags().StringVar(&flagLogDir, "log-dir", "", "Also write JSON logs into this directory")

	rootCmd.AddCommand(validateCmd)
}
