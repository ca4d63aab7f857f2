// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/AleutianPlan/services/planner/sas"
)

// Config holds every solve knob. Flags override environment variables,
// which override the config file, which overrides the defaults.
//
// Thread Safety: Safe to read concurrently. Not safe to modify after
// loading.
type Config struct {
	// Algorithm selects the engine.
	Algorithm string `json:"algorithm" yaml:"algorithm" validate:"oneof=astar gbfs bidirectional parallel-astar"`

	// Heuristic selects the goal-distance estimator.
	Heuristic string `json:"heuristic" yaml:"heuristic" validate:"oneof=blind goal-count weighted-goal-count ff landmark"`

	// Weight scales weighted-goal-count.
	Weight float64 `json:"weight" yaml:"weight" validate:"gte=0"`

	// CPUBudgetSec bounds process CPU time; zero disables. Tripping it
	// exits with code 101.
	CPUBudgetSec int `json:"cpu_budget_sec" yaml:"cpu_budget_sec" validate:"gte=0"`

	// MemBudgetMB bounds resident set size; zero disables. Tripping it
	// exits with code 102.
	MemBudgetMB int `json:"mem_budget_mb" yaml:"mem_budget_mb" validate:"gte=0"`

	// TimeLimitSec bounds wall time for the parallel engine; zero
	// disables.
	TimeLimitSec int `json:"time_limit_sec" yaml:"time_limit_sec" validate:"gte=0"`

	// CheckMutex is auto, on, or off.
	CheckMutex string `json:"check_mutex" yaml:"check_mutex" validate:"oneof=auto on off"`

	// ReopenClosed lets A* re-open closed states on g improvement.
	ReopenClosed bool `json:"reopen_closed" yaml:"reopen_closed"`

	// MaxExpansions caps expansions; zero means unlimited.
	MaxExpansions uint64 `json:"max_expansions" yaml:"max_expansions"`

	// StopOnFirstMeet ends the bidirectional engine at the first
	// frontier meeting.
	StopOnFirstMeet bool `json:"stop_on_first_meet" yaml:"stop_on_first_meet"`

	// Threads is the parallel-astar worker count.
	Threads uint `json:"threads" yaml:"threads" validate:"gte=1"`

	// OpenKind is multi-queue or two-level-bucket.
	OpenKind string `json:"open_kind" yaml:"open_kind" validate:"oneof=multi-queue two-level-bucket"`

	// NumQueues is the multi-queue width; zero derives from Threads.
	NumQueues uint `json:"num_queues" yaml:"num_queues"`

	// NumShards is the bucket open-list shard count; zero derives from
	// Threads.
	NumShards uint `json:"num_shards" yaml:"num_shards"`

	// KSelect is the k-choice sampling fan-out.
	KSelect uint `json:"k_select" yaml:"k_select" validate:"gte=1"`

	// PlanOut writes the plan in VAL format to this path.
	PlanOut string `json:"plan_out" yaml:"plan_out"`

	// MetricsAddr serves prometheus /metrics on this address while the
	// solve runs; empty disables.
	MetricsAddr string `json:"metrics_addr" yaml:"metrics_addr"`

	// LogLevel is debug, info, warn, or error.
	LogLevel string `json:"log_level" yaml:"log_level"`

	// LogDir enables JSON file logging when set.
	LogDir string `json:"log_dir" yaml:"log_dir"`
}

// DefaultConfig returns the solve defaults.
func DefaultConfig() Config {
	return Config{
		Algorithm:    "astar",
		Heuristic:    "goal-count",
		Weight:       1,
		CheckMutex:   "auto",
		ReopenClosed: true,
		Threads:      1,
		OpenKind:     "two-level-bucket",
		KSelect:      2,
		LogLevel:     "info",
	}
}

// LoadConfig builds the effective configuration from defaults, an
// optional config file, and PLAN_* environment variables. Validation is
// the caller's job, after flag overrides have been applied.
func LoadConfig(path string) (Config, error) {
	config := DefaultConfig()

	if path != "" {
		if err := loadConfigFile(path, &config); err != nil {
			return config, fmt.Errorf("load config file: %w", err)
		}
	}

	loadConfigFromEnv(&config)
	return config, nil
}

func loadConfigFile(path string, config *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	// Try YAML first, then JSON
	if err := yaml.Unmarshal(data, config); err != nil {
		if jsonErr := json.Unmarshal(data, config); jsonErr != nil {
			return fmt.Errorf("parse config (tried YAML and JSON): YAML error: %v, JSON error: %w", err, jsonErr)
		}
	}
	return nil
}

func loadConfigFromEnv(config *Config) {
	if v := os.Getenv("PLAN_ALGORITHM"); v != "" {
		config.Algorithm = v
	}
	if v := os.Getenv("PLAN_HEURISTIC"); v != "" {
		config.Heuristic = v
	}
	if v := os.Getenv("PLAN_WEIGHT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			config.Weight = f
		}
	}
	if v := os.Getenv("PLAN_CPU_BUDGET_SEC"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			config.CPUBudgetSec = i
		}
	}
	if v := os.Getenv("PLAN_MEM_BUDGET_MB"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			config.MemBudgetMB = i
		}
	}
	if v := os.Getenv("PLAN_TIME_LIMIT_SEC"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			config.TimeLimitSec = i
		}
	}
	if v := os.Getenv("PLAN_CHECK_MUTEX"); v != "" {
		config.CheckMutex = v
	}
	if v := os.Getenv("PLAN_REOPEN_CLOSED"); v != "" {
		config.ReopenClosed = v == "true" || v == "1"
	}
	if v := os.Getenv("PLAN_MAX_EXPANSIONS"); v != "" {
		if i, err := strconv.ParseUint(v, 10, 64); err == nil {
			config.MaxExpansions = i
		}
	}
	if v := os.Getenv("PLAN_THREADS"); v != "" {
		if i, err := strconv.ParseUint(v, 10, 32); err == nil {
			config.Threads = uint(i)
		}
	}
	if v := os.Getenv("PLAN_OPEN_KIND"); v != "" {
		config.OpenKind = v
	}
	if v := os.Getenv("PLAN_NUM_QUEUES"); v != "" {
		if i, err := strconv.ParseUint(v, 10, 32); err == nil {
			config.NumQueues = uint(i)
		}
	}
	if v := os.Getenv("PLAN_NUM_SHARDS"); v != "" {
		if i, err := strconv.ParseUint(v, 10, 32); err == nil {
			config.NumShards = uint(i)
		}
	}
	if v := os.Getenv("PLAN_K_SELECT"); v != "" {
		if i, err := strconv.ParseUint(v, 10, 32); err == nil {
			config.KSelect = uint(i)
		}
	}
	if v := os.Getenv("PLAN_METRICS_ADDR"); v != "" {
		config.MetricsAddr = v
	}
	if v := os.Getenv("PLAN_LOG_LEVEL"); v != "" {
		config.LogLevel = v
	}
	if v := os.Getenv("PLAN_LOG_DIR"); v != "" {
		config.LogDir = v
	}
}

// Validate checks the configuration, combining struct tags with the
// checks tags cannot express.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if _, err := sas.ParseMutexMode(c.CheckMutex); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Heuristic == "weighted-goal-count" && c.Weight <= 0 {
		return fmt.Errorf("invalid config: weighted-goal-count needs weight > 0, got %g", c.Weight)
	}
	return nil
}
