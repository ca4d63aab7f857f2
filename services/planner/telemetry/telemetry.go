// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package telemetry exposes the planner's Prometheus metrics.
//
// The engines themselves stay metrics-free; the CLI records one
// Observation per solve run after the engine returns. An optional
// HTTP listener serves the standard /metrics endpoint.
package telemetry

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	solveRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "aleutianplan",
		Name:      "solve_runs_total",
		Help:      "Solve attempts by algorithm and outcome.",
	}, []string{"algo", "outcome"})

	expansions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "aleutianplan",
		Name:      "expansions_total",
		Help:      "States expanded.",
	}, []string{"algo"})

	generations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "aleutianplan",
		Name:      "generations_total",
		Help:      "Successor states generated.",
	}, []string{"algo"})

	evaluations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "aleutianplan",
		Name:      "heuristic_evaluations_total",
		Help:      "Heuristic evaluations.",
	}, []string{"algo"})

	duplicates = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "aleutianplan",
		Name:      "duplicates_total",
		Help:      "Generated states pruned as duplicates.",
	}, []string{"algo"})

	solveSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "aleutianplan",
		Name:      "solve_duration_seconds",
		Help:      "Wall time of one solve run.",
		Buckets:   prometheus.ExponentialBuckets(0.001, 4, 12),
	}, []string{"algo"})

	hEvalSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "aleutianplan",
		Name:      "heuristic_seconds_total",
		Help:      "Cumulative heuristic evaluation time per run.",
		Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 12),
	}, []string{"algo"})

	planCost = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "aleutianplan",
		Name:      "last_plan_cost",
		Help:      "Cost of the most recent plan.",
	}, []string{"algo"})

	openPeak = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "aleutianplan",
		Name:      "open_list_peak",
		Help:      "Largest open-list size observed in the most recent run.",
	}, []string{"algo"})
)

// Outcome labels for solve_runs_total.
const (
	OutcomeSolved    = "solved"
	OutcomeExhausted = "exhausted"
	OutcomeBudget    = "budget"
	OutcomeError     = "error"
)

// Observation is one finished solve run, reduced from engine stats.
type Observation struct {
	Algo     string
	Outcome  string
	Duration time.Duration

	Expanded   uint64
	Generated  uint64
	Evaluated  uint64
	Duplicates uint64

	HEvalTime time.Duration
	OpenPeak  uint64

	PlanCost float64
}

// Recorder is the narrow surface the CLI records through.
type Recorder interface {
	Record(o Observation)
}

// PromRecorder writes observations into the package metrics.
type PromRecorder struct{}

func (PromRecorder) Record(o Observation) {
	solveRuns.WithLabelValues(o.Algo, o.Outcome).Inc()
	expansions.WithLabelValues(o.Algo).Add(float64(o.Expanded))
	generations.WithLabelValues(o.Algo).Add(float64(o.Generated))
	evaluations.WithLabelValues(o.Algo).Add(float64(o.Evaluated))
	duplicates.WithLabelValues(o.Algo).Add(float64(o.Duplicates))
	solveSeconds.WithLabelValues(o.Algo).Observe(o.Duration.Seconds())
	hEvalSeconds.WithLabelValues(o.Algo).Observe(o.HEvalTime.Seconds())
	openPeak.WithLabelValues(o.Algo).Set(float64(o.OpenPeak))
	if o.Outcome == OutcomeSolved {
		planCost.WithLabelValues(o.Algo).Set(o.PlanCost)
	}
}

// NopRecorder discards observations.
type NopRecorder struct{}

func (NopRecorder) Record(Observation) {}

// Server wraps the optional /metrics HTTP listener.
type Server struct {
	srv *http.Server
}

// Serve starts the metrics listener on addr in the background. The
// returned Server must be shut down by the caller.
func Serve(addr string) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	s := &Server{srv: &http.Server{Addr: addr, Handler: mux}}
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Warn("metrics listener stopped", "addr", addr, "error", err)
		}
	}()
	return s
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
