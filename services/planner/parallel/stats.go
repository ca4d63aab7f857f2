// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package parallel

import "time"

// WorkerStats is one worker's counter block. Each worker writes only
// its own block during the search; the blocks are padded to a cache
// line so neighbours never share one. Summation happens after all
// workers have joined.
type WorkerStats struct {
	Expanded   uint64
	Generated  uint64
	Evaluated  uint64
	Reopened   uint64
	Duplicates uint64

	Pushes      uint64
	Pops        uint64
	Steals      uint64
	EmptyProbes uint64

	HEvalTime   time.Duration
	MaxOpenSeen uint64

	_ [40]byte
}

// Add folds o into s, taking the max of the open-size watermark.
func (s *WorkerStats) Add(o *WorkerStats) {
	s.Expanded += o.Expanded
	s.Generated += o.Generated
	s.Evaluated += o.Evaluated
	s.Reopened += o.Reopened
	s.Duplicates += o.Duplicates
	s.Pushes += o.Pushes
	s.Pops += o.Pops
	s.Steals += o.Steals
	s.EmptyProbes += o.EmptyProbes
	s.HEvalTime += o.HEvalTime
	if o.MaxOpenSeen > s.MaxOpenSeen {
		s.MaxOpenSeen = o.MaxOpenSeen
	}
}

// GlobalStats holds one block per worker.
type GlobalStats struct {
	PerWorker []WorkerStats
}

func NewGlobalStats(workers uint32) *GlobalStats {
	return &GlobalStats{PerWorker: make([]WorkerStats, workers)}
}

// Sum reduces the per-worker blocks. Call only after the workers have
// stopped.
func (g *GlobalStats) Sum() WorkerStats {
	var s WorkerStats
	for i := range g.PerWorker {
		s.Add(&g.PerWorker[i])
	}
	return s
}
