// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package search

import (
	"context"
	"time"

	"golang.org/x/sys/unix"
)

// budgetCheckMask rate-limits the getrusage syscall and the context
// poll to one in 64 pops.
const budgetCheckMask = 63

// CPUBudget tracks process CPU time (user + system) against a limit.
// A zero limit disables the check. Shared by all engines.
type CPUBudget struct {
	limit time.Duration
	start time.Duration
	ticks uint64
}

func NewCPUBudget(limit time.Duration) *CPUBudget {
	b := &CPUBudget{limit: limit}
	if limit > 0 {
		b.start = cpuNow()
	}
	return b
}

// cpuNow samples the process CPU clock. A failing getrusage call
// reads as zero, which disables rather than trips the budget.
func cpuNow() time.Duration {
	var ru unix.Rusage
	if err := unix.Getrusage(unix.RUSAGE_SELF, &ru); err != nil {
		return 0
	}
	return time.Duration(ru.Utime.Nano() + ru.Stime.Nano())
}

// Check polls cancellation and the CPU clock. Call once per pop; the
// syscall runs only every budgetCheckMask+1 calls.
func (b *CPUBudget) Check(ctx context.Context) error {
	b.ticks++
	if b.ticks&budgetCheckMask != 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if b.limit > 0 && cpuNow()-b.start > b.limit {
		return ErrCPUBudget
	}
	return nil
}
