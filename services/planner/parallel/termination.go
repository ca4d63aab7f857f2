// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package parallel

import "time"

// Termination holds the wall-clock deadline workers sample at the top
// of their loop. A zero or negative limit disables the check.
type Termination struct {
	start time.Time
	limit time.Duration
}

func NewTermination(limit time.Duration) *Termination {
	return &Termination{start: time.Now(), limit: limit}
}

func (t *Termination) TimedOut() bool {
	return t.limit > 0 && time.Since(t.start) >= t.limit
}

// Elapsed returns the wall time since the controller was created.
func (t *Termination) Elapsed() time.Duration {
	return time.Since(t.start)
}
