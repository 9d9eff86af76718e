// readuntil: a streaming read-until nanopore mapper.
// Copyright (c) 2026 the readuntil authors.
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful, but
// WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the GNU
// Affero General Public License for more details.

//go:build linux

// Package clock provides the wall-clock source MapChunk's per-event
// timeout budget is measured against. On Linux it reads
// CLOCK_MONOTONIC directly via golang.org/x/sys/unix rather than a
// higher-level package, since precision and the exact clock source
// matter here.
package clock

import "golang.org/x/sys/unix"

// Now returns a monotonic timestamp in nanoseconds, suitable only for
// computing elapsed durations (not wall-clock time of day).
func Now() int64 {
	var ts unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_MONOTONIC, &ts); err != nil {
		return 0
	}
	return ts.Sec*1e9 + int64(ts.Nsec)
}
