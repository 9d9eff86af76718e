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

//go:build !linux

package clock

import "time"

var start = time.Now()

// Now returns a monotonic timestamp in nanoseconds, off Linux where
// CLOCK_MONOTONIC isn't reachable through x/sys/unix the same way.
func Now() int64 { return time.Since(start).Nanoseconds() }
