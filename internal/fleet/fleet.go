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

// Package fleet fans a per-channel processing step out across many
// mapper.Mapper instances, one per sequencing channel, using
// pargo/parallel the way independent per-record work gets parallelized
// elsewhere (filters/pairhmm.go's parallel.Range over independent
// alignments, intervals.go's parallel.Do over independent halves).
// Each channel's mapper is wholly independent — no state is shared
// between instances — so this is an embarrassingly parallel Range, not
// a pipeline.
package fleet

import (
	"github.com/exascience/pargo/parallel"

	"github.com/nanopath/readuntil/mapper"
)

// Channel pairs a mapper with whatever chunk source feeds it; Fleet
// doesn't care what that source is, only that Tick can be called
// without blocking for long.
type Channel struct {
	Mapper *mapper.Mapper
	// Tick runs one round of work for this channel: pulling any pending
	// chunk, running ProcessChunk/MapChunk, and returning whether the
	// channel produced a fresh Location this round.
	Tick func(m *mapper.Mapper) (loc mapper.Location, ok bool)
}

// Fleet owns a fixed set of channels and drives one tick of all of
// them in parallel.
type Fleet struct {
	channels []Channel
}

// New wraps a slice of channels. The slice is retained, not copied;
// callers must not mutate it concurrently with TickAll.
func New(channels []Channel) *Fleet {
	return &Fleet{channels: channels}
}

// TickAll runs one Tick per channel in parallel and returns the
// Locations produced this round, in channel order, with channels that
// produced nothing left out (so the result may be shorter than the
// channel slice).
func (f *Fleet) TickAll() []mapper.Location {
	results := make([]mapper.Location, len(f.channels))
	oks := make([]bool, len(f.channels))
	parallel.Range(0, len(f.channels), 0, func(low, high int) {
		for i := low; i < high; i++ {
			ch := f.channels[i]
			loc, ok := ch.Tick(ch.Mapper)
			if ok {
				results[i] = loc
				oks[i] = true
			}
		}
	})
	out := results[:0]
	for i, ok := range oks {
		if ok {
			out = append(out, results[i])
		}
	}
	return out
}

// Len reports how many channels the fleet manages.
func (f *Fleet) Len() int { return len(f.channels) }
