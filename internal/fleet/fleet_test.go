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

package fleet

import (
	"testing"

	"github.com/nanopath/readuntil/mapper"
)

func TestTickAllCollectsOnlyProducedLocations(t *testing.T) {
	channels := []Channel{
		{
			Mapper: &mapper.Mapper{},
			Tick: func(m *mapper.Mapper) (mapper.Location, bool) {
				return mapper.Location{Contig: "chr1", Pos: 10, Valid: true}, true
			},
		},
		{
			Mapper: &mapper.Mapper{},
			Tick: func(m *mapper.Mapper) (mapper.Location, bool) {
				return mapper.Location{}, false
			},
		},
		{
			Mapper: &mapper.Mapper{},
			Tick: func(m *mapper.Mapper) (mapper.Location, bool) {
				return mapper.Location{Contig: "chr2", Pos: 20, Valid: true}, true
			},
		},
	}
	f := New(channels)
	if got := f.Len(); got != 3 {
		t.Fatalf("Len() = %d, want 3", got)
	}
	locs := f.TickAll()
	if len(locs) != 2 {
		t.Fatalf("TickAll() returned %d locations, want 2", len(locs))
	}
	seen := map[string]bool{}
	for _, l := range locs {
		seen[l.Contig] = true
	}
	if !seen["chr1"] || !seen["chr2"] {
		t.Errorf("TickAll() = %+v, want locations from chr1 and chr2", locs)
	}
}

func TestTickAllEmptyFleet(t *testing.T) {
	f := New(nil)
	if got := f.Len(); got != 0 {
		t.Errorf("Len() of empty fleet = %d, want 0", got)
	}
	if locs := f.TickAll(); len(locs) != 0 {
		t.Errorf("TickAll() of empty fleet = %v, want empty", locs)
	}
}

func TestTickAllNoChannelProduces(t *testing.T) {
	channels := []Channel{
		{Mapper: &mapper.Mapper{}, Tick: func(m *mapper.Mapper) (mapper.Location, bool) { return mapper.Location{}, false }},
		{Mapper: &mapper.Mapper{}, Tick: func(m *mapper.Mapper) (mapper.Location, bool) { return mapper.Location{}, false }},
	}
	f := New(channels)
	if locs := f.TickAll(); len(locs) != 0 {
		t.Errorf("TickAll() = %v, want empty when no channel produces", locs)
	}
}
