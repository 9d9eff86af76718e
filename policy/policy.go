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

// Package policy turns a mapper.Location into a selective-sequencing
// decision against a target-region panel: enrich (keep reads that
// land inside the panel, eject everything else) or deplete (the
// opposite). It is the one consumer of bed.Bed and the intervals
// package in this module.
package policy

import (
	"github.com/nanopath/readuntil/intervals"
	"github.com/nanopath/readuntil/mapper"
)

// Mode selects which side of the panel a read should be kept on.
type Mode int

const (
	// Enrich keeps reads that map inside the panel and ejects the rest.
	Enrich Mode = iota
	// Deplete ejects reads that map inside the panel and keeps the rest.
	Deplete
)

// Decision is what the host should do with the pore once a read's
// Location is known.
type Decision int

const (
	// Unblock ejects the read from the pore; sequencing stops early.
	Unblock Decision = iota
	// StopReceiving lets the read finish sequencing normally.
	StopReceiving
)

func (d Decision) String() string {
	if d == Unblock {
		return "unblock"
	}
	return "stop_receiving"
}

// Panel is a flattened target-region panel, ready for fast membership
// queries against a Location.
type Panel struct {
	mode   Mode
	byName map[string][]intervals.Interval
}

// NewPanel builds a Panel from a BED file's regions, flattening
// overlapping regions per contig so Decide can binary-search them via
// intervals.Overlap.
func NewPanel(mode Mode, bedFile string) (*Panel, error) {
	raw, err := intervals.FromBedFile(bedFile)
	if err != nil {
		return nil, err
	}
	byName := make(map[string][]intervals.Interval, len(raw))
	for chrom, ivs := range raw {
		intervals.SortByStart(ivs)
		byName[chrom] = intervals.Flatten(ivs)
	}
	return &Panel{mode: mode, byName: byName}, nil
}

// Decide applies the panel to loc. A read with no valid location
// cannot be assessed against the panel and is unblocked, freeing the
// pore for a read that might be.
func (p *Panel) Decide(loc mapper.Location) Decision {
	if !loc.Valid {
		return Unblock
	}
	start := int32(loc.Pos)
	end := start + int32(loc.MatchLen)
	inPanel := intervals.Overlap(p.byName[loc.Contig], start, end)
	switch p.mode {
	case Enrich:
		if inPanel {
			return StopReceiving
		}
		return Unblock
	default:
		if inPanel {
			return Unblock
		}
		return StopReceiving
	}
}
