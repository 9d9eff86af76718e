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

// Package bed parses a BED file describing a target-region panel: the
// set of reference coordinates a read-until host wants to enrich for
// (keep reads that map inside) or deplete (eject reads that map
// inside), consumed by the policy package once the mapper has
// produced a mapper.Location. See
// https://genome.ucsc.edu/FAQ/FAQformat.html#format1
package bed

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/nanopath/readuntil/utils"
)

// Bed is the parsed contents of a BED file.
type Bed struct {
	// Maps contig name onto bed regions, sorted by Start.
	RegionMap map[utils.Symbol][]*Region
}

// A Region is one target-panel interval, as defined in a BED file.
type Region struct {
	Chrom          utils.Symbol
	Start          int32
	End            int32
	OptionalFields []interface{}
}

// Symbols for the optional strand field of a Region.
var (
	// SF is strand forward.
	SF = utils.Intern("+")
	// SR is strand reverse.
	SR = utils.Intern("-")
)

// Valid BED region optional fields, in column order. See spec.
const (
	brName = iota
	brScore
	brStrand
	brThickStart
	brThickEnd
	brItemRgb
	brBlockCount
	brBlockSizes
	brBlockStarts
)

func initializeRegionFields(fields []string) ([]interface{}, error) {
	brFields := make([]interface{}, len(fields))
	for i, val := range fields {
		switch i {
		case brName:
			brFields[brName] = val
		case brScore:
			score, err := strconv.Atoi(val)
			if err != nil || score < 0 || score > 1000 {
				return nil, fmt.Errorf("invalid Score field: %v", val)
			}
			brFields[brScore] = score
		case brStrand:
			if val != "+" && val != "-" {
				return nil, fmt.Errorf("invalid Strand field: %v", val)
			}
			brFields[brStrand] = utils.Intern(val)
		case brThickStart:
			start, err := strconv.Atoi(val)
			if err != nil {
				return nil, fmt.Errorf("invalid ThickStart field: %v", val)
			}
			brFields[brThickStart] = start
		case brThickEnd:
			end, err := strconv.Atoi(val)
			if err != nil {
				return nil, fmt.Errorf("invalid ThickEnd field: %v", val)
			}
			brFields[brThickEnd] = end
		case brItemRgb:
			brFields[brItemRgb] = val == "on"
		case brBlockCount:
			count, err := strconv.Atoi(val)
			if err != nil {
				return nil, fmt.Errorf("invalid BlockCount field: %v", val)
			}
			brFields[brBlockCount] = count
		case brBlockSizes:
			brFields[brBlockSizes] = val
		case brBlockStarts:
			brFields[brBlockStarts] = val
		default:
			return nil, fmt.Errorf("too many optional fields (%d), BED allows at most 12 columns", len(fields))
		}
	}
	return brFields, nil
}

// NewRegion allocates and initializes a new Region. Optional fields
// are given in column order; if a "later" field is present, every
// "earlier" one must be too, per the BED spec.
func NewRegion(chrom utils.Symbol, start, end int32, fields []string) (*Region, error) {
	regionFields, err := initializeRegionFields(fields)
	if err != nil {
		return nil, err
	}
	return &Region{Chrom: chrom, Start: start, End: end, OptionalFields: regionFields}, nil
}

// NewBed allocates an empty Bed.
func NewBed() *Bed {
	return &Bed{RegionMap: make(map[utils.Symbol][]*Region)}
}

// AddRegion adds a region to the bed region map.
func AddRegion(bed *Bed, region *Region) {
	bed.RegionMap[region.Chrom] = append(bed.RegionMap[region.Chrom], region)
}

func sortRegions(bed *Bed) {
	for _, regions := range bed.RegionMap {
		sort.SliceStable(regions, func(i, j int) bool {
			return regions[i].Start < regions[j].Start
		})
	}
}
