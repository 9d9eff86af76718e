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

package bed

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/nanopath/readuntil/internal"
	"github.com/nanopath/readuntil/utils"
)

// ParseBed parses a BED file naming the panel regions a read-until
// host cares about.
func ParseBed(filename string) (*Bed, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	bed := NewBed()
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "#") || strings.HasPrefix(line, "track") || strings.HasPrefix(line, "browser") {
			continue
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		data := strings.Split(line, "\t")
		if len(data) < 3 {
			return nil, fmt.Errorf("bed: %v: malformed line %q, need at least chrom/start/end", filename, line)
		}
		chrom := utils.Intern(data[0])
		start := internal.ParseInt(data[1], 10, 32)
		end := internal.ParseInt(data[2], 10, 32)
		region, err := NewRegion(chrom, int32(start), int32(end), data[3:])
		if err != nil {
			return nil, fmt.Errorf("bed: %v: %w", filename, err)
		}
		AddRegion(bed, region)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	sortRegions(bed)
	return bed, nil
}
