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

// Package config collects the mapper's recognized configuration
// options into one immutable record, validated once at construction,
// in the style of elprep's cmd package validating flag-derived structs
// before a filter pipeline runs.
package config

import (
	"fmt"
	"time"

	"github.com/nanopath/readuntil/path"
)

// Config bundles every recognized option. It is built once (typically
// from flags or a small static table) and never mutated afterwards;
// every mapper, pool and tracker sharing a Config agrees on the same
// geometry and thresholds.
type Config struct {
	// Path geometry.
	SeedLen       int // L
	NumEventTypes int // T: 2 for {MATCH,STAY}; 3 only widens the packed history, pool never records SKIP

	// Extension & pruning.
	MaxPaths       int
	MaxConsecStay  int
	MaxStayFrac    float64
	MinSeedProb    float64
	MaxRepCopy     int64
	MinRepLen      int
	SourceProb     float64
	ProbThreshold  func(rangeLen int64) float64

	// Seed tracker confidence gates.
	MinMeanConf float64
	MinTopConf  float64
	MinAlnLen   int

	// Budgets.
	MaxEventsProc   int
	MaxChunksProc   int
	EvtBufferLen    int
	EvtTimeout      time.Duration
	MaxEventsPerChunk func(eventI int) int

	// Reference k-mer space.
	KmerFMRanges []path.Range // len K = 4^k

	// Read-length heuristic: rawLen*TranslocationBasesPerSec/SampleRateHz
	// by default, driven by configurable rates rather than a hard-coded
	// fraction.
	SampleRateHz             float64
	TranslocationBasesPerSec float64
}

// Validate checks internal consistency of a Config. It is meant to run
// once, at mapper-construction time, never on the per-event hot path;
// mirroring internal/strconv.go's policy, configuration mistakes are
// programmer errors and are reported as plain errors here (callers may
// log.Fatal them), not folded into the per-read state machine.
func (c *Config) Validate() error {
	if c.SeedLen < 2 {
		return fmt.Errorf("config: seed_len must be >= 2, got %d", c.SeedLen)
	}
	if c.NumEventTypes < 2 {
		return fmt.Errorf("config: need at least 2 event types, got %d", c.NumEventTypes)
	}
	if c.MaxPaths <= 0 {
		return fmt.Errorf("config: max_paths must be > 0, got %d", c.MaxPaths)
	}
	if c.MaxConsecStay < 0 {
		return fmt.Errorf("config: max_consec_stay must be >= 0, got %d", c.MaxConsecStay)
	}
	if c.MaxStayFrac < 0 || c.MaxStayFrac > 1 {
		return fmt.Errorf("config: max_stay_frac must be in [0,1], got %v", c.MaxStayFrac)
	}
	if c.ProbThreshold == nil {
		return fmt.Errorf("config: prob_threshold function is required")
	}
	if c.MinMeanConf < 0 {
		return fmt.Errorf("config: min_mean_conf must be >= 0, got %v", c.MinMeanConf)
	}
	if c.MinTopConf < 0 {
		return fmt.Errorf("config: min_top_conf must be >= 0, got %v", c.MinTopConf)
	}
	if c.MinAlnLen < 0 {
		return fmt.Errorf("config: min_aln_len must be >= 0, got %d", c.MinAlnLen)
	}
	if c.MaxEventsProc <= 0 {
		return fmt.Errorf("config: max_events_proc must be > 0, got %d", c.MaxEventsProc)
	}
	if c.MaxChunksProc <= 0 {
		return fmt.Errorf("config: max_chunks_proc must be > 0, got %d", c.MaxChunksProc)
	}
	if c.EvtBufferLen <= 0 {
		return fmt.Errorf("config: evt_buffer_len must be > 0, got %d", c.EvtBufferLen)
	}
	if c.EvtTimeout <= 0 {
		return fmt.Errorf("config: evt_timeout must be > 0, got %v", c.EvtTimeout)
	}
	if c.MaxEventsPerChunk == nil {
		return fmt.Errorf("config: max_events_per_chunk function is required")
	}
	if len(c.KmerFMRanges) == 0 {
		return fmt.Errorf("config: kmer_fmranges must be populated")
	}
	if c.SampleRateHz <= 0 {
		return fmt.Errorf("config: sample_rate_hz must be > 0, got %v", c.SampleRateHz)
	}
	if c.TranslocationBasesPerSec <= 0 {
		return fmt.Errorf("config: translocation_bases_per_sec must be > 0, got %v", c.TranslocationBasesPerSec)
	}
	return nil
}

// KmerCount returns K = len(KmerFMRanges), the size of the reference's
// k-mer space.
func (c *Config) KmerCount() int { return len(c.KmerFMRanges) }

// EstimateReadLen predicts a read's final base length from the number
// of raw samples collected so far, used to size per-read budgets
// before the read finishes. The ratio is derived from two configurable
// rates (translocation speed in bases/sec over the sampling rate in
// Hz) rather than a hard-coded fraction.
func (c *Config) EstimateReadLen(rawLen int) int {
	return int(float64(rawLen) * c.TranslocationBasesPerSec / c.SampleRateHz)
}

// DefaultProbThreshold returns a monotonically relaxing threshold
// function: broader FM ranges (more ambiguous matches) require a
// higher per-event probability to extend, narrower (more specific)
// ranges are allowed to relax. floor is the threshold at effectively
// unbounded range length; slope controls how quickly narrower ranges
// are permitted to relax below it.
func DefaultProbThreshold(floor, slope float64) func(int64) float64 {
	return func(rangeLen int64) float64 {
		if rangeLen <= 1 {
			return floor - slope
		}
		relax := slope / float64(rangeLen)
		return floor - relax
	}
}

// DefaultMaxEventsPerChunk returns a constant-per-call budget,
// independent of event_i, the simplest legal implementation of
// max_events_per_chunk(event_i).
func DefaultMaxEventsPerChunk(n int) func(int) int {
	return func(int) int { return n }
}
