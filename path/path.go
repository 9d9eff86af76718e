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

// Package path implements the partial-alignment path buffer described in
// the mapper's per-event extension search: a fixed-size record carrying an
// FM-index range, the k-mer at the path head, a sliding window of
// cumulative event log-probabilities, and the packed event-type history
// needed to score and prune the path.
//
// Buffers are meant to be pre-allocated once (by the pool package) and
// reused for the life of a mapper; none of the operations here allocate
// except the test/debug-only Verify.
package path

import (
	"fmt"
	"math"
	"math/bits"

	"gonum.org/v1/gonum/floats"
)

// EventType is the kind of alignment step recorded for one event.
type EventType uint8

const (
	// Match consumes one reference base.
	Match EventType = iota
	// Stay repeats the same k-mer (pore dwell).
	Stay
	// Skip advances the reference without a matching event.
	Skip
)

func (t EventType) String() string {
	switch t {
	case Match:
		return "MATCH"
	case Stay:
		return "STAY"
	case Skip:
		return "SKIP"
	default:
		return fmt.Sprintf("EventType(%d)", uint8(t))
	}
}

// Range is a closed interval [Start, End] in the reference's suffix
// array, as produced by the FM-index collaborator.
type Range struct {
	Start, End int64
}

// Valid reports whether the range still describes at least one suffix.
func (r Range) Valid() bool { return r.Start <= r.End }

// Length is the number of suffixes covered by the range.
func (r Range) Length() int64 {
	if !r.Valid() {
		return 0
	}
	return r.End - r.Start + 1
}

// Less orders ranges lexicographically by (Start, End), the ordering
// required before path deduplication.
func (r Range) Less(o Range) bool {
	if r.Start != o.Start {
		return r.Start < o.Start
	}
	return r.End < o.End
}

// Geometry fixes the path-record layout (window length, number of event
// types, and the resulting packed-bitfield width) for one mapper
// instance. It must never be a package-level global: every path handled
// by a given pool agrees on exactly one Geometry, but two mappers
// configured differently must not share state through one.
type Geometry struct {
	SeedLen  int    // L: window length in events
	NumTypes int    // T: number of distinct EventType values in use
	typeBits uint   // w = ceil(log2(T))
	typeMask uint64 // (1<<w)-1
	headShift uint  // bit offset of the most-recently-appended type
}

// NewGeometry validates and builds a Geometry. It fails if the packed
// event-type history would not fit a 64-bit word, per the assumption
// w·(L-1) <= 64 documented for the packed bitfield representation.
func NewGeometry(seedLen, numTypes int) (Geometry, error) {
	if seedLen < 2 {
		return Geometry{}, fmt.Errorf("path: seed_len must be >= 2, got %d", seedLen)
	}
	if numTypes < 2 {
		return Geometry{}, fmt.Errorf("path: need at least 2 event types, got %d", numTypes)
	}
	w := bits.Len(uint(numTypes - 1))
	if w == 0 {
		w = 1
	}
	total := uint(w) * uint(seedLen-1)
	if total > 64 {
		return Geometry{}, fmt.Errorf("path: packed event-type history needs %d bits (w=%d * (L-1)=%d), exceeds the 64-bit word assumption; reduce seed_len or num event types", total, w, seedLen-1)
	}
	return Geometry{
		SeedLen:   seedLen,
		NumTypes:  numTypes,
		typeBits:  uint(w),
		typeMask:  (uint64(1) << uint(w)) - 1,
		headShift: uint(seedLen-2) * uint(w),
	}, nil
}

// Buffer is one partial alignment candidate. Its slices are allocated
// once (see New) and never resized; make_child only ever copies
// elements into a destination buffer's own storage, so two buffers never
// alias the same backing array.
type Buffer struct {
	Length      int
	FMRange     Range
	Kmer        uint32
	ProbSums    []float64 // length L+1
	SeedProb    float64
	EventTypes  uint64
	TypeCounts  []int // length T
	ConsecStays int
	SAChecked   bool
	headType    EventType
}

// New allocates a Buffer sized for geom. The buffer starts invalidated.
func New(geom Geometry) *Buffer {
	return &Buffer{
		ProbSums:   make([]float64, geom.SeedLen+1),
		TypeCounts: make([]int, geom.NumTypes),
	}
}

// Live reports whether this buffer holds a meaningful path.
func (b *Buffer) Live() bool { return b.Length > 0 }

// Invalidate marks the buffer as not holding a live path. All consumers
// must skip invalidated entries.
func (b *Buffer) Invalidate() { b.Length = 0 }

// TypeHead returns the most recently appended event type.
func (b *Buffer) TypeHead() EventType { return b.headType }

// TypeTail returns the oldest event type still represented in the
// packed window, i.e. the one that would be evicted on the next
// saturating extension.
func (b *Buffer) TypeTail(geom Geometry) EventType {
	return EventType(b.EventTypes & geom.typeMask)
}

// MakeSource initializes b (in place, reusing its storage) as a new
// length-1 path anchored at range/kmer with per-event log-probability
// prob.
func (b *Buffer) MakeSource(geom Geometry, r Range, kmer uint32, prob float64) {
	b.Length = 1
	b.FMRange = r
	b.Kmer = kmer
	b.ProbSums[0] = 0
	b.ProbSums[1] = prob
	for i := range b.TypeCounts {
		b.TypeCounts[i] = 0
	}
	b.TypeCounts[Match] = 1
	b.ConsecStays = 0
	b.EventTypes = 0
	b.SAChecked = false
	b.SeedProb = prob
	b.headType = Match
}

// MakeChild writes into dst the result of extending parent by one event
// of the given type, landing at range/kmer with per-event
// log-probability prob. dst and parent must be distinct buffers; dst's
// own storage is reused, so no aliasing of parent's ProbSums/TypeCounts
// occurs.
func MakeChild(geom Geometry, dst, parent *Buffer, r Range, kmer uint32, prob float64, typ EventType) {
	saturating := parent.Length == geom.SeedLen
	length := parent.Length + 1
	if length > geom.SeedLen {
		length = geom.SeedLen
	}

	dst.FMRange = r
	dst.Kmer = kmer
	dst.SAChecked = parent.SAChecked

	if typ == Stay {
		dst.ConsecStays = parent.ConsecStays + 1
	} else {
		dst.ConsecStays = 0
	}

	for i := range dst.TypeCounts {
		dst.TypeCounts[i] = parent.TypeCounts[i]
	}
	dst.TypeCounts[typ]++
	if saturating {
		dst.TypeCounts[parent.TypeTail(geom)]--
	}

	if saturating {
		copy(dst.ProbSums[:geom.SeedLen], parent.ProbSums[1:geom.SeedLen+1])
		dst.ProbSums[geom.SeedLen] = dst.ProbSums[geom.SeedLen-1] + prob
	} else {
		copy(dst.ProbSums[:parent.Length+1], parent.ProbSums[:parent.Length+1])
		dst.ProbSums[parent.Length+1] = dst.ProbSums[parent.Length] + prob
	}

	dst.EventTypes = (parent.EventTypes >> geom.typeBits) | (uint64(typ) << geom.headShift)
	dst.headType = typ

	dst.Length = length
	dst.SeedProb = seedProb(dst, geom)
}

func seedProb(b *Buffer, geom Geometry) float64 {
	if b.Length == geom.SeedLen {
		return (b.ProbSums[geom.SeedLen] - b.ProbSums[0]) / float64(geom.SeedLen)
	}
	return b.ProbSums[b.Length] / float64(b.Length)
}

// SeedValidOpts bundles the thresholds is_seed_valid needs. These mirror
// the "Configuration (recognized options)" surface: min_seed_prob,
// max_stay_frac, max_rep_copy, min_rep_len, seed_len.
type SeedValidOpts struct {
	SeedLen     int
	MaxRepCopy  int64
	MinRepLen   int
	MaxStayFrac float64
	MinSeedProb float64
}

// IsSeedValid implements the seed-eligibility predicate: a path is
// eligible to emit seeds when its FM range
// is unique (or, once the path has ended, a bounded repeat of
// sufficient length), it has consumed a full window, its most recent
// step was a match (or the path has ended), it hasn't drifted into an
// excess of stays, and its mean per-event log-probability clears the
// floor.
func (b *Buffer) IsSeedValid(opts SeedValidOpts, pathEnded bool) bool {
	if !b.Live() {
		return false
	}
	rangeOK := b.FMRange.Length() == 1 ||
		(pathEnded && b.FMRange.Length() <= opts.MaxRepCopy && b.TypeCounts[Match] >= opts.MinRepLen)
	if !rangeOK {
		return false
	}
	if b.Length < opts.SeedLen {
		return false
	}
	if !pathEnded && b.TypeHead() != Match {
		return false
	}
	if !pathEnded && float64(b.TypeCounts[Stay]) > opts.MaxStayFrac*float64(opts.SeedLen) {
		return false
	}
	return b.SeedProb >= opts.MinSeedProb
}

// Verify recomputes SeedProb from ProbSums via floats.Sum and checks it
// against the incrementally maintained value, within abs tolerance.
// It exists for tests and debugging only: the hot path in MakeChild
// always uses the O(1) difference-of-prefix-sums form, never this
// O(L) recomputation.
func (b *Buffer) Verify(geom Geometry, tol float64) error {
	if !b.Live() {
		return nil
	}
	var got float64
	if b.Length == geom.SeedLen {
		window := make([]float64, geom.SeedLen)
		for i := range window {
			window[i] = b.ProbSums[i+1] - b.ProbSums[i]
		}
		got = floats.Sum(window) / float64(geom.SeedLen)
	} else {
		window := make([]float64, b.Length)
		for i := range window {
			window[i] = b.ProbSums[i+1] - b.ProbSums[i]
		}
		got = floats.Sum(window) / float64(b.Length)
	}
	if math.Abs(got-b.SeedProb) > tol {
		return fmt.Errorf("path: seed_prob drifted: incremental=%v recomputed=%v tol=%v", b.SeedProb, got, tol)
	}
	return nil
}

// Less implements the ordering used to sort a generation before
// deduplication: primarily by FM range, tie-broken by ascending
// SeedProb so that, among paths sharing a range, the best-scoring one
// sorts last.
func Less(a, b *Buffer) bool {
	if a.FMRange != b.FMRange {
		return a.FMRange.Less(b.FMRange)
	}
	return a.SeedProb < b.SeedProb
}
