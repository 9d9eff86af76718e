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

// Package pool implements the path pool and per-event extender: the
// two swap-buffers of pre-allocated path.Buffer records, and the
// extend/dedup/source-seed/prune protocol run once per incoming event.
package pool

import (
	"fmt"
	"sort"

	"github.com/nanopath/readuntil/config"
	"github.com/nanopath/readuntil/internal/kmerset"
	"github.com/nanopath/readuntil/path"
	"github.com/nanopath/readuntil/track"
)

// FMIndex is the subset of the FM-index collaborator contract the
// extender needs.
type FMIndex interface {
	Size() int64
	Neighbor(r path.Range, base int) (path.Range, bool)
	SA(i int64) int64
}

// KmerModel is the subset of the k-mer model collaborator contract the
// extender needs.
type KmerModel interface {
	KmerCount() int
	NumBases() int
	EventMatchProb(ev float64, kmer uint32) float64
	Neighbor(kmer uint32, base int) uint32
}

// Tracker is the seed-tracker contract the extender feeds and polls.
// track.Tracker satisfies it.
type Tracker interface {
	AddSeed(refEnd int64, matchLen, evtEnd int)
	GetFinal() (track.Cluster, bool)
}

// Pool owns the two path generations and drives the per-event
// extension. A Pool is built for exactly one mapper and must not be
// shared across reads running concurrently (there is only ever one
// read in flight per mapper).
type Pool struct {
	geom  path.Geometry
	cfg   *config.Config
	fmi   FMIndex
	model KmerModel
	sink  Tracker

	prev, next         []*path.Buffer
	prevSize, nextSize int
	eventI             int

	kmerProbs    []float64
	sourcesAdded *kmerset.Set
	kmerTailSeen []bool
}

// New allocates a Pool sized from cfg. All path buffers and scratch
// arrays are allocated here, once, and reused for the mapper's
// lifetime; AddEvent allocates no path buffers or scratch arrays (its
// sort.Slice call is the only allocation on that path).
func New(cfg *config.Config, fmi FMIndex, model KmerModel, sink Tracker) (*Pool, error) {
	geom, err := path.NewGeometry(cfg.SeedLen, cfg.NumEventTypes)
	if err != nil {
		return nil, err
	}
	k := model.KmerCount()
	if k != cfg.KmerCount() {
		return nil, fmt.Errorf("pool: model reports %d kmers, config has %d kmer_fmranges", k, cfg.KmerCount())
	}

	p := &Pool{
		geom:         geom,
		cfg:          cfg,
		fmi:          fmi,
		model:        model,
		sink:         sink,
		prev:         make([]*path.Buffer, cfg.MaxPaths),
		next:         make([]*path.Buffer, cfg.MaxPaths),
		kmerProbs:    make([]float64, k),
		sourcesAdded: kmerset.New(k),
		kmerTailSeen: make([]bool, k),
	}
	for i := range p.prev {
		p.prev[i] = path.New(geom)
		p.next[i] = path.New(geom)
	}
	return p, nil
}

// Reset clears the pool back to an empty generation, ready for a new
// read, without releasing any of its pre-allocated storage.
func (p *Pool) Reset() {
	for i := 0; i < p.prevSize; i++ {
		p.prev[i].Invalidate()
	}
	p.prevSize = 0
	p.nextSize = 0
	p.eventI = 0
}

// EventIndex returns the monotonic per-read event counter (event_i).
func (p *Pool) EventIndex() int { return p.eventI }

// Skip advances event_i by n and drops the current live generation,
// the recovery step taken after a normalizer-overflow event skip: the
// paths extended so far were built against events that are no longer
// contiguous with what comes next, so they're discarded rather than
// extended across the gap.
func (p *Pool) Skip(n int) {
	for i := 0; i < p.prevSize; i++ {
		p.prev[i].Invalidate()
	}
	p.prevSize = 0
	p.eventI += n
}

func (p *Pool) kmerFMRange(k uint32) path.Range { return p.cfg.KmerFMRanges[k] }

func (p *Pool) insertSource(r path.Range, k uint32) bool {
	if p.nextSize >= p.cfg.MaxPaths || !r.Valid() {
		return false
	}
	p.next[p.nextSize].MakeSource(p.geom, r, k, p.kmerProbs[k])
	p.nextSize++
	return true
}

func (p *Pool) emitSeeds(b *path.Buffer, pathEnded bool) {
	opts := path.SeedValidOpts{
		SeedLen:     p.cfg.SeedLen,
		MaxRepCopy:  p.cfg.MaxRepCopy,
		MinRepLen:   p.cfg.MinRepLen,
		MaxStayFrac: p.cfg.MaxStayFrac,
		MinSeedProb: p.cfg.MinSeedProb,
	}
	if !b.IsSeedValid(opts, pathEnded) {
		return
	}
	b.SAChecked = true
	evtEnd := p.eventI
	if pathEnded {
		evtEnd--
	}
	size := p.fmi.Size()
	for s := b.FMRange.Start; s <= b.FMRange.End; s++ {
		refEnd := size - p.fmi.SA(s) + 1
		p.sink.AddSeed(refEnd, b.TypeCounts[path.Match], evtEnd)
	}
}

// AddEvent runs the full per-event extension protocol: precompute
// emission probabilities, extend every live parent with
// stay/match children, sort and dedup the new generation, seed it with
// fresh source paths, emit seeds from survivors, promote the
// generation, and report whether the tracker now holds a final
// alignment.
func (p *Pool) AddEvent(ev float64) (track.Cluster, bool) {
	K := p.model.KmerCount()
	for k := 0; k < K; k++ {
		p.kmerProbs[k] = p.model.EventMatchProb(ev, uint32(k))
	}

	p.nextSize = 0
	p.sourcesAdded.ClearAll()
	for k := range p.kmerTailSeen {
		p.kmerTailSeen[k] = false
	}

	maxPaths := p.cfg.MaxPaths
	numBases := p.model.NumBases()

	for i := 0; i < p.prevSize; i++ {
		parent := p.prev[i]
		if !parent.Live() {
			continue
		}
		if p.nextSize >= maxPaths {
			break
		}

		thresh := p.cfg.ProbThreshold(parent.FMRange.Length())
		childFound := false

		if parent.ConsecStays < p.cfg.MaxConsecStay && p.kmerProbs[parent.Kmer] >= thresh {
			dst := p.next[p.nextSize]
			path.MakeChild(p.geom, dst, parent, parent.FMRange, parent.Kmer, p.kmerProbs[parent.Kmer], path.Stay)
			p.nextSize++
			childFound = true
		}

		for b := 0; b < numBases && p.nextSize < maxPaths; b++ {
			nextKmer := p.model.Neighbor(parent.Kmer, b)
			if p.kmerProbs[nextKmer] < thresh {
				continue
			}
			nextRange, ok := p.fmi.Neighbor(parent.FMRange, b)
			if !ok || !nextRange.Valid() {
				continue
			}
			dst := p.next[p.nextSize]
			path.MakeChild(p.geom, dst, parent, nextRange, nextKmer, p.kmerProbs[nextKmer], path.Match)
			p.nextSize++
			childFound = true
		}

		if !childFound && !parent.SAChecked {
			p.emitSeeds(parent, true)
		}
	}

	extended := p.next[:p.nextSize]
	sort.Slice(extended, func(i, j int) bool { return path.Less(extended[i], extended[j]) })
	for i := 1; i < len(extended); i++ {
		if extended[i-1].Live() && extended[i].Live() && extended[i-1].FMRange == extended[i].FMRange {
			extended[i-1].Invalidate()
		}
	}

	extendedCount := p.nextSize
	for i := 0; i < extendedCount && p.nextSize < maxPaths; i++ {
		e := p.next[i]
		k := e.Kmer
		full := p.kmerFMRange(k)
		if !full.Valid() {
			continue
		}

		if !p.kmerTailSeen[k] {
			if p.kmerProbs[k] >= p.cfg.SourceProb {
				p.sourcesAdded.Set(int(k))
				p.insertSource(path.Range{Start: full.Start, End: e.FMRange.Start - 1}, k)
			}
		}

		tailStart := e.FMRange.End + 1
		tailEnd := full.End
		if i+1 < extendedCount && p.next[i+1].Kmer == k {
			tailEnd = p.next[i+1].FMRange.Start - 1
		}
		if tailStart <= tailEnd && p.kmerProbs[k] >= p.cfg.SourceProb && p.nextSize < maxPaths {
			p.insertSource(path.Range{Start: tailStart, End: tailEnd}, k)
		}
		p.kmerTailSeen[k] = true
	}

	for i := 0; i < extendedCount; i++ {
		e := p.next[i]
		if e.Live() {
			p.emitSeeds(e, false)
		}
	}

	for k := 0; k < K; k++ {
		if !p.sourcesAdded.Has(k) && p.kmerProbs[k] >= p.cfg.SourceProb && p.nextSize < maxPaths {
			full := p.kmerFMRange(uint32(k))
			if full.Valid() {
				p.insertSource(full, uint32(k))
			}
		}
		p.sourcesAdded.Clear(k)
	}

	p.prev, p.next = p.next, p.prev
	p.prevSize = p.nextSize
	p.eventI++

	return p.sink.GetFinal()
}
