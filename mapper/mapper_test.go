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

package mapper

import (
	"testing"
	"time"

	"github.com/nanopath/readuntil/config"
	"github.com/nanopath/readuntil/eventdetector"
	"github.com/nanopath/readuntil/fmindex"
	"github.com/nanopath/readuntil/kmermodel"
	"github.com/nanopath/readuntil/normalizer"
	"github.com/nanopath/readuntil/pool"
	"github.com/nanopath/readuntil/track"
)

var baseCode = map[byte]int{'A': 0, 'C': 1, 'G': 2, 'T': 3}

func encode(s string) []byte {
	out := make([]byte, len(s))
	for i := 0; i < len(s); i++ {
		out[i] = byte(baseCode[s[i]])
	}
	return out
}

// aMatchLevel is the normalized current level that scores a perfect
// match against kmer index 0 ("A") under kmermodel.Uniform(1, 10, 1):
// mean[0] = spread*(0/K - 0.5) = -5.
const aMatchLevel = -5.0

type harnessOpts struct {
	ref           string
	minAlnLen     int
	maxEventsProc int
	minSamples    int
	maxSamples    int
	devThreshold  float64
	evtBufferLen  int
}

func newTestMapper(t *testing.T, o harnessOpts) *Mapper {
	t.Helper()
	ix, err := fmindex.Build(encode(o.ref), []fmindex.Contig{{Name: "chr1", Start: 0, End: int64(len(o.ref) - 1)}}, 4)
	if err != nil {
		t.Fatalf("fmindex.Build failed: %v", err)
	}
	model, err := kmermodel.Uniform(1, 10, 1)
	if err != nil {
		t.Fatalf("kmermodel.Uniform failed: %v", err)
	}
	ranges, err := ix.BuildKmerRanges(1)
	if err != nil {
		t.Fatalf("BuildKmerRanges failed: %v", err)
	}
	evtBufferLen := o.evtBufferLen
	if evtBufferLen == 0 {
		evtBufferLen = 4096
	}
	cfg := &config.Config{
		SeedLen:                  2,
		NumEventTypes:            2,
		MaxPaths:                 32,
		MaxConsecStay:            10,
		MaxStayFrac:              1.0,
		MinSeedProb:              -1e9,
		MaxRepCopy:               1000,
		MinRepLen:                1,
		SourceProb:               -1e9,
		ProbThreshold:            config.DefaultProbThreshold(-1e9, 0),
		MinMeanConf:              0,
		MinTopConf:               0,
		MinAlnLen:                o.minAlnLen,
		MaxEventsProc:            o.maxEventsProc,
		MaxChunksProc:            500,
		EvtBufferLen:             evtBufferLen,
		EvtTimeout:               time.Second,
		MaxEventsPerChunk:        config.DefaultMaxEventsPerChunk(1000),
		KmerFMRanges:             ranges,
		SampleRateHz:             4000,
		TranslocationBasesPerSec: 450,
	}
	trkCfg := track.Config{
		MaxClusters:     4,
		ExpectedAdvance: 1.0,
		ToleranceLow:    0.5,
		ToleranceHigh:   1.5,
		MinMeanConf:     cfg.MinMeanConf,
		MinTopConf:      cfg.MinTopConf,
		MinAlnLen:       o.minAlnLen,
	}
	trk, err := track.New(trkCfg)
	if err != nil {
		t.Fatalf("track.New failed: %v", err)
	}
	p, err := pool.New(cfg, ix, model, trk)
	if err != nil {
		t.Fatalf("pool.New failed: %v", err)
	}
	det := eventdetector.New(o.minSamples, o.maxSamples, o.devThreshold)
	norm, err := normalizer.New(cfg.EvtBufferLen)
	if err != nil {
		t.Fatalf("normalizer.New failed: %v", err)
	}
	return New(cfg, p, trk, det, norm, ix)
}

func TestNewReadTransitionsToMapping(t *testing.T) {
	m := newTestMapper(t, harnessOpts{ref: "AAA", minAlnLen: 0, maxEventsProc: 1000, minSamples: 1, maxSamples: 1, devThreshold: 1e9})
	chunk := Chunk{Samples: []float64{aMatchLevel, aMatchLevel}, Last: false}
	m.NewRead(chunk, 1)
	if got := m.GetState(); got != StateMapping {
		t.Errorf("GetState() = %v, want MAPPING", got)
	}
	read := m.GetRead()
	if read.Number != 1 || read.RawLen != 2 || read.NumChunks != 1 {
		t.Errorf("GetRead() = %+v, want Number=1 RawLen=2 NumChunks=1", read)
	}
}

func TestProcessChunkProducesOneEventPerSample(t *testing.T) {
	m := newTestMapper(t, harnessOpts{ref: "AAA", minAlnLen: 0, maxEventsProc: 1000, minSamples: 1, maxSamples: 1, devThreshold: 1e9})
	m.NewRead(Chunk{Samples: []float64{aMatchLevel, aMatchLevel, aMatchLevel}, Last: true}, 1)
	n := m.ProcessChunk()
	if n != 3 {
		t.Errorf("ProcessChunk() = %d, want 3 (MinSamples=MaxSamples=1 closes one event per sample)", n)
	}
}

func TestProcessChunkOverflowRecoveryKeepsThisCallsEventsDropsStaleBacklog(t *testing.T) {
	// EvtBufferLen=3: the first chunk fills the normalizer to capacity
	// and is never drained by MapChunk, leaving 3 stale events as
	// backlog. The second chunk's own first event overflows the
	// buffer; SkipUnread must be called with this call's own running
	// count (0 so far), evicting only the stale backlog and keeping
	// every event this call has itself produced.
	m := newTestMapper(t, harnessOpts{ref: "AAA", minAlnLen: 0, maxEventsProc: 1000, minSamples: 1, maxSamples: 1, devThreshold: 1e9, evtBufferLen: 3})
	m.NewRead(Chunk{Samples: []float64{aMatchLevel, aMatchLevel, aMatchLevel}, Last: false}, 1)
	if n := m.ProcessChunk(); n != 3 {
		t.Fatalf("first ProcessChunk() = %d, want 3", n)
	}
	if !m.norm.Full() {
		t.Fatal("normalizer should be full of undrained backlog after the first chunk")
	}

	if !m.SwapChunk(Chunk{Samples: []float64{aMatchLevel, aMatchLevel}, Last: true}) {
		t.Fatal("SwapChunk should accept the second chunk")
	}
	eventIBefore := m.pool.EventIndex()
	n := m.ProcessChunk()
	if n != 2 {
		t.Fatalf("second ProcessChunk() = %d, want 2 (both of this call's own events survive the overflow recovery)", n)
	}
	if m.droppedEvents != 3 {
		t.Errorf("droppedEvents = %d, want 3 (the first chunk's stale backlog, not this call's own events)", m.droppedEvents)
	}
	if got, want := m.pool.EventIndex(), eventIBefore+3; got != want {
		t.Errorf("pool.EventIndex() = %d, want %d (event_i advanced by the skipped backlog)", got, want)
	}
}

func TestMapChunkReachesSuccessOnMatchingRead(t *testing.T) {
	m := newTestMapper(t, harnessOpts{ref: "AAA", minAlnLen: 0, maxEventsProc: 1000, minSamples: 1, maxSamples: 1, devThreshold: 1e9})
	samples := make([]float64, 6)
	for i := range samples {
		samples[i] = aMatchLevel
	}
	m.NewRead(Chunk{Samples: samples, Last: true}, 1)
	m.ProcessChunk()

	done := m.MapChunk()
	if !done {
		t.Fatal("MapChunk should have finished (SUCCESS or FAILURE) within the budget")
	}
	if got := m.GetState(); got != StateSuccess {
		t.Fatalf("GetState() = %v, want SUCCESS", got)
	}

	loc, ok := m.PopLoc()
	if !ok {
		t.Fatal("PopLoc should report ok=true after SUCCESS")
	}
	if !loc.Valid || loc.Contig != "chr1" {
		t.Errorf("PopLoc() = %+v, want Valid=true Contig=chr1", loc)
	}
	if loc.Strand != Forward {
		t.Errorf("Strand = %v, want Forward (single-contig index, no reverse complement doubling)", loc.Strand)
	}
	if got := m.GetState(); got != StateInactive {
		t.Errorf("GetState() after PopLoc = %v, want INACTIVE", got)
	}
	if got := m.GetStats().Mapped; got != 1 {
		t.Errorf("Stats.Mapped = %d, want 1", got)
	}
}

func TestMapChunkFailsOnEmptyExhaustedRead(t *testing.T) {
	m := newTestMapper(t, harnessOpts{ref: "AAA", minAlnLen: 0, maxEventsProc: 1000, minSamples: 1, maxSamples: 1, devThreshold: 1e9})
	m.NewRead(Chunk{Samples: nil, Last: true}, 1)
	m.ProcessChunk()

	done := m.MapChunk()
	if !done {
		t.Fatal("MapChunk on an exhausted empty read should finish immediately")
	}
	if got := m.GetState(); got != StateFailure {
		t.Errorf("GetState() = %v, want FAILURE", got)
	}
	if _, ok := m.PopLoc(); ok {
		t.Error("PopLoc after FAILURE should report ok=false")
	}
	if got := m.GetStats().Failed; got != 1 {
		t.Errorf("Stats.Failed = %d, want 1", got)
	}
}

func TestMapChunkBudgetExhaustionForcesFailure(t *testing.T) {
	// MinAlnLen effectively unreachable, so GetFinal never succeeds and
	// the mapper must eventually fail once MaxEventsProc is hit.
	m := newTestMapper(t, harnessOpts{ref: "AAA", minAlnLen: 1 << 30, maxEventsProc: 3, minSamples: 1, maxSamples: 1, devThreshold: 1e9})
	samples := make([]float64, 10)
	for i := range samples {
		samples[i] = aMatchLevel
	}
	m.NewRead(Chunk{Samples: samples, Last: true}, 1)
	m.ProcessChunk()

	done := m.MapChunk()
	if !done {
		t.Fatal("MapChunk should finish once MaxEventsProc is exceeded")
	}
	if got := m.GetState(); got != StateFailure {
		t.Errorf("GetState() = %v, want FAILURE", got)
	}
}

func TestSwapChunkForcesFailureAtMaxChunksProc(t *testing.T) {
	m := newTestMapper(t, harnessOpts{ref: "AAA", minAlnLen: 0, maxEventsProc: 1000, minSamples: 1, maxSamples: 1, devThreshold: 1e9})
	m.cfg.MaxChunksProc = 1
	m.NewRead(Chunk{Samples: []float64{aMatchLevel}, Last: false}, 1)
	// chunkDone is still false (ProcessChunk hasn't run) and NumChunks
	// already equals MaxChunksProc, so the swap must force FAILURE.
	accepted := m.SwapChunk(Chunk{Samples: []float64{aMatchLevel}, Last: true})
	if !accepted {
		t.Fatal("SwapChunk should accept the chunk (to drain it) even when forcing FAILURE")
	}
	if got := m.GetState(); got != StateFailure {
		t.Errorf("GetState() = %v, want FAILURE", got)
	}
}

func TestSwapChunkRejectsWhilePreviousChunkPending(t *testing.T) {
	m := newTestMapper(t, harnessOpts{ref: "AAA", minAlnLen: 0, maxEventsProc: 1000, minSamples: 1, maxSamples: 1, devThreshold: 1e9})
	m.NewRead(Chunk{Samples: []float64{aMatchLevel}, Last: false}, 1)
	if m.SwapChunk(Chunk{Samples: []float64{aMatchLevel}, Last: false}) {
		t.Error("SwapChunk should reject a new chunk before ProcessChunk drains the pending one")
	}
	m.ProcessChunk()
	if !m.SwapChunk(Chunk{Samples: []float64{aMatchLevel}, Last: true}) {
		t.Error("SwapChunk should accept once the previous chunk is drained")
	}
}

func TestEndReadMarksResetAndMapChunkFails(t *testing.T) {
	m := newTestMapper(t, harnessOpts{ref: "AAA", minAlnLen: 0, maxEventsProc: 1000, minSamples: 1, maxSamples: 1, devThreshold: 1e9})
	m.NewRead(Chunk{Samples: []float64{aMatchLevel}, Last: true}, 7)
	if !m.EndRead(7) {
		t.Fatal("EndRead for the currently-mapping read number should report true")
	}
	if !m.IsResetting() {
		t.Error("IsResetting() should be true after EndRead")
	}
	done := m.MapChunk()
	if !done {
		t.Fatal("MapChunk should observe the pending reset and finish")
	}
	if got := m.GetState(); got != StateFailure {
		t.Errorf("GetState() = %v, want FAILURE", got)
	}
	if m.IsResetting() {
		t.Error("IsResetting() should be cleared once observed")
	}
}

func TestEndReadWrongNumberIsNoop(t *testing.T) {
	m := newTestMapper(t, harnessOpts{ref: "AAA", minAlnLen: 0, maxEventsProc: 1000, minSamples: 1, maxSamples: 1, devThreshold: 1e9})
	m.NewRead(Chunk{Samples: []float64{aMatchLevel}, Last: true}, 1)
	if m.EndRead(99) {
		t.Error("EndRead for a read number that isn't currently mapping should report false")
	}
	if m.IsResetting() {
		t.Error("a mismatched EndRead should not set a pending reset")
	}
}

func TestNewReadAbandonsPreviousReadStillMapping(t *testing.T) {
	m := newTestMapper(t, harnessOpts{ref: "AAA", minAlnLen: 0, maxEventsProc: 1000, minSamples: 1, maxSamples: 1, devThreshold: 1e9})
	m.NewRead(Chunk{Samples: []float64{aMatchLevel}, Last: false}, 1)
	m.NewRead(Chunk{Samples: []float64{aMatchLevel, aMatchLevel}, Last: false}, 2)
	read := m.GetRead()
	if read.Number != 2 || read.RawLen != 2 {
		t.Errorf("GetRead() = %+v, want the new read (Number=2, RawLen=2)", read)
	}
	if got := m.GetState(); got != StateMapping {
		t.Errorf("GetState() = %v, want MAPPING", got)
	}
}

func TestRequestResetAndEndReset(t *testing.T) {
	m := newTestMapper(t, harnessOpts{ref: "AAA", minAlnLen: 0, maxEventsProc: 1000, minSamples: 1, maxSamples: 1, devThreshold: 1e9})
	m.NewRead(Chunk{Samples: []float64{aMatchLevel}, Last: true}, 1)
	m.RequestReset()
	if !m.IsResetting() {
		t.Error("RequestReset should set the pending-reset flag")
	}
	m.EndReset()
	if m.IsResetting() {
		t.Error("EndReset should clear the pending-reset flag")
	}
}

func TestStateStringer(t *testing.T) {
	cases := map[State]string{StateInactive: "INACTIVE", StateMapping: "MAPPING", StateSuccess: "SUCCESS", StateFailure: "FAILURE"}
	for s, want := range cases {
		if got := s.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", s, got, want)
		}
	}
}

func TestStrandStringer(t *testing.T) {
	if got := Forward.String(); got != "+" {
		t.Errorf("Forward.String() = %q, want +", got)
	}
	if got := Reverse.String(); got != "-" {
		t.Errorf("Reverse.String() = %q, want -", got)
	}
}
