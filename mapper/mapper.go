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

// Package mapper is the per-read state machine gluing the path pool,
// seed tracker, event detector and normalizer to the host's chunk/event
// pipeline.
package mapper

import (
	"log"

	"github.com/google/uuid"

	"github.com/nanopath/readuntil/config"
	"github.com/nanopath/readuntil/eventdetector"
	"github.com/nanopath/readuntil/internal/clock"
	"github.com/nanopath/readuntil/normalizer"
	"github.com/nanopath/readuntil/pool"
	"github.com/nanopath/readuntil/track"
)

// State is one of the four mapper lifecycle states.
type State int

const (
	StateInactive State = iota
	StateMapping
	StateSuccess
	StateFailure
)

func (s State) String() string {
	switch s {
	case StateInactive:
		return "INACTIVE"
	case StateMapping:
		return "MAPPING"
	case StateSuccess:
		return "SUCCESS"
	case StateFailure:
		return "FAILURE"
	default:
		return "UNKNOWN"
	}
}

// Chunk is a batch of raw samples arriving from chunk ingress; Last
// marks the final chunk of a read.
type Chunk struct {
	Samples []float64
	Last    bool
}

// ReadMeta describes the read currently owning the mapper.
type ReadMeta struct {
	Number    int
	SessionID uuid.UUID
	RawLen    int
	NumChunks int
}

// Strand is the orientation a final location was found on, recovered
// from which half of the doubled forward+reverse-complement reference
// address space the winning cluster's coordinate fell into.
type Strand int

const (
	Forward Strand = iota
	Reverse
)

func (s Strand) String() string {
	if s == Reverse {
		return "-"
	}
	return "+"
}

// Location is the alignment result surfaced to the host once a read
// finishes SUCCESSful.
type Location struct {
	Contig   string
	Pos      int64
	RefLen   int64
	Strand   Strand
	MatchLen int
	Valid    bool
}

// Stats is a rolling per-channel counter, kept only for host-visible
// bookkeeping (never fed back into the mapping decision).
type Stats struct {
	Mapped int
	Failed int
}

// Locator is the subset of the FM-index collaborator contract the
// mapper needs to turn a winning cluster into a Location.
type Locator interface {
	Size() int64
	TranslateLoc(saPos int64) (name string, start int64, refLen int64, ok bool)
}

// Mapper is the per-read state machine. It owns one pool.Pool,
// track.Tracker, eventdetector.Detector and normalizer.Normalizer by
// reference, reused across reads for the life of the mapper: a
// single-threaded, no-per-read-allocation resource policy.
type Mapper struct {
	cfg  *config.Config
	pool *pool.Pool
	trk  *track.Tracker
	det  *eventdetector.Detector
	norm *normalizer.Normalizer
	fmi  Locator

	state State
	read  ReadMeta
	stats Stats

	pendingSamples []float64
	pendingLast    bool
	chunkDone      bool
	lastChunkSeen  bool
	resetRequested bool
	droppedEvents  int

	loc Location
}

// New assembles a Mapper from its collaborators. cfg must already be
// validated.
func New(cfg *config.Config, p *pool.Pool, trk *track.Tracker, det *eventdetector.Detector, norm *normalizer.Normalizer, fmi Locator) *Mapper {
	return &Mapper{cfg: cfg, pool: p, trk: trk, det: det, norm: norm, fmi: fmi, state: StateInactive}
}

// NewRead transitions INACTIVE -> MAPPING: it resets every
// collaborator and installs chunk as the first pending chunk. If the
// mapper was still MAPPING a different read, that read is a "lost
// read": logged once, then discarded.
func (m *Mapper) NewRead(chunk Chunk, readNumber int) {
	if m.state == StateMapping && m.read.Number != readNumber {
		log.Printf("readuntil: lost read %d, starting read %d.", m.read.Number, readNumber)
	}
	m.read = ReadMeta{Number: readNumber, SessionID: uuid.New(), RawLen: len(chunk.Samples), NumChunks: 1}
	m.det.Reset()
	m.norm.Reset()
	m.trk.Reset()
	m.pool.Reset()
	m.pendingSamples = chunk.Samples
	m.pendingLast = chunk.Last
	m.chunkDone = false
	m.lastChunkSeen = false
	m.resetRequested = false
	m.droppedEvents = 0
	m.loc = Location{}
	m.state = StateMapping
}

// SwapChunk appends a new chunk of raw samples iff the previous one has
// been fully drained by ProcessChunk and no reset is pending. If the
// swap would be rejected and the read has already accumulated
// max_chunks_proc chunks, the chunk is accepted anyway (to clear it)
// and the read is forced to FAILURE.
func (m *Mapper) SwapChunk(chunk Chunk) bool {
	if !m.chunkDone || m.resetRequested {
		if m.read.NumChunks >= m.cfg.MaxChunksProc {
			m.state = StateFailure
			m.read.NumChunks++
			return true
		}
		return false
	}
	m.pendingSamples = chunk.Samples
	m.pendingLast = chunk.Last
	m.chunkDone = false
	m.read.NumChunks++
	return true
}

func (m *Mapper) tryAddNormalizedEvent(mean float64, count int) bool {
	if m.norm.AddEvent(mean) {
		return true
	}
	dropped := m.norm.SkipUnread(count)
	m.droppedEvents += dropped
	m.pool.Skip(dropped)
	return m.norm.AddEvent(mean)
}

// ProcessChunk drains the pending chunk's raw samples through the
// event detector and normalizer, returning the number of normalized
// events produced. A persistent normalizer refusal abandons the
// remainder of the chunk without a state change.
func (m *Mapper) ProcessChunk() int {
	count := 0
	for len(m.pendingSamples) > 0 {
		s := m.pendingSamples[0]
		m.pendingSamples = m.pendingSamples[1:]
		closed, mean := m.det.AddSampleEvent(s)
		if !closed {
			continue
		}
		if !m.tryAddNormalizedEvent(mean, count) {
			log.Printf("readuntil: normalizer overflow persists for read %d, abandoning chunk.", m.read.Number)
			m.pendingSamples = nil
			break
		}
		count++
	}
	m.chunkDone = true
	if m.pendingLast {
		m.lastChunkSeen = true
	}
	return count
}

func (m *Mapper) acceptLocation(c track.Cluster) {
	size := m.fmi.Size()
	// A forward-strand hit lands in the low half of the doubled
	// reference address space, which emitSeeds's ref_en = size - sa + 1
	// flip always pushes above size/2+1; a reverse-complement hit lands
	// in the high half, which the same flip always pushes at or below
	// size/2+1.
	strand := Reverse
	if c.RefStart > size/2+1 {
		strand = Forward
	}
	// Undo that flip to recover the raw offset TranslateLoc expects.
	// The flip is its own inverse, and RefEnd (the cluster's largest
	// flipped coordinate) maps back to the smallest, leftmost raw
	// offset: the start of the match.
	saPos := size - c.RefEnd + 1
	name, start, refLen, ok := m.fmi.TranslateLoc(saPos)
	m.loc = Location{Contig: name, Pos: start, RefLen: refLen, Strand: strand, MatchLen: c.TotalLen, Valid: ok}
}

// MapChunk consumes up to get_max_events(event_i) normalized events,
// or until the per-event time budget evt_timeout*nevents is exhausted,
// whichever comes first. It returns true once the read leaves MAPPING
// (SUCCESS or FAILURE); a false return means the read is still MAPPING
// and may resume on the next call, with unconsumed events left in the
// normalizer.
func (m *Mapper) MapChunk() bool {
	if m.resetRequested {
		m.state = StateFailure
		m.resetRequested = false
		return true
	}
	if m.state != StateMapping {
		return true
	}
	if m.readExhausted() {
		m.state = StateFailure
		return true
	}

	budget := m.cfg.MaxEventsPerChunk(m.pool.EventIndex())
	deadline := clock.Now() + int64(m.cfg.EvtTimeout)*int64(budget)

	consumed := 0
	for consumed < budget && !m.norm.Empty() {
		if clock.Now() >= deadline {
			return false
		}
		if m.pool.EventIndex() >= m.cfg.MaxEventsProc {
			m.state = StateFailure
			return true
		}
		ev := m.norm.PopEvent()
		cluster, ok := m.pool.AddEvent(ev)
		consumed++
		if ok {
			m.acceptLocation(cluster)
			m.state = StateSuccess
			return true
		}
	}

	if m.pool.EventIndex() >= m.cfg.MaxEventsProc {
		m.state = StateFailure
		return true
	}
	if m.readExhausted() {
		m.state = StateFailure
		return true
	}
	return false
}

// readExhausted reports whether there is no more data left for this
// read: the normalizer is drained, the current chunk has been fully
// processed, and that chunk was marked as the last one.
func (m *Mapper) readExhausted() bool {
	return m.norm.Empty() && m.chunkDone && m.lastChunkSeen
}

// EndRead requests an early stop for readNumber (an ejection or a
// host-driven abandon), observed on the next MapChunk call.
// It reports whether readNumber was in fact the read currently being
// mapped.
func (m *Mapper) EndRead(readNumber int) bool {
	if m.state != StateMapping || m.read.Number != readNumber {
		return false
	}
	m.resetRequested = true
	return true
}

// RequestReset asks the mapper to abandon its current read at the next
// observation point.
func (m *Mapper) RequestReset() { m.resetRequested = true }

// EndReset clears a pending reset request without waiting for it to be
// observed.
func (m *Mapper) EndReset() { m.resetRequested = false }

// IsResetting reports whether a reset is pending.
func (m *Mapper) IsResetting() bool { return m.resetRequested }

// GetState returns the current lifecycle state.
func (m *Mapper) GetState() State { return m.state }

// GetRead returns the metadata of the read currently owning the mapper.
func (m *Mapper) GetRead() ReadMeta { return m.read }

// GetStats returns the mapper's rolling per-channel counters.
func (m *Mapper) GetStats() Stats { return m.stats }

// Deactivate transitions SUCCESS/FAILURE -> INACTIVE, updating Stats.
func (m *Mapper) Deactivate() {
	switch m.state {
	case StateSuccess:
		m.stats.Mapped++
	case StateFailure:
		m.stats.Failed++
	}
	m.state = StateInactive
}

// PopLoc returns the read's final location (valid only if the read
// reached SUCCESS) and deactivates the mapper: the SUCCESS/FAILURE ->
// INACTIVE transition on pop_loc().
func (m *Mapper) PopLoc() (Location, bool) {
	loc, ok := m.loc, m.state == StateSuccess
	m.Deactivate()
	return loc, ok
}
