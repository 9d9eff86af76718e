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

// Package normalizer is a minimal fixed-capacity ring buffer of
// normalized current events: add_event, pop_event, empty, skip_unread
// and nothing more. No drift/scale normalization algorithm lives here
// — that numeric pipeline belongs upstream of the mapper core this
// module implements.
package normalizer

import "fmt"

// Normalizer is a fixed-capacity FIFO of normalized event values,
// pre-allocated at construction so no allocation happens on the
// per-event hot path.
type Normalizer struct {
	buf        []float64
	start, len int
}

// New allocates a Normalizer with room for capacity events
// (config.Config.EvtBufferLen).
func New(capacity int) (*Normalizer, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("normalizer: capacity must be > 0, got %d", capacity)
	}
	return &Normalizer{buf: make([]float64, capacity)}, nil
}

// Empty reports whether the buffer has no unread events, matching
// empty().
func (n *Normalizer) Empty() bool { return n.len == 0 }

// Full reports whether the buffer has no spare capacity.
func (n *Normalizer) Full() bool { return n.len == len(n.buf) }

// AddEvent appends a normalized event, matching add_event(f32) -> bool:
// it returns false (and drops the event) if the buffer is full.
func (n *Normalizer) AddEvent(v float64) bool {
	if n.Full() {
		return false
	}
	idx := (n.start + n.len) % len(n.buf)
	n.buf[idx] = v
	n.len++
	return true
}

// PopEvent removes and returns the oldest unread event, matching
// pop_event() -> f32. It panics if the buffer is empty; callers must
// check Empty() first, matching the collaborator contract's implicit
// precondition.
func (n *Normalizer) PopEvent() float64 {
	if n.Empty() {
		panic("normalizer: pop_event on empty buffer")
	}
	v := n.buf[n.start]
	n.start = (n.start + 1) % len(n.buf)
	n.len--
	return v
}

// SkipUnread discards every unread event, returning how many were
// dropped, matching skip_unread(keep?) -> u32. If keep > 0, the most
// recent keep events are kept (the buffer is drained down to its
// newest keep entries) rather than discarded entirely; this is the
// "keep the tail" variant used by normalizer-overflow recovery.
func (n *Normalizer) SkipUnread(keep int) int {
	if keep < 0 {
		keep = 0
	}
	if keep >= n.len {
		return 0
	}
	dropped := n.len - keep
	n.start = (n.start + dropped) % len(n.buf)
	n.len = keep
	return dropped
}

// Reset empties the buffer unconditionally, used when a read is
// abandoned or a new read begins.
func (n *Normalizer) Reset() { n.start, n.len = 0, 0 }
