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

// Package eventdetector is a minimal raw-sample event segmenter: a
// running-mean/variance window that closes an event once enough
// samples have accumulated or the window's deviation exceeds a
// threshold. It is not meant as production-grade segmentation, only a
// usable collaborator for the normalizer and mapper to drive against.
package eventdetector

import "math"

// Detector accumulates raw samples into a sliding window and closes an
// event when the window is long enough or its running stddev exceeds
// Threshold.
type Detector struct {
	MinSamples int
	MaxSamples int
	Threshold  float64

	sum, sumSq float64
	n          int
}

// New builds a Detector with the given window bounds and deviation
// threshold.
func New(minSamples, maxSamples int, threshold float64) *Detector {
	return &Detector{MinSamples: minSamples, MaxSamples: maxSamples, Threshold: threshold}
}

// Reset clears the current window, matching the reset() collaborator
// contract.
func (d *Detector) Reset() { d.sum, d.sumSq, d.n = 0, 0, 0 }

func (d *Detector) mean() float64 {
	if d.n == 0 {
		return 0
	}
	return d.sum / float64(d.n)
}

func (d *Detector) stddev() float64 {
	if d.n < 2 {
		return 0
	}
	m := d.mean()
	variance := d.sumSq/float64(d.n) - m*m
	if variance < 0 {
		variance = 0
	}
	return math.Sqrt(variance)
}

// GetMean returns the running mean of the current (still open)
// window, matching get_mean().
func (d *Detector) GetMean() float64 { return d.mean() }

// AddSample folds one raw sample into the current window, matching
// add_sample(f32) -> bool: it returns true exactly when the window
// just closed (an event completed). The window is reset as soon as it
// closes, so GetMean() afterwards reports the new, still-open window,
// not the one that just finished — callers that need the closed
// window's mean must use AddSampleEvent instead.
func (d *Detector) AddSample(s float64) bool {
	closed, _ := d.addSample(s)
	return closed
}

// AddSampleEvent folds one raw sample into the current window and
// reports both whether it closed an event and, if so, that event's
// mean current level — the mean GetMean() can no longer see once the
// window has already reset for the next one.
func (d *Detector) AddSampleEvent(s float64) (closed bool, mean float64) {
	return d.addSample(s)
}

// addSample is the shared implementation behind AddSample and
// AddSamples; it also reports the mean of the window that just
// closed, before it gets reset for the next one.
func (d *Detector) addSample(s float64) (closed bool, closedMean float64) {
	d.sum += s
	d.sumSq += s * s
	d.n++
	closed = d.n >= d.MaxSamples || (d.n >= d.MinSamples && d.stddev() > d.Threshold)
	if closed {
		closedMean = d.mean()
		d.sum, d.sumSq, d.n = 0, 0, 0
	}
	return closed, closedMean
}

// AddSamples folds a batch of raw samples and returns the mean (not
// normalized) current level of every event that closed within the batch, matching
// add_samples(vec) -> vec<Event>.
func (d *Detector) AddSamples(samples []float64) []float64 {
	var events []float64
	for _, s := range samples {
		if closed, mean := d.addSample(s); closed {
			events = append(events, mean)
		}
	}
	return events
}
