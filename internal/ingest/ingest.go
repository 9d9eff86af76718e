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

// Package ingest simulates chunk ingress for readuntil-bench: it
// replays a recorded text file of per-channel sample batches, standing
// in for the wire source a real host would otherwise drive the mapper
// from, so the rest of the module has something to run against.
// Decoding runs on a github.com/exascience/pargo/pipeline, the same
// LimitedPar/Ord shape intervals.go's FromElsitesFile uses to read
// text line by line, because replay files can be large enough that
// single-threaded strconv parsing would dominate a benchmark run.
package ingest

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/exascience/pargo/pipeline"

	"github.com/nanopath/readuntil/internal"
	"github.com/nanopath/readuntil/mapper"
)

// Record is one decoded replay entry: the sequencing channel it
// belongs to, and the chunk of raw samples to feed that channel's
// mapper.Mapper.
type Record struct {
	Channel string
	Chunk   mapper.Chunk
}

// decodeLine parses one line of the form
// "channel\tlast\tsample,sample,...".
func decodeLine(line string) (Record, error) {
	fields := strings.SplitN(line, "\t", 3)
	if len(fields) != 3 {
		return Record{}, fmt.Errorf("ingest: malformed replay line %q", line)
	}
	last := fields[1] == "1"
	var samples []float64
	if fields[2] != "" {
		tokens := strings.Split(fields[2], ",")
		samples = make([]float64, len(tokens))
		for i, tok := range tokens {
			v, err := strconv.ParseFloat(tok, 64)
			if err != nil {
				return Record{}, fmt.Errorf("ingest: replay line %q: %w", line, err)
			}
			samples[i] = v
		}
	}
	return Record{Channel: fields[0], Chunk: mapper.Chunk{Samples: samples, Last: last}}, nil
}

// Handler is called once per decoded Record, in file order.
type Handler func(Record) error

// Replay decodes r line by line and calls handle for every record, in
// the order the records appear in the file. Decoding of each batch of
// lines runs in parallel, but handle is always invoked in file order
// (pipeline.Ord), matching the per-read ordering the mapper state
// machine requires within a channel.
func Replay(r io.Reader, handle Handler) error {
	var p pipeline.Pipeline
	p.Source(pipeline.NewScanner(bufio.NewReader(r)))
	p.Add(pipeline.LimitedPar(0, pipeline.Receive(func(_ int, data interface{}) interface{} {
		lines := data.([]string)
		out := make([]Record, 0, len(lines))
		for _, line := range lines {
			if line == "" {
				continue
			}
			rec, err := decodeLine(line)
			if err != nil {
				p.SetErr(err)
				return out
			}
			out = append(out, rec)
		}
		return out
	})))
	p.Add(pipeline.Ord(pipeline.Receive(func(_ int, data interface{}) interface{} {
		for _, rec := range data.([]Record) {
			if err := handle(rec); err != nil {
				p.SetErr(err)
				break
			}
		}
		return data
	})))
	p.Run()
	return p.Err()
}

// LoadAll decodes every record of r into memory up front. It is meant
// for readuntil-bench's startup phase, before any channel has started
// ticking, where a malformed replay file is a setup mistake rather
// than a condition any mapper needs to recover from — the same
// distinction config.Validate's callers draw by reporting setup
// errors with log.Fatal instead of folding them into the per-read
// state machine. internal.RunPipeline's panic-on-error is appropriate
// here for that reason.
func LoadAll(r io.Reader) (records []Record) {
	internal.RunPipeline(replayPipeline(r, &records))
	return records
}

func replayPipeline(r io.Reader, out *[]Record) *pipeline.Pipeline {
	var p pipeline.Pipeline
	p.Source(pipeline.NewScanner(bufio.NewReader(r)))
	p.Add(pipeline.LimitedPar(0, pipeline.Receive(func(_ int, data interface{}) interface{} {
		lines := data.([]string)
		batch := make([]Record, 0, len(lines))
		for _, line := range lines {
			if line == "" {
				continue
			}
			rec, err := decodeLine(line)
			if err != nil {
				p.SetErr(err)
				return batch
			}
			batch = append(batch, rec)
		}
		return batch
	})))
	p.Add(pipeline.Ord(pipeline.Receive(func(_ int, data interface{}) interface{} {
		*out = append(*out, data.([]Record)...)
		return data
	})))
	return &p
}

// WriteReplay appends one record to w in Replay's line format, using a
// pooled scratch buffer the way sam/cigar-utils.go builds a new CIGAR
// byte slice before converting it to a string: one AppendFloat/append
// call at a time, released back to the pool once the line is written.
func WriteReplay(w io.Writer, rec Record) error {
	buf := internal.ReserveByteBuffer()
	defer internal.ReleaseByteBuffer(buf)

	buf = append(buf, rec.Channel...)
	buf = append(buf, '\t')
	if rec.Chunk.Last {
		buf = append(buf, '1')
	} else {
		buf = append(buf, '0')
	}
	buf = append(buf, '\t')
	for i, s := range rec.Chunk.Samples {
		if i > 0 {
			buf = append(buf, ',')
		}
		buf = strconv.AppendFloat(buf, s, 'g', -1, 64)
	}
	buf = append(buf, '\n')
	_, err := w.Write(buf)
	return err
}
