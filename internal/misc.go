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

package internal

import (
	"log"

	"github.com/exascience/pargo/pipeline"
)

// RunPipeline is p.Run() with a panic in place of an error return,
// used by internal/ingest to drive its chunk-ingress pipeline: a
// failure there is a malformed recorded-signal replay file, not a
// per-read condition the mapper state machine needs to recover from.
func RunPipeline(p *pipeline.Pipeline) {
	p.Run()
	if err := p.Err(); err != nil {
		log.Panic(err)
	}
}
