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

import "sync"

var bufPool = sync.Pool{New: func() interface{} {
	return []byte(nil)
}}

// ReserveByteBuffer uses a sync.Pool to either reuse or make a slice
// of bytes of length 0, but of capacity potentially larger than 0.
// ingest.WriteReplay uses this to encode each replay record without
// allocating a fresh buffer per line.
//
// Use ReleaseByteBuffer to return slices of bytes to the internal
// pool.
func ReserveByteBuffer() []byte {
	return bufPool.Get().([]byte)[:0]
}

// ReleaseByteBuffer returns the given slice of bytes to the internal
// sync.Pool from which ReserveByteBuffer can fetch it again.
func ReleaseByteBuffer(buf []byte) {
	bufPool.Put(buf)
}
