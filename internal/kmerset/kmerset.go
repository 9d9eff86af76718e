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

// Package kmerset is a dense bit-per-kmer scratch set, sized once from
// the reference's k-mer space (K = 4^k) and cleared/queried every
// event. It exists so pool.Pool's sourcesAdded[0..K) bookkeeping is a
// single cache-friendly bitset rather than a []bool, using the
// willf/bitset dependency for exactly the dense-bit-vector job it is
// meant for.
package kmerset

import "github.com/willf/bitset"

// Set is a fixed-size bitset over [0, n).
type Set struct {
	bits *bitset.BitSet
}

// New allocates a Set covering kmer ids [0, n).
func New(n int) *Set {
	return &Set{bits: bitset.New(uint(n))}
}

// Set marks kmer k as present.
func (s *Set) Set(k int) { s.bits.Set(uint(k)) }

// Clear unmarks kmer k.
func (s *Set) Clear(k int) { s.bits.Clear(uint(k)) }

// Has reports whether kmer k is marked.
func (s *Set) Has(k int) bool { return s.bits.Test(uint(k)) }

// ClearAll unmarks every kmer, reusing the existing backing array.
func (s *Set) ClearAll() { s.bits.ClearAll() }
