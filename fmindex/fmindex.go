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

// Package fmindex is a minimal in-memory FM-index over a DNA reference.
// Its C/Occurrence-table layout and backward-search step are grounded
// on vtphan-rnaq/fmic.go's IndexC: a count table per symbol (C), a
// checkpointed occurrence table (OCC) sampled every M BWT positions,
// and a Search loop that narrows [sp,ep] one base at a time. It is not
// a production suffix-array/BWT implementation (no disk index format,
// no compression beyond the occurrence-table sampling).
package fmindex

import (
	"fmt"
	"sort"

	"github.com/nanopath/readuntil/path"
)

// Base alphabet, matching the A=0,C=1,G=2,T=3 encoding kmermodel uses.
const (
	numBases = 4
	sentinel = numBases // '$', sorts after every real base
)

// Contig names one sequence within the (possibly multi-contig,
// forward+reverse-complement-doubled) reference address space that
// TranslateLoc folds positions back into.
type Contig struct {
	Name  string
	Start int64 // inclusive, 0-based offset into the doubled reference
	End   int64 // inclusive
}

// Index is a compressed-occurrence FM-index over a single concatenated
// reference (typically a reference plus its reverse complement,
// doubled so a hit's coordinate against the second half can be folded
// back into a reverse-strand location).
type Index struct {
	seq []byte // encoded bases, length n, no sentinel stored separately here
	sa  []int64
	bwt []byte

	c   [numBases + 1]int64   // C[c] = number of symbols in seq lexicographically smaller than c
	occ [numBases + 1][]int64 // checkpointed cumulative counts, sampled every m BWT positions
	m   int64

	contigs []Contig
}

// occSize returns the number of checkpoints needed for n BWT symbols
// sampled every m positions.
func occSize(n int64, m int64) int64 { return n/m + 2 }

// Build constructs an Index over seq, an encoded sequence (values
// 0..numBases-1) with contigs describing how seq is partitioned into
// named reference pieces. m is the occurrence-table sampling interval
// (vtphan-rnaq's "compression ratio"); m=1 stores a full table.
func Build(seq []byte, contigs []Contig, m int) (*Index, error) {
	if len(seq) == 0 {
		return nil, fmt.Errorf("fmindex: empty sequence")
	}
	if m < 1 {
		m = 1
	}
	for _, b := range seq {
		if b >= numBases {
			return nil, fmt.Errorf("fmindex: symbol %d out of range [0,%d)", b, numBases)
		}
	}

	n := int64(len(seq))
	idx := make([]int, n+1)
	for i := range idx {
		idx[i] = int(i)
	}
	sort.Slice(idx, func(i, j int) bool {
		return lessSuffix(seq, int64(idx[i]), int64(idx[j]))
	})

	sa := make([]int64, n+1)
	bwt := make([]byte, n+1)
	for rank, suf := range idx {
		sa[rank] = int64(suf)
		if suf == 0 {
			bwt[rank] = sentinel
		} else {
			bwt[rank] = seq[suf-1]
		}
	}

	var freq [numBases + 1]int64
	for _, b := range bwt {
		freq[b]++
	}
	var c [numBases + 1]int64
	var running int64
	// Lexicographic order used throughout: A,C,G,T, then '$' last, which
	// matches how lessSuffix treats a suffix end as the largest symbol.
	for b := 0; b < numBases; b++ {
		c[b] = running
		running += freq[b]
	}
	c[sentinel] = running

	m64 := int64(m)
	os := occSize(n+1, m64)
	var occ [numBases + 1][]int64
	for b := 0; b <= numBases; b++ {
		occ[b] = make([]int64, os)
	}
	var count [numBases + 1]int64
	for i, b := range bwt {
		count[b]++
		if int64(i)%m64 == 0 {
			for b2 := 0; b2 <= numBases; b2++ {
				occ[b2][int64(i)/m64] = count[b2]
			}
		}
	}

	return &Index{
		seq:     seq,
		sa:      sa,
		bwt:     bwt,
		c:       c,
		occ:     occ,
		m:       m64,
		contigs: contigs,
	}, nil
}

// lessSuffix orders suffixes of seq starting at i and j, treating the
// implicit end-of-sequence sentinel as larger than every real base
// (so shorter suffixes that are prefixes of longer ones sort last).
func lessSuffix(seq []byte, i, j int64) bool {
	n := int64(len(seq))
	for {
		ai, bi := sentinel, sentinel
		if i < n {
			ai = int(seq[i])
		}
		if j < n {
			bi = int(seq[j])
		}
		if ai != bi {
			return ai < bi
		}
		if i >= n || j >= n {
			return i >= n && j < n
		}
		i++
		j++
	}
}

func (ix *Index) occurrence(b byte, pos int64) int64 {
	if pos < 0 {
		return 0
	}
	ck := pos / ix.m
	count := ix.occ[b][ck]
	for j := ck*ix.m + 1; j <= pos; j++ {
		if ix.bwt[j] == b {
			count++
		}
	}
	return count
}

// Size returns the length of the indexed sequence, excluding the
// implicit terminator. Seed emission uses it for the
// ref_en = Size() - SA(s) + 1 coordinate flip.
func (ix *Index) Size() int64 { return int64(len(ix.seq)) }

// SA returns the suffix-array entry at row i, i.e. the 0-based
// reference offset of the suffix ranked i.
func (ix *Index) SA(i int64) int64 { return ix.sa[i] }

// Neighbor implements the FM-index neighbor/LF-step primitive: given
// the range for pattern P, returns the range for bP.
func (ix *Index) Neighbor(r path.Range, base int) (path.Range, bool) {
	if base < 0 || base >= numBases {
		return path.Range{}, false
	}
	b := byte(base)
	sp := ix.c[b] + ix.occurrence(b, r.Start-1)
	ep := ix.c[b] + ix.occurrence(b, r.End) - 1
	if sp > ep {
		return path.Range{}, false
	}
	return path.Range{Start: sp, End: ep}, true
}

// FullRange returns the FM range spanning every suffix that begins
// with base, the "full FM interval" kmer_fmranges[k] is seeded from
// one base at a time by BuildKmerRanges.
func (ix *Index) FullRange(base int) (path.Range, bool) {
	b := byte(base)
	sp := ix.c[b]
	ep := ix.c[b+1] - 1
	if sp > ep {
		return path.Range{}, false
	}
	return path.Range{Start: sp, End: ep}, true
}

// TranslateLoc folds a suffix-array position back into a contig name
// and 1-based offset within it, returning that contig's length too. A
// cluster whose span crosses a contig join is reported against
// whichever contig's [Start,End] contains the position, with no
// cross-contig merge.
func (ix *Index) TranslateLoc(saPos int64) (name string, start int64, refLen int64, ok bool) {
	for _, c := range ix.contigs {
		if saPos >= c.Start && saPos <= c.End {
			return c.Name, saPos - c.Start + 1, c.End - c.Start + 1, true
		}
	}
	return "", 0, 0, false
}

// BuildKmerRanges precomputes the full FM range for every k-mer in
// [0, 4^k), by walking the index once per base of each k-mer via
// Neighbor starting from the all-inclusive range, as
// config.Config.KmerFMRanges expects to receive pre-computed.
func (ix *Index) BuildKmerRanges(k int) ([]path.Range, error) {
	if k <= 0 || k > 15 {
		return nil, fmt.Errorf("fmindex: kmer length %d out of supported range", k)
	}
	K := 1 << uint(2*k)
	out := make([]path.Range, K)
	full := path.Range{Start: 0, End: int64(len(ix.bwt)) - 1}
	for kmer := 0; kmer < K; kmer++ {
		r := full
		ok := true
		for j := k - 1; j >= 0 && ok; j-- {
			base := (kmer >> uint(2*j)) & 3
			r, ok = ix.Neighbor(r, base)
		}
		if !ok {
			r = path.Range{Start: 1, End: 0}
		}
		out[kmer] = r
	}
	return out, nil
}
