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

// Package fasta loads a reference genome and turns it into the
// doubled, 2-bit-encoded address space fmindex.Build expects: every
// contig's forward strand in the first half of the address space, and
// its reverse complement at the mirrored offset in the second half, the
// layout
// mapper.acceptLocation assumes when it derives Strand from whether a
// cluster's RefStart falls past Size()/2.
package fasta

import (
	"bufio"
	"fmt"
	"os"
	"unicode"

	"github.com/nanopath/readuntil/fmindex"
	"github.com/nanopath/readuntil/utils/nibbles"
)

func contigFromHeader(b []byte) string {
	i := 1
	for ; i < len(b); i++ {
		if c := b[i]; c >= '!' && c <= '~' {
			break
		}
	}
	j := i + 1
	for ; j < len(b); j++ {
		if c := b[j]; c < '!' || c > '~' {
			break
		}
	}
	return string(b[i:j])
}

var iupacTable = map[byte]byte{
	'A': 'A', 'a': 'a',
	'C': 'C', 'c': 'c',
	'G': 'G', 'g': 'g',
	'T': 'T', 't': 't',
	'N': 'N', 'n': 'N',
	'R': 'N', 'r': 'N',
	'Y': 'N', 'y': 'N',
	'M': 'N', 'm': 'N',
	'K': 'N', 'k': 'N',
	'W': 'N', 'w': 'N',
	'S': 'N', 's': 'N',
	'B': 'N', 'b': 'N',
	'D': 'N', 'd': 'N',
	'H': 'N', 'h': 'N',
	'V': 'N', 'v': 'N',
}

// ToN normalizes IUPAC ambiguity codes in a FASTA reference to 'N'.
func ToN(base byte) byte {
	if n, ok := iupacTable[base]; ok {
		return n
	}
	return base
}

// baseCode is the 2-bit encoding BuildKmerRanges/kmermodel assume:
// A=0, C=1, G=2, T=3. Ambiguity codes normalize to 'N' and are encoded
// as A; a reference with runs of N gets spurious matches there, but a
// read-until bench tool replaying a small reference tolerates that
// better than rejecting the contig outright.
var baseCode = func() (table [256]int8) {
	for i := range table {
		table[i] = -1
	}
	table['A'], table['a'] = 0, 0
	table['C'], table['c'] = 1, 1
	table['G'], table['g'] = 2, 2
	table['T'], table['t'] = 3, 3
	table['N'], table['n'] = 0, 0
	return
}()

// Record is one parsed contig: its name and its forward-strand bases,
// packed 4-bit-per-base via utils/nibbles to keep a whole-chromosome
// reference affordable in memory while it is staged for doubling.
type Record struct {
	Name  string
	Bases nibbles.Nibbles
}

// ParseFasta sequentially parses a FASTA file into an ordered slice of
// Records; order matters, since it becomes the contig order of the
// doubled fmindex address space built by LoadReference.
func ParseFasta(filename string) ([]Record, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	var records []Record
	var name string
	var bases nibbles.Nibbles
	haveContig := false

	flush := func() {
		if haveContig {
			records = append(records, Record{Name: name, Bases: bases})
		}
	}

	for scanner.Scan() {
		b := scanner.Bytes()
		if len(b) == 0 {
			continue
		}
		if b[0] == '>' {
			flush()
			name = contigFromHeader(b)
			bases = nibbles.Make(0)
			haveContig = true
			continue
		}
		if !haveContig {
			return nil, fmt.Errorf("fasta: %v: sequence data before first header", filename)
		}
		for _, c := range b {
			c = byte(unicode.ToUpper(rune(c)))
			code := baseCode[ToN(c)]
			if code < 0 {
				return nil, fmt.Errorf("fasta: %v: contig %v: invalid base %q", filename, name, c)
			}
			bases = bases.Append(byte(code))
		}
	}
	flush()
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("fasta: %v: no contigs found", filename)
	}
	return records, nil
}

// complement returns the 2-bit complement of an encoded base: A<->T,
// C<->G, i.e. 3-code.
func complement(code byte) byte { return 3 - code }

// LoadReference parses filename and lays its contigs out in the
// doubled address space fmindex.Build indexes: every contig's forward
// strand at its natural offset, followed by the reverse complement of
// the whole reference, so each contig's reverse complement sits at the
// mirror image of its forward offsets in the second half. TranslateLoc resolves a contig name on either half;
// mapper.acceptLocation tells the halves apart by comparing RefStart
// against Size()/2.
func LoadReference(filename string) (seq []byte, contigs []fmindex.Contig, err error) {
	records, err := ParseFasta(filename)
	if err != nil {
		return nil, nil, err
	}

	total := 0
	for _, r := range records {
		total += r.Bases.Len()
	}

	forward := make([]byte, 0, total)
	contigs = make([]fmindex.Contig, 0, 2*len(records))
	offset := int64(0)
	for _, r := range records {
		n := r.Bases.Len()
		if n == 0 {
			continue
		}
		expanded := r.Bases.Expand()
		forward = append(forward, expanded...)
		contigs = append(contigs, fmindex.Contig{Name: r.Name, Start: offset, End: offset + int64(n) - 1})
		offset += int64(n)
	}

	reverse := make([]byte, len(forward))
	for i, c := range forward {
		reverse[len(forward)-1-i] = complement(c)
	}

	half := int64(len(forward))
	for i := len(contigs) - 1; i >= 0; i-- {
		c := contigs[i]
		n := c.End - c.Start + 1
		revStart := half + (half - 1 - c.End)
		contigs = append(contigs, fmindex.Contig{Name: c.Name, Start: revStart, End: revStart + n - 1})
	}

	seq = append(forward, reverse...)
	return seq, contigs, nil
}
