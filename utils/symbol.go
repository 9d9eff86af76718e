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

// Package utils hosts small data structures shared by the reference
// loader, the target-panel parser and the host-facing cmd package:
// interned contig-name symbols, and a flat string-keyed map for CLI
// option overrides.
package utils

import (
	"unsafe"

	"github.com/exascience/pargo/sync"

	"github.com/nanopath/readuntil/internal"
)

type symbolName string

// A Symbol is a unique pointer to a string. bed.ParseBed interns each
// region's contig name, so every region on "chr1" in a target panel
// holds the same pointer.
type Symbol *string

// SymbolHash computes a hash value for the given Symbol.
func SymbolHash(s Symbol) uint64 {
	return uint64(uintptr(unsafe.Pointer(s)))
}

func (s symbolName) Hash() uint64 {
	return internal.StringHash(string(s))
}

var symbolTable = sync.NewMap(0)

// Intern returns a Symbol for the given string.
//
// It always returns the same pointer for strings that are equal, and
// different pointers for strings that are not equal. So for two
// strings s1 and s2, if s1 == s2, then Intern(s1) == Intern(s2), and
// if s1 != s2, then Intern(s1) != Intern(s2).
//
// Dereferencing the pointer always yields a string that is equal to
// the original string: *Intern(s) == s always holds.
//
// It is safe for multiple goroutines to call Intern concurrently.
func Intern(s string) Symbol {
	entry, _ := symbolTable.LoadOrStore(symbolName(s), Symbol(&s))
	return entry.(Symbol)
}
