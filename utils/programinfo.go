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

package utils

const (
	// ProgramName is printed in the startup banner.
	ProgramName = "readuntil"

	// ProgramVersion is the version of the readuntil-bench binary.
	ProgramVersion = "0.1.0"

	// ProgramURL points to the project's documentation.
	ProgramURL = "https://github.com/nanopath/readuntil"
)
