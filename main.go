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

// readuntil-bench replays a recorded chunk stream through a fleet of
// streaming read-until mappers and reports every location reached,
// optionally filtered through a target-region enrichment/depletion
// panel.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/nanopath/readuntil/cmd"
)

func printHelp() {
	fmt.Fprintln(os.Stderr, "Available commands: bench")
	fmt.Fprint(os.Stderr, "\n", cmd.BenchHelp)
}

func main() {
	fmt.Fprintln(os.Stderr, cmd.ProgramMessage)
	if len(os.Args) < 2 {
		log.Println("Incorrect number of parameters.")
		printHelp()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "bench":
		err = cmd.Bench()
	case "help", "-help", "--help", "-h", "--h":
		printHelp()
	default:
		printHelp()
		os.Exit(1)
	}
	if err != nil {
		log.Fatal(err)
	}
}
