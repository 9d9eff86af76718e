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

// Package cmd implements the readuntil-bench command line.
package cmd

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/nanopath/readuntil/utils"
)

// ProgramMessage is the first line printed when the binary runs.
var ProgramMessage string

func init() {
	ProgramMessage = fmt.Sprint(
		utils.ProgramName, " version ", utils.ProgramVersion,
		" compiled with ", runtime.Version(),
		" - see ", utils.ProgramURL, " for more information.",
	)
}

// parseOverrides parses a "-override key=value[,key=value...]" flag
// value into a StringMap, rejecting duplicate keys the way
// utils.StringMap.SetUniqueEntry is meant to be used.
func parseOverrides(s string) (utils.StringMap, error) {
	overrides := make(utils.StringMap)
	if s == "" {
		return overrides, nil
	}
	for _, pair := range strings.Split(s, ",") {
		kv := strings.SplitN(pair, "=", 2)
		if len(kv) != 2 || kv[0] == "" {
			return nil, fmt.Errorf("cmd: invalid override %q, want key=value", pair)
		}
		if !overrides.SetUniqueEntry(kv[0], kv[1]) {
			return nil, fmt.Errorf("cmd: duplicate override key %q", kv[0])
		}
	}
	return overrides, nil
}
