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

package cmd

import (
	"bufio"
	"flag"
	"fmt"
	"io/ioutil"
	"log"
	"os"
	"strings"
	"time"

	"github.com/nanopath/readuntil/config"
	"github.com/nanopath/readuntil/eventdetector"
	"github.com/nanopath/readuntil/fasta"
	"github.com/nanopath/readuntil/fmindex"
	"github.com/nanopath/readuntil/internal"
	"github.com/nanopath/readuntil/internal/fleet"
	"github.com/nanopath/readuntil/internal/ingest"
	"github.com/nanopath/readuntil/kmermodel"
	"github.com/nanopath/readuntil/mapper"
	"github.com/nanopath/readuntil/normalizer"
	"github.com/nanopath/readuntil/policy"
	"github.com/nanopath/readuntil/pool"
	"github.com/nanopath/readuntil/track"
)

// BenchHelp describes readuntil-bench's flags.
const BenchHelp = "readuntil-bench -reference ref.fasta -replay replay.tsv [options]\n" +
	"[-kmer-model model.tsv] [-kmer-len 6] [-channels 512]\n" +
	"[-bed panel.bed] [-mode enrich|deplete] [-override key=value,...]\n"

func loadKmerModel(filename string, kmerLen int) (*kmermodel.Model, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var mean, std []float64
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 2 {
			return nil, fmt.Errorf("cmd: %v: malformed kmer model line %q, want mean\\tstd", filename, line)
		}
		mean = append(mean, internal.ParseFloat(fields[0], 64))
		std = append(std, internal.ParseFloat(fields[1], 64))
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return kmermodel.New(kmerLen, mean, std)
}

func applyOverrides(cfg *config.Config, trkCfg *track.Config, overrides map[string]string) error {
	for key, val := range overrides {
		switch key {
		case "seed_len":
			cfg.SeedLen = int(internal.ParseInt(val, 10, 32))
		case "max_paths":
			cfg.MaxPaths = int(internal.ParseInt(val, 10, 32))
		case "min_seed_prob":
			cfg.MinSeedProb = internal.ParseFloat(val, 64)
		case "max_events_proc":
			cfg.MaxEventsProc = int(internal.ParseInt(val, 10, 32))
		case "max_chunks_proc":
			cfg.MaxChunksProc = int(internal.ParseInt(val, 10, 32))
		case "min_mean_conf":
			cfg.MinMeanConf = internal.ParseFloat(val, 64)
			trkCfg.MinMeanConf = cfg.MinMeanConf
		case "min_top_conf":
			cfg.MinTopConf = internal.ParseFloat(val, 64)
			trkCfg.MinTopConf = cfg.MinTopConf
		case "min_aln_len":
			cfg.MinAlnLen = int(internal.ParseInt(val, 10, 32))
			trkCfg.MinAlnLen = cfg.MinAlnLen
		default:
			return fmt.Errorf("cmd: unrecognized override key %q", key)
		}
	}
	return nil
}

// channelState drives one simulated sequencing channel's queue of
// replayed chunks through its mapper.Mapper.
type channelState struct {
	name   string
	queue  []ingest.Record
	cursor int
	reads  int
	mapper *mapper.Mapper
}

// queueEmpty reports whether every replay record for this channel has
// already been handed to the mapper.
func (cs *channelState) queueEmpty() bool {
	return cs.cursor >= len(cs.queue)
}

// drained reports whether this channel has nothing left to do: no
// queued records and no read in flight.
func (cs *channelState) drained() bool {
	return cs.queueEmpty() && cs.mapper.GetState() == mapper.StateInactive
}

func (cs *channelState) tick(panel *policy.Panel) func(m *mapper.Mapper) (mapper.Location, bool) {
	return func(m *mapper.Mapper) (mapper.Location, bool) {
		switch m.GetState() {
		case mapper.StateInactive:
			if cs.queueEmpty() {
				return mapper.Location{}, false
			}
			rec := cs.queue[cs.cursor]
			cs.cursor++
			cs.reads++
			m.NewRead(rec.Chunk, cs.reads)
			m.ProcessChunk()
		case mapper.StateMapping:
			if !cs.queueEmpty() {
				if m.SwapChunk(cs.queue[cs.cursor].Chunk) {
					cs.cursor++
					m.ProcessChunk()
				}
			}
		default:
			return mapper.Location{}, false
		}
		if !m.MapChunk() {
			return mapper.Location{}, false
		}
		loc, ok := m.PopLoc()
		if ok {
			decision := "n/a"
			if panel != nil {
				decision = panel.Decide(loc).String()
			}
			fmt.Printf("channel=%s read=%d contig=%s pos=%d strand=%s match_len=%d decision=%s\n",
				cs.name, cs.reads, loc.Contig, loc.Pos, loc.Strand, loc.MatchLen, decision)
		}
		return loc, ok
	}
}

// Bench runs readuntil-bench: it loads a reference, a pore model and a
// recorded chunk replay, drives a fleet of mapper.Mapper instances
// over it, and reports every Location reached, optionally filtered
// through a target-region panel.
func Bench() error {
	flags := flag.NewFlagSet("readuntil-bench", flag.ContinueOnError)
	flags.SetOutput(ioutil.Discard)

	reference := flags.String("reference", "", "reference FASTA file")
	replay := flags.String("replay", "", "recorded chunk replay file")
	kmerModelFile := flags.String("kmer-model", "", "pore k-mer model TSV file (mean\\tstd per kmer); if unset, a synthetic uniform model is used")
	kmerLen := flags.Int("kmer-len", 6, "k-mer length")
	channels := flags.Int("channels", 512, "number of simulated sequencing channels to shard replay records across")
	bedFile := flags.String("bed", "", "optional target-region panel BED file")
	mode := flags.String("mode", "enrich", "panel mode: enrich or deplete")
	overrideFlag := flags.String("override", "", "key=value[,key=value...] config overrides")

	if err := flags.Parse(os.Args[2:]); err != nil {
		fmt.Fprint(os.Stderr, BenchHelp)
		return err
	}
	if *reference == "" || *replay == "" {
		fmt.Fprint(os.Stderr, BenchHelp)
		return fmt.Errorf("cmd: -reference and -replay are required")
	}

	overrides, err := parseOverrides(*overrideFlag)
	if err != nil {
		return err
	}

	seq, contigs, err := fasta.LoadReference(*reference)
	if err != nil {
		return err
	}
	idx, err := fmindex.Build(seq, contigs, 16)
	if err != nil {
		return err
	}
	ranges, err := idx.BuildKmerRanges(*kmerLen)
	if err != nil {
		return err
	}

	var model *kmermodel.Model
	if *kmerModelFile != "" {
		model, err = loadKmerModel(*kmerModelFile, *kmerLen)
	} else {
		model, err = kmermodel.Uniform(*kmerLen, 4.0, 0.5)
	}
	if err != nil {
		return err
	}

	cfg := &config.Config{
		SeedLen:                  12,
		NumEventTypes:            2,
		MaxPaths:                 64,
		MaxConsecStay:            8,
		MaxStayFrac:              0.5,
		MinSeedProb:              -6.0,
		MaxRepCopy:               50,
		MinRepLen:                20,
		SourceProb:               0.01,
		ProbThreshold:            config.DefaultProbThreshold(-3.0, 2.0),
		MinMeanConf:              4.0,
		MinTopConf:               2.0,
		MinAlnLen:                25,
		MaxEventsProc:            2000,
		MaxChunksProc:            500,
		EvtBufferLen:             4096,
		EvtTimeout:               time.Millisecond,
		MaxEventsPerChunk:        config.DefaultMaxEventsPerChunk(400),
		KmerFMRanges:             ranges,
		SampleRateHz:             4000,
		TranslocationBasesPerSec: 450,
	}
	trkCfg := track.Config{
		MaxClusters:     16,
		ExpectedAdvance: 1.0,
		ToleranceLow:    0.5,
		ToleranceHigh:   1.5,
		MinMeanConf:     cfg.MinMeanConf,
		MinTopConf:      cfg.MinTopConf,
		MinAlnLen:       cfg.MinAlnLen,
	}
	if err := applyOverrides(cfg, &trkCfg, overrides); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := trkCfg.Validate(); err != nil {
		return err
	}

	var panel *policy.Panel
	if *bedFile != "" {
		var panelMode policy.Mode
		switch *mode {
		case "enrich":
			panelMode = policy.Enrich
		case "deplete":
			panelMode = policy.Deplete
		default:
			return fmt.Errorf("cmd: unrecognized -mode %q, want enrich or deplete", *mode)
		}
		panel, err = policy.NewPanel(panelMode, *bedFile)
		if err != nil {
			return err
		}
	}

	replayFile, err := os.Open(*replay)
	if err != nil {
		return err
	}
	defer replayFile.Close()
	records := ingest.LoadAll(replayFile)

	channelIndex := make(map[string]int)
	states := make([]*channelState, *channels)
	for _, rec := range records {
		slot, ok := channelIndex[rec.Channel]
		if !ok {
			slot = int(internal.StringHash(rec.Channel) % uint64(*channels))
			channelIndex[rec.Channel] = slot
		}
		if states[slot] == nil {
			states[slot] = &channelState{name: rec.Channel}
		}
		states[slot].queue = append(states[slot].queue, rec)
	}

	var fleetChannels []fleet.Channel
	for _, cs := range states {
		if cs == nil {
			continue
		}
		trk, err := track.New(trkCfg)
		if err != nil {
			return err
		}
		p, err := pool.New(cfg, idx, model, trk)
		if err != nil {
			return err
		}
		det := eventdetector.New(4, 10, 0.5)
		norm, err := normalizer.New(cfg.EvtBufferLen)
		if err != nil {
			return err
		}
		m := mapper.New(cfg, p, trk, det, norm, idx)
		cs.mapper = m
		fleetChannels = append(fleetChannels, fleet.Channel{Mapper: m, Tick: cs.tick(panel)})
	}
	flt := fleet.New(fleetChannels)

	log.Printf("readuntil-bench: %d channels, %d replay records, kmer_len=%d", flt.Len(), len(records), *kmerLen)
	for {
		flt.TickAll()
		done := true
		for _, cs := range states {
			if cs == nil {
				continue
			}
			if !cs.drained() {
				done = false
				break
			}
		}
		if done {
			break
		}
	}
	return nil
}
