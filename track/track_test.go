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

package track

import (
	"testing"

	"gonum.org/v1/gonum/floats"
)

func baseConfig() Config {
	return Config{
		MaxClusters:     4,
		ExpectedAdvance: 1.0,
		ToleranceLow:    0.5,
		ToleranceHigh:   1.5,
		MinMeanConf:     0.1,
		MinTopConf:      1.0,
		MinAlnLen:       2,
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := baseConfig()
	cfg.MaxClusters = 0
	if _, err := New(cfg); err == nil {
		t.Error("max_clusters=0 should be rejected")
	}
	cfg = baseConfig()
	cfg.ToleranceHigh = 0.1
	if _, err := New(cfg); err == nil {
		t.Error("tolerance_high < tolerance_low should be rejected")
	}
}

func TestAddSeedStartsAndExtendsCluster(t *testing.T) {
	trk, err := New(baseConfig())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	trk.AddSeed(100, 10, 0)
	if trk.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", trk.Len())
	}
	trk.AddSeed(101, 10, 1) // advance 1 ref base over 1 event, within [0.5,1.5]
	if trk.Len() != 1 {
		t.Fatalf("Len() = %d, want 1 (should have joined the existing cluster)", trk.Len())
	}
	c, ok := trk.GetFinal()
	if !ok {
		t.Fatal("GetFinal should succeed")
	}
	if c.TotalLen != 20 {
		t.Errorf("TotalLen = %d, want 20", c.TotalLen)
	}
	if c.RefStart != 100 || c.RefEnd != 101 {
		t.Errorf("cluster span = [%d,%d], want [100,101]", c.RefStart, c.RefEnd)
	}
}

func TestAddSeedStartsSeparateClusterWhenInconsistent(t *testing.T) {
	trk, _ := New(baseConfig())
	trk.AddSeed(100, 10, 0)
	trk.AddSeed(500, 10, 1) // advance of 400 ref bases over 1 event, way outside the band
	if trk.Len() != 2 {
		t.Errorf("Len() = %d, want 2 (inconsistent seed should start a new cluster)", trk.Len())
	}
}

func TestAddSeedEvictsWeakestAtCapacity(t *testing.T) {
	cfg := baseConfig()
	cfg.MaxClusters = 2
	trk, _ := New(cfg)
	// Three mutually-inconsistent seeds (huge ref jumps relative to the
	// event advance) so each starts its own cluster candidate.
	trk.AddSeed(0, 5, 0)
	trk.AddSeed(10000, 50, 1)
	trk.AddSeed(20000, 1, 2) // weakest by TotalLen, should not displace either existing cluster
	if trk.Len() != 2 {
		t.Fatalf("Len() = %d, want 2 (capacity cap)", trk.Len())
	}
	for _, c := range []Cluster{{RefStart: 20000}} {
		for i := 0; i < trk.Len(); i++ {
			if trk.clusters[i].RefStart == c.RefStart {
				t.Errorf("weak cluster at ref %d should have been evicted/rejected", c.RefStart)
			}
		}
	}
}

func TestGetFinalEmptyTracker(t *testing.T) {
	trk, _ := New(baseConfig())
	if _, ok := trk.GetFinal(); ok {
		t.Error("GetFinal on an empty tracker should fail")
	}
}

func TestGetFinalRejectsBelowMinAlnLen(t *testing.T) {
	cfg := baseConfig()
	cfg.MinAlnLen = 1000
	trk, _ := New(cfg)
	trk.AddSeed(100, 10, 0)
	if _, ok := trk.GetFinal(); ok {
		t.Error("GetFinal should reject a cluster below MinAlnLen")
	}
}

func TestGetFinalRejectsAmbiguousTop(t *testing.T) {
	cfg := baseConfig()
	cfg.MinTopConf = 2.0
	cfg.MaxClusters = 4
	trk, _ := New(cfg)
	trk.AddSeed(0, 10, 0)
	trk.AddSeed(10000, 9, 1) // close enough in TotalLen that the top/runner-up ratio fails MinTopConf
	if _, ok := trk.GetFinal(); ok {
		t.Error("GetFinal should reject when the top cluster doesn't clear the runner-up by MinTopConf")
	}
}

func TestResetClearsClusters(t *testing.T) {
	trk, _ := New(baseConfig())
	trk.AddSeed(100, 10, 0)
	trk.Reset()
	if trk.Len() != 0 {
		t.Errorf("Len() after Reset = %d, want 0", trk.Len())
	}
}

// TestMeanConfidenceMatchesManualComputation cross-checks GetFinal's
// mean-confidence gate against a hand-computed value (compared via
// gonum's floating point helpers), and checks that a MinMeanConf just
// above that value makes the gate reject the cluster.
func TestMeanConfidenceMatchesManualComputation(t *testing.T) {
	cfg := baseConfig()
	cfg.MinMeanConf = 0
	trk, _ := New(cfg)
	trk.AddSeed(100, 10, 0)
	trk.AddSeed(105, 10, 5)
	c, ok := trk.GetFinal()
	if !ok {
		t.Fatal("GetFinal should succeed")
	}
	// Two seeds of match length 10 spanning events 0..5: 20 / 6.
	wantConf := 20.0 / 6.0
	gotConf := float64(c.TotalLen) / (float64(c.EvtEnd-c.EvtStart) + 1)
	if !floats.EqualWithinAbs(gotConf, wantConf, 1e-9) {
		t.Errorf("mean confidence = %v, want %v", gotConf, wantConf)
	}
	cfg.MinMeanConf = wantConf + 1e-6
	strict, _ := New(cfg)
	strict.AddSeed(100, 10, 0)
	strict.AddSeed(105, 10, 5)
	if _, ok := strict.GetFinal(); ok {
		t.Errorf("GetFinal should reject mean confidence %v below MinMeanConf %v", wantConf, cfg.MinMeanConf)
	}
}
