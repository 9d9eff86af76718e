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

package kmerset

import "testing"

func TestSetClearHas(t *testing.T) {
	s := New(16)
	if s.Has(3) {
		t.Error("freshly allocated Set should have no bits set")
	}
	s.Set(3)
	if !s.Has(3) {
		t.Error("Has(3) after Set(3) should be true")
	}
	if s.Has(4) {
		t.Error("Set(3) should not affect bit 4")
	}
	s.Clear(3)
	if s.Has(3) {
		t.Error("Has(3) after Clear(3) should be false")
	}
}

func TestClearAllUnmarksEverything(t *testing.T) {
	s := New(8)
	for i := 0; i < 8; i++ {
		s.Set(i)
	}
	s.ClearAll()
	for i := 0; i < 8; i++ {
		if s.Has(i) {
			t.Errorf("Has(%d) after ClearAll should be false", i)
		}
	}
}

func TestClearAllReusesBackingArrayAcrossReuse(t *testing.T) {
	s := New(4)
	s.Set(0)
	s.Set(1)
	s.ClearAll()
	s.Set(2)
	if s.Has(0) || s.Has(1) {
		t.Error("stale bits from before ClearAll should not resurface")
	}
	if !s.Has(2) {
		t.Error("Has(2) after Set(2) should be true")
	}
}
