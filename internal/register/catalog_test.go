// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package register

import (
	"errors"
	"strings"
	"testing"
)

func TestDRT301M_Lookup(t *testing.T) {
	c := DRT301M()
	if c.Len() != 89 {
		t.Errorf("Len() = %d, want 89", c.Len())
	}

	tests := []struct {
		address  uint16
		kind     EncodingKind
		words    uint16
		exponent int8
		unit     string
	}{
		{0x0010, EncodingUnsignedInt32, 2, 0, "V"},
		{0x0050, EncodingScaledFloat32, 2, -2, "A"},
		{0x0156, EncodingScaledFloat32, 2, -3, "cos phi"},
		{0x0160, EncodingScaledFloat32, 2, -2, "kWh"},
		{0xF000, EncodingBcdTimestamp, 4, 0, ""},
		{0xF111, EncodingRateSummary8, 10, -2, "kWh"},
		{0xF4C1, EncodingRateSummary8, 10, -4, "kW"},
		{0xF500, EncodingIntervals, 2, 0, ""},
		{0xF600, EncodingDisabled, 0, 0, ""},
		{0xF700, EncodingTariff, 15, 0, ""},
		{0xFB01, EncodingRateSummary8, 10, -4, "kW"},
	}

	for _, tt := range tests {
		def, err := c.Lookup(tt.address)
		if err != nil {
			t.Errorf("Lookup(0x%04X) failed: %v", tt.address, err)
			continue
		}
		if def.Address != tt.address || def.Kind() != tt.kind || def.WordCount != tt.words ||
			def.DecimalExponent != tt.exponent || def.Unit != tt.unit {
			t.Errorf("Lookup(0x%04X) = %+v", tt.address, def)
		}
	}
}

func TestDRT301M_Access(t *testing.T) {
	c := DRT301M()
	baud, _ := c.Lookup(0xF800)
	if baud.Access.Readable() || !baud.Access.Writable() {
		t.Errorf("0xF800 access = %v, want write-only", baud.Access)
	}
	clock, _ := c.Lookup(0xF000)
	if !clock.Access.Readable() || !clock.Access.Writable() {
		t.Errorf("0xF000 access = %v, want read-write", clock.Access)
	}
	energy, _ := c.Lookup(0x0160)
	if energy.Access != AccessRead {
		t.Errorf("0x0160 access = %v, want read-only", energy.Access)
	}
}

func TestCatalog_NotFound(t *testing.T) {
	for _, addr := range []uint16{0x0000, 0x0011, 0x0013, 0xFFFF} {
		def, err := DRT301M().Lookup(addr)
		var nf *NotFoundError
		if !errors.As(err, &nf) {
			t.Fatalf("Lookup(0x%04X) error = %v, want *NotFoundError", addr, err)
		}
		if nf.Address != addr {
			t.Errorf("NotFoundError.Address = 0x%04X, want 0x%04X", nf.Address, addr)
		}
		if def != (Definition{}) {
			t.Errorf("Lookup(0x%04X) returned a definition on failure: %+v", addr, def)
		}
	}
}

func TestCatalog_AllOrder(t *testing.T) {
	all := DRT301M().All()
	if all[0].Address != 0x0010 || all[len(all)-1].Address != 0xFB01 {
		t.Errorf("unexpected order: first 0x%04X last 0x%04X", all[0].Address, all[len(all)-1].Address)
	}

	// callers get a copy
	all[0].Unit = "changed"
	if def, _ := DRT301M().Lookup(0x0010); def.Unit != "V" {
		t.Error("All() exposes the catalog's backing array")
	}
}

func TestNewCatalog_Errors(t *testing.T) {
	if _, err := NewCatalog([]Definition{
		{Address: 1, WordCount: 2, Encoding: EncodingUnsignedInt32},
		{Address: 1, WordCount: 2, Encoding: EncodingScaledFloat32},
	}); err == nil {
		t.Error("expected error for duplicate address")
	}
	if _, err := NewCatalog([]Definition{
		{Address: 1, WordCount: 2, Encoding: EncodingRateSummary8},
	}); err == nil {
		t.Error("expected error for rate summary shorter than 8 words")
	}
	if _, err := NewCatalog([]Definition{
		{Address: 1, WordCount: 1, Encoding: EncodingTariff},
	}); err != nil {
		t.Errorf("unimplemented encodings have no length rule, got %v", err)
	}
}

func TestDefinition_String(t *testing.T) {
	def, _ := DRT301M().Lookup(0x0160)
	got := def.String()
	if !strings.HasPrefix(got, "0x0160    2    2   -2") || !strings.HasSuffix(got, "\tkWh\tImport Energy") {
		t.Errorf("String() = %q", got)
	}
}
