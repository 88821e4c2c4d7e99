// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package register describes the DRT-301M holding registers and turns the
// words read from them into values.
package register

import (
	"fmt"
)

// EncodingKind says how the words of a register are to be interpreted.
type EncodingKind uint8

const (
	EncodingDisabled      EncodingKind = 0
	EncodingUnsignedInt32 EncodingKind = 1
	EncodingScaledFloat32 EncodingKind = 2
	EncodingBcdTimestamp  EncodingKind = 3
	EncodingRateSummary8  EncodingKind = 4

	// Present in the catalog, no decoder yet.
	EncodingIntervals   EncodingKind = 5
	EncodingMeterNumber EncodingKind = 6
	EncodingTariff      EncodingKind = 7
)

func (k EncodingKind) String() string {
	switch k {
	case EncodingDisabled:
		return "disabled"
	case EncodingUnsignedInt32:
		return "uint32"
	case EncodingScaledFloat32:
		return "scaled"
	case EncodingBcdTimestamp:
		return "bcd-timestamp"
	case EncodingRateSummary8:
		return "rate-summary"
	default:
		return fmt.Sprintf("encoding(%d)", uint8(k))
	}
}

// Implemented reports whether Decode has a rule for k.
func (k EncodingKind) Implemented() bool {
	return k <= EncodingRateSummary8
}

// minWords is the number of words the decoder of k consumes.
func (k EncodingKind) minWords() int {
	switch k {
	case EncodingUnsignedInt32, EncodingScaledFloat32:
		return 2
	case EncodingBcdTimestamp:
		return 4
	case EncodingRateSummary8:
		return 8
	default:
		return 0
	}
}

// Access is what the meter allows on a register.
type Access uint8

const (
	AccessRead Access = iota
	AccessReadWrite
	AccessWrite
)

func (a Access) String() string {
	switch a {
	case AccessRead:
		return "r"
	case AccessReadWrite:
		return "rw"
	case AccessWrite:
		return "w"
	default:
		return "?"
	}
}

// Readable reports whether the register may be read.
func (a Access) Readable() bool { return a != AccessWrite }

// Writable reports whether the register may be written.
func (a Access) Writable() bool { return a != AccessRead }

// Definition is the decoding recipe of one register.
type Definition struct {
	Address         uint16
	WordCount       uint16 // words a read must return; 0 disables the register
	Encoding        EncodingKind
	DecimalExponent int8
	Unit            string
	Description     string
	Access          Access
}

// Kind is the effective encoding: a register without words is disabled
// whatever its tag.
func (d Definition) Kind() EncodingKind {
	if d.WordCount == 0 {
		return EncodingDisabled
	}
	return d.Encoding
}

// String renders d as one line of the catalog listing.
func (d Definition) String() string {
	return fmt.Sprintf("0x%04X %4d %4d %4d %-2s\t%s\t%s",
		d.Address, d.WordCount, d.Encoding, d.DecimalExponent, d.Access, d.Unit, d.Description)
}

// NotFoundError is returned when an address is not in the catalog.
type NotFoundError struct {
	Address uint16
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("register 0x%04X (%d) not defined", e.Address, e.Address)
}

// Catalog is an immutable set of register definitions kept in table order.
type Catalog struct {
	defs  []Definition
	index map[uint16]int
}

// NewCatalog builds a catalog from defs. Addresses must be unique and every
// decodable definition must be long enough for its encoding.
func NewCatalog(defs []Definition) (*Catalog, error) {
	c := &Catalog{
		defs:  make([]Definition, len(defs)),
		index: make(map[uint16]int, len(defs)),
	}
	copy(c.defs, defs)
	for i, d := range c.defs {
		if _, ok := c.index[d.Address]; ok {
			return nil, fmt.Errorf("register 0x%04X defined twice", d.Address)
		}
		if n := d.Kind().minWords(); int(d.WordCount) < n && d.Kind().Implemented() {
			return nil, fmt.Errorf("register 0x%04X: %d words, %s needs %d", d.Address, d.WordCount, d.Kind(), n)
		}
		c.index[d.Address] = i
	}
	return c, nil
}

// Lookup returns the definition at address or a *NotFoundError.
func (c *Catalog) Lookup(address uint16) (Definition, error) {
	i, ok := c.index[address]
	if !ok {
		return Definition{}, &NotFoundError{Address: address}
	}
	return c.defs[i], nil
}

// All returns every definition in table order.
func (c *Catalog) All() []Definition {
	out := make([]Definition, len(c.defs))
	copy(out, c.defs)
	return out
}

// Len returns the number of definitions.
func (c *Catalog) Len() int {
	return len(c.defs)
}

var drt301m = mustCatalog(drt301mTable)

// DRT301M returns the built-in catalog of the DRT-301M meter.
func DRT301M() *Catalog {
	return drt301m
}

func mustCatalog(defs []Definition) *Catalog {
	c, err := NewCatalog(defs)
	if err != nil {
		panic(err)
	}
	return c
}

var drt301mTable = []Definition{
	{0x0010, 2, EncodingUnsignedInt32, 0, "V", "Voltage L1", AccessRead},
	{0x0012, 2, EncodingUnsignedInt32, 0, "V", "Voltage L2", AccessRead},
	{0x0014, 2, EncodingUnsignedInt32, 0, "V", "Voltage L3", AccessRead},
	{0x004E, 2, EncodingUnsignedInt32, 0, "Hz", "Frequency", AccessRead},
	{0x0050, 2, EncodingScaledFloat32, -2, "A", "Current L1", AccessRead},
	{0x0052, 2, EncodingScaledFloat32, -2, "A", "Current L2", AccessRead},
	{0x0054, 2, EncodingScaledFloat32, -2, "A", "Current L3", AccessRead},
	{0x0056, 2, EncodingScaledFloat32, -2, "A", "Current N", AccessRead},
	{0x0090, 2, EncodingScaledFloat32, -4, "kW", "Power L1", AccessRead},
	{0x0092, 2, EncodingScaledFloat32, -4, "kW", "Power L2", AccessRead},
	{0x0094, 2, EncodingScaledFloat32, -4, "kW", "Power L3", AccessRead},
	{0x0096, 2, EncodingScaledFloat32, -4, "kW", "Power Total", AccessRead},
	{0x00D0, 2, EncodingScaledFloat32, -4, "kVA", "Apparent Power L1", AccessRead},
	{0x00D2, 2, EncodingScaledFloat32, -4, "kVA", "Apparent Power L2", AccessRead},
	{0x00D4, 2, EncodingScaledFloat32, -4, "kVA", "Apparent Power L3", AccessRead},
	{0x00D6, 2, EncodingScaledFloat32, -4, "kVA", "Apparent Power Total", AccessRead},
	{0x0110, 2, EncodingScaledFloat32, -2, "kvar", "Reactive Power L1", AccessRead},
	{0x0112, 2, EncodingScaledFloat32, -2, "kvar", "Reactive Power L2", AccessRead},
	{0x0114, 2, EncodingScaledFloat32, -2, "kvar", "Reactive Power L3", AccessRead},
	{0x0116, 2, EncodingScaledFloat32, -2, "kvar", "Reactive Power Total", AccessRead},
	{0x0150, 2, EncodingScaledFloat32, -3, "cos phi", "Power Factor L1", AccessRead},
	{0x0152, 2, EncodingScaledFloat32, -3, "cos phi", "Power Factor L2", AccessRead},
	{0x0154, 2, EncodingScaledFloat32, -3, "cos phi", "Power Factor L3", AccessRead},
	{0x0156, 2, EncodingScaledFloat32, -3, "cos phi", "Power Factor Total", AccessRead},
	{0x0160, 2, EncodingScaledFloat32, -2, "kWh", "Import Energy", AccessRead},
	{0x0166, 2, EncodingScaledFloat32, -2, "kWh", "Export Energy", AccessRead},
	{0x07D0, 2, EncodingScaledFloat32, -2, "kWh", "Import Energy Rate 1", AccessRead},
	{0x07D2, 2, EncodingScaledFloat32, -2, "kWh", "Import Energy Rate 2", AccessRead},
	{0x07D4, 2, EncodingScaledFloat32, -2, "kWh", "Import Energy Rate 3", AccessRead},
	{0x07D6, 2, EncodingScaledFloat32, -2, "kWh", "Import Energy Rate 4", AccessRead},
	{0x08D0, 2, EncodingScaledFloat32, -2, "kWh", "Export Energy Rate 1", AccessRead},
	{0x08D2, 2, EncodingScaledFloat32, -2, "kWh", "Export Energy Rate 2", AccessRead},
	{0x08D4, 2, EncodingScaledFloat32, -2, "kWh", "Export Energy Rate 3", AccessRead},
	{0x08D6, 2, EncodingScaledFloat32, -2, "kWh", "Export Energy Rate 4", AccessRead},
	{0xF000, 4, EncodingBcdTimestamp, 0, "", "Time/Date", AccessReadWrite},
	{0xF111, 10, EncodingRateSummary8, -2, "kWh", "Last 1 month positive Energy", AccessRead},
	{0xF121, 10, EncodingRateSummary8, -2, "kWh", "Last 2 month positive Energy", AccessRead},
	{0xF131, 10, EncodingRateSummary8, -2, "kWh", "Last 3 month positive Energy", AccessRead},
	{0xF141, 10, EncodingRateSummary8, -2, "kWh", "Last 4 month positive Energy", AccessRead},
	{0xF151, 10, EncodingRateSummary8, -2, "kWh", "Last 5 month positive Energy", AccessRead},
	{0xF161, 10, EncodingRateSummary8, -2, "kWh", "Last 6 month positive Energy", AccessRead},
	{0xF171, 10, EncodingRateSummary8, -2, "kWh", "Last 7 month positive Energy", AccessRead},
	{0xF181, 10, EncodingRateSummary8, -2, "kWh", "Last 8 month positive Energy", AccessRead},
	{0xF191, 10, EncodingRateSummary8, -2, "kWh", "Last 9 month positive Energy", AccessRead},
	{0xF1A1, 10, EncodingRateSummary8, -2, "kWh", "Last 10 month positive Energy", AccessRead},
	{0xF1B1, 10, EncodingRateSummary8, -2, "kWh", "Last 11 month positive Energy", AccessRead},
	{0xF1C1, 10, EncodingRateSummary8, -2, "kWh", "Last 12 month positive Energy", AccessRead},
	{0xF211, 10, EncodingRateSummary8, -2, "kWh", "Last 1 month reverse Energy", AccessRead},
	{0xF221, 10, EncodingRateSummary8, -2, "kWh", "Last 2 month reverse Energy", AccessRead},
	{0xF231, 10, EncodingRateSummary8, -2, "kWh", "Last 3 month reverse Energy", AccessRead},
	{0xF241, 10, EncodingRateSummary8, -2, "kWh", "Last 4 month reverse Energy", AccessRead},
	{0xF251, 10, EncodingRateSummary8, -2, "kWh", "Last 5 month reverse Energy", AccessRead},
	{0xF261, 10, EncodingRateSummary8, -2, "kWh", "Last 6 month reverse Energy", AccessRead},
	{0xF271, 10, EncodingRateSummary8, -2, "kWh", "Last 7 month reverse Energy", AccessRead},
	{0xF281, 10, EncodingRateSummary8, -2, "kWh", "Last 8 month reverse Energy", AccessRead},
	{0xF291, 10, EncodingRateSummary8, -2, "kWh", "Last 9 month reverse Energy", AccessRead},
	{0xF2A1, 10, EncodingRateSummary8, -2, "kWh", "Last 10 month reverse Energy", AccessRead},
	{0xF2B1, 10, EncodingRateSummary8, -2, "kWh", "Last 11 month reverse Energy", AccessRead},
	{0xF2C1, 10, EncodingRateSummary8, -2, "kWh", "Last 12 month reverse Energy", AccessRead},
	{0xF311, 10, EncodingRateSummary8, -4, "kW", "Last 1 month positive max Demand", AccessRead},
	{0xF321, 10, EncodingRateSummary8, -4, "kW", "Last 2 month positive max Demand", AccessRead},
	{0xF331, 10, EncodingRateSummary8, -4, "kW", "Last 3 month positive max Demand", AccessRead},
	{0xF341, 10, EncodingRateSummary8, -4, "kW", "Last 4 month positive max Demand", AccessRead},
	{0xF351, 10, EncodingRateSummary8, -4, "kW", "Last 5 month positive max Demand", AccessRead},
	{0xF361, 10, EncodingRateSummary8, -4, "kW", "Last 6 month positive max Demand", AccessRead},
	{0xF371, 10, EncodingRateSummary8, -4, "kW", "Last 7 month positive max Demand", AccessRead},
	{0xF381, 10, EncodingRateSummary8, -4, "kW", "Last 8 month positive max Demand", AccessRead},
	{0xF391, 10, EncodingRateSummary8, -4, "kW", "Last 9 month positive max Demand", AccessRead},
	{0xF3A1, 10, EncodingRateSummary8, -4, "kW", "Last 10 month positive max Demand", AccessRead},
	{0xF3B1, 10, EncodingRateSummary8, -4, "kW", "Last 11 month positive max Demand", AccessRead},
	{0xF3C1, 10, EncodingRateSummary8, -4, "kW", "Last 12 month positive max Demand", AccessRead},
	{0xF411, 10, EncodingRateSummary8, -4, "kW", "Last 1 month reverse max Demand", AccessRead},
	{0xF421, 10, EncodingRateSummary8, -4, "kW", "Last 2 month reverse max Demand", AccessRead},
	{0xF431, 10, EncodingRateSummary8, -4, "kW", "Last 3 month reverse max Demand", AccessRead},
	{0xF441, 10, EncodingRateSummary8, -4, "kW", "Last 4 month reverse max Demand", AccessRead},
	{0xF451, 10, EncodingRateSummary8, -4, "kW", "Last 5 month reverse max Demand", AccessRead},
	{0xF461, 10, EncodingRateSummary8, -4, "kW", "Last 6 month reverse max Demand", AccessRead},
	{0xF471, 10, EncodingRateSummary8, -4, "kW", "Last 7 month reverse max Demand", AccessRead},
	{0xF481, 10, EncodingRateSummary8, -4, "kW", "Last 8 month reverse max Demand", AccessRead},
	{0xF491, 10, EncodingRateSummary8, -4, "kW", "Last 9 month reverse max Demand", AccessRead},
	{0xF4A1, 10, EncodingRateSummary8, -4, "kW", "Last 10 month reverse max Demand", AccessRead},
	{0xF4B1, 10, EncodingRateSummary8, -4, "kW", "Last 11 month reverse max Demand", AccessRead},
	{0xF4C1, 10, EncodingRateSummary8, -4, "kW", "Last 12 month reverse max Demand", AccessRead},
	{0xF500, 2, EncodingIntervals, 0, "", "Intervals & Times", AccessRead},
	{0xF600, 0, EncodingMeterNumber, 0, "", "Meter Number", AccessRead},
	{0xF700, 15, EncodingTariff, 0, "", "Tariff", AccessRead},
	{0xF800, 2, EncodingUnsignedInt32, 0, "Baud", "Baud Rate", AccessWrite},
	{0xFA01, 10, EncodingRateSummary8, -4, "kW", "Current month positive max Demand", AccessRead},
	{0xFB01, 10, EncodingRateSummary8, -4, "kW", "Current month reverse max Demand", AccessRead},
}
