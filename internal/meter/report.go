// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package meter

import (
	"context"
	"fmt"
	"io"

	"github.com/ffutop/drt301m/internal/register"
)

// Report is a predefined group of registers dumped together.
type Report struct {
	Name      string
	Addresses []uint16
}

// reports are numbered from 1.
var reports = []Report{
	{
		Name:      "Import energy",
		Addresses: []uint16{0x0160},
	},
	{
		Name: "Voltage and current",
		Addresses: []uint16{
			0x0010, 0x0012, 0x0014,
			0x0050, 0x0052, 0x0054, 0x0056,
		},
	},
	{
		Name: "Power and power factor",
		Addresses: []uint16{
			0x0090, 0x0092, 0x0094, 0x0096, // active
			0x00D0, 0x00D2, 0x00D4, 0x00D6, // apparent
			0x0110, 0x0112, 0x0114, 0x0116, // reactive
			0x0150, 0x0152, 0x0154, 0x0156, // cos phi
		},
	},
	{
		Name:      "Last month energy by tariff",
		Addresses: []uint16{0xF111},
	},
}

func init() {
	for i, r := range reports {
		for _, a := range r.Addresses {
			if _, err := register.DRT301M().Lookup(a); err != nil {
				panic(fmt.Sprintf("meter: report %d: %v", i+1, err))
			}
		}
	}
}

// Reports returns the predefined reports; report n is at index n-1.
func Reports() []Report {
	out := make([]Report, len(reports))
	copy(out, reports)
	return out
}

// LookupReport returns report n.
func LookupReport(n int) (Report, error) {
	if n < 1 || n > len(reports) {
		return Report{}, &UnknownReportError{Report: n}
	}
	return reports[n-1], nil
}

// Report dumps every register of report n to w.
func (m *Meter) Report(ctx context.Context, n int, w io.Writer) error {
	r, err := LookupReport(n)
	if err != nil {
		return err
	}
	m.logger.Debug("Running report", "report", n, "name", r.Name)
	return m.Dump(ctx, r.Addresses, w)
}
