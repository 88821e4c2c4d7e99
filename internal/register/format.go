// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package register

import "strings"

// FormatOptions toggles the decorations around a rendered value.
type FormatOptions struct {
	ShowUnit        bool // append the unit right after each number
	ShowDescription bool // prefix "<description>: "
}

// Format renders v. The two options are independent of each other and of
// the number of digits rendered.
func Format(v Value, opts FormatOptions) string {
	var sb strings.Builder
	def := v.Definition()

	if opts.ShowDescription && def.Description != "" {
		sb.WriteString(def.Description)
		sb.WriteString(": ")
	}

	unit := ""
	if opts.ShowUnit {
		unit = def.Unit
	}

	switch v := v.(type) {
	case RateSummaryValue:
		for i, s := range v.Strings() {
			if i > 0 {
				sb.WriteByte(' ')
			}
			sb.WriteString(s)
			sb.WriteString(unit)
		}
	case DisabledValue, NotImplementedValue:
		sb.WriteString(v.String())
	default:
		sb.WriteString(v.String())
		sb.WriteString(unit)
	}
	return sb.String()
}
