// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package meter

import (
	"errors"
	"fmt"
	"time"

	"github.com/ffutop/drt301m/internal/register"
)

// ErrNoConfirmation is returned when a write is answered with an empty
// confirmation.
var ErrNoConfirmation = errors.New("meter: empty confirmation")

// LengthError is returned when the meter answers a read with a different
// number of words than the register holds.
type LengthError struct {
	Address uint16
	Want    int
	Got     int
}

func (e *LengthError) Error() string {
	return fmt.Sprintf("register 0x%04X: got %d words, want %d", e.Address, e.Got, e.Want)
}

// AccessError is returned when an operation is not allowed on a register.
type AccessError struct {
	Address uint16
	Op      string
	Access  register.Access
}

func (e *AccessError) Error() string {
	return fmt.Sprintf("register 0x%04X is %q, cannot %s", e.Address, e.Access, e.Op)
}

// DriftError is returned by CheckClock when the meter clock is off by more
// than the tolerance.
type DriftError struct {
	Drift     time.Duration
	Tolerance time.Duration
}

func (e *DriftError) Error() string {
	return fmt.Sprintf("meter clock off by %v, tolerance %v", e.Drift, e.Tolerance)
}

// UnknownReportError is returned for a report number without a definition.
type UnknownReportError struct {
	Report int
}

func (e *UnknownReportError) Error() string {
	return fmt.Sprintf("unknown report %d, want 1-%d", e.Report, len(reports))
}
