// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package meter reads and writes a DRT-301M through a Modbus session,
// using the register catalog to decode what comes back.
package meter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/ffutop/drt301m/internal/frame"
	"github.com/ffutop/drt301m/internal/register"
	"github.com/ffutop/drt301m/modbus"
)

// Session is the part of a Modbus master session the meter needs.
type Session interface {
	ReadHoldingRegisters(ctx context.Context, slaveID byte, address, quantity uint16) ([]uint16, error)
	SendRawFrame(ctx context.Context, frame []byte) (int, error)
	ReceiveConfirmation(ctx context.Context) ([]byte, error)
}

// Options configures a Meter.
type Options struct {
	SlaveID byte
	Format  register.FormatOptions
}

// Meter is one DRT-301M on a session. Requests are sequential; a Meter is
// not safe for concurrent use.
type Meter struct {
	session Session
	catalog *register.Catalog
	opts    Options
	logger  *slog.Logger
}

// New creates a Meter. A nil catalog selects the built-in DRT-301M table.
func New(s Session, catalog *register.Catalog, opts Options) *Meter {
	if catalog == nil {
		catalog = register.DRT301M()
	}
	return &Meter{
		session: s,
		catalog: catalog,
		opts:    opts,
		logger:  slog.Default().With("slave", opts.SlaveID),
	}
}

// ListCatalog writes one line per catalog entry to w.
func (m *Meter) ListCatalog(w io.Writer) error {
	for _, def := range m.catalog.All() {
		if _, err := fmt.Fprintln(w, def); err != nil {
			return err
		}
	}
	return nil
}

// Read fetches and decodes the register at address. Disabled registers
// are answered without any bus traffic.
func (m *Meter) Read(ctx context.Context, address uint16) (register.Value, error) {
	def, err := m.catalog.Lookup(address)
	if err != nil {
		return nil, err
	}
	if !def.Access.Readable() {
		return nil, &AccessError{Address: address, Op: "read", Access: def.Access}
	}
	if def.Kind() == register.EncodingDisabled {
		return register.Decode(def, nil), nil
	}

	words, err := m.session.ReadHoldingRegisters(ctx, m.opts.SlaveID, def.Address, def.WordCount)
	if err != nil {
		return nil, err
	}
	if len(words) != int(def.WordCount) {
		return nil, &LengthError{Address: address, Want: int(def.WordCount), Got: len(words)}
	}
	return register.Decode(def, words), nil
}

// DecodeAndFormat reads the register at address and renders it with the
// meter's format options.
func (m *Meter) DecodeAndFormat(ctx context.Context, address uint16) (string, error) {
	v, err := m.Read(ctx, address)
	if err != nil {
		return "", err
	}
	return register.Format(v, m.opts.Format), nil
}

// Dump writes one line per address to w. A failing register does not stop
// the dump; every failure is logged and the joined errors are returned.
func (m *Meter) Dump(ctx context.Context, addresses []uint16, w io.Writer) error {
	var errs []error
	for _, a := range addresses {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		s, err := m.DecodeAndFormat(ctx, a)
		if err != nil {
			m.logger.Error("Failed to read register", "address", fmt.Sprintf("0x%04X", a), "err", err)
			errs = append(errs, fmt.Errorf("0x%04X: %w", a, err))
			continue
		}
		if _, err := fmt.Fprintln(w, s); err != nil {
			return err
		}
	}
	return errors.Join(errs...)
}

// SetClock writes the wall clock of t (in t's location) to the meter.
func (m *Meter) SetClock(ctx context.Context, t time.Time) error {
	f, err := frame.SetClock(m.opts.SlaveID, frame.ClockFromTime(t))
	if err != nil {
		return err
	}
	m.logger.Info("Setting meter clock", "clock", frame.ClockFromTime(t))
	return m.write(ctx, f)
}

// SetBaudRate switches the meter to rate. The meter answers at the old
// rate; later requests need the new one.
func (m *Meter) SetBaudRate(ctx context.Context, rate int) error {
	f, err := frame.SetBaudRate(m.opts.SlaveID, rate)
	if err != nil {
		return err
	}
	m.logger.Info("Setting meter baud rate", "rate", rate)
	return m.write(ctx, f)
}

func (m *Meter) write(ctx context.Context, f frame.WriteFrame) error {
	if def, err := m.catalog.Lookup(f.Address()); err == nil && !def.Access.Writable() {
		return &AccessError{Address: f.Address(), Op: "write", Access: def.Access}
	}

	n, err := m.session.SendRawFrame(ctx, f.Bytes())
	if err != nil {
		return err
	}
	if n != f.Len() {
		return fmt.Errorf("write 0x%04X: sent %d of %d bytes", f.Address(), n, f.Len())
	}

	resp, err := m.session.ReceiveConfirmation(ctx)
	if err != nil {
		return err
	}
	if len(resp) == 0 {
		return ErrNoConfirmation
	}
	if len(resp) >= 2 && resp[1] != modbus.FuncCodeWriteMultipleRegisters {
		return fmt.Errorf("write 0x%04X: unexpected function code %d in confirmation", f.Address(), resp[1])
	}
	m.logger.Debug("Write confirmed", "address", fmt.Sprintf("0x%04X", f.Address()), "bytes", len(resp))
	return nil
}

// CheckClock reads the meter clock and compares it with now. It returns
// the drift (meter minus host) and a *DriftError when the drift exceeds
// tolerance in either direction.
func (m *Meter) CheckClock(ctx context.Context, now time.Time, tolerance time.Duration) (time.Duration, error) {
	v, err := m.Read(ctx, frame.ClockAddress)
	if err != nil {
		return 0, err
	}
	ts, ok := v.(register.TimestampValue)
	if !ok {
		return 0, fmt.Errorf("register 0x%04X is not a clock", frame.ClockAddress)
	}
	t, err := ts.Time(now.Location())
	if err != nil {
		return 0, err
	}

	drift := t.Sub(now.Truncate(time.Second))
	m.logger.Debug("Meter clock", "meter", ts.String(), "drift", drift)
	if drift > tolerance || -drift > tolerance {
		return drift, &DriftError{Drift: drift, Tolerance: tolerance}
	}
	return drift, nil
}
