// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package meter

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/ffutop/drt301m/internal/config"
	"github.com/ffutop/drt301m/internal/frame"
	"github.com/ffutop/drt301m/internal/register"
	"github.com/ffutop/drt301m/modbus"
	"github.com/ffutop/drt301m/transport"
	"github.com/ffutop/drt301m/transport/local"
)

// fakeSession answers reads from a register map and records raw frames.
type fakeSession struct {
	words   map[uint16][]uint16
	readErr map[uint16]error
	reads   []uint16

	sent         [][]byte
	confirmation []byte
	confirmErr   error
}

func (f *fakeSession) ReadHoldingRegisters(ctx context.Context, slaveID byte, address, quantity uint16) ([]uint16, error) {
	f.reads = append(f.reads, address)
	if err := f.readErr[address]; err != nil {
		return nil, err
	}
	return f.words[address], nil
}

func (f *fakeSession) SendRawFrame(ctx context.Context, frame []byte) (int, error) {
	f.sent = append(f.sent, frame)
	return len(frame), nil
}

func (f *fakeSession) ReceiveConfirmation(ctx context.Context) ([]byte, error) {
	return f.confirmation, f.confirmErr
}

func TestMeter_DecodeAndFormat(t *testing.T) {
	s := &fakeSession{words: map[uint16][]uint16{
		0x0010: {0x0000, 0x00E6},
		0x0050: {0x0000, 0x04D2},
	}}
	m := New(s, nil, Options{SlaveID: 1, Format: register.FormatOptions{ShowUnit: true, ShowDescription: true}})

	tests := []struct {
		address uint16
		want    string
	}{
		{0x0010, "Voltage L1: 230V"},
		{0x0050, "Current L1: 12.34A"},
	}
	for _, tt := range tests {
		got, err := m.DecodeAndFormat(context.Background(), tt.address)
		if err != nil {
			t.Fatalf("DecodeAndFormat(0x%04X) failed: %v", tt.address, err)
		}
		if got != tt.want {
			t.Errorf("DecodeAndFormat(0x%04X) = %q, want %q", tt.address, got, tt.want)
		}
	}
}

func TestMeter_ReadErrors(t *testing.T) {
	busErr := &transport.Error{Op: "read", SlaveID: 1, Address: 0x0012, Err: errors.New("timeout")}
	s := &fakeSession{
		words: map[uint16][]uint16{
			0x0010: {0x0000},
		},
		readErr: map[uint16]error{0x0012: busErr},
	}
	m := New(s, nil, Options{SlaveID: 1})
	ctx := context.Background()

	var le *LengthError
	if _, err := m.Read(ctx, 0x0010); !errors.As(err, &le) || le.Got != 1 || le.Want != 2 {
		t.Errorf("expected *LengthError 1/2, got %v", err)
	}

	var te *transport.Error
	if _, err := m.Read(ctx, 0x0012); !errors.As(err, &te) {
		t.Errorf("expected *transport.Error, got %v", err)
	}

	var nf *register.NotFoundError
	if _, err := m.Read(ctx, 0x0011); !errors.As(err, &nf) || nf.Address != 0x0011 {
		t.Errorf("expected *register.NotFoundError, got %v", err)
	}
}

func TestMeter_NoBusTraffic(t *testing.T) {
	s := &fakeSession{}
	m := New(s, nil, Options{SlaveID: 1})
	ctx := context.Background()

	v, err := m.Read(ctx, 0xF600)
	if err != nil {
		t.Fatalf("Read(0xF600) failed: %v", err)
	}
	if _, ok := v.(register.DisabledValue); !ok {
		t.Errorf("0xF600 decoded as %T, want DisabledValue", v)
	}

	var ae *AccessError
	if _, err := m.Read(ctx, frame.BaudRateAddress); !errors.As(err, &ae) {
		t.Errorf("expected *AccessError for write-only register, got %v", err)
	}

	if len(s.reads) != 0 {
		t.Errorf("expected no reads, got %v", s.reads)
	}
}

func TestMeter_DumpContinuesOnError(t *testing.T) {
	s := &fakeSession{
		words: map[uint16][]uint16{
			0x0010: {0x0000, 0x00E6},
			0x0014: {0x0000, 0x00E8},
		},
		readErr: map[uint16]error{0x0012: errors.New("no response")},
	}
	m := New(s, nil, Options{SlaveID: 1})

	var out bytes.Buffer
	err := m.Dump(context.Background(), []uint16{0x0010, 0x0012, 0x0013, 0x0014}, &out)
	if err == nil {
		t.Fatal("expected error")
	}
	if out.String() != "230\n232\n" {
		t.Errorf("output = %q", out.String())
	}
	for _, want := range []string{"0x0012", "0x0013"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not name %s", err, want)
		}
	}
	var nf *register.NotFoundError
	if !errors.As(err, &nf) {
		t.Error("joined error should unwrap to *register.NotFoundError")
	}
}

func TestMeter_ListCatalog(t *testing.T) {
	m := New(&fakeSession{}, nil, Options{})
	var out bytes.Buffer
	if err := m.ListCatalog(&out); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSuffix(out.String(), "\n"), "\n")
	if len(lines) != register.DRT301M().Len() {
		t.Fatalf("got %d lines, want %d", len(lines), register.DRT301M().Len())
	}
	if !strings.HasPrefix(lines[0], "0x0010    2    1    0") {
		t.Errorf("first line = %q", lines[0])
	}
}

func TestMeter_SetClock(t *testing.T) {
	s := &fakeSession{confirmation: []byte{0x01, 0x10, 0xF0, 0x00, 0x00, 0x04}}
	m := New(s, nil, Options{SlaveID: 1})

	tm := time.Date(2024, 3, 7, 14, 22, 5, 0, time.UTC)
	if err := m.SetClock(context.Background(), tm); err != nil {
		t.Fatalf("SetClock failed: %v", err)
	}
	want := []byte{0x01, 0x10, 0xF0, 0x00, 0x00, 0x04, 0x08, 0x05, 0x22, 0x14, 0x04, 0x07, 0x03, 0x24, 0x20}
	if len(s.sent) != 1 || !bytes.Equal(s.sent[0], want) {
		t.Errorf("sent % X, want % X", s.sent, want)
	}
}

func TestMeter_WriteConfirmation(t *testing.T) {
	ctx := context.Background()

	s := &fakeSession{}
	if err := New(s, nil, Options{SlaveID: 1}).SetBaudRate(ctx, 9600); !errors.Is(err, ErrNoConfirmation) {
		t.Errorf("expected ErrNoConfirmation, got %v", err)
	}

	exc := &transport.Error{Op: "receive", SlaveID: 1, Err: &modbus.ExceptionError{FunctionCode: 16, ExceptionCode: 2}}
	s = &fakeSession{confirmErr: exc}
	var me *modbus.ExceptionError
	if err := New(s, nil, Options{SlaveID: 1}).SetBaudRate(ctx, 9600); !errors.As(err, &me) {
		t.Errorf("expected *modbus.ExceptionError, got %v", err)
	}

	s = &fakeSession{}
	var ue *frame.UnsupportedBaudRateError
	if err := New(s, nil, Options{SlaveID: 1}).SetBaudRate(ctx, 19200); !errors.As(err, &ue) {
		t.Errorf("expected *frame.UnsupportedBaudRateError, got %v", err)
	}
	if len(s.sent) != 0 {
		t.Error("nothing should be sent for an unsupported rate")
	}
}

func TestMeter_CheckClock(t *testing.T) {
	s := &fakeSession{words: map[uint16][]uint16{
		frame.ClockAddress: {0x0522, 0x1404, 0x0703, 0x2420},
	}}
	m := New(s, nil, Options{SlaveID: 1})
	ctx := context.Background()

	now := time.Date(2024, 3, 7, 14, 22, 35, 0, time.UTC)
	drift, err := m.CheckClock(ctx, now, time.Minute)
	if err != nil {
		t.Fatalf("CheckClock failed: %v", err)
	}
	if drift != -30*time.Second {
		t.Errorf("drift = %v, want -30s", drift)
	}

	var de *DriftError
	if _, err := m.CheckClock(ctx, now, 10*time.Second); !errors.As(err, &de) {
		t.Errorf("expected *DriftError, got %v", err)
	}
}

func TestReports(t *testing.T) {
	wantLen := []int{1, 7, 16, 1}
	for i, n := range wantLen {
		r, err := LookupReport(i + 1)
		if err != nil {
			t.Fatalf("LookupReport(%d) failed: %v", i+1, err)
		}
		if len(r.Addresses) != n {
			t.Errorf("report %d has %d registers, want %d", i+1, len(r.Addresses), n)
		}
	}

	var ue *UnknownReportError
	for _, n := range []int{0, 5} {
		if _, err := LookupReport(n); !errors.As(err, &ue) {
			t.Errorf("LookupReport(%d): expected *UnknownReportError, got %v", n, err)
		}
	}
}

func newLocalMeter(t *testing.T, presets map[string]uint16, opts Options) *Meter {
	t.Helper()
	c, err := local.NewClient(config.LocalConfig{Registers: presets})
	if err != nil {
		t.Fatalf("local.NewClient failed: %v", err)
	}
	s := transport.NewSession(c)
	if err := s.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return New(s, nil, opts)
}

func TestMeter_LocalReport(t *testing.T) {
	m := newLocalMeter(t, map[string]uint16{
		"0xF112": 100, "0xF114": 200, "0xF116": 300, "0xF118": 400,
	}, Options{SlaveID: 1, Format: register.FormatOptions{ShowUnit: true}})

	var out bytes.Buffer
	if err := m.Report(context.Background(), 4, &out); err != nil {
		t.Fatalf("Report failed: %v", err)
	}
	if got := out.String(); got != "1.00kWh 2.00kWh 3.00kWh 4.00kWh\n" {
		t.Errorf("report = %q", got)
	}
}

func TestMeter_LocalClockRoundTrip(t *testing.T) {
	m := newLocalMeter(t, nil, Options{SlaveID: 1})
	ctx := context.Background()

	now := time.Date(2031, 12, 31, 23, 59, 58, 0, time.Local)
	if err := m.SetClock(ctx, now); err != nil {
		t.Fatalf("SetClock failed: %v", err)
	}
	drift, err := m.CheckClock(ctx, now, 0)
	if err != nil {
		t.Fatalf("CheckClock failed: %v", err)
	}
	if drift != 0 {
		t.Errorf("drift = %v, want 0", drift)
	}

	got, err := m.DecodeAndFormat(ctx, frame.ClockAddress)
	if err != nil {
		t.Fatal(err)
	}
	if got != "2031-12-31 23:59:58 03" {
		t.Errorf("clock = %q", got)
	}
}

func TestMeter_LocalSetBaudRate(t *testing.T) {
	m := newLocalMeter(t, nil, Options{SlaveID: 1})
	if err := m.SetBaudRate(context.Background(), 2400); err != nil {
		t.Fatalf("SetBaudRate failed: %v", err)
	}
}
