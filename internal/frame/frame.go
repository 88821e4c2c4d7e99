// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package frame builds the raw write requests the DRT-301M accepts:
// setting its clock and changing its baud rate.
package frame

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/ffutop/drt301m/modbus"
)

const (
	ClockAddress    = 0xF000
	BaudRateAddress = 0xF800

	headerSize = 7
)

// WriteFrame is a write-multiple-registers request without CRC:
//
//	Slave Address   : 1 byte
//	Function        : 1 byte (0x10)
//	Start Address   : 2 bytes
//	Quantity        : 2 bytes
//	Byte Count      : 1 byte
//	Payload         : Byte Count bytes
//
// A WriteFrame never changes after it is built.
type WriteFrame struct {
	raw []byte
}

func newWriteFrame(slaveID byte, address uint16, payload []byte) WriteFrame {
	raw := make([]byte, headerSize, headerSize+len(payload))
	raw[0] = slaveID
	raw[1] = modbus.FuncCodeWriteMultipleRegisters
	binary.BigEndian.PutUint16(raw[2:], address)
	binary.BigEndian.PutUint16(raw[4:], uint16(len(payload)/2))
	raw[6] = byte(len(payload))
	return WriteFrame{raw: append(raw, payload...)}
}

// Bytes returns a copy of the frame.
func (f WriteFrame) Bytes() []byte {
	out := make([]byte, len(f.raw))
	copy(out, f.raw)
	return out
}

func (f WriteFrame) Len() int           { return len(f.raw) }
func (f WriteFrame) SlaveID() byte      { return f.raw[0] }
func (f WriteFrame) FunctionCode() byte { return f.raw[1] }
func (f WriteFrame) Address() uint16    { return binary.BigEndian.Uint16(f.raw[2:]) }
func (f WriteFrame) Quantity() uint16   { return binary.BigEndian.Uint16(f.raw[4:]) }
func (f WriteFrame) ByteCount() byte    { return f.raw[6] }

// Payload returns a copy of the register data.
func (f WriteFrame) Payload() []byte {
	out := make([]byte, len(f.raw)-headerSize)
	copy(out, f.raw[headerSize:])
	return out
}

func (f WriteFrame) String() string {
	return fmt.Sprintf("% X", f.raw)
}

// ClockTime is a wall clock as the meter stores it. Weekday counts from
// 0 (Sunday) to 6.
type ClockTime struct {
	Year    int
	Month   int
	Day     int
	Hour    int
	Minute  int
	Second  int
	Weekday int
}

// ClockFromTime takes the wall clock of t in t's location.
func ClockFromTime(t time.Time) ClockTime {
	return ClockTime{
		Year:    t.Year(),
		Month:   int(t.Month()),
		Day:     t.Day(),
		Hour:    t.Hour(),
		Minute:  t.Minute(),
		Second:  t.Second(),
		Weekday: int(t.Weekday()),
	}
}

func (c ClockTime) String() string {
	return fmt.Sprintf("%04d-%02d-%02d %02d:%02d:%02d %02d", c.Year, c.Month, c.Day, c.Hour, c.Minute, c.Second, c.Weekday)
}

// ClockFieldError reports a clock field the meter cannot store.
type ClockFieldError struct {
	Field    string
	Value    int
	Min, Max int
}

func (e *ClockFieldError) Error() string {
	return fmt.Sprintf("clock %s %d out of range %d-%d", e.Field, e.Value, e.Min, e.Max)
}

// Validate checks every field against the range the meter accepts.
func (c ClockTime) Validate() error {
	fields := []struct {
		name     string
		v        int
		min, max int
	}{
		{"year", c.Year, 2000, 2099},
		{"month", c.Month, 1, 12},
		{"day", c.Day, 1, 31},
		{"hour", c.Hour, 0, 23},
		{"minute", c.Minute, 0, 59},
		{"second", c.Second, 0, 59},
		{"weekday", c.Weekday, 0, 6},
	}
	for _, f := range fields {
		if f.v < f.min || f.v > f.max {
			return &ClockFieldError{Field: f.name, Value: f.v, Min: f.min, Max: f.max}
		}
	}
	return nil
}

// SetClock builds the request writing c to the four clock registers.
// Each field is one BCD byte:
//
//	sec, min, hour, weekday, day, month, year-2000, 20
func SetClock(slaveID byte, c ClockTime) (WriteFrame, error) {
	if err := c.Validate(); err != nil {
		return WriteFrame{}, err
	}
	payload := []byte{
		bcd(c.Second),
		bcd(c.Minute),
		bcd(c.Hour),
		bcd(c.Weekday),
		bcd(c.Day),
		bcd(c.Month),
		bcd(c.Year - 2000),
		bcd(20),
	}
	return newWriteFrame(slaveID, ClockAddress, payload), nil
}

func bcd(n int) byte {
	return byte(n/10*16 + n%10)
}

// UnsupportedBaudRateError is returned for a rate the meter cannot switch to.
type UnsupportedBaudRateError struct {
	Rate int
}

func (e *UnsupportedBaudRateError) Error() string {
	return fmt.Sprintf("%d baud not supported, use 1200, 2400, 4800 or 9600", e.Rate)
}

var baudRateCodes = map[int]byte{
	1200: 1,
	2400: 2,
	4800: 3,
	9600: 4,
}

// BaudRateCode returns the register value selecting rate.
func BaudRateCode(rate int) (byte, error) {
	code, ok := baudRateCodes[rate]
	if !ok {
		return 0, &UnsupportedBaudRateError{Rate: rate}
	}
	return code, nil
}

// SetBaudRate builds the request switching the meter to rate.
func SetBaudRate(slaveID byte, rate int) (WriteFrame, error) {
	code, err := BaudRateCode(rate)
	if err != nil {
		return WriteFrame{}, err
	}
	return newWriteFrame(slaveID, BaudRateAddress, []byte{0x00, code}), nil
}
