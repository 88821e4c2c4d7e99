// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package transport

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ffutop/drt301m/modbus"
	rtupacket "github.com/ffutop/drt301m/modbus/rtu"
)

// ErrNoPendingRequest is returned by ReceiveConfirmation when no raw frame
// was sent since the last confirmation.
var ErrNoPendingRequest = errors.New("no raw request pending")

// Session is one synchronous master session against a single meter.
// It is not safe for concurrent use; requests are strictly sequential.
type Session struct {
	ds Downstream

	pending      bool
	confirmation []byte
	pendingErr   error
}

// NewSession wraps a downstream backend.
func NewSession(ds Downstream) *Session {
	return &Session{ds: ds}
}

// Connect opens the underlying backend.
func (s *Session) Connect(ctx context.Context) error {
	if err := s.ds.Connect(ctx); err != nil {
		return &Error{Op: "connect", Err: err}
	}
	return nil
}

// Close releases the underlying backend.
func (s *Session) Close() error {
	s.pending = false
	s.confirmation = nil
	return s.ds.Close()
}

// ReadHoldingRegisters issues function code 0x03 and returns the words of
// the response. The number of returned words is what the slave sent; the
// caller checks it against what it expects.
func (s *Session) ReadHoldingRegisters(ctx context.Context, slaveID byte, address, quantity uint16) ([]uint16, error) {
	if quantity < 1 || quantity > modbus.MaxReadRegisters {
		return nil, &Error{Op: "read", SlaveID: slaveID, Address: address,
			Err: fmt.Errorf("quantity %d out of range 1-%d", quantity, modbus.MaxReadRegisters)}
	}

	data := make([]byte, 4)
	binary.BigEndian.PutUint16(data[0:], address)
	binary.BigEndian.PutUint16(data[2:], quantity)

	resp, err := s.ds.Send(ctx, slaveID, modbus.ProtocolDataUnit{
		FunctionCode: modbus.FuncCodeReadHoldingRegisters,
		Data:         data,
	})
	if err != nil {
		return nil, &Error{Op: "read", SlaveID: slaveID, Address: address, Err: err}
	}
	if err := resp.Exception(); err != nil {
		return nil, &Error{Op: "read", SlaveID: slaveID, Address: address, Err: err}
	}

	words, err := registerWords(resp)
	if err != nil {
		return nil, &Error{Op: "read", SlaveID: slaveID, Address: address, Err: err}
	}
	slog.Debug("read holding registers", "slave", slaveID, "address", fmt.Sprintf("0x%04X", address), "words", len(words))
	return words, nil
}

func registerWords(resp modbus.ProtocolDataUnit) ([]uint16, error) {
	if resp.FunctionCode != modbus.FuncCodeReadHoldingRegisters {
		return nil, fmt.Errorf("unexpected function code %d in response", resp.FunctionCode)
	}
	if len(resp.Data) < 1 {
		return nil, fmt.Errorf("empty response")
	}
	count := int(resp.Data[0])
	if count%2 != 0 || len(resp.Data)-1 != count {
		return nil, fmt.Errorf("byte count %d does not match payload of %d bytes", count, len(resp.Data)-1)
	}
	words := make([]uint16, count/2)
	for i := range words {
		words[i] = binary.BigEndian.Uint16(resp.Data[1+2*i:])
	}
	return words, nil
}

// SendRawFrame sends a hand-built request (slave id, function code, data;
// the backend adds its own framing) and keeps the answer for
// ReceiveConfirmation. It returns the number of request bytes handed over.
func (s *Session) SendRawFrame(ctx context.Context, frame []byte) (int, error) {
	adu, err := rtupacket.SplitFrame(frame)
	if err != nil {
		return 0, &Error{Op: "send", Err: err}
	}
	var address uint16
	if len(adu.Pdu.Data) >= 2 {
		address = binary.BigEndian.Uint16(adu.Pdu.Data)
	}

	slog.Debug("send raw frame", "frame", hex.EncodeToString(frame))
	resp, err := s.ds.Send(ctx, adu.SlaveID, adu.Pdu)
	if err != nil {
		s.pending = false
		return 0, &Error{Op: "send", SlaveID: adu.SlaveID, Address: address, Err: err}
	}

	s.pending = true
	s.pendingErr = nil
	s.confirmation = nil
	if err := resp.Exception(); err != nil {
		s.pendingErr = &Error{Op: "receive", SlaveID: adu.SlaveID, Err: err}
		return len(frame), nil
	}
	s.confirmation = (&rtupacket.ApplicationDataUnit{SlaveID: adu.SlaveID, Pdu: resp}).Bytes()
	return len(frame), nil
}

// ReceiveConfirmation returns the response to the last raw frame, without
// CRC or transport header.
func (s *Session) ReceiveConfirmation(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, &Error{Op: "receive", Err: err}
	}
	if !s.pending {
		return nil, &Error{Op: "receive", Err: ErrNoPendingRequest}
	}
	s.pending = false
	if s.pendingErr != nil {
		err := s.pendingErr
		s.pendingErr = nil
		return nil, err
	}
	slog.Debug("receive confirmation", "frame", hex.EncodeToString(s.confirmation))
	return s.confirmation, nil
}
