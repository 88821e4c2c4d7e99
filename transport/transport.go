// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package transport

import (
	"context"
	"fmt"

	"github.com/ffutop/drt301m/modbus"
)

// Downstream represents the meter we talk to (we are the Modbus master).
// Each backend wraps the PDU in its own ADU (RTU, RTU over TCP, MBAP).
type Downstream interface {
	// Send sends a PDU to a specific SlaveID and returns the response PDU.
	// An exception response is returned as a PDU, not as an error.
	Send(ctx context.Context, slaveID byte, pdu modbus.ProtocolDataUnit) (modbus.ProtocolDataUnit, error)
	Connect(ctx context.Context) error
	Close() error
}

// RequestHandler answers one request. Returning an error suppresses the
// response, as a meter does for frames that are not meant for it.
type RequestHandler func(ctx context.Context, slaveID byte, pdu modbus.ProtocolDataUnit) (modbus.ProtocolDataUnit, error)

// Upstream is a listener a Modbus master connects to (we are the slave).
// Start blocks until ctx is done or the listener fails.
type Upstream interface {
	Start(ctx context.Context, handler RequestHandler) error
	Close() error
}

// Error is returned by every Session operation that fails.
type Error struct {
	Op      string // "connect", "read", "send", "receive"
	SlaveID byte
	Address uint16
	Err     error
}

func (e *Error) Error() string {
	if e.Op == "read" || e.Op == "send" {
		return fmt.Sprintf("transport: %s slave %d address 0x%04X: %v", e.Op, e.SlaveID, e.Address, e.Err)
	}
	return fmt.Sprintf("transport: %s slave %d: %v", e.Op, e.SlaveID, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
