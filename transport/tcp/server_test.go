// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.
package tcp

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ffutop/drt301m/internal/config"
	"github.com/ffutop/drt301m/modbus"
	"github.com/ffutop/drt301m/transport"
)

// startTestServer runs s with handler and waits until it listens.
func startTestServer(t *testing.T, handler transport.RequestHandler) *Server {
	t.Helper()
	s := NewServer("127.0.0.1:0")
	ctx, cancel := context.WithCancel(context.Background())

	errChan := make(chan error, 1)
	go func() {
		errChan <- s.Start(ctx, handler)
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-errChan:
			if err != nil {
				t.Errorf("Start returned %v", err)
			}
		case <-time.After(time.Second):
			t.Error("server did not stop")
		}
	})

	for i := 0; i < 100 && s.Addr() == nil; i++ {
		time.Sleep(10 * time.Millisecond)
	}
	if s.Addr() == nil {
		t.Fatal("server did not start")
	}
	return s
}

func TestServer_Start_And_Handle(t *testing.T) {
	handler := func(ctx context.Context, slaveID byte, pdu modbus.ProtocolDataUnit) (modbus.ProtocolDataUnit, error) {
		if slaveID != 1 {
			return modbus.ProtocolDataUnit{}, errors.New("not addressed to us")
		}
		switch pdu.FunctionCode {
		case modbus.FuncCodeReadHoldingRegisters:
			return modbus.ProtocolDataUnit{FunctionCode: 0x03, Data: []byte{0x02, 0xAA, 0xBB}}, nil
		case modbus.FuncCodeWriteMultipleRegisters:
			return modbus.ProtocolDataUnit{FunctionCode: 0x10, Data: pdu.Data[:4]}, nil
		}
		return modbus.ProtocolDataUnit{FunctionCode: pdu.FunctionCode | modbus.ExceptionFlag, Data: []byte{1}}, nil
	}
	s := startTestServer(t, handler)

	c := NewClient(config.TcpConfig{Address: s.Addr().String(), Timeout: 200 * time.Millisecond})
	defer c.Close()
	ctx := context.Background()

	resp, err := c.Send(ctx, 1, modbus.ProtocolDataUnit{FunctionCode: 0x03, Data: []byte{0x00, 0x10, 0x00, 0x01}})
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if !bytes.Equal(resp.Data, []byte{0x02, 0xAA, 0xBB}) {
		t.Errorf("read response = % X", resp.Data)
	}

	resp, err = c.Send(ctx, 1, modbus.ProtocolDataUnit{FunctionCode: 0x10, Data: []byte{0xF8, 0x00, 0x00, 0x01, 0x02, 0x00, 0x04}})
	if err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if !bytes.Equal(resp.Data, []byte{0xF8, 0x00, 0x00, 0x01}) {
		t.Errorf("write response = % X", resp.Data)
	}

	resp, err = c.Send(ctx, 1, modbus.ProtocolDataUnit{FunctionCode: 0x2B, Data: []byte{0x0E, 0x01, 0x00}})
	if err != nil {
		t.Fatalf("unsupported function failed: %v", err)
	}
	if !resp.IsException() {
		t.Errorf("expected exception response, got %+v", resp)
	}
}

func TestServer_Unanswered(t *testing.T) {
	s := startTestServer(t, func(ctx context.Context, slaveID byte, pdu modbus.ProtocolDataUnit) (modbus.ProtocolDataUnit, error) {
		return modbus.ProtocolDataUnit{}, errors.New("silent")
	})

	c := NewClient(config.TcpConfig{Address: s.Addr().String(), Timeout: 100 * time.Millisecond})
	defer c.Close()
	if _, err := c.Send(context.Background(), 2, modbus.ProtocolDataUnit{FunctionCode: 0x03, Data: []byte{0, 0, 0, 1}}); err == nil {
		t.Error("expected timeout for an unanswered request")
	}
}
