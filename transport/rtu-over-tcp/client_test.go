// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package rtuovertcp

import (
	"bytes"
	"context"
	"net"
	"testing"
	"time"

	"github.com/ffutop/drt301m/internal/config"
	"github.com/ffutop/drt301m/modbus"
	"github.com/ffutop/drt301m/modbus/crc"
)

// serveOnce accepts one connection and answers every request with resp.
func serveOnce(t *testing.T, resp []byte) (string, <-chan []byte) {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { listener.Close() })

	requests := make(chan []byte, 4)
	go func() {
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		buf := make([]byte, 256)
		for {
			n, err := conn.Read(buf)
			if err != nil {
				return
			}
			requests <- append([]byte(nil), buf[:n]...)
			if resp != nil {
				conn.Write(resp)
			}
		}
	}()
	return listener.Addr().String(), requests
}

func TestClient_Send(t *testing.T) {
	// answer with noise in front of the frame
	resp := append([]byte{0x00}, crc.Append([]byte{0x01, 0x03, 0x04, 0x00, 0x00, 0x00, 0x64})...)
	addr, requests := serveOnce(t, resp)

	client := NewClient(config.TcpConfig{Address: addr, Timeout: time.Second})
	defer client.Close()

	pdu := modbus.ProtocolDataUnit{FunctionCode: 0x03, Data: []byte{0x00, 0x10, 0x00, 0x02}}
	got, err := client.Send(context.Background(), 1, pdu)
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if !bytes.Equal(got.Data, []byte{0x04, 0x00, 0x00, 0x00, 0x64}) {
		t.Errorf("unexpected response data % X", got.Data)
	}

	req := <-requests
	if want := crc.Append([]byte{0x01, 0x03, 0x00, 0x10, 0x00, 0x02}); !bytes.Equal(req, want) {
		t.Errorf("request = % X, want % X", req, want)
	}

	// connection is kept for the next request
	if _, err := client.Send(context.Background(), 1, pdu); err != nil {
		t.Fatalf("second Send failed: %v", err)
	}
}

func TestClient_Timeout(t *testing.T) {
	addr, _ := serveOnce(t, nil)

	client := NewClient(config.TcpConfig{Address: addr, Timeout: 200 * time.Millisecond})
	defer client.Close()

	pdu := modbus.ProtocolDataUnit{FunctionCode: 0x03, Data: []byte{0x00, 0x10, 0x00, 0x02}}
	if _, err := client.Send(context.Background(), 1, pdu); err == nil {
		t.Fatal("expected timeout error, got nil")
	}
	if client.conn != nil {
		t.Error("connection should be dropped after a read failure")
	}
}

func TestNewClient_DefaultTimeout(t *testing.T) {
	if c := NewClient(config.TcpConfig{Address: "127.0.0.1:502"}); c.Timeout != config.DefaultTCPTimeout {
		t.Errorf("Timeout = %v, want %v", c.Timeout, config.DefaultTCPTimeout)
	}
}
