// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package rtu

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/ffutop/drt301m/internal/config"
	"github.com/ffutop/drt301m/transport"
)

// Server implements a Modbus RTU Server (Upstream).
// It acts as a Slave on the serial bus, waiting for requests from an external Master.
type Server struct {
	serialPort
}

// NewServer creates a new RTU Server.
func NewServer(cfg config.SerialConfig) *Server {
	return &Server{serialPort: newSerialPort(cfg)}
}

// Start opens the serial port and answers requests until ctx is done.
func (s *Server) Start(ctx context.Context, handler transport.RequestHandler) error {
	s.mu.Lock()
	err := s.connect(ctx)
	port := s.port
	s.mu.Unlock()
	if err != nil {
		return err
	}
	slog.Info("RTU Server listening", "device", s.Config.Address)

	go func() {
		<-ctx.Done()
		s.Close()
	}()

	return s.serve(ctx, port, handler)
}

// serve restarts the RTU loop after read errors: an idle line ends every
// read with a timeout.
func (s *Server) serve(ctx context.Context, port io.ReadWriter, handler transport.RequestHandler) error {
	for {
		err := transport.ServeRTU(ctx, port, handler)
		if ctx.Err() != nil {
			return nil
		}
		if errors.Is(err, io.EOF) {
			return err
		}
		if err != nil {
			slog.Debug("RTU read interrupted", "err", err)
			time.Sleep(s.Config.Timeout)
		}
	}
}
