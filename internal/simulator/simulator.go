// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package simulator exposes a simulated DRT-301M to Modbus masters, so the
// tool and other software can be tried without a meter on the bus.
package simulator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ffutop/drt301m/internal/config"
	"github.com/ffutop/drt301m/modbus"
	"github.com/ffutop/drt301m/transport"
	"github.com/ffutop/drt301m/transport/rtu"
	rtuovertcp "github.com/ffutop/drt301m/transport/rtu-over-tcp"
	"github.com/ffutop/drt301m/transport/tcp"
)

var (
	errNotAddressed = errors.New("request for another slave")
	errBroadcast    = errors.New("broadcast request")
)

// Simulator answers requests for one slave id from every upstream with the
// simulated meter.
type Simulator struct {
	SlaveID   byte
	Upstreams []transport.Upstream
	Meter     transport.Downstream

	mu sync.Mutex // requests reach the meter one at a time, as on a bus
}

// New creates a Simulator.
func New(slaveID byte, upstreams []transport.Upstream, meter transport.Downstream) *Simulator {
	return &Simulator{
		SlaveID:   slaveID,
		Upstreams: upstreams,
		Meter:     meter,
	}
}

// NewUpstreams builds the listeners described by cfg.
func NewUpstreams(cfg config.SimulatorConfig) ([]transport.Upstream, error) {
	var upstreams []transport.Upstream
	for _, us := range cfg.Upstreams {
		switch us.Type {
		case config.TransportTCP:
			upstreams = append(upstreams, tcp.NewServer(us.Address))
		case config.TransportRTUOverTCP:
			upstreams = append(upstreams, rtuovertcp.NewServer(us.Address))
		case config.TransportRTU:
			upstreams = append(upstreams, rtu.NewServer(us.Serial))
		default:
			return nil, fmt.Errorf("unknown upstream type %q", us.Type)
		}
	}
	return upstreams, nil
}

// Start connects the meter and serves every upstream until ctx is done.
func (s *Simulator) Start(ctx context.Context) error {
	if err := s.Meter.Connect(ctx); err != nil {
		return fmt.Errorf("failed to open simulated meter: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errs := make(chan error, len(s.Upstreams))
	var wg sync.WaitGroup
	for i, us := range s.Upstreams {
		wg.Add(1)
		go func(ups transport.Upstream, idx int) {
			defer wg.Done()
			slog.Info("Starting upstream", "index", idx)
			if err := ups.Start(ctx, s.handleRequest); err != nil {
				slog.Error("Upstream stopped with error", "index", idx, "err", err)
				errs <- err
				cancel()
			}
		}(us, i)
	}

	<-ctx.Done()

	for _, us := range s.Upstreams {
		us.Close()
	}
	wg.Wait()
	close(errs)

	var all []error
	for err := range errs {
		all = append(all, err)
	}
	if err := s.Meter.Close(); err != nil {
		all = append(all, err)
	}
	return errors.Join(all...)
}

// handleRequest answers requests for SlaveID. Broadcast writes are applied
// without an answer; requests for other slaves are ignored.
func (s *Simulator) handleRequest(ctx context.Context, slaveID byte, pdu modbus.ProtocolDataUnit) (modbus.ProtocolDataUnit, error) {
	if slaveID != s.SlaveID && slaveID != 0 {
		return modbus.ProtocolDataUnit{}, errNotAddressed
	}

	s.mu.Lock()
	resp, err := s.Meter.Send(ctx, s.SlaveID, pdu)
	s.mu.Unlock()
	if err != nil {
		slog.Error("Simulated meter failed", "func", pdu.FunctionCode, "err", err)
		return modbus.ProtocolDataUnit{}, err
	}
	if slaveID == 0 {
		return modbus.ProtocolDataUnit{}, errBroadcast
	}
	return resp, nil
}
