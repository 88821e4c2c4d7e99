// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package local

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ffutop/drt301m/internal/config"
	"github.com/ffutop/drt301m/internal/frame"
	localslave "github.com/ffutop/drt301m/internal/local-slave"
	"github.com/ffutop/drt301m/internal/local-slave/model"
	"github.com/ffutop/drt301m/internal/local-slave/persistence"
	"github.com/ffutop/drt301m/modbus"
)

// Client implements Downstream for a simulated meter.
type Client struct {
	slave   *localslave.LocalSlave
	storage persistence.Storage
}

// NewClient loads the register image, applies the configured presets and
// seeds an unset meter clock with the host time.
func NewClient(cfg config.LocalConfig) (*Client, error) {
	var storage persistence.Storage
	switch cfg.Persistence.Type {
	case "file":
		slog.Info("Initializing simulated meter with file persistence", "path", cfg.Persistence.Path)
		storage = persistence.NewFileStorage(cfg.Persistence.Path)
	case "mmap":
		slog.Info("Initializing simulated meter with MMAP persistence", "path", cfg.Persistence.Path)
		storage = persistence.NewMmapStorage(cfg.Persistence.Path)
	default:
		slog.Debug("Initializing simulated meter with memory storage (non-persistent)")
		storage = persistence.NewMemoryStorage()
	}

	m, err := storage.Load()
	if err != nil {
		return nil, fmt.Errorf("load register image: %w", err)
	}

	presets, err := config.RegisterPresets(cfg.Registers)
	if err != nil {
		storage.Close()
		return nil, err
	}

	s := localslave.NewLocalSlave(m, storage)
	for addr, v := range presets {
		m.SetRegister(addr, v)
		storage.OnWrite(addr, 1)
	}
	if err := seedClock(s, m, time.Now()); err != nil {
		storage.Close()
		return nil, err
	}

	return &Client{
		slave:   s,
		storage: storage,
	}, nil
}

// seedClock writes now to the clock registers when they are all zero,
// using the same frame a real meter receives.
func seedClock(s *localslave.LocalSlave, m *model.DataModel, now time.Time) error {
	for a := uint16(frame.ClockAddress); a < frame.ClockAddress+4; a++ {
		if m.Register(a) != 0 {
			return nil
		}
	}

	f, err := frame.SetClock(0, frame.ClockFromTime(now))
	if err != nil {
		slog.Warn("Host clock cannot be stored in the simulated meter", "err", err)
		return nil
	}
	raw := f.Bytes()
	resp, err := s.Process(modbus.ProtocolDataUnit{FunctionCode: raw[1], Data: raw[2:]})
	if err != nil {
		return err
	}
	if err := resp.Exception(); err != nil {
		return fmt.Errorf("seed clock: %w", err)
	}
	slog.Debug("Seeded simulated meter clock", "clock", frame.ClockFromTime(now))
	return nil
}

// Send processes the PDU locally.
func (c *Client) Send(ctx context.Context, slaveID byte, pdu modbus.ProtocolDataUnit) (modbus.ProtocolDataUnit, error) {
	if err := ctx.Err(); err != nil {
		return modbus.ProtocolDataUnit{}, err
	}
	return c.slave.Process(pdu)
}

// Connect is a no-op for the simulated meter.
func (c *Client) Connect(ctx context.Context) error {
	return nil
}

// Close closes the storage.
func (c *Client) Close() error {
	return c.storage.Close()
}
