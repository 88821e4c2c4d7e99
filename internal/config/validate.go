// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package config

import (
	"fmt"
	"strconv"
	"strings"
)

// Validate checks configuration correctness.
// It does not mutate cfg.
func Validate(cfg *Config) error {
	if cfg.SlaveID < 1 || cfg.SlaveID > 247 {
		return fmt.Errorf("slave_id %d out of range 1-247", cfg.SlaveID)
	}

	switch cfg.Log.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level %q: want debug, info, warn or error", cfg.Log.Level)
	}

	t := cfg.Transport
	switch t.Type {
	case TransportRTU:
		return validateSerial(t.Serial)
	case TransportRTUOverTCP, TransportTCP:
		if t.Tcp.Address == "" {
			return fmt.Errorf("transport %q: tcp.address required", t.Type)
		}
		if t.Tcp.Timeout < 0 {
			return fmt.Errorf("transport %q: negative tcp.timeout", t.Type)
		}
	case TransportLocal:
		return ValidateLocal(t.Local)
	default:
		return fmt.Errorf("unknown transport type %q", t.Type)
	}
	return nil
}

// ValidateLocal checks the simulated meter settings.
func ValidateLocal(l LocalConfig) error {
	switch l.Persistence.Type {
	case "", "memory":
	case "file", "mmap":
		if l.Persistence.Path == "" {
			return fmt.Errorf("transport local: persistence %q needs a path", l.Persistence.Type)
		}
	default:
		return fmt.Errorf("transport local: unknown persistence type %q", l.Persistence.Type)
	}
	if _, err := RegisterPresets(l.Registers); err != nil {
		return fmt.Errorf("transport local: %w", err)
	}
	return nil
}

// ValidateSimulator checks the listeners of the simulated meter.
func ValidateSimulator(cfg SimulatorConfig) error {
	if len(cfg.Upstreams) == 0 {
		return fmt.Errorf("simulator: no upstream configured")
	}
	for i, us := range cfg.Upstreams {
		switch us.Type {
		case TransportTCP, TransportRTUOverTCP:
			if us.Address == "" {
				return fmt.Errorf("simulator upstream %d: address required", i)
			}
		case TransportRTU:
			if err := validateSerial(us.Serial); err != nil {
				return fmt.Errorf("simulator upstream %d: %w", i, err)
			}
		default:
			return fmt.Errorf("simulator upstream %d: unknown type %q", i, us.Type)
		}
	}
	return nil
}

func validateSerial(s SerialConfig) error {
	if s.Device == "" {
		return fmt.Errorf("serial: device required")
	}
	if s.BaudRate <= 0 {
		return fmt.Errorf("serial: invalid baud rate %d", s.BaudRate)
	}
	if s.DataBits < 5 || s.DataBits > 8 {
		return fmt.Errorf("serial: data bits %d out of range 5-8", s.DataBits)
	}
	switch s.Parity {
	case "N", "E", "O":
	default:
		return fmt.Errorf("serial: parity %q: want N, E or O", s.Parity)
	}
	if s.StopBits != 1 && s.StopBits != 2 {
		return fmt.Errorf("serial: stop bits %d: want 1 or 2", s.StopBits)
	}
	if s.ByteTimeout < 0 || s.ResponseTimeout < 0 {
		return fmt.Errorf("serial: negative timeout")
	}
	return nil
}

// SerialParams is the "baud,data,parity,stop" tuple of a serial line.
type SerialParams struct {
	BaudRate int
	DataBits int
	Parity   string
	StopBits int
}

// ParseSerialParams parses "1200,8,E,1". Trailing fields may be omitted
// and keep the DRT-301M defaults.
func ParseSerialParams(s string) (SerialParams, error) {
	p := SerialParams{
		BaudRate: DefaultBaudRate,
		DataBits: DefaultDataBits,
		Parity:   DefaultParity,
		StopBits: DefaultStopBits,
	}

	parts := strings.Split(s, ",")
	if len(parts) > 4 {
		return p, fmt.Errorf("serial parameters %q: too many fields", s)
	}

	for i, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		switch i {
		case 0, 1, 3:
			n, err := strconv.Atoi(part)
			if err != nil {
				return p, fmt.Errorf("serial parameters %q: field %d: %w", s, i+1, err)
			}
			switch i {
			case 0:
				p.BaudRate = n
			case 1:
				p.DataBits = n
			case 3:
				p.StopBits = n
			}
		case 2:
			p.Parity = strings.ToUpper(part)
		}
	}

	return p, validateSerial(SerialConfig{
		Device:   "-",
		BaudRate: p.BaudRate,
		DataBits: p.DataBits,
		Parity:   p.Parity,
		StopBits: p.StopBits,
	})
}

// RegisterPresets converts the address keys of presets to numbers.
// Keys follow strtol base 0 rules: 0x for hex, leading 0 for octal.
func RegisterPresets(presets map[string]uint16) (map[uint16]uint16, error) {
	out := make(map[uint16]uint16, len(presets))
	for k, v := range presets {
		addr, err := strconv.ParseUint(strings.TrimSpace(k), 0, 16)
		if err != nil {
			return nil, fmt.Errorf("register preset %q: %w", k, err)
		}
		out[uint16(addr)] = v
	}
	return out, nil
}
