// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	return path
}

func TestLoadConfig_File(t *testing.T) {
	path := writeConfig(t, `
slave_id: 3
transport:
  type: RTU
  serial:
    device: /dev/ttyS1
    baud_rate: 9600
    parity: n
    byte_timeout: 250ms
output:
  unit: true
log:
  level: debug
`)

	v := viper.New()
	SetDefaults(v)
	cfg, err := LoadConfig(v, path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.SlaveID != 3 {
		t.Errorf("SlaveID = %d, want 3", cfg.SlaveID)
	}
	if cfg.Transport.Type != TransportRTU {
		t.Errorf("Transport.Type = %q, want %q", cfg.Transport.Type, TransportRTU)
	}
	s := cfg.Transport.Serial
	if s.Device != "/dev/ttyS1" || s.BaudRate != 9600 || s.Parity != "N" {
		t.Errorf("unexpected serial config: %+v", s)
	}
	if s.DataBits != DefaultDataBits || s.StopBits != DefaultStopBits {
		t.Errorf("serial defaults not applied: %+v", s)
	}
	if s.ByteTimeout != 250*time.Millisecond {
		t.Errorf("ByteTimeout = %v, want 250ms", s.ByteTimeout)
	}
	if s.ResponseTimeout != DefaultResponseTimeout {
		t.Errorf("ResponseTimeout = %v, want %v", s.ResponseTimeout, DefaultResponseTimeout)
	}
	if !cfg.Output.Unit || cfg.Output.Title {
		t.Errorf("unexpected output config: %+v", cfg.Output)
	}
	if err := Validate(cfg); err != nil {
		t.Errorf("Validate failed: %v", err)
	}
}

func TestLoadConfig_MissingExplicitFile(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	if _, err := LoadConfig(v, filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestLoadConfig_Overrides(t *testing.T) {
	path := writeConfig(t, "transport:\n  type: tcp\n  tcp:\n    address: 10.0.0.5:502\n")

	v := viper.New()
	SetDefaults(v)
	v.Set("slave_id", 7)
	cfg, err := LoadConfig(v, path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.SlaveID != 7 {
		t.Errorf("SlaveID = %d, want 7", cfg.SlaveID)
	}
	if cfg.Transport.Tcp.Timeout != DefaultTCPTimeout {
		t.Errorf("Tcp.Timeout = %v, want %v", cfg.Transport.Tcp.Timeout, DefaultTCPTimeout)
	}
	if err := Validate(cfg); err != nil {
		t.Errorf("Validate failed: %v", err)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			SlaveID: 1,
			Transport: TransportConfig{
				Type: TransportRTU,
				Serial: SerialConfig{
					Device:   DefaultDevice,
					BaudRate: DefaultBaudRate,
					DataBits: DefaultDataBits,
					Parity:   DefaultParity,
					StopBits: DefaultStopBits,
				},
			},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"Valid", func(c *Config) {}, false},
		{"SlaveZero", func(c *Config) { c.SlaveID = 0 }, true},
		{"SlaveBroadcastRange", func(c *Config) { c.SlaveID = 248 }, true},
		{"BadParity", func(c *Config) { c.Transport.Serial.Parity = "X" }, true},
		{"BadStopBits", func(c *Config) { c.Transport.Serial.StopBits = 3 }, true},
		{"NoDevice", func(c *Config) { c.Transport.Serial.Device = "" }, true},
		{"UnknownTransport", func(c *Config) { c.Transport.Type = "udp" }, true},
		{"TCPNoAddress", func(c *Config) { c.Transport.Type = TransportTCP }, true},
		{"LocalMemory", func(c *Config) { c.Transport.Type = TransportLocal }, false},
		{"LocalMmapNoPath", func(c *Config) {
			c.Transport.Type = TransportLocal
			c.Transport.Local.Persistence.Type = "mmap"
		}, true},
		{"LocalBadPreset", func(c *Config) {
			c.Transport.Type = TransportLocal
			c.Transport.Local.Registers = map[string]uint16{"0xZZ": 1}
		}, true},
		{"BadLogLevel", func(c *Config) { c.Log.Level = "trace" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			if err := Validate(c); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseSerialParams(t *testing.T) {
	tests := []struct {
		in      string
		want    SerialParams
		wantErr bool
	}{
		{"1200,8,E,1", SerialParams{1200, 8, "E", 1}, false},
		{"9600,8,n,2", SerialParams{9600, 8, "N", 2}, false},
		{"4800", SerialParams{4800, 8, "E", 1}, false},
		{"2400,,O", SerialParams{2400, 8, "O", 1}, false},
		{"fast,8,E,1", SerialParams{}, true},
		{"1200,8,E,1,1", SerialParams{}, true},
		{"1200,9,E,1", SerialParams{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseSerialParams(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseSerialParams() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseSerialParams() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestRegisterPresets(t *testing.T) {
	got, err := RegisterPresets(map[string]uint16{"0x0010": 1, "18": 2, "0xf000": 3, "010": 4})
	if err != nil {
		t.Fatalf("RegisterPresets failed: %v", err)
	}
	want := map[uint16]uint16{0x10: 1, 18: 2, 0xF000: 3, 8: 4}
	if len(got) != len(want) {
		t.Fatalf("RegisterPresets() = %v, want %v", got, want)
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("preset 0x%04X = %d, want %d", k, got[k], v)
		}
	}

	if _, err := RegisterPresets(map[string]uint16{"0x10000": 1}); err == nil {
		t.Error("expected error for address out of range")
	}
}

func TestLoadConfig_Simulator(t *testing.T) {
	path := writeConfig(t, `
simulator:
  upstreams:
    - type: TCP
      address: ":5020"
    - type: rtu
      serial:
        device: /dev/pts/3
`)
	v := viper.New()
	SetDefaults(v)
	cfg, err := LoadConfig(v, path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	us := cfg.Simulator.Upstreams
	if len(us) != 2 || us[0].Type != TransportTCP || us[1].Type != TransportRTU {
		t.Fatalf("unexpected upstreams: %+v", us)
	}
	s := us[1].Serial
	if s.BaudRate != DefaultBaudRate || s.Parity != DefaultParity || s.ByteTimeout != DefaultByteTimeout {
		t.Errorf("serial upstream defaults not applied: %+v", s)
	}
	if err := ValidateSimulator(cfg.Simulator); err != nil {
		t.Errorf("ValidateSimulator failed: %v", err)
	}
}

func TestValidateSimulator(t *testing.T) {
	tests := []struct {
		name string
		cfg  SimulatorConfig
	}{
		{"Empty", SimulatorConfig{}},
		{"NoAddress", SimulatorConfig{Upstreams: []UpstreamConfig{{Type: TransportTCP}}}},
		{"UnknownType", SimulatorConfig{Upstreams: []UpstreamConfig{{Type: "udp", Address: ":502"}}}},
		{"BadSerial", SimulatorConfig{Upstreams: []UpstreamConfig{{Type: TransportRTU}}}},
	}
	for _, tt := range tests {
		if err := ValidateSimulator(tt.cfg); err == nil {
			t.Errorf("%s: expected error", tt.name)
		}
	}
}
