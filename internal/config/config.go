// Copyright (c) 2025-2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Transport types
const (
	TransportRTU        = "rtu"
	TransportRTUOverTCP = "rtu-over-tcp"
	TransportTCP        = "tcp"
	TransportLocal      = "local"
)

// Meter defaults: DRT-301M leaves the factory at 1200 8E1, slave 1.
const (
	DefaultDevice          = "/dev/ttyUSB0"
	DefaultBaudRate        = 1200
	DefaultDataBits        = 8
	DefaultParity          = "E"
	DefaultStopBits        = 1
	DefaultSlaveID         = 1
	DefaultByteTimeout     = 500 * time.Millisecond
	DefaultResponseTimeout = 1 * time.Second
	DefaultTCPTimeout      = 10 * time.Second
	DefaultListenAddress   = ":5020"
)

// Config defines the configuration of one tool invocation.
// It is built once and then only read.
type Config struct {
	SlaveID   uint8           `mapstructure:"slave_id"`
	Transport TransportConfig `mapstructure:"transport"`
	Output    OutputConfig    `mapstructure:"output"`
	Log       LogConfig       `mapstructure:"log"`
	Simulator SimulatorConfig `mapstructure:"simulator"`
}

// SimulatorConfig lists the listeners the simulated meter answers on.
type SimulatorConfig struct {
	Upstreams []UpstreamConfig `mapstructure:"upstreams"`
}

// UpstreamConfig is one listener of the simulated meter.
type UpstreamConfig struct {
	Type    string       `mapstructure:"type"`    // "tcp", "rtu-over-tcp", "rtu"
	Address string       `mapstructure:"address"` // listen address for "tcp" and "rtu-over-tcp"
	Serial  SerialConfig `mapstructure:"serial"`  // Used if Type is "rtu"
}

// LogConfig defines logging configuration
type LogConfig struct {
	Level string `mapstructure:"level"` // debug, info, warn, error
	File  string `mapstructure:"file"`  // Log file path
}

// OutputConfig toggles the decorations around each decoded value.
type OutputConfig struct {
	Unit  bool `mapstructure:"unit"`  // append the unit of measure
	Title bool `mapstructure:"title"` // prefix the register description
}

// TransportConfig selects how the meter is reached.
type TransportConfig struct {
	Type   string       `mapstructure:"type"`   // "rtu", "rtu-over-tcp", "tcp", "local"
	Serial SerialConfig `mapstructure:"serial"` // Used if Type is "rtu"
	Tcp    TcpConfig    `mapstructure:"tcp"`    // Used if Type is "tcp" or "rtu-over-tcp"
	Local  LocalConfig  `mapstructure:"local"`  // Used if Type is "local"
}

// LocalConfig defines settings for the simulated meter
type LocalConfig struct {
	Persistence PersistenceConfig `mapstructure:"persistence"`
	// Registers presets holding registers at startup, keyed by address
	// ("0x0010", "16").
	Registers map[string]uint16 `mapstructure:"registers"`
}

// PersistenceConfig defines where the simulated register image lives
type PersistenceConfig struct {
	Type string `mapstructure:"type"` // "memory", "file", "mmap"
	Path string `mapstructure:"path"` // File path for "file/mmap" type
}

// TcpConfig defines TCP settings
type TcpConfig struct {
	Address string        `mapstructure:"address"` // e.g. "192.168.1.100:502"
	Timeout time.Duration `mapstructure:"timeout"`
}

// SerialConfig defines RTU settings
type SerialConfig struct {
	Device          string        `mapstructure:"device"`
	BaudRate        int           `mapstructure:"baud_rate"`
	DataBits        int           `mapstructure:"data_bits"`
	Parity          string        `mapstructure:"parity"`
	StopBits        int           `mapstructure:"stop_bits"`
	ByteTimeout     time.Duration `mapstructure:"byte_timeout"`     // silence allowed between two bytes
	ResponseTimeout time.Duration `mapstructure:"response_timeout"` // whole response frame

	// RS485 specific
	RS485              bool          `mapstructure:"rs485"`
	DelayRtsBeforeSend time.Duration `mapstructure:"delay_rts_before_send"`
	DelayRtsAfterSend  time.Duration `mapstructure:"delay_rts_after_send"`
	RtsHighDuringSend  bool          `mapstructure:"rts_high_during_send"`
	RtsHighAfterSend   bool          `mapstructure:"rts_high_after_send"`
	RxDuringTx         bool          `mapstructure:"rx_during_tx"`
}

// SetDefaults registers the default of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("slave_id", DefaultSlaveID)
	v.SetDefault("transport.type", TransportRTU)
	v.SetDefault("transport.serial.device", DefaultDevice)
	v.SetDefault("transport.serial.baud_rate", DefaultBaudRate)
	v.SetDefault("transport.serial.data_bits", DefaultDataBits)
	v.SetDefault("transport.serial.parity", DefaultParity)
	v.SetDefault("transport.serial.stop_bits", DefaultStopBits)
	v.SetDefault("transport.serial.byte_timeout", DefaultByteTimeout)
	v.SetDefault("transport.serial.response_timeout", DefaultResponseTimeout)
	v.SetDefault("transport.tcp.timeout", DefaultTCPTimeout)
	v.SetDefault("transport.local.persistence.type", "memory")
	v.SetDefault("output.unit", false)
	v.SetDefault("output.title", false)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
}

// LoadConfig loads configuration from file into v and unmarshals it.
// A missing default config file is not an error; a missing explicit one is.
func LoadConfig(v *viper.Viper, configFile string) (*Config, error) {
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("/etc/drt301m/")
		v.AddConfigPath("$HOME/.drt301m")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || configFile != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	fixupSerial(&config.Transport.Serial)
	if config.Transport.Tcp.Timeout == 0 {
		config.Transport.Tcp.Timeout = DefaultTCPTimeout
	}
	config.Transport.Type = strings.ToLower(config.Transport.Type)
	for i := range config.Simulator.Upstreams {
		us := &config.Simulator.Upstreams[i]
		us.Type = strings.ToLower(us.Type)
		fixupSerialLine(&us.Serial)
		fixupSerial(&us.Serial)
	}

	return &config, nil
}

func fixupSerial(s *SerialConfig) {
	s.Parity = strings.ToUpper(s.Parity)
	if s.ByteTimeout == 0 {
		s.ByteTimeout = DefaultByteTimeout
	}
	if s.ResponseTimeout == 0 {
		s.ResponseTimeout = DefaultResponseTimeout
	}
}

// fixupSerialLine fills in the meter's line defaults for a serial config
// that is not covered by SetDefaults.
func fixupSerialLine(s *SerialConfig) {
	if s.BaudRate == 0 {
		s.BaudRate = DefaultBaudRate
	}
	if s.DataBits == 0 {
		s.DataBits = DefaultDataBits
	}
	if s.Parity == "" {
		s.Parity = DefaultParity
	}
	if s.StopBits == 0 {
		s.StopBits = DefaultStopBits
	}
}
