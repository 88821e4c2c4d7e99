// Copyright (c) 2025-2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/ffutop/drt301m/internal/config"
)

// Action is what one invocation does.
type Action int

const (
	ActionNone Action = iota
	ActionList
	ActionReport
	ActionSetDate
	ActionCheckDate
	ActionSetBaudRate
	ActionDump
	ActionSimulate
)

// Options holds the command line switches that are not configuration.
type Options struct {
	ConfigFile  string
	Action      Action
	Report      int
	Tolerance   time.Duration
	BaudRate    int
	Registers   []uint16
	ShowVersion bool

	// simulator listener given on the command line
	Listen     string
	ListenType string
}

var errUsage = errors.New("nothing to do")

func newFlagSet(out io.Writer) *pflag.FlagSet {
	fs := pflag.NewFlagSet("drt301m", pflag.ContinueOnError)
	fs.SetOutput(out)

	fs.StringP("config", "c", "", "Configuration file path.")
	fs.StringP("device", "i", config.DefaultDevice, "Serial port device name.")
	fs.StringP("serial", "s", "", "Serial parameters baud,data,parity,stop (e.g. 1200,8,E,1).")
	fs.IntP("slave", "a", config.DefaultSlaveID, "Modbus slave address of the meter.")
	fs.BoolP("unit", "u", false, "Append the unit of measure.")
	fs.BoolP("title", "t", false, "Prefix the register description.")
	fs.Bool("set-date", false, "Set the meter clock to the local time.")
	fs.Int("check-date", 0, "Compare the meter clock with the local time; fail when off by more than n seconds.")
	fs.Int("set-baudrate", 0, "Switch the meter to 1200, 2400, 4800 or 9600 baud.")
	fs.BoolP("list", "l", false, "List the register catalog.")
	fs.StringP("registers", "r", "", "Registers to dump (e.g. 0x10,0x12,0x14).")
	fs.Int("byte-timeout", 0, "Byte timeout [ms].")
	fs.Int("response-timeout", 0, "Response timeout [ms].")
	fs.IntP("report", "R", 0, "Predefined report: 1 import energy, 2 voltage and current, 3 power and cos phi, 4 monthly energy.")
	fs.StringP("log-level", "v", "info", "Log verbosity level (debug, info, warn, error).")
	fs.String("log-file", "", "Log file name ('-' for logging to STDERR only).")
	fs.String("transport", config.TransportRTU, "Transport: rtu, rtu-over-tcp, tcp or local.")
	fs.String("address", "", "host:port of the gateway for tcp and rtu-over-tcp.")
	fs.String("persistence", "memory", "Register image of the local transport: memory, file or mmap.")
	fs.String("image", "", "Register image file of the local transport.")
	fs.Bool("simulate", false, "Serve the local simulated meter to Modbus masters until interrupted.")
	fs.String("listen", "", "Listen address (or serial device) of the simulator, default "+config.DefaultListenAddress+".")
	fs.String("listen-type", config.TransportTCP, "Simulator listener: tcp, rtu-over-tcp or rtu.")
	fs.Bool("version", false, "Print the version and exit.")

	fs.SortFlags = false
	fs.Usage = func() {
		fmt.Fprintf(out, "usage: drt301m [options]\n\n%s\n", fs.FlagUsages())
		fmt.Fprintln(out, "For write operations unlock the meter (no lock symbol on the LCD) and increase the timeouts.")
	}
	return fs
}

// flagKeys maps flags onto configuration keys. A flag set on the command
// line takes precedence over the configuration file.
var flagKeys = map[string]string{
	"device":      "transport.serial.device",
	"slave":       "slave_id",
	"unit":        "output.unit",
	"title":       "output.title",
	"log-level":   "log.level",
	"log-file":    "log.file",
	"transport":   "transport.type",
	"address":     "transport.tcp.address",
	"persistence": "transport.local.persistence.type",
	"image":       "transport.local.persistence.path",
}

// bindFlags binds fs into v. Flags that need conversion are copied in
// with Set, and only when given.
func bindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for name, key := range flagKeys {
		if err := v.BindPFlag(key, fs.Lookup(name)); err != nil {
			return fmt.Errorf("failed to bind flag %s: %w", name, err)
		}
	}

	if fs.Changed("serial") {
		s, _ := fs.GetString("serial")
		p, err := config.ParseSerialParams(s)
		if err != nil {
			return err
		}
		v.Set("transport.serial.baud_rate", p.BaudRate)
		v.Set("transport.serial.data_bits", p.DataBits)
		v.Set("transport.serial.parity", p.Parity)
		v.Set("transport.serial.stop_bits", p.StopBits)
	}

	for name, key := range map[string]string{
		"byte-timeout":     "transport.serial.byte_timeout",
		"response-timeout": "transport.serial.response_timeout",
	} {
		if !fs.Changed(name) {
			continue
		}
		ms, _ := fs.GetInt(name)
		if ms <= 0 {
			return fmt.Errorf("--%s %d: want a positive number of milliseconds", name, ms)
		}
		d := time.Duration(ms) * time.Millisecond
		v.Set(key, d)
		if name == "response-timeout" {
			v.Set("transport.tcp.timeout", d)
		}
	}
	return nil
}

// parseOptions picks the action of this invocation. When several are
// given the first of list, simulate, report, set-date, check-date,
// set-baudrate and registers wins.
func parseOptions(fs *pflag.FlagSet) (*Options, error) {
	opts := &Options{}
	opts.ConfigFile, _ = fs.GetString("config")
	opts.ShowVersion, _ = fs.GetBool("version")
	opts.Listen, _ = fs.GetString("listen")
	opts.ListenType, _ = fs.GetString("listen-type")

	var err error
	switch {
	case fs.Changed("list"):
		opts.Action = ActionList
	case fs.Changed("simulate"):
		opts.Action = ActionSimulate
	case fs.Changed("report"):
		opts.Action = ActionReport
		opts.Report, _ = fs.GetInt("report")
	case fs.Changed("set-date"):
		opts.Action = ActionSetDate
	case fs.Changed("check-date"):
		opts.Action = ActionCheckDate
		n, _ := fs.GetInt("check-date")
		if n < 0 {
			return nil, fmt.Errorf("--check-date %d: want seconds >= 0", n)
		}
		opts.Tolerance = time.Duration(n) * time.Second
	case fs.Changed("set-baudrate"):
		opts.Action = ActionSetBaudRate
		opts.BaudRate, _ = fs.GetInt("set-baudrate")
	case fs.Changed("registers"):
		opts.Action = ActionDump
		s, _ := fs.GetString("registers")
		if opts.Registers, err = parseRegisterList(s); err != nil {
			return nil, err
		}
		if len(opts.Registers) == 0 {
			return nil, fmt.Errorf("--registers %q: no register given", s)
		}
	}
	return opts, nil
}

// parseRegisterList parses a comma separated list of addresses. Tokens
// follow strtol base 0 rules and empty tokens are skipped.
func parseRegisterList(s string) ([]uint16, error) {
	var out []uint16
	for _, tok := range strings.Split(s, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		n, err := strconv.ParseUint(tok, 0, 16)
		if err != nil {
			return nil, fmt.Errorf("register %q: %w", tok, err)
		}
		out = append(out, uint16(n))
	}
	return out, nil
}

// simulatorConfig returns the listeners of the simulator: the one given on
// the command line, else the configured ones, else the default TCP port.
func simulatorConfig(cfg config.Config, opts *Options) config.SimulatorConfig {
	if opts.Listen != "" {
		us := config.UpstreamConfig{Type: opts.ListenType, Address: opts.Listen}
		if us.Type == config.TransportRTU {
			us.Serial = cfg.Transport.Serial
			us.Serial.Device = opts.Listen
		}
		return config.SimulatorConfig{Upstreams: []config.UpstreamConfig{us}}
	}
	if len(cfg.Simulator.Upstreams) > 0 {
		return cfg.Simulator
	}
	return config.SimulatorConfig{Upstreams: []config.UpstreamConfig{
		{Type: config.TransportTCP, Address: config.DefaultListenAddress},
	}}
}
