// Copyright (c) 2025-2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/ffutop/drt301m/internal/config"
	"github.com/ffutop/drt301m/internal/meter"
	"github.com/ffutop/drt301m/internal/register"
	"github.com/ffutop/drt301m/internal/simulator"
	"github.com/ffutop/drt301m/transport"
	"github.com/ffutop/drt301m/transport/local"
	"github.com/ffutop/drt301m/transport/rtu"
	rtuovertcp "github.com/ffutop/drt301m/transport/rtu-over-tcp"
	"github.com/ffutop/drt301m/transport/tcp"
)

const version = "0.3.0"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	cancel()
	if err != nil {
		fmt.Fprintf(os.Stderr, "drt301m: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet(stderr)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	opts, err := parseOptions(fs)
	if err != nil {
		return err
	}
	if opts.ShowVersion {
		fmt.Fprintf(stdout, "drt301m %s\n", version)
		return nil
	}
	if opts.Action == ActionNone {
		fs.Usage()
		return errUsage
	}

	v := viper.New()
	config.SetDefaults(v)
	if err := bindFlags(v, fs); err != nil {
		return err
	}
	cfg, err := config.LoadConfig(v, opts.ConfigFile)
	if err != nil {
		return err
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	setupLogger(cfg.Log, stderr)

	mopts := meter.Options{
		SlaveID: cfg.SlaveID,
		Format: register.FormatOptions{
			ShowUnit:        cfg.Output.Unit,
			ShowDescription: cfg.Output.Title,
		},
	}

	if opts.Action == ActionList {
		return meter.New(nil, nil, mopts).ListCatalog(stdout)
	}

	if opts.Action == ActionSimulate {
		return simulate(ctx, *cfg, opts)
	}

	ds, err := newDownstream(cfg.Transport)
	if err != nil {
		return err
	}
	session := transport.NewSession(ds)
	if err := session.Connect(ctx); err != nil {
		ds.Close()
		return err
	}
	defer session.Close()

	if cfg.Transport.Type == config.TransportRTU {
		slog.Debug("Serial session",
			"device", cfg.Transport.Serial.Device,
			"byte_timeout", cfg.Transport.Serial.ByteTimeout,
			"response_timeout", cfg.Transport.Serial.ResponseTimeout)
	}

	m := meter.New(session, nil, mopts)
	switch opts.Action {
	case ActionReport:
		return m.Report(ctx, opts.Report, stdout)
	case ActionSetDate:
		return m.SetClock(ctx, time.Now())
	case ActionCheckDate:
		drift, err := m.CheckClock(ctx, time.Now(), opts.Tolerance)
		if drift != 0 || err == nil {
			fmt.Fprintf(stdout, "clock drift %v\n", drift)
		}
		return err
	case ActionSetBaudRate:
		return m.SetBaudRate(ctx, opts.BaudRate)
	case ActionDump:
		return m.Dump(ctx, opts.Registers, stdout)
	}
	return nil
}

// simulate serves the local simulated meter until ctx is done.
func simulate(ctx context.Context, cfg config.Config, opts *Options) error {
	if err := config.ValidateLocal(cfg.Transport.Local); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	scfg := simulatorConfig(cfg, opts)
	if err := config.ValidateSimulator(scfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	upstreams, err := simulator.NewUpstreams(scfg)
	if err != nil {
		return err
	}
	dev, err := local.NewClient(cfg.Transport.Local)
	if err != nil {
		return err
	}

	slog.Info("Starting simulated DRT-301M", "slave", cfg.SlaveID, "upstreams", len(upstreams))
	return simulator.New(cfg.SlaveID, upstreams, dev).Start(ctx)
}

func newDownstream(cfg config.TransportConfig) (transport.Downstream, error) {
	switch cfg.Type {
	case config.TransportRTU:
		return rtu.NewClient(cfg.Serial), nil
	case config.TransportRTUOverTCP:
		return rtuovertcp.NewClient(cfg.Tcp), nil
	case config.TransportTCP:
		return tcp.NewClient(cfg.Tcp), nil
	case config.TransportLocal:
		return local.NewClient(cfg.Local)
	default:
		return nil, fmt.Errorf("unknown transport type %q", cfg.Type)
	}
}

func setupLogger(cfg config.LogConfig, stderr io.Writer) {
	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}
	switch cfg.Level {
	case "debug":
		opts.Level = slog.LevelDebug
	case "warn":
		opts.Level = slog.LevelWarn
	case "error":
		opts.Level = slog.LevelError
	}

	var handler slog.Handler
	if cfg.File != "" && cfg.File != "-" {
		f, err := os.OpenFile(cfg.File, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			fmt.Fprintf(stderr, "Failed to open log file, falling back to stderr: %v\n", err)
			handler = slog.NewTextHandler(stderr, opts)
		} else {
			handler = slog.NewTextHandler(f, opts)
		}
	} else {
		handler = slog.NewTextHandler(stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}
