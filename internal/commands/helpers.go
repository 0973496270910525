// Package commands implements the CLI subcommands for the clearmail binary.
package commands

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"

	"github.com/dwsmith1983/clearmail/internal/alert"
	"github.com/dwsmith1983/clearmail/internal/checkpoint"
	"github.com/dwsmith1983/clearmail/internal/config"
	"github.com/dwsmith1983/clearmail/internal/interval"
	"github.com/dwsmith1983/clearmail/internal/provider"
	"github.com/dwsmith1983/clearmail/internal/provider/backend"
	"github.com/dwsmith1983/clearmail/pkg/types"
)

// Options holds the persistent root flags shared by every subcommand.
type Options struct {
	ConfigPath string
	EnvFile    string
	Verbose    bool
}

// runtime is the wiring one command invocation needs.
type runtime struct {
	cfg         *types.ProjectConfig
	logger      *slog.Logger
	conn        *provider.Connector
	alerts      *alert.Dispatcher
	checkpoints *checkpoint.Store
	interval    *interval.Resolver
}

func (r *runtime) Close() error {
	return r.conn.Close()
}

// newLogger returns a colourised console logger writing to w.
func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: time.Kitchen,
	}))
}

// loadEnv loads path into the process environment. A missing file is not an
// error; variables already set are not overridden.
func loadEnv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

// setup loads the environment and configuration and builds the checkpoint
// store and interval resolver. The connector is nil when no provider is set.
func setup(opts *Options, logOut io.Writer) (*runtime, error) {
	if err := loadEnv(opts.EnvFile); err != nil {
		return nil, err
	}
	cfg, err := config.LoadFile(opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	logger := newLogger(logOut, opts.Verbose)

	alerts, err := alert.NewDispatcher(cfg.Alerts, logger)
	if err != nil {
		return nil, fmt.Errorf("configuring alerts: %w", err)
	}

	var conn *provider.Connector
	if cfg.Provider != "" {
		conn, err = backend.NewConnector(cfg, logger)
		if err != nil {
			return nil, fmt.Errorf("creating provider: %w", err)
		}
	}

	return &runtime{
		cfg:         cfg,
		logger:      logger,
		conn:        conn,
		alerts:      alerts,
		checkpoints: checkpoint.New(cfg.Settings.Checkpoint(), conn,
			checkpoint.WithLogger(logger), checkpoint.WithAlerts(alerts)),
		interval:    interval.New(cfg.Settings.Interval(), conn, interval.WithLogger(logger)),
	}, nil
}
