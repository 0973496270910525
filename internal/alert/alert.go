// Package alert delivers operator alerts to the configured sinks.
package alert

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dwsmith1983/clearmail/pkg/types"
)

const sendTimeout = 10 * time.Second

// Sink is an alert destination.
type Sink interface {
	Send(ctx context.Context, alert types.Alert) error
	Name() string
}

// Dispatcher routes alerts to every configured sink. A nil Dispatcher drops
// alerts, so callers need not check whether alerting is configured.
type Dispatcher struct {
	sinks  []Sink
	logger *slog.Logger
	now    func() time.Time
}

// New creates a dispatcher over sinks.
func New(logger *slog.Logger, sinks ...Sink) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{sinks: sinks, logger: logger, now: time.Now}
}

// NewDispatcher creates a dispatcher from alert configs.
func NewDispatcher(configs []types.AlertConfig, logger *slog.Logger) (*Dispatcher, error) {
	d := New(logger)
	for _, cfg := range configs {
		sink, err := newSink(cfg)
		if err != nil {
			return nil, fmt.Errorf("creating %s sink: %w", cfg.Type, err)
		}
		d.sinks = append(d.sinks, sink)
	}
	return d, nil
}

// Dispatch sends alert to all sinks. Sink failures are logged, never returned.
func (d *Dispatcher) Dispatch(ctx context.Context, alert types.Alert) {
	if d == nil || len(d.sinks) == 0 {
		return
	}
	if alert.Timestamp.IsZero() {
		alert.Timestamp = d.now().UTC()
	}
	ctx = context.WithoutCancel(ctx)
	for _, sink := range d.sinks {
		sctx, cancel := context.WithTimeout(ctx, sendTimeout)
		if err := sink.Send(sctx, alert); err != nil {
			d.logger.Warn("alert delivery failed", "sink", sink.Name(), "error", err)
		}
		cancel()
	}
}

// Sinks returns the names of the configured sinks.
func (d *Dispatcher) Sinks() []string {
	if d == nil {
		return nil
	}
	names := make([]string, len(d.sinks))
	for i, s := range d.sinks {
		names[i] = s.Name()
	}
	return names
}

func newSink(cfg types.AlertConfig) (Sink, error) {
	switch cfg.Type {
	case types.AlertConsole:
		return NewConsoleSink(nil), nil
	case types.AlertWebhook:
		if cfg.URL == "" {
			return nil, fmt.Errorf("webhook URL required")
		}
		return NewWebhookSink(cfg.URL), nil
	case types.AlertFile:
		if cfg.Path == "" {
			return nil, fmt.Errorf("file path required")
		}
		if cfg.MinLevel != "" && cfg.MinLevel.Rank() == 0 {
			return nil, fmt.Errorf("unknown minLevel %q", cfg.MinLevel)
		}
		return NewFileSink(cfg.Path, WithMaxBytes(cfg.MaxBytes), WithMinLevel(cfg.MinLevel))
	case types.AlertSQS:
		return NewSQSSink(cfg.QueueURL)
	case types.AlertEventBridge:
		return NewEventBridgeSink(cfg.EventBus, cfg.Source)
	default:
		return nil, fmt.Errorf("unknown alert type %q", cfg.Type)
	}
}
