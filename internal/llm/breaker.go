package llm

import (
	"context"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"

	"github.com/dwsmith1983/clearmail/internal/metrics"
	"github.com/dwsmith1983/clearmail/pkg/types"
)

// BreakerConfig holds circuit breaker settings.
type BreakerConfig struct {
	Name          string
	FailThreshold uint32        // consecutive failures before opening (default 5)
	Cooldown      time.Duration // how long to stay open before half-open (default 60s)
	Logger        *slog.Logger
	Alerts        Alerter // notified when the breaker opens or closes
}

// Alerter receives operator alerts. *alert.Dispatcher satisfies it.
type Alerter interface {
	Dispatch(ctx context.Context, a types.Alert)
}

// BreakerClient fails fast while the upstream API is persistently failing.
// Rate-limit replies are not counted against the breaker; the executor already
// backs off for those.
type BreakerClient struct {
	inner Client
	cb    *gobreaker.CircuitBreaker
}

// NewBreakerClient wraps inner with a circuit breaker.
func NewBreakerClient(inner Client, cfg BreakerConfig) *BreakerClient {
	if cfg.Name == "" {
		cfg.Name = "llm"
	}
	if cfg.FailThreshold == 0 {
		cfg.FailThreshold = 5
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 60 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	threshold := cfg.FailThreshold
	alerts := cfg.Alerts

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    cfg.Name,
		Timeout: cfg.Cooldown,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || IsRateLimited(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.BreakerStateChanges.Add(1)
			logger.Warn("circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
			if alerts != nil {
				alerts.Dispatch(context.Background(), breakerAlert(name, from, to))
			}
		},
	})
	return &BreakerClient{inner: inner, cb: cb}
}

// Complete forwards to the wrapped client unless the breaker is open, in which
// case gobreaker.ErrOpenState is returned.
func (b *BreakerClient) Complete(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	out, err := b.cb.Execute(func() (interface{}, error) {
		return b.inner.Complete(ctx, req)
	})
	if err != nil {
		return nil, err
	}
	return out.(*ChatResponse), nil
}

// State returns the breaker state name.
func (b *BreakerClient) State() string {
	return b.cb.State().String()
}

func breakerAlert(name string, from, to gobreaker.State) types.Alert {
	level := types.AlertLevelInfo
	msg := "llm circuit breaker " + to.String()
	switch to {
	case gobreaker.StateOpen:
		level = types.AlertLevelError
		msg = "llm circuit breaker opened, calls fail fast"
	case gobreaker.StateClosed:
		msg = "llm circuit breaker closed, calls resumed"
	}
	return types.Alert{
		Level:     level,
		Component: "llm",
		Message:   msg,
		Details:   map[string]any{"breaker": name, "from": from.String(), "to": to.String()},
	}
}
