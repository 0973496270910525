// Package fallback runs an ordered list of strategies and returns the first
// one that succeeds.
package fallback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// Strategy is one way of producing a value.
type Strategy[T any] struct {
	Name string
	Run  func(ctx context.Context) (T, error)
}

// Outcome reports which strategy produced the value and what failed before it.
type Outcome[T any] struct {
	Value  T
	Source string
	Failed []string
}

// Chain is an ordered list of strategies. Failures are logged and the next
// strategy is tried; the first success short-circuits the rest.
type Chain[T any] struct {
	name       string
	logger     *slog.Logger
	strategies []Strategy[T]
}

// New creates a chain named for log output.
func New[T any](name string, logger *slog.Logger, strategies ...Strategy[T]) *Chain[T] {
	if logger == nil {
		logger = slog.Default()
	}
	return &Chain[T]{name: name, logger: logger, strategies: strategies}
}

// Run tries every strategy in order. If all fail, the returned error joins
// each strategy's error.
func (c *Chain[T]) Run(ctx context.Context) (Outcome[T], error) {
	var out Outcome[T]
	var errs []error
	for i, s := range c.strategies {
		v, err := s.Run(ctx)
		if err == nil {
			out.Value = v
			out.Source = s.Name
			if i > 0 {
				c.logger.Info("fallback strategy succeeded", "chain", c.name, "strategy", s.Name, "skipped", out.Failed)
			}
			return out, nil
		}
		out.Failed = append(out.Failed, s.Name)
		errs = append(errs, fmt.Errorf("%s: %w", s.Name, err))
		c.logger.Warn("fallback strategy failed", "chain", c.name, "strategy", s.Name, "error", err)
	}
	if len(errs) == 0 {
		return out, fmt.Errorf("%s: no strategies configured", c.name)
	}
	return out, fmt.Errorf("%s: all strategies failed: %w", c.name, errors.Join(errs...))
}
