package provider

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dwsmith1983/clearmail/internal/metrics"
)

// Connector owns the lazily-initialized DocumentStore shared by the
// checkpoint store and the interval resolver.
//
// The first successful open wins; later calls reuse the same store. A failed
// open is not cached so the next call tries again.
type Connector struct {
	mu     sync.Mutex
	open   Opener
	store  DocumentStore
	logger *slog.Logger
}

// NewConnector creates a Connector that opens stores with open.
func NewConnector(open Opener, logger *slog.Logger) *Connector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Connector{open: open, logger: logger}
}

// NewStaticConnector wraps an already-open store.
func NewStaticConnector(store DocumentStore) *Connector {
	return &Connector{store: store, logger: slog.Default()}
}

// Store returns the shared store, opening it on first use.
func (c *Connector) Store(ctx context.Context) (DocumentStore, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.store != nil {
		return c.store, nil
	}
	if c.open == nil {
		return nil, fmt.Errorf("no document store configured")
	}

	store, err := c.open(ctx)
	if err != nil {
		metrics.StoreInitFailures.Add(1)
		return nil, fmt.Errorf("opening document store: %w", err)
	}
	c.store = store
	c.logger.Info("document store connection established")
	return store, nil
}

// Close closes the store if it was opened. It is safe on a nil Connector.
func (c *Connector) Close() error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.store == nil {
		return nil
	}
	err := c.store.Close()
	c.store = nil
	return err
}
