// Package interval resolves the run interval from a remote template document
// with a short-lived cache and a static default.
package interval

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/dwsmith1983/clearmail/internal/metrics"
	"github.com/dwsmith1983/clearmail/internal/provider"
	"github.com/dwsmith1983/clearmail/pkg/types"
)

// DefaultTTL is how long a fetched template is trusted.
const DefaultTTL = 5 * time.Minute

// DefaultSeconds is used when no static refresh interval is configured.
const DefaultSeconds = 300

// DefaultFetchTimeout bounds one shared template fetch.
const DefaultFetchTimeout = 10 * time.Second

// Option configures a Resolver.
type Option func(*Resolver)

// WithLogger sets the resolver logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Resolver) { r.logger = l }
}

// WithClock replaces the clock used for cache expiry.
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) { r.now = now }
}

// WithTTL overrides DefaultTTL.
func WithTTL(ttl time.Duration) Option {
	return func(r *Resolver) { r.ttl = ttl }
}

// WithFetchTimeout overrides DefaultFetchTimeout.
func WithFetchTimeout(d time.Duration) Option {
	return func(r *Resolver) { r.fetchTimeout = d }
}

// Resolver returns the current run interval in seconds. It is safe for
// concurrent use; concurrent refreshes share one remote fetch.
type Resolver struct {
	cfg    types.IntervalConfig
	conn   *provider.Connector
	ttl          time.Duration
	fetchTimeout time.Duration
	now          func() time.Time
	logger       *slog.Logger
	group        singleflight.Group

	mu        sync.Mutex
	template  map[string]any
	fetchedAt time.Time
	cached    bool
}

// New creates a Resolver reading cfg.Field of cfg.Collection/cfg.Document.
func New(cfg types.IntervalConfig, conn *provider.Connector, opts ...Option) *Resolver {
	r := &Resolver{
		cfg:          cfg,
		conn:         conn,
		ttl:          DefaultTTL,
		fetchTimeout: DefaultFetchTimeout,
		now:          time.Now,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With("component", "interval")
	return r
}

// Default returns the static fallback interval.
func (r *Resolver) Default() int {
	if r.cfg.RefreshInterval > 0 {
		return r.cfg.RefreshInterval
	}
	return DefaultSeconds
}

// RunInterval returns the interval from a cached template when it is younger
// than the TTL, otherwise from a fresh fetch. Any failure or invalid value
// yields Default. A fetched template replaces the cache even when its value
// is invalid, so an absent value is not refetched until the TTL expires.
//
// The fetch is shared by every concurrent caller, so it ignores the
// cancellation of whichever caller started it and is bounded by the fetch
// timeout instead.
func (r *Resolver) RunInterval(ctx context.Context) int {
	if tmpl, ok := r.cachedTemplate(); ok {
		return r.fromTemplate(tmpl)
	}

	v, err, _ := r.group.Do("template", func() (any, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.fetchTimeout)
		defer cancel()
		return r.refresh(fctx)
	})
	if err != nil {
		metrics.IntervalFetchErrors.Add(1)
		r.logger.Warn("fetching run interval failed, using default", "default", r.Default(), "error", err)
		return r.Default()
	}
	return r.fromTemplate(v.(map[string]any))
}

func (r *Resolver) cachedTemplate() (map[string]any, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.cached || r.now().Sub(r.fetchedAt) >= r.ttl {
		return nil, false
	}
	return r.template, true
}

func (r *Resolver) refresh(ctx context.Context) (map[string]any, error) {
	if r.conn == nil {
		return nil, errors.New("no document store configured")
	}
	store, err := r.conn.Store(ctx)
	if err != nil {
		return nil, err
	}
	metrics.IntervalFetches.Add(1)
	tmpl, err := store.GetDocument(ctx, r.cfg.Collection, r.cfg.Document)
	if errors.Is(err, provider.ErrNotFound) {
		tmpl, err = map[string]any{}, nil
	}
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.template = tmpl
	r.fetchedAt = r.now()
	r.cached = true
	r.mu.Unlock()
	return tmpl, nil
}

func (r *Resolver) fromTemplate(tmpl map[string]any) int {
	raw, present := tmpl[r.cfg.Field]
	if secs, ok := ParseSeconds(raw); ok {
		return secs
	}
	if present {
		r.logger.Warn("invalid run interval, using default", "field", r.cfg.Field, "value", raw, "default", r.Default())
	} else {
		r.logger.Debug("no run interval set, using default", "field", r.cfg.Field, "default", r.Default())
	}
	return r.Default()
}

// ParseSeconds accepts a positive whole number given as an integer, an
// integral float or a decimal string.
func ParseSeconds(v any) (int, bool) {
	var n int64
	switch x := v.(type) {
	case int:
		n = int64(x)
	case int32:
		n = int64(x)
	case int64:
		n = x
	case float64:
		if x != math.Trunc(x) || x > math.MaxInt32 {
			return 0, false
		}
		n = int64(x)
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64)
		if err != nil {
			return 0, false
		}
		n = i
	default:
		return 0, false
	}
	if n <= 0 || n > math.MaxInt32 {
		return 0, false
	}
	return int(n), true
}
