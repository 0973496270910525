// Package checkpoint persists the position the last run reached.
//
// In remote-first mode the checkpoint lives in a field of a remote document
// with a local file as fallback; when both are unavailable the current time is
// used so a run can always start. In local-only mode the file is the only
// source.
package checkpoint

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/dwsmith1983/clearmail/internal/fallback"
	"github.com/dwsmith1983/clearmail/internal/metrics"
	"github.com/dwsmith1983/clearmail/internal/provider"
	"github.com/dwsmith1983/clearmail/pkg/types"
)

// TimestampLayout is the format of locally generated checkpoints.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// DefaultLocalPath is used when no timestamp file is configured.
const DefaultLocalPath = "lastTimestamp.txt"

// Where a checkpoint value came from.
const (
	SourceRemote  = "remote"  // stored field in the remote document
	SourceFresh   = "fresh"   // remote store reachable, nothing stored yet
	SourceLocal   = "local"   // local file
	SourceDefault = "default" // current time, no source available
)

// Result is a checkpoint value and its source.
type Result struct {
	Value  string
	Source string
}

// Alerter receives operator alerts. *alert.Dispatcher satisfies it.
type Alerter interface {
	Dispatch(ctx context.Context, a types.Alert)
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the store logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithClock replaces the clock used for generated timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithAlerts sends an alert whenever the store degrades to a fallback.
func WithAlerts(a Alerter) Option {
	return func(s *Store) { s.alerts = a }
}

// Store reads and writes the checkpoint. It is safe for concurrent use if the
// underlying document store is.
type Store struct {
	cfg    types.CheckpointConfig
	conn   *provider.Connector
	logger *slog.Logger
	now    func() time.Time
	alerts Alerter

	read *fallback.Chain[Result]
}

// New creates a checkpoint store. conn may be nil in local-only mode.
func New(cfg types.CheckpointConfig, conn *provider.Connector, opts ...Option) *Store {
	if cfg.LocalPath == "" {
		cfg.LocalPath = DefaultLocalPath
	}
	s := &Store{
		cfg:    cfg,
		conn:   conn,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "checkpoint")

	s.read = fallback.New("checkpoint read", s.logger,
		fallback.Strategy[Result]{Name: SourceRemote, Run: s.readRemote},
		fallback.Strategy[Result]{Name: SourceLocal, Run: s.readLocalFallback},
		fallback.Strategy[Result]{Name: SourceDefault, Run: s.readOutage},
	)
	return s
}

// Get returns the checkpoint value. It never fails.
func (s *Store) Get(ctx context.Context) string {
	return s.Lookup(ctx).Value
}

// Lookup returns the checkpoint value with its source.
func (s *Store) Lookup(ctx context.Context) Result {
	if !s.cfg.UseRemoteStore {
		return s.lookupLocalOnly()
	}
	out, err := s.read.Run(ctx)
	if err != nil {
		// Unreachable: the last strategy always succeeds.
		return Result{Value: s.timestamp(), Source: SourceDefault}
	}
	return out.Value
}

// Save records ts. In remote-first mode a failure of both the remote store
// and the local file is logged and dropped. In local-only mode the file
// write error is returned.
func (s *Store) Save(ctx context.Context, ts string) error {
	if !s.cfg.UseRemoteStore {
		if err := writeLocal(s.cfg.LocalPath, ts); err != nil {
			s.logger.Error("saving checkpoint to local file failed", "path", s.cfg.LocalPath, "error", err)
			return err
		}
		s.logger.Info("saved checkpoint to local file", "path", s.cfg.LocalPath)
		return nil
	}

	chain := fallback.New("checkpoint write", s.logger,
		fallback.Strategy[struct{}]{Name: SourceRemote, Run: func(ctx context.Context) (struct{}, error) {
			return struct{}{}, s.writeRemote(ctx, ts)
		}},
		fallback.Strategy[struct{}]{Name: SourceLocal, Run: func(context.Context) (struct{}, error) {
			return struct{}{}, writeLocal(s.cfg.LocalPath, ts)
		}},
	)
	out, err := chain.Run(ctx)
	if err != nil {
		metrics.CheckpointWriteDropped.Add(1)
		s.logger.Error("checkpoint not saved", "error", err)
		s.alert(ctx, types.AlertLevelError, "checkpoint not saved", map[string]any{"timestamp": ts, "error": err.Error()})
		return nil
	}
	if out.Source == SourceLocal {
		metrics.CheckpointFallbacks.Add(1)
		s.alert(ctx, types.AlertLevelWarning, "remote store unavailable, checkpoint saved to local file",
			map[string]any{"path": s.cfg.LocalPath})
	}
	s.logger.Info("saved checkpoint", "source", out.Source)
	return nil
}

func (s *Store) timestamp() string {
	return s.now().UTC().Format(TimestampLayout)
}

func (s *Store) document(ctx context.Context) (provider.DocumentStore, error) {
	if s.conn == nil {
		return nil, errors.New("no document store configured")
	}
	return s.conn.Store(ctx)
}

func (s *Store) readRemote(ctx context.Context) (Result, error) {
	store, err := s.document(ctx)
	if err != nil {
		return Result{}, err
	}
	doc, err := store.GetDocument(ctx, s.cfg.Collection, s.cfg.Document)
	if err != nil && !errors.Is(err, provider.ErrNotFound) {
		return Result{}, err
	}
	if v, ok := provider.StringField(doc, s.cfg.Field); ok {
		s.logger.Debug("retrieved checkpoint from remote store")
		return Result{Value: v, Source: SourceRemote}, nil
	}
	s.logger.Info("no checkpoint stored, starting fresh",
		"collection", s.cfg.Collection, "document", s.cfg.Document, "field", s.cfg.Field)
	return Result{Value: s.timestamp(), Source: SourceFresh}, nil
}

func (s *Store) readLocalFallback(ctx context.Context) (Result, error) {
	v, err := readLocal(s.cfg.LocalPath)
	if err != nil {
		return Result{}, err
	}
	metrics.CheckpointFallbacks.Add(1)
	s.logger.Warn("remote store unavailable, using local checkpoint", "path", s.cfg.LocalPath)
	s.alert(ctx, types.AlertLevelWarning, "remote store unavailable, using local checkpoint",
		map[string]any{"path": s.cfg.LocalPath})
	return Result{Value: v, Source: SourceLocal}, nil
}

func (s *Store) readOutage(ctx context.Context) (Result, error) {
	metrics.CheckpointReadOutages.Add(1)
	s.logger.Error("no checkpoint source available, using current time")
	ts := s.timestamp()
	s.alert(ctx, types.AlertLevelError, "no checkpoint source available, using current time",
		map[string]any{"timestamp": ts})
	return Result{Value: ts, Source: SourceDefault}, nil
}

func (s *Store) alert(ctx context.Context, level types.AlertLevel, msg string, details map[string]any) {
	if s.alerts == nil {
		return
	}
	s.alerts.Dispatch(ctx, types.Alert{Level: level, Component: "checkpoint", Message: msg, Details: details})
}

func (s *Store) writeRemote(ctx context.Context, ts string) error {
	store, err := s.document(ctx)
	if err != nil {
		return err
	}
	return store.MergeFields(ctx, s.cfg.Collection, s.cfg.Document, map[string]any{s.cfg.Field: ts})
}

func (s *Store) lookupLocalOnly() Result {
	v, err := readLocal(s.cfg.LocalPath)
	if err != nil {
		s.logger.Info("no local checkpoint, using current time", "path", s.cfg.LocalPath, "error", err)
		return Result{Value: s.timestamp(), Source: SourceDefault}
	}
	return Result{Value: v, Source: SourceLocal}
}
