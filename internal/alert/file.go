package alert

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/dwsmith1983/clearmail/pkg/types"
)

// FileOption configures a FileSink.
type FileOption func(*FileSink)

// WithMaxBytes rotates the alert file to <path>.1 when a write would grow it
// past n bytes. Only one rotated generation is kept.
func WithMaxBytes(n int64) FileOption {
	return func(s *FileSink) { s.maxBytes = n }
}

// WithMinLevel drops alerts below level.
func WithMinLevel(level types.AlertLevel) FileOption {
	return func(s *FileSink) { s.minLevel = level }
}

// FileSink appends alerts as JSON lines to a local file, for hosts where
// the checkpoint file lives and no network sink is reachable.
type FileSink struct {
	path     string
	maxBytes int64
	minLevel types.AlertLevel

	mu   sync.Mutex
	size int64
}

// NewFileSink creates a file sink, checking the file is writable.
func NewFileSink(path string, opts ...FileOption) (*FileSink, error) {
	s := &FileSink{path: path}
	for _, opt := range opts {
		opt(s)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening alert file: %w", err)
	}
	defer func() { _ = f.Close() }()
	fi, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat alert file: %w", err)
	}
	s.size = fi.Size()
	return s, nil
}

// Name returns the sink identifier.
func (s *FileSink) Name() string { return string(types.AlertFile) }

// Send appends the alert as a JSON line, rotating first if needed.
func (s *FileSink) Send(_ context.Context, alert types.Alert) error {
	if alert.Level.Rank() < s.minLevel.Rank() {
		return nil
	}
	data, err := json.Marshal(alert)
	if err != nil {
		return err
	}
	data = append(data, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.maxBytes > 0 && s.size > 0 && s.size+int64(len(data)) > s.maxBytes {
		if err := os.Rename(s.path, s.path+".1"); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("rotating alert file: %w", err)
		}
		s.size = 0
	}

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	n, err := f.Write(data)
	s.size += int64(n)
	return err
}
