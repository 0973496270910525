// Package provider defines the remote document store interface shared by the
// checkpoint store and the interval resolver.
package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned by GetDocument when the document does not exist.
var ErrNotFound = errors.New("document not found")

// DocumentStore is a keyed document store holding flat field maps.
type DocumentStore interface {
	// GetDocument returns all fields of collection/document, or ErrNotFound.
	GetDocument(ctx context.Context, collection, document string) (map[string]any, error)

	// MergeFields writes fields into collection/document, creating it if
	// needed and leaving other fields untouched.
	MergeFields(ctx context.Context, collection, document string, fields map[string]any) error

	// Close releases the underlying client.
	Close() error
}

// Opener creates a DocumentStore. It is called lazily by a Connector.
type Opener func(ctx context.Context) (DocumentStore, error)

// ConfigError reports that no credential strategy could initialize a store.
// It is fatal: callers should not retry.
type ConfigError struct {
	Provider string
	Err      error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: configuration error: %v", e.Provider, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// IsConfigError reports whether err is, or wraps, a *ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// StringField returns doc[field] as a trimmed string. ok is false when the
// field is absent, not a string, or empty.
func StringField(doc map[string]any, field string) (string, bool) {
	v, ok := doc[field]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	if !ok {
		return "", false
	}
	s = strings.TrimSpace(s)
	return s, s != ""
}
