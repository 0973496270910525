// Package redis implements the DocumentStore interface using Redis/Valkey.
//
// Each document is a hash at <prefix><collection>/<document>. Field values
// are stored as their string form, so numeric fields read back as strings.
package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	goredis "github.com/redis/go-redis/v9"

	"github.com/dwsmith1983/clearmail/internal/provider"
	"github.com/dwsmith1983/clearmail/pkg/types"
)

const defaultPrefix = "clearmail:"

// Compile-time interface satisfaction check.
var _ provider.DocumentStore = (*Store)(nil)

// Store implements provider.DocumentStore backed by Redis/Valkey.
type Store struct {
	client *goredis.Client
	prefix string
}

// Open connects to Redis and verifies the connection with a ping. A missing
// address is a *provider.ConfigError; an unreachable server is not.
func Open(ctx context.Context, cfg *types.RedisConfig, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg == nil || cfg.Addr == "" {
		return nil, &provider.ConfigError{Provider: types.ProviderRedis, Err: errors.New("addr is required")}
	}
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	s := NewFromClient(client, cfg.KeyPrefix)
	if err := s.Ping(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connecting to %s: %w", cfg.Addr, err)
	}
	logger.Info("redis initialized", "addr", cfg.Addr, "db", cfg.DB)
	return s, nil
}

// NewFromClient creates a Store from an existing client (useful for testing).
func NewFromClient(client *goredis.Client, prefix string) *Store {
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &Store{client: client, prefix: prefix}
}

func (s *Store) key(collection, document string) string {
	return s.prefix + collection + "/" + document
}

// Ping checks connectivity to the Redis server.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

// GetDocument returns every field of the document hash.
func (s *Store) GetDocument(ctx context.Context, collection, document string) (map[string]any, error) {
	fields, err := s.client.HGetAll(ctx, s.key(collection, document)).Result()
	if err != nil {
		return nil, fmt.Errorf("reading %s/%s: %w", collection, document, err)
	}
	if len(fields) == 0 {
		return nil, provider.ErrNotFound
	}
	doc := make(map[string]any, len(fields))
	for k, v := range fields {
		doc[k] = v
	}
	return doc, nil
}

// MergeFields sets the given hash fields, leaving the others untouched.
func (s *Store) MergeFields(ctx context.Context, collection, document string, fields map[string]any) error {
	if len(fields) == 0 {
		return errors.New("no fields to merge")
	}
	values := make(map[string]any, len(fields))
	for k, v := range fields {
		values[k] = fmt.Sprint(v)
	}
	if err := s.client.HSet(ctx, s.key(collection, document), values).Err(); err != nil {
		return fmt.Errorf("writing %s/%s: %w", collection, document, err)
	}
	return nil
}

// Close closes the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}
