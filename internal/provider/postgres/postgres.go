package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dwsmith1983/clearmail/internal/provider"
	"github.com/dwsmith1983/clearmail/pkg/types"
)

// Compile-time interface satisfaction check.
var _ provider.DocumentStore = (*Store)(nil)

// Store is a Postgres-backed document store.
type Store struct {
	pool  *pgxpool.Pool
	table string
}

// Open connects to Postgres and verifies the connection. When cfg.Migrate is
// set the documents table is created if missing. A missing or malformed DSN
// is a *provider.ConfigError; ping and migration failures are not.
func Open(ctx context.Context, cfg *types.PostgresConfig, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg == nil || cfg.DSN == "" {
		return nil, &provider.ConfigError{Provider: types.ProviderPostgres, Err: errors.New("dsn is required")}
	}
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, &provider.ConfigError{Provider: types.ProviderPostgres, Err: fmt.Errorf("postgres connect: %w", err)}
	}
	s := NewFromPool(pool, cfg.Table)
	if err := s.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	if cfg.Migrate {
		if err := s.Migrate(ctx); err != nil {
			pool.Close()
			return nil, err
		}
	}
	logger.Info("postgres initialized", "table", s.table)
	return s, nil
}

// NewFromPool creates a Store from an existing pool. An empty table selects
// the default table name.
func NewFromPool(pool *pgxpool.Pool, table string) *Store {
	return &Store{pool: pool, table: tableIdent(table)}
}

// tableIdent quotes a possibly schema-qualified table name.
func tableIdent(table string) string {
	if table == "" {
		table = defaultTable
	}
	if schema, name, ok := strings.Cut(table, "."); ok {
		return pgx.Identifier{schema, name}.Sanitize()
	}
	return pgx.Identifier{table}.Sanitize()
}

// Ping checks connectivity to the database.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("postgres ping: %w", err)
	}
	return nil
}

// Migrate runs the schema DDL.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaDDL(s.table)); err != nil {
		return fmt.Errorf("postgres migrate: %w", err)
	}
	return nil
}

// Close closes the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}
