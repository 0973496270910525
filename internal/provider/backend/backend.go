// Package backend selects and opens the configured document store.
package backend

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dwsmith1983/clearmail/internal/provider"
	ddbprov "github.com/dwsmith1983/clearmail/internal/provider/dynamodb"
	fsprov "github.com/dwsmith1983/clearmail/internal/provider/firestore"
	"github.com/dwsmith1983/clearmail/internal/provider/postgres"
	"github.com/dwsmith1983/clearmail/internal/provider/redis"
	"github.com/dwsmith1983/clearmail/pkg/types"
)

// Opener returns a provider.Opener for cfg.Provider. It does not connect;
// the returned function is called lazily by a provider.Connector.
func Opener(cfg *types.ProjectConfig, logger *slog.Logger) (provider.Opener, error) {
	if logger == nil {
		logger = slog.Default()
	}
	creds := cfg.Settings.Credentials()
	logger = logger.With("provider", cfg.Provider)

	switch cfg.Provider {
	case types.ProviderFirestore:
		fc := cfg.Firestore
		return func(ctx context.Context) (provider.DocumentStore, error) {
			return fsprov.Open(ctx, fc, creds, logger)
		}, nil
	case types.ProviderDynamoDB:
		if cfg.DynamoDB == nil {
			return nil, fmt.Errorf("dynamodb config is required when provider is dynamodb")
		}
		dc := cfg.DynamoDB
		return func(ctx context.Context) (provider.DocumentStore, error) {
			return ddbprov.Open(ctx, dc, creds, logger)
		}, nil
	case types.ProviderRedis:
		if cfg.Redis == nil {
			return nil, fmt.Errorf("redis config is required when provider is redis")
		}
		rc := cfg.Redis
		return func(ctx context.Context) (provider.DocumentStore, error) {
			return redis.Open(ctx, rc, logger)
		}, nil
	case types.ProviderPostgres:
		if cfg.Postgres == nil {
			return nil, fmt.Errorf("postgres config is required when provider is postgres")
		}
		pc := cfg.Postgres
		return func(ctx context.Context) (provider.DocumentStore, error) {
			return postgres.Open(ctx, pc, logger)
		}, nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", cfg.Provider)
	}
}

// NewConnector builds a Connector for cfg.
func NewConnector(cfg *types.ProjectConfig, logger *slog.Logger) (*provider.Connector, error) {
	open, err := Opener(cfg, logger)
	if err != nil {
		return nil, err
	}
	return provider.NewConnector(open, logger), nil
}
