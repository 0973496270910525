package backend

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dwsmith1983/clearmail/internal/provider"
	"github.com/dwsmith1983/clearmail/pkg/types"
)

func TestOpener_Redis(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := &types.ProjectConfig{
		Provider: types.ProviderRedis,
		Redis:    &types.RedisConfig{Addr: mr.Addr()},
	}

	conn, err := NewConnector(cfg, nil)
	require.NoError(t, err)
	defer conn.Close()

	store, err := conn.Store(context.Background())
	require.NoError(t, err)
	_, err = store.GetDocument(context.Background(), "a", "b")
	assert.ErrorIs(t, err, provider.ErrNotFound)
}

func TestOpener_MissingSection(t *testing.T) {
	for _, p := range []string{types.ProviderDynamoDB, types.ProviderRedis, types.ProviderPostgres} {
		_, err := Opener(&types.ProjectConfig{Provider: p}, nil)
		assert.Error(t, err, p)
	}
}

func TestOpener_Unsupported(t *testing.T) {
	_, err := Opener(&types.ProjectConfig{Provider: "mongodb"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported provider")
}

func TestOpener_IsLazy(t *testing.T) {
	cfg := &types.ProjectConfig{
		Provider: types.ProviderDynamoDB,
		DynamoDB: &types.DynamoDBConfig{TableName: "t", Endpoint: "http://127.0.0.1:1"},
	}
	open, err := Opener(cfg, nil)
	require.NoError(t, err)
	assert.NotNil(t, open)
}

func TestOpener_PostgresBadDSN(t *testing.T) {
	cfg := &types.ProjectConfig{
		Provider: types.ProviderPostgres,
		Postgres: &types.PostgresConfig{DSN: "postgres://%zz"},
	}
	conn, err := NewConnector(cfg, nil)
	require.NoError(t, err)

	_, err = conn.Store(context.Background())
	require.Error(t, err)
	assert.True(t, provider.IsConfigError(err))
}
