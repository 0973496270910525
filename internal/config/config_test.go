package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dwsmith1983/clearmail/pkg/types"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	err := os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0o644)
	require.NoError(t, err)
	return dir
}

func TestLoad(t *testing.T) {
	dir := writeConfig(t, `provider: firestore
settings:
  useRemoteStoreForTimestamp: true
  remoteCollection: state
  remoteDocument: emailProcessor
  remoteField: lastRun
  isManagedEnvironment: false
  credentialFilePath: keys/service-account.json
  refreshInterval: 900
firestore:
  projectId: clearmail-prod
llm:
  model: gpt-4o-mini
retry:
  maxAttempts: 5
  timeoutMs: 10000
`)

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, types.ProviderFirestore, cfg.Provider)
	assert.True(t, cfg.Settings.UseRemoteStoreForTimestamp)
	assert.Equal(t, "lastRun", cfg.Settings.RemoteField)
	assert.Equal(t, 900, cfg.Settings.RefreshInterval)
	assert.Equal(t, filepath.Join(dir, "keys/service-account.json"), cfg.Settings.CredentialFilePath)
	assert.Equal(t, filepath.Join(dir, DefaultTimestampFile), cfg.Settings.TimestampFile)
	assert.Equal(t, "clearmail-prod", cfg.Firestore.ProjectID)
	assert.Equal(t, DefaultAPIKeyEnv, cfg.LLM.APIKeyEnv)
	assert.Equal(t, 5, cfg.Retry.MaxAttempts)
	assert.Equal(t, 10000, cfg.Retry.TimeoutMs)
}

func TestLoad_Defaults(t *testing.T) {
	dir := writeConfig(t, `settings:
  useRemoteStoreForTimestamp: true
  remoteCollection: state
  remoteDocument: emailProcessor
`)

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, types.ProviderFirestore, cfg.Provider)
	assert.Equal(t, DefaultField, cfg.Settings.RemoteField)
	assert.Equal(t, DefaultRefreshInterval, cfg.Settings.RefreshInterval)
	assert.Equal(t, "state", cfg.Settings.IntervalCollection)
	assert.Equal(t, "emailProcessor", cfg.Settings.IntervalDocument)
	assert.Equal(t, DefaultIntervalField, cfg.Settings.IntervalField)
}

func TestLoad_LocalOnly(t *testing.T) {
	dir := writeConfig(t, `settings:
  useRemoteStoreForTimestamp: false
  timestampFile: /var/lib/clearmail/ts.txt
`)

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Empty(t, cfg.Provider)
	assert.Equal(t, "/var/lib/clearmail/ts.txt", cfg.Settings.TimestampFile)
	assert.Equal(t, types.CheckpointConfig{
		UseRemoteStore: false,
		Field:          DefaultField,
		LocalPath:      "/var/lib/clearmail/ts.txt",
	}, cfg.Settings.Checkpoint())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent")
	assert.Error(t, err)
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := writeConfig(t, "invalid: [yaml")

	_, err := Load(dir)
	assert.Error(t, err)
}

func TestLoad_EnvOverrides(t *testing.T) {
	dir := writeConfig(t, `provider: firestore
settings:
  useRemoteStoreForTimestamp: false
  remoteCollection: state
  remoteDocument: emailProcessor
`)
	t.Setenv("CLEARMAIL_PROVIDER", "redis")
	t.Setenv("CLEARMAIL_REDIS_ADDR", "localhost:6380")
	t.Setenv("CLEARMAIL_USE_REMOTE_STORE", "true")
	t.Setenv("CLEARMAIL_REFRESH_INTERVAL", "45")

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, types.ProviderRedis, cfg.Provider)
	assert.Equal(t, "localhost:6380", cfg.Redis.Addr)
	assert.True(t, cfg.Settings.UseRemoteStoreForTimestamp)
	assert.Equal(t, 45, cfg.Settings.RefreshInterval)
}

func TestLoad_PostgresDSNFromEnv(t *testing.T) {
	dir := writeConfig(t, "provider: postgres\npostgres:\n  migrate: true\n")
	t.Setenv("CLEARMAIL_POSTGRES_DSN", "postgres://localhost/clearmail")

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "postgres://localhost/clearmail", cfg.Postgres.DSN)
	assert.True(t, cfg.Postgres.Migrate)
}

func TestLoad_BadEnvValue(t *testing.T) {
	dir := writeConfig(t, "settings: {}\n")
	t.Setenv("CLEARMAIL_REFRESH_INTERVAL", "soon")

	_, err := Load(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CLEARMAIL_REFRESH_INTERVAL")
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"missing collection", "settings:\n  useRemoteStoreForTimestamp: true\n  remoteDocument: d\n", "remoteCollection"},
		{"missing document", "settings:\n  useRemoteStoreForTimestamp: true\n  remoteCollection: c\n", "remoteDocument"},
		{"unsupported provider", "provider: mongo\n", "unsupported provider"},
		{"dynamodb without section", "provider: dynamodb\n", "dynamodb config is required"},
		{"dynamodb without table", "provider: dynamodb\ndynamodb:\n  region: us-east-1\n", "dynamodb.tableName"},
		{"redis without addr", "provider: redis\nredis:\n  db: 1\n", "redis.addr"},
		{"postgres without dsn", "provider: postgres\npostgres:\n  table: t\n", "postgres.dsn"},
		{"schedule without name", "schedule:\n  group: mail\n", "schedule.name"},
		{"llm without model", "llm:\n  baseUrl: http://localhost\n", "llm.model"},
		{"negative retry", "retry:\n  maxAttempts: -1\n", "must not be negative"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidation_RateLimitRetriesMayBeDisabled(t *testing.T) {
	cfg, err := Load(writeConfig(t, "retry:\n  maxRateLimitAttempts: -1\n"))
	require.NoError(t, err)
	assert.Equal(t, -1, cfg.Retry.MaxRateLimitAttempts)
}
