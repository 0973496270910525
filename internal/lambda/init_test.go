package lambda

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dwsmith1983/clearmail/internal/telemetry"
	"github.com/dwsmith1983/clearmail/pkg/types"
)

func TestInit_MissingTableName(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	t.Setenv("TABLE_NAME", "")
	t.Setenv("AWS_REGION", "us-east-1")

	_, err := Init(t.Context())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "TABLE_NAME")
}

func TestInit_MissingRegion(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	t.Setenv("TABLE_NAME", "clearmail-test")
	t.Setenv("AWS_REGION", "")

	_, err := Init(t.Context())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "AWS_REGION")
}

func TestInit_FromEnvironment(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	t.Setenv("TABLE_NAME", "clearmail-test")
	t.Setenv("AWS_REGION", "us-east-1")
	t.Setenv("REMOTE_COLLECTION", "state")
	t.Setenv("REFRESH_INTERVAL", "120")
	t.Setenv("LLM_MODEL", "gpt-4o-mini")
	t.Setenv("LLM_API_KEY_SECRET_ID", "")
	t.Setenv("LLM_API_KEY", "sk-test")

	d, err := Init(t.Context())
	require.NoError(t, err)
	defer d.Connector.Close()

	assert.Equal(t, types.ProviderDynamoDB, d.Config.Provider)
	assert.True(t, d.Config.Settings.IsManagedEnvironment)
	assert.Equal(t, "state", d.Config.Settings.IntervalCollection)
	assert.Equal(t, "/tmp/lastTimestamp.txt", d.Config.Settings.TimestampFile)
	assert.Equal(t, 120, d.Interval.Default())
	assert.NotNil(t, d.Executor)
}

func TestInit_NoAPIKeyDisablesExecutor(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	t.Setenv("TABLE_NAME", "clearmail-test")
	t.Setenv("AWS_REGION", "us-east-1")
	t.Setenv("LLM_MODEL", "gpt-4o-mini")
	t.Setenv("LLM_API_KEY_SECRET_ID", "")
	t.Setenv("LLM_API_KEY", "")

	d, err := Init(t.Context())
	require.NoError(t, err)
	assert.Nil(t, d.Executor)
}

func TestInit_ConfigPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "clearmail.yaml")
	require.NoError(t, os.WriteFile(path, []byte("settings:\n  timestampFile: ts.txt\n"), 0o644))
	t.Setenv("CONFIG_PATH", path)

	d, err := Init(t.Context())
	require.NoError(t, err)
	assert.Nil(t, d.Connector)
	assert.Equal(t, filepath.Join(dir, "ts.txt"), d.Config.Settings.TimestampFile)
	assert.False(t, d.Config.Settings.UseRemoteStoreForTimestamp)
}

func TestInit_BadRefreshInterval(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	t.Setenv("TABLE_NAME", "clearmail-test")
	t.Setenv("AWS_REGION", "us-east-1")
	t.Setenv("REFRESH_INTERVAL", "five")

	_, err := Init(t.Context())
	assert.ErrorContains(t, err, "REFRESH_INTERVAL")
}

func TestEnvOrDefault(t *testing.T) {
	t.Setenv("TEST_KEY", "custom")
	assert.Equal(t, "custom", envOrDefault("TEST_KEY", "fallback"))

	t.Setenv("TEST_KEY", "")
	assert.Equal(t, "fallback", envOrDefault("TEST_KEY", "fallback"))
}

type mockSecrets struct {
	value *string
	err   error
	asked string
}

func (m *mockSecrets) GetSecretValue(_ context.Context, input *secretsmanager.GetSecretValueInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	m.asked = aws.ToString(input.SecretId)
	if m.err != nil {
		return nil, m.err
	}
	return &secretsmanager.GetSecretValueOutput{SecretString: m.value}, nil
}

func TestResolveAPIKey_Secret(t *testing.T) {
	sm := &mockSecrets{value: aws.String(" sk-secret\n")}
	t.Setenv("LLM_API_KEY", "sk-env")

	key, err := ResolveAPIKey(context.Background(), sm, &types.LLMConfig{APIKeySecret: "clearmail/llm", APIKeyEnv: "LLM_API_KEY"})

	require.NoError(t, err)
	assert.Equal(t, "sk-secret", key)
	assert.Equal(t, "clearmail/llm", sm.asked)
}

func TestResolveAPIKey_SecretErrors(t *testing.T) {
	cfg := &types.LLMConfig{APIKeySecret: "clearmail/llm"}

	_, err := ResolveAPIKey(context.Background(), &mockSecrets{err: errors.New("denied")}, cfg)
	assert.ErrorContains(t, err, "denied")

	_, err = ResolveAPIKey(context.Background(), &mockSecrets{}, cfg)
	assert.ErrorContains(t, err, "no string value")

	_, err = ResolveAPIKey(context.Background(), nil, cfg)
	assert.Error(t, err)
}

func TestResolveAPIKey_Env(t *testing.T) {
	t.Setenv("MY_KEY", "sk-env")

	key, err := ResolveAPIKey(context.Background(), nil, &types.LLMConfig{APIKeyEnv: "MY_KEY"})
	require.NoError(t, err)
	assert.Equal(t, "sk-env", key)

	key, err = ResolveAPIKey(context.Background(), nil, &types.LLMConfig{})
	require.NoError(t, err)
	assert.Empty(t, key)
}

func TestStartTelemetry_DisabledWithoutEndpoint(t *testing.T) {
	t.Setenv(telemetry.EndpointEnv, "")

	stop := StartTelemetry(t.Context(), "clearmail-checkpoint", "test", nil)

	require.NotNil(t, stop)
	assert.NotPanics(t, stop)
}
