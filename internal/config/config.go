// Package config handles loading and validation of clearmail.yaml project configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/dwsmith1983/clearmail/pkg/types"
)

// FileName is the configuration file looked up by Load.
const FileName = "clearmail.yaml"

// Defaults applied to unset settings.
const (
	DefaultField           = "lastTimestamp"
	DefaultTimestampFile   = "lastTimestamp.txt"
	DefaultRefreshInterval = 300
	DefaultIntervalField   = "refreshInterval"
	DefaultAPIKeyEnv       = "LLM_API_KEY"
)

// Load reads and parses clearmail.yaml from the given directory.
func Load(dir string) (*types.ProjectConfig, error) {
	return LoadFile(filepath.Join(dir, FileName))
}

// LoadFile reads path, applies defaults and CLEARMAIL_* environment
// overrides, resolves relative paths against the file's directory and
// validates the result.
func LoadFile(path string) (*types.ProjectConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var cfg types.ProjectConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := applyEnv(&cfg); err != nil {
		return nil, fmt.Errorf("applying environment: %w", err)
	}
	applyDefaults(&cfg)
	resolvePaths(&cfg, filepath.Dir(path))

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return &cfg, nil
}

func applyDefaults(cfg *types.ProjectConfig) {
	s := &cfg.Settings
	if cfg.Provider == "" && s.UseRemoteStoreForTimestamp {
		cfg.Provider = types.ProviderFirestore
	}
	if s.RemoteField == "" {
		s.RemoteField = DefaultField
	}
	if s.TimestampFile == "" {
		s.TimestampFile = DefaultTimestampFile
	}
	if s.RefreshInterval <= 0 {
		s.RefreshInterval = DefaultRefreshInterval
	}
	if s.IntervalCollection == "" {
		s.IntervalCollection = s.RemoteCollection
	}
	if s.IntervalDocument == "" {
		s.IntervalDocument = s.RemoteDocument
	}
	if s.IntervalField == "" {
		s.IntervalField = DefaultIntervalField
	}
	if cfg.LLM != nil && cfg.LLM.APIKeyEnv == "" {
		cfg.LLM.APIKeyEnv = DefaultAPIKeyEnv
	}
}

// resolvePaths makes relative file settings relative to dir.
func resolvePaths(cfg *types.ProjectConfig, dir string) {
	s := &cfg.Settings
	if s.CredentialFilePath != "" && !filepath.IsAbs(s.CredentialFilePath) {
		s.CredentialFilePath = filepath.Join(dir, s.CredentialFilePath)
	}
	if !filepath.IsAbs(s.TimestampFile) {
		s.TimestampFile = filepath.Join(dir, s.TimestampFile)
	}
}

// Validate checks that the settings needed by the selected mode are present.
func Validate(cfg *types.ProjectConfig) error {
	s := cfg.Settings
	if s.UseRemoteStoreForTimestamp {
		if s.RemoteCollection == "" {
			return errors.New("settings.remoteCollection is required when useRemoteStoreForTimestamp is set")
		}
		if s.RemoteDocument == "" {
			return errors.New("settings.remoteDocument is required when useRemoteStoreForTimestamp is set")
		}
	}
	switch cfg.Provider {
	case "":
		if s.UseRemoteStoreForTimestamp {
			return errors.New("provider is required")
		}
	case types.ProviderFirestore:
	case types.ProviderDynamoDB:
		if cfg.DynamoDB == nil {
			return errors.New("dynamodb config is required when provider is dynamodb")
		}
		if cfg.DynamoDB.TableName == "" {
			return errors.New("dynamodb.tableName is required")
		}
	case types.ProviderRedis:
		if cfg.Redis == nil {
			return errors.New("redis config is required when provider is redis")
		}
		if cfg.Redis.Addr == "" {
			return errors.New("redis.addr is required")
		}
	case types.ProviderPostgres:
		if cfg.Postgres == nil || cfg.Postgres.DSN == "" {
			return errors.New("postgres.dsn is required when provider is postgres")
		}
	default:
		return fmt.Errorf("unsupported provider: %s", cfg.Provider)
	}
	if r := cfg.Retry; r != nil {
		if r.MaxAttempts < 0 || r.BaseBackoffMs < 0 || r.TimeoutMs < 0 || r.RateLimitCooldownMs < 0 {
			return errors.New("retry durations and maxAttempts must not be negative")
		}
	}
	if cfg.Schedule != nil && cfg.Schedule.Name == "" {
		return errors.New("schedule.name is required")
	}
	if cfg.LLM != nil && cfg.LLM.Model == "" {
		return errors.New("llm.model is required")
	}
	return nil
}

// envOverrides maps CLEARMAIL_* variables onto config fields.
var envOverrides = []struct {
	name  string
	apply func(cfg *types.ProjectConfig, v string) error
}{
	{"CLEARMAIL_PROVIDER", func(c *types.ProjectConfig, v string) error { c.Provider = v; return nil }},
	{"CLEARMAIL_USE_REMOTE_STORE", func(c *types.ProjectConfig, v string) error {
		return parseBool(v, &c.Settings.UseRemoteStoreForTimestamp)
	}},
	{"CLEARMAIL_MANAGED_ENVIRONMENT", func(c *types.ProjectConfig, v string) error {
		return parseBool(v, &c.Settings.IsManagedEnvironment)
	}},
	{"CLEARMAIL_CREDENTIAL_FILE", func(c *types.ProjectConfig, v string) error { c.Settings.CredentialFilePath = v; return nil }},
	{"CLEARMAIL_TIMESTAMP_FILE", func(c *types.ProjectConfig, v string) error { c.Settings.TimestampFile = v; return nil }},
	{"CLEARMAIL_REFRESH_INTERVAL", func(c *types.ProjectConfig, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("CLEARMAIL_REFRESH_INTERVAL: %w", err)
		}
		c.Settings.RefreshInterval = n
		return nil
	}},
	{"CLEARMAIL_PROJECT_ID", func(c *types.ProjectConfig, v string) error {
		if c.Firestore == nil {
			c.Firestore = &types.FirestoreConfig{}
		}
		c.Firestore.ProjectID = v
		return nil
	}},
	{"CLEARMAIL_DYNAMODB_TABLE", func(c *types.ProjectConfig, v string) error {
		if c.DynamoDB == nil {
			c.DynamoDB = &types.DynamoDBConfig{}
		}
		c.DynamoDB.TableName = v
		return nil
	}},
	{"CLEARMAIL_REDIS_ADDR", func(c *types.ProjectConfig, v string) error {
		if c.Redis == nil {
			c.Redis = &types.RedisConfig{}
		}
		c.Redis.Addr = v
		return nil
	}},
	{"CLEARMAIL_POSTGRES_DSN", func(c *types.ProjectConfig, v string) error {
		if c.Postgres == nil {
			c.Postgres = &types.PostgresConfig{}
		}
		c.Postgres.DSN = v
		return nil
	}},
}

func applyEnv(cfg *types.ProjectConfig) error {
	for _, o := range envOverrides {
		v, ok := os.LookupEnv(o.name)
		if !ok || v == "" {
			continue
		}
		if err := o.apply(cfg, v); err != nil {
			return err
		}
	}
	return nil
}

func parseBool(v string, dst *bool) error {
	b, err := strconv.ParseBool(v)
	if err != nil {
		return err
	}
	*dst = b
	return nil
}
