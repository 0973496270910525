package types

// Supported remote document store providers.
const (
	ProviderFirestore = "firestore"
	ProviderDynamoDB  = "dynamodb"
	ProviderRedis     = "redis"
	ProviderPostgres  = "postgres"
)

// ProjectConfig is the top-level clearmail.yaml configuration.
type ProjectConfig struct {
	Provider  string           `yaml:"provider" json:"provider"`
	Settings  Settings         `yaml:"settings" json:"settings"`
	Firestore *FirestoreConfig `yaml:"firestore,omitempty" json:"firestore,omitempty"`
	DynamoDB  *DynamoDBConfig  `yaml:"dynamodb,omitempty" json:"dynamodb,omitempty"`
	Redis     *RedisConfig     `yaml:"redis,omitempty" json:"redis,omitempty"`
	Postgres  *PostgresConfig  `yaml:"postgres,omitempty" json:"postgres,omitempty"`
	LLM       *LLMConfig       `yaml:"llm,omitempty" json:"llm,omitempty"`
	Retry     *RetryConfig     `yaml:"retry,omitempty" json:"retry,omitempty"`
	Alerts    []AlertConfig    `yaml:"alerts,omitempty" json:"alerts,omitempty"`
	Schedule  *ScheduleConfig  `yaml:"schedule,omitempty" json:"schedule,omitempty"`
}

// Settings holds the checkpoint, credential and interval options shared by
// every deployment.
type Settings struct {
	UseRemoteStoreForTimestamp bool   `yaml:"useRemoteStoreForTimestamp" json:"useRemoteStoreForTimestamp"`
	RemoteCollection           string `yaml:"remoteCollection" json:"remoteCollection"`
	RemoteDocument             string `yaml:"remoteDocument" json:"remoteDocument"`
	RemoteField                string `yaml:"remoteField" json:"remoteField"`
	IsManagedEnvironment       bool   `yaml:"isManagedEnvironment" json:"isManagedEnvironment"`
	CredentialFilePath         string `yaml:"credentialFilePath,omitempty" json:"credentialFilePath,omitempty"`
	RefreshInterval            int    `yaml:"refreshInterval" json:"refreshInterval"` // seconds
	TimestampFile              string `yaml:"timestampFile,omitempty" json:"timestampFile,omitempty"`
	IntervalCollection         string `yaml:"intervalCollection,omitempty" json:"intervalCollection,omitempty"`
	IntervalDocument           string `yaml:"intervalDocument,omitempty" json:"intervalDocument,omitempty"`
	IntervalField              string `yaml:"intervalField,omitempty" json:"intervalField,omitempty"`
}

// Checkpoint returns the checkpoint store settings.
func (s Settings) Checkpoint() CheckpointConfig {
	return CheckpointConfig{
		UseRemoteStore: s.UseRemoteStoreForTimestamp,
		Collection:     s.RemoteCollection,
		Document:       s.RemoteDocument,
		Field:          s.RemoteField,
		LocalPath:      s.TimestampFile,
	}
}

// Interval returns the interval resolver settings.
func (s Settings) Interval() IntervalConfig {
	return IntervalConfig{
		Collection:      s.IntervalCollection,
		Document:        s.IntervalDocument,
		Field:           s.IntervalField,
		RefreshInterval: s.RefreshInterval,
	}
}

// Credentials returns the credential strategy for the remote store.
func (s Settings) Credentials() CredentialConfig {
	return CredentialConfig{
		Managed:  s.IsManagedEnvironment,
		FilePath: s.CredentialFilePath,
	}
}

// CheckpointConfig locates the checkpoint in the remote store and on disk.
type CheckpointConfig struct {
	UseRemoteStore bool   `yaml:"useRemoteStore" json:"useRemoteStore"`
	Collection     string `yaml:"collection" json:"collection"`
	Document       string `yaml:"document" json:"document"`
	Field          string `yaml:"field" json:"field"`
	LocalPath      string `yaml:"localPath" json:"localPath"`
}

// IntervalConfig locates the run-interval template and its static default.
type IntervalConfig struct {
	Collection      string `yaml:"collection" json:"collection"`
	Document        string `yaml:"document" json:"document"`
	Field           string `yaml:"field" json:"field"`
	RefreshInterval int    `yaml:"refreshInterval" json:"refreshInterval"`
}

// CredentialConfig selects between ambient and explicit credentials.
type CredentialConfig struct {
	Managed  bool   `yaml:"managed" json:"managed"`
	FilePath string `yaml:"filePath,omitempty" json:"filePath,omitempty"`
}

// FirestoreConfig holds Firestore connection settings.
type FirestoreConfig struct {
	ProjectID string `yaml:"projectId" json:"projectId"`
	Emulator  string `yaml:"emulator,omitempty" json:"emulator,omitempty"`
}

// DynamoDBConfig holds DynamoDB connection and table settings.
type DynamoDBConfig struct {
	TableName string `yaml:"tableName" json:"tableName"`
	Region    string `yaml:"region" json:"region"`
	Endpoint  string `yaml:"endpoint,omitempty" json:"endpoint,omitempty"`
	Profile   string `yaml:"profile,omitempty" json:"profile,omitempty"`
	// CreateTable creates the table on open when it does not exist.
	CreateTable bool `yaml:"createTable,omitempty" json:"createTable,omitempty"`
}

// RedisConfig holds Redis/Valkey connection settings.
type RedisConfig struct {
	Addr      string `yaml:"addr" json:"addr"`
	Password  string `yaml:"password,omitempty" json:"password,omitempty"`
	DB        int    `yaml:"db,omitempty" json:"db,omitempty"`
	KeyPrefix string `yaml:"keyPrefix,omitempty" json:"keyPrefix,omitempty"`
}

// PostgresConfig holds Postgres connection settings.
type PostgresConfig struct {
	DSN     string `yaml:"dsn" json:"dsn"`
	Table   string `yaml:"table,omitempty" json:"table,omitempty"`
	Migrate bool   `yaml:"migrate,omitempty" json:"migrate,omitempty"`
}

// LLMConfig points the executor at an OpenAI-compatible endpoint.
type LLMConfig struct {
	BaseURL      string `yaml:"baseUrl,omitempty" json:"baseUrl,omitempty"`
	Model        string `yaml:"model" json:"model"`
	APIKeyEnv    string `yaml:"apiKeyEnv,omitempty" json:"apiKeyEnv,omitempty"`
	APIKeySecret string `yaml:"apiKeySecret,omitempty" json:"apiKeySecret,omitempty"`
}

// RetryConfig configures the LLM retry executor. Durations are milliseconds.
type RetryConfig struct {
	MaxAttempts          int `yaml:"maxAttempts,omitempty" json:"maxAttempts,omitempty"`
	BaseBackoffMs        int `yaml:"baseBackoffMs,omitempty" json:"baseBackoffMs,omitempty"`
	MaxRateLimitAttempts int `yaml:"maxRateLimitAttempts,omitempty" json:"maxRateLimitAttempts,omitempty"`
	TimeoutMs            int `yaml:"timeoutMs,omitempty" json:"timeoutMs,omitempty"`
	RateLimitCooldownMs  int `yaml:"rateLimitCooldownMs,omitempty" json:"rateLimitCooldownMs,omitempty"`
}

// ScheduleConfig names the EventBridge Scheduler schedule whose rate follows
// the resolved run interval.
type ScheduleConfig struct {
	Name  string `yaml:"name" json:"name"`
	Group string `yaml:"group,omitempty" json:"group,omitempty"`
}
