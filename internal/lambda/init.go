package lambda

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/scheduler"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"

	"github.com/dwsmith1983/clearmail/internal/alert"
	"github.com/dwsmith1983/clearmail/internal/checkpoint"
	"github.com/dwsmith1983/clearmail/internal/config"
	"github.com/dwsmith1983/clearmail/internal/interval"
	"github.com/dwsmith1983/clearmail/internal/llm"
	"github.com/dwsmith1983/clearmail/internal/provider"
	"github.com/dwsmith1983/clearmail/internal/provider/backend"
	"github.com/dwsmith1983/clearmail/internal/schedule"
	"github.com/dwsmith1983/clearmail/internal/telemetry"
	"github.com/dwsmith1983/clearmail/pkg/types"
)

// Deps holds shared dependencies for Lambda handlers.
type Deps struct {
	Config      *types.ProjectConfig
	Connector   *provider.Connector // nil in local-only mode
	Checkpoints *checkpoint.Store
	Interval    *interval.Resolver
	Executor    *llm.Executor // nil when no API key is configured
	Alerts      *alert.Dispatcher
	Schedule    *schedule.Syncer // nil unless a schedule is configured
	Logger      *slog.Logger
}

// Init creates shared dependencies from environment variables.
// Reads: CONFIG_PATH, or TABLE_NAME, AWS_REGION, REMOTE_COLLECTION,
// REMOTE_DOCUMENT, REMOTE_FIELD, TIMESTAMP_FILE, REFRESH_INTERVAL, LLM_MODEL,
// LLM_BASE_URL, LLM_API_KEY_SECRET_ID, LLM_API_KEY, ALERT_QUEUE_URL,
// ALERT_EVENT_BUS, SCHEDULE_NAME, SCHEDULE_GROUP.
func Init(ctx context.Context) (*Deps, error) {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	alerts, err := alert.NewDispatcher(cfg.Alerts, logger)
	if err != nil {
		return nil, fmt.Errorf("configuring alerts: %w", err)
	}

	// Local-only deployments run without a document store.
	var conn *provider.Connector
	if cfg.Provider != "" {
		conn, err = backend.NewConnector(cfg, logger)
		if err != nil {
			return nil, fmt.Errorf("configuring document store: %w", err)
		}
	}

	d := &Deps{
		Config:      cfg,
		Connector:   conn,
		Checkpoints: checkpoint.New(cfg.Settings.Checkpoint(), conn,
			checkpoint.WithLogger(logger), checkpoint.WithAlerts(alerts)),
		Interval: interval.New(cfg.Settings.Interval(), conn, interval.WithLogger(logger)),
		Alerts:   alerts,
		Logger:   logger,
	}

	if cfg.Schedule != nil {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("loading AWS config: %w", err)
		}
		d.Schedule, err = schedule.NewSyncer(scheduler.NewFromConfig(awsCfg), cfg.Schedule, logger)
		if err != nil {
			return nil, err
		}
	}

	if cfg.LLM != nil {
		var sm SecretsAPI
		if cfg.LLM.APIKeySecret != "" {
			awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
			if err != nil {
				return nil, fmt.Errorf("loading AWS config: %w", err)
			}
			sm = secretsmanager.NewFromConfig(awsCfg)
		}
		apiKey, err := ResolveAPIKey(ctx, sm, cfg.LLM)
		if err != nil {
			return nil, err
		}
		if apiKey != "" {
			d.Executor = NewExecutor(cfg, apiKey, logger, alerts)
		} else {
			logger.Warn("no LLM API key configured, completions disabled")
		}
	}
	return d, nil
}

// NewExecutor builds the retry executor around a circuit-broken HTTP client.
// Breaker state changes are sent to alerts, which may be nil.
func NewExecutor(cfg *types.ProjectConfig, apiKey string, logger *slog.Logger, alerts *alert.Dispatcher) *llm.Executor {
	bc := llm.BreakerConfig{Logger: logger}
	if alerts != nil {
		bc.Alerts = alerts
	}
	client := llm.NewBreakerClient(llm.NewHTTPClient(cfg.LLM.BaseURL, apiKey), bc)
	return llm.NewExecutor(client, llm.PolicyFromConfig(cfg.Retry), llm.WithLogger(logger))
}

// loadConfig reads CONFIG_PATH when set, otherwise builds a DynamoDB-backed
// configuration from the environment.
func loadConfig() (*types.ProjectConfig, error) {
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		return config.LoadFile(path)
	}

	tableName := os.Getenv("TABLE_NAME")
	region := os.Getenv("AWS_REGION")
	if tableName == "" {
		return nil, fmt.Errorf("TABLE_NAME environment variable required")
	}
	if region == "" {
		return nil, fmt.Errorf("AWS_REGION environment variable required")
	}

	refresh, err := strconv.Atoi(envOrDefault("REFRESH_INTERVAL", strconv.Itoa(config.DefaultRefreshInterval)))
	if err != nil {
		return nil, fmt.Errorf("REFRESH_INTERVAL: %w", err)
	}

	cfg := &types.ProjectConfig{
		Provider: types.ProviderDynamoDB,
		Settings: types.Settings{
			UseRemoteStoreForTimestamp: true,
			RemoteCollection:           envOrDefault("REMOTE_COLLECTION", "clearmail"),
			RemoteDocument:             envOrDefault("REMOTE_DOCUMENT", "emailProcessor"),
			RemoteField:                envOrDefault("REMOTE_FIELD", config.DefaultField),
			IsManagedEnvironment:       true,
			RefreshInterval:            refresh,
			// Only /tmp is writable in the Lambda sandbox.
			TimestampFile:      envOrDefault("TIMESTAMP_FILE", "/tmp/"+config.DefaultTimestampFile),
			IntervalCollection: envOrDefault("INTERVAL_COLLECTION", ""),
			IntervalDocument:   envOrDefault("INTERVAL_DOCUMENT", ""),
			IntervalField:      envOrDefault("INTERVAL_FIELD", config.DefaultIntervalField),
		},
		DynamoDB: &types.DynamoDBConfig{TableName: tableName, Region: region},
	}
	if cfg.Settings.IntervalCollection == "" {
		cfg.Settings.IntervalCollection = cfg.Settings.RemoteCollection
	}
	if cfg.Settings.IntervalDocument == "" {
		cfg.Settings.IntervalDocument = cfg.Settings.RemoteDocument
	}
	if model := os.Getenv("LLM_MODEL"); model != "" {
		cfg.LLM = &types.LLMConfig{
			Model:        model,
			BaseURL:      os.Getenv("LLM_BASE_URL"),
			APIKeyEnv:    config.DefaultAPIKeyEnv,
			APIKeySecret: os.Getenv("LLM_API_KEY_SECRET_ID"),
		}
	}
	if url := os.Getenv("ALERT_QUEUE_URL"); url != "" {
		cfg.Alerts = append(cfg.Alerts, types.AlertConfig{Type: types.AlertSQS, QueueURL: url})
	}
	if bus := os.Getenv("ALERT_EVENT_BUS"); bus != "" {
		cfg.Alerts = append(cfg.Alerts, types.AlertConfig{Type: types.AlertEventBridge, EventBus: bus})
	}
	if name := os.Getenv("SCHEDULE_NAME"); name != "" {
		cfg.Schedule = &types.ScheduleConfig{Name: name, Group: os.Getenv("SCHEDULE_GROUP")}
	}
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// SyncSchedule aligns the configured schedule with seconds and returns the
// resulting rate expression. Failures are logged and yield "".
func (d *Deps) SyncSchedule(ctx context.Context, seconds int) string {
	if d.Schedule == nil {
		return ""
	}
	res, err := d.Schedule.Sync(ctx, seconds)
	if err != nil {
		d.Logger.Warn("schedule sync failed", "error", err)
		return ""
	}
	return res.Expression
}

// StartTelemetry installs OTLP export for a Lambda and returns the flush to
// run on exit. A setup failure is logged and leaves export disabled.
func StartTelemetry(ctx context.Context, service, version string, logger *slog.Logger) func() {
	if logger == nil {
		logger = slog.Default()
	}
	shutdown, err := telemetry.Setup(ctx, service, version)
	if err != nil {
		logger.Error("telemetry setup failed", "service", service, "error", err)
		return func() {}
	}
	return func() {
		if err := shutdown(context.Background()); err != nil {
			logger.Warn("telemetry shutdown failed", "service", service, "error", err)
		}
	}
}
