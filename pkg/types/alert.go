package types

import "time"

// AlertLevel is the severity of an alert.
type AlertLevel string

const (
	AlertLevelInfo    AlertLevel = "info"
	AlertLevelWarning AlertLevel = "warning"
	AlertLevelError   AlertLevel = "error"
)

// Rank orders levels by severity; unknown levels rank lowest.
func (l AlertLevel) Rank() int {
	switch l {
	case AlertLevelInfo:
		return 1
	case AlertLevelWarning:
		return 2
	case AlertLevelError:
		return 3
	}
	return 0
}

// Alert is an operator notification about degraded behavior.
type Alert struct {
	Level     AlertLevel     `json:"level"`
	Component string         `json:"component"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// AlertType selects an alert sink implementation.
type AlertType string

const (
	AlertConsole     AlertType = "console"
	AlertWebhook     AlertType = "webhook"
	AlertFile        AlertType = "file"
	AlertSQS         AlertType = "sqs"
	AlertEventBridge AlertType = "eventbridge"
)

// AlertConfig configures one alert sink.
type AlertConfig struct {
	Type     AlertType `yaml:"type" json:"type"`
	URL      string    `yaml:"url,omitempty" json:"url,omitempty"`
	Path     string    `yaml:"path,omitempty" json:"path,omitempty"`
	QueueURL string    `yaml:"queueUrl,omitempty" json:"queueUrl,omitempty"`
	EventBus string    `yaml:"eventBus,omitempty" json:"eventBus,omitempty"`
	Source   string    `yaml:"source,omitempty" json:"source,omitempty"`

	// File sink only. MaxBytes rotates the file to <path>.1 once a write
	// would grow it past the limit; zero disables rotation. MinLevel drops
	// less severe alerts.
	MaxBytes int64      `yaml:"maxBytes,omitempty" json:"maxBytes,omitempty"`
	MinLevel AlertLevel `yaml:"minLevel,omitempty" json:"minLevel,omitempty"`
}
