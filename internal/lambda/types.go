// Package lambda provides shared types and initialization for Lambda handlers.
package lambda

import (
	"encoding/json"

	"github.com/dwsmith1983/clearmail/internal/llm"
)

// Checkpoint actions.
const (
	ActionGet      = "get"
	ActionSave     = "save"
	ActionInterval = "interval"
)

// CheckpointRequest is the input to the checkpoint Lambda.
type CheckpointRequest struct {
	Action    string `json:"action"`
	Timestamp string `json:"timestamp,omitempty"`
}

// CheckpointResponse is the output of the checkpoint Lambda.
type CheckpointResponse struct {
	Timestamp string `json:"timestamp,omitempty"`
	Source    string `json:"source,omitempty"`
	Interval  int    `json:"interval,omitempty"`
	Saved     bool   `json:"saved,omitempty"`
	// Schedule is the rate expression the run schedule was synced to.
	Schedule string `json:"schedule,omitempty"`
}

// CompleteRequest is the input to the completion Lambda.
type CompleteRequest struct {
	Model       string        `json:"model,omitempty"`
	Messages    []llm.Message `json:"messages,omitempty"`
	Temperature *float64      `json:"temperature,omitempty"`
	MaxTokens   int           `json:"maxTokens,omitempty"`
	// ParseJSON requests the sanitized content decoded into JSON.
	ParseJSON bool `json:"parseJson,omitempty"`

	// Batch holds independent conversations run concurrently, at most
	// Concurrency at a time. Messages is ignored when Batch is set.
	Batch       [][]llm.Message `json:"batch,omitempty"`
	Concurrency int             `json:"concurrency,omitempty"`
}

// CompleteResponse is the output of the completion Lambda. A batch request
// fills Results in request order instead of Content.
type CompleteResponse struct {
	Content string             `json:"content,omitempty"`
	JSON    json.RawMessage    `json:"json,omitempty"`
	Results []CompleteResponse `json:"results,omitempty"`
}
