// complete Lambda runs one chat completion through the retry executor and
// returns the sanitized reply.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	awslambda "github.com/aws/aws-lambda-go/lambda"

	intlambda "github.com/dwsmith1983/clearmail/internal/lambda"
	"github.com/dwsmith1983/clearmail/internal/llm"
	"github.com/dwsmith1983/clearmail/internal/sanitize"
)

var version = "dev"

var (
	deps     *intlambda.Deps
	depsOnce sync.Once
	depsErr  error
)

func getDeps() (*intlambda.Deps, error) {
	depsOnce.Do(func() {
		deps, depsErr = intlambda.Init(context.Background())
	})
	return deps, depsErr
}

// defaultBatchConcurrency bounds in-flight requests for a batch that does
// not set its own limit.
const defaultBatchConcurrency = 4

// handleComplete returns an error when the executor exhausts its retries so
// the invocation is reported as failed. A batch fails as a whole on the first
// request that does.
func handleComplete(ctx context.Context, d *intlambda.Deps, req intlambda.CompleteRequest) (intlambda.CompleteResponse, error) {
	if d.Executor == nil {
		return intlambda.CompleteResponse{}, errors.New("completions are not configured")
	}
	if len(req.Batch) > 0 {
		return handleBatch(ctx, d, req)
	}
	if len(req.Messages) == 0 {
		return intlambda.CompleteResponse{}, errors.New("messages are required")
	}

	text, err := d.Executor.Execute(ctx, chatRequest(d, req, req.Messages))
	if err != nil {
		return intlambda.CompleteResponse{}, err
	}
	return finish(text, req.ParseJSON)
}

func handleBatch(ctx context.Context, d *intlambda.Deps, req intlambda.CompleteRequest) (intlambda.CompleteResponse, error) {
	chats := make([]llm.ChatRequest, len(req.Batch))
	for i, msgs := range req.Batch {
		if len(msgs) == 0 {
			return intlambda.CompleteResponse{}, fmt.Errorf("batch item %d: messages are required", i)
		}
		chats[i] = chatRequest(d, req, msgs)
	}
	limit := req.Concurrency
	if limit <= 0 {
		limit = defaultBatchConcurrency
	}

	texts, err := d.Executor.ExecuteAll(ctx, chats, limit)
	if err != nil {
		return intlambda.CompleteResponse{}, err
	}
	results := make([]intlambda.CompleteResponse, len(texts))
	for i, text := range texts {
		r, err := finish(text, req.ParseJSON)
		if err != nil {
			return intlambda.CompleteResponse{}, fmt.Errorf("batch item %d: %w", i, err)
		}
		results[i] = r
	}
	d.Logger.Info("batch completed", "requests", len(results), "concurrency", limit)
	return intlambda.CompleteResponse{Results: results}, nil
}

func chatRequest(d *intlambda.Deps, req intlambda.CompleteRequest, msgs []llm.Message) llm.ChatRequest {
	model := req.Model
	if model == "" && d.Config != nil && d.Config.LLM != nil {
		model = d.Config.LLM.Model
	}
	chat := llm.ChatRequest{
		Model:       model,
		Messages:    msgs,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	if req.ParseJSON {
		chat.ResponseFormat = &llm.ResponseFormat{Type: "json_object"}
	}
	return chat
}

func finish(text string, parseJSON bool) (intlambda.CompleteResponse, error) {
	resp := intlambda.CompleteResponse{Content: sanitize.Sanitize(text)}
	if parseJSON {
		var raw json.RawMessage
		if err := sanitize.JSON(text, &raw); err != nil {
			return intlambda.CompleteResponse{}, fmt.Errorf("model reply is not JSON: %w", err)
		}
		resp.JSON = raw
	}
	return resp, nil
}

func handler(ctx context.Context, req intlambda.CompleteRequest) (intlambda.CompleteResponse, error) {
	d, err := getDeps()
	if err != nil {
		return intlambda.CompleteResponse{}, err
	}
	return handleComplete(ctx, d, req)
}

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, nil)))
	defer intlambda.StartTelemetry(context.Background(), "clearmail-complete", version, nil)()
	awslambda.Start(handler)
}
