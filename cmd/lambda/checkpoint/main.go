// checkpoint Lambda reads and writes the processing checkpoint and resolves
// the run interval.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	awslambda "github.com/aws/aws-lambda-go/lambda"

	intlambda "github.com/dwsmith1983/clearmail/internal/lambda"
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

// handleCheckpoint dispatches on req.Action. Only an invalid request or a
// local-only save failure returns an error.
func handleCheckpoint(ctx context.Context, d *intlambda.Deps, req intlambda.CheckpointRequest) (intlambda.CheckpointResponse, error) {
	switch req.Action {
	case intlambda.ActionGet, "":
		res := d.Checkpoints.Lookup(ctx)
		d.Logger.Info("checkpoint read", "source", res.Source)
		secs := d.Interval.RunInterval(ctx)
		return intlambda.CheckpointResponse{
			Timestamp: res.Value,
			Source:    res.Source,
			Interval:  secs,
			Schedule:  d.SyncSchedule(ctx, secs),
		}, nil
	case intlambda.ActionSave:
		if req.Timestamp == "" {
			return intlambda.CheckpointResponse{}, fmt.Errorf("timestamp is required for save")
		}
		if err := d.Checkpoints.Save(ctx, req.Timestamp); err != nil {
			return intlambda.CheckpointResponse{}, fmt.Errorf("saving checkpoint: %w", err)
		}
		return intlambda.CheckpointResponse{Timestamp: req.Timestamp, Saved: true}, nil
	case intlambda.ActionInterval:
		secs := d.Interval.RunInterval(ctx)
		return intlambda.CheckpointResponse{Interval: secs, Schedule: d.SyncSchedule(ctx, secs)}, nil
	default:
		return intlambda.CheckpointResponse{}, fmt.Errorf("unknown action %q", req.Action)
	}
}

func handler(ctx context.Context, req intlambda.CheckpointRequest) (intlambda.CheckpointResponse, error) {
	d, err := getDeps()
	if err != nil {
		return intlambda.CheckpointResponse{}, err
	}
	return handleCheckpoint(ctx, d, req)
}

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, nil)))
	defer intlambda.StartTelemetry(context.Background(), "clearmail-checkpoint", version, nil)()
	awslambda.Start(handler)
}
