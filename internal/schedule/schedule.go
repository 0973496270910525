// Package schedule keeps an EventBridge Scheduler schedule's rate in step with
// the resolved run interval.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/scheduler"

	"github.com/dwsmith1983/clearmail/internal/metrics"
	"github.com/dwsmith1983/clearmail/pkg/types"
)

// SchedulerAPI is the subset of the EventBridge Scheduler client used by Syncer.
type SchedulerAPI interface {
	GetSchedule(ctx context.Context, input *scheduler.GetScheduleInput, opts ...func(*scheduler.Options)) (*scheduler.GetScheduleOutput, error)
	UpdateSchedule(ctx context.Context, input *scheduler.UpdateScheduleInput, opts ...func(*scheduler.Options)) (*scheduler.UpdateScheduleOutput, error)
}

// Syncer rewrites one schedule's rate expression.
type Syncer struct {
	client SchedulerAPI
	name   string
	group  string
	logger *slog.Logger
}

// NewSyncer creates a Syncer for cfg. An empty group selects the default group.
func NewSyncer(client SchedulerAPI, cfg *types.ScheduleConfig, logger *slog.Logger) (*Syncer, error) {
	if cfg == nil || cfg.Name == "" {
		return nil, errors.New("schedule name required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Syncer{
		client: client,
		name:   cfg.Name,
		group:  cfg.Group,
		logger: logger.With("schedule", cfg.Name),
	}, nil
}

// Result reports what Sync did.
type Result struct {
	Expression string
	Updated    bool
}

// Sync sets the schedule to run every seconds, rounded up to whole minutes.
// The schedule is left untouched when it already has that rate.
func (s *Syncer) Sync(ctx context.Context, seconds int) (Result, error) {
	want := RateExpression(seconds)

	cur, err := s.client.GetSchedule(ctx, &scheduler.GetScheduleInput{
		Name:      aws.String(s.name),
		GroupName: s.groupName(),
	})
	if err != nil {
		return Result{}, fmt.Errorf("reading schedule %s: %w", s.name, err)
	}
	if aws.ToString(cur.ScheduleExpression) == want {
		return Result{Expression: want}, nil
	}

	// UpdateSchedule replaces the whole definition, so every field is carried over.
	_, err = s.client.UpdateSchedule(ctx, &scheduler.UpdateScheduleInput{
		Name:                       aws.String(s.name),
		GroupName:                  cur.GroupName,
		ScheduleExpression:         aws.String(want),
		ScheduleExpressionTimezone: cur.ScheduleExpressionTimezone,
		FlexibleTimeWindow:         cur.FlexibleTimeWindow,
		Target:                     cur.Target,
		State:                      cur.State,
		Description:                cur.Description,
		StartDate:                  cur.StartDate,
		EndDate:                    cur.EndDate,
		KmsKeyArn:                  cur.KmsKeyArn,
		ActionAfterCompletion:      cur.ActionAfterCompletion,
	})
	if err != nil {
		return Result{}, fmt.Errorf("updating schedule %s: %w", s.name, err)
	}
	metrics.ScheduleUpdates.Add(1)
	s.logger.Info("schedule rate updated", "from", aws.ToString(cur.ScheduleExpression), "to", want)
	return Result{Expression: want, Updated: true}, nil
}

func (s *Syncer) groupName() *string {
	if s.group == "" {
		return nil
	}
	return aws.String(s.group)
}

// RateExpression converts seconds to a Scheduler rate expression. Scheduler
// rates are whole minutes, so partial minutes round up and the minimum is one.
func RateExpression(seconds int) string {
	minutes := (seconds + 59) / 60
	if minutes < 1 {
		minutes = 1
	}
	if minutes == 1 {
		return "rate(1 minute)"
	}
	return fmt.Sprintf("rate(%d minutes)", minutes)
}
