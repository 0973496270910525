package metrics

import (
	"context"
	"expvar"
	"fmt"

	"go.opentelemetry.io/otel/metric"
)

// counters lists every exported counter under its OTel instrument name.
var counters = []struct {
	name string
	desc string
	v    *expvar.Int
}{
	{"clearmail.llm.calls", "Completion calls started", LLMCalls},
	{"clearmail.llm.call_failures", "Completion calls that exhausted retries", LLMCallFailures},
	{"clearmail.llm.attempt_failures", "Failed completion attempts", LLMAttemptFailures},
	{"clearmail.llm.attempt_timeouts", "Completion attempts that timed out", LLMAttemptTimeouts},
	{"clearmail.llm.rate_limit_waits", "Rate-limit cool-downs", LLMRateLimitWaits},
	{"clearmail.llm.breaker_state_changes", "Circuit breaker transitions", BreakerStateChanges},
	{"clearmail.checkpoint.fallbacks", "Checkpoint reads or writes served by the local file", CheckpointFallbacks},
	{"clearmail.checkpoint.read_outages", "Checkpoint reads with no source available", CheckpointReadOutages},
	{"clearmail.checkpoint.write_dropped", "Checkpoint writes lost to a total outage", CheckpointWriteDropped},
	{"clearmail.interval.fetches", "Interval template fetches", IntervalFetches},
	{"clearmail.interval.fetch_errors", "Failed interval template fetches", IntervalFetchErrors},
	{"clearmail.store.init_failures", "Failed document store initializations", StoreInitFailures},
	{"clearmail.schedule.updates", "Schedule rate updates", ScheduleUpdates},
}

// Register exposes the expvar counters as observable OTel counters on meter.
func Register(meter metric.Meter) error {
	instruments := make([]metric.Observable, 0, len(counters))
	observed := make([]metric.Int64ObservableCounter, 0, len(counters))
	for _, c := range counters {
		inst, err := meter.Int64ObservableCounter(c.name, metric.WithDescription(c.desc))
		if err != nil {
			return fmt.Errorf("creating %s: %w", c.name, err)
		}
		instruments = append(instruments, inst)
		observed = append(observed, inst)
	}
	_, err := meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		for i, c := range counters {
			o.ObserveInt64(observed[i], c.v.Value())
		}
		return nil
	}, instruments...)
	if err != nil {
		return fmt.Errorf("registering metrics callback: %w", err)
	}
	return nil
}
