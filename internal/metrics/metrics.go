// Package metrics exposes runtime counters via expvar.
package metrics

import "expvar"

var (
	LLMCalls               = expvar.NewInt("llm_calls_total")
	LLMCallFailures        = expvar.NewInt("llm_call_failures")
	LLMAttemptFailures     = expvar.NewInt("llm_attempt_failures")
	LLMAttemptTimeouts     = expvar.NewInt("llm_attempt_timeouts")
	LLMRateLimitWaits      = expvar.NewInt("llm_rate_limit_waits")
	BreakerStateChanges    = expvar.NewInt("breaker_state_changes")
	CheckpointFallbacks    = expvar.NewInt("checkpoint_fallbacks")
	CheckpointReadOutages  = expvar.NewInt("checkpoint_read_outages")
	CheckpointWriteDropped = expvar.NewInt("checkpoint_write_dropped")
	IntervalFetches        = expvar.NewInt("interval_fetches")
	IntervalFetchErrors    = expvar.NewInt("interval_fetch_errors")
	StoreInitFailures      = expvar.NewInt("store_init_failures")
	ScheduleUpdates        = expvar.NewInt("schedule_updates")
)
