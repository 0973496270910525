package llm

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/dwsmith1983/clearmail/internal/metrics"
	"github.com/dwsmith1983/clearmail/pkg/types"
)

const tracerName = "github.com/dwsmith1983/clearmail/internal/llm"

// Retry defaults.
const (
	DefaultMaxAttempts          = 3
	DefaultBaseBackoff          = 2500 * time.Millisecond
	DefaultMaxRateLimitAttempts = 10
	DefaultTimeout              = 27500 * time.Millisecond
	DefaultRateLimitCooldown    = 61 * time.Second
)

// RetryPolicy bounds the work Execute does for one request.
//
// Zero fields take the defaults. A negative MaxRateLimitAttempts disables
// rate-limit cool-downs so 429s count as ordinary failures.
type RetryPolicy struct {
	MaxAttempts          int
	BaseBackoff          time.Duration
	MaxRateLimitAttempts int
	Timeout              time.Duration
	RateLimitCooldown    time.Duration
}

// DefaultRetryPolicy returns the default retry configuration.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:          DefaultMaxAttempts,
		BaseBackoff:          DefaultBaseBackoff,
		MaxRateLimitAttempts: DefaultMaxRateLimitAttempts,
		Timeout:              DefaultTimeout,
		RateLimitCooldown:    DefaultRateLimitCooldown,
	}
}

// PolicyFromConfig converts the millisecond-based YAML form into a RetryPolicy.
func PolicyFromConfig(cfg *types.RetryConfig) RetryPolicy {
	if cfg == nil {
		return DefaultRetryPolicy()
	}
	return RetryPolicy{
		MaxAttempts:          cfg.MaxAttempts,
		BaseBackoff:          time.Duration(cfg.BaseBackoffMs) * time.Millisecond,
		MaxRateLimitAttempts: cfg.MaxRateLimitAttempts,
		Timeout:              time.Duration(cfg.TimeoutMs) * time.Millisecond,
		RateLimitCooldown:    time.Duration(cfg.RateLimitCooldownMs) * time.Millisecond,
	}
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultMaxAttempts
	}
	if p.BaseBackoff <= 0 {
		p.BaseBackoff = DefaultBaseBackoff
	}
	if p.MaxRateLimitAttempts == 0 {
		p.MaxRateLimitAttempts = DefaultMaxRateLimitAttempts
	}
	if p.Timeout <= 0 {
		p.Timeout = DefaultTimeout
	}
	if p.RateLimitCooldown <= 0 {
		p.RateLimitCooldown = DefaultRateLimitCooldown
	}
	return p
}

// MaxBackoff caps the exponential part of Backoff.
const MaxBackoff = time.Hour

// Backoff returns the wait after the given number of failed attempts:
// 2^attempts * base, saturated at MaxBackoff, plus up to one base of jitter.
// jitter must be in [0, 1).
func Backoff(base time.Duration, attempts int, jitter float64) time.Duration {
	if attempts < 0 {
		attempts = 0
	}
	delay := MaxBackoff
	if attempts < 62 {
		if exp := time.Duration(1) << uint(attempts); base <= MaxBackoff/exp {
			delay = exp * base
		}
	}
	return delay + time.Duration(jitter*float64(base))
}

// Option configures an Executor.
type Option func(*Executor)

// WithLogger sets the executor logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Executor) { e.logger = l }
}

// WithSleep replaces the sleep used for backoff and cool-downs.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(e *Executor) { e.sleep = fn }
}

// WithJitter replaces the jitter source; fn must return values in [0, 1).
func WithJitter(fn func() float64) Option {
	return func(e *Executor) { e.jitter = fn }
}

// WithTracer sets the tracer used for Execute spans.
func WithTracer(t trace.Tracer) Option {
	return func(e *Executor) { e.tracer = t }
}

// Executor runs chat completions with timeout, retry and rate-limit handling.
// It holds no per-call state and is safe for concurrent use.
type Executor struct {
	client Client
	policy RetryPolicy
	logger *slog.Logger
	sleep  func(ctx context.Context, d time.Duration) error
	jitter func() float64
	tracer trace.Tracer
}

// NewExecutor creates an Executor around client.
func NewExecutor(client Client, policy RetryPolicy, opts ...Option) *Executor {
	e := &Executor{
		client: client,
		policy: policy.withDefaults(),
		logger: slog.Default(),
		sleep:  sleepContext,
		jitter: rand.Float64,
		tracer: otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Policy returns the effective retry policy.
func (e *Executor) Policy() RetryPolicy {
	return e.policy
}

// retryState is the bookkeeping for a single Execute call.
type retryState struct {
	attempts          int
	rateLimitAttempts int
	lastErr           error
}

// Execute performs req and returns the trimmed content of the first choice.
//
// Rate-limited replies are retried after a fixed cool-down without consuming
// an attempt, up to MaxRateLimitAttempts. Every other failure consumes one of
// MaxAttempts and is followed by exponential backoff with jitter. When the
// attempts are exhausted the last error is returned wrapped.
func (e *Executor) Execute(ctx context.Context, req ChatRequest) (string, error) {
	callID := ulid.Make().String()
	logger := e.logger.With("callId", callID, "model", req.Model)

	ctx, span := e.tracer.Start(ctx, "llm.Execute", trace.WithAttributes(
		attribute.String("llm.call_id", callID),
		attribute.String("llm.model", req.Model),
	))
	defer span.End()

	metrics.LLMCalls.Add(1)

	var st retryState
	for st.attempts < e.policy.MaxAttempts {
		text, err := e.attempt(ctx, req)
		if err == nil {
			span.SetAttributes(
				attribute.Int("llm.attempts", st.attempts+1),
				attribute.Int("llm.rate_limit_waits", st.rateLimitAttempts),
			)
			return text, nil
		}
		st.lastErr = err

		if IsRateLimited(err) && st.rateLimitAttempts < e.policy.MaxRateLimitAttempts {
			st.rateLimitAttempts++
			metrics.LLMRateLimitWaits.Add(1)
			logger.Warn("hit rate limit, cooling down",
				"cooldown", e.policy.RateLimitCooldown, "rateLimitAttempt", st.rateLimitAttempts)
			span.AddEvent("rate_limited")
			if serr := e.sleep(ctx, e.policy.RateLimitCooldown); serr != nil {
				return "", e.abort(span, st, serr)
			}
			continue
		}

		st.attempts++
		metrics.LLMAttemptFailures.Add(1)
		if st.attempts >= e.policy.MaxAttempts {
			break
		}

		delay := Backoff(e.policy.BaseBackoff, st.attempts, e.jitter())
		logger.Warn("attempt failed, retrying",
			"attempt", st.attempts, "delay", delay, "error", err)
		if serr := e.sleep(ctx, delay); serr != nil {
			return "", e.abort(span, st, serr)
		}
	}

	metrics.LLMCallFailures.Add(1)
	logger.Error("llm call failed", "attempts", st.attempts, "error", st.lastErr)
	span.SetAttributes(attribute.Int("llm.attempts", st.attempts))
	span.RecordError(st.lastErr)
	span.SetStatus(codes.Error, "retries exhausted")
	return "", fmt.Errorf("llm call failed after %d attempts: %w", st.attempts, st.lastErr)
}

func (e *Executor) abort(span trace.Span, st retryState, err error) error {
	metrics.LLMCallFailures.Add(1)
	span.RecordError(err)
	span.SetStatus(codes.Error, "interrupted")
	return fmt.Errorf("llm call interrupted after %d attempts (last error: %v): %w", st.attempts, st.lastErr, err)
}

type attemptResult struct {
	resp *ChatResponse
	err  error
}

// attempt races one client call against the policy timeout.
func (e *Executor) attempt(ctx context.Context, req ChatRequest) (string, error) {
	actx, cancel := context.WithTimeout(ctx, e.policy.Timeout)
	defer cancel()

	done := make(chan attemptResult, 1)
	go func() {
		resp, err := e.client.Complete(actx, req)
		done <- attemptResult{resp: resp, err: err}
	}()

	timer := time.NewTimer(e.policy.Timeout)
	defer timer.Stop()

	select {
	case r := <-done:
		if r.err != nil {
			if actx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
				return "", e.timeoutError()
			}
			return "", r.err
		}
		return firstChoice(r.resp)
	case <-timer.C:
		return "", e.timeoutError()
	}
}

func (e *Executor) timeoutError() error {
	metrics.LLMAttemptTimeouts.Add(1)
	return fmt.Errorf("%w: request took longer than %g seconds", ErrAttemptTimeout, e.policy.Timeout.Seconds())
}

func firstChoice(resp *ChatResponse) (string, error) {
	if resp == nil || len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// ExecuteAll runs reqs concurrently, at most limit at a time (unbounded when
// limit <= 0). Each request retries independently. Results keep input order.
// The first terminal failure cancels the requests still in flight.
func (e *Executor) ExecuteAll(ctx context.Context, reqs []ChatRequest, limit int) ([]string, error) {
	out := make([]string, len(reqs))
	g, gctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, req := range reqs {
		g.Go(func() error {
			text, err := e.Execute(gctx, req)
			if err != nil {
				return fmt.Errorf("request %d: %w", i, err)
			}
			out[i] = text
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
