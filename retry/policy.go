package retry

import (
	"context"
	"fmt"
	"log"
	"math/rand/v2"
	"time"
)

// Policy holds the retry tuning knobs (spec §4.E/§6.1
// RetryPolicy.{Enabled,MaxAttempts,InitialDelayMs,MaxDelayMs,BackoffMultiplier}).
// A Policy is immutable once built — safe to share across repositories
// (spec §5 "Shared resource policy").
type Policy struct {
	Enabled           bool
	MaxAttempts       int
	InitialDelay      time.Duration
	MaxDelay          time.Duration
	BackoffMultiplier float64
	Events            Events
}

// Default returns the policy's documented defaults (spec §6.1:
// {true,3,100,5000,2.0}).
func Default() Policy {
	return Policy{
		Enabled:           true,
		MaxAttempts:       3,
		InitialDelay:      100 * time.Millisecond,
		MaxDelay:          5 * time.Second,
		BackoffMultiplier: 2.0,
		Events:            NopEvents{},
	}
}

// Validate enforces the construction-time invariants from spec §4.E
// ("Validated on construction (non-negative, multiplier ≥ 1)").
func (p Policy) Validate() error {
	if p.MaxAttempts < 0 {
		return fmt.Errorf("retry: max attempts must be non-negative, got %d", p.MaxAttempts)
	}
	if p.InitialDelay < 0 {
		return fmt.Errorf("retry: initial delay must be non-negative, got %v", p.InitialDelay)
	}
	if p.MaxDelay < 0 {
		return fmt.Errorf("retry: max delay must be non-negative, got %v", p.MaxDelay)
	}
	if p.BackoffMultiplier < 1 {
		return fmt.Errorf("retry: backoff multiplier must be >= 1, got %v", p.BackoffMultiplier)
	}
	return nil
}

// Events observes the retry lifecycle (spec §4.E: "Each transient
// detection, retry, success-after-retry, and exhaustion is observable
// through an events interface"). Implementations must be safe for
// concurrent use; a Policy may back many repositories at once.
type Events interface {
	// OnTransient fires when attempt's failure is classified transient,
	// before the backoff sleep.
	OnTransient(op string, attempt int, err error)
	// OnRetry fires immediately before attempt+1 is issued, after sleeping
	// for delay.
	OnRetry(op string, attempt int, delay time.Duration)
	// OnSuccessAfterRetry fires when an operation that failed at least
	// once ultimately succeeds.
	OnSuccessAfterRetry(op string, attempts int)
	// OnExhausted fires when attempts are exhausted or the failure was
	// non-transient, immediately before the error is returned to the
	// caller.
	OnExhausted(op string, attempts int, err error)
}

// NopEvents discards every event.
type NopEvents struct{}

func (NopEvents) OnTransient(string, int, error)     {}
func (NopEvents) OnRetry(string, int, time.Duration) {}
func (NopEvents) OnSuccessAfterRetry(string, int)    {}
func (NopEvents) OnExhausted(string, int, error)     {}

// LogEvents reports events through the standard library's log package, in
// the teacher's own logging idiom (plain log.Printf, no structured logger).
type LogEvents struct{ Logger *log.Logger }

func (e LogEvents) logger() *log.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return log.Default()
}

func (e LogEvents) OnTransient(op string, attempt int, err error) {
	e.logger().Printf("retry: %s attempt %d: transient error: %v", op, attempt, err)
}

func (e LogEvents) OnRetry(op string, attempt int, delay time.Duration) {
	e.logger().Printf("retry: %s retrying attempt %d after %v", op, attempt+1, delay)
}

func (e LogEvents) OnSuccessAfterRetry(op string, attempts int) {
	e.logger().Printf("retry: %s succeeded after %d attempt(s)", op, attempts)
}

func (e LogEvents) OnExhausted(op string, attempts int, err error) {
	e.logger().Printf("retry: %s exhausted after %d attempt(s): %v", op, attempts, err)
}

// Do executes fn, retrying on transient failures per p (spec §4.E
// "Algorithm"). attempt counts from 1. On exhaustion or a non-transient
// failure, the last error is returned wrapped in a
// [relstore-compatible] transient marker only by the caller — Do itself
// returns the raw underlying error so non-storage callers aren't forced to
// import relstore.
func (p Policy) Do(ctx context.Context, op string, fn func(context.Context) error) error {
	events := p.Events
	if events == nil {
		events = NopEvents{}
	}

	maxAttempts := p.MaxAttempts
	if !p.Enabled {
		maxAttempts = 1
	}

	delay := p.InitialDelay
	var lastErr error
	for attempt := 1; ; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			if attempt > 1 {
				events.OnSuccessAfterRetry(op, attempt)
			}
			return nil
		}

		if !p.Enabled || !IsTransient(lastErr) || attempt >= maxAttempts {
			events.OnExhausted(op, attempt, lastErr)
			return lastErr
		}

		events.OnTransient(op, attempt, lastErr)

		sleep := delay
		if sleep > p.MaxDelay {
			sleep = p.MaxDelay
		}
		sleep += time.Duration(rand.Int64N(int64(100 * time.Millisecond)))

		timer := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			timer.Stop()
			events.OnExhausted(op, attempt, ctx.Err())
			return ctx.Err()
		case <-timer.C:
		}

		events.OnRetry(op, attempt, sleep)
		delay = time.Duration(float64(delay) * p.BackoffMultiplier)
	}
}
