package retry_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relstore/relstore/retry"
)

type codedErr struct{ code int }

func (e codedErr) Error() string { return fmt.Sprintf("sqlite error code %d", e.code) }
func (e codedErr) Code() int     { return e.code }

func TestIsTransientRecognizesSQLiteResultCodes(t *testing.T) {
	assert.True(t, retry.IsTransient(codedErr{code: 5}))  // SQLITE_BUSY
	assert.True(t, retry.IsTransient(codedErr{code: 6}))  // SQLITE_LOCKED
	assert.True(t, retry.IsTransient(codedErr{code: 10})) // SQLITE_IOERR
	assert.False(t, retry.IsTransient(codedErr{code: 1})) // SQLITE_ERROR: generic, permanent
}

func TestIsTransientRecognizesMessageSubstrings(t *testing.T) {
	assert.True(t, retry.IsTransient(errors.New("database is locked")))
	assert.True(t, retry.IsTransient(fmt.Errorf("write failed: %w", errors.New("disk I/O error"))))
	assert.False(t, retry.IsTransient(errors.New("column title is not mapped")))
}

func TestIsTransientTreatsDeadlineAsTransientButNotCancel(t *testing.T) {
	assert.True(t, retry.IsTransient(context.DeadlineExceeded))
	assert.False(t, retry.IsTransient(context.Canceled))
}

func TestIsTransientUnwrapsPathError(t *testing.T) {
	perr := &os.PathError{Op: "open", Path: "x.db", Err: errors.New("sharing violation")}
	assert.True(t, retry.IsTransient(perr))
}

func TestIsTransientNilIsFalse(t *testing.T) {
	assert.False(t, retry.IsTransient(nil))
}

func TestPolicyValidateRejectsBadKnobs(t *testing.T) {
	bad := retry.Policy{MaxAttempts: -1}
	require.Error(t, bad.Validate())

	bad = retry.Policy{BackoffMultiplier: 0.5}
	require.Error(t, bad.Validate())

	assert.NoError(t, retry.Default().Validate())
}

func TestDoRetriesUntilSuccess(t *testing.T) {
	p := retry.Default()
	p.InitialDelay = time.Millisecond
	p.MaxDelay = time.Millisecond

	var calls int
	var transientEvents, retryEvents, successEvents int
	p.Events = stubEvents{
		onTransient:         func(string, int, error) { transientEvents++ },
		onRetry:             func(string, int, time.Duration) { retryEvents++ },
		onSuccessAfterRetry: func(string, int) { successEvents++ },
	}

	err := p.Do(context.Background(), "update", func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("database is locked")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, 2, transientEvents)
	assert.Equal(t, 2, retryEvents)
	assert.Equal(t, 1, successEvents)
}

func TestDoStopsOnNonTransientError(t *testing.T) {
	p := retry.Default()
	p.InitialDelay = time.Millisecond

	var calls int
	var exhausted int
	p.Events = stubEvents{onExhausted: func(string, int, error) { exhausted++ }}

	permanent := errors.New("not found")
	err := p.Do(context.Background(), "read", func(context.Context) error {
		calls++
		return permanent
	})

	require.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, exhausted)
}

func TestDoExhaustsAfterMaxAttempts(t *testing.T) {
	p := retry.Default()
	p.MaxAttempts = 2
	p.InitialDelay = time.Millisecond
	p.MaxDelay = time.Millisecond

	var calls int
	err := p.Do(context.Background(), "create", func(context.Context) error {
		calls++
		return errors.New("database is locked")
	})

	require.Error(t, err)
	assert.Equal(t, 2, calls)
}

func TestDoHonorsDisabledPolicy(t *testing.T) {
	p := retry.Default()
	p.Enabled = false

	var calls int
	err := p.Do(context.Background(), "create", func(context.Context) error {
		calls++
		return errors.New("database is locked")
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoReturnsContextErrorWhenCancelledDuringBackoff(t *testing.T) {
	p := retry.Default()
	p.InitialDelay = 50 * time.Millisecond
	p.MaxDelay = 50 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls int
	go func() {
		time.Sleep(5 * time.Millisecond)
		cancel()
	}()

	err := p.Do(ctx, "update", func(context.Context) error {
		calls++
		return errors.New("database is locked")
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

type stubEvents struct {
	onTransient         func(string, int, error)
	onRetry             func(string, int, time.Duration)
	onSuccessAfterRetry func(string, int)
	onExhausted         func(string, int, error)
}

func (s stubEvents) OnTransient(op string, attempt int, err error) {
	if s.onTransient != nil {
		s.onTransient(op, attempt, err)
	}
}

func (s stubEvents) OnRetry(op string, attempt int, delay time.Duration) {
	if s.onRetry != nil {
		s.onRetry(op, attempt, delay)
	}
}

func (s stubEvents) OnSuccessAfterRetry(op string, attempts int) {
	if s.onSuccessAfterRetry != nil {
		s.onSuccessAfterRetry(op, attempts)
	}
}

func (s stubEvents) OnExhausted(op string, attempts int, err error) {
	if s.onExhausted != nil {
		s.onExhausted(op, attempts, err)
	}
}
