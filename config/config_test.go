package config_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relstore/relstore/config"
	"github.com/relstore/relstore/dialect"
	sqld "github.com/relstore/relstore/dialect/sql"
	_ "github.com/relstore/relstore/dialect/sqlite"
	"github.com/relstore/relstore/retry"
)

// fakeTarget records the values a [config.Watcher] hot-reloads into it,
// standing in for [repository.Repository]'s Reloadable methods.
type fakeTarget struct {
	mu             sync.Mutex
	retryPolicy    retry.Policy
	busyTimeoutMs  int
	commandTimeout int
}

func (f *fakeTarget) SetRetryPolicy(p retry.Policy) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.retryPolicy = p
}

func (f *fakeTarget) SetBusyTimeout(ctx context.Context, ms int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.busyTimeoutMs = ms
	return nil
}

func (f *fakeTarget) SetCommandTimeout(secs int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commandTimeout = secs
}

func (f *fakeTarget) snapshot() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.busyTimeoutMs, f.commandTimeout
}

func TestDefaultMatchesSpecColumn(t *testing.T) {
	opts := config.Default()
	assert.Equal(t, config.SynchronousNormal, opts.SynchronousMode)
	assert.Equal(t, 5000, opts.BusyTimeoutMs)
	assert.Equal(t, 30, opts.CommandTimeoutSecs)
	assert.True(t, opts.EnableForeignKeys)
	assert.Equal(t, 3, opts.RetryPolicy.MaxAttempts)
	assert.Equal(t, 100, opts.RetryPolicy.InitialDelayMs)
	assert.Equal(t, 5000, opts.RetryPolicy.MaxDelayMs)
	assert.Equal(t, 2.0, opts.RetryPolicy.BackoffMultiplier)
	assert.Equal(t, 30*time.Second, opts.CommandTimeout())
}

func TestLoadJSONBareDocument(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "relstore.json")
	body := `{"cache_size": -2000, "busy_timeout_ms": 8000, "enable_foreign_keys": false, "retry_policy": {"enabled": true, "max_attempts": 5, "initial_delay_ms": 50, "max_delay_ms": 1000, "backoff_multiplier": 1.5}}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	opts, err := config.LoadJSON(path)
	require.NoError(t, err)
	assert.Equal(t, -2000, opts.CacheSize)
	assert.Equal(t, 8000, opts.BusyTimeoutMs)
	assert.False(t, opts.EnableForeignKeys)
	assert.Equal(t, 5, opts.RetryPolicy.MaxAttempts)
}

func TestLoadJSONWrappedDocument(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.json")
	body := `{"other_app_setting": true, "sqlite_configuration": {"busy_timeout_ms": 1234, "synchronous_mode": "FULL", "enable_foreign_keys": true, "retry_policy": {"enabled": true, "max_attempts": 3, "initial_delay_ms": 100, "max_delay_ms": 5000, "backoff_multiplier": 2}}}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	opts, err := config.LoadJSON(path)
	require.NoError(t, err)
	assert.Equal(t, 1234, opts.BusyTimeoutMs)
	assert.Equal(t, config.SynchronousFull, opts.SynchronousMode)
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "relstore.yaml")
	body := "busy_timeout_ms: 2500\njournal_mode: WAL\nenable_foreign_keys: true\nsynchronous_mode: NORMAL\nretry_policy:\n  enabled: true\n  max_attempts: 4\n  initial_delay_ms: 100\n  max_delay_ms: 5000\n  backoff_multiplier: 2\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	opts, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2500, opts.BusyTimeoutMs)
	assert.Equal(t, config.JournalWAL, opts.JournalMode)
	assert.Equal(t, 4, opts.RetryPolicy.MaxAttempts)
}

func TestApplyIssuesPragmas(t *testing.T) {
	drv, err := sqld.Open(dialect.SQLite, ":memory:")
	require.NoError(t, err)
	drv.DB().SetMaxOpenConns(1)
	t.Cleanup(func() { _ = drv.Close() })

	opts := config.Default()
	opts.JournalMode = config.JournalMemory
	require.NoError(t, config.Apply(context.Background(), drv, opts))
}

func TestWatcherReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "relstore.json")
	initial := `{"busy_timeout_ms": 1000, "command_timeout_secs": 10, "synchronous_mode": "NORMAL", "enable_foreign_keys": true, "retry_policy": {"enabled": true, "max_attempts": 3, "initial_delay_ms": 100, "max_delay_ms": 5000, "backoff_multiplier": 2}}`
	require.NoError(t, os.WriteFile(path, []byte(initial), 0o644))

	target := &fakeTarget{}
	w, err := config.NewWatcher(path, target, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })

	updated := `{"busy_timeout_ms": 9000, "command_timeout_secs": 45, "synchronous_mode": "FULL", "enable_foreign_keys": true, "retry_policy": {"enabled": true, "max_attempts": 7, "initial_delay_ms": 100, "max_delay_ms": 5000, "backoff_multiplier": 2}}`
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o644))

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if ms, secs := target.snapshot(); ms == 9000 && secs == 45 {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("watcher did not reload within the deadline")
}
