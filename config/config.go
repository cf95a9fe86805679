// Package config implements the enumerated configuration surface (spec
// §6.1): the tunable SQLite pragmas and retry knobs a caller sets once at
// [repository.New] time, loadable from JSON or YAML, with an optional
// [Watcher] that hot-reloads the mutable subset without reopening the
// connection.
package config

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"github.com/relstore/relstore/dialect"
	"github.com/relstore/relstore/retry"
)

// enumCaser upper-cases JournalMode/SynchronousMode values read from a
// config document, so "wal" or "Wal" in a hand-edited file resolves the
// same as "WAL" (spec §6.1 lists the enum values by their canonical
// casing, but says nothing about rejecting others).
var enumCaser = cases.Upper(language.Und)

func normalizeEnums(o *Options) {
	if o.JournalMode != "" {
		o.JournalMode = JournalMode(enumCaser.String(string(o.JournalMode)))
	}
	if o.SynchronousMode != "" {
		o.SynchronousMode = SynchronousMode(enumCaser.String(string(o.SynchronousMode)))
	}
}

// JournalMode selects SQLite's journal strategy (spec §6.1 "JournalMode").
type JournalMode string

const (
	JournalDelete   JournalMode = "DELETE"
	JournalWAL      JournalMode = "WAL"
	JournalMemory   JournalMode = "MEMORY"
	JournalTruncate JournalMode = "TRUNCATE"
	JournalPersist  JournalMode = "PERSIST"
	JournalOff      JournalMode = "OFF"
)

// SynchronousMode selects SQLite's fsync policy (spec §6.1 "SynchronousMode").
type SynchronousMode string

const (
	SynchronousOff    SynchronousMode = "OFF"
	SynchronousNormal SynchronousMode = "NORMAL"
	SynchronousFull   SynchronousMode = "FULL"
)

// RetryPolicyOptions mirrors [retry.Policy] in the JSON/YAML-friendly shape
// spec §6.1 names: `RetryPolicy.{Enabled,MaxAttempts,InitialDelayMs,
// MaxDelayMs,BackoffMultiplier}`.
type RetryPolicyOptions struct {
	Enabled           bool    `json:"enabled" yaml:"enabled"`
	MaxAttempts       int     `json:"max_attempts" yaml:"max_attempts"`
	InitialDelayMs    int     `json:"initial_delay_ms" yaml:"initial_delay_ms"`
	MaxDelayMs        int     `json:"max_delay_ms" yaml:"max_delay_ms"`
	BackoffMultiplier float64 `json:"backoff_multiplier" yaml:"backoff_multiplier"`
}

// Policy converts o into a [retry.Policy].
func (o RetryPolicyOptions) Policy() retry.Policy {
	return retry.Policy{
		Enabled:           o.Enabled,
		MaxAttempts:       o.MaxAttempts,
		InitialDelay:      time.Duration(o.InitialDelayMs) * time.Millisecond,
		MaxDelay:          time.Duration(o.MaxDelayMs) * time.Millisecond,
		BackoffMultiplier: o.BackoffMultiplier,
	}
}

// fromPolicy is RetryPolicyOptions' inverse, used by [Default] to render
// [retry.Default] back into the wire shape.
func fromPolicy(p retry.Policy) RetryPolicyOptions {
	return RetryPolicyOptions{
		Enabled:           p.Enabled,
		MaxAttempts:       p.MaxAttempts,
		InitialDelayMs:    int(p.InitialDelay / time.Millisecond),
		MaxDelayMs:        int(p.MaxDelay / time.Millisecond),
		BackoffMultiplier: p.BackoffMultiplier,
	}
}

// Options is the full enumerated configuration table from spec §6.1.
type Options struct {
	CacheSize          int             `json:"cache_size,omitzero" yaml:"cache_size,omitempty"`
	PageSize           int             `json:"page_size,omitzero" yaml:"page_size,omitempty"`
	JournalMode        JournalMode     `json:"journal_mode,omitzero" yaml:"journal_mode,omitempty"`
	SynchronousMode    SynchronousMode `json:"synchronous_mode" yaml:"synchronous_mode"`
	BusyTimeoutMs      int             `json:"busy_timeout_ms" yaml:"busy_timeout_ms"`
	CommandTimeoutSecs int             `json:"command_timeout_secs" yaml:"command_timeout_secs"`
	EnableForeignKeys  bool            `json:"enable_foreign_keys" yaml:"enable_foreign_keys"`
	RetryPolicy        RetryPolicyOptions `json:"retry_policy" yaml:"retry_policy"`
}

// Default returns the spec's documented column of defaults: SynchronousMode
// Normal, BusyTimeout 5000ms, CommandTimeout 30s, EnableForeignKeys true,
// RetryPolicy {true,3,100ms,5000ms,2.0}. CacheSize/PageSize/JournalMode are
// left at zero/empty, meaning "engine default" (spec §6.1) — no PRAGMA is
// issued for them.
func Default() Options {
	return Options{
		SynchronousMode:    SynchronousNormal,
		BusyTimeoutMs:      5000,
		CommandTimeoutSecs: 30,
		EnableForeignKeys:  true,
		RetryPolicy:        fromPolicy(retry.Default()),
	}
}

// CommandTimeout returns o's per-command timeout as a [time.Duration].
func (o Options) CommandTimeout() time.Duration {
	return time.Duration(o.CommandTimeoutSecs) * time.Second
}

// BusyTimeout returns o's lock-wait timeout as a [time.Duration].
func (o Options) BusyTimeout() time.Duration {
	return time.Duration(o.BusyTimeoutMs) * time.Millisecond
}

// LoadJSON reads and parses a JSON configuration document from path. The
// document is either a bare [Options] object or wraps one under a
// "sqlite_configuration" key, matching either a config file dedicated to
// relstore or one section of a larger application config.
func LoadJSON(path string) (Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Options{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	return parseJSON(data)
}

func parseJSON(data []byte) (Options, error) {
	opts := Default()
	var wrapper struct {
		SqliteConfiguration *Options `json:"sqlite_configuration"`
	}
	if err := json.Unmarshal(data, &wrapper); err == nil && wrapper.SqliteConfiguration != nil {
		normalizeEnums(wrapper.SqliteConfiguration)
		return *wrapper.SqliteConfiguration, nil
	}
	if err := json.Unmarshal(data, &opts); err != nil {
		return Options{}, fmt.Errorf("config: parse json: %w", err)
	}
	normalizeEnums(&opts)
	return opts, nil
}

// LoadYAML reads and parses a YAML configuration document from path, in the
// same bare-or-wrapped shape [LoadJSON] accepts.
func LoadYAML(path string) (Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Options{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	return parseYAML(data)
}

func parseYAML(data []byte) (Options, error) {
	opts := Default()
	var wrapper struct {
		SqliteConfiguration *Options `yaml:"sqlite_configuration"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err == nil && wrapper.SqliteConfiguration != nil {
		normalizeEnums(wrapper.SqliteConfiguration)
		return *wrapper.SqliteConfiguration, nil
	}
	if err := yaml.Unmarshal(data, &opts); err != nil {
		return Options{}, fmt.Errorf("config: parse yaml: %w", err)
	}
	normalizeEnums(&opts)
	return opts, nil
}

// Load picks [LoadJSON] or [LoadYAML] by path's extension (".yaml"/".yml"
// for YAML, everything else as JSON).
func Load(path string) (Options, error) {
	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		return LoadYAML(path)
	}
	return LoadJSON(path)
}

// Apply issues the PRAGMA statements o describes against drv (spec §6.1:
// every option besides RetryPolicy/CommandTimeout is a SQLite pragma set
// once per connection). CommandTimeout isn't a pragma; callers derive a
// context deadline from [Options.CommandTimeout] instead.
func Apply(ctx context.Context, drv dialect.Driver, o Options) error {
	for _, stmt := range o.pragmas() {
		if err := drv.Exec(ctx, stmt, nil, nil); err != nil {
			return fmt.Errorf("config: apply %q: %w", stmt, err)
		}
	}
	return nil
}

func (o Options) pragmas() []string {
	var stmts []string
	if o.CacheSize != 0 {
		stmts = append(stmts, fmt.Sprintf("PRAGMA cache_size = %d", o.CacheSize))
	}
	if o.PageSize != 0 {
		stmts = append(stmts, fmt.Sprintf("PRAGMA page_size = %d", o.PageSize))
	}
	if o.JournalMode != "" {
		stmts = append(stmts, fmt.Sprintf("PRAGMA journal_mode = %s", string(o.JournalMode)))
	}
	if o.SynchronousMode != "" {
		stmts = append(stmts, fmt.Sprintf("PRAGMA synchronous = %s", string(o.SynchronousMode)))
	}
	stmts = append(stmts, fmt.Sprintf("PRAGMA busy_timeout = %d", o.BusyTimeoutMs))
	stmts = append(stmts, fmt.Sprintf("PRAGMA foreign_keys = %s", boolPragma(o.EnableForeignKeys)))
	return stmts
}

func boolPragma(b bool) string {
	if b {
		return "ON"
	}
	return "OFF"
}
