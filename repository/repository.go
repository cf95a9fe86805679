// Package repository implements the CRUD Engine (component F, spec §3/§4.F):
// a generic Repository[T, K] giving one Go entity type a versioned,
// optionally soft-deleting, optionally expiring table backed by an
// [relstore.EntityMapping]. It never reflects over a schema declaration
// itself (that's [relstore.Build]'s job) — it reflects over the plain
// runtime entity struct T, matching each column to a struct field by the
// mapping's recorded StructField name, the same separation the package doc
// comment on relstore describes between "schema declaration" and "runtime
// entity".
//
// Connection handling is delegated to a [dialect.Driver] rather than a raw
// *sql.DB, so the teacher's own dialect/sql.Driver/StatsDriver wrapper does
// the Exec/Query plumbing — a repository built over a [dialect/sql.StatsDriver]
// gets per-query stats for free.
package repository

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"github.com/relstore/relstore"
	"github.com/relstore/relstore/ddl"
	"github.com/relstore/relstore/dialect"
	"github.com/relstore/relstore/retry"
)

// Repository is a generic, strongly-typed handle onto one entity table. T
// is the plain Go struct callers pass in and receive back; K is the type of
// its logical identifier (the primary-key column that isn't Version).
//
// A Repository is safe for concurrent use once constructed.
type Repository[T any, K comparable] struct {
	mapping *relstore.EntityMapping
	dialect dialect.Dialect
	driver  dialect.Driver
	// retry is behind an atomic.Pointer, not a plain field, so a
	// [config.Watcher] can hot-swap the policy without a lock on every
	// statement (spec §9 Open Question: RetryPolicy.* reloads without
	// reopening the connection).
	retry          atomic.Pointer[retry.Policy]
	commandTimeout atomic.Int64 // nanoseconds; 0 means "no deadline applied"
	clock          func() time.Time

	entityType reflect.Type // T itself, never a pointer
	fields     map[string][]int
	idColumn   *relstore.ColumnMapping

	allowSchemaEvolution bool

	initOnce sync.Once
	initErr  error
}

// retryPolicy returns the repository's current retry policy, reflecting
// the most recent [Repository.SetRetryPolicy] call.
func (r *Repository[T, K]) retryPolicy() retry.Policy { return *r.retry.Load() }

// SetRetryPolicy hot-swaps the retry policy applied to every subsequent
// statement — the mutable half of spec §9's BusyTimeout/retry Open
// Question, exercised by [config.Watcher].
func (r *Repository[T, K]) SetRetryPolicy(p retry.Policy) { r.retry.Store(&p) }

// SetCommandTimeout records the per-command deadline a caller should apply
// via context; repository methods don't impose it themselves (every public
// method already takes a ctx from the caller), but collaborating code can
// read it back through [Repository.CommandTimeout].
func (r *Repository[T, K]) SetCommandTimeout(secs int) {
	r.commandTimeout.Store(int64(time.Duration(secs) * time.Second))
}

// CommandTimeout returns the duration set by the most recent
// [Repository.SetCommandTimeout] call, or 0 if none was ever made.
func (r *Repository[T, K]) CommandTimeout() time.Duration {
	return time.Duration(r.commandTimeout.Load())
}

// SetBusyTimeout issues `PRAGMA busy_timeout` against the repository's live
// connection, for [config.Watcher] hot-reloads.
func (r *Repository[T, K]) SetBusyTimeout(ctx context.Context, ms int) error {
	return r.driver.Exec(ctx, fmt.Sprintf("PRAGMA busy_timeout = %d", ms), nil, nil)
}

// Option configures a Repository at construction time.
type Option[T any, K comparable] func(*Repository[T, K])

// WithRetryPolicy overrides the default retry policy ([retry.Default]) used
// for every schema-initialization and write statement.
func WithRetryPolicy[T any, K comparable](p retry.Policy) Option[T, K] {
	return func(r *Repository[T, K]) { r.SetRetryPolicy(p) }
}

// WithClock overrides time.Now, for tests that need deterministic
// CreationTime/LastWriteTime stamps.
func WithClock[T any, K comparable](now func() time.Time) Option[T, K] {
	return func(r *Repository[T, K]) { r.clock = now }
}

// WithSchemaEvolution authorizes live `ALTER TABLE` statements issued by
// collaborating components outside the CRUD engine itself — currently only
// the bulk pipeline's archive-export `MarkAsExported` column. Disabled by
// default: enabling archival export doesn't implicitly authorize a schema
// change.
func WithSchemaEvolution[T any, K comparable](allow bool) Option[T, K] {
	return func(r *Repository[T, K]) { r.allowSchemaEvolution = allow }
}

// New builds a Repository[T, K] over schema's cached [relstore.EntityMapping]
// and drv. schema is the zero value of a schema declaration (e.g. Task{}),
// not the runtime entity struct — the same convention [relstore.MappingFor]
// uses. The returned Repository's table is created (if absent) synchronously,
// through the repository's retry policy, before New returns.
func New[T any, K comparable](ctx context.Context, drv dialect.Driver, schema any, opts ...Option[T, K]) (*Repository[T, K], error) {
	m, err := relstore.MappingFor(schema)
	if err != nil {
		return nil, err
	}
	d, ok := dialect.Get(drv.Dialect())
	if !ok {
		return nil, fmt.Errorf("repository: no dialect registered for %q (missing blank import?)", drv.Dialect())
	}

	var zero T
	entityType := reflect.TypeOf(zero)
	if entityType == nil || entityType.Kind() != reflect.Struct {
		return nil, fmt.Errorf("repository: entity type must be a struct, got %T", zero)
	}

	fields, idColumn, err := bindFields(entityType, m)
	if err != nil {
		return nil, err
	}

	r := &Repository[T, K]{
		mapping:    m,
		dialect:    d,
		driver:     drv,
		clock:      time.Now,
		entityType: entityType,
		fields:     fields,
		idColumn:   idColumn,
	}
	r.SetRetryPolicy(retry.Default())
	for _, opt := range opts {
		opt(r)
	}

	if err := r.ensureSchema(ctx); err != nil {
		return nil, err
	}
	return r, nil
}

// bindFields resolves, once per Repository, the struct-field index for each
// mapped column, and identifies the single non-Version primary-key column
// that serves as the logical identifier callers address by K.
func bindFields(t reflect.Type, m *relstore.EntityMapping) (map[string][]int, *relstore.ColumnMapping, error) {
	fields := make(map[string][]int, len(m.Columns))
	for i := range m.Columns {
		cm := &m.Columns[i]
		sf, ok := t.FieldByName(cm.StructField)
		if !ok {
			return nil, nil, relstore.NewMappingErrorReason(t.Name(), relstore.MappingReasonWrongType,
				fmt.Sprintf("entity type %s has no field %q bound to column %q", t.Name(), cm.StructField, cm.Name))
		}
		fields[cm.Name] = sf.Index
	}

	var idColumn *relstore.ColumnMapping
	for _, name := range m.PrimaryKey {
		if m.Audit.Version != nil && name == m.Audit.Version.Name {
			continue
		}
		if idColumn != nil {
			return nil, nil, relstore.NewMappingErrorReason(t.Name(), relstore.MappingReasonWrongType,
				"repository requires exactly one non-version primary-key column")
		}
		cm, _ := m.ColumnByName(name)
		idColumn = cm
	}
	if idColumn == nil {
		return nil, nil, relstore.NewMappingErrorReason(t.Name(), relstore.MappingReasonWrongType,
			"repository requires a non-version primary-key column")
	}
	return fields, idColumn, nil
}

// ensureSchema runs the DDL synthesizer's statements exactly once per
// Repository (spec §5 "Connection discipline": "guarded by a
// mutual-exclusion primitive used only to serialize the open/initialize
// lifecycle").
func (r *Repository[T, K]) ensureSchema(ctx context.Context) error {
	r.initOnce.Do(func() {
		stmts := ddl.Synthesize(r.mapping, r.dialect)
		r.initErr = r.retryPolicy().Do(ctx, "init_schema", func(ctx context.Context) error {
			for _, stmt := range stmts {
				if err := r.driver.Exec(ctx, stmt, []any{}, nil); err != nil {
					return fmt.Errorf("repository: init schema: %w", err)
				}
			}
			return nil
		})
	})
	return r.initErr
}

// TableName returns the table this repository reads and writes.
func (r *Repository[T, K]) TableName() string { return r.mapping.TableName }

// now returns the repository's current instant, honoring [WithClock].
func (r *Repository[T, K]) now() time.Time { return r.clock().UTC() }

func (r *Repository[T, K]) softDelete() bool { return r.mapping.SoftDeleteEnabled }
func (r *Repository[T, K]) expirable() bool  { return r.mapping.Audit.AbsoluteExpiration != nil }
