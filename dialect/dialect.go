// Package dialect provides the database-dialect abstraction consumed by the
// DDL synthesizer, expression translator, and repository packages. A
// [Dialect] implementation never opens a connection itself; it only
// translates relstore's canonical column/predicate model into the SQL
// surface a particular backend needs (spec §4.B).
package dialect

import (
	"context"
	"time"

	"ariga.io/atlas/sql/schema"
)

// Dialect name constants, mirroring the teacher's dialect.Postgres/MySQL/
// SQLite string constants (dialect/doc.go). "sqlite" matches the driver
// name modernc.org/sqlite registers itself under.
const (
	SQLite   = "sqlite"
	MySQL    = "mysql"
	Postgres = "postgres"
)

// Dialect is implemented once per supported backend (component B). It has
// no knowledge of any specific entity; it only knows how to render generic
// IR into that backend's SQL dialect.
type Dialect interface {
	// Name returns the dialect's registered driver/constant name.
	Name() string

	// EscapeIdentifier quotes s if it is a reserved word or contains
	// non-identifier characters; otherwise returns it unchanged.
	EscapeIdentifier(s string) string

	// SQLTypeOf returns the dialect SQL type keyword for a column's
	// abstract type (spec §6.4), e.g. "INTEGER", "TEXT", "REAL", "BLOB",
	// "NUMERIC".
	SQLTypeOf(col *schema.Column) string

	// ExpiryFilter returns a dialect-safe boolean SQL fragment comparing
	// columnExpr (already dialect-escaped) against the current instant,
	// wrapping both sides in the dialect's temporal-comparison form (e.g.
	// SQLite wraps both sides with datetime(...)).
	ExpiryFilter(columnExpr string) string

	// Datetime wraps expr (a column reference or bound parameter
	// placeholder) in the dialect's temporal-normalization coercion so two
	// operands compare as instants rather than lexically. Used by the
	// expression translator (component D) whenever either side of a binary
	// comparison is a temporal column or literal (spec §4.D "temporal
	// wrapping"). Dialects whose native temporal type already compares
	// correctly return expr unchanged.
	Datetime(expr string) string

	// ConvertParameterValue returns v in the on-wire representation for
	// this dialect. Every dialect sends durations as total seconds. SQLite
	// also sends booleans as 0/1, temporal values as ISO-8601 strings and
	// UUIDs as hex strings; MySQL sends booleans as 0/1 and temporal values
	// as "YYYY-MM-DD hh:mm:ss.ffffff" text; Postgres passes booleans through
	// and sends temporal values as UTC time.Time. Other values pass through
	// unchanged.
	ConvertParameterValue(v any) any

	// Placeholder returns the parameter placeholder for the nth (1-based)
	// bound argument, e.g. "?" for SQLite/MySQL or "$1" for Postgres.
	Placeholder(n int) string

	// CompactionCommand returns the storage-compaction statement run by the
	// purge engine's OptimizeStorage option (e.g. "VACUUM"), or "" if the
	// dialect has none.
	CompactionCommand() string

	// Open returns a database/sql-compatible driver name and DSN pair,
	// given a raw connection string, ready to pass to sql.Open.
	Open(dsn string) (driverName string, dataSourceName string)
}

// Registry maps a dialect name to its implementation. Concrete dialects
// register themselves in their package init() (blank-imported by callers
// who want that backend, e.g. `import _ "github.com/relstore/relstore/dialect/sqlite"`).
var registry = map[string]Dialect{}

// Register installs d under its Name(). Called from each concrete
// dialect's init().
func Register(d Dialect) {
	registry[d.Name()] = d
}

// Get returns the registered Dialect for name, or (nil, false) if no
// package registered it (the caller forgot the blank import).
func Get(name string) (Dialect, bool) {
	d, ok := registry[name]
	return d, ok
}

// NowFunc is overridable by tests that need a fixed notion of "now" for
// expiry/versioning computations; production code always uses time.Now.
var NowFunc = time.Now

// ExecQuerier wraps the standard Exec/Query methods, implemented by both
// [Driver] and [Tx] (teacher dialect/doc.go contract, kept verbatim so
// dialect/sql's Conn/Driver/Tx wrapper needs no structural change).
type ExecQuerier interface {
	Exec(ctx context.Context, query string, args, v any) error
	Query(ctx context.Context, query string, args, v any) error
}

// Driver is implemented by a dialect-aware connection pool wrapper.
type Driver interface {
	ExecQuerier
	Tx(ctx context.Context) (Tx, error)
	Close() error
	Dialect() string
}

// Tx extends Driver with transaction control.
type Tx interface {
	Driver
	Commit() error
	Rollback() error
}
