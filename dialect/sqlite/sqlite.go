// Package sqlite registers the SQLite [dialect.Dialect], the default and
// primary target backend (SPEC_FULL.md §4.B). Importing this package for
// side effects is enough to make dialect.Get(dialect.SQLite) succeed:
//
//	import _ "github.com/relstore/relstore/dialect/sqlite"
package sqlite

import (
	"fmt"
	"strings"
	"time"

	"ariga.io/atlas/sql/schema"
	"github.com/google/uuid"
	_ "modernc.org/sqlite" // registers the "sqlite" database/sql driver

	"github.com/relstore/relstore/dialect"
)

func init() {
	dialect.Register(sqliteDialect{})
}

type sqliteDialect struct{}

func (sqliteDialect) Name() string { return dialect.SQLite }

// EscapeIdentifier quotes an identifier with double quotes, doubling any
// embedded quote, SQLite's portable (and ANSI-standard) quoting form.
func (sqliteDialect) EscapeIdentifier(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// SQLTypeOf renders the abstract column type to the SQLite storage class
// keyword (spec §6.4): TEXT, INTEGER, REAL, BLOB, NUMERIC.
func (sqliteDialect) SQLTypeOf(col *schema.Column) string {
	switch t := col.Type.Type.(type) {
	case *schema.StringType:
		if t.Size > 0 {
			return fmt.Sprintf("TEXT(%d)", t.Size)
		}
		return "TEXT"
	case *schema.BoolType:
		return "INTEGER" // 0/1
	case *schema.IntegerType:
		return "INTEGER"
	case *schema.FloatType:
		return "REAL"
	case *schema.DecimalType:
		return "NUMERIC"
	case *schema.TimeType:
		return "TEXT" // ISO-8601 string, spec §6.4
	case *schema.BinaryType:
		return "BLOB"
	case *schema.EnumType:
		return "TEXT"
	default:
		return "TEXT"
	}
}

// ExpiryFilter wraps both sides of the comparison with datetime(...) so
// SQLite compares ISO-8601 text columns as instants rather than lexically
// (spec §9 Open Question: BusyTimeout vs retry — expiry itself always uses
// this form regardless of that decision).
func (sqliteDialect) ExpiryFilter(columnExpr string) string {
	return fmt.Sprintf("datetime(%s) <= datetime('now')", columnExpr)
}

// Datetime wraps expr in SQLite's datetime() coercion: SQLite stores
// temporal columns as ISO-8601 TEXT, which only compares correctly as an
// instant once normalized through datetime().
func (sqliteDialect) Datetime(expr string) string {
	return fmt.Sprintf("datetime(%s)", expr)
}

// ConvertParameterValue renders a bound value in SQLite's canonical wire
// form: booleans as 0/1, time.Time as an ISO-8601 UTC string, durations as
// total seconds, UUIDs as hex strings (spec §6.4).
func (sqliteDialect) ConvertParameterValue(v any) any {
	switch x := v.(type) {
	case bool:
		if x {
			return 1
		}
		return 0
	case time.Time:
		return x.UTC().Format(time.RFC3339Nano)
	case time.Duration:
		return int64(x / time.Second)
	case uuid.UUID:
		return x.String()
	case [16]byte:
		return uuid.UUID(x).String()
	default:
		return v
	}
}

// Placeholder returns SQLite's positional "?" placeholder; n is ignored
// since SQLite placeholders are unnumbered.
func (sqliteDialect) Placeholder(int) string { return "?" }

// CompactionCommand returns SQLite's VACUUM statement, run by the purge
// engine's OptimizeStorage option.
func (sqliteDialect) CompactionCommand() string { return "VACUUM" }

// Open returns the database/sql driver name modernc.org/sqlite registers
// itself under, plus dsn unchanged.
func (sqliteDialect) Open(dsn string) (string, string) {
	return dialect.SQLite, dsn
}
