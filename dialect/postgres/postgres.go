// Package postgres registers the PostgreSQL [dialect.Dialect]
// (SPEC_FULL.md §4.B).
//
//	import _ "github.com/relstore/relstore/dialect/postgres"
package postgres

import (
	"fmt"
	"strings"
	"time"

	"ariga.io/atlas/sql/schema"
	_ "github.com/lib/pq" // registers the "postgres" database/sql driver

	"github.com/relstore/relstore/dialect"
)

func init() {
	dialect.Register(postgresDialect{})
}

type postgresDialect struct{}

func (postgresDialect) Name() string { return dialect.Postgres }

// EscapeIdentifier quotes an identifier with double quotes, doubling any
// embedded quote, ANSI/Postgres's identifier quote form.
func (postgresDialect) EscapeIdentifier(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// SQLTypeOf renders the abstract column type to a Postgres type keyword.
func (postgresDialect) SQLTypeOf(col *schema.Column) string {
	switch t := col.Type.Type.(type) {
	case *schema.StringType:
		if t.Size > 0 {
			return fmt.Sprintf("VARCHAR(%d)", t.Size)
		}
		return "TEXT"
	case *schema.BoolType:
		return "BOOLEAN"
	case *schema.IntegerType:
		return "BIGINT"
	case *schema.FloatType:
		return "DOUBLE PRECISION"
	case *schema.DecimalType:
		return fmt.Sprintf("NUMERIC(%d,%d)", t.Precision, t.Scale)
	case *schema.TimeType:
		return "TIMESTAMPTZ"
	case *schema.BinaryType:
		return "BYTEA"
	case *schema.EnumType:
		return "TEXT" // variant name, not a native CREATE TYPE enum (spec §9 Open Question)
	default:
		return "TEXT"
	}
}

// ExpiryFilter compares a TIMESTAMPTZ column against the server's instant;
// Postgres's TIMESTAMPTZ already normalizes to an absolute instant on
// comparison.
func (postgresDialect) ExpiryFilter(columnExpr string) string {
	return fmt.Sprintf("%s <= now()", columnExpr)
}

// Datetime returns expr unchanged: Postgres's TIMESTAMPTZ columns already
// compare as instants without an extra coercion function.
func (postgresDialect) Datetime(expr string) string { return expr }

// ConvertParameterValue renders a bound value in Postgres's canonical wire
// form: booleans pass through as Go bool (lib/pq understands it directly),
// time.Time as UTC, durations as total seconds.
func (postgresDialect) ConvertParameterValue(v any) any {
	switch x := v.(type) {
	case time.Time:
		return x.UTC()
	case time.Duration:
		return int64(x / time.Second)
	default:
		return v
	}
}

// Placeholder returns Postgres's numbered "$n" placeholder.
func (postgresDialect) Placeholder(n int) string {
	return fmt.Sprintf("$%d", n)
}

// CompactionCommand returns Postgres's VACUUM statement.
func (postgresDialect) CompactionCommand() string { return "VACUUM" }

// Open returns the lib/pq driver name and dsn unchanged.
func (postgresDialect) Open(dsn string) (string, string) {
	return dialect.Postgres, dsn
}
