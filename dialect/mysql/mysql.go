// Package mysql registers the MySQL [dialect.Dialect] (SPEC_FULL.md §4.B).
//
//	import _ "github.com/relstore/relstore/dialect/mysql"
package mysql

import (
	"fmt"
	"strings"
	"time"

	"ariga.io/atlas/sql/schema"
	_ "github.com/go-sql-driver/mysql" // registers the "mysql" database/sql driver

	"github.com/relstore/relstore/dialect"
)

func init() {
	dialect.Register(mysqlDialect{})
}

type mysqlDialect struct{}

func (mysqlDialect) Name() string { return dialect.MySQL }

// EscapeIdentifier quotes an identifier with backticks, MySQL's identifier
// quote character, doubling any embedded backtick.
func (mysqlDialect) EscapeIdentifier(s string) string {
	return "`" + strings.ReplaceAll(s, "`", "``") + "`"
}

// SQLTypeOf renders the abstract column type to a MySQL type keyword.
func (mysqlDialect) SQLTypeOf(col *schema.Column) string {
	switch t := col.Type.Type.(type) {
	case *schema.StringType:
		size := t.Size
		if size <= 0 {
			size = 255
		}
		if size > 65535 {
			return "LONGTEXT"
		}
		return fmt.Sprintf("VARCHAR(%d)", size)
	case *schema.BoolType:
		return "TINYINT(1)"
	case *schema.IntegerType:
		return "BIGINT"
	case *schema.FloatType:
		return "DOUBLE"
	case *schema.DecimalType:
		return fmt.Sprintf("DECIMAL(%d,%d)", t.Precision, t.Scale)
	case *schema.TimeType:
		return "DATETIME(6)"
	case *schema.BinaryType:
		return "BLOB"
	case *schema.EnumType:
		return fmt.Sprintf("ENUM(%s)", quoteEnumValues(t.Values))
	default:
		return "TEXT"
	}
}

func quoteEnumValues(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = "'" + strings.ReplaceAll(v, "'", "''") + "'"
	}
	return strings.Join(quoted, ",")
}

// ExpiryFilter compares a DATETIME column against UTC_TIMESTAMP directly;
// MySQL's DATETIME columns already compare as instants.
func (mysqlDialect) ExpiryFilter(columnExpr string) string {
	return fmt.Sprintf("%s <= UTC_TIMESTAMP(6)", columnExpr)
}

// Datetime returns expr unchanged: MySQL's DATETIME columns already compare
// as instants without an extra coercion function.
func (mysqlDialect) Datetime(expr string) string { return expr }

// ConvertParameterValue renders a bound value in MySQL's canonical wire
// form: booleans as 0/1, time.Time as a UTC DATETIME string, durations as
// total seconds.
func (mysqlDialect) ConvertParameterValue(v any) any {
	switch x := v.(type) {
	case bool:
		if x {
			return 1
		}
		return 0
	case time.Time:
		return x.UTC().Format("2006-01-02 15:04:05.000000")
	case time.Duration:
		return int64(x / time.Second)
	default:
		return v
	}
}

// Placeholder returns MySQL's positional "?" placeholder.
func (mysqlDialect) Placeholder(int) string { return "?" }

// CompactionCommand returns "" since OPTIMIZE TABLE is per-table, not a
// whole-database command the purge engine's generic OptimizeStorage hook can
// issue once; per-table compaction is left to the caller's own maintenance
// window.
func (mysqlDialect) CompactionCommand() string { return "" }

// Open returns the database/sql-go-sql-driver/mysql driver name and dsn
// unchanged.
func (mysqlDialect) Open(dsn string) (string, string) {
	return dialect.MySQL, dsn
}
