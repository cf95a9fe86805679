// Package dialect provides database dialect abstraction for relstore.
//
// This package defines the interfaces and types used for database-specific
// operations, allowing relstore to support multiple database backends
// including SQLite, MySQL, and PostgreSQL.
//
// # Supported dialects
//
//   - SQLite: the default/primary target (dialect/sqlite, modernc.org/sqlite)
//   - MySQL: dialect/mysql, github.com/go-sql-driver/mysql
//   - Postgres: dialect/postgres, github.com/lib/pq
//
// # Dialect constants
//
//	dialect.SQLite   = "sqlite"
//	dialect.MySQL    = "mysql"
//	dialect.Postgres = "postgres"
//
// # Driver interface
//
// The low-level connection-pool wrapper contract, implemented by
// dialect/sql.Driver/Tx over database/sql:
//
//	type Driver interface {
//	    Exec(ctx context.Context, query string, args, v any) error
//	    Query(ctx context.Context, query string, args, v any) error
//	    Tx(ctx context.Context) (Tx, error)
//	    Close() error
//	    Dialect() string
//	}
//
// # Dialect interface
//
// The higher-level, entity-agnostic translation contract used by the DDL
// synthesizer (component C), expression translator (component D), and
// repository (component F): identifier escaping, SQL type mapping, expiry
// filtering, and parameter-value conversion (spec §4.B/§6.4). Concrete
// backends register themselves with [Register] from their package init.
//
// # Usage
//
//	import (
//	    _ "github.com/relstore/relstore/dialect/sqlite"
//	    "github.com/relstore/relstore/dialect/sql"
//	)
//
//	db, err := sql.Open(dialect.SQLite, "file:app.db?_pragma=busy_timeout(5000)")
package dialect
