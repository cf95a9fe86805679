// Package sql adapts database/sql to relstore's dialect.Driver interface.
//
// [Driver] wraps a *sql.DB (through [Conn]) so the repository, bulk and
// purge packages can issue statements and open transactions ([Tx]) without
// touching database/sql directly; [Open] and [OpenDB] construct one.
//
// # Instrumentation
//
// [StatsDriver] wraps a Driver and counts queries, execs, total duration,
// slow queries and errors in a [QueryStats]; [OpenWithStats] opens a
// connection with one already in place. [DebugDriver] logs every statement
// and transaction boundary. Both satisfy dialect.Driver, so either can be
// passed wherever a plain Driver is accepted.
//
// The package builds no SQL text itself: statements come from its callers
// (the DDL synthesizer, the predicate translator and the repository).
package sql
