package retry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/relstore/relstore/dialect"
	sqld "github.com/relstore/relstore/dialect/sql"
	"github.com/relstore/relstore/retry"
)

// TestDoRetriesRealDriverBusyError drives retry.Policy.Do against an actual
// dialect.Driver.Query call (not a hand-built error value) to confirm a
// driver-level "database is locked" failure is classified transient and
// retried through to success, the same sqlmock.New/OpenDB harness the
// teacher's dialect/sql driver tests use to exercise a live *sql.DB without
// a real database underneath.
func TestDoRetriesRealDriverBusyError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	drv := sqld.OpenDB(dialect.SQLite, db)

	mock.ExpectQuery("SELECT count").WillReturnError(errors.New("database is locked"))
	mock.ExpectQuery("SELECT count").WillReturnError(errors.New("database is locked"))
	mock.ExpectQuery("SELECT count").WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	p := retry.Default()
	p.InitialDelay = time.Millisecond
	p.MaxDelay = time.Millisecond

	var calls int
	rows := &sqld.Rows{}
	err = p.Do(context.Background(), "count", func(ctx context.Context) error {
		calls++
		return drv.Query(ctx, "SELECT count FROM tasks", []any{}, rows)
	})

	require.NoError(t, err)
	require.NoError(t, rows.Close())
	require.Equal(t, 3, calls)
	require.NoError(t, mock.ExpectationsWereMet())
}

// TestDoStopsOnRealDriverPermanentError confirms a non-transient driver
// error (an unrecognized SQL error, not a busy/locked condition) is not
// retried, using the same sqlmock-backed dialect.Driver as above.
func TestDoStopsOnRealDriverPermanentError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	drv := sqld.OpenDB(dialect.SQLite, db)

	mock.ExpectQuery("SELECT count").WillReturnError(errors.New("no such table: tasks"))

	p := retry.Default()
	p.InitialDelay = time.Millisecond

	var calls int
	rows := &sqld.Rows{}
	err = p.Do(context.Background(), "count", func(ctx context.Context) error {
		calls++
		return drv.Query(ctx, "SELECT count FROM tasks", []any{}, rows)
	})

	require.Error(t, err)
	require.Equal(t, 1, calls)
	require.NoError(t, mock.ExpectationsWereMet())
}
