package sql

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relstore/relstore/dialect"
	_ "github.com/relstore/relstore/dialect/sqlite"
)

func TestStatsDriverRecordsQueriesAndExecs(t *testing.T) {
	drv, err := Open(dialect.SQLite, ":memory:")
	require.NoError(t, err)
	defer drv.Close()

	statsDrv := NewStatsDriver(drv)

	require.NoError(t, statsDrv.Exec(context.Background(), "CREATE TABLE t (id INTEGER)", []any{}, nil))
	require.NoError(t, statsDrv.Exec(context.Background(), "INSERT INTO t (id) VALUES (1)", []any{}, nil))

	rows := &Rows{}
	require.NoError(t, statsDrv.Query(context.Background(), "SELECT id FROM t", []any{}, rows))
	require.NoError(t, rows.Close())

	snap := statsDrv.QueryStats().Stats()
	assert.Equal(t, int64(2), snap.TotalExecs)
	assert.Equal(t, int64(1), snap.TotalQueries)
	assert.Equal(t, int64(0), snap.Errors)
}

func TestStatsDriverFlagsSlowQueries(t *testing.T) {
	drv, err := Open(dialect.SQLite, ":memory:")
	require.NoError(t, err)
	defer drv.Close()

	var hookCalls int
	statsDrv := NewStatsDriver(drv,
		WithSlowThreshold(0),
		WithSlowQueryHook(func(context.Context, string, []any, time.Duration) {
			hookCalls++
		}),
	)

	require.NoError(t, statsDrv.Exec(context.Background(), "CREATE TABLE t (id INTEGER)", []any{}, nil))

	snap := statsDrv.QueryStats().Stats()
	assert.Equal(t, int64(1), snap.SlowQueries)
	assert.Equal(t, 1, hookCalls)
}

func TestStatsDriverRecordsErrors(t *testing.T) {
	drv, err := Open(dialect.SQLite, ":memory:")
	require.NoError(t, err)
	defer drv.Close()

	statsDrv := NewStatsDriver(drv)

	err = statsDrv.Exec(context.Background(), "INSERT INTO no_such_table (id) VALUES (1)", []any{}, nil)
	require.Error(t, err)

	snap := statsDrv.QueryStats().Stats()
	assert.Equal(t, int64(1), snap.Errors)
}

func TestDebugDriverLogsQueriesAndExecs(t *testing.T) {
	drv, err := Open(dialect.SQLite, ":memory:")
	require.NoError(t, err)
	defer drv.Close()

	var logged []string
	debugDrv := NewDebugDriver(drv, DebugWithLog(func(_ context.Context, v ...any) {
		logged = append(logged, v[0].(string))
	}))

	require.NoError(t, debugDrv.Exec(context.Background(), "CREATE TABLE t (id INTEGER)", []any{}, nil))
	rows := &Rows{}
	require.NoError(t, debugDrv.Query(context.Background(), "SELECT id FROM t", []any{}, rows))
	require.NoError(t, rows.Close())

	require.Len(t, logged, 2)
	assert.Contains(t, logged[0], "exec:")
	assert.Contains(t, logged[1], "query:")
}
