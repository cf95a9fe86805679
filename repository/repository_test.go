package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relstore/relstore"
	"github.com/relstore/relstore/dialect"
	sqld "github.com/relstore/relstore/dialect/sql"
	_ "github.com/relstore/relstore/dialect/sqlite"
	"github.com/relstore/relstore/predicate"
	"github.com/relstore/relstore/repository"
	"github.com/relstore/relstore/schema/field"
	"github.com/relstore/relstore/schema/mixin"
)

// taskSchema is a versioned, expiring, archivable, audited entity — the
// full lifecycle combination from spec §3's invariants (i)/(ii). Its id is
// caller-supplied (spec scenarios S1/S2 key entities by a string like "a"
// or "k"); auto-increment only applies to non-versioned entities (spec §3
// invariant (iv): "auto_increment implies single-column integer primary
// key", which a Versioned entity's composite {Id, Version} key never is).
type taskSchema struct{ relstore.Schema }

func (taskSchema) Mixin() []relstore.Mixin {
	return []relstore.Mixin{mixin.Versioned{}, mixin.Expirable{}, mixin.Archivable{}, mixin.Audited{}}
}

func (taskSchema) Fields() []field.Descriptor {
	id := field.String("id").NotEmpty().MaxLen(64).StructField("ID").Descriptor()
	id.PrimaryKey = true
	return []field.Descriptor{
		id,
		field.String("title").NotEmpty().MaxLen(200).Descriptor(),
	}
}

func (taskSchema) ExpirySpan() time.Duration { return 24 * time.Hour }

// Task is the plain runtime struct bound to taskSchema's columns.
type Task struct {
	ID                 string
	Title              string
	Version            int64
	IsDeleted          bool
	CreationTime       time.Time
	AbsoluteExpiration *time.Time
	IsArchived         bool
	LastWriteTime      time.Time
	CreatedBy          *string
	ModifiedBy         *string
}

func newTaskRepo(t *testing.T) *repository.Repository[Task, string] {
	t.Helper()
	drv, err := sqld.Open(dialect.SQLite, ":memory:")
	require.NoError(t, err)
	drv.DB().SetMaxOpenConns(1) // ":memory:" is per-connection; pin to one
	t.Cleanup(func() { _ = drv.Close() })

	repo, err := repository.New[Task, string](context.Background(), drv, taskSchema{})
	require.NoError(t, err)
	return repo
}

func TestCreateStampsLifecycleColumns(t *testing.T) {
	repo := newTaskRepo(t)
	ctx := context.Background()

	created, err := repo.Create(ctx, &Task{ID: "a", Title: "first"}, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(1), created.Version)
	assert.False(t, created.IsDeleted)
	assert.Equal(t, created.CreationTime, created.LastWriteTime)
	require.NotNil(t, created.AbsoluteExpiration)
	assert.True(t, created.AbsoluteExpiration.After(created.CreationTime))
	require.NotNil(t, created.CreatedBy)
	assert.Equal(t, "alice", *created.CreatedBy)

	got, err := repo.Get(ctx, "a", "alice")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "first", got.Title)
	assert.Equal(t, int64(1), got.Version)
}

func TestCreateRejectsDuplicateID(t *testing.T) {
	repo := newTaskRepo(t)
	ctx := context.Background()

	_, err := repo.Create(ctx, &Task{ID: "dup", Title: "one"}, "alice")
	require.NoError(t, err)

	_, err = repo.Create(ctx, &Task{ID: "dup", Title: "two"}, "alice")
	require.Error(t, err)
	assert.True(t, relstore.IsAlreadyExists(err))
}

// TestSoftDeleteHistory follows spec scenario S2: create → update → delete
// leaves 3 rows reachable through GetByKey, but Get sees none of them once
// the tombstone lands.
func TestSoftDeleteHistory(t *testing.T) {
	repo := newTaskRepo(t)
	ctx := context.Background()

	created, err := repo.Create(ctx, &Task{ID: "k", Title: "v1"}, "alice")
	require.NoError(t, err)

	created.Title = "v2"
	updated, err := repo.Update(ctx, created, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(2), updated.Version)

	ok, err := repo.Delete(ctx, "k", "alice")
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := repo.Get(ctx, "k", "alice")
	require.NoError(t, err)
	assert.Nil(t, got)

	history, err := repo.GetByKey(ctx, "k", "alice", true, true, true)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, int64(1), history[0].Version)
	assert.Equal(t, int64(2), history[1].Version)
	assert.Equal(t, int64(3), history[2].Version)
	assert.False(t, history[0].IsDeleted)
	assert.False(t, history[1].IsDeleted)
	assert.True(t, history[2].IsDeleted)
}

func TestDeleteIsIdempotent(t *testing.T) {
	repo := newTaskRepo(t)
	ctx := context.Background()

	_, err := repo.Create(ctx, &Task{ID: "gone", Title: "x"}, "alice")
	require.NoError(t, err)

	ok1, err := repo.Delete(ctx, "gone", "alice")
	require.NoError(t, err)
	assert.True(t, ok1)

	ok2, err := repo.Delete(ctx, "gone", "alice")
	require.NoError(t, err)
	assert.True(t, ok2)

	ok3, err := repo.Delete(ctx, "never-existed", "alice")
	require.NoError(t, err)
	assert.True(t, ok3)
}

// TestOptimisticConflict follows spec scenario S1: two readers of the same
// version race to update; the loser gets ConcurrencyConflict and the
// winner's write stands.
func TestOptimisticConflict(t *testing.T) {
	repo := newTaskRepo(t)
	ctx := context.Background()

	_, err := repo.Create(ctx, &Task{ID: "a", Title: "x"}, "alice")
	require.NoError(t, err)

	readerA, err := repo.Get(ctx, "a", "alice")
	require.NoError(t, err)
	readerB, err := repo.Get(ctx, "a", "bob")
	require.NoError(t, err)

	readerA.Title = "y"
	_, err = repo.Update(ctx, readerA, "alice")
	require.NoError(t, err)

	readerB.Title = "z"
	_, err = repo.Update(ctx, readerB, "bob")
	require.Error(t, err)
	assert.True(t, relstore.IsConflict(err))

	final, err := repo.Get(ctx, "a", "alice")
	require.NoError(t, err)
	assert.Equal(t, "y", final.Title)
}

func TestUpdateMissingRowIsNotFound(t *testing.T) {
	repo := newTaskRepo(t)
	ctx := context.Background()

	_, err := repo.Update(ctx, &Task{ID: "missing", Title: "x", Version: 1}, "alice")
	require.Error(t, err)
	assert.True(t, relstore.IsNotFound(err))
}

func TestQueryCountAndExists(t *testing.T) {
	repo := newTaskRepo(t)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		_, err := repo.Create(ctx, &Task{ID: id, Title: "task-" + id}, "alice")
		require.NoError(t, err)
	}
	_, err := repo.Delete(ctx, "c", "alice")
	require.NoError(t, err)

	count, err := repo.Count(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	exists, err := repo.Exists(ctx, predicate.FieldEQ("id", "a"))
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = repo.Exists(ctx, predicate.FieldEQ("id", "c"))
	require.NoError(t, err)
	assert.False(t, exists)

	items, err := repo.Query(ctx, nil, []predicate.OrderTerm{{Column: "id", Ascending: true}}, "alice", 0, 0, false, false)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "a", items[0].ID)
	assert.Equal(t, "b", items[1].ID)
}

func TestQueryPaged(t *testing.T) {
	repo := newTaskRepo(t)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c", "d", "e"} {
		_, err := repo.Create(ctx, &Task{ID: id, Title: "task-" + id}, "alice")
		require.NoError(t, err)
	}

	page, err := repo.QueryPaged(ctx, nil, 2, 1, []predicate.OrderTerm{{Column: "id", Ascending: true}}, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(5), page.TotalCount)
	assert.Equal(t, int64(3), page.TotalPages)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "a", page.Items[0].ID)
	assert.Equal(t, "b", page.Items[1].ID)

	last, err := repo.QueryPaged(ctx, nil, 2, 3, nil, "alice")
	require.NoError(t, err)
	require.Len(t, last.Items, 1)
}

// TestExpiryFiltersDefaultReads follows spec scenario-style expiry: a row
// whose AbsoluteExpiration has already passed is invisible to Get/Query
// unless the caller opts into includeExpired.
func TestExpiryFiltersDefaultReads(t *testing.T) {
	repo := newTaskRepo(t)
	ctx := context.Background()

	past := time.Now().Add(-time.Hour)
	expired, err := repo.Create(ctx, &Task{ID: "stale", Title: "old"}, "alice")
	require.NoError(t, err)
	expired.AbsoluteExpiration = &past
	_, err = repo.Update(ctx, expired, "alice")
	require.NoError(t, err)

	got, err := repo.Get(ctx, "stale", "alice")
	require.NoError(t, err)
	assert.Nil(t, got)

	history, err := repo.GetByKey(ctx, "stale", "alice", true, true, true)
	require.NoError(t, err)
	assert.NotEmpty(t, history)
}

func TestCreateBatchAllOrNothingPerChunk(t *testing.T) {
	repo := newTaskRepo(t)
	ctx := context.Background()

	entities := []*Task{
		{ID: "x1", Title: "one"},
		{ID: "x2", Title: "two"},
		{ID: "x1", Title: "dup-in-same-chunk"}, // collides with x1 above
	}
	_, err := repo.CreateBatch(ctx, entities, "alice", 10)
	require.Error(t, err)
	assert.True(t, relstore.IsAggregate(err) || relstore.IsAlreadyExists(err))

	count, err := repo.Count(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count, "whole chunk rolls back on failure")
}

func TestUpdateBatchAppliesTransform(t *testing.T) {
	repo := newTaskRepo(t)
	ctx := context.Background()

	for _, id := range []string{"p", "q"} {
		_, err := repo.Create(ctx, &Task{ID: id, Title: "before"}, "alice")
		require.NoError(t, err)
	}

	updated, err := repo.UpdateBatch(ctx, []string{"p", "q"}, func(task *Task) error {
		task.Title = "after"
		return nil
	}, "alice")
	require.NoError(t, err)
	require.Len(t, updated, 2)

	got, err := repo.Get(ctx, "p", "alice")
	require.NoError(t, err)
	assert.Equal(t, "after", got.Title)
}

func TestDeleteBatchReportsActualCount(t *testing.T) {
	repo := newTaskRepo(t)
	ctx := context.Background()

	for _, id := range []string{"r", "s"} {
		_, err := repo.Create(ctx, &Task{ID: id, Title: "x"}, "alice")
		require.NoError(t, err)
	}

	affected, err := repo.DeleteBatch(ctx, []string{"r", "s", "never-existed"}, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(2), affected)
}
