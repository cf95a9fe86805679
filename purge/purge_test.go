package purge_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relstore/relstore"
	"github.com/relstore/relstore/dialect"
	sqld "github.com/relstore/relstore/dialect/sql"
	_ "github.com/relstore/relstore/dialect/sqlite"
	"github.com/relstore/relstore/purge"
	"github.com/relstore/relstore/repository"
	"github.com/relstore/relstore/schema/field"
	"github.com/relstore/relstore/schema/mixin"
)

// recordSchema is a versioned, audited entity: old historical rows give
// PreserveActiveVersions something to purge, and CreationTime gives the
// age-bounded strategies a column to filter on.
type recordSchema struct{ relstore.Schema }

func (recordSchema) Mixin() []relstore.Mixin {
	return []relstore.Mixin{mixin.Versioned{}, mixin.Expirable{}, mixin.Audited{}}
}

func (recordSchema) Fields() []field.Descriptor {
	id := field.String("id").NotEmpty().MaxLen(64).StructField("ID").Descriptor()
	id.PrimaryKey = true
	return []field.Descriptor{
		id,
		field.String("label").NotEmpty().MaxLen(200).Descriptor(),
	}
}

type Record struct {
	ID                 string
	Label              string
	Version            int64
	IsDeleted          bool
	CreationTime       time.Time
	AbsoluteExpiration *time.Time
	LastWriteTime      time.Time
	CreatedBy          *string
	ModifiedBy         *string
}

func newRecordRepo(t *testing.T) *repository.Repository[Record, string] {
	t.Helper()
	drv, err := sqld.Open(dialect.SQLite, ":memory:")
	require.NoError(t, err)
	drv.DB().SetMaxOpenConns(1)
	t.Cleanup(func() { _ = drv.Close() })

	repo, err := repository.New[Record, string](context.Background(), drv, recordSchema{})
	require.NoError(t, err)
	return repo
}

func TestPurgePreviewDoesNotDeleteRows(t *testing.T) {
	repo := newRecordRepo(t)
	ctx := context.Background()

	created, err := repo.Create(ctx, &Record{ID: "r1", Label: "v1"}, "alice")
	require.NoError(t, err)
	created.Label = "v2"
	_, err = repo.Update(ctx, created, "alice")
	require.NoError(t, err)

	engine := purge.New(repo)
	opts := purge.DefaultOptions()
	opts.Strategy = purge.PreserveActiveVersions

	result, err := engine.Purge(ctx, opts)
	require.NoError(t, err)
	assert.True(t, result.IsPreview)
	assert.EqualValues(t, 1, result.Preview.AffectedEntityCount)
	assert.Zero(t, result.EntitiesPurged)

	rows, err := repo.GetByKey(ctx, "r1", "alice", true, true, true)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestPurgeCommitPreserveActiveVersionsRemovesOnlyHistory(t *testing.T) {
	repo := newRecordRepo(t)
	ctx := context.Background()

	created, err := repo.Create(ctx, &Record{ID: "r1", Label: "v1"}, "alice")
	require.NoError(t, err)
	created.Label = "v2"
	updated, err := repo.Update(ctx, created, "alice")
	require.NoError(t, err)
	updated.Label = "v3"
	_, err = repo.Update(ctx, updated, "alice")
	require.NoError(t, err)

	engine := purge.New(repo)
	opts := purge.DefaultOptions()
	opts.SafeMode = false
	opts.Strategy = purge.PreserveActiveVersions

	result, err := engine.Purge(ctx, opts)
	require.NoError(t, err)
	assert.False(t, result.IsPreview)
	assert.EqualValues(t, 2, result.EntitiesPurged)

	rows, err := repo.GetByKey(ctx, "r1", "alice", true, true, true)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "v3", rows[0].Label)
}

// TestPurgeAgeThresholdPreviewThenCommit follows the spec's age-based purge
// scenario: 8 entities, 5 older than the threshold. Preview reports the 5
// without deleting; committing removes exactly those 5, and
// OptimizeStorage reports space reclaimed.
func TestPurgeAgeThresholdPreviewThenCommit(t *testing.T) {
	repo := newRecordRepo(t)
	ctx := context.Background()

	for i := 0; i < 8; i++ {
		id := "r" + string(rune('a'+i))
		_, err := repo.Create(ctx, &Record{ID: id, Label: "v1"}, "alice")
		require.NoError(t, err)
	}

	old := time.Now().UTC().Add(-200 * 24 * time.Hour)
	for i := 0; i < 5; i++ {
		id := "r" + string(rune('a'+i))
		backdateCreationTime(t, repo, ctx, id, old)
	}

	engine := purge.New(repo)
	opts := purge.DefaultOptions()
	opts.Strategy = purge.PurgeAll
	opts.AgeThreshold = 90 * 24 * time.Hour

	preview, err := engine.Purge(ctx, opts)
	require.NoError(t, err)
	assert.True(t, preview.IsPreview)
	assert.EqualValues(t, 5, preview.Preview.AffectedEntityCount)

	count, err := countAll(ctx, repo)
	require.NoError(t, err)
	assert.Equal(t, 8, count)

	opts.SafeMode = false
	opts.OptimizeStorage = true
	committed, err := engine.Purge(ctx, opts)
	require.NoError(t, err)
	assert.False(t, committed.IsPreview)
	assert.EqualValues(t, 5, committed.EntitiesPurged)

	count, err = countAll(ctx, repo)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestPurgeBackupBeforePurgeWritesExportFiles(t *testing.T) {
	repo := newRecordRepo(t)
	ctx := context.Background()
	_, err := repo.Create(ctx, &Record{ID: "r1", Label: "v1"}, "alice")
	require.NoError(t, err)

	engine := purge.New(repo)
	dir := t.TempDir()
	opts := purge.DefaultOptions()
	opts.SafeMode = false
	opts.Strategy = purge.PurgeAll
	opts.BackupBeforePurge = true
	opts.BackupPath = dir

	_, err = engine.Purge(ctx, opts)
	require.NoError(t, err)

	entries, err := listDir(dir)
	require.NoError(t, err)
	assert.NotEmpty(t, entries)
}

func backdateCreationTime(t *testing.T, repo *repository.Repository[Record, string], ctx context.Context, id string, ts time.Time) {
	t.Helper()
	err := repo.Exec(ctx, "test_backdate", "UPDATE records SET creation_time = ? WHERE id = ?", []any{ts.Format(time.RFC3339Nano), id})
	require.NoError(t, err)
}

// countAll counts every live (latest, non-deleted) row, ignoring expiry —
// purge's age-threshold scenario never marks rows expired.
func countAll(ctx context.Context, repo *repository.Repository[Record, string]) (int, error) {
	entities, err := repo.QueryAll(ctx, nil, nil, false, false, true, 0, 0)
	if err != nil {
		return 0, err
	}
	return len(entities), nil
}

func listDir(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name()
	}
	return names, nil
}
