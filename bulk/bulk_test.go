package bulk_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relstore/relstore"
	"github.com/relstore/relstore/bulk"
	"github.com/relstore/relstore/dialect"
	sqld "github.com/relstore/relstore/dialect/sql"
	_ "github.com/relstore/relstore/dialect/sqlite"
	"github.com/relstore/relstore/repository"
	"github.com/relstore/relstore/schema/field"
	"github.com/relstore/relstore/schema/mixin"
)

type widgetSchema struct{ relstore.Schema }

func (widgetSchema) Mixin() []relstore.Mixin {
	return []relstore.Mixin{mixin.Audited{}}
}

func (widgetSchema) Fields() []field.Descriptor {
	id := field.String("id").NotEmpty().MaxLen(64).StructField("ID").Descriptor()
	id.PrimaryKey = true
	return []field.Descriptor{
		id,
		field.String("name").NotEmpty().MaxLen(200).Descriptor(),
		field.Int64("quantity").Descriptor(),
	}
}

type Widget struct {
	ID            string
	Name          string
	Quantity      int64
	LastWriteTime time.Time
	CreatedBy     *string
	ModifiedBy    *string
}

func newWidgetRepo(t *testing.T) *repository.Repository[Widget, string] {
	t.Helper()
	drv, err := sqld.Open(dialect.SQLite, ":memory:")
	require.NoError(t, err)
	drv.DB().SetMaxOpenConns(1)
	t.Cleanup(func() { _ = drv.Close() })

	repo, err := repository.New[Widget, string](context.Background(), drv, widgetSchema{})
	require.NoError(t, err)
	return repo
}

func widgetJSON(widgets []Widget) []byte {
	rows := make([]map[string]any, len(widgets))
	for i, w := range widgets {
		rows[i] = map[string]any{"id": w.ID, "name": w.Name, "quantity": w.Quantity}
	}
	buf, _ := json.Marshal(rows)
	return buf
}

func TestImportInsertFailsOnConflictByDefault(t *testing.T) {
	repo := newWidgetRepo(t)
	ctx := context.Background()
	_, err := repo.Create(ctx, &Widget{ID: "w1", Name: "first", Quantity: 1}, "alice")
	require.NoError(t, err)

	pipeline := bulk.New(repo)
	source := widgetJSON([]Widget{{ID: "w1", Name: "duplicate", Quantity: 2}, {ID: "w2", Name: "fresh", Quantity: 3}})

	opts := bulk.DefaultImportOptions()
	opts.Format = bulk.JSON
	result, err := pipeline.Import(ctx, bytes.NewReader(source), opts, "alice")
	require.Error(t, err)
	require.NotNil(t, result)
	assert.Equal(t, 1, result.FailureCount)
	assert.NotEmpty(t, result.Errors)
}

func TestImportConflictUseSourceReplacesExisting(t *testing.T) {
	repo := newWidgetRepo(t)
	ctx := context.Background()
	_, err := repo.Create(ctx, &Widget{ID: "w1", Name: "first", Quantity: 1}, "alice")
	require.NoError(t, err)

	pipeline := bulk.New(repo)
	source := widgetJSON([]Widget{{ID: "w1", Name: "replaced", Quantity: 9}})

	opts := bulk.DefaultImportOptions()
	opts.Format = bulk.JSON
	opts.ConflictResolution = bulk.UseSource
	result, err := pipeline.Import(ctx, bytes.NewReader(source), opts, "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, result.SuccessCount)
	assert.Zero(t, result.FailureCount)

	got, err := repo.Get(ctx, "w1", "alice")
	require.NoError(t, err)
	assert.Equal(t, "replaced", got.Name)
	assert.Equal(t, int64(9), got.Quantity)
}

func TestImportConflictUseTargetSkipsIncoming(t *testing.T) {
	repo := newWidgetRepo(t)
	ctx := context.Background()
	_, err := repo.Create(ctx, &Widget{ID: "w1", Name: "first", Quantity: 1}, "alice")
	require.NoError(t, err)

	pipeline := bulk.New(repo)
	source := widgetJSON([]Widget{{ID: "w1", Name: "ignored", Quantity: 9}})

	opts := bulk.DefaultImportOptions()
	opts.Format = bulk.JSON
	opts.ConflictResolution = bulk.UseTarget
	result, err := pipeline.Import(ctx, bytes.NewReader(source), opts, "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, result.Skipped)
	assert.Zero(t, result.SuccessCount)

	got, err := repo.Get(ctx, "w1", "alice")
	require.NoError(t, err)
	assert.Equal(t, "first", got.Name)
}

func TestImportConflictMergeOverlaysNonZeroFields(t *testing.T) {
	repo := newWidgetRepo(t)
	ctx := context.Background()
	_, err := repo.Create(ctx, &Widget{ID: "w1", Name: "first", Quantity: 1}, "alice")
	require.NoError(t, err)

	pipeline := bulk.New(repo)
	// Quantity is left zero on the incoming row: merge should keep the
	// existing quantity while adopting the incoming name.
	source := widgetJSON([]Widget{{ID: "w1", Name: "merged-name", Quantity: 0}})

	opts := bulk.DefaultImportOptions()
	opts.Format = bulk.JSON
	opts.ConflictResolution = bulk.Merge
	result, err := pipeline.Import(ctx, bytes.NewReader(source), opts, "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, result.SuccessCount)

	got, err := repo.Get(ctx, "w1", "alice")
	require.NoError(t, err)
	assert.Equal(t, "merged-name", got.Name)
	assert.Equal(t, int64(1), got.Quantity)
}

func TestImportUpsertStrategyBypassesConflictResolution(t *testing.T) {
	repo := newWidgetRepo(t)
	ctx := context.Background()
	pipeline := bulk.New(repo)

	source := widgetJSON([]Widget{{ID: "w1", Name: "v1", Quantity: 1}})
	opts := bulk.DefaultImportOptions()
	opts.Format = bulk.JSON
	opts.Strategy = bulk.Upsert
	_, err := pipeline.Import(ctx, bytes.NewReader(source), opts, "alice")
	require.NoError(t, err)

	source2 := widgetJSON([]Widget{{ID: "w1", Name: "v2", Quantity: 2}})
	result, err := pipeline.Import(ctx, bytes.NewReader(source2), opts, "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, result.SuccessCount)

	got, err := repo.Get(ctx, "w1", "alice")
	require.NoError(t, err)
	assert.Equal(t, "v2", got.Name)
}

func TestImportProgressFiresAtZeroAndHundred(t *testing.T) {
	repo := newWidgetRepo(t)
	ctx := context.Background()
	pipeline := bulk.New(repo)

	source := widgetJSON([]Widget{{ID: "w1", Name: "a", Quantity: 1}, {ID: "w2", Name: "b", Quantity: 2}})
	opts := bulk.DefaultImportOptions()
	opts.Format = bulk.JSON
	opts.BatchSize = 1
	opts.Workers = 1

	var percents []float64
	opts.Progress = func(percent float64, processed, total int) { percents = append(percents, percent) }

	_, err := pipeline.Import(ctx, bytes.NewReader(source), opts, "alice")
	require.NoError(t, err)
	require.NotEmpty(t, percents)
	assert.Equal(t, float64(0), percents[0])
	assert.Equal(t, float64(100), percents[len(percents)-1])
}

func TestImportFileDetectsFormatFromExtension(t *testing.T) {
	repo := newWidgetRepo(t)
	ctx := context.Background()
	pipeline := bulk.New(repo)

	dir := t.TempDir()
	path := filepath.Join(dir, "widgets.json")
	require.NoError(t, os.WriteFile(path, widgetJSON([]Widget{{ID: "w1", Name: "a", Quantity: 1}}), 0o644))

	opts := bulk.DefaultImportOptions()
	result, err := pipeline.ImportFile(ctx, path, opts, "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, result.SuccessCount)
}

func TestExportFullRoundTripsEveryRow(t *testing.T) {
	repo := newWidgetRepo(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_, err := repo.Create(ctx, &Widget{ID: fmt.Sprintf("w%d", i), Name: "n", Quantity: int64(i)}, "alice")
		require.NoError(t, err)
	}

	pipeline := bulk.New(repo)
	opts := bulk.DefaultExportOptions()
	result, err := pipeline.Export(ctx, nil, opts)
	require.NoError(t, err)
	assert.Equal(t, 5, result.ExportedCount)
	assert.Len(t, result.ExportedEntities, 5)
}

// TestExportChunkedCompressedCSV follows the spec's bulk-export chunking
// scenario: 250 rows, BatchSize=100, CSV format, gzip compression, prefix
// "X" produces exactly 3 chunk files plus one metadata sidecar.
func TestExportChunkedCompressedCSV(t *testing.T) {
	repo := newWidgetRepo(t)
	ctx := context.Background()
	for i := 0; i < 250; i++ {
		_, err := repo.Create(ctx, &Widget{ID: fmt.Sprintf("w%03d", i), Name: "n", Quantity: int64(i)}, "alice")
		require.NoError(t, err)
	}

	pipeline := bulk.New(repo)
	dir := t.TempDir()
	opts := bulk.DefaultExportOptions()
	opts.ExportFolder = dir
	opts.FileNamePrefix = "X"
	opts.BatchSize = 100
	opts.CompressOutput = true
	opts.FileFormat = bulk.CSV

	result, err := pipeline.Export(ctx, nil, opts)
	require.NoError(t, err)
	assert.Equal(t, 250, result.ExportedCount)
	require.Len(t, result.ExportedFiles, 3)

	chunkPattern := regexp.MustCompile(`^X_\d{14}_\d{4}\.csv\.gz$`)
	for _, f := range result.ExportedFiles {
		assert.Regexp(t, chunkPattern, filepath.Base(f))
	}
	metaPattern := regexp.MustCompile(`^X_\d{14}_metadata\.json$`)
	assert.Regexp(t, metaPattern, filepath.Base(result.MetadataFile))
}

func TestExportArchiveModeMarksExportedWhenSchemaEvolutionAllowed(t *testing.T) {
	drv, err := sqld.Open(dialect.SQLite, ":memory:")
	require.NoError(t, err)
	drv.DB().SetMaxOpenConns(1)
	t.Cleanup(func() { _ = drv.Close() })

	repo, err := repository.New[Widget, string](context.Background(), drv, widgetSchema{}, repository.WithSchemaEvolution[Widget, string](true))
	require.NoError(t, err)
	ctx := context.Background()

	_, err = repo.Create(ctx, &Widget{ID: "w1", Name: "old", Quantity: 1}, "alice")
	require.NoError(t, err)

	pipeline := bulk.New(repo)
	opts := bulk.DefaultExportOptions()
	opts.Mode = bulk.Archive
	opts.ArchiveOlderThan = -1 * time.Hour // non-positive: no age bound, so every existing row is exported
	opts.MarkAsExported = true

	_, err = pipeline.Export(ctx, nil, opts)
	require.NoError(t, err)
}

