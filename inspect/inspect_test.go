package inspect_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relstore/relstore"
	"github.com/relstore/relstore/dialect"
	sqld "github.com/relstore/relstore/dialect/sql"
	_ "github.com/relstore/relstore/dialect/sqlite"
	"github.com/relstore/relstore/inspect"
	"github.com/relstore/relstore/repository"
	"github.com/relstore/relstore/schema/field"
	"github.com/relstore/relstore/schema/index"
	"github.com/relstore/relstore/schema/mixin"
)

// gadgetSchema declares one partial, unique index so the inspector's
// PRAGMA-based index introspection has a WHERE clause to recover.
type gadgetSchema struct{ relstore.Schema }

func (gadgetSchema) Mixin() []relstore.Mixin { return []relstore.Mixin{mixin.Versioned{}} }

func (gadgetSchema) Fields() []field.Descriptor {
	id := field.String("id").NotEmpty().MaxLen(64).StructField("ID").Descriptor()
	id.PrimaryKey = true
	return []field.Descriptor{
		id,
		field.String("serial").NotEmpty().MaxLen(64).Descriptor(),
	}
}

func (gadgetSchema) Indexes() []index.Descriptor {
	return []index.Descriptor{
		index.Fields("serial").Unique().PartialWhere("is_deleted = 0").Descriptor(),
	}
}

type Gadget struct {
	ID        string
	Serial    string
	Version   int64
	IsDeleted bool
}

func newGadgetRepo(t *testing.T) *repository.Repository[Gadget, string] {
	t.Helper()
	drv, err := sqld.Open(dialect.SQLite, ":memory:")
	require.NoError(t, err)
	drv.DB().SetMaxOpenConns(1)
	t.Cleanup(func() { _ = drv.Close() })

	repo, err := repository.New[Gadget, string](context.Background(), drv, gadgetSchema{})
	require.NoError(t, err)
	return repo
}

func TestStatsReflectsPragmaValues(t *testing.T) {
	repo := newGadgetRepo(t)
	insp := inspect.New(repo.Driver())

	stats, err := insp.Stats(context.Background())
	require.NoError(t, err)
	assert.Positive(t, stats.PageSize)
	assert.Equal(t, "UTF-8", stats.Encoding)
	assert.GreaterOrEqual(t, stats.TableCount, 1)
	assert.GreaterOrEqual(t, stats.IndexCount, 1)
}

func TestTablesListsUserTablesOnly(t *testing.T) {
	repo := newGadgetRepo(t)
	insp := inspect.New(repo.Driver())

	names, err := insp.Tables(context.Background())
	require.NoError(t, err)
	assert.Contains(t, names, "gadgets")
	for _, n := range names {
		assert.NotContains(t, n, "sqlite_")
	}
}

func TestTableReportsColumnsIndexesAndRowCount(t *testing.T) {
	ctx := context.Background()
	repo := newGadgetRepo(t)
	_, err := repo.Create(ctx, &Gadget{ID: "g1", Serial: "abc-1"}, "alice")
	require.NoError(t, err)
	_, err = repo.Create(ctx, &Gadget{ID: "g2", Serial: "abc-2"}, "alice")
	require.NoError(t, err)

	insp := inspect.New(repo.Driver())
	info, err := insp.Table(ctx, "gadgets")
	require.NoError(t, err)

	assert.Equal(t, "gadgets", info.Name)
	assert.EqualValues(t, 2, info.RowCount)

	var gotSerial, gotVersion bool
	for _, c := range info.Columns {
		switch c.Name {
		case "serial":
			gotSerial = true
		case "version":
			gotVersion = true
		}
	}
	assert.True(t, gotSerial, "expected a serial column")
	assert.True(t, gotVersion, "expected the version column from the Versioned mixin")

	// The partial serial index, Versioned's is_deleted index, and SQLite's
	// autoindex for the composite (id, version) primary key.
	require.Len(t, info.Indexes, 3)
	var serialIdx *inspect.IndexInfo
	for i := range info.Indexes {
		if info.Indexes[i].Partial {
			serialIdx = &info.Indexes[i]
		}
	}
	require.NotNil(t, serialIdx, "expected the partial serial index")
	assert.True(t, serialIdx.Unique)
	assert.True(t, serialIdx.Partial)
	assert.Contains(t, serialIdx.Where, "is_deleted")
	assert.Contains(t, serialIdx.Columns, "serial")
}

func TestTableRejectsInvalidIdentifier(t *testing.T) {
	repo := newGadgetRepo(t)
	insp := inspect.New(repo.Driver())

	_, err := insp.Table(context.Background(), "gadgets; DROP TABLE gadgets")
	require.Error(t, err)
}

func TestReportIncludesEveryTableAndIndex(t *testing.T) {
	ctx := context.Background()
	repo := newGadgetRepo(t)
	_, err := repo.Create(ctx, &Gadget{ID: "g1", Serial: "abc-1"}, "alice")
	require.NoError(t, err)

	insp := inspect.New(repo.Driver())
	report, err := insp.Report(ctx)
	require.NoError(t, err)
	assert.Contains(t, report, "table gadgets")
	assert.Contains(t, report, "index")
	assert.Contains(t, report, "serial")
}
