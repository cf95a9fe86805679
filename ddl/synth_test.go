package ddl_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relstore/relstore"
	"github.com/relstore/relstore/ddl"
	"github.com/relstore/relstore/dialect"
	_ "github.com/relstore/relstore/dialect/sqlite"
	"github.com/relstore/relstore/schema/field"
	"github.com/relstore/relstore/schema/index"
	"github.com/relstore/relstore/schema/mixin"
)

type planSchema struct{ relstore.Schema }

func (planSchema) Fields() []field.Descriptor {
	return []field.Descriptor{
		field.Int64("id").AutoIncrement().Descriptor(),
		field.String("name").NotEmpty().MaxLen(120).Descriptor(),
	}
}

func (planSchema) Indexes() []index.Descriptor {
	return []index.Descriptor{
		index.Fields("name").Unique().Descriptor(),
	}
}

type versionedSchema struct{ relstore.Schema }

func (versionedSchema) Mixin() []relstore.Mixin {
	return []relstore.Mixin{mixin.Versioned{}, mixin.Expirable{}}
}

func (versionedSchema) Fields() []field.Descriptor {
	return []field.Descriptor{
		field.Int64("id").AutoIncrement().Descriptor(),
		field.String("title").NotEmpty().Descriptor(),
	}
}

func sqliteDialect(t *testing.T) dialect.Dialect {
	t.Helper()
	d, ok := dialect.Get(dialect.SQLite)
	require.True(t, ok, "sqlite dialect must be registered via blank import")
	return d
}

func TestSynthesizeInlinesSingleAutoIncrementPrimaryKey(t *testing.T) {
	m, err := relstore.Build("Plan", planSchema{})
	require.NoError(t, err)

	stmts := ddl.Synthesize(m, sqliteDialect(t))
	require.Len(t, stmts, 2)
	assert.Contains(t, stmts[0], `CREATE TABLE IF NOT EXISTS "plans"`)
	assert.Contains(t, stmts[0], `"id" INTEGER PRIMARY KEY AUTOINCREMENT`)
	assert.NotContains(t, stmts[0], "PRIMARY KEY (")
	assert.Contains(t, stmts[1], `CREATE UNIQUE INDEX IF NOT EXISTS`)
	assert.Contains(t, stmts[1], `"name"`)
}

func TestSynthesizeCompositePrimaryKeyClause(t *testing.T) {
	m, err := relstore.Build("Task", versionedSchema{})
	require.NoError(t, err)

	stmts := ddl.Synthesize(m, sqliteDialect(t))
	require.NotEmpty(t, stmts)
	assert.Contains(t, stmts[0], "PRIMARY KEY (")
	assert.Contains(t, stmts[0], `"id"`)
	assert.Contains(t, stmts[0], `"version"`)
}

func TestSynthesizeIsIdempotentText(t *testing.T) {
	m, err := relstore.Build("Plan", planSchema{})
	require.NoError(t, err)

	d := sqliteDialect(t)
	a := ddl.Synthesize(m, d)
	b := ddl.Synthesize(m, d)
	assert.Equal(t, a, b)
	for _, s := range a {
		assert.True(t, strings.Contains(s, "IF NOT EXISTS"))
	}
}
