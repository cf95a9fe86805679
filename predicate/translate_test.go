package predicate_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relstore/relstore"
	"github.com/relstore/relstore/dialect"
	_ "github.com/relstore/relstore/dialect/sqlite"
	"github.com/relstore/relstore/predicate"
	"github.com/relstore/relstore/schema/field"
	"github.com/relstore/relstore/schema/mixin"
)

type taskSchema struct{ relstore.Schema }

func (taskSchema) Mixin() []relstore.Mixin {
	return []relstore.Mixin{mixin.Versioned{}, mixin.Expirable{}}
}

func (taskSchema) Fields() []field.Descriptor {
	return []field.Descriptor{
		field.Int64("id").AutoIncrement().Descriptor(),
		field.String("title").NotEmpty().Descriptor(),
		field.Int64("priority").Descriptor(),
	}
}

func buildTaskMapping(t *testing.T) *relstore.EntityMapping {
	t.Helper()
	m, err := relstore.Build("Task", taskSchema{})
	require.NoError(t, err)
	return m
}

func sqliteDialect(t *testing.T) dialect.Dialect {
	t.Helper()
	d, ok := dialect.Get(dialect.SQLite)
	require.True(t, ok)
	return d
}

func TestTranslateFieldComparison(t *testing.T) {
	m := buildTaskMapping(t)
	d := sqliteDialect(t)

	expr := predicate.FieldEQ("title", "ship it")
	sql, params, err := predicate.Translate(expr, m, d)
	require.NoError(t, err)
	assert.Equal(t, `"title" = @p0`, sql)
	assert.Equal(t, "ship it", params["@p0"])
}

func TestTranslateAndOr(t *testing.T) {
	m := buildTaskMapping(t)
	d := sqliteDialect(t)

	expr := predicate.And(
		predicate.FieldEQ("title", "a"),
		predicate.FieldGT("priority", 1),
	)
	sql, params, err := predicate.Translate(expr, m, d)
	require.NoError(t, err)
	assert.Equal(t, `("title" = @p0 AND "priority" > @p1)`, sql)
	assert.Len(t, params, 2)
}

func TestTranslateContains(t *testing.T) {
	m := buildTaskMapping(t)
	d := sqliteDialect(t)

	expr := predicate.FieldContains("title", "urgent")
	sql, params, err := predicate.Translate(expr, m, d)
	require.NoError(t, err)
	assert.Contains(t, sql, "LIKE")
	assert.Equal(t, "%urgent%", params["@p0"])
}

func TestTranslateTemporalWrapsBothSides(t *testing.T) {
	m := buildTaskMapping(t)
	d := sqliteDialect(t)

	expr := predicate.GT(predicate.F("creation_time"), predicate.L(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)))
	sql, _, err := predicate.Translate(expr, m, d)
	require.NoError(t, err)
	assert.Contains(t, sql, "datetime(")
}

func TestTranslateRejectsUnmappedField(t *testing.T) {
	m := buildTaskMapping(t)
	d := sqliteDialect(t)

	_, _, err := predicate.Translate(predicate.FieldEQ("not_a_field", 1), m, d)
	require.Error(t, err)
	assert.True(t, relstore.IsTranslationError(err))
}

func TestTranslateRejectsArithmeticOnNonNumeric(t *testing.T) {
	m := buildTaskMapping(t)
	d := sqliteDialect(t)

	_, _, err := predicate.Translate(predicate.Add(predicate.F("title"), predicate.L(1)), m, d)
	require.Error(t, err)
	assert.True(t, relstore.IsTranslationError(err))
}

func TestBindRewritesPlaceholdersInOrder(t *testing.T) {
	m := buildTaskMapping(t)
	d := sqliteDialect(t)

	expr := predicate.And(predicate.FieldEQ("title", "a"), predicate.FieldEQ("priority", 2))
	sql, params, err := predicate.Translate(expr, m, d)
	require.NoError(t, err)

	final, args := predicate.Bind(sql, params, d)
	assert.Equal(t, `("title" = ? AND "priority" = ?)`, final)
	assert.Equal(t, []any{"a", 2}, args)
}
