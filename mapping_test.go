package relstore_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relstore/relstore"
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

func TestBuildSimpleMapping(t *testing.T) {
	m, err := relstore.Build("Plan", planSchema{})
	require.NoError(t, err)
	assert.Equal(t, "plans", m.TableName)
	assert.Equal(t, []string{"id"}, m.PrimaryKey)
	assert.Len(t, m.Columns, 2)
	assert.False(t, m.SoftDeleteEnabled)
	require.NotNil(t, m.Table)
	assert.Equal(t, "plans", m.Table.Name)
}

func TestBuildVersionedMapping(t *testing.T) {
	m, err := relstore.Build("Task", versionedSchema{})
	require.NoError(t, err)
	assert.True(t, m.SoftDeleteEnabled)
	assert.Contains(t, m.PrimaryKey, "id")
	assert.Contains(t, m.PrimaryKey, "version")
	require.NotNil(t, m.Audit.CreationTime)
	require.NotNil(t, m.Audit.AbsoluteExpiration)
}

type noKeySchema struct{ relstore.Schema }

func (noKeySchema) Fields() []field.Descriptor {
	return []field.Descriptor{field.String("name").Descriptor()}
}

func TestBuildRejectsMissingPrimaryKey(t *testing.T) {
	_, err := relstore.Build("NoKey", noKeySchema{})
	require.Error(t, err)
	assert.True(t, relstore.IsMappingError(err))
}

func TestMappingForCachesByType(t *testing.T) {
	relstore.ResetMappingCache()
	a, err := relstore.MappingFor(planSchema{})
	require.NoError(t, err)
	b, err := relstore.MappingFor(planSchema{})
	require.NoError(t, err)
	assert.Same(t, a, b)
}
