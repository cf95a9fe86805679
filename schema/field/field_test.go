package field_test

import (
	"testing"

	"github.com/relstore/relstore/schema/field"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStringBuilder(t *testing.T) {
	d := field.String("email").Unique().NotEmpty().MaxLen(255).Comment("user email").Descriptor()
	assert.Equal(t, "email", d.Name)
	assert.Equal(t, field.TypeString, d.Type)
	assert.True(t, d.Unique)
	assert.Equal(t, 255, d.Size)
	assert.Equal(t, "user email", d.Comment)
	require.Len(t, d.Validators, 2)
	assert.NoError(t, d.Validators[0]("a@b.com"))
	assert.Error(t, d.Validators[0](""))
}

func TestIntBuilderPrimaryKeyAutoIncrement(t *testing.T) {
	d := field.Int64("id").AutoIncrement().Descriptor()
	assert.True(t, d.PrimaryKey)
	assert.True(t, d.AutoIncr)

	d = field.Int("age").Positive().Range(0, 150).Descriptor()
	require.Len(t, d.Validators, 3)
	assert.Error(t, d.Validators[0](0))
	assert.NoError(t, d.Validators[0](5))
}

func TestEnumBuilder(t *testing.T) {
	d := field.Enum("status").Values("pending", "active").Default("pending").Descriptor()
	assert.Equal(t, field.TypeEnum, d.Type)
	assert.Equal(t, []string{"pending", "active"}, d.EnumValues)
	require.Len(t, d.Validators, 1)
	assert.NoError(t, d.Validators[0]("active"))
	assert.Error(t, d.Validators[0]("unknown"))
}

func TestTimeBuilderRole(t *testing.T) {
	d := field.Time("created_at").Immutable().Role(field.RoleCreationTime).Descriptor()
	assert.True(t, d.Immutable)
	assert.Equal(t, field.RoleCreationTime, d.Role)
}

func TestDecimalDefaults(t *testing.T) {
	d := field.Decimal("amount").Descriptor()
	assert.Equal(t, 18, d.Precision)
	assert.Equal(t, 2, d.Scale)
}

func TestStructFieldOverride(t *testing.T) {
	d := field.String("addr").StructField("Address").Descriptor()
	assert.Equal(t, "Address", d.StructField)
}
