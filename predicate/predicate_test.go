package predicate_test

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/relstore/relstore/predicate"
)

func TestExprString(t *testing.T) {
	tests := []struct {
		P predicate.Expr
		S string
	}{
		{
			P: predicate.And(
				predicate.FieldEQ("name", "a8m"),
				predicate.FieldIn("org", "fb", "ent"),
			),
			S: `(name == "a8m" && org in ["fb","ent"])`,
		},
		{
			P: predicate.Or(
				predicate.Not(predicate.FieldEQ("name", "mashraki")),
				predicate.FieldIn("org", "fb", "ent"),
			),
			S: `(!(name == "mashraki") || org in ["fb","ent"])`,
		},
		{
			P: predicate.And(
				predicate.FieldGT("age", 30),
				predicate.FieldContains("workplace", "fb"),
			),
			S: `(age > 30 && contains(workplace, "fb"))`,
		},
		{
			P: predicate.Not(predicate.FieldLT("score", 32.23)),
			S: `!(score < 32.23)`,
		},
		{
			P: predicate.And(
				predicate.FieldIsNil("active"),
				predicate.FieldNotNil("name"),
			),
			S: `(active == nil && name != nil)`,
		},
		{
			P: predicate.Or(
				predicate.FieldNotIn("id", 1, 2, 3),
				predicate.FieldHasSuffix("name", "admin"),
			),
			S: `(id not in [1,2,3] || has_suffix(name, "admin"))`,
		},
		{
			P: predicate.EQ(predicate.F("current"), predicate.F("total")).Negate(),
			S: `!(current == total)`,
		},
	}
	for i := range tests {
		t.Run(strconv.Itoa(i), func(t *testing.T) {
			assert.Equal(t, tests[i].S, tests[i].P.String())
		})
	}
}

func TestNaryExpressions(t *testing.T) {
	p := predicate.And(
		predicate.FieldEQ("a", 1),
		predicate.FieldEQ("b", 2),
		predicate.FieldEQ("c", 3),
	)
	assert.Equal(t, `(a == 1 && b == 2 && c == 3)`, p.String())

	p = predicate.Or(
		predicate.FieldEQ("x", 1),
		predicate.FieldEQ("y", 2),
		predicate.FieldEQ("z", 3),
	)
	assert.Equal(t, `(x == 1 || y == 2 || z == 3)`, p.String())
}

func TestNegate(t *testing.T) {
	p := predicate.FieldEQ("name", "test")
	assert.Equal(t, `!(name == "test")`, p.Negate().String())

	p2 := predicate.Not(predicate.FieldEQ("name", "test"))
	assert.Equal(t, `!(!(name == "test"))`, p2.Negate().String())

	p3 := predicate.And(
		predicate.FieldEQ("a", 1),
		predicate.FieldEQ("b", 2),
		predicate.FieldEQ("c", 3),
	)
	assert.Equal(t, `!((a == 1 && b == 2 && c == 3))`, p3.Negate().String())
}

type Task struct{}

func TestGenericFieldHandles(t *testing.T) {
	var Title predicate.StringField[Task] = "title"
	assert.Equal(t, `title == "done"`, Title.EQ("done").String())
	assert.Equal(t, `contains(title, "urgent")`, Title.Contains("urgent").String())

	var Priority predicate.IntField[Task] = "priority"
	assert.Equal(t, `priority >= 3`, Priority.GTE(3).String())
	assert.Equal(t, `priority in [1,2,3]`, Priority.In(1, 2, 3).String())
}
