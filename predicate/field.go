package predicate

import "time"

// StringField, IntField, FloatField, BoolField, and TimeField are generic
// typed column handles, grounded on the teacher's dialect/sql
// StringField[P]/IntField[P] generics (dialect/sql/predicate.go, dropped —
// see DESIGN.md). The type parameter E pins a handle to one entity type at
// compile time (e.g. `var Title = predicate.StringField[Task]("title")`) so
// `task.Title.EQ("x")` cannot be passed to a Repository[Plan] query by
// accident; E itself is never read at runtime.
//
// These are optional sugar over the same [Expr] nodes a hand-built
// predicate would use; cmd/relstoregen emits one handle per mapped column.
type StringField[E any] string

func (f StringField[E]) Name() string { return string(f) }

func (f StringField[E]) EQ(v string) Expr           { return FieldEQ(string(f), v) }
func (f StringField[E]) NEQ(v string) Expr          { return FieldNEQ(string(f), v) }
func (f StringField[E]) GT(v string) Expr           { return FieldGT(string(f), v) }
func (f StringField[E]) GTE(v string) Expr          { return FieldGTE(string(f), v) }
func (f StringField[E]) LT(v string) Expr           { return FieldLT(string(f), v) }
func (f StringField[E]) LTE(v string) Expr          { return FieldLTE(string(f), v) }
func (f StringField[E]) In(vs ...string) Expr       { return FieldIn(string(f), toAny(vs)...) }
func (f StringField[E]) NotIn(vs ...string) Expr    { return FieldNotIn(string(f), toAny(vs)...) }
func (f StringField[E]) Contains(v string) Expr     { return FieldContains(string(f), v) }
func (f StringField[E]) ContainsFold(v string) Expr { return FieldContainsFold(string(f), v) }
func (f StringField[E]) EqualFold(v string) Expr    { return FieldEqualFold(string(f), v) }
func (f StringField[E]) HasPrefix(v string) Expr    { return FieldHasPrefix(string(f), v) }
func (f StringField[E]) HasSuffix(v string) Expr    { return FieldHasSuffix(string(f), v) }
func (f StringField[E]) IsNil() Expr                { return FieldIsNil(string(f)) }
func (f StringField[E]) NotNil() Expr               { return FieldNotNil(string(f)) }

type IntField[E any] string

func (f IntField[E]) Name() string { return string(f) }

func (f IntField[E]) EQ(v int64) Expr        { return FieldEQ(string(f), v) }
func (f IntField[E]) NEQ(v int64) Expr       { return FieldNEQ(string(f), v) }
func (f IntField[E]) GT(v int64) Expr        { return FieldGT(string(f), v) }
func (f IntField[E]) GTE(v int64) Expr       { return FieldGTE(string(f), v) }
func (f IntField[E]) LT(v int64) Expr        { return FieldLT(string(f), v) }
func (f IntField[E]) LTE(v int64) Expr       { return FieldLTE(string(f), v) }
func (f IntField[E]) In(vs ...int64) Expr    { return FieldIn(string(f), toAny(vs)...) }
func (f IntField[E]) NotIn(vs ...int64) Expr { return FieldNotIn(string(f), toAny(vs)...) }
func (f IntField[E]) Add(v int64) Expr       { return Add(F(string(f)), L(v)) }
func (f IntField[E]) Sub(v int64) Expr       { return Sub(F(string(f)), L(v)) }
func (f IntField[E]) IsNil() Expr            { return FieldIsNil(string(f)) }
func (f IntField[E]) NotNil() Expr           { return FieldNotNil(string(f)) }

type FloatField[E any] string

func (f FloatField[E]) Name() string { return string(f) }

func (f FloatField[E]) EQ(v float64) Expr  { return FieldEQ(string(f), v) }
func (f FloatField[E]) NEQ(v float64) Expr { return FieldNEQ(string(f), v) }
func (f FloatField[E]) GT(v float64) Expr  { return FieldGT(string(f), v) }
func (f FloatField[E]) GTE(v float64) Expr { return FieldGTE(string(f), v) }
func (f FloatField[E]) LT(v float64) Expr  { return FieldLT(string(f), v) }
func (f FloatField[E]) LTE(v float64) Expr { return FieldLTE(string(f), v) }

type BoolField[E any] string

func (f BoolField[E]) Name() string { return string(f) }
func (f BoolField[E]) IsTrue() Expr  { return FieldEQ(string(f), true) }
func (f BoolField[E]) IsFalse() Expr { return FieldEQ(string(f), false) }

// TimeField is a generic temporal column handle. Comparisons against it are
// wrapped in the dialect's datetime(...) coercion by the translator
// (component D) whenever either operand is temporal.
type TimeField[E any] string

func (f TimeField[E]) Name() string { return string(f) }

func (f TimeField[E]) EQ(v time.Time) Expr  { return FieldEQ(string(f), v) }
func (f TimeField[E]) NEQ(v time.Time) Expr { return FieldNEQ(string(f), v) }
func (f TimeField[E]) GT(v time.Time) Expr  { return FieldGT(string(f), v) }
func (f TimeField[E]) GTE(v time.Time) Expr { return FieldGTE(string(f), v) }
func (f TimeField[E]) LT(v time.Time) Expr  { return FieldLT(string(f), v) }
func (f TimeField[E]) LTE(v time.Time) Expr { return FieldLTE(string(f), v) }
func (f TimeField[E]) IsNil() Expr          { return FieldIsNil(string(f)) }
func (f TimeField[E]) NotNil() Expr         { return FieldNotNil(string(f)) }

func toAny[T any](vs []T) []any {
	out := make([]any, len(vs))
	for i, v := range vs {
		out[i] = v
	}
	return out
}
