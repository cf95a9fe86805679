// Package predicate implements the typed predicate AST consumed by the
// repository's query operations (component D input, spec §4.D). The tree
// shape is grounded on the teacher's querylanguage package (FieldEQ/FieldIn/
// FieldGT/And/Or/Not), retargeted from a string-rendering query language
// into a SQL-fragment-translatable tree — translate.go (component D) walks
// it into `(sql_fragment, parameters)`.
package predicate

import "fmt"

// Op identifies the operator at a tree node.
type Op string

const (
	OpEQ           Op = "=="
	OpNEQ          Op = "!="
	OpGT           Op = ">"
	OpGTE          Op = ">="
	OpLT           Op = "<"
	OpLTE          Op = "<="
	OpIn           Op = "in"
	OpNotIn        Op = "not_in"
	OpContains     Op = "contains"
	OpContainsFold Op = "contains_fold"
	OpEqualFold    Op = "equal_fold"
	OpHasPrefix    Op = "has_prefix"
	OpHasSuffix    Op = "has_suffix"
	OpAdd          Op = "+"
	OpSub          Op = "-"
	OpMul          Op = "*"
	OpDiv          Op = "/"

	OpIsNil  Op = "is_nil"
	OpNotNil Op = "not_nil"
	OpNot    Op = "!"

	OpAnd Op = "&&"
	OpOr  Op = "||"
)

// Expr is a node in the predicate tree. The concrete node types are
// [Field], [Literal], [List], [Binary], [Unary], and [Nary].
type Expr interface {
	fmt.Stringer
	isExpr()
	// Negate returns the logical negation of the expression.
	Negate() Expr
}

// Field references a mapped column by name.
type Field struct {
	Name string
}

func F(name string) Field { return Field{Name: name} }

func (Field) isExpr()          {}
func (f Field) String() string { return f.Name }
func (f Field) Negate() Expr   { return Unary{Op: OpNot, X: f} }

// Literal is a constant value operand.
type Literal struct {
	Value any
}

func L(v any) Literal { return Literal{Value: v} }

func (Literal) isExpr() {}
func (l Literal) String() string {
	if s, ok := l.Value.(string); ok {
		return fmt.Sprintf("%q", s)
	}
	return fmt.Sprintf("%v", l.Value)
}
func (l Literal) Negate() Expr { return Unary{Op: OpNot, X: l} }

// Binary is a two-operand expression: field/literal comparisons and
// arithmetic on numeric columns.
type Binary struct {
	Op          Op
	Left, Right Expr
}

func (Binary) isExpr() {}
func (b Binary) String() string {
	switch b.Op {
	case OpContains, OpContainsFold, OpEqualFold, OpHasPrefix, OpHasSuffix:
		return fmt.Sprintf("%s(%s, %s)", b.Op, b.Left, b.Right)
	case OpIn, OpNotIn:
		return fmt.Sprintf("%s %s %s", b.Left, opText(b.Op), b.Right)
	default:
		return fmt.Sprintf("%s %s %s", b.Left, b.Op, b.Right)
	}
}
func (b Binary) Negate() Expr { return Unary{Op: OpNot, X: b} }

func opText(op Op) string {
	switch op {
	case OpIn:
		return "in"
	case OpNotIn:
		return "not in"
	default:
		return string(op)
	}
}

// List is a parenthesized literal list operand for In/NotIn.
type List struct {
	Values []any
}

func (List) isExpr() {}
func (l List) String() string {
	s := "["
	for i, v := range l.Values {
		if i > 0 {
			s += ","
		}
		if str, ok := v.(string); ok {
			s += fmt.Sprintf("%q", str)
		} else {
			s += fmt.Sprintf("%v", v)
		}
	}
	return s + "]"
}
func (l List) Negate() Expr { return Unary{Op: OpNot, X: l} }

// Unary is a single-operand expression: logical Not, or a nil-check against
// a field.
type Unary struct {
	Op Op
	X  Expr
}

func (Unary) isExpr() {}
func (u Unary) String() string {
	switch u.Op {
	case OpIsNil:
		return fmt.Sprintf("%s == nil", u.X)
	case OpNotNil:
		return fmt.Sprintf("%s != nil", u.X)
	default:
		return fmt.Sprintf("!(%s)", u.X)
	}
}
func (u Unary) Negate() Expr { return Unary{Op: OpNot, X: u} }

// Nary is a variadic logical And/Or over two or more operands.
type Nary struct {
	Op    Op
	Exprs []Expr
}

func (Nary) isExpr() {}
func (n Nary) String() string {
	parts := make([]string, len(n.Exprs))
	for i, e := range n.Exprs {
		parts[i] = e.String()
	}
	s := parts[0]
	for _, p := range parts[1:] {
		s += fmt.Sprintf(" %s %s", n.Op, p)
	}
	if len(parts) > 1 {
		return "(" + s + ")"
	}
	return s
}
func (n Nary) Negate() Expr { return Unary{Op: OpNot, X: n} }

// And combines two or more expressions with logical AND.
func And(exprs ...Expr) Expr {
	if len(exprs) == 1 {
		return exprs[0]
	}
	return Nary{Op: OpAnd, Exprs: exprs}
}

// Or combines two or more expressions with logical OR.
func Or(exprs ...Expr) Expr {
	if len(exprs) == 1 {
		return exprs[0]
	}
	return Nary{Op: OpOr, Exprs: exprs}
}

// Not negates an expression.
func Not(e Expr) Expr { return Unary{Op: OpNot, X: e} }

// EQ, NEQ, GT, GTE, LT, LTE compare two arbitrary expressions (field-field,
// field-literal, or arithmetic sub-expressions).
func EQ(l, r Expr) Expr  { return Binary{Op: OpEQ, Left: l, Right: r} }
func NEQ(l, r Expr) Expr { return Binary{Op: OpNEQ, Left: l, Right: r} }
func GT(l, r Expr) Expr  { return Binary{Op: OpGT, Left: l, Right: r} }
func GTE(l, r Expr) Expr { return Binary{Op: OpGTE, Left: l, Right: r} }
func LT(l, r Expr) Expr  { return Binary{Op: OpLT, Left: l, Right: r} }
func LTE(l, r Expr) Expr { return Binary{Op: OpLTE, Left: l, Right: r} }

// Add, Sub, Mul, Div build arithmetic sub-expressions over numeric columns.
func Add(l, r Expr) Expr { return Binary{Op: OpAdd, Left: l, Right: r} }
func Sub(l, r Expr) Expr { return Binary{Op: OpSub, Left: l, Right: r} }
func Mul(l, r Expr) Expr { return Binary{Op: OpMul, Left: l, Right: r} }
func Div(l, r Expr) Expr { return Binary{Op: OpDiv, Left: l, Right: r} }

// FieldEQ, FieldNEQ, ... build a comparison between a named column and a
// literal value in one call, the common case.
func FieldEQ(name string, v any) Expr  { return Binary{Op: OpEQ, Left: F(name), Right: L(v)} }
func FieldNEQ(name string, v any) Expr { return Binary{Op: OpNEQ, Left: F(name), Right: L(v)} }
func FieldGT(name string, v any) Expr  { return Binary{Op: OpGT, Left: F(name), Right: L(v)} }
func FieldGTE(name string, v any) Expr { return Binary{Op: OpGTE, Left: F(name), Right: L(v)} }
func FieldLT(name string, v any) Expr  { return Binary{Op: OpLT, Left: F(name), Right: L(v)} }
func FieldLTE(name string, v any) Expr { return Binary{Op: OpLTE, Left: F(name), Right: L(v)} }

func FieldIn(name string, vs ...any) Expr {
	return Binary{Op: OpIn, Left: F(name), Right: List{Values: vs}}
}
func FieldNotIn(name string, vs ...any) Expr {
	return Binary{Op: OpNotIn, Left: F(name), Right: List{Values: vs}}
}

func FieldContains(name, v string) Expr {
	return Binary{Op: OpContains, Left: F(name), Right: L(v)}
}
func FieldContainsFold(name, v string) Expr {
	return Binary{Op: OpContainsFold, Left: F(name), Right: L(v)}
}
func FieldEqualFold(name, v string) Expr {
	return Binary{Op: OpEqualFold, Left: F(name), Right: L(v)}
}
func FieldHasPrefix(name, v string) Expr {
	return Binary{Op: OpHasPrefix, Left: F(name), Right: L(v)}
}
func FieldHasSuffix(name, v string) Expr {
	return Binary{Op: OpHasSuffix, Left: F(name), Right: L(v)}
}

// FieldIsNil and FieldNotNil check a field against NULL.
func FieldIsNil(name string) Expr  { return Unary{Op: OpIsNil, X: F(name)} }
func FieldNotNil(name string) Expr { return Unary{Op: OpNotNil, X: F(name)} }
