package predicate

import (
	"fmt"
	"strings"
	"time"

	"github.com/relstore/relstore"
	"github.com/relstore/relstore/dialect"
	"github.com/relstore/relstore/schema/field"
)

// Translate renders e into a dialect-escaped SQL boolean fragment plus its
// bound parameters (component D, spec §4.D). Parameters are auto-named
// "@p0", "@p1", ... in the order they're bound. A reference to a column not
// present in m, or arithmetic attempted on a non-numeric column, fails with
// a [relstore.TranslationError].
//
// The returned fragment embeds literal "@pN" tokens rather than driver
// placeholders; [Bind] rewrites those into the dialect's positional
// placeholder form immediately before execution.
func Translate(e Expr, m *relstore.EntityMapping, d dialect.Dialect) (string, map[string]any, error) {
	tr := &translator{mapping: m, dialect: d, params: map[string]any{}}
	sql, err := tr.render(e)
	if err != nil {
		return "", nil, err
	}
	return sql, tr.params, nil
}

type translator struct {
	mapping *relstore.EntityMapping
	dialect dialect.Dialect
	params  map[string]any
	next    int
}

func (t *translator) bind(v any) string {
	name := fmt.Sprintf("@p%d", t.next)
	t.next++
	t.params[name] = v
	return name
}

func (t *translator) column(name string) (*relstore.ColumnMapping, error) {
	cm, ok := t.mapping.ColumnByName(name)
	if !ok {
		return nil, relstore.NewTranslationError(t.mapping.TableName, fmt.Sprintf("field %q is not mapped", name))
	}
	return cm, nil
}

func isTemporal(e Expr, t *translator) bool {
	switch x := e.(type) {
	case Field:
		cm, err := t.column(x.Name)
		return err == nil && cm.Type == field.TypeTime
	case Literal:
		_, ok := x.Value.(time.Time)
		return ok
	}
	return false
}

func (t *translator) render(e Expr) (string, error) {
	switch x := e.(type) {
	case Field:
		cm, err := t.column(x.Name)
		if err != nil {
			return "", err
		}
		return t.dialect.EscapeIdentifier(cm.Name), nil
	case Literal:
		return t.bind(x.Value), nil
	case List:
		parts := make([]string, len(x.Values))
		for i, v := range x.Values {
			parts[i] = t.bind(v)
		}
		return "(" + strings.Join(parts, ", ") + ")", nil
	case Binary:
		return t.renderBinary(x)
	case Unary:
		return t.renderUnary(x)
	case Nary:
		return t.renderNary(x)
	default:
		return "", relstore.NewTranslationError(t.mapping.TableName, fmt.Sprintf("unsupported expression node %T", e))
	}
}

func (t *translator) renderBinary(b Binary) (string, error) {
	switch b.Op {
	case OpAdd, OpSub, OpMul, OpDiv:
		if err := t.requireNumeric(b.Left); err != nil {
			return "", err
		}
		if err := t.requireNumeric(b.Right); err != nil {
			return "", err
		}
		l, err := t.render(b.Left)
		if err != nil {
			return "", err
		}
		r, err := t.render(b.Right)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("(%s %s %s)", l, b.Op, r), nil
	case OpContains, OpContainsFold, OpEqualFold, OpHasPrefix, OpHasSuffix:
		return t.renderLike(b)
	case OpIn, OpNotIn:
		l, err := t.render(b.Left)
		if err != nil {
			return "", err
		}
		r, err := t.render(b.Right)
		if err != nil {
			return "", err
		}
		kw := "IN"
		if b.Op == OpNotIn {
			kw = "NOT IN"
		}
		return fmt.Sprintf("%s %s %s", l, kw, r), nil
	default: // comparisons
		temporal := isTemporal(b.Left, t) || isTemporal(b.Right, t)
		l, err := t.render(b.Left)
		if err != nil {
			return "", err
		}
		r, err := t.render(b.Right)
		if err != nil {
			return "", err
		}
		if temporal {
			l, r = t.dialect.Datetime(l), t.dialect.Datetime(r)
		}
		return fmt.Sprintf("%s %s %s", l, sqlOp(b.Op), r), nil
	}
}

func sqlOp(op Op) string {
	switch op {
	case OpEQ:
		return "="
	case OpNEQ:
		return "<>"
	default:
		return string(op)
	}
}

func (t *translator) renderLike(b Binary) (string, error) {
	lit, ok := b.Right.(Literal)
	if !ok {
		return "", relstore.NewTranslationError(t.mapping.TableName, "LIKE-style operators require a literal operand")
	}
	s, ok := lit.Value.(string)
	if !ok {
		return "", relstore.NewTranslationError(t.mapping.TableName, "LIKE-style operators require a string operand")
	}
	l, err := t.render(b.Left)
	if err != nil {
		return "", err
	}

	escaped := escapeLikePattern(s)
	var pattern string
	switch b.Op {
	case OpContains, OpContainsFold:
		pattern = "%" + escaped + "%"
	case OpHasPrefix:
		pattern = escaped + "%"
	case OpHasSuffix:
		pattern = "%" + escaped
	case OpEqualFold:
		pattern = escaped
	}
	param := t.bind(pattern)
	if b.Op == OpContainsFold || b.Op == OpEqualFold {
		return fmt.Sprintf("LOWER(%s) LIKE LOWER(%s) ESCAPE '\\'", l, param), nil
	}
	return fmt.Sprintf("%s LIKE %s ESCAPE '\\'", l, param), nil
}

// escapeLikePattern backslash-escapes LIKE's own wildcard characters so a
// literal "%" or "_" inside the operand isn't interpreted as a wildcard.
func escapeLikePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)
	return r.Replace(s)
}

func (t *translator) renderUnary(u Unary) (string, error) {
	switch u.Op {
	case OpIsNil, OpNotNil:
		l, err := t.render(u.X)
		if err != nil {
			return "", err
		}
		if u.Op == OpIsNil {
			return l + " IS NULL", nil
		}
		return l + " IS NOT NULL", nil
	default:
		inner, err := t.render(u.X)
		if err != nil {
			return "", err
		}
		return "NOT (" + inner + ")", nil
	}
}

func (t *translator) renderNary(n Nary) (string, error) {
	parts := make([]string, len(n.Exprs))
	for i, e := range n.Exprs {
		s, err := t.render(e)
		if err != nil {
			return "", err
		}
		parts[i] = s
	}
	kw := " AND "
	if n.Op == OpOr {
		kw = " OR "
	}
	if len(parts) == 1 {
		return parts[0], nil
	}
	return "(" + strings.Join(parts, kw) + ")", nil
}

func (t *translator) requireNumeric(e Expr) error {
	f, ok := e.(Field)
	if !ok {
		return nil // literal/sub-expression: caller's Go type already constrains it
	}
	cm, err := t.column(f.Name)
	if err != nil {
		return err
	}
	switch cm.Type {
	case field.TypeInt8, field.TypeInt16, field.TypeInt32, field.TypeInt64,
		field.TypeFloat32, field.TypeFloat64, field.TypeDecimal:
		return nil
	default:
		return relstore.NewTranslationError(t.mapping.TableName, fmt.Sprintf("arithmetic on non-numeric column %q", f.Name))
	}
}

// OrderTerm is one column of an ORDER BY list.
type OrderTerm struct {
	Column    string
	Ascending bool
}

// RenderOrderBy renders an ORDER BY clause (including the "ORDER BY"
// keyword) for the given terms, or "" if terms is empty.
func RenderOrderBy(terms []OrderTerm, m *relstore.EntityMapping, d dialect.Dialect) (string, error) {
	if len(terms) == 0 {
		return "", nil
	}
	parts := make([]string, len(terms))
	for i, term := range terms {
		if _, ok := m.ColumnByName(term.Column); !ok {
			return "", relstore.NewTranslationError(m.TableName, fmt.Sprintf("order-by field %q is not mapped", term.Column))
		}
		dir := "ASC"
		if !term.Ascending {
			dir = "DESC"
		}
		parts[i] = fmt.Sprintf("%s %s", d.EscapeIdentifier(term.Column), dir)
	}
	return "ORDER BY " + strings.Join(parts, ", "), nil
}

// RenderPaging renders a LIMIT/OFFSET clause. take <= 0 means "unbounded"
// and renders no LIMIT.
func RenderPaging(skip, take int) string {
	if take <= 0 {
		if skip <= 0 {
			return ""
		}
		return fmt.Sprintf("OFFSET %d", skip)
	}
	return fmt.Sprintf("LIMIT %d OFFSET %d", take, skip)
}

// Bind rewrites a fragment's literal "@pN" tokens, in first-occurrence
// order, into the dialect's positional placeholder form, returning the
// final executable SQL text and the correspondingly ordered argument slice.
func Bind(sqlFragment string, params map[string]any, d dialect.Dialect) (string, []any) {
	var args []any
	n := 0
	var b strings.Builder
	i := 0
	for i < len(sqlFragment) {
		if sqlFragment[i] == '@' && i+1 < len(sqlFragment) && sqlFragment[i+1] == 'p' {
			j := i + 2
			for j < len(sqlFragment) && sqlFragment[j] >= '0' && sqlFragment[j] <= '9' {
				j++
			}
			if j > i+2 {
				name := sqlFragment[i:j]
				n++
				args = append(args, d.ConvertParameterValue(params[name]))
				b.WriteString(d.Placeholder(n))
				i = j
				continue
			}
		}
		b.WriteByte(sqlFragment[i])
		i++
	}
	return b.String(), args
}
