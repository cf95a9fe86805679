// Package ddl synthesizes idempotent creation DDL from an entity mapping's
// relational IR (component C, spec §4.C). It never drops or alters existing
// objects; every statement is a "create if absent" that relstore can safely
// run once per process startup.
package ddl

import (
	"fmt"
	"strings"

	"ariga.io/atlas/sql/schema"

	"github.com/relstore/relstore"
	"github.com/relstore/relstore/dialect"
)

// Synthesize renders the table-creation statement followed by one
// CREATE INDEX statement per declared index, in execution order.
func Synthesize(m *relstore.EntityMapping, d dialect.Dialect) []string {
	stmts := make([]string, 0, 1+len(m.Indexes))
	stmts = append(stmts, createTable(m, d))
	for _, im := range m.Indexes {
		stmts = append(stmts, createIndex(m, im, d))
	}
	return stmts
}

func createTable(m *relstore.EntityMapping, d dialect.Dialect) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s (\n", d.EscapeIdentifier(m.TableName))

	inlinePK := singleAutoIncrementPK(m)

	var lines []string
	for i := range m.Columns {
		cm := &m.Columns[i]
		col, ok := m.Table.Column(cm.Name)
		if !ok {
			continue
		}
		lines = append(lines, "  "+columnDef(cm, col, d, inlinePK != nil && inlinePK.Name == cm.Name))
	}

	if inlinePK == nil && len(m.PrimaryKey) > 0 {
		escaped := make([]string, len(m.PrimaryKey))
		for i, name := range m.PrimaryKey {
			escaped[i] = d.EscapeIdentifier(name)
		}
		lines = append(lines, fmt.Sprintf("  PRIMARY KEY (%s)", strings.Join(escaped, ", ")))
	}

	for _, ck := range m.Checks {
		lines = append(lines, fmt.Sprintf("  CONSTRAINT %s CHECK (%s)", d.EscapeIdentifier(ck.Name), ck.Expression))
	}

	for _, fk := range m.ForeignKeys {
		lines = append(lines, foreignKeyDef(fk, d))
	}

	b.WriteString(strings.Join(lines, ",\n"))
	b.WriteString("\n)")
	return b.String()
}

// singleAutoIncrementPK returns the lone auto-increment primary-key column
// when the primary key is exactly that one column, so its PRIMARY KEY
// clause is inlined on the column definition rather than emitted as a
// separate table-level clause (spec §4.C policy).
func singleAutoIncrementPK(m *relstore.EntityMapping) *relstore.ColumnMapping {
	if len(m.PrimaryKey) != 1 {
		return nil
	}
	cm, ok := m.ColumnByName(m.PrimaryKey[0])
	if !ok || !cm.IsAutoIncr {
		return nil
	}
	return cm
}

func columnDef(cm *relstore.ColumnMapping, col *schema.Column, d dialect.Dialect, inlinePK bool) string {
	var b strings.Builder
	b.WriteString(d.EscapeIdentifier(cm.Name))
	b.WriteByte(' ')
	b.WriteString(d.SQLTypeOf(col))

	if cm.Computed != "" {
		mode := "VIRTUAL"
		if cm.Stored {
			mode = "STORED"
		}
		fmt.Fprintf(&b, " GENERATED ALWAYS AS (%s) %s", cm.Computed, mode)
		return b.String()
	}

	if inlinePK {
		b.WriteString(" PRIMARY KEY")
		if cm.IsAutoIncr {
			b.WriteString(" AUTOINCREMENT")
		}
	}
	if !cm.Nullable && !inlinePK {
		b.WriteString(" NOT NULL")
	}
	if cm.Unique && !inlinePK {
		b.WriteString(" UNIQUE")
	}
	if lit, ok := defaultLiteral(cm.Default); ok {
		fmt.Fprintf(&b, " DEFAULT %s", lit)
	}
	return b.String()
}

// defaultLiteral renders a Go default value as a SQL literal for the column
// definition. Function-valued defaults (e.g. time.Now) describe a
// per-row-insert default computed by the repository layer, not a database
// default, so they render nothing here.
func defaultLiteral(v any) (string, bool) {
	switch x := v.(type) {
	case nil:
		return "", false
	case bool:
		if x {
			return "1", true
		}
		return "0", true
	case string:
		return "'" + strings.ReplaceAll(x, "'", "''") + "'", true
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprintf("%d", x), true
	case float32, float64:
		return fmt.Sprintf("%v", x), true
	default:
		return "", false
	}
}

func foreignKeyDef(fk relstore.ForeignKeyMapping, d dialect.Dialect) string {
	cols := make([]string, len(fk.Columns))
	for i, c := range fk.Columns {
		cols[i] = d.EscapeIdentifier(c)
	}
	refCols := make([]string, len(fk.RefColumns))
	for i, c := range fk.RefColumns {
		refCols[i] = d.EscapeIdentifier(c)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "  CONSTRAINT %s FOREIGN KEY (%s) REFERENCES %s (%s)",
		d.EscapeIdentifier(fk.Name), strings.Join(cols, ", "),
		d.EscapeIdentifier(fk.RefTable), strings.Join(refCols, ", "))
	if fk.OnDelete != "" {
		fmt.Fprintf(&b, " ON DELETE %s", strings.ToUpper(string(fk.OnDelete)))
	}
	if fk.OnUpdate != "" {
		fmt.Fprintf(&b, " ON UPDATE %s", strings.ToUpper(string(fk.OnUpdate)))
	}
	return b.String()
}

func createIndex(m *relstore.EntityMapping, im relstore.IndexMapping, d dialect.Dialect) string {
	var b strings.Builder
	b.WriteString("CREATE ")
	if im.Unique {
		b.WriteString("UNIQUE ")
	}
	fmt.Fprintf(&b, "INDEX IF NOT EXISTS %s ON %s (", d.EscapeIdentifier(im.Name), d.EscapeIdentifier(m.TableName))

	parts := make([]string, len(im.Columns))
	for i, c := range im.Columns {
		col := d.EscapeIdentifier(c.Name)
		if c.Desc {
			col += " DESC"
		}
		parts[i] = col
	}
	b.WriteString(strings.Join(parts, ", "))
	b.WriteByte(')')

	if im.Where != "" {
		fmt.Fprintf(&b, " WHERE %s", im.Where)
	}
	return b.String()
}
