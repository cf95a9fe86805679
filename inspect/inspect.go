package inspect

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/relstore/relstore/dialect"
	sqld "github.com/relstore/relstore/dialect/sql"
)

// DatabaseStats reports the engine-level PRAGMA statistics Atlas's
// dialect-neutral schema model has no vocabulary for (spec §4.I): page
// accounting, encoding, and the two user-settable integer slots SQLite
// reserves for application use.
type DatabaseStats struct {
	FileBytes     int64
	PageCount     int64
	PageSize      int64
	FreelistCount int64
	Encoding      string
	AutoVacuum    string
	UserVersion   int64
	ApplicationID int64
	TableCount    int
	IndexCount    int
	TriggerCount  int
	ViewCount     int
}

// ColumnInfo is one column of a [TableInfo], read back from `PRAGMA
// table_xinfo` rather than decoded from an [relstore.EntityMapping] — it
// describes whatever is actually on disk, including hidden/generated
// columns a mapping never declared.
type ColumnInfo struct {
	Name         string
	Type         string
	NotNull      bool
	DefaultValue string
	PKOrdinal    int
	Hidden       int // 0 normal, 1 hidden virtual, 2 generated virtual, 3 generated stored
}

func (c ColumnInfo) Generated() bool { return c.Hidden == 2 || c.Hidden == 3 }

// IndexInfo is one index of a [TableInfo], read back from `PRAGMA
// index_list`/`index_info` plus the index's own `sqlite_master.sql` text
// for the partial-index WHERE clause Atlas's model doesn't carry.
type IndexInfo struct {
	Name    string
	Unique  bool
	Partial bool
	Origin  string // "c" (CREATE INDEX), "u" (UNIQUE constraint), "pk"
	Columns []string
	Where   string
}

// ForeignKeyInfo is one foreign key of a [TableInfo], read back from
// `PRAGMA foreign_key_list`.
type ForeignKeyInfo struct {
	Table    string
	From     string
	To       string
	OnUpdate string
	OnDelete string
}

// TableInfo is the full live-introspected shape of one table: everything
// spec §4.I asks for beyond what [ValidateTable] checks structurally.
type TableInfo struct {
	Name         string
	WithoutRowID bool
	Strict       bool
	RowCount     int64
	Columns      []ColumnInfo
	Indexes      []IndexInfo
	ForeignKeys  []ForeignKeyInfo
	Checks       []string
	CreateSQL    string
}

// Inspector runs read-only introspection queries against a live
// connection — the teacher's schema package never opened a connection of
// its own (it only shaped IR in memory), so this has no direct teacher
// analog; it is grounded on the `ariga.io/atlas/sql/schema` IR the DDL
// synthesizer and [ValidateTable] already share, read back via raw
// `PRAGMA`/`sqlite_master` queries for the statistics that IR omits.
type Inspector struct {
	drv dialect.Driver
}

// New wraps drv for introspection. drv is typically a repository's own
// driver ([repository.Repository.Driver]), so the inspector sees exactly
// the schema the CRUD engine created.
func New(drv dialect.Driver) *Inspector { return &Inspector{drv: drv} }

func (i *Inspector) query(ctx context.Context, query string, args ...any) (sqld.Rows, error) {
	var rows sqld.Rows
	err := i.drv.Query(ctx, query, args, &rows)
	return rows, err
}

// Stats reads the database-wide PRAGMA statistics plus object counts from
// `sqlite_master`.
func (i *Inspector) Stats(ctx context.Context) (*DatabaseStats, error) {
	s := &DatabaseStats{}

	for pragma, dst := range map[string]*int64{
		"page_count":     &s.PageCount,
		"page_size":      &s.PageSize,
		"freelist_count": &s.FreelistCount,
		"user_version":   &s.UserVersion,
		"application_id": &s.ApplicationID,
	} {
		v, err := i.scalarInt(ctx, "PRAGMA "+pragma)
		if err != nil {
			return nil, fmt.Errorf("inspect: %s: %w", pragma, err)
		}
		*dst = v
	}
	s.FileBytes = s.PageCount * s.PageSize

	enc, err := i.scalarString(ctx, "PRAGMA encoding")
	if err != nil {
		return nil, fmt.Errorf("inspect: encoding: %w", err)
	}
	s.Encoding = enc

	av, err := i.scalarInt(ctx, "PRAGMA auto_vacuum")
	if err != nil {
		return nil, fmt.Errorf("inspect: auto_vacuum: %w", err)
	}
	switch av {
	case 1:
		s.AutoVacuum = "FULL"
	case 2:
		s.AutoVacuum = "INCREMENTAL"
	default:
		s.AutoVacuum = "NONE"
	}

	for typ, dst := range map[string]*int{
		"table":   &s.TableCount,
		"index":   &s.IndexCount,
		"trigger": &s.TriggerCount,
		"view":    &s.ViewCount,
	} {
		n, err := i.scalarInt(ctx, "SELECT COUNT(*) FROM sqlite_master WHERE type = ? AND name NOT LIKE 'sqlite_%'", typ)
		if err != nil {
			return nil, fmt.Errorf("inspect: count %ss: %w", typ, err)
		}
		*dst = int(n)
	}
	return s, nil
}

func (i *Inspector) scalarInt(ctx context.Context, query string, args ...any) (int64, error) {
	rows, err := i.query(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	defer rows.Close()
	if !rows.Next() {
		return 0, rows.Err()
	}
	var v int64
	if err := rows.Scan(&v); err != nil {
		return 0, err
	}
	return v, rows.Err()
}

func (i *Inspector) scalarString(ctx context.Context, query string, args ...any) (string, error) {
	rows, err := i.query(ctx, query, args...)
	if err != nil {
		return "", err
	}
	defer rows.Close()
	if !rows.Next() {
		return "", rows.Err()
	}
	var v string
	if err := rows.Scan(&v); err != nil {
		return "", err
	}
	return v, rows.Err()
}

// Tables lists every user table name, sorted, excluding SQLite's internal
// sqlite_% tables.
func (i *Inspector) Tables(ctx context.Context) ([]string, error) {
	rows, err := i.query(ctx, "SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

// Table introspects one table by name. It returns [relstore.NewMappingErrorReason]-free
// plain errors — the inspector reports what it finds, it never validates
// it against an [relstore.EntityMapping] (that is [ValidateTable]'s job).
func (i *Inspector) Table(ctx context.Context, name string) (*TableInfo, error) {
	if !isValidIdentifier(name) {
		return nil, fmt.Errorf("inspect: invalid table name %q", name)
	}
	t := &TableInfo{Name: name}

	createSQL, err := i.scalarString(ctx, "SELECT sql FROM sqlite_master WHERE type = 'table' AND name = ?", name)
	if err != nil {
		return nil, fmt.Errorf("inspect: table %s: read definition: %w", name, err)
	}
	t.CreateSQL = createSQL
	upper := strings.ToUpper(createSQL)
	t.WithoutRowID = strings.Contains(upper, "WITHOUT ROWID")
	t.Strict = strings.Contains(upper, ") STRICT") || strings.HasSuffix(strings.TrimSpace(upper), "STRICT")
	t.Checks = parseCheckConstraints(createSQL)

	if err := i.loadColumns(ctx, t); err != nil {
		return nil, err
	}
	if err := i.loadIndexes(ctx, t); err != nil {
		return nil, err
	}
	if err := i.loadForeignKeys(ctx, t); err != nil {
		return nil, err
	}

	count, err := i.scalarInt(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", quoteIdent(name)))
	if err != nil {
		return nil, fmt.Errorf("inspect: table %s: row count: %w", name, err)
	}
	t.RowCount = count
	return t, nil
}

// loadColumns reads `PRAGMA table_xinfo`, which unlike `table_info` also
// lists hidden and generated columns (spec §4.I "columns (including
// hidden/generated when supported)"). Older SQLite builds without
// table_xinfo fall back to table_info, reporting every column as visible.
func (i *Inspector) loadColumns(ctx context.Context, t *TableInfo) error {
	rows, err := i.query(ctx, fmt.Sprintf("PRAGMA table_xinfo(%s)", quoteIdent(t.Name)))
	if err != nil {
		rows, err = i.query(ctx, fmt.Sprintf("PRAGMA table_info(%s)", quoteIdent(t.Name)))
		if err != nil {
			return fmt.Errorf("inspect: table %s: columns: %w", t.Name, err)
		}
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return err
	}
	hasHidden := len(cols) >= 7

	for rows.Next() {
		var (
			cid       int
			name, typ string
			notNull   int
			dflt      any
			pk        int
			hidden    int
		)
		dest := []any{&cid, &name, &typ, &notNull, &dflt, &pk}
		if hasHidden {
			dest = append(dest, &hidden)
		}
		if err := rows.Scan(dest...); err != nil {
			return err
		}
		t.Columns = append(t.Columns, ColumnInfo{
			Name:         name,
			Type:         typ,
			NotNull:      notNull != 0,
			DefaultValue: fmt.Sprint(dflt),
			PKOrdinal:    pk,
			Hidden:       hidden,
		})
	}
	return rows.Err()
}

// loadIndexes reads `PRAGMA index_list`/`index_info`, plus the index's own
// `sqlite_master.sql` text for the WHERE clause of a partial index (spec
// §4.I "indexes (including partial and expression details parsed from the
// DDL)") — neither pragma exposes the predicate itself.
func (i *Inspector) loadIndexes(ctx context.Context, t *TableInfo) error {
	rows, err := i.query(ctx, fmt.Sprintf("PRAGMA index_list(%s)", quoteIdent(t.Name)))
	if err != nil {
		return fmt.Errorf("inspect: table %s: index_list: %w", t.Name, err)
	}
	defer rows.Close()

	type rawIdx struct {
		seq     int
		name    string
		unique  int
		origin  string
		partial int
	}
	var raw []rawIdx
	for rows.Next() {
		var ri rawIdx
		if err := rows.Scan(&ri.seq, &ri.name, &ri.unique, &ri.origin, &ri.partial); err != nil {
			return err
		}
		raw = append(raw, ri)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, ri := range raw {
		idx := IndexInfo{Name: ri.name, Unique: ri.unique != 0, Partial: ri.partial != 0, Origin: ri.origin}
		cols, err := i.query(ctx, fmt.Sprintf("PRAGMA index_info(%s)", quoteIdent(ri.name)))
		if err != nil {
			return fmt.Errorf("inspect: index %s: index_info: %w", ri.name, err)
		}
		for cols.Next() {
			var seqno, cid int
			var colName any
			if err := cols.Scan(&seqno, &cid, &colName); err != nil {
				cols.Close()
				return err
			}
			if colName != nil {
				idx.Columns = append(idx.Columns, fmt.Sprint(colName))
			}
		}
		err = cols.Err()
		cols.Close()
		if err != nil {
			return err
		}

		if ri.origin == "c" { // only CREATE INDEX statements have a sqlite_master entry to parse
			sql, err := i.scalarString(ctx, "SELECT sql FROM sqlite_master WHERE type = 'index' AND name = ?", ri.name)
			if err == nil {
				idx.Where = parseIndexWhere(sql)
			}
		}
		t.Indexes = append(t.Indexes, idx)
	}
	return nil
}

func (i *Inspector) loadForeignKeys(ctx context.Context, t *TableInfo) error {
	rows, err := i.query(ctx, fmt.Sprintf("PRAGMA foreign_key_list(%s)", quoteIdent(t.Name)))
	if err != nil {
		return fmt.Errorf("inspect: table %s: foreign_key_list: %w", t.Name, err)
	}
	defer rows.Close()

	for rows.Next() {
		var id, seq int
		var table, from, to, onUpdate, onDelete, match string
		if err := rows.Scan(&id, &seq, &table, &from, &to, &onUpdate, &onDelete, &match); err != nil {
			return err
		}
		t.ForeignKeys = append(t.ForeignKeys, ForeignKeyInfo{
			Table: table, From: from, To: to, OnUpdate: onUpdate, OnDelete: onDelete,
		})
	}
	return rows.Err()
}

// parseIndexWhere extracts the predicate text of a partial index's WHERE
// clause from its CREATE INDEX statement, or "" if the index isn't
// partial. It's a textual scan, not a SQL parser: good enough to surface
// the clause in a report, not to re-evaluate it.
func parseIndexWhere(createSQL string) string {
	upper := strings.ToUpper(createSQL)
	idx := strings.LastIndex(upper, " WHERE ")
	if idx < 0 {
		return ""
	}
	return strings.TrimSpace(createSQL[idx+len(" WHERE "):])
}

// parseCheckConstraints extracts each `CHECK (...)` clause from a
// CREATE TABLE statement's text (spec §4.I "check constraints parsed from
// CREATE TABLE") — SQLite has no pragma that lists them.
func parseCheckConstraints(createSQL string) []string {
	var checks []string
	upper := strings.ToUpper(createSQL)
	for {
		i := strings.Index(upper, "CHECK")
		if i < 0 {
			break
		}
		rest := createSQL[i:]
		open := strings.IndexByte(rest, '(')
		if open < 0 {
			break
		}
		depth := 0
		end := -1
		for j := open; j < len(rest); j++ {
			switch rest[j] {
			case '(':
				depth++
			case ')':
				depth--
				if depth == 0 {
					end = j
				}
			}
			if end >= 0 {
				break
			}
		}
		if end < 0 {
			break
		}
		checks = append(checks, strings.TrimSpace(rest[open+1:end]))
		advance := i + end + 1
		createSQL = createSQL[advance:]
		upper = upper[advance:]
	}
	return checks
}

func quoteIdent(s string) string { return `"` + strings.ReplaceAll(s, `"`, `""`) + `"` }

func isValidIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !(r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')) {
			return false
		}
	}
	return true
}

// Report renders a human-readable summary of the database's statistics and
// every table's live shape (spec §4.I "Produces a human-readable report").
func (i *Inspector) Report(ctx context.Context) (string, error) {
	stats, err := i.Stats(ctx)
	if err != nil {
		return "", err
	}
	tables, err := i.Tables(ctx)
	if err != nil {
		return "", err
	}
	sort.Strings(tables)

	var b strings.Builder
	fmt.Fprintf(&b, "database: %d bytes (%d pages x %d bytes, %d free)\n", stats.FileBytes, stats.PageCount, stats.PageSize, stats.FreelistCount)
	fmt.Fprintf(&b, "encoding: %s, auto_vacuum: %s, user_version: %d, application_id: %d\n", stats.Encoding, stats.AutoVacuum, stats.UserVersion, stats.ApplicationID)
	fmt.Fprintf(&b, "objects: %d tables, %d indexes, %d triggers, %d views\n\n", stats.TableCount, stats.IndexCount, stats.TriggerCount, stats.ViewCount)

	for _, name := range tables {
		t, err := i.Table(ctx, name)
		if err != nil {
			fmt.Fprintf(&b, "table %s: %v\n", name, err)
			continue
		}
		fmt.Fprintf(&b, "table %s (%d rows)", t.Name, t.RowCount)
		var flags []string
		if t.WithoutRowID {
			flags = append(flags, "WITHOUT ROWID")
		}
		if t.Strict {
			flags = append(flags, "STRICT")
		}
		if len(flags) > 0 {
			fmt.Fprintf(&b, " [%s]", strings.Join(flags, ", "))
		}
		b.WriteString("\n")

		for _, c := range t.Columns {
			nn := ""
			if c.NotNull {
				nn = " NOT NULL"
			}
			gen := ""
			if c.Generated() {
				gen = " GENERATED"
			}
			fmt.Fprintf(&b, "  %s %s%s%s\n", c.Name, c.Type, nn, gen)
		}
		for _, idx := range t.Indexes {
			uniq := ""
			if idx.Unique {
				uniq = "UNIQUE "
			}
			where := ""
			if idx.Where != "" {
				where = " WHERE " + idx.Where
			}
			fmt.Fprintf(&b, "  index %s%s (%s)%s\n", uniq, idx.Name, strings.Join(idx.Columns, ", "), where)
		}
		for _, fk := range t.ForeignKeys {
			fmt.Fprintf(&b, "  foreign key %s -> %s.%s (update %s, delete %s)\n", fk.From, fk.Table, fk.To, fk.OnUpdate, fk.OnDelete)
		}
		for _, chk := range t.Checks {
			fmt.Fprintf(&b, "  check (%s)\n", chk)
		}
		b.WriteString("\n")
	}
	return b.String(), nil
}
