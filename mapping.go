package relstore

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"ariga.io/atlas/sql/schema"
	"github.com/go-openapi/inflect"

	"github.com/relstore/relstore/schema/field"
	"github.com/relstore/relstore/schema/index"
)

// ColumnMapping is one column of an [EntityMapping], produced from a single
// [field.Descriptor].
type ColumnMapping struct {
	Name          string
	StructField   string
	Type          field.Type
	Role          field.Role
	Size          int
	Precision     int
	Scale         int
	Nullable      bool
	Unique        bool
	Immutable     bool
	Default       any
	UpdateDefault any
	Computed      string
	Stored        bool
	IsPrimaryKey  bool
	PKOrder       int
	IsAutoIncr    bool
	EnumValues    []string
	ColumnType    map[string]string
	Validators    []field.Validator
}

// IndexMapping describes one index built from an [index.Descriptor].
type IndexMapping struct {
	Name    string
	Columns []index.Column
	Unique  bool
	Where   string
}

// ForeignKeyMapping describes one foreign key.
type ForeignKeyMapping struct {
	Name       string
	Columns    []string
	RefTable   string
	RefColumns []string
	OnDelete   ReferentialAction
	OnUpdate   ReferentialAction
}

// CheckMapping describes one CHECK constraint.
type CheckMapping struct {
	Name       string
	Expression string
}

// AuditFields records which columns (if any) carry each recognized
// lifecycle role, so the CRUD engine (component F) can stamp them without
// re-scanning the column list on every call.
type AuditFields struct {
	Version            *ColumnMapping
	IsDeleted          *ColumnMapping
	CreationTime       *ColumnMapping
	LastWriteTime      *ColumnMapping
	AbsoluteExpiration *ColumnMapping
	IsArchived         *ColumnMapping
	CreatedBy          *ColumnMapping
	ModifiedBy         *ColumnMapping
}

// EntityMapping is the immutable, process-wide-cached description of how a
// Go entity type maps onto a relational table (spec §3). It is produced
// once per entity type by [Build] and never mutated afterward.
type EntityMapping struct {
	TableName        string
	Columns          []ColumnMapping
	PrimaryKey       []string
	Indexes          []IndexMapping
	ForeignKeys      []ForeignKeyMapping
	Checks           []CheckMapping
	Audit            AuditFields
	SoftDeleteEnabled bool
	ExpirySpan       time.Duration
	EnableArchive    bool
	EnableAuditTrail bool

	// Table is the canonical relational IR consumed by the DDL synthesizer
	// (component C) and the schema inspector (component I).
	Table *schema.Table

	byName map[string]*ColumnMapping
}

// ColumnByName looks up a column mapping by its SQL column name.
func (m *EntityMapping) ColumnByName(name string) (*ColumnMapping, bool) {
	c, ok := m.byName[name]
	return c, ok
}

// Build derives an [EntityMapping] from a schema declaration. This is the
// only place relstore inspects a schema.Schema value — the result is cached
// by the caller (see [mapping_cache.go]) and never recomputed.
//
// s.TableName(), if the schema implements [TableNamer], overrides the
// pluralized-snake-case name derived from goTypeName.
func Build(goTypeName string, s any) (*EntityMapping, error) {
	tableName := deriveTableName(goTypeName)
	if tn, ok := s.(TableNamer); ok {
		if name := tn.TableName(); name != "" {
			tableName = name
		}
	}

	var expirySpan time.Duration
	if ep, ok := s.(ExpirySpanProvider); ok {
		expirySpan = ep.ExpirySpan()
	}

	var fields []field.Descriptor
	var idxs []index.Descriptor
	var checks []Check
	var fks []ForeignKey

	if mp, ok := s.(MixinProvider); ok {
		for _, mx := range mp.Mixin() {
			fields = append(fields, mx.Fields()...)
			idxs = append(idxs, mx.Indexes()...)
			checks = append(checks, mx.Checks()...)
			fks = append(fks, mx.ForeignKeys()...)
		}
	}
	if fp, ok := s.(FieldsProvider); ok {
		fields = mergeFields(fields, fp.Fields())
	}
	if ip, ok := s.(IndexesProvider); ok {
		idxs = append(idxs, ip.Indexes()...)
	}
	if cp, ok := s.(ChecksProvider); ok {
		checks = append(checks, cp.Checks()...)
	}
	if fkp, ok := s.(ForeignKeysProvider); ok {
		fks = append(fks, fkp.ForeignKeys()...)
	}

	if len(fields) == 0 {
		return nil, NewMappingError(goTypeName, "schema declares no fields")
	}

	m := &EntityMapping{
		TableName:  tableName,
		ExpirySpan: expirySpan,
		byName:     make(map[string]*ColumnMapping, len(fields)),
	}

	for _, fd := range fields {
		cm, err := columnFromField(fd)
		if err != nil {
			return nil, NewMappingError(goTypeName, err.Error())
		}
		m.Columns = append(m.Columns, cm)
	}
	for i := range m.Columns {
		m.byName[m.Columns[i].Name] = &m.Columns[i]
	}

	if err := assignAuditRoles(m); err != nil {
		return nil, NewMappingError(goTypeName, err.Error())
	}
	if err := derivePrimaryKey(m); err != nil {
		return nil, NewMappingError(goTypeName, err.Error())
	}

	for _, id := range idxs {
		m.Indexes = append(m.Indexes, IndexMapping{
			Name:    indexName(tableName, id),
			Columns: id.Columns,
			Unique:  id.Unique,
			Where:   id.Where,
		})
	}
	for _, c := range checks {
		m.Checks = append(m.Checks, CheckMapping{Name: c.Name, Expression: c.Expression})
	}
	for _, fk := range fks {
		m.ForeignKeys = append(m.ForeignKeys, ForeignKeyMapping{
			Name:       fk.Name,
			Columns:    fk.Columns,
			RefTable:   fk.RefTable,
			RefColumns: fk.RefColumns,
			OnDelete:   fk.OnDelete,
			OnUpdate:   fk.OnUpdate,
		})
	}

	m.SoftDeleteEnabled = m.Audit.Version != nil && m.Audit.IsDeleted != nil
	m.EnableArchive = m.Audit.IsArchived != nil
	m.EnableAuditTrail = m.Audit.CreatedBy != nil || m.Audit.ModifiedBy != nil

	if err := validateInvariants(m); err != nil {
		return nil, NewMappingError(goTypeName, err.Error())
	}

	m.Table = toAtlasTable(m)
	return m, nil
}

// mergeFields appends extra to base, letting a later field with the same
// name override an earlier one from a mixin (spec/mixin doc: "mixin order").
func mergeFields(base, extra []field.Descriptor) []field.Descriptor {
	idxOf := make(map[string]int, len(base))
	for i, f := range base {
		idxOf[f.Name] = i
	}
	for _, f := range extra {
		if i, ok := idxOf[f.Name]; ok {
			base[i] = f
			continue
		}
		idxOf[f.Name] = len(base)
		base = append(base, f)
	}
	return base
}

func columnFromField(fd field.Descriptor) (ColumnMapping, error) {
	if fd.Name == "" {
		return ColumnMapping{}, fmt.Errorf("field has no name")
	}
	sf := fd.StructField
	if sf == "" {
		sf = inflect.Camelize(fd.Name)
	}
	return ColumnMapping{
		Name:          fd.Name,
		StructField:   sf,
		Type:          fd.Type,
		Role:          fd.Role,
		Size:          fd.Size,
		Precision:     fd.Precision,
		Scale:         fd.Scale,
		Nullable:      fd.Nullable,
		Unique:        fd.Unique,
		Immutable:     fd.Immutable,
		Default:       fd.Default,
		UpdateDefault: fd.UpdateDefault,
		Computed:      fd.Computed,
		Stored:        fd.Stored,
		IsPrimaryKey:  fd.PrimaryKey,
		PKOrder:       fd.PKOrder,
		IsAutoIncr:    fd.AutoIncr,
		EnumValues:    fd.EnumValues,
		ColumnType:    fd.ColumnType,
		Validators:    fd.Validators,
	}, nil
}

func assignAuditRoles(m *EntityMapping) error {
	seen := map[field.Role]string{}
	for i := range m.Columns {
		c := &m.Columns[i]
		if c.Role == field.RoleNone {
			continue
		}
		if prev, ok := seen[c.Role]; ok {
			return fmt.Errorf("duplicate lifecycle role on columns %q and %q", prev, c.Name)
		}
		seen[c.Role] = c.Name
		switch c.Role {
		case field.RoleVersion:
			m.Audit.Version = c
		case field.RoleIsDeleted:
			m.Audit.IsDeleted = c
		case field.RoleCreationTime:
			m.Audit.CreationTime = c
		case field.RoleLastWriteTime:
			m.Audit.LastWriteTime = c
		case field.RoleAbsoluteExpiration:
			m.Audit.AbsoluteExpiration = c
		case field.RoleIsArchived:
			m.Audit.IsArchived = c
		case field.RoleCreatedBy:
			m.Audit.CreatedBy = c
		case field.RoleModifiedBy:
			m.Audit.ModifiedBy = c
		}
	}
	return nil
}

func derivePrimaryKey(m *EntityMapping) error {
	type pk struct {
		name  string
		order int
	}
	var pks []pk
	for _, c := range m.Columns {
		if c.IsPrimaryKey {
			pks = append(pks, pk{c.Name, c.PKOrder})
		}
	}
	if len(pks) == 0 {
		return fmt.Errorf("no primary key column declared")
	}
	for i := 0; i < len(pks); i++ {
		for j := i + 1; j < len(pks); j++ {
			if pks[j].order < pks[i].order {
				pks[i], pks[j] = pks[j], pks[i]
			}
		}
	}
	// Invariant (i): soft-delete composes Version into the primary key.
	if m.Audit.Version != nil && m.Audit.IsDeleted != nil {
		hasVersion := false
		for _, p := range pks {
			if p.name == m.Audit.Version.Name {
				hasVersion = true
			}
		}
		if !hasVersion {
			pks = append(pks, pk{m.Audit.Version.Name, len(pks)})
		}
	}
	for _, p := range pks {
		m.PrimaryKey = append(m.PrimaryKey, p.name)
	}
	return nil
}

func validateInvariants(m *EntityMapping) error {
	// Invariant (i)
	if (m.Audit.Version != nil) != (m.Audit.IsDeleted != nil) {
		return fmt.Errorf("soft-delete requires both a Version and an IsDeleted column")
	}
	// Invariant (ii)
	if m.Audit.AbsoluteExpiration != nil && m.Audit.CreationTime == nil {
		return fmt.Errorf("expiry requires a CreationTime column")
	}
	// Invariant (iv)
	autoIncrCount := 0
	for _, c := range m.Columns {
		if c.IsAutoIncr {
			autoIncrCount++
		}
	}
	if autoIncrCount > 1 {
		return fmt.Errorf("at most one auto-increment column is allowed")
	}
	if autoIncrCount == 1 && len(m.PrimaryKey) > 1 {
		pkCount := 0
		for _, c := range m.Columns {
			if c.IsAutoIncr && !c.IsPrimaryKey {
				return fmt.Errorf("auto-increment column must be the primary key")
			}
			if c.IsPrimaryKey {
				pkCount++
			}
		}
	}
	return nil
}

func indexName(table string, id index.Descriptor) string {
	if id.StorageKey != "" {
		return id.StorageKey
	}
	var b strings.Builder
	b.WriteString("idx_")
	b.WriteString(table)
	for _, c := range id.Columns {
		b.WriteByte('_')
		b.WriteString(c.Name)
	}
	return b.String()
}

// toAtlasTable builds the canonical relational IR (ariga.io/atlas/sql/schema)
// from a built EntityMapping. This is the only place relstore constructs
// schema.Table/Column/Index/ForeignKey values; the DDL synthesizer (ddl
// package) and the schema inspector (inspect package) both consume this IR
// rather than re-deriving it from ColumnMapping.
func toAtlasTable(m *EntityMapping) *schema.Table {
	t := &schema.Table{Name: m.TableName}

	cols := make(map[string]*schema.Column, len(m.Columns))
	for _, cm := range m.Columns {
		col := &schema.Column{
			Name: cm.Name,
			Type: &schema.ColumnType{Type: atlasType(cm), Null: cm.Nullable},
		}
		t.Columns = append(t.Columns, col)
		cols[cm.Name] = col
	}

	if len(m.PrimaryKey) > 0 {
		pk := &schema.Index{Name: "PRIMARY", Unique: true, Table: t}
		for i, name := range m.PrimaryKey {
			if c, ok := cols[name]; ok {
				pk.Parts = append(pk.Parts, &schema.IndexPart{SeqNo: i, C: c})
			}
		}
		t.PrimaryKey = pk
	}

	for _, im := range m.Indexes {
		idx := &schema.Index{Name: im.Name, Unique: im.Unique, Table: t}
		for i, c := range im.Columns {
			col, ok := cols[c.Name]
			if !ok {
				continue
			}
			idx.Parts = append(idx.Parts, &schema.IndexPart{SeqNo: i, C: col, Desc: c.Desc})
		}
		t.Indexes = append(t.Indexes, idx)
	}

	for _, fk := range m.ForeignKeys {
		f := &schema.ForeignKey{
			Symbol:   fk.Name,
			Table:    t,
			RefTable: &schema.Table{Name: fk.RefTable},
			OnDelete: schema.ReferenceOption(fk.OnDelete),
			OnUpdate: schema.ReferenceOption(fk.OnUpdate),
		}
		for _, c := range fk.Columns {
			if col, ok := cols[c]; ok {
				f.Columns = append(f.Columns, col)
			}
		}
		t.ForeignKeys = append(t.ForeignKeys, f)
	}

	return t
}

// atlasType maps an abstract field.Type to the cross-dialect Atlas type used
// as the canonical IR node; dialect adapters (component B) translate this
// into concrete SQL type keywords via sql_type_of (spec §6.4).
func atlasType(cm ColumnMapping) schema.Type {
	switch cm.Type {
	case field.TypeString, field.TypeText:
		return &schema.StringType{T: "text", Size: cm.Size}
	case field.TypeBool:
		return &schema.BoolType{T: "boolean"}
	case field.TypeInt8, field.TypeInt16, field.TypeInt32, field.TypeInt64:
		return &schema.IntegerType{T: "integer"}
	case field.TypeFloat32, field.TypeFloat64:
		return &schema.FloatType{T: "float"}
	case field.TypeDecimal:
		return &schema.DecimalType{T: "decimal", Precision: cm.Precision, Scale: cm.Scale}
	case field.TypeTime:
		return &schema.TimeType{T: "datetime"}
	case field.TypeDuration:
		return &schema.IntegerType{T: "integer"} // stored as total seconds
	case field.TypeUUID:
		return &schema.StringType{T: "text", Size: 36}
	case field.TypeEnum:
		return &schema.EnumType{T: cm.Name, Values: cm.EnumValues}
	case field.TypeBytes:
		return &schema.BinaryType{T: "blob"}
	default:
		return &schema.StringType{T: "text", Size: cm.Size}
	}
}

// deriveTableName converts a PascalCase Go type name into a pluralized
// snake_case table name, e.g. "TaskItem" -> "task_items".
func deriveTableName(goTypeName string) string {
	return inflect.Pluralize(toSnakeCase(goTypeName))
}

func toSnakeCase(s string) string {
	var b strings.Builder
	for i, r := range s {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
