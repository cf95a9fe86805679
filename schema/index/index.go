// Package index provides the fluent builder for declaring entity indexes,
// mirroring the teacher's schema/index package (grounded on
// schema/index/index_test.go, since no index.go source was retrieved).
package index

// Column is one column participating in an index.
type Column struct {
	Name string
	Desc bool
}

// Descriptor is the built, immutable description of an index.
type Descriptor struct {
	Columns    []Column
	Unique     bool
	Where      string // partial index predicate, empty means unconditional
	StorageKey string
}

// Builder is the fluent index builder returned by [Fields].
type Builder struct {
	d Descriptor
}

// Fields starts an index over the given column names, in order.
func Fields(names ...string) *Builder {
	cols := make([]Column, len(names))
	for i, n := range names {
		cols[i] = Column{Name: n}
	}
	return &Builder{d: Descriptor{Columns: cols}}
}

// Desc marks the given already-declared column (by name) as descending.
func (b *Builder) Desc(name string) *Builder {
	for i := range b.d.Columns {
		if b.d.Columns[i].Name == name {
			b.d.Columns[i].Desc = true
		}
	}
	return b
}

// Unique marks the index UNIQUE.
func (b *Builder) Unique() *Builder {
	b.d.Unique = true
	return b
}

// PartialWhere sets a partial-index predicate (e.g. "is_deleted = 0").
func (b *Builder) PartialWhere(expr string) *Builder {
	b.d.Where = expr
	return b
}

// StorageKey overrides the generated index name.
func (b *Builder) StorageKey(name string) *Builder {
	b.d.StorageKey = name
	return b
}

// Descriptor returns the built descriptor.
func (b *Builder) Descriptor() Descriptor { return b.d }
