// Package relstore is a generic, strongly-typed persistence engine built
// over an embedded relational store. It provides a repository abstraction
// keyed by a user-defined entity type and primary key, a declarative
// entity-to-table mapping layer, a predicate-to-SQL translator, optimistic
// concurrency with monotonic versioning, optional soft-delete with version
// history, optional TTL-based expiration and archival, bulk import/export,
// age-based purge, and a transient-error retry layer.
//
// # Defining an entity
//
// An entity type is described by a [Schema] implementation: a small Go type
// whose Fields (and, optionally, Indexes/Checks/ForeignKeys/Mixin) methods
// return declarative descriptors. relstore never reflects over the schema
// type itself; registration is explicit and happens once per Go process via
// [Build]:
//
//	type Task struct{ relstore.Schema }
//
//	func (Task) Mixin() []relstore.Mixin {
//		return []relstore.Mixin{
//			mixin.Versioned{},
//			mixin.Expirable{},
//		}
//	}
//
//	func (Task) Fields() []field.Descriptor {
//		return []field.Descriptor{
//			field.String("title").NotEmpty().MaxLen(200).Descriptor(),
//			field.Bool("done").Default(false).Descriptor(),
//		}
//	}
//
// The Go struct actually stored and retrieved through a [repository] is a
// plain, separate struct whose fields are matched to columns by the
// mapping's StructField name (the camelized column name unless a field
// builder's StructField overrides it) at [repository.New] time — the same
// separation of "schema declaration" from "runtime entity" the teacher
// project uses between its schema package and its generated client.
package relstore

import (
	"time"

	"github.com/relstore/relstore/schema/field"
	"github.com/relstore/relstore/schema/index"
)

// Schema is embedded by every entity schema declaration to pick up no-op
// defaults for the optional methods below. It is the relstore analogue of
// the teacher's velox.Schema marker type.
type Schema struct{}

// Fields returns the fields of the schema. Override in the embedding type.
func (Schema) Fields() []field.Descriptor { return nil }

// Indexes returns the indexes of the schema. Override in the embedding type.
func (Schema) Indexes() []index.Descriptor { return nil }

// Checks returns the check constraints of the schema.
func (Schema) Checks() []Check { return nil }

// ForeignKeys returns the foreign keys of the schema.
func (Schema) ForeignKeys() []ForeignKey { return nil }

// Mixin returns the mixins applied to the schema.
func (Schema) Mixin() []Mixin { return nil }

// TableName overrides the table name derived from the type's short name.
// Returning "" uses the default derivation.
func (Schema) TableName() string { return "" }

// ExpirySpan returns the entity's TTL relative to CreationTime (spec §3
// annotation `expiry_span`). Returning 0 means no expiry, even when the
// schema applies [schema/mixin.Expirable] — a zero ExpirySpan just leaves
// AbsoluteExpiration unset at create time, which the default read filter
// already treats as "never expires".
func (Schema) ExpirySpan() time.Duration { return 0 }

// FieldsProvider is implemented by schema declarations that contribute
// columns.
type FieldsProvider interface {
	Fields() []field.Descriptor
}

// IndexesProvider is implemented by schema declarations that contribute
// indexes.
type IndexesProvider interface {
	Indexes() []index.Descriptor
}

// ChecksProvider is implemented by schema declarations that contribute
// check constraints.
type ChecksProvider interface {
	Checks() []Check
}

// ForeignKeysProvider is implemented by schema declarations that contribute
// foreign keys.
type ForeignKeysProvider interface {
	ForeignKeys() []ForeignKey
}

// MixinProvider is implemented by schema declarations that embed mixins.
type MixinProvider interface {
	Mixin() []Mixin
}

// TableNamer is implemented by schema declarations that override the
// default table name.
type TableNamer interface {
	TableName() string
}

// ExpirySpanProvider is implemented by schema declarations that set a TTL
// (spec §3 annotation `expiry_span`).
type ExpirySpanProvider interface {
	ExpirySpan() time.Duration
}

// Mixin is a reusable bundle of fields/indexes/checks/foreign-keys that can
// be embedded into multiple schema declarations, mirroring the teacher's
// mixin.Schema contract (schema/mixin/mixin.go).
type Mixin interface {
	Fields() []field.Descriptor
	Indexes() []index.Descriptor
	Checks() []Check
	ForeignKeys() []ForeignKey
}

// Check is a named CHECK constraint expressed as a raw SQL boolean
// expression evaluated against the row.
type Check struct {
	Name       string
	Expression string
}

// ReferentialAction enumerates ON DELETE / ON UPDATE behaviors for a
// foreign key.
type ReferentialAction string

// Referential actions recognized by the DDL synthesizer.
const (
	Cascade  ReferentialAction = "CASCADE"
	SetNull  ReferentialAction = "SET NULL"
	Restrict ReferentialAction = "RESTRICT"
	NoAction ReferentialAction = "NO ACTION"
)

// ForeignKey describes a foreign-key constraint from this table to another.
type ForeignKey struct {
	Name        string
	Columns     []string
	RefTable    string
	RefColumns  []string
	OnDelete    ReferentialAction
	OnUpdate    ReferentialAction
}
