// Package mixin provides reusable field bundles for the lifecycle
// capabilities described in the specification: optimistic-concurrency
// versioning with soft-delete history, TTL expiration, archival, and audit
// stamping. This is the relstore equivalent of the teacher's
// contrib/mixin package (schema/mixin/mixin.go), retargeted from generic
// timestamp/soft-delete conveniences to the spec's named lifecycle roles.
//
// A mixin is a reusable set of fields that can be embedded in multiple
// schema declarations:
//
//	func (Task) Mixin() []relstore.Mixin {
//		return []relstore.Mixin{
//			mixin.Versioned{},  // version, is_deleted
//			mixin.Expirable{},  // creation_time, absolute_expiration
//		}
//	}
package mixin

import (
	"time"

	"github.com/relstore/relstore"
	"github.com/relstore/relstore/schema/field"
	"github.com/relstore/relstore/schema/index"
)

// Schema is the default implementation of the relstore.Mixin interface;
// embed it in custom mixins and override only the methods needed.
type Schema struct{}

// Fields returns no fields by default.
func (Schema) Fields() []field.Descriptor { return nil }

// Indexes returns no indexes by default.
func (Schema) Indexes() []index.Descriptor { return nil }

// Checks returns no check constraints by default.
func (Schema) Checks() []relstore.Check { return nil }

// ForeignKeys returns no foreign keys by default.
func (Schema) ForeignKeys() []relstore.ForeignKey { return nil }

// Versioned adds the `version` and `is_deleted` columns backing optimistic
// concurrency and soft-delete history (spec §3 invariant (i)). `version`
// participates in the primary key alongside the entity id, since each
// logical update/delete appends a new row rather than overwriting one.
type Versioned struct {
	Schema
}

// Fields returns the version and is_deleted columns.
func (Versioned) Fields() []field.Descriptor {
	return []field.Descriptor{
		field.Int64("version").
			Default(int64(1)).
			Role(field.RoleVersion).
			Comment("monotonic row version; part of the primary key").
			Descriptor(),
		field.Bool("is_deleted").
			Default(false).
			Role(field.RoleIsDeleted).
			Comment("tombstone flag for the soft-delete chain").
			Descriptor(),
	}
}

// Indexes returns a lookup index over (id-adjacent) is_deleted, useful for
// the default read filter.
func (Versioned) Indexes() []index.Descriptor {
	return []index.Descriptor{
		index.Fields("is_deleted").Descriptor(),
	}
}

// Expirable adds `creation_time` and `absolute_expiration` columns backing
// TTL-based expiration (spec §3 invariant (ii)).
type Expirable struct {
	Schema
}

// Fields returns the creation_time and absolute_expiration columns.
func (Expirable) Fields() []field.Descriptor {
	return []field.Descriptor{
		field.Time("creation_time").
			Default(time.Now).
			Immutable().
			Role(field.RoleCreationTime).
			Comment("set once at create time").
			Descriptor(),
		field.Time("absolute_expiration").
			Optional().
			Role(field.RoleAbsoluteExpiration).
			Comment("rows past this instant are filtered from default reads").
			Descriptor(),
	}
}

// Indexes returns an index over absolute_expiration to keep expiry scans
// and purge-by-age cheap.
func (Expirable) Indexes() []index.Descriptor {
	return []index.Descriptor{
		index.Fields("absolute_expiration").Descriptor(),
	}
}

// Archivable adds the `is_archived` column (spec §3 invariant (ii), only
// meaningful alongside Expirable).
type Archivable struct {
	Schema
}

// Fields returns the is_archived column.
func (Archivable) Fields() []field.Descriptor {
	return []field.Descriptor{
		field.Bool("is_archived").
			Default(false).
			Role(field.RoleIsArchived).
			Comment("set by the bulk pipeline's archive export mode").
			Descriptor(),
	}
}

// Audited adds `last_write_time`, `created_by`, and `modified_by` columns.
type Audited struct {
	Schema
}

// Fields returns the audit columns.
func (Audited) Fields() []field.Descriptor {
	return []field.Descriptor{
		field.Time("last_write_time").
			Default(time.Now).
			UpdateDefault(time.Now).
			Role(field.RoleLastWriteTime).
			Comment("bumped on every create/update").
			Descriptor(),
		field.String("created_by").
			Optional().
			Immutable().
			Role(field.RoleCreatedBy).
			Descriptor(),
		field.String("modified_by").
			Optional().
			Role(field.RoleModifiedBy).
			Descriptor(),
	}
}
