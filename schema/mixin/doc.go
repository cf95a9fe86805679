// Package mixin provides reusable schema components for relstore entity
// declarations.
//
// Mixins let schemas share common lifecycle fields instead of repeating
// column declarations. This package ships the four lifecycle capabilities
// named by the storage model: optimistic-concurrency versioning with
// soft-delete, TTL expiration, archival, and audit stamping.
//
// # Built-in mixins
//
//	// Versioned: adds version (monotonic) and is_deleted
//	mixin.Versioned{}
//
//	// Expirable: adds creation_time and absolute_expiration
//	mixin.Expirable{}
//
//	// Archivable: adds is_archived
//	mixin.Archivable{}
//
//	// Audited: adds last_write_time, created_by, modified_by
//	mixin.Audited{}
//
// # Using mixins
//
// Mixins attach to a schema declaration via its Mixin method:
//
//	type Task struct{ relstore.Schema }
//
//	func (Task) Mixin() []relstore.Mixin {
//		return []relstore.Mixin{
//			mixin.Versioned{},
//			mixin.Expirable{},
//			mixin.Audited{},
//		}
//	}
//
// # Mixin order
//
// Mixins are merged in the order listed, then the schema's own Fields are
// appended; a later field with the same name overrides an earlier one.
//
// # Creating custom mixins
//
// Custom mixins embed Schema and override the methods they need:
//
//	type TenantMixin struct {
//		mixin.Schema
//	}
//
//	func (TenantMixin) Fields() []field.Descriptor {
//		return []field.Descriptor{
//			field.String("tenant_id").Immutable().Descriptor(),
//		}
//	}
package mixin
