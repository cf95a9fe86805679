// Package field provides fluent builders for declaring entity columns.
//
// Field names follow database conventions (snake_case); the corresponding
// Go struct field is matched by PascalCase convention unless overridden with
// [StringDescriptor.StructField] (or its equivalent on the other builders):
//
//	field.Int64("user_id")    // DB: user_id, Go struct field: UserID
//	field.String("email")     // DB: email, Go struct field: Email
//
// # Field types
//
//	field.String("name")
//	field.Text("description")      // unbounded TEXT
//	field.Int64("count")
//	field.Float64("price")
//	field.Bool("is_active")
//	field.Time("created_at")
//	field.Duration("ttl")
//	field.UUID("id")
//	field.Enum("status").Values("pending", "active", "inactive")
//	field.Bytes("data")
//	field.Decimal("amount")
//
// # Options
//
//	field.String("email").
//		Unique().              // unique constraint
//		Optional().            // NULL-able column, not required on create
//		Immutable().           // rejected on update
//		Default("unknown").    // literal or func() T default
//		Comment("user email")
//
// # Validators
//
//	field.String("name").NotEmpty().MaxLen(100)
//	field.String("email").Match(emailRegex)
//	field.Int64("age").Positive().Max(150)
//	field.Int64("rating").Range(1, 5)
//
// # Lifecycle roles
//
// Fields carrying a [Role] (normally attached by a [schema/mixin] built-in
// rather than by hand) are how the entity mapping builder recognizes the
// version/soft-delete/expiry/audit columns described in the specification,
// without relying on a class hierarchy — see [schema/mixin].
package field
