package field

import "regexp"

// Type enumerates the abstract column types relstore maps to dialect SQL
// types (spec §6.4).
type Type uint8

// Abstract field types.
const (
	TypeString Type = iota
	TypeText
	TypeBool
	TypeInt8
	TypeInt16
	TypeInt32
	TypeInt64
	TypeFloat32
	TypeFloat64
	TypeDecimal
	TypeTime
	TypeDuration
	TypeUUID
	TypeEnum
	TypeBytes
)

// String returns the type's name, used in error messages and reports.
func (t Type) String() string {
	switch t {
	case TypeString:
		return "string"
	case TypeText:
		return "text"
	case TypeBool:
		return "bool"
	case TypeInt8:
		return "int8"
	case TypeInt16:
		return "int16"
	case TypeInt32:
		return "int32"
	case TypeInt64:
		return "int64"
	case TypeFloat32:
		return "float32"
	case TypeFloat64:
		return "float64"
	case TypeDecimal:
		return "decimal"
	case TypeTime:
		return "time"
	case TypeDuration:
		return "duration"
	case TypeUUID:
		return "uuid"
	case TypeEnum:
		return "enum"
	case TypeBytes:
		return "bytes"
	default:
		return "unknown"
	}
}

// Role tags a field with the semantic, lifecycle-level meaning the CRUD
// engine (component F) looks for, replacing a class-hierarchy "base entity"
// with a capability flag on the column itself (Design Notes, "Polymorphic
// base entity").
type Role uint8

// Recognized lifecycle roles. RoleNone is an ordinary column.
const (
	RoleNone Role = iota
	RolePrimaryKey
	RoleVersion
	RoleIsDeleted
	RoleCreationTime
	RoleLastWriteTime
	RoleAbsoluteExpiration
	RoleIsArchived
	RoleCreatedBy
	RoleModifiedBy
	RoleExportedDate
)

// Validator checks a field value at create/update time and returns a
// descriptive error when invalid.
type Validator func(any) error

// Descriptor is the immutable, declarative description of one column,
// produced by the fluent builders below and consumed by the entity mapping
// builder (component A).
type Descriptor struct {
	Name         string
	Type         Type
	Role         Role
	Size         int
	Precision    int
	Scale        int
	Nullable     bool
	Unique       bool
	Immutable    bool
	AutoIncr     bool
	PrimaryKey   bool
	PKOrder      int
	Default      any
	UpdateDefault any
	Comment      string
	EnumValues   []string
	StructField  string // overrides the PascalCase(Name) convention
	Computed     string // GENERATED ALWAYS AS (<expr>)
	Stored       bool   // computed column persisted (STORED) vs VIRTUAL
	ColumnType   map[string]string // dialect name -> explicit SQL type override
	Validators   []Validator
}

// fieldBuilder is the common embeddable state shared by every typed
// builder; concrete builders (stringBuilder, intBuilder, ...) wrap it and
// expose type-appropriate chain methods.
type fieldBuilder struct {
	d Descriptor
}

func newBuilder(name string, t Type) fieldBuilder {
	return fieldBuilder{d: Descriptor{Name: name, Type: t}}
}

// Descriptor returns the built descriptor. Every concrete builder exposes
// this as its terminal method.
func (b fieldBuilder) Descriptor() Descriptor { return b.d }

// StringDescriptor is the builder returned by [String] and [Text].
type StringDescriptor struct{ fieldBuilder }

// String declares a bounded VARCHAR-like column (default size 255 unless
// overridden, spec §6.4).
func String(name string) *StringDescriptor {
	b := &StringDescriptor{newBuilder(name, TypeString)}
	b.d.Size = 255
	return b
}

// Text declares an unbounded TEXT column.
func Text(name string) *StringDescriptor {
	return &StringDescriptor{newBuilder(name, TypeText)}
}

// Unique marks the column UNIQUE.
func (b *StringDescriptor) Unique() *StringDescriptor { b.d.Unique = true; return b }

// Optional marks the column nullable and not required on create.
func (b *StringDescriptor) Optional() *StringDescriptor { b.d.Nullable = true; return b }

// Immutable rejects the column from update operations.
func (b *StringDescriptor) Immutable() *StringDescriptor { b.d.Immutable = true; return b }

// Default sets a literal or zero-arg-func default value.
func (b *StringDescriptor) Default(v any) *StringDescriptor { b.d.Default = v; return b }

// Comment attaches a column comment surfaced by the schema inspector.
func (b *StringDescriptor) Comment(c string) *StringDescriptor { b.d.Comment = c; return b }

// MaxLen sets the column size and a max-length validator.
func (b *StringDescriptor) MaxLen(n int) *StringDescriptor {
	b.d.Size = n
	max := n
	b.d.Validators = append(b.d.Validators, func(v any) error { return validateMaxLen(v, max) })
	return b
}

// MinLen adds a minimum-length validator.
func (b *StringDescriptor) MinLen(n int) *StringDescriptor {
	min := n
	b.d.Validators = append(b.d.Validators, func(v any) error { return validateMinLen(v, min) })
	return b
}

// NotEmpty rejects the empty string.
func (b *StringDescriptor) NotEmpty() *StringDescriptor {
	b.d.Validators = append(b.d.Validators, validateNotEmpty)
	return b
}

// Match adds a regular-expression validator.
func (b *StringDescriptor) Match(re *regexp.Regexp) *StringDescriptor {
	b.d.Validators = append(b.d.Validators, func(v any) error { return validateMatch(v, re) })
	return b
}

// StructField overrides the Go struct field this column binds to.
func (b *StringDescriptor) StructField(name string) *StringDescriptor {
	b.d.StructField = name
	return b
}

// Role attaches a lifecycle role; only called by schema/mixin built-ins.
func (b *StringDescriptor) Role(r Role) *StringDescriptor { b.d.Role = r; return b }

// SchemaType overrides the SQL type emitted for one or more dialects,
// keyed by dialect name (e.g. "sqlite", "mysql", "postgres").
func (b *StringDescriptor) SchemaType(byDialect map[string]string) *StringDescriptor {
	b.d.ColumnType = byDialect
	return b
}

// BoolDescriptor is the builder returned by [Bool].
type BoolDescriptor struct{ fieldBuilder }

// Bool declares a boolean column, stored 0/1 per spec §6.4.
func Bool(name string) *BoolDescriptor { return &BoolDescriptor{newBuilder(name, TypeBool)} }

func (b *BoolDescriptor) Optional() *BoolDescriptor  { b.d.Nullable = true; return b }
func (b *BoolDescriptor) Default(v bool) *BoolDescriptor { b.d.Default = v; return b }
func (b *BoolDescriptor) Comment(c string) *BoolDescriptor { b.d.Comment = c; return b }
func (b *BoolDescriptor) StructField(name string) *BoolDescriptor {
	b.d.StructField = name
	return b
}

// Role attaches a lifecycle role; only called by schema/mixin built-ins.
func (b *BoolDescriptor) Role(r Role) *BoolDescriptor { b.d.Role = r; return b }

// IntDescriptor is the builder returned by the integer constructors.
type IntDescriptor struct{ fieldBuilder }

func intField(name string, t Type) *IntDescriptor { return &IntDescriptor{newBuilder(name, t)} }

// Int8 declares an 8-bit integer column.
func Int8(name string) *IntDescriptor { return intField(name, TypeInt8) }

// Int16 declares a 16-bit integer column.
func Int16(name string) *IntDescriptor { return intField(name, TypeInt16) }

// Int32 declares a 32-bit integer column.
func Int32(name string) *IntDescriptor { return intField(name, TypeInt32) }

// Int64 declares a 64-bit integer column.
func Int64(name string) *IntDescriptor { return intField(name, TypeInt64) }

// Int is an alias for Int64, the default Go integer width for ids/counters.
func Int(name string) *IntDescriptor { return intField(name, TypeInt64) }

func (b *IntDescriptor) Optional() *IntDescriptor  { b.d.Nullable = true; return b }
func (b *IntDescriptor) Unique() *IntDescriptor    { b.d.Unique = true; return b }
func (b *IntDescriptor) Immutable() *IntDescriptor { b.d.Immutable = true; return b }
func (b *IntDescriptor) Default(v any) *IntDescriptor { b.d.Default = v; return b }
func (b *IntDescriptor) Comment(c string) *IntDescriptor { b.d.Comment = c; return b }
func (b *IntDescriptor) StructField(name string) *IntDescriptor {
	b.d.StructField = name
	return b
}

// Role attaches a lifecycle role; only called by schema/mixin built-ins.
func (b *IntDescriptor) Role(r Role) *IntDescriptor { b.d.Role = r; return b }

// PrimaryKey marks the column (or one column of a composite key) as part
// of the primary key, in the given composite order.
func (b *IntDescriptor) PrimaryKey(order int) *IntDescriptor {
	b.d.PrimaryKey = true
	b.d.PKOrder = order
	return b
}

// AutoIncrement marks a single-column integer primary key as
// auto-incrementing (spec invariant (iv): no additional constraints apply).
func (b *IntDescriptor) AutoIncrement() *IntDescriptor {
	b.d.AutoIncr = true
	b.d.PrimaryKey = true
	return b
}

// Positive rejects zero and negative values.
func (b *IntDescriptor) Positive() *IntDescriptor {
	b.d.Validators = append(b.d.Validators, validatePositiveInt)
	return b
}

// NonNegative rejects negative values.
func (b *IntDescriptor) NonNegative() *IntDescriptor {
	b.d.Validators = append(b.d.Validators, validateNonNegativeInt)
	return b
}

// Min adds a minimum-value validator.
func (b *IntDescriptor) Min(n int64) *IntDescriptor {
	min := n
	b.d.Validators = append(b.d.Validators, func(v any) error { return validateMinInt(v, min) })
	return b
}

// Max adds a maximum-value validator.
func (b *IntDescriptor) Max(n int64) *IntDescriptor {
	max := n
	b.d.Validators = append(b.d.Validators, func(v any) error { return validateMaxInt(v, max) })
	return b
}

// Range adds a [min, max] inclusive-range validator.
func (b *IntDescriptor) Range(min, max int64) *IntDescriptor {
	return b.Min(min).Max(max)
}

// FloatDescriptor is the builder returned by [Float32]/[Float64].
type FloatDescriptor struct{ fieldBuilder }

func floatField(name string, t Type) *FloatDescriptor { return &FloatDescriptor{newBuilder(name, t)} }

// Float32 declares a single-precision floating point column.
func Float32(name string) *FloatDescriptor { return floatField(name, TypeFloat32) }

// Float64 declares a double-precision floating point column.
func Float64(name string) *FloatDescriptor { return floatField(name, TypeFloat64) }

func (b *FloatDescriptor) Optional() *FloatDescriptor  { b.d.Nullable = true; return b }
func (b *FloatDescriptor) Default(v any) *FloatDescriptor { b.d.Default = v; return b }
func (b *FloatDescriptor) Comment(c string) *FloatDescriptor { b.d.Comment = c; return b }
func (b *FloatDescriptor) StructField(name string) *FloatDescriptor {
	b.d.StructField = name
	return b
}
func (b *FloatDescriptor) Positive() *FloatDescriptor {
	b.d.Validators = append(b.d.Validators, validatePositiveFloat)
	return b
}

// DecimalDescriptor is the builder returned by [Decimal].
type DecimalDescriptor struct{ fieldBuilder }

// Decimal declares a fixed-point NUMERIC column (precision 18, scale 2 by
// default, per spec §6.4).
func Decimal(name string) *DecimalDescriptor {
	b := &DecimalDescriptor{newBuilder(name, TypeDecimal)}
	b.d.Precision, b.d.Scale = 18, 2
	return b
}

// Precision sets precision/scale explicitly.
func (b *DecimalDescriptor) Precision(p, s int) *DecimalDescriptor {
	b.d.Precision, b.d.Scale = p, s
	return b
}
func (b *DecimalDescriptor) Optional() *DecimalDescriptor { b.d.Nullable = true; return b }
func (b *DecimalDescriptor) Default(v any) *DecimalDescriptor { b.d.Default = v; return b }
func (b *DecimalDescriptor) StructField(name string) *DecimalDescriptor {
	b.d.StructField = name
	return b
}

// TimeDescriptor is the builder returned by [Time].
type TimeDescriptor struct{ fieldBuilder }

// Time declares a temporal column, stored as an ISO-8601 string (spec
// §6.4).
func Time(name string) *TimeDescriptor { return &TimeDescriptor{newBuilder(name, TypeTime)} }

func (b *TimeDescriptor) Optional() *TimeDescriptor  { b.d.Nullable = true; return b }
func (b *TimeDescriptor) Immutable() *TimeDescriptor { b.d.Immutable = true; return b }
func (b *TimeDescriptor) Default(v any) *TimeDescriptor { b.d.Default = v; return b }
func (b *TimeDescriptor) UpdateDefault(v any) *TimeDescriptor { b.d.UpdateDefault = v; return b }
func (b *TimeDescriptor) Comment(c string) *TimeDescriptor { b.d.Comment = c; return b }
func (b *TimeDescriptor) StructField(name string) *TimeDescriptor {
	b.d.StructField = name
	return b
}

// Role attaches a lifecycle role; only called by schema/mixin built-ins.
func (b *TimeDescriptor) Role(r Role) *TimeDescriptor { b.d.Role = r; return b }

// DurationDescriptor is the builder returned by [Duration].
type DurationDescriptor struct{ fieldBuilder }

// Duration declares a duration column, stored as total seconds (spec
// §6.4).
func Duration(name string) *DurationDescriptor {
	return &DurationDescriptor{newBuilder(name, TypeDuration)}
}

func (b *DurationDescriptor) Optional() *DurationDescriptor { b.d.Nullable = true; return b }
func (b *DurationDescriptor) Default(v any) *DurationDescriptor { b.d.Default = v; return b }
func (b *DurationDescriptor) StructField(name string) *DurationDescriptor {
	b.d.StructField = name
	return b
}

// UUIDDescriptor is the builder returned by [UUID].
type UUIDDescriptor struct{ fieldBuilder }

// UUID declares a UUID column, stored as its hex-string form (spec §6.4).
func UUID(name string) *UUIDDescriptor {
	b := &UUIDDescriptor{newBuilder(name, TypeUUID)}
	b.d.Size = 36
	return b
}

func (b *UUIDDescriptor) Unique() *UUIDDescriptor  { b.d.Unique = true; return b }
func (b *UUIDDescriptor) Optional() *UUIDDescriptor { b.d.Nullable = true; return b }
func (b *UUIDDescriptor) Default(v any) *UUIDDescriptor { b.d.Default = v; return b }
func (b *UUIDDescriptor) PrimaryKey(order int) *UUIDDescriptor {
	b.d.PrimaryKey = true
	b.d.PKOrder = order
	return b
}
func (b *UUIDDescriptor) StructField(name string) *UUIDDescriptor {
	b.d.StructField = name
	return b
}

// EnumDescriptor is the builder returned by [Enum].
type EnumDescriptor struct{ fieldBuilder }

// Enum declares an enumerated column. Storage convention (Open Question,
// resolved in SPEC_FULL.md): the variant name is stored as TEXT.
func Enum(name string) *EnumDescriptor {
	b := &EnumDescriptor{newBuilder(name, TypeEnum)}
	b.d.Size = 50
	return b
}

// Values declares the allowed variant names and installs a membership
// validator.
func (b *EnumDescriptor) Values(values ...string) *EnumDescriptor {
	b.d.EnumValues = values
	b.d.Validators = append(b.d.Validators, func(v any) error { return validateEnum(v, values) })
	return b
}

func (b *EnumDescriptor) Default(v string) *EnumDescriptor { b.d.Default = v; return b }
func (b *EnumDescriptor) Optional() *EnumDescriptor { b.d.Nullable = true; return b }
func (b *EnumDescriptor) StructField(name string) *EnumDescriptor {
	b.d.StructField = name
	return b
}

// BytesDescriptor is the builder returned by [Bytes].
type BytesDescriptor struct{ fieldBuilder }

// Bytes declares a BLOB column.
func Bytes(name string) *BytesDescriptor { return &BytesDescriptor{newBuilder(name, TypeBytes)} }

func (b *BytesDescriptor) Optional() *BytesDescriptor { b.d.Nullable = true; return b }
func (b *BytesDescriptor) StructField(name string) *BytesDescriptor {
	b.d.StructField = name
	return b
}
