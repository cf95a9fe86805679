package main

import (
	"strings"
	"unicode"

	"github.com/dave/jennifer/jen"

	"github.com/relstore/relstore"
	"github.com/relstore/relstore/schema/field"
)

const predicatePkg = "github.com/relstore/relstore/predicate"

// fieldWrapper returns the predicate generic field-handle type name for ft,
// or "" if ft has none (Duration/UUID/Bytes columns are addressed
// through predicate.F(name) directly; see predicate/field.go).
func fieldWrapper(ft field.Type) string {
	switch ft {
	case field.TypeString, field.TypeText, field.TypeEnum:
		return "StringField"
	case field.TypeBool:
		return "BoolField"
	case field.TypeInt8, field.TypeInt16, field.TypeInt32, field.TypeInt64:
		return "IntField"
	case field.TypeFloat32, field.TypeFloat64, field.TypeDecimal:
		return "FloatField"
	case field.TypeTime:
		return "TimeField"
	default:
		return ""
	}
}

// fieldsFile builds the jen.File declaring one typed field handle per
// column of m that fieldWrapper recognizes, instantiated over goType —
// e.g. `var Title = predicate.StringField[Task]("title")`.
func fieldsFile(goType string, m *relstore.EntityMapping) *jen.File {
	f := jen.NewFile("main")
	f.HeaderComment("Code generated by relstoregen. DO NOT EDIT.")
	f.Comment(goType + "'s typed column handles, one per mapped column whose")
	f.Comment("abstract type has a generic predicate field wrapper.")
	f.Line()

	for i := range m.Columns {
		cm := &m.Columns[i]
		wrapper := fieldWrapper(cm.Type)
		if wrapper == "" {
			continue
		}
		f.Var().Id(cm.StructField).Op("=").
			Qual(predicatePkg, wrapper).Index(jen.Id(goType)).Call(jen.Lit(cm.Name))
	}
	return f
}

// toSnake converts a PascalCase Go type name into a snake_case file stem,
// the same convention mapping.go's deriveTableName uses for table names.
func toSnake(s string) string {
	var b strings.Builder
	for i, r := range s {
		if unicode.IsUpper(r) && i > 0 {
			b.WriteByte('_')
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}
