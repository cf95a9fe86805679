package inspect

import (
	"fmt"
	"strings"

	"ariga.io/atlas/sql/schema"
)

// ValidationError reports a single structural problem found while comparing
// or checking schema.Table values.
type ValidationError struct {
	Table   string
	Column  string
	Message string
	// Breaking marks a change that can fail against an existing database
	// with data already in it.
	Breaking bool
}

func (e *ValidationError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("%s.%s: %s", e.Table, e.Column, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Table, e.Message)
}

// ValidationResult holds the results of a validation pass.
type ValidationResult struct {
	Errors   []*ValidationError
	Warnings []*ValidationError
}

// HasErrors reports whether any validation errors were recorded.
func (r *ValidationResult) HasErrors() bool { return len(r.Errors) > 0 }

// HasWarnings reports whether any validation warnings were recorded.
func (r *ValidationResult) HasWarnings() bool { return len(r.Warnings) > 0 }

// HasBreakingChanges reports whether any recorded error or warning is marked
// breaking.
func (r *ValidationResult) HasBreakingChanges() bool {
	for _, e := range r.Errors {
		if e.Breaking {
			return true
		}
	}
	for _, w := range r.Warnings {
		if w.Breaking {
			return true
		}
	}
	return false
}

// String renders a human-readable summary of the result.
func (r *ValidationResult) String() string {
	var sb strings.Builder
	if len(r.Errors) > 0 {
		sb.WriteString("Errors:\n")
		for _, e := range r.Errors {
			sb.WriteString("  - ")
			sb.WriteString(e.Error())
			if e.Breaking {
				sb.WriteString(" [BREAKING]")
			}
			sb.WriteString("\n")
		}
	}
	if len(r.Warnings) > 0 {
		sb.WriteString("Warnings:\n")
		for _, w := range r.Warnings {
			sb.WriteString("  - ")
			sb.WriteString(w.Error())
			if w.Breaking {
				sb.WriteString(" [BREAKING]")
			}
			sb.WriteString("\n")
		}
	}
	if !r.HasErrors() && !r.HasWarnings() {
		sb.WriteString("No issues found")
	}
	return sb.String()
}

// ValidateOption configures ValidateDiff.
type ValidateOption func(*validateConfig)

type validateConfig struct {
	allowDropColumn    bool
	allowDropTable     bool
	allowDropIndex     bool
	allowNullToNotNull bool
}

// AllowDropColumn downgrades a dropped-column error to a warning.
func AllowDropColumn() ValidateOption {
	return func(c *validateConfig) { c.allowDropColumn = true }
}

// AllowDropTable downgrades a dropped-table error to a warning.
func AllowDropTable() ValidateOption {
	return func(c *validateConfig) { c.allowDropTable = true }
}

// AllowDropIndex downgrades a dropped-index error to a warning.
func AllowDropIndex() ValidateOption {
	return func(c *validateConfig) { c.allowDropIndex = true }
}

// AllowNullToNotNull downgrades a nullable-to-required column error to a
// warning.
func AllowNullToNotNull() ValidateOption {
	return func(c *validateConfig) { c.allowNullToNotNull = true }
}

// ValidateDiff compares the live (current) table set against the mapping-
// derived (desired) set and reports changes a migration from current to
// desired would need to make, flagging the ones that can fail against a
// populated table as breaking. Schema Inspector callers run this before
// handing a synthesized DDL batch (component C) to AllowSchemaEvolution
// callers.
func ValidateDiff(current, desired []*schema.Table, opts ...ValidateOption) *ValidationResult {
	cfg := &validateConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	result := &ValidationResult{}
	currentMap := make(map[string]*schema.Table, len(current))
	for _, t := range current {
		currentMap[t.Name] = t
	}
	desiredMap := make(map[string]*schema.Table, len(desired))
	for _, t := range desired {
		desiredMap[t.Name] = t
	}

	for name := range currentMap {
		if _, ok := desiredMap[name]; !ok {
			flag(result, cfg.allowDropTable, &ValidationError{
				Table: name, Message: "table will be dropped", Breaking: true,
			})
		}
	}

	for name, want := range desiredMap {
		have, exists := currentMap[name]
		if !exists {
			continue // new table, nothing to diff against
		}
		validateTableDiff(have, want, cfg, result)
	}

	return result
}

func flag(result *ValidationResult, allowed bool, err *ValidationError) {
	if allowed {
		result.Warnings = append(result.Warnings, err)
		return
	}
	result.Errors = append(result.Errors, err)
}

func validateTableDiff(current, desired *schema.Table, cfg *validateConfig, result *ValidationResult) {
	currentCols := make(map[string]*schema.Column, len(current.Columns))
	for _, c := range current.Columns {
		currentCols[c.Name] = c
	}

	for name := range currentCols {
		if _, ok := desired.Column(name); !ok {
			flag(result, cfg.allowDropColumn, &ValidationError{
				Table: current.Name, Column: name, Message: "column will be dropped", Breaking: true,
			})
		}
	}

	for _, wantCol := range desired.Columns {
		haveCol, exists := currentCols[wantCol.Name]
		if !exists {
			if !wantCol.Type.Null && wantCol.Default == nil {
				result.Warnings = append(result.Warnings, &ValidationError{
					Table: current.Name, Column: wantCol.Name,
					Message: "new NOT NULL column without default value may fail if table has data",
				})
			}
			continue
		}

		if haveCol.Type.Type != wantCol.Type.Type {
			result.Warnings = append(result.Warnings, &ValidationError{
				Table: current.Name, Column: wantCol.Name,
				Message: fmt.Sprintf("column type changing from %v to %v", haveCol.Type.Type, wantCol.Type.Type),
			})
		}

		if haveCol.Type.Null && !wantCol.Type.Null {
			flag(result, cfg.allowNullToNotNull, &ValidationError{
				Table: current.Name, Column: wantCol.Name,
				Message: "column changing from NULL to NOT NULL may fail if column has NULL values", Breaking: true,
			})
		}

		if haveSize, haveOK := stringSize(haveCol.Type.Type); haveOK {
			if wantSize, wantOK := stringSize(wantCol.Type.Type); wantOK && wantSize > 0 && wantSize < haveSize {
				result.Warnings = append(result.Warnings, &ValidationError{
					Table: current.Name, Column: wantCol.Name,
					Message: fmt.Sprintf("column size reducing from %d to %d may truncate data", haveSize, wantSize),
				})
			}
		}

		if !columnIsUnique(current, haveCol) && columnIsUnique(desired, wantCol) {
			result.Warnings = append(result.Warnings, &ValidationError{
				Table: current.Name, Column: wantCol.Name,
				Message: "adding UNIQUE constraint may fail if duplicate values exist",
			})
		}
	}

	currentIdxs := make(map[string]*schema.Index, len(current.Indexes))
	for _, idx := range current.Indexes {
		currentIdxs[idx.Name] = idx
	}
	for name := range currentIdxs {
		found := false
		for _, idx := range desired.Indexes {
			if idx.Name == name {
				found = true
				break
			}
		}
		if !found {
			flag(result, cfg.allowDropIndex, &ValidationError{
				Table: current.Name, Message: fmt.Sprintf("index %q will be dropped", name),
			})
		}
	}
}

func stringSize(t schema.Type) (int64, bool) {
	s, ok := t.(*schema.StringType)
	if !ok {
		return 0, false
	}
	return s.Size, true
}

func columnIsUnique(t *schema.Table, c *schema.Column) bool {
	for _, idx := range t.Indexes {
		if !idx.Unique || len(idx.Parts) != 1 {
			continue
		}
		if idx.Parts[0].C == c {
			return true
		}
	}
	return false
}

// ValidateTable checks a single table definition for internal consistency
// (duplicate names, dangling references) independent of any prior schema
// version.
func ValidateTable(t *schema.Table) *ValidationResult {
	result := &ValidationResult{}

	if t.PrimaryKey == nil || len(t.PrimaryKey.Parts) == 0 {
		result.Warnings = append(result.Warnings, &ValidationError{
			Table: t.Name, Message: "table has no primary key",
		})
	}

	colNames := make(map[string]bool)
	for _, c := range t.Columns {
		if colNames[c.Name] {
			result.Errors = append(result.Errors, &ValidationError{
				Table: t.Name, Column: c.Name, Message: "duplicate column name",
			})
		}
		colNames[c.Name] = true
	}

	idxNames := make(map[string]bool)
	for _, idx := range t.Indexes {
		if idxNames[idx.Name] {
			result.Errors = append(result.Errors, &ValidationError{
				Table: t.Name, Message: fmt.Sprintf("duplicate index name: %s", idx.Name),
			})
		}
		idxNames[idx.Name] = true

		for _, part := range idx.Parts {
			if part.C != nil && !colNames[part.C.Name] {
				result.Errors = append(result.Errors, &ValidationError{
					Table: t.Name, Message: fmt.Sprintf("index %q references non-existent column %q", idx.Name, part.C.Name),
				})
			}
		}
	}

	for _, fk := range t.ForeignKeys {
		for _, c := range fk.Columns {
			if !colNames[c.Name] {
				result.Errors = append(result.Errors, &ValidationError{
					Table: t.Name, Message: fmt.Sprintf("foreign key references non-existent column %q", c.Name),
				})
			}
		}
	}

	return result
}

// ValidateSchema validates every table in a set and cross-checks foreign key
// references against table names present in the set.
func ValidateSchema(tables []*schema.Table) *ValidationResult {
	result := &ValidationResult{}

	tableNames := make(map[string]bool)
	for _, t := range tables {
		if tableNames[t.Name] {
			result.Errors = append(result.Errors, &ValidationError{
				Table: t.Name, Message: "duplicate table name",
			})
		}
		tableNames[t.Name] = true

		tr := ValidateTable(t)
		result.Errors = append(result.Errors, tr.Errors...)
		result.Warnings = append(result.Warnings, tr.Warnings...)
	}

	for _, t := range tables {
		for _, fk := range t.ForeignKeys {
			if fk.RefTable != nil && !tableNames[fk.RefTable.Name] {
				result.Errors = append(result.Errors, &ValidationError{
					Table: t.Name, Message: fmt.Sprintf("foreign key references non-existent table %q", fk.RefTable.Name),
				})
			}
		}
	}

	return result
}
