package repository

import (
	"context"
	"fmt"
	"reflect"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/relstore/relstore"
	"github.com/relstore/relstore/dialect"
	sqld "github.com/relstore/relstore/dialect/sql"
	"github.com/relstore/relstore/predicate"
	"github.com/relstore/relstore/retry"
	"github.com/relstore/relstore/schema/field"
)

// Mapping returns the repository's [relstore.EntityMapping], for callers
// (the bulk pipeline, the purge engine) that need the column list or
// lifecycle roles without reaching into the repository's private state.
func (r *Repository[T, K]) Mapping() *relstore.EntityMapping { return r.mapping }

// Driver returns the repository's underlying dialect driver, for callers
// that need the driver itself rather than the CRUD engine (the purge
// engine's delete transaction, the schema inspector's PRAGMA reads).
func (r *Repository[T, K]) Driver() dialect.Driver { return r.driver }

// Dialect returns the repository's dialect adapter.
func (r *Repository[T, K]) Dialect() dialect.Dialect { return r.dialect }

// RetryPolicy returns the retry policy guarding every statement this
// repository issues, so collaborating components (bulk, purge) retry raw
// statements under the same policy.
func (r *Repository[T, K]) RetryPolicy() retry.Policy { return r.retryPolicy() }

// AllowSchemaEvolution reports whether this repository was opened with
// [WithSchemaEvolution](true).
func (r *Repository[T, K]) AllowSchemaEvolution() bool { return r.allowSchemaEvolution }

// IDColumnName returns the name of the non-Version primary-key column
// callers address through K — as opposed to [relstore.EntityMapping.PrimaryKey],
// which for a versioned entity also includes the Version column.
func (r *Repository[T, K]) IDColumnName() string { return r.idColumn.Name }

// IDOf extracts entity's logical identifier.
func (r *Repository[T, K]) IDOf(entity *T) (K, error) { return r.getID(entity) }

// VersionOf returns entity's Version column value, or 0 if the mapping has
// none.
func (r *Repository[T, K]) VersionOf(entity *T) int64 { return r.getVersion(entity) }

// ToRow flattens entity into a column-name-keyed map of Go-native values —
// the same values [Repository.columnArgs] would hand the dialect adapter,
// before the on-wire [dialect.Dialect.ConvertParameterValue] conversion. The
// bulk pipeline (component G) uses this as the common representation it
// serializes to JSON/CSV.
func (r *Repository[T, K]) ToRow(entity *T) map[string]any {
	row := make(map[string]any, len(r.mapping.Columns))
	for i := range r.mapping.Columns {
		cm := &r.mapping.Columns[i]
		row[cm.Name] = r.fieldValue(entity, cm)
	}
	return row
}

// FromRow builds a *T from a column-name-keyed map of values, coercing each
// value into the Go type the mapped field expects (spec §4.G: rows arrive
// from JSON, where temporal/duration/uuid columns decode as plain strings
// or numbers, and from CSV, where every value starts out as a string).
// Columns absent from row are left at T's zero value.
func (r *Repository[T, K]) FromRow(row map[string]any) (*T, error) {
	entity := new(T)
	for i := range r.mapping.Columns {
		cm := &r.mapping.Columns[i]
		raw, ok := row[cm.Name]
		if !ok || raw == nil {
			continue
		}
		v, err := coerce(cm.Type, raw)
		if err != nil {
			return nil, fmt.Errorf("repository: column %q: %w", cm.Name, err)
		}
		fv := reflect.ValueOf(entity).Elem().FieldByIndex(r.fields[cm.Name])
		if fv.Kind() == reflect.Pointer {
			ptr := reflect.New(fv.Type().Elem())
			ptr.Elem().Set(reflect.ValueOf(v))
			fv.Set(ptr)
			continue
		}
		fv.Set(reflect.ValueOf(v))
	}
	return entity, nil
}

// coerce converts a value decoded from JSON or read as a CSV string field
// into ft's canonical Go representation.
func coerce(ft field.Type, raw any) (any, error) {
	switch ft {
	case field.TypeTime:
		switch v := raw.(type) {
		case time.Time:
			return v, nil
		case string:
			t, err := time.Parse(time.RFC3339Nano, v)
			if err != nil {
				return nil, err
			}
			return t, nil
		}
	case field.TypeDuration:
		switch v := raw.(type) {
		case time.Duration:
			return v, nil
		case float64:
			return time.Duration(v) * time.Second, nil
		case string:
			secs, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return nil, err
			}
			return time.Duration(secs * float64(time.Second)), nil
		}
	case field.TypeUUID:
		switch v := raw.(type) {
		case uuid.UUID:
			return v, nil
		case string:
			return uuid.Parse(v)
		}
	case field.TypeBool:
		switch v := raw.(type) {
		case bool:
			return v, nil
		case float64:
			return v != 0, nil
		case string:
			return strconv.ParseBool(v)
		}
	case field.TypeInt8, field.TypeInt16, field.TypeInt32, field.TypeInt64:
		switch v := raw.(type) {
		case int64:
			return v, nil
		case float64:
			return int64(v), nil
		case string:
			return strconv.ParseInt(v, 10, 64)
		}
	case field.TypeFloat32, field.TypeFloat64, field.TypeDecimal:
		switch v := raw.(type) {
		case float64:
			return v, nil
		case string:
			return strconv.ParseFloat(v, 64)
		}
	case field.TypeBytes:
		if b, ok := raw.([]byte); ok {
			return b, nil
		}
	default: // string/text/enum
		if s, ok := raw.(string); ok {
			return s, nil
		}
	}
	return nil, fmt.Errorf("cannot coerce %T into a %s value", raw, ft)
}

// Upsert inserts entity, replacing any existing row with the same primary
// key (spec §4.G ImportOptions.Strategy=Upsert). Unlike [Repository.Create]
// it bypasses the optimistic-concurrency check entirely — it's a bulk-load
// primitive, not a versioned write — but it still stamps the lifecycle
// columns a row lacks (a fresh row from an import source that never saw
// this store before): Version=1 when entity carries no version,
// CreationTime when unset, AbsoluteExpiration when unset and the entity
// type has an ExpirySpan, and LastWriteTime/ModifiedBy on every call.
func (r *Repository[T, K]) Upsert(ctx context.Context, entity *T, caller string) (*T, error) {
	if r.getVersion(entity) == 0 {
		r.setVersion(entity, 1)
	}
	now := r.now()
	if r.mapping.Audit.CreationTime != nil {
		if ct, _ := r.fieldValue(entity, r.mapping.Audit.CreationTime).(time.Time); ct.IsZero() {
			r.setCreationTime(entity, now)
		}
	}
	r.setLastWriteTime(entity, now)
	r.setModifiedBy(entity, caller)
	if r.expirable() && r.mapping.ExpirySpan > 0 && r.fieldValue(entity, r.mapping.Audit.AbsoluteExpiration) == nil {
		r.setAbsoluteExpiration(entity, now.Add(r.mapping.ExpirySpan))
	}
	if err := r.validateEntity(entity); err != nil {
		return nil, err
	}

	cols := r.writableColumns(true)
	query := r.upsertSQL(cols)
	args := r.columnArgs(entity, cols)

	err := r.retryPolicy().Do(ctx, "upsert", func(ctx context.Context) error {
		return r.driver.Exec(ctx, query, args, nil)
	})
	if err != nil {
		return nil, relstore.NewWriteError(r.mapping.TableName, "upsert", err)
	}
	return entity, nil
}

func (r *Repository[T, K]) upsertSQL(cols []*relstore.ColumnMapping) string {
	names := make([]string, len(cols))
	placeholders := make([]string, len(cols))
	for i, cm := range cols {
		names[i] = r.dialect.EscapeIdentifier(cm.Name)
		placeholders[i] = r.dialect.Placeholder(i + 1)
	}
	return fmt.Sprintf("INSERT OR REPLACE INTO %s (%s) VALUES (%s)",
		r.dialect.EscapeIdentifier(r.mapping.TableName), joinComma(names), joinComma(placeholders))
}

// QueryAll runs pred with the full set of read-filter overrides the bulk
// pipeline's export filters need (spec §4.G "Filters additionally recognize
// IncludeDeleted, IncludeAllVersions, IncludeExpired") — a superset of what
// [Repository.Query] exposes, since ordinary CRUD callers never want
// version history.
func (r *Repository[T, K]) QueryAll(ctx context.Context, pred predicate.Expr, order []predicate.OrderTerm, includeAllVersions, includeDeleted, includeExpired bool, skip, take int) ([]*T, error) {
	f := readFilter{latestOnly: !includeAllVersions, includeDeleted: includeDeleted, includeExpired: includeExpired}
	return r.runQuery(ctx, pred, order, f, skip, take)
}

// Exec runs a raw statement through the repository's driver, under its
// retry policy — the escape hatch [bulk] and [purge] use
// for ALTER TABLE (schema evolution) and VACUUM (storage compaction), which
// the CRUD engine has no vocabulary for.
func (r *Repository[T, K]) Exec(ctx context.Context, opName, query string, args []any) error {
	return r.retryPolicy().Do(ctx, opName, func(ctx context.Context) error {
		return r.driver.Exec(ctx, query, args, nil)
	})
}

// QueryRaw runs a raw SELECT (or PRAGMA) under the retry policy and hands
// back its rows, for callers (the purge engine's count, preview and
// database-file lookups) that don't fit the Repository's entity-shaped
// query surface.
func (r *Repository[T, K]) QueryRaw(ctx context.Context, opName, query string, args []any) (sqld.Rows, error) {
	var rows sqld.Rows
	err := r.retryPolicy().Do(ctx, opName, func(ctx context.Context) error {
		return r.driver.Query(ctx, query, args, &rows)
	})
	return rows, err
}

func joinComma(ss []string) string {
	out := ""
	for i, s := range ss {
		if i > 0 {
			out += ", "
		}
		out += s
	}
	return out
}
