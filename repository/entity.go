package repository

import (
	"fmt"
	"reflect"
	"time"

	"github.com/google/uuid"

	"github.com/relstore/relstore"
)

var (
	timeType     = reflect.TypeOf(time.Time{})
	durationType = reflect.TypeOf(time.Duration(0))
	uuidType     = reflect.TypeOf(uuid.UUID{})
)

// fieldValue returns the column's Go value out of entity (a non-nil pointer
// to T), in its Go-native form — [dialect.Dialect.ConvertParameterValue]
// (applied by the caller just before binding) does the on-wire conversion.
func (r *Repository[T, K]) fieldValue(entity *T, cm *relstore.ColumnMapping) any {
	v := reflect.ValueOf(entity).Elem().FieldByIndex(r.fields[cm.Name])
	if v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return nil
		}
		return v.Elem().Interface()
	}
	return v.Interface()
}

// setFieldValue assigns raw (as scanned back from the driver) into entity's
// field for cm, converting between SQLite's limited storage-class set and
// T's declared Go type.
func (r *Repository[T, K]) setFieldValue(entity *T, cm *relstore.ColumnMapping, raw any) error {
	fv := reflect.ValueOf(entity).Elem().FieldByIndex(r.fields[cm.Name])

	if raw == nil {
		fv.Set(reflect.Zero(fv.Type()))
		return nil
	}

	target := fv
	if fv.Kind() == reflect.Pointer {
		target = reflect.New(fv.Type().Elem()).Elem()
	}

	if err := assignScanned(target, cm, raw); err != nil {
		return fmt.Errorf("repository: column %q: %w", cm.Name, err)
	}

	if fv.Kind() == reflect.Pointer {
		fv.Set(target.Addr())
	}
	return nil
}

// assignScanned converts a raw driver-scanned value (one of the handful of
// storage classes modernc.org/sqlite returns: int64, float64, string,
// []byte, bool) into target, whose type is dictated by cm.Type.
func assignScanned(target reflect.Value, cm *relstore.ColumnMapping, raw any) error {
	switch target.Type() {
	case timeType:
		s, ok := raw.(string)
		if !ok {
			return fmt.Errorf("expected ISO-8601 text for a temporal column, got %T", raw)
		}
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return fmt.Errorf("parsing temporal value %q: %w", s, err)
		}
		target.Set(reflect.ValueOf(t))
		return nil
	case durationType:
		secs, err := asInt64(raw)
		if err != nil {
			return err
		}
		target.Set(reflect.ValueOf(time.Duration(secs) * time.Second))
		return nil
	case uuidType:
		s, ok := raw.(string)
		if !ok {
			return fmt.Errorf("expected text for a uuid column, got %T", raw)
		}
		u, err := uuid.Parse(s)
		if err != nil {
			return fmt.Errorf("parsing uuid %q: %w", s, err)
		}
		target.Set(reflect.ValueOf(u))
		return nil
	}

	switch target.Kind() {
	case reflect.Bool:
		n, err := asInt64(raw)
		if err != nil {
			return err
		}
		target.SetBool(n != 0)
		return nil
	case reflect.String:
		s, ok := raw.(string)
		if !ok {
			return fmt.Errorf("expected text, got %T", raw)
		}
		target.SetString(s)
		return nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := asInt64(raw)
		if err != nil {
			return err
		}
		target.SetInt(n)
		return nil
	case reflect.Float32, reflect.Float64:
		f, err := asFloat64(raw)
		if err != nil {
			return err
		}
		target.SetFloat(f)
		return nil
	case reflect.Slice:
		if target.Type().Elem().Kind() == reflect.Uint8 {
			b, ok := raw.([]byte)
			if !ok {
				return fmt.Errorf("expected bytes, got %T", raw)
			}
			target.SetBytes(b)
			return nil
		}
		return fmt.Errorf("unsupported slice field type %s for column type %s", target.Type(), cm.Type)
	default:
		return fmt.Errorf("unsupported field kind %s for column type %s", target.Kind(), cm.Type)
	}
}

func asInt64(raw any) (int64, error) {
	switch v := raw.(type) {
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case float64:
		return int64(v), nil
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	default:
		return 0, fmt.Errorf("expected an integer-compatible value, got %T", raw)
	}
}

func asFloat64(raw any) (float64, error) {
	switch v := raw.(type) {
	case float64:
		return v, nil
	case int64:
		return float64(v), nil
	default:
		return 0, fmt.Errorf("expected a float-compatible value, got %T", raw)
	}
}

// writableColumns returns every mapped column to include in an INSERT.
// withAutoIncr must be false only for the very first row of an entity (the
// store assigns the id); every later version row of a soft-deleted entity
// carries the same id forward explicitly, so it needs the auto-increment
// column back in the list.
func (r *Repository[T, K]) writableColumns(withAutoIncr bool) []*relstore.ColumnMapping {
	cols := make([]*relstore.ColumnMapping, 0, len(r.mapping.Columns))
	for i := range r.mapping.Columns {
		cm := &r.mapping.Columns[i]
		if cm.IsAutoIncr && !withAutoIncr {
			continue
		}
		cols = append(cols, cm)
	}
	return cols
}

// getID extracts the repository's identifier column value from entity and
// converts it to K.
func (r *Repository[T, K]) getID(entity *T) (K, error) {
	var zero K
	v := r.fieldValue(entity, r.idColumn)
	if v == nil {
		return zero, fmt.Errorf("repository: entity has a nil identifier")
	}
	k, ok := v.(K)
	if !ok {
		return zero, fmt.Errorf("repository: identifier column %q holds %T, not %T", r.idColumn.Name, v, zero)
	}
	return k, nil
}

// setID assigns id into entity's identifier field.
func (r *Repository[T, K]) setID(entity *T, id K) {
	fv := reflect.ValueOf(entity).Elem().FieldByIndex(r.fields[r.idColumn.Name])
	fv.Set(reflect.ValueOf(id))
}

// getVersion/setVersion access the optimistic-concurrency column; both
// panic-free no-ops when the mapping has no Version column, since callers
// guard with r.softDelete() before using them in that case — except
// getVersion, which Update/Delete also need when Version exists without
// soft-delete (every versioned row, deleted or not, still carries Version).
func (r *Repository[T, K]) getVersion(entity *T) int64 {
	if r.mapping.Audit.Version == nil {
		return 0
	}
	v := r.fieldValue(entity, r.mapping.Audit.Version)
	n, _ := asInt64(v)
	return n
}

func (r *Repository[T, K]) setVersion(entity *T, version int64) {
	if r.mapping.Audit.Version == nil {
		return
	}
	fv := reflect.ValueOf(entity).Elem().FieldByIndex(r.fields[r.mapping.Audit.Version.Name])
	fv.SetInt(version)
}

func (r *Repository[T, K]) setIsDeleted(entity *T, deleted bool) {
	if r.mapping.Audit.IsDeleted == nil {
		return
	}
	fv := reflect.ValueOf(entity).Elem().FieldByIndex(r.fields[r.mapping.Audit.IsDeleted.Name])
	fv.SetBool(deleted)
}

func (r *Repository[T, K]) setCreationTime(entity *T, t time.Time) {
	if r.mapping.Audit.CreationTime == nil {
		return
	}
	fv := reflect.ValueOf(entity).Elem().FieldByIndex(r.fields[r.mapping.Audit.CreationTime.Name])
	fv.Set(reflect.ValueOf(t))
}

func (r *Repository[T, K]) setLastWriteTime(entity *T, t time.Time) {
	if r.mapping.Audit.LastWriteTime == nil {
		return
	}
	fv := reflect.ValueOf(entity).Elem().FieldByIndex(r.fields[r.mapping.Audit.LastWriteTime.Name])
	fv.Set(reflect.ValueOf(t))
}

func (r *Repository[T, K]) setAbsoluteExpiration(entity *T, t time.Time) {
	if r.mapping.Audit.AbsoluteExpiration == nil {
		return
	}
	fv := reflect.ValueOf(entity).Elem().FieldByIndex(r.fields[r.mapping.Audit.AbsoluteExpiration.Name])
	if fv.Kind() == reflect.Pointer {
		fv.Set(reflect.ValueOf(&t))
		return
	}
	fv.Set(reflect.ValueOf(t))
}

func (r *Repository[T, K]) setCreatedBy(entity *T, caller string) {
	if r.mapping.Audit.CreatedBy == nil || caller == "" {
		return
	}
	fv := reflect.ValueOf(entity).Elem().FieldByIndex(r.fields[r.mapping.Audit.CreatedBy.Name])
	setStringField(fv, caller)
}

func (r *Repository[T, K]) setModifiedBy(entity *T, caller string) {
	if r.mapping.Audit.ModifiedBy == nil || caller == "" {
		return
	}
	fv := reflect.ValueOf(entity).Elem().FieldByIndex(r.fields[r.mapping.Audit.ModifiedBy.Name])
	setStringField(fv, caller)
}

func setStringField(fv reflect.Value, s string) {
	if fv.Kind() == reflect.Pointer {
		fv.Set(reflect.ValueOf(&s))
		return
	}
	fv.SetString(s)
}

// scanRow fills a freshly-allocated *T from one result row, whose columns
// arrived in colNames order (as reported by the driver, which for
// modernc.org/sqlite is the bare column name rather than quoted SQL text).
func (r *Repository[T, K]) scanRow(colNames []string, values []any) (*T, error) {
	entity := new(T)
	for i, name := range colNames {
		cm, ok := r.mapping.ColumnByName(name)
		if !ok {
			continue
		}
		if err := r.setFieldValue(entity, cm, values[i]); err != nil {
			return nil, err
		}
	}
	return entity, nil
}
