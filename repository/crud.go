package repository

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/relstore/relstore"
	sqld "github.com/relstore/relstore/dialect/sql"
)

// Create stamps entity's lifecycle columns (Version=1, CreationTime=
// LastWriteTime=now, expiry if configured) and inserts it (spec §4.F
// "create"). entity is returned with any auto-increment id populated.
func (r *Repository[T, K]) Create(ctx context.Context, entity *T, caller string) (*T, error) {
	if entity == nil {
		return nil, fmt.Errorf("repository: create: entity must not be nil")
	}

	now := r.now()
	r.setVersion(entity, 1)
	r.setIsDeleted(entity, false)
	r.setCreationTime(entity, now)
	r.setLastWriteTime(entity, now)
	if r.expirable() && r.mapping.ExpirySpan > 0 {
		r.setAbsoluteExpiration(entity, now.Add(r.mapping.ExpirySpan))
	}
	r.setCreatedBy(entity, caller)
	r.setModifiedBy(entity, caller)

	if err := r.validateEntity(entity); err != nil {
		return nil, err
	}

	cols := r.writableColumns(false)
	query := r.insertSQL(cols)
	args := r.columnArgs(entity, cols)

	var res sqld.Result
	err := r.retryPolicy().Do(ctx, "create", func(ctx context.Context) error {
		res = nil
		var out sqld.Result
		if err := r.driver.Exec(ctx, query, args, &out); err != nil {
			return err
		}
		res = out
		return nil
	})
	if err != nil {
		if isConstraintViolation(err) {
			id, _ := r.getID(entity)
			return nil, relstore.NewAlreadyExistsError(r.mapping.TableName, id)
		}
		return nil, relstore.NewWriteError(r.mapping.TableName, "create", err)
	}

	r.applyAutoIncrID(entity, res)
	return entity, nil
}

// CreateBatch inserts entities in chunks of batchSize (default 1000, spec
// §4.F "create_batch"). Each chunk runs in one transaction; a failure
// anywhere in a chunk rolls that chunk back and aborts the whole batch —
// chunks already committed before the failing one stay committed (spec §5
// "Ordering guarantees": "atomic per chunk, not across chunks").
func (r *Repository[T, K]) CreateBatch(ctx context.Context, entities []*T, caller string, batchSize int) ([]*T, error) {
	if batchSize <= 0 {
		batchSize = 1000
	}
	cols := r.writableColumns(false)
	query := r.insertSQL(cols)
	created := make([]*T, 0, len(entities))

	for start := 0; start < len(entities); start += batchSize {
		end := min(start+batchSize, len(entities))
		chunk := entities[start:end]

		now := r.now()
		for _, e := range chunk {
			r.setVersion(e, 1)
			r.setIsDeleted(e, false)
			r.setCreationTime(e, now)
			r.setLastWriteTime(e, now)
			if r.expirable() && r.mapping.ExpirySpan > 0 {
				r.setAbsoluteExpiration(e, now.Add(r.mapping.ExpirySpan))
			}
			r.setCreatedBy(e, caller)
			r.setModifiedBy(e, caller)
			if verr := r.validateEntity(e); verr != nil {
				return created, relstore.NewAggregateError(verr)
			}
		}

		var chunkErr error
		err := r.retryPolicy().Do(ctx, "create_batch", func(ctx context.Context) error {
			tx, terr := r.driver.Tx(ctx)
			if terr != nil {
				return terr
			}
			for _, e := range chunk {
				args := r.columnArgs(e, cols)
				var res sqld.Result
				if eerr := tx.Exec(ctx, query, args, &res); eerr != nil {
					if isConstraintViolation(eerr) {
						id, _ := r.getID(e)
						chunkErr = relstore.NewAlreadyExistsError(r.mapping.TableName, id)
					} else {
						chunkErr = relstore.NewWriteError(r.mapping.TableName, "create", eerr)
					}
					_ = tx.Rollback()
					return eerr
				}
				r.applyAutoIncrID(e, res)
			}
			return tx.Commit()
		})
		if err != nil {
			if chunkErr == nil {
				chunkErr = relstore.NewWriteError(r.mapping.TableName, "create", err)
			}
			return created, relstore.NewAggregateError(chunkErr)
		}
		created = append(created, chunk...)
	}
	return created, nil
}

// Update requires entity.Version to equal the stored row's Version (spec
// §4.F "update"). With soft-delete enabled, it inserts a new row at
// Version+1 rather than overwriting; the table's (id, Version) primary key
// is the authoritative race guard — a concurrent updater racing from the
// same base Version collides on that insert and surfaces as a
// ConcurrencyConflict. Without soft-delete, the row is updated in place
// under a WHERE id = ? AND Version = ? guard.
func (r *Repository[T, K]) Update(ctx context.Context, entity *T, caller string) (*T, error) {
	if entity == nil {
		return nil, fmt.Errorf("repository: update: entity must not be nil")
	}
	id, err := r.getID(entity)
	if err != nil {
		return nil, err
	}
	oldVersion := r.getVersion(entity)

	if err := r.validateEntity(entity); err != nil {
		return nil, err
	}

	now := r.now()
	r.setModifiedBy(entity, caller)
	r.setLastWriteTime(entity, now)
	newVersion := oldVersion + 1

	if r.softDelete() {
		current, gerr := r.Get(ctx, id, caller)
		if gerr != nil {
			return nil, gerr
		}
		if current == nil {
			return nil, relstore.NewNotFoundError(r.mapping.TableName, id)
		}
		if currentVersion := r.getVersion(current); currentVersion != oldVersion {
			return nil, relstore.NewConflictError(r.mapping.TableName, id, oldVersion, currentVersion)
		}

		r.setVersion(entity, newVersion)
		r.setIsDeleted(entity, false)
		cols := r.writableColumns(true)
		query := r.insertSQL(cols)
		args := r.columnArgs(entity, cols)
		err := r.retryPolicy().Do(ctx, "update", func(ctx context.Context) error {
			return r.driver.Exec(ctx, query, args, nil)
		})
		if err != nil {
			if isConstraintViolation(err) {
				return nil, relstore.NewConflictError(r.mapping.TableName, id, oldVersion, newVersion)
			}
			return nil, relstore.NewWriteError(r.mapping.TableName, "update", err)
		}
		return entity, nil
	}

	r.setVersion(entity, newVersion)
	affected, err := r.updateInPlace(ctx, entity, id, oldVersion)
	if err != nil {
		return nil, relstore.NewWriteError(r.mapping.TableName, "update", err)
	}
	if affected == 0 {
		exists, eerr := r.rowExistsAnyVersion(ctx, id)
		if eerr != nil {
			return nil, eerr
		}
		if !exists {
			return nil, relstore.NewNotFoundError(r.mapping.TableName, id)
		}
		return nil, relstore.NewConflictError(r.mapping.TableName, id, oldVersion, -1)
	}
	return entity, nil
}

// UpdateBatch loads each id, applies transform, and updates with the usual
// version check (spec §4.F "update_batch"). The first failure aborts the
// batch; entities already updated before it stay committed.
func (r *Repository[T, K]) UpdateBatch(ctx context.Context, ids []K, transform func(*T) error, caller string) ([]*T, error) {
	updated := make([]*T, 0, len(ids))
	for _, id := range ids {
		current, err := r.Get(ctx, id, caller)
		if err != nil {
			return updated, relstore.NewAggregateError(err)
		}
		if current == nil {
			return updated, relstore.NewAggregateError(relstore.NewNotFoundError(r.mapping.TableName, id))
		}
		if err := transform(current); err != nil {
			return updated, relstore.NewAggregateError(err)
		}
		result, err := r.Update(ctx, current, caller)
		if err != nil {
			return updated, relstore.NewAggregateError(err)
		}
		updated = append(updated, result)
	}
	return updated, nil
}

// Delete is idempotent — it reports true whether or not id existed (spec
// §4.F "delete"). With soft-delete it writes a tombstone row at Version+1;
// otherwise it removes the row outright.
func (r *Repository[T, K]) Delete(ctx context.Context, id K, caller string) (bool, error) {
	if !r.softDelete() {
		if _, err := r.hardDeleteByID(ctx, id); err != nil {
			return false, relstore.NewWriteError(r.mapping.TableName, "delete", err)
		}
		return true, nil
	}

	current, err := r.Get(ctx, id, caller)
	if err != nil {
		return false, err
	}
	if current == nil {
		return true, nil
	}

	r.setVersion(current, r.getVersion(current)+1)
	r.setIsDeleted(current, true)
	r.setModifiedBy(current, caller)
	r.setLastWriteTime(current, r.now())

	cols := r.writableColumns(true)
	query := r.insertSQL(cols)
	args := r.columnArgs(current, cols)
	err = r.retryPolicy().Do(ctx, "delete", func(ctx context.Context) error {
		return r.driver.Exec(ctx, query, args, nil)
	})
	if err != nil && !isConstraintViolation(err) {
		return false, relstore.NewWriteError(r.mapping.TableName, "delete", err)
	}
	return true, nil
}

// DeleteBatch deletes every id, idempotently, and reports the number of
// rows actually affected (spec §4.F "delete_batch").
func (r *Repository[T, K]) DeleteBatch(ctx context.Context, ids []K, caller string) (int64, error) {
	var affected int64
	for _, id := range ids {
		if r.softDelete() {
			current, err := r.Get(ctx, id, caller)
			if err != nil {
				return affected, err
			}
			if current == nil {
				continue
			}
			if _, err := r.Delete(ctx, id, caller); err != nil {
				return affected, err
			}
			affected++
			continue
		}
		n, err := r.hardDeleteByID(ctx, id)
		if err != nil {
			return affected, relstore.NewWriteError(r.mapping.TableName, "delete", err)
		}
		affected += n
	}
	return affected, nil
}

func (r *Repository[T, K]) columnArgs(entity *T, cols []*relstore.ColumnMapping) []any {
	args := make([]any, len(cols))
	for i, cm := range cols {
		args[i] = r.dialect.ConvertParameterValue(r.fieldValue(entity, cm))
	}
	return args
}

func (r *Repository[T, K]) insertSQL(cols []*relstore.ColumnMapping) string {
	names := make([]string, len(cols))
	placeholders := make([]string, len(cols))
	for i, cm := range cols {
		names[i] = r.dialect.EscapeIdentifier(cm.Name)
		placeholders[i] = r.dialect.Placeholder(i + 1)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		r.dialect.EscapeIdentifier(r.mapping.TableName), strings.Join(names, ", "), strings.Join(placeholders, ", "))
}

// updateInPlace issues `UPDATE table SET ... WHERE id = ? AND version = ?`
// (only reached when soft-delete is disabled) and returns rows affected.
func (r *Repository[T, K]) updateInPlace(ctx context.Context, entity *T, id K, oldVersion int64) (int64, error) {
	cols := r.writableColumns(true)
	setParts := make([]string, 0, len(cols))
	args := make([]any, 0, len(cols)+2)
	n := 1
	for _, cm := range cols {
		if cm.Name == r.idColumn.Name {
			continue
		}
		setParts = append(setParts, fmt.Sprintf("%s = %s", r.dialect.EscapeIdentifier(cm.Name), r.dialect.Placeholder(n)))
		args = append(args, r.dialect.ConvertParameterValue(r.fieldValue(entity, cm)))
		n++
	}

	idCol := r.dialect.EscapeIdentifier(r.idColumn.Name)
	var b strings.Builder
	fmt.Fprintf(&b, "UPDATE %s SET %s WHERE %s = %s",
		r.dialect.EscapeIdentifier(r.mapping.TableName), strings.Join(setParts, ", "), idCol, r.dialect.Placeholder(n))
	args = append(args, r.dialect.ConvertParameterValue(any(id)))
	n++
	if r.mapping.Audit.Version != nil {
		verCol := r.dialect.EscapeIdentifier(r.mapping.Audit.Version.Name)
		fmt.Fprintf(&b, " AND %s = %s", verCol, r.dialect.Placeholder(n))
		args = append(args, oldVersion)
	}
	query := b.String()

	var affected int64
	err := r.retryPolicy().Do(ctx, "update", func(ctx context.Context) error {
		var res sqld.Result
		if err := r.driver.Exec(ctx, query, args, &res); err != nil {
			return err
		}
		n, rerr := res.RowsAffected()
		if rerr != nil {
			return rerr
		}
		affected = n
		return nil
	})
	return affected, err
}

func (r *Repository[T, K]) hardDeleteByID(ctx context.Context, id K) (int64, error) {
	idCol := r.dialect.EscapeIdentifier(r.idColumn.Name)
	query := fmt.Sprintf("DELETE FROM %s WHERE %s = %s",
		r.dialect.EscapeIdentifier(r.mapping.TableName), idCol, r.dialect.Placeholder(1))
	args := []any{r.dialect.ConvertParameterValue(any(id))}

	var affected int64
	err := r.retryPolicy().Do(ctx, "delete", func(ctx context.Context) error {
		var res sqld.Result
		if err := r.driver.Exec(ctx, query, args, &res); err != nil {
			return err
		}
		n, rerr := res.RowsAffected()
		if rerr != nil {
			return rerr
		}
		affected = n
		return nil
	})
	return affected, err
}

func (r *Repository[T, K]) rowExistsAnyVersion(ctx context.Context, id K) (bool, error) {
	idCol := r.dialect.EscapeIdentifier(r.idColumn.Name)
	query := fmt.Sprintf("SELECT 1 FROM %s WHERE %s = %s LIMIT 1",
		r.dialect.EscapeIdentifier(r.mapping.TableName), idCol, r.dialect.Placeholder(1))
	args := []any{r.dialect.ConvertParameterValue(any(id))}

	found := false
	err := r.retryPolicy().Do(ctx, "exists_check", func(ctx context.Context) error {
		var rows sqld.Rows
		if err := r.driver.Query(ctx, query, args, &rows); err != nil {
			return err
		}
		defer rows.Close()
		found = rows.Next()
		return rows.Err()
	})
	return found, err
}

func (r *Repository[T, K]) autoIncrColumn() *relstore.ColumnMapping {
	for i := range r.mapping.Columns {
		if r.mapping.Columns[i].IsAutoIncr {
			return &r.mapping.Columns[i]
		}
	}
	return nil
}

func (r *Repository[T, K]) applyAutoIncrID(entity *T, res sqld.Result) {
	ac := r.autoIncrColumn()
	if ac == nil || res == nil {
		return
	}
	id, err := res.LastInsertId()
	if err != nil {
		return
	}
	fv := reflect.ValueOf(entity).Elem().FieldByIndex(r.fields[ac.Name])
	if fv.CanInt() {
		fv.SetInt(id)
	}
}

// validateEntity runs every mapped column's field.Validator against
// entity's current field value (field.go: "Validator checks a field value
// at create/update time").
func (r *Repository[T, K]) validateEntity(entity *T) error {
	for i := range r.mapping.Columns {
		cm := &r.mapping.Columns[i]
		if len(cm.Validators) == 0 {
			continue
		}
		v := r.fieldValue(entity, cm)
		for _, validator := range cm.Validators {
			if err := validator(v); err != nil {
				return relstore.NewValidationError(r.mapping.TableName, cm.Name, err)
			}
		}
	}
	return nil
}

// isConstraintViolation reports whether err is a primary-key/unique
// constraint failure, detected the same duck-typed way [retry.IsTransient]
// detects SQLite result codes, without importing modernc.org/sqlite's error
// type directly.
func isConstraintViolation(err error) bool {
	const sqliteConstraint = 19 // SQLITE_CONSTRAINT

	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code()&0xff == sqliteConstraint {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "constraint failed") || strings.Contains(msg, "unique constraint")
}
