package repository

import (
	"context"
	"fmt"
	"strings"

	sqld "github.com/relstore/relstore/dialect/sql"
	"github.com/relstore/relstore/predicate"
)

// Paged is the result of [Repository.QueryPaged] (spec §4.F "query_paged").
type Paged[T any] struct {
	Items      []*T
	PageNumber int
	PageSize   int
	TotalCount int64
	TotalPages int64
}

// readFilter composes the caller's predicate with the repository's default
// soft-delete/expiration filters (spec §4.F "Filtering policy"), plus — for
// a soft-deleted entity type being read at its single "current" row per id
// — a ROW_NUMBER() window restricting to the highest Version per id. The
// window lives in the FROM clause; everything else is a WHERE fragment.
type readFilter struct {
	latestOnly     bool
	includeDeleted bool
	includeExpired bool
}

func (r *Repository[T, K]) fromClause(latestOnly bool) string {
	table := r.dialect.EscapeIdentifier(r.mapping.TableName)
	if !latestOnly || !r.softDelete() {
		return table
	}
	idCol := r.dialect.EscapeIdentifier(r.idColumn.Name)
	verCol := r.dialect.EscapeIdentifier(r.mapping.Audit.Version.Name)
	return fmt.Sprintf(`(SELECT *, ROW_NUMBER() OVER (PARTITION BY %s ORDER BY %s DESC) AS __rn FROM %s) AS __latest`,
		idCol, verCol, table)
}

// whereClause renders the combined boolean fragment (translated predicate
// plus the repository's default filters) and its dialect-bound arguments,
// or ("", nil, nil) if there is no filter at all.
func (r *Repository[T, K]) whereClause(pred predicate.Expr, f readFilter) (string, []any, error) {
	var translated predicate.Expr
	exprs := []predicate.Expr{}
	if pred != nil {
		exprs = append(exprs, pred)
	}
	if r.softDelete() && !f.includeDeleted {
		exprs = append(exprs, predicate.FieldEQ(r.mapping.Audit.IsDeleted.Name, false))
	}
	if len(exprs) > 0 {
		translated = predicate.And(exprs...)
	}

	var sql string
	var params map[string]any
	if translated != nil {
		var err error
		sql, params, err = predicate.Translate(translated, r.mapping, r.dialect)
		if err != nil {
			return "", nil, err
		}
	}

	if r.expirable() && !f.includeExpired {
		col := r.dialect.EscapeIdentifier(r.mapping.Audit.AbsoluteExpiration.Name)
		frag := fmt.Sprintf("(%s IS NULL OR NOT (%s))", col, r.dialect.ExpiryFilter(col))
		sql = andFragment(sql, frag)
	}

	if f.latestOnly && r.softDelete() {
		sql = andFragment(sql, `"__rn" = 1`)
	}

	if sql == "" {
		return "", nil, nil
	}
	finalSQL, args := predicate.Bind(sql, params, r.dialect)
	return finalSQL, args, nil
}

func andFragment(existing, extra string) string {
	if existing == "" {
		return extra
	}
	return fmt.Sprintf("(%s AND %s)", existing, extra)
}

func (r *Repository[T, K]) selectColumnList() string {
	names := make([]string, len(r.mapping.Columns))
	for i := range r.mapping.Columns {
		names[i] = r.dialect.EscapeIdentifier(r.mapping.Columns[i].Name)
	}
	return strings.Join(names, ", ")
}

// runQuery executes a SELECT against the repository's table (optionally
// windowed to the latest row per id), retried per the repository's policy,
// and scans every matching row into a *T.
func (r *Repository[T, K]) runQuery(ctx context.Context, pred predicate.Expr, order []predicate.OrderTerm, f readFilter, skip, take int) ([]*T, error) {
	where, args, err := r.whereClause(pred, f)
	if err != nil {
		return nil, err
	}
	orderSQL, err := predicate.RenderOrderBy(order, r.mapping, r.dialect)
	if err != nil {
		return nil, err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %s", r.selectColumnList(), r.fromClause(f.latestOnly))
	if where != "" {
		fmt.Fprintf(&b, " WHERE %s", where)
	}
	if orderSQL != "" {
		b.WriteByte(' ')
		b.WriteString(orderSQL)
	}
	if paging := predicate.RenderPaging(skip, take); paging != "" {
		b.WriteByte(' ')
		b.WriteString(paging)
	}
	query := b.String()

	var items []*T
	err = r.retryPolicy().Do(ctx, "query", func(ctx context.Context) error {
		items = nil
		var rows sqld.Rows
		if qerr := r.driver.Query(ctx, query, args, &rows); qerr != nil {
			return qerr
		}
		defer rows.Close()
		cols, cerr := rows.Columns()
		if cerr != nil {
			return cerr
		}
		scanDest := make([]any, len(cols))
		scanPtrs := make([]any, len(cols))
		for i := range scanDest {
			scanPtrs[i] = &scanDest[i]
		}
		for rows.Next() {
			if serr := rows.Scan(scanPtrs...); serr != nil {
				return serr
			}
			entity, berr := r.scanRow(cols, scanDest)
			if berr != nil {
				return berr
			}
			items = append(items, entity)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("repository: query %s: %w", r.mapping.TableName, err)
	}
	return items, nil
}

// Get returns the current row for id — the highest-Version row that is
// neither a tombstone nor expired — or nil if there is none (spec §4.F
// "get").
func (r *Repository[T, K]) Get(ctx context.Context, id K, caller string) (*T, error) {
	items, err := r.runQuery(ctx, predicate.FieldEQ(r.idColumn.Name, id), nil, readFilter{latestOnly: true}, 0, 1)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}
	return items[0], nil
}

// GetByKey returns id's version history ordered by Version ascending (spec
// §4.F "get_by_key"). With includeAllVersions false, it returns at most the
// single current row (equivalent to [Repository.Get] wrapped in a slice).
func (r *Repository[T, K]) GetByKey(ctx context.Context, id K, caller string, includeAllVersions, includeDeleted, includeExpired bool) ([]*T, error) {
	var order []predicate.OrderTerm
	if r.mapping.Audit.Version != nil {
		order = append(order, predicate.OrderTerm{Column: r.mapping.Audit.Version.Name, Ascending: true})
	}
	f := readFilter{
		latestOnly:     !includeAllVersions,
		includeDeleted: includeDeleted,
		includeExpired: includeExpired,
	}
	return r.runQuery(ctx, predicate.FieldEQ(r.idColumn.Name, id), order, f, 0, 0)
}

// Query runs pred (nil selects every current row) with the repository's
// default soft-delete/expiration filters, unless overridden, returning
// matching entities in order order (spec §4.F "query").
func (r *Repository[T, K]) Query(ctx context.Context, pred predicate.Expr, order []predicate.OrderTerm, caller string, skip, take int, includeDeleted, includeExpired bool) ([]*T, error) {
	f := readFilter{latestOnly: true, includeDeleted: includeDeleted, includeExpired: includeExpired}
	return r.runQuery(ctx, pred, order, f, skip, take)
}

// QueryPaged runs Query with page_size/page_number paging and reports
// total_count/total_pages alongside the items (spec §4.F "query_paged").
func (r *Repository[T, K]) QueryPaged(ctx context.Context, pred predicate.Expr, pageSize, pageNumber int, order []predicate.OrderTerm, caller string) (Paged[T], error) {
	if pageSize <= 0 {
		return Paged[T]{}, fmt.Errorf("repository: page size must be positive, got %d", pageSize)
	}
	if pageNumber <= 0 {
		pageNumber = 1
	}

	total, err := r.Count(ctx, pred)
	if err != nil {
		return Paged[T]{}, err
	}

	skip := (pageNumber - 1) * pageSize
	items, err := r.runQuery(ctx, pred, order, readFilter{latestOnly: true}, skip, pageSize)
	if err != nil {
		return Paged[T]{}, err
	}

	totalPages := total / int64(pageSize)
	if total%int64(pageSize) != 0 {
		totalPages++
	}
	return Paged[T]{
		Items:      items,
		PageNumber: pageNumber,
		PageSize:   pageSize,
		TotalCount: total,
		TotalPages: totalPages,
	}, nil
}

// Count returns the number of current rows matching pred (spec §4.F
// "count").
func (r *Repository[T, K]) Count(ctx context.Context, pred predicate.Expr) (int64, error) {
	where, args, err := r.whereClause(pred, readFilter{latestOnly: true})
	if err != nil {
		return 0, err
	}
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s", r.fromClause(true))
	if where != "" {
		query += " WHERE " + where
	}

	var count int64
	err = r.retryPolicy().Do(ctx, "count", func(ctx context.Context) error {
		var rows sqld.Rows
		if qerr := r.driver.Query(ctx, query, args, &rows); qerr != nil {
			return qerr
		}
		defer rows.Close()
		if !rows.Next() {
			return rows.Err()
		}
		return rows.Scan(&count)
	})
	if err != nil {
		return 0, fmt.Errorf("repository: count %s: %w", r.mapping.TableName, err)
	}
	return count, nil
}

// Exists reports whether any current row matches pred (spec §4.F "exists").
func (r *Repository[T, K]) Exists(ctx context.Context, pred predicate.Expr) (bool, error) {
	items, err := r.runQuery(ctx, pred, nil, readFilter{latestOnly: true}, 0, 1)
	if err != nil {
		return false, err
	}
	return len(items) > 0, nil
}
