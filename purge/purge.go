// Package purge implements the Purge Engine (component H, spec §4.H):
// predicate- and age-driven deletion with a preview/commit split, optional
// pre-purge backup through the [bulk] pipeline, and optional post-purge
// storage compaction via the dialect adapter's VACUUM equivalent.
package purge

import (
	"context"
	"fmt"
	"os"
	"time"

	sqld "github.com/relstore/relstore/dialect/sql"
	"github.com/relstore/relstore/predicate"
	"github.com/relstore/relstore/repository"
)

// Strategy selects which rows of a logical entity purge considers (spec
// §4.H "Strategy selects soft-delete semantics").
type Strategy int

const (
	// PreserveActiveVersions purges only historical rows — every version of
	// an id except the one with the highest Version — leaving the live row
	// (and, if it's a tombstone, the tombstone itself) in place.
	PreserveActiveVersions Strategy = iota
	// PurgeExpired purges rows whose AbsoluteExpiration has passed.
	PurgeExpired
	// PurgeAll purges every row matching the predicate and age bound,
	// live or historical.
	PurgeAll
)

// Options configures [Engine.Purge] (spec §4.H "purge(predicate, options)").
type Options struct {
	Predicate predicate.Expr

	// SafeMode defaults conceptually to true; callers construct it via
	// [DefaultOptions] to get that default, since Go's zero value for bool
	// is already false and would otherwise silently disable it.
	SafeMode          bool
	MaxPreviewSamples int
	Strategy          Strategy

	// AgeThreshold (relative, "now - threshold") and CutoffDate (absolute)
	// both bound CreationTime (spec §4.H "Age selection"); at most one
	// should be set. CutoffDate wins if both are.
	AgeThreshold time.Duration
	CutoffDate   time.Time

	BackupBeforePurge bool
	BackupPath        string
	OptimizeStorage   bool

	Caller string
}

// DefaultOptions returns SafeMode=true, PreserveActiveVersions, 10 preview
// samples — the spec's stated defaults.
func DefaultOptions() Options {
	return Options{SafeMode: true, MaxPreviewSamples: 10, Strategy: PreserveActiveVersions}
}

// Preview is populated when opts.SafeMode is true (spec §4.H "preview:
// {affected_entity_count, sample_entities?}").
type Preview struct {
	AffectedEntityCount int64
	SampleEntities      []map[string]any
}

// Result is [Engine.Purge]'s return value (spec §4.H "PurgeResult{is_preview,
// preview, entities_purged, space_reclaimed_bytes}").
type Result struct {
	IsPreview           bool
	Preview             Preview
	EntitiesPurged      int64
	SpaceReclaimedBytes int64
}

// Engine is the purge operation bound to one entity repository.
type Engine[T any, K comparable] struct {
	repo *repository.Repository[T, K]
}

// New wraps repo with purge operations.
func New[T any, K comparable](repo *repository.Repository[T, K]) *Engine[T, K] {
	return &Engine[T, K]{repo: repo}
}

// Purge runs a preview (opts.SafeMode=true, the default) or a committed
// delete (opts.SafeMode=false) over opts.Predicate/Strategy/age bound (spec
// §4.H). SafeMode never fails from the deletion itself — only preview
// enumeration can error (spec §5 "Recovery").
func (e *Engine[T, K]) Purge(ctx context.Context, opts Options) (*Result, error) {
	if opts.MaxPreviewSamples <= 0 {
		opts.MaxPreviewSamples = 10
	}

	where, args, err := e.buildWhere(opts)
	if err != nil {
		return nil, fmt.Errorf("purge: build predicate: %w", err)
	}

	if opts.SafeMode {
		count, err := e.countMatching(ctx, where, args)
		if err != nil {
			return nil, err
		}
		samples, err := e.sampleMatching(ctx, where, args, opts.MaxPreviewSamples)
		if err != nil {
			return nil, err
		}
		return &Result{
			IsPreview: true,
			Preview:   Preview{AffectedEntityCount: count, SampleEntities: samples},
		}, nil
	}

	var beforeSize int64
	if opts.OptimizeStorage {
		beforeSize, _ = e.fileSize(ctx)
	}

	if opts.BackupBeforePurge {
		if err := e.backup(ctx, opts); err != nil {
			return nil, fmt.Errorf("purge: backup before purge: %w", err)
		}
	}

	purged, err := e.commitPurge(ctx, where, args)
	if err != nil {
		return nil, fmt.Errorf("purge: commit: %w", err)
	}
	result := &Result{EntitiesPurged: purged}

	if opts.OptimizeStorage {
		if err := e.optimize(ctx); err != nil {
			return result, fmt.Errorf("purge: optimize storage: %w", err)
		}
		afterSize, _ := e.fileSize(ctx)
		if beforeSize > afterSize {
			result.SpaceReclaimedBytes = beforeSize - afterSize
		}
	}
	return result, nil
}

// buildWhere composes opts.Predicate, the age bound, and the Strategy's row
// filter into one SQL fragment operating over the raw table — unlike the
// CRUD engine's reads, purge must see every version row, not just the
// latest-per-id window (spec §4.H "Strategy selects soft-delete semantics").
func (e *Engine[T, K]) buildWhere(opts Options) (string, []any, error) {
	m := e.repo.Mapping()
	d := e.repo.Dialect()
	pred := opts.Predicate

	cutoff := opts.CutoffDate
	if cutoff.IsZero() && opts.AgeThreshold > 0 {
		cutoff = time.Now().UTC().Add(-opts.AgeThreshold)
	}
	if !cutoff.IsZero() && m.Audit.CreationTime != nil {
		bound := predicate.FieldLT(m.Audit.CreationTime.Name, cutoff)
		if pred == nil {
			pred = bound
		} else {
			pred = predicate.And(pred, bound)
		}
	}

	var sql string
	var args []any
	if pred != nil {
		translated, params, err := predicate.Translate(pred, m, d)
		if err != nil {
			return "", nil, err
		}
		sql, args = predicate.Bind(translated, params, d)
	}

	strategyFrag := e.strategyFragment(opts.Strategy)
	if strategyFrag != "" {
		if sql == "" {
			sql = strategyFrag
		} else {
			sql = fmt.Sprintf("(%s) AND (%s)", sql, strategyFrag)
		}
	}
	return sql, args, nil
}

// strategyFragment renders the raw SQL condition for opts.Strategy. It's
// built directly as SQL text, not a [predicate.Expr], because
// PreserveActiveVersions needs a correlated subquery the predicate AST has
// no node for.
func (e *Engine[T, K]) strategyFragment(s Strategy) string {
	m := e.repo.Mapping()
	d := e.repo.Dialect()
	table := d.EscapeIdentifier(m.TableName)
	idCol := d.EscapeIdentifier(e.repo.IDColumnName())

	switch s {
	case PreserveActiveVersions:
		if m.Audit.Version == nil {
			return "" // non-versioned entity: every row is "the" live row
		}
		verCol := d.EscapeIdentifier(m.Audit.Version.Name)
		return fmt.Sprintf(
			"EXISTS (SELECT 1 FROM %s AS __newer WHERE __newer.%s = %s.%s AND __newer.%s > %s.%s)",
			table, idCol, table, idCol, verCol, table, verCol)
	case PurgeExpired:
		if m.Audit.AbsoluteExpiration == nil {
			return "1 = 0" // entity type never expires: nothing qualifies
		}
		col := d.EscapeIdentifier(m.Audit.AbsoluteExpiration.Name)
		return fmt.Sprintf("(%s IS NOT NULL AND %s)", col, d.ExpiryFilter(col))
	default: // PurgeAll
		return ""
	}
}

func (e *Engine[T, K]) countMatching(ctx context.Context, where string, args []any) (int64, error) {
	m := e.repo.Mapping()
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s", e.repo.Dialect().EscapeIdentifier(m.TableName))
	if where != "" {
		query += " WHERE " + where
	}
	rows, err := e.repo.QueryRaw(ctx, "purge_count", query, args)
	if err != nil {
		return 0, err
	}
	defer rows.Close()
	if !rows.Next() {
		return 0, rows.Err()
	}
	var count int64
	if err := rows.Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (e *Engine[T, K]) sampleMatching(ctx context.Context, where string, args []any, maxSamples int) ([]map[string]any, error) {
	m := e.repo.Mapping()
	query := fmt.Sprintf("SELECT * FROM %s", e.repo.Dialect().EscapeIdentifier(m.TableName))
	if where != "" {
		query += " WHERE " + where
	}
	query += fmt.Sprintf(" LIMIT %d", maxSamples)

	rows, err := e.repo.QueryRaw(ctx, "purge_preview", query, args)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var samples []map[string]any
	for rows.Next() {
		dest := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range dest {
			ptrs[i] = &dest[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(map[string]any, len(cols))
		for i, c := range cols {
			row[c] = dest[i]
		}
		samples = append(samples, row)
	}
	return samples, rows.Err()
}

func (e *Engine[T, K]) commitPurge(ctx context.Context, where string, args []any) (int64, error) {
	m := e.repo.Mapping()
	query := fmt.Sprintf("DELETE FROM %s", e.repo.Dialect().EscapeIdentifier(m.TableName))
	if where != "" {
		query += " WHERE " + where
	}

	var affected int64
	err := e.repo.RetryPolicy().Do(ctx, "purge_commit", func(ctx context.Context) error {
		tx, err := e.repo.Driver().Tx(ctx)
		if err != nil {
			return err
		}
		var res sqld.Result
		if err := tx.Exec(ctx, query, args, &res); err != nil {
			_ = tx.Rollback()
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			_ = tx.Rollback()
			return err
		}
		affected = n
		return tx.Commit()
	})
	return affected, err
}

func (e *Engine[T, K]) optimize(ctx context.Context) error {
	cmd := e.repo.Dialect().CompactionCommand()
	if cmd == "" {
		return nil
	}
	return e.repo.Exec(ctx, "optimize_storage", cmd, nil)
}

// fileSize resolves the underlying SQLite file's current size via `PRAGMA
// database_list`, returning 0 for an in-memory database (no "file" entry) or
// if the stat fails.
func (e *Engine[T, K]) fileSize(ctx context.Context) (int64, error) {
	rows, err := e.repo.QueryRaw(ctx, "pragma_database_list", "PRAGMA database_list", nil)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	var path string
	for rows.Next() {
		var seq int
		var name, file string
		if err := rows.Scan(&seq, &name, &file); err != nil {
			return 0, err
		}
		if name == "main" {
			path = file
		}
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}
	if path == "" {
		return 0, nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return 0, nil
	}
	return info.Size(), nil
}
