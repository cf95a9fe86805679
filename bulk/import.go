package bulk

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"reflect"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/relstore/relstore"
	"github.com/relstore/relstore/repository"
)

// ImportOptions configures [Pipeline.Import]/[Pipeline.ImportFile] (spec
// §4.G "bulk_import").
type ImportOptions struct {
	Format             Format
	ConflictResolution ConflictResolution
	Strategy           Strategy
	Csv                CsvOptions
	BatchSize          int
	// Workers bounds the number of chunks committed concurrently (grounded
	// on the teacher's parallel TemplateWriter.Write, compiler/gen/writer.go).
	Workers  int
	Progress ProgressFunc
}

// DefaultImportOptions returns the spec's default import behavior: plain
// insert, aborting on the first conflict.
func DefaultImportOptions() ImportOptions {
	return ImportOptions{
		Format:             Auto,
		ConflictResolution: Fail,
		Strategy:           Insert,
		Csv:                DefaultCsvOptions(),
		BatchSize:          500,
		Workers:            4,
	}
}

// ImportResult reports the outcome of an import (spec §4.G
// "ImportResult{success_count, failure_count, skipped, errors[]}").
type ImportResult struct {
	SuccessCount int
	FailureCount int
	Skipped      int
	Errors       []error
}

// Pipeline is the bulk import/export engine for one entity repository.
type Pipeline[T any, K comparable] struct {
	repo *repository.Repository[T, K]
}

// New wraps repo with the bulk pipeline operations.
func New[T any, K comparable](repo *repository.Repository[T, K]) *Pipeline[T, K] {
	return &Pipeline[T, K]{repo: repo}
}

// Import decodes rows from r in opts.Format (which must not be [Auto] — there's
// no file extension to infer it from) and commits them per opts.Strategy/
// ConflictResolution (spec §4.G). Progress fires at least once at 0% before
// the first row and once at 100% after the last (spec: "Progress fires at
// least once at 0% and once at 100%").
func (p *Pipeline[T, K]) Import(ctx context.Context, r io.Reader, opts ImportOptions, caller string) (*ImportResult, error) {
	if opts.Format == Auto {
		return nil, fmt.Errorf("bulk: Import requires an explicit Format (got Auto); use ImportFile to infer one from a path")
	}
	rows, err := decodeRows(r, opts.Format, p.repo.Mapping(), opts.Csv)
	if err != nil {
		return nil, err
	}
	return p.importRows(ctx, rows, opts, caller)
}

// ImportFile opens path (transparently gunzipping a ".gz" suffix) and infers
// [Format] from its extension when opts.Format is [Auto] (spec: "`Auto`
// detects by extension").
func (p *Pipeline[T, K]) ImportFile(ctx context.Context, path string, opts ImportOptions, caller string) (*ImportResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("bulk: open import file: %w", err)
	}
	defer f.Close()

	var r io.Reader = f
	name := path
	if strings.HasSuffix(name, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("bulk: open gzip import file: %w", err)
		}
		defer gz.Close()
		r = gz
		name = strings.TrimSuffix(name, ".gz")
	}
	if opts.Format == Auto {
		opts.Format = detectFormat(name)
	}
	return p.Import(ctx, r, opts, caller)
}

func detectFormat(name string) Format {
	switch {
	case strings.HasSuffix(name, ".ndjson"), strings.HasSuffix(name, ".jsonl"):
		return NDJSON
	case strings.HasSuffix(name, ".csv"):
		return CSV
	default:
		return JSON
	}
}

func decodeRows(r io.Reader, format Format, m *relstore.EntityMapping, csvOpts CsvOptions) ([]map[string]any, error) {
	switch format {
	case CSV:
		return readCSVRows(r, m, csvOpts)
	case NDJSON:
		dec := json.NewDecoder(r)
		var rows []map[string]any
		for dec.More() {
			var row map[string]any
			if err := dec.Decode(&row); err != nil {
				return nil, fmt.Errorf("bulk: decode ndjson row: %w", err)
			}
			rows = append(rows, row)
		}
		return rows, nil
	case JSON:
		var rows []map[string]any
		if err := json.NewDecoder(r).Decode(&rows); err != nil {
			return nil, fmt.Errorf("bulk: decode json array: %w", err)
		}
		return rows, nil
	default:
		return nil, fmt.Errorf("bulk: unsupported import format %v", format)
	}
}

// chunkResult accumulates one chunk's outcome before being folded into the
// overall [ImportResult] under importRows' mutex.
type chunkResult struct {
	success int
	failure int
	skipped int
	errs    []error
}

func (p *Pipeline[T, K]) importRows(ctx context.Context, rows []map[string]any, opts ImportOptions, caller string) (*ImportResult, error) {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 500
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = 4
	}

	result := &ImportResult{}
	total := len(rows)
	if opts.Progress != nil {
		opts.Progress(0, 0, total)
	}
	if total == 0 {
		if opts.Progress != nil {
			opts.Progress(100, 0, 0)
		}
		return result, nil
	}

	var mu sync.Mutex
	processed := 0

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(workers)

	for start := 0; start < total; start += opts.BatchSize {
		end := min(start+opts.BatchSize, total)
		chunk := rows[start:end]
		eg.Go(func() error {
			cr, cancelErr := p.importChunk(egCtx, chunk, opts, caller)

			mu.Lock()
			result.SuccessCount += cr.success
			result.FailureCount += cr.failure
			result.Skipped += cr.skipped
			result.Errors = append(result.Errors, cr.errs...)
			processed += len(chunk)
			if opts.Progress != nil {
				opts.Progress(float64(processed)/float64(total)*100, processed, total)
			}
			mu.Unlock()

			return cancelErr
		})
	}
	_ = eg.Wait() // per-row errors are already folded into result.Errors below

	if opts.Progress != nil && processed < total {
		opts.Progress(100, total, total)
	}
	return result, relstore.NewAggregateError(result.Errors...)
}

// importChunk processes chunk's rows sequentially: conflict resolution
// needs a Get-then-decide step per row, which doesn't parallelize safely
// within one chunk when rows can collide on id. Chunks across the whole
// import still run concurrently (importRows' errgroup).
func (p *Pipeline[T, K]) importChunk(ctx context.Context, chunk []map[string]any, opts ImportOptions, caller string) (chunkResult, error) {
	var cr chunkResult
	for _, row := range chunk {
		entity, err := p.repo.FromRow(row)
		if err != nil {
			cr.failure++
			cr.errs = append(cr.errs, err)
			if opts.ConflictResolution == Fail {
				return cr, err
			}
			continue
		}

		err = p.importOne(ctx, entity, opts, caller)
		if err == nil {
			cr.success++
			continue
		}
		if !relstore.IsAlreadyExists(err) || opts.Strategy == Upsert {
			cr.failure++
			cr.errs = append(cr.errs, err)
			continue
		}

		switch opts.ConflictResolution {
		case UseTarget:
			cr.skipped++
		case Fail:
			cr.failure++
			cr.errs = append(cr.errs, err)
			return cr, err
		case UseSource:
			if _, uerr := p.repo.Upsert(ctx, entity, caller); uerr != nil {
				cr.failure++
				cr.errs = append(cr.errs, uerr)
				continue
			}
			cr.success++
		case Merge:
			if merr := p.mergeAndUpsert(ctx, entity, caller); merr != nil {
				cr.failure++
				cr.errs = append(cr.errs, merr)
				continue
			}
			cr.success++
		default:
			cr.failure++
			cr.errs = append(cr.errs, err)
		}
	}
	return cr, nil
}

func (p *Pipeline[T, K]) importOne(ctx context.Context, entity *T, opts ImportOptions, caller string) error {
	if opts.Strategy == Upsert {
		_, err := p.repo.Upsert(ctx, entity, caller)
		return err
	}
	_, err := p.repo.Create(ctx, entity, caller)
	return err
}

// mergeAndUpsert applies incoming's non-zero fields onto the currently
// stored row (spec §4.G ConflictResolution=Merge: "field-wise merge") and
// writes the result back with the repository's Upsert primitive.
func (p *Pipeline[T, K]) mergeAndUpsert(ctx context.Context, incoming *T, caller string) error {
	id, err := p.repo.IDOf(incoming)
	if err != nil {
		return err
	}
	existing, err := p.repo.Get(ctx, id, caller)
	if err != nil {
		return err
	}
	if existing == nil {
		_, err := p.repo.Upsert(ctx, incoming, caller)
		return err
	}

	merged := mergeRows(p.repo.ToRow(existing), p.repo.ToRow(incoming))
	mergedEntity, err := p.repo.FromRow(merged)
	if err != nil {
		return err
	}
	_, err = p.repo.Upsert(ctx, mergedEntity, caller)
	return err
}

// mergeRows overlays incoming's non-nil, non-zero values onto base.
func mergeRows(base, incoming map[string]any) map[string]any {
	out := make(map[string]any, len(base))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range incoming {
		if v == nil {
			continue
		}
		if rv := reflect.ValueOf(v); rv.IsValid() && rv.IsZero() {
			continue
		}
		out[k] = v
	}
	return out
}
