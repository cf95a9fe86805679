package bulk

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/relstore/relstore"
	"github.com/relstore/relstore/predicate"
)

// fileTimestampLayout matches the spec's file-naming pattern
// "{yyyyMMddHHmmss}" (spec §6.2).
const fileTimestampLayout = "20060102150405"

// ExportOptions configures [Pipeline.Export] (spec §4.G "bulk_export").
type ExportOptions struct {
	// ExportFolder, if empty, makes export in-memory: rows are returned on
	// [ExportResult.ExportedEntities] instead of written to files.
	ExportFolder   string
	FileNamePrefix string
	BatchSize      int
	CompressOutput bool
	FileFormat     Format // JSON or CSV
	Csv            CsvOptions

	Mode                Mode
	IncrementalFromDate time.Time
	ArchiveOlderThan    time.Duration
	MarkAsExported      bool

	IncludeDeleted     bool
	IncludeAllVersions bool
	IncludeExpired     bool

	Order  []predicate.OrderTerm
	Caller string
}

// DefaultExportOptions returns the spec's baseline: a full, uncompressed
// JSON export in 500-row chunks. ExportFolder is left empty, so the export
// is in-memory until the caller sets a folder.
func DefaultExportOptions() ExportOptions {
	return ExportOptions{
		FileNamePrefix: "export",
		BatchSize:      500,
		FileFormat:     JSON,
		Csv:            DefaultCsvOptions(),
		Mode:           Full,
	}
}

// ExportResult reports what [Pipeline.Export] wrote (spec §4.G
// "ExportResult{exported_count, exported_entities?, exported_files[],
// metadata_file?}").
type ExportResult struct {
	ExportedCount    int
	ExportedEntities []map[string]any
	ExportedFiles    []string
	MetadataFile     string
}

// exportMetadata is the sidecar JSON document described in spec §6.2.
type exportMetadata struct {
	EntityType    string    `json:"entity_type"`
	Table         string    `json:"table"`
	Columns       []string  `json:"columns"`
	Mode          string    `json:"mode"`
	ExportedCount int       `json:"exported_count"`
	Chunks        []string  `json:"chunks"`
	Compressed    bool      `json:"compressed"`
	Format        string    `json:"format"`
	TimeRangeFrom time.Time `json:"time_range_from,omitzero"`
	TimeRangeTo   time.Time `json:"time_range_to,omitzero"`
	GeneratedAt   time.Time `json:"generated_at"`
}

func (m Mode) String() string {
	switch m {
	case Full:
		return "Full"
	case Incremental:
		return "Incremental"
	case Archive:
		return "Archive"
	default:
		return "Unknown"
	}
}

func (f Format) extension() string {
	if f == CSV {
		return "csv"
	}
	return "json"
}

// Export selects rows via pred plus opts' Mode-driven temporal bound and
// lifecycle filters, then either returns them in-memory or streams them to
// chunked files in opts.ExportFolder (spec §4.G).
func (p *Pipeline[T, K]) Export(ctx context.Context, pred predicate.Expr, opts ExportOptions) (*ExportResult, error) {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 500
	}
	if opts.FileNamePrefix == "" {
		opts.FileNamePrefix = "export"
	}

	finalPred, rangeFrom, rangeTo := p.applyModeFilter(pred, opts)

	entities, err := p.repo.QueryAll(ctx, finalPred, opts.Order, opts.IncludeAllVersions, opts.IncludeDeleted, opts.IncludeExpired, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("bulk: export query: %w", err)
	}

	rows := make([]map[string]any, len(entities))
	for i, e := range entities {
		rows[i] = p.repo.ToRow(e)
	}

	result := &ExportResult{ExportedCount: len(rows)}

	if opts.ExportFolder == "" {
		result.ExportedEntities = rows
	} else {
		files, metaFile, err := p.writeExportFiles(rows, opts, rangeFrom, rangeTo)
		if err != nil {
			return nil, err
		}
		result.ExportedFiles = files
		result.MetadataFile = metaFile
	}

	if opts.Mode == Archive && opts.MarkAsExported {
		if err := p.markExported(ctx, entities); err != nil {
			return result, err
		}
	}
	return result, nil
}

// applyModeFilter adds Incremental's LastWriteTime bound or Archive's
// CreationTime bound on top of pred (spec §4.G "Incremental honors
// IncrementalFromDate against LastWriteTime" / "Archive honors
// ArchiveOlderThan").
func (p *Pipeline[T, K]) applyModeFilter(pred predicate.Expr, opts ExportOptions) (predicate.Expr, time.Time, time.Time) {
	m := p.repo.Mapping()
	var from, to time.Time

	switch opts.Mode {
	case Incremental:
		if !opts.IncrementalFromDate.IsZero() && m.Audit.LastWriteTime != nil {
			pred = andPred(pred, predicate.FieldGTE(m.Audit.LastWriteTime.Name, opts.IncrementalFromDate))
			from = opts.IncrementalFromDate
		}
	case Archive:
		if opts.ArchiveOlderThan > 0 && m.Audit.CreationTime != nil {
			cutoff := time.Now().UTC().Add(-opts.ArchiveOlderThan)
			pred = andPred(pred, predicate.FieldLT(m.Audit.CreationTime.Name, cutoff))
			to = cutoff
		}
	}
	return pred, from, to
}

func andPred(existing predicate.Expr, extra predicate.Expr) predicate.Expr {
	if existing == nil {
		return extra
	}
	return predicate.And(existing, extra)
}

// writeExportFiles chunks rows into opts.BatchSize-row files named per spec
// §6.2, optionally gzip-wrapped, plus a metadata sidecar.
func (p *Pipeline[T, K]) writeExportFiles(rows []map[string]any, opts ExportOptions, rangeFrom, rangeTo time.Time) ([]string, string, error) {
	if err := os.MkdirAll(opts.ExportFolder, 0o755); err != nil {
		return nil, "", fmt.Errorf("bulk: create export folder: %w", err)
	}

	ts := time.Now().UTC().Format(fileTimestampLayout)
	var files []string
	var chunkNames []string

	m := p.repo.Mapping()
	ext := opts.FileFormat.extension()

	chunkCount := (len(rows) + opts.BatchSize - 1) / opts.BatchSize
	if chunkCount == 0 {
		chunkCount = 1 // an empty export still produces one empty chunk file
	}
	for seq := 1; seq <= chunkCount; seq++ {
		start := (seq - 1) * opts.BatchSize
		end := min(start+opts.BatchSize, len(rows))
		chunk := rows[start:end]

		name := fmt.Sprintf("%s_%s_%04d.%s", opts.FileNamePrefix, ts, seq, ext)
		if opts.CompressOutput {
			name += ".gz"
		}
		path := filepath.Join(opts.ExportFolder, name)

		buf, err := encodeChunk(chunk, m, opts)
		if err != nil {
			return nil, "", err
		}
		if opts.CompressOutput {
			buf, err = gzipBytes(buf)
			if err != nil {
				return nil, "", err
			}
		}
		if err := os.WriteFile(path, buf, 0o644); err != nil {
			return nil, "", fmt.Errorf("bulk: write export chunk: %w", err)
		}
		files = append(files, path)
		chunkNames = append(chunkNames, name)
	}

	meta := exportMetadata{
		EntityType:    m.TableName,
		Table:         m.TableName,
		Columns:       columnNames(m),
		Mode:          opts.Mode.String(),
		ExportedCount: len(rows),
		Chunks:        chunkNames,
		Compressed:    opts.CompressOutput,
		Format:        ext,
		TimeRangeFrom: rangeFrom,
		TimeRangeTo:   rangeTo,
		GeneratedAt:   time.Now().UTC(),
	}
	metaBytes, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return nil, "", fmt.Errorf("bulk: marshal export metadata: %w", err)
	}
	metaName := fmt.Sprintf("%s_%s_metadata.json", opts.FileNamePrefix, ts)
	metaPath := filepath.Join(opts.ExportFolder, metaName)
	if err := os.WriteFile(metaPath, metaBytes, 0o644); err != nil {
		return nil, "", fmt.Errorf("bulk: write export metadata: %w", err)
	}

	return files, metaPath, nil
}

func columnNames(m *relstore.EntityMapping) []string {
	names := make([]string, len(m.Columns))
	for i := range m.Columns {
		names[i] = m.Columns[i].Name
	}
	return names
}

func encodeChunk(rows []map[string]any, m *relstore.EntityMapping, opts ExportOptions) ([]byte, error) {
	var buf bytes.Buffer
	if opts.FileFormat == CSV {
		if err := writeCSVHeaderAndRows(&buf, m, rows, opts.Csv); err != nil {
			return nil, fmt.Errorf("bulk: write csv chunk: %w", err)
		}
		return buf.Bytes(), nil
	}
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rows); err != nil {
		return nil, fmt.Errorf("bulk: marshal json chunk: %w", err)
	}
	return buf.Bytes(), nil
}

func gzipBytes(raw []byte) ([]byte, error) {
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	if _, err := gw.Write(raw); err != nil {
		return nil, fmt.Errorf("bulk: gzip export chunk: %w", err)
	}
	if err := gw.Close(); err != nil {
		return nil, fmt.Errorf("bulk: gzip export chunk: %w", err)
	}
	return buf.Bytes(), nil
}

// markExported adds an ExportedDate column (idempotent ALTER TABLE, spec
// §4.G "Archive honors ... MarkAsExported=true adds an ExportedDate column")
// and stamps it on every exported row. Requires the repository to have been
// opened with [repository.WithSchemaEvolution](true); returns
// [relstore.NewMappingErrorReason] otherwise so callers don't silently skip
// the stamp.
func (p *Pipeline[T, K]) markExported(ctx context.Context, entities []*T) error {
	if !p.repo.AllowSchemaEvolution() {
		return relstore.NewMappingErrorReason(p.repo.Mapping().TableName, relstore.MappingReasonWrongType,
			"MarkAsExported requires the repository to be opened with WithSchemaEvolution(true)")
	}

	m := p.repo.Mapping()
	d := p.repo.Dialect()
	col := d.EscapeIdentifier("exported_date")
	alter := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s TEXT", d.EscapeIdentifier(m.TableName), col)
	if err := p.repo.Exec(ctx, "mark_exported_alter", alter, nil); err != nil {
		// Column already present from a prior export: idempotent no-op.
		if !strings.Contains(strings.ToLower(err.Error()), "duplicate column name") {
			return fmt.Errorf("bulk: add ExportedDate column: %w", err)
		}
	}

	idCol := d.EscapeIdentifier(p.repo.IDColumnName())
	stamp := fmt.Sprintf("UPDATE %s SET %s = %s WHERE %s = %s",
		d.EscapeIdentifier(m.TableName), col, d.Placeholder(1), idCol, d.Placeholder(2))
	now := time.Now().UTC().Format(time.RFC3339Nano)
	for _, e := range entities {
		id, err := p.repo.IDOf(e)
		if err != nil {
			return err
		}
		if err := p.repo.Exec(ctx, "mark_exported_stamp", stamp, []any{now, d.ConvertParameterValue(id)}); err != nil {
			return fmt.Errorf("bulk: stamp ExportedDate: %w", err)
		}
	}
	return nil
}
