package bulk

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/relstore/relstore"
	"github.com/relstore/relstore/schema/field"
)

// newCSVReader builds a csv.Reader honoring opts' delimiter and the RFC-4180
// embedded-quote/newline-in-quoted-field handling stdlib's encoding/csv
// already implements (spec §4.G "CSV import handles embedded quote and
// newline-in-quoted-field").
func newCSVReader(r io.Reader, opts CsvOptions) *csv.Reader {
	cr := csv.NewReader(r)
	if opts.Delimiter != 0 {
		cr.Comma = opts.Delimiter
	}
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	return cr
}

func newCSVWriter(w io.Writer, opts CsvOptions) *csv.Writer {
	cw := csv.NewWriter(w)
	if opts.Delimiter != 0 {
		cw.Comma = opts.Delimiter
	}
	return cw
}

// readCSVRows decodes every record from r into a column-name-keyed map,
// using cols' declared order as the header when opts.HasHeaders is false.
// Temporal columns are parsed with opts.DateFormat up front so the result
// carries a time.Time rather than a bare string (repository.FromRow's
// coercion accepts either, but only RFC3339Nano strings — pre-parsing
// respects a caller's custom DateFormat).
func readCSVRows(r io.Reader, m *relstore.EntityMapping, opts CsvOptions) ([]map[string]any, error) {
	cr := newCSVReader(r, opts)

	var header []string
	if opts.HasHeaders {
		rec, err := cr.Read()
		if err == io.EOF {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("bulk: read csv header: %w", err)
		}
		header = rec
	} else {
		header = make([]string, len(m.Columns))
		for i := range m.Columns {
			header[i] = m.Columns[i].Name
		}
	}

	var rows []map[string]any
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("bulk: read csv record: %w", err)
		}
		row := make(map[string]any, len(header))
		for i, name := range header {
			if i >= len(rec) {
				continue
			}
			cm, ok := m.ColumnByName(name)
			if !ok || rec[i] == "" {
				row[name] = rec[i]
				continue
			}
			v, err := csvFieldValue(cm.Type, rec[i], opts)
			if err != nil {
				return nil, fmt.Errorf("bulk: column %q: %w", name, err)
			}
			row[name] = v
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// writeCSVHeaderAndRows serializes rows (in m.Columns order) to w, writing
// a header record first when opts.HasHeaders is set.
func writeCSVHeaderAndRows(w io.Writer, m *relstore.EntityMapping, rows []map[string]any, opts CsvOptions) error {
	cw := newCSVWriter(w, opts)
	defer cw.Flush()

	names := make([]string, len(m.Columns))
	for i := range m.Columns {
		names[i] = m.Columns[i].Name
	}
	if opts.HasHeaders {
		if err := cw.Write(names); err != nil {
			return err
		}
	}
	for _, row := range rows {
		record := make([]string, len(names))
		for i, name := range names {
			record[i] = csvFieldString(row[name], opts)
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	return cw.Error()
}

func csvFieldValue(ft field.Type, s string, opts CsvOptions) (any, error) {
	switch ft {
	case field.TypeTime:
		layout := opts.DateFormat
		if layout == "" {
			layout = time.RFC3339
		}
		t, err := time.Parse(layout, s)
		if err != nil {
			return nil, err
		}
		return t, nil
	case field.TypeDuration:
		secs, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, err
		}
		return time.Duration(secs * float64(time.Second)), nil
	case field.TypeUUID:
		return uuid.Parse(s)
	case field.TypeBool:
		return strconv.ParseBool(s)
	case field.TypeInt8, field.TypeInt16, field.TypeInt32, field.TypeInt64:
		return strconv.ParseInt(s, 10, 64)
	case field.TypeFloat32, field.TypeFloat64, field.TypeDecimal:
		return strconv.ParseFloat(s, 64)
	default:
		return s, nil
	}
}

func csvFieldString(v any, opts CsvOptions) string {
	if v == nil {
		return ""
	}
	switch val := v.(type) {
	case time.Time:
		layout := opts.DateFormat
		if layout == "" {
			layout = time.RFC3339
		}
		return val.Format(layout)
	case time.Duration:
		return strconv.FormatFloat(val.Seconds(), 'f', -1, 64)
	case uuid.UUID:
		return val.String()
	case bool:
		return strconv.FormatBool(val)
	case []byte:
		return string(val)
	case string:
		return val
	default:
		return fmt.Sprint(val)
	}
}
