// Package csvfile provides an adapter backed by a CSV file on disk.
//
// The first record is the header. Column types are inferred from the
// data: a column whose every value parses as an integer is integer, a
// column whose every value parses as a number is float, anything else
// is text. All columns support exact Equal and Range pushdown, applied
// while streaming. Inserts append a row; deletes and updates rewrite
// the file.
package csvfile

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/leapstack-labs/tablebridge/pkg/adapter"
	"github.com/leapstack-labs/tablebridge/pkg/core"
)

// Scheme is the URI scheme served by the driver.
const Scheme = "csv://"

// Table is a CSV-file adapter instance. The file's contents are loaded
// at open time and kept consistent with the file across mutations.
type Table struct {
	path   string
	logger *slog.Logger

	mu     sync.Mutex
	schema *core.Schema
	rows   []core.Row
	nextID int64
}

// Open loads the CSV file at path and infers its schema.
func Open(path string, logger *slog.Logger) (*Table, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open csv file: %w", err)
	}
	defer func() { _ = f.Close() }()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse csv file %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("csv file %s has no header", path)
	}

	header := records[0]
	types := inferTypes(header, records[1:])

	sb := core.NewSchema()
	for i, name := range header {
		sb.Add(core.Field{
			Name:    name,
			Type:    types[i],
			Filters: []core.FilterKind{core.KindEqual, core.KindRange},
			Exact:   true,
		})
	}
	schema, err := sb.Build()
	if err != nil {
		return nil, fmt.Errorf("invalid csv header in %s: %w", path, err)
	}

	t := &Table{path: path, logger: logger, schema: schema}
	for _, record := range records[1:] {
		values := make(map[string]any, len(header))
		for i, name := range header {
			if i < len(record) {
				values[name] = parseValue(record[i], types[i])
			}
		}
		t.rows = append(t.rows, core.Row{ID: t.nextID, Values: values})
		t.nextID++
	}

	logger.Debug("csv loaded", "path", path, "rows", len(t.rows))
	return t, nil
}

// inferTypes picks the narrowest type each column's values all fit.
func inferTypes(header []string, records [][]string) []core.Type {
	types := make([]core.Type, len(header))
	for col := range header {
		isInt, isFloat := true, true
		for _, record := range records {
			if col >= len(record) || record[col] == "" {
				continue
			}
			if _, err := strconv.ParseInt(record[col], 10, 64); err != nil {
				isInt = false
			}
			if _, err := strconv.ParseFloat(record[col], 64); err != nil {
				isFloat = false
			}
		}
		switch {
		case isInt:
			types[col] = core.TypeInteger
		case isFloat:
			types[col] = core.TypeFloat
		default:
			types[col] = core.TypeText
		}
	}
	return types
}

// parseValue converts a raw cell to the column's inferred type. Empty
// cells read as NULL.
func parseValue(cell string, typ core.Type) any {
	if cell == "" {
		return nil
	}
	switch typ {
	case core.TypeInteger:
		if n, err := strconv.ParseInt(cell, 10, 64); err == nil {
			return n
		}
	case core.TypeFloat:
		if f, err := strconv.ParseFloat(cell, 64); err == nil {
			return f
		}
	}
	return cell
}

// formatValue converts a value back to its cell representation.
func formatValue(v any) string {
	switch n := v.(type) {
	case nil:
		return ""
	case string:
		return n
	case float64:
		return strconv.FormatFloat(n, 'g', -1, 64)
	case int64:
		return strconv.FormatInt(n, 10)
	default:
		return fmt.Sprintf("%v", n)
	}
}

// Schema implements adapter.Adapter.
func (t *Table) Schema() *core.Schema {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.schema
}

// GetRows implements adapter.Adapter. All declared filters are exact,
// so matching rows are filtered out here and the bridge skips its
// recheck.
func (t *Table) GetRows(ctx context.Context, bounds core.Bounds, _ []core.SortTerm) (adapter.RowIterator, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	snapshot := make([]core.Row, 0, len(t.rows))
	for _, row := range t.rows {
		if bounds.Check(row) {
			snapshot = append(snapshot, row)
		}
	}
	return adapter.NewSliceIterator(snapshot), nil
}

// InsertRow implements adapter.Inserter.
func (t *Table) InsertRow(ctx context.Context, row core.Row) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	stored := row.Clone()
	if stored.ID == core.UnassignedRowID {
		stored.ID = t.nextID
	}
	if stored.ID >= t.nextID {
		t.nextID = stored.ID + 1
	}
	t.rows = append(t.rows, stored)

	if err := t.flush(); err != nil {
		t.rows = t.rows[:len(t.rows)-1]
		return 0, err
	}
	return stored.ID, nil
}

// DeleteRow implements adapter.Deleter. Deleting a missing rowid is a
// no-op.
func (t *Table) DeleteRow(ctx context.Context, rowid int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	for i, row := range t.rows {
		if row.ID == rowid {
			t.rows = append(t.rows[:i], t.rows[i+1:]...)
			return t.flush()
		}
	}
	return nil
}

// flush rewrites the backing file from the in-memory rows. Caller holds
// the lock.
func (t *Table) flush() error {
	f, err := os.Create(t.path)
	if err != nil {
		return fmt.Errorf("failed to rewrite csv file: %w", err)
	}

	w := csv.NewWriter(f)
	columns := t.schema.Columns()
	if err := w.Write(columns); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	record := make([]string, len(columns))
	for _, row := range t.rows {
		for i, col := range columns {
			record[i] = formatValue(row.Values[col])
		}
		if err := w.Write(record); err != nil {
			_ = f.Close()
			return fmt.Errorf("failed to write csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to flush csv file: %w", err)
	}
	return f.Close()
}

// Count returns the current number of rows.
func (t *Table) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.rows)
}

// Driver opens csv:// URIs and bare *.csv paths.
type Driver struct{}

// NewDriver returns the csvfile driver.
func NewDriver() *Driver { return &Driver{} }

// Name implements adapter.Driver.
func (Driver) Name() string { return "csvfile" }

// Supports implements adapter.Driver. The probe is purely syntactic;
// the file is not touched until Open.
func (Driver) Supports(uri string) bool {
	if strings.HasPrefix(uri, Scheme) {
		return true
	}
	return strings.HasSuffix(uri, ".csv") && !strings.Contains(uri, "://")
}

// Open implements adapter.Driver.
func (d Driver) Open(uri string, logger *slog.Logger) (adapter.Adapter, error) {
	path, err := PathFromURI(uri)
	if err != nil {
		return nil, err
	}
	return Open(path, logger)
}

// PathFromURI extracts the filesystem path from a csv:// URI or bare
// path.
func PathFromURI(uri string) (string, error) {
	if !strings.HasPrefix(uri, Scheme) {
		return uri, nil
	}
	u, err := url.Parse(uri)
	if err != nil {
		return "", fmt.Errorf("malformed csv uri %q: %w", uri, err)
	}
	path := u.Path
	if u.Host != "" {
		// csv://relative/path parses the first segment as a host.
		path = u.Host + path
	}
	if path == "" {
		return "", fmt.Errorf("csv uri %q has no path", uri)
	}
	return path, nil
}

var (
	_ adapter.Adapter  = (*Table)(nil)
	_ adapter.Inserter = (*Table)(nil)
	_ adapter.Deleter  = (*Table)(nil)
	_ adapter.Driver   = (*Driver)(nil)
)
