// Package memory provides the reference in-memory adapter. It backs
// fixture tables under memory:// URIs and implements the full contract
// surface: exact filter pushdown, sorting, and mutation.
package memory

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/leapstack-labs/tablebridge/pkg/adapter"
	"github.com/leapstack-labs/tablebridge/pkg/core"
)

// Scheme is the URI scheme served by the driver.
const Scheme = "memory://"

// Table is an in-memory adapter instance. It owns the canonical copy of
// its rows; access is serialized internally so the embedding
// application may share it across connections.
type Table struct {
	schema *core.Schema
	logger *slog.Logger

	mu     sync.Mutex
	rows   []core.Row
	nextID int64
}

// New builds a table from a schema and seed rows. Seed rows keep their
// IDs when assigned; unassigned IDs are allocated in seed order.
func New(schema *core.Schema, seed []core.Row, logger *slog.Logger) *Table {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	t := &Table{schema: schema, logger: logger}
	for _, r := range seed {
		row := r.Clone()
		if row.ID == core.UnassignedRowID {
			row.ID = t.nextID
		}
		if row.ID >= t.nextID {
			t.nextID = row.ID + 1
		}
		t.rows = append(t.rows, row)
	}
	return t
}

// Schema implements adapter.Adapter.
func (t *Table) Schema() *core.Schema {
	return t.schema
}

// GetRows implements adapter.Adapter. Bounds for fields that declared
// the filter kind are applied here (the schema marks them exact);
// anything else is left for the bridge. Each call snapshots the current
// rows so iteration is restartable and unaffected by later mutation.
func (t *Table) GetRows(ctx context.Context, bounds core.Bounds, order []core.SortTerm) (adapter.RowIterator, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	t.mu.Lock()
	snapshot := make([]core.Row, 0, len(t.rows))
	for _, row := range t.rows {
		if t.matches(row, bounds) {
			snapshot = append(snapshot, row)
		}
	}
	t.mu.Unlock()

	t.sortRows(snapshot, order)
	t.logger.Debug("memory scan", "rows", len(snapshot), "bounds", len(bounds))
	return adapter.NewSliceIterator(snapshot), nil
}

// matches applies the supported subset of bounds to one row.
func (t *Table) matches(row core.Row, bounds core.Bounds) bool {
	for col, f := range bounds {
		field, ok := t.schema.Field(col)
		if !ok || !field.Supports(f.Kind()) {
			// Undeclared filters are left unapplied; the bridge
			// re-checks them.
			continue
		}
		if !f.Check(row.Values[col]) {
			return false
		}
	}
	return true
}

// sortRows applies the requested order terms, most significant first.
func (t *Table) sortRows(rows []core.Row, order []core.SortTerm) {
	if len(order) == 0 {
		return
	}
	sort.SliceStable(rows, func(i, j int) bool {
		for _, term := range order {
			c, err := core.Compare(rows[i].Values[term.Column], rows[j].Values[term.Column])
			if err != nil || c == 0 {
				continue
			}
			if term.Descending {
				return c > 0
			}
			return c < 0
		}
		return false
	})
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
	} else {
		for _, existing := range t.rows {
			if existing.ID == stored.ID {
				return 0, fmt.Errorf("duplicate rowid %d", stored.ID)
			}
		}
	}
	if stored.ID >= t.nextID {
		t.nextID = stored.ID + 1
	}
	t.rows = append(t.rows, stored)
	t.logger.Debug("memory insert", "rowid", stored.ID)
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
			t.logger.Debug("memory delete", "rowid", rowid)
			return nil
		}
	}
	return nil
}

// UpdateRow implements adapter.Updater.
func (t *Table) UpdateRow(ctx context.Context, rowid int64, row core.Row) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	for i, existing := range t.rows {
		if existing.ID == rowid {
			stored := row.Clone()
			if stored.ID == core.UnassignedRowID {
				stored.ID = rowid
			}
			if stored.ID >= t.nextID {
				t.nextID = stored.ID + 1
			}
			t.rows[i] = stored
			return nil
		}
	}
	return fmt.Errorf("rowid %d not found", rowid)
}

// Count returns the current number of rows.
func (t *Table) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.rows)
}

// Driver serves a fixed set of named fixture tables.
type Driver struct {
	mu     sync.RWMutex
	tables map[string]*Table
}

// NewDriver returns a driver with no tables bound yet.
func NewDriver() *Driver {
	return &Driver{tables: make(map[string]*Table)}
}

// Add binds a table to a memory:// URI.
func (d *Driver) Add(uri string, t *Table) *Driver {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.tables[uri] = t
	return d
}

// Name implements adapter.Driver.
func (d *Driver) Name() string { return "memory" }

// Supports implements adapter.Driver. Only URIs bound via Add are
// claimed, so multiple memory drivers can coexist in one registry.
func (d *Driver) Supports(uri string) bool {
	if !strings.HasPrefix(uri, Scheme) {
		return false
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.tables[uri]
	return ok
}

// Open implements adapter.Driver.
func (d *Driver) Open(uri string, _ *slog.Logger) (adapter.Adapter, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	t, ok := d.tables[uri]
	if !ok {
		return nil, fmt.Errorf("no memory table bound to %q", uri)
	}
	return t, nil
}

var (
	_ adapter.Adapter  = (*Table)(nil)
	_ adapter.Inserter = (*Table)(nil)
	_ adapter.Deleter  = (*Table)(nil)
	_ adapter.Updater  = (*Table)(nil)
	_ adapter.Driver   = (*Driver)(nil)
)
