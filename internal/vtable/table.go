//go:build sqlite_vtable

package vtable

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/mattn/go-sqlite3"

	"github.com/leapstack-labs/tablebridge/pkg/adapter"
	"github.com/leapstack-labs/tablebridge/pkg/core"
)

// Table is one virtual-table binding: exactly one adapter instance for
// the table's lifetime, never shared across tables.
type Table struct {
	uri     string
	driver  adapter.Driver
	adapter adapter.Adapter
	schema  *core.Schema
	logger  *slog.Logger
}

// BestIndex implements sqlite3.VTab — the PLANNING phase. Each usable
// constraint whose field supports the mapped filter kind is claimed:
// its value will be delivered to Filter and the adapter may enforce it.
// The engine omits its own recheck for claimed constraints, so the
// cursor re-checks everything a non-exact field produced.
//
// At most one equality is claimed per column; range bounds on the same
// column are all claimed and merged at filter time. Sort order is
// claimed only when every ORDER BY term is covered by the field's
// declared capability.
func (t *Table) BestIndex(csts []sqlite3.InfoConstraint, ob []sqlite3.InfoOrderBy) (*sqlite3.IndexResult, error) {
	used := make([]bool, len(csts))
	var claims []claim
	equaled := make(map[string]bool)

	for i, cst := range csts {
		if !cst.Usable {
			continue
		}
		field, ok := t.schema.FieldAt(cst.Column)
		if !ok {
			// Negative column index means a rowid constraint; the
			// engine enforces those itself.
			continue
		}
		op, kind, ok := filterKindForOp(cst.Op)
		if !ok || !field.Supports(kind) {
			continue
		}
		if op == opEQ {
			if equaled[field.Name] {
				// First equality wins; duplicates stay with the engine.
				continue
			}
			equaled[field.Name] = true
		}
		used[i] = true
		claims = append(claims, claim{Column: field.Name, Op: op})
	}

	plan := scanPlan{Claims: claims}

	ordered := len(ob) > 0
	for _, term := range ob {
		field, ok := t.schema.FieldAt(term.Column)
		if !ok || !field.CanSort(term.Desc) {
			ordered = false
			break
		}
	}
	if ordered {
		for _, term := range ob {
			field, _ := t.schema.FieldAt(term.Column)
			plan.Order = append(plan.Order, core.SortTerm{Column: field.Name, Descending: term.Desc})
		}
	}

	idxStr, err := plan.encode()
	if err != nil {
		return nil, err
	}

	return &sqlite3.IndexResult{
		IdxNum:         len(claims),
		IdxStr:         idxStr,
		Used:           used,
		AlreadyOrdered: ordered,
		EstimatedCost:  planCost(len(claims)),
		EstimatedRows:  planCost(len(claims)),
	}, nil
}

// Open implements sqlite3.VTab.
func (t *Table) Open() (sqlite3.VTabCursor, error) {
	return &Cursor{table: t}, nil
}

// Disconnect implements sqlite3.VTab, releasing adapter resources.
func (t *Table) Disconnect() error {
	if closer, ok := t.adapter.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// Destroy implements sqlite3.VTab.
func (t *Table) Destroy() error {
	return t.Disconnect()
}

// rowFromValues rebuilds a row from the engine's column value list,
// which follows the schema's declaration order.
func (t *Table) rowFromValues(vals []any) (core.Row, error) {
	fields := t.schema.Fields()
	if len(vals) < len(fields) {
		return core.Row{}, fmt.Errorf("engine passed %d values for %d columns", len(vals), len(fields))
	}
	values := make(map[string]any, len(fields))
	for i, f := range fields {
		values[f.Name] = fromEngine(vals[i], f)
	}
	return core.NewRow(values), nil
}

// Insert implements sqlite3.VTabUpdater. A nil id asks the adapter to
// assign the rowid.
func (t *Table) Insert(id any, vals []any) (int64, error) {
	ins, ok := t.adapter.(adapter.Inserter)
	if !ok {
		return 0, adapter.MutationNotSupported("insert", t.driver)
	}
	row, err := t.rowFromValues(vals)
	if err != nil {
		return 0, err
	}
	if rowid, ok := id.(int64); ok {
		row.ID = rowid
	}
	final, err := ins.InsertRow(context.Background(), row)
	if err != nil {
		return 0, fmt.Errorf("insert into %q failed: %w", t.uri, err)
	}
	return final, nil
}

// Delete implements sqlite3.VTabUpdater.
func (t *Table) Delete(id any) error {
	del, ok := t.adapter.(adapter.Deleter)
	if !ok {
		return adapter.MutationNotSupported("delete", t.driver)
	}
	rowid, ok := id.(int64)
	if !ok {
		return fmt.Errorf("engine passed non-integer rowid %v", id)
	}
	if err := del.DeleteRow(context.Background(), rowid); err != nil {
		return fmt.Errorf("delete from %q failed: %w", t.uri, err)
	}
	return nil
}

// Update implements sqlite3.VTabUpdater. Adapters without native update
// support fall back to delete-plus-insert under the original rowid.
func (t *Table) Update(id any, vals []any) error {
	rowid, ok := id.(int64)
	if !ok {
		return fmt.Errorf("engine passed non-integer rowid %v", id)
	}
	row, err := t.rowFromValues(vals)
	if err != nil {
		return err
	}
	row.ID = rowid

	if upd, ok := t.adapter.(adapter.Updater); ok {
		if err := upd.UpdateRow(context.Background(), rowid, row); err != nil {
			return fmt.Errorf("update of %q failed: %w", t.uri, err)
		}
		return nil
	}

	ins, insOK := t.adapter.(adapter.Inserter)
	del, delOK := t.adapter.(adapter.Deleter)
	if !insOK || !delOK {
		return adapter.MutationNotSupported("update", t.driver)
	}
	if err := del.DeleteRow(context.Background(), rowid); err != nil {
		return fmt.Errorf("update of %q failed deleting old row: %w", t.uri, err)
	}
	if _, err := ins.InsertRow(context.Background(), row); err != nil {
		return fmt.Errorf("update of %q failed inserting new row: %w", t.uri, err)
	}
	return nil
}

var (
	_ sqlite3.VTab        = (*Table)(nil)
	_ sqlite3.VTabUpdater = (*Table)(nil)
)
