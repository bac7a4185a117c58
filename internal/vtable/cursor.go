//go:build sqlite_vtable

package vtable

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"

	"github.com/leapstack-labs/tablebridge/pkg/adapter"
	"github.com/leapstack-labs/tablebridge/pkg/core"
)

// colFilter is one predicate the cursor re-checks row by row.
type colFilter struct {
	column string
	filter core.Filter
}

// Cursor streams one scan. The engine drives it synchronously: Filter
// starts the scan, Next/Column/Rowid consume it, Close releases it.
// Abandoning a scan early still goes through Close, so the adapter's
// iterator is always released.
type Cursor struct {
	table   *Table
	iter    adapter.RowIterator
	row     core.Row
	eof     bool
	recheck []colFilter
}

// Filter implements sqlite3.VTabCursor — the FILTERING phase. The
// engine binds concrete values to the constraints claimed during
// planning; the cursor folds them into the Bounds, starts the adapter
// scan, and records which predicates need a row-level recheck.
func (c *Cursor) Filter(_ int, idxStr string, vals []any) error {
	// The engine may rescan an open cursor; drop any previous state.
	if err := c.release(); err != nil {
		return err
	}
	c.row = core.Row{}
	c.recheck = nil
	c.eof = false

	plan, err := decodePlan(idxStr)
	if err != nil {
		return err
	}
	if len(vals) < len(plan.Claims) {
		return fmt.Errorf("engine bound %d values for %d claims", len(vals), len(plan.Claims))
	}

	perColumn := make(map[string][]core.Filter)
	for i, cl := range plan.Claims {
		field, ok := c.table.schema.Field(cl.Column)
		if !ok {
			return fmt.Errorf("plan references unknown column %q", cl.Column)
		}
		f, err := filterForClaim(cl.Op, fromEngine(vals[i], field))
		if err != nil {
			return err
		}
		perColumn[cl.Column] = append(perColumn[cl.Column], f)
	}

	bounds := make(core.Bounds, len(perColumn))
	for col, filters := range perColumn {
		field, _ := c.table.schema.Field(col)
		bounds[col] = mergeFilters(filters)

		// A non-exact field's rows may come back unfiltered; a merged
		// column may have lost precision if bounds were incomparable.
		// Either way every original predicate is re-checked.
		if !field.Exact || len(filters) > 1 {
			for _, f := range filters {
				c.recheck = append(c.recheck, colFilter{column: col, filter: f})
			}
		}
	}

	iter, err := c.table.adapter.GetRows(context.Background(), bounds, plan.Order)
	if err != nil {
		return fmt.Errorf("scan of %q failed: %w", c.table.uri, err)
	}
	c.iter = iter

	c.table.logger.Debug("scan started",
		"scan", uuid.NewString(),
		"uri", c.table.uri,
		"claimed", len(plan.Claims),
		"recheck", len(c.recheck),
		"ordered", len(plan.Order) > 0)

	return c.advance()
}

// mergeFilters resolves multiple claimed filters on one column into the
// single filter handed to the adapter. An equality dominates; range
// bounds tighten each other.
func mergeFilters(filters []core.Filter) core.Filter {
	for _, f := range filters {
		if f.Kind() == core.KindEqual {
			return f
		}
	}
	var merged core.Filter
	for _, f := range filters {
		if r, ok := f.(core.Range); ok {
			merged = core.MergeRange(merged, r)
		}
	}
	return merged
}

// Next implements sqlite3.VTabCursor.
func (c *Cursor) Next() error {
	return c.advance()
}

// advance moves to the next row that passes every recheck predicate.
func (c *Cursor) advance() error {
	if c.iter == nil {
		c.eof = true
		return nil
	}
	for c.iter.Next() {
		row := c.iter.Row()
		if c.passes(row) {
			c.row = row
			return nil
		}
	}

	err := c.iter.Err()
	if closeErr := c.release(); err == nil {
		err = closeErr
	}
	c.eof = true
	if err != nil {
		return fmt.Errorf("scan of %q aborted: %w", c.table.uri, err)
	}
	return nil
}

// passes applies the recheck predicates to one row.
func (c *Cursor) passes(row core.Row) bool {
	for _, cf := range c.recheck {
		if !cf.filter.Check(row.Values[cf.column]) {
			return false
		}
	}
	return true
}

// EOF implements sqlite3.VTabCursor.
func (c *Cursor) EOF() bool {
	return c.eof
}

// Column implements sqlite3.VTabCursor.
func (c *Cursor) Column(ctx *sqlite3.SQLiteContext, col int) error {
	field, ok := c.table.schema.FieldAt(col)
	if !ok {
		return fmt.Errorf("engine requested unknown column %d", col)
	}
	return resultColumn(ctx, c.row.Values[field.Name])
}

// Rowid implements sqlite3.VTabCursor.
func (c *Cursor) Rowid() (int64, error) {
	return c.row.ID, nil
}

// Close implements sqlite3.VTabCursor — the end of the scan state
// machine, reached on exhaustion and on early abandonment alike.
func (c *Cursor) Close() error {
	return c.release()
}

// release closes the adapter iterator at most once.
func (c *Cursor) release() error {
	if c.iter == nil {
		return nil
	}
	iter := c.iter
	c.iter = nil
	return iter.Close()
}

var _ sqlite3.VTabCursor = (*Cursor)(nil)
