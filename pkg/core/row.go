package core

// UnassignedRowID marks a row that has not been given an identity yet.
// Adapters assign the final rowid on insert. Zero is a valid rowid.
const UnassignedRowID int64 = -1

// Row is one row of a virtual table: a stable identity plus a mapping
// from column name to raw value. Rows are never mutated in place by the
// bridge; an update is modeled as delete plus insert.
type Row struct {
	// ID is the row's stable identity, or UnassignedRowID before the
	// adapter assigns one.
	ID int64

	// Values maps column names to raw values. Columns absent from the
	// map read as NULL.
	Values map[string]any
}

// NewRow returns a row without an identity.
func NewRow(values map[string]any) Row {
	return Row{ID: UnassignedRowID, Values: values}
}

// Clone returns a deep-enough copy: the values map is copied, the
// values themselves are shared.
func (r Row) Clone() Row {
	values := make(map[string]any, len(r.Values))
	for k, v := range r.Values {
		values[k] = v
	}
	return Row{ID: r.ID, Values: values}
}

// SortTerm is one term of a requested sort order.
type SortTerm struct {
	// Column is the column name to sort by.
	Column string

	// Descending requests a descending sort.
	Descending bool
}
