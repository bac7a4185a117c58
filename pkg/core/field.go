package core

// Type is the semantic type of a column.
type Type int

// Supported column types.
const (
	TypeInteger Type = iota
	TypeFloat
	TypeText
	TypeBool
	TypeDate
	TypeTimestamp
	TypeBlob
)

// String returns a human-readable name for the type.
func (t Type) String() string {
	switch t {
	case TypeInteger:
		return "integer"
	case TypeFloat:
		return "float"
	case TypeText:
		return "text"
	case TypeBool:
		return "bool"
	case TypeDate:
		return "date"
	case TypeTimestamp:
		return "timestamp"
	case TypeBlob:
		return "blob"
	default:
		return "unknown"
	}
}

// SQLType returns the SQL column type used when declaring the column to
// the embedded engine.
func (t Type) SQLType() string {
	switch t {
	case TypeInteger, TypeBool:
		return "INTEGER"
	case TypeFloat:
		return "REAL"
	case TypeBlob:
		return "BLOB"
	default:
		// Dates and timestamps are surfaced as ISO 8601 text.
		return "TEXT"
	}
}

// Order declares a column's sort-order capability.
type Order int

// Sort-order capabilities.
const (
	// OrderNone means the adapter returns rows in no particular order.
	OrderNone Order = iota

	// OrderAscending means rows naturally come back ascending by this column.
	OrderAscending

	// OrderDescending means rows naturally come back descending by this column.
	OrderDescending

	// OrderAny means the adapter can sort by this column in either
	// direction on request.
	OrderAny
)

// FilterKind identifies a filter variant a field may support.
type FilterKind int

// Filter kinds.
const (
	KindEqual FilterKind = iota
	KindRange
	KindIn
)

// Field describes one column's capabilities: its semantic type, which
// filter kinds the adapter can apply to it, its sort-order capability,
// and whether applied filters are exact.
//
// A Field is declared once when an adapter's schema is built and never
// mutated afterwards.
type Field struct {
	// Name is the column name.
	Name string

	// Type is the semantic type of the column.
	Type Type

	// Filters lists the filter kinds the adapter can apply to this column.
	Filters []FilterKind

	// Order is the declared sort-order capability.
	Order Order

	// Exact reports that when the adapter applies a supported filter to
	// this column, the returned rows already satisfy it and the bridge
	// does not need to re-check them.
	Exact bool
}

// Supports reports whether the field declared support for the given
// filter kind.
func (f Field) Supports(kind FilterKind) bool {
	for _, k := range f.Filters {
		if k == kind {
			return true
		}
	}
	return false
}

// CanSort reports whether the field can satisfy a sort in the requested
// direction. OrderAny covers both directions; OrderAscending and
// OrderDescending must match the request exactly.
func (f Field) CanSort(descending bool) bool {
	switch f.Order {
	case OrderAny:
		return true
	case OrderAscending:
		return !descending
	case OrderDescending:
		return descending
	default:
		return false
	}
}
