// Package adapter defines the contract between tablebridge and pluggable
// data sources, plus the discovery registry that maps resource URIs to
// adapter drivers.
//
// An Adapter exposes one external resource (a spreadsheet, an API, an
// in-memory fixture) as a scannable table. Mutation support is optional
// and declared by implementing Inserter, Deleter, and Updater.
package adapter

import (
	"context"
	"log/slog"

	"github.com/leapstack-labs/tablebridge/pkg/core"
)

// Adapter is the interface every data source implements. Exactly one
// Adapter instance backs one virtual table for the lifetime of the
// binding; the bridge never shares an instance across tables.
//
// The bridge drives one scan at a time from the engine's calling
// goroutine. Adapters shared across connections by the embedding
// application must synchronize internally.
type Adapter interface {
	// Schema returns the table's column capability descriptors. The
	// schema is built once and never changes for the adapter's lifetime.
	Schema() *core.Schema

	// GetRows starts a scan and returns a fresh iterator over the rows.
	// Each filter in bounds may be applied if the corresponding field
	// declared support for its kind; under-applying is always safe
	// because the bridge re-checks rows from non-exact fields. A row
	// matching the bounds must never be omitted.
	//
	// When order is non-empty the engine claimed the sort during
	// planning, which only happens if every term is covered by the
	// field's declared order capability; adapters declaring OrderAny
	// must honor it.
	GetRows(ctx context.Context, bounds core.Bounds, order []core.SortTerm) (RowIterator, error)
}

// RowIterator streams rows from one scan. Close must be safe to call at
// any point, including before exhaustion: the bridge guarantees it is
// invoked on every exit path so adapters can scope per-scan resources
// to the iterator.
type RowIterator interface {
	// Next advances to the next row, returning false at the end of the
	// scan or on error.
	Next() bool

	// Row returns the current row. Only valid after Next returned true.
	Row() core.Row

	// Err returns the error that terminated iteration, if any.
	Err() error

	// Close releases resources held by the scan.
	Close() error
}

// Inserter is implemented by adapters that support row insertion.
type Inserter interface {
	// InsertRow appends a row. When row.ID is core.UnassignedRowID the
	// adapter assigns the next free identity. The final rowid is
	// returned.
	InsertRow(ctx context.Context, row core.Row) (int64, error)
}

// Deleter is implemented by adapters that support row deletion.
type Deleter interface {
	// DeleteRow removes the row with the given identity. Deleting an
	// absent rowid is a no-op, not an error, so the engine's recovery
	// path can issue duplicate deletes safely.
	DeleteRow(ctx context.Context, rowid int64) error
}

// Updater is implemented by adapters that can update a row in place.
// The bridge falls back to delete-plus-insert under the original rowid
// when an adapter implements Inserter and Deleter but not Updater.
type Updater interface {
	// UpdateRow replaces the values of the row with the given identity.
	// row.ID carries the row's new identity, which the engine may have
	// changed.
	UpdateRow(ctx context.Context, rowid int64, row core.Row) error
}

// Driver describes one adapter type to the discovery registry.
type Driver interface {
	// Name is the driver's registry name, also used as the engine
	// module name. Must be a valid SQL identifier.
	Name() string

	// Supports reports whether this driver can handle the resource
	// locator. It must be fast and side-effect-free: no network calls,
	// no filesystem writes. A panic is treated as "not supported".
	Supports(uri string) bool

	// Open parses the URI and constructs an adapter bound to the
	// resource. It fails only on malformed URIs or unreachable
	// resources. A nil logger is replaced with a discard logger.
	Open(uri string, logger *slog.Logger) (Adapter, error)
}
