package adapter

import (
	"errors"
	"fmt"
)

// ErrUnsupported is the sentinel all unsupported-resource errors match
// via errors.Is, whether they surface at query time (unknown table URI)
// or at open time (empty registry).
var ErrUnsupported = errors.New("unsupported table")

// UnsupportedTableError reports that no registered driver claims a
// resource locator.
type UnsupportedTableError struct {
	// Table is the offending table reference or URI.
	Table string
}

// Error implements error.
func (e *UnsupportedTableError) Error() string {
	return fmt.Sprintf("Unsupported table: %s", e.Table)
}

// Is matches ErrUnsupported.
func (e *UnsupportedTableError) Is(target error) bool {
	return target == ErrUnsupported
}

// NotSupportedError reports a mutation operation the adapter did not
// declare. Capability gaps on filters and sorts degrade to full scans
// instead; only mutations fail hard.
type NotSupportedError struct {
	// Op is the operation name, e.g. "insert".
	Op string

	// Driver is the adapter driver name.
	Driver string
}

// Error implements error.
func (e *NotSupportedError) Error() string {
	return fmt.Sprintf("adapter %q does not support %s", e.Driver, e.Op)
}
