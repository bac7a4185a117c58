package adapter

import "github.com/leapstack-labs/tablebridge/pkg/core"

// SliceIterator iterates over an in-memory snapshot of rows. It is the
// building block for adapters whose scans materialize eagerly; each
// GetRows call should hand out a fresh instance so scans stay
// restartable.
type SliceIterator struct {
	rows []core.Row
	pos  int
	err  error
}

// NewSliceIterator wraps a row slice. The iterator takes ownership of
// the slice; callers should pass a copy if they keep mutating it.
func NewSliceIterator(rows []core.Row) *SliceIterator {
	return &SliceIterator{rows: rows, pos: -1}
}

// NewErrIterator returns an iterator that fails immediately with err.
func NewErrIterator(err error) *SliceIterator {
	return &SliceIterator{err: err, pos: -1}
}

// Next implements RowIterator.
func (it *SliceIterator) Next() bool {
	if it.err != nil || it.pos+1 >= len(it.rows) {
		return false
	}
	it.pos++
	return true
}

// Row implements RowIterator.
func (it *SliceIterator) Row() core.Row {
	return it.rows[it.pos]
}

// Err implements RowIterator.
func (it *SliceIterator) Err() error {
	return it.err
}

// Close implements RowIterator.
func (it *SliceIterator) Close() error {
	it.rows = nil
	return nil
}

var _ RowIterator = (*SliceIterator)(nil)
