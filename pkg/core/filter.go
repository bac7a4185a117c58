package core

// Filter is a predicate over one column's raw value. Filters are
// immutable value objects: the bridge constructs them from the engine's
// bound constraint values and never mutates them afterwards.
type Filter interface {
	// Kind identifies the filter variant for capability checks.
	Kind() FilterKind

	// Check reports whether the value satisfies the predicate. It is a
	// pure function; values that cannot be compared fail the check
	// rather than erroring.
	Check(value any) bool
}

// Equal matches values equal to Value.
type Equal struct {
	Value any
}

// Kind implements Filter.
func (Equal) Kind() FilterKind { return KindEqual }

// Check implements Filter.
func (f Equal) Check(value any) bool {
	return equalValues(value, f.Value)
}

// Range matches values between Low and High. Either bound may be nil,
// meaning unconstrained on that side, and each side is independently
// inclusive or exclusive.
//
// A Range whose low bound exceeds its high bound is permitted: it
// simply matches no rows. Construction never fails.
type Range struct {
	Low, High               any
	IncludeLow, IncludeHigh bool
}

// Kind implements Filter.
func (Range) Kind() FilterKind { return KindRange }

// Check implements Filter.
func (f Range) Check(value any) bool {
	if value == nil {
		return false
	}
	if f.Low != nil {
		c, err := Compare(value, f.Low)
		if err != nil || c < 0 || (c == 0 && !f.IncludeLow) {
			return false
		}
	}
	if f.High != nil {
		c, err := Compare(value, f.High)
		if err != nil || c > 0 || (c == 0 && !f.IncludeHigh) {
			return false
		}
	}
	return true
}

// In matches values equal to any member of Values.
type In struct {
	Values []any
}

// Kind implements Filter.
func (In) Kind() FilterKind { return KindIn }

// Check implements Filter.
func (f In) Check(value any) bool {
	for _, v := range f.Values {
		if equalValues(value, v) {
			return true
		}
	}
	return false
}

// Bounds maps column names to the single filter resolved for each
// column in the current scan. A Bounds is constructed fresh per scan
// and discarded when the scan completes.
type Bounds map[string]Filter

// Check reports whether a row satisfies every filter in the bounds.
func (b Bounds) Check(row Row) bool {
	for col, f := range b {
		if !f.Check(row.Values[col]) {
			return false
		}
	}
	return true
}

// MergeRange folds a new range bound into an existing filter for the
// same column, tightening bounds where they overlap.
//
// An existing Equal always wins: equality is at least as selective as
// any range, and the bridge re-checks the dropped bound row-by-row.
// When two bounds on the same side cannot be compared the existing one
// is kept; the recheck path keeps the result correct either way.
func MergeRange(existing Filter, next Range) Filter {
	if existing == nil {
		return next
	}
	switch prev := existing.(type) {
	case Equal:
		return prev
	case Range:
		merged := prev
		if next.Low != nil {
			if merged.Low == nil {
				merged.Low, merged.IncludeLow = next.Low, next.IncludeLow
			} else if c, err := Compare(next.Low, merged.Low); err == nil {
				if c > 0 || (c == 0 && !next.IncludeLow) {
					merged.Low, merged.IncludeLow = next.Low, next.IncludeLow
				}
			}
		}
		if next.High != nil {
			if merged.High == nil {
				merged.High, merged.IncludeHigh = next.High, next.IncludeHigh
			} else if c, err := Compare(next.High, merged.High); err == nil {
				if c < 0 || (c == 0 && !next.IncludeHigh) {
					merged.High, merged.IncludeHigh = next.High, next.IncludeHigh
				}
			}
		}
		return merged
	default:
		return existing
	}
}
