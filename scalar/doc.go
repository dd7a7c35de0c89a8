// Package scalar implements the cell value model shared by tables, filters,
// sorts and pivots.
//
// # Values
//
// A Scalar is a tagged value: a DType, a Status (valid, invalid or error)
// and a payload. Integers, floats, booleans, dates, times and durations are
// stored as a 64-bit pattern; strings up to InlineCap bytes are stored
// inline and longer strings are interned; decimals carry an integer and a
// fractional part; list types hold element scalars.
//
//	s := scalar.Of[int64](42)
//	v, err := scalar.Get[float64](s) // 42, numeric coercion
//	_, err = scalar.Get[string](s)   // *TypeMismatchError
//
// # Ordering
//
// Compare defines a total order used by every sort and set lookup:
// valid values first, numeric values compared across dtypes, strings by a
// case-insensitive collation. Hash agrees with Compare.
//
// # Temporal types
//
// Date counts days from 1899-12-30. Time and Duration store fractional days
// (1.0 is 24 hours) and compare on a grid of Epsilon steps. AggLevelNum,
// AggLevelStr and Scalar.AtLevel project temporal values onto coarser
// buckets such as year, quarter or month.
package scalar
