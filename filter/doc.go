// Package filter compiles filter terms against a table and evaluates them
// to a Mask of passing rows.
//
// A Term names a column, an operator and its operands. Compile binds the
// terms of one group to the table columns, coerces operands to the column
// dtype and, where the column storage allows it, prepares a specialized
// evaluator that tests 32 rows per call on the native value slice. Other
// terms fall back to per-row scalar evaluation; both paths give the same
// result.
//
//	prog, err := filter.Compile(tbl, []filter.Term{
//		{Column: "qty", Op: filter.OpIn, Bag: []scalar.Scalar{scalar.Int64(2), scalar.Int64(4)}},
//	}, filter.And)
//	mask, err := prog.Evaluate(rep)
//
// Invalid and error cells only match the null and emptiness operators.
// Group filters nest a term group with its own combiner; an empty group
// leaves the enclosing group unchanged.
package filter
