// Package aggregate implements the aggregate functions of pivot nodes.
//
// Every function is an Accumulator: leaves fold the cells of their rows
// with Add, internal nodes fold the accumulators of their children with
// Merge. Custom functions are registered as a reducer and combiner pair.
package aggregate
