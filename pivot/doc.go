// Package pivot maintains the aggregation tree of a grouped view.
//
// The tree lives in an arena of nodes addressed by NodeID; the root is the
// grand total and every level below it groups rows by one pivot column.
// A step partitions the rows that changed into strands, one per pivot
// path, merges them into a private copy of the committed tree, prunes the
// nodes left without rows and recomputes the aggregates of the nodes it
// touched. Readers keep using the committed tree until the stage is
// committed, and a cancelled step leaves it untouched.
package pivot
