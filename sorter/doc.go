// Package sorter orders row permutations by a sequence of sort keys.
//
// Each key is applied as one stable pass over the permutation, from the
// least significant key to the primary one. The pass is picked from the
// column dtype: integer, boolean and date columns are radix sorted on a
// sign-flipped bit pattern, absolute float keys are radix sorted on the
// sign-cleared IEEE-754 pattern, small string vocabularies are ranked once
// and radix sorted by rank, and everything else goes through a stable
// comparison sort. Invalid and error cells always follow valid ones.
//
// Reuse lets a caller keep the current order when only the leading keys of
// a spec changed.
package sorter
