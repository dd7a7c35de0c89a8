// Package table provides the in-memory columnar row store that views are
// materialized from.
//
// A Table holds one typed Column per schema field, a validity status per
// cell, a per-column string Vocab, a live row set and an epoch counter.
// Mutations go through Upsert and Delete and are appended to a bounded
// change log that incremental consumers read with ChangesSince.
package table
