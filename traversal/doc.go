// Package traversal holds the materialized, ordered index of a view: row
// ids for a flat view (Flat) and pivot tree nodes for a grouped one
// (Tree). Both are shared between steps and readers by reference count.
package traversal
