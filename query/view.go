package query

import (
	"slices"

	"github.com/vegasq/cubecat/pivot"
	"github.com/vegasq/cubecat/scalar"
	"github.com/vegasq/cubecat/table"
	"github.com/vegasq/cubecat/traversal"
)

// View is a read-only snapshot of a committed view. It stays valid while
// later steps commit; call Release when done with it.
type View struct {
	tbl   *table.Table
	epoch uint64
	// Exactly one of flat and tree is set.
	flat    *traversal.Flat
	tree    *traversal.Tree
	updated []int
}

// View returns a snapshot of the committed view.
func (c *Context) View() (*View, error) {
	c.viewMu.RLock()
	defer c.viewMu.RUnlock()
	v := &View{tbl: c.tbl, epoch: c.epoch, updated: c.updated}
	switch {
	case c.tree != nil:
		v.tree = c.tree.Snapshot()
	case c.flat != nil:
		v.flat = c.flat.Snapshot()
	default:
		return nil, ErrNoView
	}
	return v, nil
}

// Release gives up the snapshot.
func (v *View) Release() {
	if v.flat != nil {
		v.flat.Release()
		v.flat = nil
	}
	if v.tree != nil {
		v.tree.Release()
		v.tree = nil
	}
}

// Grouped reports whether the view is a pivot tree.
func (v *View) Grouped() bool { return v.tree != nil }

// Flat returns the row index of an ungrouped view, or nil.
func (v *View) Flat() *traversal.Flat { return v.flat }

// Tree returns the node index of a grouped view, or nil.
func (v *View) Tree() *traversal.Tree { return v.tree }

// Table returns the table the view was built from.
func (v *View) Table() *table.Table { return v.tbl }

// Epoch returns the table epoch the view reflects.
func (v *View) Epoch() uint64 { return v.epoch }

// Len returns the number of visible rows or nodes.
func (v *View) Len() int {
	if v.tree != nil {
		return v.tree.Len()
	}
	if v.flat != nil {
		return v.flat.Len()
	}
	return 0
}

// Updated returns the sorted positions of rows that changed in the step
// that produced the view. Grouped views report none.
func (v *View) Updated() []int { return slices.Clone(v.updated) }

// Expand shows the children of the node at pos in the committed grouped
// view. It reports whether anything changed.
func (c *Context) Expand(pos int) (bool, error) {
	return c.toggle(pos, (*traversal.Tree).Expand)
}

// Collapse hides the descendants of the node at pos.
func (c *Context) Collapse(pos int) (bool, error) {
	return c.toggle(pos, (*traversal.Tree).Collapse)
}

func (c *Context) toggle(pos int, fn func(*traversal.Tree, int) (*traversal.Tree, bool)) (bool, error) {
	if !c.mu.TryLock() {
		return false, ErrStepInProgress
	}
	defer c.mu.Unlock()
	c.viewMu.Lock()
	defer c.viewMu.Unlock()
	if c.tree == nil {
		return false, ErrNoView
	}
	path := c.tree.Path(pos)
	var changed bool
	c.tree, changed = fn(c.tree, pos)
	// A step staged before the toggle keeps its tree in line with it.
	if st := c.st; changed && st != nil && st.tree != nil {
		if p, ok := st.tree.Position(path...); ok {
			st.tree, _ = fn(st.tree, p)
		}
	}
	if changed {
		c.metrics.rows(c.tree.Len())
	}
	return changed, nil
}

// Rows returns the cells of the visible rows [start, end) of a flat view,
// in schema order.
func (v *View) Rows(start, end int) [][]scalar.Scalar {
	if v.flat == nil {
		return nil
	}
	ids := v.flat.Window(start, end)
	out := make([][]scalar.Scalar, len(ids))
	for i, row := range ids {
		out[i] = v.tbl.Row(row)
	}
	return out
}

// Nodes returns the visible nodes [start, end) of a grouped view.
func (v *View) Nodes(start, end int) []pivot.Node {
	if v.tree == nil {
		return nil
	}
	ids := v.tree.Window(start, end)
	out := make([]pivot.Node, 0, len(ids))
	src := v.tree.Source()
	for _, id := range ids {
		if n, ok := src.Node(id); ok {
			out = append(out, n)
		}
	}
	return out
}
