package traversal

import (
	"errors"
	"maps"
	"slices"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"

	"github.com/vegasq/cubecat/pivot"
	"github.com/vegasq/cubecat/progress"
	"github.com/vegasq/cubecat/scalar"
	"github.com/vegasq/cubecat/sorter"
)

// TreeOrder orders the siblings of a pivot tree.
type TreeOrder struct {
	// Aggregate is the aggregate index siblings are sorted by; -1 sorts
	// them by pivot value.
	Aggregate int
	Type      sorter.Type
}

// ByValue orders siblings by ascending pivot value.
var ByValue = TreeOrder{Aggregate: -1}

// TreeInput is what a tree step reads.
type TreeInput struct {
	Tree  *pivot.Tree
	Order TreeOrder
	// Depth is the default expansion depth: nodes shallower than Depth are
	// expanded unless collapsed explicitly.
	Depth int
}

// Tree is the visible depth-first node order of a grouped view.
//
// Expansion state is kept per pivot path, so it survives rebuilds that
// renumber nodes. Expand and Collapse copy the Tree first when another
// holder shares it.
type Tree struct {
	refs atomic.Int32

	src   *pivot.Tree
	order TreeOrder
	depth int
	// overrides holds explicit expand (true) and collapse (false) state
	// by path hash.
	overrides map[uint64]bool

	nodes []pivot.NodeID
	index map[pivot.NodeID]int
}

// Step materializes in on top of t; t may be nil. The returned Tree holds
// one reference owned by the caller.
func (t *Tree) Step(in TreeInput, rep *progress.Reporter) (*Tree, error) {
	if rep == nil {
		rep = progress.Discard()
	}
	if in.Tree == nil {
		return nil, errors.New("tree step: nil pivot tree")
	}
	if t != nil && t.src == in.Tree && t.order == in.Order && t.depth == in.Depth {
		t.Retain()
		return t, nil
	}
	next := &Tree{src: in.Tree, order: in.Order, depth: in.Depth, overrides: make(map[uint64]bool)}
	if t != nil {
		maps.Copy(next.overrides, t.overrides)
	}
	next.refs.Store(1)
	if err := next.layout(rep); err != nil {
		return nil, err
	}
	return next, nil
}

// layout rebuilds the visible order from the pivot tree. Cancellation is
// polled once per expanded node.
func (t *Tree) layout(rep *progress.Reporter) error {
	t.nodes = t.nodes[:0]
	stack := []pivot.NodeID{pivot.RootID}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		t.nodes = append(t.nodes, id)
		if !t.expanded(id) {
			continue
		}
		if err := rep.Step(len(t.nodes), t.src.Len()); err != nil {
			return err
		}
		kids := t.children(id)
		for i := len(kids) - 1; i >= 0; i-- {
			stack = append(stack, kids[i])
		}
	}
	t.index = make(map[pivot.NodeID]int, len(t.nodes))
	for i, id := range t.nodes {
		t.index[id] = i
	}
	rep.Done()
	return nil
}

func (t *Tree) children(id pivot.NodeID) []pivot.NodeID {
	kids := t.src.Children(id)
	if t.order.Type == sorter.None {
		return kids
	}
	key := func(c pivot.NodeID) scalar.Scalar {
		if t.order.Aggregate >= 0 {
			return t.src.Aggregate(c, t.order.Aggregate)
		}
		n, _ := t.src.Node(c)
		return n.Value
	}
	desc := t.order.Type.IsDescending()
	abs := t.order.Type.IsAbs()
	slices.SortStableFunc(kids, func(a, b pivot.NodeID) int {
		x, y := key(a), key(b)
		if abs {
			x, y = x.Abs(), y.Abs()
		}
		c := scalar.Compare(x, y)
		if desc && x.IsValid() && y.IsValid() {
			c = -c
		}
		return c
	})
	return kids
}

func pathKey(path []scalar.Scalar) uint64 {
	d := xxhash.New()
	var buf [8]byte
	for _, v := range path {
		h := scalar.Hash(v)
		for i := range buf {
			buf[i] = byte(h >> (8 * i))
		}
		_, _ = d.Write(buf[:])
	}
	return d.Sum64()
}

func (t *Tree) expanded(id pivot.NodeID) bool {
	depth := t.src.Depth(id)
	if depth >= t.src.Levels() {
		return false
	}
	if v, ok := t.overrides[pathKey(t.src.Path(id))]; ok {
		return v
	}
	return depth < t.depth
}

// Retain adds a reference and returns t.
func (t *Tree) Retain() *Tree {
	t.refs.Add(1)
	return t
}

// Release drops a reference.
func (t *Tree) Release() {
	if t.refs.Add(-1) < 0 {
		panic("traversal: Tree released more often than retained")
	}
}

// Shared reports whether more than one holder references t.
func (t *Tree) Shared() bool { return t.refs.Load() > 1 }

// Snapshot returns t with an added reference.
func (t *Tree) Snapshot() *Tree { return t.Retain() }

// mutable returns t itself when its caller is the only holder, or a
// private copy otherwise. The copy takes over the caller's reference.
func (t *Tree) mutable() *Tree {
	if !t.Shared() {
		return t
	}
	c := &Tree{
		src:       t.src,
		order:     t.order,
		depth:     t.depth,
		overrides: maps.Clone(t.overrides),
		nodes:     slices.Clone(t.nodes),
		index:     maps.Clone(t.index),
	}
	c.refs.Store(1)
	t.Release()
	return c
}

// Expand shows the children of the node at pos. It returns the Tree to
// use from now on and whether anything changed.
func (t *Tree) Expand(pos int) (*Tree, bool) { return t.toggle(pos, true) }

// Collapse hides the descendants of the node at pos.
func (t *Tree) Collapse(pos int) (*Tree, bool) { return t.toggle(pos, false) }

func (t *Tree) toggle(pos int, open bool) (*Tree, bool) {
	id, ok := t.Node(pos)
	if !ok || t.src.Depth(id) >= t.src.Levels() || t.expanded(id) == open {
		return t, false
	}
	m := t.mutable()
	m.overrides[pathKey(m.src.Path(id))] = open
	// layout cannot fail without a cancellable reporter
	_ = m.layout(progress.Discard())
	return m, true
}

// IsExpanded reports whether the node at pos shows its children.
func (t *Tree) IsExpanded(pos int) bool {
	id, ok := t.Node(pos)
	return ok && t.expanded(id)
}

// Source returns the pivot tree t was laid out from.
func (t *Tree) Source() *pivot.Tree { return t.src }

// Len returns the number of visible nodes, the root included.
func (t *Tree) Len() int { return len(t.nodes) }

// Node returns the node id at pos.
func (t *Tree) Node(pos int) (pivot.NodeID, bool) {
	if pos < 0 || pos >= len(t.nodes) {
		return pivot.NoNode, false
	}
	return t.nodes[pos], true
}

// Depth returns the depth of the node at pos, or -1.
func (t *Tree) Depth(pos int) int {
	id, ok := t.Node(pos)
	if !ok {
		return -1
	}
	return t.src.Depth(id)
}

// Path returns the pivot path of the node at pos.
func (t *Tree) Path(pos int) []scalar.Scalar {
	id, ok := t.Node(pos)
	if !ok {
		return nil
	}
	return t.src.Path(id)
}

// Position returns the visible position of the node at path.
func (t *Tree) Position(path ...scalar.Scalar) (int, bool) {
	id, ok := t.src.Find(path...)
	if !ok {
		return -1, false
	}
	pos, ok := t.index[id]
	if !ok {
		return -1, false
	}
	return pos, true
}

// Window returns the node ids at positions [start, end).
func (t *Tree) Window(start, end int) []pivot.NodeID {
	start, end = clamp(start, end, len(t.nodes))
	return slices.Clone(t.nodes[start:end])
}
