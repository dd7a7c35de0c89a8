package pivot

import (
	"maps"
	"slices"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/vegasq/cubecat/aggregate"
	"github.com/vegasq/cubecat/scalar"
	"github.com/vegasq/cubecat/table"
)

// NodeID addresses a node in the tree arena.
type NodeID int32

// RootID is the grand total node. It exists in every tree.
const RootID NodeID = 0

// NoNode is returned by lookups that find nothing.
const NoNode NodeID = -1

// Node is the read-only view of one tree node.
type Node struct {
	ID     NodeID
	Parent NodeID
	Depth  int
	Value  scalar.Scalar
	// Count is the number of rows under the node, hidden rows included.
	Count int
	// Hidden is the number of rows the node keeps for values cut by a
	// top-N limit on the next level.
	Hidden int
}

type node struct {
	live     bool
	parent   NodeID
	depth    int
	value    scalar.Scalar
	count    int
	children []NodeID
	index    map[uint64][]NodeID
	// rows are the rows of a leaf, or the hidden rows of an inner node.
	rows *roaring.Bitmap
	accs []aggregate.Accumulator
	aggs []scalar.Scalar
}

// Tree is a committed pivot tree. It is immutable: steps build a new Tree
// that shares the nodes it did not touch.
type Tree struct {
	cfg       Config
	cfgSig    uint64
	tbl       *table.Table
	epoch     uint64
	filterSig uint64
	members   *roaring.Bitmap
	nodes     []node
	free      []NodeID
	size      int
}

func newTree(cfg Config, sig uint64, tbl *table.Table) *Tree {
	t := &Tree{cfg: cfg, cfgSig: sig, tbl: tbl, members: roaring.New()}
	t.nodes = append(t.nodes, node{live: true, parent: NoNode, value: scalar.None()})
	t.size = 1
	return t
}

// clone copies the arena. Node payloads stay shared until a stage takes
// ownership of them.
func (t *Tree) clone() *Tree {
	c := *t
	c.nodes = slices.Clone(t.nodes)
	c.free = slices.Clone(t.free)
	c.members = t.members.Clone()
	return &c
}

func (t *Tree) valid(id NodeID) bool {
	return id >= 0 && int(id) < len(t.nodes) && t.nodes[id].live
}

// Root returns the grand total node id.
func (t *Tree) Root() NodeID { return RootID }

// Len returns the number of live nodes, the root included.
func (t *Tree) Len() int { return t.size }

// Levels returns the number of pivot levels. Leaves sit at this depth.
func (t *Tree) Levels() int { return len(t.cfg.Pivots) }

// Config returns the config the tree was built with.
func (t *Tree) Config() Config { return t.cfg }

// Epoch returns the table epoch the tree reflects.
func (t *Tree) Epoch() uint64 { return t.epoch }

// FilterSignature returns the signature of the filter the tree was built with.
func (t *Tree) FilterSignature() uint64 { return t.filterSig }

// Members returns a copy of the rows aggregated by the tree.
func (t *Tree) Members() *roaring.Bitmap { return t.members.Clone() }

// Node returns the node with the given id.
func (t *Tree) Node(id NodeID) (Node, bool) {
	if !t.valid(id) {
		return Node{}, false
	}
	n := &t.nodes[id]
	out := Node{ID: id, Parent: n.parent, Depth: n.depth, Value: n.value, Count: n.count}
	if n.depth < len(t.cfg.Pivots) && n.rows != nil {
		out.Hidden = int(n.rows.GetCardinality())
	}
	return out, true
}

// Depth returns the depth of id, or -1 for an unknown node.
func (t *Tree) Depth(id NodeID) int {
	if !t.valid(id) {
		return -1
	}
	return t.nodes[id].depth
}

// Children returns the children of id in creation order.
func (t *Tree) Children(id NodeID) []NodeID {
	if !t.valid(id) {
		return nil
	}
	return slices.Clone(t.nodes[id].children)
}

// Path returns the pivot values from the root down to id. The root has an
// empty path.
func (t *Tree) Path(id NodeID) []scalar.Scalar {
	if !t.valid(id) {
		return nil
	}
	path := make([]scalar.Scalar, t.nodes[id].depth)
	for id != RootID {
		n := &t.nodes[id]
		path[n.depth-1] = n.value
		id = n.parent
	}
	return path
}

// Find returns the node at path.
func (t *Tree) Find(path ...scalar.Scalar) (NodeID, bool) {
	id := RootID
	for _, v := range path {
		if id = t.child(id, v); id == NoNode {
			return NoNode, false
		}
	}
	return id, true
}

func (t *Tree) child(parent NodeID, v scalar.Scalar) NodeID {
	for _, c := range t.nodes[parent].index[scalar.Hash(v)] {
		if scalar.Equal(t.nodes[c].value, v) {
			return c
		}
	}
	return NoNode
}

// Aggregate returns aggregate i of node id.
func (t *Tree) Aggregate(id NodeID, i int) scalar.Scalar {
	if !t.valid(id) || i < 0 || i >= len(t.nodes[id].aggs) {
		return scalar.None()
	}
	return t.nodes[id].aggs[i]
}

// Aggregates returns every aggregate of node id in config order.
func (t *Tree) Aggregates(id NodeID) []scalar.Scalar {
	if !t.valid(id) {
		return nil
	}
	return slices.Clone(t.nodes[id].aggs)
}

// Rows returns the rows under id in ascending order.
func (t *Tree) Rows(id NodeID) []uint32 {
	if !t.valid(id) {
		return nil
	}
	acc := roaring.New()
	stack := []NodeID{id}
	for len(stack) > 0 {
		n := &t.nodes[stack[len(stack)-1]]
		stack = stack[:len(stack)-1]
		if n.rows != nil {
			acc.Or(n.rows)
		}
		stack = append(stack, n.children...)
	}
	return acc.ToArray()
}

// Walk calls fn for every live node in depth-first order, children in
// creation order, until fn returns false.
func (t *Tree) Walk(fn func(id NodeID) bool) {
	stack := []NodeID{RootID}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !fn(id) {
			return
		}
		kids := t.nodes[id].children
		for i := len(kids) - 1; i >= 0; i-- {
			stack = append(stack, kids[i])
		}
	}
}

// own makes the payload of node id private to this tree. owned tracks the
// nodes already copied.
func (t *Tree) own(id NodeID, owned map[NodeID]bool) *node {
	n := &t.nodes[id]
	if owned[id] {
		return n
	}
	n.children = slices.Clone(n.children)
	if n.index != nil {
		idx := maps.Clone(n.index)
		for h, ids := range idx {
			idx[h] = slices.Clone(ids)
		}
		n.index = idx
	}
	if n.rows != nil {
		n.rows = n.rows.Clone()
	}
	owned[id] = true
	return n
}

// alloc returns a fresh node slot, reusing released ones first.
func (t *Tree) alloc(parent NodeID, v scalar.Scalar, owned map[NodeID]bool) NodeID {
	n := node{live: true, parent: parent, depth: t.nodes[parent].depth + 1, value: v}
	var id NodeID
	if k := len(t.free); k > 0 {
		id = t.free[k-1]
		t.free = t.free[:k-1]
		t.nodes[id] = n
	} else {
		id = NodeID(len(t.nodes))
		t.nodes = append(t.nodes, n)
	}
	owned[id] = true
	t.size++

	p := t.own(parent, owned)
	p.children = append(p.children, id)
	if p.index == nil {
		p.index = make(map[uint64][]NodeID)
	}
	h := scalar.Hash(v)
	p.index[h] = append(p.index[h], id)
	return id
}

// unlink detaches id from its parent and releases its subtree. It returns
// the number of nodes released.
func (t *Tree) unlink(id NodeID, owned map[NodeID]bool) int {
	parent := t.nodes[id].parent
	p := t.own(parent, owned)
	p.children = slices.DeleteFunc(p.children, func(c NodeID) bool { return c == id })
	h := scalar.Hash(t.nodes[id].value)
	if ids := slices.DeleteFunc(p.index[h], func(c NodeID) bool { return c == id }); len(ids) > 0 {
		p.index[h] = ids
	} else {
		delete(p.index, h)
	}

	released := 0
	stack := []NodeID{id}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		stack = append(stack, t.nodes[cur].children...)
		t.nodes[cur] = node{}
		t.free = append(t.free, cur)
		delete(owned, cur)
		released++
	}
	t.size -= released
	return released
}
