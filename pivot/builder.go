package pivot

import (
	"cmp"
	"errors"
	"fmt"
	"runtime"
	"slices"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/vegasq/cubecat/aggregate"
	"github.com/vegasq/cubecat/filter"
	"github.com/vegasq/cubecat/progress"
	"github.com/vegasq/cubecat/scalar"
	"github.com/vegasq/cubecat/table"
)

// Phase names reported to the progress sink.
const (
	PhaseReset     = "pivot reset"
	PhasePartition = "pivot partition"
	PhaseMerge     = "pivot merge"
	PhasePrune     = "pivot prune"
	PhaseRecompute = "pivot recompute"
)

// Option configures a Builder.
type Option func(*Builder)

// WithParallelism bounds the goroutines partitioning one level. Values
// below one mean GOMAXPROCS.
func WithParallelism(n int) Option {
	return func(b *Builder) {
		if n > 0 {
			b.workers = n
		}
	}
}

// Builder maintains the pivot tree of one view across steps.
//
// Each step either rebuilds the tree from every passing row or, when the
// config, filter and table are unchanged apart from logged row changes,
// merges the changed rows into the committed tree. Builders are not safe
// for concurrent use.
type Builder struct {
	cfg     Config
	sig     uint64
	workers int
	tree    *Tree
}

// NewBuilder returns a builder for cfg.
func NewBuilder(cfg Config, opts ...Option) (*Builder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	b := &Builder{cfg: cfg, sig: cfg.Signature(), workers: runtime.GOMAXPROCS(0)}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// Config returns the current config.
func (b *Builder) Config() Config { return b.cfg }

// SetConfig replaces the config. The next step rebuilds the tree.
func (b *Builder) SetConfig(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	b.cfg, b.sig = cfg, cfg.Signature()
	return nil
}

// Tree returns the committed tree, or nil before the first commit.
func (b *Builder) Tree() *Tree { return b.tree }

// Reset drops the committed tree.
func (b *Builder) Reset() { b.tree = nil }

// StepInput is what one step reads.
type StepInput struct {
	Table *table.Table
	// Filter selects the rows to aggregate; nil passes every live row.
	Filter *filter.Program
	// Mask holds the rows passing Filter. It is evaluated when nil and
	// only read when the step rebuilds.
	Mask *filter.Mask
}

// Stage is the result of a step that has not been committed yet.
type Stage struct {
	b    *Builder
	base *Tree
	tree *Tree

	// Reset is set when the step rebuilt the tree.
	Reset      bool
	Strands    int
	Pruned     int
	Recomputed int
}

// Tree returns the staged tree.
func (s *Stage) Tree() *Tree { return s.tree }

// Commit makes the staged tree the builder's tree.
func (s *Stage) Commit() error {
	if s.b.tree != s.base {
		return ErrStaleStage
	}
	s.b.tree = s.tree
	return nil
}

// Step stages and commits one step.
func (b *Builder) Step(in StepInput, rep *progress.Reporter) (*Tree, error) {
	st, err := b.Stage(in, rep)
	if err != nil {
		return nil, err
	}
	if err := st.Commit(); err != nil {
		return nil, err
	}
	return st.tree, nil
}

// step is the working state of one Stage call.
type step struct {
	b     *Builder
	stage *Stage
	tbl   *table.Table
	tree  *Tree
	aggs  *aggregator
	cols  []int
	rep   *progress.Reporter
	owned map[NodeID]bool
	dirty map[NodeID]struct{}
	seeds map[NodeID][]aggregate.Accumulator
}

// Stage runs reset, partition, merge, prune and recompute on a private
// copy of the committed tree. On error, cancellation included, the
// committed tree is left as it was.
func (b *Builder) Stage(in StepInput, rep *progress.Reporter) (*Stage, error) {
	if rep == nil {
		rep = progress.Discard()
	}
	if in.Table == nil {
		return nil, errors.New("pivot step: nil table")
	}
	if err := rep.Check(); err != nil {
		return nil, err
	}
	aggs, err := newAggregator(b.cfg, in.Table)
	if err != nil {
		return nil, err
	}
	cols := make([]int, len(b.cfg.Pivots))
	for i, l := range b.cfg.Pivots {
		c, ok := in.Table.Schema().Index(l.Column)
		if !ok {
			return nil, fmt.Errorf("pivot level %d: %w", i, &table.SchemaError{Column: l.Column})
		}
		cols[i] = c
	}

	s := &step{
		b:     b,
		stage: &Stage{b: b, base: b.tree},
		tbl:   in.Table,
		aggs:  aggs,
		cols:  cols,
		rep:   rep,
		owned: make(map[NodeID]bool),
		dirty: make(map[NodeID]struct{}),
		seeds: make(map[NodeID][]aggregate.Accumulator),
	}
	strands, err := s.partition(in)
	if err != nil {
		return nil, err
	}
	if err := s.merge(strands); err != nil {
		return nil, err
	}
	if err := s.prune(); err != nil {
		return nil, err
	}
	if err := s.recompute(); err != nil {
		return nil, err
	}
	s.stage.tree = s.tree
	return s.stage, nil
}

func (s *step) partition(in StepInput) ([]Strand, error) {
	var filterSig uint64
	if in.Filter != nil {
		filterSig = in.Filter.Signature()
	}

	s.rep.Begin(PhaseReset)
	base := s.stage.base
	reset := base == nil || base.tbl != s.tbl || base.cfgSig != s.b.sig ||
		base.filterSig != filterSig || s.b.cfg.limited()
	var changes []table.Change
	if !reset {
		var ok bool
		changes, ok = s.tbl.ChangesSince(base.epoch)
		reset = !ok
	}

	var rows []uint32
	if reset {
		s.tree = newTree(s.b.cfg, s.b.sig, s.tbl)
		s.owned[RootID] = true
		switch {
		case in.Mask != nil:
			rows = in.Mask.Rows()
		case in.Filter != nil:
			mask, err := in.Filter.Evaluate(s.rep)
			if err != nil {
				return nil, err
			}
			rows = mask.Rows()
		default:
			rows = s.tbl.LiveRows().ToArray()
		}
	} else {
		s.tree = base.clone()
	}
	s.tree.epoch = s.tbl.Epoch()
	s.tree.filterSig = filterSig
	s.stage.Reset = reset
	s.rep.Done()

	s.rep.Begin(PhasePartition)
	live := func(row uint32, col int) scalar.Scalar { return s.tbl.Scalar(row, col) }
	p := &partitioner{
		levels:   s.b.cfg.Pivots,
		cols:     s.cols,
		get:      live,
		aggs:     s.aggs,
		workers:  s.b.workers,
		rep:      s.rep,
		limit:    reset,
		withPart: true,
	}
	if reset {
		return p.run(rows, +1)
	}

	leaving, images, entering := s.delta(changes, base, in.Filter)
	old := *p
	old.get = func(row uint32, col int) scalar.Scalar { return images[row][col] }
	old.withPart = false
	out, err := old.run(leaving, -1)
	if err != nil {
		return nil, err
	}
	into, err := p.run(entering, +1)
	if err != nil {
		return nil, err
	}
	return append(out, into...), nil
}

// delta splits the rows changed since base into the rows leaving the tree,
// with their pre-step images, and the rows entering it. An updated row
// that still passes the filter does both.
func (s *step) delta(changes []table.Change, base *Tree, prog *filter.Program) ([]uint32, map[uint32][]scalar.Scalar, []uint32) {
	seen := make(map[uint32]bool, len(changes))
	images := make(map[uint32][]scalar.Scalar)
	var leaving, entering []uint32
	for _, c := range changes {
		if seen[c.Row] {
			continue
		}
		seen[c.Row] = true
		if base.members.Contains(c.Row) && c.Old != nil {
			leaving = append(leaving, c.Row)
			images[c.Row] = c.Old
		}
		if s.tbl.Live(c.Row) && (prog == nil || prog.MatchRow(s.tbl.Row(c.Row))) {
			entering = append(entering, c.Row)
		}
	}
	slices.Sort(leaving)
	slices.Sort(entering)
	return leaving, images, entering
}

func (s *step) merge(strands []Strand) error {
	s.rep.Begin(PhaseMerge)
	// rows leave before they re-enter
	slices.SortStableFunc(strands, func(a, b Strand) int { return cmp.Compare(a.Delta, b.Delta) })
	for i := range strands {
		if err := s.rep.Step(i, len(strands)); err != nil {
			return err
		}
		s.mergeStrand(&strands[i])
	}
	s.stage.Strands = len(strands)
	s.rep.Done()
	return nil
}

func (s *step) mergeStrand(st *Strand) {
	t := s.tree
	path := make([]NodeID, 1, len(st.Path)+1)
	id := RootID
	for _, v := range st.Path {
		c := t.child(id, v)
		if c == NoNode {
			if st.Delta < 0 {
				return
			}
			c = t.alloc(id, v, s.owned)
		}
		path = append(path, c)
		id = c
	}

	_, touched := s.dirty[id]
	delta := st.Delta * len(st.Rows)
	for _, n := range path {
		t.nodes[n].count += delta
		s.dirty[n] = struct{}{}
	}

	term := t.own(id, s.owned)
	if term.rows == nil {
		term.rows = roaring.New()
	}
	fresh := !touched && term.rows.IsEmpty()
	if st.Delta > 0 {
		term.rows.AddMany(st.Rows)
		t.members.AddMany(st.Rows)
	} else {
		for _, row := range st.Rows {
			term.rows.Remove(row)
			t.members.Remove(row)
		}
	}
	if fresh && !st.Hidden && st.Delta > 0 && st.Partial != nil {
		s.seeds[id] = st.Partial
	} else {
		delete(s.seeds, id)
	}
}

// prune releases the nodes left without rows, with their subtrees. The
// root is never released.
func (s *step) prune() error {
	s.rep.Begin(PhasePrune)
	var zero []NodeID
	for id := range s.dirty {
		if id != RootID && s.tree.nodes[id].count <= 0 {
			zero = append(zero, id)
		}
	}
	slices.SortFunc(zero, func(a, b NodeID) int {
		return cmp.Or(cmp.Compare(s.tree.nodes[a].depth, s.tree.nodes[b].depth), cmp.Compare(a, b))
	})
	for i, id := range zero {
		if err := s.rep.Step(i, len(zero)); err != nil {
			return err
		}
		if !s.tree.nodes[id].live {
			continue
		}
		s.stage.Pruned += s.tree.unlink(id, s.owned)
	}
	for id := range s.dirty {
		if !s.tree.nodes[id].live {
			delete(s.dirty, id)
			delete(s.seeds, id)
		}
	}
	s.rep.Done()
	return nil
}

// recompute refreshes the aggregates of dirty nodes, deepest first, so
// that every parent merges up-to-date children.
func (s *step) recompute() error {
	s.rep.Begin(PhaseRecompute)
	ids := make([]NodeID, 0, len(s.dirty))
	for id := range s.dirty {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, func(a, b NodeID) int {
		return cmp.Or(cmp.Compare(s.tree.nodes[b].depth, s.tree.nodes[a].depth), cmp.Compare(a, b))
	})
	for i, id := range ids {
		if err := s.rep.Step(i, len(ids)); err != nil {
			return err
		}
		if err := s.recomputeNode(id); err != nil {
			return err
		}
	}
	s.stage.Recomputed = len(ids)
	if len(ids) > 0 && s.b.cfg.relative() {
		s.finalize()
	}
	s.rep.Done()
	return nil
}

func (s *step) recomputeNode(id NodeID) error {
	n := &s.tree.nodes[id]
	accs := s.seeds[id]
	if accs == nil {
		var err error
		if accs, err = s.aggs.empty(); err != nil {
			return err
		}
		if n.rows != nil {
			it := n.rows.Iterator()
			for it.HasNext() {
				s.aggs.add(accs, it.Next())
			}
		}
		for _, c := range n.children {
			for k, acc := range accs {
				acc.Merge(s.tree.nodes[c].accs[k])
			}
		}
	}
	n.accs = accs
	aggs := make([]scalar.Scalar, len(accs))
	for k, acc := range accs {
		aggs[k] = acc.Value()
	}
	n.aggs = aggs
	return nil
}

// finalize turns the sums of percentage aggregates into shares of the
// parent or grand total.
func (s *step) finalize() {
	nodes := s.tree.nodes
	for id := range nodes {
		n := &nodes[id]
		if !n.live {
			continue
		}
		aggs := slices.Clone(n.aggs)
		for k, spec := range s.b.cfg.Aggregates {
			if !spec.Func.IsRelative() {
				continue
			}
			whole := RootID
			if spec.Func == aggregate.PctSumParent && NodeID(id) != RootID {
				whole = n.parent
			}
			aggs[k] = aggregate.Percent(n.accs[k].Value(), nodes[whole].accs[k].Value())
		}
		n.aggs = aggs
	}
}
