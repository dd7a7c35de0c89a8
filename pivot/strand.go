package pivot

import (
	"cmp"
	"slices"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/vegasq/cubecat/aggregate"
	"github.com/vegasq/cubecat/progress"
	"github.com/vegasq/cubecat/scalar"
	"github.com/vegasq/cubecat/sorter"
)

// Strand is one pivot path of a step's delta with the rows that moved
// along it.
type Strand struct {
	Path []scalar.Scalar
	// Delta is +1 for rows entering the path and -1 for rows leaving it.
	Delta int
	Rows  []uint32
	// Hidden strands carry rows cut by a top-N limit below Path. They are
	// kept by the node at Path rather than by a leaf.
	Hidden bool
	// Partial holds the aggregates of Rows, one per config aggregate. It
	// is only set on entering leaf strands.
	Partial []aggregate.Accumulator
}

// cells reads cell col of a row from one row image: the live table or
// the pre-update images of changed rows.
type cells func(row uint32, col int) scalar.Scalar

type group struct {
	path []scalar.Scalar
	rows []uint32
}

// partitioner splits a set of rows by pivot path, level by level.
type partitioner struct {
	levels   []Level
	cols     []int
	get      cells
	aggs     *aggregator
	workers  int
	rep      *progress.Reporter
	limit    bool
	withPart bool
}

// run partitions rows into strands. Frontier groups of one level are
// partitioned in parallel; the call returns once the level is done.
func (p *partitioner) run(rows []uint32, delta int) ([]Strand, error) {
	frontier := []group{{rows: rows}}
	var hidden []Strand
	total := max(1, len(p.levels)*len(rows))
	var done atomic.Int64

	for lvl := range p.levels {
		next := make([][]group, len(frontier))
		cut := make([][]uint32, len(frontier))
		g, ctx := errgroup.WithContext(p.rep.Context())
		g.SetLimit(p.workers)
		for i, grp := range frontier {
			g.Go(func() error {
				if err := ctx.Err(); err != nil {
					return err
				}
				if err := p.rep.Step(int(done.Load()), total); err != nil {
					return err
				}
				next[i], cut[i] = p.split(grp, lvl)
				done.Add(int64(len(grp.rows)))
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			if cerr := p.rep.Check(); cerr != nil {
				return nil, cerr
			}
			return nil, err
		}

		parents := frontier
		frontier = nil
		for i, kids := range next {
			frontier = append(frontier, kids...)
			if len(cut[i]) > 0 {
				hidden = append(hidden, Strand{Path: parents[i].path, Delta: delta, Rows: cut[i], Hidden: true})
			}
		}
	}

	strands := make([]Strand, len(frontier), len(frontier)+len(hidden))
	for i, grp := range frontier {
		strands[i] = Strand{Path: grp.path, Delta: delta, Rows: grp.rows}
	}
	if p.withPart && delta > 0 {
		if err := p.partials(strands); err != nil {
			return nil, err
		}
	}
	p.rep.Done()
	return append(strands, hidden...), nil
}

// split block-partitions grp by the transformed value of level lvl. Rows
// keep their relative order inside each child. With a limit, the values
// past it are cut and their rows returned separately.
func (p *partitioner) split(grp group, lvl int) ([]group, []uint32) {
	level := p.levels[lvl]
	col := p.cols[lvl]

	var values []scalar.Scalar
	index := make(map[uint64][]int32)
	ids := make([]int32, len(grp.rows))
	sizes := []int{}
	for i, row := range grp.rows {
		v := level.transform(p.get(row, col))
		h := scalar.Hash(v)
		id := int32(-1)
		for _, c := range index[h] {
			if scalar.Equal(values[c], v) {
				id = c
				break
			}
		}
		if id < 0 {
			id = int32(len(values))
			values = append(values, v)
			sizes = append(sizes, 0)
			index[h] = append(index[h], id)
		}
		ids[i] = id
		sizes[id]++
	}

	// stable counting sort into one block per value
	starts := make([]int, len(values)+1)
	for i, n := range sizes {
		starts[i+1] = starts[i] + n
	}
	sorted := make([]uint32, len(grp.rows))
	fill := slices.Clone(starts[:len(values)])
	for i, row := range grp.rows {
		sorted[fill[ids[i]]] = row
		fill[ids[i]]++
	}

	kids := make([]group, len(values))
	for i, v := range values {
		path := make([]scalar.Scalar, lvl+1)
		copy(path, grp.path)
		path[lvl] = v
		kids[i] = group{path: path, rows: sorted[starts[i]:starts[i+1]:starts[i+1]]}
	}
	if !p.limit || !level.limited() {
		return kids, nil
	}
	return p.cutTop(kids, level)
}

// cutTop keeps the top values of kids by the level's ranking and returns
// the rows of the rest.
func (p *partitioner) cutTop(kids []group, level Level) ([]group, []uint32) {
	keep := sorter.Limit(len(kids), level.Limit, level.LimitType)
	if keep >= len(kids) {
		return kids, nil
	}
	ranks := make([]scalar.Scalar, len(kids))
	for i, k := range kids {
		ranks[i] = p.aggs.rank(level.SortBy, k.rows)
	}
	order := make([]int, len(kids))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		c := scalar.Compare(ranks[a], ranks[b])
		if !level.Ascending && ranks[a].IsValid() && ranks[b].IsValid() {
			c = -c
		}
		return c
	})

	kept := make([]group, 0, keep)
	var cut []uint32
	for _, i := range order[:keep] {
		kept = append(kept, kids[i])
	}
	for _, i := range order[keep:] {
		cut = append(cut, kids[i].rows...)
	}
	// kept values stay in first-seen order
	slices.SortFunc(kept, func(a, b group) int { return cmp.Compare(a.rows[0], b.rows[0]) })
	slices.Sort(cut)
	return kept, cut
}

// partials folds the rows of each leaf strand in parallel.
func (p *partitioner) partials(strands []Strand) error {
	g, ctx := errgroup.WithContext(p.rep.Context())
	g.SetLimit(p.workers)
	for i := range strands {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := p.rep.Check(); err != nil {
				return err
			}
			accs, err := p.aggs.fold(strands[i].Rows)
			if err != nil {
				return err
			}
			strands[i].Partial = accs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if cerr := p.rep.Check(); cerr != nil {
			return cerr
		}
		return err
	}
	return nil
}
