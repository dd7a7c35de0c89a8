package pivot

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vegasq/cubecat/aggregate"
	"github.com/vegasq/cubecat/filter"
	"github.com/vegasq/cubecat/progress"
	"github.com/vegasq/cubecat/scalar"
	"github.com/vegasq/cubecat/table"
)

var salesSchema = table.Schema{
	{Name: "id", DType: scalar.DTypeInt64},
	{Name: "region", DType: scalar.DTypeStr},
	{Name: "product", DType: scalar.DTypeStr},
	{Name: "amount", DType: scalar.DTypeInt64},
}

func sale(id int64, region, product string, amount int64) table.Row {
	return table.Row{
		"id":      scalar.Int64(id),
		"region":  scalar.String(region),
		"product": scalar.String(product),
		"amount":  scalar.Int64(amount),
	}
}

func salesTable(t *testing.T) *table.Table {
	t.Helper()
	tbl, err := table.New(salesSchema, table.WithPrimaryKey("id"))
	require.NoError(t, err)
	require.NoError(t, tbl.Upsert(
		sale(1, "East", "a", 10),
		sale(2, "West", "a", 20),
		sale(3, "East", "b", 30),
		sale(4, "West", "b", 40),
	))
	return tbl
}

func sumBy(levels ...string) Config {
	cfg := Config{Aggregates: []aggregate.Spec{{Column: "amount", Func: aggregate.Sum}}}
	for _, l := range levels {
		cfg.Pivots = append(cfg.Pivots, Level{Column: l})
	}
	return cfg
}

func build(t *testing.T, cfg Config, tbl *table.Table, opts ...Option) (*Builder, *Tree) {
	t.Helper()
	b, err := NewBuilder(cfg, opts...)
	require.NoError(t, err)
	tree, err := b.Step(StepInput{Table: tbl}, nil)
	require.NoError(t, err)
	return b, tree
}

func sumAt(t *testing.T, tree *Tree, path ...string) int64 {
	t.Helper()
	id, ok := tree.Find(strs(path...)...)
	require.True(t, ok, "path %v", path)
	return tree.Aggregate(id, 0).Int64()
}

func strs(vs ...string) []scalar.Scalar {
	out := make([]scalar.Scalar, len(vs))
	for i, v := range vs {
		out[i] = scalar.String(v)
	}
	return out
}

// dump renders every node as "path: count aggregates" for comparisons.
func dump(tree *Tree) map[string]string {
	out := make(map[string]string)
	tree.Walk(func(id NodeID) bool {
		var path []string
		for _, v := range tree.Path(id) {
			path = append(path, v.String())
		}
		n, _ := tree.Node(id)
		var aggs []string
		for _, a := range tree.Aggregates(id) {
			aggs = append(aggs, a.String())
		}
		out["/"+strings.Join(path, "/")] = fmt.Sprintf("%d %s", n.Count, strings.Join(aggs, " "))
		return true
	})
	return out
}

func TestPivotGroupsDurationsByEqualValue(t *testing.T) {
	schema := table.Schema{
		{Name: "id", DType: scalar.DTypeInt64},
		{Name: "d", DType: scalar.DTypeDuration},
		{Name: "amount", DType: scalar.DTypeInt64},
	}
	row := func(id int64, d scalar.Duration, amount int64) table.Row {
		return table.Row{"id": scalar.Int64(id), "d": scalar.DurationValue(d), "amount": scalar.Int64(amount)}
	}
	tbl, err := table.New(schema, table.WithPrimaryKey("id"))
	require.NoError(t, err)
	require.NoError(t, tbl.Upsert(
		row(1, 0.2e-9, 1),
		row(2, 0.49e-9, 2),
		row(3, 0.51e-9, 4),
		row(4, 1.3e-9, 8),
	))

	b, tree := build(t, sumBy("d"), tbl)
	require.Len(t, tree.Children(RootID), 2)
	for _, id := range tree.Children(RootID) {
		for _, other := range tree.Children(RootID) {
			if id != other {
				assert.False(t, scalar.Equal(tree.Path(id)[0], tree.Path(other)[0]))
			}
		}
	}
	zero, ok := tree.Find(scalar.DurationValue(0))
	require.True(t, ok)
	assert.Equal(t, int64(3), tree.Aggregate(zero, 0).Int64())
	one, ok := tree.Find(scalar.DurationValue(1e-9))
	require.True(t, ok)
	assert.Equal(t, int64(12), tree.Aggregate(one, 0).Int64())

	// Incremental rows join the child they compare equal to.
	require.NoError(t, tbl.Upsert(row(5, 0.3e-9, 16), row(6, 0.7e-9, 32)))
	st, err := b.Stage(StepInput{Table: tbl}, nil)
	require.NoError(t, err)
	require.NoError(t, st.Commit())
	tree = b.Tree()
	assert.Len(t, tree.Children(RootID), 2)
	zero, _ = tree.Find(scalar.DurationValue(0))
	assert.Equal(t, int64(19), tree.Aggregate(zero, 0).Int64())
	one, _ = tree.Find(scalar.DurationValue(1e-9))
	assert.Equal(t, int64(44), tree.Aggregate(one, 0).Int64())
}

func TestPivotByRegion(t *testing.T) {
	tbl := salesTable(t)
	b, tree := build(t, sumBy("region"), tbl)

	assert.Equal(t, int64(40), sumAt(t, tree, "East"))
	assert.Equal(t, int64(60), sumAt(t, tree, "West"))
	assert.Equal(t, int64(100), sumAt(t, tree))
	assert.Len(t, tree.Children(RootID), 2)
	assert.Equal(t, 3, tree.Len())

	assert.Equal(t, 2, tbl.Delete(scalar.Int64(1), scalar.Int64(3)))
	st, err := b.Stage(StepInput{Table: tbl}, nil)
	require.NoError(t, err)
	require.NoError(t, st.Commit())
	assert.False(t, st.Reset)
	assert.Equal(t, 1, st.Pruned)

	tree = b.Tree()
	_, ok := tree.Find(scalar.String("East"))
	assert.False(t, ok)
	assert.Equal(t, int64(60), sumAt(t, tree))
	assert.Equal(t, int64(60), sumAt(t, tree, "West"))
	assert.Equal(t, 2, tree.Len())
}

func TestPruneRemovesEmptyAncestorsOnly(t *testing.T) {
	tbl := salesTable(t)
	b, _ := build(t, sumBy("region", "product"), tbl)

	tbl.Delete(scalar.Int64(3))
	tree, err := b.Step(StepInput{Table: tbl}, nil)
	require.NoError(t, err)

	_, ok := tree.Find(strs("East", "b")...)
	assert.False(t, ok)
	assert.Equal(t, int64(10), sumAt(t, tree, "East"))
	assert.Equal(t, int64(60), sumAt(t, tree, "West"))

	tbl.Delete(scalar.Int64(1))
	tree, err = b.Step(StepInput{Table: tbl}, nil)
	require.NoError(t, err)

	_, ok = tree.Find(scalar.String("East"))
	assert.False(t, ok)
	assert.Equal(t, int64(20), sumAt(t, tree, "West", "a"))
	assert.Equal(t, int64(40), sumAt(t, tree, "West", "b"))
	assert.Equal(t, int64(60), sumAt(t, tree))
	assert.Equal(t, 4, tree.Len())
}

func TestTreeAccessors(t *testing.T) {
	_, tree := build(t, sumBy("region", "product"), salesTable(t))

	id, ok := tree.Find(strs("West", "b")...)
	require.True(t, ok)
	assert.Equal(t, 2, tree.Depth(id))
	assert.Equal(t, 2, tree.Levels())
	assert.Equal(t, []string{"West", "b"}, []string{tree.Path(id)[0].String(), tree.Path(id)[1].String()})
	assert.Equal(t, []uint32{3}, tree.Rows(id))

	n, ok := tree.Node(id)
	require.True(t, ok)
	assert.Equal(t, 1, n.Count)
	assert.Equal(t, "b", n.Value.String())
	parent, _ := tree.Node(n.Parent)
	assert.Equal(t, "West", parent.Value.String())

	root, ok := tree.Node(RootID)
	require.True(t, ok)
	assert.Equal(t, 4, root.Count)
	assert.Equal(t, NoNode, root.Parent)
	assert.Empty(t, tree.Path(RootID))
	assert.Equal(t, []uint32{0, 1, 2, 3}, tree.Rows(RootID))

	_, ok = tree.Node(NodeID(99))
	assert.False(t, ok)
	assert.True(t, tree.Aggregate(NodeID(99), 0).IsNone())
}

func TestNoLevelsAggregatesAtRoot(t *testing.T) {
	_, tree := build(t, sumBy(), salesTable(t))
	assert.Equal(t, 1, tree.Len())
	assert.Equal(t, int64(100), sumAt(t, tree))
}

func TestTopNHidesRowsInParent(t *testing.T) {
	cfg := sumBy("region")
	cfg.Pivots[0].Limit = 1
	cfg.Pivots[0].SortBy = "sum(amount)"
	b, tree := build(t, cfg, salesTable(t))

	kids := tree.Children(RootID)
	require.Len(t, kids, 1)
	n, _ := tree.Node(kids[0])
	assert.Equal(t, "West", n.Value.String())

	root, _ := tree.Node(RootID)
	assert.Equal(t, 2, root.Hidden)
	assert.Equal(t, 4, root.Count)
	assert.Equal(t, int64(100), sumAt(t, tree))

	cfg.Pivots[0].Ascending = true
	require.NoError(t, b.SetConfig(cfg))
	tree, err := b.Step(StepInput{Table: tree.tbl}, nil)
	require.NoError(t, err)
	kids = tree.Children(RootID)
	require.Len(t, kids, 1)
	n, _ = tree.Node(kids[0])
	assert.Equal(t, "East", n.Value.String())
}

func TestTopNRejectsUnknownAggregate(t *testing.T) {
	cfg := sumBy("region")
	cfg.Pivots[0].Limit = 1
	cfg.Pivots[0].SortBy = "nope"
	_, err := NewBuilder(cfg)
	assert.ErrorIs(t, err, ErrUnknownAggregate)
}

func TestPercentAggregates(t *testing.T) {
	cfg := Config{
		Pivots: []Level{{Column: "region"}, {Column: "product"}},
		Aggregates: []aggregate.Spec{
			{Column: "amount", Func: aggregate.PctSumGrandTotal},
			{Column: "amount", Func: aggregate.PctSumParent},
		},
	}
	_, tree := build(t, cfg, salesTable(t))

	east, _ := tree.Find(scalar.String("East"))
	assert.InDelta(t, 40.0, tree.Aggregate(east, 0).Float64(), 1e-9)
	assert.InDelta(t, 40.0, tree.Aggregate(east, 1).Float64(), 1e-9)

	eastB, _ := tree.Find(strs("East", "b")...)
	assert.InDelta(t, 30.0, tree.Aggregate(eastB, 0).Float64(), 1e-9)
	assert.InDelta(t, 75.0, tree.Aggregate(eastB, 1).Float64(), 1e-9)

	assert.InDelta(t, 100.0, tree.Aggregate(RootID, 0).Float64(), 1e-9)
}

func TestFilteredPivot(t *testing.T) {
	tbl := salesTable(t)
	b, err := NewBuilder(sumBy("product"))
	require.NoError(t, err)

	west := []filter.Term{{Column: "region", Op: filter.OpEQ, Threshold: scalar.String("West")}}
	step := func() *Tree {
		prog, err := filter.Compile(tbl, west, filter.And)
		require.NoError(t, err)
		tree, err := b.Step(StepInput{Table: tbl, Filter: prog}, nil)
		require.NoError(t, err)
		return tree
	}

	tree := step()
	assert.Equal(t, int64(60), sumAt(t, tree))
	assert.Equal(t, int64(20), sumAt(t, tree, "a"))

	// row 1 moves into the filter, row 2 out of it
	require.NoError(t, tbl.Upsert(sale(1, "West", "a", 10), sale(2, "East", "a", 20)))
	tree = step()
	assert.Equal(t, int64(50), sumAt(t, tree))
	assert.Equal(t, int64(10), sumAt(t, tree, "a"))
	assert.Equal(t, []uint32{0, 3}, tree.Members().ToArray())
}

func TestIncrementalMatchesRebuild(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	regions := []string{"N", "S", "E", "W"}
	products := []string{"a", "b", "c"}
	randomRow := func(id int64) table.Row {
		r := sale(id, regions[rng.IntN(len(regions))], products[rng.IntN(len(products))], rng.Int64N(100))
		if rng.IntN(10) == 0 {
			r["amount"] = scalar.Null(scalar.DTypeInt64)
		}
		return r
	}

	tbl, err := table.New(salesSchema, table.WithPrimaryKey("id"))
	require.NoError(t, err)
	for id := range int64(40) {
		require.NoError(t, tbl.Upsert(randomRow(id)))
	}

	cfg := Config{
		Pivots: []Level{{Column: "region"}, {Column: "product"}},
		Aggregates: []aggregate.Spec{
			{Column: "amount", Func: aggregate.Sum},
			{Column: "amount", Func: aggregate.Count},
			{Column: "amount", Func: aggregate.Mean},
			{Column: "amount", Func: aggregate.Min},
			{Column: "amount", Func: aggregate.Max},
			{Column: "amount", Func: aggregate.DistinctCount},
			{Column: "amount", Func: aggregate.Median},
			{Column: "amount", Func: aggregate.First},
			{Column: "amount", Func: aggregate.Last},
			{Column: "amount", Func: aggregate.PctSumParent},
		},
	}
	b, _ := build(t, cfg, tbl, WithParallelism(3))

	next := int64(40)
	for round := range 30 {
		for range 1 + rng.IntN(5) {
			switch op := rng.IntN(3); op {
			case 0:
				require.NoError(t, tbl.Upsert(randomRow(next)))
				next++
			case 1:
				require.NoError(t, tbl.Upsert(randomRow(rng.Int64N(next))))
			default:
				tbl.Delete(scalar.Int64(rng.Int64N(next)))
			}
		}
		st, err := b.Stage(StepInput{Table: tbl}, nil)
		require.NoError(t, err)
		require.NoError(t, st.Commit())
		require.False(t, st.Reset, "round %d", round)

		_, fresh := build(t, cfg, tbl, WithParallelism(1))
		require.Equal(t, dump(fresh), dump(b.Tree()), "round %d", round)
	}
}

func TestCancelledStepKeepsCommittedTree(t *testing.T) {
	phases := []string{PhaseReset, PhasePartition, PhaseMerge, PhasePrune, PhaseRecompute}
	for _, phase := range phases {
		t.Run(phase, func(t *testing.T) {
			tbl := salesTable(t)
			b, before := build(t, sumBy("region", "product"), tbl)
			snapshot := dump(before)

			tbl.Delete(scalar.Int64(1), scalar.Int64(3))
			rec := progress.NewRecorder(func(u progress.Update) bool { return u.Phase == phase })
			_, err := b.Stage(StepInput{Table: tbl}, progress.NewReporter(context.Background(), rec))
			require.ErrorIs(t, err, progress.ErrCancelled)

			assert.Same(t, before, b.Tree())
			assert.Equal(t, snapshot, dump(b.Tree()))
			assert.Equal(t, int64(40), sumAt(t, b.Tree(), "East"))

			tree, err := b.Step(StepInput{Table: tbl}, nil)
			require.NoError(t, err)
			assert.Equal(t, int64(60), sumAt(t, tree))
		})
	}
}

func TestCancelledContext(t *testing.T) {
	b, err := NewBuilder(sumBy("region"))
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = b.Step(StepInput{Table: salesTable(t)}, progress.NewReporter(ctx, nil))
	assert.ErrorIs(t, err, progress.ErrCancelled)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, b.Tree())
}

func TestProgressIsMonotonicPerPhase(t *testing.T) {
	rec := progress.NewRecorder(nil)
	b, err := NewBuilder(sumBy("region", "product"))
	require.NoError(t, err)
	_, err = b.Step(StepInput{Table: salesTable(t)}, progress.NewReporter(context.Background(), rec))
	require.NoError(t, err)

	var order []string
	last := map[string]int{}
	for _, u := range rec.Updates() {
		if prev, ok := last[u.Phase]; ok {
			assert.Greater(t, u.Pct, prev, u.Phase)
		} else {
			order = append(order, u.Phase)
		}
		last[u.Phase] = u.Pct
	}
	assert.Equal(t, []string{PhaseReset, PhasePartition, PhaseMerge, PhasePrune, PhaseRecompute}, order)
	for phase, pct := range last {
		assert.Equal(t, 100, pct, phase)
	}
}

func TestStaleStage(t *testing.T) {
	tbl := salesTable(t)
	b, _ := build(t, sumBy("region"), tbl)

	first, err := b.Stage(StepInput{Table: tbl}, nil)
	require.NoError(t, err)
	second, err := b.Stage(StepInput{Table: tbl}, nil)
	require.NoError(t, err)
	require.NoError(t, second.Commit())
	assert.ErrorIs(t, first.Commit(), ErrStaleStage)
}

func TestUnknownPivotColumn(t *testing.T) {
	b, err := NewBuilder(sumBy("nope"))
	require.NoError(t, err)
	_, err = b.Step(StepInput{Table: salesTable(t)}, nil)
	var se *table.SchemaError
	assert.ErrorAs(t, err, &se)
}

func TestBinnedLevel(t *testing.T) {
	cfg := Config{
		Pivots:     []Level{{Column: "amount", Binning: scalar.Binning{Type: scalar.BinningAuto, Min: 0, Max: 100, Size: 25}}},
		Aggregates: []aggregate.Spec{{Column: "amount", Func: aggregate.Count}},
	}
	_, tree := build(t, cfg, salesTable(t))
	assert.Len(t, tree.Children(RootID), 2)
	id, ok := tree.Find(scalar.String("0 - 25"))
	require.True(t, ok)
	assert.Equal(t, int64(2), tree.Aggregate(id, 0).Int64())
}
