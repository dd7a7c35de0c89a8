package query

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vegasq/cubecat/aggregate"
	"github.com/vegasq/cubecat/filter"
	"github.com/vegasq/cubecat/internal/logging"
	"github.com/vegasq/cubecat/pivot"
	"github.com/vegasq/cubecat/progress"
	"github.com/vegasq/cubecat/scalar"
	"github.com/vegasq/cubecat/sorter"
	"github.com/vegasq/cubecat/table"
	"github.com/vegasq/cubecat/traversal"
)

func sale(id, region, product string, amount int64) table.Row {
	return table.Row{
		"id":      scalar.String(id),
		"region":  scalar.String(region),
		"product": scalar.String(product),
		"amount":  scalar.Int64(amount),
	}
}

func salesTable(t *testing.T) *table.Table {
	t.Helper()
	tbl, err := table.New(table.Schema{
		{Name: "id", DType: scalar.DTypeStr},
		{Name: "region", DType: scalar.DTypeStr},
		{Name: "product", DType: scalar.DTypeStr},
		{Name: "amount", DType: scalar.DTypeInt64},
	}, table.WithPrimaryKey("id"))
	require.NoError(t, err)
	require.NoError(t, tbl.Upsert(
		sale("r1", "East", "a", 10),
		sale("r2", "West", "a", 20),
		sale("r3", "East", "b", 30),
		sale("r4", "West", "b", 40),
		sale("r5", "West", "a", 20),
	))
	return tbl
}

var byAmount = Config{Sort: []sorter.Key{{Column: "amount", Type: sorter.Descending}}}

var byRegion = Config{
	Pivots:     []pivot.Level{{Column: "region"}, {Column: "product"}},
	Aggregates: []aggregate.Spec{{Name: "total", Column: "amount", Func: aggregate.Sum}},
	Depth:      1,
	TreeOrder:  traversal.ByValue,
}

func keys(t *testing.T, qc *Context) []string {
	t.Helper()
	v, err := qc.View()
	require.NoError(t, err)
	defer v.Release()
	var out []string
	for _, k := range v.Flat().Keys(0, v.Len()) {
		out = append(out, k.String())
	}
	return out
}

func TestAdvanceRunsOnePhaseAtATime(t *testing.T) {
	qc, err := NewContext(salesTable(t), byAmount)
	require.NoError(t, err)
	assert.Equal(t, PhaseIdle, qc.Phase())
	assert.NotEmpty(t, qc.ID())

	ctx := context.Background()
	for _, want := range []Phase{PhaseFilter, PhaseOrder, PhaseTraverse} {
		got, err := qc.Advance(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, got)
		assert.Equal(t, want, qc.Phase())
		_, err = qc.View()
		assert.ErrorIs(t, err, ErrNoView, "nothing is visible before the commit")
	}
	got, err := qc.Advance(ctx)
	require.NoError(t, err)
	assert.Equal(t, PhaseDone, got)
	assert.Equal(t, []string{"r4", "r3", "r2", "r5", "r1"}, keys(t, qc))

	got, err = qc.Advance(ctx)
	require.NoError(t, err)
	assert.Equal(t, PhaseFilter, got, "a finished step starts over")
}

func TestStepFiltersAndSorts(t *testing.T) {
	cfg := byAmount
	cfg.Filters = []filter.Term{{Column: "region", Op: filter.OpEQ, Threshold: scalar.String("West")}}
	qc, err := NewContext(salesTable(t), cfg)
	require.NoError(t, err)
	require.NoError(t, qc.Step(context.Background()))
	assert.Equal(t, []string{"r4", "r2", "r5"}, keys(t, qc))
}

func TestStepReportsUpdatedPositions(t *testing.T) {
	tbl := salesTable(t)
	qc, err := NewContext(tbl, byAmount)
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, qc.Step(ctx))

	require.NoError(t, tbl.Upsert(sale("r1", "East", "a", 100)))
	require.NoError(t, qc.Step(ctx))
	assert.Equal(t, []string{"r1", "r4", "r3", "r2", "r5"}, keys(t, qc))

	v, err := qc.View()
	require.NoError(t, err)
	defer v.Release()
	assert.Equal(t, []int{0}, v.Updated())
	assert.Equal(t, tbl.Epoch(), v.Epoch())
	rows := v.Rows(0, 1)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(100), rows[0][3].Int64())
}

func TestTableChangeDuringStepFailsCommit(t *testing.T) {
	tbl := salesTable(t)
	qc, err := NewContext(tbl, byAmount)
	require.NoError(t, err)
	ctx := context.Background()
	for range 3 {
		_, err := qc.Advance(ctx)
		require.NoError(t, err)
	}

	require.NoError(t, tbl.Upsert(sale("r6", "North", "c", 5)))
	_, err = qc.Advance(ctx)
	require.ErrorIs(t, err, ErrTableChanged)
	assert.Equal(t, PhaseIdle, qc.Phase())
	_, err = qc.View()
	assert.ErrorIs(t, err, ErrNoView)

	require.NoError(t, qc.Step(ctx))
	assert.Len(t, keys(t, qc), 6)
}

func TestCancelDiscardsStagedStep(t *testing.T) {
	tbl := salesTable(t)
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	qc, err := NewContext(tbl, byAmount, WithMetrics(m))
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, qc.Step(ctx))
	before := keys(t, qc)

	require.NoError(t, tbl.Upsert(sale("r1", "East", "a", 100)))
	_, err = qc.Advance(ctx)
	require.NoError(t, err)
	_, err = qc.Advance(ctx)
	require.NoError(t, err)
	qc.Cancel()
	assert.Equal(t, PhaseIdle, qc.Phase())
	assert.Equal(t, before, keys(t, qc))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Steps.WithLabelValues(ResultCancelled)))

	require.NoError(t, qc.Step(ctx))
	assert.Equal(t, "r1", keys(t, qc)[0])
}

func TestCancelWhileLockedStopsNextPhase(t *testing.T) {
	qc, err := NewContext(salesTable(t), byAmount)
	require.NoError(t, err)
	ctx := context.Background()
	_, err = qc.Advance(ctx)
	require.NoError(t, err)

	qc.mu.Lock()
	_, err = qc.Advance(ctx)
	assert.ErrorIs(t, err, ErrStepInProgress)
	assert.ErrorIs(t, qc.SetConfig(byRegion), ErrStepInProgress)
	_, err = qc.Expand(0)
	assert.ErrorIs(t, err, ErrStepInProgress)
	qc.Cancel()
	qc.mu.Unlock()

	_, err = qc.Advance(ctx)
	require.ErrorIs(t, err, progress.ErrCancelled)
	assert.Equal(t, PhaseIdle, qc.Phase())
	require.NoError(t, qc.Step(ctx))
}

func TestCancelledContext(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	qc, err := NewContext(salesTable(t), byAmount, WithMetrics(m))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = qc.Step(ctx)
	require.ErrorIs(t, err, progress.ErrCancelled)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Steps.WithLabelValues(ResultCancelled)))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.Steps.WithLabelValues(ResultCommitted)))
}

func TestSinkCancellationKeepsCommittedView(t *testing.T) {
	tbl := salesTable(t)
	armed := false
	rec := progress.NewRecorder(func(u progress.Update) bool {
		return armed && u.Phase == PhaseOrder.String()
	})
	qc, err := NewContext(tbl, byAmount, WithSink(rec))
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, qc.Step(ctx))
	before := keys(t, qc)

	armed = true
	require.NoError(t, tbl.Upsert(sale("r1", "East", "a", 100)))
	err = qc.Step(ctx)
	require.ErrorIs(t, err, progress.ErrCancelled)
	assert.Equal(t, before, keys(t, qc))
	assert.NotEmpty(t, rec.Updates())
}

func TestGroupedView(t *testing.T) {
	tbl := salesTable(t)
	qc, err := NewContext(tbl, byRegion, WithParallelism(2))
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, qc.Step(ctx))

	v, err := qc.View()
	require.NoError(t, err)
	require.True(t, v.Grouped())
	assert.Equal(t, 3, v.Len())
	nodes := v.Nodes(0, 3)
	require.Len(t, nodes, 3)
	assert.Equal(t, "East", nodes[1].Value.String())
	assert.Equal(t, int64(120), v.Tree().Source().Aggregate(pivot.RootID, 0).Int64())

	changed, err := qc.Expand(1)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, 3, v.Len(), "snapshots do not see expansion")
	v.Release()

	require.NoError(t, tbl.Upsert(sale("r6", "North", "c", 5)))
	require.NoError(t, qc.Step(ctx))
	v, err = qc.View()
	require.NoError(t, err)
	defer v.Release()
	var labels []string
	for _, n := range v.Nodes(0, v.Len()) {
		labels = append(labels, n.Value.String())
	}
	assert.Equal(t, []string{"East", "a", "b", "North", "West"}, labels[1:])
	assert.Equal(t, int64(125), v.Tree().Source().Aggregate(pivot.RootID, 0).Int64())

	changed, err = qc.Collapse(1)
	require.NoError(t, err)
	assert.True(t, changed)
}

func TestExpandWithoutTree(t *testing.T) {
	qc, err := NewContext(salesTable(t), byAmount)
	require.NoError(t, err)
	require.NoError(t, qc.Step(context.Background()))
	_, err = qc.Expand(0)
	assert.ErrorIs(t, err, ErrNoView)
}

func TestSetConfigSwitchesToGrouped(t *testing.T) {
	qc, err := NewContext(salesTable(t), byAmount)
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, qc.Step(ctx))
	_, err = qc.Advance(ctx)
	require.NoError(t, err)

	require.Error(t, qc.SetConfig(Config{Sort: []sorter.Key{{Type: sorter.Descending}}}))
	require.NoError(t, qc.SetConfig(byRegion))
	assert.Equal(t, PhaseIdle, qc.Phase(), "the staged step is dropped")
	assert.Equal(t, byRegion, qc.Config())

	require.NoError(t, qc.Step(ctx))
	v, err := qc.View()
	require.NoError(t, err)
	defer v.Release()
	assert.True(t, v.Grouped())
	assert.Nil(t, v.Flat())
}

func TestUnknownColumnFailsStep(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	cfg := Config{Filters: []filter.Term{{Column: "nope", Op: filter.OpEQ, Threshold: scalar.Int64(1)}}}
	qc, err := NewContext(salesTable(t), cfg, WithMetrics(m))
	require.NoError(t, err)
	err = qc.Step(context.Background())
	require.ErrorIs(t, err, table.ErrColumnNotFound)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Steps.WithLabelValues(ResultFailed)))
}

func TestMetricsAndLogging(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	var buf bytes.Buffer
	qc, err := NewContext(salesTable(t), byAmount,
		WithMetrics(m),
		WithLogger(logging.NewJSONLogger(&buf, slog.LevelDebug)))
	require.NoError(t, err)
	require.NoError(t, qc.Step(context.Background()))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Steps.WithLabelValues(ResultCommitted)))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.ViewRows))
	assert.Equal(t, 4, testutil.CollectAndCount(m.PhaseDuration))
	assert.Contains(t, buf.String(), `"msg":"step committed"`)
	assert.Contains(t, buf.String(), `"view":"`+qc.ID()+`"`)
}
