package query

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/vegasq/cubecat/aggregate"
	"github.com/vegasq/cubecat/filter"
	"github.com/vegasq/cubecat/internal/logging"
	"github.com/vegasq/cubecat/pivot"
	"github.com/vegasq/cubecat/progress"
	"github.com/vegasq/cubecat/table"
	"github.com/vegasq/cubecat/traversal"
)

// Context materializes one view of a table, one phase per Advance.
//
// A step runs filter, order and traverse, then commits. The results of a
// step are staged until it commits: a cancelled or failed step leaves the
// committed view untouched. Steps of one Context never overlap; the table
// must not be written while a phase runs, and writes between phases make
// the commit fail with ErrTableChanged.
type Context struct {
	id       string
	tbl      *table.Table
	log      *logging.Logger
	metrics  *Metrics
	sink     progress.Sink
	now      func() time.Time
	workers  int
	registry *aggregate.Registry

	// mu is held while a phase runs and by calls that change the step state.
	mu        sync.Mutex
	phase     atomic.Uint32
	cancelled atomic.Bool
	builder   *pivot.Builder
	st        *stage

	// viewMu guards the committed view.
	viewMu  sync.RWMutex
	cfg     Config
	flat    *traversal.Flat
	tree    *traversal.Tree
	epoch   uint64
	updated []int
}

// stage is the in-flight step.
type stage struct {
	cfg     Config
	epoch   uint64
	started time.Time

	prog  *filter.Program
	mask  *filter.Mask
	sig   uint64
	pivot *pivot.Stage
	flat  *traversal.Flat
	tree  *traversal.Tree
	// updated holds the positions of rows changed since the last commit.
	updated []int
}

// NewContext returns a Context over tbl. Nothing is materialized until the
// first step.
func NewContext(tbl *table.Table, cfg Config, opts ...Option) (*Context, error) {
	if tbl == nil {
		return nil, errors.New("query: nil table")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c := &Context{
		id:  uuid.NewString(),
		tbl: tbl,
		log: logging.NoopLogger(),
		now: time.Now,
		cfg: cfg,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.WithView(c.id)
	b, err := pivot.NewBuilder(cfg.pivot(c.registry), pivot.WithParallelism(c.workers))
	if err != nil {
		return nil, err
	}
	c.builder = b
	return c, nil
}

// ID returns the unique id of the view.
func (c *Context) ID() string { return c.id }

// Table returns the table the view reads.
func (c *Context) Table() *table.Table { return c.tbl }

// Phase returns the last phase that completed.
func (c *Context) Phase() Phase { return Phase(c.phase.Load()) }

// Config returns the current view config.
func (c *Context) Config() Config {
	c.viewMu.RLock()
	defer c.viewMu.RUnlock()
	return c.cfg
}

// SetConfig replaces the view config. An in-flight step is discarded; the
// committed view stays readable until the next commit.
func (c *Context) SetConfig(cfg Config) error {
	if !c.mu.TryLock() {
		return ErrStepInProgress
	}
	defer c.mu.Unlock()
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := c.builder.SetConfig(cfg.pivot(c.registry)); err != nil {
		return err
	}
	if c.st != nil {
		c.discard()
		c.log.Info("step discarded by config change")
	}
	c.viewMu.Lock()
	c.cfg = cfg
	c.viewMu.Unlock()
	return nil
}

// Advance runs the next phase and returns it. From Idle or Done it starts
// a new step. On error the step is discarded and the Context is Idle.
func (c *Context) Advance(ctx context.Context) (Phase, error) {
	if !c.mu.TryLock() {
		return c.Phase(), ErrStepInProgress
	}
	defer c.mu.Unlock()

	next := c.Phase().next()
	if next == PhaseFilter {
		c.begin()
	}
	rep := progress.NewReporter(ctx, sink{c})
	if err := rep.Check(); err != nil {
		return PhaseIdle, c.fail(next, err)
	}

	start := c.now()
	var err error
	switch next {
	case PhaseFilter:
		err = c.filter(rep)
	case PhaseOrder:
		err = c.order(rep)
	case PhaseTraverse:
		err = c.traverse(rep)
	case PhaseDone:
		err = c.commit()
	}
	c.metrics.phase(next, c.now().Sub(start))
	if err != nil {
		return PhaseIdle, c.fail(next, err)
	}
	c.phase.Store(uint32(next))
	c.log.Debug("phase done", "phase", next.String(), logging.Since(start, c.now()))
	return next, nil
}

// Step advances until the current step commits.
func (c *Context) Step(ctx context.Context) error {
	for {
		p, err := c.Advance(ctx)
		if err != nil {
			return err
		}
		if p == PhaseDone {
			return nil
		}
	}
}

// Cancel abandons the in-flight step. A running phase stops at its next
// cancellation point.
func (c *Context) Cancel() {
	if !c.mu.TryLock() {
		c.cancelled.Store(true)
		return
	}
	defer c.mu.Unlock()
	if c.st != nil {
		c.discard()
		c.metrics.step(ResultCancelled)
		c.log.Info("step cancelled")
	}
}

func (c *Context) begin() {
	c.cancelled.Store(false)
	c.viewMu.RLock()
	cfg := c.cfg
	c.viewMu.RUnlock()
	c.st = &stage{cfg: cfg, epoch: c.tbl.Epoch(), started: c.now()}
}

func (c *Context) filter(rep *progress.Reporter) error {
	st := c.st
	rep.Begin(PhaseFilter.String())
	if !st.cfg.Filtered() {
		st.mask = filter.MaskFromBitmap(c.tbl.LiveRows())
		rep.Done()
		return nil
	}
	prog, err := filter.Compile(c.tbl, st.cfg.Filters, st.cfg.Combiner,
		filter.WithNow(c.now()), filter.WithSearch(st.cfg.Search))
	if err != nil {
		return err
	}
	mask, err := prog.Evaluate(rep)
	if err != nil {
		return err
	}
	st.prog, st.mask, st.sig = prog, mask, prog.Signature()
	return nil
}

func (c *Context) order(rep *progress.Reporter) error {
	st := c.st
	if st.cfg.Grouped() {
		ps, err := c.builder.Stage(pivot.StepInput{Table: c.tbl, Filter: st.prog, Mask: st.mask}, rep)
		if err != nil {
			return err
		}
		st.pivot = ps
		c.log.Debug("pivot staged", "reset", ps.Reset, "strands", ps.Strands,
			"pruned", ps.Pruned, "recomputed", ps.Recomputed)
		return nil
	}

	rep.Begin(PhaseOrder.String())
	in := traversal.FlatInput{Table: c.tbl, Mask: st.mask, Signature: st.sig, Keys: st.cfg.Sort}
	if st.prog != nil {
		in.TopN = st.prog.TopN()
	}
	flat, err := c.flat.Step(in, rep)
	if err != nil {
		return err
	}
	st.flat = flat
	return nil
}

func (c *Context) traverse(rep *progress.Reporter) error {
	st := c.st
	rep.Begin(PhaseTraverse.String())
	if st.cfg.Grouped() {
		order := st.cfg.TreeOrder
		if order.Aggregate >= len(st.cfg.Aggregates) {
			order.Aggregate = -1
		}
		tree, err := c.tree.Step(traversal.TreeInput{Tree: st.pivot.Tree(), Order: order, Depth: st.cfg.Depth}, rep)
		if err != nil {
			return err
		}
		st.tree = tree
		return nil
	}
	if c.flat == nil || c.epoch == st.epoch {
		rep.Done()
		return nil
	}
	changes, ok := c.tbl.ChangesSince(c.epoch)
	if !ok {
		rep.Done()
		return nil
	}
	for i, ch := range changes {
		if i%1024 == 0 {
			if err := rep.Step(i, len(changes)); err != nil {
				return err
			}
		}
		if pos, ok := st.flat.RowPosition(ch.Row); ok {
			st.updated = append(st.updated, pos)
		}
	}
	slices.Sort(st.updated)
	st.updated = slices.Compact(st.updated)
	rep.Done()
	return nil
}

func (c *Context) commit() error {
	st := c.st
	if c.tbl.Epoch() != st.epoch {
		return ErrTableChanged
	}
	if st.pivot != nil {
		if err := st.pivot.Commit(); err != nil {
			return err
		}
	}

	c.viewMu.Lock()
	if c.flat != nil {
		c.flat.Release()
	}
	if c.tree != nil {
		c.tree.Release()
	}
	c.flat, c.tree = st.flat, st.tree
	c.epoch, c.updated = st.epoch, st.updated
	rows := c.lenLocked()
	c.viewMu.Unlock()

	c.st = nil
	c.metrics.step(ResultCommitted)
	c.metrics.rows(rows)
	c.log.Info("step committed", "rows", rows, "epoch", st.epoch, logging.Since(st.started, c.now()))
	return nil
}

func (c *Context) lenLocked() int {
	switch {
	case c.tree != nil:
		return c.tree.Len()
	case c.flat != nil:
		return c.flat.Len()
	}
	return 0
}

// fail discards the step and records why it ended.
func (c *Context) fail(p Phase, err error) error {
	c.discard()
	if errors.Is(err, progress.ErrCancelled) {
		c.metrics.step(ResultCancelled)
		c.log.Info("step cancelled", "phase", p.String())
	} else {
		c.metrics.step(ResultFailed)
		c.log.Error("step failed", "phase", p.String(), "error", err)
	}
	return fmt.Errorf("%s phase: %w", p, err)
}

func (c *Context) discard() {
	if st := c.st; st != nil {
		if st.flat != nil {
			st.flat.Release()
		}
		if st.tree != nil {
			st.tree.Release()
		}
	}
	c.st = nil
	c.phase.Store(uint32(PhaseIdle))
}

// sink joins the caller's sink with Cancel.
type sink struct{ c *Context }

func (s sink) Update(phase string, pct int) {
	if s.c.sink != nil {
		s.c.sink.Update(phase, pct)
	}
}

func (s sink) Cancelled() bool {
	return s.c.cancelled.Load() || (s.c.sink != nil && s.c.sink.Cancelled())
}
