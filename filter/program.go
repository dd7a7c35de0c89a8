package filter

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/vegasq/cubecat/progress"
	"github.com/vegasq/cubecat/scalar"
	"github.com/vegasq/cubecat/table"
)

// pollBlocks is the number of 32-row blocks evaluated between two
// cancellation polls.
const pollBlocks = 32

// Program is a set of terms compiled against one table. It is bound to the
// table state it was compiled against and must be recompiled after the
// table changes.
type Program struct {
	tbl      *table.Table
	combiner Combiner
	terms    []*compiled
	search   *compiledSearch
	today    scalar.Date
	sig      uint64
}

type options struct {
	now    time.Time
	search *Search
}

// Option configures Compile.
type Option func(*options)

// WithNow sets the clock date shortcuts are resolved against.
func WithNow(t time.Time) Option {
	return func(o *options) {
		o.now = t
	}
}

// WithSearch ANDs a free-text search into the program.
func WithSearch(s Search) Option {
	return func(o *options) {
		if s.Text != "" {
			o.search = &s
		}
	}
}

// Compile binds terms to the columns of tbl and prepares each of them.
// Terms on unknown columns fail with a *table.SchemaError; terms whose
// operands do not fit their operator fail with ErrMalformedConfig.
func Compile(tbl *table.Table, terms []Term, combiner Combiner, opts ...Option) (*Program, error) {
	o := options{now: time.Now()}
	for _, opt := range opts {
		opt(&o)
	}
	p, err := compileGroup(tbl, terms, combiner, scalar.DateOf(o.now))
	if err != nil {
		return nil, err
	}
	if o.search != nil {
		s, err := compileSearch(tbl, *o.search)
		if err != nil {
			return nil, err
		}
		p.search = s
	}
	p.sig = p.signature()
	return p, nil
}

func compileGroup(tbl *table.Table, terms []Term, combiner Combiner, today scalar.Date) (*Program, error) {
	p := &Program{tbl: tbl, combiner: combiner, today: today}
	for i, t := range terms {
		c, err := compileTerm(tbl, t, combiner, today)
		if err != nil {
			return nil, fmt.Errorf("term %d (%s): %w", i, t.Column, err)
		}
		p.terms = append(p.terms, c)
	}
	return p, nil
}

func compileTerm(tbl *table.Table, t Term, parent Combiner, today scalar.Date) (*compiled, error) {
	if t.Op >= numOps {
		return nil, &ConfigError{Field: "op", Value: t.Op.String()}
	}
	c := &compiled{term: t}

	if t.Op == OpGroupFilter {
		if t.Dependency == nil || len(t.Dependency.Terms) == 0 {
			// An empty group leaves the enclosing combination unchanged.
			c.noop = true
			if parent == And {
				c.block = fullBlock
			} else {
				c.block = emptyBlock
			}
			return c, nil
		}
		sub, err := compileGroup(tbl, t.Dependency.Terms, t.Dependency.Combiner, today)
		if err != nil {
			return nil, err
		}
		c.sub = sub
		c.block = sub.block
		return c, nil
	}

	idx, ok := tbl.Schema().Index(t.Column)
	if !ok {
		return nil, &table.SchemaError{Column: t.Column}
	}
	c.colIdx = idx
	c.col = tbl.ColumnAt(idx)

	c.vtype = c.col.DType().Elem()
	if t.AggLevel != scalar.AggLevelNone {
		if !c.vtype.IsTemporal() {
			return nil, &ConfigError{Field: "agg level", Value: t.AggLevel.String() + " on " + c.col.DType().String()}
		}
		c.vtype = scalar.DTypeStr
		if t.AggLevel == scalar.AggLevelYear {
			c.vtype = scalar.DTypeInt64
		}
	}
	if t.Binning.Enabled() {
		c.vtype = scalar.DTypeStr
	}

	if err := c.resolveOperands(today); err != nil {
		return nil, err
	}
	c.block = prepare(c)
	if c.block == nil {
		c.block = c.genericBlock
	}
	return c, nil
}

func (c *compiled) resolveOperands(today scalar.Date) error {
	t := c.term
	var err error
	if !t.Threshold.IsNone() {
		if c.threshold, err = conformValue(t.Threshold, c.vtype); err != nil {
			return err
		}
	} else {
		c.threshold = scalar.None()
	}
	c.needle = strings.ToLower(c.threshold.String())

	switch {
	case t.Op.IsShortcut():
		lo, hi := scalar.Scalar{}, scalar.Scalar{}
		if len(t.Bag) >= 2 && t.Op != OpRelativeDate {
			lo, hi = t.Bag[0], t.Bag[1]
		} else {
			dlo, dhi, err := ShortcutRange(t.Op, today, t.Bag)
			if err != nil {
				return err
			}
			lo, hi = scalar.DateValue(dlo), scalar.DateValue(dhi)
			if c.vtype == scalar.DTypeTime {
				lo, hi = scalar.TimeValue(scalar.Time(dlo)), scalar.TimeValue(scalar.Time(dhi))
			}
		}
		return c.setRange(lo, hi)
	case t.Op == OpBetween, t.Op == OpEleBetween:
		if len(t.Bag) < 2 {
			return &ConfigError{Field: "between bag", Value: fmt.Sprintf("%d values", len(t.Bag))}
		}
		return c.setRange(t.Bag[0], t.Bag[1])
	case t.Op == OpTopN:
		if len(t.Bag) < 1 {
			return &ConfigError{Field: "top n bag", Value: "needs a count"}
		}
		return nil
	}

	c.bag = make([]scalar.Scalar, 0, len(t.Bag))
	c.bagSet = make(map[uint64][]scalar.Scalar, len(t.Bag))
	for _, b := range t.Bag {
		v, err := conformValue(b, c.vtype)
		if err != nil {
			return err
		}
		c.bag = append(c.bag, v)
		h := scalar.Hash(v)
		c.bagSet[h] = append(c.bagSet[h], v)
	}
	return nil
}

func (c *compiled) setRange(lo, hi scalar.Scalar) error {
	var err error
	if lo, err = conformValue(lo, c.vtype); err != nil {
		return err
	}
	if hi, err = conformValue(hi, c.vtype); err != nil {
		return err
	}
	if scalar.Compare(hi, lo) < 0 {
		lo, hi = hi, lo
	}
	c.lo, c.hi = lo, hi
	numeric := func(s scalar.Scalar) bool {
		return s.IsValid() && (s.DType().IsNumeric() || s.DType().IsTemporal())
	}
	c.numRange = numeric(lo) && numeric(hi) && (c.vtype.IsNumeric() || c.vtype.IsTemporal())
	if c.numRange {
		c.loF, c.hiF = lo.Float64(), hi.Float64()
		if math.IsNaN(c.loF) || math.IsNaN(c.hiF) {
			c.numRange = false
		}
	}
	return nil
}

// genericBlock evaluates the term row by row on scalars.
func (c *compiled) genericBlock(first, last int) uint32 {
	var m uint32
	for i := first; i < last; i++ {
		if c.matchCell(c.col.Scalar(uint32(i))) {
			m |= 1 << uint(i-first)
		}
	}
	return m
}

func (c *compiled) matchCell(s scalar.Scalar) bool {
	if c.transformed() {
		s = c.transform(s)
	}
	return c.match(s)
}

// block combines the terms of p over rows [first, last).
func (p *Program) block(first, last int) uint32 {
	var m uint32
	if p.combiner == And {
		m = fullBlock(first, last)
	}
	for _, c := range p.terms {
		b := c.block(first, last)
		if p.combiner == And {
			m &= b
			if m == 0 {
				break
			}
		} else {
			m |= b
		}
	}
	return m
}

// Evaluate returns the live rows that pass every term (or any, for Or)
// and the search. An empty program passes every live row. Cancellation is
// polled every 1024 rows.
func (p *Program) Evaluate(rep *progress.Reporter) (*Mask, error) {
	if rep == nil {
		rep = progress.Discard()
	}
	n := p.tbl.Len()
	mask := NewMask()
	if len(p.terms) == 0 && p.search == nil {
		mask.rb.Or(p.tbl.LiveRows())
		rep.Done()
		return mask, nil
	}

	buf := make([]uint32, 0, blockSize)
	for first, blocks := 0, 0; first < n; first, blocks = first+blockSize, blocks+1 {
		if blocks%pollBlocks == 0 {
			if err := rep.Step(first, n); err != nil {
				return nil, err
			}
		}
		last := min(first+blockSize, n)
		var m uint32
		if len(p.terms) > 0 {
			m = p.block(first, last)
		} else {
			m = fullBlock(first, last)
		}
		if p.search != nil && m != 0 {
			m &= p.search.block(first, last)
		}
		if m == 0 {
			continue
		}
		buf = buf[:0]
		for bit := 0; m != 0; bit++ {
			if m&1 != 0 {
				buf = append(buf, uint32(first+bit))
			}
			m >>= 1
		}
		mask.rb.AddMany(buf)
	}
	mask.rb.And(p.tbl.LiveRows())
	rep.Done()
	return mask, nil
}

// MatchRow evaluates the program on one row image, cells given in schema
// order. It is used for row versions that are no longer in the table.
func (p *Program) MatchRow(row []scalar.Scalar) bool {
	if p.search != nil && !p.search.matchRow(row) {
		return false
	}
	return p.matchRow(row)
}

func (p *Program) matchRow(row []scalar.Scalar) bool {
	if len(p.terms) == 0 {
		return true
	}
	for _, c := range p.terms {
		var ok bool
		switch {
		case c.noop:
			ok = p.combiner == And
		case c.sub != nil:
			ok = c.sub.matchRow(row)
		default:
			ok = c.matchCell(row[c.colIdx])
		}
		if p.combiner == And && !ok {
			return false
		}
		if p.combiner == Or && ok {
			return true
		}
	}
	return p.combiner == And
}

// Signature identifies the filter semantics of p: two programs with the
// same signature select the same rows of the same table state.
func (p *Program) Signature() uint64 { return p.sig }

func (p *Program) signature() uint64 {
	d := xxhash.New()
	p.writeSignature(d)
	if p.search != nil {
		fmt.Fprintf(d, "|search %q %q", p.search.columns, p.search.text)
	}
	return d.Sum64()
}

func (p *Program) writeSignature(d *xxhash.Digest) {
	fmt.Fprintf(d, "%s(", p.combiner)
	for _, c := range p.terms {
		_, _ = d.WriteString(c.term.String())
		if c.term.Op.IsShortcut() {
			fmt.Fprintf(d, "@%d", p.today)
		}
		if c.sub != nil {
			c.sub.writeSignature(d)
		}
		_, _ = d.WriteString(";")
	}
	_, _ = d.WriteString(")")
}

// TopN is the row limit requested by a TopN term.
type TopN struct {
	Column  string
	Level   int
	N       float64
	Percent bool
}

// TopN returns the limits of the TopN terms of p. The count comes from
// bag[0]; bag[1], when present, is the limit type ("items" or "percent").
func (p *Program) TopN() []TopN {
	var out []TopN
	for _, c := range p.terms {
		if c.term.Op != OpTopN || len(c.term.Bag) == 0 {
			continue
		}
		t := TopN{Column: c.term.Column, Level: c.term.Level, N: c.term.Bag[0].Float64()}
		if c.term.Bag[0].DType() == scalar.DTypeStr {
			if v, err := scalar.FromString(scalar.DTypeFloat64, c.term.Bag[0].Str()); err == nil {
				t.N = v.Float64()
			}
		}
		if len(c.term.Bag) > 1 {
			lt := c.term.Bag[1]
			t.Percent = strings.EqualFold(lt.String(), "percent") || (lt.DType().IsInteger() && lt.Int64() == 1)
		}
		out = append(out, t)
	}
	return out
}

// Table returns the table p was compiled against.
func (p *Program) Table() *table.Table { return p.tbl }

// Len returns the number of top-level terms.
func (p *Program) Len() int { return len(p.terms) }
