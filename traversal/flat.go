package traversal

import (
	"errors"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/vegasq/cubecat/filter"
	"github.com/vegasq/cubecat/progress"
	"github.com/vegasq/cubecat/scalar"
	"github.com/vegasq/cubecat/sorter"
	"github.com/vegasq/cubecat/table"
)

// FlatInput is what a flat step reads.
type FlatInput struct {
	Table *table.Table
	// Mask holds the rows passing the filter.
	Mask *filter.Mask
	// Signature identifies the filter and search that produced Mask.
	Signature uint64
	Keys      []sorter.Key
	// TopN are the row limits of top-N filter terms. The tightest one and
	// the primary key limit both apply.
	TopN []filter.TopN
}

// Flat is the ordered row index of an ungrouped view.
//
// A Flat is never modified once built: Step returns either the same Flat,
// when nothing it depends on changed, or a new one. Holders share it with
// Retain and give it up with Release.
type Flat struct {
	refs atomic.Int32

	tbl   *table.Table
	sig   uint64
	epoch uint64
	keys  []sorter.Key
	topN  []filter.TopN

	// base is the filtered rows in row id order, perm the sorted rows and
	// rows the visible prefix of perm.
	base []uint32
	perm []uint32
	rows []uint32

	posOnce sync.Once
	pos     map[uint32]int
}

// Step materializes in on top of f. f may be nil for the first step.
//
// The row set is rebuilt when the table, its epoch or the filter
// signature changed. Otherwise the current order is reused and only the
// sort keys that sorter.Reuse reports are applied. The returned Flat
// holds one reference owned by the caller.
func (f *Flat) Step(in FlatInput, rep *progress.Reporter) (*Flat, error) {
	if rep == nil {
		rep = progress.Discard()
	}
	if in.Table == nil || in.Mask == nil {
		return nil, errors.New("flat step: missing table or mask")
	}
	rebuild := f == nil || f.tbl != in.Table || f.epoch != in.Table.Epoch() || f.sig != in.Signature

	if !rebuild && sorter.Equal(f.keys, in.Keys) && slices.Equal(f.topN, in.TopN) {
		f.Retain()
		return f, nil
	}

	next := &Flat{
		tbl:   in.Table,
		sig:   in.Signature,
		epoch: in.Table.Epoch(),
		keys:  slices.Clone(in.Keys),
		topN:  slices.Clone(in.TopN),
	}
	next.refs.Store(1)

	var apply []sorter.Key
	if rebuild {
		next.base = in.Mask.Rows()
		next.perm = slices.Clone(next.base)
		apply = in.Keys
	} else {
		next.base = f.base
		n, exact := sorter.Reuse(in.Keys, f.keys)
		if exact {
			next.perm = slices.Clone(f.perm)
		} else {
			next.perm = slices.Clone(f.base)
		}
		apply = in.Keys[:n]
	}
	if err := sorter.Sort(next.perm, apply, in.Table, rep); err != nil {
		return nil, err
	}
	next.rows = next.perm[:next.limit()]
	return next, nil
}

func (f *Flat) limit() int {
	n := len(f.perm)
	keep := sorter.KeyLimit(n, f.keys)
	for _, t := range f.topN {
		lt := sorter.Items
		if t.Percent {
			lt = sorter.Percent
		}
		keep = min(keep, sorter.Limit(n, t.N, lt))
	}
	return keep
}

// Retain adds a reference and returns f.
func (f *Flat) Retain() *Flat {
	f.refs.Add(1)
	return f
}

// Release drops a reference.
func (f *Flat) Release() {
	if f.refs.Add(-1) < 0 {
		panic("traversal: Flat released more often than retained")
	}
}

// Shared reports whether more than one holder references f.
func (f *Flat) Shared() bool { return f.refs.Load() > 1 }

// Snapshot returns f with an added reference, for readers that outlive
// the step that produced it.
func (f *Flat) Snapshot() *Flat { return f.Retain() }

// Len returns the number of visible rows.
func (f *Flat) Len() int { return len(f.rows) }

// Total returns the number of rows before the limit.
func (f *Flat) Total() int { return len(f.perm) }

// SortKeys returns the keys f is ordered by.
func (f *Flat) SortKeys() []sorter.Key { return slices.Clone(f.keys) }

// Epoch returns the table epoch f reflects.
func (f *Flat) Epoch() uint64 { return f.epoch }

// Row returns the row id at pos.
func (f *Flat) Row(pos int) (uint32, bool) {
	if pos < 0 || pos >= len(f.rows) {
		return 0, false
	}
	return f.rows[pos], true
}

// Window returns the row ids at positions [start, end), clamped to the
// visible rows.
func (f *Flat) Window(start, end int) []uint32 {
	start, end = clamp(start, end, len(f.rows))
	return slices.Clone(f.rows[start:end])
}

// Key returns the primary key of the row at pos.
func (f *Flat) Key(pos int) (scalar.Scalar, bool) {
	row, ok := f.Row(pos)
	if !ok {
		return scalar.None(), false
	}
	return f.tbl.PrimaryKey(row), true
}

// Keys returns the primary keys of positions [start, end).
func (f *Flat) Keys(start, end int) []scalar.Scalar {
	start, end = clamp(start, end, len(f.rows))
	out := make([]scalar.Scalar, 0, end-start)
	for _, row := range f.rows[start:end] {
		out = append(out, f.tbl.PrimaryKey(row))
	}
	return out
}

// Position returns the visible position of the row with primary key key.
func (f *Flat) Position(key scalar.Scalar) (int, bool) {
	row, ok := f.tbl.RowByKey(key)
	if !ok {
		return -1, false
	}
	return f.RowPosition(row)
}

// RowPosition returns the visible position of a row id.
func (f *Flat) RowPosition(row uint32) (int, bool) {
	f.posOnce.Do(func() {
		f.pos = make(map[uint32]int, len(f.rows))
		for i, r := range f.rows {
			f.pos[r] = i
		}
	})
	p, ok := f.pos[row]
	if !ok {
		return -1, false
	}
	return p, true
}

// Positions looks up several keys; missing keys map to -1.
func (f *Flat) Positions(keys []scalar.Scalar) []int {
	out := make([]int, len(keys))
	for i, k := range keys {
		out[i], _ = f.Position(k)
	}
	return out
}

func clamp(start, end, n int) (int, int) {
	start = max(0, min(start, n))
	end = max(start, min(end, n))
	return start, end
}
