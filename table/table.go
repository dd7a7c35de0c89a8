package table

import (
	"fmt"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/vegasq/cubecat/scalar"
)

// Row is a set of named cell values for Upsert. Columns missing from the
// row are null on insert and left unchanged on update.
type Row map[string]scalar.Scalar

// ChangeKind says what happened to a row.
type ChangeKind uint8

// Change kinds.
const (
	ChangeInsert ChangeKind = iota + 1
	ChangeUpdate
	ChangeDelete
)

func (k ChangeKind) String() string {
	switch k {
	case ChangeInsert:
		return "insert"
	case ChangeUpdate:
		return "update"
	case ChangeDelete:
		return "delete"
	}
	return "unknown"
}

// Change records one row mutation. Old is the full row image before the
// mutation, nil when the row was not live.
type Change struct {
	Epoch uint64
	Row   uint32
	Kind  ChangeKind
	Old   []scalar.Scalar
}

// Table is an in-memory columnar row store.
//
// Rows are addressed by stable ids: an id, once assigned, keeps its column
// alignment across updates, and deleted rows leave tombstones that are
// reused only by the same primary key. Every Upsert or Delete call advances
// the epoch by one and appends to a bounded change log.
//
// A Table has a single writer. Readers must not run concurrently with
// Upsert or Delete.
type Table struct {
	schema Schema
	cols   []*Column
	pkey   int
	keys   map[uint64][]uint32
	live   *roaring.Bitmap
	epoch  uint64

	log       []Change
	logCap    int
	truncated uint64
}

// New creates an empty table.
func New(schema Schema, opts ...Option) (*Table, error) {
	if err := schema.validate(); err != nil {
		return nil, err
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	t := &Table{
		schema: append(Schema(nil), schema...),
		pkey:   -1,
		keys:   make(map[uint64][]uint32),
		live:   roaring.New(),
		logCap: o.changeLogCapacity,
	}
	for _, f := range schema {
		t.cols = append(t.cols, newColumn(f))
	}
	if o.primaryKey != "" {
		i, ok := schema.Index(o.primaryKey)
		if !ok {
			return nil, fmt.Errorf("primary key: %w", &SchemaError{Column: o.primaryKey})
		}
		t.pkey = i
	}
	return t, nil
}

// Schema returns the table schema.
func (t *Table) Schema() Schema { return t.schema }

// Column returns the named column or a *SchemaError.
func (t *Table) Column(name string) (*Column, error) {
	i, ok := t.schema.Index(name)
	if !ok {
		return nil, &SchemaError{Column: name}
	}
	return t.cols[i], nil
}

// ColumnAt returns the column at schema position i.
func (t *Table) ColumnAt(i int) *Column { return t.cols[i] }

// Len returns the number of row slots, tombstones included.
func (t *Table) Len() int {
	if len(t.cols) == 0 {
		return 0
	}
	return t.cols[0].Len()
}

// NumLive returns the number of live rows.
func (t *Table) NumLive() int { return int(t.live.GetCardinality()) }

// Live reports whether row holds a live (not deleted) row.
func (t *Table) Live(row uint32) bool { return t.live.Contains(row) }

// LiveRows returns a copy of the live row set.
func (t *Table) LiveRows() *roaring.Bitmap { return t.live.Clone() }

// Epoch returns the mutation counter.
func (t *Table) Epoch() uint64 { return t.epoch }

// PrimaryKeyColumn returns the primary key column name, or "" when rows are
// keyed by their id.
func (t *Table) PrimaryKeyColumn() string {
	if t.pkey < 0 {
		return ""
	}
	return t.schema[t.pkey].Name
}

// PrimaryKey returns the key of row: the primary key cell, or the row id as
// an int64 when the table has no primary key column.
func (t *Table) PrimaryKey(row uint32) scalar.Scalar {
	if t.pkey < 0 {
		return scalar.Int64(int64(row))
	}
	return t.cols[t.pkey].Scalar(row)
}

// RowByKey returns the live row holding key.
func (t *Table) RowByKey(key scalar.Scalar) (uint32, bool) {
	row, ok := t.slotByKey(key)
	if !ok || !t.live.Contains(row) {
		return 0, false
	}
	return row, true
}

func (t *Table) slotByKey(key scalar.Scalar) (uint32, bool) {
	if t.pkey < 0 {
		if !key.IsValid() || !key.DType().IsInteger() {
			return 0, false
		}
		id := key.Int64()
		if id < 0 || id >= int64(t.Len()) {
			return 0, false
		}
		return uint32(id), true
	}
	for _, row := range t.keys[scalar.Hash(key)] {
		if scalar.Equal(t.cols[t.pkey].Scalar(row), key) {
			return row, true
		}
	}
	return 0, false
}

// Scalar returns the cell at (row, col).
func (t *Table) Scalar(row uint32, col int) scalar.Scalar {
	return t.cols[col].Scalar(row)
}

// Row returns every cell of row in schema order.
func (t *Table) Row(row uint32) []scalar.Scalar {
	out := make([]scalar.Scalar, len(t.cols))
	for i, c := range t.cols {
		out[i] = c.Scalar(row)
	}
	return out
}

type pending struct {
	values []scalar.Scalar
	set    []bool
	key    scalar.Scalar
}

// Upsert inserts rows, or updates the rows whose primary key already
// exists. Either every row is applied or, on error, none is.
func (t *Table) Upsert(rows ...Row) error {
	batch := make([]pending, 0, len(rows))
	for n, r := range rows {
		p := pending{
			values: make([]scalar.Scalar, len(t.cols)),
			set:    make([]bool, len(t.cols)),
		}
		for name, v := range r {
			i, ok := t.schema.Index(name)
			if !ok {
				return fmt.Errorf("row %d: %w", n, &SchemaError{Column: name})
			}
			cv, err := t.cols[i].conform(v)
			if err != nil {
				return fmt.Errorf("row %d column %q: %w", n, name, err)
			}
			p.values[i], p.set[i] = cv, true
		}
		if t.pkey >= 0 {
			if !p.set[t.pkey] || !p.values[t.pkey].IsValid() {
				return fmt.Errorf("row %d: %w", n, ErrMissingPrimaryKey)
			}
			p.key = p.values[t.pkey]
		}
		batch = append(batch, p)
	}

	t.epoch++
	for _, p := range batch {
		t.apply(p)
	}
	return nil
}

func (t *Table) apply(p pending) {
	if t.pkey >= 0 {
		if row, ok := t.slotByKey(p.key); ok {
			if t.live.Contains(row) {
				old := t.Row(row)
				for i, c := range t.cols {
					if p.set[i] {
						c.set(row, p.values[i])
					}
				}
				t.record(Change{Row: row, Kind: ChangeUpdate, Old: old})
				return
			}
			t.fill(row, p)
			t.live.Add(row)
			t.record(Change{Row: row, Kind: ChangeInsert})
			return
		}
	}
	row := uint32(t.Len())
	for _, c := range t.cols {
		c.grow()
	}
	t.fill(row, p)
	if t.pkey >= 0 {
		h := scalar.Hash(p.key)
		t.keys[h] = append(t.keys[h], row)
	}
	t.live.Add(row)
	t.record(Change{Row: row, Kind: ChangeInsert})
}

func (t *Table) fill(row uint32, p pending) {
	for i, c := range t.cols {
		if p.set[i] {
			c.set(row, p.values[i])
		} else {
			c.set(row, scalar.Null(c.dtype))
		}
	}
}

// Delete removes the live rows holding the given keys. Unknown keys are
// ignored. It returns the number of rows deleted.
func (t *Table) Delete(keys ...scalar.Scalar) int {
	t.epoch++
	n := 0
	for _, k := range keys {
		row, ok := t.RowByKey(k)
		if !ok {
			continue
		}
		old := t.Row(row)
		t.live.Remove(row)
		t.record(Change{Row: row, Kind: ChangeDelete, Old: old})
		n++
	}
	return n
}

func (t *Table) record(c Change) {
	c.Epoch = t.epoch
	if t.logCap <= 0 {
		t.truncated = t.epoch
		return
	}
	if len(t.log) >= t.logCap {
		drop := len(t.log) - t.logCap + 1
		t.truncated = t.log[drop-1].Epoch
		t.log = append(t.log[:0], t.log[drop:]...)
	}
	t.log = append(t.log, c)
}

// ChangesSince returns the changes made after epoch, oldest first. ok is
// false when part of that history has been dropped from the log, in which
// case callers must rebuild from the full table.
func (t *Table) ChangesSince(epoch uint64) (changes []Change, ok bool) {
	if epoch < t.truncated {
		return nil, false
	}
	for i := len(t.log) - 1; i >= 0; i-- {
		if t.log[i].Epoch <= epoch {
			return t.log[i+1:], true
		}
	}
	return t.log, true
}
