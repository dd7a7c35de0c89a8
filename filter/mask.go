package filter

import (
	"iter"

	"github.com/RoaringBitmap/roaring/v2"
)

// Mask is a set of logical row ids. A Mask handed out by a Program is
// shared read-only; callers that need to change it work on a Clone.
type Mask struct {
	rb *roaring.Bitmap
}

// NewMask returns an empty mask.
func NewMask() *Mask {
	return &Mask{rb: roaring.New()}
}

// MaskOf returns a mask holding rows.
func MaskOf(rows ...uint32) *Mask {
	return &Mask{rb: roaring.BitmapOf(rows...)}
}

// MaskFromBitmap wraps rb without copying it.
func MaskFromBitmap(rb *roaring.Bitmap) *Mask {
	return &Mask{rb: rb}
}

// Add inserts row.
func (m *Mask) Add(row uint32) { m.rb.Add(row) }

// Remove deletes row.
func (m *Mask) Remove(row uint32) { m.rb.Remove(row) }

// Contains reports whether row is in the mask.
func (m *Mask) Contains(row uint32) bool { return m.rb.Contains(row) }

// Cardinality returns the number of rows.
func (m *Mask) Cardinality() int { return int(m.rb.GetCardinality()) }

// IsEmpty reports whether the mask has no rows.
func (m *Mask) IsEmpty() bool { return m.rb.IsEmpty() }

// Clone returns a deep copy.
func (m *Mask) Clone() *Mask { return &Mask{rb: m.rb.Clone()} }

// And keeps only the rows also in o.
func (m *Mask) And(o *Mask) { m.rb.And(o.rb) }

// Or adds the rows of o.
func (m *Mask) Or(o *Mask) { m.rb.Or(o.rb) }

// Equals reports whether both masks hold the same rows.
func (m *Mask) Equals(o *Mask) bool { return m.rb.Equals(o.rb) }

// Rows returns the rows in ascending order.
func (m *Mask) Rows() []uint32 { return m.rb.ToArray() }

// Bitmap returns the underlying bitmap. It must not be modified.
func (m *Mask) Bitmap() *roaring.Bitmap { return m.rb }

// All iterates the rows in ascending order.
func (m *Mask) All() iter.Seq[uint32] {
	return func(yield func(uint32) bool) {
		it := m.rb.Iterator()
		for it.HasNext() {
			if !yield(it.Next()) {
				return
			}
		}
	}
}

// Bools expands the mask to one flag per row slot in [0, n).
func (m *Mask) Bools(n int) []bool {
	out := make([]bool, n)
	for row := range m.All() {
		if int(row) < n {
			out[row] = true
		}
	}
	return out
}
