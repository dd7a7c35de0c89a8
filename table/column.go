package table

import (
	"github.com/vegasq/cubecat/scalar"
)

// VocabID is the vocabulary index stored for each cell of a string column.
type VocabID uint32

// Column is the storage of one table column: a typed value slice, a
// per-row status and, for strings, the column vocabulary.
//
// The value slice type depends on the dtype: []int64 ... []uint8 for
// integers, []float64 and []float32, []bool, []VocabID for strings,
// []scalar.Date, []scalar.Time, []scalar.Duration, []scalar.Decimal, and
// []scalar.Scalar for list columns. Values reads it without copying.
type Column struct {
	name   string
	dtype  scalar.DType
	status []scalar.Status
	data   any
	vocab  *Vocab
}

func newColumn(f Field) *Column {
	c := &Column{name: f.Name, dtype: f.DType}
	switch dt := f.DType; {
	case dt == scalar.DTypeInt64:
		c.data = []int64(nil)
	case dt == scalar.DTypeInt32:
		c.data = []int32(nil)
	case dt == scalar.DTypeInt16:
		c.data = []int16(nil)
	case dt == scalar.DTypeInt8:
		c.data = []int8(nil)
	case dt == scalar.DTypeUint64:
		c.data = []uint64(nil)
	case dt == scalar.DTypeUint32:
		c.data = []uint32(nil)
	case dt == scalar.DTypeUint16:
		c.data = []uint16(nil)
	case dt == scalar.DTypeUint8:
		c.data = []uint8(nil)
	case dt == scalar.DTypeFloat64:
		c.data = []float64(nil)
	case dt == scalar.DTypeFloat32:
		c.data = []float32(nil)
	case dt == scalar.DTypeBool:
		c.data = []bool(nil)
	case dt == scalar.DTypeStr:
		c.data = []VocabID(nil)
		c.vocab = NewVocab()
	case dt == scalar.DTypeDate:
		c.data = []scalar.Date(nil)
	case dt == scalar.DTypeTime:
		c.data = []scalar.Time(nil)
	case dt == scalar.DTypeDuration:
		c.data = []scalar.Duration(nil)
	case dt == scalar.DTypeDecimal:
		c.data = []scalar.Decimal(nil)
	default:
		c.data = []scalar.Scalar(nil)
	}
	return c
}

// Values returns the typed value slice of c when T matches its storage.
func Values[T any](c *Column) ([]T, bool) {
	v, ok := c.data.([]T)
	return v, ok
}

// Name returns the column name.
func (c *Column) Name() string { return c.name }

// DType returns the column dtype.
func (c *Column) DType() scalar.DType { return c.dtype }

// Len returns the number of row slots.
func (c *Column) Len() int { return len(c.status) }

// Status returns the status of row.
func (c *Column) Status(row uint32) scalar.Status { return c.status[row] }

// Statuses returns the per-row status slice. It must not be modified.
func (c *Column) Statuses() []scalar.Status { return c.status }

// Vocab returns the vocabulary of a string column, or nil.
func (c *Column) Vocab() *Vocab { return c.vocab }

// Scalar returns the value at row.
func (c *Column) Scalar(row uint32) scalar.Scalar {
	switch c.status[row] {
	case scalar.StatusInvalid:
		return scalar.Null(c.dtype)
	case scalar.StatusError:
		return scalar.Error(c.dtype)
	}
	switch d := c.data.(type) {
	case []int64:
		return scalar.Int64(d[row])
	case []int32:
		return scalar.Int32(d[row])
	case []int16:
		return scalar.Int16(d[row])
	case []int8:
		return scalar.Int8(d[row])
	case []uint64:
		return scalar.Uint64(d[row])
	case []uint32:
		return scalar.Uint32(d[row])
	case []uint16:
		return scalar.Uint16(d[row])
	case []uint8:
		return scalar.Uint8(d[row])
	case []float64:
		return scalar.Float64(d[row])
	case []float32:
		return scalar.Float32(d[row])
	case []bool:
		return scalar.Bool(d[row])
	case []VocabID:
		return scalar.String(c.vocab.Resolve(uint32(d[row])))
	case []scalar.Date:
		return scalar.DateValue(d[row])
	case []scalar.Time:
		return scalar.TimeValue(d[row])
	case []scalar.Duration:
		return scalar.DurationValue(d[row])
	case []scalar.Decimal:
		return scalar.DecimalValue(d[row])
	case []scalar.Scalar:
		return d[row]
	}
	return scalar.Error(c.dtype)
}

func (c *Column) grow() {
	c.status = append(c.status, scalar.StatusInvalid)
	switch d := c.data.(type) {
	case []int64:
		c.data = append(d, 0)
	case []int32:
		c.data = append(d, 0)
	case []int16:
		c.data = append(d, 0)
	case []int8:
		c.data = append(d, 0)
	case []uint64:
		c.data = append(d, 0)
	case []uint32:
		c.data = append(d, 0)
	case []uint16:
		c.data = append(d, 0)
	case []uint8:
		c.data = append(d, 0)
	case []float64:
		c.data = append(d, 0)
	case []float32:
		c.data = append(d, 0)
	case []bool:
		c.data = append(d, false)
	case []VocabID:
		c.data = append(d, 0)
	case []scalar.Date:
		c.data = append(d, 0)
	case []scalar.Time:
		c.data = append(d, 0)
	case []scalar.Duration:
		c.data = append(d, 0)
	case []scalar.Decimal:
		c.data = append(d, scalar.Decimal{})
	case []scalar.Scalar:
		c.data = append(d, scalar.Null(c.dtype))
	}
}

// set stores s, which must already conform to the column dtype. Invalid
// cells store the zero value so that they tie with each other.
func (c *Column) set(row uint32, s scalar.Scalar) {
	c.status[row] = s.Status()
	if !s.IsValid() {
		c.zero(row, s)
		return
	}
	switch d := c.data.(type) {
	case []int64:
		d[row] = s.Int64()
	case []int32:
		d[row] = int32(s.Int64())
	case []int16:
		d[row] = int16(s.Int64())
	case []int8:
		d[row] = int8(s.Int64())
	case []uint64:
		d[row] = s.Bits()
	case []uint32:
		d[row] = uint32(s.Bits())
	case []uint16:
		d[row] = uint16(s.Bits())
	case []uint8:
		d[row] = uint8(s.Bits())
	case []float64:
		d[row] = s.Float64()
	case []float32:
		d[row] = float32(s.Float64())
	case []bool:
		d[row] = s.Bool()
	case []VocabID:
		d[row] = VocabID(c.vocab.Intern(s.Str()))
	case []scalar.Date:
		d[row] = s.Date()
	case []scalar.Time:
		d[row] = s.Time()
	case []scalar.Duration:
		d[row] = s.Duration()
	case []scalar.Decimal:
		d[row] = s.Decimal()
	case []scalar.Scalar:
		d[row] = s
	}
}

func (c *Column) zero(row uint32, s scalar.Scalar) {
	switch d := c.data.(type) {
	case []int64:
		d[row] = 0
	case []int32:
		d[row] = 0
	case []int16:
		d[row] = 0
	case []int8:
		d[row] = 0
	case []uint64:
		d[row] = 0
	case []uint32:
		d[row] = 0
	case []uint16:
		d[row] = 0
	case []uint8:
		d[row] = 0
	case []float64:
		d[row] = 0
	case []float32:
		d[row] = 0
	case []bool:
		d[row] = false
	case []VocabID:
		d[row] = 0
	case []scalar.Date:
		d[row] = 0
	case []scalar.Time:
		d[row] = 0
	case []scalar.Duration:
		d[row] = 0
	case []scalar.Decimal:
		d[row] = scalar.Decimal{}
	case []scalar.Scalar:
		d[row] = s
	}
}

// conform converts s to the column dtype. Null, error and none values
// keep their status; numeric values are coerced; anything else must match
// exactly.
func (c *Column) conform(s scalar.Scalar) (scalar.Scalar, error) {
	switch {
	case s.IsNone():
		return scalar.Null(c.dtype), nil
	case !s.IsValid():
		return scalar.Null(c.dtype).WithStatus(s.Status()), nil
	case s.DType() == c.dtype:
		return s, nil
	case c.dtype.IsNumeric() && (s.DType().IsNumeric() || s.DType() == scalar.DTypeBool):
		return s.CoerceNumeric(c.dtype), nil
	}
	return s, &scalar.TypeMismatchError{Want: c.dtype, Got: s.DType()}
}
