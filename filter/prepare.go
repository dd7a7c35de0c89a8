package filter

import (
	"math"

	"github.com/vegasq/cubecat/scalar"
	"github.com/vegasq/cubecat/table"
)

// blockSize is the number of rows one prepared call covers.
const blockSize = 32

// blockFunc returns the match bits of rows [first, last), last-first <= 32,
// with bit i standing for row first+i.
type blockFunc func(first, last int) uint32

func fullBlock(first, last int) uint32 {
	n := last - first
	if n >= blockSize {
		return ^uint32(0)
	}
	return uint32(1)<<uint(n) - 1
}

func emptyBlock(int, int) uint32 { return 0 }

type number interface {
	~int64 | ~int32 | ~int16 | ~int8 | ~uint64 | ~uint32 | ~uint16 | ~uint8 | ~float64 | ~float32
}

// prepare returns a block function specialized on the column storage, or
// nil when the term needs per-row scalar evaluation.
func prepare(c *compiled) blockFunc {
	if c.transformed() {
		return nil
	}
	switch op := c.term.Op; {
	case op == OpIgnoreAll:
		return emptyBlock
	case op == OpTopN:
		return fullBlock
	case op == OpIn || op == OpNotIn:
		return prepareIn(c, op == OpNotIn)
	case op.IsRange():
		if !c.numRange {
			return nil
		}
		return prepareRange(c)
	}
	return nil
}

func prepareIn(c *compiled, negate bool) blockFunc {
	status := c.col.Statuses()
	dt := c.col.DType()
	switch {
	case dt == scalar.DTypeStr:
		ids, _ := table.Values[table.VocabID](c.col)
		set := make(map[table.VocabID]struct{}, len(c.bag))
		for _, b := range c.bag {
			if b.IsValid() && b.DType() == scalar.DTypeStr {
				if id, ok := c.col.Vocab().Lookup(b.Str()); ok {
					set[table.VocabID(id)] = struct{}{}
				}
			}
		}
		return inBlock(ids, status, set, negate)
	case dt == scalar.DTypeBool:
		vals, _ := table.Values[bool](c.col)
		return inBlock(vals, status, nativeSet(c.bag, dt, scalar.Scalar.Bool), negate)
	case dt == scalar.DTypeDate:
		vals, _ := table.Values[scalar.Date](c.col)
		return inBlock(vals, status, nativeSet(c.bag, dt, scalar.Scalar.Date), negate)
	case dt.IsFloat():
		for _, b := range c.bag {
			if b.IsValid() && b.DType().IsFloat() && math.IsNaN(b.Float64()) {
				return nil
			}
		}
		if dt == scalar.DTypeFloat32 {
			vals, _ := table.Values[float32](c.col)
			return inBlock(vals, status, nativeSet(c.bag, dt, func(s scalar.Scalar) float32 { return float32(s.Float64()) }), negate)
		}
		vals, _ := table.Values[float64](c.col)
		return inBlock(vals, status, nativeSet(c.bag, dt, scalar.Scalar.Float64), negate)
	case dt.IsInteger():
		return prepareIntIn(c, status, negate)
	}
	return nil
}

func prepareIntIn(c *compiled, status []scalar.Status, negate bool) blockFunc {
	dt := c.col.DType()
	switch dt {
	case scalar.DTypeInt64:
		vals, _ := table.Values[int64](c.col)
		return inBlock(vals, status, nativeSet(c.bag, dt, scalar.Scalar.Int64), negate)
	case scalar.DTypeInt32:
		vals, _ := table.Values[int32](c.col)
		return inBlock(vals, status, nativeSet(c.bag, dt, func(s scalar.Scalar) int32 { return int32(s.Int64()) }), negate)
	case scalar.DTypeInt16:
		vals, _ := table.Values[int16](c.col)
		return inBlock(vals, status, nativeSet(c.bag, dt, func(s scalar.Scalar) int16 { return int16(s.Int64()) }), negate)
	case scalar.DTypeInt8:
		vals, _ := table.Values[int8](c.col)
		return inBlock(vals, status, nativeSet(c.bag, dt, func(s scalar.Scalar) int8 { return int8(s.Int64()) }), negate)
	case scalar.DTypeUint64:
		vals, _ := table.Values[uint64](c.col)
		return inBlock(vals, status, nativeSet(c.bag, dt, scalar.Scalar.Bits), negate)
	case scalar.DTypeUint32:
		vals, _ := table.Values[uint32](c.col)
		return inBlock(vals, status, nativeSet(c.bag, dt, func(s scalar.Scalar) uint32 { return uint32(s.Bits()) }), negate)
	case scalar.DTypeUint16:
		vals, _ := table.Values[uint16](c.col)
		return inBlock(vals, status, nativeSet(c.bag, dt, func(s scalar.Scalar) uint16 { return uint16(s.Bits()) }), negate)
	case scalar.DTypeUint8:
		vals, _ := table.Values[uint8](c.col)
		return inBlock(vals, status, nativeSet(c.bag, dt, func(s scalar.Scalar) uint8 { return uint8(s.Bits()) }), negate)
	}
	return nil
}

// nativeSet keys the bag on the column's native values. Entries that do not
// convert exactly to dtype dt cannot equal any cell and are dropped.
func nativeSet[T comparable](bag []scalar.Scalar, dt scalar.DType, conv func(scalar.Scalar) T) map[T]struct{} {
	set := make(map[T]struct{}, len(bag))
	for _, b := range bag {
		if !b.IsValid() {
			continue
		}
		v := b
		if v.DType() != dt {
			if !v.DType().IsNumeric() || !dt.IsNumeric() {
				continue
			}
			if v = b.CoerceNumeric(dt); !scalar.Equal(v, b) {
				continue
			}
		}
		set[conv(v)] = struct{}{}
	}
	return set
}

func inBlock[T comparable](vals []T, status []scalar.Status, set map[T]struct{}, negate bool) blockFunc {
	return func(first, last int) uint32 {
		var m uint32
		for i := first; i < last; i++ {
			_, found := set[vals[i]]
			if status[i] == scalar.StatusValid && found != negate {
				m |= 1 << uint(i-first)
			}
		}
		return m
	}
}

func prepareRange(c *compiled) blockFunc {
	status := c.col.Statuses()
	lo, hi := c.loF, c.hiF
	switch c.col.DType() {
	case scalar.DTypeInt64:
		return rangeBlock(mustValues[int64](c.col), status, lo, hi)
	case scalar.DTypeInt32:
		return rangeBlock(mustValues[int32](c.col), status, lo, hi)
	case scalar.DTypeInt16:
		return rangeBlock(mustValues[int16](c.col), status, lo, hi)
	case scalar.DTypeInt8:
		return rangeBlock(mustValues[int8](c.col), status, lo, hi)
	case scalar.DTypeUint64:
		return rangeBlock(mustValues[uint64](c.col), status, lo, hi)
	case scalar.DTypeUint32:
		return rangeBlock(mustValues[uint32](c.col), status, lo, hi)
	case scalar.DTypeUint16:
		return rangeBlock(mustValues[uint16](c.col), status, lo, hi)
	case scalar.DTypeUint8:
		return rangeBlock(mustValues[uint8](c.col), status, lo, hi)
	case scalar.DTypeFloat64:
		return rangeBlock(mustValues[float64](c.col), status, lo, hi)
	case scalar.DTypeFloat32:
		return rangeBlock(mustValues[float32](c.col), status, lo, hi)
	case scalar.DTypeDate:
		return rangeBlock(mustValues[scalar.Date](c.col), status, lo, hi)
	case scalar.DTypeTime:
		return rangeBlock(mustValues[scalar.Time](c.col), status, lo, hi)
	case scalar.DTypeDuration:
		return rangeBlock(mustValues[scalar.Duration](c.col), status, lo, hi)
	}
	return nil
}

func mustValues[T any](c *table.Column) []T {
	v, _ := table.Values[T](c)
	return v
}

func rangeBlock[T number](vals []T, status []scalar.Status, lo, hi float64) blockFunc {
	return func(first, last int) uint32 {
		var m uint32
		for i := first; i < last; i++ {
			x := float64(vals[i])
			if status[i] == scalar.StatusValid && lo <= x && x < hi {
				m |= 1 << uint(i-first)
			}
		}
		return m
	}
}
