package sorter

import (
	"cmp"
	"fmt"
	"math"
	"slices"

	"github.com/vegasq/cubecat/progress"
	"github.com/vegasq/cubecat/scalar"
	"github.com/vegasq/cubecat/table"
)

// rankVocabMax bounds the vocabulary size for which string columns are
// sorted by vocabulary rank.
const rankVocabMax = 1 << 16

// Source resolves sort key columns.
type Source interface {
	Column(name string) (*table.Column, error)
}

// Sort stably reorders perm, a sequence of row ids, by keys. keys[0] is the
// primary key: passes run from the last key to the first, each stable, so
// earlier keys dominate. After every key, rows whose cell is invalid or an
// error move behind the valid ones.
//
// Cancellation is polled before every key and, inside a key, before every
// radix pass or comparison block. A cancelled sort leaves perm a
// permutation of its input.
func Sort(perm []uint32, keys []Key, src Source, rep *progress.Reporter) error {
	if rep == nil {
		rep = progress.Discard()
	}
	for i := len(keys) - 1; i >= 0; i-- {
		if err := rep.Step(len(keys)-1-i, len(keys)); err != nil {
			return err
		}
		k := keys[i]
		if k.Type == None {
			continue
		}
		col, err := src.Column(k.Column)
		if err != nil {
			return fmt.Errorf("sort key %q: %w", k.Column, err)
		}
		if err := sortColumn(perm, col, k.Type, rep); err != nil {
			return err
		}
		statusPass(perm, col.Statuses())
	}
	rep.Done()
	return nil
}

func sortColumn(perm []uint32, col *table.Column, t Type, rep *progress.Reporter) error {
	desc, abs := t.IsDescending(), t.IsAbs()
	switch col.DType() {
	case scalar.DTypeInt64:
		return sortSigned(perm, mustValues[int64](col), 64, desc, abs, rep)
	case scalar.DTypeInt32:
		return sortSigned(perm, mustValues[int32](col), 32, desc, abs, rep)
	case scalar.DTypeInt16:
		return sortSigned(perm, mustValues[int16](col), 16, desc, abs, rep)
	case scalar.DTypeInt8:
		return sortSigned(perm, mustValues[int8](col), 8, desc, abs, rep)
	case scalar.DTypeDate:
		return sortSigned(perm, mustValues[scalar.Date](col), 32, desc, abs, rep)
	case scalar.DTypeUint64:
		return radixByKey(perm, 64, desc, unsignedKey(mustValues[uint64](col)), rep)
	case scalar.DTypeUint32:
		return radixByKey(perm, 32, desc, unsignedKey(mustValues[uint32](col)), rep)
	case scalar.DTypeUint16:
		return radixByKey(perm, 16, desc, unsignedKey(mustValues[uint16](col)), rep)
	case scalar.DTypeUint8:
		return radixByKey(perm, 8, desc, unsignedKey(mustValues[uint8](col)), rep)
	case scalar.DTypeBool:
		vals := mustValues[bool](col)
		return radixByKey(perm, 1, desc, func(row uint32) uint64 {
			if vals[row] {
				return 1
			}
			return 0
		}, rep)
	case scalar.DTypeFloat64:
		vals := mustValues[float64](col)
		isNaN := func(row uint32) bool { return math.IsNaN(vals[row]) }
		if abs {
			if err := radixByKey(perm, 63, desc, absFloatKey(vals), rep); err != nil {
				return err
			}
			partitionStable(perm, isNaN)
			return nil
		}
		return compareSort(perm, desc, func(a, b uint32) int { return cmp.Compare(vals[a], vals[b]) }, isNaN, rep)
	case scalar.DTypeFloat32:
		vals := mustValues[float32](col)
		isNaN := func(row uint32) bool { return vals[row] != vals[row] }
		if abs {
			if err := radixByKey(perm, 31, desc, absFloat32Key(vals), rep); err != nil {
				return err
			}
			partitionStable(perm, isNaN)
			return nil
		}
		return compareSort(perm, desc, func(a, b uint32) int { return cmp.Compare(vals[a], vals[b]) }, isNaN, rep)
	case scalar.DTypeTime:
		return sortEpsilon(perm, mustValues[scalar.Time](col), desc, abs, rep)
	case scalar.DTypeDuration:
		return sortEpsilon(perm, mustValues[scalar.Duration](col), desc, abs, rep)
	case scalar.DTypeDecimal:
		vals := mustValues[scalar.Decimal](col)
		return compareSort(perm, desc, func(a, b uint32) int {
			x, y := vals[a], vals[b]
			if abs {
				x.Neg, y.Neg = false, false
			}
			return x.Cmp(y)
		}, nil, rep)
	case scalar.DTypeStr:
		return sortStrings(perm, col, desc, rep)
	}
	vals := mustValues[scalar.Scalar](col)
	return compareSort(perm, desc, func(a, b uint32) int { return scalar.Compare(vals[a], vals[b]) }, nil, rep)
}

func mustValues[T any](c *table.Column) []T {
	v, _ := table.Values[T](c)
	return v
}

// sortBlock is the run length compareSort sorts between cancellation
// checks, and the number of rows merged between checks.
const sortBlock = 1 << 14

// compareSort is a stable comparison sort. Rows for which last reports
// true (NaN cells) go after all others in both directions. Large inputs
// are sorted in blocks which are then merged pairwise.
func compareSort(perm []uint32, desc bool, compare func(a, b uint32) int, last func(row uint32) bool, rep *progress.Reporter) error {
	order := func(a, b uint32) int {
		if last != nil {
			la, lb := last(a), last(b)
			switch {
			case la && lb:
				return 0
			case la:
				return 1
			case lb:
				return -1
			}
		}
		if desc {
			return compare(b, a)
		}
		return compare(a, b)
	}

	n := len(perm)
	if n <= sortBlock {
		slices.SortStableFunc(perm, order)
		return nil
	}
	for lo := 0; lo < n; lo += sortBlock {
		if err := rep.Check(); err != nil {
			return err
		}
		slices.SortStableFunc(perm[lo:min(lo+sortBlock, n)], order)
	}

	src, dst := perm, make([]uint32, n)
	var err error
	for width := sortBlock; width < n && err == nil; width *= 2 {
		for lo := 0; lo < n && err == nil; lo += 2 * width {
			mid, hi := min(lo+width, n), min(lo+2*width, n)
			err = merge(dst[lo:hi], src[lo:mid], src[mid:hi], order, rep)
		}
		if err == nil {
			src, dst = dst, src
		}
	}
	// src always holds the last complete pass.
	if &src[0] != &perm[0] {
		copy(perm, src)
	}
	return err
}

// merge stably merges the sorted runs a and b into out, polling
// cancellation every sortBlock rows.
func merge(out, a, b []uint32, order func(a, b uint32) int, rep *progress.Reporter) error {
	i, j := 0, 0
	for k := range out {
		if k%sortBlock == 0 {
			if err := rep.Check(); err != nil {
				return err
			}
		}
		if j >= len(b) || (i < len(a) && order(a[i], b[j]) <= 0) {
			out[k] = a[i]
			i++
		} else {
			out[k] = b[j]
			j++
		}
	}
	return nil
}

func sortSigned[T ~int64 | ~int32 | ~int16 | ~int8](perm []uint32, vals []T, width uint, desc, abs bool, rep *progress.Reporter) error {
	if !abs {
		return radixByKey(perm, width, desc, signedKey(vals, width), rep)
	}
	magnitude := func(row uint32) uint64 {
		v := int64(vals[row])
		if v < 0 {
			return uint64(-v)
		}
		return uint64(v)
	}
	return compareSort(perm, desc, func(a, b uint32) int { return cmp.Compare(magnitude(a), magnitude(b)) }, nil, rep)
}

// sortEpsilon orders day-fraction values on the scalar.Epsilon grid.
func sortEpsilon[T ~float64](perm []uint32, vals []T, desc, abs bool, rep *progress.Reporter) error {
	value := func(row uint32) float64 {
		if abs {
			return math.Abs(float64(vals[row]))
		}
		return float64(vals[row])
	}
	return compareSort(perm, desc, func(a, b uint32) int {
		return scalar.CompareEpsilon(value(a), value(b))
	}, nil, rep)
}

// sortStrings orders like scalar.Compare: by collation, then by bytes.
// Small vocabularies are ranked once and rows are radix sorted by rank.
func sortStrings(perm []uint32, col *table.Column, desc bool, rep *progress.Reporter) error {
	vocab := col.Vocab()
	nv := vocab.Len()
	if nv == 0 {
		return nil
	}
	ids := mustValues[table.VocabID](col)
	if nv < rankVocabMax && 2*nv < len(perm) {
		ranks := vocabRanks(vocab)
		return radixByKey(perm, 16, desc, func(row uint32) uint64 { return uint64(ranks[ids[row]]) }, rep)
	}
	return compareSort(perm, desc, func(a, b uint32) int {
		return scalar.CompareStrings(vocab.Resolve(uint32(ids[a])), vocab.Resolve(uint32(ids[b])))
	}, nil, rep)
}

// vocabRanks maps every vocabulary id to its rank under
// scalar.CompareStrings.
func vocabRanks(v *table.Vocab) []uint16 {
	order := v.Sorted(scalar.CompareStrings)
	ranks := make([]uint16, v.Len())
	r := uint16(0)
	for i, id := range order {
		if i > 0 && scalar.CompareStrings(v.Resolve(order[i-1]), v.Resolve(id)) != 0 {
			r++
		}
		ranks[id] = r
	}
	return ranks
}

// statusPass is a stable counting sort on cell status: valid rows first,
// then invalid, then error.
func statusPass(perm []uint32, status []scalar.Status) {
	var count [scalar.NumStatus]int
	for _, row := range perm {
		count[status[row]]++
	}
	if count[scalar.StatusValid] == len(perm) {
		return
	}
	var start [scalar.NumStatus]int
	for s := 1; s < int(scalar.NumStatus); s++ {
		start[s] = start[s-1] + count[s-1]
	}
	out := make([]uint32, len(perm))
	for _, row := range perm {
		s := status[row]
		out[start[s]] = row
		start[s]++
	}
	copy(perm, out)
}
