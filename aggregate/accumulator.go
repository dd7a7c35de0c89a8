package aggregate

import (
	"math"
	"slices"
	"strings"

	"github.com/vegasq/cubecat/scalar"
)

// Accumulator folds the rows of one pivot node.
//
// A leaf node feeds its rows with Add; an internal node merges the
// accumulators of its children (and feeds rows it owns directly, such as
// rows hidden by a top-N limit). Accumulators are rebuilt whenever a node
// is recomputed, so they never need to retract a row.
type Accumulator interface {
	// Add folds the cell of one row. w is the weight cell of a weighted
	// mean and is ignored by other functions.
	Add(row uint32, v, w scalar.Scalar)
	// Merge folds a child accumulator built from the same spec.
	Merge(child Accumulator)
	// Value returns the aggregate; a null when there is nothing to fold.
	Value() scalar.Scalar
}

// Percent returns part as a percentage of whole, or a null float when
// either side is missing or whole is zero.
func Percent(part, whole scalar.Scalar) scalar.Scalar {
	if !part.IsValid() || !whole.IsValid() {
		return scalar.Null(scalar.DTypeFloat64)
	}
	w := whole.Float64()
	if w == 0 {
		return scalar.Null(scalar.DTypeFloat64)
	}
	return scalar.Float64(part.Float64() / w * 100)
}

func summable(dt scalar.DType) bool {
	return dt.IsNumeric() || dt == scalar.DTypeBool || dt == scalar.DTypeDuration
}

func truthy(v scalar.Scalar) bool { return v.IsValid() && v.Bool() }

// sumAcc serves Sum, SumAbs, SumNotNull and the percentage functions.
// Integer columns sum exactly in int64, decimals in decimal arithmetic.
type sumAcc struct {
	fn    Func
	dtype scalar.DType
	n     int
	i     int64
	f     float64
	dec   scalar.Decimal
}

func (a *sumAcc) Add(_ uint32, v, _ scalar.Scalar) {
	if !v.IsValid() || !summable(v.DType()) {
		return
	}
	if a.fn == SumNotNull && v.DType().IsFloat() && math.IsNaN(v.Float64()) {
		return
	}
	if a.fn == SumAbs {
		v = v.Abs()
	}
	switch {
	case a.dtype == scalar.DTypeDecimal:
		a.dec = a.dec.Add(v.Decimal())
	case a.dtype.IsInteger(), a.dtype == scalar.DTypeBool:
		a.i += v.Int64()
	default:
		a.f += v.Float64()
	}
	a.n++
}

func (a *sumAcc) Merge(child Accumulator) {
	c := child.(*sumAcc)
	a.n += c.n
	a.i += c.i
	a.f += c.f
	a.dec = a.dec.Add(c.dec)
}

func (a *sumAcc) Value() scalar.Scalar {
	switch {
	case a.dtype == scalar.DTypeDecimal:
		if a.n == 0 {
			return scalar.Null(scalar.DTypeDecimal)
		}
		return scalar.DecimalValue(a.dec)
	case a.dtype.IsInteger(), a.dtype == scalar.DTypeBool:
		if a.n == 0 {
			return scalar.Null(scalar.DTypeInt64)
		}
		return scalar.Int64(a.i)
	case a.dtype == scalar.DTypeDuration:
		if a.n == 0 {
			return scalar.Null(scalar.DTypeDuration)
		}
		return scalar.DurationValue(scalar.Duration(a.f))
	}
	if a.n == 0 {
		return scalar.Null(scalar.DTypeFloat64)
	}
	return scalar.Float64(a.f)
}

// countAcc counts rows, including rows whose cell is null.
type countAcc struct {
	n int64
}

func (a *countAcc) Add(uint32, scalar.Scalar, scalar.Scalar) { a.n++ }

func (a *countAcc) Merge(child Accumulator) { a.n += child.(*countAcc).n }

func (a *countAcc) Value() scalar.Scalar { return scalar.Int64(a.n) }

// meanAcc keeps the (sum, count) pair so that merging stays exact.
type meanAcc struct {
	sum, n float64
}

func (a *meanAcc) Add(_ uint32, v, _ scalar.Scalar) {
	if v.IsValid() && summable(v.DType()) {
		a.sum += v.Float64()
		a.n++
	}
}

func (a *meanAcc) Merge(child Accumulator) {
	c := child.(*meanAcc)
	a.sum += c.sum
	a.n += c.n
}

func (a *meanAcc) Value() scalar.Scalar {
	if a.n == 0 {
		return scalar.Null(scalar.DTypeFloat64)
	}
	return scalar.Float64(a.sum / a.n)
}

type weightedAcc struct {
	nr, dr float64
}

func (a *weightedAcc) Add(_ uint32, v, w scalar.Scalar) {
	if !v.IsValid() || !w.IsValid() || !summable(v.DType()) || !summable(w.DType()) {
		return
	}
	x, y := v.Float64(), w.Float64()
	if math.IsNaN(x) || math.IsNaN(y) {
		return
	}
	a.nr += x * y
	a.dr += y
}

func (a *weightedAcc) Merge(child Accumulator) {
	c := child.(*weightedAcc)
	a.nr += c.nr
	a.dr += c.dr
}

func (a *weightedAcc) Value() scalar.Scalar {
	if a.dr == 0 {
		return scalar.Null(scalar.DTypeFloat64)
	}
	return scalar.Float64(a.nr / a.dr)
}

// markAcc is a low or high water mark over valid cells.
type markAcc struct {
	high  bool
	dtype scalar.DType
	seen  bool
	cur   scalar.Scalar
}

func (a *markAcc) Add(_ uint32, v, _ scalar.Scalar) {
	if v.IsValid() {
		a.offer(v)
	}
}

func (a *markAcc) offer(v scalar.Scalar) {
	if !a.seen {
		a.cur, a.seen = v, true
		return
	}
	c := scalar.Compare(v, a.cur)
	if (a.high && c > 0) || (!a.high && c < 0) {
		a.cur = v
	}
}

func (a *markAcc) Merge(child Accumulator) {
	if c := child.(*markAcc); c.seen {
		a.offer(c.cur)
	}
}

func (a *markAcc) Value() scalar.Scalar {
	if !a.seen {
		return scalar.Null(a.dtype)
	}
	return a.cur
}

// pickAcc picks the cell of one row by row id: the lowest for First, the
// highest for Last. Any prefers the lowest truthy cell and falls back to
// the lowest valid one.
type pickAcc struct {
	fn    Func
	dtype scalar.DType
	best  pick
	truth pick
}

type pick struct {
	ok  bool
	row uint32
	v   scalar.Scalar
}

func (p *pick) offer(row uint32, v scalar.Scalar, last bool) {
	if !p.ok || (last && row > p.row) || (!last && row < p.row) {
		*p = pick{ok: true, row: row, v: v}
	}
}

func (a *pickAcc) Add(row uint32, v, _ scalar.Scalar) {
	if !v.IsValid() {
		return
	}
	a.best.offer(row, v, a.fn == Last)
	if a.fn == Any && truthy(v) {
		a.truth.offer(row, v, false)
	}
}

func (a *pickAcc) Merge(child Accumulator) {
	c := child.(*pickAcc)
	if c.best.ok {
		a.best.offer(c.best.row, c.best.v, a.fn == Last)
	}
	if c.truth.ok {
		a.truth.offer(c.truth.row, c.truth.v, false)
	}
}

func (a *pickAcc) Value() scalar.Scalar {
	switch {
	case a.truth.ok:
		return a.truth.v
	case a.best.ok:
		return a.best.v
	}
	return scalar.Null(a.dtype)
}

// logicAcc folds truthiness. A null cell counts as false.
type logicAcc struct {
	and     bool
	n       int
	allTrue bool
	anyTrue bool
}

func (a *logicAcc) Add(_ uint32, v, _ scalar.Scalar) {
	t := truthy(v)
	if a.n == 0 {
		a.allTrue = true
	}
	a.n++
	a.allTrue = a.allTrue && t
	a.anyTrue = a.anyTrue || t
}

func (a *logicAcc) Merge(child Accumulator) {
	c := child.(*logicAcc)
	if c.n == 0 {
		return
	}
	if a.n == 0 {
		a.allTrue = true
	}
	a.n += c.n
	a.allTrue = a.allTrue && c.allTrue
	a.anyTrue = a.anyTrue || c.anyTrue
}

func (a *logicAcc) Value() scalar.Scalar {
	switch {
	case a.n == 0:
		return scalar.Null(scalar.DTypeBool)
	case a.and:
		return scalar.Bool(a.allTrue)
	}
	return scalar.Bool(a.anyTrue)
}

// bagAcc keeps the multiset of valid cells for the functions that cannot
// be merged from a fixed-size state.
type bagAcc struct {
	fn     Func
	dtype  scalar.DType
	counts map[uint64][]bagEntry
	total  int
}

type bagEntry struct {
	v scalar.Scalar
	n int
}

func (a *bagAcc) Add(_ uint32, v, _ scalar.Scalar) {
	if v.IsValid() {
		a.put(v, 1)
	}
}

func (a *bagAcc) put(v scalar.Scalar, n int) {
	if a.counts == nil {
		a.counts = make(map[uint64][]bagEntry)
	}
	a.total += n
	h := scalar.Hash(v)
	bucket := a.counts[h]
	for i := range bucket {
		if scalar.Equal(bucket[i].v, v) {
			bucket[i].n += n
			return
		}
	}
	a.counts[h] = append(bucket, bagEntry{v: v, n: n})
}

func (a *bagAcc) Merge(child Accumulator) {
	for _, bucket := range child.(*bagAcc).counts {
		for _, e := range bucket {
			a.put(e.v, e.n)
		}
	}
}

// entries returns the distinct values in scalar order.
func (a *bagAcc) entries() []bagEntry {
	var out []bagEntry
	for _, bucket := range a.counts {
		out = append(out, bucket...)
	}
	slices.SortFunc(out, func(x, y bagEntry) int { return scalar.Compare(x.v, y.v) })
	return out
}

func (a *bagAcc) Value() scalar.Scalar {
	if a.fn == DistinctCount {
		n := 0
		for _, bucket := range a.counts {
			n += len(bucket)
		}
		return scalar.Int64(int64(n))
	}
	if a.total == 0 {
		if a.fn == Join {
			return scalar.Null(scalar.DTypeStr)
		}
		return scalar.Null(a.dtype)
	}
	entries := a.entries()
	switch a.fn {
	case Unique:
		if len(entries) == 1 {
			return entries[0].v
		}
		if a.dtype == scalar.DTypeStr {
			return scalar.String("-")
		}
		return scalar.Null(a.dtype)
	case Dominant:
		best := entries[0]
		for _, e := range entries[1:] {
			if e.n > best.n {
				best = e
			}
		}
		return best.v
	case Median:
		mid := a.total / 2
		for _, e := range entries {
			if mid < e.n {
				return e.v
			}
			mid -= e.n
		}
	case Join:
		parts := make([]string, len(entries))
		for i, e := range entries {
			parts[i] = e.v.String()
		}
		return scalar.String(strings.Join(parts, ", "))
	}
	return scalar.Null(a.dtype)
}

// customAcc runs a registered reducer over the rows it was fed and the
// combiner over the partial results of merged children.
type customAcc struct {
	fn       custom
	values   []scalar.Scalar
	partials []scalar.Scalar
}

func (a *customAcc) Add(_ uint32, v, _ scalar.Scalar) {
	a.values = append(a.values, v)
}

func (a *customAcc) Merge(child Accumulator) {
	a.partials = append(a.partials, child.Value())
}

func (a *customAcc) Value() scalar.Scalar {
	switch {
	case len(a.partials) == 0 && len(a.values) == 0:
		return scalar.None()
	case len(a.partials) == 0:
		return a.fn.reduce(a.values)
	}
	partials := a.partials
	if len(a.values) > 0 {
		partials = append(slices.Clip(partials), a.fn.reduce(a.values))
	}
	return a.fn.combine(partials)
}
