package filter

import (
	"fmt"
	"strings"

	"github.com/vegasq/cubecat/scalar"
	"github.com/vegasq/cubecat/table"
)

// Term is one filter condition on a column.
//
// Threshold is the operand of comparison and string operators. Bag holds
// the operands of set operators (In, NotIn, InAny, InAll, EleInAny,
// EleNotInAny), the bounds of Between and EleBetween, precomputed bounds of
// date shortcuts (optional, computed from the clock otherwise), the unit
// and count of RelativeDate, and the count and limit type of TopN.
//
// AggLevel and Binning transform the cell before it is compared. Level is
// the pivot depth a TopN term limits when the view is grouped.
type Term struct {
	Column     string
	Op         Op
	Threshold  scalar.Scalar
	Bag        []scalar.Scalar
	Level      int
	AggLevel   scalar.AggLevel
	Binning    scalar.Binning
	Dependency *Dependency
}

// Dependency is the nested term group of a GroupFilter term.
type Dependency struct {
	Combiner Combiner
	Terms    []Term
}

func (t Term) String() string {
	var b strings.Builder
	b.WriteString(t.Column)
	if t.AggLevel != scalar.AggLevelNone {
		fmt.Fprintf(&b, "[%s]", t.AggLevel)
	}
	if t.Binning.Enabled() {
		fmt.Fprintf(&b, "[bin %g..%g/%g]", t.Binning.Min, t.Binning.Max, t.Binning.Size)
	}
	b.WriteByte(' ')
	b.WriteString(t.Op.String())
	switch {
	case t.Op == OpGroupFilter && t.Dependency != nil:
		b.WriteString(" (")
		for i, sub := range t.Dependency.Terms {
			if i > 0 {
				fmt.Fprintf(&b, " %s ", t.Dependency.Combiner)
			}
			b.WriteString(sub.String())
		}
		b.WriteByte(')')
	case len(t.Bag) > 0:
		b.WriteString(" (")
		for i, v := range t.Bag {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(v.String())
		}
		b.WriteByte(')')
	case !t.Threshold.IsNone():
		b.WriteByte(' ')
		b.WriteString(t.Threshold.String())
	}
	return b.String()
}

// compiled is a term bound to a table column.
type compiled struct {
	term   Term
	col    *table.Column
	colIdx int
	// value dtype after the agg level / binning transform, element dtype
	// for list columns.
	vtype     scalar.DType
	threshold scalar.Scalar
	bag       []scalar.Scalar
	bagSet    map[uint64][]scalar.Scalar
	lo, hi    scalar.Scalar
	loF, hiF  float64
	numRange  bool
	needle    string
	block     blockFunc
	sub       *Program
	noop      bool
}

func (c *compiled) transformed() bool {
	return c.term.AggLevel != scalar.AggLevelNone || c.term.Binning.Enabled()
}

// transform applies the agg level then binning to a cell.
func (c *compiled) transform(s scalar.Scalar) scalar.Scalar {
	if c.term.AggLevel != scalar.AggLevelNone {
		if s.DType().IsList() && s.IsValid() {
			out := make([]scalar.Scalar, len(s.List()))
			for i, e := range s.List() {
				out[i], _ = e.AtLevel(c.term.AggLevel)
			}
			elem := scalar.DTypeStr
			if c.term.AggLevel == scalar.AggLevelYear {
				elem = scalar.DTypeInt64
			}
			s = scalar.List(elem, out)
		} else {
			// Cells that cannot be bucketed become error cells.
			s, _ = s.AtLevel(c.term.AggLevel)
		}
	}
	if c.term.Binning.Enabled() {
		s = c.term.Binning.Apply(s)
	}
	return s
}

// match evaluates the operator on an already transformed cell.
func (c *compiled) match(s scalar.Scalar) bool {
	op := c.term.Op
	switch op {
	case OpIsValid:
		return s.IsValid()
	case OpIsNotValid:
		return !s.IsValid()
	case OpIsEmpty:
		return s.IsNull() || s.IsNone() || (s.IsValid() && s.IsEmpty())
	case OpIsNotEmpty:
		return s.IsValid() && !s.IsEmpty()
	case OpIgnoreAll:
		return false
	case OpTopN, OpGroupFilter:
		return true
	}
	if !s.IsValid() {
		return false
	}

	if s.DType().IsList() {
		return c.matchList(s.List())
	}
	switch op {
	case OpIn, OpInAny:
		return c.inBag(s)
	case OpNotIn:
		return !c.inBag(s)
	case OpInAll:
		if len(c.bag) == 0 {
			return false
		}
		for _, b := range c.bag {
			if !scalar.Equal(s, b) {
				return false
			}
		}
		return true
	case OpAllDateRange:
		return true
	}
	if op.IsElement() {
		return c.matchList([]scalar.Scalar{s})
	}
	return c.matchOne(op, s)
}

// matchOne evaluates a scalar-level operator.
func (c *compiled) matchOne(op Op, s scalar.Scalar) bool {
	switch op {
	case OpIsNaN:
		return s.DType().IsFloat() && s.Float64() != s.Float64()
	case OpIsNotNaN:
		return !(s.DType().IsFloat() && s.Float64() != s.Float64())
	case OpIsTrue:
		return s.DType() == scalar.DTypeBool && s.Bool()
	case OpIsFalse:
		return s.DType() == scalar.DTypeBool && !s.Bool()
	case OpBeginsWith:
		return strings.HasPrefix(strings.ToLower(s.String()), c.needle)
	case OpEndsWith:
		return strings.HasSuffix(strings.ToLower(s.String()), c.needle)
	case OpContains:
		return strings.Contains(strings.ToLower(s.String()), c.needle)
	case OpNotContains:
		return !strings.Contains(strings.ToLower(s.String()), c.needle)
	case OpIn, OpInAny:
		return c.inBag(s)
	}
	if op.IsRange() {
		return c.inRange(s)
	}
	return compareOp(op, s, c.threshold)
}

// matchList evaluates list cells. Positive operators need one matching
// element. NotIn needs one element outside the bag; the other negated
// operators (NE, NotContains, EleNotInAny) need no matching element. An
// empty list matches NotIn.
func (c *compiled) matchList(items []scalar.Scalar) bool {
	op := c.term.Op
	switch op {
	case OpIn, OpInAny, OpEleInAny:
		return c.anyInBag(items)
	case OpNotIn:
		if len(items) == 0 {
			return true
		}
		for _, e := range items {
			if e.IsValid() && !c.inBag(e) {
				return true
			}
		}
		return false
	case OpEleNotInAny:
		return !c.anyInBag(items)
	case OpInAll:
		if len(c.bag) == 0 {
			return false
		}
		for _, b := range c.bag {
			found := false
			for _, e := range items {
				if scalar.Equal(e, b) {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		}
		return true
	case OpEleBetween:
		for _, e := range items {
			if !e.IsValid() {
				continue
			}
			if scalar.Compare(e, c.lo) >= 0 && scalar.Compare(e, c.hi) <= 0 {
				return true
			}
		}
		return false
	case OpAllDateRange:
		return true
	}

	base, negate := elementBase(op)
	for _, e := range items {
		if e.IsValid() && c.matchOne(base, e) {
			return !negate
		}
	}
	return negate
}

// elementBase maps an element operator (or a plain operator applied to a
// list) to the scalar operator each element is tested with.
func elementBase(op Op) (Op, bool) {
	switch op {
	case OpEleEQ:
		return OpEQ, false
	case OpEleNE, OpNE:
		return OpEQ, true
	case OpEleContains:
		return OpContains, false
	case OpEleNotContains, OpNotContains:
		return OpContains, true
	case OpEleBeginsWith:
		return OpBeginsWith, false
	case OpEleEndsWith:
		return OpEndsWith, false
	case OpEleIsTrue:
		return OpIsTrue, false
	case OpEleIsFalse:
		return OpIsFalse, false
	case OpEleGT:
		return OpGT, false
	case OpEleGTEQ:
		return OpGTEQ, false
	case OpEleLT:
		return OpLT, false
	case OpEleLTEQ:
		return OpLTEQ, false
	case OpEleBefore:
		return OpBefore, false
	case OpEleAfter:
		return OpAfter, false
	}
	return op, false
}

func (c *compiled) inBag(s scalar.Scalar) bool {
	for _, b := range c.bagSet[scalar.Hash(s)] {
		if scalar.Equal(s, b) {
			return true
		}
	}
	return false
}

func (c *compiled) anyInBag(items []scalar.Scalar) bool {
	for _, e := range items {
		if e.IsValid() && c.inBag(e) {
			return true
		}
	}
	return false
}

// inRange tests lo <= s < hi. Numeric and temporal cells compare as
// float64 so the generic and the prepared path agree at the bounds.
func (c *compiled) inRange(s scalar.Scalar) bool {
	if c.numRange && (s.DType().IsNumeric() || s.DType().IsTemporal()) {
		x := s.Float64()
		return c.loF <= x && x < c.hiF
	}
	return scalar.Compare(s, c.lo) >= 0 && scalar.Compare(s, c.hi) < 0
}

// compareOp applies a comparison operator. Operands of unrelated dtypes
// never match.
func compareOp(op Op, s, threshold scalar.Scalar) bool {
	if !threshold.IsValid() {
		return false
	}
	if s.DType() != threshold.DType() && !(s.DType().IsNumeric() && threshold.DType().IsNumeric()) {
		return false
	}
	c := scalar.Compare(s, threshold)
	switch op {
	case OpLT, OpBefore:
		return c < 0
	case OpLTEQ:
		return c <= 0
	case OpGT, OpAfter:
		return c > 0
	case OpGTEQ:
		return c >= 0
	case OpEQ:
		return c == 0
	case OpNE:
		return c != 0
	}
	return false
}

// conformValue converts a configured operand to the dtype it will be
// compared with. Strings are parsed, numbers are coerced only when the
// conversion is exact.
func conformValue(v scalar.Scalar, dt scalar.DType) (scalar.Scalar, error) {
	switch {
	case !v.IsValid(), v.DType() == dt:
		return v, nil
	case v.DType() == scalar.DTypeStr && dt != scalar.DTypeStr:
		out, err := scalar.FromString(dt, v.Str())
		if err != nil {
			return v, fmt.Errorf("%w: %w", ErrMalformedConfig, err)
		}
		return out, nil
	case v.DType().IsNumeric() && dt.IsNumeric():
		c := v.CoerceNumeric(dt)
		if scalar.Equal(c, v) {
			return c, nil
		}
		// A float literal on a decimal column means its shortest decimal form.
		if dt == scalar.DTypeDecimal && v.DType().IsFloat() && c.IsValid() {
			return c, nil
		}
		return v, nil
	case dt == scalar.DTypeStr:
		return scalar.String(v.String()), nil
	}
	return v, nil
}
