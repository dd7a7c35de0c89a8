package pivot

import (
	"fmt"
	"strconv"

	"github.com/cespare/xxhash/v2"

	"github.com/vegasq/cubecat/aggregate"
	"github.com/vegasq/cubecat/scalar"
	"github.com/vegasq/cubecat/sorter"
)

// Level is one pivot column of the tree.
type Level struct {
	Column   string
	AggLevel scalar.AggLevel
	Binning  scalar.Binning

	// Limit keeps the top values of the level inside each parent. Rows of
	// the other values stay in the parent as hidden rows.
	Limit     float64
	LimitType sorter.LimitType
	// SortBy names the aggregate output that ranks values for Limit. The
	// empty string ranks by row count.
	SortBy string
	// Ascending keeps the bottom values instead of the top ones.
	Ascending bool
}

// transform maps a cell to the value it is grouped under.
func (l Level) transform(v scalar.Scalar) scalar.Scalar {
	if l.AggLevel != scalar.AggLevelNone {
		bucket, err := v.AtLevel(l.AggLevel)
		if err != nil {
			return scalar.Error(bucket.DType())
		}
		v = bucket
	}
	return l.Binning.Apply(v)
}

func (l Level) limited() bool { return l.Limit > 0 }

// Config describes a pivot tree.
type Config struct {
	Pivots     []Level
	Aggregates []aggregate.Spec
	// Registry resolves custom aggregates; nil means aggregate.Default.
	Registry *aggregate.Registry
}

// Validate checks the config without a table.
func (c Config) Validate() error {
	for i, l := range c.Pivots {
		if l.Column == "" {
			return fmt.Errorf("pivot level %d: missing column", i)
		}
		if l.limited() && l.SortBy != "" && c.aggregateIndex(l.SortBy) < 0 {
			return fmt.Errorf("pivot level %d: %w: sort by %q", i, ErrUnknownAggregate, l.SortBy)
		}
	}
	for _, s := range c.Aggregates {
		if err := s.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func (c Config) registry() *aggregate.Registry {
	if c.Registry == nil {
		return aggregate.Default
	}
	return c.Registry
}

func (c Config) aggregateIndex(name string) int {
	for i, s := range c.Aggregates {
		if s.OutputName() == name {
			return i
		}
	}
	return -1
}

// limited reports whether any level has a top-N limit. Limited trees are
// rebuilt on every step.
func (c Config) limited() bool {
	for _, l := range c.Pivots {
		if l.limited() {
			return true
		}
	}
	return false
}

func (c Config) relative() bool {
	for _, s := range c.Aggregates {
		if s.Func.IsRelative() {
			return true
		}
	}
	return false
}

// Signature identifies the config. Trees built under different signatures
// cannot be updated into one another.
func (c Config) Signature() uint64 {
	d := xxhash.New()
	for _, l := range c.Pivots {
		d.WriteString("p:" + l.Column + "|" + l.AggLevel.String())
		d.WriteString(fmt.Sprintf("|%d,%g,%g,%g,%t", l.Binning.Type, l.Binning.Min, l.Binning.Max, l.Binning.Size, l.Binning.IsDouble))
		d.WriteString("|" + strconv.FormatFloat(l.Limit, 'g', -1, 64) + l.LimitType.String() + l.SortBy + strconv.FormatBool(l.Ascending) + "\n")
	}
	for _, s := range c.Aggregates {
		d.WriteString("a:" + s.OutputName() + "|" + s.Column + "|" + s.Func.String() + "|" + s.Weight + "|" + s.Custom + "\n")
	}
	return d.Sum64()
}
