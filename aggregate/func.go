package aggregate

import (
	"fmt"
	"strings"
)

// Func is an aggregate function.
type Func uint8

// Aggregate functions.
const (
	Sum Func = iota
	Count
	Mean
	WeightedMean
	Min
	Max
	DistinctCount
	Any
	First
	Last
	Unique
	Dominant
	Median
	Join
	SumAbs
	SumNotNull
	And
	Or
	PctSumParent
	PctSumGrandTotal
	Custom

	numFuncs
)

var funcNames = [numFuncs]string{
	Sum:              "sum",
	Count:            "count",
	Mean:             "mean",
	WeightedMean:     "weighted mean",
	Min:              "low water mark",
	Max:              "high water mark",
	DistinctCount:    "distinct count",
	Any:              "any",
	First:            "first",
	Last:             "last",
	Unique:           "unique",
	Dominant:         "dominant",
	Median:           "median",
	Join:             "join",
	SumAbs:           "sum abs",
	SumNotNull:       "sum not null",
	And:              "and",
	Or:               "or",
	PctSumParent:     "pct sum parent",
	PctSumGrandTotal: "pct sum grand total",
	Custom:           "custom",
}

var funcAliases = map[string]Func{
	"avg":              Mean,
	"min":              Min,
	"low":              Min,
	"max":              Max,
	"high":             Max,
	"distinct":         DistinctCount,
	"first by index":   First,
	"last by index":    Last,
	"last value":       Last,
	"count distinct":   DistinctCount,
	"percent of sum":   PctSumGrandTotal,
	"pct sum":          PctSumGrandTotal,
	"percent parent":   PctSumParent,
	"mean by weight":   WeightedMean,
	"weighted avg":     WeightedMean,
	"weighted average": WeightedMean,
}

func (f Func) String() string {
	if f < numFuncs {
		return funcNames[f]
	}
	return fmt.Sprintf("func(%d)", uint8(f))
}

// ParseFunc maps an aggregate name to its Func. Underscores read as spaces.
func ParseFunc(name string) (Func, error) {
	n := strings.ToLower(strings.TrimSpace(strings.ReplaceAll(name, "_", " ")))
	if f, ok := funcAliases[n]; ok {
		return f, nil
	}
	for i, s := range funcNames {
		if s == n {
			return Func(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownFunc, name)
}

// IsRelative reports whether f is finalized against another node's sum.
func (f Func) IsRelative() bool {
	return f == PctSumParent || f == PctSumGrandTotal
}
