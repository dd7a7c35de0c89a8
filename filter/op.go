package filter

import (
	"fmt"
	"strings"
)

// Op is a filter operator.
type Op uint8

// Filter operators.
const (
	OpLT Op = iota
	OpLTEQ
	OpGT
	OpGTEQ
	OpEQ
	OpNE
	OpBeginsWith
	OpEndsWith
	OpContains
	OpNotContains
	OpIn
	OpNotIn
	OpInAny
	OpInAll
	OpIsNaN
	OpIsNotNaN
	OpIsValid
	OpIsNotValid
	OpIsEmpty
	OpIsNotEmpty
	OpIsTrue
	OpIsFalse
	OpAfter
	OpBefore
	OpBetween
	OpLast7Days
	OpLast10Days
	OpLast30Days
	OpToday
	OpYesterday
	OpThisWeek
	OpLastWeek
	OpThisMonth
	OpLastMonth
	OpThisQuarter
	OpLastQuarter
	OpThisYear
	OpLastYear
	OpYearToDate
	OpAllDateRange
	OpRelativeDate
	OpIgnoreAll
	OpTopN
	OpGroupFilter
	OpEleEQ
	OpEleNE
	OpEleContains
	OpEleNotContains
	OpEleBeginsWith
	OpEleEndsWith
	OpEleInAny
	OpEleNotInAny
	OpEleIsTrue
	OpEleIsFalse
	OpEleGT
	OpEleGTEQ
	OpEleLT
	OpEleLTEQ
	OpEleBefore
	OpEleAfter
	OpEleBetween

	numOps
)

var opNames = [numOps]string{
	OpLT:             "<",
	OpLTEQ:           "<=",
	OpGT:             ">",
	OpGTEQ:           ">=",
	OpEQ:             "==",
	OpNE:             "!=",
	OpBeginsWith:     "begins with",
	OpEndsWith:       "ends with",
	OpContains:       "contains",
	OpNotContains:    "not contains",
	OpIn:             "in",
	OpNotIn:          "not in",
	OpInAny:          "in any",
	OpInAll:          "in all",
	OpIsNaN:          "is nan",
	OpIsNotNaN:       "is not nan",
	OpIsValid:        "is not null",
	OpIsNotValid:     "is null",
	OpIsEmpty:        "is empty",
	OpIsNotEmpty:     "is not empty",
	OpIsTrue:         "is true",
	OpIsFalse:        "is false",
	OpAfter:          "after",
	OpBefore:         "before",
	OpBetween:        "between",
	OpLast7Days:      "last 7 days",
	OpLast10Days:     "last 10 days",
	OpLast30Days:     "last 30 days",
	OpToday:          "today",
	OpYesterday:      "yesterday",
	OpThisWeek:       "this week",
	OpLastWeek:       "last week",
	OpThisMonth:      "this month",
	OpLastMonth:      "last month",
	OpThisQuarter:    "this quarter",
	OpLastQuarter:    "last quarter",
	OpThisYear:       "this year",
	OpLastYear:       "last year",
	OpYearToDate:     "year to date",
	OpAllDateRange:   "all date range",
	OpRelativeDate:   "relative date",
	OpIgnoreAll:      "ignore all",
	OpTopN:           "top n",
	OpGroupFilter:    "group filter",
	OpEleEQ:          "element ==",
	OpEleNE:          "element !=",
	OpEleContains:    "element contains",
	OpEleNotContains: "element not contains",
	OpEleBeginsWith:  "element begins with",
	OpEleEndsWith:    "element ends with",
	OpEleInAny:       "element in any",
	OpEleNotInAny:    "element not in any",
	OpEleIsTrue:      "element is true",
	OpEleIsFalse:     "element is false",
	OpEleGT:          "element >",
	OpEleGTEQ:        "element >=",
	OpEleLT:          "element <",
	OpEleLTEQ:        "element <=",
	OpEleBefore:      "element before",
	OpEleAfter:       "element after",
	OpEleBetween:     "element between",
}

var opAliases = map[string]Op{
	"=":            OpEQ,
	"eq":           OpEQ,
	"ne":           OpNE,
	"<>":           OpNE,
	"lt":           OpLT,
	"lteq":         OpLTEQ,
	"gt":           OpGT,
	"gteq":         OpGTEQ,
	"is valid":     OpIsValid,
	"is not valid": OpIsNotValid,
	"top":          OpTopN,
	"group":        OpGroupFilter,
}

func (o Op) String() string {
	if o < numOps {
		return opNames[o]
	}
	return fmt.Sprintf("op(%d)", uint8(o))
}

// ParseOp maps an operator name (its String form, or a short alias such as
// "eq", "lt", "top") to the operator. Underscores are read as spaces and an
// "ele " or "element " prefix selects the element-wise form.
func ParseOp(name string) (Op, error) {
	n := strings.ToLower(strings.TrimSpace(strings.ReplaceAll(name, "_", " ")))
	for _, prefix := range []string{"element ", "ele "} {
		if rest, ok := strings.CutPrefix(n, prefix); ok {
			if rest == "not in any" {
				return OpEleNotInAny, nil
			}
			base, err := ParseOp(rest)
			if err != nil {
				return 0, &ConfigError{Field: "op", Value: name}
			}
			if op, ok := elementOps[base]; ok {
				return op, nil
			}
			return 0, &ConfigError{Field: "op", Value: name}
		}
	}
	if op, ok := opAliases[n]; ok {
		return op, nil
	}
	for i, s := range opNames {
		if s == n {
			return Op(i), nil
		}
	}
	return 0, &ConfigError{Field: "op", Value: name}
}

var elementOps = map[Op]Op{
	OpEQ:          OpEleEQ,
	OpNE:          OpEleNE,
	OpContains:    OpEleContains,
	OpNotContains: OpEleNotContains,
	OpBeginsWith:  OpEleBeginsWith,
	OpEndsWith:    OpEleEndsWith,
	OpInAny:       OpEleInAny,
	OpIsTrue:      OpEleIsTrue,
	OpIsFalse:     OpEleIsFalse,
	OpGT:          OpEleGT,
	OpGTEQ:        OpEleGTEQ,
	OpLT:          OpEleLT,
	OpLTEQ:        OpEleLTEQ,
	OpBefore:      OpEleBefore,
	OpAfter:       OpEleAfter,
	OpBetween:     OpEleBetween,
}

// IsShortcut reports whether o is a date shortcut resolved to a range.
func (o Op) IsShortcut() bool {
	return o >= OpLast7Days && o <= OpRelativeDate && o != OpAllDateRange
}

// IsRange reports whether o evaluates as a half-open range over its bag.
func (o Op) IsRange() bool {
	return o == OpBetween || o.IsShortcut()
}

// IsElement reports whether o applies element-wise to list values.
func (o Op) IsElement() bool {
	return o >= OpEleEQ && o <= OpEleBetween
}

// Combiner joins the results of several terms.
type Combiner uint8

// Combiners.
const (
	And Combiner = iota
	Or
)

func (c Combiner) String() string {
	if c == Or {
		return "or"
	}
	return "and"
}

// ParseCombiner maps "and" or "or" to a Combiner. The empty string is And.
func ParseCombiner(name string) (Combiner, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "and":
		return And, nil
	case "or":
		return Or, nil
	}
	return And, &ConfigError{Field: "combiner", Value: name}
}
