package filter

import (
	"strings"
	"time"

	"github.com/vegasq/cubecat/scalar"
)

// ShortcutRange resolves a date shortcut operator to the half-open day
// range [lo, hi) it stands for, relative to today. Weeks start on Monday.
//
// OpRelativeDate reads its unit ("day", "week", "month", "quarter" or
// "year") from bag[0] and a signed count from bag[1]: -3 with "month" is the
// three months up to and including today, 2 with "week" the two weeks
// starting today.
func ShortcutRange(op Op, today scalar.Date, bag []scalar.Scalar) (lo, hi scalar.Date, err error) {
	tomorrow := today + 1
	y, m, _ := today.YMD()
	monthStart := scalar.NewDate(y, m, 1)
	quarterStart := scalar.NewDate(y, time.Month((int(m)-1)/3*3+1), 1)
	yearStart := scalar.NewDate(y, time.January, 1)
	weekStart := today - scalar.Date((int(today.Weekday())+6)%7)

	switch op {
	case OpLast7Days:
		return today - 6, tomorrow, nil
	case OpLast10Days:
		return today - 9, tomorrow, nil
	case OpLast30Days:
		return today - 29, tomorrow, nil
	case OpToday:
		return today, tomorrow, nil
	case OpYesterday:
		return today - 1, today, nil
	case OpThisWeek:
		return weekStart, weekStart + 7, nil
	case OpLastWeek:
		return weekStart - 7, weekStart, nil
	case OpThisMonth:
		return monthStart, monthStart.AddMonths(1), nil
	case OpLastMonth:
		return monthStart.AddMonths(-1), monthStart, nil
	case OpThisQuarter:
		return quarterStart, quarterStart.AddMonths(3), nil
	case OpLastQuarter:
		return quarterStart.AddMonths(-3), quarterStart, nil
	case OpThisYear:
		return yearStart, yearStart.AddMonths(12), nil
	case OpLastYear:
		return yearStart.AddMonths(-12), yearStart, nil
	case OpYearToDate:
		return yearStart, tomorrow, nil
	case OpRelativeDate:
		return relativeRange(today, bag)
	}
	return 0, 0, &ConfigError{Field: "op", Value: op.String()}
}

func relativeRange(today scalar.Date, bag []scalar.Scalar) (scalar.Date, scalar.Date, error) {
	if len(bag) < 2 || !bag[1].IsValid() {
		return 0, 0, &ConfigError{Field: "relative date bag", Value: "needs a unit and a count"}
	}
	unit := strings.ToLower(strings.TrimSuffix(bag[0].String(), "s"))
	n := int(bag[1].Int64())

	shift := func(d scalar.Date, k int) scalar.Date {
		switch unit {
		case "day":
			return d + scalar.Date(k)
		case "week":
			return d + scalar.Date(7*k)
		case "month":
			return d.AddMonths(k)
		case "quarter":
			return d.AddMonths(3 * k)
		}
		return d.AddMonths(12 * k)
	}
	switch unit {
	case "day", "week", "month", "quarter", "year":
	default:
		return 0, 0, &ConfigError{Field: "relative date unit", Value: bag[0].String()}
	}
	if n < 0 {
		return shift(today+1, n), today + 1, nil
	}
	return today, shift(today, n), nil
}
