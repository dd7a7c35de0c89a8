package scalar

import (
	"fmt"
	"strings"
	"time"
)

// AggLevel coarsens a temporal value before it is compared or grouped.
type AggLevel uint8

// Aggregation levels.
const (
	AggLevelNone AggLevel = iota
	AggLevelYear
	AggLevelQuarter
	AggLevelMonth
	AggLevelWeek
	AggLevelDay
	AggLevelHour
	AggLevelMinute
	AggLevelSecond
	AggLevelDate
)

var aggLevelNames = [...]string{
	AggLevelNone:    "none",
	AggLevelYear:    "year",
	AggLevelQuarter: "quarter",
	AggLevelMonth:   "month",
	AggLevelWeek:    "week",
	AggLevelDay:     "day",
	AggLevelHour:    "hour",
	AggLevelMinute:  "minute",
	AggLevelSecond:  "second",
	AggLevelDate:    "date",
}

func (l AggLevel) String() string {
	if int(l) < len(aggLevelNames) {
		return aggLevelNames[l]
	}
	return fmt.Sprintf("agglevel(%d)", uint8(l))
}

// ParseAggLevel maps a level name to its value. The empty string is AggLevelNone.
func ParseAggLevel(name string) (AggLevel, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	if n == "" {
		return AggLevelNone, nil
	}
	for i, s := range aggLevelNames {
		if s == n {
			return AggLevel(i), nil
		}
	}
	return AggLevelNone, fmt.Errorf("unknown aggregation level %q: %w", name, ErrMalformedLevel)
}

// calendar holds the decomposed fields a level projects from.
type calendar struct {
	date    Date
	t       time.Time
	hasDate bool
	hasTime bool
	hours   int
	minutes int
	seconds int
}

func decompose(s Scalar) (calendar, error) {
	var c calendar
	switch s.dtype {
	case DTypeDate:
		c.date = s.Date()
		c.t = c.date.Time()
		c.hasDate = true
	case DTypeTime:
		c.t = s.Time().Std()
		c.date = DateOf(c.t)
		c.hasDate, c.hasTime = true, true
		c.hours, c.minutes, c.seconds = c.t.Clock()
	case DTypeDuration:
		c.hasTime = true
		c.hours, c.minutes, c.seconds = s.Duration().Clock()
	default:
		return c, fmt.Errorf("%s values have no calendar fields: %w", s.dtype, ErrMalformedLevel)
	}
	return c, nil
}

func (c calendar) check(l AggLevel) error {
	switch l {
	case AggLevelYear, AggLevelQuarter, AggLevelMonth, AggLevelWeek, AggLevelDay, AggLevelDate:
		if !c.hasDate {
			return fmt.Errorf("level %s needs a date: %w", l, ErrMalformedLevel)
		}
	case AggLevelHour, AggLevelMinute, AggLevelSecond:
		if !c.hasTime {
			return fmt.Errorf("level %s needs a time of day: %w", l, ErrMalformedLevel)
		}
	default:
		return fmt.Errorf("level %s: %w", l, ErrMalformedLevel)
	}
	return nil
}

// AggLevelNum projects a temporal scalar onto the numeric bucket of level l:
// the year, the quarter (1-4), the month (0-11), the ISO week, the day of the
// month, the hour, the minute, the second, or the serial day number for
// AggLevelDate.
func AggLevelNum(s Scalar, l AggLevel) (float64, error) {
	c, err := decompose(s)
	if err != nil {
		return 0, err
	}
	if err := c.check(l); err != nil {
		return 0, err
	}
	switch l {
	case AggLevelYear:
		return float64(c.t.Year()), nil
	case AggLevelQuarter:
		return float64((int(c.t.Month())-1)/3 + 1), nil
	case AggLevelMonth:
		return float64(c.t.Month() - 1), nil
	case AggLevelWeek:
		_, w := c.t.ISOWeek()
		return float64(w), nil
	case AggLevelDay:
		return float64(c.t.Day()), nil
	case AggLevelHour:
		return float64(c.hours), nil
	case AggLevelMinute:
		return float64(c.minutes), nil
	case AggLevelSecond:
		return float64(c.seconds), nil
	}
	return float64(c.date), nil
}

// AggLevelStr projects a temporal scalar onto the label of level l, for
// example "2020", "Q1", "January", "Wk 5", "Sunday, January 5", "14",
// "14:05", "14:05:09" or "2020-01-05".
func AggLevelStr(s Scalar, l AggLevel) (string, error) {
	c, err := decompose(s)
	if err != nil {
		return "", err
	}
	if err := c.check(l); err != nil {
		return "", err
	}
	switch l {
	case AggLevelYear:
		return fmt.Sprintf("%d", c.t.Year()), nil
	case AggLevelQuarter:
		return fmt.Sprintf("Q%d", (int(c.t.Month())-1)/3+1), nil
	case AggLevelMonth:
		return c.t.Month().String(), nil
	case AggLevelWeek:
		_, w := c.t.ISOWeek()
		return fmt.Sprintf("Wk %d", w), nil
	case AggLevelDay:
		return fmt.Sprintf("%s, %s %d", c.t.Weekday(), c.t.Month(), c.t.Day()), nil
	case AggLevelHour:
		return fmt.Sprintf("%02d", c.hours), nil
	case AggLevelMinute:
		return fmt.Sprintf("%02d:%02d", c.hours, c.minutes), nil
	case AggLevelSecond:
		return fmt.Sprintf("%02d:%02d:%02d", c.hours, c.minutes, c.seconds), nil
	}
	return c.date.String(), nil
}

// AtLevel returns the bucket of s used for grouping and filtering:
// AggLevelYear yields an int64 year, every other level an interned label.
// Null and error inputs stay null or error under the bucket dtype.
func (s Scalar) AtLevel(l AggLevel) (Scalar, error) {
	if l == AggLevelNone {
		return s, nil
	}
	target := DTypeStr
	if l == AggLevelYear {
		target = DTypeInt64
	}
	if !s.IsValid() {
		if s.status == StatusError {
			return Error(target), nil
		}
		return Null(target), nil
	}
	if l == AggLevelYear {
		v, err := AggLevelNum(s, l)
		if err != nil {
			return Error(target), err
		}
		return Int64(int64(v)), nil
	}
	str, err := AggLevelStr(s, l)
	if err != nil {
		return Error(target), err
	}
	return String(str), nil
}
