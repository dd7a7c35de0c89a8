package scalar

import (
	"cmp"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Epsilon is the resolution, in days, at which times and durations compare.
// It is roughly 86 microseconds.
const Epsilon = 1e-9

const secondsPerDay = 86400

// epochUnix is 1899-12-30T00:00:00Z, the day zero of Date and Time.
const epochUnix int64 = -2209161600

// Date is a calendar date stored as the number of days since 1899-12-30.
// Every date after 1899 is positive.
type Date int32

// NewDate returns the Date for the given calendar day. Out of range months
// and days are normalized the way time.Date normalizes them.
func NewDate(year int, month time.Month, day int) Date {
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	return DateOf(t)
}

// DateOf returns the calendar day of t in t's location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	u := time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix()
	return Date(floorDiv(u-epochUnix, secondsPerDay))
}

// ParseDate parses "2006-01-02", "2006/01/02" or "20060102".
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"2006-01-02", "2006/01/02", "20060102", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return DateOf(t), nil
		}
	}
	return 0, fmt.Errorf("invalid date %q", s)
}

// Time returns midnight UTC of d.
func (d Date) Time() time.Time {
	return time.Unix(epochUnix+int64(d)*secondsPerDay, 0).UTC()
}

// YMD returns the calendar fields of d.
func (d Date) YMD() (year int, month time.Month, day int) {
	return d.Time().Date()
}

// Year returns the calendar year of d.
func (d Date) Year() int { return d.Time().Year() }

// Month returns the calendar month of d.
func (d Date) Month() time.Month { return d.Time().Month() }

// Day returns the day of the month of d.
func (d Date) Day() int { return d.Time().Day() }

// Weekday returns the day of the week of d.
func (d Date) Weekday() time.Weekday {
	// 1899-12-30 was a Saturday.
	return time.Weekday((int64(d)%7 + 7 + 6) % 7)
}

// AddDays returns d shifted by n days.
func (d Date) AddDays(n int) Date { return d + Date(n) }

// AddMonths returns d shifted by n calendar months, normalized like time.AddDate.
func (d Date) AddMonths(n int) Date { return DateOf(d.Time().AddDate(0, n, 0)) }

func (d Date) String() string { return d.Time().Format("2006-01-02") }

// Time is a point in time stored as fractional days since 1899-12-30, so
// 1.0 is 24 hours.
type Time float64

// TimeOf converts t to a Time with millisecond precision.
func TimeOf(t time.Time) Time {
	ms := t.UnixMilli() - epochUnix*1000
	return Time(float64(ms) / (secondsPerDay * 1000))
}

// ParseTime parses an RFC 3339 timestamp or "2006-01-02 15:04:05".
func ParseTime(s string) (Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return TimeOf(t), nil
		}
	}
	return 0, fmt.Errorf("invalid time %q", s)
}

// Std converts v to a UTC time.Time rounded to the millisecond.
func (v Time) Std() time.Time {
	ms := int64(math.Round(float64(v) * secondsPerDay * 1000))
	return time.UnixMilli(ms + epochUnix*1000).UTC()
}

// Date returns the calendar day of v.
func (v Time) Date() Date { return DateOf(v.Std()) }

// Clock returns the hour, minute and second of v.
func (v Time) Clock() (hour, minute, second int) { return v.Std().Clock() }

func (v Time) String() string { return v.Std().Format("2006-01-02 15:04:05") }

// Duration is an elapsed time stored as fractional days.
type Duration float64

// DurationOf converts a time.Duration.
func DurationOf(d time.Duration) Duration {
	return Duration(d.Seconds() / secondsPerDay)
}

// ParseDuration parses "hh:mm:ss", "hh:mm" or a Go duration string such as "1h30m".
func ParseDuration(s string) (Duration, error) {
	s = strings.TrimSpace(s)
	if parts := strings.Split(s, ":"); len(parts) == 2 || len(parts) == 3 {
		neg := strings.HasPrefix(parts[0], "-")
		var total float64
		mult := []float64{3600, 60, 1}
		for i, p := range parts {
			v, err := strconv.ParseFloat(strings.TrimPrefix(p, "-"), 64)
			if err != nil {
				return 0, fmt.Errorf("invalid duration %q", s)
			}
			total += v * mult[i]
		}
		if neg {
			total = -total
		}
		return Duration(total / secondsPerDay), nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	return DurationOf(d), nil
}

// Std converts v to a time.Duration rounded to the millisecond.
func (v Duration) Std() time.Duration {
	return time.Duration(math.Round(float64(v)*secondsPerDay*1000)) * time.Millisecond
}

// Clock splits v into hours, minutes and seconds. Hours are not wrapped at 24.
func (v Duration) Clock() (hours, minutes, seconds int) {
	total := int64(math.Round(math.Abs(float64(v)) * secondsPerDay))
	return int(total / 3600), int(total / 60 % 60), int(total % 60)
}

func (v Duration) String() string {
	h, m, s := v.Clock()
	sign := ""
	if v < 0 {
		sign = "-"
	}
	return fmt.Sprintf("%s%02d:%02d:%02d", sign, h, m, s)
}

// CompareEpsilon orders two day-fraction values by the multiple of Epsilon
// each rounds to. Values in the same grid cell are equal, which keeps the
// relation transitive and in line with Hash.
func CompareEpsilon(a, b float64) int {
	return cmp.Compare(epsilonUnits(a), epsilonUnits(b))
}

func epsilonUnits(v float64) float64 {
	return math.Round(v / Epsilon)
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
