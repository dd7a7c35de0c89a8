package scalar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDateEpoch(t *testing.T) {
	assert.Equal(t, Date(0), NewDate(1899, time.December, 30))
	assert.Equal(t, Date(2), NewDate(1900, time.January, 1))
	assert.Equal(t, time.Saturday, Date(0).Weekday())
	assert.Equal(t, time.Monday, NewDate(1900, time.January, 1).Weekday())
	assert.Equal(t, time.Wednesday, NewDate(2020, time.January, 15).Weekday())
}

func TestDateRoundTrip(t *testing.T) {
	for _, s := range []string{"2020-03-01", "2019-12-31", "1970-01-01", "2100-02-28"} {
		d, err := ParseDate(s)
		require.NoError(t, err)
		assert.Equal(t, s, d.String())
		assert.Positive(t, int32(d))
	}
	d := NewDate(2020, time.January, 31)
	assert.Equal(t, "2020-03-02", d.AddMonths(1).String())
	assert.Equal(t, "2020-02-29", NewDate(2020, time.March, 29).AddMonths(-1).String())
}

func TestTimeRoundTrip(t *testing.T) {
	want := time.Date(2021, time.June, 3, 14, 5, 9, 250*int(time.Millisecond), time.UTC)
	v := TimeOf(want)
	assert.True(t, want.Equal(v.Std()), "got %s", v.Std())
	assert.Equal(t, NewDate(2021, time.June, 3), v.Date())

	h, m, s := v.Clock()
	assert.Equal(t, []int{14, 5, 9}, []int{h, m, s})
}

func TestDuration(t *testing.T) {
	d, err := ParseDuration("36:30:15")
	require.NoError(t, err)
	assert.Equal(t, "36:30:15", d.String())
	assert.Equal(t, 36*time.Hour+30*time.Minute+15*time.Second, d.Std())

	d, err = ParseDuration("90m")
	require.NoError(t, err)
	assert.InDelta(t, 1.5/24, float64(d), 1e-12)

	_, err = ParseDuration("soon")
	assert.Error(t, err)
}

func TestDecimal(t *testing.T) {
	a, err := ParseDecimal("12.25")
	require.NoError(t, err)
	assert.Equal(t, Decimal{Int: 12, Frac: 25, Exp: 2}, a)

	b, err := ParseDecimal("-0.75")
	require.NoError(t, err)
	assert.True(t, b.Neg)

	assert.Equal(t, "11.5", a.Add(b).String())
	assert.Equal(t, 1, a.Cmp(b))
	assert.Equal(t, 0, a.Cmp(Decimal{Int: 12, Frac: 250, Exp: 3}))

	q, err := a.Div(Decimal{Int: 4})
	require.NoError(t, err)
	assert.Equal(t, "3.0625", q.String())

	_, err = a.Div(Decimal{})
	assert.ErrorIs(t, err, ErrDivisionByZero)

	assert.InDelta(t, 12.25, a.Float64(), 1e-12)
}

func TestDecimalDivisionRounds(t *testing.T) {
	q, err := Decimal{Int: 1}.Div(Decimal{Int: 3})
	require.NoError(t, err)
	assert.Equal(t, uint8(18), q.Exp)
	assert.Equal(t, uint64(333333333333333333), q.Frac)
}
