package scalar

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStringInline(t *testing.T) {
	short := String("hello")
	assert.True(t, short.IsInline())
	assert.Equal(t, "hello", short.Str())

	edge := String(strings.Repeat("x", InlineCap))
	assert.True(t, edge.IsInline())

	long := String(strings.Repeat("y", InlineCap+1))
	assert.False(t, long.IsInline())
	assert.Equal(t, strings.Repeat("y", InlineCap+1), long.Str())
	assert.Equal(t, InlineCap+1, long.Len())

	assert.True(t, Equal(long, String(strings.Repeat("y", InlineCap+1))))
}

func TestGetMatchingType(t *testing.T) {
	v, err := Get[int64](Int64(-7))
	require.NoError(t, err)
	assert.Equal(t, int64(-7), v)

	s, err := Get[string](String("abc"))
	require.NoError(t, err)
	assert.Equal(t, "abc", s)

	d, err := Get[Date](DateValue(NewDate(2020, 1, 15)))
	require.NoError(t, err)
	assert.Equal(t, NewDate(2020, 1, 15), d)
}

func TestGetNumericCoercion(t *testing.T) {
	f, err := Get[float64](Int32(3))
	require.NoError(t, err)
	assert.Equal(t, 3.0, f)

	i, err := Get[int8](Int64(1000))
	require.NoError(t, err)
	assert.Equal(t, int8(math.MaxInt8), i)
}

func TestGetTypeMismatch(t *testing.T) {
	_, err := Get[string](Int64(1))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTypeMismatch))

	var tm *TypeMismatchError
	require.ErrorAs(t, err, &tm)
	assert.Equal(t, DTypeStr, tm.Want)
	assert.Equal(t, DTypeInt64, tm.Got)

	_, err = Get[Date](Int64(1))
	assert.ErrorIs(t, err, ErrTypeMismatch)
}

func TestOfRoundTrip(t *testing.T) {
	assert.Equal(t, DTypeUint16, Of[uint16](9).DType())
	assert.Equal(t, DTypeDuration, Of(Duration(0.5)).DType())
	assert.Equal(t, "true", Of(true).String())
}

func TestCoerceNumeric(t *testing.T) {
	tests := []struct {
		name   string
		in     Scalar
		target DType
		want   Scalar
	}{
		{"narrow saturates high", Int64(300), DTypeInt8, Int8(127)},
		{"narrow saturates low", Int64(-300), DTypeInt8, Int8(-128)},
		{"negative to unsigned", Int64(-5), DTypeUint32, Uint32(0)},
		{"float truncates", Float64(-2.9), DTypeInt64, Int64(-2)},
		{"nan to zero", Float64(math.NaN()), DTypeInt32, Int32(0)},
		{"unsigned overflow", Uint64(math.MaxUint64), DTypeInt64, Int64(math.MaxInt64)},
		{"int to float", Int16(12), DTypeFloat64, Float64(12)},
		{"to decimal", Int64(-4), DTypeDecimal, DecimalValue(Decimal{Int: 4, Neg: true})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.in.CoerceNumeric(tt.target)
			assert.Equal(t, tt.target, got.DType())
			assert.Equal(t, 0, Compare(got, tt.want), "got %s want %s", got, tt.want)
		})
	}
}

func TestCoerceKeepsStatus(t *testing.T) {
	got := Null(DTypeInt8).CoerceNumeric(DTypeFloat64)
	assert.True(t, got.IsNull())
	assert.Equal(t, DTypeFloat64, got.DType())

	got = String("x").CoerceNumeric(DTypeInt64)
	assert.True(t, got.IsError())
}

func TestFromString(t *testing.T) {
	s, err := FromString(DTypeDate, "2020-03-01")
	require.NoError(t, err)
	assert.Equal(t, "2020-03-01", s.String())

	s, err = FromString(DTypeInt64, "null")
	require.NoError(t, err)
	assert.True(t, s.IsNull())

	s, err = FromString(DTypeListInt64, "[1, 2, 3]")
	require.NoError(t, err)
	assert.Len(t, s.List(), 3)

	_, err = FromString(DTypeBool, "maybe")
	assert.Error(t, err)
}

func TestAbsAndNegate(t *testing.T) {
	assert.Equal(t, int64(5), Int64(-5).Abs().Int64())
	assert.Equal(t, 2.5, Float64(-2.5).Abs().Float64())
	assert.Equal(t, -3.0, Float64(3).Negate().Float64())
	assert.Equal(t, "-1.5", DecimalValue(Decimal{Int: 1, Frac: 5, Exp: 1}).Negate().String())
}
