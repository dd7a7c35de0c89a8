package scalar

import (
	"math"
	"strconv"
	"strings"
	"unique"
)

// InlineCap is the longest string stored inside the Scalar itself. Longer
// strings are interned.
const InlineCap = 13

// Scalar is a single cell value: a dtype tag, a status and a payload.
//
// Fixed-width payloads live in num as a bit pattern (sign-extended for
// signed integers and dates, IEEE-754 bits for floats, times and durations).
// Strings of up to InlineCap bytes are stored inline; longer strings are
// interned handles. Scalars are values and safe to copy.
type Scalar struct {
	dtype  DType
	status Status
	slen   int8
	inline [InlineCap]byte
	num    uint64
	str    unique.Handle[string]
	dec    Decimal
	list   []Scalar
}

// None returns the none sentinel. It behaves like a null of no type.
func None() Scalar {
	return Scalar{dtype: DTypeNone, status: StatusInvalid}
}

// Null returns an invalid (null) scalar of dtype dt.
func Null(dt DType) Scalar {
	return Scalar{dtype: dt, status: StatusInvalid}
}

// Error returns an error scalar of dtype dt.
func Error(dt DType) Scalar {
	return Scalar{dtype: dt, status: StatusError}
}

func fixed(dt DType, bits uint64) Scalar {
	return Scalar{dtype: dt, num: bits}
}

// Int64 returns a valid int64 scalar.
func Int64(v int64) Scalar { return fixed(DTypeInt64, uint64(v)) }

// Int32 returns a valid int32 scalar.
func Int32(v int32) Scalar { return fixed(DTypeInt32, uint64(int64(v))) }

// Int16 returns a valid int16 scalar.
func Int16(v int16) Scalar { return fixed(DTypeInt16, uint64(int64(v))) }

// Int8 returns a valid int8 scalar.
func Int8(v int8) Scalar { return fixed(DTypeInt8, uint64(int64(v))) }

// Uint64 returns a valid uint64 scalar.
func Uint64(v uint64) Scalar { return fixed(DTypeUint64, v) }

// Uint32 returns a valid uint32 scalar.
func Uint32(v uint32) Scalar { return fixed(DTypeUint32, uint64(v)) }

// Uint16 returns a valid uint16 scalar.
func Uint16(v uint16) Scalar { return fixed(DTypeUint16, uint64(v)) }

// Uint8 returns a valid uint8 scalar.
func Uint8(v uint8) Scalar { return fixed(DTypeUint8, uint64(v)) }

// Float64 returns a valid float64 scalar.
func Float64(v float64) Scalar { return fixed(DTypeFloat64, math.Float64bits(v)) }

// Float32 returns a valid float32 scalar.
func Float32(v float32) Scalar { return fixed(DTypeFloat32, math.Float64bits(float64(v))) }

// Bool returns a valid bool scalar.
func Bool(v bool) Scalar {
	if v {
		return fixed(DTypeBool, 1)
	}
	return fixed(DTypeBool, 0)
}

// DateValue returns a valid date scalar.
func DateValue(d Date) Scalar { return fixed(DTypeDate, uint64(int64(d))) }

// TimeValue returns a valid time scalar.
func TimeValue(t Time) Scalar { return fixed(DTypeTime, math.Float64bits(float64(t))) }

// DurationValue returns a valid duration scalar.
func DurationValue(d Duration) Scalar {
	return fixed(DTypeDuration, math.Float64bits(float64(d)))
}

// DecimalValue returns a valid decimal scalar.
func DecimalValue(d Decimal) Scalar { return Scalar{dtype: DTypeDecimal, dec: d} }

// String returns a valid string scalar. Short strings are kept inline.
func String(v string) Scalar {
	s := Scalar{dtype: DTypeStr}
	if len(v) <= InlineCap {
		s.slen = int8(copy(s.inline[:], v))
		return s
	}
	s.slen = -1
	s.str = unique.Make(v)
	return s
}

// List returns a valid list scalar whose elements have dtype elem. The
// items are copied.
func List(elem DType, items []Scalar) Scalar {
	dt, ok := ListOf(elem)
	if !ok {
		return Error(DTypeNone)
	}
	out := make([]Scalar, len(items))
	copy(out, items)
	return Scalar{dtype: dt, list: out}
}

// WithStatus returns a copy of s carrying status st.
func (s Scalar) WithStatus(st Status) Scalar {
	s.status = st
	return s
}

// DType returns the type tag.
func (s Scalar) DType() DType { return s.dtype }

// Status returns the validity state.
func (s Scalar) Status() Status { return s.status }

// IsValid reports whether s holds a usable value.
func (s Scalar) IsValid() bool { return s.status == StatusValid && s.dtype != DTypeNone }

// IsNull reports whether s is an invalid (null) cell.
func (s Scalar) IsNull() bool { return s.status == StatusInvalid }

// IsError reports whether s is an error cell.
func (s Scalar) IsError() bool { return s.status == StatusError }

// IsNone reports whether s is the none sentinel.
func (s Scalar) IsNone() bool { return s.dtype == DTypeNone }

// Bits returns the raw payload bit pattern of fixed-width scalars.
func (s Scalar) Bits() uint64 { return s.num }

// Int64 converts the payload to int64. Floats truncate toward zero.
func (s Scalar) Int64() int64 {
	switch {
	case s.dtype.IsSigned(), s.dtype == DTypeDate:
		return int64(s.num)
	case s.dtype.IsInteger(), s.dtype == DTypeBool:
		if s.num > math.MaxInt64 {
			return math.MaxInt64
		}
		return int64(s.num)
	case s.dtype.IsFloat(), s.dtype == DTypeTime, s.dtype == DTypeDuration, s.dtype == DTypeDecimal:
		return saturateInt(s.Float64(), math.MinInt64, math.MaxInt64)
	}
	return 0
}

// Float64 converts the payload to float64. Dates yield their day number.
func (s Scalar) Float64() float64 {
	switch {
	case s.dtype.IsSigned(), s.dtype == DTypeDate:
		return float64(int64(s.num))
	case s.dtype.IsInteger(), s.dtype == DTypeBool:
		return float64(s.num)
	case s.dtype.IsFloat(), s.dtype == DTypeTime, s.dtype == DTypeDuration:
		return math.Float64frombits(s.num)
	case s.dtype == DTypeDecimal:
		return s.dec.Float64()
	}
	return math.NaN()
}

// Bool reports whether the payload is non-zero (or a non-empty string or list).
func (s Scalar) Bool() bool {
	switch {
	case s.dtype == DTypeStr:
		return s.Str() != ""
	case s.dtype.IsList():
		return len(s.list) > 0
	case s.dtype == DTypeDecimal:
		return !s.dec.IsZero()
	case s.dtype.IsFloat(), s.dtype == DTypeTime, s.dtype == DTypeDuration:
		return s.Float64() != 0
	}
	return s.num != 0
}

// Str returns the string payload, or "" for non-string scalars.
func (s Scalar) Str() string {
	if s.dtype != DTypeStr {
		return ""
	}
	if s.slen < 0 {
		return s.str.Value()
	}
	return string(s.inline[:s.slen])
}

// strBytes returns the string payload without allocating for inline strings.
func (s *Scalar) strBytes() []byte {
	if s.slen < 0 {
		return []byte(s.str.Value())
	}
	return s.inline[:s.slen]
}

// IsInline reports whether the string payload is stored inline.
func (s Scalar) IsInline() bool { return s.dtype == DTypeStr && s.slen >= 0 }

// Date returns the date payload.
func (s Scalar) Date() Date { return Date(int64(s.num)) }

// Time returns the time payload.
func (s Scalar) Time() Time { return Time(math.Float64frombits(s.num)) }

// Duration returns the duration payload.
func (s Scalar) Duration() Duration { return Duration(math.Float64frombits(s.num)) }

// Decimal returns the decimal payload.
func (s Scalar) Decimal() Decimal { return s.dec }

// List returns the elements of a list scalar. The slice must not be modified.
func (s Scalar) List() []Scalar { return s.list }

// Len returns the number of list elements, or the byte length of a string.
func (s Scalar) Len() int {
	if s.dtype == DTypeStr {
		if s.slen < 0 {
			return len(s.str.Value())
		}
		return int(s.slen)
	}
	return len(s.list)
}

// IsEmpty reports whether s is an empty string or an empty list.
func (s Scalar) IsEmpty() bool {
	return (s.dtype == DTypeStr || s.dtype.IsList()) && s.Len() == 0
}

// Abs returns the absolute value of numeric and duration scalars.
func (s Scalar) Abs() Scalar {
	if !s.IsValid() {
		return s
	}
	switch {
	case s.dtype.IsSigned():
		if v := int64(s.num); v < 0 {
			if v == math.MinInt64 {
				s.num = uint64(math.MaxInt64)
			} else {
				s.num = uint64(-v)
			}
		}
	case s.dtype.IsFloat(), s.dtype == DTypeDuration:
		s.num &^= 1 << 63
	case s.dtype == DTypeDecimal:
		s.dec.Neg = false
	}
	return s
}

// Negate returns -s for numeric and duration scalars; other scalars are
// returned unchanged.
func (s Scalar) Negate() Scalar {
	if !s.IsValid() {
		return s
	}
	switch {
	case s.dtype.IsSigned():
		s.num = uint64(-int64(s.num))
	case s.dtype.IsInteger():
		return Float64(-s.Float64())
	case s.dtype.IsFloat(), s.dtype == DTypeDuration:
		s.num ^= 1 << 63
	case s.dtype == DTypeDecimal:
		if !s.dec.IsZero() {
			s.dec.Neg = !s.dec.Neg
		}
	}
	return s
}

func (s Scalar) String() string {
	switch s.status {
	case StatusInvalid:
		return "null"
	case StatusError:
		return "error"
	}
	switch {
	case s.dtype == DTypeNone:
		return "none"
	case s.dtype.IsSigned():
		return strconv.FormatInt(int64(s.num), 10)
	case s.dtype.IsInteger():
		return strconv.FormatUint(s.num, 10)
	case s.dtype == DTypeFloat32:
		return strconv.FormatFloat(s.Float64(), 'f', -1, 32)
	case s.dtype == DTypeFloat64:
		return strconv.FormatFloat(s.Float64(), 'f', -1, 64)
	case s.dtype == DTypeBool:
		return strconv.FormatBool(s.num != 0)
	case s.dtype == DTypeStr:
		return s.Str()
	case s.dtype == DTypeDate:
		return s.Date().String()
	case s.dtype == DTypeTime:
		return s.Time().String()
	case s.dtype == DTypeDuration:
		return s.Duration().String()
	case s.dtype == DTypeDecimal:
		return s.dec.String()
	case s.dtype.IsList():
		parts := make([]string, len(s.list))
		for i, e := range s.list {
			parts[i] = e.String()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	}
	return ""
}

// Interface returns the payload as a plain Go value, or nil for null,
// error and none scalars.
func (s Scalar) Interface() any {
	if !s.IsValid() {
		return nil
	}
	switch {
	case s.dtype.IsSigned():
		return int64(s.num)
	case s.dtype.IsInteger():
		return s.num
	case s.dtype.IsFloat():
		return s.Float64()
	case s.dtype == DTypeBool:
		return s.num != 0
	case s.dtype == DTypeStr:
		return s.Str()
	case s.dtype.IsList():
		out := make([]any, len(s.list))
		for i, e := range s.list {
			out[i] = e.Interface()
		}
		return out
	}
	return s.String()
}
