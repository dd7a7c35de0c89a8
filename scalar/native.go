package scalar

import (
	"fmt"
	"strconv"
	"strings"
)

// Native lists the Go types a Scalar can be built from and read back as.
type Native interface {
	int64 | int32 | int16 | int8 | uint64 | uint32 | uint16 | uint8 |
		float64 | float32 | bool | string | Date | Time | Duration | Decimal
}

// DTypeFor returns the dtype tag matching T.
func DTypeFor[T Native]() DType {
	var zero T
	switch any(zero).(type) {
	case int64:
		return DTypeInt64
	case int32:
		return DTypeInt32
	case int16:
		return DTypeInt16
	case int8:
		return DTypeInt8
	case uint64:
		return DTypeUint64
	case uint32:
		return DTypeUint32
	case uint16:
		return DTypeUint16
	case uint8:
		return DTypeUint8
	case float64:
		return DTypeFloat64
	case float32:
		return DTypeFloat32
	case bool:
		return DTypeBool
	case string:
		return DTypeStr
	case Date:
		return DTypeDate
	case Time:
		return DTypeTime
	case Duration:
		return DTypeDuration
	case Decimal:
		return DTypeDecimal
	}
	return DTypeNone
}

// Of stores v with the dtype tag matching T.
func Of[T Native](v T) Scalar {
	switch x := any(v).(type) {
	case int64:
		return Int64(x)
	case int32:
		return Int32(x)
	case int16:
		return Int16(x)
	case int8:
		return Int8(x)
	case uint64:
		return Uint64(x)
	case uint32:
		return Uint32(x)
	case uint16:
		return Uint16(x)
	case uint8:
		return Uint8(x)
	case float64:
		return Float64(x)
	case float32:
		return Float32(x)
	case bool:
		return Bool(x)
	case string:
		return String(x)
	case Date:
		return DateValue(x)
	case Time:
		return TimeValue(x)
	case Duration:
		return DurationValue(x)
	case Decimal:
		return DecimalValue(x)
	}
	return None()
}

// Get reads s as T. It fails with a *TypeMismatchError unless s holds a T
// or both T and the stored dtype are numeric, in which case the value goes
// through CoerceNumeric.
func Get[T Native](s Scalar) (T, error) {
	var out T
	want := DTypeFor[T]()
	if s.dtype != want {
		if !want.IsNumeric() || !s.dtype.IsNumeric() {
			return out, &TypeMismatchError{Want: want, Got: s.dtype}
		}
		s = s.CoerceNumeric(want)
	}
	switch p := any(&out).(type) {
	case *int64:
		*p = int64(s.num)
	case *int32:
		*p = int32(int64(s.num))
	case *int16:
		*p = int16(int64(s.num))
	case *int8:
		*p = int8(int64(s.num))
	case *uint64:
		*p = s.num
	case *uint32:
		*p = uint32(s.num)
	case *uint16:
		*p = uint16(s.num)
	case *uint8:
		*p = uint8(s.num)
	case *float64:
		*p = s.Float64()
	case *float32:
		*p = float32(s.Float64())
	case *bool:
		*p = s.num != 0
	case *string:
		*p = s.Str()
	case *Date:
		*p = s.Date()
	case *Time:
		*p = s.Time()
	case *Duration:
		*p = s.Duration()
	case *Decimal:
		*p = s.dec
	}
	return out, nil
}

// FromString parses text as a value of dtype dt. The literals "null" and
// "" (for non-string types) produce a null scalar.
func FromString(dt DType, text string) (Scalar, error) {
	t := strings.TrimSpace(text)
	if dt != DTypeStr && (t == "" || strings.EqualFold(t, "null")) {
		return Null(dt), nil
	}
	switch {
	case dt.IsSigned():
		v, err := strconv.ParseInt(t, 10, 64)
		if err != nil {
			f, ferr := strconv.ParseFloat(t, 64)
			if ferr != nil {
				return Error(dt), fmt.Errorf("parse %s %q: %w", dt, text, err)
			}
			return Float64(f).CoerceNumeric(dt), nil
		}
		return Int64(v).CoerceNumeric(dt), nil
	case dt.IsInteger():
		v, err := strconv.ParseUint(t, 10, 64)
		if err != nil {
			return Error(dt), fmt.Errorf("parse %s %q: %w", dt, text, err)
		}
		return Uint64(v).CoerceNumeric(dt), nil
	case dt.IsFloat():
		v, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return Error(dt), fmt.Errorf("parse %s %q: %w", dt, text, err)
		}
		return Float64(v).CoerceNumeric(dt), nil
	case dt == DTypeBool:
		v, err := strconv.ParseBool(t)
		if err != nil {
			return Error(dt), fmt.Errorf("parse %s %q: %w", dt, text, err)
		}
		return Bool(v), nil
	case dt == DTypeStr:
		return String(text), nil
	case dt == DTypeDate:
		d, err := ParseDate(t)
		if err != nil {
			return Error(dt), err
		}
		return DateValue(d), nil
	case dt == DTypeTime:
		v, err := ParseTime(t)
		if err != nil {
			return Error(dt), err
		}
		return TimeValue(v), nil
	case dt == DTypeDuration:
		v, err := ParseDuration(t)
		if err != nil {
			return Error(dt), err
		}
		return DurationValue(v), nil
	case dt == DTypeDecimal:
		v, err := ParseDecimal(t)
		if err != nil {
			return Error(dt), err
		}
		return DecimalValue(v), nil
	case dt.IsList():
		inner := strings.TrimSuffix(strings.TrimPrefix(t, "["), "]")
		var items []Scalar
		if strings.TrimSpace(inner) != "" {
			for _, part := range strings.Split(inner, ",") {
				e, err := FromString(dt.Elem(), strings.TrimSpace(part))
				if err != nil {
					return Error(dt), err
				}
				items = append(items, e)
			}
		}
		return List(dt.Elem(), items), nil
	}
	return Error(dt), &TypeMismatchError{Want: dt, Got: DTypeStr}
}
