package scalar

import (
	"fmt"
	"strings"
)

// DType is the type tag carried by every Scalar and every table column.
type DType uint8

// Data types. The order of the constants is the tag order used when two
// scalars of unrelated types are compared.
const (
	DTypeNone DType = iota
	DTypeInt64
	DTypeInt32
	DTypeInt16
	DTypeInt8
	DTypeUint64
	DTypeUint32
	DTypeUint16
	DTypeUint8
	DTypeFloat64
	DTypeFloat32
	DTypeBool
	DTypeStr
	DTypeDate
	DTypeTime
	DTypeDuration
	DTypeDecimal
	DTypeListStr
	DTypeListBool
	DTypeListInt64
	DTypeListFloat64
	DTypeListDate
	DTypeListTime
	DTypeListDuration
)

var dtypeNames = [...]string{
	DTypeNone:         "none",
	DTypeInt64:        "int64",
	DTypeInt32:        "int32",
	DTypeInt16:        "int16",
	DTypeInt8:         "int8",
	DTypeUint64:       "uint64",
	DTypeUint32:       "uint32",
	DTypeUint16:       "uint16",
	DTypeUint8:        "uint8",
	DTypeFloat64:      "float64",
	DTypeFloat32:      "float32",
	DTypeBool:         "bool",
	DTypeStr:          "str",
	DTypeDate:         "date",
	DTypeTime:         "time",
	DTypeDuration:     "duration",
	DTypeDecimal:      "decimal",
	DTypeListStr:      "list_str",
	DTypeListBool:     "list_bool",
	DTypeListInt64:    "list_int64",
	DTypeListFloat64:  "list_float64",
	DTypeListDate:     "list_date",
	DTypeListTime:     "list_time",
	DTypeListDuration: "list_duration",
}

func (d DType) String() string {
	if int(d) < len(dtypeNames) {
		return dtypeNames[d]
	}
	return fmt.Sprintf("dtype(%d)", uint8(d))
}

// ParseDType maps a dtype name ("int64", "str", "list_date", ...) to its tag.
// "string", "float", "double", "int" and "boolean" are accepted as aliases.
func ParseDType(name string) (DType, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	switch n {
	case "string":
		return DTypeStr, nil
	case "float", "double":
		return DTypeFloat64, nil
	case "int", "integer":
		return DTypeInt64, nil
	case "boolean":
		return DTypeBool, nil
	case "datetime", "timestamp":
		return DTypeTime, nil
	}
	for i, s := range dtypeNames {
		if s == n {
			return DType(i), nil
		}
	}
	return DTypeNone, fmt.Errorf("unknown dtype %q: %w", name, ErrTypeMismatch)
}

// IsInteger reports whether d is one of the fixed-width integer types.
func (d DType) IsInteger() bool {
	return d >= DTypeInt64 && d <= DTypeUint8
}

// IsSigned reports whether d is a signed integer type.
func (d DType) IsSigned() bool {
	return d >= DTypeInt64 && d <= DTypeInt8
}

// IsFloat reports whether d is float32 or float64.
func (d DType) IsFloat() bool {
	return d == DTypeFloat64 || d == DTypeFloat32
}

// IsNumeric reports whether values of d take part in numeric cross-type
// comparison. Decimals are numeric; temporal types are not.
func (d DType) IsNumeric() bool {
	return d.IsInteger() || d.IsFloat() || d == DTypeDecimal
}

// IsTemporal reports whether d is date, time or duration.
func (d DType) IsTemporal() bool {
	return d == DTypeDate || d == DTypeTime || d == DTypeDuration
}

// IsList reports whether d is a list type.
func (d DType) IsList() bool {
	return d >= DTypeListStr && d <= DTypeListDuration
}

// Elem returns the element type of a list type, or d itself.
func (d DType) Elem() DType {
	switch d {
	case DTypeListStr:
		return DTypeStr
	case DTypeListBool:
		return DTypeBool
	case DTypeListInt64:
		return DTypeInt64
	case DTypeListFloat64:
		return DTypeFloat64
	case DTypeListDate:
		return DTypeDate
	case DTypeListTime:
		return DTypeTime
	case DTypeListDuration:
		return DTypeDuration
	}
	return d
}

// ListOf returns the list type whose elements are elem.
func ListOf(elem DType) (DType, bool) {
	switch elem {
	case DTypeStr:
		return DTypeListStr, true
	case DTypeBool:
		return DTypeListBool, true
	case DTypeInt64, DTypeInt32, DTypeInt16, DTypeInt8,
		DTypeUint64, DTypeUint32, DTypeUint16, DTypeUint8:
		return DTypeListInt64, true
	case DTypeFloat64, DTypeFloat32:
		return DTypeListFloat64, true
	case DTypeDate:
		return DTypeListDate, true
	case DTypeTime:
		return DTypeListTime, true
	case DTypeDuration:
		return DTypeListDuration, true
	}
	return DTypeNone, false
}

// Width returns the storage width in bytes of fixed-width types, 0 otherwise.
func (d DType) Width() int {
	switch d {
	case DTypeInt64, DTypeUint64, DTypeFloat64, DTypeTime, DTypeDuration:
		return 8
	case DTypeInt32, DTypeUint32, DTypeFloat32, DTypeDate:
		return 4
	case DTypeInt16, DTypeUint16:
		return 2
	case DTypeInt8, DTypeUint8, DTypeBool:
		return 1
	}
	return 0
}

// Status is the validity state of a scalar, independent of its dtype.
type Status uint8

// Statuses in sort order: valid values come first, then nulls, then errors.
const (
	StatusValid Status = iota
	StatusInvalid
	StatusError

	// NumStatus is the number of distinct statuses.
	NumStatus = 3
)

func (s Status) String() string {
	switch s {
	case StatusValid:
		return "valid"
	case StatusInvalid:
		return "invalid"
	case StatusError:
		return "error"
	}
	return fmt.Sprintf("status(%d)", uint8(s))
}
