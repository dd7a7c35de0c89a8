package reader

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/format"
	"github.com/shopspring/decimal"

	"github.com/vegasq/cubecat/scalar"
)

// Field is a parquet leaf column mapped to a table column.
type Field struct {
	Name     string
	DType    scalar.DType
	Repeated bool

	column int
	elem   scalar.DType
	conv   func(parquet.Value) scalar.Scalar
}

// decode turns the values of one row of the column into a cell. Null
// elements inside lists are dropped.
func (f Field) decode(vals []parquet.Value) scalar.Scalar {
	if !f.Repeated {
		if len(vals) == 0 || vals[0].IsNull() {
			return scalar.Null(f.DType)
		}
		return f.conv(vals[0])
	}
	if len(vals) == 0 || (len(vals) == 1 && vals[0].IsNull() && vals[0].DefinitionLevel() == 0) {
		return scalar.Null(f.DType)
	}
	items := make([]scalar.Scalar, 0, len(vals))
	for _, v := range vals {
		if v.IsNull() {
			continue
		}
		items = append(items, listItem(f.conv(v), f.DType.Elem()))
	}
	return scalar.List(f.elem, items)
}

// listItem widens s to the element type of its list.
func listItem(s scalar.Scalar, elem scalar.DType) scalar.Scalar {
	switch {
	case s.DType() == elem || !s.IsValid():
		return s
	case s.DType() == scalar.DTypeDecimal:
		return scalar.Float64(s.Decimal().Float64())
	case elem.IsNumeric():
		return s.CoerceNumeric(elem)
	}
	return s
}

func mapSchema(s *parquet.Schema) ([]Field, error) {
	var fields []Field
	seen := make(map[string]bool)
	for _, path := range s.Columns() {
		leaf, ok := s.Lookup(path...)
		if !ok {
			return nil, fmt.Errorf("column %s not found", strings.Join(path, "."))
		}
		dt, conv := converter(leaf.Node)
		f := Field{
			Name:     columnName(path),
			DType:    dt,
			Repeated: leaf.MaxRepetitionLevel > 0,
			column:   leaf.ColumnIndex,
			elem:     dt,
			conv:     conv,
		}
		if f.Repeated {
			if dt == scalar.DTypeDecimal {
				f.elem = scalar.DTypeFloat64
			}
			if f.DType, ok = scalar.ListOf(f.elem); !ok {
				return nil, fmt.Errorf("column %s: no list type for %s", f.Name, dt)
			}
		}
		if seen[f.Name] {
			return nil, fmt.Errorf("column %s: duplicate name", f.Name)
		}
		seen[f.Name] = true
		fields = append(fields, f)
	}
	return fields, nil
}

// columnName joins a leaf path with dots and drops the wrapper groups of
// the LIST encoding, so "tags.list.element" becomes "tags".
func columnName(path []string) string {
	parts := make([]string, 0, len(path))
	for i := 0; i < len(path); i++ {
		if i > 0 && i+1 < len(path) && path[i] == "list" && (path[i+1] == "element" || path[i+1] == "item") {
			i++
			continue
		}
		parts = append(parts, path[i])
	}
	return strings.Join(parts, ".")
}

// converter returns the column type of a leaf node and the function that
// decodes its non-null values.
func converter(node parquet.Node) (scalar.DType, func(parquet.Value) scalar.Scalar) {
	typ := node.Type()
	kind := typ.Kind()
	lt := typ.LogicalType()

	switch {
	case lt == nil:
	case lt.Date != nil:
		return scalar.DTypeDate, func(v parquet.Value) scalar.Scalar {
			return scalar.DateValue(scalar.DateOf(time.Unix(int64(v.Int32())*86400, 0).UTC()))
		}
	case lt.Timestamp != nil:
		unit := unitOf(lt.Timestamp.Unit)
		return scalar.DTypeTime, func(v parquet.Value) scalar.Scalar {
			return scalar.TimeValue(scalar.TimeOf(instant(v.Int64(), unit)))
		}
	case lt.Time != nil:
		unit := unitOf(lt.Time.Unit)
		return scalar.DTypeDuration, func(v parquet.Value) scalar.Scalar {
			n := v.Int64()
			if kind == parquet.Int32 {
				n = int64(v.Int32())
			}
			return scalar.DurationValue(scalar.DurationOf(time.Duration(n) * unit))
		}
	case lt.Decimal != nil:
		scale := lt.Decimal.Scale
		return scalar.DTypeDecimal, func(v parquet.Value) scalar.Scalar {
			return decimalValue(unscaled(v, kind), scale)
		}
	case lt.Integer != nil:
		return integer(int(lt.Integer.BitWidth), lt.Integer.IsSigned)
	case lt.UUID != nil:
		return scalar.DTypeStr, func(v parquet.Value) scalar.Scalar {
			id, err := uuid.FromBytes(v.ByteArray())
			if err != nil {
				return scalar.Error(scalar.DTypeStr)
			}
			return scalar.String(id.String())
		}
	}

	switch kind {
	case parquet.Boolean:
		return scalar.DTypeBool, func(v parquet.Value) scalar.Scalar { return scalar.Bool(v.Boolean()) }
	case parquet.Int32:
		return scalar.DTypeInt32, func(v parquet.Value) scalar.Scalar { return scalar.Int32(v.Int32()) }
	case parquet.Int64:
		return scalar.DTypeInt64, func(v parquet.Value) scalar.Scalar { return scalar.Int64(v.Int64()) }
	case parquet.Int96:
		return scalar.DTypeTime, int96Time
	case parquet.Float:
		return scalar.DTypeFloat32, func(v parquet.Value) scalar.Scalar { return scalar.Float32(v.Float()) }
	case parquet.Double:
		return scalar.DTypeFloat64, func(v parquet.Value) scalar.Scalar { return scalar.Float64(v.Double()) }
	case parquet.FixedLenByteArray:
		return scalar.DTypeStr, func(v parquet.Value) scalar.Scalar { return scalar.String(hex.EncodeToString(v.ByteArray())) }
	}
	return scalar.DTypeStr, func(v parquet.Value) scalar.Scalar { return scalar.String(string(v.ByteArray())) }
}

func integer(bits int, signed bool) (scalar.DType, func(parquet.Value) scalar.Scalar) {
	switch {
	case signed && bits == 8:
		return scalar.DTypeInt8, func(v parquet.Value) scalar.Scalar { return scalar.Int8(int8(v.Int32())) }
	case signed && bits == 16:
		return scalar.DTypeInt16, func(v parquet.Value) scalar.Scalar { return scalar.Int16(int16(v.Int32())) }
	case signed && bits == 32:
		return scalar.DTypeInt32, func(v parquet.Value) scalar.Scalar { return scalar.Int32(v.Int32()) }
	case signed:
		return scalar.DTypeInt64, func(v parquet.Value) scalar.Scalar { return scalar.Int64(v.Int64()) }
	case bits == 8:
		return scalar.DTypeUint8, func(v parquet.Value) scalar.Scalar { return scalar.Uint8(uint8(v.Int32())) }
	case bits == 16:
		return scalar.DTypeUint16, func(v parquet.Value) scalar.Scalar { return scalar.Uint16(uint16(v.Int32())) }
	case bits == 32:
		return scalar.DTypeUint32, func(v parquet.Value) scalar.Scalar { return scalar.Uint32(uint32(v.Int32())) }
	}
	return scalar.DTypeUint64, func(v parquet.Value) scalar.Scalar { return scalar.Uint64(uint64(v.Int64())) }
}

func instant(n int64, unit time.Duration) time.Time {
	switch unit {
	case time.Millisecond:
		return time.UnixMilli(n).UTC()
	case time.Microsecond:
		return time.UnixMicro(n).UTC()
	}
	return time.Unix(0, n).UTC()
}

func unitOf(u format.TimeUnit) time.Duration {
	switch {
	case u.Millis != nil:
		return time.Millisecond
	case u.Micros != nil:
		return time.Microsecond
	}
	return time.Nanosecond
}

// unscaled returns the unscaled integer of a decimal value. Byte arrays
// hold a big-endian two's complement number.
func unscaled(v parquet.Value, kind parquet.Kind) *big.Int {
	switch kind {
	case parquet.Int32:
		return big.NewInt(int64(v.Int32()))
	case parquet.Int64:
		return big.NewInt(v.Int64())
	}
	b := v.ByteArray()
	n := new(big.Int).SetBytes(b)
	if len(b) > 0 && b[0]&0x80 != 0 {
		n.Sub(n, new(big.Int).Lsh(big.NewInt(1), uint(len(b))*8))
	}
	return n
}

func decimalValue(n *big.Int, scale int32) scalar.Scalar {
	d, err := scalar.ParseDecimal(decimal.NewFromBigInt(n, -scale).String())
	if err != nil {
		return scalar.Error(scalar.DTypeDecimal)
	}
	return scalar.DecimalValue(d)
}

// julianUnixEpoch is the Julian day number of 1970-01-01.
const julianUnixEpoch = 2440588

// int96Time decodes the legacy INT96 timestamp: nanoseconds of the day
// followed by the Julian day.
func int96Time(v parquet.Value) scalar.Scalar {
	i := v.Int96()
	nanos := int64(uint64(i[1])<<32 | uint64(i[0]))
	day := int64(i[2])
	t := time.Unix((day-julianUnixEpoch)*86400, nanos).UTC()
	return scalar.TimeValue(scalar.TimeOf(t))
}

// SchemaInfo represents metadata about a single column in a Parquet file.
type SchemaInfo struct {
	Name         string `json:"name"`
	Type         string `json:"type"`
	PhysicalType string `json:"physical_type"`
	LogicalType  string `json:"logical_type"`
	Required     bool   `json:"required"`
	Optional     bool   `json:"optional"`
	Repeated     bool   `json:"repeated"`
}

// ExtractSchemaInfo describes the columns of a parquet file. Type is the
// column type the file loads as; nested fields use dot notation.
func ExtractSchemaInfo(path string) ([]SchemaInfo, error) {
	r, err := NewReader(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet file: %w", err)
	}
	defer func() { _ = r.Close() }()

	schema := r.Schema()
	infos := make([]SchemaInfo, 0, len(r.fields))
	for i, path := range schema.Columns() {
		leaf, _ := schema.Lookup(path...)
		f := r.fields[i]
		infos = append(infos, SchemaInfo{
			Name:         f.Name,
			Type:         f.DType.String(),
			PhysicalType: physicalType(leaf.Node),
			LogicalType:  logicalType(leaf.Node),
			Required:     leaf.MaxDefinitionLevel == 0,
			Optional:     leaf.Node.Optional(),
			Repeated:     f.Repeated,
		})
	}
	return infos, nil
}

func physicalType(node parquet.Node) string {
	switch node.Type().Kind() {
	case parquet.Boolean:
		return "BOOLEAN"
	case parquet.Int32:
		return "INT32"
	case parquet.Int64:
		return "INT64"
	case parquet.Int96:
		return "INT96"
	case parquet.Float:
		return "FLOAT"
	case parquet.Double:
		return "DOUBLE"
	case parquet.ByteArray:
		return "BYTE_ARRAY"
	case parquet.FixedLenByteArray:
		return "FIXED_LEN_BYTE_ARRAY"
	default:
		return "UNKNOWN"
	}
}

func logicalType(node parquet.Node) string {
	lt := node.Type().LogicalType()
	if lt == nil {
		return ""
	}
	return lt.String()
}
