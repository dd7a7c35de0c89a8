package scalar

import "math"

// CoerceNumeric converts a numeric scalar to the numeric dtype target.
// Integer narrowing saturates at the target bounds, float to integer
// truncates toward zero and saturates (NaN becomes zero), and negative
// values become zero for unsigned targets. Null and error scalars keep their
// status under the new tag. Non-numeric input yields an error scalar.
func (s Scalar) CoerceNumeric(target DType) Scalar {
	if s.dtype == target {
		return s
	}
	if !target.IsNumeric() {
		return Error(target)
	}
	if s.status != StatusValid {
		return Scalar{dtype: target, status: s.status}
	}
	if !s.dtype.IsNumeric() && s.dtype != DTypeBool {
		return Error(target)
	}

	switch {
	case target.IsSigned():
		lo, hi := signedRange(target)
		switch {
		case s.dtype.IsSigned():
			v := int64(s.num)
			return fixed(target, uint64(clampInt(v, lo, hi)))
		case s.dtype.IsInteger(), s.dtype == DTypeBool:
			if s.num > uint64(hi) {
				return fixed(target, uint64(hi))
			}
			return fixed(target, s.num)
		default:
			return fixed(target, uint64(saturateInt(s.Float64(), lo, hi)))
		}
	case target.IsInteger():
		hi := unsignedMax(target)
		switch {
		case s.dtype.IsSigned():
			v := int64(s.num)
			if v < 0 {
				return fixed(target, 0)
			}
			return fixed(target, min(uint64(v), hi))
		case s.dtype.IsInteger(), s.dtype == DTypeBool:
			return fixed(target, min(s.num, hi))
		default:
			return fixed(target, saturateUint(s.Float64(), hi))
		}
	case target == DTypeFloat64:
		return Float64(s.Float64())
	case target == DTypeFloat32:
		f := s.Float64()
		switch {
		case f > math.MaxFloat32:
			f = math.MaxFloat32
		case f < -math.MaxFloat32:
			f = -math.MaxFloat32
		}
		return Float32(float32(f))
	case target == DTypeDecimal:
		switch {
		case s.dtype.IsSigned():
			v := int64(s.num)
			if v < 0 {
				return DecimalValue(Decimal{Int: uint64(-v), Neg: true})
			}
			return DecimalValue(Decimal{Int: uint64(v)})
		case s.dtype.IsInteger(), s.dtype == DTypeBool:
			return DecimalValue(Decimal{Int: s.num})
		default:
			f := s.Float64()
			if math.IsNaN(f) || math.IsInf(f, 0) {
				return Error(target)
			}
			return DecimalValue(DecimalFromFloat(f))
		}
	}
	return Error(target)
}

func signedRange(dt DType) (int64, int64) {
	switch dt {
	case DTypeInt8:
		return math.MinInt8, math.MaxInt8
	case DTypeInt16:
		return math.MinInt16, math.MaxInt16
	case DTypeInt32:
		return math.MinInt32, math.MaxInt32
	}
	return math.MinInt64, math.MaxInt64
}

func unsignedMax(dt DType) uint64 {
	switch dt {
	case DTypeUint8:
		return math.MaxUint8
	case DTypeUint16:
		return math.MaxUint16
	case DTypeUint32:
		return math.MaxUint32
	}
	return math.MaxUint64
}

func clampInt(v, lo, hi int64) int64 {
	return max(lo, min(v, hi))
}

func saturateInt(f float64, lo, hi int64) int64 {
	switch {
	case math.IsNaN(f):
		return 0
	case f <= float64(lo):
		return lo
	case f >= float64(hi):
		return hi
	}
	return int64(f)
}

func saturateUint(f float64, hi uint64) uint64 {
	switch {
	case math.IsNaN(f), f <= 0:
		return 0
	case f >= float64(hi):
		return hi
	}
	return uint64(f)
}
