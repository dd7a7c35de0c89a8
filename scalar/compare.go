package scalar

import (
	"cmp"
	"encoding/binary"
	"math"
	"math/big"

	"github.com/cespare/xxhash/v2"
)

// rank orders scalars by validity: valid values first, then nulls (the
// none sentinel counts as null), then errors.
func rank(s *Scalar) int {
	if s.dtype == DTypeNone && s.status == StatusValid {
		return int(StatusInvalid)
	}
	return int(s.status)
}

// Compare returns -1, 0 or +1 ordering a before, equal to or after b.
//
// The order is total. Invalid and error scalars sort after every valid
// scalar and compare equal among themselves per status. Two numeric scalars
// of different dtypes compare by exact value; other heterogeneous pairs
// compare by dtype tag. Floats place NaN after every number. Strings compare
// with CompareStrings, so only identical strings are equal. Times and
// durations are equal when they round to the same multiple of Epsilon.
func Compare(a, b Scalar) int {
	return compare(&a, &b)
}

func compare(a, b *Scalar) int {
	ra, rb := rank(a), rank(b)
	if ra != rb || ra != 0 {
		return cmp.Compare(ra, rb)
	}
	if a.dtype != b.dtype {
		if a.dtype.IsNumeric() && b.dtype.IsNumeric() {
			return compareNumeric(a, b)
		}
		return cmp.Compare(a.dtype, b.dtype)
	}
	switch dt := a.dtype; {
	case dt.IsSigned(), dt == DTypeDate:
		return cmp.Compare(int64(a.num), int64(b.num))
	case dt.IsInteger(), dt == DTypeBool:
		return cmp.Compare(a.num, b.num)
	case dt.IsFloat():
		return CompareFloat(a.Float64(), b.Float64())
	case dt == DTypeTime, dt == DTypeDuration:
		fa, fb := a.Float64(), b.Float64()
		if math.IsNaN(fa) || math.IsNaN(fb) {
			return CompareFloat(fa, fb)
		}
		return CompareEpsilon(fa, fb)
	case dt == DTypeDecimal:
		return a.dec.Cmp(b.dec)
	case dt == DTypeStr:
		return compareStringBytes(a.strBytes(), b.strBytes())
	case dt.IsList():
		for i := 0; i < len(a.list) && i < len(b.list); i++ {
			if c := compare(&a.list[i], &b.list[i]); c != 0 {
				return c
			}
		}
		return cmp.Compare(len(a.list), len(b.list))
	}
	return 0
}

func compareNumeric(a, b *Scalar) int {
	ai, bi := a.dtype.IsInteger(), b.dtype.IsInteger()
	if ai && bi {
		as, bs := a.dtype.IsSigned(), b.dtype.IsSigned()
		switch {
		case as && bs:
			return cmp.Compare(int64(a.num), int64(b.num))
		case !as && !bs:
			return cmp.Compare(a.num, b.num)
		case as:
			if int64(a.num) < 0 {
				return -1
			}
			return cmp.Compare(a.num, b.num)
		default:
			if int64(b.num) < 0 {
				return 1
			}
			return cmp.Compare(a.num, b.num)
		}
	}
	fa, fb := a.Float64(), b.Float64()
	// Rounding to float64 is monotonic, so distinct floats already order
	// the exact values.
	if fa != fb || math.IsNaN(fa) || math.IsInf(fa, 0) {
		return CompareFloat(fa, fb)
	}
	return exact(a).Cmp(exact(b))
}

// exact returns the value of a finite numeric scalar as a rational.
func exact(s *Scalar) *big.Rat {
	switch {
	case s.dtype.IsSigned():
		return new(big.Rat).SetInt64(int64(s.num))
	case s.dtype.IsInteger():
		return new(big.Rat).SetUint64(s.num)
	case s.dtype == DTypeDecimal:
		return s.dec.shop().Rat()
	}
	return new(big.Rat).SetFloat64(s.Float64())
}

// CompareFloat orders floats with NaN after every number. NaNs are equal to
// each other and -0 equals +0.
func CompareFloat(a, b float64) int {
	an, bn := math.IsNaN(a), math.IsNaN(b)
	switch {
	case an && bn:
		return 0
	case an:
		return 1
	case bn:
		return -1
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// Equal reports whether Compare(a, b) == 0.
func Equal(a, b Scalar) bool { return compare(&a, &b) == 0 }

// Less reports whether a sorts before b.
func Less(a, b Scalar) bool { return compare(&a, &b) < 0 }

// Hash returns a 64-bit hash consistent with Equal: scalars that compare
// equal hash equal. Numbers hash by float64 value, so an int64 2 and a
// float64 2.0 collide on purpose. Times and durations hash by the multiple
// of Epsilon they round to, the same grid Compare uses.
func Hash(s Scalar) uint64 {
	return hash(&s)
}

const (
	hashNull byte = iota + 1
	hashError
	hashNumber
	hashBool
	hashStr
	hashDate
	hashTime
	hashDuration
	hashList
)

func hash(s *Scalar) uint64 {
	var buf [9]byte
	switch rank(s) {
	case int(StatusInvalid):
		buf[0] = hashNull
		return xxhash.Sum64(buf[:1])
	case int(StatusError):
		buf[0] = hashError
		return xxhash.Sum64(buf[:1])
	}
	switch dt := s.dtype; {
	case dt.IsNumeric():
		f := s.Float64()
		switch {
		case math.IsNaN(f):
			f = math.NaN()
		case f == 0:
			f = 0
		}
		buf[0] = hashNumber
		binary.LittleEndian.PutUint64(buf[1:], math.Float64bits(f))
	case dt == DTypeBool:
		buf[0] = hashBool
		binary.LittleEndian.PutUint64(buf[1:], s.num)
	case dt == DTypeDate:
		buf[0] = hashDate
		binary.LittleEndian.PutUint64(buf[1:], s.num)
	case dt == DTypeTime, dt == DTypeDuration:
		buf[0] = hashTime
		if dt == DTypeDuration {
			buf[0] = hashDuration
		}
		binary.LittleEndian.PutUint64(buf[1:], uint64(int64(epsilonUnits(s.Float64()))))
	case dt == DTypeStr:
		d := xxhash.New()
		_, _ = d.Write([]byte{hashStr})
		_, _ = d.Write(s.strBytes())
		return d.Sum64()
	case dt.IsList():
		d := xxhash.New()
		_, _ = d.Write([]byte{hashList, byte(dt)})
		for i := range s.list {
			binary.LittleEndian.PutUint64(buf[1:], hash(&s.list[i]))
			_, _ = d.Write(buf[1:])
		}
		return d.Sum64()
	}
	return xxhash.Sum64(buf[:])
}
