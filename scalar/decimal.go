package scalar

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// maxDecimalExp is the number of fractional digits kept after a division.
const maxDecimalExp = 18

// ErrDivisionByZero is returned by Decimal.Div.
var ErrDivisionByZero = errors.New("decimal division by zero")

// Decimal is a fixed-point number made of an integer part and a fractional
// part holding Exp digits. Conversions to float64 lose precision.
type Decimal struct {
	Int  uint64
	Frac uint64
	Neg  bool
	Exp  uint8
}

// ParseDecimal parses a decimal literal such as "-12.0450".
func ParseDecimal(s string) (Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Decimal{}, fmt.Errorf("invalid decimal %q: %w", s, err)
	}
	return fromShop(d), nil
}

// DecimalFromFloat converts f, keeping at most 18 fractional digits.
func DecimalFromFloat(f float64) Decimal {
	return fromShop(decimal.NewFromFloat(f))
}

func (d Decimal) shop() decimal.Decimal {
	coef := new(big.Int).SetUint64(d.Int)
	if d.Exp > 0 {
		scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(d.Exp)), nil)
		coef.Mul(coef, scale)
		coef.Add(coef, new(big.Int).SetUint64(d.Frac))
	}
	if d.Neg {
		coef.Neg(coef)
	}
	return decimal.NewFromBigInt(coef, -int32(d.Exp))
}

func fromShop(v decimal.Decimal) Decimal {
	if v.Exponent() < -maxDecimalExp {
		v = v.Round(maxDecimalExp)
	}
	neg := v.Sign() < 0
	v = v.Abs()
	whole := v.Truncate(0)
	frac := v.Sub(whole)

	var out Decimal
	out.Neg = neg
	if bi := whole.BigInt(); bi.IsUint64() {
		out.Int = bi.Uint64()
	} else {
		out.Int = ^uint64(0)
	}
	if !frac.IsZero() && frac.Exponent() < 0 {
		exp := -frac.Exponent()
		if exp > maxDecimalExp {
			exp = maxDecimalExp
		}
		out.Exp = uint8(exp)
		out.Frac = frac.Shift(exp).BigInt().Uint64()
	}
	if out.Int == 0 && out.Frac == 0 {
		out.Neg = false
	}
	return out
}

// Add returns d + o.
func (d Decimal) Add(o Decimal) Decimal {
	return fromShop(d.shop().Add(o.shop()))
}

// Cmp returns -1, 0 or +1 as d is less than, equal to or greater than o.
func (d Decimal) Cmp(o Decimal) int {
	return d.shop().Cmp(o.shop())
}

// Div returns d / o rounded to 18 fractional digits.
func (d Decimal) Div(o Decimal) (Decimal, error) {
	den := o.shop()
	if den.IsZero() {
		return Decimal{}, ErrDivisionByZero
	}
	return fromShop(d.shop().DivRound(den, maxDecimalExp)), nil
}

// Float64 returns the nearest float64. Precision loss is expected.
func (d Decimal) Float64() float64 {
	f, _ := d.shop().Float64()
	return f
}

// IsZero reports whether d is zero.
func (d Decimal) IsZero() bool { return d.Int == 0 && d.Frac == 0 }

func (d Decimal) String() string {
	return d.shop().String()
}
