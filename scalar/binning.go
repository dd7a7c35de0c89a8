package scalar

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// OtherBin labels values that fall outside every bin.
const OtherBin = "Other/Blank"

// BinningType selects how continuous values are quantized.
type BinningType uint8

// Binning types.
const (
	BinningNone BinningType = iota
	BinningAuto
	BinningCustom
)

// ParseBinningType maps "none", "auto" or "custom" to its value.
func ParseBinningType(name string) (BinningType, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "none":
		return BinningNone, nil
	case "auto":
		return BinningAuto, nil
	case "custom":
		return BinningCustom, nil
	}
	return BinningNone, fmt.Errorf("unknown binning type %q: %w", name, ErrMalformedLevel)
}

// Binning quantizes numeric values into labelled bins of width Size starting
// at Min. Values outside [Min, Max] map to OtherBin.
type Binning struct {
	Type     BinningType
	Min      float64
	Max      float64
	Size     float64
	IsDouble bool
}

// Enabled reports whether b transforms values.
func (b Binning) Enabled() bool { return b.Type != BinningNone }

// Label returns the bin label of s, "begin - end". Custom bins clamp both
// bounds to [Min, Max] and close the upper bound: it is reduced by one, or
// by 0.01 for double bins.
func (b Binning) Label(s Scalar) string {
	if !b.Enabled() {
		return s.String()
	}
	if !s.IsValid() || !(s.dtype.IsInteger() || s.dtype.IsFloat()) || b.Size <= 0 {
		return OtherBin
	}
	v := s.Float64()
	if math.IsNaN(v) || v < b.Min || v > b.Max {
		return OtherBin
	}
	pos := math.Floor((v - b.Min) / b.Size)
	begin := pos*b.Size + b.Min
	end := (pos+1)*b.Size + b.Min
	if b.Type == BinningCustom {
		begin = max(begin, b.Min)
		end = min(end, b.Max)
		if b.Max != end || end-begin == b.Size {
			if b.IsDouble || s.dtype.IsFloat() {
				end -= 0.01
			} else {
				end--
			}
		}
	}
	return formatBound(begin) + " - " + formatBound(end)
}

func formatBound(f float64) string {
	return strconv.FormatFloat(math.Round(f*100)/100, 'f', -1, 64)
}

// Apply replaces s with the string scalar of its bin label. List scalars
// are binned element-wise into a list of labels.
func (b Binning) Apply(s Scalar) Scalar {
	if !b.Enabled() {
		return s
	}
	if s.dtype.IsList() && s.IsValid() {
		out := make([]Scalar, len(s.list))
		for i, e := range s.list {
			out[i] = String(b.Label(e))
		}
		return List(DTypeStr, out)
	}
	return String(b.Label(s))
}
