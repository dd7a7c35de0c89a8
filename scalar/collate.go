package scalar

import (
	"bytes"
	"cmp"
	"unicode/utf8"

	"golang.org/x/text/cases"
)

// Character classes in collation order.
const (
	classControl uint32 = iota
	classSpace
	classPunct
	classAlnum
	classOther
)

var asciiRank = func() [utf8.RuneSelf]uint32 {
	var t [utf8.RuneSelf]uint32
	for c := 0; c < utf8.RuneSelf; c++ {
		b := byte(c)
		var class uint32
		switch {
		case b == ' ' || (b >= '\t' && b <= '\r'):
			class = classSpace
		case b < 0x20 || b == 0x7f:
			class = classControl
		case b >= '0' && b <= '9', b >= 'a' && b <= 'z':
			class = classAlnum
		case b >= 'A' && b <= 'Z':
			class = classAlnum
			b += 'a' - 'A'
		default:
			class = classPunct
		}
		t[c] = class<<24 | uint32(b)
	}
	return t
}()

// Collate compares two strings case-insensitively with control characters
// before whitespace, whitespace before punctuation, punctuation before
// letters and digits, and non-ASCII text last. Strings that differ only in
// case compare equal.
func Collate(a, b string) int {
	return collateBytes([]byte(a), []byte(b))
}

// CompareStrings orders by Collate and breaks collation ties by byte
// order, so only identical strings compare equal.
func CompareStrings(a, b string) int {
	return compareStringBytes([]byte(a), []byte(b))
}

func compareStringBytes(a, b []byte) int {
	if c := collateBytes(a, b); c != 0 {
		return c
	}
	return bytes.Compare(a, b)
}

func collateBytes(a, b []byte) int {
	n := min(len(a), len(b))
	for i := 0; i < n; i++ {
		ca, cb := a[i], b[i]
		if ca >= utf8.RuneSelf || cb >= utf8.RuneSelf {
			return collateRunes(a[i:], b[i:])
		}
		if ra, rb := asciiRank[ca], asciiRank[cb]; ra != rb {
			return cmp.Compare(ra, rb)
		}
	}
	return cmp.Compare(len(a), len(b))
}

func collateRunes(a, b []byte) int {
	// A Caser is stateful, so each comparison uses its own.
	a = cases.Fold().Bytes(a)
	b = cases.Fold().Bytes(b)
	for len(a) > 0 && len(b) > 0 {
		ra, na := utf8.DecodeRune(a)
		rb, nb := utf8.DecodeRune(b)
		if ka, kb := runeRank(ra), runeRank(rb); ka != kb {
			return cmp.Compare(ka, kb)
		}
		a, b = a[na:], b[nb:]
	}
	return cmp.Compare(len(a), len(b))
}

func runeRank(r rune) uint32 {
	if r < utf8.RuneSelf {
		return asciiRank[r]
	}
	return classOther<<24 | uint32(r)
}
