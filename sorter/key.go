package sorter

import (
	"fmt"
	"strings"
)

// Type is the direction of a sort key.
type Type uint8

// Sort directions. The Abs variants order by absolute value.
const (
	Ascending Type = iota
	Descending
	None
	AscendingAbs
	DescendingAbs
)

var typeNames = []string{"asc", "desc", "none", "asc abs", "desc abs"}

func (t Type) String() string {
	if int(t) < len(typeNames) {
		return typeNames[t]
	}
	return fmt.Sprintf("type(%d)", uint8(t))
}

// IsAbs reports whether t orders by absolute value.
func (t Type) IsAbs() bool { return t == AscendingAbs || t == DescendingAbs }

// IsDescending reports whether t puts larger values first.
func (t Type) IsDescending() bool { return t == Descending || t == DescendingAbs }

// ParseType maps a direction name to a Type. It accepts the String forms
// as well as "ascending", "descending", "asc_abs" and "desc_abs".
func ParseType(name string) (Type, error) {
	n := strings.ToLower(strings.TrimSpace(strings.ReplaceAll(name, "_", " ")))
	switch n {
	case "", "asc", "ascending":
		return Ascending, nil
	case "desc", "descending":
		return Descending, nil
	case "none":
		return None, nil
	case "asc abs", "ascending abs":
		return AscendingAbs, nil
	case "desc abs", "descending abs":
		return DescendingAbs, nil
	}
	return Ascending, fmt.Errorf("%w: %q", ErrUnknownType, name)
}

// LimitType says how Key.Limit is read.
type LimitType uint8

// Limit types.
const (
	Items LimitType = iota
	Percent
)

func (l LimitType) String() string {
	if l == Percent {
		return "percent"
	}
	return "items"
}

// ParseLimitType maps "items" or "percent" to a LimitType.
func ParseLimitType(name string) (LimitType, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "items", "count":
		return Items, nil
	case "percent", "pct", "%":
		return Percent, nil
	}
	return Items, fmt.Errorf("%w: %q", ErrUnknownType, name)
}

// Key is one sort key. A zero Limit means no limit.
type Key struct {
	Column    string
	Type      Type
	Limit     float64
	LimitType LimitType
}

func (k Key) String() string {
	s := k.Column + " " + k.Type.String()
	if k.Limit > 0 {
		s += fmt.Sprintf(" limit %g %s", k.Limit, k.LimitType)
	}
	return s
}

// same reports whether a and b order rows identically.
func same(a, b Key) bool {
	return a.Column == b.Column && a.Type == b.Type
}

// refines reports whether rows tied on key n are also tied on key o, so
// that a previous pass on o cannot change the outcome of a pass on n.
func refines(n, o Key) bool {
	return n.Column == o.Column && (!n.Type.IsAbs() || o.Type.IsAbs())
}

// Primary returns the first key that orders rows.
func Primary(keys []Key) (Key, bool) {
	for _, k := range keys {
		if k.Type != None {
			return k, true
		}
	}
	return Key{}, false
}

// Equal reports whether two sort specs are identical.
func Equal(a, b []Key) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
