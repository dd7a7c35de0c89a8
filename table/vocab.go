package table

import "slices"

// Vocab interns the distinct strings of one column. Ids are dense and
// assigned in first-seen order.
type Vocab struct {
	ids  map[string]uint32
	strs []string
}

// NewVocab returns an empty vocabulary.
func NewVocab() *Vocab {
	return &Vocab{ids: make(map[string]uint32)}
}

// Intern returns the id of s, adding it if needed.
func (v *Vocab) Intern(s string) uint32 {
	if id, ok := v.ids[s]; ok {
		return id
	}
	id := uint32(len(v.strs))
	v.ids[s] = id
	v.strs = append(v.strs, s)
	return id
}

// Resolve returns the string for id. It panics on ids never handed out.
func (v *Vocab) Resolve(id uint32) string {
	return v.strs[id]
}

// Lookup returns the id of s without interning it.
func (v *Vocab) Lookup(s string) (uint32, bool) {
	id, ok := v.ids[s]
	return id, ok
}

// Len returns the number of distinct strings.
func (v *Vocab) Len() int {
	return len(v.strs)
}

// Sorted returns the ids of v ordered by cmp. Ties keep id order.
func (v *Vocab) Sorted(cmp func(a, b string) int) []uint32 {
	ids := make([]uint32, len(v.strs))
	for i := range ids {
		ids[i] = uint32(i)
	}
	slices.SortStableFunc(ids, func(a, b uint32) int {
		return cmp(v.strs[a], v.strs[b])
	})
	return ids
}
