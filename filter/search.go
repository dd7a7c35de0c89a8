package filter

import (
	"strings"

	"github.com/vegasq/cubecat/scalar"
	"github.com/vegasq/cubecat/table"
)

// Search is a case-insensitive substring search over a set of columns. A
// row matches when any of the columns contains Text. No columns means every
// column of the table.
type Search struct {
	Columns []string
	Text    string
}

type compiledSearch struct {
	columns []string
	text    string
	idx     []int
	cols    []*table.Column
	// hits[i] flags the vocabulary entries of string column i that contain
	// the text; nil for other columns.
	hits [][]bool
}

func compileSearch(tbl *table.Table, s Search) (*compiledSearch, error) {
	cs := &compiledSearch{columns: s.Columns, text: strings.ToLower(s.Text)}
	names := s.Columns
	if len(names) == 0 {
		names = tbl.Schema().Names()
	}
	for _, name := range names {
		i, ok := tbl.Schema().Index(name)
		if !ok {
			return nil, &table.SchemaError{Column: name}
		}
		col := tbl.ColumnAt(i)
		var hits []bool
		if v := col.Vocab(); v != nil {
			hits = make([]bool, v.Len())
			for id := range hits {
				hits[id] = strings.Contains(strings.ToLower(v.Resolve(uint32(id))), cs.text)
			}
		}
		cs.idx = append(cs.idx, i)
		cs.cols = append(cs.cols, col)
		cs.hits = append(cs.hits, hits)
	}
	return cs, nil
}

func (cs *compiledSearch) contains(s scalar.Scalar) bool {
	return s.IsValid() && strings.Contains(strings.ToLower(s.String()), cs.text)
}

func (cs *compiledSearch) block(first, last int) uint32 {
	var m uint32
	for i, col := range cs.cols {
		status := col.Statuses()
		if hits := cs.hits[i]; hits != nil {
			ids, _ := table.Values[table.VocabID](col)
			for r := first; r < last; r++ {
				if status[r] == scalar.StatusValid && int(ids[r]) < len(hits) && hits[ids[r]] {
					m |= 1 << uint(r-first)
				}
			}
			continue
		}
		for r := first; r < last; r++ {
			if m&(1<<uint(r-first)) == 0 && cs.contains(col.Scalar(uint32(r))) {
				m |= 1 << uint(r-first)
			}
		}
	}
	return m
}

func (cs *compiledSearch) matchRow(row []scalar.Scalar) bool {
	for _, i := range cs.idx {
		if cs.contains(row[i]) {
			return true
		}
	}
	return false
}
