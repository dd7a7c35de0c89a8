package output

import (
	"strings"

	"github.com/vegasq/cubecat/query"
	"github.com/vegasq/cubecat/scalar"
)

// Group and count columns of grouped frames.
const (
	GroupColumn = "group"
	CountColumn = "count"
	totalLabel  = "Total"
)

// Frame is a block of cells with named columns.
type Frame struct {
	Columns []string
	Rows    [][]scalar.Scalar
}

// Len returns the number of rows.
func (f Frame) Len() int { return len(f.Rows) }

// FromView copies the visible rows [start, end) of v. A flat view yields
// the table columns. A grouped view yields one row per node: its label
// indented by depth, its row count and its aggregates.
func FromView(v *query.View, start, end int) Frame {
	if !v.Grouped() {
		return Frame{Columns: v.Table().Schema().Names(), Rows: v.Rows(start, end)}
	}

	src := v.Tree().Source()
	f := Frame{Columns: []string{GroupColumn, CountColumn}}
	for _, spec := range src.Config().Aggregates {
		f.Columns = append(f.Columns, spec.OutputName())
	}
	for _, n := range v.Nodes(start, end) {
		row := make([]scalar.Scalar, 0, len(f.Columns))
		row = append(row, scalar.String(label(n.Depth, n.Value)), scalar.Int64(int64(n.Count)))
		row = append(row, src.Aggregates(n.ID)...)
		f.Rows = append(f.Rows, row)
	}
	return f
}

func label(depth int, v scalar.Scalar) string {
	if depth == 0 {
		return totalLabel
	}
	return strings.Repeat("  ", depth-1) + v.String()
}
