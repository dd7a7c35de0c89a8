package output

import (
	"io"

	"github.com/olekukonko/tablewriter"

	"github.com/vegasq/cubecat/scalar"
)

// TableFormatter outputs frames as an aligned ASCII table.
type TableFormatter struct {
	writer io.Writer
}

// NewTableFormatter creates a new ASCII table formatter
func NewTableFormatter(w io.Writer) *TableFormatter {
	return &TableFormatter{writer: w}
}

// SetOutput sets the output writer
func (t *TableFormatter) SetOutput(w io.Writer) {
	t.writer = w
}

// Format renders f. Numeric columns are right aligned.
func (t *TableFormatter) Format(f Frame) error {
	tw := tablewriter.NewWriter(t.writer)
	tw.SetHeader(f.Columns)
	tw.SetAutoFormatHeaders(false)
	tw.SetAutoWrapText(false)
	tw.SetColumnAlignment(alignments(f))

	for _, row := range f.Rows {
		record := make([]string, len(f.Columns))
		for i := range record {
			if i < len(row) {
				record[i] = cellText(row[i])
			}
		}
		tw.Append(record)
	}
	tw.Render()
	return nil
}

func cellText(s scalar.Scalar) string {
	if s.IsNone() {
		return ""
	}
	return s.String()
}

func alignments(f Frame) []int {
	out := make([]int, len(f.Columns))
	for i := range out {
		out[i] = tablewriter.ALIGN_LEFT
		for _, row := range f.Rows {
			if i < len(row) && row[i].IsValid() {
				if row[i].DType().IsNumeric() || row[i].DType() == scalar.DTypeDecimal {
					out[i] = tablewriter.ALIGN_RIGHT
				}
				break
			}
		}
	}
	return out
}
