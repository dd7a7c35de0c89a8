package output

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/vegasq/cubecat/scalar"
)

// CSVFormatter outputs frames as CSV with a header row.
type CSVFormatter struct {
	writer io.Writer
}

// NewCSVFormatter creates a new CSV formatter
func NewCSVFormatter(w io.Writer) *CSVFormatter {
	return &CSVFormatter{writer: w}
}

// SetOutput sets the output writer
func (c *CSVFormatter) SetOutput(w io.Writer) {
	c.writer = w
}

// Format writes f as CSV. Columns keep the frame order.
func (c *CSVFormatter) Format(f Frame) error {
	csvWriter := csv.NewWriter(c.writer)

	if err := csvWriter.Write(f.Columns); err != nil {
		return err
	}
	record := make([]string, len(f.Columns))
	for _, row := range f.Rows {
		for i := range record {
			record[i] = ""
			if i < len(row) {
				record[i] = formatValue(row[i])
			}
		}
		if err := csvWriter.Write(record); err != nil {
			return err
		}
	}

	csvWriter.Flush()
	if err := csvWriter.Error(); err != nil {
		return fmt.Errorf("failed to flush CSV writer: %w", err)
	}
	return nil
}

// formatValue converts a cell to its CSV text. Nulls are empty.
func formatValue(s scalar.Scalar) string {
	switch {
	case s.IsNull() || s.IsNone():
		return ""
	case s.IsError():
		return "#ERROR"
	case s.DType() == scalar.DTypeStr:
		return sanitize(s.Str())
	}
	return s.String()
}

// sanitize guards against CSV injection by prefixing characters that could
// trigger formula execution in spreadsheet applications.
func sanitize(val string) string {
	if len(val) == 0 {
		return val
	}
	switch val[0] {
	case '=', '+', '-', '@', '\t', '\r', '\n', '|':
		return "'" + strings.ReplaceAll(val, "'", "''")
	}
	return val
}
