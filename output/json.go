package output

import (
	"encoding/json"
	"io"
)

// JSONFormatter outputs frames as JSON Lines format
type JSONFormatter struct {
	writer io.Writer
}

// NewJSONFormatter creates a new JSON Lines formatter
func NewJSONFormatter(w io.Writer) *JSONFormatter {
	return &JSONFormatter{writer: w}
}

// SetOutput sets the output writer
func (j *JSONFormatter) SetOutput(w io.Writer) {
	j.writer = w
}

// Format writes one JSON object per row. Nulls encode as null; dates,
// times, durations and decimals as strings.
func (j *JSONFormatter) Format(f Frame) error {
	encoder := json.NewEncoder(j.writer)
	for _, row := range f.Rows {
		obj := make(map[string]any, len(f.Columns))
		for i, col := range f.Columns {
			if i < len(row) {
				obj[col] = row[i].Interface()
			}
		}
		if err := encoder.Encode(obj); err != nil {
			return err
		}
	}
	return nil
}
