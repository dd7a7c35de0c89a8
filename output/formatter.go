// Package output renders committed views as JSON Lines, CSV or an ASCII
// table.
//
// Example usage:
//
//	view, err := qc.View()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer view.Release()
//	formatter := output.NewJSONFormatter(os.Stdout)
//	if err := formatter.Format(output.FromView(view, 0, 100)); err != nil {
//	    log.Fatal(err)
//	}
package output

import (
	"errors"
	"fmt"
	"io"
)

// ErrUnknownFormat is returned by New for an unsupported format name.
var ErrUnknownFormat = errors.New("unknown output format")

// Formatter defines the interface for output formatters.
type Formatter interface {
	// Format writes the frame in the formatter's specific format
	Format(f Frame) error

	// SetOutput changes the output writer
	SetOutput(w io.Writer)
}

// New returns the formatter for name: "json", "csv" or "table".
func New(name string, w io.Writer) (Formatter, error) {
	switch name {
	case "json", "jsonl":
		return NewJSONFormatter(w), nil
	case "csv":
		return NewCSVFormatter(w), nil
	case "table":
		return NewTableFormatter(w), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, name)
}
