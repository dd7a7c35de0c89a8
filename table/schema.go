package table

import (
	"fmt"

	"github.com/vegasq/cubecat/scalar"
)

// Field is a named, typed column of a schema.
type Field struct {
	Name  string
	DType scalar.DType
}

// Schema is the ordered list of table columns.
type Schema []Field

// Index returns the position of the named column.
func (s Schema) Index(name string) (int, bool) {
	for i, f := range s {
		if f.Name == name {
			return i, true
		}
	}
	return -1, false
}

// Lookup returns the named field or a *SchemaError.
func (s Schema) Lookup(name string) (Field, error) {
	i, ok := s.Index(name)
	if !ok {
		return Field{}, &SchemaError{Column: name}
	}
	return s[i], nil
}

// Names returns the column names in schema order.
func (s Schema) Names() []string {
	names := make([]string, len(s))
	for i, f := range s {
		names[i] = f.Name
	}
	return names
}

func (s Schema) validate() error {
	seen := make(map[string]bool, len(s))
	for _, f := range s {
		if seen[f.Name] {
			return fmt.Errorf("%q: %w", f.Name, ErrDuplicateColumn)
		}
		seen[f.Name] = true
	}
	return nil
}
