package table

import (
	"errors"
	"fmt"
)

var (
	// ErrColumnNotFound is returned when a column name is absent from the schema.
	ErrColumnNotFound = errors.New("column not found")

	// ErrDuplicateColumn is returned when a schema names a column twice.
	ErrDuplicateColumn = errors.New("duplicate column")

	// ErrMissingPrimaryKey is returned when an upserted row has no primary key value.
	ErrMissingPrimaryKey = errors.New("missing primary key")
)

// SchemaError reports a lookup of a column that is not in the schema.
type SchemaError struct {
	Column string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("column %q not found", e.Column)
}

func (e *SchemaError) Unwrap() error {
	return ErrColumnNotFound
}
