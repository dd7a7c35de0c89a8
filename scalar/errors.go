package scalar

import (
	"errors"
	"fmt"
)

var (
	// ErrTypeMismatch is returned when a scalar is read as a type it does not
	// hold and no numeric coercion applies.
	ErrTypeMismatch = errors.New("type mismatch")

	// ErrMalformedLevel is returned for aggregation levels or binning specs
	// that cannot apply to a value.
	ErrMalformedLevel = errors.New("malformed aggregation level")
)

// TypeMismatchError records the requested and the stored dtype.
type TypeMismatchError struct {
	Want DType
	Got  DType
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("type mismatch: want %s, got %s", e.Want, e.Got)
}

func (e *TypeMismatchError) Unwrap() error {
	return ErrTypeMismatch
}
