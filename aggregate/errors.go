package aggregate

import "errors"

var (
	// ErrUnknownFunc is returned for aggregate names that are neither
	// built in nor registered.
	ErrUnknownFunc = errors.New("unknown aggregate function")

	// ErrDuplicateCustom is returned when a custom aggregate name is
	// registered twice.
	ErrDuplicateCustom = errors.New("custom aggregate already registered")
)
