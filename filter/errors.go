package filter

import (
	"errors"
	"fmt"
)

// ErrMalformedConfig is returned for unknown operators and for terms whose
// operands do not fit their operator.
var ErrMalformedConfig = errors.New("malformed filter configuration")

// ConfigError names the offending field of a filter term.
type ConfigError struct {
	Field string
	Value string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid filter %s %q", e.Field, e.Value)
}

func (e *ConfigError) Unwrap() error {
	return ErrMalformedConfig
}
