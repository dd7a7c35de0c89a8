package query

import "errors"

var (
	// ErrStepInProgress is returned when a step is requested while another
	// step of the same Context is still running.
	ErrStepInProgress = errors.New("step already in progress")

	// ErrTableChanged is returned when the table was modified while a step
	// was in flight. The step is discarded.
	ErrTableChanged = errors.New("table changed during step")

	// ErrNoView is returned by accessors called before the first commit.
	ErrNoView = errors.New("no committed view")
)
