package pivot

import "errors"

var (
	// ErrUnknownAggregate is returned when a level ranks its values by an
	// aggregate the config does not define.
	ErrUnknownAggregate = errors.New("unknown aggregate")

	// ErrStaleStage is returned by Commit when another stage was committed
	// after the stage was built.
	ErrStaleStage = errors.New("pivot stage is stale")
)
