package sorter

import "errors"

// ErrUnknownType is returned for unrecognized sort direction or limit type
// names.
var ErrUnknownType = errors.New("unknown sort type")
