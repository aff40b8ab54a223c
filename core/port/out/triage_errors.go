package out

import "errors"

// Repository sentinel errors; adapters return these (possibly wrapped).
var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("duplicate entry")
)
