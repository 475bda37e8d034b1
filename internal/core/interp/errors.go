package interp

import "errors"

var (
	// ErrStaleSnapshot rejects a snapshot whose timestamp is not newer than
	// the one already held.
	ErrStaleSnapshot = errors.New("stale snapshot")
	ErrUnknownEasing = errors.New("unknown easing")
)
