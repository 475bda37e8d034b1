package entity

import "errors"

var (
	ErrNilEntityID        = errors.New("nil entity id")
	ErrDuplicateEntity    = errors.New("entity already registered")
	ErrStaleState         = errors.New("stale entity state")
	ErrUnknownComponent   = errors.New("unknown component")
	ErrDuplicateComponent = errors.New("duplicate component")
)
