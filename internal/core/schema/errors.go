package schema

import "errors"

var (
	ErrUnknownProperty   = errors.New("unknown property")
	ErrMalformedValue    = errors.New("malformed property value")
	ErrComponentMismatch = errors.New("component name mismatch")
	ErrDuplicateProperty = errors.New("duplicate property")
)
