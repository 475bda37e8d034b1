package protocol

import (
	"errors"
	"fmt"
)

// Core protocol errors
var (
	// Framing and decoding

	ErrEmptyFrame        = errors.New("empty frame")
	ErrFrameTooLarge     = errors.New("frame too large")
	ErrInvalidResponse   = errors.New("invalid response")
	ErrInvalidResult     = errors.New("invalid result value")
	ErrInvalidEntityID   = errors.New("invalid entity id")
	ErrEmptyEntityStates = errors.New("no entity states in payload")

	// Request lifecycle

	ErrNotConnected     = errors.New("not connected")
	ErrConnectionClosed = errors.New("connection is closed")
	ErrResponseTimeout  = errors.New("response timeout")
)

// RPCError is a request the server answered with an Error result.
type RPCError struct {
	Request string
	Reason  string
}

func (e *RPCError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("%s: server returned error", e.Request)
	}
	return fmt.Sprintf("%s: server returned error: %s", e.Request, e.Reason)
}

// IsRPCError reports whether err carries a server-side Error result.
func IsRPCError(err error) bool {
	var rpcErr *RPCError
	return errors.As(err, &rpcErr)
}
