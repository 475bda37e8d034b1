package transport

import "errors"

var (
	ErrAlreadyConnected     = errors.New("transport is already connected")
	ErrUnsupportedTransport = errors.New("unsupported transport kind")
)
