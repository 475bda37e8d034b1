package client

import (
	"errors"

	"github.com/zeusync/replica/internal/core/replication"
	"github.com/zeusync/replica/internal/core/transport"
)

// Client-specific errors
var (
	ErrClientClosed     = errors.New("client is closed")
	ErrAlreadyConnected = transport.ErrAlreadyConnected
	ErrNotAuthenticated = replication.ErrNotAuthenticated
)
