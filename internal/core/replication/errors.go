package replication

import "errors"

var ErrNotAuthenticated = errors.New("session is not authenticated")
