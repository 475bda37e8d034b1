// Package session holds the client identity issued by the server.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/zeusync/replica/internal/core/observability/log"
	"github.com/zeusync/replica/internal/core/protocol"
)

var ErrInvalidClientID = errors.New("invalid client id in authenticate response")

// Sender sends one request and delivers its response to cb.
type Sender interface {
	Send(msg *protocol.Message, cb protocol.ResponseCallback) error
}

// Credentials are passed to the server as-is.
type Credentials struct {
	UserName string `json:"user_name" yaml:"user_name" env:"USER_NAME"`
	Password string `json:"password" yaml:"password" env:"PASSWORD"`
}

// Session tracks the client id. It reads as protocol.UnauthenticatedUserID
// until an authenticate request succeeds.
type Session struct {
	clientID atomic.Int64
	logger   log.Log
}

func New(logger log.Log) *Session {
	s := &Session{logger: logger.With(log.String("component", "session"))}
	s.clientID.Store(protocol.UnauthenticatedUserID)
	return s
}

func (s *Session) ClientID() int {
	return int(s.clientID.Load())
}

func (s *Session) Authenticated() bool {
	return s.clientID.Load() != protocol.UnauthenticatedUserID
}

// Reset forgets the client id, e.g. after the connection is closed.
func (s *Session) Reset() {
	s.clientID.Store(protocol.UnauthenticatedUserID)
}

// Authenticate sends the credentials and stores the issued client id. done,
// if not nil, receives the id or the failure.
func (s *Session) Authenticate(sender Sender, creds Credentials, done func(clientID int, err error)) error {
	arg, err := json.Marshal(creds)
	if err != nil {
		return fmt.Errorf("encode credentials: %w", err)
	}

	finish := func(id int, err error) {
		if done != nil {
			done(id, err)
		}
	}

	msg := protocol.NewMessage(s.ClientID(), protocol.RequestAuthenticate).WithArg(string(arg))
	return sender.Send(msg, func(resp *protocol.Response, err error) {
		if err != nil {
			s.logger.Warn("Authentication failed",
				log.String("user_name", creds.UserName),
				log.Error(err))
			finish(protocol.UnauthenticatedUserID, err)
			return
		}

		id, parseErr := strconv.Atoi(strings.TrimSpace(resp.Args))
		if parseErr != nil || id == protocol.UnauthenticatedUserID {
			err = fmt.Errorf("%w: %q", ErrInvalidClientID, resp.Args)
			s.logger.Warn("Authentication failed", log.Error(err))
			finish(protocol.UnauthenticatedUserID, err)
			return
		}

		s.clientID.Store(int64(id))
		s.logger.Info("Authenticated",
			log.String("user_name", creds.UserName),
			log.Int("client_id", id))
		finish(id, nil)
	})
}
