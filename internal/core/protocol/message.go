// Package protocol defines the wire messages exchanged with the replication
// server: newline-terminated JSON frames carrying requests, responses and
// entity state payloads.
package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Request names understood by the server.
const (
	RequestAuthenticate       = "authenticate"
	RequestRegisterEntity     = "register_entity"
	RequestUpdateEntityStates = "update_entity_states"

	// PushReplicateEntityStates tags unsolicited state broadcasts. They never
	// answer a request.
	PushReplicateEntityStates = "replicate_entity_states"
)

// UnauthenticatedUserID is sent as the user id until authentication succeeds.
const UnauthenticatedUserID = -1

// Message is a client to server request.
type Message struct {
	UserID  int     `json:"id"`
	Request string  `json:"request"`
	Arg     *string `json:"arg"`
	// Ref correlates the response with this request. Servers that do not echo
	// it fall back to FIFO matching.
	Ref uint64 `json:"ref,omitempty"`
}

// NewMessage creates a request without an argument (sent as null).
func NewMessage(userID int, request string) *Message {
	return &Message{
		UserID:  userID,
		Request: request,
	}
}

// WithArg sets the request argument.
func (m *Message) WithArg(arg string) *Message {
	m.Arg = &arg
	return m
}

// ArgString returns the argument, or "" when it is null.
func (m *Message) ArgString() string {
	if m.Arg == nil {
		return ""
	}
	return *m.Arg
}

func (m *Message) String() string {
	return fmt.Sprintf("%s(user=%d ref=%d arg=%dB)", m.Request, m.UserID, m.Ref, len(m.ArgString()))
}

// Result is the outcome the server reports for a request.
type Result int

const (
	ResultOk Result = iota
	ResultError
)

func (r Result) String() string {
	switch r {
	case ResultOk:
		return "Ok"
	case ResultError:
		return "Error"
	default:
		return fmt.Sprintf("Result(%d)", int(r))
	}
}

func (r Result) MarshalJSON() ([]byte, error) {
	switch r {
	case ResultOk, ResultError:
		return json.Marshal(r.String())
	default:
		return nil, fmt.Errorf("%w: %d", ErrInvalidResult, int(r))
	}
}

// UnmarshalJSON accepts both the names ("Ok", "Error") and their ordinal form.
func (r *Result) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var name string
		if err := json.Unmarshal(data, &name); err != nil {
			return err
		}
		switch strings.ToLower(name) {
		case "ok":
			*r = ResultOk
		case "error":
			*r = ResultError
		default:
			return fmt.Errorf("%w: %q", ErrInvalidResult, name)
		}
		return nil
	}

	var ordinal int
	if err := json.Unmarshal(data, &ordinal); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidResult, data)
	}
	if ordinal != int(ResultOk) && ordinal != int(ResultError) {
		return fmt.Errorf("%w: %d", ErrInvalidResult, ordinal)
	}
	*r = Result(ordinal)
	return nil
}

// Response is a server to client frame: either the answer to a request or a
// state broadcast push.
type Response struct {
	Request string `json:"request"`
	Result  Result `json:"result"`
	Args    string `json:"args"`
	// Timestamp is the server's logical tick, not wall time.
	Timestamp int64  `json:"time_stamp"`
	Ref       uint64 `json:"ref,omitempty"`
}

// IsPush reports whether the frame is an unsolicited state broadcast.
func (r *Response) IsPush() bool {
	return r.Request == PushReplicateEntityStates
}

// Err returns an *RPCError for Error results and nil otherwise.
func (r *Response) Err() error {
	if r.Result == ResultOk {
		return nil
	}
	return &RPCError{Request: r.Request, Reason: r.Args}
}

// ResponseCallback receives the response to a request. err is non-nil when
// the server answered with an Error result, the request timed out, or the
// connection closed before an answer arrived; resp is nil in the last two cases.
type ResponseCallback func(resp *Response, err error)

// DecodeResponse parses a single frame.
func DecodeResponse(frame []byte) (*Response, error) {
	frame = bytes.TrimSpace(frame)
	if len(frame) == 0 {
		return nil, ErrEmptyFrame
	}

	var resp Response
	if err := json.Unmarshal(frame, &resp); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidResponse, err)
	}
	if resp.Request == "" {
		return nil, fmt.Errorf("%w: missing request name", ErrInvalidResponse)
	}
	return &resp, nil
}
