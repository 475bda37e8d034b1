package transport

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/quic-go/quic-go"
)

// Kind selects the stream transport.
type Kind string

const (
	KindTCP       Kind = "tcp"
	KindWebSocket Kind = "websocket"
	KindQUIC      Kind = "quic"
)

// ParseKind accepts the config spelling of a transport kind.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindTCP, KindWebSocket, KindQUIC:
		return k, nil
	case "ws":
		return KindWebSocket, nil
	case "":
		return KindTCP, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedTransport, s)
	}
}

// Stream is a bidirectional byte stream carrying newline-terminated frames.
type Stream interface {
	io.ReadWriteCloser
}

type writeDeadliner interface {
	SetWriteDeadline(t time.Time) error
}

// Dialer opens a Stream to host:port.
type Dialer interface {
	Dial(ctx context.Context, addr string) (Stream, error)
}

// DialerOptions carries the per-kind settings NewDialer needs.
type DialerOptions struct {
	// WebSocketPath is the upgrade endpoint, e.g. "/ws".
	WebSocketPath string
	// QUICALPN is the application protocol negotiated over QUIC.
	QUICALPN []string
	// QUICInsecureSkipVerify accepts self-signed server certificates.
	QUICInsecureSkipVerify bool
	// KeepAlive is applied where the transport supports it.
	KeepAlive time.Duration
}

func NewDialer(kind Kind, opts DialerOptions) (Dialer, error) {
	switch kind {
	case KindTCP, "":
		return &TCPDialer{Dialer: net.Dialer{KeepAlive: opts.KeepAlive}}, nil
	case KindWebSocket:
		return &WebSocketDialer{Path: opts.WebSocketPath}, nil
	case KindQUIC:
		return &QUICDialer{
			TLSConfig: &tls.Config{
				InsecureSkipVerify: opts.QUICInsecureSkipVerify,
				NextProtos:         opts.QUICALPN,
				MinVersion:         tls.VersionTLS13, // QUIC requires TLS 1.3
			},
			Config: &quic.Config{KeepAlivePeriod: opts.KeepAlive},
		}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedTransport, kind)
	}
}

// TCPDialer is the plain socket transport.
type TCPDialer struct {
	Dialer net.Dialer
}

func (d *TCPDialer) Dial(ctx context.Context, addr string) (Stream, error) {
	conn, err := d.Dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// WebSocketDialer carries frames in text messages. A message may hold any
// number of whole frames; a missing final delimiter is restored on read.
type WebSocketDialer struct {
	Path   string
	Dialer *websocket.Dialer
}

func (d *WebSocketDialer) Dial(ctx context.Context, addr string) (Stream, error) {
	dialer := d.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}

	path := d.Path
	if path != "" && !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	u := url.URL{Scheme: "ws", Host: addr, Path: path}

	conn, _, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial %s: %w", u.String(), err)
	}
	return &wsStream{conn: conn}, nil
}

type wsStream struct {
	conn *websocket.Conn
	buf  bytes.Reader
}

func (s *wsStream) Read(p []byte) (int, error) {
	for s.buf.Len() == 0 {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return 0, io.EOF
			}
			return 0, err
		}
		if len(data) == 0 {
			continue
		}
		if data[len(data)-1] != '\n' {
			data = append(data, '\n')
		}
		s.buf.Reset(data)
	}
	return s.buf.Read(p)
}

// Write sends p as one text message. Callers write whole frames.
func (s *wsStream) Write(p []byte) (int, error) {
	if err := s.conn.WriteMessage(websocket.TextMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (s *wsStream) SetWriteDeadline(t time.Time) error {
	return s.conn.SetWriteDeadline(t)
}

func (s *wsStream) Close() error {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	return s.conn.Close()
}

// QUICDialer opens one bidirectional stream on a new QUIC connection.
type QUICDialer struct {
	TLSConfig *tls.Config
	Config    *quic.Config
}

func (d *QUICDialer) Dial(ctx context.Context, addr string) (Stream, error) {
	tlsConfig := &tls.Config{MinVersion: tls.VersionTLS13}
	if d.TLSConfig != nil {
		tlsConfig = d.TLSConfig.Clone()
	}
	if tlsConfig.ServerName == "" {
		host, _, err := net.SplitHostPort(addr)
		if err != nil {
			tlsConfig.ServerName = addr
		} else {
			tlsConfig.ServerName = host
		}
	}

	conn, err := quic.DialAddr(ctx, addr, tlsConfig, d.Config)
	if err != nil {
		return nil, fmt.Errorf("quic dial %s: %w", addr, err)
	}

	stream, err := conn.OpenStreamSync(ctx)
	if err != nil {
		_ = conn.CloseWithError(0, "failed to open stream")
		return nil, fmt.Errorf("quic open stream: %w", err)
	}
	return &quicStream{conn: conn, stream: stream}, nil
}

type quicStream struct {
	conn   *quic.Conn
	stream *quic.Stream
}

func (s *quicStream) Read(p []byte) (int, error) {
	return s.stream.Read(p)
}

func (s *quicStream) Write(p []byte) (int, error) {
	return s.stream.Write(p)
}

func (s *quicStream) SetWriteDeadline(t time.Time) error {
	return s.stream.SetWriteDeadline(t)
}

// Close ends the send side and tears the connection down, which also
// unblocks a pending Read.
func (s *quicStream) Close() error {
	return errors.Join(
		s.stream.Close(),
		s.conn.CloseWithError(0, "client closed"),
	)
}
