// Package transport owns the server connection: the asynchronous connect,
// the background receive loop, request/response correlation and the command
// queue that hands inbound work to the tick goroutine.
package transport

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zeusync/replica/internal/core/observability/log"
	"github.com/zeusync/replica/internal/core/protocol"
	"github.com/zeusync/replica/pkg/sequence"
)

type connState int32

const (
	stateDisconnected connState = iota
	stateConnecting
	stateConnected
	stateClosed
)

// PushHandler receives unsolicited state broadcasts.
type PushHandler func(resp *protocol.Response)

// Manager is the connection manager. Send, Connect and IsConnected are safe
// from any goroutine. Callbacks, push handlers and connect/disconnect
// notifications only run inside Poll and Close, which belong to the owning
// tick goroutine.
type Manager struct {
	config Config
	dialer Dialer
	logger log.Log
	now    func() time.Time

	commands *sequence.Queue[func()]
	pending  pendingCalls

	onPush       PushHandler
	onDisconnect func(err error)

	state  atomic.Int32
	mu     sync.Mutex // guards stream, cancel and writes
	stream Stream
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewManager(dialer Dialer, config Config, logger log.Log) *Manager {
	return &Manager{
		config:   config,
		dialer:   dialer,
		logger:   logger.With(log.String("component", "transport")),
		now:      time.Now,
		commands: sequence.NewQueue[func()](),
	}
}

// OnPush sets the handler for state broadcasts. Call it before Connect.
func (m *Manager) OnPush(handler PushHandler) {
	m.onPush = handler
}

// OnDisconnect sets the handler notified when the receive loop ends because
// the connection was lost. Call it before Connect.
func (m *Manager) OnDisconnect(handler func(err error)) {
	m.onDisconnect = handler
}

func (m *Manager) IsConnected() bool {
	return connState(m.state.Load()) == stateConnected
}

// Pending returns the number of requests awaiting a response.
func (m *Manager) Pending() int {
	return m.pending.len()
}

// Connect dials in the background and returns immediately. onConnect runs
// on a later Poll with the outcome. There is no retry.
func (m *Manager) Connect(ctx context.Context, host string, port int, onConnect func(connected bool)) error {
	if connState(m.state.Load()) == stateClosed {
		return protocol.ErrConnectionClosed
	}
	if !m.state.CompareAndSwap(int32(stateDisconnected), int32(stateConnecting)) {
		return ErrAlreadyConnected
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.mu.Lock()
	if m.cancel != nil {
		m.cancel()
	}
	m.cancel = cancel
	m.mu.Unlock()

	addr := net.JoinHostPort(host, strconv.Itoa(port))
	m.wg.Add(1)
	go m.run(runCtx, addr, onConnect)
	return nil
}

func (m *Manager) run(ctx context.Context, addr string, onConnect func(bool)) {
	defer m.wg.Done()

	notify := func(connected bool) {
		if onConnect != nil {
			m.post(func() { onConnect(connected) })
		}
	}

	m.logger.Info("Connecting to server", log.String("addr", addr))

	dialCtx := ctx
	if m.config.DialTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, m.config.DialTimeout)
		defer cancel()
	}

	stream, err := m.dialer.Dial(dialCtx, addr)
	if err != nil {
		m.logger.Error("Failed to connect to server",
			log.String("addr", addr),
			log.Error(err))
		m.state.CompareAndSwap(int32(stateConnecting), int32(stateDisconnected))
		notify(false)
		return
	}

	m.mu.Lock()
	if !m.state.CompareAndSwap(int32(stateConnecting), int32(stateConnected)) {
		m.mu.Unlock()
		_ = stream.Close()
		notify(false)
		return
	}
	m.stream = stream
	m.mu.Unlock()

	m.logger.Info("Connected to server", log.String("addr", addr))
	notify(true)

	m.receive(stream)
}

// receive reads frames until the stream fails or is closed.
func (m *Manager) receive(stream Stream) {
	m.logger.Debug("Receive loop started")

	scanner := protocol.NewFrameScanner(stream, m.config.MaxFrameSize)
	for scanner.Scan() {
		m.dispatch(scanner.Bytes())
	}

	err := scanner.Err()
	if errors.Is(err, bufio.ErrTooLong) {
		err = fmt.Errorf("%w: %w", protocol.ErrFrameTooLarge, err)
	}

	if connState(m.state.Load()) == stateClosed {
		m.logger.Debug("Receive loop stopped")
		return
	}

	if err == nil {
		err = protocol.ErrConnectionClosed
	}
	m.logger.Warn("Connection lost", log.Error(err))

	m.mu.Lock()
	if m.stream == stream {
		m.stream = nil
	}
	m.state.CompareAndSwap(int32(stateConnected), int32(stateDisconnected))
	m.mu.Unlock()
	_ = stream.Close()

	calls := m.pending.drain()
	m.post(func() {
		for _, call := range calls {
			call.callback(nil, fmt.Errorf("%s: %w", call.request, protocol.ErrConnectionClosed))
		}
		if m.onDisconnect != nil {
			m.onDisconnect(err)
		}
	})
}

// dispatch routes one inbound frame. It runs on the receive goroutine and
// only posts work for the tick goroutine.
func (m *Manager) dispatch(frame []byte) {
	resp, err := protocol.DecodeResponse(frame)
	if err != nil {
		m.logger.Warn("Dropped malformed frame",
			log.Int("bytes", len(frame)),
			log.Error(err))
		return
	}

	if resp.IsPush() {
		m.post(func() {
			if m.onPush != nil {
				m.onPush(resp)
			}
		})
		return
	}

	call, ok := m.pending.resolve(resp)
	if !ok {
		m.logger.Debug("Dropped response with no pending request",
			log.String("request", resp.Request),
			log.Uint64("ref", resp.Ref))
		return
	}
	if call.request != resp.Request {
		m.logger.Warn("Response request name differs from the pending request",
			log.String("pending", call.request),
			log.String("response", resp.Request),
			log.Uint64("ref", call.ref))
	}
	m.post(func() { call.callback(resp, resp.Err()) })
}

func (m *Manager) post(fn func()) {
	m.commands.Enqueue(fn)
}

// Send writes one request frame. cb, when not nil, later receives the
// response on Poll.
func (m *Manager) Send(msg *protocol.Message, cb protocol.ResponseCallback) error {
	if !m.IsConnected() {
		return protocol.ErrNotConnected
	}

	if cb != nil {
		msg.Ref = m.pending.add(msg.Request, cb, m.now())
	}

	data, err := protocol.EncodeFrame(msg)
	if err != nil {
		m.pending.remove(msg.Ref)
		return err
	}

	m.mu.Lock()
	stream := m.stream
	if stream == nil {
		m.mu.Unlock()
		m.pending.remove(msg.Ref)
		return protocol.ErrNotConnected
	}
	if d, ok := stream.(writeDeadliner); ok && m.config.WriteTimeout > 0 {
		_ = d.SetWriteDeadline(m.now().Add(m.config.WriteTimeout))
	}
	_, err = stream.Write(data)
	m.mu.Unlock()

	if err != nil {
		m.pending.remove(msg.Ref)
		m.logger.Warn("Failed to send message",
			log.Stringer("message", msg),
			log.Error(err))
		return fmt.Errorf("send %s: %w", msg.Request, err)
	}

	m.logger.Debug("Message sent", log.Stringer("message", msg))
	return nil
}

// Poll expires overdue requests and runs every command queued so far, in
// order. It returns the number of commands run.
func (m *Manager) Poll() int {
	if m.config.ResponseTimeout > 0 {
		for _, call := range m.pending.expire(m.now(), m.config.ResponseTimeout) {
			m.logger.Warn("Request timed out",
				log.String("request", call.request),
				log.Uint64("ref", call.ref),
				log.Duration("timeout", m.config.ResponseTimeout))
			m.post(func() {
				call.callback(nil, fmt.Errorf("%s: %w", call.request, protocol.ErrResponseTimeout))
			})
		}
	}

	return m.commands.Drain(func(fn func()) { fn() })
}

// Close aborts a connect in progress, closes the stream and waits for the
// background goroutine. Work that already arrived is delivered, then every
// request still pending fails with protocol.ErrConnectionClosed. The manager
// cannot be reused.
func (m *Manager) Close() error {
	if connState(m.state.Swap(int32(stateClosed))) == stateClosed {
		return nil
	}

	m.mu.Lock()
	cancel, stream := m.cancel, m.stream
	m.stream = nil
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	var err error
	if stream != nil {
		err = stream.Close()
	}
	m.wg.Wait()

	m.commands.Drain(func(fn func()) { fn() })
	for _, call := range m.pending.drain() {
		call.callback(nil, fmt.Errorf("%s: %w", call.request, protocol.ErrConnectionClosed))
	}

	m.logger.Info("Connection closed")
	return err
}
