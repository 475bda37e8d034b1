// Package client provides a high-level SDK for replicating entity state with
// a ZeuSync-style server.
//
// A Client owns the connection, the session, the entity registry and the
// synchronizer. Everything except Connect's dial and the receive loop runs on
// the goroutine that calls Tick (or Run).
package client

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/zeusync/replica/internal/config"
	"github.com/zeusync/replica/internal/core/entity"
	"github.com/zeusync/replica/internal/core/events/bus"
	"github.com/zeusync/replica/internal/core/interp"
	"github.com/zeusync/replica/internal/core/observability/log"
	"github.com/zeusync/replica/internal/core/replication"
	"github.com/zeusync/replica/internal/core/schema"
	"github.com/zeusync/replica/internal/core/session"
	"github.com/zeusync/replica/internal/core/transport"
)

// Client represents a replication client
type Client struct {
	config config.Config
	logger log.Log

	transport *transport.Manager
	session   *session.Session
	registry  *entity.Registry
	sync      *replication.Synchronizer
	events    bus.EventBus

	closed atomic.Bool
}

// Option customizes a Client.
type Option func(*options)

type options struct {
	dialer  transport.Dialer
	factory entity.Factory
}

// WithDialer replaces the dialer built from the config.
func WithDialer(d transport.Dialer) Option {
	return func(o *options) { o.dialer = d }
}

// WithFactory sets how entity components are built. The default gives every
// entity one transform.
func WithFactory(f entity.Factory) Option {
	return func(o *options) { o.factory = f }
}

// TransformFactory builds entities carrying a single transform component.
func TransformFactory(cfg interp.TransformConfig, logger log.Log) entity.Factory {
	return func(uuid.UUID, entity.Authority) []schema.Component {
		return []schema.Component{interp.NewTransform(cfg, logger)}
	}
}

// New creates a client from a validated config.
func New(cfg config.Config, logger log.Log, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	if o.dialer == nil {
		d, err := cfg.Dialer()
		if err != nil {
			return nil, err
		}
		o.dialer = d
	}
	if o.factory == nil {
		tc, err := cfg.InterpTransformConfig()
		if err != nil {
			return nil, err
		}
		o.factory = TransformFactory(tc, logger)
	}

	events := bus.New()
	c := &Client{
		config:    cfg,
		logger:    logger.With(log.String("component", "client")),
		transport: transport.NewManager(o.dialer, cfg.TransportConfig(), logger),
		session:   session.New(logger),
		registry:  entity.NewRegistry(o.factory, events, logger),
		events:    events,
	}
	c.sync = replication.New(c.registry, c.transport, c.session, logger)

	c.transport.OnPush(c.sync.HandlePush)
	c.transport.OnDisconnect(func(err error) {
		c.session.Reset()
		c.emit(EventTypeDisconnected, err)
	})

	c.logger.Info("Client created",
		log.String("server", fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)),
		log.String("transport", cfg.Transport.Kind))

	return c, nil
}

// Connect dials the configured server in the background. onConnect, if not
// nil, runs on a later Tick with the outcome.
func (c *Client) Connect(ctx context.Context, onConnect func(connected bool)) error {
	if c.closed.Load() {
		return ErrClientClosed
	}
	return c.transport.Connect(ctx, c.config.Server.Host, c.config.Server.Port, func(connected bool) {
		c.emit(EventTypeConnected, connected)
		if onConnect != nil {
			onConnect(connected)
		}
	})
}

// Authenticate sends the credentials. done, if not nil, runs on a later Tick.
func (c *Client) Authenticate(creds session.Credentials, done func(clientID int, err error)) error {
	if c.closed.Load() {
		return ErrClientClosed
	}
	return c.session.Authenticate(c.transport, creds, func(clientID int, err error) {
		if err == nil {
			c.emit(EventTypeAuthenticated, clientID)
		}
		if done != nil {
			done(clientID, err)
		}
	})
}

// RegisterEntity asks the server for a new locally owned entity. With no
// components given, the factory supplies them.
func (c *Client) RegisterEntity(done replication.RegisterCallback, components ...schema.Component) error {
	if c.closed.Load() {
		return ErrClientClosed
	}
	return c.sync.RegisterEntity(done, components...)
}

// OnEvent registers a handler for one event type.
func (c *Client) OnEvent(eventType EventType, handler EventHandler) (bus.Subscription, error) {
	return c.events.Subscribe(eventType, handler)
}

// Tick runs one simulation step: deliver what the connection received,
// advance entities by dt, then push dirty local state.
func (c *Client) Tick(dt time.Duration) {
	c.transport.Poll()
	c.registry.Update(dt)
	if _, err := c.sync.Tick(); err != nil {
		c.logger.Debug("State push skipped", log.Error(err))
	}
}

// Run ticks at the configured rate until ctx is done. step, if not nil, runs
// before each Tick; it is where host logic moves local entities.
func (c *Client) Run(ctx context.Context, step func(dt time.Duration)) error {
	ticker := time.NewTicker(c.config.TickInterval())
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			dt := now.Sub(last)
			last = now
			if step != nil {
				step(dt)
			}
			c.Tick(dt)
		}
	}
}

// Close closes the connection. Pending request callbacks fail with
// protocol.ErrConnectionClosed before it returns.
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}

	c.logger.Info("Closing client")
	err := c.transport.Close()
	c.session.Reset()
	c.logger.Info("Client closed", log.Any("stats", c.sync.Stats()))
	return err
}

// Config returns the config the client was built from.
func (c *Client) Config() config.Config {
	return c.config
}

func (c *Client) IsConnected() bool {
	return c.transport.IsConnected()
}

func (c *Client) IsClosed() bool {
	return c.closed.Load()
}

func (c *Client) ClientID() int {
	return c.session.ClientID()
}

func (c *Client) Authenticated() bool {
	return c.session.Authenticated()
}

// Registry exposes the entity registry. Use it only from the Tick goroutine.
func (c *Client) Registry() *entity.Registry {
	return c.registry
}

func (c *Client) Stats() replication.Stats {
	return c.sync.Stats()
}

func (c *Client) emit(eventType string, data any) {
	if err := c.events.Publish(bus.NewEvent(eventType, eventSource, data)); err != nil {
		c.logger.Warn("Event handler error",
			log.String("event", eventType),
			log.Error(err))
	}
}
