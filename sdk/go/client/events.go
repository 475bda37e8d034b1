package client

import (
	"github.com/zeusync/replica/internal/core/entity"
	"github.com/zeusync/replica/internal/core/events/bus"
)

// EventType names a client event. Handlers registered with OnEvent run on
// the goroutine that calls Tick.
type EventType = string

const (
	// EventTypeConnected carries a bool: whether the connect succeeded.
	EventTypeConnected = "client.connected"
	// EventTypeDisconnected carries the error that ended the connection.
	EventTypeDisconnected = "client.disconnected"
	// EventTypeAuthenticated carries the client id.
	EventTypeAuthenticated = "client.authenticated"
	// EventTypeEntitySpawned and EventTypeEntityDespawned carry the *entity.Entity.
	EventTypeEntitySpawned   = entity.EventSpawned
	EventTypeEntityDespawned = entity.EventDespawned

	eventSource = "client"
)

// EventHandler handles a client event.
type EventHandler = bus.EventHandler

// Event is a client event.
type Event = bus.Event
