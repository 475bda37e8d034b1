package entity

import (
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/zeusync/replica/internal/core/events/bus"
	"github.com/zeusync/replica/internal/core/observability/log"
	"github.com/zeusync/replica/internal/core/protocol"
	"github.com/zeusync/replica/internal/core/schema"
	"github.com/zeusync/replica/pkg/sequence"
)

// Lifecycle event types published on the registry's bus. Event data is the
// *Entity concerned.
const (
	EventSpawned   = "entity.spawned"
	EventDespawned = "entity.despawned"

	eventSource = "entity.registry"
)

// Factory builds the component set of a new entity. It is how remote
// entities get their components when they are first seen.
type Factory func(id uuid.UUID, authority Authority) []schema.Component

// Registry maps entity ids to entities. It is not safe for concurrent use;
// it belongs to the tick goroutine.
type Registry struct {
	entities map[uuid.UUID]*Entity
	order    []uuid.UUID

	factory Factory
	events  bus.EventBus
	logger  log.Log
}

func NewRegistry(factory Factory, events bus.EventBus, logger log.Log) *Registry {
	if events == nil {
		events = bus.New()
	}
	return &Registry{
		entities: make(map[uuid.UUID]*Entity),
		factory:  factory,
		events:   events,
		logger:   logger.With(log.String("component", "entity_registry")),
	}
}

// Events exposes the lifecycle bus so host code can attach and detach live
// objects on spawn and despawn.
func (r *Registry) Events() bus.EventBus {
	return r.events
}

// RegisterLocal inserts a locally owned entity under a server-issued id.
// With no components given, the factory supplies them.
func (r *Registry) RegisterLocal(id uuid.UUID, components ...schema.Component) (*Entity, error) {
	if _, exists := r.entities[id]; exists {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateEntity, id)
	}
	if len(components) == 0 && r.factory != nil {
		components = r.factory(id, Local)
	}

	e, err := New(id, Local, components...)
	if err != nil {
		return nil, err
	}
	r.insert(e)
	return e, nil
}

// EnsureRemote applies a broadcast record. An unknown id is spawned with
// remote authority and the record is applied to it as its first snapshot.
// A known remote entity gets the record through its components. A known
// local entity is left untouched.
func (r *Registry) EnsureRemote(state protocol.EntityState, timestamp int64) (e *Entity, spawned bool, err error) {
	id, err := state.ID()
	if err != nil {
		return nil, false, err
	}

	if existing, ok := r.entities[id]; ok {
		if existing.IsLocal() {
			r.logger.Debug("Ignored state for locally owned entity", log.Stringer("entity_id", id))
			return existing, false, nil
		}
		_, err = existing.Apply(state, timestamp)
		return existing, false, err
	}

	var components []schema.Component
	if r.factory != nil {
		components = r.factory(id, Remote)
	}
	e, err = New(id, Remote, components...)
	if err != nil {
		return nil, false, err
	}

	_, err = e.Apply(state, timestamp)
	r.insert(e)
	return e, true, err
}

// Reconcile removes every remote entity whose id is not in seen. Local
// entities are never removed by a remote view.
func (r *Registry) Reconcile(seen map[uuid.UUID]struct{}) []uuid.UUID {
	gone := sequence.From(r.order).
		Filter(func(id uuid.UUID) bool {
			if r.entities[id].IsLocal() {
				return false
			}
			_, ok := seen[id]
			return !ok
		}).
		Collect()

	for _, id := range gone {
		r.Unregister(id)
	}
	return gone
}

// Unregister removes an entity for any reason. It reports whether the id
// was present.
func (r *Registry) Unregister(id uuid.UUID) bool {
	e, ok := r.entities[id]
	if !ok {
		return false
	}

	delete(r.entities, id)
	r.order = slices.DeleteFunc(r.order, func(other uuid.UUID) bool { return other == id })

	r.logger.Debug("Entity despawned",
		log.Stringer("entity_id", id),
		log.Stringer("authority", e.Authority()))
	r.publish(EventDespawned, e)
	return true
}

func (r *Registry) Get(id uuid.UUID) (*Entity, bool) {
	e, ok := r.entities[id]
	return e, ok
}

func (r *Registry) Len() int {
	return len(r.entities)
}

// Each visits entities in insertion order until fn returns false.
func (r *Registry) Each(fn func(*Entity) bool) {
	for _, id := range slices.Clone(r.order) {
		if e, ok := r.entities[id]; ok && !fn(e) {
			return
		}
	}
}

// Update advances every entity by one tick.
func (r *Registry) Update(dt time.Duration) {
	r.Each(func(e *Entity) bool {
		e.Update(dt)
		return true
	})
}

// Harvest collects the state of every local entity with a dirty component.
// Encoding problems are logged; components that encoded are still sent.
func (r *Registry) Harvest() []protocol.EntityState {
	var states []protocol.EntityState
	r.Each(func(e *Entity) bool {
		state, ok, err := e.Harvest()
		if err != nil {
			r.logger.Warn("Failed to harvest entity state",
				log.Stringer("entity_id", e.ID()),
				log.Error(err))
		}
		if ok {
			states = append(states, state)
		}
		return true
	})
	return states
}

func (r *Registry) insert(e *Entity) {
	r.entities[e.ID()] = e
	r.order = append(r.order, e.ID())

	r.logger.Debug("Entity spawned",
		log.Stringer("entity_id", e.ID()),
		log.Stringer("authority", e.Authority()),
		log.Int("components", len(e.Components())))
	r.publish(EventSpawned, e)
}

func (r *Registry) publish(eventType string, e *Entity) {
	if err := r.events.Publish(bus.NewEvent(eventType, eventSource, e)); err != nil {
		r.logger.Warn("Lifecycle handler failed",
			log.String("event", eventType),
			log.Stringer("entity_id", e.ID()),
			log.Error(err))
	}
}
