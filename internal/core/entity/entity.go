// Package entity tracks networked entities, who owns them, and their lifecycle.
package entity

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/zeusync/replica/internal/core/protocol"
	"github.com/zeusync/replica/internal/core/schema"
)

// Authority says which side originates an entity's state.
type Authority uint8

const (
	// Local entities are owned by this client; only they emit state.
	Local Authority = iota + 1
	// Remote entities are owned elsewhere; only they accept state.
	Remote
)

func (a Authority) String() string {
	switch a {
	case Local:
		return "local"
	case Remote:
		return "remote"
	default:
		return fmt.Sprintf("authority(%d)", uint8(a))
	}
}

// Entity is one networked object and its ordered set of components.
// Authority is fixed at construction.
type Entity struct {
	id         uuid.UUID
	authority  Authority
	components []schema.Component
	index      map[string]schema.Component

	lastTimestamp int64
	applied       bool
}

// New builds an entity. Component names must be unique within the entity.
func New(id uuid.UUID, authority Authority, components ...schema.Component) (*Entity, error) {
	if id == uuid.Nil {
		return nil, ErrNilEntityID
	}

	e := &Entity{
		id:         id,
		authority:  authority,
		components: make([]schema.Component, 0, len(components)),
		index:      make(map[string]schema.Component, len(components)),
	}
	for _, c := range components {
		if _, exists := e.index[c.Name()]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateComponent, c.Name())
		}
		e.index[c.Name()] = c
		e.components = append(e.components, c)
	}
	return e, nil
}

func (e *Entity) ID() uuid.UUID {
	return e.id
}

func (e *Entity) Authority() Authority {
	return e.authority
}

func (e *Entity) IsLocal() bool {
	return e.authority == Local
}

// Components returns the components in declaration order.
func (e *Entity) Components() []schema.Component {
	return e.components
}

func (e *Entity) Component(name string) (schema.Component, bool) {
	c, ok := e.index[name]
	return c, ok
}

// LastTimestamp is the server tick of the last applied state, if any.
func (e *Entity) LastTimestamp() (int64, bool) {
	return e.lastTimestamp, e.applied
}

// Update advances every component that has per-tick behavior: dirty
// detection when local, interpolation when remote.
func (e *Entity) Update(dt time.Duration) {
	local := e.IsLocal()
	for _, c := range e.components {
		if u, ok := c.(schema.Updater); ok {
			u.Update(dt, local)
		}
	}
}

// Dirty reports whether the entity should push state on the next harvest.
// Remote entities never do.
func (e *Entity) Dirty() bool {
	if !e.IsLocal() {
		return false
	}
	for _, c := range e.components {
		if c.Dirty() {
			return true
		}
	}
	return false
}

// Harvest encodes the dirty components of a local entity. ok is false when
// there is nothing to send, including for remote entities.
func (e *Entity) Harvest() (state protocol.EntityState, ok bool, err error) {
	if !e.IsLocal() {
		return protocol.EntityState{}, false, nil
	}

	var errs []error
	state.EntityID = e.id.String()
	for _, c := range e.components {
		if !c.Dirty() {
			continue
		}
		cs, encodeErr := c.State()
		if encodeErr != nil {
			errs = append(errs, fmt.Errorf("harvest %s: %w", c.Name(), encodeErr))
			continue
		}
		state.ComponentStates = append(state.ComponentStates, cs)
	}
	return state, len(state.ComponentStates) > 0, errors.Join(errs...)
}

// Apply hands each component state to the matching component. Local
// entities ignore inbound state. A timestamp not strictly newer than the
// last applied one is rejected with ErrStaleState and nothing changes.
// Unknown components and component-level decode problems are returned
// joined but do not stop the rest of the record.
func (e *Entity) Apply(state protocol.EntityState, timestamp int64) (applied int, err error) {
	if e.IsLocal() {
		return 0, nil
	}
	if e.applied && timestamp <= e.lastTimestamp {
		return 0, fmt.Errorf("%w: entity %s got %d, holding %d", ErrStaleState, e.id, timestamp, e.lastTimestamp)
	}

	var errs []error
	for _, cs := range state.ComponentStates {
		c, ok := e.index[cs.Name]
		if !ok {
			errs = append(errs, fmt.Errorf("%w: %s", ErrUnknownComponent, cs.Name))
			continue
		}
		if applyErr := c.ApplyState(cs, timestamp); applyErr != nil {
			errs = append(errs, applyErr)
		}
		applied++
	}

	e.lastTimestamp = timestamp
	e.applied = true
	return applied, errors.Join(errs...)
}
