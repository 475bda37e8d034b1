// Package replication runs the periodic state exchange: it pushes dirty
// local entity state to the server and applies state broadcasts to the
// entity registry.
package replication

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/zeusync/replica/internal/core/entity"
	"github.com/zeusync/replica/internal/core/observability/log"
	"github.com/zeusync/replica/internal/core/protocol"
	"github.com/zeusync/replica/internal/core/schema"
)

// Sender is the part of the connection manager the synchronizer uses.
type Sender interface {
	Send(msg *protocol.Message, cb protocol.ResponseCallback) error
	IsConnected() bool
}

// Identity reports the authenticated client id.
type Identity interface {
	ClientID() int
	Authenticated() bool
}

// RegisterCallback receives the newly registered local entity, or the
// reason registration failed.
type RegisterCallback func(e *entity.Entity, err error)

// Synchronizer belongs to the tick goroutine, like the registry it drives.
type Synchronizer struct {
	registry *entity.Registry
	sender   Sender
	identity Identity
	logger   log.Log
	stats    counters
}

func New(registry *entity.Registry, sender Sender, identity Identity, logger log.Log) *Synchronizer {
	return &Synchronizer{
		registry: registry,
		sender:   sender,
		identity: identity,
		logger:   logger.With(log.String("component", "synchronizer")),
	}
}

func (s *Synchronizer) Stats() Stats {
	return s.stats.snapshot()
}

// Tick sends the dirty state of local entities as one update_entity_states
// message. Nothing is harvested, and nothing sent, while unauthenticated,
// disconnected, or when no local entity is dirty.
func (s *Synchronizer) Tick() (sent bool, err error) {
	if !s.identity.Authenticated() || !s.sender.IsConnected() {
		return false, nil
	}

	states := s.registry.Harvest()
	if len(states) == 0 {
		return false, nil
	}

	payload, err := protocol.EncodeEntityStates(states)
	if err != nil {
		return false, err
	}

	msg := protocol.NewMessage(s.identity.ClientID(), protocol.RequestUpdateEntityStates).WithArg(payload)
	if err = s.sender.Send(msg, nil); err != nil {
		s.logger.Warn("Failed to push entity states",
			log.Int("entities", len(states)),
			log.Error(err))
		return false, err
	}

	s.stats.pushes.Add(1)
	s.stats.pushedEntities.Add(uint64(len(states)))
	return true, nil
}

// HandlePush applies one state broadcast. Every record shares the
// broadcast's server timestamp. Known remote entities are updated, unknown
// ids are spawned, local entities are left alone. Remote entities absent
// from the broadcast are then despawned.
func (s *Synchronizer) HandlePush(resp *protocol.Response) {
	if !s.identity.Authenticated() {
		s.logger.Debug("Ignored broadcast before authentication", log.Int64("timestamp", resp.Timestamp))
		return
	}
	s.stats.broadcasts.Add(1)

	states, err := protocol.DecodeEntityStates(resp.Args)
	switch {
	case errors.Is(err, protocol.ErrEmptyEntityStates):
		// An empty world.
	case err != nil:
		s.stats.decodeErrors.Add(1)
		s.logger.Warn("Skipped malformed entity records",
			log.Int64("timestamp", resp.Timestamp),
			log.Error(err))
		if len(states) == 0 {
			// Nothing trustworthy to reconcile against.
			return
		}
	}

	seen := make(map[uuid.UUID]struct{}, len(states))
	for _, state := range states {
		s.apply(state, resp.Timestamp, seen)
	}

	gone := s.registry.Reconcile(seen)
	s.stats.despawned.Add(uint64(len(gone)))
}

func (s *Synchronizer) apply(state protocol.EntityState, timestamp int64, seen map[uuid.UUID]struct{}) {
	id, err := state.ID()
	if err != nil {
		s.stats.decodeErrors.Add(1)
		return
	}
	seen[id] = struct{}{}

	e, spawned, err := s.registry.EnsureRemote(state, timestamp)
	switch {
	case errors.Is(err, entity.ErrStaleState):
		s.stats.rejected.Add(1)
		s.logger.Debug("Dropped stale entity state",
			log.Stringer("entity_id", id),
			log.Int64("timestamp", timestamp))
		return
	case err != nil:
		s.stats.decodeErrors.Add(1)
		s.logger.Warn("Partially applied entity state",
			log.Stringer("entity_id", id),
			log.Int64("timestamp", timestamp),
			log.Error(err))
	}

	switch {
	case spawned:
		s.stats.spawned.Add(1)
	case e != nil && !e.IsLocal():
		s.stats.applied.Add(1)
	}
}

// RegisterEntity asks the server for a new entity id and registers a local
// entity under it once the answer arrives. With no components given, the
// registry's factory supplies them.
func (s *Synchronizer) RegisterEntity(done RegisterCallback, components ...schema.Component) error {
	if !s.identity.Authenticated() {
		return ErrNotAuthenticated
	}

	finish := func(e *entity.Entity, err error) {
		if done != nil {
			done(e, err)
		}
	}

	msg := protocol.NewMessage(s.identity.ClientID(), protocol.RequestRegisterEntity)
	return s.sender.Send(msg, func(resp *protocol.Response, err error) {
		if err != nil {
			s.logger.Warn("Failed to register entity", log.Error(err))
			finish(nil, err)
			return
		}

		id, err := uuid.Parse(strings.TrimSpace(resp.Args))
		if err != nil {
			err = fmt.Errorf("%w %q: %w", protocol.ErrInvalidEntityID, resp.Args, err)
			s.logger.Warn("Failed to register entity", log.Error(err))
			finish(nil, err)
			return
		}

		e, err := s.registry.RegisterLocal(id, components...)
		if err != nil {
			s.logger.Warn("Failed to register entity", log.Stringer("entity_id", id), log.Error(err))
			finish(nil, err)
			return
		}

		s.logger.Info("Entity registered", log.Stringer("entity_id", id))
		finish(e, nil)
	})
}
