package replication

import "sync/atomic"

// Stats is a snapshot of synchronizer counters since creation.
type Stats struct {
	// Pushes counts update_entity_states messages sent.
	Pushes uint64
	// PushedEntities counts entity records across those messages.
	PushedEntities uint64
	// Broadcasts counts state broadcasts handled.
	Broadcasts uint64
	Applied    uint64
	Spawned    uint64
	Despawned  uint64
	// Rejected counts records dropped by the ordering guard.
	Rejected uint64
	// DecodeErrors counts records or properties that could not be decoded.
	DecodeErrors uint64
}

type counters struct {
	pushes         atomic.Uint64
	pushedEntities atomic.Uint64
	broadcasts     atomic.Uint64
	applied        atomic.Uint64
	spawned        atomic.Uint64
	despawned      atomic.Uint64
	rejected       atomic.Uint64
	decodeErrors   atomic.Uint64
}

func (c *counters) snapshot() Stats {
	return Stats{
		Pushes:         c.pushes.Load(),
		PushedEntities: c.pushedEntities.Load(),
		Broadcasts:     c.broadcasts.Load(),
		Applied:        c.applied.Load(),
		Spawned:        c.spawned.Load(),
		Despawned:      c.despawned.Load(),
		Rejected:       c.rejected.Load(),
		DecodeErrors:   c.decodeErrors.Load(),
	}
}
