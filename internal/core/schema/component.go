// Package schema declares which component properties replicate and how their
// values are serialized. Schemas are built once, ahead of time, from explicit
// (component, property, codec) bindings rather than discovered at runtime.
package schema

import (
	"time"

	"github.com/zeusync/replica/internal/core/protocol"
)

// Component is the capability every replicated component implements.
type Component interface {
	// Name identifies the component type on the wire.
	Name() string

	// State encodes every declared property. It clears the dirty flag.
	State() (protocol.ComponentState, error)

	// ApplyState applies an inbound snapshot stamped with the server tick.
	// Unknown or malformed properties are skipped and reported in the error;
	// the remaining properties are still applied.
	ApplyState(state protocol.ComponentState, timestamp int64) error

	// Dirty reports whether the component changed enough since its last
	// harvest to be sent again.
	Dirty() bool
}

// Updater is implemented by components that do per-tick work: dirty
// detection while locally owned, smoothing while remotely owned.
type Updater interface {
	Update(dt time.Duration, local bool)
}
