package schema

import (
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/zeusync/replica/internal/core/observability/log"
	"github.com/zeusync/replica/internal/core/protocol"
)

var (
	_ Component = (*Replicated[struct{}])(nil)
	_ Updater   = (*Replicated[struct{}])(nil)
)

// Replicated is a component whose inbound state is applied directly to the
// live value, without smoothing. While locally owned it is dirty whenever the
// encoded form of its properties differs from what was last harvested.
type Replicated[C any] struct {
	schema *Schema[C]
	value  *C
	logger log.Log

	dirty     bool
	forced    bool
	harvested bool
	lastHash  uint64
}

// NewReplicated binds value to schema. value is the live object the host
// reads and mutates.
func NewReplicated[C any](schema *Schema[C], value *C, logger log.Log) *Replicated[C] {
	return &Replicated[C]{
		schema: schema,
		value:  value,
		logger: logger.With(log.String("component", schema.Name())),
	}
}

func (r *Replicated[C]) Name() string {
	return r.schema.Name()
}

// Value returns the live value.
func (r *Replicated[C]) Value() *C {
	return r.value
}

func (r *Replicated[C]) Dirty() bool {
	return r.dirty || r.forced
}

// MarkDirty forces the next harvest to include this component.
func (r *Replicated[C]) MarkDirty() {
	r.forced = true
}

func (r *Replicated[C]) Update(_ time.Duration, local bool) {
	if !local {
		return
	}
	r.dirty = r.changed()
}

func (r *Replicated[C]) State() (protocol.ComponentState, error) {
	state, err := r.schema.Encode(r.value)
	if err != nil {
		return protocol.ComponentState{}, err
	}
	r.lastHash = hashState(state)
	r.harvested = true
	r.dirty = false
	r.forced = false
	return state, nil
}

func (r *Replicated[C]) ApplyState(state protocol.ComponentState, _ int64) error {
	applied, err := r.schema.Decode(r.value, state)
	if err != nil {
		r.logger.Warn("Skipped properties while applying state",
			log.Int("applied", applied),
			log.Error(err))
	}
	return err
}

func (r *Replicated[C]) changed() bool {
	if !r.harvested {
		return true
	}
	state, err := r.schema.Encode(r.value)
	if err != nil {
		r.logger.Error("Failed to encode state for dirty check", log.Error(err))
		return false
	}
	return hashState(state) != r.lastHash
}

func hashState(state protocol.ComponentState) uint64 {
	d := xxhash.New()
	_, _ = d.WriteString(state.Name)
	for _, p := range state.Properties {
		_, _ = d.Write([]byte{0})
		_, _ = d.WriteString(p.Name)
		_, _ = d.Write([]byte{0})
		_, _ = d.WriteString(p.Value)
	}
	return d.Sum64()
}
