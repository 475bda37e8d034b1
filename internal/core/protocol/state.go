package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Property is one replicated value. Value holds a nested serialized payload,
// e.g. `{"x":0.3,"y":83.5,"z":-33}` for a vector.
type Property struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// ComponentState is the replicated state of one component.
type ComponentState struct {
	Name       string     `json:"name"`
	Properties []Property `json:"properties"`
}

// Property returns the named property entry, if present.
func (s ComponentState) Property(name string) (Property, bool) {
	for _, p := range s.Properties {
		if p.Name == name {
			return p, true
		}
	}
	return Property{}, false
}

// EntityState is the replicated state of one entity.
type EntityState struct {
	EntityID        string           `json:"entity_id"`
	ComponentStates []ComponentState `json:"component_states"`
}

// ID parses EntityID.
func (s EntityState) ID() (uuid.UUID, error) {
	id, err := uuid.Parse(s.EntityID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w %q: %w", ErrInvalidEntityID, s.EntityID, err)
	}
	return id, nil
}

// Component returns the named component state, if present.
func (s EntityState) Component(name string) (ComponentState, bool) {
	for _, c := range s.ComponentStates {
		if c.Name == name {
			return c, true
		}
	}
	return ComponentState{}, false
}

// EncodeEntityStates renders states as newline-joined single-line JSON documents.
func EncodeEntityStates(states []EntityState) (string, error) {
	var b strings.Builder
	for i, state := range states {
		if state.ComponentStates == nil {
			state.ComponentStates = []ComponentState{}
		}
		data, err := json.Marshal(state)
		if err != nil {
			return "", fmt.Errorf("encode entity state %s: %w", state.EntityID, err)
		}
		if i > 0 {
			b.WriteByte('\n')
		}
		b.Write(data)
	}
	return b.String(), nil
}

// DecodeEntityStates parses a newline-joined payload. Records that fail to
// parse are skipped and reported together in the returned error; the good
// records are still returned.
func DecodeEntityStates(payload string) ([]EntityState, error) {
	var (
		states []EntityState
		errs   []error
	)
	for i, line := range strings.Split(payload, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var state EntityState
		if err := json.Unmarshal([]byte(line), &state); err != nil {
			errs = append(errs, fmt.Errorf("record %d: %w", i, err))
			continue
		}
		if _, err := state.ID(); err != nil {
			errs = append(errs, fmt.Errorf("record %d: %w", i, err))
			continue
		}
		states = append(states, state)
	}
	if len(states) == 0 && len(errs) == 0 {
		return nil, ErrEmptyEntityStates
	}
	return states, errors.Join(errs...)
}
