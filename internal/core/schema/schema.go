package schema

import (
	"errors"
	"fmt"

	"github.com/zeusync/replica/internal/core/protocol"
)

// Schema is the declared property list of one component type whose live
// values are held in a C.
type Schema[C any] struct {
	name  string
	props []binding[C]
	index map[string]int
}

type binding[C any] struct {
	name   string
	encode func(*C) (string, error)
	decode func(*C, string) error
}

// New starts an empty schema for the component type called name.
func New[C any](name string) *Schema[C] {
	return &Schema[C]{
		name:  name,
		index: make(map[string]int),
	}
}

// Bind declares a replicated property. get reads the live value, set writes a
// decoded one. Declaring the same property twice panics: schemas are static
// and a duplicate is a programming error.
func Bind[C, T any](s *Schema[C], property string, codec Codec[T], get func(*C) T, set func(*C, T)) *Schema[C] {
	if _, exists := s.index[property]; exists {
		panic(fmt.Errorf("%w: %s.%s", ErrDuplicateProperty, s.name, property))
	}

	s.index[property] = len(s.props)
	s.props = append(s.props, binding[C]{
		name: property,
		encode: func(c *C) (string, error) {
			return codec.Encode(get(c))
		},
		decode: func(c *C, data string) error {
			value, err := codec.Decode(data)
			if err != nil {
				return err
			}
			set(c, value)
			return nil
		},
	})
	return s
}

func (s *Schema[C]) Name() string {
	return s.name
}

// Properties lists the declared property names in declaration order.
func (s *Schema[C]) Properties() []string {
	names := make([]string, len(s.props))
	for i, p := range s.props {
		names[i] = p.name
	}
	return names
}

// Encode produces one property entry per declared property.
func (s *Schema[C]) Encode(c *C) (protocol.ComponentState, error) {
	state := protocol.ComponentState{
		Name:       s.name,
		Properties: make([]protocol.Property, 0, len(s.props)),
	}
	for _, p := range s.props {
		value, err := p.encode(c)
		if err != nil {
			return protocol.ComponentState{}, fmt.Errorf("encode %s.%s: %w", s.name, p.name, err)
		}
		state.Properties = append(state.Properties, protocol.Property{Name: p.name, Value: value})
	}
	return state, nil
}

// Decode applies every known property of state to c and returns how many were
// applied. Unknown names and undecodable values are skipped; they are joined
// into the returned error so the caller can log them.
func (s *Schema[C]) Decode(c *C, state protocol.ComponentState) (int, error) {
	if state.Name != s.name {
		return 0, fmt.Errorf("%w: want %s, got %s", ErrComponentMismatch, s.name, state.Name)
	}

	var (
		applied int
		errs    []error
	)
	for _, prop := range state.Properties {
		i, ok := s.index[prop.Name]
		if !ok {
			errs = append(errs, fmt.Errorf("%w: %s.%s", ErrUnknownProperty, s.name, prop.Name))
			continue
		}
		if err := s.props[i].decode(c, prop.Value); err != nil {
			errs = append(errs, fmt.Errorf("%s.%s: %w", s.name, prop.Name, err))
			continue
		}
		applied++
	}
	return applied, errors.Join(errs...)
}
