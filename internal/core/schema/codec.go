package schema

import (
	"encoding/json"
	"fmt"

	"github.com/zeusync/replica/pkg/geom"
)

// Codec serializes a property value into the opaque string carried on the wire.
type Codec[T any] interface {
	Encode(value T) (string, error)
	Decode(data string) (T, error)
}

type jsonCodec[T any] struct{}

// JSON is the default payload codec.
func JSON[T any]() Codec[T] {
	return jsonCodec[T]{}
}

func (jsonCodec[T]) Encode(value T) (string, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (jsonCodec[T]) Decode(data string) (T, error) {
	var value T
	if err := json.Unmarshal([]byte(data), &value); err != nil {
		return value, fmt.Errorf("%w: %w", ErrMalformedValue, err)
	}
	return value, nil
}

// Canonical fixed-field codecs for vectors ({"x","y","z"}) and rotations
// ({"x","y","z","w"}).
var (
	Vec3 = JSON[geom.Vec3]()
	Quat = JSON[geom.Quat]()
)
