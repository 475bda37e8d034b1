// Package interp reconstructs smooth motion for remotely owned components from
// the discrete, time-stamped snapshots the server broadcasts.
package interp

import (
	"fmt"
	"time"

	"github.com/tanema/gween/ease"
)

// Snapshot is a value stamped with the server's logical tick.
type Snapshot[T any] struct {
	Timestamp int64
	Value     T
}

// LerpFunc blends a towards b at parameter t in [0, 1].
type LerpFunc[T any] func(a, b T, t float64) T

// Buffer holds the last two accepted snapshots of one value and how long the
// newer one has been playing back.
type Buffer[T any] struct {
	prev    Snapshot[T]
	next    Snapshot[T]
	elapsed time.Duration

	initialized bool
	lerp        LerpFunc[T]
	easing      ease.TweenFunc
}

func NewBuffer[T any](lerp LerpFunc[T]) *Buffer[T] {
	return &Buffer[T]{lerp: lerp}
}

// SetEasing reshapes the blend parameter. nil means linear.
func (b *Buffer[T]) SetEasing(fn ease.TweenFunc) {
	b.easing = fn
}

// Push accepts a snapshot if its timestamp is strictly newer than the held
// "next" one. The first snapshot becomes both ends of the pair, so it is
// shown as-is with nothing to blend from; it reports initial=true.
func (b *Buffer[T]) Push(timestamp int64, value T) (initial bool, err error) {
	snap := Snapshot[T]{Timestamp: timestamp, Value: value}

	if !b.initialized {
		b.prev, b.next = snap, snap
		b.elapsed = 0
		b.initialized = true
		return true, nil
	}

	if timestamp <= b.next.Timestamp {
		return false, fmt.Errorf("%w: got %d, holding %d", ErrStaleSnapshot, timestamp, b.next.Timestamp)
	}

	b.prev = b.next
	b.next = snap
	b.elapsed = 0
	return false, nil
}

func (b *Buffer[T]) Initialized() bool {
	return b.initialized
}

func (b *Buffer[T]) Prev() Snapshot[T] {
	return b.prev
}

func (b *Buffer[T]) Next() Snapshot[T] {
	return b.next
}

func (b *Buffer[T]) Elapsed() time.Duration {
	return b.elapsed
}

// Duration is the playback length of the current pair given the server tick.
func (b *Buffer[T]) Duration(serverTick time.Duration) time.Duration {
	return time.Duration(b.next.Timestamp-b.prev.Timestamp) * serverTick
}

// Sample returns the value at the current elapsed time without advancing it.
// settled is true once playback reached the newest snapshot; the value is
// then exactly that snapshot, never extrapolated past it.
func (b *Buffer[T]) Sample(serverTick time.Duration) (value T, settled bool) {
	duration := b.Duration(serverTick)
	if b.elapsed >= duration {
		return b.next.Value, true
	}

	t := b.elapsed.Seconds() / duration.Seconds()
	if b.easing != nil {
		t = float64(b.easing(float32(b.elapsed.Seconds()), 0, 1, float32(duration.Seconds())))
	}
	return b.lerp(b.prev.Value, b.next.Value, t), false
}

// Step samples the current value and then advances playback by dt.
func (b *Buffer[T]) Step(dt, serverTick time.Duration) T {
	value, settled := b.Sample(serverTick)
	if !settled {
		b.elapsed += dt
	}
	return value
}

// Easing resolves a configured curve name. The empty string and "linear"
// return nil, which Buffer treats as plain linear blending.
func Easing(name string) (ease.TweenFunc, error) {
	switch name {
	case "", "linear":
		return nil, nil
	case "in_quad":
		return ease.InQuad, nil
	case "out_quad":
		return ease.OutQuad, nil
	case "in_out_quad":
		return ease.InOutQuad, nil
	case "out_cubic":
		return ease.OutCubic, nil
	case "in_out_cubic":
		return ease.InOutCubic, nil
	case "in_out_sine":
		return ease.InOutSine, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEasing, name)
	}
}
