package interp

import (
	"errors"
	"fmt"
	"time"

	"github.com/tanema/gween/ease"

	"github.com/zeusync/replica/internal/core/observability/log"
	"github.com/zeusync/replica/internal/core/protocol"
	"github.com/zeusync/replica/internal/core/schema"
	"github.com/zeusync/replica/pkg/geom"
)

// TransformName is the wire name of the transform component.
const TransformName = "NetworkTransform"

var (
	_ schema.Component = (*Transform)(nil)
	_ schema.Updater   = (*Transform)(nil)
)

// Pose is the replicated part of a transform. Scale is not replicated.
type Pose struct {
	Position geom.Vec3
	Rotation geom.Quat
}

// LerpPose blends position linearly and rotation along the shortest arc.
func LerpPose(a, b Pose, t float64) Pose {
	return Pose{
		Position: geom.Lerp(a.Position, b.Position, t),
		Rotation: geom.Slerp(a.Rotation, b.Rotation, t),
	}
}

// TransformSchema declares the replicated transform properties.
var TransformSchema = func() *schema.Schema[Pose] {
	s := schema.New[Pose](TransformName)
	schema.Bind(s, "Position", schema.Vec3,
		func(p *Pose) geom.Vec3 { return p.Position },
		func(p *Pose, v geom.Vec3) { p.Position = v })
	schema.Bind(s, "Rotation", schema.Quat,
		func(p *Pose) geom.Quat { return p.Rotation },
		func(p *Pose, v geom.Quat) { p.Rotation = v })
	return s
}()

// TransformConfig tunes one transform component.
type TransformConfig struct {
	// PositionThreshold is the distance the position must move, in world
	// units, before a locally owned transform is sent again.
	PositionThreshold float64
	// RotationThreshold is the same in degrees.
	RotationThreshold float64
	// ServerTick is the real time one server timestamp unit represents.
	ServerTick time.Duration
	// Easing reshapes remote playback; nil is linear.
	Easing ease.TweenFunc
}

func DefaultTransformConfig() TransformConfig {
	return TransformConfig{
		PositionThreshold: 0.01,
		RotationThreshold: 0.01,
		ServerTick:        100 * time.Millisecond,
	}
}

// Transform replicates a position and rotation. Locally owned, it marks itself
// dirty when it drifts past the thresholds from the last harvested pose.
// Remotely owned, it plays back received snapshots through a Buffer.
type Transform struct {
	config TransformConfig
	logger log.Log

	live      Pose
	harvested Pose
	sent      bool
	forced    bool
	dirty     bool

	buffer *Buffer[Pose]
}

func NewTransform(config TransformConfig, logger log.Log) *Transform {
	buffer := NewBuffer(LerpPose)
	buffer.SetEasing(config.Easing)

	live := Pose{Rotation: geom.Identity}
	return &Transform{
		config:    config,
		logger:    logger.With(log.String("component", TransformName)),
		live:      live,
		harvested: live,
		buffer:    buffer,
	}
}

func (t *Transform) Name() string {
	return TransformName
}

func (t *Transform) Pose() Pose {
	return t.live
}

func (t *Transform) Position() geom.Vec3 {
	return t.live.Position
}

func (t *Transform) Rotation() geom.Quat {
	return t.live.Rotation
}

func (t *Transform) SetPose(p Pose) {
	t.live = p
}

func (t *Transform) SetPosition(v geom.Vec3) {
	t.live.Position = v
}

func (t *Transform) SetRotation(q geom.Quat) {
	t.live.Rotation = q
}

// Buffer exposes the snapshot pair for inspection.
func (t *Transform) Buffer() *Buffer[Pose] {
	return t.buffer
}

func (t *Transform) Dirty() bool {
	return t.dirty || t.forced
}

// MarkDirty forces the next harvest to include this transform.
func (t *Transform) MarkDirty() {
	t.forced = true
}

func (t *Transform) Update(dt time.Duration, local bool) {
	if local {
		t.dirty = t.moved()
		return
	}
	if t.buffer.Initialized() {
		t.live = t.buffer.Step(dt, t.config.ServerTick)
	}
}

// moved is the dirty predicate: never sent, or drifted past a threshold.
func (t *Transform) moved() bool {
	if !t.sent {
		return true
	}
	threshold := t.config.PositionThreshold
	if t.live.Position.Sub(t.harvested.Position).SqrMagnitude() > threshold*threshold {
		return true
	}
	return geom.Angle(t.live.Rotation, t.harvested.Rotation) > t.config.RotationThreshold
}

func (t *Transform) State() (protocol.ComponentState, error) {
	state, err := TransformSchema.Encode(&t.live)
	if err != nil {
		return protocol.ComponentState{}, err
	}
	t.harvested = t.live
	t.sent = true
	t.dirty = false
	t.forced = false
	return state, nil
}

// ApplyState queues a snapshot for playback. The first snapshot is applied to
// the live pose immediately with no blending. Properties missing from the
// snapshot keep their previous value.
func (t *Transform) ApplyState(state protocol.ComponentState, timestamp int64) error {
	if t.buffer.Initialized() && timestamp <= t.buffer.Next().Timestamp {
		return fmt.Errorf("%w: got %d, holding %d", ErrStaleSnapshot, timestamp, t.buffer.Next().Timestamp)
	}

	next := t.live
	if t.buffer.Initialized() {
		next = t.buffer.Next().Value
	}

	applied, decodeErr := TransformSchema.Decode(&next, state)
	if decodeErr != nil {
		t.logger.Warn("Skipped properties while applying state",
			log.Int("applied", applied),
			log.Int64("timestamp", timestamp),
			log.Error(decodeErr))
		if errors.Is(decodeErr, schema.ErrComponentMismatch) {
			return decodeErr
		}
	}

	initial, err := t.buffer.Push(timestamp, next)
	if err != nil {
		return err
	}
	if initial {
		t.live = next
	}
	return decodeErr
}
