package entity

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/replica/internal/core/events/bus"
	"github.com/zeusync/replica/internal/core/interp"
	"github.com/zeusync/replica/internal/core/observability/log"
	"github.com/zeusync/replica/internal/core/protocol"
	"github.com/zeusync/replica/internal/core/schema"
	"github.com/zeusync/replica/pkg/geom"
)

func transformFactory(uuid.UUID, Authority) []schema.Component {
	return []schema.Component{interp.NewTransform(interp.DefaultTransformConfig(), log.Nop())}
}

func transformOf(t *testing.T, e *Entity) *interp.Transform {
	t.Helper()
	c, ok := e.Component(interp.TransformName)
	require.True(t, ok)
	return c.(*interp.Transform)
}

func poseState(t *testing.T, id uuid.UUID, p interp.Pose) protocol.EntityState {
	t.Helper()
	cs, err := interp.TransformSchema.Encode(&p)
	require.NoError(t, err)
	return protocol.EntityState{EntityID: id.String(), ComponentStates: []protocol.ComponentState{cs}}
}

func TestNewRejectsNilAndDuplicates(t *testing.T) {
	_, err := New(uuid.Nil, Local)
	assert.ErrorIs(t, err, ErrNilEntityID)

	tr := interp.NewTransform(interp.DefaultTransformConfig(), log.Nop())
	_, err = New(uuid.New(), Remote, tr, tr)
	assert.ErrorIs(t, err, ErrDuplicateComponent)
}

func TestAuthorityGuardOnApply(t *testing.T) {
	id := uuid.New()
	e, err := New(id, Local, transformFactory(id, Local)...)
	require.NoError(t, err)

	live := interp.Pose{Position: geom.V3(1, 2, 3), Rotation: geom.Identity}
	transformOf(t, e).SetPose(live)

	applied, err := e.Apply(poseState(t, id, interp.Pose{Position: geom.V3(9, 9, 9), Rotation: geom.Identity}), 10)
	require.NoError(t, err)
	assert.Zero(t, applied)
	assert.Equal(t, live, transformOf(t, e).Pose())

	_, ok := e.LastTimestamp()
	assert.False(t, ok)
}

func TestAuthorityGuardOnHarvest(t *testing.T) {
	id := uuid.New()
	e, err := New(id, Remote, transformFactory(id, Remote)...)
	require.NoError(t, err)

	transformOf(t, e).MarkDirty()
	assert.False(t, e.Dirty())

	_, ok, err := e.Harvest()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHarvestOnlyDirtyComponents(t *testing.T) {
	id := uuid.New()
	e, err := New(id, Local, transformFactory(id, Local)...)
	require.NoError(t, err)

	e.Update(16 * time.Millisecond)
	require.True(t, e.Dirty(), "never sent")

	state, ok, err := e.Harvest()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, id.String(), state.EntityID)
	require.Len(t, state.ComponentStates, 1)
	assert.Equal(t, interp.TransformName, state.ComponentStates[0].Name)

	e.Update(16 * time.Millisecond)
	assert.False(t, e.Dirty())
	_, ok, err = e.Harvest()
	require.NoError(t, err)
	assert.False(t, ok)

	transformOf(t, e).SetPosition(geom.V3(1, 0, 0))
	e.Update(16 * time.Millisecond)
	assert.True(t, e.Dirty())
}

func TestApplyOrderingGuard(t *testing.T) {
	id := uuid.New()
	e, err := New(id, Remote, transformFactory(id, Remote)...)
	require.NoError(t, err)

	p5 := interp.Pose{Position: geom.V3(5, 0, 0), Rotation: geom.Identity}
	p3 := interp.Pose{Position: geom.V3(3, 0, 0), Rotation: geom.Identity}
	p7 := interp.Pose{Position: geom.V3(7, 0, 0), Rotation: geom.Identity}

	_, err = e.Apply(poseState(t, id, p5), 5)
	require.NoError(t, err)

	_, err = e.Apply(poseState(t, id, p3), 3)
	assert.ErrorIs(t, err, ErrStaleState)
	_, err = e.Apply(poseState(t, id, p5), 5)
	assert.ErrorIs(t, err, ErrStaleState, "duplicates are dropped")

	e.Update(time.Second)
	assert.Equal(t, p5, transformOf(t, e).Pose())

	_, err = e.Apply(poseState(t, id, p7), 7)
	require.NoError(t, err)
	ts, ok := e.LastTimestamp()
	assert.True(t, ok)
	assert.Equal(t, int64(7), ts)
	assert.Equal(t, p7, transformOf(t, e).Buffer().Next().Value)
}

func TestApplyUnknownComponentDoesNotAbortRecord(t *testing.T) {
	id := uuid.New()
	e, err := New(id, Remote, transformFactory(id, Remote)...)
	require.NoError(t, err)

	state := poseState(t, id, interp.Pose{Position: geom.V3(4, 0, 0), Rotation: geom.Identity})
	state.ComponentStates = append([]protocol.ComponentState{{Name: "Inventory"}}, state.ComponentStates...)

	applied, err := e.Apply(state, 1)
	assert.ErrorIs(t, err, ErrUnknownComponent)
	assert.Equal(t, 1, applied)
	assert.Equal(t, geom.V3(4, 0, 0), transformOf(t, e).Position())
}

func TestRegistrySpawnOnFirstSight(t *testing.T) {
	r := NewRegistry(transformFactory, nil, log.Nop())
	x := uuid.New()
	s := interp.Pose{Position: geom.V3(0.3, 83.5, -33), Rotation: geom.AxisAngle(geom.V3(0, 0, 1), 60)}

	e, spawned, err := r.EnsureRemote(poseState(t, x, s), 42)
	require.NoError(t, err)
	assert.True(t, spawned)
	assert.Equal(t, Remote, e.Authority())
	assert.Equal(t, s, transformOf(t, e).Pose(), "first snapshot is applied exactly")

	got, ok := r.Get(x)
	require.True(t, ok)
	assert.Same(t, e, got)

	_, spawned, err = r.EnsureRemote(poseState(t, x, s), 43)
	require.NoError(t, err)
	assert.False(t, spawned)
	assert.Equal(t, 1, r.Len())
}

func TestRegistryEnsureRemoteIgnoresLocal(t *testing.T) {
	r := NewRegistry(transformFactory, nil, log.Nop())
	id := uuid.New()
	e, err := r.RegisterLocal(id)
	require.NoError(t, err)

	live := interp.Pose{Position: geom.V3(1, 1, 1), Rotation: geom.Identity}
	transformOf(t, e).SetPose(live)

	got, spawned, err := r.EnsureRemote(poseState(t, id, interp.Pose{Rotation: geom.Identity}), 3)
	require.NoError(t, err)
	assert.False(t, spawned)
	assert.Same(t, e, got)
	assert.Equal(t, live, transformOf(t, e).Pose())
}

func TestRegistryEnsureRemoteBadID(t *testing.T) {
	r := NewRegistry(transformFactory, nil, log.Nop())
	_, _, err := r.EnsureRemote(protocol.EntityState{EntityID: "not-a-uuid"}, 1)
	assert.ErrorIs(t, err, protocol.ErrInvalidEntityID)
	assert.Zero(t, r.Len())
}

func TestRegistryReconcile(t *testing.T) {
	events := bus.New()
	var despawned []uuid.UUID
	_, err := events.Subscribe(EventDespawned, func(ev bus.Event) error {
		despawned = append(despawned, ev.Data().(*Entity).ID())
		return nil
	})
	require.NoError(t, err)

	r := NewRegistry(transformFactory, events, log.Nop())
	a, b, l := uuid.New(), uuid.New(), uuid.New()

	_, err = r.RegisterLocal(l)
	require.NoError(t, err)
	for _, id := range []uuid.UUID{a, b} {
		_, _, err = r.EnsureRemote(poseState(t, id, interp.Pose{Rotation: geom.Identity}), 1)
		require.NoError(t, err)
	}
	require.Equal(t, 3, r.Len())

	gone := r.Reconcile(map[uuid.UUID]struct{}{a: {}})
	assert.Equal(t, []uuid.UUID{b}, gone)
	assert.Equal(t, []uuid.UUID{b}, despawned)

	_, ok := r.Get(a)
	assert.True(t, ok)
	_, ok = r.Get(b)
	assert.False(t, ok)
	_, ok = r.Get(l)
	assert.True(t, ok)

	gone = r.Reconcile(map[uuid.UUID]struct{}{})
	assert.Equal(t, []uuid.UUID{a}, gone)
	assert.Equal(t, 1, r.Len(), "local entity survives an empty view")
}

func TestRegistryRegisterLocal(t *testing.T) {
	events := bus.New()
	var spawned []*Entity
	_, _ = events.Subscribe(EventSpawned, func(ev bus.Event) error {
		spawned = append(spawned, ev.Data().(*Entity))
		return nil
	})
	r := NewRegistry(transformFactory, events, log.Nop())

	id := uuid.New()
	e, err := r.RegisterLocal(id)
	require.NoError(t, err)
	assert.True(t, e.IsLocal())
	assert.Len(t, e.Components(), 1)
	require.Len(t, spawned, 1)
	assert.Same(t, e, spawned[0])

	_, err = r.RegisterLocal(id)
	assert.ErrorIs(t, err, ErrDuplicateEntity)

	_, err = r.RegisterLocal(uuid.Nil)
	assert.ErrorIs(t, err, ErrNilEntityID)

	assert.True(t, r.Unregister(id))
	assert.False(t, r.Unregister(id))
	assert.Zero(t, r.Len())
}

func TestRegistryHarvestAndOrder(t *testing.T) {
	r := NewRegistry(transformFactory, nil, log.Nop())
	ids := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	for _, id := range ids {
		_, err := r.RegisterLocal(id)
		require.NoError(t, err)
	}
	_, _, err := r.EnsureRemote(poseState(t, uuid.New(), interp.Pose{Rotation: geom.Identity}), 1)
	require.NoError(t, err)

	r.Update(16 * time.Millisecond)
	states := r.Harvest()
	require.Len(t, states, len(ids))
	for i, s := range states {
		assert.Equal(t, ids[i].String(), s.EntityID)
	}

	r.Update(16 * time.Millisecond)
	assert.Empty(t, r.Harvest())

	visited := 0
	r.Each(func(*Entity) bool {
		visited++
		return visited < 2
	})
	assert.Equal(t, 2, visited)
}
