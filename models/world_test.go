package models

import (
	"context"
	"testing"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/octree/featureflag"
	"github.com/aukilabs/octree/geom"
	"github.com/aukilabs/octree/octree"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

var testWorldBounds = geom.NewBox(
	geom.Vector3f{X: -100, Y: -100, Z: -100},
	geom.Vector3f{X: 100, Y: 100, Z: 100},
)

func newTestWorld(t *testing.T, config WorldConfig, flags ...string) *World {
	if config.Bounds == (geom.Box{}) {
		config.Bounds = testWorldBounds
	}

	w, err := NewWorld(1, time.Hour, config, featureflag.New(flags))
	require.NoError(t, err)
	t.Cleanup(w.Close)
	return w
}

func pose(x, y, z, extent float32) Pose {
	return Pose{
		Center:  geom.Vector3f{X: x, Y: y, Z: z},
		Extents: geom.Vector3f{X: extent, Y: extent, Z: extent},
	}
}

func entityIDs(entities []*Entity) []uint32 {
	ids := make([]uint32, len(entities))
	for i, e := range entities {
		ids[i] = e.ID
	}
	return ids
}

func TestNewWorld(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		w := newTestWorld(t, WorldConfig{})
		require.NotEmpty(t, w.UUID)
		require.Equal(t, testWorldBounds, w.Bounds())

		info := w.Info()
		require.Equal(t, octree.DefaultMaxRecordsPerNode, info.MaxRecordsPerNode)
		require.Equal(t, octree.DefaultMaxDepth, info.MaxDepth)
		require.Zero(t, info.Entities)
		require.Equal(t, 1, info.Index.Nodes)
	})

	t.Run("invalid bounds", func(t *testing.T) {
		_, err := NewWorld(1, time.Hour, WorldConfig{
			Bounds: geom.NewBox(geom.Vector3f{X: 1}, geom.Vector3f{X: -1}),
		}, nil)
		require.Error(t, err)
		require.Equal(t, ErrTypeInvalidWorld, errors.Type(err))
	})

	t.Run("invalid thresholds", func(t *testing.T) {
		_, err := NewWorld(1, time.Hour, WorldConfig{
			Bounds:            testWorldBounds,
			MaxRecordsPerNode: -1,
		}, nil)
		require.Error(t, err)
		require.Equal(t, ErrTypeInvalidWorld, errors.Type(err))
	})
}

func TestWorldEntities(t *testing.T) {
	w := newTestWorld(t, WorldConfig{MaxRecordsPerNode: 2})

	a, err := w.AddEntity(pose(50, 50, 50, 1))
	require.NoError(t, err)
	b, err := w.AddEntity(pose(-50, -50, -50, 1))
	require.NoError(t, err)
	c, err := w.AddEntity(pose(60, 60, 60, 1))
	require.NoError(t, err)

	require.Equal(t, []uint32{1, 2, 3}, entityIDs(w.Entities()))
	require.Equal(t, 3, w.EntityCount())

	t.Run("get", func(t *testing.T) {
		e, ok := w.EntityByID(b.ID)
		require.True(t, ok)
		require.Same(t, b, e)

		_, ok = w.EntityByID(42)
		require.False(t, ok)
	})

	t.Run("add out of bounds", func(t *testing.T) {
		_, err := w.AddEntity(pose(99, 0, 0, 2))
		require.Equal(t, ErrTypeEntityOutOfBounds, errors.Type(err))
	})

	t.Run("add with negative extents", func(t *testing.T) {
		_, err := w.AddEntity(Pose{Extents: geom.Vector3f{X: -1}})
		require.Equal(t, ErrTypeInvalidPose, errors.Type(err))
	})

	t.Run("move", func(t *testing.T) {
		_, err := w.MoveEntity(a.ID, pose(-50, 50, 50, 1))
		require.NoError(t, err)
		require.Equal(t, pose(-50, 50, 50, 1), a.Pose())

		stats := w.Step()
		require.Equal(t, 1, stats.Rehomed)
		require.True(t, a.Owner().Bounds().ContainsBox(a.Bounds()))
	})

	t.Run("move out of bounds", func(t *testing.T) {
		_, err := w.MoveEntity(a.ID, pose(150, 0, 0, 1))
		require.Equal(t, ErrTypeEntityOutOfBounds, errors.Type(err))
		require.Equal(t, pose(-50, 50, 50, 1), a.Pose())
	})

	t.Run("move unknown entity", func(t *testing.T) {
		_, err := w.MoveEntity(42, pose(0, 0, 0, 1))
		require.Equal(t, ErrTypeEntityNotFound, errors.Type(err))
	})

	t.Run("remove", func(t *testing.T) {
		require.NoError(t, w.RemoveEntity(c.ID))
		require.Nil(t, c.Owner())

		_, ok := w.EntityByID(c.ID)
		require.False(t, ok)
		require.Equal(t, ErrTypeEntityNotFound, errors.Type(w.RemoveEntity(c.ID)))

		// removed ids are reused:
		e, err := w.AddEntity(pose(0, 0, 0, 1))
		require.NoError(t, err)
		require.Equal(t, c.ID, e.ID)
	})
}

func TestWorldMergeOnRemove(t *testing.T) {
	populate := func(w *World) []*Entity {
		var entities []*Entity
		for _, p := range []Pose{pose(-50, -50, -50, 1), pose(50, 50, 50, 1), pose(60, 60, 60, 1)} {
			e, err := w.AddEntity(p)
			require.NoError(t, err)
			entities = append(entities, e)
		}
		return entities
	}

	t.Run("merges by default", func(t *testing.T) {
		w := newTestWorld(t, WorldConfig{MaxRecordsPerNode: 2})
		entities := populate(w)
		require.Equal(t, 9, w.Info().Index.Nodes)

		require.NoError(t, w.RemoveEntity(entities[2].ID))
		require.Equal(t, 1, w.Info().Index.Nodes)
	})

	t.Run("merges on the next frame when disabled", func(t *testing.T) {
		w := newTestWorld(t, WorldConfig{MaxRecordsPerNode: 2}, string(featureflag.FlagDisableMergeOnRemove))
		entities := populate(w)

		require.NoError(t, w.RemoveEntity(entities[2].ID))
		require.Equal(t, 9, w.Info().Index.Nodes)

		w.Step()
		require.Equal(t, 1, w.Info().Index.Nodes)
	})
}

func TestWorldQuery(t *testing.T) {
	w := newTestWorld(t, WorldConfig{MaxRecordsPerNode: 1})

	near, err := w.AddEntity(pose(10, 0, 0, 2))
	require.NoError(t, err)
	far, err := w.AddEntity(pose(80, 0, 0, 2))
	require.NoError(t, err)
	behind, err := w.AddEntity(pose(-50, 0, 0, 2))
	require.NoError(t, err)

	box := geom.NewBox(geom.Vector3f{X: 0, Y: -10, Z: -10}, geom.Vector3f{X: 50, Y: 10, Z: 10})
	sphere := geom.NewSphere(geom.Vector3f{X: 80}, 5)
	ray := geom.NewRay(geom.Vector3f{}, geom.Vector3f{X: 1})
	origin := geom.Vector3f{X: 10}
	frustum := geom.Orthographic(-100, 100, -100, 100, -100, 100)

	tests := []struct {
		name     string
		query    Query
		expected []uint32
		errType  string
	}{
		{
			name:     "ray",
			query:    Query{Shape: ShapeRay, Ray: &ray},
			expected: []uint32{near.ID, far.ID},
		},
		{
			name:     "point",
			query:    Query{Shape: ShapePoint, Point: &origin},
			expected: []uint32{near.ID},
		},
		{
			name:     "box",
			query:    Query{Shape: ShapeBox, Box: &box},
			expected: []uint32{near.ID},
		},
		{
			name:     "box disjoint",
			query:    Query{Shape: ShapeBox, Box: &box, Contains: "disjoint"},
			expected: []uint32{far.ID, behind.ID},
		},
		{
			name:     "sphere",
			query:    Query{Shape: ShapeSphere, Sphere: &sphere},
			expected: []uint32{far.ID},
		},
		{
			name:     "sphere contains",
			query:    Query{Shape: ShapeSphere, Sphere: &sphere, Contains: "contains"},
			expected: []uint32{far.ID},
		},
		{
			name:     "frustum",
			query:    Query{Shape: ShapeFrustum, Frustum: &frustum},
			expected: []uint32{near.ID, far.ID, behind.ID},
		},
		{
			name: "screen",
			query: Query{Shape: ShapeScreen, Screen: &ScreenQuery{
				Rect:      geom.NewRect(100, 0, 100, 200),
				Viewport:  geom.Viewport{Rect: geom.NewRect(0, 0, 200, 200), MaxDepth: 1},
				Transform: frustum,
			}},
			expected: []uint32{near.ID, far.ID},
		},
		{
			name:    "unknown shape",
			query:   Query{Shape: "cone"},
			errType: ErrTypeInvalidQuery,
		},
		{
			name:    "missing shape params",
			query:   Query{Shape: ShapeBox},
			errType: ErrTypeInvalidQuery,
		},
		{
			name:    "unknown containment type",
			query:   Query{Shape: ShapeBox, Box: &box, Contains: "overlaps"},
			errType: ErrTypeInvalidQuery,
		},
		{
			name:    "containment type on a ray",
			query:   Query{Shape: ShapeRay, Ray: &ray, Contains: "contains"},
			errType: ErrTypeInvalidQuery,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			entities, err := w.Query(test.query)
			if test.errType != "" {
				require.Error(t, err)
				require.Equal(t, test.errType, errors.Type(err))
				return
			}

			require.NoError(t, err)
			require.ElementsMatch(t, test.expected, entityIDs(entities))
		})
	}
}

func TestWorldFrames(t *testing.T) {
	w, err := NewWorld(1, time.Millisecond, WorldConfig{Bounds: testWorldBounds, MaxRecordsPerNode: 1}, nil)
	require.NoError(t, err)
	defer w.Close()

	a, err := w.AddEntity(pose(50, 50, 50, 1))
	require.NoError(t, err)
	_, err = w.AddEntity(pose(-50, -50, -50, 1))
	require.NoError(t, err)

	rehomed := make(chan int, 1)
	cancel := w.HandleFrame(func(stats octree.UpdateStats) {
		if stats.Rehomed == 0 {
			return
		}
		select {
		case rehomed <- stats.Rehomed:
		default:
		}
	})
	defer cancel()

	go w.StartDispatchFrames()

	_, err = w.MoveEntity(a.ID, pose(-50, 50, 50, 1))
	require.NoError(t, err)

	select {
	case n := <-rehomed:
		require.Equal(t, 1, n)
	case <-time.After(time.Second):
		t.Fatal("no frame re-homed the moved entity")
	}
}

func TestWorldStore(t *testing.T) {
	store := WorldStore{
		MaxWorlds:         2,
		MaxRecordsPerNode: 3,
		FrameDuration:     time.Hour,
	}
	defer store.Close()

	ctx := context.Background()

	a, err := store.Create(ctx, WorldConfig{Bounds: testWorldBounds})
	require.NoError(t, err)
	require.Equal(t, uint32(1), a.ID)
	require.Equal(t, 3, a.Info().MaxRecordsPerNode)

	b, err := store.Create(ctx, WorldConfig{Bounds: testWorldBounds, MaxRecordsPerNode: 5})
	require.NoError(t, err)
	require.Equal(t, uint32(2), b.ID)
	require.Equal(t, 5, b.Info().MaxRecordsPerNode)

	t.Run("max worlds", func(t *testing.T) {
		_, err := store.Create(ctx, WorldConfig{Bounds: testWorldBounds})
		require.Equal(t, ErrTypeTooManyWorlds, errors.Type(err))
	})

	t.Run("get", func(t *testing.T) {
		w, ok := store.Get(a.UUID)
		require.True(t, ok)
		require.Same(t, a, w)

		_, ok = store.Get("unknown")
		require.False(t, ok)

		require.Equal(t, []*World{a, b}, store.Worlds())
		require.Equal(t, 2, store.Len())
	})

	t.Run("remove", func(t *testing.T) {
		require.NoError(t, store.Remove(ctx, a.UUID))
		_, ok := store.Get(a.UUID)
		require.False(t, ok)

		err := store.Remove(ctx, a.UUID)
		require.Equal(t, ErrTypeWorldNotFound, errors.Type(err))

		c, err := store.Create(ctx, WorldConfig{Bounds: testWorldBounds})
		require.NoError(t, err)
		require.Equal(t, a.ID, c.ID)
	})

	t.Run("invalid world", func(t *testing.T) {
		require.NoError(t, store.Remove(ctx, b.UUID))

		_, err := store.Create(ctx, WorldConfig{Bounds: geom.NewBox(geom.Vector3f{X: 1}, geom.Vector3f{})})
		require.Equal(t, ErrTypeInvalidWorld, errors.Type(err))
		require.Equal(t, 1, store.Len())
	})

	t.Run("max depth too large", func(t *testing.T) {
		_, err := store.Create(ctx, WorldConfig{Bounds: testWorldBounds, MaxDepth: 100000})
		require.Equal(t, ErrTypeInvalidWorld, errors.Type(err))

		_, err = store.Create(ctx, WorldConfig{Bounds: testWorldBounds, MaxDepth: DefaultMaxAllowedDepth + 1})
		require.Equal(t, ErrTypeInvalidWorld, errors.Type(err))
		require.Equal(t, 1, store.Len())
	})
}

func TestWorldStoreMaxAllowedDepth(t *testing.T) {
	store := WorldStore{FrameDuration: time.Hour, MaxAllowedDepth: 4}
	defer store.Close()

	ctx := context.Background()

	w, err := store.Create(ctx, WorldConfig{Bounds: testWorldBounds, MaxDepth: 4})
	require.NoError(t, err)
	require.Equal(t, 4, w.Info().MaxDepth)

	_, err = store.Create(ctx, WorldConfig{Bounds: testWorldBounds, MaxDepth: 5})
	require.Equal(t, ErrTypeInvalidWorld, errors.Type(err))
}

func TestRemovedWorldRejectsEntities(t *testing.T) {
	store := WorldStore{FrameDuration: time.Hour}
	defer store.Close()

	ctx := context.Background()

	w, err := store.Create(ctx, WorldConfig{Bounds: testWorldBounds})
	require.NoError(t, err)
	e, err := w.AddEntity(pose(0, 0, 0, 1))
	require.NoError(t, err)

	require.NoError(t, store.Remove(ctx, w.UUID))
	entities := testutil.ToFloat64(entityCount)

	_, err = w.AddEntity(pose(10, 10, 10, 1))
	require.Equal(t, ErrTypeWorldNotFound, errors.Type(err))

	_, err = w.MoveEntity(e.ID, pose(20, 20, 20, 1))
	require.Equal(t, ErrTypeWorldNotFound, errors.Type(err))

	err = w.RemoveEntity(e.ID)
	require.Equal(t, ErrTypeWorldNotFound, errors.Type(err))

	require.Equal(t, entities, testutil.ToFloat64(entityCount))
	require.Equal(t, 1, w.EntityCount())
}
