package octree

import (
	"math/rand"
	"testing"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/octree/geom"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		root, err := New[*point](worldBounds)
		require.NoError(t, err)
		require.Equal(t, DefaultMaxRecordsPerNode, root.MaxRecordsPerNode())
		require.Equal(t, DefaultMaxDepth, root.MaxDepth())
		require.True(t, root.IsRoot())
		require.True(t, root.IsLeaf())
		require.Zero(t, root.Depth())
		require.Equal(t, worldBounds, root.Bounds())
		require.True(t, root.tree.aware)
		require.True(t, root.tree.parallel)
	})

	t.Run("options", func(t *testing.T) {
		root, err := New[staticBox](worldBounds,
			WithMaxRecordsPerNode(3),
			WithMaxDepth(2),
			WithParallel(false),
		)
		require.NoError(t, err)
		require.Equal(t, 3, root.MaxRecordsPerNode())
		require.Equal(t, 2, root.MaxDepth())
		require.False(t, root.tree.aware)
		require.False(t, root.tree.parallel)
		require.Equal(t, volumeLocation, root.tree.kind)
	})

	t.Run("record located by both a point and a volume", func(t *testing.T) {
		_, err := New[pointAndVolume](worldBounds)
		require.Error(t, err)
		require.True(t, errors.IsType(err, ErrTypeInvalidRecordType))
	})

	t.Run("record without location", func(t *testing.T) {
		_, err := New[unlocated](worldBounds)
		require.Error(t, err)
		require.True(t, errors.IsType(err, ErrTypeInvalidRecordType))
	})

	t.Run("invalid config", func(t *testing.T) {
		_, err := New[*point](geom.NewBox(vec(1, 1, 1), vec(-1, -1, -1)))
		require.True(t, errors.IsType(err, ErrTypeInvalidConfig))

		_, err = New[*point](worldBounds, WithMaxRecordsPerNode(0))
		require.True(t, errors.IsType(err, ErrTypeInvalidConfig))

		_, err = New[*point](worldBounds, WithMaxDepth(-1))
		require.True(t, errors.IsType(err, ErrTypeInvalidConfig))
	})
}

func TestAdd(t *testing.T) {
	root, err := New[*point](worldBounds, WithMaxRecordsPerNode(4))
	require.NoError(t, err)

	t.Run("outside of bounds", func(t *testing.T) {
		p := &point{Pos: vec(101, 0, 0)}
		require.False(t, root.Add(p))
		require.Nil(t, p.owner)
		require.Empty(t, root.AllData())
	})

	t.Run("on the boundary", func(t *testing.T) {
		p := &point{Pos: vec(100, -100, 0)}
		require.True(t, root.Add(p))
		require.Same(t, root, p.owner)
	})

	t.Run("straddling volume stays at the root", func(t *testing.T) {
		root, err := New[*volume](worldBounds, WithMaxRecordsPerNode(1))
		require.NoError(t, err)

		inside := &volume{Box: cube(vec(50, 50, 50), 1)}
		straddling := &volume{Box: cube(vec(0, 50, 50), 1)}
		require.True(t, root.Add(inside))
		require.True(t, root.Add(straddling))

		require.False(t, root.IsLeaf())
		require.Same(t, root, straddling.owner)
		require.Equal(t, 7, indexOf(root.Children(), inside.owner))
		requireInvariants(t, root)
	})

	t.Run("direct count can exceed the threshold", func(t *testing.T) {
		root, err := New[*volume](worldBounds, WithMaxRecordsPerNode(2))
		require.NoError(t, err)

		for i := 0; i < 10; i++ {
			require.True(t, root.Add(&volume{ID: i, Box: cube(vec(0, 0, float32(i)), 5)}))
		}
		require.Equal(t, 10, root.Len())
		require.False(t, root.IsLeaf())
		requireInvariants(t, root)
	})

	t.Run("max depth", func(t *testing.T) {
		root, err := New[*point](worldBounds, WithMaxRecordsPerNode(1), WithMaxDepth(2))
		require.NoError(t, err)

		for i := 0; i < 10; i++ {
			require.True(t, root.Add(&point{ID: i, Pos: vec(90, 90, 90)}))
		}

		stats := root.Stats()
		require.Equal(t, 2, stats.MaxDepth)
		require.Equal(t, 10, stats.MaxRecords)
		require.Equal(t, 10, stats.Records)
		requireInvariants(t, root)
	})
}

func indexOf[T comparable](nodes []*Node[T], n *Node[T]) int {
	for i, node := range nodes {
		if node == n {
			return i
		}
	}
	return -1
}

func TestScenarioClusteredSplit(t *testing.T) {
	root, err := New[*point](worldBounds, WithMaxRecordsPerNode(4), WithMaxDepth(4))
	require.NoError(t, err)

	positions := []geom.Vector3f{
		vec(10, 10, 10),
		vec(20, 20, 20),
		vec(30, 30, 30),
		vec(40, 40, 40),
		vec(60, 60, 60),
	}
	for i, p := range positions {
		require.True(t, root.Add(&point{ID: i, Pos: p}))
	}

	require.False(t, root.IsLeaf())
	require.Zero(t, root.Len())

	children := root.Children()
	for i := 0; i < 7; i++ {
		require.Empty(t, children[i].AllData())
		require.True(t, children[i].IsLeaf())
	}
	require.ElementsMatch(t, []int{0, 1, 2, 3, 4}, pointIDs(children[7].AllData()))
	requireInvariants(t, root)
}

func TestScenarioStraddlingSplit(t *testing.T) {
	root, err := New[*volume](worldBounds)
	require.NoError(t, err)

	straddling := &volume{Box: geom.NewBox(vec(-1, 10, 10), vec(1, 20, 20))}
	require.True(t, root.Add(straddling))
	require.True(t, root.Split())
	require.False(t, root.Split())

	nodes := root.AllNodes()
	require.Len(t, nodes, 9)
	require.Equal(t, []*volume{straddling}, nodes[0].Records())
	for _, n := range nodes[1:] {
		require.Zero(t, n.Len())
	}
	require.Same(t, root, straddling.owner)
	requireInvariants(t, root)
}

func TestSplitPushesDownOneLevel(t *testing.T) {
	root, err := New[*point](worldBounds, WithMaxRecordsPerNode(100))
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		require.True(t, root.Add(&point{ID: i, Pos: vec(90, 90, float32(90-i))}))
	}
	require.True(t, root.Split())

	child := root.Children()[7]
	require.True(t, child.IsLeaf())
	require.Equal(t, []int{0, 1, 2, 3, 4}, pointIDs(child.Records()))
}

func TestPartitionInvariant(t *testing.T) {
	rnd := rand.New(rand.NewSource(7))

	root, err := New[*volume](worldBounds, WithMaxRecordsPerNode(3))
	require.NoError(t, err)

	for _, v := range newVolumes(randomBoxes(rnd, 500, 95, 4)) {
		require.True(t, root.Add(v))
	}

	require.Len(t, root.AllData(), 500)
	requireInvariants(t, root)
}

func TestAllNodesOrder(t *testing.T) {
	root, err := New[*point](worldBounds, WithMaxRecordsPerNode(1))
	require.NoError(t, err)

	require.True(t, root.Add(&point{ID: 0, Pos: vec(-50, -50, -50)}))
	require.True(t, root.Add(&point{ID: 1, Pos: vec(50, 50, 50)}))

	nodes := root.AllNodes()
	require.Len(t, nodes, 9)
	require.Same(t, root, nodes[0])
	for i, c := range root.Children() {
		require.Same(t, c, nodes[i+1])
	}
	require.Equal(t, []int{0, 1}, pointIDs(root.AllData()))

	// snapshots are not live views:
	records := nodes[1].Records()
	records[0] = nil
	require.NotNil(t, nodes[1].Records()[0])
}

func TestStats(t *testing.T) {
	root, err := New[*point](worldBounds, WithMaxRecordsPerNode(1))
	require.NoError(t, err)

	require.Equal(t, Stats{Nodes: 1, Leaves: 1}, root.Stats())

	require.True(t, root.Add(&point{Pos: vec(-50, -50, -50)}))
	require.True(t, root.Add(&point{Pos: vec(50, 50, 50)}))

	require.Equal(t, Stats{
		Nodes:      9,
		Leaves:     8,
		Records:    2,
		MaxDepth:   1,
		MaxRecords: 1,
	}, root.Stats())
}
