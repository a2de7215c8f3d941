package octree

import (
	"math/rand"
	"testing"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/octree/geom"
	"github.com/stretchr/testify/require"
)

var worldBounds = geom.NewBox(
	geom.Vector3f{X: -100, Y: -100, Z: -100},
	geom.Vector3f{X: 100, Y: 100, Z: 100},
)

type point struct {
	ID    int
	Pos   geom.Vector3f
	owner *Node[*point]
}

func (p *point) Position() geom.Vector3f   { return p.Pos }
func (p *point) Owner() *Node[*point]      { return p.owner }
func (p *point) SetOwner(n *Node[*point]) { p.owner = n }

type volume struct {
	ID    int
	Box   geom.Box
	owner *Node[*volume]
}

func (v *volume) Bounds() geom.Box            { return v.Box }
func (v *volume) Owner() *Node[*volume]      { return v.owner }
func (v *volume) SetOwner(n *Node[*volume]) { v.owner = n }

func (v *volume) move(offset geom.Vector3f) {
	v.Box = v.Box.Translate(offset)
}

// staticBox is a volume record that does not track its owner.
type staticBox struct {
	Box geom.Box
}

func (b staticBox) Bounds() geom.Box { return b.Box }

type pointAndVolume struct{}

func (pointAndVolume) Position() geom.Vector3f { return geom.Vector3f{} }
func (pointAndVolume) Bounds() geom.Box        { return geom.Box{} }

type unlocated struct{}

func vec(x, y, z float32) geom.Vector3f {
	return geom.Vector3f{X: x, Y: y, Z: z}
}

func cube(center geom.Vector3f, halfSize float32) geom.Box {
	return geom.NewBoxFromCenter(center, vec(halfSize, halfSize, halfSize))
}

func randomBoxes(rnd *rand.Rand, count int, spread, maxHalfSize float32) []geom.Box {
	boxes := make([]geom.Box, count)
	for i := range boxes {
		center := vec(
			(rnd.Float32()*2-1)*spread,
			(rnd.Float32()*2-1)*spread,
			(rnd.Float32()*2-1)*spread,
		)
		extents := vec(
			rnd.Float32()*maxHalfSize,
			rnd.Float32()*maxHalfSize,
			rnd.Float32()*maxHalfSize,
		)
		boxes[i] = geom.NewBoxFromCenter(center, extents)
	}
	return boxes
}

func newVolumes(boxes []geom.Box) []*volume {
	volumes := make([]*volume, len(boxes))
	for i, b := range boxes {
		volumes[i] = &volume{ID: i, Box: b}
	}
	return volumes
}

func volumeIDs(volumes []*volume) []int {
	ids := make([]int, len(volumes))
	for i, v := range volumes {
		ids[i] = v.ID
	}
	return ids
}

func pointIDs(points []*point) []int {
	ids := make([]int, len(points))
	for i, p := range points {
		ids[i] = p.ID
	}
	return ids
}

func requirePanicType(t *testing.T, errType string, fn func()) {
	t.Helper()

	defer func() {
		r := recover()
		require.NotNil(t, r, "expected a panic")

		err, ok := r.(error)
		require.True(t, ok, "panic value is not an error: %v", r)
		require.True(t, errors.IsType(err, errType), "unexpected error: %v", err)
	}()

	fn()
}

func boxVolume(b geom.Box) float64 {
	s := b.Size()
	return float64(s.X) * float64(s.Y) * float64(s.Z)
}

func overlapVolume(a, b geom.Box) float64 {
	lo := a.Min.Max(b.Min)
	hi := a.Max.Min(b.Max)
	if hi.X <= lo.X || hi.Y <= lo.Y || hi.Z <= lo.Z {
		return 0
	}
	return boxVolume(geom.Box{Min: lo, Max: hi})
}

// requireInvariants checks that children partition their parent and that
// every record is fully contained by the node owning it.
func requireInvariants[T comparable](t *testing.T, root *Node[T]) {
	t.Helper()

	for _, n := range root.AllNodes() {
		for _, r := range n.Records() {
			require.True(t, n.Bounds().ContainsBox(n.tree.bounds(r)),
				"record %v is not contained by node %v", r, n.Bounds())

			if n.tree.aware {
				require.Same(t, n, n.tree.owner(r))
			}
		}

		children := n.Children()
		if children == nil {
			continue
		}
		require.Len(t, children, 8)

		var sum float64
		for i, c := range children {
			require.Same(t, n, c.Parent())
			require.Equal(t, n.Depth()+1, c.Depth())
			require.True(t, n.Bounds().ContainsBox(c.Bounds()))
			sum += boxVolume(c.Bounds())

			for _, other := range children[i+1:] {
				require.Zero(t, overlapVolume(c.Bounds(), other.Bounds()))
			}
		}
		require.InDelta(t, boxVolume(n.Bounds()), sum, boxVolume(n.Bounds())*1e-6)
	}
}

// shape describes the topology of a tree: the bounds of every node and the
// number of records it directly owns.
type shape struct {
	Bounds geom.Box
	Len    int
}

func shapeOf[T comparable](root *Node[T]) []shape {
	var shapes []shape
	for _, n := range root.AllNodes() {
		shapes = append(shapes, shape{Bounds: n.Bounds(), Len: n.Len()})
	}
	return shapes
}
