package octree

import (
	"github.com/aukilabs/octree/geom"
)

// walk appends to out the records of the subtree passing narrow, skipping
// the subtrees whose bounds fail broad.
func (n *Node[T]) walk(broad func(geom.Box) bool, narrow func(T) bool, out []T) []T {
	if !broad(n.bounds) {
		return out
	}

	for _, r := range n.records {
		if narrow(r) {
			out = append(out, r)
		}
	}
	for _, c := range n.children {
		out = c.walk(broad, narrow, out)
	}
	return out
}

// IntersectsRay returns the volume records whose box is hit by ray, or the
// point records lying on it.
func (n *Node[T]) IntersectsRay(ray geom.Ray) []T {
	return n.walk(
		n.tree.broad(ray.NearBox, ray.IntersectsBox),
		n.tree.narrow(ray.ContainsPoint, ray.IntersectsBox),
		nil,
	)
}

// IntersectsPoint returns the volume records containing p, or the point
// records located at p.
func (n *Node[T]) IntersectsPoint(p geom.Vector3f) []T {
	contains := func(b geom.Box) bool {
		return b.ContainsPoint(p)
	}

	return n.walk(
		n.tree.broad(
			func(b geom.Box) bool {
				return b.ContainsPointWithEpsilon(p, geom.Epsilon)
			},
			contains,
		),
		n.tree.narrow(
			func(v geom.Vector3f) bool {
				return v.EqualWithEpsilon(p, float64(geom.Epsilon))
			},
			contains,
		),
		nil,
	)
}

// IntersectsBox returns the volume records intersecting box, or the point
// records inside it.
func (n *Node[T]) IntersectsBox(box geom.Box) []T {
	return n.walk(box.IntersectsBox, n.tree.narrow(box.ContainsPoint, box.IntersectsBox), nil)
}

// IntersectsSphere returns the volume records intersecting sphere, or the
// point records inside it.
func (n *Node[T]) IntersectsSphere(sphere geom.Sphere) []T {
	return n.walk(sphere.IntersectsBox, n.tree.narrow(sphere.ContainsPoint, sphere.IntersectsBox), nil)
}

// IntersectsFrustum returns the volume records intersecting frustum, or the
// point records inside it.
func (n *Node[T]) IntersectsFrustum(frustum geom.Frustum) []T {
	return n.walk(frustum.IntersectsBox, n.tree.narrow(frustum.ContainsPoint, frustum.IntersectsBox), nil)
}

// ScreenProjectionParams describes how world space maps to the screen for
// IntersectsScreen.
type ScreenProjectionParams struct {
	Viewport geom.Viewport

	// The combined world-view-projection transform.
	Transform geom.Matrix4

	// The view frustum of Transform, used to reject what is not visible
	// before projecting.
	Frustum geom.Frustum
}

// NewScreenProjectionParams returns the params of a viewport and a
// world-view-projection transform, deriving the frustum from the transform.
func NewScreenProjectionParams(viewport geom.Viewport, transform geom.Matrix4) ScreenProjectionParams {
	return ScreenProjectionParams{
		Viewport:  viewport,
		Transform: transform,
		Frustum:   geom.NewFrustumFromMatrix(transform),
	}
}

// IntersectsScreen returns the visible records whose projection on screen
// intersects rect. With containsOnly, the projection has to be fully inside
// rect. Volume records are projected through their 8 box corners.
func (n *Node[T]) IntersectsScreen(rect geom.Rect, params ScreenProjectionParams, containsOnly bool) []T {
	testRect := rect.IntersectsRect
	if containsOnly {
		testRect = rect.ContainsRect
	}

	return n.walk(
		params.Frustum.IntersectsBox,
		n.tree.narrow(
			func(p geom.Vector3f) bool {
				if !params.Frustum.ContainsPoint(p) {
					return false
				}
				projected := params.Viewport.Project(p, params.Transform)
				return rect.ContainsPoint(geom.Vector2f{X: projected.X, Y: projected.Y})
			},
			func(b geom.Box) bool {
				if !params.Frustum.IntersectsBox(b) {
					return false
				}
				return testRect(params.Viewport.ProjectBox(b, params.Transform))
			},
		),
		nil,
	)
}
