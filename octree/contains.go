package octree

import (
	"github.com/aukilabs/octree/geom"
)

// classify returns the records of the subtree whose containment against a
// query volume equals kind.
//
// For kind Disjoint, only the subtrees fully contained by the volume are
// skipped since any other node may hold records lying outside of it. For the
// other kinds, disjoint subtrees are skipped.
func (n *Node[T]) classify(
	classifyBox func(geom.Box) geom.ContainmentType,
	containsPoint func(geom.Vector3f) bool,
	kind geom.ContainmentType,
) []T {
	broad := func(b geom.Box) bool {
		c := classifyBox(b)
		if kind == geom.Disjoint {
			return c != geom.Contains
		}
		return c != geom.Disjoint
	}

	narrow := n.tree.narrow(
		func(p geom.Vector3f) bool {
			c := geom.Disjoint
			if containsPoint(p) {
				c = geom.Contains
			}
			return c == kind
		},
		func(b geom.Box) bool {
			return classifyBox(b) == kind
		},
	)

	return n.walk(broad, narrow, nil)
}

// ContainsBox returns the records whose containment in box is kind. Point
// records are either contained or disjoint.
func (n *Node[T]) ContainsBox(box geom.Box, kind geom.ContainmentType) []T {
	return n.classify(box.ClassifyBox, box.ContainsPoint, kind)
}

// ContainsSphere returns the records whose containment in sphere is kind.
func (n *Node[T]) ContainsSphere(sphere geom.Sphere, kind geom.ContainmentType) []T {
	return n.classify(sphere.ClassifyBox, sphere.ContainsPoint, kind)
}

// ContainsFrustum returns the records whose containment in frustum is kind.
// Boxes close to a frustum corner may be classified as intersecting while
// lying outside of it.
func (n *Node[T]) ContainsFrustum(frustum geom.Frustum, kind geom.ContainmentType) []T {
	return n.classify(frustum.ClassifyBox, frustum.ContainsPoint, kind)
}
