package geom

// Plane is the set of points p where Normal.Dot(p) + D == 0. Points with a
// positive distance are in front of the plane.
type Plane struct {
	Normal Vector3f `json:"normal"`
	D      float32  `json:"d"`
}

func newNormalizedPlane(a, b, c, d float32) Plane {
	p := Plane{Normal: Vector3f{a, b, c}, D: d}
	if length := p.Normal.Length(); length != 0 {
		p.Normal = p.Normal.Mul(1 / length)
		p.D /= length
	}
	return p
}

func (p Plane) Distance(v Vector3f) float32 {
	return p.Normal.Dot(v) + p.D
}

// Frustum is a convex volume bounded by 6 inward facing planes, in order:
// left, right, bottom, top, near, far.
type Frustum struct {
	Planes [6]Plane `json:"planes"`
}

// NewFrustumFromMatrix extracts the view frustum of a combined
// view-projection transform with OpenGL clip conventions.
func NewFrustumFromMatrix(m Matrix4) Frustum {
	x0, x1, x2, x3 := m.row(0)
	y0, y1, y2, y3 := m.row(1)
	z0, z1, z2, z3 := m.row(2)
	w0, w1, w2, w3 := m.row(3)

	return Frustum{
		Planes: [6]Plane{
			newNormalizedPlane(w0+x0, w1+x1, w2+x2, w3+x3),
			newNormalizedPlane(w0-x0, w1-x1, w2-x2, w3-x3),
			newNormalizedPlane(w0+y0, w1+y1, w2+y2, w3+y3),
			newNormalizedPlane(w0-y0, w1-y1, w2-y2, w3-y3),
			newNormalizedPlane(w0+z0, w1+z1, w2+z2, w3+z3),
			newNormalizedPlane(w0-z0, w1-z1, w2-z2, w3-z3),
		},
	}
}

func (f Frustum) ContainsPoint(p Vector3f) bool {
	for _, plane := range f.Planes {
		if plane.Distance(p) < 0 {
			return false
		}
	}
	return true
}

// ClassifyBox returns how b relates to the frustum. Boxes near a frustum
// corner can be reported as intersecting while being outside; they are never
// reported disjoint while being inside.
func (f Frustum) ClassifyBox(b Box) ContainmentType {
	result := Contains
	for _, plane := range f.Planes {
		// positive and negative vertices along the plane normal:
		positive, negative := b.Min, b.Max
		if plane.Normal.X >= 0 {
			positive.X, negative.X = b.Max.X, b.Min.X
		}
		if plane.Normal.Y >= 0 {
			positive.Y, negative.Y = b.Max.Y, b.Min.Y
		}
		if plane.Normal.Z >= 0 {
			positive.Z, negative.Z = b.Max.Z, b.Min.Z
		}

		if plane.Distance(positive) < 0 {
			return Disjoint
		}
		if plane.Distance(negative) < 0 {
			result = Intersects
		}
	}
	return result
}

func (f Frustum) IntersectsBox(b Box) bool {
	return f.ClassifyBox(b) != Disjoint
}

func (f Frustum) IntersectsSphere(s Sphere) bool {
	for _, plane := range f.Planes {
		if plane.Distance(s.Center) < -s.Radius {
			return false
		}
	}
	return true
}
