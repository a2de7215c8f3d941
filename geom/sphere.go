package geom

// Sphere is a bounding sphere.
type Sphere struct {
	Center Vector3f `json:"center"`
	Radius float32  `json:"radius"`
}

func NewSphere(center Vector3f, radius float32) Sphere {
	return Sphere{Center: center, Radius: radius}
}

func (s Sphere) ContainsPoint(p Vector3f) bool {
	return s.Center.DistanceSquared(p) <= s.Radius*s.Radius
}

func (s Sphere) IntersectsBox(b Box) bool {
	return s.ContainsPoint(b.ClosestPoint(s.Center))
}

// ClassifyBox returns how b relates to the sphere. A box is contained when
// all of its corners are.
func (s Sphere) ClassifyBox(b Box) ContainmentType {
	if !s.IntersectsBox(b) {
		return Disjoint
	}
	for _, c := range b.Corners() {
		if !s.ContainsPoint(c) {
			return Intersects
		}
	}
	return Contains
}

// Bounds returns the smallest box holding the sphere.
func (s Sphere) Bounds() Box {
	r := Vector3f{s.Radius, s.Radius, s.Radius}
	return NewBoxFromCenter(s.Center, r)
}
