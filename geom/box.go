package geom

// Box is an axis-aligned cuboid. Bounds are inclusive on both ends.
type Box struct {
	Min Vector3f `json:"min"`
	Max Vector3f `json:"max"`
}

func NewBox(min, max Vector3f) Box {
	return Box{Min: min, Max: max}
}

// NewBoxFromCenter returns the box centered on center with the given
// half-extents.
func NewBoxFromCenter(center, extents Vector3f) Box {
	return Box{
		Min: center.Sub(extents),
		Max: center.Add(extents),
	}
}

// NewBoxFromPoints returns the smallest box holding all the given points.
func NewBoxFromPoints(points ...Vector3f) Box {
	if len(points) == 0 {
		return Box{}
	}

	b := Box{Min: points[0], Max: points[0]}
	for _, p := range points[1:] {
		b.Min = b.Min.Min(p)
		b.Max = b.Max.Max(p)
	}
	return b
}

// IsEmpty reports whether the box is inverted on any axis. A degenerate box
// (min == max on some axis) is not empty.
func (b Box) IsEmpty() bool {
	return b.Max.X < b.Min.X || b.Max.Y < b.Min.Y || b.Max.Z < b.Min.Z
}

func (b Box) Center() Vector3f {
	return b.Min.Add(b.Max).Mul(0.5)
}

func (b Box) Size() Vector3f {
	return b.Max.Sub(b.Min)
}

// Extents returns the half-size of the box.
func (b Box) Extents() Vector3f {
	return b.Size().Mul(0.5)
}

func (b Box) Translate(offset Vector3f) Box {
	return Box{Min: b.Min.Add(offset), Max: b.Max.Add(offset)}
}

func (b Box) ContainsPoint(p Vector3f) bool {
	return p.GreaterOrEqualThan(b.Min) && p.LesserOrEqualThan(b.Max)
}

// ContainsPointWithEpsilon reports whether p lies inside b grown by epsilon
// on every axis.
func (b Box) ContainsPointWithEpsilon(p Vector3f, epsilon float32) bool {
	return InRangeWithEpsilon(p.X, b.Min.X, b.Max.X, epsilon) &&
		InRangeWithEpsilon(p.Y, b.Min.Y, b.Max.Y, epsilon) &&
		InRangeWithEpsilon(p.Z, b.Min.Z, b.Max.Z, epsilon)
}

// Expand returns b grown by margin on every side.
func (b Box) Expand(margin float32) Box {
	offset := Vector3f{margin, margin, margin}
	return Box{Min: b.Min.Sub(offset), Max: b.Max.Add(offset)}
}

// ContainsBox reports whether other lies entirely inside b.
func (b Box) ContainsBox(other Box) bool {
	return other.Min.GreaterOrEqualThan(b.Min) && other.Max.LesserOrEqualThan(b.Max)
}

// IntersectsBox reports whether both boxes share at least one point.
func (b Box) IntersectsBox(other Box) bool {
	if other.Max.X < b.Min.X || other.Min.X > b.Max.X {
		return false
	}
	if other.Max.Y < b.Min.Y || other.Min.Y > b.Max.Y {
		return false
	}
	if other.Max.Z < b.Min.Z || other.Min.Z > b.Max.Z {
		return false
	}
	return true
}

// ClassifyBox returns how other relates to b.
func (b Box) ClassifyBox(other Box) ContainmentType {
	if !b.IntersectsBox(other) {
		return Disjoint
	}
	if b.ContainsBox(other) {
		return Contains
	}
	return Intersects
}

// Octant returns the i-th of the 8 equal sub-boxes of b. Octants are ordered
// with X outermost, then Y, then Z: bit 2 selects the upper X half, bit 1 the
// upper Y half and bit 0 the upper Z half.
func (b Box) Octant(i int) Box {
	c := b.Center()
	o := Box{Min: b.Min, Max: c}

	if i&4 != 0 {
		o.Min.X, o.Max.X = c.X, b.Max.X
	}
	if i&2 != 0 {
		o.Min.Y, o.Max.Y = c.Y, b.Max.Y
	}
	if i&1 != 0 {
		o.Min.Z, o.Max.Z = c.Z, b.Max.Z
	}
	return o
}

// Corners returns the 8 corners of the box, in octant order.
func (b Box) Corners() [8]Vector3f {
	var corners [8]Vector3f
	for i := range corners {
		p := b.Min
		if i&4 != 0 {
			p.X = b.Max.X
		}
		if i&2 != 0 {
			p.Y = b.Max.Y
		}
		if i&1 != 0 {
			p.Z = b.Max.Z
		}
		corners[i] = p
	}
	return corners
}

// ClosestPoint returns the point of b closest to p.
func (b Box) ClosestPoint(p Vector3f) Vector3f {
	return p.Max(b.Min).Min(b.Max)
}
