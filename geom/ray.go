package geom

import (
	"math"
)

// Ray is a half-line starting at Origin and going along Direction. Direction
// does not need to be normalized.
type Ray struct {
	Origin    Vector3f `json:"origin"`
	Direction Vector3f `json:"direction"`
}

func NewRay(origin, direction Vector3f) Ray {
	return Ray{Origin: origin, Direction: direction}
}

// At returns the point at parameter t along the ray.
func (r Ray) At(t float32) Vector3f {
	return r.Origin.Add(r.Direction.Mul(t))
}

// IntersectBox returns the smallest non-negative ray parameter at which the
// ray enters b. It uses the slab method; a ray starting inside b hits it at
// t = 0.
func (r Ray) IntersectBox(b Box) (float32, bool) {
	tMin := float32(0)
	tMax := (float32)(math.Inf(1))

	origin := [3]float32{r.Origin.X, r.Origin.Y, r.Origin.Z}
	dir := [3]float32{r.Direction.X, r.Direction.Y, r.Direction.Z}
	lo := [3]float32{b.Min.X, b.Min.Y, b.Min.Z}
	hi := [3]float32{b.Max.X, b.Max.Y, b.Max.Z}

	for axis := 0; axis < 3; axis++ {
		if dir[axis] == 0 {
			// parallel to the slab:
			if origin[axis] < lo[axis] || origin[axis] > hi[axis] {
				return -1, false
			}
			continue
		}

		t1 := (lo[axis] - origin[axis]) / dir[axis]
		t2 := (hi[axis] - origin[axis]) / dir[axis]
		if t1 > t2 {
			Swap(&t1, &t2)
		}

		tMin = max(tMin, t1)
		tMax = min(tMax, t2)
		if tMin > tMax {
			return -1, false
		}
	}
	return tMin, true
}

func (r Ray) IntersectsBox(b Box) bool {
	_, hit := r.IntersectBox(b)
	return hit
}

// NearBox reports whether the ray passes close enough to b for ContainsPoint
// to accept one of its points. It holds whenever IntersectsBox does.
func (r Ray) NearBox(b Box) bool {
	var farthest float32
	for _, c := range b.Corners() {
		farthest = max(farthest, r.Origin.DistanceSquared(c))
	}

	margin := 2 * pointTolerance((float32)(math.Sqrt((float64)(farthest))))
	return r.IntersectsBox(b.Expand(margin))
}

func pointTolerance(distance float32) float32 {
	return Epsilon * max(1, distance)
}

// ContainsPoint reports whether p lies on the ray. The tolerance is Epsilon
// relative to the distance between p and the ray origin.
func (r Ray) ContainsPoint(p Vector3f) bool {
	offset := p.Sub(r.Origin)
	closest := r.Origin
	if lengthSquared := r.Direction.LengthSquared(); lengthSquared != 0 {
		t := offset.Dot(r.Direction) / lengthSquared
		if t > 0 {
			closest = r.At(t)
		}
	}

	tolerance := pointTolerance(offset.Length())
	return closest.DistanceSquared(p) <= tolerance*tolerance
}
