package geom

import (
	"math"
)

// Epsilon is the tolerance used by the comparisons that have to absorb
// float32 rounding, such as point-on-ray tests.
const Epsilon = (float32)(1e-5)

func Swap(a *float32, b *float32) {
	*a, *b = *b, *a
}

func EqualWithEpsilon(a float32, b float32, epsilon float64) bool {
	return math.Abs((float64)(a-b)) <= epsilon
}

func InRangeWithEpsilon(value float32, min float32, max float32, epsilon float32) bool {
	return value+epsilon >= min && value-epsilon <= max
}

// Vector3f is a point or a direction in world space.
type Vector3f struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
	Z float32 `json:"z"`
}

func NewVector3f(x, y, z float32) Vector3f {
	return Vector3f{x, y, z}
}

func (v1 Vector3f) EqualWithEpsilon(v2 Vector3f, epsilon float64) bool {
	return EqualWithEpsilon(v1.X, v2.X, epsilon) &&
		EqualWithEpsilon(v1.Y, v2.Y, epsilon) &&
		EqualWithEpsilon(v1.Z, v2.Z, epsilon)
}

func (v1 Vector3f) Equal(v2 Vector3f) bool {
	return v1.X == v2.X && v1.Y == v2.Y && v1.Z == v2.Z
}

func (v1 Vector3f) GreaterOrEqualThan(v2 Vector3f) bool {
	return v1.X >= v2.X && v1.Y >= v2.Y && v1.Z >= v2.Z
}

func (v1 Vector3f) LesserOrEqualThan(v2 Vector3f) bool {
	return v1.X <= v2.X && v1.Y <= v2.Y && v1.Z <= v2.Z
}

func (v1 Vector3f) Add(v2 Vector3f) Vector3f {
	return Vector3f{v1.X + v2.X, v1.Y + v2.Y, v1.Z + v2.Z}
}

func (v1 Vector3f) Sub(v2 Vector3f) Vector3f {
	return Vector3f{v1.X - v2.X, v1.Y - v2.Y, v1.Z - v2.Z}
}

func (v1 Vector3f) Mul(s float32) Vector3f {
	return Vector3f{v1.X * s, v1.Y * s, v1.Z * s}
}

func (v1 Vector3f) Dot(v2 Vector3f) float32 {
	return v1.X*v2.X + v1.Y*v2.Y + v1.Z*v2.Z
}

func (v1 Vector3f) Cross(v2 Vector3f) Vector3f {
	return Vector3f{v1.Y*v2.Z - v1.Z*v2.Y, v1.Z*v2.X - v1.X*v2.Z, v1.X*v2.Y - v1.Y*v2.X}
}

func (v1 Vector3f) Length() float32 {
	return (float32)(math.Sqrt((float64)(v1.Dot(v1))))
}

func (v1 Vector3f) LengthSquared() float32 {
	return v1.Dot(v1)
}

// Normalized returns the unit vector of v1, or v1 itself when its length is
// zero.
func (v1 Vector3f) Normalized() Vector3f {
	length := v1.Length()
	if length == 0 {
		return v1
	}
	return Vector3f{v1.X / length, v1.Y / length, v1.Z / length}
}

func (v1 Vector3f) Min(v2 Vector3f) Vector3f {
	return Vector3f{min(v1.X, v2.X), min(v1.Y, v2.Y), min(v1.Z, v2.Z)}
}

func (v1 Vector3f) Max(v2 Vector3f) Vector3f {
	return Vector3f{max(v1.X, v2.X), max(v1.Y, v2.Y), max(v1.Z, v2.Z)}
}

func (v1 Vector3f) DistanceSquared(v2 Vector3f) float32 {
	return v1.Sub(v2).LengthSquared()
}

// Vector2f is a point in screen space.
type Vector2f struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
}
