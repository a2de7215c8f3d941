package geom

import (
	"math"
)

// Matrix4 is a 4x4 transform stored in column-major order: the element at
// row r and column c is m[c*4+r]. Points are column vectors multiplied on the
// right.
type Matrix4 [16]float32

func Identity() Matrix4 {
	return Matrix4{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

// Translation returns the transform that moves points by offset.
func Translation(offset Vector3f) Matrix4 {
	m := Identity()
	m[12] = offset.X
	m[13] = offset.Y
	m[14] = offset.Z
	return m
}

// Orthographic returns an OpenGL style orthographic projection looking down
// -Z. Visible depths are in [-far, -near].
func Orthographic(left, right, bottom, top, near, far float32) Matrix4 {
	var m Matrix4
	m[0] = 2 / (right - left)
	m[5] = 2 / (top - bottom)
	m[10] = -2 / (far - near)
	m[12] = -(right + left) / (right - left)
	m[13] = -(top + bottom) / (top - bottom)
	m[14] = -(far + near) / (far - near)
	m[15] = 1
	return m
}

// Perspective returns an OpenGL style perspective projection. fovY is in
// radians.
func Perspective(fovY, aspect, near, far float32) Matrix4 {
	f := (float32)(1 / math.Tan((float64)(fovY)/2))

	var m Matrix4
	m[0] = f / aspect
	m[5] = f
	m[10] = (far + near) / (near - far)
	m[11] = -1
	m[14] = 2 * far * near / (near - far)
	return m
}

// LookAt returns the view transform of a camera at eye looking at target.
func LookAt(eye, target, up Vector3f) Matrix4 {
	f := target.Sub(eye).Normalized()
	s := f.Cross(up).Normalized()
	u := s.Cross(f)

	return Matrix4{
		s.X, u.X, -f.X, 0,
		s.Y, u.Y, -f.Y, 0,
		s.Z, u.Z, -f.Z, 0,
		-s.Dot(eye), -u.Dot(eye), f.Dot(eye), 1,
	}
}

// Mul returns m * o, the transform applying o first and then m.
func (m Matrix4) Mul(o Matrix4) Matrix4 {
	var r Matrix4
	for c := 0; c < 4; c++ {
		for row := 0; row < 4; row++ {
			var sum float32
			for k := 0; k < 4; k++ {
				sum += m[k*4+row] * o[c*4+k]
			}
			r[c*4+row] = sum
		}
	}
	return r
}

// Transform returns the homogeneous coordinates of p (w = 1) after applying
// m.
func (m Matrix4) Transform(p Vector3f) (Vector3f, float32) {
	return Vector3f{
		m[0]*p.X + m[4]*p.Y + m[8]*p.Z + m[12],
		m[1]*p.X + m[5]*p.Y + m[9]*p.Z + m[13],
		m[2]*p.X + m[6]*p.Y + m[10]*p.Z + m[14],
	}, m[3]*p.X + m[7]*p.Y + m[11]*p.Z + m[15]
}

// TransformCoordinate applies m to p and performs the perspective divide.
func (m Matrix4) TransformCoordinate(p Vector3f) Vector3f {
	v, w := m.Transform(p)
	if w != 0 && w != 1 {
		v = v.Mul(1 / w)
	}
	return v
}

// row returns the r-th row of m.
func (m Matrix4) row(r int) (float32, float32, float32, float32) {
	return m[r], m[4+r], m[8+r], m[12+r]
}
