package geom

// Rect is a screen space rectangle. Y grows downward.
type Rect struct {
	X      float32 `json:"x"`
	Y      float32 `json:"y"`
	Width  float32 `json:"width"`
	Height float32 `json:"height"`
}

func NewRect(x, y, width, height float32) Rect {
	return Rect{X: x, Y: y, Width: width, Height: height}
}

// NewRectFromPoints returns the smallest rect holding all the given points.
func NewRectFromPoints(points ...Vector2f) Rect {
	if len(points) == 0 {
		return Rect{}
	}

	minX, minY := points[0].X, points[0].Y
	maxX, maxY := minX, minY
	for _, p := range points[1:] {
		minX, minY = min(minX, p.X), min(minY, p.Y)
		maxX, maxY = max(maxX, p.X), max(maxY, p.Y)
	}
	return Rect{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
}

func (r Rect) Right() float32 {
	return r.X + r.Width
}

func (r Rect) Bottom() float32 {
	return r.Y + r.Height
}

func (r Rect) ContainsPoint(p Vector2f) bool {
	return p.X >= r.X && p.X <= r.Right() && p.Y >= r.Y && p.Y <= r.Bottom()
}

func (r Rect) ContainsRect(other Rect) bool {
	return other.X >= r.X && other.Right() <= r.Right() &&
		other.Y >= r.Y && other.Bottom() <= r.Bottom()
}

func (r Rect) IntersectsRect(other Rect) bool {
	return other.X <= r.Right() && other.Right() >= r.X &&
		other.Y <= r.Bottom() && other.Bottom() >= r.Y
}

// Viewport maps normalized device coordinates onto a screen rectangle and a
// depth range.
type Viewport struct {
	Rect     `json:"rect"`
	MinDepth float32 `json:"min_depth"`
	MaxDepth float32 `json:"max_depth"`
}

// Project transforms p by the world-view-projection transform m and maps the
// result into the viewport. The returned Z is the depth in
// [MinDepth, MaxDepth] for points inside the view volume.
func (v Viewport) Project(p Vector3f, m Matrix4) Vector3f {
	ndc := m.TransformCoordinate(p)
	return Vector3f{
		X: (ndc.X+1)*0.5*v.Width + v.X,
		Y: (1-ndc.Y)*0.5*v.Height + v.Y,
		Z: (ndc.Z*0.5+0.5)*(v.MaxDepth-v.MinDepth) + v.MinDepth,
	}
}

// ProjectBox projects the 8 corners of b and returns their screen bounds.
// Corners behind the camera project mirrored. A frustum test only rejects
// boxes fully outside the view, so the bounds of a box partly behind the
// camera may be wrong.
func (v Viewport) ProjectBox(b Box, m Matrix4) Rect {
	var points [8]Vector2f
	for i, c := range b.Corners() {
		projected := v.Project(c, m)
		points[i] = Vector2f{projected.X, projected.Y}
	}
	return NewRectFromPoints(points[:]...)
}
