package models

import (
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/octree/geom"
	"github.com/aukilabs/octree/octree"
)

const (
	ShapeRay     = "ray"
	ShapePoint   = "point"
	ShapeBox     = "box"
	ShapeSphere  = "sphere"
	ShapeFrustum = "frustum"
	ShapeScreen  = "screen"
)

// Query describes a spatial query against the entities of a world. Only the
// field matching Shape is read.
type Query struct {
	Shape string `json:"shape"`

	// The containment classification returned by box, sphere and frustum
	// queries: disjoint, intersects or contains. Empty runs an intersection
	// query.
	Contains string `json:"contains,omitempty"`

	Ray    *geom.Ray      `json:"ray,omitempty"`
	Point  *geom.Vector3f `json:"point,omitempty"`
	Box    *geom.Box      `json:"box,omitempty"`
	Sphere *geom.Sphere   `json:"sphere,omitempty"`

	// The view-projection transform whose frustum is queried.
	Frustum *geom.Matrix4 `json:"frustum,omitempty"`

	Screen *ScreenQuery `json:"screen,omitempty"`
}

type ScreenQuery struct {
	Rect         geom.Rect     `json:"rect"`
	Viewport     geom.Viewport `json:"viewport"`
	Transform    geom.Matrix4  `json:"transform"`
	ContainsOnly bool          `json:"contains_only,omitempty"`
}

func (q Query) run(index *octree.Node[*Entity]) ([]*Entity, error) {
	var kind geom.ContainmentType
	classify := q.Contains != ""
	if classify {
		var ok bool
		if kind, ok = geom.ParseContainmentType(q.Contains); !ok {
			return nil, q.invalid("unknown containment type")
		}
	}

	switch q.Shape {
	case ShapeRay:
		if q.Ray == nil || classify {
			return nil, q.invalid("a ray query requires a ray and no containment type")
		}
		return index.IntersectsRay(*q.Ray), nil

	case ShapePoint:
		if q.Point == nil || classify {
			return nil, q.invalid("a point query requires a point and no containment type")
		}
		return index.IntersectsPoint(*q.Point), nil

	case ShapeBox:
		if q.Box == nil || q.Box.IsEmpty() {
			return nil, q.invalid("a box query requires a non empty box")
		}
		if classify {
			return index.ContainsBox(*q.Box, kind), nil
		}
		return index.IntersectsBox(*q.Box), nil

	case ShapeSphere:
		if q.Sphere == nil || q.Sphere.Radius < 0 {
			return nil, q.invalid("a sphere query requires a sphere with a positive radius")
		}
		if classify {
			return index.ContainsSphere(*q.Sphere, kind), nil
		}
		return index.IntersectsSphere(*q.Sphere), nil

	case ShapeFrustum:
		if q.Frustum == nil {
			return nil, q.invalid("a frustum query requires a view-projection transform")
		}
		frustum := geom.NewFrustumFromMatrix(*q.Frustum)
		if classify {
			return index.ContainsFrustum(frustum, kind), nil
		}
		return index.IntersectsFrustum(frustum), nil

	case ShapeScreen:
		if q.Screen == nil || classify {
			return nil, q.invalid("a screen query requires screen params and no containment type")
		}
		params := octree.NewScreenProjectionParams(q.Screen.Viewport, q.Screen.Transform)
		return index.IntersectsScreen(q.Screen.Rect, params, q.Screen.ContainsOnly), nil

	default:
		return nil, q.invalid("unknown query shape")
	}
}

func (q Query) invalid(msg string) error {
	return errors.New(msg).
		WithType(ErrTypeInvalidQuery).
		WithTag("shape", q.Shape).
		WithTag("contains", q.Contains)
}
