package octree

import (
	"reflect"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/octree/geom"
)

// PointLocated is implemented by records located at a single point.
type PointLocated interface {
	Position() geom.Vector3f
}

// VolumeLocated is implemented by records occupying an axis-aligned box.
type VolumeLocated interface {
	Bounds() geom.Box
}

// Aware is implemented by records that keep track of the node owning them.
// Remove and Update require it.
//
// The owner slot is written by the index only; records must not set it
// themselves.
type Aware[T comparable] interface {
	Owner() *Node[T]
	SetOwner(*Node[T])
}

type locationKind int

const (
	pointLocation locationKind = iota
	volumeLocation
)

func (k locationKind) String() string {
	if k == pointLocation {
		return "point"
	}
	return "volume"
}

// tree holds what every node of an index shares: thresholds, the location
// capability of the record type and how to reach the owner slot.
type tree[T comparable] struct {
	maxRecords int
	maxDepth   int
	parallel   bool
	aware      bool
	kind       locationKind
}

func newTree[T comparable](o options) (*tree[T], error) {
	recordType := reflect.TypeFor[T]()
	isPoint := recordType.Implements(reflect.TypeFor[PointLocated]())
	isVolume := recordType.Implements(reflect.TypeFor[VolumeLocated]())

	if isPoint == isVolume {
		return nil, errors.New("record type must be located either by a point or by a volume").
			WithType(ErrTypeInvalidRecordType).
			WithTag("record_type", recordType.String()).
			WithTag("point_located", isPoint).
			WithTag("volume_located", isVolume)
	}

	kind := volumeLocation
	if isPoint {
		kind = pointLocation
	}

	return &tree[T]{
		maxRecords: o.maxRecordsPerNode,
		maxDepth:   o.maxDepth,
		parallel:   o.parallel,
		aware:      recordType.Implements(reflect.TypeFor[Aware[T]]()),
		kind:       kind,
	}, nil
}

// bounds returns the location of r as a box. Point records have a degenerate
// box.
func (t *tree[T]) bounds(r T) geom.Box {
	if t.kind == pointLocation {
		p := any(r).(PointLocated).Position()
		return geom.Box{Min: p, Max: p}
	}
	return any(r).(VolumeLocated).Bounds()
}

// narrow builds the per-record test of a query: point records are tested by
// containment and volume records by intersection.
func (t *tree[T]) narrow(point func(geom.Vector3f) bool, volume func(geom.Box) bool) func(T) bool {
	if t.kind == pointLocation {
		return func(r T) bool {
			return point(any(r).(PointLocated).Position())
		}
	}
	return func(r T) bool {
		return volume(any(r).(VolumeLocated).Bounds())
	}
}

// broad picks the node bounds test matching the record kind. Point tests may
// be more tolerant than the exact volume ones.
func (t *tree[T]) broad(point, volume func(geom.Box) bool) func(geom.Box) bool {
	if t.kind == pointLocation {
		return point
	}
	return volume
}

func (t *tree[T]) owner(r T) *Node[T] {
	return any(r).(Aware[T]).Owner()
}

func (t *tree[T]) setOwner(r T, n *Node[T]) {
	if t.aware {
		any(r).(Aware[T]).SetOwner(n)
	}
}

func (t *tree[T]) mustBeAware(operation string) {
	if !t.aware {
		panic(errors.New("record type does not track its owner node").
			WithType(ErrTypeNotAware).
			WithTag("operation", operation).
			WithTag("record_type", reflect.TypeFor[T]().String()))
	}
}
