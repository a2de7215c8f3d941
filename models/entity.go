package models

import (
	"sync"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/octree/geom"
	"github.com/aukilabs/octree/octree"
)

// Entity is an object of a world, indexed by the box its pose occupies.
type Entity struct {
	ID uint32

	mutex sync.RWMutex
	pose  Pose

	// Only written by the world index, under the world lock.
	owner *octree.Node[*Entity]
}

func (e *Entity) SetPose(v Pose) {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	e.pose = v
}

func (e *Entity) Pose() Pose {
	e.mutex.RLock()
	defer e.mutex.RUnlock()

	return e.pose
}

// Bounds returns the box occupied by the entity.
func (e *Entity) Bounds() geom.Box {
	return e.Pose().Bounds()
}

func (e *Entity) Owner() *octree.Node[*Entity] {
	return e.owner
}

func (e *Entity) SetOwner(n *octree.Node[*Entity]) {
	e.owner = n
}

// EntityInfo is the serializable state of an entity.
type EntityInfo struct {
	ID     uint32   `json:"id"`
	Pose   Pose     `json:"pose"`
	Bounds geom.Box `json:"bounds"`
}

func (e *Entity) Info() EntityInfo {
	pose := e.Pose()
	return EntityInfo{
		ID:     e.ID,
		Pose:   pose,
		Bounds: pose.Bounds(),
	}
}

func EntitiesToInfo(entities []*Entity) []EntityInfo {
	infos := make([]EntityInfo, len(entities))
	for i, e := range entities {
		infos[i] = e.Info()
	}
	return infos
}

// Pose locates an entity by the center and the half-extents of the box it
// occupies.
type Pose struct {
	Center  geom.Vector3f `json:"center"`
	Extents geom.Vector3f `json:"extents"`
}

func (p Pose) Bounds() geom.Box {
	return geom.NewBoxFromCenter(p.Center, p.Extents)
}

// Validate checks that the pose occupies a box lying inside bounds.
func (p Pose) Validate(bounds geom.Box) error {
	if p.Extents.X < 0 || p.Extents.Y < 0 || p.Extents.Z < 0 {
		return errors.New("pose extents must not be negative").
			WithType(ErrTypeInvalidPose).
			WithTag("extents", p.Extents)
	}

	if b := p.Bounds(); !bounds.ContainsBox(b) {
		return errors.New("pose is outside of the world bounds").
			WithType(ErrTypeEntityOutOfBounds).
			WithTag("entity_bounds", b).
			WithTag("world_bounds", bounds)
	}
	return nil
}
