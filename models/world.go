package models

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/octree/featureflag"
	"github.com/aukilabs/octree/geom"
	"github.com/aukilabs/octree/octree"
	"github.com/google/uuid"
)

const (
	defaultFrameDuration = 50 * time.Millisecond

	// DefaultMaxAllowedDepth is the deepest index a client can ask for when the
	// store does not set its own limit.
	DefaultMaxAllowedDepth = 32
)

// WorldConfig describes the space covered by a world and how its index
// subdivides it. Zero thresholds fall back to the store defaults.
type WorldConfig struct {
	Bounds            geom.Box `json:"bounds"`
	MaxRecordsPerNode int      `json:"max_records_per_node,omitempty"`
	MaxDepth          int      `json:"max_depth,omitempty"`
}

// World is a bounded space whose entities are indexed by an octree. The index
// is updated on every frame to re-home the entities that moved.
type World struct {
	ID   uint32
	UUID string

	bounds        geom.Box
	mergeOnRemove bool

	mutex     sync.RWMutex
	index     *octree.Node[*Entity]
	entityIDs SequentialIDGenerator
	entities  map[uint32]*Entity

	startFrameOnce  sync.Once
	closeFrameChan  chan struct{}
	frameTicker     *time.Ticker
	frameHandlerIDs SequentialIDGenerator
	frameHandlers   map[uint32]func(octree.UpdateStats)
	frameMutex      sync.RWMutex

	closeOnce sync.Once
	closed    bool
}

func NewWorld(id uint32, frameDuration time.Duration, config WorldConfig, flags featureflag.FeatureFlag) (*World, error) {
	parallel := true
	mergeOnRemove := true
	flags.IfSet(featureflag.FlagDisableParallelUpdate, func() {
		parallel = false
	})
	flags.IfSet(featureflag.FlagDisableMergeOnRemove, func() {
		mergeOnRemove = false
	})

	opts := []octree.Option{octree.WithParallel(parallel)}
	if config.MaxRecordsPerNode != 0 {
		opts = append(opts, octree.WithMaxRecordsPerNode(config.MaxRecordsPerNode))
	}
	if config.MaxDepth != 0 {
		opts = append(opts, octree.WithMaxDepth(config.MaxDepth))
	}

	index, err := octree.New[*Entity](config.Bounds, opts...)
	if err != nil {
		return nil, errors.New("creating world index failed").
			WithType(ErrTypeInvalidWorld).
			WithTag("world_id", id).
			Wrap(err)
	}

	return &World{
		ID:             id,
		UUID:           uuid.New().String(),
		bounds:         config.Bounds,
		mergeOnRemove:  mergeOnRemove,
		index:          index,
		entities:       make(map[uint32]*Entity),
		closeFrameChan: make(chan struct{}, 1),
		frameTicker:    time.NewTicker(frameDuration),
		frameHandlers:  make(map[uint32]func(octree.UpdateStats)),
	}, nil
}

func (w *World) Close() {
	w.closeOnce.Do(func() {
		w.mutex.Lock()
		w.closed = true
		w.mutex.Unlock()

		w.frameTicker.Stop()
		w.closeFrameChan <- struct{}{}
	})
}

func (w *World) Bounds() geom.Box {
	return w.bounds
}

// AddEntity creates an entity at the given pose.
func (w *World) AddEntity(pose Pose) (*Entity, error) {
	if err := pose.Validate(w.bounds); err != nil {
		return nil, err
	}

	w.mutex.Lock()
	defer w.mutex.Unlock()

	if w.closed {
		return nil, w.worldClosed()
	}

	e := &Entity{
		ID:   w.entityIDs.New(),
		pose: pose,
	}
	w.index.Add(e)
	w.entities[e.ID] = e

	instrumentIncreaseEntityGauge()
	return e, nil
}

// MoveEntity sets the pose of an entity. The index re-homes the entity on the
// next frame.
func (w *World) MoveEntity(id uint32, pose Pose) (*Entity, error) {
	if err := pose.Validate(w.bounds); err != nil {
		return nil, errors.New("moving entity failed").
			WithType(errors.Type(err)).
			WithTag("entity_id", id).
			Wrap(err)
	}

	w.mutex.Lock()
	defer w.mutex.Unlock()

	if w.closed {
		return nil, w.worldClosed()
	}

	e, ok := w.entities[id]
	if !ok {
		return nil, w.entityNotFound(id)
	}
	e.SetPose(pose)
	return e, nil
}

func (w *World) RemoveEntity(id uint32) error {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	if w.closed {
		return w.worldClosed()
	}

	e, ok := w.entities[id]
	if !ok {
		return w.entityNotFound(id)
	}

	w.index.Remove(e, w.mergeOnRemove)
	delete(w.entities, id)
	w.entityIDs.Reuse(id)

	instrumentDecreaseEntityGauge()
	return nil
}

// worldClosed is returned to the clients still attached to a removed world.
func (w *World) worldClosed() error {
	return errors.New("world not found").
		WithType(ErrTypeWorldNotFound).
		WithTag("world_uuid", w.UUID).
		WithTag("closed", true)
}

func (w *World) entityNotFound(id uint32) error {
	return errors.New("entity not found").
		WithType(ErrTypeEntityNotFound).
		WithTag("world_uuid", w.UUID).
		WithTag("entity_id", id)
}

func (w *World) EntityByID(id uint32) (*Entity, bool) {
	w.mutex.RLock()
	defer w.mutex.RUnlock()

	e, ok := w.entities[id]
	return e, ok
}

// Entities returns the entities of the world sorted by id.
func (w *World) Entities() []*Entity {
	w.mutex.RLock()
	defer w.mutex.RUnlock()

	entities := make([]*Entity, 0, len(w.entities))
	for _, e := range w.entities {
		entities = append(entities, e)
	}
	slices.SortFunc(entities, func(a, b *Entity) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return entities
}

func (w *World) EntityCount() int {
	w.mutex.RLock()
	defer w.mutex.RUnlock()

	return len(w.entities)
}

// Query returns the entities matching q, in index order.
func (w *World) Query(q Query) ([]*Entity, error) {
	w.mutex.RLock()
	defer w.mutex.RUnlock()

	entities, err := q.run(w.index)
	if err != nil {
		return nil, err
	}

	instrumentCountQuery(q.Shape)
	return entities, nil
}

// Step updates the index after entities moved. It is called on every frame.
func (w *World) Step() octree.UpdateStats {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	start := time.Now()
	stats := w.index.Update()
	instrumentUpdate(stats, time.Since(start))
	return stats
}

// WorldInfo is a debug snapshot of a world and of the shape of its index.
type WorldInfo struct {
	ID                uint32       `json:"id"`
	UUID              string       `json:"uuid"`
	Bounds            geom.Box     `json:"bounds"`
	MaxRecordsPerNode int          `json:"max_records_per_node"`
	MaxDepth          int          `json:"max_depth"`
	Entities          int          `json:"entities"`
	Index             octree.Stats `json:"index"`
}

func (w *World) Info() WorldInfo {
	w.mutex.RLock()
	defer w.mutex.RUnlock()

	return WorldInfo{
		ID:                w.ID,
		UUID:              w.UUID,
		Bounds:            w.bounds,
		MaxRecordsPerNode: w.index.MaxRecordsPerNode(),
		MaxDepth:          w.index.MaxDepth(),
		Entities:          len(w.entities),
		Index:             w.index.Stats(),
	}
}

// HandleFrame registers a handler called after each frame update.
func (w *World) HandleFrame(h func(octree.UpdateStats)) (cancel func()) {
	w.frameMutex.Lock()
	defer w.frameMutex.Unlock()

	id := w.frameHandlerIDs.New()
	w.frameHandlers[id] = h

	return func() {
		w.frameMutex.Lock()
		defer w.frameMutex.Unlock()

		delete(w.frameHandlers, id)
		w.frameHandlerIDs.Reuse(id)
	}
}

func (w *World) StartDispatchFrames() {
	w.startFrameOnce.Do(func() {
		for {
			select {
			case <-w.closeFrameChan:
				return

			case <-w.frameTicker.C:
				stats := w.Step()

				w.frameMutex.RLock()
				for _, h := range w.frameHandlers {
					h(stats)
				}
				w.frameMutex.RUnlock()
			}
		}
	})
}

// WorldStore holds the worlds served by the process.
type WorldStore struct {
	// The duration between two frame updates of a world.
	FrameDuration time.Duration

	// The maximum number of worlds. 0 means unlimited.
	MaxWorlds int

	// The index thresholds of the worlds which do not set their own.
	MaxRecordsPerNode int
	MaxDepth          int

	// The deepest index a world can ask for. Defaults to
	// DefaultMaxAllowedDepth.
	MaxAllowedDepth int

	FeatureFlags featureflag.FeatureFlag

	initOnce sync.Once
	mutex    sync.RWMutex
	worlds   map[string]*World
	ids      SequentialIDGenerator
}

func (s *WorldStore) init() {
	s.worlds = make(map[string]*World)

	if s.FrameDuration <= 0 {
		s.FrameDuration = defaultFrameDuration
	}
	if s.MaxAllowedDepth <= 0 {
		s.MaxAllowedDepth = DefaultMaxAllowedDepth
	}
}

// Create creates a world and starts dispatching its frames.
func (s *WorldStore) Create(ctx context.Context, config WorldConfig) (*World, error) {
	s.initOnce.Do(s.init)
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.MaxWorlds > 0 && len(s.worlds) >= s.MaxWorlds {
		return nil, errors.New("maximum number of worlds reached").
			WithType(ErrTypeTooManyWorlds).
			WithTag("max_worlds", s.MaxWorlds)
	}

	if config.MaxRecordsPerNode == 0 {
		config.MaxRecordsPerNode = s.MaxRecordsPerNode
	}
	if config.MaxDepth == 0 {
		config.MaxDepth = s.MaxDepth
	}
	if config.MaxDepth > s.MaxAllowedDepth {
		return nil, errors.New("max depth is too large").
			WithType(ErrTypeInvalidWorld).
			WithTag("max_depth", config.MaxDepth).
			WithTag("max_allowed_depth", s.MaxAllowedDepth)
	}

	id := s.ids.New()
	world, err := NewWorld(id, s.FrameDuration, config, s.FeatureFlags)
	if err != nil {
		s.ids.Reuse(id)
		return nil, err
	}
	s.worlds[world.UUID] = world
	go world.StartDispatchFrames()

	instrumentIncreaseWorldGauge()
	logs.WithTag("world_id", world.ID).
		WithTag("world_uuid", world.UUID).
		WithTag("bounds", config.Bounds).
		Info("world created")
	return world, nil
}

// Remove closes a world and discards it with its entities.
func (s *WorldStore) Remove(ctx context.Context, worldUUID string) error {
	s.initOnce.Do(s.init)
	s.mutex.Lock()
	defer s.mutex.Unlock()

	world, ok := s.worlds[worldUUID]
	if !ok {
		return errors.New("world not found").
			WithType(ErrTypeWorldNotFound).
			WithTag("world_uuid", worldUUID)
	}

	delete(s.worlds, worldUUID)
	world.Close()
	s.ids.Reuse(world.ID)

	instrumentDecreaseWorldGauge(world.EntityCount())
	logs.WithTag("world_id", world.ID).
		WithTag("world_uuid", world.UUID).
		Info("world removed")
	return nil
}

func (s *WorldStore) Get(worldUUID string) (*World, bool) {
	s.initOnce.Do(s.init)
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	world, ok := s.worlds[worldUUID]
	return world, ok
}

// Worlds returns the worlds of the store sorted by id.
func (s *WorldStore) Worlds() []*World {
	s.initOnce.Do(s.init)
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	worlds := make([]*World, 0, len(s.worlds))
	for _, w := range s.worlds {
		worlds = append(worlds, w)
	}
	slices.SortFunc(worlds, func(a, b *World) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return worlds
}

func (s *WorldStore) Len() int {
	s.initOnce.Do(s.init)
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return len(s.worlds)
}

// Close closes all the worlds.
func (s *WorldStore) Close() {
	for _, w := range s.Worlds() {
		s.Remove(context.Background(), w.UUID)
	}
}
