package models

import (
	"slices"
	"sync"
)

// SequentialIDGenerator hands out sequential ids starting at 1. Released ids
// are handed out again, smallest first, before new ones are generated.
type SequentialIDGenerator struct {
	mutex     sync.Mutex
	currentID uint32
	released  []uint32
}

// New returns the smallest released id, or the next sequential one.
func (g *SequentialIDGenerator) New() uint32 {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	if len(g.released) != 0 {
		id := g.released[0]
		g.released = slices.Delete(g.released, 0, 1)
		return id
	}

	g.currentID++
	return g.currentID
}

// Reuse releases the given id. Ids that were never generated or that are
// already released are ignored.
func (g *SequentialIDGenerator) Reuse(id uint32) {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	if id == 0 || id > g.currentID {
		return
	}

	i, found := slices.BinarySearch(g.released, id)
	if found {
		return
	}
	g.released = slices.Insert(g.released, i, id)
}

// Len returns the number of ids currently in use.
func (g *SequentialIDGenerator) Len() int {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	return int(g.currentID) - len(g.released)
}
