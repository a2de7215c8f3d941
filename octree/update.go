package octree

import (
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"golang.org/x/sync/errgroup"
)

// pushDownFactor is the multiple of the split threshold above which Update
// forces a node to hand its records down to its children.
const pushDownFactor = 4

// UpdateStats reports what an Update did.
type UpdateStats struct {
	// The number of records that were no longer contained by their node and
	// got re-inserted from the root.
	Rehomed int `json:"rehomed"`

	// The number of records moved down by the push-to-leaves pass.
	PushedDown int `json:"pushed_down"`
}

// Update re-homes the records whose location is no longer fully contained by
// the node owning them. It is meant to be called once per simulation step,
// after records moved.
//
// Records are re-inserted from the root, then overloaded nodes push their
// records down and sparse subtrees are merged.
//
// Update panics when called on a non-root node, when the record type does
// not implement Aware, or when a record moved outside the root bounds.
func (n *Node[T]) Update() UpdateStats {
	if n.parent != nil {
		panic(errors.New("update called on a non-root node").
			WithType(ErrTypeNotRoot).
			WithTag("depth", n.depth))
	}
	n.tree.mustBeAware("update")

	var stats UpdateStats

	moved := n.collectMoved(n.tree.parallel)
	for _, r := range moved {
		if !n.Add(r) {
			panic(errors.New("record moved outside of the index bounds").
				WithType(ErrTypeOutOfBounds).
				WithTag("record_bounds", n.tree.bounds(r)).
				WithTag("index_bounds", n.bounds))
		}
	}
	stats.Rehomed = len(moved)

	stats.PushedDown = n.pushToLeaves(n.tree.parallel)
	n.merge(n.tree.parallel)

	if stats.Rehomed != 0 || stats.PushedDown != 0 {
		logs.WithTag("rehomed", stats.Rehomed).
			WithTag("pushed_down", stats.PushedDown).
			WithTag("parallel", n.tree.parallel).
			Debug("octree updated")
	}
	return stats
}

// collectMoved detaches and returns the records of the subtree that are not
// fully contained by their node anymore. Owners are cleared; no merge
// happens.
func (n *Node[T]) collectMoved(parallel bool) []T {
	var moved []T

	kept := n.records[:0]
	for _, r := range n.records {
		if n.bounds.ContainsBox(n.tree.bounds(r)) {
			kept = append(kept, r)
			continue
		}
		moved = append(moved, r)
		n.tree.setOwner(r, nil)
	}
	clear(n.records[len(kept):])
	n.records = kept

	if n.children == nil {
		return moved
	}

	childMoved := make([][]T, len(n.children))
	n.forEachChild(parallel, func(i int, c *Node[T]) {
		childMoved[i] = c.collectMoved(false)
	})
	for _, m := range childMoved {
		moved = append(moved, m...)
	}
	return moved
}

// pushToLeaves splits or redistributes every node of the subtree whose
// direct record count exceeds the push down watermark. It returns the number
// of moved records.
func (n *Node[T]) pushToLeaves(parallel bool) int {
	var pushed int

	if len(n.records) > n.tree.maxRecords*pushDownFactor && n.depth < n.tree.maxDepth {
		if n.children == nil {
			pushed = n.split()
		} else {
			pushed = n.pushDown()
		}
	}

	if n.children == nil {
		return pushed
	}

	childPushed := make([]int, len(n.children))
	n.forEachChild(parallel, func(i int, c *Node[T]) {
		childPushed[i] = c.pushToLeaves(false)
	})
	for _, p := range childPushed {
		pushed += p
	}
	return pushed
}

// forEachChild calls fn for each child of n, on separate goroutines when
// parallel is set. The 8 subtrees share no node, which makes running them
// concurrently safe.
func (n *Node[T]) forEachChild(parallel bool, fn func(i int, c *Node[T])) {
	if !parallel {
		for i, c := range n.children {
			fn(i, c)
		}
		return
	}

	var g errgroup.Group
	for i, c := range n.children {
		g.Go(func() error {
			fn(i, c)
			return nil
		})
	}
	g.Wait()
}
