package octree

// Remove detaches r from the node owning it and clears its owner. With
// mergeAfter, the parent of the former owner then tries to merge. Remove
// returns false when r is not stored in the index n belongs to.
//
// Remove panics when the record type does not implement Aware.
func (n *Node[T]) Remove(r T, mergeAfter bool) bool {
	n.tree.mustBeAware("remove")

	owner := n.tree.owner(r)
	if owner == nil || owner.tree != n.tree {
		return false
	}
	if !owner.detach(r) {
		return false
	}
	n.tree.setOwner(r, nil)

	if mergeAfter {
		target := owner.parent
		if target == nil {
			target = owner
		}
		target.Merge()
	}
	return true
}

// Merge collapses the sparse parts of the subtree rooted at n. A node absorbs
// its children when none of them has children left and the node and its
// children hold no more than the split threshold together. Merge reports
// whether n is a leaf afterwards.
func (n *Node[T]) Merge() bool {
	return n.merge(false)
}

func (n *Node[T]) merge(parallel bool) bool {
	if n.children == nil {
		return true
	}

	merged := make([]bool, len(n.children))
	n.forEachChild(parallel, func(i int, c *Node[T]) {
		merged[i] = c.merge(false)
	})

	total := len(n.records)
	for i, c := range n.children {
		if !merged[i] {
			return false
		}
		total += len(c.records)
	}
	if total > n.tree.maxRecords {
		return false
	}

	for _, c := range n.children {
		for _, r := range c.records {
			n.records = append(n.records, r)
			n.tree.setOwner(r, n)
		}
		c.records = nil
		c.parent = nil
	}
	n.children = nil
	return true
}
