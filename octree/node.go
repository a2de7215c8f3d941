// Package octree implements an adaptive octree indexing caller-owned spatial
// records.
//
// Records are located either by a point (PointLocated) or by an
// axis-aligned box (VolumeLocated). Nodes split into 8 octants once they own
// more records than the configured threshold and merge back when their
// subtree becomes sparse. Records implementing Aware can be removed and
// re-homed in bulk with Update after they moved.
//
// The index performs no locking: concurrent queries are safe on an
// unmodified tree, mutations require external mutual exclusion.
package octree

import (
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/octree/geom"
)

const (
	DefaultMaxRecordsPerNode = 8
	DefaultMaxDepth          = 16
)

type options struct {
	maxRecordsPerNode int
	maxDepth          int
	parallel          bool
}

// Option configures an index at construction.
type Option func(*options)

// WithMaxRecordsPerNode sets the number of records a leaf holds before it
// splits. Nodes can still directly hold more records than that when the
// records do not fit in a single octant.
func WithMaxRecordsPerNode(n int) Option {
	return func(o *options) {
		o.maxRecordsPerNode = n
	}
}

// WithMaxDepth sets the depth below which nodes never split.
func WithMaxDepth(d int) Option {
	return func(o *options) {
		o.maxDepth = d
	}
}

// WithParallel enables processing the 8 top level subtrees concurrently
// during Update.
func WithParallel(v bool) Option {
	return func(o *options) {
		o.parallel = v
	}
}

// Node is a cuboid region of the index. The root node is the index itself.
type Node[T comparable] struct {
	tree     *tree[T]
	parent   *Node[T]
	children []*Node[T]
	bounds   geom.Box
	depth    int
	records  []T
}

// New creates the root of an index covering bounds.
func New[T comparable](bounds geom.Box, opts ...Option) (*Node[T], error) {
	o := options{
		maxRecordsPerNode: DefaultMaxRecordsPerNode,
		maxDepth:          DefaultMaxDepth,
		parallel:          true,
	}
	for _, opt := range opts {
		opt(&o)
	}

	if bounds.IsEmpty() {
		return nil, errors.New("index bounds are empty").
			WithType(ErrTypeInvalidConfig).
			WithTag("min", bounds.Min).
			WithTag("max", bounds.Max)
	}
	if o.maxRecordsPerNode < 1 {
		return nil, errors.New("max records per node must be positive").
			WithType(ErrTypeInvalidConfig).
			WithTag("max_records_per_node", o.maxRecordsPerNode)
	}
	if o.maxDepth < 0 {
		return nil, errors.New("max depth must not be negative").
			WithType(ErrTypeInvalidConfig).
			WithTag("max_depth", o.maxDepth)
	}

	t, err := newTree[T](o)
	if err != nil {
		return nil, err
	}

	return &Node[T]{
		tree:   t,
		bounds: bounds,
	}, nil
}

func (n *Node[T]) Bounds() geom.Box {
	return n.bounds
}

// Depth returns the distance to the root. The root depth is 0.
func (n *Node[T]) Depth() int {
	return n.depth
}

// Parent returns the parent node, nil for the root.
func (n *Node[T]) Parent() *Node[T] {
	return n.parent
}

// Children returns a copy of the 8 children, or nil for a leaf.
func (n *Node[T]) Children() []*Node[T] {
	if n.children == nil {
		return nil
	}
	return append([]*Node[T](nil), n.children...)
}

// Records returns a copy of the records directly owned by the node.
func (n *Node[T]) Records() []T {
	return append([]T(nil), n.records...)
}

// Len returns the number of records directly owned by the node.
func (n *Node[T]) Len() int {
	return len(n.records)
}

func (n *Node[T]) IsLeaf() bool {
	return n.children == nil
}

func (n *Node[T]) IsRoot() bool {
	return n.parent == nil
}

// MaxRecordsPerNode returns the split threshold shared by the whole index.
func (n *Node[T]) MaxRecordsPerNode() int {
	return n.tree.maxRecords
}

// MaxDepth returns the depth limit shared by the whole index.
func (n *Node[T]) MaxDepth() int {
	return n.tree.maxDepth
}

// Add inserts r in the deepest node fully containing it. It returns false
// when r is not fully contained by n.
//
// Add is meant to be called on the root.
func (n *Node[T]) Add(r T) bool {
	return n.add(r, n.tree.bounds(r))
}

func (n *Node[T]) add(r T, location geom.Box) bool {
	if !n.bounds.ContainsBox(location) {
		return false
	}

	if n.children == nil &&
		len(n.records) >= n.tree.maxRecords &&
		n.depth < n.tree.maxDepth {
		n.split()
	}

	for _, c := range n.children {
		if c.add(r, location) {
			return true
		}
	}

	// Oversized or straddling records stay here, even above the threshold.
	n.records = append(n.records, r)
	n.tree.setOwner(r, n)
	return true
}

// Split subdivides a leaf into 8 children and moves each of its records one
// level down when a child fully contains it. It returns false when n already
// has children. Split does not check the depth limit.
func (n *Node[T]) Split() bool {
	if n.children != nil {
		return false
	}
	n.split()
	return true
}

func (n *Node[T]) split() int {
	n.children = make([]*Node[T], 8)
	for i := range n.children {
		n.children[i] = &Node[T]{
			tree:   n.tree,
			parent: n,
			bounds: n.bounds.Octant(i),
			depth:  n.depth + 1,
		}
	}
	return n.pushDown()
}

// pushDown moves every record that fits in a child into that child, keeping
// the record order. It returns the number of moved records.
func (n *Node[T]) pushDown() int {
	kept := n.records[:0]
	for _, r := range n.records {
		if c := n.childContaining(n.tree.bounds(r)); c != nil {
			c.records = append(c.records, r)
			n.tree.setOwner(r, c)
			continue
		}
		kept = append(kept, r)
	}

	moved := len(n.records) - len(kept)
	clear(n.records[len(kept):])
	n.records = kept
	return moved
}

func (n *Node[T]) childContaining(location geom.Box) *Node[T] {
	for _, c := range n.children {
		if c.bounds.ContainsBox(location) {
			return c
		}
	}
	return nil
}

// detach removes r from the records directly owned by n.
func (n *Node[T]) detach(r T) bool {
	for i, record := range n.records {
		if record == r {
			copy(n.records[i:], n.records[i+1:])
			var zero T
			n.records[len(n.records)-1] = zero
			n.records = n.records[:len(n.records)-1]
			return true
		}
	}
	return false
}

// AllNodes returns n and all its descendants, parents before their children
// and children in octant order.
func (n *Node[T]) AllNodes() []*Node[T] {
	var nodes []*Node[T]
	n.visit(func(node *Node[T]) {
		nodes = append(nodes, node)
	})
	return nodes
}

// AllData returns the records of n and all its descendants, in AllNodes
// order.
func (n *Node[T]) AllData() []T {
	var records []T
	n.visit(func(node *Node[T]) {
		records = append(records, node.records...)
	})
	return records
}

func (n *Node[T]) visit(fn func(*Node[T])) {
	fn(n)
	for _, c := range n.children {
		c.visit(fn)
	}
}

// Stats describes the shape of a subtree.
type Stats struct {
	Nodes    int `json:"nodes"`
	Leaves   int `json:"leaves"`
	Records  int `json:"records"`
	MaxDepth int `json:"max_depth"`

	// The largest number of records directly owned by a single node.
	MaxRecords int `json:"max_records"`
}

func (n *Node[T]) Stats() Stats {
	var s Stats
	n.visit(func(node *Node[T]) {
		s.Nodes++
		if node.children == nil {
			s.Leaves++
		}
		s.Records += len(node.records)
		s.MaxDepth = max(s.MaxDepth, node.depth)
		s.MaxRecords = max(s.MaxRecords, len(node.records))
	})
	return s
}
