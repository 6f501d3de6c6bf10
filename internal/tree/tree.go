// Package tree implements a fixed-capacity binary decision tree: a flat
// array of nodes addressed by index, root always at 0.
//
// This replaces the in-memory pointer tree (*Node.Left/Right) the package
// was originally prototyped with in favor of index links, so the whole
// tree can be serialized and deserialized without pointer-fixup.
package tree

import (
	"errors"
	"fmt"

	"github.com/orbitalvision/texturecam/internal/filter"
	"github.com/orbitalvision/texturecam/internal/node"
	"github.com/orbitalvision/texturecam/internal/raster"
)

// MaxNodes bounds the tree to 512 nodes, capping worst-case depth at ~9
// and keeping the array cheap to preallocate for concurrent training.
const MaxNodes = 512

// ErrCapacity is returned when a tree cannot accept more nodes.
var ErrCapacity = errors.New("tree: at capacity")

// Tree is a fixed-capacity array of Nodes, root at index 0.
type Tree struct {
	Nodes  [MaxNodes]node.Node
	NNodes uint16
}

// New returns a tree with a single leaf root node.
func New() *Tree {
	t := &Tree{NNodes: 1}
	t.Nodes[0] = node.New()
	return t
}

// AddChildren allocates two new leaf children for parent, returning their
// indices. It fails with ErrCapacity if there is no room for both.
func (t *Tree) AddChildren(parent uint16) (low, high uint16, err error) {
	if int(t.NNodes) >= MaxNodes-2 {
		return 0, 0, ErrCapacity
	}
	low = t.NNodes
	high = t.NNodes + 1
	t.Nodes[low] = node.New()
	t.Nodes[high] = node.New()
	t.NNodes += 2

	t.Nodes[parent].Left = low
	t.Nodes[parent].Right = high

	return low, high, nil
}

// HasRoom reports whether the tree can still accept one more split (two
// more nodes).
func (t *Tree) HasRoom() bool {
	return int(t.NNodes) < MaxNodes-2
}

// FindLeaf walks the tree from the root for the query pixel, returning the
// index of the leaf reached, or ok=false if any filter evaluation along
// the path returns NoData.
func (t *Tree) FindLeaf(img *raster.Image, r, c int) (id uint16, ok bool) {
	id = 0
	for {
		n := &t.Nodes[id]
		if node.IsLeaf(n) {
			return id, true
		}
		result, err := filter.Evaluate(n.Filter, img, r, c)
		if err != nil {
			return 0, false
		}
		if result > n.Threshold {
			id = n.Right
		} else {
			id = n.Left
		}
	}
}

// NumLeaves counts the leaves reachable from the root.
func (t *Tree) NumLeaves() int {
	return t.numLeaves(0)
}

func (t *Tree) numLeaves(id uint16) int {
	n := &t.Nodes[id]
	if node.IsLeaf(n) {
		return 1
	}
	return t.numLeaves(n.Left) + t.numLeaves(n.Right)
}

// CheckInvariants validates that every non-leaf's children are in range
// and strictly greater than the parent, and that leaves have no children.
func (t *Tree) CheckInvariants() error {
	for i := uint16(0); i < t.NNodes; i++ {
		n := &t.Nodes[i]
		if node.IsLeaf(n) {
			continue
		}
		if n.Left == node.NoChild || n.Right == node.NoChild {
			return fmt.Errorf("tree: node %d is non-leaf but missing a child", i)
		}
		if n.Left >= t.NNodes || n.Right >= t.NNodes {
			return fmt.Errorf("tree: node %d has child id out of range", i)
		}
		if n.Left <= i || n.Right <= i {
			return fmt.Errorf("tree: node %d has child id <= parent id", i)
		}
	}
	return nil
}
