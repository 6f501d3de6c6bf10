// Package node implements decision-tree node state: split test, class
// counts/probabilities, and child links, as a value type suitable for
// storage in a Tree's fixed node array.
package node

import (
	"math"

	"github.com/orbitalvision/texturecam/internal/filter"
	"github.com/orbitalvision/texturecam/internal/raster"
)

// NoChild marks an absent child link within a Tree's node array.
const NoChild = 0xFFFF

// Node is one decision-tree node. It is a leaf iff Right == NoChild.
type Node struct {
	ClassCounts [raster.MaxClasses]float32
	ClassProbs  [raster.MaxClasses]float32
	MapClass    uint8
	Left, Right uint16
	Expandable  bool
	Filter      filter.Filter
	Threshold   int64

	// Bucket is the head of this node's training-sample bucket, a
	// singly-linked list of indices into the owning Dataset's sample
	// array. It is meaningful only during training.
	Bucket int
}

// NoSample marks an empty bucket or the end of a bucket's linked list.
const NoSample = -1

// New returns a freshly initialized leaf node with an empty bucket.
func New() Node {
	return Node{
		Left:       NoChild,
		Right:      NoChild,
		Expandable: true,
		Bucket:     NoSample,
	}
}

// IsLeaf reports whether n has no children.
func IsLeaf(n *Node) bool {
	return n.Right == NoChild
}

// IsExpandable reports whether n is still a candidate for splitting.
func IsExpandable(n *Node) bool {
	return n.Expandable
}

// UpdateProbs recomputes MapClass and the normalized ClassProbs from
// ClassCounts. Class 0 is never predictable and is always zeroed. Ties in
// the argmax resolve to the lowest class index.
func UpdateProbs(n *Node, nclasses int) {
	n.ClassCounts[0] = 0
	n.ClassProbs[0] = 0

	var total float32
	maxCount := float32(-1)
	maxClass := uint8(0)

	for k := 1; k < nclasses; k++ {
		total += n.ClassCounts[k]
		if n.ClassCounts[k] > maxCount {
			maxCount = n.ClassCounts[k]
			maxClass = uint8(k)
		}
	}

	if total == 0 {
		for k := 1; k < nclasses; k++ {
			n.ClassProbs[k] = 0
		}
		n.MapClass = 0
		return
	}

	n.MapClass = maxClass
	for k := 1; k < nclasses; k++ {
		n.ClassProbs[k] = n.ClassCounts[k] / total
	}
}

// ProbSum returns the sum of ClassProbs[1:nclasses], used by tests to
// verify normalization.
func ProbSum(n *Node, nclasses int) float64 {
	var s float64
	for k := 1; k < nclasses; k++ {
		s += float64(n.ClassProbs[k])
	}
	return s
}

// IsNormalized reports whether n's probabilities sum to 1 (within tol) or
// are all zero.
func IsNormalized(n *Node, nclasses int, tol float64) bool {
	s := ProbSum(n, nclasses)
	if s == 0 {
		return true
	}
	return math.Abs(s-1) <= tol
}
