// Package forest collects trained trees into a forest that shares one
// filter family, class count, and window size, and implements per-pixel
// classification by summing leaf class probabilities across trees.
package forest

import (
	"errors"
	"fmt"

	"github.com/orbitalvision/texturecam/internal/colormap"
	"github.com/orbitalvision/texturecam/internal/filter"
	"github.com/orbitalvision/texturecam/internal/raster"
	"github.com/orbitalvision/texturecam/internal/tree"
)

// MinProb is the probability floor a class must exceed, after averaging
// across trees, to be returned by Classify.
const MinProb = 2.68e-33

// Forest is a set of trees sharing training configuration.
type Forest struct {
	Trees        []*tree.Tree
	NTrees       int
	FilterFamily filter.Family
	NClasses     int
	Winsize      int
}

// New allocates an untrained forest of ntrees empty single-leaf trees.
func New(ntrees int, family filter.Family, nclasses, winsize int) *Forest {
	f := &Forest{
		NTrees:       ntrees,
		FilterFamily: family,
		NClasses:     nclasses,
		Winsize:      winsize,
		Trees:        make([]*tree.Tree, ntrees),
	}
	for i := range f.Trees {
		f.Trees[i] = tree.New()
	}
	return f
}

// Classify walks every tree for the query pixel (r, c) in img, sums each
// reached leaf's class_probs, and returns the argmax class that clears
// MinProb after averaging across trees. Any tree whose walk hits NoData
// aborts the whole pixel with ErrorClass. If probsOut is non-nil, it is
// filled with the pre-averaging accumulated probabilities (one slot per
// class, sized to at least NClasses).
func (f *Forest) Classify(img *raster.Image, r, c int, probsOut []float32) uint8 {
	var probs [raster.MaxClasses]float64

	for _, t := range f.Trees {
		id, ok := t.FindLeaf(img, r, c)
		if !ok {
			return raster.ErrorClass
		}
		leaf := &t.Nodes[id]
		for k := 0; k < f.NClasses; k++ {
			probs[k] += float64(leaf.ClassProbs[k])
		}
	}

	if probsOut != nil {
		for k := 0; k < f.NClasses && k < len(probsOut); k++ {
			probsOut[k] = float32(probs[k])
		}
	}

	best := uint8(raster.ErrorClass)
	bestProb := MinProb
	for k := 1; k < f.NClasses; k++ {
		p := probs[k] / float64(f.NTrees)
		if p > bestProb {
			bestProb = p
			best = uint8(k)
		}
	}
	return best
}

// ErrFamilyMismatch is returned by Concat when two forests were trained
// with different filter families.
var ErrFamilyMismatch = errors.New("forest: filter family mismatch")

// ErrClassMismatch is returned by Concat when two forests disagree on
// class count or window size.
var ErrClassMismatch = errors.New("forest: nclasses or winsize mismatch")

// Concat combines a and b's trees into one forest, used by the
// concatenate-forests CLI. It refuses to merge forests with different
// filter families, class counts, or window sizes, and merges their
// colormaps (erroring if they assign different colors to the same class).
func Concat(a, b *Forest, cmA, cmB *colormap.Map) (*Forest, *colormap.Map, error) {
	if a.FilterFamily != b.FilterFamily {
		return nil, nil, fmt.Errorf("%w: %v vs %v", ErrFamilyMismatch, a.FilterFamily, b.FilterFamily)
	}
	if a.NClasses != b.NClasses || a.Winsize != b.Winsize {
		return nil, nil, fmt.Errorf("%w: nclasses %d/%d, winsize %d/%d",
			ErrClassMismatch, a.NClasses, b.NClasses, a.Winsize, b.Winsize)
	}

	merged := &Forest{
		FilterFamily: a.FilterFamily,
		NClasses:     a.NClasses,
		Winsize:      a.Winsize,
		Trees:        make([]*tree.Tree, 0, len(a.Trees)+len(b.Trees)),
	}
	merged.Trees = append(merged.Trees, a.Trees...)
	merged.Trees = append(merged.Trees, b.Trees...)
	merged.NTrees = len(merged.Trees)

	var mergedCM *colormap.Map
	switch {
	case cmA == nil && cmB == nil:
		mergedCM = nil
	case cmA == nil:
		mergedCM = cmB
	case cmB == nil:
		mergedCM = cmA
	default:
		cm, err := colormap.Merge(cmA, cmB)
		if err != nil {
			return nil, nil, fmt.Errorf("forest: merging colormaps: %w", err)
		}
		mergedCM = cm
	}

	return merged, mergedCM, nil
}
