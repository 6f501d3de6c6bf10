package forest

import (
	"bytes"
	"testing"

	"github.com/orbitalvision/texturecam/internal/colormap"
	"github.com/orbitalvision/texturecam/internal/filter"
	"github.com/orbitalvision/texturecam/internal/node"
	"github.com/orbitalvision/texturecam/internal/raster"
	"github.com/orbitalvision/texturecam/internal/tree"
)

// buildTwoLeafForest returns a one-tree forest that splits raw channel-0
// intensity at threshold 100: class 1 below, class 2 above.
func buildTwoLeafForest(t *testing.T) *Forest {
	t.Helper()
	tr := tree.New()
	low, high, err := tr.AddChildren(0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	tr.Nodes[0].Filter = filter.Filter{Kind: filter.Raw, A: filter.Offset{DR: 0, DC: 0, Ch: 0}}
	tr.Nodes[0].Threshold = 100

	tr.Nodes[low].ClassCounts[1] = 10
	node.UpdateProbs(&tr.Nodes[low], 3)
	tr.Nodes[high].ClassCounts[2] = 10
	node.UpdateProbs(&tr.Nodes[high], 3)

	return &Forest{
		Trees:        []*tree.Tree{tr},
		NTrees:       1,
		FilterFamily: filter.Points,
		NClasses:     3,
		Winsize:      5,
	}
}

func TestClassifySumsLeafProbs(t *testing.T) {
	f := buildTwoLeafForest(t)
	img, _ := raster.NewImage(1, 2, 1)
	img.Set(0, 0, 0, 10)
	img.Set(0, 1, 0, 200)

	if got := f.Classify(img, 0, 0, nil); got != 1 {
		t.Errorf("expected class 1, got %d", got)
	}
	if got := f.Classify(img, 0, 1, nil); got != 2 {
		t.Errorf("expected class 2, got %d", got)
	}
}

func TestClassifyOutOfBoundsReturnsErrorClass(t *testing.T) {
	tr := tree.New()
	tr.AddChildren(0)
	// A non-(0,0) offset guarantees NoData at the image corner.
	tr.Nodes[0].Filter = filter.Filter{Kind: filter.Raw, A: filter.Offset{DR: -2, DC: -2, Ch: 0}}
	f := &Forest{Trees: []*tree.Tree{tr}, NTrees: 1, FilterFamily: filter.Points, NClasses: 3, Winsize: 5}

	img, _ := raster.NewImage(3, 3, 1)
	if got := f.Classify(img, 0, 0, nil); got != raster.ErrorClass {
		t.Errorf("expected ErrorClass, got %d", got)
	}
}

func TestClassifyFloorRejectsWeakEvidence(t *testing.T) {
	tr := tree.New()
	f := &Forest{Trees: []*tree.Tree{tr}, NTrees: 1, FilterFamily: filter.Points, NClasses: 3, Winsize: 5}
	// root is a leaf with all-zero class_probs: no class clears MinProb.
	img, _ := raster.NewImage(1, 1, 1)
	if got := f.Classify(img, 0, 0, nil); got != raster.ErrorClass {
		t.Errorf("expected ErrorClass when nothing clears the floor, got %d", got)
	}
}

func TestWriteReadRoundtrip(t *testing.T) {
	f := buildTwoLeafForest(t)
	cm := &colormap.Map{ColorDepth: 3, Colors: [][]uint8{{0, 0, 0}, {255, 0, 0}, {0, 255, 0}}}

	var buf bytes.Buffer
	if err := WriteForest(&buf, f, cm); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, gotCM, err := ReadForest(&buf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got.NTrees != f.NTrees || got.NClasses != f.NClasses || got.Winsize != f.Winsize || got.FilterFamily != f.FilterFamily {
		t.Fatalf("header mismatch: %+v vs %+v", got, f)
	}
	if len(gotCM.Colors) != len(cm.Colors) {
		t.Fatalf("colormap mismatch: %+v vs %+v", gotCM, cm)
	}

	img, _ := raster.NewImage(1, 2, 1)
	img.Set(0, 0, 0, 10)
	img.Set(0, 1, 0, 200)
	if got.Classify(img, 0, 0, nil) != f.Classify(img, 0, 0, nil) {
		t.Error("classification changed across roundtrip")
	}
	if got.Classify(img, 0, 1, nil) != f.Classify(img, 0, 1, nil) {
		t.Error("classification changed across roundtrip")
	}
}

func TestConcatFamilyMismatch(t *testing.T) {
	a := buildTwoLeafForest(t)
	b := buildTwoLeafForest(t)
	b.FilterFamily = filter.Rectangles

	if _, _, err := Concat(a, b, nil, nil); err == nil {
		t.Error("expected error for mismatched filter families")
	}
}

func TestConcatMergesTreesAndColormaps(t *testing.T) {
	a := buildTwoLeafForest(t)
	b := buildTwoLeafForest(t)
	cmA := &colormap.Map{ColorDepth: 3, Colors: [][]uint8{{0, 0, 0}, {255, 0, 0}}}
	cmB := &colormap.Map{ColorDepth: 3, Colors: [][]uint8{{0, 0, 0}, {255, 0, 0}, {0, 255, 0}}}

	merged, mergedCM, err := Concat(a, b, cmA, cmB)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if merged.NTrees != 2 {
		t.Errorf("expected 2 trees, got %d", merged.NTrees)
	}
	if len(mergedCM.Colors) != 3 {
		t.Errorf("expected 3 merged colors, got %d", len(mergedCM.Colors))
	}
}
