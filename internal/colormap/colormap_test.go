package colormap

import (
	"bytes"
	"testing"

	"github.com/orbitalvision/texturecam/internal/raster"
)

func testMap() *Map {
	return &Map{
		ColorDepth: 3,
		Colors: [][]uint8{
			{0, 0, 0},
			{255, 0, 0},
			{0, 255, 0},
		},
	}
}

func TestLoadSaveRoundTrip(t *testing.T) {
	m := testMap()
	var buf bytes.Buffer
	if err := m.Save(&buf); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := Load(&buf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ColorDepth != m.ColorDepth || len(got.Colors) != len(m.Colors) {
		t.Fatalf("roundtrip mismatch: %+v vs %+v", got, m)
	}
}

func TestLabelImage(t *testing.T) {
	m := testMap()
	img, _ := raster.NewImage(2, 2, 3)
	// pixel (0,0) red -> class 1, (0,1) green -> class 2, rest black -> 0
	img.Set(0, 0, 0, 255)
	img.Set(0, 1, 1, 255)

	lbl, counts, err := m.Label(img)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	v, _ := lbl.At(0, 0)
	if v != 1 {
		t.Errorf("expected class 1 at (0,0), got %d", v)
	}
	v, _ = lbl.At(0, 1)
	if v != 2 {
		t.Errorf("expected class 2 at (0,1), got %d", v)
	}
	if counts[0] != 2 || counts[1] != 1 || counts[2] != 1 {
		t.Errorf("unexpected class counts: %v", counts)
	}
}

func TestMergeConflict(t *testing.T) {
	a := testMap()
	b := testMap()
	b.Colors[1] = []uint8{1, 2, 3}

	if _, err := Merge(a, b); err == nil {
		t.Error("expected error for conflicting colormap merge")
	}
}

func TestMergeCompatible(t *testing.T) {
	a := &Map{ColorDepth: 3, Colors: [][]uint8{{0, 0, 0}, {255, 0, 0}}}
	b := &Map{ColorDepth: 3, Colors: [][]uint8{{0, 0, 0}, {255, 0, 0}, {0, 255, 0}}}

	merged, err := Merge(a, b)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(merged.Colors) != 3 {
		t.Errorf("expected 3 merged colors, got %d", len(merged.Colors))
	}
}
