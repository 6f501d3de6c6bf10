package filter

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/orbitalvision/texturecam/internal/raster"
)

func checkerboard() *raster.Image {
	img, _ := raster.NewImage(4, 4, 1)
	for r := 0; r < 4; r++ {
		for c := 0; c < 4; c++ {
			if (r+c)%2 == 0 {
				img.Set(r, c, 0, 10)
			} else {
				img.Set(r, c, 0, 200)
			}
		}
	}
	return img
}

func TestEvaluateRaw(t *testing.T) {
	img := checkerboard()
	f := Filter{Kind: Raw, A: Offset{DR: 0, DC: 0, Ch: 0}}
	v, err := Evaluate(f, img, 0, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != 10 {
		t.Errorf("expected 10, got %d", v)
	}
}

func TestEvaluateOutOfBounds(t *testing.T) {
	img := checkerboard()
	f := Filter{Kind: Raw, A: Offset{DR: -1, DC: 0, Ch: 0}}
	v, err := Evaluate(f, img, 0, 0)
	if !errors.Is(err, ErrNoData) {
		t.Fatalf("expected ErrNoData, got %v", err)
	}
	if v != NoDataValue {
		t.Errorf("expected sentinel %d, got %d", NoDataValue, v)
	}
}

func TestEvaluateRatio(t *testing.T) {
	img := checkerboard()
	f := Filter{Kind: Ratio, A: Offset{DR: 0, DC: 0, Ch: 0}, B: Offset{DR: 0, DC: 1, Ch: 0}}
	v, err := Evaluate(f, img, 0, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := (int64(10)*100 - int64(200)*100) / (int64(10) + 1)
	if v != want {
		t.Errorf("expected %d, got %d", want, v)
	}
}

func TestEvaluateRect(t *testing.T) {
	// img holds the summed-area table of a 3x3 all-ones image, (r+1)*(c+1).
	img, _ := raster.NewImage(3, 3, 1)
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			img.Set(r, c, 0, uint8((r+1)*(c+1)))
		}
	}
	// corners (0,0) and (2,2) cover the 2x2 block rows (0,2], cols (0,2]:
	// I(0,0) + I(2,2) - I(0,2) - I(2,0) = 1 + 9 - 3 - 3 = 4
	f := Filter{Kind: Rect, A: Offset{DR: 0, DC: 0, Ch: 0}, B: Offset{DR: 2, DC: 2, Ch: 0}}
	v, err := Evaluate(f, img, 0, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != 4 {
		t.Errorf("expected 4, got %d", v)
	}
}

func TestEvaluateIntegralMatchesDirectSum(t *testing.T) {
	img, _ := raster.NewImage(5, 5, 1)
	for r := 0; r < 5; r++ {
		for c := 0; c < 5; c++ {
			img.Set(r, c, 0, uint8(r*5+c))
		}
	}
	ii := raster.Integral(img)

	f := Filter{Kind: Rect, A: Offset{DR: -1, DC: -1, Ch: 0}, B: Offset{DR: 1, DC: 1, Ch: 0}}
	// at (2,2) the inclusive rectangle is rows 1..3, cols 1..3
	var want int64
	for r := 1; r <= 3; r++ {
		for c := 1; c <= 3; c++ {
			v, _ := img.At(r, c, 0)
			want += int64(v)
		}
	}
	got, err := EvaluateIntegral(f, ii, 2, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != want {
		t.Errorf("integral path disagreed with direct sum: got %d, want %d", got, want)
	}
}

func TestEvaluateIntegralOutOfBounds(t *testing.T) {
	img, _ := raster.NewImage(3, 3, 1)
	ii := raster.Integral(img)
	f := Filter{Kind: Rect, A: Offset{DR: 0, DC: 0, Ch: 0}, B: Offset{DR: 5, DC: 5, Ch: 0}}
	if _, err := EvaluateIntegral(f, ii, 0, 0); !errors.Is(err, ErrNoData) {
		t.Errorf("expected ErrNoData, got %v", err)
	}
}

func TestEvaluateIntegralRejectsNonRect(t *testing.T) {
	ii := raster.Integral(mustImage())
	f := Filter{Kind: Raw, A: Offset{DR: 0, DC: 0, Ch: 0}}
	if _, err := EvaluateIntegral(f, ii, 0, 0); err == nil {
		t.Error("expected error for non-Rect kind")
	}
}

func mustImage() *raster.Image {
	img, _ := raster.NewImage(2, 2, 1)
	return img
}

func TestStringRoundTrip(t *testing.T) {
	f := Filter{Kind: Ratio, A: Offset{DR: -2, DC: 3, Ch: 1}, B: Offset{DR: 4, DC: -1, Ch: 2}}
	s := ToString(f)
	got, err := FromString(s)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != f {
		t.Errorf("roundtrip mismatch: got %+v, want %+v", got, f)
	}
}

func TestRandomizeRectanglesCanonicalCorners(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 100; i++ {
		f, err := Randomize(rng, Rectangles, 1, 5, false)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if f.A.DR > f.B.DR || f.A.DC > f.B.DC {
			t.Fatalf("expected upper-left/lower-right canonical corners, got %+v", f)
		}
		if f.A.Ch != f.B.Ch {
			t.Errorf("rectangle filters must share a channel")
		}
	}
}

func TestRandomizeRectanglesRejectsCrossChannel(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	if _, err := Randomize(rng, Rectangles, 3, 5, true); err == nil {
		t.Error("expected error for cross-channel rectangle request")
	}
}

func TestRandomizeRatiosForcesRatioKind(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 50; i++ {
		f, err := Randomize(rng, Ratios, 2, 5, true)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if f.Kind != Ratio {
			t.Errorf("expected Ratio kind, got %v", f.Kind)
		}
	}
}
