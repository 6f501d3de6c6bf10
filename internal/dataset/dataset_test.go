package dataset

import (
	"testing"

	"github.com/orbitalvision/texturecam/internal/raster"
)

func checkerboardPair() (*raster.Image, *raster.Image) {
	img, _ := raster.NewImage(4, 4, 1)
	lbl, _ := raster.NewImage(4, 4, 1)
	for r := 0; r < 4; r++ {
		for c := 0; c < 4; c++ {
			if (r+c)%2 == 0 {
				img.Set(r, c, 0, 10)
				lbl.Set(r, c, 0, 1)
			} else {
				img.Set(r, c, 0, 200)
				lbl.Set(r, c, 0, 2)
			}
		}
	}
	return img, lbl
}

func TestBuildRandomSampling(t *testing.T) {
	img, lbl := checkerboardPair()
	d, err := Build([]*raster.Image{img}, []*raster.Image{lbl}, nil, 100, RandomSampling, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(d.Samples) != 100 {
		t.Fatalf("expected 100 samples, got %d", len(d.Samples))
	}
	for _, s := range d.Samples {
		if s.Label == 0 || int(s.Label) >= raster.MaxClasses {
			t.Errorf("sample has invalid label %d", s.Label)
		}
	}
}

func TestBalancedSamplingEvenCounts(t *testing.T) {
	// image with 90% label 1, 10% label 2
	img, _ := raster.NewImage(10, 10, 1)
	lbl, _ := raster.NewImage(10, 10, 1)
	for r := 0; r < 10; r++ {
		for c := 0; c < 10; c++ {
			img.Set(r, c, 0, 100)
			if r == 0 && c < 10 {
				lbl.Set(r, c, 0, 2)
			} else {
				lbl.Set(r, c, 0, 1)
			}
		}
	}

	d, err := Build([]*raster.Image{img}, []*raster.Image{lbl}, nil, 1000, BalancedSampling, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	diff := d.Represented[1] - d.Represented[2]
	if diff < 0 {
		diff = -diff
	}
	if diff > 1 {
		t.Errorf("expected balanced counts to differ by at most 1, got represented=%v", d.Represented)
	}
}

func TestMassScaleMostRepresentedIsOne(t *testing.T) {
	img, lbl := checkerboardPair()
	d, err := Build([]*raster.Image{img}, []*raster.Image{lbl}, nil, 200, RandomSampling, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	scale := d.MassScale()
	if scale[1] != 1 && scale[2] != 1 {
		t.Errorf("expected the most-represented class to have scale 1, got %v", scale)
	}
}

func TestSampleChainTerminates(t *testing.T) {
	img, lbl := checkerboardPair()
	d, err := Build([]*raster.Image{img}, []*raster.Image{lbl}, nil, 10, RandomSampling, 4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Samples[9].Next != -1 {
		t.Errorf("expected last sample's Next to be -1, got %d", d.Samples[9].Next)
	}
	for i := 0; i < 9; i++ {
		if d.Samples[i].Next != i+1 {
			t.Errorf("expected sample %d to chain to %d, got %d", i, i+1, d.Samples[i].Next)
		}
	}
}

func TestMismatchedImageLabelCounts(t *testing.T) {
	img, lbl := checkerboardPair()
	_, err := Build([]*raster.Image{img, img}, []*raster.Image{lbl}, nil, 10, RandomSampling, 1)
	if err == nil {
		t.Error("expected error for mismatched image/label counts")
	}
}
