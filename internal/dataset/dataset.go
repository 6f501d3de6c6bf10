// Package dataset builds the sampled training set consumed by the grow
// driver: images, label rasters, sampled points, and per-class population
// counts.
package dataset

import (
	"fmt"
	"math/rand"

	"github.com/orbitalvision/texturecam/internal/colormap"
	"github.com/orbitalvision/texturecam/internal/raster"
)

// SamplingMode selects how query points are drawn.
type SamplingMode int

const (
	// RandomSampling draws an image uniformly, then a pixel uniformly
	// within it, rejecting unclassified pixels.
	RandomSampling SamplingMode = iota
	// BalancedSampling round-robins over classes so each is represented
	// roughly equally.
	BalancedSampling
)

// Sample is one labeled training point, plus a Next link chaining it into
// a node's bucket. Index -1 terminates a chain.
type Sample struct {
	Image int
	R, C  int
	Label uint8
	Next  int
}

// Dataset owns the training images, label rasters, and the flat sample
// array nodes borrow buckets from.
type Dataset struct {
	Images []*raster.Image
	Labels []*raster.Label

	// Classes[i][k] is the number of pixels of class k present in image i.
	Classes [][]int

	Samples []Sample

	// Represented[k] is the total number of accepted samples of class k
	// across the whole dataset.
	Represented [raster.MaxClasses]int

	NClasses int
}

// Build loads images/labels (optionally relabeling color-coded label
// rasters through cm), then draws ndata samples per samplingMode.
func Build(images, labels []*raster.Image, cm *colormap.Map, ndata int, mode SamplingMode, seed int64) (*Dataset, error) {
	if len(images) == 0 {
		return nil, fmt.Errorf("dataset: no images supplied")
	}
	if len(images) != len(labels) {
		return nil, fmt.Errorf("dataset: %d images but %d label rasters", len(images), len(labels))
	}

	d := &Dataset{
		Images:   images,
		Labels:   make([]*raster.Label, len(images)),
		Classes:  make([][]int, len(images)),
		NClasses: 1,
	}

	for i, labelImg := range labels {
		if cm != nil {
			lbl, counts, err := cm.Label(labelImg)
			if err != nil {
				return nil, fmt.Errorf("dataset: labeling image %d: %w", i, err)
			}
			d.Labels[i] = lbl
			d.Classes[i] = counts
		} else {
			if labelImg.Chans != 1 {
				return nil, fmt.Errorf("dataset: image %d label raster has %d channels, want 1 (no colormap supplied)", i, labelImg.Chans)
			}
			lbl, err := raster.FromSingleChannel(labelImg)
			if err != nil {
				return nil, err
			}
			d.Labels[i] = lbl
			d.Classes[i] = countClasses(lbl)
		}
	}

	// Balanced sampling needs to know the full class cardinality up front
	// to round-robin correctly, rather than discovering it one sample at
	// a time. A colormap supplies this directly (one entry per class,
	// including unused ones); without one, the observed per-image class
	// counts are the best available estimate.
	if cm != nil {
		d.NClasses = len(cm.Colors)
	} else {
		for _, counts := range d.Classes {
			for k, n := range counts {
				if n > 0 && k+1 > d.NClasses {
					d.NClasses = k + 1
				}
			}
		}
	}

	rng := rand.New(rand.NewSource(seed))
	if err := d.sample(rng, ndata, mode); err != nil {
		return nil, err
	}

	return d, nil
}

func countClasses(l *raster.Label) []int {
	counts := make([]int, raster.MaxClasses)
	for _, v := range l.L {
		if int(v) < raster.MaxClasses {
			counts[v]++
		}
	}
	return counts
}

func (d *Dataset) sample(rng *rand.Rand, ndata int, mode SamplingMode) error {
	d.Samples = make([]Sample, ndata)
	currentLabel := 1

	for i := 0; i < ndata; i++ {
		var image, r, c int
		var label uint8

		for {
			image = rng.Intn(len(d.Images))
			lbl := d.Labels[image]

			if mode == BalancedSampling && d.Classes[image][currentLabel] == 0 {
				continue
			}

			r = rng.Intn(lbl.Rows)
			c = rng.Intn(lbl.Cols)
			v, _ := lbl.At(r, c)
			label = v

			if label == 0 || int(label) >= raster.MaxClasses {
				continue
			}
			if mode == BalancedSampling && label != uint8(currentLabel) {
				continue
			}
			break
		}

		d.Samples[i] = Sample{Image: image, R: r, C: c, Label: label, Next: i + 1}
		d.Represented[label]++
		if int(label)+1 > d.NClasses {
			d.NClasses = int(label) + 1
		}

		if mode == BalancedSampling {
			currentLabel = (currentLabel + 1) % d.NClasses
			if currentLabel == 0 {
				currentLabel = 1
			}
		}
	}

	if ndata > 0 {
		d.Samples[ndata-1].Next = -1
	}

	return nil
}

// MassScale returns the class-reweighting factor used by the trainer:
// max_represented / represented[k], scaled so the most-represented class
// has scale 1. Classes with zero representation get scale 0 (they never
// contribute mass).
func (d *Dataset) MassScale() [raster.MaxClasses]float64 {
	var scale [raster.MaxClasses]float64
	maxRepresented := 0
	for _, n := range d.Represented {
		if n > maxRepresented {
			maxRepresented = n
		}
	}
	for k, n := range d.Represented {
		if n > 0 {
			scale[k] = float64(maxRepresented) / float64(n)
		}
	}
	return scale
}
