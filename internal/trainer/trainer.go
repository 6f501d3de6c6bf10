// Package trainer implements the per-thread random feature search: given a
// node's sample bucket, try nfeatures random candidate filters and keep
// the one with the best entropy-minimizing split.
package trainer

import (
	"math"
	"math/rand"

	"github.com/orbitalvision/texturecam/internal/dataset"
	"github.com/orbitalvision/texturecam/internal/filter"
)

const (
	// NThresh is the number of quantized threshold buckets a candidate
	// filter's output is sorted into.
	NThresh = 512
	// MinThresh is the lower bound of the quantized threshold range;
	// valid buckets span [MinThresh, MinThresh+NThresh-1].
	MinThresh = -255
	// MinSplit is the minimum mass-weighted sample count required on
	// either side of a candidate split.
	MinSplit = 32
	// small is the inclusion gate for a class's entropy contribution: a
	// class counts only if it has mass on both sides of the split.
	small = 1e-10
)

// Result is the outcome of one trainer's random search.
type Result struct {
	Valid     bool
	Filter    filter.Filter
	Threshold int64
	Score     float64
}

// Config parameterizes one trainer's candidate search.
type Config struct {
	Dataset      *dataset.Dataset
	Family       filter.Family
	Winsize      int
	Chans        int
	NFeatures    int
	CrossChannel bool
	NClasses     int
	// Bucket is the head of the sample chain (a list of indices into
	// Dataset.Samples) this trainer searches over.
	Bucket int
	Rng    *rand.Rand
}

// Search tries cfg.NFeatures random candidates and returns the best.
func Search(cfg Config) Result {
	best := Result{Score: -9e99}

	massScale := cfg.Dataset.MassScale()

	counts := make([]float64, cfg.NClasses*NThresh)
	accum := make([]float64, cfg.NClasses*NThresh)

	for f := 0; f < cfg.NFeatures; f++ {
		cand, err := filter.Randomize(cfg.Rng, cfg.Family, cfg.Chans, cfg.Winsize, cfg.CrossChannel)
		if err != nil {
			continue
		}

		for i := range counts {
			counts[i] = 0
		}

		for s := cfg.Bucket; s != -1; s = cfg.Dataset.Samples[s].Next {
			sample := cfg.Dataset.Samples[s]
			img := cfg.Dataset.Images[sample.Image]

			result, err := filter.Evaluate(cand, img, sample.R, sample.C)
			if err != nil {
				continue
			}

			idx := clampThresholdIndex(result)
			counts[int(sample.Label)*NThresh+idx] += massScale[sample.Label]
		}

		for k := 0; k < cfg.NClasses; k++ {
			base := k * NThresh
			accum[base] = counts[base]
			for t := 1; t < NThresh; t++ {
				accum[base+t] = accum[base+t-1] + counts[base+t]
			}
		}

		for t := 1; t < NThresh-1; t++ {
			var totalLow, totalHigh float64
			lows := make([]float64, cfg.NClasses)
			highs := make([]float64, cfg.NClasses)

			for k := 0; k < cfg.NClasses; k++ {
				base := k * NThresh
				lows[k] = accum[base+t]
				highs[k] = accum[base+NThresh-1] - accum[base+t]
				totalLow += lows[k]
				totalHigh += highs[k]
			}

			if totalLow < MinSplit || totalHigh < MinSplit {
				continue
			}

			hLow := conditionalEntropy(lows, totalLow, highs)
			hHigh := conditionalEntropy(highs, totalHigh, lows)

			score := (totalHigh*hHigh + totalLow*hLow) / (totalHigh + totalLow)

			if score > best.Score {
				best = Result{
					Valid:     true,
					Filter:    cand,
					Threshold: indexToThreshold(t),
					Score:     score,
				}
			}
		}
	}

	return best
}

// conditionalEntropy computes the negated Shannon entropy, sum of p*ln(p),
// of the class distribution `side` (given its total mass), including only
// classes with mass on both sides of the split. The result is <= 0.
func conditionalEntropy(side []float64, total float64, other []float64) float64 {
	if total <= 0 {
		return 0
	}
	var h float64
	for k, mass := range side {
		if mass < small || other[k] < small {
			continue
		}
		p := mass / total
		h += p * math.Log(p)
	}
	return h
}

func clampThresholdIndex(result int64) int {
	idx := result - MinThresh
	if idx < 0 {
		return 0
	}
	if idx > NThresh-1 {
		return NThresh - 1
	}
	return int(idx)
}

func indexToThreshold(idx int) int64 {
	return int64(idx) + MinThresh
}
