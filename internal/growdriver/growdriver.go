// Package growdriver drives tree growth: selecting the next node to split,
// fanning candidate searches out to parallel trainers, installing the
// winning split, and propagating samples to the new children. It mirrors
// the worker-pool pattern used for parallel tree fitting, but fans out
// within a single node's split search rather than across whole trees.
package growdriver

import (
	"errors"
	"math/rand"
	"sync"

	"github.com/orbitalvision/texturecam/internal/dataset"
	"github.com/orbitalvision/texturecam/internal/filter"
	"github.com/orbitalvision/texturecam/internal/node"
	"github.com/orbitalvision/texturecam/internal/raster"
	"github.com/orbitalvision/texturecam/internal/trainer"
	"github.com/orbitalvision/texturecam/internal/tree"
)

// MinSamples is the smallest bucket a leaf may have and still be chosen as
// an expansion target.
const MinSamples = 32

// ErrNoExpandableNode means no leaf in a tree both qualifies as expandable
// and holds at least MinSamples samples; that tree's growth is done.
var ErrNoExpandableNode = errors.New("growdriver: no expandable node with enough samples")

// Config parameterizes one Grow pass.
type Config struct {
	NThreads     int
	NFeatures    int
	Family       filter.Family
	Winsize      int
	Chans        int
	CrossChannel bool
	NClasses     int
	// Rng is the single main-thread generator. Per-thread generators are
	// derived from it sequentially, before any trainer goroutine starts,
	// so the shared generator is never touched concurrently (see the
	// note on parallel PRNGs: a conforming implementation may replace a
	// shared generator with per-thread ones seeded from the main seed
	// and thread index).
	Rng *rand.Rand
}

// AssignEvenly distributes d's samples across trees' root buckets: sample i
// goes to tree floor(i*ntrees/ndata), preserving source order within each
// tree's bucket.
func AssignEvenly(d *dataset.Dataset, trees []*tree.Tree) error {
	ntrees := len(trees)
	if ntrees == 0 {
		return errors.New("growdriver: no trees to assign samples to")
	}
	ndata := len(d.Samples)

	heads := make([]int, ntrees)
	tails := make([]int, ntrees)
	for i := range heads {
		heads[i] = node.NoSample
		tails[i] = node.NoSample
	}

	for i := 0; i < ndata; i++ {
		t := i * ntrees / ndata
		d.Samples[i].Next = node.NoSample
		if heads[t] == node.NoSample {
			heads[t] = i
		} else {
			d.Samples[tails[t]].Next = i
		}
		tails[t] = i
	}

	for i, tr := range trees {
		tr.Nodes[0].Bucket = heads[i]
	}
	return nil
}

// Grow performs one expansion attempt on every tree: pick the largest
// qualifying leaf, run NThreads trainers in parallel (each trying
// NFeatures random candidates), install
// the winner, and propagate samples to the two new children. The returned
// slice has one entry per tree; a nil entry means the tree either grew or
// had a node ruled unsplittable, both of which are normal outcomes.
func Grow(d *dataset.Dataset, trees []*tree.Tree, cfg Config) []error {
	errs := make([]error, len(trees))
	for i, t := range trees {
		errs[i] = growOne(d, t, cfg)
	}
	return errs
}

func growOne(d *dataset.Dataset, t *tree.Tree, cfg Config) error {
	if !t.HasRoom() {
		return tree.ErrCapacity
	}

	target, ok := selectTarget(d, t)
	if !ok {
		return ErrNoExpandableNode
	}

	bucket := t.Nodes[target].Bucket

	seeds := make([]int64, cfg.NThreads)
	for i := range seeds {
		seeds[i] = cfg.Rng.Int63()
	}

	results := make([]trainer.Result, cfg.NThreads)
	var wg sync.WaitGroup
	for w := 0; w < cfg.NThreads; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			results[w] = trainer.Search(trainer.Config{
				Dataset:      d,
				Family:       cfg.Family,
				Winsize:      cfg.Winsize,
				Chans:        cfg.Chans,
				NFeatures:    cfg.NFeatures,
				CrossChannel: cfg.CrossChannel,
				NClasses:     cfg.NClasses,
				Bucket:       bucket,
				Rng:          rand.New(rand.NewSource(seeds[w])),
			})
		}(w)
	}
	wg.Wait()

	winner, ok := reduce(results)
	if !ok {
		t.Nodes[target].Expandable = false
		return nil
	}

	t.Nodes[target].Filter = winner.Filter
	t.Nodes[target].Threshold = winner.Threshold

	low, high, err := t.AddChildren(target)
	if err != nil {
		return err
	}

	propagate(d, t, target, low, high)

	return nil
}

// selectTarget picks the expandable leaf with the largest bucket, provided
// it meets MinSamples. Ties resolve to the first qualifying node in array
// order.
func selectTarget(d *dataset.Dataset, t *tree.Tree) (uint16, bool) {
	best := -1
	bestSize := -1

	for i := 0; i < int(t.NNodes); i++ {
		n := &t.Nodes[i]
		if !node.IsLeaf(n) || !node.IsExpandable(n) {
			continue
		}
		size := bucketLen(d, n.Bucket)
		if size >= MinSamples && size > bestSize {
			bestSize = size
			best = i
		}
	}

	if best == -1 {
		return 0, false
	}
	return uint16(best), true
}

// reduce picks the trainer with the largest valid score, tie-breaking on
// the lowest thread index.
func reduce(results []trainer.Result) (trainer.Result, bool) {
	var best trainer.Result
	found := false
	for _, r := range results {
		if !r.Valid {
			continue
		}
		if !found || r.Score > best.Score {
			best = r
			found = true
		}
	}
	return best, found
}

// propagate re-evaluates the installed filter for every sample in the
// parent's bucket, routing each to low or high by the split test, and
// dropping any that hit NoData. The parent's bucket is cleared.
func propagate(d *dataset.Dataset, t *tree.Tree, parent, low, high uint16) {
	filterTest := t.Nodes[parent].Filter
	threshold := t.Nodes[parent].Threshold

	var lowHead, lowTail = node.NoSample, node.NoSample
	var highHead, highTail = node.NoSample, node.NoSample

	for s := t.Nodes[parent].Bucket; s != node.NoSample; {
		sample := d.Samples[s]
		next := sample.Next
		img := d.Images[sample.Image]

		result, err := filter.Evaluate(filterTest, img, sample.R, sample.C)
		if err != nil {
			s = next
			continue
		}

		if result > threshold {
			highHead, highTail = appendChain(d, highHead, highTail, s)
		} else {
			lowHead, lowTail = appendChain(d, lowHead, lowTail, s)
		}

		s = next
	}

	t.Nodes[low].Bucket = lowHead
	t.Nodes[high].Bucket = highHead
	t.Nodes[parent].Bucket = node.NoSample
}

func appendChain(d *dataset.Dataset, head, tail, s int) (int, int) {
	d.Samples[s].Next = node.NoSample
	if head == node.NoSample {
		return s, s
	}
	d.Samples[tail].Next = s
	return head, s
}

func bucketLen(d *dataset.Dataset, head int) int {
	n := 0
	for s := head; s != node.NoSample; s = d.Samples[s].Next {
		n++
	}
	return n
}

// TallyClasses recomputes every node's class counts from scratch: it zeros
// all counts, then walks every sample through every tree from root to
// wherever it stops (a leaf, or a node whose filter hits NoData), bumping
// class_counts at every node visited along the way - not only at the
// leaf. Finally it recomputes class probabilities for every node.
func TallyClasses(d *dataset.Dataset, trees []*tree.Tree, nclasses int) {
	for _, t := range trees {
		for i := 0; i < int(t.NNodes); i++ {
			n := &t.Nodes[i]
			for k := range n.ClassCounts {
				n.ClassCounts[k] = 0
				n.ClassProbs[k] = 0
			}
		}
	}

	var invRepresented [raster.MaxClasses]float32
	for k, n := range d.Represented {
		if n > 0 {
			invRepresented[k] = float32(1.0 / float64(n))
		}
	}

	for _, sample := range d.Samples {
		img := d.Images[sample.Image]
		for _, t := range trees {
			id := uint16(0)
			for {
				n := &t.Nodes[id]
				n.ClassCounts[sample.Label] += invRepresented[sample.Label]
				if node.IsLeaf(n) {
					break
				}
				result, err := filter.Evaluate(n.Filter, img, sample.R, sample.C)
				if err != nil {
					break
				}
				if result > n.Threshold {
					id = n.Right
				} else {
					id = n.Left
				}
			}
		}
	}

	for _, t := range trees {
		for i := 0; i < int(t.NNodes); i++ {
			node.UpdateProbs(&t.Nodes[i], nclasses)
		}
	}
}
