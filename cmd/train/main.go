// Command train fits a texture-classification random forest from a set of
// labeled raster images and writes it to disk.
package main

import (
	"fmt"
	"math/rand"
	"os"
	"strings"
	"time"

	"github.com/davecheney/profile"
	flag "github.com/docker/docker/pkg/mflag"

	"github.com/orbitalvision/texturecam/internal/clierr"
	"github.com/orbitalvision/texturecam/internal/colormap"
	"github.com/orbitalvision/texturecam/internal/dataset"
	"github.com/orbitalvision/texturecam/internal/filter"
	"github.com/orbitalvision/texturecam/internal/forest"
	"github.com/orbitalvision/texturecam/internal/growdriver"
	applog "github.com/orbitalvision/texturecam/internal/log"
	"github.com/orbitalvision/texturecam/internal/raster"
	"github.com/orbitalvision/texturecam/internal/tree"
)

var (
	imagesFlag   = flag.String([]string{"-images"}, "", "comma-separated list of training image paths")
	labelsFlag   = flag.String([]string{"-labels"}, "", "comma-separated list of label image paths, one per image")
	colormapFlag = flag.String([]string{"-colormap"}, "", "colormap file mapping label colors to class ids (omit for single-channel label images)")
	modelFlag    = flag.String([]string{"m", "-model"}, "forest.model", "file to write the trained forest to")

	nTrees    = flag.Int([]string{"-trees"}, 10, "number of trees")
	nIter     = flag.Int([]string{"-niter"}, 50, "number of grow passes per tree")
	nFeatures = flag.Int([]string{"-nfeatures"}, 64, "random candidate filters evaluated per split search")
	winsize   = flag.Int([]string{"-winsize"}, 5, "filter window size")
	familyStr = flag.String([]string{"-family"}, "points", "filter family: points, ratios, or rectangles")
	crossChan = flag.Bool([]string{"-cross_channel"}, false, "allow a single filter to reference two different channels")
	nWorkers  = flag.Int([]string{"-workers"}, 4, "trainer threads per split search")
	nData     = flag.Int([]string{"-ndata"}, 10000, "number of training samples to draw")
	sampling  = flag.String([]string{"-sampling"}, "random", "sampling mode: random or balanced")
	seed      = flag.Int([]string{"-seed"}, 1, "random seed")

	runProfile = flag.Bool([]string{"-profile"}, false, "cpu profile")
)

func main() {
	flag.Parse()

	if *runProfile {
		defer profile.Start(profile.CPUProfile).Stop()
	}

	if *imagesFlag == "" || *labelsFlag == "" {
		fmt.Fprintf(os.Stderr, "Usage of train:\n\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	family, err := parseFamily(*familyStr)
	if err != nil {
		clierr.Fatal(err)
	}

	mode, err := parseSampling(*sampling)
	if err != nil {
		clierr.Fatal(err)
	}

	images, err := loadImages(strings.Split(*imagesFlag, ","))
	if err != nil {
		clierr.Fatal("error loading images:", err)
	}
	labels, err := loadImages(strings.Split(*labelsFlag, ","))
	if err != nil {
		clierr.Fatal("error loading labels:", err)
	}

	var cm *colormap.Map
	if *colormapFlag != "" {
		cmFile, err := os.Open(*colormapFlag)
		if err != nil {
			clierr.Fatal("error opening colormap:", err)
		}
		cm, err = colormap.Load(cmFile)
		cmFile.Close()
		if err != nil {
			clierr.Fatal("error reading colormap:", err)
		}
	}

	start := time.Now()

	d, err := dataset.Build(images, labels, cm, *nData, mode, int64(*seed))
	if err != nil {
		clierr.Fatal("error building dataset:", err)
	}

	f := forest.New(*nTrees, family, d.NClasses, *winsize)
	if err := growdriver.AssignEvenly(d, f.Trees); err != nil {
		clierr.Fatal("error assigning samples:", err)
	}

	cfg := growdriver.Config{
		NThreads:     *nWorkers,
		NFeatures:    *nFeatures,
		Family:       family,
		Winsize:      *winsize,
		Chans:        images[0].Chans,
		CrossChannel: *crossChan,
		NClasses:     d.NClasses,
		Rng:          rand.New(rand.NewSource(int64(*seed))),
	}

	done := make([]bool, len(f.Trees))
	for iter := 0; iter < *nIter; iter++ {
		pending := f.Trees
		errs := growdriver.Grow(d, pending, cfg)
		for i, err := range errs {
			if err == growdriver.ErrNoExpandableNode || err == tree.ErrCapacity {
				done[i] = true
			}
		}
		if allDone(done) {
			applog.Infof("all trees finished growing after %d iterations", iter+1)
			break
		}
	}

	growdriver.TallyClasses(d, f.Trees, d.NClasses)

	out, err := os.Create(*modelFlag)
	if err != nil {
		clierr.Fatal("error creating model file:", err)
	}
	defer out.Close()

	if err := forest.WriteForest(out, f, cm); err != nil {
		clierr.Fatal("error writing forest:", err)
	}

	applog.Infof("fit %d trees on %d samples in %s", f.NTrees, *nData, time.Since(start))
}

func allDone(done []bool) bool {
	for _, d := range done {
		if !d {
			return false
		}
	}
	return true
}

func parseFamily(s string) (filter.Family, error) {
	switch s {
	case "points":
		return filter.Points, nil
	case "ratios":
		return filter.Ratios, nil
	case "rectangles":
		return filter.Rectangles, nil
	default:
		return 0, fmt.Errorf("train: unrecognized filter family %q", s)
	}
}

func parseSampling(s string) (dataset.SamplingMode, error) {
	switch s {
	case "random":
		return dataset.RandomSampling, nil
	case "balanced":
		return dataset.BalancedSampling, nil
	default:
		return 0, fmt.Errorf("train: unrecognized sampling mode %q", s)
	}
}

func loadImages(paths []string) ([]*raster.Image, error) {
	imgs := make([]*raster.Image, len(paths))
	for i, p := range paths {
		p = strings.TrimSpace(p)
		f, err := os.Open(p)
		if err != nil {
			return nil, fmt.Errorf("opening %q: %w", p, err)
		}
		img, err := raster.Decode(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("decoding %q: %w", p, err)
		}
		imgs[i] = img
	}
	return imgs, nil
}
