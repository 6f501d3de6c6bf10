// Command catforest concatenates two or more trained forests into one,
// refusing to merge forests that disagree on filter family, class count,
// or window size.
package main

import (
	"fmt"
	"os"
	"strings"

	flag "github.com/docker/docker/pkg/mflag"

	"github.com/orbitalvision/texturecam/internal/clierr"
	"github.com/orbitalvision/texturecam/internal/colormap"
	"github.com/orbitalvision/texturecam/internal/forest"
	applog "github.com/orbitalvision/texturecam/internal/log"
)

var (
	inFlag  = flag.String([]string{"-forests"}, "", "comma-separated list of forest files to concatenate, at least two")
	outFlag = flag.String([]string{"o", "-out"}, "", "file to write the concatenated forest")
)

func main() {
	flag.Parse()

	if *inFlag == "" || *outFlag == "" {
		fmt.Fprintf(os.Stderr, "Usage of catforest:\n\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	paths := strings.Split(*inFlag, ",")
	if len(paths) < 2 {
		clierr.Fatal("catforest: need at least two forests to concatenate")
	}

	merged, mergedCM, err := loadAndConcat(paths)
	if err != nil {
		clierr.Fatal("error concatenating forests:", err)
	}

	out, err := os.Create(*outFlag)
	if err != nil {
		clierr.Fatal("error creating output file:", err)
	}
	defer out.Close()

	if err := forest.WriteForest(out, merged, mergedCM); err != nil {
		clierr.Fatal("error writing forest:", err)
	}

	applog.Infof("concatenated %d forests into %d trees", len(paths), merged.NTrees)
}

func loadAndConcat(paths []string) (*forest.Forest, *colormap.Map, error) {
	acc, accCM, err := loadForest(paths[0])
	if err != nil {
		return nil, nil, err
	}

	for _, p := range paths[1:] {
		next, nextCM, err := loadForest(p)
		if err != nil {
			return nil, nil, err
		}
		acc, accCM, err = forest.Concat(acc, next, accCM, nextCM)
		if err != nil {
			return nil, nil, fmt.Errorf("merging %q: %w", p, err)
		}
	}

	return acc, accCM, nil
}

func loadForest(path string) (*forest.Forest, *colormap.Map, error) {
	path = strings.TrimSpace(path)
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening %q: %w", path, err)
	}
	defer f.Close()
	return forest.ReadForest(f)
}
