// Command classify applies a trained forest to an image, producing a
// per-pixel label raster and, optionally, a per-class probability stack.
package main

import (
	"fmt"
	"os"

	flag "github.com/docker/docker/pkg/mflag"

	"github.com/orbitalvision/texturecam/internal/clierr"
	"github.com/orbitalvision/texturecam/internal/colormap"
	"github.com/orbitalvision/texturecam/internal/forest"
	applog "github.com/orbitalvision/texturecam/internal/log"
	"github.com/orbitalvision/texturecam/internal/raster"
)

var (
	modelFlag = flag.String([]string{"m", "-model"}, "", "trained forest file")
	imageFlag = flag.String([]string{"i", "-image"}, "", "image to classify")
	outFlag   = flag.String([]string{"o", "-out"}, "", "file to write the classified label raster")
	probsFlag = flag.String([]string{"-probs"}, "", "optional file to write the per-class probability stack")
)

func main() {
	flag.Parse()

	if *modelFlag == "" || *imageFlag == "" || *outFlag == "" {
		fmt.Fprintf(os.Stderr, "Usage of classify:\n\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	modelFile, err := os.Open(*modelFlag)
	if err != nil {
		clierr.Fatal("error opening model:", err)
	}
	f, cm, err := forest.ReadForest(modelFile)
	modelFile.Close()
	if err != nil {
		clierr.Fatal("error reading model:", err)
	}

	imgFile, err := os.Open(*imageFlag)
	if err != nil {
		clierr.Fatal("error opening image:", err)
	}
	img, err := raster.Decode(imgFile)
	imgFile.Close()
	if err != nil {
		clierr.Fatal("error decoding image:", err)
	}

	outChans := 1
	if cm != nil {
		outChans = cm.ColorDepth
	}
	out, err := raster.NewImage(img.Rows, img.Cols, outChans)
	if err != nil {
		clierr.Fatal("error allocating output:", err)
	}

	var probsOut *raster.Image
	var probsScratch []float32
	if *probsFlag != "" {
		probsOut, err = raster.NewImage(img.Rows, img.Cols, f.NClasses)
		if err != nil {
			clierr.Fatal("error allocating probability stack:", err)
		}
		probsScratch = make([]float32, f.NClasses)
	}

	errorPixels := 0
	for r := 0; r < img.Rows; r++ {
		for c := 0; c < img.Cols; c++ {
			class := f.Classify(img, r, c, probsScratch)
			if class == raster.ErrorClass {
				errorPixels++
			}
			writeClass(out, cm, r, c, class)

			if probsOut != nil {
				for k := 0; k < f.NClasses; k++ {
					p := probsScratch[k] / float32(f.NTrees)
					probsOut.Set(r, c, k, scaleProb(p))
				}
			}
		}
	}

	outFile, err := os.Create(*outFlag)
	if err != nil {
		clierr.Fatal("error creating output file:", err)
	}
	defer outFile.Close()
	if err := raster.Encode(outFile, out); err != nil {
		clierr.Fatal("error writing output:", err)
	}

	if probsOut != nil {
		probsFile, err := os.Create(*probsFlag)
		if err != nil {
			clierr.Fatal("error creating probability file:", err)
		}
		defer probsFile.Close()
		if err := raster.Encode(probsFile, probsOut); err != nil {
			clierr.Fatal("error writing probability stack:", err)
		}
	}

	applog.Infof("classified %dx%d pixels, %d as ErrorClass", img.Rows, img.Cols, errorPixels)
}

// writeClass renders a classified pixel into out: its color-map entry if
// one is available (ErrorClass and any class past the map's range fall
// back to black), or the bare class id for single-channel output.
func writeClass(out *raster.Image, cm *colormap.Map, r, c int, class uint8) {
	if cm == nil {
		out.Set(r, c, 0, class)
		return
	}
	if int(class) >= len(cm.Colors) {
		for k := 0; k < out.Chans; k++ {
			out.Set(r, c, k, 0)
		}
		return
	}
	color := cm.Colors[class]
	for k := 0; k < out.Chans; k++ {
		out.Set(r, c, k, color[k])
	}
}

func scaleProb(p float32) uint8 {
	v := p * 255
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}
