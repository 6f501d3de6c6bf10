// Command prep runs the preprocessing pipeline over an image, stacking the
// requested derived channels (intensity, HSV, bandpass, bar filters, flat
// field, grey world) alongside the original bands into one feature image.
package main

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	flag "github.com/docker/docker/pkg/mflag"

	"github.com/orbitalvision/texturecam/internal/clierr"
	applog "github.com/orbitalvision/texturecam/internal/log"
	"github.com/orbitalvision/texturecam/internal/preprocess"
	"github.com/orbitalvision/texturecam/internal/raster"
)

var (
	inFlag      = flag.String([]string{"i", "-in"}, "", "input image")
	outFlag     = flag.String([]string{"o", "-out"}, "", "output feature stack")
	filtersFlag = flag.String([]string{"-filters"}, "", "comma-separated filters to stack: intensity,hsv,bandpass,bar,flatfield,greyworld")
	flatFlag    = flag.String([]string{"-flatfield"}, "", "flat-field reference image, required by the flatfield filter")

	bandpassLow  = flag.Int([]string{"-bandpass_low"}, 1, "bandpass inner blur radius")
	bandpassHigh = flag.Int([]string{"-bandpass_high"}, 4, "bandpass outer blur radius")

	greyworldTarget = flag.Int([]string{"-greyworld_target"}, 128, "grey world target mean")

	barAngles = flag.String([]string{"-bar_angles"}, "0,45,90,135", "comma-separated bar filter angles in degrees")
	barLength = flag.Int([]string{"-bar_length"}, 7, "bar filter length")
	barWidth  = flag.Int([]string{"-bar_width"}, 1, "bar filter width")

	dropOriginal = flag.Bool([]string{"-drop_original"}, false, "exclude the original bands from the output stack")
)

func main() {
	flag.Parse()

	if *inFlag == "" || *outFlag == "" || *filtersFlag == "" {
		fmt.Fprintf(os.Stderr, "Usage of prep:\n\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	img, err := loadImage(*inFlag)
	if err != nil {
		clierr.Fatal("error loading input image:", err)
	}

	layers := []*raster.Image{}
	if !*dropOriginal {
		layers = append(layers, img)
	}

	for _, name := range strings.Split(*filtersFlag, ",") {
		name = strings.TrimSpace(name)
		layer, err := applyFilter(name, img)
		if err != nil {
			clierr.Fatal(fmt.Sprintf("error applying filter %q: %v", name, err))
		}
		layers = append(layers, layer)
		applog.Infof("applied %s: %dx%dx%d", name, layer.Rows, layer.Cols, layer.Chans)
	}

	if len(layers) == 0 {
		clierr.Fatal("prep: no output layers (drop_original with an empty filter list)")
	}

	stacked, err := preprocess.Stack(layers...)
	if err != nil {
		clierr.Fatal("error stacking layers:", err)
	}

	out, err := os.Create(*outFlag)
	if err != nil {
		clierr.Fatal("error creating output file:", err)
	}
	defer out.Close()
	if err := raster.Encode(out, stacked); err != nil {
		clierr.Fatal("error writing output:", err)
	}
}

func applyFilter(name string, img *raster.Image) (*raster.Image, error) {
	switch name {
	case "intensity":
		return preprocess.Intensity(img), nil
	case "hsv":
		return preprocess.HSV(img)
	case "bandpass":
		return preprocess.Bandpass(img, *bandpassLow, *bandpassHigh), nil
	case "bar":
		bank, err := parseBarBank()
		if err != nil {
			return nil, err
		}
		return preprocess.BarFilters(img, bank), nil
	case "flatfield":
		if *flatFlag == "" {
			return nil, fmt.Errorf("flatfield filter requires -flatfield")
		}
		flat, err := loadImage(*flatFlag)
		if err != nil {
			return nil, fmt.Errorf("loading flat field reference: %w", err)
		}
		return preprocess.FlatField(img, flat)
	case "greyworld":
		return preprocess.GreyWorld(img, uint8(*greyworldTarget)), nil
	default:
		return nil, fmt.Errorf("unrecognized filter %q", name)
	}
}

func parseBarBank() ([]preprocess.BarFilter, error) {
	parts := strings.Split(*barAngles, ",")
	bank := make([]preprocess.BarFilter, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		deg, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return nil, fmt.Errorf("bad bar angle %q: %w", p, err)
		}
		bank = append(bank, preprocess.BarFilter{
			Angle:  deg * math.Pi / 180,
			Length: *barLength,
			Width:  *barWidth,
		})
	}
	return bank, nil
}

func loadImage(path string) (*raster.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return raster.Decode(f)
}
