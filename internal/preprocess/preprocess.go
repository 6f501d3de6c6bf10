// Package preprocess implements the image-to-image transforms that turn a
// raw raster into the multi-channel feature stack the forest core trains
// and classifies against: colorspace conversion, band-pass and oriented-bar
// texture filters, flat-field correction, and grey-world normalization.
package preprocess

import (
	"fmt"
	"math"

	"github.com/orbitalvision/texturecam/internal/raster"
)

func clamp8(v float64) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}

// Intensity collapses img to a single luma channel: the max across all
// input channels at each pixel. A 1-channel input passes through unchanged.
func Intensity(img *raster.Image) *raster.Image {
	if img.Chans == 1 {
		return img.Clone()
	}

	out, _ := raster.NewImage(img.Rows, img.Cols, 1)
	for r := 0; r < img.Rows; r++ {
		for c := 0; c < img.Cols; c++ {
			v, _ := img.At(r, c, 0)
			max := v
			for b := 1; b < img.Chans; b++ {
				v, _ = img.At(r, c, b)
				if v > max {
					max = v
				}
			}
			out.Set(r, c, 0, max)
		}
	}
	return out
}

// HSV converts a 3-channel RGB image to a 3-channel hue/saturation/value
// stack, all channels scaled to 0-255, following the fixed-point
// conversion used by the original texture-camera preprocessing stage.
func HSV(img *raster.Image) (*raster.Image, error) {
	if img.Chans != 3 {
		return nil, fmt.Errorf("preprocess: HSV requires a 3-channel image, got %d", img.Chans)
	}

	out, _ := raster.NewImage(img.Rows, img.Cols, 3)
	for r := 0; r < img.Rows; r++ {
		for c := 0; c < img.Cols; c++ {
			red, _ := img.At(r, c, 0)
			grn, _ := img.At(r, c, 1)
			blu, _ := img.At(r, c, 2)

			rgbMin := min3(red, grn, blu)
			rgbMax := max3(red, grn, blu)

			val := rgbMax
			var hue, sat uint8

			if val != 0 {
				sat = uint8(255 * int(rgbMax-rgbMin) / int(val))
			}

			if sat != 0 {
				switch rgbMax {
				case red:
					hue = uint8(43 * int(grn-blu) / int(rgbMax-rgbMin))
				case grn:
					hue = uint8(85 + 43*int(blu-red)/int(rgbMax-rgbMin))
				default:
					hue = uint8(171 + 43*int(red-grn)/int(rgbMax-rgbMin))
				}
			} else {
				hue = 0
				val = 0
			}

			out.Set(r, c, 0, hue)
			out.Set(r, c, 1, sat)
			out.Set(r, c, 2, val)
		}
	}
	return out, nil
}

func min3(a, b, c uint8) uint8 {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}

func max3(a, b, c uint8) uint8 {
	m := a
	if b > m {
		m = b
	}
	if c > m {
		m = c
	}
	return m
}

// boxBlur averages a single-channel image over a (2*radius+1)^2 window,
// clamping the window to the image border.
func boxBlur(img *raster.Image, radius int) *raster.Image {
	out, _ := raster.NewImage(img.Rows, img.Cols, 1)
	for r := 0; r < img.Rows; r++ {
		for c := 0; c < img.Cols; c++ {
			var sum, n int
			for dr := -radius; dr <= radius; dr++ {
				for dc := -radius; dc <= radius; dc++ {
					v, ok := img.At(r+dr, c+dc, 0)
					if !ok {
						continue
					}
					sum += int(v)
					n++
				}
			}
			if n == 0 {
				n = 1
			}
			out.Set(r, c, 0, uint8(sum/n))
		}
	}
	return out
}

// Bandpass produces the difference of two box-blurred copies of img's
// intensity channel, a cheap stand-in for the original's multi-scale
// bandpass stage: low and high are the two blur radii (low < high isolates
// mid-frequency texture).
func Bandpass(img *raster.Image, low, high int) *raster.Image {
	intensity := Intensity(img)
	lowBlur := boxBlur(intensity, low)
	highBlur := boxBlur(intensity, high)

	out, _ := raster.NewImage(img.Rows, img.Cols, 1)
	for r := 0; r < img.Rows; r++ {
		for c := 0; c < img.Cols; c++ {
			lv, _ := lowBlur.At(r, c, 0)
			hv, _ := highBlur.At(r, c, 0)
			d := int(lv) - int(hv)
			if d < 0 {
				d = -d
			}
			out.Set(r, c, 0, uint8(d))
		}
	}
	return out
}

// BarFilter describes one oriented bar kernel: a line of Length pixels at
// Angle radians, Width pixels wide.
type BarFilter struct {
	Angle         float64
	Length, Width int
}

// BarFilters computes the maximum oriented-bar response over bank at every
// pixel of img's intensity channel, producing a single output channel. The
// bank is passed explicitly rather than held in package state, so two
// callers with different banks never interfere with each other.
func BarFilters(img *raster.Image, bank []BarFilter) *raster.Image {
	intensity := Intensity(img)
	out, _ := raster.NewImage(img.Rows, img.Cols, 1)

	for r := 0; r < img.Rows; r++ {
		for c := 0; c < img.Cols; c++ {
			var best float64
			for _, bf := range bank {
				resp := barResponse(intensity, r, c, bf)
				if resp > best {
					best = resp
				}
			}
			out.Set(r, c, 0, clamp8(best))
		}
	}
	return out
}

// barResponse averages intensity along a line of bf.Length pixels oriented
// at bf.Angle, averaged across 2*(bf.Width/2)+1 parallel offsets, then subtracts the
// mean of two flanking lines on either side - a response that peaks when a
// bright (or dark) bar crosses the kernel at that orientation.
func barResponse(img *raster.Image, r, c int, bf BarFilter) float64 {
	dl := math.Sin(bf.Angle)
	dc := math.Cos(bf.Angle)
	// perpendicular direction, for width averaging and the flank offset.
	pdl := -dc
	pdc := dl

	half := bf.Length / 2
	wHalf := bf.Width / 2

	sampleLine := func(wOffset float64) float64 {
		var sum float64
		var n int
		for l := -half; l <= half; l++ {
			rr := float64(r) + float64(l)*dl + wOffset*pdl
			cc := float64(c) + float64(l)*dc + wOffset*pdc
			v, ok := img.At(int(math.Round(rr)), int(math.Round(cc)), 0)
			if !ok {
				continue
			}
			sum += float64(v)
			n++
		}
		if n == 0 {
			return 0
		}
		return sum / float64(n)
	}

	var center float64
	for w := -wHalf; w <= wHalf; w++ {
		center += sampleLine(float64(w))
	}
	if bf.Width > 0 {
		center /= float64(2*wHalf + 1)
	}

	flankDist := float64(wHalf + bf.Width + 1)
	flank := (sampleLine(flankDist) + sampleLine(-flankDist)) / 2

	resp := center - flank
	if resp < 0 {
		resp = -resp
	}
	return resp
}

// FlatField corrects shading by scaling each pixel against a reference
// flat-field image of identical geometry: every channel's darkest
// flat-field pixel becomes the reference brightness, and every other pixel
// in that channel is scaled by reference/flat at that location.
func FlatField(img, flat *raster.Image) (*raster.Image, error) {
	if img.Rows != flat.Rows || img.Cols != flat.Cols || img.Chans != flat.Chans {
		return nil, fmt.Errorf("preprocess: flat-field geometry mismatch: image %dx%dx%d, flat %dx%dx%d",
			img.Rows, img.Cols, img.Chans, flat.Rows, flat.Cols, flat.Chans)
	}

	mins := make([]float64, img.Chans)
	for b := range mins {
		mins[b] = math.MaxFloat64
	}
	for r := 0; r < flat.Rows; r++ {
		for c := 0; c < flat.Cols; c++ {
			for b := 0; b < flat.Chans; b++ {
				v, _ := flat.At(r, c, b)
				if float64(v) < mins[b] {
					mins[b] = float64(v)
				}
			}
		}
	}

	out, _ := raster.NewImage(img.Rows, img.Cols, img.Chans)
	for r := 0; r < img.Rows; r++ {
		for c := 0; c < img.Cols; c++ {
			for b := 0; b < img.Chans; b++ {
				sv, _ := img.At(r, c, b)
				fv, _ := flat.At(r, c, b)
				if fv == 0 {
					out.Set(r, c, b, sv)
					continue
				}
				scale := mins[b] / float64(fv)
				out.Set(r, c, b, clamp8(float64(sv)*scale))
			}
		}
	}
	return out, nil
}

// GreyWorld applies grey-world color constancy: each channel is rescaled
// so its mean equals target.
func GreyWorld(img *raster.Image, target uint8) *raster.Image {
	out, _ := raster.NewImage(img.Rows, img.Cols, img.Chans)
	for b := 0; b < img.Chans; b++ {
		var sum int
		for r := 0; r < img.Rows; r++ {
			for c := 0; c < img.Cols; c++ {
				v, _ := img.At(r, c, b)
				sum += int(v)
			}
		}
		area := img.Rows * img.Cols
		mu := float64(sum) / float64(area)
		if mu == 0 {
			mu = 1
		}
		for r := 0; r < img.Rows; r++ {
			for c := 0; c < img.Cols; c++ {
				v, _ := img.At(r, c, b)
				out.Set(r, c, b, clamp8(float64(v)/mu*float64(target)))
			}
		}
	}
	return out
}

// Stack concatenates same-geometry images along the channel axis into the
// multi-channel raster the forest core consumes.
func Stack(imgs ...*raster.Image) (*raster.Image, error) {
	if len(imgs) == 0 {
		return nil, fmt.Errorf("preprocess: no images to stack")
	}
	first := imgs[0]
	totalChans := 0
	for i, img := range imgs {
		if !raster.SameGeometry(first, img) {
			return nil, fmt.Errorf("preprocess: image %d has geometry %dx%d, want %dx%d",
				i, img.Rows, img.Cols, first.Rows, first.Cols)
		}
		totalChans += img.Chans
	}

	out, err := raster.NewImage(first.Rows, first.Cols, totalChans)
	if err != nil {
		return nil, err
	}

	for r := 0; r < first.Rows; r++ {
		for c := 0; c < first.Cols; c++ {
			outB := 0
			for _, img := range imgs {
				for b := 0; b < img.Chans; b++ {
					v, _ := img.At(r, c, b)
					out.Set(r, c, outB, v)
					outB++
				}
			}
		}
	}
	return out, nil
}
