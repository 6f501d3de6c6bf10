// Package filter implements the pixel-level arithmetic features the forest
// splits on: simple comparisons between one or two offsets in a local
// window around a query pixel.
package filter

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/orbitalvision/texturecam/internal/raster"
)

// Kind identifies one of the six filter functions.
type Kind int

const (
	Raw Kind = iota
	Sum
	Diff
	Abs
	Ratio
	Rect
)

func (k Kind) String() string {
	switch k {
	case Raw:
		return "0"
	case Sum:
		return "1"
	case Diff:
		return "2"
	case Abs:
		return "3"
	case Ratio:
		return "4"
	case Rect:
		return "5"
	default:
		return fmt.Sprintf("?%d", int(k))
	}
}

// Family selects which filter kinds Randomize may produce.
type Family int

const (
	Points Family = iota
	Ratios
	Rectangles
)

// Offset is a signed position relative to the query pixel plus an absolute
// channel index.
type Offset struct {
	DR, DC, Ch int
}

// Filter is a single split test: one or two offsets combined by Kind.
type Filter struct {
	Kind Kind
	A, B Offset
}

// NoDataValue is the sentinel placed in caller-visible debug output when
// evaluation falls outside the image. It is never a legitimate feature
// value returned alongside a nil error.
const NoDataValue = 999999

// ErrNoData indicates the filter referenced a pixel outside the image.
var ErrNoData = errors.New("filter: no data")

// Evaluate computes the filter's result at (r, c) in img. It returns
// ErrNoData (wrapping, value is NoDataValue) if any referenced pixel or
// channel lies outside the image.
func Evaluate(f Filter, img *raster.Image, r, c int) (int64, error) {
	av, aok := img.At(r+f.A.DR, c+f.A.DC, f.A.Ch)
	if !aok {
		return NoDataValue, ErrNoData
	}
	if f.Kind == Raw {
		return int64(av), nil
	}

	bv, bok := img.At(r+f.B.DR, c+f.B.DC, f.B.Ch)
	if !bok {
		return NoDataValue, ErrNoData
	}

	switch f.Kind {
	case Sum:
		return int64(av) + int64(bv), nil
	case Diff:
		return int64(av) - int64(bv), nil
	case Abs:
		d := int64(av) - int64(bv)
		if d < 0 {
			d = -d
		}
		return d, nil
	case Ratio:
		diff := int64(av)*100 - int64(bv)*100
		return diff / (int64(av) + 1), nil
	case Rect:
		// 4-corner integral-image rectangle: A is upper-left, B is
		// lower-right, both in the same channel.
		rA, cA := r+f.A.DR, c+f.A.DC
		rB, cB := r+f.B.DR, c+f.B.DC
		return evalRect(img, rA, cA, rB, cB, f.A.Ch)
	default:
		return NoDataValue, fmt.Errorf("filter: unrecognized kind %v", f.Kind)
	}
}

// evalRect computes I(A) + I(B) - I(rA,cB) - I(rB,cA) directly against the
// raw raster (not a precomputed integral image), matching the contract
// that Evaluate must work for any RasterImage the trainer or classifier
// hands it. Given a summed-area table as img, the result is the sum of the
// source pixels over rows (rA, rB] and columns (cA, cB]; given a raw image,
// it is the same signed combination of the four raw corner pixels.
func evalRect(img *raster.Image, rA, cA, rB, cB, ch int) (int64, error) {
	a, aok := img.At(rA, cA, ch)
	b, bok := img.At(rB, cB, ch)
	c1, c1ok := img.At(rA, cB, ch)
	c2, c2ok := img.At(rB, cA, ch)
	if !aok || !bok || !c1ok || !c2ok {
		return NoDataValue, ErrNoData
	}
	return int64(a) + int64(b) - int64(c1) - int64(c2), nil
}

// EvaluateIntegral reads a summed-area table built by raster.Integral and
// returns the sum of the source image's pixels in channel A.Ch over the
// inclusive rectangle rows [rA, rB], columns [cA, cB]. This is not the
// value Evaluate returns for the same filter on the source image: Evaluate
// combines the four corner pixels of whatever image it is given. Non-Rect
// kinds are rejected; they have no integral-image representation.
func EvaluateIntegral(f Filter, ii *raster.IntegralImage, r, c int) (int64, error) {
	if f.Kind != Rect {
		return NoDataValue, fmt.Errorf("filter: EvaluateIntegral only supports Rect, got kind %v", f.Kind)
	}

	rA, cA := r+f.A.DR, c+f.A.DC
	rB, cB := r+f.B.DR, c+f.B.DC
	ch := f.A.Ch

	sumB, ok := ii.At(rB, cB, ch)
	if !ok {
		return NoDataValue, ErrNoData
	}
	above, ok := ii.At(rA-1, cB, ch)
	if !ok {
		return NoDataValue, ErrNoData
	}
	left, ok := ii.At(rB, cA-1, ch)
	if !ok {
		return NoDataValue, ErrNoData
	}
	corner, ok := ii.At(rA-1, cA-1, ch)
	if !ok {
		return NoDataValue, ErrNoData
	}

	return sumB - above - left + corner, nil
}

// ToString renders f as F<k>_(ra,ca,cha)_(rb,cb,chb), the exact form used
// for forest persistence.
func ToString(f Filter) string {
	return fmt.Sprintf("F%d_(%d,%d,%d)_(%d,%d,%d)",
		int(f.Kind), f.A.DR, f.A.DC, f.A.Ch, f.B.DR, f.B.DC, f.B.Ch)
}

// FromString parses the ToString form.
func FromString(s string) (Filter, error) {
	var k, ra, ca, cha, rb, cb, chb int
	n, err := fmt.Sscanf(s, "F%d_(%d,%d,%d)_(%d,%d,%d)", &k, &ra, &ca, &cha, &rb, &cb, &chb)
	if err != nil || n != 7 {
		return Filter{}, fmt.Errorf("filter: malformed filter string %q", s)
	}
	return Filter{
		Kind: Kind(k),
		A:    Offset{DR: ra, DC: ca, Ch: cha},
		B:    Offset{DR: rb, DC: cb, Ch: chb},
	}, nil
}

// Copy returns a value copy of f (Filter has no reference fields, but
// callers that received it via an interface appreciate the explicit verb).
func Copy(f Filter) Filter { return f }

// Randomize draws a filter from family, constrained to a window of
// winsize around the query pixel and chans channels of input.
func Randomize(rng *rand.Rand, family Family, chans, winsize int, crossChannel bool) (Filter, error) {
	switch family {
	case Points:
		return randomPoints(rng, chans, winsize, crossChannel, false)
	case Ratios:
		return randomPoints(rng, chans, winsize, crossChannel, true)
	case Rectangles:
		return randomRect(rng, chans, winsize, crossChannel)
	default:
		return Filter{}, fmt.Errorf("filter: unrecognized family %v", family)
	}
}

func randomOffset(rng *rand.Rand, winsize int) int {
	half := winsize / 2
	return rng.Intn(winsize) - half
}

func randomPoints(rng *rand.Rand, chans, winsize int, crossChannel, ratioOnly bool) (Filter, error) {
	chA := rng.Intn(chans)
	chB := chA
	if crossChannel {
		chB = rng.Intn(chans)
	}

	kind := Ratio
	if !ratioOnly {
		kinds := []Kind{Raw, Sum, Diff, Abs, Ratio}
		kind = kinds[rng.Intn(len(kinds))]
	}

	return Filter{
		Kind: kind,
		A:    Offset{DR: randomOffset(rng, winsize), DC: randomOffset(rng, winsize), Ch: chA},
		B:    Offset{DR: randomOffset(rng, winsize), DC: randomOffset(rng, winsize), Ch: chB},
	}, nil
}

func randomRect(rng *rand.Rand, chans, winsize int, crossChannel bool) (Filter, error) {
	if crossChannel {
		return Filter{}, errors.New("filter: rectangle features use a single channel")
	}

	ch := rng.Intn(chans)

	// offsets drawn uniformly from [-(winsize-1), winsize)
	span := 2*winsize - 1
	offset := func() int { return rng.Intn(span) - (winsize - 1) }

	rowA, rowB := offset(), offset()
	colA, colB := offset(), offset()

	if rowA > rowB {
		rowA, rowB = rowB, rowA
	}
	if colA > colB {
		colA, colB = colB, colA
	}

	return Filter{
		Kind: Rect,
		A:    Offset{DR: rowA, DC: colA, Ch: ch},
		B:    Offset{DR: rowB, DC: colB, Ch: ch},
	}, nil
}
