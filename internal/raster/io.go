package raster

import (
	"bufio"
	"errors"
	"fmt"
	"io"
)

// ErrBadFormat is returned for any malformed raster header.
var ErrBadFormat = errors.New("raster: bad format")

// Decode reads a P5 (1-channel), P6 (3-channel), or H<n> (n-channel) bitmap
// from r. The header is:
//
//	<magic><sep>[# comment\n...]<cols> <rows>\n<maxval>\n<data>
//
// where sep is '\n' or ' '. Data is one byte per channel per pixel,
// row-major, immediately following the maxval line.
func Decode(r io.Reader) (*Image, error) {
	br := bufio.NewReader(r)

	magic, err := br.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("raster: reading magic: %w", err)
	}
	code, err := br.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("raster: reading band code: %w", err)
	}
	sep, err := br.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("raster: reading separator: %w", err)
	}
	if sep != '\n' && sep != ' ' {
		return nil, fmt.Errorf("%w: bad header separator", ErrBadFormat)
	}

	var chans int
	switch magic {
	case 'P':
		switch code {
		case '5':
			chans = 1
		case '6':
			chans = 3
		default:
			return nil, fmt.Errorf("%w: unsupported PGM/PPM variant P%c", ErrBadFormat, code)
		}
	case 'H':
		n := int(code - '0')
		if n < 1 || n > 9 {
			return nil, fmt.Errorf("%w: unsupported channel count H%c", ErrBadFormat, code)
		}
		chans = n
	default:
		return nil, fmt.Errorf("%w: unrecognized magic %q", ErrBadFormat, magic)
	}

	if err := skipComments(br); err != nil {
		return nil, err
	}

	cols, rows, maxval, err := readDims(br)
	if err != nil {
		return nil, err
	}
	_ = maxval

	img, err := NewImage(rows, cols, chans)
	if err != nil {
		return nil, err
	}

	if _, err := io.ReadFull(br, img.Pix); err != nil {
		return nil, fmt.Errorf("raster: truncated pixel data: %w", err)
	}

	return img, nil
}

// DecodeLabel decodes a raster and reinterprets it as a single-channel
// label image.
func DecodeLabel(r io.Reader) (*Label, error) {
	img, err := Decode(r)
	if err != nil {
		return nil, err
	}
	return FromSingleChannel(img)
}

func skipComments(br *bufio.Reader) error {
	for {
		b, err := br.Peek(1)
		if err != nil {
			return fmt.Errorf("raster: reading comment block: %w", err)
		}
		if b[0] != '#' {
			return nil
		}
		if _, err := br.ReadString('\n'); err != nil {
			return fmt.Errorf("raster: reading comment line: %w", err)
		}
	}
}

func readDims(br *bufio.Reader) (cols, rows, maxval int, err error) {
	if _, err = fmt.Fscan(br, &cols, &rows, &maxval); err != nil {
		return 0, 0, 0, fmt.Errorf("%w: bad dimension/maxval line: %v", ErrBadFormat, err)
	}
	// consume the single newline terminating the maxval line
	nl, err := br.ReadByte()
	if err != nil {
		return 0, 0, 0, fmt.Errorf("raster: reading post-maxval newline: %w", err)
	}
	if nl != '\n' {
		return 0, 0, 0, fmt.Errorf("%w: expected newline after maxval", ErrBadFormat)
	}
	if cols < 1 || rows < 1 {
		return 0, 0, 0, fmt.Errorf("%w: non-positive dimensions %dx%d", ErrBadFormat, cols, rows)
	}
	return cols, rows, maxval, nil
}

// Encode writes img using P5 (1 channel), P6 (3 channels), or H<n>
// (n channels) as appropriate.
func Encode(w io.Writer, img *Image) error {
	bw := bufio.NewWriter(w)

	switch img.Chans {
	case 1:
		fmt.Fprint(bw, "P5\n")
	case 3:
		fmt.Fprint(bw, "P6\n")
	default:
		if img.Chans < 1 || img.Chans > 9 {
			return fmt.Errorf("raster: cannot encode %d channels", img.Chans)
		}
		fmt.Fprintf(bw, "H%d\n", img.Chans)
	}

	fmt.Fprintf(bw, "%d %d\n", img.Cols, img.Rows)
	fmt.Fprint(bw, "255\n")

	if _, err := bw.Write(img.Pix); err != nil {
		return fmt.Errorf("raster: writing pixel data: %w", err)
	}

	return bw.Flush()
}

// Integral builds a per-channel summed-area table over img, widened to
// int64 so rectangle sums over large windows cannot overflow. The result
// has the same Rows/Cols/Chans as img; At(r, c, b) reads channel b's table.
type IntegralImage struct {
	Rows, Cols, Chans int
	sum               []int64
}

// Integral constructs the prefix-sum table consumed by Rect filters. This
// is the "pre-built upstream" step the forest core itself never performs.
func Integral(img *Image) *IntegralImage {
	ii := &IntegralImage{Rows: img.Rows, Cols: img.Cols, Chans: img.Chans}
	ii.sum = make([]int64, img.Rows*img.Cols*img.Chans)

	for b := 0; b < img.Chans; b++ {
		for r := 0; r < img.Rows; r++ {
			var rowSum int64
			for c := 0; c < img.Cols; c++ {
				v, _ := img.At(r, c, b)
				rowSum += int64(v)
				above := int64(0)
				if r > 0 {
					above = ii.at(r-1, c, b)
				}
				ii.set(r, c, b, rowSum+above)
			}
		}
	}
	return ii
}

func (ii *IntegralImage) idx(r, c, b int) int {
	return r*ii.Cols*ii.Chans + c*ii.Chans + b
}

func (ii *IntegralImage) at(r, c, b int) int64 {
	return ii.sum[ii.idx(r, c, b)]
}

func (ii *IntegralImage) set(r, c, b int, v int64) {
	ii.sum[ii.idx(r, c, b)] = v
}

// At returns the cumulative sum at (r, c, b), treating negative r or c as
// the zero plane outside the image, or ok=false if (r, c, b) otherwise lies
// out of range.
func (ii *IntegralImage) At(r, c, b int) (int64, bool) {
	if b < 0 || b >= ii.Chans {
		return 0, false
	}
	if r < 0 || c < 0 {
		return 0, true
	}
	if r >= ii.Rows || c >= ii.Cols {
		return 0, false
	}
	return ii.at(r, c, b), true
}
