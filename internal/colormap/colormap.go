// Package colormap maps pixel-color tuples to dense class indices, the
// boundary between color-coded label images and the LabelImage the forest
// core consumes.
package colormap

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/orbitalvision/texturecam/internal/raster"
)

// Map is an ordered list of colors; the index into Colors is the class id.
// Color 0 is unlabeled/black by convention.
type Map struct {
	ColorDepth int
	Colors     [][]uint8
}

// ClassOf returns the class index whose color matches pixel exactly, or
// ok=false if no color matches.
func (m *Map) ClassOf(pixel []uint8) (int, bool) {
	for class, color := range m.Colors {
		if sameColor(color, pixel) {
			return class, true
		}
	}
	return 0, false
}

func sameColor(a, b []uint8) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Label walks every pixel of a color-coded image and produces a dense
// single-channel label raster, plus the per-class pixel population count
// for that one image. Pixels with no matching color map to class 0.
func (m *Map) Label(img *raster.Image) (*raster.Label, []int, error) {
	if img.Chans != m.ColorDepth {
		return nil, nil, fmt.Errorf("colormap: image has %d channels, colormap expects %d", img.Chans, m.ColorDepth)
	}

	lbl, err := raster.NewLabel(img.Rows, img.Cols)
	if err != nil {
		return nil, nil, err
	}

	counts := make([]int, raster.MaxClasses)
	pixel := make([]uint8, m.ColorDepth)

	for r := 0; r < img.Rows; r++ {
		for c := 0; c < img.Cols; c++ {
			for b := 0; b < m.ColorDepth; b++ {
				v, _ := img.At(r, c, b)
				pixel[b] = v
			}
			class, ok := m.ClassOf(pixel)
			if !ok || class >= raster.MaxClasses {
				class = 0
			}
			lbl.Set(r, c, uint8(class))
			counts[class]++
		}
	}

	return lbl, counts, nil
}

// Load reads the text colormap format: "colormap <colordepth>\n" followed
// by one space-separated color-tuple row per class.
func Load(r io.Reader) (*Map, error) {
	sc := bufio.NewScanner(r)
	if !sc.Scan() {
		return nil, fmt.Errorf("colormap: empty input")
	}

	var depth int
	if _, err := fmt.Sscanf(sc.Text(), "colormap %d", &depth); err != nil {
		return nil, fmt.Errorf("colormap: bad header %q: %w", sc.Text(), err)
	}

	m := &Map{ColorDepth: depth}

	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != depth {
			return nil, fmt.Errorf("colormap: row has %d fields, want %d", len(fields), depth)
		}
		color := make([]uint8, depth)
		for i, f := range fields {
			v, err := strconv.Atoi(f)
			if err != nil {
				return nil, fmt.Errorf("colormap: bad color component %q: %w", f, err)
			}
			color[i] = uint8(v)
		}
		m.Colors = append(m.Colors, color)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("colormap: reading rows: %w", err)
	}

	return m, nil
}

// Save writes the Load format.
func (m *Map) Save(w io.Writer) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "colormap %d\n", m.ColorDepth)
	for _, color := range m.Colors {
		strs := make([]string, len(color))
		for i, v := range color {
			strs[i] = strconv.Itoa(int(v))
		}
		fmt.Fprintln(bw, strings.Join(strs, " "))
	}
	return bw.Flush()
}

// Merge unions two colormaps, erroring if the same class index maps to two
// different colors. Used by catforest to combine colormaps when
// concatenating forests.
func Merge(a, b *Map) (*Map, error) {
	if a.ColorDepth != b.ColorDepth {
		return nil, fmt.Errorf("colormap: depth mismatch %d vs %d", a.ColorDepth, b.ColorDepth)
	}

	n := len(a.Colors)
	if len(b.Colors) > n {
		n = len(b.Colors)
	}

	merged := &Map{ColorDepth: a.ColorDepth, Colors: make([][]uint8, n)}
	for i := 0; i < n; i++ {
		var ac, bc []uint8
		if i < len(a.Colors) {
			ac = a.Colors[i]
		}
		if i < len(b.Colors) {
			bc = b.Colors[i]
		}
		switch {
		case ac == nil:
			merged.Colors[i] = bc
		case bc == nil:
			merged.Colors[i] = ac
		case sameColor(ac, bc):
			merged.Colors[i] = ac
		default:
			return nil, fmt.Errorf("colormap: class %d maps to different colors in each input", i)
		}
	}

	return merged, nil
}
