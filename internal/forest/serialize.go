package forest

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/orbitalvision/texturecam/internal/colormap"
	"github.com/orbitalvision/texturecam/internal/filter"
	"github.com/orbitalvision/texturecam/internal/tree"
)

// WriteForest writes f in the on-disk forest format: a header line, one
// blank-line-separated block per tree, and an optional trailing colormap
// block when cm is non-nil.
func WriteForest(w io.Writer, f *Forest, cm *colormap.Map) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintf(bw, "forest %d %d %d %d\n\n", f.NTrees, int(f.FilterFamily), f.NClasses, f.Winsize)

	for i, t := range f.Trees {
		fmt.Fprintf(bw, "tree %d\n", i)
		fmt.Fprintf(bw, "nnodes %d\n", t.NNodes)
		if err := tree.WriteTree(bw, t, f.NClasses); err != nil {
			return fmt.Errorf("forest: writing tree %d: %w", i, err)
		}
		fmt.Fprint(bw, "\n")
	}

	if cm != nil {
		fmt.Fprintf(bw, "colormap %d\n", cm.ColorDepth)
		for _, color := range cm.Colors {
			strs := make([]string, len(color))
			for i, v := range color {
				strs[i] = strconv.Itoa(int(v))
			}
			fmt.Fprintln(bw, strings.Join(strs, " "))
		}
	}

	return bw.Flush()
}

// ReadForest parses the format WriteForest produces, returning the forest
// and its trailing colormap (nil if absent).
func ReadForest(r io.Reader) (*Forest, *colormap.Map, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 8*1024*1024)

	line, ok := nextNonBlank(sc)
	if !ok {
		return nil, nil, fmt.Errorf("forest: empty input")
	}

	var ntrees, family, nclasses, winsize int
	if n, err := fmt.Sscanf(line, "forest %d %d %d %d", &ntrees, &family, &nclasses, &winsize); err != nil || n != 4 {
		return nil, nil, fmt.Errorf("forest: bad header line %q", line)
	}

	f := &Forest{
		NTrees:       ntrees,
		FilterFamily: filter.Family(family),
		NClasses:     nclasses,
		Winsize:      winsize,
		Trees:        make([]*tree.Tree, ntrees),
	}

	for i := 0; i < ntrees; i++ {
		line, ok = nextNonBlank(sc)
		if !ok {
			return nil, nil, fmt.Errorf("forest: unexpected EOF before tree %d", i)
		}
		var idx int
		if n, err := fmt.Sscanf(line, "tree %d", &idx); err != nil || n != 1 || idx != i {
			return nil, nil, fmt.Errorf("forest: expected \"tree %d\", got %q", i, line)
		}

		line, ok = nextNonBlank(sc)
		if !ok {
			return nil, nil, fmt.Errorf("forest: unexpected EOF reading nnodes for tree %d", i)
		}
		var nnodes int
		if n, err := fmt.Sscanf(line, "nnodes %d", &nnodes); err != nil || n != 1 {
			return nil, nil, fmt.Errorf("forest: bad nnodes line %q", line)
		}

		t, err := tree.ReadTree(sc, nnodes, nclasses)
		if err != nil {
			return nil, nil, fmt.Errorf("forest: tree %d: %w", i, err)
		}
		f.Trees[i] = t
	}

	var cm *colormap.Map
	if line, ok := nextNonBlank(sc); ok {
		var depth int
		if n, err := fmt.Sscanf(line, "colormap %d", &depth); err == nil && n == 1 {
			cm = &colormap.Map{ColorDepth: depth}
			for sc.Scan() {
				row := strings.TrimSpace(sc.Text())
				if row == "" {
					continue
				}
				fields := strings.Fields(row)
				if len(fields) != depth {
					return nil, nil, fmt.Errorf("forest: colormap row has %d fields, want %d", len(fields), depth)
				}
				color := make([]uint8, depth)
				for k, fld := range fields {
					v, err := strconv.Atoi(fld)
					if err != nil {
						return nil, nil, fmt.Errorf("forest: bad colormap value %q: %w", fld, err)
					}
					color[k] = uint8(v)
				}
				cm.Colors = append(cm.Colors, color)
			}
		}
	}

	if err := sc.Err(); err != nil {
		return nil, nil, fmt.Errorf("forest: %w", err)
	}

	return f, cm, nil
}

func nextNonBlank(sc *bufio.Scanner) (string, bool) {
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		return line, true
	}
	return "", false
}
