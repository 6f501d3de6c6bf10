package tree

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/orbitalvision/texturecam/internal/filter"
	"github.com/orbitalvision/texturecam/internal/node"
)

// WriteTree writes t's node records, one per line, in the format:
//
//	<i> <map_class> <threshold> <high_id> <low_id> F<kind>_(...) <count_0> ... <count_{nclasses-1}>
//
// A leaf is signaled on disk by high_id == 0 (sound because the root, id
// 0, is never referenced as a child).
func WriteTree(w io.Writer, t *Tree, nclasses int) error {
	bw := bufio.NewWriter(w)

	for i := uint16(0); i < t.NNodes; i++ {
		n := &t.Nodes[i]

		highID, lowID := 0, 0
		if !node.IsLeaf(n) {
			highID = int(n.Right)
			lowID = int(n.Left)
		}

		fmt.Fprintf(bw, "%d %d %d %d %d %s", i, n.MapClass, n.Threshold, highID, lowID, filter.ToString(n.Filter))
		for k := 0; k < nclasses; k++ {
			fmt.Fprintf(bw, " %.8g", n.ClassCounts[k])
		}
		fmt.Fprint(bw, "\n")
	}

	return bw.Flush()
}

// ReadTree reads nnodes node records written by WriteTree.
func ReadTree(sc *bufio.Scanner, nnodes, nclasses int) (*Tree, error) {
	t := &Tree{NNodes: uint16(nnodes)}

	for want := 0; want < nnodes; want++ {
		if !sc.Scan() {
			if err := sc.Err(); err != nil {
				return nil, fmt.Errorf("tree: reading node record: %w", err)
			}
			return nil, fmt.Errorf("tree: unexpected EOF reading node records")
		}

		fields := strings.Fields(sc.Text())
		if len(fields) < 6+nclasses {
			return nil, fmt.Errorf("tree: node record has %d fields, want at least %d", len(fields), 6+nclasses)
		}

		i, err := strconv.Atoi(fields[0])
		if err != nil || i != want {
			return nil, fmt.Errorf("tree: node record out of order, expected %d, got %q", want, fields[0])
		}

		mapClass, err := strconv.Atoi(fields[1])
		if err != nil {
			return nil, fmt.Errorf("tree: bad map_class: %w", err)
		}
		threshold, err := strconv.ParseInt(fields[2], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("tree: bad threshold: %w", err)
		}
		highID, err := strconv.Atoi(fields[3])
		if err != nil {
			return nil, fmt.Errorf("tree: bad high_id: %w", err)
		}
		lowID, err := strconv.Atoi(fields[4])
		if err != nil {
			return nil, fmt.Errorf("tree: bad low_id: %w", err)
		}
		f, err := filter.FromString(fields[5])
		if err != nil {
			return nil, fmt.Errorf("tree: bad filter string: %w", err)
		}

		n := node.New()
		n.MapClass = uint8(mapClass)
		n.Threshold = threshold
		n.Filter = f

		if highID == 0 {
			n.Left = node.NoChild
			n.Right = node.NoChild
		} else {
			n.Left = uint16(lowID)
			n.Right = uint16(highID)
		}

		for k := 0; k < nclasses; k++ {
			v, err := strconv.ParseFloat(fields[6+k], 32)
			if err != nil {
				return nil, fmt.Errorf("tree: bad class count field %d: %w", k, err)
			}
			n.ClassCounts[k] = float32(v)
		}
		node.UpdateProbs(&n, nclasses)

		t.Nodes[i] = n
	}

	return t, nil
}
