package node

import "testing"

func TestUpdateProbsArgmaxTieLowest(t *testing.T) {
	n := New()
	n.ClassCounts[1] = 5
	n.ClassCounts[2] = 5
	UpdateProbs(&n, 3)

	if n.MapClass != 1 {
		t.Errorf("expected tie to resolve to lowest index 1, got %d", n.MapClass)
	}
	if !IsNormalized(&n, 3, 1e-6) {
		t.Errorf("expected normalized probs, got sum %f", ProbSum(&n, 3))
	}
}

func TestUpdateProbsZeroTotal(t *testing.T) {
	n := New()
	UpdateProbs(&n, 3)

	if n.MapClass != 0 {
		t.Errorf("expected MapClass 0 when no counts, got %d", n.MapClass)
	}
	if ProbSum(&n, 3) != 0 {
		t.Errorf("expected zero probs, got sum %f", ProbSum(&n, 3))
	}
}

func TestUpdateProbsClassZeroAlwaysZero(t *testing.T) {
	n := New()
	n.ClassCounts[0] = 100
	n.ClassCounts[1] = 3
	UpdateProbs(&n, 2)

	if n.ClassProbs[0] != 0 || n.ClassCounts[0] != 0 {
		t.Error("class 0 counts/probs must be zeroed by UpdateProbs")
	}
}

func TestIsLeaf(t *testing.T) {
	n := New()
	if !IsLeaf(&n) {
		t.Error("freshly initialized node should be a leaf")
	}
	n.Left, n.Right = 1, 2
	if IsLeaf(&n) {
		t.Error("node with children should not be a leaf")
	}
}
