package isat

import "testing"

func mustPoint(t *testing.T, phi, rphi []float64, grad [][]float64, tol float64) *CompositionPoint {
	cp, err := newCompositionPoint(phi, rphi, grad, unitScale(len(phi)), tol, 0, nil)
	if err != nil {
		t.Fatalf("unexpected error building CompositionPoint: %v", err)
	}
	return cp
}

func TestNewTreeNode_SeparatesExistingAndNewLeaf(t *testing.T) {
	existing := mustPoint(t, []float64{0, 0}, []float64{0, 0}, diagGradient(2, 1), 0.1)
	fresh := mustPoint(t, []float64{5, 5}, []float64{5, 5}, diagGradient(2, 1), 0.1)

	node := newTreeNode(existing, fresh, nil)

	if !node.side(existing.phi) {
		t.Error("the existing leaf must route to the left side of its own hyperplane")
	}
	if node.side(fresh.phi) {
		t.Error("the newly inserted leaf must route to the right side of the hyperplane")
	}
	if node.leftLeaf != existing || node.rightLeaf != fresh {
		t.Error("newTreeNode must place existingLeaf on the left and newLeaf on the right")
	}
	if existing.node != node || fresh.node != node {
		t.Error("newTreeNode must set both leaves' back-pointers to the new node")
	}
}
