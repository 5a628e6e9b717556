package isat

import (
	"log"
	"math/rand"
)

// BSPTree is a binary space-partitioning tree over composition space. It
// owns every TreeNode and CompositionPoint reachable from its root: no
// other structure in this package holds a strong reference to either (the
// cache's MRU list holds only non-owning observations).
//
// Every internal node has exactly two children (a leaf, a subtree, or a
// mix of the two) — insertion always splits a leaf slot into a node with
// two leaf children, and deletion always removes a leaf and promotes its
// sibling one level up, so the tree never has a node with a single child.
type BSPTree struct {
	root     *TreeNode
	rootLeaf *CompositionPoint // valid only while size == 1
	size     int
}

// newBSPTree returns an empty tree.
func newBSPTree() *BSPTree {
	return &BSPTree{}
}

// Size returns the number of stored leaves.
func (t *BSPTree) Size() int { return t.size }

// IsFull reports whether the tree has reached maxElements (0 means
// unbounded, so IsFull is always false).
func (t *BSPTree) IsFull(maxElements int) bool {
	return maxElements > 0 && t.size >= maxElements
}

// Insert constructs a CompositionPoint from the given mapping sample and
// splices it into the tree. Returns ErrDegenerateEOA if the EOA could not
// be built (tree unchanged) or ErrCapacityExceeded if maxElements has
// already been reached (tree unchanged, point discarded).
func (t *BSPTree) Insert(
	phi, rphi []float64,
	gradient [][]float64,
	scaleFactor []float64,
	tolerance float64,
	simTime float64,
	maxElements int,
	reduction *ReductionContext,
) (*CompositionPoint, error) {
	if t.IsFull(maxElements) {
		return nil, ErrCapacityExceeded
	}
	leaf, err := newCompositionPoint(phi, rphi, gradient, scaleFactor, tolerance, simTime, reduction)
	if err != nil {
		return nil, err
	}
	t.attachLeaf(leaf)
	return leaf, nil
}

// attachLeaf splices an already-constructed leaf into the tree structure,
// without touching its EOA. Shared by Insert and the rebuild step of
// Balance, which reinserts already-built leaves.
func (t *BSPTree) attachLeaf(leaf *CompositionPoint) {
	if t.root == nil {
		if t.rootLeaf == nil {
			t.rootLeaf = leaf
			t.size++
			return
		}
		node := newTreeNode(t.rootLeaf, leaf, nil)
		t.root = node
		t.rootLeaf = nil
		t.size++
		return
	}

	cur := t.root
	for {
		left := cur.side(leaf.phi)
		if left {
			if cur.isLeftLeaf() {
				existing := cur.leftLeaf
				node := newTreeNode(existing, leaf, cur)
				cur.leftLeaf = nil
				cur.leftNode = node
				t.size++
				return
			}
			cur = cur.leftNode
		} else {
			if cur.isRightLeaf() {
				existing := cur.rightLeaf
				node := newTreeNode(existing, leaf, cur)
				cur.rightLeaf = nil
				cur.rightNode = node
				t.size++
				return
			}
			cur = cur.rightNode
		}
	}
}

// PrimarySearch descends from the root following the hyperplane rule at
// each node and returns the leaf reached. It does not test EOA membership
// itself: callers test InEOA on the result.
func (t *BSPTree) PrimarySearch(phiq []float64) *CompositionPoint {
	if t.root == nil {
		return t.rootLeaf
	}
	cur := t.root
	for {
		if cur.side(phiq) {
			if cur.isLeftLeaf() {
				return cur.leftLeaf
			}
			cur = cur.leftNode
		} else {
			if cur.isRightLeaf() {
				return cur.rightLeaf
			}
			cur = cur.rightNode
		}
	}
}

// SecondarySearch re-searches the tree near a failed primary lookup,
// bounded by maxBudget leaf visits. Starting at failedLeaf's owning node,
// it walks up toward the root; at each ancestor it searches the subtree
// not already explored (nearest hyperplane side first, falling back to
// the far side within that subtree), stopping as soon as a leaf whose
// EOA contains phiq is found or the budget is exhausted.
func (t *BSPTree) SecondarySearch(phiq []float64, failedLeaf *CompositionPoint, maxBudget int) *CompositionPoint {
	if maxBudget <= 0 || failedLeaf == nil || failedLeaf.node == nil {
		return nil
	}
	budget := maxBudget
	child := failedLeaf.node
	exploredLeft := child.leftLeaf == failedLeaf

	for {
		if leaf := t.searchSide(child, !exploredLeft, phiq, &budget); leaf != nil {
			return leaf
		}
		if budget <= 0 || child.parent == nil {
			return nil
		}
		exploredLeft = child.parent.leftNode == child
		child = child.parent
	}
}

// searchSide searches one child slot of node (left if goLeft, else right),
// descending into it entirely via inSubTree if it holds a subtree.
func (t *BSPTree) searchSide(node *TreeNode, goLeft bool, phiq []float64, budget *int) *CompositionPoint {
	if *budget <= 0 {
		return nil
	}
	if goLeft {
		if node.isLeftLeaf() {
			*budget--
			if node.leftLeaf.InEOA(phiq) {
				return node.leftLeaf
			}
			return nil
		}
		return t.inSubTree(node.leftNode, phiq, budget)
	}
	if node.isRightLeaf() {
		*budget--
		if node.rightLeaf.InEOA(phiq) {
			return node.rightLeaf
		}
		return nil
	}
	return t.inSubTree(node.rightNode, phiq, budget)
}

// inSubTree searches an entire subtree for a leaf containing phiq in its
// EOA, trying the hyperplane-preferred side first and falling back to the
// other side, bounded by budget.
func (t *BSPTree) inSubTree(node *TreeNode, phiq []float64, budget *int) *CompositionPoint {
	if node == nil || *budget <= 0 {
		return nil
	}
	near := node.side(phiq)
	if leaf := t.searchSide(node, near, phiq, budget); leaf != nil {
		return leaf
	}
	return t.searchSide(node, !near, phiq, budget)
}

// DeleteLeaf removes leaf from the tree, promoting its sibling (leaf or
// subtree, the two cases are handled identically since promotion is just
// moving a child pointer) into the slot the leaf's parent occupied in the
// grandparent.
//
// There is no case where both of a deleted leaf's "sibling" relationships
// are ambiguous between leaf and subtree: every node has exactly one left
// and one right child slot, and promotion only ever touches the slot the
// deleted leaf's parent itself occupied, so whether the sibling is a leaf
// or a subtree never changes the algorithm.
func (t *BSPTree) DeleteLeaf(leaf *CompositionPoint) {
	node := leaf.node
	if node == nil {
		return
	}

	var sibling *TreeNode
	var siblingLeaf *CompositionPoint
	switch {
	case node.isLeftLeaf() && node.leftLeaf == leaf:
		sibling, siblingLeaf = node.rightNode, node.rightLeaf
	case node.isRightLeaf() && node.rightLeaf == leaf:
		sibling, siblingLeaf = node.leftNode, node.leftLeaf
	default:
		panicInconsistent("DeleteLeaf: leaf.node does not reference leaf")
		return
	}

	parent := node.parent
	leaf.node = nil
	leaf.toRemove = true
	t.size--

	if parent == nil {
		if sibling != nil {
			sibling.parent = nil
			t.root = sibling
			t.rootLeaf = nil
		} else {
			siblingLeaf.node = nil
			t.root = nil
			t.rootLeaf = siblingLeaf
		}
		return
	}

	promoteIntoLeft := parent.leftNode == node
	if promoteIntoLeft {
		if sibling != nil {
			sibling.parent = parent
			parent.leftNode = sibling
			parent.leftLeaf = nil
		} else {
			siblingLeaf.node = parent
			parent.leftNode = nil
			parent.leftLeaf = siblingLeaf
		}
		return
	}
	if sibling != nil {
		sibling.parent = parent
		parent.rightNode = sibling
		parent.rightLeaf = nil
	} else {
		siblingLeaf.node = parent
		parent.rightNode = nil
		parent.rightLeaf = siblingLeaf
	}
}

// Depth returns the number of node levels between the root and the
// deepest leaf (0 for an empty or single-leaf tree).
func (t *BSPTree) Depth() int {
	if t.root == nil {
		return 0
	}
	return depthOf(t.root)
}

func depthOf(node *TreeNode) int {
	l, r := 0, 0
	if node.leftNode != nil {
		l = depthOf(node.leftNode)
	}
	if node.rightNode != nil {
		r = depthOf(node.rightNode)
	}
	if l > r {
		return l + 1
	}
	return r + 1
}

// TreeMin returns the leftmost leaf of the subtree rooted at node.
func TreeMin(node *TreeNode) *CompositionPoint {
	for {
		if node.leftLeaf != nil {
			return node.leftLeaf
		}
		node = node.leftNode
	}
}

// TreeSuccessor returns the in-order successor of x within the whole
// tree, or nil if x is the last leaf in in-order sequence.
func (t *BSPTree) TreeSuccessor(x *CompositionPoint) *CompositionPoint {
	node := x.node
	if node == nil {
		return nil
	}
	if node.leftLeaf == x {
		if node.rightLeaf != nil {
			return node.rightLeaf
		}
		return TreeMin(node.rightNode)
	}
	cur := node
	for cur.parent != nil && cur.parent.rightNode == cur {
		cur = cur.parent
	}
	if cur.parent == nil {
		return nil
	}
	p := cur.parent
	if p.rightLeaf != nil {
		return p.rightLeaf
	}
	return TreeMin(p.rightNode)
}

// Clear tears the tree down iteratively (an explicit stack rather than
// recursion, since production trees can run far deeper than this
// package's own call stack should have to follow) and detaches every
// leaf's back-pointer.
func (t *BSPTree) Clear() {
	if t.root != nil {
		stack := make([]*TreeNode, 0, t.size)
		stack = append(stack, t.root)
		for len(stack) > 0 {
			n := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if n.leftNode != nil {
				stack = append(stack, n.leftNode)
			} else if n.leftLeaf != nil {
				n.leftLeaf.node = nil
			}
			if n.rightNode != nil {
				stack = append(stack, n.rightNode)
			} else if n.rightLeaf != nil {
				n.rightLeaf.node = nil
			}
		}
	}
	t.root = nil
	t.rootLeaf = nil
	t.size = 0
}

// deleteAllNodes tears down the TreeNode structure only, leaving every
// CompositionPoint intact but detached (via setFree) so Balance can
// reinsert them into a freshly built tree.
func (t *BSPTree) deleteAllNodes() {
	if t.root == nil {
		return
	}
	stack := make([]*TreeNode, 0, t.size)
	stack = append(stack, t.root)
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if n.leftNode != nil {
			stack = append(stack, n.leftNode)
		} else if n.leftLeaf != nil {
			n.leftLeaf.setFree()
		}
		if n.rightNode != nil {
			stack = append(stack, n.rightNode)
		} else if n.rightLeaf != nil {
			n.rightLeaf.setFree()
		}
	}
	t.root = nil
}

// collectLeaves returns every leaf currently in the tree, in no
// particular order.
func (t *BSPTree) collectLeaves() []*CompositionPoint {
	leaves := make([]*CompositionPoint, 0, t.size)
	if t.root == nil {
		if t.rootLeaf != nil {
			leaves = append(leaves, t.rootLeaf)
		}
		return leaves
	}
	stack := make([]*TreeNode, 0, t.size)
	stack = append(stack, t.root)
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if n.leftNode != nil {
			stack = append(stack, n.leftNode)
		} else if n.leftLeaf != nil {
			leaves = append(leaves, n.leftLeaf)
		}
		if n.rightNode != nil {
			stack = append(stack, n.rightNode)
		} else if n.rightLeaf != nil {
			leaves = append(leaves, n.rightLeaf)
		}
	}
	return leaves
}

// Balance rebuilds the tree along the composition dimension with the
// highest variance among its leaves: it tears down the node structure,
// seeds the rebuild with the two leaves most extremal along that axis,
// then reinserts every other leaf in a randomized order so the result
// isn't biased by the order leaves happened to arrive in. maxSample caps
// how many leaves are read when choosing the axis (0 means read them
// all); every leaf is still reinserted regardless of maxSample.
func (t *BSPTree) Balance(rng *rand.Rand, maxSample int) bool {
	if t.size < 2 {
		return false
	}
	leaves := t.collectLeaves()
	axis := varianceAxis(leaves, maxSample)

	minRef, maxRef := leaves[0], leaves[0]
	for _, lf := range leaves {
		if lf.phi[axis] < minRef.phi[axis] {
			minRef = lf
		}
		if lf.phi[axis] > maxRef.phi[axis] {
			maxRef = lf
		}
	}
	if minRef == maxRef {
		log.Printf("isat: degenerate balance split: every leaf shares axis %d value %v", axis, minRef.phi[axis])
	}

	t.deleteAllNodes()

	rest := make([]*CompositionPoint, 0, len(leaves))
	for _, lf := range leaves {
		if lf == minRef || lf == maxRef {
			continue
		}
		rest = append(rest, lf)
	}
	rng.Shuffle(len(rest), func(i, j int) { rest[i], rest[j] = rest[j], rest[i] })

	t.root = nil
	t.rootLeaf = nil
	t.size = 0
	t.attachLeaf(minRef)
	if maxRef != minRef {
		t.attachLeaf(maxRef)
	}
	for _, lf := range rest {
		t.attachLeaf(lf)
	}
	return true
}

// varianceAxis picks the composition dimension with the highest variance
// across (at most maxSample, or all if 0) of the given leaves.
func varianceAxis(leaves []*CompositionPoint, maxSample int) int {
	sample := leaves
	if maxSample > 0 && maxSample < len(leaves) {
		sample = leaves[:maxSample]
	}
	n := sample[0].n
	means := make([]float64, n)
	for _, lf := range sample {
		for i := 0; i < n; i++ {
			means[i] += lf.phi[i]
		}
	}
	inv := 1 / float64(len(sample))
	for i := range means {
		means[i] *= inv
	}
	variances := make([]float64, n)
	for _, lf := range sample {
		for i := 0; i < n; i++ {
			d := lf.phi[i] - means[i]
			variances[i] += d * d
		}
	}
	axis := 0
	for i := 1; i < n; i++ {
		if variances[i] > variances[axis] {
			axis = i
		}
	}
	return axis
}
