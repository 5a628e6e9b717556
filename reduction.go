package isat

// ReductionContext describes the active-species subspace a composition
// point's gradient matrix was evaluated over, when the caller's mechanism
// reduced the mechanism before integrating. It is a snapshot: constant for
// the lifetime of the CompositionPoint it is attached to.
//
// A nil *ReductionContext means the full mechanism was used; every
// CompositionPoint method treats a nil reduction context as the identity
// mapping over all n dimensions.
type ReductionContext struct {
	// ActiveCount is the number of active species/dimensions, <= the
	// cache's full dimension n.
	ActiveCount int

	// FullToActive maps a full-space index to its position in the active
	// subspace, or -1 if that index is inactive. Length n.
	FullToActive []int

	// ActiveToFull maps an active-subspace index back to its full-space
	// index. Length ActiveCount.
	ActiveToFull []int

	// InertIndex lists full-space indices that are passed through
	// CalcNewC unchanged rather than projected through the gradient
	// (e.g. an inert species tracked for mass closure, or temperature and
	// pressure in a reduced-temperature formulation).
	InertIndex []int
}

// projectFull extracts the active-subspace sub-vector of a full-length
// vector. dst must have length rc.ActiveCount.
func (rc *ReductionContext) projectFull(dst, full []float64) []float64 {
	for i, fi := range rc.ActiveToFull {
		dst[i] = full[fi]
	}
	return dst
}

// expandActive scatters an active-subspace vector back into a full-length
// vector, leaving every inactive entry of dst untouched.
func (rc *ReductionContext) expandActive(dst, active []float64) {
	for i, fi := range rc.ActiveToFull {
		dst[fi] = active[i]
	}
}

// isInert reports whether full-space index i is carried through CalcNewC
// unchanged rather than corrected by the gradient.
func (rc *ReductionContext) isInert(i int) bool {
	for _, idx := range rc.InertIndex {
		if idx == i {
			return true
		}
	}
	return false
}
