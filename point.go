package isat

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// degenerateEOAThreshold bounds how small a diagonal pivot of the initial
// QR factorization may be before the gradient is treated as numerically
// rank-deficient and construction is aborted.
const degenerateEOAThreshold = 1e-12

// CompositionPoint is a single stored sample (a leaf of the tree): a
// composition phi, the mapping's result rphi at phi, and an ellipsoid of
// accuracy (EOA) built from the mapping's gradient at phi.
//
// The EOA shape matrix L is never materialized densely: it is held as a
// QR pair (qt, r) with L = qt^T · r, so that InEOA costs two O(m²)
// matrix-vector products and Grow updates the pair in place in O(m²)
// instead of recomputing a fresh decomposition.
type CompositionPoint struct {
	phi         []float64
	rphi        []float64
	gradient    [][]float64
	scaleFactor []float64
	tolerance   float64

	n int // full composition dimension
	m int // active dimension (== n when reduction is nil)

	qt []float64 // flat m×m, Q^T of the EOA shape matrix's QR pair
	r  []float64 // flat m×m, R (upper triangular) of the same pair

	rMinSq float64 // ||delta||^2 below which InEOA always accepts
	rMaxSq float64 // ||delta||^2 above which InEOA always rejects

	reduction *ReductionContext

	node *TreeNode // owning leaf slot; nil once evicted

	nUsed             int
	nGrown            int
	timeTag           float64 // simulated time at insertion
	lastTimeUsed      float64
	needsRevalidation bool
	toRemove          bool
}

// newCompositionPoint builds a CompositionPoint around phi/rphi/gradient,
// constructing its ellipsoid of accuracy via QR decomposition followed by
// an SVD-based semi-axis clamp, as described for EOA construction.
// gradient must be n×n (full dimension), even when reduction is non-nil:
// only the active rows/columns are read.
func newCompositionPoint(
	phi, rphi []float64,
	gradient [][]float64,
	scaleFactor []float64,
	tolerance float64,
	simTime float64,
	reduction *ReductionContext,
) (*CompositionPoint, error) {
	n := len(phi)
	m := n
	activeFull := func(i int) int { return i }
	if reduction != nil {
		m = reduction.ActiveCount
		activeFull = func(i int) int { return reduction.ActiveToFull[i] }
	}

	bad := make([]float64, m*m)
	for i := 0; i < m; i++ {
		fi := activeFull(i)
		for j := 0; j < m; j++ {
			fj := activeFull(j)
			bad[i*m+j] = gradient[fi][fj] / (scaleFactor[fi] * tolerance)
		}
	}
	md := mat.NewDense(m, m, bad)

	var qrf mat.QR
	qrf.Factorize(md)
	var r0 mat.Dense
	qrf.RTo(&r0)

	for i := 0; i < m; i++ {
		if math.Abs(r0.At(i, i)) < degenerateEOAThreshold {
			return nil, fmt.Errorf("isat: constructing EOA: rank-deficient gradient: %w", ErrDegenerateEOA)
		}
	}

	var l0 mat.Dense
	l0.CloneFrom(r0.T())

	var svd mat.SVD
	if ok := svd.Factorize(&l0, mat.SVDFull); !ok {
		return nil, fmt.Errorf("isat: constructing EOA: SVD did not converge: %w", ErrDegenerateEOA)
	}
	values := svd.Values(nil)
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	dMin, dMax := math.Inf(1), 0.0
	dClamped := mat.NewDiagDense(m, nil)
	for i, d := range values {
		if d < 0.5 {
			d = 0.5
		}
		dClamped.SetDiag(i, d)
		if d < dMin {
			dMin = d
		}
		if d > dMax {
			dMax = d
		}
	}

	var lClamped mat.Dense
	lClamped.Product(&u, dClamped, v.T())

	var qrf2 mat.QR
	qrf2.Factorize(&lClamped)
	var q, r mat.Dense
	qrf2.QTo(&q)
	qrf2.RTo(&r)

	qt := make([]float64, m*m)
	rFlat := make([]float64, m*m)
	for i := 0; i < m; i++ {
		for j := 0; j < m; j++ {
			qt[i*m+j] = q.At(j, i)
			rFlat[i*m+j] = r.At(i, j)
		}
	}

	cp := &CompositionPoint{
		phi:          append([]float64(nil), phi...),
		rphi:         append([]float64(nil), rphi...),
		gradient:     gradient,
		scaleFactor:  scaleFactor,
		tolerance:    tolerance,
		n:            n,
		m:            m,
		qt:           qt,
		r:            rFlat,
		rMinSq:       1 / (dMax * dMax),
		rMaxSq:       1 / (dMin * dMin),
		reduction:    reduction,
		timeTag:      simTime,
		lastTimeUsed: simTime,
	}
	return cp, nil
}

// delta writes the active-subspace composition difference phiq-phi into
// dst (length cp.m) and returns it.
func (cp *CompositionPoint) delta(phiq, dst []float64) []float64 {
	if cp.reduction == nil {
		for i := 0; i < cp.m; i++ {
			dst[i] = phiq[i] - cp.phi[i]
		}
		return dst
	}
	for i, fi := range cp.reduction.ActiveToFull {
		dst[i] = phiq[fi] - cp.phi[fi]
	}
	return dst
}

// InEOA reports whether phiq lies within this point's ellipsoid of
// accuracy: ||L^T·(phiq-phi)|| <= 1, computed without ever materializing
// the dense L. A cheap bracket test against the ellipsoid's extremal
// semi-axes short-circuits the common cases.
func (cp *CompositionPoint) InEOA(phiq []float64) bool {
	m := cp.m
	dphi := cp.delta(phiq, make([]float64, m))
	normSq := vecDot(dphi, dphi)
	if normSq <= cp.rMinSq {
		return true
	}
	if normSq >= cp.rMaxSq {
		return false
	}
	y := matVec(cp.qt, dphi, m, make([]float64, m))
	z := matVecT(cp.r, y, m, make([]float64, m))
	return vecDot(z, z) <= 1
}

// CheckSolution reports whether the caller-supplied true result rphiq at
// phiq agrees, within tolerance, with this point's linear extrapolation
// rphi + A·(phiq-phi). A true result here means Grow may safely extend the
// EOA to cover phiq instead of forcing a fresh tree insertion.
func (cp *CompositionPoint) CheckSolution(phiq, rphiq []float64) bool {
	predicted := append([]float64(nil), cp.rphi...)
	for i := 0; i < cp.n; i++ {
		var sum float64
		row := cp.gradient[i]
		for j := 0; j < cp.n; j++ {
			sum += row[j] * (phiq[j] - cp.phi[j])
		}
		predicted[i] += sum
	}
	errSq := scaledDeltaSquared(rphiq, predicted, cp.scaleFactor)
	return errSq <= cp.tolerance*cp.tolerance
}

// Grow extends the ellipsoid of accuracy with a rank-one update so that
// phiq lies on its boundary, via an O(m²) Givens-rotation QR update rather
// than a fresh decomposition. Returns false (no-op) if phiq was already
// inside the ellipsoid.
func (cp *CompositionPoint) Grow(phiq []float64) bool {
	m := cp.m
	dphi := cp.delta(phiq, make([]float64, m))
	y := matVec(cp.qt, dphi, m, make([]float64, m))
	p := matVecT(cp.r, y, m, make([]float64, m))
	norm := vecNorm(p)
	if norm <= 1 {
		return false
	}

	gamma := (1/norm - 1) / (norm * norm)
	rp := matVec(cp.r, p, m, make([]float64, m))
	qrp := matVecT(cp.qt, rp, m, make([]float64, m)) // Q·rp, since qt holds Q^T

	u := make([]float64, m)
	for i := range u {
		u[i] = gamma * qrp[i]
	}
	qrUpdate(cp.r, cp.qt, m, u, p)

	cp.nGrown++
	// The rank-one update can push the true reject radius (1/sigma_min of
	// the new L) past every direction already probed, including phiq's own
	// distance: widening rMaxSq to dphiSq would put phiq exactly on the
	// cheap-reject boundary and InEOA's ">=" would reject the very point
	// just grown to. There is no O(1) bound on the new sigma_min without
	// another decomposition, so the cheap-reject fast path is retired for
	// this point; InEOA falls back to the full ellipsoid test, which is
	// still exact, just no longer short-circuited.
	cp.rMaxSq = math.Inf(1)
	return true
}

// clearData drops references to the bulk per-point data (phi, rphi,
// gradient and the EOA's QR pair) so the garbage collector can reclaim
// them once a leaf has been evicted; only the counters remain.
func (cp *CompositionPoint) clearData() {
	cp.phi = nil
	cp.rphi = nil
	cp.gradient = nil
	cp.qt = nil
	cp.r = nil
}

// setFree clears the eviction flag and the node back-pointer, used when a
// point is reinserted after having been pulled out of the tree during a
// rebalance. Usage counters are left as they are.
func (cp *CompositionPoint) setFree() {
	cp.toRemove = false
	cp.node = nil
}
