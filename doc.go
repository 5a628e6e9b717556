// Package isat implements in-situ adaptive tabulation: a cache for an
// expensive pointwise nonlinear mapping, backed by a binary
// space-partitioning tree over composition space.
//
// Each stored sample carries an ellipsoid of accuracy (EOA) built from the
// mapping's local gradient. A query that falls inside a stored EOA is
// answered by a cheap linear extrapolation instead of a fresh evaluation of
// the mapping; a query that falls outside grows the nearest EOA if the true
// error is still acceptable, or triggers a fresh evaluation and insertion.
//
// Basic usage:
//
//	n := nSpecies + 2
//	cache, err := isat.NewCache(n, isat.DefaultConfig(n))
//	if err != nil {
//		// handle invalid configuration
//	}
//
//	hit, leaf := cache.Retrieve(phi, simTime)
//	if hit {
//		rphi := cache.CalcNewC(leaf, phi)
//		// use rphi
//		return
//	}
//
//	rphi, grad, err := integrator.Integrate(phi)
//	if err != nil {
//		// handle integration failure
//	}
//	if _, err := cache.Add(phi, rphi, grad, simTime, nil); err != nil {
//		// ErrCapacityExceeded is non-fatal: the caller already has rphi.
//	}
//
// # Collaborators
//
// isat never calls the chemistry mapping itself: the caller always performs
// the expensive evaluation and feeds the result back through Add or Grow.
// The [Integrator] interface exists only to document the shape callers are
// expected to provide; isat holds no reference to one. A [ReductionContext]
// may be attached to an inserted point when the mapping was evaluated over
// an actively-reduced mechanism rather than the full species set.
package isat
