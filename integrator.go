package isat

// Integrator documents the shape of the chemistry collaborator a caller
// wires up around this cache. isat never holds a reference to one and
// never calls it: every cache operation receives an already-computed
// mapping result (Rphi, gradient) as plain arguments. The interface exists
// so that callers and tests can share a common shape, matching the
// dependency-inversion direction described for this cache: the integrator
// depends on isat for storage, not the reverse.
type Integrator interface {
	// Integrate evaluates the mapping at phi, returning the mapped result
	// Rphi and its gradient (a dense n x n matrix, row-major as [][]float64).
	Integrate(phi []float64) (rphi []float64, gradient [][]float64, err error)

	// NSpecies returns the number of chemical species in the full
	// mechanism (excluding temperature, pressure, and any other
	// non-species state carried in phi).
	NSpecies() int

	// NEqns returns the total composition dimension n (species plus
	// temperature, pressure, and any other carried state).
	NEqns() int

	// CurrentSimTime returns the caller's current simulated time, used by
	// the cache only as an opaque timestamp for age- and use-based
	// eviction; isat never interprets its units.
	CurrentSimTime() float64
}
