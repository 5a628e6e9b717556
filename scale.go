package isat

import "math"

// scaledDeltaSquared returns sum(((phi[i]-phi0[i])/scale[i])^2), the
// dimensionless squared error CheckSolution compares against tolerance^2
// when deciding whether a true-integration result agrees with a leaf's
// linear extrapolation closely enough to grow instead of reinsert.
func scaledDeltaSquared(phi, phi0, scale []float64) float64 {
	var sum float64
	for i := range phi {
		d := (phi[i] - phi0[i]) / scale[i]
		sum += d * d
	}
	return sum
}

// vecNorm returns the Euclidean norm of v.
func vecNorm(v []float64) float64 {
	return math.Sqrt(vecDot(v, v))
}

// vecDot returns the dot product of a and b.
func vecDot(a, b []float64) float64 {
	var sum float64
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}
