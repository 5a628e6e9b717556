package isat

import "math"

// The functions in this file implement the rank-one QR update used by
// CompositionPoint.Grow: given the QR factorization of a matrix A (stored
// as r, upper triangular, and qt, the transpose of the orthogonal factor),
// qrUpdate replaces r and qt in place with the QR factorization of
// A + u⊗v, in O(n²) instead of recomputing the decomposition from scratch.
//
// Ported from the classical algorithm in "Numerical Recipes in C", 2nd
// edition, chapter 2.10, to 0-indexed flat row-major []float64 matrices.
// u is mutated as scratch space, matching the reference algorithm.

func sqr(x float64) float64 { return x * x }

// qrUpdate updates the n×n matrices r (upper triangular) and qt (Q^T) in
// place so that qt^T · r becomes (old qt^T · r) + u⊗v. u is overwritten.
func qrUpdate(r, qt []float64, n int, u, v []float64) {
	// A + u⊗v = Q·(R + (Q^T·u)⊗v): bring u into the frame of r first.
	copy(u, matVec(qt, u, n, make([]float64, n)))

	k := 0
	for k = n - 1; k >= 0; k-- {
		if u[k] != 0 {
			break
		}
	}
	if k < 0 {
		k = 0
	}

	for i := k - 1; i >= 0; i-- {
		rotate(r, qt, n, i, u[i], -u[i+1])
		switch {
		case u[i] == 0:
			u[i] = math.Abs(u[i+1])
		case math.Abs(u[i]) > math.Abs(u[i+1]):
			u[i] = math.Abs(u[i]) * math.Sqrt(1+sqr(u[i+1]/u[i]))
		default:
			u[i] = math.Abs(u[i+1]) * math.Sqrt(1+sqr(u[i]/u[i+1]))
		}
	}

	for j := 0; j < n; j++ {
		r[j] += u[0] * v[j]
	}

	for i := 0; i < k; i++ {
		rotate(r, qt, n, i, r[i*n+i], -r[(i+1)*n+i])
	}
}

// rotate applies a single Givens rotation zeroing out the (i+1)-th entry
// that a,b represent, to rows i and i+1 of both r and qt.
func rotate(r, qt []float64, n, i int, a, b float64) {
	var c, s float64
	switch {
	case a == 0:
		c = 0
		s = math.Copysign(1, b)
	case math.Abs(a) > math.Abs(b):
		fact := b / a
		c = math.Copysign(1/math.Sqrt(1+fact*fact), a)
		s = fact * c
	default:
		fact := a / b
		s = math.Copysign(1/math.Sqrt(1+fact*fact), b)
		c = fact * s
	}

	for j := i; j < n; j++ {
		y := r[i*n+j]
		w := r[(i+1)*n+j]
		r[i*n+j] = c*y - s*w
		r[(i+1)*n+j] = s*y + c*w
	}
	for j := 0; j < n; j++ {
		y := qt[i*n+j]
		w := qt[(i+1)*n+j]
		qt[i*n+j] = c*y - s*w
		qt[(i+1)*n+j] = s*y + c*w
	}
}

// matVec computes dst = m·x for an n×n row-major matrix m.
func matVec(m []float64, x []float64, n int, dst []float64) []float64 {
	for i := 0; i < n; i++ {
		var sum float64
		row := m[i*n : i*n+n]
		for j := 0; j < n; j++ {
			sum += row[j] * x[j]
		}
		dst[i] = sum
	}
	return dst
}

// matVecT computes dst = m^T·x for an n×n row-major matrix m.
func matVecT(m []float64, x []float64, n int, dst []float64) []float64 {
	for i := 0; i < n; i++ {
		dst[i] = 0
	}
	for i := 0; i < n; i++ {
		xi := x[i]
		if xi == 0 {
			continue
		}
		row := m[i*n : i*n+n]
		for j := 0; j < n; j++ {
			dst[j] += row[j] * xi
		}
	}
	return dst
}
