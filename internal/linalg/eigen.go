package linalg

import (
	"fmt"
	"math"
)

// Eigen-solver defaults. The tolerance is the relative eigenvalue change
// between iterations below which a component is considered converged.
const (
	DefaultEigenTolerance = 1e-8
	DefaultEigenMaxIter   = 1000
)

// EigenPair is a single eigenvalue with its unit-norm eigenvector.
type EigenPair struct {
	Value  float64
	Vector []float64
}

// Eigen extracts the k dominant eigenpairs of a symmetric matrix by power
// iteration with deflation: each found eigenvector is projected out of the
// working vector before the next component is extracted. Pairs are returned
// in descending eigenvalue order.
func (m *Matrix) Eigen(k int, tol float64, maxIter int) ([]EigenPair, error) {
	if !m.IsSquare() {
		return nil, fmt.Errorf("eigen decomposition requires a square matrix, got %dx%d", m.rows, m.cols)
	}
	if k <= 0 || k > m.rows {
		return nil, fmt.Errorf("component count %d out of range [1, %d]", k, m.rows)
	}
	if tol <= 0 {
		tol = DefaultEigenTolerance
	}
	if maxIter <= 0 {
		maxIter = DefaultEigenMaxIter
	}

	n := m.rows
	pairs := make([]EigenPair, 0, k)

	for comp := 0; comp < k; comp++ {
		// Deterministic starting vector, skewed so it is unlikely to be
		// orthogonal to the dominant remaining eigenvector.
		v := make([]float64, n)
		for i := range v {
			v[i] = 1.0 + float64(i%7)*0.1
		}
		deflate(v, pairs)
		if norm(v) < 1e-12 {
			// Starting vector lies in the span of found components; perturb.
			v[comp%n] += 1.0
			deflate(v, pairs)
		}
		normalize(v)

		var lambda float64
		for iter := 0; iter < maxIter; iter++ {
			w, err := m.MulVec(v)
			if err != nil {
				return nil, err
			}
			deflate(w, pairs)

			next := norm(w)
			if next < 1e-14 {
				// Remaining spectrum is numerically zero.
				lambda = 0
				break
			}
			for i := range w {
				w[i] /= next
			}

			delta := math.Abs(next - math.Abs(lambda))
			if math.Abs(lambda) > 0 {
				delta /= math.Abs(lambda)
			}
			lambda = next
			v = w
			if delta < tol {
				break
			}
		}

		// Rayleigh quotient recovers the signed eigenvalue.
		mv, err := m.MulVec(v)
		if err != nil {
			return nil, err
		}
		lambda = dot(v, mv)

		pairs = append(pairs, EigenPair{Value: lambda, Vector: v})
	}

	return pairs, nil
}

// deflate subtracts the projection of v onto each found eigenvector.
func deflate(v []float64, pairs []EigenPair) {
	for _, p := range pairs {
		proj := dot(v, p.Vector)
		for i := range v {
			v[i] -= proj * p.Vector[i]
		}
	}
}

func dot(a, b []float64) float64 {
	var sum float64
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

func norm(v []float64) float64 {
	return math.Sqrt(dot(v, v))
}

func normalize(v []float64) {
	n := norm(v)
	if n == 0 {
		return
	}
	for i := range v {
		v[i] /= n
	}
}
