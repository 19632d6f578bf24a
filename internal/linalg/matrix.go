// Package linalg provides the dense matrix and statistics primitives shared by
// the risk analytics services: Cholesky decomposition for correlated random
// draws, a power-iteration eigen-solver for PCA, and Pearson correlation.
package linalg

import (
	"fmt"
	"math"
)

// Matrix is a dense row-major matrix with dimensions fixed at construction.
type Matrix struct {
	rows int
	cols int
	data [][]float64
}

// NewMatrix creates a matrix from row slices. All rows must have equal length
// and the matrix must be non-empty.
func NewMatrix(data [][]float64) (*Matrix, error) {
	if len(data) == 0 || len(data[0]) == 0 {
		return nil, fmt.Errorf("matrix must have at least one row and one column")
	}

	cols := len(data[0])
	rows := make([][]float64, len(data))
	for i, row := range data {
		if len(row) != cols {
			return nil, fmt.Errorf("row %d has %d columns, expected %d", i, len(row), cols)
		}
		rows[i] = make([]float64, cols)
		copy(rows[i], row)
	}

	return &Matrix{rows: len(data), cols: cols, data: rows}, nil
}

// NewZeroMatrix creates an n x m matrix of zeros.
func NewZeroMatrix(n, m int) (*Matrix, error) {
	if n <= 0 || m <= 0 {
		return nil, fmt.Errorf("invalid matrix dimensions %dx%d", n, m)
	}
	data := make([][]float64, n)
	for i := range data {
		data[i] = make([]float64, m)
	}
	return &Matrix{rows: n, cols: m, data: data}, nil
}

// NewIdentityMatrix creates an n x n identity matrix.
func NewIdentityMatrix(n int) (*Matrix, error) {
	m, err := NewZeroMatrix(n, n)
	if err != nil {
		return nil, err
	}
	for i := 0; i < n; i++ {
		m.data[i][i] = 1.0
	}
	return m, nil
}

// Rows returns the number of rows.
func (m *Matrix) Rows() int { return m.rows }

// Cols returns the number of columns.
func (m *Matrix) Cols() int { return m.cols }

// At returns the element at (i, j).
func (m *Matrix) At(i, j int) float64 { return m.data[i][j] }

// Set assigns the element at (i, j).
func (m *Matrix) Set(i, j int, v float64) { m.data[i][j] = v }

// Row returns a copy of row i.
func (m *Matrix) Row(i int) []float64 {
	row := make([]float64, m.cols)
	copy(row, m.data[i])
	return row
}

// IsSquare reports whether the matrix is square.
func (m *Matrix) IsSquare() bool { return m.rows == m.cols }

// IsSymmetric reports whether the matrix equals its transpose within tol.
func (m *Matrix) IsSymmetric(tol float64) bool {
	if !m.IsSquare() {
		return false
	}
	for i := 0; i < m.rows; i++ {
		for j := i + 1; j < m.cols; j++ {
			if math.Abs(m.data[i][j]-m.data[j][i]) > tol {
				return false
			}
		}
	}
	return true
}

// MulVec computes y = M * x.
func (m *Matrix) MulVec(x []float64) ([]float64, error) {
	if len(x) != m.cols {
		return nil, fmt.Errorf("vector length %d does not match matrix columns %d", len(x), m.cols)
	}
	y := make([]float64, m.rows)
	for i := 0; i < m.rows; i++ {
		var sum float64
		for j := 0; j < m.cols; j++ {
			sum += m.data[i][j] * x[j]
		}
		y[i] = sum
	}
	return y, nil
}

// Cholesky computes the lower-triangular L with L * Lt = M for a symmetric
// positive-definite matrix M. A non-positive pivot means M is not positive
// definite and an explicit error is returned rather than letting NaN propagate
// into downstream simulations.
func (m *Matrix) Cholesky() (*Matrix, error) {
	if !m.IsSquare() {
		return nil, fmt.Errorf("cholesky requires a square matrix, got %dx%d", m.rows, m.cols)
	}
	if !m.IsSymmetric(1e-10) {
		return nil, fmt.Errorf("cholesky requires a symmetric matrix")
	}

	n := m.rows
	lower, err := NewZeroMatrix(n, n)
	if err != nil {
		return nil, err
	}

	for j := 0; j < n; j++ {
		var diagSum float64
		for k := 0; k < j; k++ {
			diagSum += lower.data[j][k] * lower.data[j][k]
		}
		pivot := m.data[j][j] - diagSum
		if pivot <= 0 {
			return nil, fmt.Errorf("matrix is not positive definite: pivot %g at index %d", pivot, j)
		}
		lower.data[j][j] = math.Sqrt(pivot)

		for i := j + 1; i < n; i++ {
			var sum float64
			for k := 0; k < j; k++ {
				sum += lower.data[i][k] * lower.data[j][k]
			}
			lower.data[i][j] = (m.data[i][j] - sum) / lower.data[j][j]
		}
	}

	return lower, nil
}
