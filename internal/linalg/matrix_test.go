package linalg

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMatrixValidation(t *testing.T) {
	_, err := NewMatrix(nil)
	assert.Error(t, err)

	_, err = NewMatrix([][]float64{{1, 2}, {3}})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "row 1")

	m, err := NewMatrix([][]float64{{1, 2}, {3, 4}})
	require.NoError(t, err)
	assert.Equal(t, 2, m.Rows())
	assert.Equal(t, 2, m.Cols())
	assert.Equal(t, 3.0, m.At(1, 0))
}

func TestNewMatrixCopiesInput(t *testing.T) {
	data := [][]float64{{1, 2}, {3, 4}}
	m, err := NewMatrix(data)
	require.NoError(t, err)

	data[0][0] = 99
	assert.Equal(t, 1.0, m.At(0, 0))
}

func TestMulVec(t *testing.T) {
	m, err := NewMatrix([][]float64{{1, 2}, {3, 4}})
	require.NoError(t, err)

	y, err := m.MulVec([]float64{1, 1})
	require.NoError(t, err)
	assert.Equal(t, []float64{3, 7}, y)

	_, err = m.MulVec([]float64{1, 2, 3})
	assert.Error(t, err)
}

// TestCholeskyReconstruction verifies the defining property L * Lt = M for a
// known symmetric positive-definite matrix.
func TestCholeskyReconstruction(t *testing.T) {
	original := [][]float64{
		{4, 12, -16},
		{12, 37, -43},
		{-16, -43, 98},
	}
	m, err := NewMatrix(original)
	require.NoError(t, err)

	lower, err := m.Cholesky()
	require.NoError(t, err)

	// Known decomposition for this matrix.
	assert.InDelta(t, 2.0, lower.At(0, 0), 1e-12)
	assert.InDelta(t, 6.0, lower.At(1, 0), 1e-12)
	assert.InDelta(t, 1.0, lower.At(1, 1), 1e-12)

	// Reconstruct and compare within relative tolerance.
	n := m.Rows()
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			var sum float64
			for k := 0; k < n; k++ {
				sum += lower.At(i, k) * lower.At(j, k)
			}
			expected := original[i][j]
			tol := 1e-9 * math.Max(1.0, math.Abs(expected))
			assert.InDelta(t, expected, sum, tol, "mismatch at (%d,%d)", i, j)
		}
	}

	// Upper triangle must be zero.
	assert.Equal(t, 0.0, lower.At(0, 1))
	assert.Equal(t, 0.0, lower.At(0, 2))
	assert.Equal(t, 0.0, lower.At(1, 2))
}

func TestCholeskyCorrelationMatrix(t *testing.T) {
	m, err := NewMatrix([][]float64{
		{1.0, 0.5, 0.3},
		{0.5, 1.0, 0.4},
		{0.3, 0.4, 1.0},
	})
	require.NoError(t, err)

	lower, err := m.Cholesky()
	require.NoError(t, err)
	assert.InDelta(t, 1.0, lower.At(0, 0), 1e-12)
	assert.InDelta(t, 0.5, lower.At(1, 0), 1e-12)
}

// TestCholeskyNotPositiveDefinite covers the invalid-input edge case: the
// decomposition must fail explicitly instead of producing NaN.
func TestCholeskyNotPositiveDefinite(t *testing.T) {
	// Correlation 1.0 off-diagonal with a third conflicting entry is not PSD.
	m, err := NewMatrix([][]float64{
		{1.0, 1.0, 0.0},
		{1.0, 1.0, 0.0},
		{0.0, 0.0, 1.0},
	})
	require.NoError(t, err)

	_, err = m.Cholesky()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not positive definite")
}

func TestCholeskyRequiresSymmetry(t *testing.T) {
	m, err := NewMatrix([][]float64{
		{1.0, 0.5},
		{0.2, 1.0},
	})
	require.NoError(t, err)

	_, err = m.Cholesky()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "symmetric")
}

func TestCholeskySingleElement(t *testing.T) {
	m, err := NewMatrix([][]float64{{4.0}})
	require.NoError(t, err)

	lower, err := m.Cholesky()
	require.NoError(t, err)
	assert.InDelta(t, 2.0, lower.At(0, 0), 1e-12)
}

func TestIdentityMatrix(t *testing.T) {
	m, err := NewIdentityMatrix(3)
	require.NoError(t, err)
	assert.True(t, m.IsSymmetric(0))

	lower, err := m.Cholesky()
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		assert.InDelta(t, 1.0, lower.At(i, i), 1e-12)
	}
}
