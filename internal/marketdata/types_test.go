package marketdata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func identityCorrelations(n int) [][]float64 {
	matrix := make([][]float64, n)
	for i := range matrix {
		matrix[i] = make([]float64, n)
		matrix[i][i] = 1.0
	}
	return matrix
}

func TestWeights(t *testing.T) {
	positions := []Position{
		{PositionID: "P1", MarketValue: 600_000},
		{PositionID: "P2", MarketValue: 400_000},
	}

	weights, err := Weights(positions)
	require.NoError(t, err)
	assert.InDelta(t, 0.6, weights[0], 1e-12)
	assert.InDelta(t, 0.4, weights[1], 1e-12)

	_, err = Weights([]Position{{MarketValue: 0}})
	assert.Error(t, err)
}

func TestNewMarketParametersValid(t *testing.T) {
	params, err := NewMarketParameters(
		[]float64{0.08, 0.05},
		[]float64{0.20, 0.10},
		[][]float64{
			{1.0, 0.3},
			{0.3, 1.0},
		},
		2.0,
	)
	require.NoError(t, err)
	assert.Equal(t, 2, params.Correlations.Rows())
	assert.Equal(t, 2.0, params.JumpIntensity)
}

func TestNewMarketParametersLengthMismatch(t *testing.T) {
	_, err := NewMarketParameters(
		[]float64{0.08, 0.05},
		[]float64{0.20},
		identityCorrelations(2),
		0,
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "volatilities length")
}

func TestNewMarketParametersBadDiagonal(t *testing.T) {
	_, err := NewMarketParameters(
		[]float64{0.08, 0.05},
		[]float64{0.20, 0.10},
		[][]float64{
			{0.9, 0.3},
			{0.3, 1.0},
		},
		0,
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "diagonal")
}

func TestNewMarketParametersAsymmetric(t *testing.T) {
	_, err := NewMarketParameters(
		[]float64{0.08, 0.05},
		[]float64{0.20, 0.10},
		[][]float64{
			{1.0, 0.3},
			{0.5, 1.0},
		},
		0,
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "symmetric")
}

// TestNewMarketParametersNotPositiveDefinite verifies the Cholesky probe
// rejects a structurally broken matrix before any simulation sees it.
func TestNewMarketParametersNotPositiveDefinite(t *testing.T) {
	_, err := NewMarketParameters(
		[]float64{0.08, 0.05, 0.06},
		[]float64{0.20, 0.10, 0.15},
		[][]float64{
			{1.0, 0.9, -0.9},
			{0.9, 1.0, 0.9},
			{-0.9, 0.9, 1.0},
		},
		0,
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rejected")
}

func TestNewMarketParametersNegativeJumpIntensity(t *testing.T) {
	_, err := NewMarketParameters(
		[]float64{0.08},
		[]float64{0.20},
		identityCorrelations(1),
		-1.0,
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "jump intensity")
}

func TestMarketParametersRehydrate(t *testing.T) {
	params := &MarketParameters{
		ExpectedReturns: []float64{0.08},
		Volatilities:    []float64{0.20},
		CorrelationData: identityCorrelations(1),
	}
	require.Nil(t, params.Correlations)
	require.NoError(t, params.Rehydrate())
	assert.Equal(t, 1.0, params.Correlations.At(0, 0))
}
