package formulas

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMovingAverage(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5}

	got := MovingAverage(values, 1)

	require.Len(t, got, 5)
	assert.InDelta(t, 1.5, got[0], 1e-12, "left edge window is truncated to two points")
	assert.InDelta(t, 2.0, got[1], 1e-12)
	assert.InDelta(t, 3.0, got[2], 1e-12)
	assert.InDelta(t, 4.0, got[3], 1e-12)
	assert.InDelta(t, 4.5, got[4], 1e-12)
}

func TestMovingAverage_ZeroWidthCopies(t *testing.T) {
	values := []float64{3, 1, 2}
	got := MovingAverage(values, 0)

	assert.Equal(t, values, got)
	got[0] = 99
	assert.Equal(t, 3.0, values[0], "input must not be aliased")
}

func TestGaussianFilter_PreservesConstant(t *testing.T) {
	values := []float64{2, 2, 2, 2, 2, 2, 2}
	for _, v := range GaussianFilter(values, 2) {
		assert.InDelta(t, 2.0, v, 1e-12)
	}
}

func TestGaussianFilter_SmoothsSpike(t *testing.T) {
	values := []float64{0, 0, 0, 10, 0, 0, 0}
	got := GaussianFilter(values, 1)

	assert.Less(t, got[3], 10.0)
	assert.Greater(t, got[3], got[2])
	assert.InDelta(t, got[2], got[4], 1e-12, "kernel is symmetric")

	total := 0.0
	for _, v := range got {
		total += v
	}
	assert.InDelta(t, 10.0, total, 0.05, "reflective boundary keeps mass inside a wide array")
}

func TestGaussianFilter_NonPositiveSigmaCopies(t *testing.T) {
	values := []float64{1, 5, 2}
	assert.Equal(t, values, GaussianFilter(values, 0))
}

func TestGradient(t *testing.T) {
	x := []float64{1, 2, 4, 5}
	y := []float64{2, 4, 8, 10} // y = 2x

	got := Gradient(y, x)

	for _, g := range got {
		assert.InDelta(t, 2.0, g, 1e-12)
	}
}

func TestGradient_ShortInput(t *testing.T) {
	assert.Equal(t, []float64{0}, Gradient([]float64{1}, []float64{1}))
}

func TestWindowVariance(t *testing.T) {
	got := WindowVariance([]float64{1, 1, 1, 5, 1}, 1)

	assert.InDelta(t, 0.0, got[0], 1e-12)
	assert.InDelta(t, 0.0, got[1], 1e-12)
	assert.Greater(t, got[2], 0.0)
	assert.InDelta(t, got[2], got[3], 1e-12)
}

func TestReflectIndex(t *testing.T) {
	tests := []struct {
		idx, n, want int
	}{
		{-1, 4, 0},
		{-4, 4, 3},
		{-5, 4, 3},
		{4, 4, 3},
		{7, 4, 0},
		{2, 4, 2},
		{5, 1, 0},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, reflectIndex(tt.idx, tt.n), "idx=%d n=%d", tt.idx, tt.n)
	}
}
