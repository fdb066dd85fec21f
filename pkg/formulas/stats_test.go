package formulas

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMeanAndVariance(t *testing.T) {
	data := []float64{2, 4, 4, 4, 5, 5, 7, 9}

	assert.InDelta(t, 5.0, Mean(data), 1e-12)
	assert.InDelta(t, 4.0, PopVariance(data), 1e-12, "population variance divides by n")
	assert.InDelta(t, math.Sqrt(32.0/7.0), StdDev(data), 1e-12)
}

func TestStats_EmptyInput(t *testing.T) {
	assert.Equal(t, 0.0, Mean(nil))
	assert.Equal(t, 0.0, PopVariance(nil))
	assert.Equal(t, 0.0, StdDev([]float64{1}))
}

func TestCalculateReturns(t *testing.T) {
	tests := []struct {
		name   string
		prices []float64
		want   []float64
	}{
		{"two prices", []float64{100, 110}, []float64{0.10}},
		{"decline", []float64{100, 90, 99}, []float64{-0.10, 0.10}},
		{"single price", []float64{100}, []float64{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CalculateReturns(tt.prices)
			assert.Len(t, got, len(tt.want))
			for i := range tt.want {
				assert.InDelta(t, tt.want[i], got[i], 1e-12)
			}
		})
	}
}

func TestCalculateReturns_ZeroPriceIsNaN(t *testing.T) {
	got := CalculateReturns([]float64{0, 10})
	assert.True(t, math.IsNaN(got[0]))
	assert.False(t, AllFinite(got))
}

func TestIntradayReturns(t *testing.T) {
	got := IntradayReturns([]float64{100, 50, 0}, []float64{95, 55, 1})

	assert.InDelta(t, -0.05, got[0], 1e-12)
	assert.InDelta(t, 0.10, got[1], 1e-12)
	assert.True(t, math.IsNaN(got[2]))
}

func TestAllFinite(t *testing.T) {
	assert.True(t, AllFinite([]float64{1, -2, 0}))
	assert.False(t, AllFinite([]float64{1, math.Inf(1)}))
	assert.False(t, AllFinite([]float64{math.NaN()}))
}
