package formulas

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHistoricalVaR(t *testing.T) {
	losses := []float64{10, 3, 7, 1, 9, 2, 8, 4, 6, 5}

	got := HistoricalVaR(losses, 0.9)

	assert.GreaterOrEqual(t, got, 9.0)
	assert.LessOrEqual(t, got, 10.0)
	assert.Equal(t, 10.0, losses[0], "input order is preserved")
}

func TestHistoricalES(t *testing.T) {
	tests := []struct {
		name       string
		losses     []float64
		confidence float64
		want       float64
	}{
		{"worst two of ten at 80%", []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, 0.80, 9.5},
		{"at least one loss", []float64{1, 2, 3}, 0.999, 3},
		{"empty", nil, 0.95, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, HistoricalES(tt.losses, tt.confidence), 1e-9)
		})
	}
}

func TestHistoricalES_NotBelowVaR(t *testing.T) {
	losses := []float64{0.5, -0.2, 1.3, 2.2, -1.0, 0.1, 3.4, 0.9, 1.1, -0.4}
	assert.GreaterOrEqual(t, HistoricalES(losses, 0.9), HistoricalVaR(losses, 0.9))
}
