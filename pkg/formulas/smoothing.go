package formulas

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// MovingAverage returns the centred moving average of values over a window of
// 2*halfWidth+1 points. Windows are truncated at both edges rather than padded.
func MovingAverage(values []float64, halfWidth int) []float64 {
	n := len(values)
	out := make([]float64, n)
	if halfWidth <= 0 {
		copy(out, values)
		return out
	}

	for i := 0; i < n; i++ {
		lo, hi := window(i, halfWidth, n)
		out[i] = floats.Sum(values[lo:hi]) / float64(hi-lo)
	}
	return out
}

// GaussianFilter smooths values with a Gaussian kernel of standard deviation sigma
// (in index units), truncated at four standard deviations. Boundaries are handled by
// reflection about the edge (d c b a | a b c d | d c b a), the same convention used by
// scipy.ndimage.gaussian_filter1d.
func GaussianFilter(values []float64, sigma float64) []float64 {
	n := len(values)
	out := make([]float64, n)
	if sigma <= 0 || n == 0 {
		copy(out, values)
		return out
	}

	radius := int(4*sigma + 0.5)
	kernel := make([]float64, 2*radius+1)
	for j := -radius; j <= radius; j++ {
		kernel[j+radius] = math.Exp(-0.5 * float64(j*j) / (sigma * sigma))
	}
	floats.Scale(1/floats.Sum(kernel), kernel)

	for i := 0; i < n; i++ {
		acc := 0.0
		for j := -radius; j <= radius; j++ {
			acc += kernel[j+radius] * values[reflectIndex(i+j, n)]
		}
		out[i] = acc
	}
	return out
}

// Gradient estimates dy/dx at every point: central differences in the interior and
// one-sided differences at the two ends. x must be strictly increasing.
func Gradient(y, x []float64) []float64 {
	n := len(y)
	grad := make([]float64, n)
	if n < 2 || len(x) != n {
		return grad
	}

	grad[0] = (y[1] - y[0]) / (x[1] - x[0])
	grad[n-1] = (y[n-1] - y[n-2]) / (x[n-1] - x[n-2])
	for i := 1; i < n-1; i++ {
		grad[i] = (y[i+1] - y[i-1]) / (x[i+1] - x[i-1])
	}
	return grad
}

// WindowVariance returns, for every point, the population variance of values within
// the same truncated window MovingAverage uses.
func WindowVariance(values []float64, halfWidth int) []float64 {
	n := len(values)
	out := make([]float64, n)
	if halfWidth <= 0 {
		return out
	}

	for i := 0; i < n; i++ {
		lo, hi := window(i, halfWidth, n)
		out[i] = stat.PopVariance(values[lo:hi], nil)
	}
	return out
}

func window(i, halfWidth, n int) (int, int) {
	lo := i - halfWidth
	if lo < 0 {
		lo = 0
	}
	hi := i + halfWidth + 1
	if hi > n {
		hi = n
	}
	return lo, hi
}

// reflectIndex folds an out-of-range index back into [0, n).
func reflectIndex(idx, n int) int {
	if n == 1 {
		return 0
	}
	period := 2 * n
	idx %= period
	if idx < 0 {
		idx += period
	}
	if idx >= n {
		idx = period - idx - 1
	}
	return idx
}
