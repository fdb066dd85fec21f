package tailrisk

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
)

// Selector strategy names
const (
	SelectorAMSE  = "amse"
	SelectorSlope = "slope"
)

// Smoothing kernels for the AMSE selector
const (
	KernelMovingAverage = "moving_average"
	KernelGaussian      = "gaussian"
)

// Scale estimators for the tail model
const (
	ScaleHill = "hill"
	ScaleMLE  = "mle"
)

var validate = validator.New()

// Config is the engine's configuration surface. Zero values are replaced by the
// struct-tag defaults in ApplyDefaults, so a setting that may legitimately be zero
// is a pointer.
type Config struct {
	// Minimum number of observations required to attempt estimation.
	MinObservations int `json:"min_observations" default:"100" validate:"gte=10"`

	// Hill curve search window [KMin, KMax]. KMax=0 means KMaxFraction*n.
	// KMax is always capped at n/2.
	KMin         int     `json:"k_min" default:"5" validate:"gte=2"`
	KMax         int     `json:"k_max" validate:"gte=0"`
	KMaxFraction float64 `json:"k_max_fraction" default:"0.25" validate:"gt=0,lte=0.5"`

	// Threshold selection
	Selector        string   `json:"selector" default:"amse" validate:"oneof=amse slope"`
	SmoothingWindow int      `json:"smoothing_window" validate:"gte=0"` // 0 = odd width near sqrt(n)
	SmoothingKernel string   `json:"smoothing_kernel" default:"moving_average" validate:"oneof=moving_average gaussian"`
	SecondOrderRho  float64  `json:"second_order_rho" default:"-1" validate:"lt=0"`
	TieEpsilon      *float64 `json:"tie_epsilon" default:"1e-9" validate:"omitempty,gte=0"` // nil takes the default, 0 keeps exact ties only
	CurveSigma      float64  `json:"curve_sigma" default:"2" validate:"gt=0"`
	SlopeSigma      float64  `json:"slope_sigma" default:"5" validate:"gt=0"`

	// Tail model scale estimator
	ScaleEstimator string `json:"scale_estimator" default:"hill" validate:"oneof=hill mle"`

	ConfidenceLevels []float64 `json:"confidence_levels" default:"[0.95,0.99]" validate:"min=1,dive,gt=0,lt=1"`
}

// DefaultConfig returns a configuration with every default applied.
func DefaultConfig() Config {
	var cfg Config
	defaults.MustSet(&cfg)
	return cfg
}

// ApplyDefaults fills zero-valued fields from the struct-tag defaults.
func (c *Config) ApplyDefaults() error {
	if err := defaults.Set(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// Validate checks field ranges and cross-field constraints.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %s=%s", fe.Namespace(), fe.Tag(), fe.Param()))
			}
			return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	if c.KMax != 0 && c.KMax < c.KMin {
		return fmt.Errorf("%w: k_max %d is below k_min %d", ErrInvalidConfig, c.KMax, c.KMin)
	}
	return nil
}

// TieTolerance returns the score tolerance within which selectors treat two k as tied.
func (c Config) TieTolerance() float64 {
	if c.TieEpsilon == nil {
		return 0
	}
	return *c.TieEpsilon
}

// KRange resolves the Hill search window for a sample of size n.
// The upper bound never exceeds n/2, nor n-1 (X_(k+1) must exist).
func (c Config) KRange(n int) (int, int) {
	kMax := c.KMax
	if kMax == 0 {
		kMax = int(math.Floor(c.KMaxFraction * float64(n)))
	}
	if kMax > n/2 {
		kMax = n / 2
	}
	if kMax > n-1 {
		kMax = n - 1
	}
	return c.KMin, kMax
}

// AutoWindow returns the default smoothing width for a sample of size n: the odd
// integer nearest sqrt(n), at least 3.
func AutoWindow(n int) int {
	w := int(math.Round(math.Sqrt(float64(n))))
	if w < 3 {
		w = 3
	}
	if w%2 == 0 {
		w++
	}
	return w
}

// Window returns the smoothing width the AMSE selector uses for a sample of size n.
func (c Config) Window(n int) int {
	if c.SmoothingWindow > 0 {
		return c.SmoothingWindow
	}
	return AutoWindow(n)
}
