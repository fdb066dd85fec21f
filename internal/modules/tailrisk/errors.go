package tailrisk

import (
	"errors"
	"fmt"
)

// Failure kinds. Every error returned by the pipeline wraps exactly one of these, so
// callers can branch with errors.Is.
var (
	ErrInsufficientData           = errors.New("insufficient data")
	ErrInvalidObservation         = errors.New("invalid observation")
	ErrDegenerateTail             = errors.New("degenerate tail")
	ErrUnstableTail               = errors.New("unstable tail")
	ErrDegenerateFit              = errors.New("degenerate fit")
	ErrUndefinedExpectedShortfall = errors.New("undefined expected shortfall")
	ErrInvalidConfig              = errors.New("invalid configuration")
	ErrAbandoned                  = errors.New("computation abandoned")
)

var kindNames = map[error]string{
	ErrInsufficientData:           "InsufficientData",
	ErrInvalidObservation:         "InvalidObservation",
	ErrDegenerateTail:             "DegenerateTail",
	ErrUnstableTail:               "UnstableTail",
	ErrDegenerateFit:              "DegenerateFit",
	ErrUndefinedExpectedShortfall: "UndefinedExpectedShortfall",
	ErrInvalidConfig:              "InvalidConfig",
	ErrAbandoned:                  "Abandoned",
}

// Stage names the pipeline step that detected a failure.
type Stage string

const (
	StageOrderStatistics    Stage = "order_statistics"
	StageHillCurve          Stage = "hill_curve"
	StageThresholdSelection Stage = "threshold_selection"
	StageTailFit            Stage = "tail_fit"
	StageRisk               Stage = "risk"
	StageBatch              Stage = "batch"
)

// StageError is a tagged pipeline failure carrying the instrument and the stage.
type StageError struct {
	Instrument string
	Stage      Stage
	Kind       error
	Detail     string
}

func (e *StageError) Error() string {
	msg := fmt.Sprintf("%s: %v", e.Stage, e.Kind)
	if e.Instrument != "" {
		msg = fmt.Sprintf("%s [%s]: %v", e.Stage, e.Instrument, e.Kind)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

func (e *StageError) Unwrap() error {
	return e.Kind
}

func newStageError(stage Stage, kind error, format string, args ...interface{}) *StageError {
	return &StageError{
		Stage:  stage,
		Kind:   kind,
		Detail: fmt.Sprintf(format, args...),
	}
}

// KindName returns the stable name of the failure kind wrapped by err
// ("InsufficientData", "UnstableTail", ...), or "Unknown".
func KindName(err error) string {
	if err == nil {
		return ""
	}
	for kind, name := range kindNames {
		if errors.Is(err, kind) {
			return name
		}
	}
	return "Unknown"
}

// AsStageError extracts the StageError from err, if any.
func AsStageError(err error) (*StageError, bool) {
	var se *StageError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// tagInstrument stamps the instrument identifier on a stage error.
// A copy is returned so errors shared between estimates are never mutated.
func tagInstrument(err error, instrument string) error {
	se, ok := AsStageError(err)
	if !ok || se.Instrument != "" {
		return err
	}
	tagged := *se
	tagged.Instrument = instrument
	return &tagged
}

// Abandoned converts a context error into an Abandoned stage error.
func Abandoned(stage Stage, instrument string, cause error) error {
	return &StageError{
		Instrument: instrument,
		Stage:      stage,
		Kind:       ErrAbandoned,
		Detail:     cause.Error(),
	}
}

// Unreadable records input that never became a ReturnSeries, such as a price file that
// failed to parse.
func Unreadable(instrument string, cause error) error {
	return &StageError{
		Instrument: instrument,
		Stage:      StageOrderStatistics,
		Kind:       ErrInvalidObservation,
		Detail:     cause.Error(),
	}
}
