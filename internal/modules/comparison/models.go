package comparison

import (
	"sort"
	"time"

	"github.com/aristath/tailrisk/internal/modules/tailrisk"
)

// Role tells whether an instrument was the subject of a batch or a peer it is compared to.
type Role string

const (
	RoleTarget     Role = "target"
	RoleComparison Role = "comparison"
)

// Outcome is the per-instrument result of a batch: either a fitted result or the failure
// that stopped the pipeline.
type Outcome struct {
	Instrument string
	Role       Role
	Result     *tailrisk.Result
	Err        error
	Duration   time.Duration

	// Return statistics computed straight from the series, available even when the fit fails.
	MeanReturn float64
	Variance   float64
	StatsValid bool
}

// OK reports whether the pipeline produced a result.
func (o Outcome) OK() bool {
	return o.Err == nil && o.Result != nil
}

// Kind returns the failure kind name, or "OK".
func (o Outcome) Kind() string {
	if o.OK() {
		return "OK"
	}
	return tailrisk.KindName(o.Err)
}

// Rank is an instrument's ordinal position (1-based) in each comparison column.
type Rank struct {
	MeanReturn int `json:"mean_return"`
	VaR        int `json:"var"`
	ES         int `json:"es"`
}

// ComparableSet maps instrument identifiers to outcomes for one batch. It is built once by
// the Coordinator and is read-only afterwards.
type ComparableSet struct {
	RunID      string
	Target     string
	RankLevel  float64
	StartedAt  time.Time
	FinishedAt time.Time

	outcomes    map[string]Outcome
	ranks       map[string]Rank
	instruments []string
}

func newComparableSet(runID, target string, rankLevel float64, outcomes []Outcome) *ComparableSet {
	set := &ComparableSet{
		RunID:       runID,
		Target:      target,
		RankLevel:   rankLevel,
		outcomes:    make(map[string]Outcome, len(outcomes)),
		instruments: make([]string, 0, len(outcomes)),
	}
	for _, o := range outcomes {
		set.outcomes[o.Instrument] = o
		set.instruments = append(set.instruments, o.Instrument)
	}
	sort.Strings(set.instruments)
	set.ranks = rankOutcomes(set.ordered(), rankLevel)
	return set
}

// Len returns the number of instruments in the set.
func (s *ComparableSet) Len() int {
	return len(s.instruments)
}

// Instruments returns the instrument identifiers in ascending order.
func (s *ComparableSet) Instruments() []string {
	return append([]string(nil), s.instruments...)
}

// Get returns the outcome recorded for an instrument.
func (s *ComparableSet) Get(instrument string) (Outcome, bool) {
	o, ok := s.outcomes[instrument]
	return o, ok
}

// Rank returns the comparison ranks of an instrument.
func (s *ComparableSet) Rank(instrument string) (Rank, bool) {
	r, ok := s.ranks[instrument]
	return r, ok
}

// Successes returns the outcomes that produced a result, ordered by instrument.
func (s *ComparableSet) Successes() []Outcome {
	var out []Outcome
	for _, o := range s.ordered() {
		if o.OK() {
			out = append(out, o)
		}
	}
	return out
}

// Failures returns the outcomes that failed, ordered by instrument.
func (s *ComparableSet) Failures() []Outcome {
	var out []Outcome
	for _, o := range s.ordered() {
		if !o.OK() {
			out = append(out, o)
		}
	}
	return out
}

// Outcomes returns every outcome ordered by instrument.
func (s *ComparableSet) Outcomes() []Outcome {
	return s.ordered()
}

func (s *ComparableSet) ordered() []Outcome {
	out := make([]Outcome, 0, len(s.instruments))
	for _, id := range s.instruments {
		out = append(out, s.outcomes[id])
	}
	return out
}
