package comparison

import (
	"sort"

	"github.com/aristath/tailrisk/internal/modules/tailrisk"
)

// rankOutcomes assigns ordinal ranks per column. Mean return ranks ascending, VaR and ES
// rank descending (the riskiest instrument is 1). Instruments without a value rank last;
// ties are broken by instrument identifier.
func rankOutcomes(outcomes []Outcome, level float64) map[string]Rank {
	ranks := make(map[string]Rank, len(outcomes))

	mean := rankColumn(outcomes, true, func(o Outcome) (float64, bool) {
		return o.MeanReturn, o.StatsValid
	})
	vars := rankColumn(outcomes, false, func(o Outcome) (float64, bool) {
		return measureAt(o, level, varOf)
	})
	ess := rankColumn(outcomes, false, func(o Outcome) (float64, bool) {
		return measureAt(o, level, esOf)
	})

	for _, o := range outcomes {
		ranks[o.Instrument] = Rank{
			MeanReturn: mean[o.Instrument],
			VaR:        vars[o.Instrument],
			ES:         ess[o.Instrument],
		}
	}
	return ranks
}

func rankColumn(outcomes []Outcome, ascending bool, value func(Outcome) (float64, bool)) map[string]int {
	type entry struct {
		id    string
		v     float64
		valid bool
	}
	entries := make([]entry, len(outcomes))
	for i, o := range outcomes {
		v, ok := value(o)
		entries[i] = entry{id: o.Instrument, v: v, valid: ok}
	}

	sort.SliceStable(entries, func(a, b int) bool {
		ea, eb := entries[a], entries[b]
		if ea.valid != eb.valid {
			return ea.valid
		}
		if ea.valid && ea.v != eb.v {
			if ascending {
				return ea.v < eb.v
			}
			return ea.v > eb.v
		}
		return ea.id < eb.id
	})

	out := make(map[string]int, len(entries))
	for i, e := range entries {
		out[e.id] = i + 1
	}
	return out
}

func measureAt(o Outcome, level float64, pick func(tailrisk.RiskEstimate) tailrisk.Measure) (float64, bool) {
	if !o.OK() {
		return 0, false
	}
	est, ok := o.Result.EstimateAt(level)
	if !ok {
		return 0, false
	}
	m := pick(est)
	return m.Value, m.Defined()
}

func varOf(e tailrisk.RiskEstimate) tailrisk.Measure { return e.VaR }

func esOf(e tailrisk.RiskEstimate) tailrisk.Measure { return e.ES }
