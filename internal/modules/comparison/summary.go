package comparison

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"sync"
)

var summaryHeader = []string{
	"Ticker", "Average_Return", "Variance", "VaR", "ES",
	"Average_Return_Rank", "VaR_Rank", "ES_Rank", "Status",
}

// SummaryRow is one line of the comparison summary. Missing values are nil.
type SummaryRow struct {
	Ticker        string   `json:"ticker"`
	AverageReturn *float64 `json:"average_return"`
	Variance      *float64 `json:"variance"`
	VaR           *float64 `json:"var"`
	ES            *float64 `json:"es"`
	Rank          Rank     `json:"rank"`
	Status        string   `json:"status"`
	Error         string   `json:"error,omitempty"`
}

// SummaryRows flattens a set into rows at its rank level, ordered by ticker.
func SummaryRows(set *ComparableSet) []SummaryRow {
	rows := make([]SummaryRow, 0, set.Len())
	for _, o := range set.Outcomes() {
		row := SummaryRow{Ticker: o.Instrument, Status: o.Kind()}
		if o.StatsValid {
			row.AverageReturn = floatPtr(o.MeanReturn)
			row.Variance = floatPtr(o.Variance)
		}
		if v, ok := measureAt(o, set.RankLevel, varOf); ok {
			row.VaR = floatPtr(v)
		}
		if v, ok := measureAt(o, set.RankLevel, esOf); ok {
			row.ES = floatPtr(v)
		}
		if o.Err != nil {
			row.Error = o.Err.Error()
		} else if est, ok := o.Result.EstimateAt(set.RankLevel); ok && !est.ES.Defined() {
			row.Error = est.ES.Err.Error()
		}
		row.Rank, _ = set.Rank(o.Instrument)
		rows = append(rows, row)
	}
	return rows
}

// WriteSummaryCSV writes the summary with the header
// Ticker,Average_Return,Variance,VaR,ES,Average_Return_Rank,VaR_Rank,ES_Rank,Status.
func WriteSummaryCSV(w io.Writer, set *ComparableSet) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(summaryHeader); err != nil {
		return fmt.Errorf("failed to write summary header: %w", err)
	}

	for _, row := range SummaryRows(set) {
		record := []string{
			row.Ticker,
			formatOptional(row.AverageReturn),
			formatOptional(row.Variance),
			formatOptional(row.VaR),
			formatOptional(row.ES),
			strconv.Itoa(row.Rank.MeanReturn),
			strconv.Itoa(row.Rank.VaR),
			strconv.Itoa(row.Rank.ES),
			row.Status,
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write summary row for %s: %w", row.Ticker, err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("failed to flush summary: %w", err)
	}
	return nil
}

// Store keeps the most recent ComparableSet for readers such as the HTTP layer.
type Store struct {
	mu     sync.RWMutex
	latest *ComparableSet
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{}
}

// Save replaces the stored set.
func (s *Store) Save(set *ComparableSet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest = set
}

// Latest returns the stored set, or nil before the first Save.
func (s *Store) Latest() *ComparableSet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest
}

func formatOptional(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'g', -1, 64)
}

func floatPtr(v float64) *float64 {
	return &v
}
