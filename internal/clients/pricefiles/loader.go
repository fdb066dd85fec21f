// Package pricefiles loads per-instrument return series from a directory of CSV files.
//
// Each file is named <TICKER>.csv and carries a date column plus one of:
//
//	return          daily returns as fractions
//	open, close     intraday returns (close-open)/open
//	close           close-to-close returns
package pricefiles

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/tailrisk/internal/modules/tailrisk"
	"github.com/aristath/tailrisk/pkg/formulas"
)

// ErrUnsupportedLayout is returned when a file has none of the recognised column sets.
var ErrUnsupportedLayout = errors.New("unsupported price file layout")

var dateLayouts = []string{"2006-01-02", time.RFC3339, "2006-01-02 15:04:05", "01/02/2006"}

// Loader reads return series from CSV files in one directory.
type Loader struct {
	dir string
	log zerolog.Logger
}

// NewLoader creates a loader rooted at dir.
func NewLoader(dir string, log zerolog.Logger) *Loader {
	return &Loader{
		dir: dir,
		log: log.With().Str("client", "pricefiles").Logger(),
	}
}

// List returns the instruments with a CSV file in the directory, sorted.
func (l *Loader) List() ([]string, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read price directory %s: %w", l.dir, err)
	}

	var instruments []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".csv") {
			continue
		}
		instruments = append(instruments, strings.TrimSuffix(e.Name(), filepath.Ext(e.Name())))
	}
	sort.Strings(instruments)
	return instruments, nil
}

// ModTimes returns the modification time of every instrument's CSV file.
func (l *Loader) ModTimes() (map[string]time.Time, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read price directory %s: %w", l.dir, err)
	}

	out := make(map[string]time.Time, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".csv") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s: %w", e.Name(), err)
		}
		out[strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))] = info.ModTime()
	}
	return out, nil
}

// Load reads the series for one instrument.
func (l *Loader) Load(instrument string) (tailrisk.ReturnSeries, error) {
	if instrument == "" || strings.ContainsAny(instrument, `/\`) || strings.Contains(instrument, "..") {
		return tailrisk.ReturnSeries{}, fmt.Errorf("invalid instrument name %q", instrument)
	}

	f, err := os.Open(filepath.Join(l.dir, instrument+".csv"))
	if err != nil {
		return tailrisk.ReturnSeries{}, fmt.Errorf("failed to open price file for %s: %w", instrument, err)
	}
	defer f.Close()

	series, err := Parse(instrument, f)
	if err != nil {
		return tailrisk.ReturnSeries{}, err
	}

	l.log.Debug().
		Str("instrument", instrument).
		Int("observations", series.Len()).
		Msg("Loaded return series")
	return series, nil
}

// LoadAll reads every file in the directory. Files that fail to parse are reported in
// the error map keyed by instrument and left out of the returned series.
func (l *Loader) LoadAll() ([]tailrisk.ReturnSeries, map[string]error, error) {
	instruments, err := l.List()
	if err != nil {
		return nil, nil, err
	}

	series := make([]tailrisk.ReturnSeries, 0, len(instruments))
	failed := make(map[string]error)
	for _, instrument := range instruments {
		s, err := l.Load(instrument)
		if err != nil {
			l.log.Warn().Err(err).Str("instrument", instrument).Msg("Skipping unreadable price file")
			failed[instrument] = err
			continue
		}
		series = append(series, s)
	}
	return series, failed, nil
}

type row struct {
	date   time.Time
	values []float64
}

// Parse reads one CSV document. Rows are ordered by date; numbers that fail to parse
// are errors, never skipped.
func Parse(instrument string, r io.Reader) (tailrisk.ReturnSeries, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return tailrisk.ReturnSeries{}, fmt.Errorf("failed to read header for %s: %w", instrument, err)
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}

	dateCol, ok := cols["date"]
	if !ok {
		return tailrisk.ReturnSeries{}, fmt.Errorf("%w: %s has no date column", ErrUnsupportedLayout, instrument)
	}

	var valueCols []int
	var layout string
	switch {
	case has(cols, "return"):
		valueCols, layout = []int{cols["return"]}, "return"
	case has(cols, "open") && has(cols, "close"):
		valueCols, layout = []int{cols["open"], cols["close"]}, "open_close"
	case has(cols, "close"):
		valueCols, layout = []int{cols["close"]}, "close"
	default:
		return tailrisk.ReturnSeries{}, fmt.Errorf("%w: %s needs return, open/close or close", ErrUnsupportedLayout, instrument)
	}

	var rows []row
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return tailrisk.ReturnSeries{}, fmt.Errorf("failed to read %s line %d: %w", instrument, line, err)
		}

		date, err := parseDate(record[dateCol])
		if err != nil {
			return tailrisk.ReturnSeries{}, fmt.Errorf("%s line %d: %w", instrument, line, err)
		}

		values := make([]float64, len(valueCols))
		for i, c := range valueCols {
			v, err := strconv.ParseFloat(strings.TrimSpace(record[c]), 64)
			if err != nil {
				return tailrisk.ReturnSeries{}, fmt.Errorf("%s line %d column %s: %w", instrument, line, header[c], err)
			}
			values[i] = v
		}
		rows = append(rows, row{date: date, values: values})
	}

	sort.SliceStable(rows, func(a, b int) bool { return rows[a].date.Before(rows[b].date) })

	return toSeries(instrument, layout, rows), nil
}

func toSeries(instrument, layout string, rows []row) tailrisk.ReturnSeries {
	column := func(i int) []float64 {
		out := make([]float64, len(rows))
		for j, r := range rows {
			out[j] = r.values[i]
		}
		return out
	}
	dates := make([]time.Time, len(rows))
	for i, r := range rows {
		dates[i] = r.date
	}

	switch layout {
	case "open_close":
		return tailrisk.NewReturnSeries(instrument, dates, formulas.IntradayReturns(column(0), column(1)))
	case "close":
		if len(rows) < 2 {
			return tailrisk.NewReturnSeries(instrument, nil, nil)
		}
		return tailrisk.NewReturnSeries(instrument, dates[1:], formulas.CalculateReturns(column(0)))
	default:
		return tailrisk.NewReturnSeries(instrument, dates, column(0))
	}
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", s)
}

func has(cols map[string]int, name string) bool {
	_, ok := cols[name]
	return ok
}
