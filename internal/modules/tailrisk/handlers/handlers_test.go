package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/aristath/tailrisk/internal/modules/comparison"
	"github.com/aristath/tailrisk/internal/modules/tailrisk"
)

func normalReturns(n int, seed uint64) []float64 {
	r := rand.New(rand.NewPCG(seed, seed*31+7))
	out := make([]float64, n)
	for i := range out {
		u := r.Float64()
		for u == 0 {
			u = r.Float64()
		}
		out[i] = 0.01 * distuv.UnitNormal.Quantile(u)
	}
	return out
}

type mapLoader map[string]tailrisk.ReturnSeries

func (m mapLoader) List() ([]string, error) {
	var out []string
	for k := range m {
		out = append(out, k)
	}
	return out, nil
}

func (m mapLoader) Load(instrument string) (tailrisk.ReturnSeries, error) {
	s, ok := m[instrument]
	if !ok {
		return tailrisk.ReturnSeries{}, fmt.Errorf("failed to open price file for %s: %w", instrument, fs.ErrNotExist)
	}
	return s, nil
}

type fakeSummary struct {
	store *comparison.Store
	coord *comparison.Coordinator
	err   error
	runs  int
}

func (f *fakeSummary) Run() error {
	f.runs++
	if f.err != nil {
		return f.err
	}
	set, err := f.coord.Run(context.Background(), comparison.Request{Series: []tailrisk.ReturnSeries{
		seriesOf("AAA", normalReturns(400, 1)),
		seriesOf("SHORT", normalReturns(20, 2)),
	}})
	if err != nil {
		return err
	}
	f.store.Save(set)
	return nil
}

func seriesOf(id string, returns []float64) tailrisk.ReturnSeries {
	ts := make([]time.Time, len(returns))
	for i := range ts {
		ts[i] = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i)
	}
	return tailrisk.NewReturnSeries(id, ts, returns)
}

type fixture struct {
	router  chi.Router
	store   *comparison.Store
	summary *fakeSummary
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	logger := zerolog.New(nil).Level(zerolog.Disabled)

	engine, err := tailrisk.NewEngine(tailrisk.DefaultConfig(), logger)
	require.NoError(t, err)
	coord := comparison.NewCoordinator(engine, logger, comparison.WithWorkers(2))
	store := comparison.NewStore()
	summary := &fakeSummary{store: store, coord: coord}
	loader := mapLoader{
		"MSFT": seriesOf("MSFT", normalReturns(500, 3)),
		"TINY": seriesOf("TINY", normalReturns(30, 4)),
	}

	handler := NewHandler(engine, nil, coord, loader, store, summary, logger)
	router := chi.NewRouter()
	router.Route("/api", func(r chi.Router) {
		handler.RegisterRoutes(r)
	})
	return fixture{router: router, store: store, summary: summary}
}

func (f fixture) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestHandleEstimate(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/api/tailrisk/estimate", map[string]interface{}{
		"series":            map[string]interface{}{"instrument": "AAPL", "returns": normalReturns(800, 5)},
		"confidence_levels": []float64{0.99},
		"include_curve":     true,
	})

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	data := body["data"].(map[string]interface{})
	fit := data["fit"].(map[string]interface{})
	assert.Equal(t, "AAPL", fit["instrument"])
	assert.Equal(t, float64(800), fit["observations"])

	estimates := data["estimates"].([]interface{})
	require.Len(t, estimates, 1)
	est := estimates[0].(map[string]interface{})
	assert.Equal(t, 0.99, est["confidence_level"])
	assert.Greater(t, est["es"].(float64), est["var"].(float64))
	require.NotNil(t, est["historical_var"])
	assert.Greater(t, est["historical_var"].(float64), 0.0)
	assert.GreaterOrEqual(t, est["historical_es"].(float64), est["historical_var"].(float64))
	assert.NotNil(t, data["curve"])
	assert.Contains(t, body, "metadata")
}

func TestHandleEstimate_DatedObservations(t *testing.T) {
	f := newFixture(t)
	returns := normalReturns(300, 6)
	obs := make([]map[string]interface{}, len(returns))
	for i, r := range returns {
		obs[i] = map[string]interface{}{
			"date":   time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i).Format("2006-01-02"),
			"return": r,
		}
	}

	w := f.do(t, http.MethodPost, "/api/tailrisk/estimate", map[string]interface{}{
		"series": map[string]interface{}{"instrument": "DATED", "observations": obs},
	})

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	data := decode(t, w)["data"].(map[string]interface{})
	assert.Len(t, data["estimates"], 2, "configured levels apply when none are requested")
}

func TestHandleEstimate_InsufficientDataIs422(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/api/tailrisk/estimate", map[string]interface{}{
		"series": map[string]interface{}{"instrument": "SHORT", "returns": normalReturns(50, 7)},
	})

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	failure := decode(t, w)["error"].(map[string]interface{})
	assert.Equal(t, "InsufficientData", failure["kind"])
	assert.Equal(t, "order_statistics", failure["stage"])
	assert.Equal(t, "SHORT", failure["instrument"])
}

func TestHandleEstimate_ValidationErrors(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name string
		body interface{}
		code string
	}{
		{"missing instrument", map[string]interface{}{"series": map[string]interface{}{"returns": []float64{0.1}}}, "ERR_REQUIRED"},
		{"no data", map[string]interface{}{"series": map[string]interface{}{"instrument": "X"}}, "ERR_REQUIRED_WITHOUT"},
		{"bad level", map[string]interface{}{
			"series":            map[string]interface{}{"instrument": "X", "returns": []float64{0.1}},
			"confidence_levels": []float64{1.5},
		}, "ERR_LT"},
		{"malformed json", "{", "ERR_UNKNOWN"},
		{"unknown field", map[string]interface{}{"bogus": 1}, "ERR_UNKNOWN"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.do(t, http.MethodPost, "/api/tailrisk/estimate", tt.body)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			errs := decode(t, w)["errors"].([]interface{})
			require.NotEmpty(t, errs)
			assert.Equal(t, tt.code, errs[0].(map[string]interface{})["code"])
		})
	}
}

func TestHandleEstimate_BadDate(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/api/tailrisk/estimate", map[string]interface{}{
		"series": map[string]interface{}{
			"instrument":   "X",
			"observations": []map[string]interface{}{{"date": "yesterday", "return": 0.01}},
		},
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "yesterday")
}

func TestHandleCompare(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/api/tailrisk/compare", map[string]interface{}{
		"target": "AAPL",
		"series": []map[string]interface{}{
			{"instrument": "AAPL", "returns": normalReturns(600, 8)},
		},
		"instruments": []string{"MSFT", "TINY"},
	})

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	data := decode(t, w)["data"].(map[string]interface{})
	assert.NotEmpty(t, data["run_id"])
	assert.Equal(t, 0.99, data["rank_level"])

	instruments := data["instruments"].([]interface{})
	require.Len(t, instruments, 3)
	byID := map[string]map[string]interface{}{}
	for _, raw := range instruments {
		o := raw.(map[string]interface{})
		byID[o["instrument"].(string)] = o
	}
	assert.Equal(t, "target", byID["AAPL"]["role"])
	assert.Equal(t, "OK", byID["AAPL"]["status"])
	assert.Equal(t, "OK", byID["MSFT"]["status"])
	assert.Equal(t, "InsufficientData", byID["TINY"]["status"])
	assert.Equal(t, float64(3), byID["TINY"]["rank"].(map[string]interface{})["var"])
}

func TestHandleCompare_Errors(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name   string
		body   interface{}
		status int
	}{
		{"nothing to compare", map[string]interface{}{"target": "A"}, http.StatusBadRequest},
		{"unknown stored instrument", map[string]interface{}{"instruments": []string{"NOPE"}}, http.StatusNotFound},
		{"target outside batch", map[string]interface{}{"target": "ZZZ", "instruments": []string{"MSFT"}}, http.StatusBadRequest},
		{"timeout out of range", map[string]interface{}{"instruments": []string{"MSFT"}, "timeout_seconds": 9999}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.do(t, http.MethodPost, "/api/tailrisk/compare", tt.body)

			assert.Equal(t, tt.status, w.Code, w.Body.String())
		})
	}
}

func TestHandleGetInstrument(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodGet, "/api/tailrisk/instruments/MSFT?confidence=0.95,0.975&curve=true", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	data := decode(t, w)["data"].(map[string]interface{})
	assert.Len(t, data["estimates"], 2)
	assert.NotNil(t, data["smoothed"])

	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/api/tailrisk/instruments/NOPE", nil).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/api/tailrisk/instruments/MSFT?confidence=2", nil).Code)
	assert.Equal(t, http.StatusUnprocessableEntity, f.do(t, http.MethodGet, "/api/tailrisk/instruments/TINY", nil).Code)
}

func TestHandleListInstruments(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodGet, "/api/tailrisk/instruments", nil)

	require.Equal(t, http.StatusOK, w.Code)
	data := decode(t, w)["data"].(map[string]interface{})
	assert.ElementsMatch(t, []interface{}{"MSFT", "TINY"}, data["instruments"])
}

func TestSummaryEndpoints(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/api/tailrisk/summary", nil).Code)

	w := f.do(t, http.MethodPost, "/api/tailrisk/summary/run", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 1, f.summary.runs)
	rows := decode(t, w)["data"].(map[string]interface{})["rows"].([]interface{})
	assert.Len(t, rows, 2)

	w = f.do(t, http.MethodGet, "/api/tailrisk/summary?format=csv", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	lines := strings.Split(strings.TrimSpace(w.Body.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Ticker,Average_Return,Variance,VaR,ES,Average_Return_Rank,VaR_Rank,ES_Rank,Status", lines[0])
	assert.True(t, strings.HasPrefix(lines[2], "SHORT,"))
	assert.True(t, strings.HasSuffix(lines[2], ",InsufficientData"))
}

func TestHandleRunSummary_Failure(t *testing.T) {
	f := newFixture(t)
	f.summary.err = errors.New("disk full")

	w := f.do(t, http.MethodPost, "/api/tailrisk/summary/run", nil)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "disk full")
}
