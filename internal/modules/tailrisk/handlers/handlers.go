// Package handlers provides HTTP handlers for tail-risk estimation.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/tailrisk/internal/modules/comparison"
	"github.com/aristath/tailrisk/internal/modules/tailrisk"
)

// SeriesLoader reads stored return series by instrument.
type SeriesLoader interface {
	List() ([]string, error)
	Load(instrument string) (tailrisk.ReturnSeries, error)
}

// SummaryRunner recomputes the stored summary on demand.
type SummaryRunner interface {
	Run() error
}

// Handler handles tail-risk HTTP requests
type Handler struct {
	engine      *tailrisk.Engine
	fitter      tailrisk.Fitter
	coordinator *comparison.Coordinator
	loader      SeriesLoader
	store       *comparison.Store
	summary     SummaryRunner
	log         zerolog.Logger
}

// NewHandler creates a new tail-risk handler. fitter may wrap engine (e.g. with a
// cache); loader and summary are optional.
func NewHandler(
	engine *tailrisk.Engine,
	fitter tailrisk.Fitter,
	coordinator *comparison.Coordinator,
	loader SeriesLoader,
	store *comparison.Store,
	summary SummaryRunner,
	log zerolog.Logger,
) *Handler {
	if fitter == nil {
		fitter = engine
	}
	return &Handler{
		engine:      engine,
		fitter:      fitter,
		coordinator: coordinator,
		loader:      loader,
		store:       store,
		summary:     summary,
		log:         log.With().Str("handler", "tailrisk").Logger(),
	}
}

// HandleEstimate handles POST /api/tailrisk/estimate
func (h *Handler) HandleEstimate(w http.ResponseWriter, r *http.Request) {
	var req EstimateRequest
	if errs := readAndValidateRequest(r, &req); errs != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]interface{}{"errors": errs})
		return
	}

	series, err := req.Series.toSeries()
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.run(r.Context(), series, req.ConfidenceLevels)
	if err != nil {
		h.writeFailure(w, err)
		return
	}

	h.writeData(w, http.StatusOK, toResultDTO(result, req.IncludeCurve))
}

// HandleListInstruments handles GET /api/tailrisk/instruments
func (h *Handler) HandleListInstruments(w http.ResponseWriter, r *http.Request) {
	if h.loader == nil {
		h.writeError(w, http.StatusNotFound, "no price file directory configured")
		return
	}

	instruments, err := h.loader.List()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list instruments")
		h.writeError(w, http.StatusInternalServerError, "Failed to list instruments")
		return
	}
	if instruments == nil {
		instruments = []string{}
	}

	h.writeData(w, http.StatusOK, map[string]interface{}{"instruments": instruments})
}

// HandleGetInstrument handles GET /api/tailrisk/instruments/{instrument}
// Query: confidence=0.95,0.99 and curve=true.
func (h *Handler) HandleGetInstrument(w http.ResponseWriter, r *http.Request, instrument string) {
	if h.loader == nil {
		h.writeError(w, http.StatusNotFound, "no price file directory configured")
		return
	}

	levels, err := parseLevels(r.URL.Query().Get("confidence"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	series, err := h.loader.Load(instrument)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			h.writeError(w, http.StatusNotFound, fmt.Sprintf("instrument %s not found", instrument))
			return
		}
		h.log.Error().Err(err).Str("instrument", instrument).Msg("Failed to load series")
		h.writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	result, err := h.run(r.Context(), series, levels)
	if err != nil {
		h.writeFailure(w, err)
		return
	}

	h.writeData(w, http.StatusOK, toResultDTO(result, r.URL.Query().Get("curve") == "true"))
}

// HandleCompare handles POST /api/tailrisk/compare
func (h *Handler) HandleCompare(w http.ResponseWriter, r *http.Request) {
	var req CompareRequest
	if errs := readAndValidateRequest(r, &req); errs != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]interface{}{"errors": errs})
		return
	}

	series, status, err := h.collectSeries(req)
	if err != nil {
		h.writeError(w, status, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), time.Duration(req.TimeoutSeconds)*time.Second)
	defer cancel()

	set, err := h.coordinator.Run(ctx, comparison.Request{
		Target:           req.Target,
		Series:           series,
		ConfidenceLevels: req.ConfidenceLevels,
		RankLevel:        req.RankLevel,
	})
	if err != nil {
		h.writeFailure(w, err)
		return
	}

	h.writeData(w, http.StatusOK, toComparableSetDTO(set))
}

// HandleGetSummary handles GET /api/tailrisk/summary (format=csv for the CSV layout)
func (h *Handler) HandleGetSummary(w http.ResponseWriter, r *http.Request) {
	set := h.store.Latest()
	if set == nil {
		h.writeError(w, http.StatusNotFound, "no summary has been computed yet")
		return
	}

	if r.URL.Query().Get("format") == "csv" {
		w.Header().Set("Content-Type", "text/csv")
		w.WriteHeader(http.StatusOK)
		if err := comparison.WriteSummaryCSV(w, set); err != nil {
			h.log.Error().Err(err).Msg("Failed to write summary CSV")
		}
		return
	}

	h.writeData(w, http.StatusOK, map[string]interface{}{
		"run_id":      set.RunID,
		"rank_level":  set.RankLevel,
		"finished_at": set.FinishedAt,
		"rows":        comparison.SummaryRows(set),
	})
}

// HandleRunSummary handles POST /api/tailrisk/summary/run
func (h *Handler) HandleRunSummary(w http.ResponseWriter, r *http.Request) {
	if h.summary == nil {
		h.writeError(w, http.StatusNotFound, "summary job is not configured")
		return
	}

	if err := h.summary.Run(); err != nil {
		h.log.Error().Err(err).Msg("Summary run failed")
		h.writeError(w, http.StatusInternalServerError, "Summary run failed: "+err.Error())
		return
	}

	h.HandleGetSummary(w, r)
}

func (h *Handler) run(ctx context.Context, series tailrisk.ReturnSeries, levels []float64) (*tailrisk.Result, error) {
	fit, err := h.fitter.Fit(ctx, series)
	if err != nil {
		return nil, err
	}
	return &tailrisk.Result{Fit: fit, Estimates: h.engine.EstimateSeries(fit, series, levels)}, nil
}

func (h *Handler) collectSeries(req CompareRequest) ([]tailrisk.ReturnSeries, int, error) {
	if len(req.Series) == 0 && len(req.Instruments) == 0 {
		return nil, http.StatusBadRequest, errors.New("either series or instruments is required")
	}

	series := make([]tailrisk.ReturnSeries, 0, len(req.Series)+len(req.Instruments))
	for _, dto := range req.Series {
		s, err := dto.toSeries()
		if err != nil {
			return nil, http.StatusBadRequest, err
		}
		series = append(series, s)
	}

	if len(req.Instruments) > 0 && h.loader == nil {
		return nil, http.StatusNotFound, errors.New("no price file directory configured")
	}
	for _, instrument := range req.Instruments {
		s, err := h.loader.Load(instrument)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, http.StatusNotFound, fmt.Errorf("instrument %s not found", instrument)
			}
			return nil, http.StatusUnprocessableEntity, err
		}
		series = append(series, s)
	}
	return series, http.StatusOK, nil
}

func parseLevels(raw string) ([]float64, error) {
	if raw == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	levels := make([]float64, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil || !(v > 0 && v < 1) {
			return nil, fmt.Errorf("confidence level %q must be a number in (0, 1)", p)
		}
		levels = append(levels, v)
	}
	return levels, nil
}

// writeFailure maps pipeline errors to HTTP statuses: bad configuration or requests are
// 400, pipeline failures for the data are 422.
func (h *Handler) writeFailure(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, tailrisk.ErrInvalidConfig), errors.Is(err, comparison.ErrInvalidRequest):
		h.writeError(w, http.StatusBadRequest, err.Error())
	case tailrisk.KindName(err) != "Unknown":
		h.log.Info().Err(err).Str("kind", tailrisk.KindName(err)).Msg("Estimation failed")
		h.writeJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{"error": toFailureDTO(err)})
	default:
		h.log.Error().Err(err).Msg("Unexpected estimation error")
		h.writeError(w, http.StatusInternalServerError, "Internal error")
	}
}

func (h *Handler) writeData(w http.ResponseWriter, status int, data interface{}) {
	h.writeJSON(w, status, map[string]interface{}{
		"data": data,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]interface{}{
		"error": map[string]string{"message": message},
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
