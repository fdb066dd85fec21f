package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// handleHealth handles health check requests. The cache database must answer a quick
// integrity check for the service to report healthy.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":  "healthy",
		"version": "1.0.0",
		"service": "tailrisk",
	}
	status := http.StatusOK

	if s.cacheDB != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.cacheDB.QuickCheck(ctx); err != nil {
			s.log.Warn().Err(err).Msg("Cache database health check failed")
			response["status"] = "degraded"
			response["database"] = err.Error()
			status = http.StatusServiceUnavailable
		}
	}

	writeJSON(w, status, response, s.log)
}

// writeJSON writes a JSON response
func writeJSON(w http.ResponseWriter, status int, data interface{}, log zerolog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
