package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all tail-risk routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/tailrisk", func(r chi.Router) {
		r.Post("/estimate", h.HandleEstimate)
		r.Post("/compare", h.HandleCompare)

		r.Get("/instruments", h.HandleListInstruments)
		r.Get("/instruments/{instrument}", func(w http.ResponseWriter, r *http.Request) {
			instrument := chi.URLParam(r, "instrument")
			h.HandleGetInstrument(w, r, instrument)
		})

		r.Route("/summary", func(r chi.Router) {
			r.Get("/", h.HandleGetSummary)
			r.Post("/run", h.HandleRunSummary)
		})
	})
}
