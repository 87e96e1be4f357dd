package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter creates a new router with all routes configured
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(LoggingMiddleware)
	r.Use(RecoveryMiddleware)
	r.Use(MaxBodyMiddleware(DefaultMaxBodyBytes))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.Health)

		r.Get("/clientes", h.ListClients)
		r.Get("/clientes/{id}/equipos", h.ClientEquipment)

		r.Post("/autosave_draft", h.AutosaveDraft)
		r.With(FolioMiddleware).Get("/load_draft/{folio}", h.LoadDraft)
		r.Post("/nuevo_folio", h.NewFolio)

		r.Get("/drafts", h.ListDrafts)
		r.Route("/drafts/{folio}", func(r chi.Router) {
			r.Use(FolioMiddleware)
			r.Delete("/", h.DeleteDraft)
			r.Post("/sent", h.MarkSent)
		})
	})

	return r
}
