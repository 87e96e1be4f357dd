package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/inair/reportes/internal/validation"
)

// folioContextKey is the context key for the validated folio path parameter.
type folioContextKey struct{}

// WithFolio returns a new context carrying the folio.
func WithFolio(ctx context.Context, folio string) context.Context {
	return context.WithValue(ctx, folioContextKey{}, folio)
}

// FolioFromContext returns the folio set by FolioMiddleware.
func FolioFromContext(ctx context.Context) (string, bool) {
	folio, ok := ctx.Value(folioContextKey{}).(string)
	return folio, ok && folio != ""
}

// FolioMiddleware validates the {folio} URL parameter and stores it in the
// request context. Invalid folios are rejected with 422.
func FolioMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		folio := chi.URLParam(r, "folio")
		if err := validation.ValidateFolio("folio", folio); err != nil {
			WriteProblemWithErrors(w, r, "Invalid folio", []validation.ValidationError{*err})
			return
		}
		next.ServeHTTP(w, r.WithContext(WithFolio(r.Context(), folio)))
	})
}
