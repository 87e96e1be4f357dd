package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/inair/reportes/internal/store"
	"github.com/inair/reportes/internal/validation"
)

func TestWriteProblem_BodyFormat(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/load_draft/INAIR-0001", nil)

	WriteProblem(w, r, http.StatusNotFound, "Resource not found")

	if w.Code != http.StatusNotFound {
		t.Errorf("status code = %d, want %d", w.Code, http.StatusNotFound)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/problem+json" {
		t.Errorf("Content-Type = %v, want application/problem+json", ct)
	}

	var p Problem
	if err := json.NewDecoder(w.Body).Decode(&p); err != nil {
		t.Fatalf("failed to decode problem: %v", err)
	}
	if p.Type != problemBase+"not-found" {
		t.Errorf("type = %q", p.Type)
	}
	if p.Title != "Not Found" || p.Status != 404 || p.Detail != "Resource not found" {
		t.Errorf("Unexpected problem %+v", p)
	}
	if p.Instance != "/api/load_draft/INAIR-0001" {
		t.Errorf("instance = %q", p.Instance)
	}
}

func TestWriteProblem_UnknownStatus(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/x", nil)

	WriteProblem(w, r, http.StatusTeapot, "short and stout")

	var p Problem
	json.NewDecoder(w.Body).Decode(&p)
	if p.Type != problemBase+"unknown" || p.Title != http.StatusText(http.StatusTeapot) {
		t.Errorf("Unexpected fallback problem %+v", p)
	}
}

func TestWriteProblemWithErrors(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/api/autosave_draft", nil)
	errs := []validation.ValidationError{
		{Field: "folio", Message: "is required"},
		{Field: "form_data", Message: "is required"},
	}

	WriteProblemWithErrors(w, r, "Draft contains invalid fields", errs)

	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("status code = %d, want 422", w.Code)
	}
	var p ProblemWithErrors
	if err := json.NewDecoder(w.Body).Decode(&p); err != nil {
		t.Fatalf("failed to decode problem: %v", err)
	}
	if len(p.Errors) != 2 || p.Errors[0].Field != "folio" {
		t.Errorf("errors = %+v", p.Errors)
	}
}

func TestMapStoreError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"not found", store.ErrNotFound, http.StatusNotFound},
		{"wrapped not found", fmt.Errorf("get draft: %w", store.ErrNotFound), http.StatusNotFound},
		{"invalid prefix", store.ErrInvalidPrefix, http.StatusBadRequest},
		{"empty folio", store.ErrEmptyFolio, http.StatusBadRequest},
		{"duplicate serial", store.ErrDuplicateSerial, http.StatusConflict},
		{"other", errors.New("secret internals"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodGet, "/api/drafts", nil)

			MapStoreError(w, r, tt.err)

			if w.Code != tt.status {
				t.Errorf("status = %d, want %d", w.Code, tt.status)
			}
			var p Problem
			json.NewDecoder(w.Body).Decode(&p)
			if p.Detail == "secret internals" {
				t.Error("Internal error detail leaked")
			}
		})
	}
}
