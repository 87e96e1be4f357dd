package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/inair/reportes/internal/store"
	"github.com/inair/reportes/internal/types"
	"github.com/inair/reportes/internal/validation"
)

// Handler implements the API handlers
type Handler struct {
	store       store.Store
	folioPrefix string
	version     string
}

// NewHandler creates a new Handler backed by the given store.
// folioPrefix is used by NewFolio when the request does not name one.
func NewHandler(s store.Store, folioPrefix, version string) *Handler {
	return &Handler{
		store:       s,
		folioPrefix: folioPrefix,
		version:     version,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response",
			"component", "api",
			"error", err,
		)
	}
}

// Health returns the health status
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.GetStats(r.Context())
	if err != nil {
		slog.Error("health check failed",
			"component", "api",
			"action", "health",
			"error", err,
		)
		WriteProblem(w, r, http.StatusServiceUnavailable, "Store unavailable")
		return
	}

	writeJSON(w, http.StatusOK, types.HealthResponse{
		Status:      "healthy",
		Version:     h.version,
		DraftCount:  stats.DraftCount,
		SentCount:   stats.SentCount,
		ClientCount: stats.ClientCount,
	})
}

// ListClients handles GET /api/clientes
func (h *Handler) ListClients(w http.ResponseWriter, r *http.Request) {
	clients, err := h.store.ListClients(r.Context())
	if err != nil {
		slog.Error("list clients failed",
			"component", "api",
			"action", "list_clients",
			"error", err,
		)
		MapStoreError(w, r, err)
		return
	}
	if clients == nil {
		clients = []types.ClientSummary{}
	}
	writeJSON(w, http.StatusOK, clients)
}

// ClientEquipment handles GET /api/clientes/{id}/equipos
func (h *Handler) ClientEquipment(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		WriteProblem(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid client id %q", raw))
		return
	}

	resp, err := h.store.GetClientEquipment(r.Context(), id)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			slog.Error("client equipment lookup failed",
				"component", "api",
				"action", "client_equipment",
				"client_id", id,
				"error", err,
			)
		}
		MapStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// AutosaveDraft handles POST /api/autosave_draft. Saves are last-write-wins.
func (h *Handler) AutosaveDraft(w http.ResponseWriter, r *http.Request) {
	var req types.AutosaveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			WriteProblem(w, r, http.StatusRequestEntityTooLarge, "Draft exceeds the maximum request size")
			return
		}
		WriteProblem(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid JSON: %s", err.Error()))
		return
	}

	if errs := validation.ValidateAutosaveRequest(req); len(errs) > 0 {
		WriteProblemWithErrors(w, r, "Draft contains invalid fields", errs)
		return
	}

	draft, err := h.store.SaveDraft(r.Context(), req)
	if err != nil {
		slog.Error("draft save failed",
			"component", "api",
			"action", "autosave",
			"folio", req.Folio,
			"error", err,
		)
		MapStoreError(w, r, err)
		return
	}

	slog.Info("draft saved",
		"component", "api",
		"action", "autosave",
		"folio", draft.Folio,
		"revision", draft.Revision,
		"fields", len(req.FormData),
	)

	writeJSON(w, http.StatusOK, types.AutosaveResponse{
		OK:       true,
		Folio:    draft.Folio,
		Revision: draft.Revision,
		SavedAt:  draft.UpdatedAt,
	})
}

// LoadDraft handles GET /api/load_draft/{folio}
func (h *Handler) LoadDraft(w http.ResponseWriter, r *http.Request) {
	folio, _ := FolioFromContext(r.Context())

	draft, err := h.store.GetDraft(r.Context(), folio)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			slog.Error("draft load failed",
				"component", "api",
				"action", "load_draft",
				"folio", folio,
				"error", err,
			)
		}
		MapStoreError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, types.LoadDraftResponse{
		Folio:            draft.Folio,
		FormData:         draft.FormData,
		FirmaTecnicoData: draft.FirmaTecnico,
		FirmaClienteData: draft.FirmaCliente,
		Status:           draft.Status,
		Revision:         draft.Revision,
		UpdatedAt:        draft.UpdatedAt,
	})
}

// ListDrafts handles GET /api/drafts?status=
func (h *Handler) ListDrafts(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	if err := validation.ValidateStatus("status", status); err != nil {
		WriteProblemWithErrors(w, r, "Invalid status filter", []validation.ValidationError{*err})
		return
	}

	drafts, err := h.store.ListDrafts(r.Context(), types.DraftStatus(status))
	if err != nil {
		slog.Error("list drafts failed",
			"component", "api",
			"action", "list_drafts",
			"error", err,
		)
		MapStoreError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, types.DraftListResponse{Drafts: drafts, Total: len(drafts)})
}

// DeleteDraft handles DELETE /api/drafts/{folio}
func (h *Handler) DeleteDraft(w http.ResponseWriter, r *http.Request) {
	folio, _ := FolioFromContext(r.Context())

	if err := h.store.DeleteDraft(r.Context(), folio); err != nil {
		MapStoreError(w, r, err)
		return
	}

	slog.Info("draft deleted",
		"component", "api",
		"action", "delete_draft",
		"folio", folio,
	)
	w.WriteHeader(http.StatusNoContent)
}

// MarkSent handles POST /api/drafts/{folio}/sent
func (h *Handler) MarkSent(w http.ResponseWriter, r *http.Request) {
	folio, _ := FolioFromContext(r.Context())

	if err := h.store.MarkSent(r.Context(), folio); err != nil {
		MapStoreError(w, r, err)
		return
	}

	slog.Info("draft marked sent",
		"component", "api",
		"action", "mark_sent",
		"folio", folio,
	)
	w.WriteHeader(http.StatusNoContent)
}

// NewFolio handles POST /api/nuevo_folio. The prefix comes from the
// optional ?prefijo= query parameter and defaults to the configured one.
func (h *Handler) NewFolio(w http.ResponseWriter, r *http.Request) {
	prefix := strings.TrimSpace(r.URL.Query().Get("prefijo"))
	if prefix == "" {
		prefix = h.folioPrefix
	}

	folio, err := h.store.NextFolio(r.Context(), prefix)
	if err != nil {
		if !errors.Is(err, store.ErrInvalidPrefix) {
			slog.Error("folio allocation failed",
				"component", "api",
				"action", "new_folio",
				"prefix", prefix,
				"error", err,
			)
		}
		MapStoreError(w, r, err)
		return
	}

	slog.Info("folio allocated",
		"component", "api",
		"action", "new_folio",
		"folio", folio,
	)
	writeJSON(w, http.StatusOK, types.FolioResponse{Folio: folio})
}
