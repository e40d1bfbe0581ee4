// Package service exposes the split engine over a JSON HTTP API. It owns
// request validation — empty or duplicate participant names are rejected
// here, before any optimistic mutation happens — and the mapping of
// engine errors to HTTP statuses.
package service

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/makansplit/backend/internal/middleware"
	"github.com/makansplit/backend/internal/ocr"
	"github.com/makansplit/backend/internal/payment"
	"github.com/makansplit/backend/internal/share"
	"github.com/makansplit/backend/internal/split"
	"github.com/makansplit/backend/internal/storage"
)

// Service wires the session manager, payment tracker, OCR scanner, and
// share tokens behind HTTP handlers.
type Service struct {
	manager *split.Manager
	tracker *payment.Tracker
	scanner ocr.Scanner
	tokens  *share.TokenManager
	store   storage.Store
}

// New creates the service. The store is used directly only by the
// token-gated read-only summary view; everything else goes through the
// session.
func New(manager *split.Manager, tracker *payment.Tracker, scanner ocr.Scanner, tokens *share.TokenManager, store storage.Store) *Service {
	return &Service{
		manager: manager,
		tracker: tracker,
		scanner: scanner,
		tokens:  tokens,
		store:   store,
	}
}

// Router builds the API router with the middleware chain applied.
func (s *Service) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(middleware.Metrics)

	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/splits", s.handleCreateSplit).Methods(http.MethodPost)
	api.HandleFunc("/splits/current", s.handleGetCurrent).Methods(http.MethodGet)
	api.HandleFunc("/splits/current", s.handleReset).Methods(http.MethodDelete)
	api.HandleFunc("/splits/current/tax", s.handleSetTax).Methods(http.MethodPut)
	api.HandleFunc("/splits/current/summary", s.handleSummary).Methods(http.MethodGet)
	api.HandleFunc("/splits/current/share-token", s.handleShareToken).Methods(http.MethodGet)

	api.HandleFunc("/participants", s.handleAddParticipant).Methods(http.MethodPost)
	api.HandleFunc("/participants/{id}", s.handleUpdateParticipant).Methods(http.MethodPatch)
	api.HandleFunc("/participants/{id}/paid", s.handleMarkPaid).Methods(http.MethodPost)
	api.HandleFunc("/participants/{id}/pending", s.handleMarkPending).Methods(http.MethodPost)
	api.HandleFunc("/participants/{id}/share", s.handleShareLink).Methods(http.MethodGet)
	api.HandleFunc("/participants/{id}/remind", s.handleRemindLink).Methods(http.MethodGet)

	api.HandleFunc("/items", s.handleAddItems).Methods(http.MethodPost)
	api.HandleFunc("/items/{id}", s.handleRemoveItem).Methods(http.MethodDelete)
	api.HandleFunc("/items/{id}/toggle", s.handleToggleAssignment).Methods(http.MethodPost)
	api.HandleFunc("/items/{id}/assign-all", s.handleAssignAll).Methods(http.MethodPost)

	api.HandleFunc("/scan", s.handleScanReceipt).Methods(http.MethodPost)

	api.HandleFunc("/settings/payment", s.handleGetPaymentSettings).Methods(http.MethodGet)
	api.HandleFunc("/settings/payment", s.handleSetPaymentSettings).Methods(http.MethodPut)
	api.HandleFunc("/settings/reminders", s.handleGetReminderSettings).Methods(http.MethodGet)
	api.HandleFunc("/settings/reminders", s.handleSetReminderSettings).Methods(http.MethodPut)

	api.HandleFunc("/shared/{token}", s.handleSharedView).Methods(http.MethodGet)

	return r
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// writeEngineError maps session-layer errors onto HTTP statuses.
func writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, split.ErrNoActiveSplit):
		writeError(w, http.StatusConflict, "no active split; create one first")
	case errors.Is(err, split.ErrPendingSync):
		writeError(w, http.StatusConflict, "still syncing, try again in a moment")
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	default:
		slog.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// validateName enforces the participant name rules: non-empty and unique
// within the split, compared case-insensitively. excludeID exempts the
// participant being renamed from its own name.
func (s *Service) validateName(name, excludeID string) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return errors.New("name is required")
	}
	for _, m := range s.manager.Session().Members() {
		if m.ID != excludeID && strings.EqualFold(m.Name, trimmed) {
			return errors.New("a participant with this name already exists")
		}
	}
	return nil
}
