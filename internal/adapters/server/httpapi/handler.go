// Package httpapi provides the REST HTTP adapter for the server surfaces.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/loanward/loantrack/internal/adapters/server/common"
	"github.com/loanward/loantrack/internal/app"
	"github.com/loanward/loantrack/internal/domain"
)

// maxRequestBodyBytes limits decoded JSON payload size for fail-closed request handling.
const maxRequestBodyBytes int64 = 1 << 20

// Handler serves the versioned API subrouter mounted under `/api/v1`.
type Handler struct {
	loans common.LoanService
}

// APIError represents one structured API failure response.
type APIError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Hint    string         `json:"hint,omitempty"`
	Context map[string]any `json:"context,omitempty"`
}

// ErrorEnvelope wraps one structured API error.
type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// NewHandler constructs one HTTP API adapter over the loan service.
func NewHandler(loans common.LoanService) *Handler {
	return &Handler{loans: loans}
}

// ServeHTTP routes one versioned API request to the matching handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.loans == nil {
		writeJSONError(w, http.StatusServiceUnavailable, APIError{
			Code:    "service_unavailable",
			Message: "loan service is not configured",
		})
		return
	}
	path := normalizePath(r.URL.Path)
	switch {
	case path == "loans":
		switch r.Method {
		case http.MethodGet:
			h.handleListLoans(w, r)
		case http.MethodPost:
			h.handleCreateLoan(w, r)
		default:
			writeMethodNotAllowed(w, http.MethodGet, http.MethodPost)
		}
	case path == "digest":
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w, http.MethodGet)
			return
		}
		h.handleDigest(w, r)
	default:
		id, action, ok := resolveLoanPath(path)
		if !ok {
			writeJSONError(w, http.StatusNotFound, APIError{
				Code:    "not_found",
				Message: "endpoint not found",
			})
			return
		}
		h.routeLoan(w, r, id, action)
	}
}

// routeLoan dispatches `/loans/{id}` and its subresources.
func (h *Handler) routeLoan(w http.ResponseWriter, r *http.Request, id, action string) {
	switch action {
	case "":
		switch r.Method {
		case http.MethodGet:
			h.handleGetLoan(w, r, id)
		case http.MethodPatch:
			h.handleUpdateLoan(w, r, id)
		case http.MethodDelete:
			h.handleDeleteLoan(w, r, id)
		default:
			writeMethodNotAllowed(w, http.MethodGet, http.MethodPatch, http.MethodDelete)
		}
	case "stage":
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w, http.MethodPost)
			return
		}
		h.handleMoveStage(w, r, id)
	case "checklist":
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w, http.MethodPost)
			return
		}
		h.handleChecklistItem(w, r, id)
	case "deadline":
		if r.Method != http.MethodPut {
			writeMethodNotAllowed(w, http.MethodPut)
			return
		}
		h.handleDeadline(w, r, id)
	default:
		writeJSONError(w, http.StatusNotFound, APIError{
			Code:    "not_found",
			Message: "endpoint not found",
		})
	}
}

// handleListLoans serves GET `/loans`.
func (h *Handler) handleListLoans(w http.ResponseWriter, r *http.Request) {
	loans, err := h.loans.ListLoans(r.Context())
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"loans": loans,
	})
}

// handleCreateLoan serves POST `/loans`.
func (h *Handler) handleCreateLoan(w http.ResponseWriter, r *http.Request) {
	var req common.CreateLoanRequest
	if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	loan, err := h.loans.CreateLoan(r.Context(), req)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, loan)
}

// handleGetLoan serves GET `/loans/{id}`.
func (h *Handler) handleGetLoan(w http.ResponseWriter, r *http.Request, id string) {
	loan, err := h.loans.GetLoan(r.Context(), id)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, loan)
}

// handleUpdateLoan serves PATCH `/loans/{id}`.
func (h *Handler) handleUpdateLoan(w http.ResponseWriter, r *http.Request, id string) {
	var req common.UpdateLoanRequest
	if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	loan, err := h.loans.UpdateLoan(r.Context(), id, req)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, loan)
}

// handleDeleteLoan serves DELETE `/loans/{id}`.
func (h *Handler) handleDeleteLoan(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.loans.DeleteLoan(r.Context(), id); err != nil {
		writeErrorFrom(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleMoveStage serves POST `/loans/{id}/stage`.
func (h *Handler) handleMoveStage(w http.ResponseWriter, r *http.Request, id string) {
	var req common.MoveStageRequest
	if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	loan, err := h.loans.MoveStage(r.Context(), id, req)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, loan)
}

// handleChecklistItem serves POST `/loans/{id}/checklist`.
func (h *Handler) handleChecklistItem(w http.ResponseWriter, r *http.Request, id string) {
	var req common.ChecklistItemRequest
	if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	loan, err := h.loans.SetChecklistItem(r.Context(), id, req)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, loan)
}

// handleDeadline serves PUT `/loans/{id}/deadline`.
func (h *Handler) handleDeadline(w http.ResponseWriter, r *http.Request, id string) {
	var req common.DeadlineRequest
	if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	loan, err := h.loans.SetDeadline(r.Context(), id, req)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, loan)
}

// handleDigest serves GET `/digest`.
func (h *Handler) handleDigest(w http.ResponseWriter, r *http.Request) {
	digest, err := h.loans.Digest(r.Context())
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, digest)
}

// resolveLoanPath parses `/loans/{id}` and `/loans/{id}/{action}`.
func resolveLoanPath(path string) (id, action string, ok bool) {
	const prefix = "loans/"
	if !strings.HasPrefix(path, prefix) {
		return "", "", false
	}
	rest := strings.TrimPrefix(path, prefix)
	parts := strings.Split(rest, "/")
	switch len(parts) {
	case 1:
		id = strings.TrimSpace(parts[0])
		if id == "" {
			return "", "", false
		}
		return id, "", true
	case 2:
		id = strings.TrimSpace(parts[0])
		action = strings.TrimSpace(parts[1])
		if id == "" || action == "" {
			return "", "", false
		}
		return id, action, true
	default:
		return "", "", false
	}
}

// normalizePath canonicalizes one request path for route matching.
func normalizePath(path string) string {
	path = strings.TrimSpace(path)
	path = strings.Trim(path, "/")
	return path
}

// writeErrorFrom maps adapter errors into structured HTTP responses.
func writeErrorFrom(w http.ResponseWriter, err error) {
	var incomplete *domain.ChecklistIncompleteError
	switch {
	case err == nil:
		writeJSONError(w, http.StatusInternalServerError, APIError{
			Code:    "internal_error",
			Message: "unknown error",
		})
	case errors.As(err, &incomplete):
		writeJSONError(w, http.StatusConflict, APIError{
			Code:    "checklist_incomplete",
			Message: err.Error(),
			Hint:    "Complete the required checklist items before moving forward.",
			Context: map[string]any{
				"stage":        string(incomplete.Stage),
				"missing_keys": incomplete.MissingKey,
			},
		})
	case errors.Is(err, domain.ErrStageNotReached):
		writeJSONError(w, http.StatusConflict, APIError{
			Code:    "stage_not_reached",
			Message: err.Error(),
		})
	case errors.Is(err, app.ErrNotFound):
		writeJSONError(w, http.StatusNotFound, APIError{
			Code:    "not_found",
			Message: err.Error(),
		})
	case errors.Is(err, domain.ErrInvalidStage),
		errors.Is(err, domain.ErrInvalidProgram),
		errors.Is(err, domain.ErrInvalidBorrower),
		errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrInvalidID),
		errors.Is(err, domain.ErrUnknownItemKey),
		errors.Is(err, common.ErrInvalidRequest):
		writeJSONError(w, http.StatusBadRequest, APIError{
			Code:    "invalid_request",
			Message: err.Error(),
		})
	default:
		writeJSONError(w, http.StatusInternalServerError, APIError{
			Code:    "internal_error",
			Message: err.Error(),
		})
	}
}

// writeMethodNotAllowed writes a structured 405 response with `Allow` headers.
func writeMethodNotAllowed(w http.ResponseWriter, methods ...string) {
	if len(methods) > 0 {
		w.Header().Set("Allow", strings.Join(methods, ", "))
	}
	writeJSONError(w, http.StatusMethodNotAllowed, APIError{
		Code:    "method_not_allowed",
		Message: "method not allowed",
	})
}

// writeJSONError writes one structured error envelope.
func writeJSONError(w http.ResponseWriter, statusCode int, apiErr APIError) {
	writeJSON(w, statusCode, ErrorEnvelope{Error: apiErr})
}

// writeJSON writes one JSON response envelope.
func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, fmt.Sprintf(`{"error":{"code":"encode_error","message":"%s"}}`, err.Error()), http.StatusInternalServerError)
	}
}

// decodeJSONBody decodes one required JSON request body with strict shape checks.
func decodeJSONBody(ctx context.Context, w http.ResponseWriter, r *http.Request, out any) error {
	reader := http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	defer reader.Close()

	decoder := json.NewDecoder(reader)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(out); err != nil {
		return fmt.Errorf("decode request body: %w", errors.Join(common.ErrInvalidRequest, err))
	}
	// Reject trailing payloads so malformed JSON bodies fail closed.
	if err := decoder.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode request body: trailing content: %w", common.ErrInvalidRequest)
	}
	select {
	case <-ctx.Done():
		return fmt.Errorf("request canceled: %w", ctx.Err())
	default:
		return nil
	}
}
