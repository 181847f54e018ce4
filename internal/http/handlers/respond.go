package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/vcfgather/server/internal/model"
)

const maxBodyBytes = 1 << 20

// errorResponse is the JSON body of every error reply
type errorResponse struct {
	Error     string `json:"error"`
	Field     string `json:"field,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`
}

func respondJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// respondWithError sends a JSON error response
func respondWithError(w http.ResponseWriter, statusCode int, message string) {
	respondJSON(w, statusCode, errorResponse{Error: message})
}

// statusFor maps a domain error to its HTTP status
func statusFor(err error) int {
	switch {
	case errors.Is(err, model.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrDuplicateContact):
		return http.StatusConflict
	case errors.Is(err, model.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, model.ErrQuotaExceeded):
		return http.StatusTooManyRequests
	case errors.Is(err, model.ErrEmptySet), errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrFetchFailure):
		return http.StatusServiceUnavailable
	case errors.Is(err, model.ErrImportFailed):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// respondError reports err to the client; unexpected errors are logged and hidden
func respondError(w http.ResponseWriter, log *slog.Logger, err error) {
	status := statusFor(err)
	body := errorResponse{Error: err.Error()}

	var verr *model.ValidationError
	if errors.As(err, &verr) {
		body.Field = verr.Field
	}

	switch status {
	case http.StatusInternalServerError:
		log.Error("request failed", "error", err)
		body.Error = "internal error"
	case http.StatusServiceUnavailable:
		log.Warn("backend read failed", "error", err)
		body.Error = "could not reach the contact store, please try again"
		body.Retryable = true
	case http.StatusNotFound:
		if errors.Is(err, model.ErrNotFound) {
			body.Error = "session not found"
		}
	}

	respondJSON(w, status, body)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return model.NewValidationError("body", "invalid request body")
	}
	return nil
}

func uuidParam(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, model.ErrNotFound
	}
	return id, nil
}
