package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/crucial707/hci-scheduler/internal/apperr"
)

// ErrMessageInternal is the generic message for 500 responses. Do not expose internal details to clients.
const ErrMessageInternal = "internal server error"

// JSONError sends a JSON error response with a single "error" field.
func JSONError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// JSONValidationError sends a JSON error response with "error" and optional "fields" for field-level details.
// status is typically http.StatusBadRequest (400).
func JSONValidationError(w http.ResponseWriter, message string, fields map[string]string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	out := map[string]interface{}{"error": message}
	if len(fields) > 0 {
		out["fields"] = fields
	}
	json.NewEncoder(w).Encode(out)
}

// writeError maps domain errors to status codes. notFound is the message
// used for apperr.ErrNotFound.
func writeError(w http.ResponseWriter, r *http.Request, err error, notFound string) {
	switch {
	case errors.Is(err, apperr.ErrInvalidTimeOfDay):
		JSONError(w, apperr.ErrInvalidTimeOfDay.Error(), http.StatusBadRequest)
	case errors.Is(err, apperr.ErrNotFound):
		JSONError(w, notFound, http.StatusNotFound)
	case errors.Is(err, apperr.ErrAlreadyRunning):
		JSONError(w, apperr.ErrAlreadyRunning.Error(), http.StatusConflict)
	case errors.Is(err, apperr.ErrDuplicateTrigger):
		JSONError(w, apperr.ErrDuplicateTrigger.Error(), http.StatusConflict)
	case errors.Is(err, apperr.ErrInvalidState):
		JSONError(w, "scan run is not running", http.StatusConflict)
	default:
		slog.Error("request failed",
			"request_id", chimw.GetReqID(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"error", err)
		JSONError(w, ErrMessageInternal, http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
