package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mementolab/wagate/internal/engine"
)

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, map[string]any{
		"error":   code,
		"message": message,
	})
}

// respondGatewayError maps the engine error taxonomy onto HTTP statuses.
func respondGatewayError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, engine.ErrValidation):
		respondError(w, http.StatusBadRequest, "validation_error", err.Error())
	case errors.Is(err, engine.ErrNotFound):
		respondError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, engine.ErrConflict):
		respondError(w, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, engine.ErrNotReady):
		respondError(w, http.StatusUnprocessableEntity, "not_ready", err.Error())
	case errors.Is(err, engine.ErrNotSupported):
		respondError(w, http.StatusNotImplemented, "not_supported", err.Error())
	case errors.Is(err, engine.ErrTimeout):
		respondError(w, http.StatusGatewayTimeout, "timeout", err.Error())
	case errors.Is(err, engine.ErrUnavailable):
		respondError(w, http.StatusBadGateway, "upstream_unavailable", err.Error())
	default:
		respondError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

func decodeJSON(r *http.Request, out any) error {
	return json.NewDecoder(r.Body).Decode(out)
}
