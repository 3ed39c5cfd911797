package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/erazemk/popis/internal/store"
)

// jsonResponse writes a JSON response with the given status code.
func jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("encoding response", "error", err)
		}
	}
}

// jsonError writes a JSON error response.
func jsonError(w http.ResponseWriter, status int, message string) {
	jsonResponse(w, status, map[string]string{"error": message})
}

// decodeJSON decodes a JSON request body into the given target.
func decodeJSON(r *http.Request, target any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(target)
}

// storeError writes the response for an error returned by the store.
func storeError(w http.ResponseWriter, err error) {
	var inUse *store.CategoryInUseError

	switch {
	case errors.As(err, &inUse):
		jsonResponse(w, http.StatusConflict, map[string]any{
			"error": inUse.Error(),
			"count": inUse.Count,
		})
	case errors.Is(err, store.ErrValidation):
		jsonResponse(w, http.StatusUnprocessableEntity, map[string]any{
			"error":  "validation failed",
			"fields": store.FieldErrors(err),
		})
	case errors.Is(err, store.ErrNotFound):
		jsonError(w, http.StatusNotFound, err.Error())
	default:
		slog.Error("inventory operation failed", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to save inventory")
	}
}

// mutationResult labels the outcome of a mutation for metrics.
func mutationResult(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, store.ErrValidation):
		return "invalid"
	case errors.Is(err, store.ErrNotFound):
		return "not_found"
	case errors.Is(err, store.ErrCategoryInUse):
		return "in_use"
	default:
		return "error"
	}
}
