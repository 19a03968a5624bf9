// Package handlers provides HTTP handlers for the advisor API.
package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/pgsteward/pgsteward/internal/models"
)

// maxBodyBytes caps request body size for all JSON endpoints.
const maxBodyBytes = 1 << 20

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

// decodeJSON decodes a size-limited JSON request body into dst. On failure
// it writes the 400 response itself and reports false.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, models.APIError{
			Code:    models.ErrCodeBadRequest,
			Message: "Invalid request body",
		})
		return false
	}
	return true
}

// uuidParam parses the named chi URL parameter as a UUID. On failure it
// writes the 400 response itself and reports false.
func uuidParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, models.APIError{
			Code:    models.ErrCodeBadRequest,
			Message: "Invalid " + name + " parameter",
		})
		return uuid.Nil, false
	}
	return id, true
}

// queryLimit parses the limit query parameter, clamped to [1, max].
// Zero means "use the store default".
func queryLimit(r *http.Request, max int) int {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit < 0 {
		return 0
	}
	if limit > max {
		return max
	}
	return limit
}

// queryBool parses a boolean query parameter, returning def when absent
// or unparseable.
func queryBool(r *http.Request, name string, def bool) bool {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return def
	}
	return v
}
