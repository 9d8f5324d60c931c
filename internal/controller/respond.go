// internal/controller/respond.go
package controller

import (
	"encoding/json"
	"errors"
	"net/http"

	appErrors "github.com/unclebandit/chatleopard-backend/internal/errors"
)

// writeJSON wraps the payload in the {success: true, ...} envelope.
func writeJSON(w http.ResponseWriter, payload map[string]any) {
	if payload == nil {
		payload = map[string]any{}
	}
	payload["success"] = true
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(payload)
}

// writeError maps the error taxonomy onto status codes and the
// {success: false, error} envelope.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError

	var validation *appErrors.ErrValidation
	var running *appErrors.ErrAlreadyRunning
	var notFound *appErrors.ErrSequenceNotFound
	var notAuth *appErrors.ErrNotAuthenticated
	switch {
	case errors.As(err, &validation):
		status = http.StatusBadRequest
	case errors.As(err, &running):
		status = http.StatusConflict
	case errors.As(err, &notFound):
		status = http.StatusNotFound
	case errors.As(err, &notAuth):
		status = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"error":   err.Error(),
	})
}

func decodeBody(w http.ResponseWriter, r *http.Request, into any) bool {
	if err := json.NewDecoder(r.Body).Decode(into); err != nil {
		writeError(w, appErrors.NewValidation("body", "invalid request body"))
		return false
	}
	return true
}
