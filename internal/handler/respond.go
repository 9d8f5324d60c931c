// internal/handler/respond.go
package handler

import (
	"encoding/json"
	"net/http"
)

// writeJSON wraps the payload in the {success: true, ...} envelope every
// route on this surface returns.
func writeJSON(w http.ResponseWriter, payload map[string]any) {
	if payload == nil {
		payload = map[string]any{}
	}
	payload["success"] = true
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(payload)
}

// writeError returns the {success: false, error} envelope with the given
// status code.
func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"error":   msg,
	})
}
