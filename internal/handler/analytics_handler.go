// internal/handler/analytics_handler.go
package handler

import (
	"net/http"

	"github.com/unclebandit/chatleopard-backend/internal/repository"
)

// AnalyticsHandler exposes the rolling send/reply aggregate.
type AnalyticsHandler struct {
	Store *repository.AnalyticsStore
}

func NewAnalyticsHandler(store *repository.AnalyticsStore) *AnalyticsHandler {
	return &AnalyticsHandler{Store: store}
}

func (h *AnalyticsHandler) GetAnalyticsHandler(w http.ResponseWriter, r *http.Request) {
	analytics, err := h.Store.Get()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to fetch analytics: "+err.Error())
		return
	}

	writeJSON(w, map[string]any{"analytics": analytics})
}

// ClearAnalyticsHandler resets all counters and campaign history
func (h *AnalyticsHandler) ClearAnalyticsHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Clear(); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to clear analytics: "+err.Error())
		return
	}

	writeJSON(w, map[string]any{"cleared": true})
}
