// internal/handler/settings_handler.go
package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/unclebandit/chatleopard-backend/internal/model"
	"github.com/unclebandit/chatleopard-backend/internal/repository"
	"github.com/unclebandit/chatleopard-backend/internal/service"
)

// SettingsHandler reads and writes the runtime settings row and exercises
// the outbound webhook.
type SettingsHandler struct {
	Store    *repository.SettingsStore
	Notifier *service.Notifier
}

func NewSettingsHandler(store *repository.SettingsStore, notifier *service.Notifier) *SettingsHandler {
	return &SettingsHandler{Store: store, Notifier: notifier}
}

func (h *SettingsHandler) GetSettingsHandler(w http.ResponseWriter, r *http.Request) {
	settings, err := h.Store.Get()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to fetch settings: "+err.Error())
		return
	}

	writeJSON(w, map[string]any{"settings": settings})
}

// SaveSettingsHandler replaces the settings row wholesale
func (h *SettingsHandler) SaveSettingsHandler(w http.ResponseWriter, r *http.Request) {
	settings := model.DefaultSettings()
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	if settings.MinDelaySec < 0 || settings.MaxDelaySec < settings.MinDelaySec {
		writeError(w, http.StatusBadRequest, "invalid delay range")
		return
	}
	if settings.BusinessStart < 0 || settings.BusinessStart > 23 ||
		settings.BusinessEnd < 0 || settings.BusinessEnd > 23 {
		writeError(w, http.StatusBadRequest, "business hours must be 0-23")
		return
	}
	if settings.DigestHour < 0 || settings.DigestHour > 23 {
		writeError(w, http.StatusBadRequest, "digest hour must be 0-23")
		return
	}

	if err := h.Store.Save(settings); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to save settings: "+err.Error())
		return
	}

	writeJSON(w, map[string]any{"settings": settings})
}

// TestWebhookHandler fires a synchronous test event at the configured URL
func (h *SettingsHandler) TestWebhookHandler(w http.ResponseWriter, r *http.Request) {
	settings, err := h.Store.Get()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to fetch settings: "+err.Error())
		return
	}
	if settings.WebhookURL == "" {
		writeError(w, http.StatusBadRequest, "no webhook URL configured")
		return
	}

	delivered := h.Notifier.EmitSync(model.EventWebhookTest, map[string]any{
		"message": "test event",
		"sent_at": time.Now(),
	})

	writeJSON(w, map[string]any{"delivered": delivered, "url": settings.WebhookURL})
}
