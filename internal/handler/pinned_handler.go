// internal/handler/pinned_handler.go
package handler

import (
	"encoding/json"
	"net/http"

	"github.com/unclebandit/chatleopard-backend/internal/service"
)

// PinnedHandler manages the list of chats the reply scanner watches.
type PinnedHandler struct {
	Messaging *service.MessagingService
}

func NewPinnedHandler(messaging *service.MessagingService) *PinnedHandler {
	return &PinnedHandler{Messaging: messaging}
}

func (h *PinnedHandler) GetPinnedChatsHandler(w http.ResponseWriter, r *http.Request) {
	phones, err := h.Messaging.PinnedChats()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to fetch pinned chats: "+err.Error())
		return
	}

	writeJSON(w, map[string]any{"pinned": phones})
}

// SavePinnedChatsHandler replaces the pinned list wholesale
func (h *PinnedHandler) SavePinnedChatsHandler(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Phones []string `json:"phones"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	if err := h.Messaging.SavePinnedChats(payload.Phones); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to save pinned chats: "+err.Error())
		return
	}

	writeJSON(w, map[string]any{"pinned": payload.Phones})
}
