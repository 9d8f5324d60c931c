// internal/handler/meeting_handler.go
package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/unclebandit/chatleopard-backend/internal/model"
	"github.com/unclebandit/chatleopard-backend/internal/service"
)

// MeetingHandler manages appointments and their pre-meeting alerts.
type MeetingHandler struct {
	Reminder *service.ReminderService
}

func NewMeetingHandler(reminder *service.ReminderService) *MeetingHandler {
	return &MeetingHandler{Reminder: reminder}
}

// CreateMeetingHandler saves a meeting and schedules its alert
func (h *MeetingHandler) CreateMeetingHandler(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Phone    string    `json:"phone"`
		Title    string    `json:"title"`
		StartsAt time.Time `json:"starts_at"`
		Notes    string    `json:"notes,omitempty"`
	}

	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if payload.Phone == "" || payload.Title == "" {
		writeError(w, http.StatusBadRequest, "phone and title are required")
		return
	}
	if payload.StartsAt.Before(time.Now()) {
		writeError(w, http.StatusBadRequest, "meeting must start in the future")
		return
	}

	meeting := &model.Meeting{
		Phone:    model.NormalizePhone(payload.Phone),
		Title:    payload.Title,
		StartsAt: payload.StartsAt,
		Notes:    payload.Notes,
	}

	if err := h.Reminder.SaveMeeting(meeting); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to save meeting: "+err.Error())
		return
	}

	writeJSON(w, map[string]any{"meeting": meeting})
}

func (h *MeetingHandler) ListMeetingsHandler(w http.ResponseWriter, r *http.Request) {
	meetings, err := h.Reminder.ListMeetings()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to fetch meetings: "+err.Error())
		return
	}

	writeJSON(w, map[string]any{"meetings": meetings})
}

// DeleteMeetingHandler removes a meeting and cancels its pending alert
func (h *MeetingHandler) DeleteMeetingHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.Reminder.DeleteMeeting(id); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to delete meeting: "+err.Error())
		return
	}

	writeJSON(w, map[string]any{"deleted": id})
}
