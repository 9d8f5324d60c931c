// internal/handler/contact_handler.go
package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/unclebandit/chatleopard-backend/internal/model"
	"github.com/unclebandit/chatleopard-backend/internal/repository"
	"github.com/unclebandit/chatleopard-backend/internal/service"
)

// ContactHandler holds the dependencies for contact-related HTTP handlers
type ContactHandler struct {
	Repo     repository.ContactRepositoryInterface
	Reminder *service.ReminderService
}

func NewContactHandler(repo repository.ContactRepositoryInterface, reminder *service.ReminderService) *ContactHandler {
	return &ContactHandler{Repo: repo, Reminder: reminder}
}

// ListContactsHandler returns every contact in the book
func (h *ContactHandler) ListContactsHandler(w http.ResponseWriter, r *http.Request) {
	contacts, err := h.Repo.ListAll()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to fetch contacts: "+err.Error())
		return
	}

	writeJSON(w, map[string]any{"contacts": contacts})
}

// GetContactHandler returns a single contact by phone
func (h *ContactHandler) GetContactHandler(w http.ResponseWriter, r *http.Request) {
	phone := model.NormalizePhone(chi.URLParam(r, "phone"))
	contact, err := h.Repo.GetByPhone(phone)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to fetch contact: "+err.Error())
		return
	}
	if contact == nil {
		writeError(w, http.StatusNotFound, "contact not found")
		return
	}

	writeJSON(w, map[string]any{"contact": contact})
}

// UpsertContactHandler creates or updates a contact keyed by normalized phone
func (h *ContactHandler) UpsertContactHandler(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Phone    string     `json:"phone"`
		Name     string     `json:"name"`
		Stage    string     `json:"stage,omitempty"`
		Tags     []string   `json:"tags,omitempty"`
		Notes    string     `json:"notes,omitempty"`
		Birthday *time.Time `json:"birthday,omitempty"`
	}

	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	phone := model.NormalizePhone(payload.Phone)
	if phone == "" {
		writeError(w, http.StatusBadRequest, "phone is required")
		return
	}

	contact := &model.Contact{
		Phone:    phone,
		Name:     payload.Name,
		Stage:    payload.Stage,
		Tags:     payload.Tags,
		Notes:    payload.Notes,
		Birthday: payload.Birthday,
	}
	if contact.Stage == "" {
		contact.Stage = model.StageNew
	}

	if err := h.Repo.Upsert(contact); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to save contact: "+err.Error())
		return
	}

	writeJSON(w, map[string]any{"contact": contact})
}

// UpdateStageHandler moves a contact to another pipeline stage
func (h *ContactHandler) UpdateStageHandler(w http.ResponseWriter, r *http.Request) {
	phone := model.NormalizePhone(chi.URLParam(r, "phone"))

	var payload struct {
		Stage string `json:"stage"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	switch payload.Stage {
	case model.StageNew, model.StageContacted, model.StageInterested, model.StageConverted, model.StageLost:
	default:
		writeError(w, http.StatusBadRequest, "unknown stage: "+payload.Stage)
		return
	}

	if err := h.Repo.UpdateStage(phone, payload.Stage); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to update stage: "+err.Error())
		return
	}

	writeJSON(w, map[string]any{"phone": phone, "stage": payload.Stage})
}

// SetFollowUpHandler schedules a follow-up reminder for a contact
func (h *ContactHandler) SetFollowUpHandler(w http.ResponseWriter, r *http.Request) {
	phone := model.NormalizePhone(chi.URLParam(r, "phone"))

	var payload struct {
		At time.Time `json:"at"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if payload.At.Before(time.Now()) {
		writeError(w, http.StatusBadRequest, "follow-up time must be in the future")
		return
	}

	if err := h.Reminder.SetFollowUp(phone, payload.At); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to set follow-up: "+err.Error())
		return
	}

	writeJSON(w, map[string]any{"phone": phone, "follow_up_at": payload.At})
}

// ClearFollowUpHandler removes a pending follow-up reminder
func (h *ContactHandler) ClearFollowUpHandler(w http.ResponseWriter, r *http.Request) {
	phone := model.NormalizePhone(chi.URLParam(r, "phone"))

	if err := h.Reminder.ClearFollowUp(phone); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to clear follow-up: "+err.Error())
		return
	}

	writeJSON(w, map[string]any{"phone": phone, "follow_up_at": nil})
}
