// internal/controller/campaign_controller.go
package controller

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	appErrors "github.com/unclebandit/chatleopard-backend/internal/errors"
	"github.com/unclebandit/chatleopard-backend/internal/model"
	"github.com/unclebandit/chatleopard-backend/internal/queue"
	"github.com/unclebandit/chatleopard-backend/internal/service"
)

type CampaignController struct {
	CampaignService *service.CampaignService
	ReminderService *service.ReminderService
	Bus             queue.Queue
}

// StartCampaign kicks off a bulk run. The response confirms the start; live
// progress is available on the events stream.
func (c *CampaignController) StartCampaign(w http.ResponseWriter, r *http.Request) {
	var req model.CampaignRequest
	if !decodeBody(w, r, &req) {
		return
	}

	events, err := c.CampaignService.StartCampaign(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}

	// The run outlives this request; drain so the service never blocks.
	go func() {
		for range events {
		}
	}()

	writeJSON(w, map[string]any{
		"status":   "started",
		"contacts": len(req.Contacts),
	})
}

func (c *CampaignController) StopCampaign(w http.ResponseWriter, r *http.Request) {
	if err := c.CampaignService.StopCampaign(); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]any{"status": "stopping"})
}

func (c *CampaignController) Status(w http.ResponseWriter, r *http.Request) {
	status, err := c.CampaignService.Status()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, status)
}

// ScheduleCampaign registers a future start through the durable scheduler.
func (c *CampaignController) ScheduleCampaign(w http.ResponseWriter, r *http.Request) {
	var body struct {
		model.CampaignRequest
		StartAt string `json:"start_at"` // RFC3339
	}
	if !decodeBody(w, r, &body) {
		return
	}

	at, err := time.Parse(time.RFC3339, body.StartAt)
	if err != nil {
		writeError(w, appErrors.NewValidation("start_at", "must be RFC3339"))
		return
	}
	if at.Before(time.Now()) {
		writeError(w, appErrors.NewValidation("start_at", "must be in the future"))
		return
	}

	id, err := c.ReminderService.ScheduleCampaign(body.CampaignRequest, at)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]any{"scheduled_id": id, "start_at": at})
}

// Events streams campaign progress as server-sent events.
func (c *CampaignController) Events(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")

	events := make(chan any, 64)
	id, err := c.Bus.Subscribe(queue.TopicProgress, func(payload any) error {
		select {
		case events <- payload:
		default:
		}
		return nil
	})
	if err != nil {
		http.Error(w, "subscribe failed", http.StatusInternalServerError)
		return
	}
	defer c.Bus.Unsubscribe(queue.TopicProgress, id)

	for {
		select {
		case <-r.Context().Done():
			return
		case ev := <-events:
			data, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
		}
	}
}
