// internal/controller/messaging_controller.go
package controller

import (
	"encoding/base64"
	"net/http"

	appErrors "github.com/unclebandit/chatleopard-backend/internal/errors"
	"github.com/unclebandit/chatleopard-backend/internal/service"
)

type MessagingController struct {
	MessagingService *service.MessagingService
}

// QuickSend sends one message to one contact outside any campaign.
func (c *MessagingController) QuickSend(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Phone     string `json:"phone"`
		Message   string `json:"message"`
		MediaPath string `json:"media_path,omitempty"`
	}
	if !decodeBody(w, r, &body) {
		return
	}

	result, err := c.MessagingService.QuickSend(r.Context(), body.Phone, body.Message, body.MediaPath)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]any{"result": result})
}

// ScanReplies runs one pass over the pinned chats.
func (c *MessagingController) ScanReplies(w http.ResponseWriter, r *http.Request) {
	reports, err := c.MessagingService.ScanReplies(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]any{"replies": reports})
}

// SendReply triggers a quoted reply in the contact's chat.
func (c *MessagingController) SendReply(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Phone   string `json:"phone"`
		Snippet string `json:"snippet"`
		Reply   string `json:"reply"`
	}
	if !decodeBody(w, r, &body) {
		return
	}

	result, err := c.MessagingService.SendReply(r.Context(), body.Phone, body.Snippet, body.Reply)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]any{"result": result})
}

func (c *MessagingController) StartWatcher(w http.ResponseWriter, r *http.Request) {
	if err := c.MessagingService.StartWatcher(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]any{"watcher": "started"})
}

func (c *MessagingController) StopWatcher(w http.ResponseWriter, r *http.Request) {
	if err := c.MessagingService.StopWatcher(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]any{"watcher": "stopped"})
}

// Transcribe turns a base64 audio payload into text, best-effort.
func (c *MessagingController) Transcribe(w http.ResponseWriter, r *http.Request) {
	var body struct {
		AudioB64 string `json:"audio_b64"`
		MIME     string `json:"mime"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	audio, err := base64.StdEncoding.DecodeString(body.AudioB64)
	if err != nil {
		writeError(w, appErrors.NewValidation("audio_b64", "invalid base64"))
		return
	}

	text, ok := c.MessagingService.Transcribe(audio, body.MIME)
	writeJSON(w, map[string]any{"text": text, "transcribed": ok})
}

// Translate renders text into the target language, best-effort.
func (c *MessagingController) Translate(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Text       string `json:"text"`
		TargetLang string `json:"target_lang"`
	}
	if !decodeBody(w, r, &body) {
		return
	}

	text, ok := c.MessagingService.Translate(body.Text, body.TargetLang)
	writeJSON(w, map[string]any{"text": text, "translated": ok})
}
