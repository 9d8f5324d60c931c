// internal/service/assist.go
package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

func encodeB64(b []byte) string { return base64.StdEncoding.EncodeToString(b) }

// OptionalAssist is the single fallible-capability interface for every AI
// integration. The contract is uniform: attempt, and on any failure fall
// back to identity — callers always get a usable answer plus an ok flag, and
// no path through here ever fails a send.
type OptionalAssist interface {
	// Generate returns a short text for the prompt (personalization,
	// reply drafting).
	Generate(prompt string, timeout time.Duration) (string, bool)
	// Classify returns a category label for the text given candidates.
	Classify(text string, categories []string, timeout time.Duration) (string, bool)
	// Transcribe turns an audio payload into text.
	Transcribe(audio []byte, mime string, timeout time.Duration) (string, bool)
	// Translate renders text into the target language.
	Translate(text, targetLang string, timeout time.Duration) (string, bool)
}

// NoAssist disables every optional capability; all calls report not-ok.
type NoAssist struct{}

func (NoAssist) Generate(string, time.Duration) (string, bool)           { return "", false }
func (NoAssist) Classify(string, []string, time.Duration) (string, bool) { return "", false }
func (NoAssist) Transcribe([]byte, string, time.Duration) (string, bool) { return "", false }
func (NoAssist) Translate(string, string, time.Duration) (string, bool)  { return "", false }

// HTTPAssist calls a language-generation endpoint with strict timeouts.
// Every method swallows its own errors and reports ok=false instead.
type HTTPAssist struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
	Log     *zap.SugaredLogger
}

type assistRequest struct {
	Task       string   `json:"task"`
	Prompt     string   `json:"prompt,omitempty"`
	Text       string   `json:"text,omitempty"`
	Categories []string `json:"categories,omitempty"`
	TargetLang string   `json:"target_lang,omitempty"`
	AudioB64   string   `json:"audio_b64,omitempty"`
	MIME       string   `json:"mime,omitempty"`
}

type assistResponse struct {
	Text string `json:"text"`
}

func (h *HTTPAssist) call(req assistRequest, timeout time.Duration) (string, bool) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", false
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, h.BaseURL+"/v1/assist", bytes.NewReader(body))
	if err != nil {
		return "", false
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if h.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+h.APIKey)
	}

	client := h.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(httpReq)
	if err != nil {
		h.Log.Debugw("assist call failed", "task", req.Task, "error", err)
		return "", false
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		h.Log.Debugw("assist call rejected", "task", req.Task, "status", resp.StatusCode)
		return "", false
	}

	var out assistResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", false
	}
	text := strings.TrimSpace(out.Text)
	return text, text != ""
}

func (h *HTTPAssist) Generate(prompt string, timeout time.Duration) (string, bool) {
	return h.call(assistRequest{Task: "generate", Prompt: prompt}, timeout)
}

func (h *HTTPAssist) Classify(text string, categories []string, timeout time.Duration) (string, bool) {
	label, ok := h.call(assistRequest{Task: "classify", Text: text, Categories: categories}, timeout)
	if !ok {
		return "", false
	}
	// Only accept one of the offered categories; anything else is noise.
	for _, c := range categories {
		if strings.EqualFold(label, c) {
			return c, true
		}
	}
	return "", false
}

func (h *HTTPAssist) Transcribe(audio []byte, mime string, timeout time.Duration) (string, bool) {
	return h.call(assistRequest{Task: "transcribe", AudioB64: encodeB64(audio), MIME: mime}, timeout)
}

func (h *HTTPAssist) Translate(text, targetLang string, timeout time.Duration) (string, bool) {
	return h.call(assistRequest{Task: "translate", Text: text, TargetLang: targetLang}, timeout)
}
