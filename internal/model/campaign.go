// internal/model/campaign.go
package model

import "time"

// Send result statuses recorded in a run ledger.
const (
	SendStatusSent    = "sent"
	SendStatusFailed  = "failed"
	SendStatusSkipped = "skipped"
)

// Message variants for A/B runs.
const (
	VariantA = "A"
	VariantB = "B"
)

// CampaignRequest is everything a caller supplies to start a bulk run.
type CampaignRequest struct {
	Contacts      []Contact `json:"contacts"`
	Template      string    `json:"template"`
	TemplateB     string    `json:"template_b,omitempty"`
	ABEnabled     bool      `json:"ab_enabled"`
	MinDelaySec   int       `json:"min_delay_sec"`
	MaxDelaySec   int       `json:"max_delay_sec"`
	TrackLinks    bool      `json:"track_links"`
	AIPersonalize bool      `json:"ai_personalize"`
	Stealth       bool      `json:"stealth"`
	MediaPath     string    `json:"media_path,omitempty"` // optional attachment; template becomes the caption
}

// SendResult is one ledger entry for one contact in one run.
type SendResult struct {
	Contact string `json:"contact"`
	Phone   string `json:"phone"`
	Status  string `json:"status"` // sent, failed, skipped
	Error   string `json:"error,omitempty"`
	Variant string `json:"variant,omitempty"`
	Message string `json:"message,omitempty"`
}

// CampaignSummary is the per-campaign analytics entry kept after a run ends.
type CampaignSummary struct {
	ID        string       `json:"id"`
	Date      time.Time    `json:"date"`
	Total     int          `json:"total"`
	Sent      int          `json:"sent"`
	Failed    int          `json:"failed"`
	Skipped   int          `json:"skipped"`
	Stopped   bool         `json:"stopped"`
	ABEnabled bool         `json:"ab_enabled"`
	SentA     int          `json:"sent_a,omitempty"`
	SentB     int          `json:"sent_b,omitempty"`
	Ledger    []SendResult `json:"ledger"`
}

// Progress event kinds emitted while a run is active.
const (
	ProgressSending   = "sending"
	ProgressResult    = "result"
	ProgressCountdown = "countdown"
	ProgressDone      = "done"
	ProgressError     = "error"
)

// ProgressEvent is streamed to the caller while a campaign runs.
type ProgressEvent struct {
	Kind      string      `json:"kind"`
	Index     int         `json:"index"`
	Total     int         `json:"total"`
	Contact   string      `json:"contact,omitempty"`
	Phone     string      `json:"phone,omitempty"`
	Seconds   int         `json:"seconds,omitempty"` // countdown remaining
	Result    *SendResult `json:"result,omitempty"`
	Error     string      `json:"error,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// RunSnapshot is persisted after every processed contact so a crash or
// restart can report how far the last run got.
type RunSnapshot struct {
	RunID     string    `json:"run_id"`
	Cursor    int       `json:"cursor"`
	Total     int       `json:"total"`
	UpdatedAt time.Time `json:"updated_at"`
}
