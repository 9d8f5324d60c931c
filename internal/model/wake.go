// internal/model/wake.go
package model

import "time"

// Wake kinds handled by the durable scheduler.
const (
	WakeCampaignStart = "campaign_start"
	WakeDripStep      = "drip_step"
	WakeFollowUp      = "follow_up"
	WakeBirthday      = "birthday"
	WakeDailyDigest   = "daily_digest"
	WakeMeetingAlert  = "meeting_alert"
)

// WakeKey identifies a durable timer structurally. Registering the same key
// twice replaces the earlier timer, so a key maps to at most one pending
// wake. Fields that do not apply to a kind stay zero.
type WakeKey struct {
	Kind       string `json:"kind"`
	SequenceID string `json:"sequence_id,omitempty"`
	Phone      string `json:"phone,omitempty"`
	Step       int    `json:"step,omitempty"`
	RefID      string `json:"ref_id,omitempty"` // meeting id, campaign id, ...
}

// ScheduledWake is one pending durable timer row.
type ScheduledWake struct {
	ID      int64     `db:"id" json:"id"`
	Key     WakeKey   `json:"key"`
	FireAt  time.Time `db:"fire_at" json:"fire_at"`
	Payload string    `db:"payload" json:"payload,omitempty"` // opaque JSON for the handler
}
