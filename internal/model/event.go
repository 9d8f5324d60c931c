// internal/model/event.go
package model

import "time"

// Outbound event names.
const (
	EventCampaignCompleted = "campaign_completed"
	EventReplyReceived     = "reply_received"
	EventDailyDigest       = "daily_digest"
	EventWebhookTest       = "webhook_test"
	EventFollowUpDue       = "follow_up_due"
	EventMeetingAlert      = "meeting_alert"
)

// WebhookEvent is the envelope POSTed to the configured webhook and mirrored
// to the AMQP exchange when one is configured.
type WebhookEvent struct {
	Event     string    `json:"event"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"`
}

// ReplyReport is what the inbound watcher and reply scans hand back for
// logging and compliance.
type ReplyReport struct {
	Phone    string    `json:"phone"`
	Incoming string    `json:"incoming"`
	Reply    string    `json:"reply,omitempty"`
	Success  bool      `json:"success"`
	SeenAt   time.Time `json:"seen_at"`
}
