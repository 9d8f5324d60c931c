// internal/model/settings.go
package model

// Settings is the single runtime-tunable configuration row. Everything here
// can change between runs without restarting the coordinator.
type Settings struct {
	MinDelaySec     int      `json:"min_delay_sec"`
	MaxDelaySec     int      `json:"max_delay_sec"`
	TrackLinks      bool     `json:"track_links"`
	AIPersonalize   bool     `json:"ai_personalize"`
	WebhookURL      string   `json:"webhook_url,omitempty"`
	OptOutPhrases   []string `json:"opt_out_phrases"`
	AutoReply       bool     `json:"auto_reply"`
	AutoReplyText   string   `json:"auto_reply_text,omitempty"`
	ReplyKeywords   []string `json:"reply_keywords,omitempty"`
	BusinessHours   bool     `json:"business_hours"`
	BusinessStart   int      `json:"business_start"` // hour 0-23
	BusinessEnd     int      `json:"business_end"`   // hour 0-23
	OutsideHoursMsg string   `json:"outside_hours_msg,omitempty"`
	DigestHour      int      `json:"digest_hour"`
}

// DefaultSettings mirrors what a fresh install starts with.
func DefaultSettings() Settings {
	return Settings{
		MinDelaySec:   5,
		MaxDelaySec:   12,
		BusinessStart: 9,
		BusinessEnd:   18,
		DigestHour:    18,
		OptOutPhrases: []string{"stop", "unsubscribe", "remove me", "opt out", "don't message"},
	}
}
