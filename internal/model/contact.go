// internal/model/contact.go
package model

import (
	"strings"
	"time"
)

// CRM pipeline stages a contact moves through.
const (
	StageNew        = "new"
	StageContacted  = "contacted"
	StageInterested = "interested"
	StageConverted  = "converted"
	StageLost       = "lost"
)

type Contact struct {
	Phone           string      `db:"phone" json:"phone"` // normalized digits-only key
	Name            string      `db:"name" json:"name"`
	Stage           string      `db:"stage" json:"stage"`
	Tags            []string    `db:"tags" json:"tags"`
	Notes           string      `db:"notes" json:"notes"`
	Birthday        *time.Time  `db:"birthday" json:"birthday,omitempty"`
	FollowUpDate    *time.Time  `db:"follow_up_date" json:"follow_up_date,omitempty"`
	LastContacted   *time.Time  `db:"last_contacted" json:"last_contacted,omitempty"`
	ReplyTimestamps []time.Time `db:"reply_timestamps" json:"reply_timestamps,omitempty"`
	CreatedAt       time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time   `db:"updated_at" json:"updated_at"`
}

// NormalizePhone strips everything but digits so "+1 (555) 123-4567" and
// "15551234567" key the same contact.
func NormalizePhone(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// HasTag reports whether the contact carries the given tag.
func (c *Contact) HasTag(tag string) bool {
	for _, t := range c.Tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}
