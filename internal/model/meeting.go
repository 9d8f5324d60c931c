// internal/model/meeting.go
package model

import "time"

// Meeting is a scheduled appointment with a contact; an alert wake fires
// shortly before StartsAt.
type Meeting struct {
	ID        string    `db:"id" json:"id"`
	Phone     string    `db:"phone" json:"phone"`
	Title     string    `db:"title" json:"title"`
	StartsAt  time.Time `db:"starts_at" json:"starts_at"`
	Notes     string    `db:"notes" json:"notes,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
