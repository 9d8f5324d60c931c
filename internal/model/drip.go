// internal/model/drip.go
package model

import "time"

// Delay units a drip step may use.
const (
	UnitMinutes = "minutes"
	UnitHours   = "hours"
	UnitDays    = "days"
)

type DripStep struct {
	Delay    int    `json:"delay"`
	Unit     string `json:"unit"` // minutes, hours, days
	Template string `json:"template"`
}

type DripSequence struct {
	ID        string     `db:"id" json:"id"`
	Name      string     `db:"name" json:"name"`
	Steps     []DripStep `db:"steps" json:"steps"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
}

// DripEnrollment tracks one contact's progress through one sequence.
// At most one active enrollment exists per (phone, sequence) pair.
type DripEnrollment struct {
	Phone      string    `db:"phone" json:"phone"`
	SequenceID string    `db:"sequence_id" json:"sequence_id"`
	StepIndex  int       `db:"step_index" json:"step_index"`
	NextFireAt time.Time `db:"next_fire_at" json:"next_fire_at"`
	EnrolledAt time.Time `db:"enrolled_at" json:"enrolled_at"`
}

// StepDelay converts a step's delay+unit into a duration.
func (s DripStep) StepDelay() time.Duration {
	switch s.Unit {
	case UnitHours:
		return time.Duration(s.Delay) * time.Hour
	case UnitDays:
		return time.Duration(s.Delay) * 24 * time.Hour
	default:
		return time.Duration(s.Delay) * time.Minute
	}
}
