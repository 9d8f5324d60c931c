// internal/errors/errors.go
package appErrors

import "fmt"

// ErrValidation reports bad input on a request. Never retried.
type ErrValidation struct {
	Field  string
	Reason string
}

func (e *ErrValidation) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// Helper constructor
func NewValidation(field, reason string) error {
	return &ErrValidation{Field: field, Reason: reason}
}

// ErrAlreadyRunning reports a campaign start while another run is active.
type ErrAlreadyRunning struct {
	RunID string
}

func (e *ErrAlreadyRunning) Error() string {
	return fmt.Sprintf("a campaign is already running (run %s)", e.RunID)
}

func NewAlreadyRunning(runID string) error {
	return &ErrAlreadyRunning{RunID: runID}
}

// ErrAgentUnavailable means the transport exhausted its retries without
// reaching the page agent. Surfaced as a failed send, not run-fatal.
type ErrAgentUnavailable struct {
	Attempts int
}

func (e *ErrAgentUnavailable) Error() string {
	return fmt.Sprintf("no response from target page after %d attempts", e.Attempts)
}

func NewAgentUnavailable(attempts int) error {
	return &ErrAgentUnavailable{Attempts: attempts}
}

// ErrElementNotFound means a required UI affordance never resolved within
// the polling bound.
type ErrElementNotFound struct {
	Affordance string
}

func (e *ErrElementNotFound) Error() string {
	return fmt.Sprintf("element not found: %s", e.Affordance)
}

func NewElementNotFound(affordance string) error {
	return &ErrElementNotFound{Affordance: affordance}
}

// ErrNotAuthenticated means the target application is showing its login/QR
// screen instead of a usable chat surface.
type ErrNotAuthenticated struct{}

func (e *ErrNotAuthenticated) Error() string {
	return "target application is not logged in (QR screen shown)"
}

func NewNotAuthenticated() error {
	return &ErrNotAuthenticated{}
}

// ErrSequenceNotFound is a sentinel error
type ErrSequenceNotFound struct {
	SequenceID string
}

func (e *ErrSequenceNotFound) Error() string {
	return fmt.Sprintf("drip sequence %q not found", e.SequenceID)
}

func NewSequenceNotFound(id string) error {
	return &ErrSequenceNotFound{SequenceID: id}
}
