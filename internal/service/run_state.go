// internal/service/run_state.go
package service

import (
	"sync"

	appErrors "github.com/unclebandit/chatleopard-backend/internal/errors"
)

type runPhase int

const (
	phaseIdle runPhase = iota
	phaseRunning
	phaseStopping
)

// RunState owns the single-active-run constraint as a state machine
// (Idle -> Running -> Stopping -> Idle). Invalid transitions are rejected
// with errors instead of being silently ignored.
type RunState struct {
	mu    sync.Mutex
	phase runPhase
	runID string
}

// Start moves Idle -> Running. Fails with AlreadyRunning otherwise.
func (s *RunState) Start(runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != phaseIdle {
		return appErrors.NewAlreadyRunning(s.runID)
	}
	s.phase = phaseRunning
	s.runID = runID
	return nil
}

// RequestStop moves Running -> Stopping. Stopping is cooperative: the run
// loop observes StopRequested and winds down after the in-flight send.
func (s *RunState) RequestStop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != phaseRunning {
		return appErrors.NewValidation("campaign", "no campaign is running")
	}
	s.phase = phaseStopping
	return nil
}

// Finish returns to Idle from any active phase.
func (s *RunState) Finish() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.phase = phaseIdle
	s.runID = ""
}

// StopRequested reports whether the active run should wind down.
func (s *RunState) StopRequested() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase == phaseStopping
}

// Active reports whether a run is in progress and its id.
func (s *RunState) Active() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runID, s.phase != phaseIdle
}
