package service

import (
	"sync"
)

// Status tracks the reported service state and only lets it move forward:
// START_PENDING -> RUNNING -> STOP_PENDING -> STOPPED. It is shared between
// the supervisor and the control handler.
type Status struct {
	handle StatusHandle

	// mu orders the state change with the report so the dispatcher never
	// sees an older state after a newer one
	mu       sync.Mutex
	state    State
	exitCode uint32
}

// NewStatus creates a tracker in the START_PENDING state. handle may be nil
// when registration failed; reports are then only recorded.
func NewStatus(handle StatusHandle) *Status {
	return &Status{handle: handle, state: StartPending}
}

// Attach sets the handle once registration succeeds. A state reached before
// the handle existed is reported immediately.
func (s *Status) Attach(handle StatusHandle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.handle = handle
	if s.state > StartPending {
		return handle.ReportStatus(s.state, s.exitCode)
	}
	return nil
}

// Report moves to state and reports it. It returns false without reporting
// when state is not ahead of the current one.
func (s *Status) Report(state State, exitCode uint32) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if state <= s.state {
		return false, nil
	}
	s.state = state
	s.exitCode = exitCode

	if s.handle == nil {
		return true, nil
	}
	return true, s.handle.ReportStatus(state, exitCode)
}

// State returns the current state
func (s *Status) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// ExitCode returns the exit code of the last accepted report
func (s *Status) ExitCode() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exitCode
}
