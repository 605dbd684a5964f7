// Package service adapts the supervisor to the operating system's service
// model: registration with the service dispatcher, delivery of control
// requests and status reporting.
package service

import (
	"errors"
	"fmt"
)

// State is a service status as seen by the service control manager
type State int32

// Service states, in lifecycle order
const (
	Unknown State = iota
	StartPending
	Running
	StopPending
	Stopped
)

func (s State) String() string {
	switch s {
	case StartPending:
		return "START_PENDING"
	case Running:
		return "RUNNING"
	case StopPending:
		return "STOP_PENDING"
	case Stopped:
		return "STOPPED"
	default:
		return "UNKNOWN"
	}
}

// ControlRequest is a request delivered by the service dispatcher. Values
// match the Windows SERVICE_CONTROL_* codes.
type ControlRequest uint32

// Recognized control requests
const (
	Stop        ControlRequest = 1
	Interrogate ControlRequest = 4
	Shutdown    ControlRequest = 5
)

func (r ControlRequest) String() string {
	switch r {
	case Stop:
		return "STOP"
	case Interrogate:
		return "INTERROGATE"
	case Shutdown:
		return "SHUTDOWN"
	default:
		return fmt.Sprintf("CONTROL(%d)", uint32(r))
	}
}

// Exit codes reported to the service control manager
const (
	ExitOK      uint32 = 0
	ExitFailure uint32 = 0xFFFFFFFF // -1 as a DWORD
)

// ControlHandler is invoked on a dispatcher-owned goroutine for every
// control request other than Interrogate
type ControlHandler func(req ControlRequest)

// Registrar registers the running program with the service dispatcher
type Registrar interface {
	RegisterControlHandler(name string, handler ControlHandler) (StatusHandle, error)
}

// StatusHandle reports status changes to the service dispatcher
type StatusHandle interface {
	ReportStatus(state State, exitCode uint32) error
}

// MainFunc is the service main routine. It returns the service exit code.
type MainFunc func(reg Registrar) uint32

var (
	// ErrNotService means the program was not started by the service dispatcher
	ErrNotService = errors.New("not running under the service dispatcher")

	// ErrDispatcherConfig means the dispatcher rejected the service table or
	// the service is already running
	ErrDispatcherConfig = errors.New("service dispatcher configuration error")

	// ErrAlreadyRegistered is returned by a second RegisterControlHandler call
	ErrAlreadyRegistered = errors.New("control handler already registered")
)

// ExitError carries a non-zero service exit code out of Dispatch on
// platforms where the process exit status is the only place the service
// manager can read it
type ExitError struct {
	Code uint32
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("service exited with code %d", int32(e.Code))
}

// ExitCodeFor maps a Dispatch error to the process exit code
func ExitCodeFor(err error) int {
	var exitErr *ExitError
	switch {
	case err == nil:
		return 0
	case errors.As(err, &exitErr):
		return int(int32(exitErr.Code))
	case errors.Is(err, ErrNotService):
		return 1
	case errors.Is(err, ErrDispatcherConfig):
		return 2
	default:
		return -1
	}
}
