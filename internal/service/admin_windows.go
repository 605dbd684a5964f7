//go:build windows

package service

import (
	"fmt"
	"time"

	"golang.org/x/sys/windows/svc"
	"golang.org/x/sys/windows/svc/mgr"
)

// Control starts or stops an installed service through the Windows Service
// Control Manager. "stop" waits up to timeout for the service to stop.
func Control(name, action string, timeout time.Duration) error {
	m, err := mgr.Connect()
	if err != nil {
		return fmt.Errorf("failed to connect to service manager: %w", err)
	}
	defer m.Disconnect()

	s, err := m.OpenService(name)
	if err != nil {
		return fmt.Errorf("failed to open service %s: %w", name, err)
	}
	defer s.Close()

	switch action {
	case "start":
		if err := s.Start(); err != nil {
			return fmt.Errorf("failed to start service: %w", err)
		}
	case "stop":
		status, err := s.Control(svc.Stop)
		if err != nil {
			return fmt.Errorf("failed to stop service: %w", err)
		}
		deadline := time.Now().Add(timeout)
		for status.State != svc.Stopped {
			if time.Now().After(deadline) {
				return fmt.Errorf("timeout waiting for service to stop")
			}
			time.Sleep(300 * time.Millisecond)
			status, err = s.Query()
			if err != nil {
				return fmt.Errorf("failed to query service status: %w", err)
			}
		}
	default:
		return fmt.Errorf("invalid action: %s (must be start or stop)", action)
	}

	return nil
}

// Query returns the current state of an installed service
func Query(name string) (State, error) {
	m, err := mgr.Connect()
	if err != nil {
		return Unknown, fmt.Errorf("failed to connect to service manager: %w", err)
	}
	defer m.Disconnect()

	s, err := m.OpenService(name)
	if err != nil {
		return Unknown, fmt.Errorf("failed to open service %s: %w", name, err)
	}
	defer s.Close()

	status, err := s.Query()
	if err != nil {
		return Unknown, fmt.Errorf("failed to query service: %w", err)
	}

	return fromSvcState(status.State), nil
}

// fromSvcState converts a Windows service state to a State. Paused states
// are not used by this service and map to Unknown.
func fromSvcState(state svc.State) State {
	switch state {
	case svc.StartPending:
		return StartPending
	case svc.Running:
		return Running
	case svc.StopPending:
		return StopPending
	case svc.Stopped:
		return Stopped
	default:
		return Unknown
	}
}
