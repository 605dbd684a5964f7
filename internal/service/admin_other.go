//go:build !windows

package service

import (
	"fmt"
	"time"

	kservice "github.com/kardianos/service"
)

// Control starts or stops an installed service through the system service
// manager. The manager's own stop semantics apply; timeout is unused.
func Control(name, action string, timeout time.Duration) error {
	s, err := newManagedService(AdminConfig{Name: name})
	if err != nil {
		return err
	}

	switch action {
	case "start":
		err = s.Start()
	case "stop":
		err = s.Stop()
	default:
		return fmt.Errorf("invalid action: %s (must be start or stop)", action)
	}
	if err != nil {
		return fmt.Errorf("failed to %s service %s: %w", action, name, err)
	}
	return nil
}

// Query returns the current state of an installed service
func Query(name string) (State, error) {
	s, err := newManagedService(AdminConfig{Name: name})
	if err != nil {
		return Unknown, err
	}

	status, err := s.Status()
	if err != nil {
		return Unknown, fmt.Errorf("failed to query service %s: %w", name, err)
	}

	switch status {
	case kservice.StatusRunning:
		return Running, nil
	case kservice.StatusStopped:
		return Stopped, nil
	default:
		return Unknown, nil
	}
}
