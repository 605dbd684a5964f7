package service

import (
	"fmt"

	kservice "github.com/kardianos/service"
)

// AdminConfig describes the service entry managed by the admin commands
type AdminConfig struct {
	Name       string
	Executable string   // absolute path of this program
	Arguments  []string // passed back to the program when the dispatcher starts it
}

// program satisfies kservice.Interface for install and control operations.
// The service itself is run by Dispatch, never by kardianos.
type program struct{}

func (program) Start(s kservice.Service) error { return nil }
func (program) Stop(s kservice.Service) error  { return nil }

func newManagedService(cfg AdminConfig) (kservice.Service, error) {
	s, err := kservice.New(program{}, &kservice.Config{
		Name:        cfg.Name,
		DisplayName: cfg.Name,
		Description: fmt.Sprintf("%s (redis-server supervised as a service)", cfg.Name),
		Executable:  cfg.Executable,
		Arguments:   cfg.Arguments,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create service definition: %w", err)
	}
	return s, nil
}

// Install registers the service with the system service manager
func Install(cfg AdminConfig) error {
	s, err := newManagedService(cfg)
	if err != nil {
		return err
	}
	if err := s.Install(); err != nil {
		return fmt.Errorf("failed to install service %s: %w", cfg.Name, err)
	}
	return nil
}

// Uninstall removes the service from the system service manager
func Uninstall(name string) error {
	s, err := newManagedService(AdminConfig{Name: name})
	if err != nil {
		return err
	}
	if err := s.Uninstall(); err != nil {
		return fmt.Errorf("failed to uninstall service %s: %w", name, err)
	}
	return nil
}
