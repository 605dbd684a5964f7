// Package supervisor runs one managed redis-server process for the lifetime
// of one service start.
package supervisor

import (
	"context"
	"errors"
	"net"
	"syscall"
	"time"

	"github.com/stone-age-io/redis-service/internal/config"
	"github.com/stone-age-io/redis-service/internal/logging"
	"github.com/stone-age-io/redis-service/internal/service"
	"go.uber.org/zap"
)

// Child is a running managed process
type Child interface {
	Pid() int
	Wait() (int, error)
	Kill() error
	Release() error
}

// Launcher starts the managed process
type Launcher interface {
	Start(name string, args []string) (Child, error)
}

// LauncherFunc adapts a function to the Launcher interface
type LauncherFunc func(name string, args []string) (Child, error)

func (f LauncherFunc) Start(name string, args []string) (Child, error) {
	return f(name, args)
}

// ShutdownRequester asks the managed server to exit through its own protocol
type ShutdownRequester interface {
	RequestShutdown(ctx context.Context) error
}

// Supervisor owns the lifecycle of the managed process
type Supervisor struct {
	cfg      *config.Config
	logger   *logging.Logger
	launcher Launcher
	control  ShutdownRequester

	resolve func(network, address string) (*net.TCPAddr, error)
}

type waitResult struct {
	exitCode int
	err      error
}

// New creates a supervisor
func New(cfg *config.Config, logger *logging.Logger, launcher Launcher, control ShutdownRequester) *Supervisor {
	return &Supervisor{
		cfg:      cfg,
		logger:   logger,
		launcher: launcher,
		control:  control,
		resolve:  net.ResolveTCPAddr,
	}
}

// Run is the service main routine. It registers with the dispatcher, starts
// the managed process, blocks until the process exits or a stop is
// requested, and returns the service exit code.
func (s *Supervisor) Run(reg service.Registrar) uint32 {
	s.logger.Debug("Begin supervision", zap.String("service", s.cfg.ServiceName))

	host := zap.String("host", s.cfg.Redis.Host)
	port := zap.Int("port", s.cfg.Redis.Port)

	if _, err := s.resolve("tcp", s.cfg.Redis.Address()); err != nil {
		s.logger.Error("Failed to initialize networking", zap.Error(err))
		return service.ExitFailure
	}

	stop := NewStopSignal()
	status := service.NewStatus(nil)

	handle, err := reg.RegisterControlHandler(s.cfg.ServiceName, s.controlHandler(stop, status))
	if err != nil {
		s.logger.Error("Failed to register the service control handler", zap.Error(err))
		s.report(status, service.Stopped, service.ExitFailure)
		return service.ExitFailure
	}
	if err := status.Attach(handle); err != nil {
		s.logger.Warn("Failed to report service status", zap.Error(err))
	}

	if stop.IsSet() {
		s.logger.Notice("Stop requested before redis was started")
		s.report(status, service.Stopped, service.ExitOK)
		return service.ExitOK
	}

	s.logger.Notice("Starting redis", host, port)

	child, err := s.launcher.Start(s.cfg.Executable, s.cfg.Args())
	if err != nil {
		s.logger.Error("Failed to start redis",
			zap.String("executable", s.cfg.Executable),
			zap.Error(err))
		exitCode := launchExitCode(err)
		s.report(status, service.Stopped, exitCode)
		return exitCode
	}

	s.logger.Notice("Started redis", host, port, zap.Int("pid", child.Pid()))
	s.report(status, service.Running, service.ExitOK)

	exited := make(chan waitResult, 1)
	go func() {
		exitCode, err := child.Wait()
		exited <- waitResult{exitCode: exitCode, err: err}
	}()

	exitCode := service.ExitOK
	unexpected := false
	// exited carries a single result; once it is consumed the bounded stop
	// wait has nothing left to wait on
	waited := false

	select {
	case res := <-exited:
		waited = true
		switch {
		case res.err != nil:
			s.logger.Error("Failed to wait for redis", zap.Error(res.err))
		case !stop.IsSet():
			unexpected = true
			s.logger.Error("Redis has been shutdown, but we didn't ask it to shutdown. Check if the configuration file exists and is valid.",
				zap.Int("exit_code", res.exitCode),
				zap.String("config_file", s.cfg.ConfigPath))
			exitCode = uint32(res.exitCode)
		}
	case <-stop.Done():
	}

	if !unexpected {
		s.shutdownChild(child, exited, waited)
	}

	if err := child.Release(); err != nil {
		s.logger.Warn("Failed to release redis process handle", zap.Error(err))
	}

	s.report(status, service.Stopped, exitCode)
	s.logger.Debug("End supervision", zap.Uint32("exit_code", exitCode))
	return exitCode
}

// controlHandler returns the callback handed to the dispatcher. It only
// signals; the supervisor goroutine does the work.
func (s *Supervisor) controlHandler(stop *StopSignal, status *service.Status) service.ControlHandler {
	return func(req service.ControlRequest) {
		switch req {
		case service.Stop, service.Shutdown:
			s.logger.Info("Stop requested", zap.Stringer("request", req))
			stop.Set()
			if _, err := status.Report(service.StopPending, service.ExitOK); err != nil {
				s.logger.Warn("Failed to report service status", zap.Error(err))
			}
		}
	}
}

// shutdownChild sends SHUTDOWN to redis. With a stop timeout configured it
// then waits for the process and kills it when the timeout expires, unless
// the wait result was already consumed.
func (s *Supervisor) shutdownChild(child Child, exited <-chan waitResult, waited bool) {
	s.logger.Notice("Stopping redis", zap.Int("pid", child.Pid()))

	if err := s.control.RequestShutdown(context.Background()); err != nil {
		s.logger.Error("Failed to shutdown redis", zap.Error(err))
	}

	if s.cfg.StopTimeout <= 0 || waited {
		return
	}

	timer := time.NewTimer(s.cfg.StopTimeout)
	defer timer.Stop()

	select {
	case res := <-exited:
		s.logger.Info("Redis exited", zap.Int("exit_code", res.exitCode))
	case <-timer.C:
		s.logger.Warn("Redis did not exit in time, killing it",
			zap.Int("pid", child.Pid()),
			zap.Duration("stop_timeout", s.cfg.StopTimeout))
		if err := child.Kill(); err != nil {
			s.logger.Error("Failed to kill redis", zap.Error(err))
		}
	}
}

func (s *Supervisor) report(status *service.Status, state service.State, exitCode uint32) {
	if _, err := status.Report(state, exitCode); err != nil {
		s.logger.Warn("Failed to report service status",
			zap.Stringer("state", state),
			zap.Error(err))
	}
}

// launchExitCode passes OS error codes through and maps everything else to
// the generic failure code
func launchExitCode(err error) uint32 {
	var errno syscall.Errno
	if errors.As(err, &errno) && errno != 0 {
		return uint32(errno)
	}
	return service.ExitFailure
}
