//go:build !windows

package service

import (
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"

	kservice "github.com/kardianos/service"
	"github.com/stone-age-io/redis-service/internal/logging"
	"go.uber.org/zap"
)

// Dispatch runs main under a Unix service manager (systemd, launchd, rc).
// SIGTERM is delivered as Stop and SIGINT as Shutdown. Run from an
// interactive session it returns ErrNotService without calling main. A
// non-zero service exit code is returned as an *ExitError.
func Dispatch(name string, logger *logging.Logger, main MainFunc) error {
	if kservice.Interactive() {
		return ErrNotService
	}

	return serve(name, logger, main)
}

// serve runs main with signal-driven control requests. A non-zero service
// exit code is returned as an ExitError so it reaches the process exit
// status, which is all systemd and launchd observe.
func serve(name string, logger *logging.Logger, main MainFunc) error {
	reg := newSignalRegistrar(logger)
	exitCode := main(reg)
	reg.close()

	logger.Debug("End service", zap.String("service", name), zap.Uint32("exit_code", exitCode))
	if exitCode != ExitOK {
		return &ExitError{Code: exitCode}
	}
	return nil
}

type signalRegistrar struct {
	logger *logging.Logger

	registered atomic.Bool
	signals    chan os.Signal
	done       chan struct{}
	closeOnce  sync.Once
}

func newSignalRegistrar(logger *logging.Logger) *signalRegistrar {
	return &signalRegistrar{
		logger:  logger,
		signals: make(chan os.Signal, 1),
		done:    make(chan struct{}),
	}
}

func (r *signalRegistrar) RegisterControlHandler(name string, handler ControlHandler) (StatusHandle, error) {
	if !r.registered.CompareAndSwap(false, true) {
		return nil, ErrAlreadyRegistered
	}
	signal.Notify(r.signals, syscall.SIGTERM, syscall.SIGINT)
	go r.pump(handler)
	return r, nil
}

func (r *signalRegistrar) pump(handler ControlHandler) {
	for {
		select {
		case <-r.done:
			return
		case sig := <-r.signals:
			r.logger.Debug("Received signal", zap.Stringer("signal", sig))
			if sig == syscall.SIGTERM {
				handler(Stop)
			} else {
				handler(Shutdown)
			}
		}
	}
}

// ReportStatus has no service manager to notify; transitions are logged
func (r *signalRegistrar) ReportStatus(state State, exitCode uint32) error {
	r.logger.Debug("Service status",
		zap.Stringer("state", state),
		zap.Uint32("exit_code", exitCode))
	return nil
}

func (r *signalRegistrar) close() {
	r.closeOnce.Do(func() {
		signal.Stop(r.signals)
		close(r.done)
	})
}
