//go:build windows

package service

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/stone-age-io/redis-service/internal/logging"
	"go.uber.org/zap"
	"golang.org/x/sys/windows"
	"golang.org/x/sys/windows/svc"
)

const acceptedControls = svc.AcceptStop | svc.AcceptShutdown

// Dispatch connects to the service control manager and runs main as the
// service main routine. It returns when the service has stopped.
func Dispatch(name string, logger *logging.Logger, main MainFunc) error {
	err := svc.Run(name, &windowsHandler{logger: logger, main: main})
	return classifyDispatchError(err)
}

func classifyDispatchError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, windows.ERROR_FAILED_SERVICE_CONTROLLER_CONNECT):
		return fmt.Errorf("%w: %w", ErrNotService, err)
	case errors.Is(err, windows.ERROR_INVALID_DATA),
		errors.Is(err, windows.ERROR_SERVICE_ALREADY_RUNNING):
		return fmt.Errorf("%w: %w", ErrDispatcherConfig, err)
	default:
		return fmt.Errorf("unexpected service dispatcher error: %w", err)
	}
}

type windowsHandler struct {
	logger *logging.Logger
	main   MainFunc
}

// Execute runs on the goroutine svc.Run starts for the service. svc reports
// STOPPED with the returned exit code once Execute returns.
func (h *windowsHandler) Execute(args []string, r <-chan svc.ChangeRequest, changes chan<- svc.Status) (bool, uint32) {
	h.logger.Debug("Begin service", zap.Strings("args", args))
	changes <- svc.Status{State: svc.StartPending}

	reg := &windowsRegistrar{
		requests: r,
		changes:  changes,
		done:     make(chan struct{}),
		logger:   h.logger,
	}
	exitCode := h.main(reg)
	reg.close()

	h.logger.Debug("End service", zap.Uint32("exit_code", exitCode))
	return false, exitCode
}

// windowsRegistrar bridges the svc request and status channels to the
// Registrar and StatusHandle interfaces
type windowsRegistrar struct {
	requests <-chan svc.ChangeRequest
	changes  chan<- svc.Status
	logger   *logging.Logger

	registered atomic.Bool
	done       chan struct{}
	closeOnce  sync.Once
}

func (r *windowsRegistrar) RegisterControlHandler(name string, handler ControlHandler) (StatusHandle, error) {
	if !r.registered.CompareAndSwap(false, true) {
		return nil, ErrAlreadyRegistered
	}
	go r.pump(handler)
	return r, nil
}

// pump delivers control requests to handler until the service main routine
// returns. Interrogate is answered here with the last reported status.
func (r *windowsRegistrar) pump(handler ControlHandler) {
	for {
		select {
		case <-r.done:
			return
		case c := <-r.requests:
			if c.Cmd == svc.Interrogate {
				r.send(c.CurrentStatus)
				continue
			}
			r.logger.Debug("Control request", zap.Stringer("request", ControlRequest(c.Cmd)))
			handler(ControlRequest(c.Cmd))
		}
	}
}

// ReportStatus forwards state to the service control manager. STOPPED is
// reported by svc itself when Execute returns.
func (r *windowsRegistrar) ReportStatus(state State, exitCode uint32) error {
	if state == Stopped {
		return nil
	}
	svcState, err := toSvcState(state)
	if err != nil {
		return err
	}
	r.send(svc.Status{
		State:         svcState,
		Accepts:       acceptedControls,
		Win32ExitCode: exitCode,
	})
	return nil
}

func (r *windowsRegistrar) send(status svc.Status) {
	select {
	case r.changes <- status:
	case <-r.done:
	}
}

func (r *windowsRegistrar) close() {
	r.closeOnce.Do(func() { close(r.done) })
}

func toSvcState(state State) (svc.State, error) {
	switch state {
	case StartPending:
		return svc.StartPending, nil
	case Running:
		return svc.Running, nil
	case StopPending:
		return svc.StopPending, nil
	case Stopped:
		return svc.Stopped, nil
	default:
		return 0, fmt.Errorf("unknown service state %d", state)
	}
}
