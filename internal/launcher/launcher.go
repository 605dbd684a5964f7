package launcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"

	"github.com/shirou/gopsutil/v3/process"
	"github.com/stone-age-io/redis-service/internal/logging"
	"go.uber.org/zap"
)

// ErrReleased is returned when a process handle is released twice
var ErrReleased = errors.New("process handle already released")

// Launcher starts managed executables as detached background processes
type Launcher struct {
	logger *logging.Logger
	dir    string
}

// New creates a launcher. Children are started in dir, or in the current
// working directory when dir is empty.
func New(logger *logging.Logger, dir string) *Launcher {
	return &Launcher{logger: logger, dir: dir}
}

// Start launches name with args, detached from any console. It does not wait
// for the process or read its output. A bare name is looked up in the
// launcher's directory before PATH.
func (l *Launcher) Start(name string, args []string) (*Process, error) {
	cmd := exec.Command(l.resolve(name), args...)
	if errors.Is(cmd.Err, exec.ErrDot) {
		cmd.Err = nil
	}
	cmd.Dir = l.dir
	configureSysProcAttr(cmd)

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", name, err)
	}

	l.logger.Debug("Process created",
		zap.String("executable", name),
		zap.Strings("args", args),
		zap.Int("pid", cmd.Process.Pid))

	return &Process{
		cmd:  cmd,
		done: make(chan struct{}),
	}, nil
}

// resolve returns the path of a bare executable name found in the launcher's
// directory (the working directory when unset). Other names are returned
// unchanged and go through the normal PATH lookup.
func (l *Launcher) resolve(name string) string {
	if filepath.Base(name) != name {
		return name
	}

	dir := l.dir
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return name
		}
		dir = wd
	}

	candidate := filepath.Join(dir, name)
	if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
		return candidate
	}
	return name
}

// Process is a handle to a running child process. Wait must be called from a
// single goroutine; it blocks until the child exits and caches the result.
type Process struct {
	cmd *exec.Cmd

	waitOnce sync.Once
	done     chan struct{}
	exitCode int
	waitErr  error

	releaseMu sync.Mutex
	released  bool
}

// Pid returns the child's process id
func (p *Process) Pid() int {
	return p.cmd.Process.Pid
}

// Wait blocks until the child exits and returns its exit code. A non-nil
// error means the exit status could not be determined.
func (p *Process) Wait() (int, error) {
	p.waitOnce.Do(func() {
		err := p.cmd.Wait()
		p.exitCode = p.cmd.ProcessState.ExitCode()
		if err != nil {
			var exitErr *exec.ExitError
			if !errors.As(err, &exitErr) {
				p.waitErr = fmt.Errorf("failed to wait for process %d: %w", p.Pid(), err)
			}
		}
		close(p.done)
	})
	return p.exitCode, p.waitErr
}

// Exited is closed once Wait has returned
func (p *Process) Exited() <-chan struct{} {
	return p.done
}

// Kill forcefully terminates the child and any processes it spawned.
// Descendants are killed first so none are orphaned by the parent's death.
func (p *Process) Kill() error {
	if proc, err := process.NewProcess(int32(p.Pid())); err == nil {
		killDescendants(proc)
	}

	if err := p.cmd.Process.Kill(); err != nil {
		if errors.Is(err, os.ErrProcessDone) {
			return nil
		}
		select {
		case <-p.done:
			return nil
		default:
		}
		return fmt.Errorf("failed to kill process %d: %w", p.Pid(), err)
	}
	return nil
}

func killDescendants(proc *process.Process) {
	children, err := proc.ChildrenWithContext(context.Background())
	if err != nil {
		return
	}
	for _, child := range children {
		killDescendants(child)
		_ = child.Kill()
	}
}

// Release gives up the handle. The waiting goroutine keeps ownership of the
// OS handle until the child exits, so Release only marks the handle as no
// longer usable and reports a double release.
func (p *Process) Release() error {
	p.releaseMu.Lock()
	defer p.releaseMu.Unlock()

	if p.released {
		return ErrReleased
	}
	p.released = true
	return nil
}
