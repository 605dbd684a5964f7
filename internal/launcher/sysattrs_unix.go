//go:build !windows

package launcher

import (
	"os/exec"
	"syscall"
)

// configureSysProcAttr starts the child in a new session so it is detached
// from any controlling terminal.
func configureSysProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setsid: true,
	}
}
