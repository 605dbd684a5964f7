//go:build windows

package launcher

import (
	"os/exec"
	"syscall"
)

// Windows creation flags
const (
	CREATE_NO_WINDOW = 0x08000000
	DETACHED_PROCESS = 0x00000008
)

// configureSysProcAttr detaches the child from the service's (absent)
// console and keeps it from opening a window of its own.
func configureSysProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		HideWindow:    true,
		CreationFlags: CREATE_NO_WINDOW | DETACHED_PROCESS,
	}
}
