//go:build !windows

package service

import (
	"fmt"
	"io"
)

// PrintGuidance writes the commands that install, start and remove the
// service with the system service manager. It is shown when the program is
// run from an interactive session.
func PrintGuidance(w io.Writer, name, executable, configPath string) {
	fmt.Fprintln(w, "This is a system service, it cannot be started directly (it has to be installed).")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "To install, start or uninstall run (as root) one of the following commands:")
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  %s install %s %s\n", executable, name, configPath)
	fmt.Fprintf(w, "  %s start %s\n", executable, name)
	fmt.Fprintf(w, "  %s uninstall %s\n", executable, name)
}
