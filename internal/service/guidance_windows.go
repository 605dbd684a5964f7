//go:build windows

package service

import (
	"fmt"
	"io"
)

// PrintGuidance writes the operator commands for installing, starting and
// removing the service. It is shown when the program is run directly.
func PrintGuidance(w io.Writer, name, executable, configPath string) {
	fmt.Fprintln(w, "This is a Windows service, it cannot be started directly (it has to be installed).")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "To start, install or uninstall run (as Administrator) one of the following commands:")
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  net start %s\n", name)
	fmt.Fprintf(w, "  sc create %s binPath= \"%s %s %s\"\n", name, executable, name, configPath)
	fmt.Fprintf(w, "  sc delete %s\n", name)
}
