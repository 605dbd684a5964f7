package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	// Double-clicking the executable must print the service guidance rather
	// than cobra's "this is a command line tool" prompt.
	cobra.MousetrapHelpText = ""

	exitCode := 0
	root := buildRoot(&exitCode)

	if err := root.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	os.Exit(exitCode)
}
