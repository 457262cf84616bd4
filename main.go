package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/temirov/testnode/cmd/cli"
	"github.com/temirov/testnode/cmd/cli/nodes"
)

const (
	exitErrorTemplateConstant = "%v\n"
)

// main executes the testnode command-line application. A failed remote command
// exits with that command's exit code.
func main() {
	executionError := cli.Execute()
	if executionError == nil {
		return
	}

	fmt.Fprintf(os.Stderr, exitErrorTemplateConstant, executionError)
	var exitError nodes.CommandExitError
	if errors.As(executionError, &exitError) {
		os.Exit(exitError.ExitCode)
	}
	os.Exit(1)
}
