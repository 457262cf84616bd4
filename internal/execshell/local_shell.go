package execshell

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"

	"github.com/mattn/go-shellwords"
)

const (
	environmentAssignmentSeparatorConstant = "="
	environmentAssignmentTemplateConstant  = "%s%s%s"
	posixInterpreterPathConstant           = "/bin/sh"
	posixInterpreterFlagConstant           = "-c"
	windowsInterpreterNameConstant         = "cmd"
	windowsInterpreterFlagConstant         = "/c"
	windowsOperatingSystemConstant         = "windows"
	commandParseErrorTemplateConstant      = "unable to parse command line %q: %w"
	directoryExistsErrorTemplateConstant   = "directory %s already exists: %w"
	localDirectoryPermissionsConstant      = 0o755
)

// LocalShell executes commands on the current machine using os/exec.
type LocalShell struct{}

// NewLocalShell constructs a shell backed by os/exec.
func NewLocalShell() *LocalShell {
	return &LocalShell{}
}

// Connect is a no-op for local execution.
func (shell *LocalShell) Connect(context.Context) error {
	return nil
}

// IsRemote reports false for the local shell.
func (shell *LocalShell) IsRemote() bool {
	return false
}

// Close is a no-op for local execution.
func (shell *LocalShell) Close() error {
	return nil
}

// Run executes the supplied command line and captures its output.
func (shell *LocalShell) Run(executionContext context.Context, command ShellCommand) (ExecutionResult, error) {
	commandArguments, argumentsError := shell.buildArguments(command)
	if argumentsError != nil {
		return ExecutionResult{}, argumentsError
	}

	executable := exec.CommandContext(executionContext, commandArguments[0], commandArguments[1:]...)

	if len(command.WorkingDirectory) > 0 {
		executable.Dir = command.WorkingDirectory
	}

	if len(command.EnvironmentVariables) > 0 {
		mergedEnvironment := append([]string{}, os.Environ()...)
		for environmentKey, environmentValue := range command.EnvironmentVariables {
			mergedEnvironment = append(mergedEnvironment, fmt.Sprintf(environmentAssignmentTemplateConstant, environmentKey, environmentAssignmentSeparatorConstant, environmentValue))
		}
		executable.Env = mergedEnvironment
	}

	var standardOutputBuffer bytes.Buffer
	var standardErrorBuffer bytes.Buffer
	executable.Stdout = &standardOutputBuffer
	executable.Stderr = &standardErrorBuffer

	runError := executable.Run()
	if runError != nil {
		exitError := &exec.ExitError{}
		if errors.As(runError, &exitError) {
			return ExecutionResult{
				StandardOutput: standardOutputBuffer.String(),
				StandardError:  standardErrorBuffer.String(),
				ExitCode:       exitError.ExitCode(),
			}, nil
		}
		return ExecutionResult{}, runError
	}

	return ExecutionResult{
		StandardOutput: standardOutputBuffer.String(),
		StandardError:  standardErrorBuffer.String(),
		ExitCode:       0,
	}, nil
}

// Mkdir creates a local directory honoring the parents and exist-ok options.
func (shell *LocalShell) Mkdir(_ context.Context, path string, options MkdirOptions) error {
	trimmedPath := strings.TrimSpace(path)
	if len(trimmedPath) == 0 {
		return ErrDirectoryPathRequired
	}

	if options.Parents {
		if info, statError := os.Stat(trimmedPath); statError == nil && info.IsDir() && !options.ExistOK {
			return fmt.Errorf(directoryExistsErrorTemplateConstant, trimmedPath, os.ErrExist)
		}
		return os.MkdirAll(trimmedPath, localDirectoryPermissionsConstant)
	}

	mkdirError := os.Mkdir(trimmedPath, localDirectoryPermissionsConstant)
	if mkdirError != nil && options.ExistOK && errors.Is(mkdirError, os.ErrExist) {
		return nil
	}
	return mkdirError
}

func (shell *LocalShell) buildArguments(command ShellCommand) ([]string, error) {
	commandLine := strings.TrimSpace(command.CommandLine)
	if len(commandLine) == 0 {
		return nil, ErrEmptyCommand
	}

	if command.UseShellInterpreter {
		if runtime.GOOS == windowsOperatingSystemConstant {
			return []string{windowsInterpreterNameConstant, windowsInterpreterFlagConstant, commandLine}, nil
		}
		return []string{posixInterpreterPathConstant, posixInterpreterFlagConstant, commandLine}, nil
	}

	parsedArguments, parseError := shellwords.Parse(commandLine)
	if parseError != nil {
		return nil, fmt.Errorf(commandParseErrorTemplateConstant, commandLine, parseError)
	}
	if len(parsedArguments) == 0 {
		return nil, ErrEmptyCommand
	}
	return parsedArguments, nil
}
