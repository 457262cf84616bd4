package execshell

import (
	"context"
	"errors"
)

const (
	emptyCommandMessageConstant          = "command line must not be empty"
	shellNotConnectedMessageConstant     = "shell session is not connected"
	directoryPathRequiredMessageConstant = "directory path must be provided"
)

// ErrEmptyCommand indicates a command line with no executable.
var ErrEmptyCommand = errors.New(emptyCommandMessageConstant)

// ErrShellNotConnected indicates a remote operation was attempted before Connect or after Close.
var ErrShellNotConnected = errors.New(shellNotConnectedMessageConstant)

// ErrDirectoryPathRequired indicates Mkdir was called with an empty path.
var ErrDirectoryPathRequired = errors.New(directoryPathRequiredMessageConstant)

// ShellCommand describes one command line to run on a shell session.
type ShellCommand struct {
	CommandLine          string
	UseShellInterpreter  bool
	WorkingDirectory     string
	EnvironmentVariables map[string]string
	IsLinux              bool
}

// ExecutionResult captures the observable results of executing a command.
type ExecutionResult struct {
	StandardOutput string
	StandardError  string
	ExitCode       int
}

// MkdirOptions controls directory creation semantics.
type MkdirOptions struct {
	Parents bool
	ExistOK bool
}

// Shell is the transport executing commands and file operations on a node.
type Shell interface {
	Connect(executionContext context.Context) error
	Run(executionContext context.Context, command ShellCommand) (ExecutionResult, error)
	Mkdir(executionContext context.Context, path string, options MkdirOptions) error
	Close() error
	IsRemote() bool
}
