package process

import (
	"context"
	"errors"
	"math/rand/v2"
	"strconv"
	"sync"

	"go.uber.org/zap"

	"github.com/temirov/testnode/internal/execshell"
)

const (
	shellNotConfiguredMessageConstant = "process requires a shell session"
	alreadyStartedMessageConstant     = "process already started"
	notStartedMessageConstant         = "process has not been started"
	commandIdentifierLimitConstant    = 10000
	commandIdentifierFieldConstant    = "command_id"
	standardOutputFieldConstant       = "stdout"
	standardErrorFieldConstant        = "stderr"
	exitCodeFieldConstant             = "exit_code"
	commandOutputMessageConstant      = "command output"
)

// ErrShellNotConfigured indicates a process was built without a shell session.
var ErrShellNotConfigured = errors.New(shellNotConfiguredMessageConstant)

// ErrAlreadyStarted indicates Start was called twice on one process.
var ErrAlreadyStarted = errors.New(alreadyStartedMessageConstant)

// ErrNotStarted indicates Wait was called before Start.
var ErrNotStarted = errors.New(notStartedMessageConstant)

// Options tunes one command invocation.
type Options struct {
	UseShellInterpreter  bool
	SuppressErrorLog     bool
	SuppressInfoLog      bool
	WorkingDirectory     string
	EnvironmentVariables map[string]string
}

// Process is a handle on one command started on a shell session.
type Process struct {
	identifier string
	shell      execshell.Shell
	isLinux    bool
	logger     *zap.Logger
	observer   execshell.CommandEventObserver
	formatter  execshell.CommandMessageFormatter

	mutex    sync.Mutex
	command  execshell.ShellCommand
	done     chan struct{}
	result   execshell.ExecutionResult
	runError error
}

// NewCommandIdentifier returns a short random identifier used to correlate log lines.
// Identifiers may collide.
func NewCommandIdentifier() string {
	return strconv.Itoa(rand.IntN(commandIdentifierLimitConstant))
}

// New binds a process to the shell session and platform classification current at call time.
func New(identifier string, shell execshell.Shell, logger *zap.Logger, isLinux bool, observer execshell.CommandEventObserver) (*Process, error) {
	if shell == nil {
		return nil, ErrShellNotConfigured
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if observer == nil {
		observer = execshell.NoopCommandEventObserver{}
	}
	if len(identifier) == 0 {
		identifier = NewCommandIdentifier()
	}
	return &Process{
		identifier: identifier,
		shell:      shell,
		isLinux:    isLinux,
		logger:     logger.With(zap.String(commandIdentifierFieldConstant, identifier)),
		observer:   observer,
	}, nil
}

// Identifier returns the diagnostic command identifier.
func (process *Process) Identifier() string {
	return process.identifier
}

// Command returns the shell command issued by Start.
func (process *Process) Command() execshell.ShellCommand {
	process.mutex.Lock()
	defer process.mutex.Unlock()
	return process.command
}

// Start runs the command line in the background. Use Wait to collect the result.
func (process *Process) Start(executionContext context.Context, commandLine string, options Options) error {
	process.mutex.Lock()
	if process.done != nil {
		process.mutex.Unlock()
		return ErrAlreadyStarted
	}
	command := execshell.ShellCommand{
		CommandLine:          commandLine,
		UseShellInterpreter:  options.UseShellInterpreter,
		WorkingDirectory:     options.WorkingDirectory,
		EnvironmentVariables: options.EnvironmentVariables,
		IsLinux:              process.isLinux,
	}
	process.command = command
	process.done = make(chan struct{})
	process.mutex.Unlock()

	if !options.SuppressInfoLog {
		process.logger.Info(process.formatter.BuildStartedMessage(command))
	}
	process.observer.CommandStarted(command)

	go process.run(executionContext, command, options)
	return nil
}

// Wait blocks until the command exits. A non-zero exit code is reported in the
// result, not as an error; errors are transport failures.
func (process *Process) Wait() (execshell.ExecutionResult, error) {
	process.mutex.Lock()
	done := process.done
	process.mutex.Unlock()
	if done == nil {
		return execshell.ExecutionResult{}, ErrNotStarted
	}
	<-done
	return process.result, process.runError
}

// IsRunning reports whether the command was started and has not yet exited.
func (process *Process) IsRunning() bool {
	process.mutex.Lock()
	done := process.done
	process.mutex.Unlock()
	if done == nil {
		return false
	}
	select {
	case <-done:
		return false
	default:
		return true
	}
}

func (process *Process) run(executionContext context.Context, command execshell.ShellCommand, options Options) {
	defer close(process.done)

	result, runError := process.shell.Run(executionContext, command)
	if runError != nil {
		if !options.SuppressErrorLog {
			process.logger.Error(process.formatter.BuildExecutionFailureMessage(command, runError), zap.Error(runError))
		}
		process.observer.CommandExecutionFailed(command, runError)
		process.runError = runError
		return
	}

	process.logger.Debug(
		commandOutputMessageConstant,
		zap.Int(exitCodeFieldConstant, result.ExitCode),
		zap.String(standardOutputFieldConstant, result.StandardOutput),
		zap.String(standardErrorFieldConstant, result.StandardError),
	)
	if result.ExitCode != 0 && !options.SuppressErrorLog {
		process.logger.Error(process.formatter.BuildFailureMessage(command, result))
	}
	process.observer.CommandCompleted(command, result)
	process.result = result
}
