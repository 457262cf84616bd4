package execshell

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildStartedMessageIncludesWorkingDirectory(t *testing.T) {
	formatter := CommandMessageFormatter{}
	command := ShellCommand{
		CommandLine:      "uname -vrio",
		WorkingDirectory: "/home/root/lisa_working/run",
	}

	message := formatter.BuildStartedMessage(command)

	require.Equal(t, "Running uname -vrio (in /home/root/lisa_working/run)", message)
}

func TestBuildFailureMessageMarksInterpreterAndStandardError(t *testing.T) {
	formatter := CommandMessageFormatter{}
	command := ShellCommand{CommandLine: "echo $HOME", UseShellInterpreter: true}

	message := formatter.BuildFailureMessage(command, ExecutionResult{ExitCode: 2, StandardError: "boom\n"})

	require.Equal(t, "echo $HOME (via shell) failed with exit code 2: boom", message)
}

func TestBuildExecutionFailureMessageHandlesEmptyCommand(t *testing.T) {
	formatter := CommandMessageFormatter{}

	message := formatter.BuildExecutionFailureMessage(ShellCommand{}, errors.New("connection reset"))

	require.Equal(t, "<empty command> failed: connection reset", message)
}

func TestBuildDirectoryMessageStages(t *testing.T) {
	formatter := CommandMessageFormatter{}

	require.Equal(t, "Creating directory /tmp/run", formatter.BuildDirectoryMessage("/tmp/run", nil, false))
	require.Equal(t, "Created directory /tmp/run", formatter.BuildDirectoryMessage("/tmp/run", nil, true))
	require.Equal(t, "Unable to create directory /tmp/run: denied", formatter.BuildDirectoryMessage("/tmp/run", errors.New("denied"), false))
}
