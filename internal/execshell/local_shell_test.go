package execshell_test

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/testnode/internal/execshell"
)

func skipWithoutPosixShell(testInstance *testing.T) {
	testInstance.Helper()
	if runtime.GOOS == "windows" {
		testInstance.Skip("posix shell required")
	}
}

func TestLocalShellRunBehavior(testInstance *testing.T) {
	skipWithoutPosixShell(testInstance)

	testCases := []struct {
		name             string
		command          execshell.ShellCommand
		expectedOutput   string
		expectedExitCode int
	}{
		{
			name:             "argument_splitting",
			command:          execshell.ShellCommand{CommandLine: "echo hi"},
			expectedOutput:   "hi\n",
			expectedExitCode: 0,
		},
		{
			name:             "quoted_arguments",
			command:          execshell.ShellCommand{CommandLine: `echo "a  b"`},
			expectedOutput:   "a  b\n",
			expectedExitCode: 0,
		},
		{
			name:             "interpreter_expands_variables",
			command:          execshell.ShellCommand{CommandLine: "echo $TESTNODE_VALUE", UseShellInterpreter: true, EnvironmentVariables: map[string]string{"TESTNODE_VALUE": "expanded"}},
			expectedOutput:   "expanded\n",
			expectedExitCode: 0,
		},
		{
			name:             "non_zero_exit",
			command:          execshell.ShellCommand{CommandLine: "exit 3", UseShellInterpreter: true},
			expectedOutput:   "",
			expectedExitCode: 3,
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			shell := execshell.NewLocalShell()
			require.NoError(testInstance, shell.Connect(context.Background()))

			result, runError := shell.Run(context.Background(), testCase.command)
			require.NoError(testInstance, runError)
			require.Equal(testInstance, testCase.expectedOutput, result.StandardOutput)
			require.Equal(testInstance, testCase.expectedExitCode, result.ExitCode)
		})
	}
}

func TestLocalShellRunHonorsWorkingDirectory(testInstance *testing.T) {
	skipWithoutPosixShell(testInstance)

	workingDirectory := testInstance.TempDir()
	shell := execshell.NewLocalShell()

	result, runError := shell.Run(context.Background(), execshell.ShellCommand{CommandLine: "pwd", WorkingDirectory: workingDirectory})
	require.NoError(testInstance, runError)

	resolvedDirectory, resolveError := filepath.EvalSymlinks(workingDirectory)
	require.NoError(testInstance, resolveError)
	require.Contains(testInstance, []string{workingDirectory + "\n", resolvedDirectory + "\n"}, result.StandardOutput)
}

func TestLocalShellRunRejectsEmptyCommand(testInstance *testing.T) {
	shell := execshell.NewLocalShell()

	_, runError := shell.Run(context.Background(), execshell.ShellCommand{CommandLine: "   "})
	require.ErrorIs(testInstance, runError, execshell.ErrEmptyCommand)
}

func TestLocalShellRunSurfacesMissingExecutable(testInstance *testing.T) {
	shell := execshell.NewLocalShell()

	_, runError := shell.Run(context.Background(), execshell.ShellCommand{CommandLine: "testnode-definitely-missing-binary"})
	require.Error(testInstance, runError)
}

func TestLocalShellMkdirSemantics(testInstance *testing.T) {
	testCases := []struct {
		name          string
		precreate     bool
		relativePath  string
		options       execshell.MkdirOptions
		expectFailure bool
	}{
		{
			name:         "parents_exist_ok_creates_tree",
			relativePath: filepath.Join("a", "b", "c"),
			options:      execshell.MkdirOptions{Parents: true, ExistOK: true},
		},
		{
			name:         "parents_exist_ok_tolerates_existing",
			precreate:    true,
			relativePath: "existing",
			options:      execshell.MkdirOptions{Parents: true, ExistOK: true},
		},
		{
			name:          "parents_without_exist_ok_rejects_existing",
			precreate:     true,
			relativePath:  "existing",
			options:       execshell.MkdirOptions{Parents: true},
			expectFailure: true,
		},
		{
			name:          "no_parents_requires_parent",
			relativePath:  filepath.Join("missing", "child"),
			options:       execshell.MkdirOptions{ExistOK: true},
			expectFailure: true,
		},
		{
			name:         "exist_ok_without_parents",
			precreate:    true,
			relativePath: "existing",
			options:      execshell.MkdirOptions{ExistOK: true},
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			rootDirectory := testInstance.TempDir()
			targetPath := filepath.Join(rootDirectory, testCase.relativePath)
			if testCase.precreate {
				require.NoError(testInstance, os.MkdirAll(targetPath, 0o755))
			}

			mkdirError := execshell.NewLocalShell().Mkdir(context.Background(), targetPath, testCase.options)
			if testCase.expectFailure {
				require.Error(testInstance, mkdirError)
				return
			}
			require.NoError(testInstance, mkdirError)
			require.DirExists(testInstance, targetPath)
		})
	}
}

func TestLocalShellMkdirRequiresPath(testInstance *testing.T) {
	mkdirError := execshell.NewLocalShell().Mkdir(context.Background(), " ", execshell.MkdirOptions{Parents: true})
	require.ErrorIs(testInstance, mkdirError, execshell.ErrDirectoryPathRequired)
}
