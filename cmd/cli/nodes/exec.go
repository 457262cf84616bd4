package nodes

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mattn/go-shellwords"
	"github.com/spf13/cobra"

	"github.com/temirov/testnode/internal/process"
)

const (
	execUseConstant                       = "exec -- command [argument ...]"
	execShortDescriptionConstant          = "Run a command on a node"
	execLongDescriptionConstant           = "exec initializes the selected node and runs one command on it, then prints its output. The command exit code becomes the exit status."
	execShellFlagNameConstant             = "shell"
	execShellFlagUsageConstant            = "Run the command through the node's shell interpreter"
	execDirectoryFlagNameConstant         = "cwd"
	execDirectoryFlagUsageConstant        = "Working directory for the command; defaults to the run working directory"
	execEnvironmentFlagNameConstant       = "env"
	execEnvironmentFlagUsageConstant      = "Environment variable for the command, as NAME=VALUE; may repeat"
	execQuietFlagNameConstant             = "quiet"
	execQuietFlagUsageConstant            = "Do not log non-zero exit codes as errors"
	execCommandRequiredMessageConstant    = "a command is required after --"
	execCommandParseErrorTemplateConstant = "cannot parse command: %w"
	commandExitTemplateConstant           = "command on node %s exited with code %d"
)

// CommandExitError carries a non-zero exit code of a command run by exec.
type CommandExitError struct {
	NodeIdentifier string
	ExitCode       int
}

// Error describes the failed command.
func (exitError CommandExitError) Error() string {
	return fmt.Sprintf(commandExitTemplateConstant, exitError.NodeIdentifier, exitError.ExitCode)
}

// ExecCommandBuilder assembles the exec command.
type ExecCommandBuilder struct {
	LoggerProvider  LoggerProvider
	SessionProvider SessionProvider
}

// Build constructs the exec command.
func (builder *ExecCommandBuilder) Build() (*cobra.Command, error) {
	command := &cobra.Command{
		Use:   execUseConstant,
		Short: execShortDescriptionConstant,
		Long:  execLongDescriptionConstant,
		Args:  cobra.ArbitraryArgs,
		RunE:  builder.run,
	}
	command.Flags().Bool(execShellFlagNameConstant, false, execShellFlagUsageConstant)
	command.Flags().String(execDirectoryFlagNameConstant, "", execDirectoryFlagUsageConstant)
	command.Flags().StringToString(execEnvironmentFlagNameConstant, nil, execEnvironmentFlagUsageConstant)
	command.Flags().Bool(execQuietFlagNameConstant, false, execQuietFlagUsageConstant)
	return command, nil
}

func (builder *ExecCommandBuilder) run(command *cobra.Command, arguments []string) error {
	useShell, _ := command.Flags().GetBool(execShellFlagNameConstant)
	workingDirectory, _ := command.Flags().GetString(execDirectoryFlagNameConstant)
	environment, _ := command.Flags().GetStringToString(execEnvironmentFlagNameConstant)
	quiet, _ := command.Flags().GetBool(execQuietFlagNameConstant)

	commandLine, commandLineError := buildCommandLine(arguments, useShell)
	if commandLineError != nil {
		return commandLineError
	}

	logger := resolveLogger(builder.LoggerProvider)
	session, sessionError := resolveSession(builder.SessionProvider)
	if sessionError != nil {
		return sessionError
	}

	target, creationError := session.Node(selectedNodeName(command))
	if creationError != nil {
		return creationError
	}
	defer closeNode(logger, target)

	if initializationError := target.EnsureInitialized(command.Context()); initializationError != nil {
		return initializationError
	}

	if len(strings.TrimSpace(workingDirectory)) == 0 {
		workingDirectory = target.WorkingPath()
	}

	result, executionError := target.Execute(command.Context(), commandLine, process.Options{
		UseShellInterpreter:  useShell,
		SuppressErrorLog:     quiet,
		WorkingDirectory:     workingDirectory,
		EnvironmentVariables: environment,
	})
	if executionError != nil {
		return executionError
	}

	fmt.Fprint(command.OutOrStdout(), result.StandardOutput)
	fmt.Fprint(command.ErrOrStderr(), result.StandardError)
	if result.ExitCode != 0 {
		return CommandExitError{NodeIdentifier: target.Identifier(), ExitCode: result.ExitCode}
	}
	return nil
}

// buildCommandLine joins arguments back into one line. A single argument is taken
// verbatim so quoted shell snippets survive; without the shell interpreter it must
// still split into words.
func buildCommandLine(arguments []string, useShell bool) (string, error) {
	if len(arguments) == 0 {
		return "", errors.New(execCommandRequiredMessageConstant)
	}
	if len(arguments) == 1 {
		commandLine := strings.TrimSpace(arguments[0])
		if len(commandLine) == 0 {
			return "", errors.New(execCommandRequiredMessageConstant)
		}
		if !useShell {
			if _, parseError := shellwords.Parse(commandLine); parseError != nil {
				return "", fmt.Errorf(execCommandParseErrorTemplateConstant, parseError)
			}
		}
		return commandLine, nil
	}

	quotedArguments := make([]string, 0, len(arguments))
	for _, argument := range arguments {
		quotedArguments = append(quotedArguments, quoteArgument(argument))
	}
	return strings.Join(quotedArguments, " "), nil
}

func quoteArgument(argument string) string {
	if len(argument) > 0 && !strings.ContainsAny(argument, " \t\n'\"\\$`|&;<>()*?[]{}~#!") {
		return argument
	}
	return "'" + strings.ReplaceAll(argument, "'", `'"'"'`) + "'"
}
