package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/temirov/testnode/internal/execshell"
	"github.com/temirov/testnode/internal/process"
)

const (
	commandArgumentSeparatorConstant = " "
	commandLookupTemplateConstant    = "command -v %s"
)

// Tool is a capability installed on a node and resolved through a Registry.
type Tool interface {
	Name() string
	IsInstalled(executionContext context.Context) bool
	CanInstall() bool
	Install(executionContext context.Context) error
}

// Initializer is implemented by tools needing setup after construction and before the install check.
type Initializer interface {
	Initialize(executionContext context.Context) error
}

// Host is the node a tool runs on.
type Host interface {
	Identifier() string
	IsRemote() bool
	IsLinux(executionContext context.Context) (bool, error)
	Execute(executionContext context.Context, commandLine string, options process.Options) (execshell.ExecutionResult, error)
	CreateDirectory(executionContext context.Context, path string) error
	ToolPath(toolName string) string
	Tool(executionContext context.Context, request Request) (Tool, error)
}

// Factory constructs a tool bound to a host.
type Factory func(executionContext context.Context, host Host) (Tool, error)

// Definition names a compiled tool type and how to construct it.
type Definition struct {
	Key     string
	Factory Factory
}

// commandTool runs a fixed executable on its host.
type commandTool struct {
	host    Host
	command string
}

// Command returns the executable the tool prefixes to its arguments.
func (tool commandTool) Command() string {
	return tool.command
}

// Run executes the tool command with the provided arguments.
func (tool commandTool) Run(executionContext context.Context, arguments string, options process.Options) (execshell.ExecutionResult, error) {
	return tool.host.Execute(executionContext, joinCommandLine(tool.command, arguments), options)
}

func (tool commandTool) commandAvailable(executionContext context.Context) bool {
	result, executionError := tool.host.Execute(
		executionContext,
		fmt.Sprintf(commandLookupTemplateConstant, tool.command),
		process.Options{UseShellInterpreter: true, SuppressErrorLog: true},
	)
	return executionError == nil && result.ExitCode == 0
}

func joinCommandLine(command string, arguments string) string {
	trimmedArguments := strings.TrimSpace(arguments)
	if len(trimmedArguments) == 0 {
		return command
	}
	return command + commandArgumentSeparatorConstant + trimmedArguments
}

func normalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}
