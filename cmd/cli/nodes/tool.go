package nodes

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/temirov/testnode/internal/tools"
)

const (
	toolUseConstant                 = "tool <name>"
	toolShortDescriptionConstant    = "Resolve a tool on a node, installing it when missing"
	toolLongDescriptionConstant     = "tool resolves a built-in tool (uname, echo, systemctl) or a script tool from tools.scripts_path on the selected node. Missing script tools are installed under the node's tool directory."
	toolNameRequiredMessageConstant = "tool name must be provided"
	toolResolvedTemplateConstant    = "%s\t%s\tinstalled\n"
	toolPathTemplateConstant        = "path=%s\n"
	unameFactsTemplateConstant      = "kernel_release=%s\nkernel_version=%s\nhardware_platform=%s\noperating_system=%s\n"
)

// ToolCommandBuilder assembles the tool command.
type ToolCommandBuilder struct {
	LoggerProvider  LoggerProvider
	SessionProvider SessionProvider
}

// Build constructs the tool command.
func (builder *ToolCommandBuilder) Build() (*cobra.Command, error) {
	command := &cobra.Command{
		Use:   toolUseConstant,
		Short: toolShortDescriptionConstant,
		Long:  toolLongDescriptionConstant,
		Args:  cobra.MaximumNArgs(1),
		RunE:  builder.run,
	}
	return command, nil
}

func (builder *ToolCommandBuilder) run(command *cobra.Command, arguments []string) error {
	if len(arguments) == 0 {
		_ = command.Help()
		return errors.New(toolNameRequiredMessageConstant)
	}

	logger := resolveLogger(builder.LoggerProvider)
	session, sessionError := resolveSession(builder.SessionProvider)
	if sessionError != nil {
		return sessionError
	}

	request, requestError := session.ToolRequest(arguments[0])
	if requestError != nil {
		return requestError
	}

	target, creationError := session.Node(selectedNodeName(command))
	if creationError != nil {
		return creationError
	}
	defer closeNode(logger, target)

	resolved, resolutionError := target.Tool(command.Context(), request)
	if resolutionError != nil {
		return resolutionError
	}

	output := command.OutOrStdout()
	fmt.Fprintf(output, toolResolvedTemplateConstant, target.Identifier(), resolved.Name())
	switch typed := resolved.(type) {
	case *tools.ScriptTool:
		fmt.Fprintf(output, toolPathTemplateConstant, typed.Path())
	case *tools.Uname:
		facts, factsError := typed.LinuxInformation(command.Context(), false)
		if factsError != nil {
			return factsError
		}
		fmt.Fprintf(output, unameFactsTemplateConstant, facts.KernelRelease, facts.KernelVersion, facts.HardwarePlatform, facts.OperatingSystem)
	}
	return nil
}
