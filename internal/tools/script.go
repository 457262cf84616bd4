package tools

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/temirov/testnode/internal/execshell"
	"github.com/temirov/testnode/internal/process"
)

const (
	scriptPathRequiredMessageConstant    = "script descriptor path must be provided"
	scriptNameRequiredMessageConstant    = "script descriptor name must be provided"
	scriptCommandRequiredMessageConstant = "script descriptor command must be provided"
	scriptHostRequiredMessageConstant    = "script builder requires a host"
	scriptLoadErrorTemplateConstant      = "failed to load script descriptors: %w"
	scriptParseErrorTemplateConstant     = "failed to parse script descriptors: %w"
	scriptDuplicateTemplateConstant      = "script descriptor %s defined more than once"
	scriptInvalidTemplateConstant        = "script descriptor %d: %w"
	scriptInstallFailedTemplateConstant  = "install command %q exited with code %d: %s"
)

// ErrScriptNameRequired indicates a script descriptor without a name.
var ErrScriptNameRequired = errors.New(scriptNameRequiredMessageConstant)

// ErrScriptCommandRequired indicates a script descriptor without a command.
var ErrScriptCommandRequired = errors.New(scriptCommandRequiredMessageConstant)

// ScriptDescriptor declares a tool implemented by shell commands staged in the node tool directory.
type ScriptDescriptor struct {
	Name            string   `yaml:"name"`
	Description     string   `yaml:"description"`
	Command         string   `yaml:"command"`
	InstallCommands []string `yaml:"installCommands"`
	InstalledCheck  string   `yaml:"installedCheck"`
	LinuxOnly       bool     `yaml:"linuxOnly"`
}

// Validate reports missing required fields.
func (descriptor ScriptDescriptor) Validate() error {
	if len(strings.TrimSpace(descriptor.Name)) == 0 {
		return ErrScriptNameRequired
	}
	if len(strings.TrimSpace(descriptor.Command)) == 0 {
		return ErrScriptCommandRequired
	}
	return nil
}

type scriptDescriptorFile struct {
	Tools []ScriptDescriptor `yaml:"tools"`
}

// LoadScriptDescriptors reads the `tools:` list of a YAML file.
func LoadScriptDescriptors(filePath string) ([]ScriptDescriptor, error) {
	trimmedPath := strings.TrimSpace(filePath)
	if len(trimmedPath) == 0 {
		return nil, errors.New(scriptPathRequiredMessageConstant)
	}

	contentBytes, readError := os.ReadFile(trimmedPath)
	if readError != nil {
		return nil, fmt.Errorf(scriptLoadErrorTemplateConstant, readError)
	}

	var descriptorFile scriptDescriptorFile
	if unmarshalError := yaml.Unmarshal(contentBytes, &descriptorFile); unmarshalError != nil {
		return nil, fmt.Errorf(scriptParseErrorTemplateConstant, unmarshalError)
	}

	seenNames := make(map[string]struct{}, len(descriptorFile.Tools))
	for descriptorIndex, descriptor := range descriptorFile.Tools {
		if validationError := descriptor.Validate(); validationError != nil {
			return nil, fmt.Errorf(scriptInvalidTemplateConstant, descriptorIndex, validationError)
		}
		key := normalizeKey(descriptor.Name)
		if _, duplicate := seenNames[key]; duplicate {
			return nil, fmt.Errorf(scriptDuplicateTemplateConstant, descriptor.Name)
		}
		seenNames[key] = struct{}{}
	}
	return descriptorFile.Tools, nil
}

// ScriptBuilder binds a script descriptor so it can be requested from a registry.
// The zero value is unbound and rejected by the registry.
type ScriptBuilder struct {
	descriptor ScriptDescriptor
	isBound    bool
}

// NewScriptBuilder binds a validated descriptor.
func NewScriptBuilder(descriptor ScriptDescriptor) (*ScriptBuilder, error) {
	if validationError := descriptor.Validate(); validationError != nil {
		return nil, validationError
	}
	descriptor.Name = strings.TrimSpace(descriptor.Name)
	return &ScriptBuilder{descriptor: descriptor, isBound: true}, nil
}

// Descriptor returns the bound descriptor.
func (builder *ScriptBuilder) Descriptor() ScriptDescriptor {
	return builder.descriptor
}

func (builder *ScriptBuilder) bound() bool {
	return builder.isBound
}

// Build produces the script tool for the host.
func (builder *ScriptBuilder) Build(executionContext context.Context, host Host) (*ScriptTool, error) {
	if host == nil {
		return nil, errors.New(scriptHostRequiredMessageConstant)
	}
	isLinux, platformError := host.IsLinux(executionContext)
	if platformError != nil {
		return nil, platformError
	}
	return &ScriptTool{descriptor: builder.descriptor, host: host, isLinux: isLinux}, nil
}

// ScriptTool runs a declared script from its tool directory on the node.
type ScriptTool struct {
	descriptor ScriptDescriptor
	host       Host
	isLinux    bool
}

// Name returns the descriptor name.
func (tool *ScriptTool) Name() string {
	return tool.descriptor.Name
}

// Path returns the tool directory on the node.
func (tool *ScriptTool) Path() string {
	return tool.host.ToolPath(tool.descriptor.Name)
}

// IsInstalled runs the installed check inside the tool directory. Without a check, a script
// with install commands is considered missing and one without is considered present.
func (tool *ScriptTool) IsInstalled(executionContext context.Context) bool {
	check := strings.TrimSpace(tool.descriptor.InstalledCheck)
	if len(check) == 0 {
		return len(tool.descriptor.InstallCommands) == 0
	}
	result, executionError := tool.host.Execute(executionContext, check, process.Options{
		UseShellInterpreter: true,
		SuppressErrorLog:    true,
		WorkingDirectory:    tool.Path(),
	})
	return executionError == nil && result.ExitCode == 0
}

// CanInstall reports whether install commands exist and the platform is supported.
func (tool *ScriptTool) CanInstall() bool {
	if tool.descriptor.LinuxOnly && !tool.isLinux {
		return false
	}
	return len(tool.descriptor.InstallCommands) > 0
}

// Install creates the tool directory and runs the install commands in order, stopping at the first failure.
func (tool *ScriptTool) Install(executionContext context.Context) error {
	toolPath := tool.Path()
	if directoryError := tool.host.CreateDirectory(executionContext, toolPath); directoryError != nil {
		return directoryError
	}
	for _, installCommand := range tool.descriptor.InstallCommands {
		result, executionError := tool.host.Execute(executionContext, installCommand, process.Options{
			UseShellInterpreter: true,
			WorkingDirectory:    toolPath,
		})
		if executionError != nil {
			return executionError
		}
		if result.ExitCode != 0 {
			return fmt.Errorf(scriptInstallFailedTemplateConstant, installCommand, result.ExitCode, strings.TrimSpace(result.StandardError))
		}
	}
	return nil
}

// Run executes the script command with the arguments. The tool directory is the default working directory.
func (tool *ScriptTool) Run(executionContext context.Context, arguments string, options process.Options) (execshell.ExecutionResult, error) {
	if len(strings.TrimSpace(options.WorkingDirectory)) == 0 {
		options.WorkingDirectory = tool.Path()
	}
	options.UseShellInterpreter = true
	return tool.host.Execute(executionContext, joinCommandLine(tool.descriptor.Command, arguments), options)
}
