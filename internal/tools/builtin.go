package tools

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/temirov/testnode/internal/nodeerrors"
	"github.com/temirov/testnode/internal/process"
)

const (
	// UnameKeyConstant is the registry key of the platform probe tool.
	UnameKeyConstant = "uname"
	// EchoKeyConstant is the registry key of the shell-side expansion tool.
	EchoKeyConstant = "echo"
	// SystemctlKeyConstant is the registry key of the systemd service manager tool.
	SystemctlKeyConstant = "systemctl"

	unameArgumentsConstant                = "-vrio"
	linuxOperatingSystemMarkerConstant    = "Linux"
	unameKernelReleaseGroupConstant       = "kernel_release"
	unameKernelVersionGroupConstant       = "kernel_version"
	unamePlatformGroupConstant            = "platform"
	unameOperatingSystemGroupConstant     = "os"
	echoFailedTemplateConstant            = "echo exited with code %d: %s"
	builtinNotInstallableTemplateConstant = "%s cannot be installed by the harness"
	unexpectedToolTypeTemplateConstant    = "tool %s has type %T"
)

var unameOutputPattern = regexp.MustCompile(`^(?P<kernel_release>[^ ]*?) (?P<kernel_version>[\w\W]*) (?P<platform>[\w\W]+?) (?P<os>[\w\W]+?)$`)

// UnameDefinition resolves the platform probe tool.
var UnameDefinition = Definition{Key: UnameKeyConstant, Factory: func(_ context.Context, host Host) (Tool, error) {
	return &Uname{commandTool: commandTool{host: host, command: UnameKeyConstant}}, nil
}}

// EchoDefinition resolves the shell-side variable expansion tool.
var EchoDefinition = Definition{Key: EchoKeyConstant, Factory: func(_ context.Context, host Host) (Tool, error) {
	return &Echo{commandTool: commandTool{host: host, command: EchoKeyConstant}}, nil
}}

// SystemctlDefinition resolves the systemd service manager tool.
var SystemctlDefinition = Definition{Key: SystemctlKeyConstant, Factory: func(_ context.Context, host Host) (Tool, error) {
	return &Systemctl{commandTool: commandTool{host: host, command: SystemctlKeyConstant}}, nil
}}

// BuiltinDefinitions lists the tools every node can resolve without a script descriptor.
func BuiltinDefinitions() []Definition {
	return []Definition{UnameDefinition, EchoDefinition, SystemctlDefinition}
}

// FindBuiltinDefinition returns the built-in definition registered under key, ignoring case.
func FindBuiltinDefinition(key string) (Definition, bool) {
	normalizedKey := normalizeKey(key)
	for _, definition := range BuiltinDefinitions() {
		if definition.Key == normalizedKey {
			return definition, true
		}
	}
	return Definition{}, false
}

// ResolveAs resolves the request and asserts the concrete tool type.
func ResolveAs[T Tool](executionContext context.Context, host Host, request Request) (T, error) {
	var zero T
	resolved, resolutionError := host.Tool(executionContext, request)
	if resolutionError != nil {
		return zero, resolutionError
	}
	typed, ok := resolved.(T)
	if !ok {
		return zero, nodeerrors.InvalidToolRequestError{Reason: fmt.Sprintf(unexpectedToolTypeTemplateConstant, resolved.Name(), resolved)}
	}
	return typed, nil
}

// UnameFacts holds the platform facts reported by uname.
type UnameFacts struct {
	KernelRelease    string
	KernelVersion    string
	HardwarePlatform string
	OperatingSystem  string
}

// IsLinux reports whether the facts describe a Linux kernel.
func (facts UnameFacts) IsLinux() bool {
	return len(facts.KernelRelease) > 0 && strings.Contains(facts.OperatingSystem, linuxOperatingSystemMarkerConstant)
}

// ParseUnameOutput extracts platform facts from `uname -vrio` output. Unrecognized output yields empty facts.
func ParseUnameOutput(output string) UnameFacts {
	match := unameOutputPattern.FindStringSubmatch(strings.TrimSpace(output))
	if match == nil {
		return UnameFacts{}
	}
	return UnameFacts{
		KernelRelease:    match[unameOutputPattern.SubexpIndex(unameKernelReleaseGroupConstant)],
		KernelVersion:    match[unameOutputPattern.SubexpIndex(unameKernelVersionGroupConstant)],
		HardwarePlatform: match[unameOutputPattern.SubexpIndex(unamePlatformGroupConstant)],
		OperatingSystem:  match[unameOutputPattern.SubexpIndex(unameOperatingSystemGroupConstant)],
	}
}

// Uname probes kernel and platform facts. It is assumed present on every node.
type Uname struct {
	commandTool
}

// Name returns the tool key.
func (uname *Uname) Name() string { return UnameKeyConstant }

// IsInstalled always reports true.
func (uname *Uname) IsInstalled(context.Context) bool { return true }

// CanInstall always reports false.
func (uname *Uname) CanInstall() bool { return false }

// Install is not supported.
func (uname *Uname) Install(context.Context) error {
	return fmt.Errorf(builtinNotInstallableTemplateConstant, UnameKeyConstant)
}

// LinuxInformation runs the probe. A non-zero exit or unrecognized output yields empty facts;
// only transport failures are returned as errors.
func (uname *Uname) LinuxInformation(executionContext context.Context, suppressErrorLog bool) (UnameFacts, error) {
	result, executionError := uname.Run(executionContext, unameArgumentsConstant, process.Options{SuppressErrorLog: suppressErrorLog})
	if executionError != nil {
		return UnameFacts{}, executionError
	}
	if result.ExitCode != 0 {
		return UnameFacts{}, nil
	}
	return ParseUnameOutput(result.StandardOutput), nil
}

// Echo prints its arguments through the node shell, expanding environment variables.
type Echo struct {
	commandTool
}

// Name returns the tool key.
func (echo *Echo) Name() string { return EchoKeyConstant }

// IsInstalled always reports true.
func (echo *Echo) IsInstalled(context.Context) bool { return true }

// CanInstall always reports false.
func (echo *Echo) CanInstall() bool { return false }

// Install is not supported.
func (echo *Echo) Install(context.Context) error {
	return fmt.Errorf(builtinNotInstallableTemplateConstant, EchoKeyConstant)
}

// Expand returns the text after shell-side variable expansion, trimmed of surrounding whitespace.
func (echo *Echo) Expand(executionContext context.Context, text string) (string, error) {
	result, executionError := echo.Run(executionContext, text, process.Options{UseShellInterpreter: true})
	if executionError != nil {
		return "", executionError
	}
	if result.ExitCode != 0 {
		return "", fmt.Errorf(echoFailedTemplateConstant, result.ExitCode, strings.TrimSpace(result.StandardError))
	}
	return strings.TrimSpace(result.StandardOutput), nil
}

// Systemctl wraps the systemd service manager. It is never installed by the harness.
type Systemctl struct {
	commandTool
}

// Name returns the tool key.
func (systemctl *Systemctl) Name() string { return SystemctlKeyConstant }

// IsInstalled reports whether systemctl is on the node PATH.
func (systemctl *Systemctl) IsInstalled(executionContext context.Context) bool {
	return systemctl.commandAvailable(executionContext)
}

// CanInstall always reports false.
func (systemctl *Systemctl) CanInstall() bool { return false }

// Install is not supported.
func (systemctl *Systemctl) Install(context.Context) error {
	return fmt.Errorf(builtinNotInstallableTemplateConstant, SystemctlKeyConstant)
}
