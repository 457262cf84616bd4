package node

import (
	"context"
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/temirov/testnode/internal/connection"
	"github.com/temirov/testnode/internal/execshell"
	"github.com/temirov/testnode/internal/nodeerrors"
	"github.com/temirov/testnode/internal/process"
	"github.com/temirov/testnode/internal/runcontext"
	"github.com/temirov/testnode/internal/tools"
)

const (
	toolDirectoryNameConstant             = "tool"
	nodeFieldConstant                     = "node"
	kernelReleaseFieldConstant            = "kernel_release"
	kernelVersionFieldConstant            = "kernel_version"
	hardwarePlatformFieldConstant         = "hardware_platform"
	operatingSystemFieldConstant          = "operating_system"
	workingPathFieldConstant              = "working_path"
	initializingMessageConstant           = "initializing node"
	initializedLinuxMessageConstant       = "initialized Linux node"
	initializedNonLinuxMessageConstant    = "initialized non-Linux node"
	initializationFailedMessageConstant   = "node initialization failed"
	workingPathMessageConstant            = "resolved working path"
	initializationResetMessageConstant    = "initialization reset"
	connectErrorTemplateConstant          = "connect node %s: %w"
	probeErrorTemplateConstant            = "probe platform of node %s: %w"
	expandErrorTemplateConstant           = "expand working path %s on node %s: %w"
	mkdirErrorTemplateConstant            = "create working path %s on node %s: %w"
	incompleteErrorTemplateConstant       = "%w: %w"
	connectionFieldConstant               = "connection"
	remoteWithoutConnectionReasonConstant = "remote node has no connection information"
	localWithConnectionReasonConstant     = "local nodes do not accept connection information"
	attachAfterCreatedTemplateConstant    = "%w: node is %s"
	emptyWorkingPathReasonConstant        = "working path expanded to an empty string"
	workingPathConfigurationFieldConstant = "workingPath"
	resetRequiresFailureMessageConstant   = "only a failed initialization can be reset"
)

// ErrResetNotAllowed indicates ResetInitialization was called on a node without a failed initialization.
var ErrResetNotAllowed = errors.New(resetRequiresFailureMessageConstant)

// Node is a local or remote test target with one shell session and one tool registry.
type Node struct {
	identifier string
	isRemote   bool
	isDefault  bool
	spec       map[string]any

	dependencies Dependencies
	logger       *zap.Logger
	registry     *tools.Registry
	formatter    execshell.CommandMessageFormatter

	mutex               sync.RWMutex
	shell               execshell.Shell
	descriptor          *connection.Descriptor
	state               State
	initializationError error
	platform            Platform
	platformDetected    bool
	workingPath         string
}

// Identifier returns the unique node identifier.
func (node *Node) Identifier() string { return node.identifier }

// IsRemote reports whether commands travel over a remote shell session.
func (node *Node) IsRemote() bool { return node.isRemote }

// IsDefault reports whether the node is the default target of its environment.
func (node *Node) IsDefault() bool { return node.isDefault }

// Spec returns the raw payload the node was created from, if any.
func (node *Node) Spec() map[string]any { return node.spec }

// State returns the current lifecycle state.
func (node *Node) State() State {
	node.mutex.RLock()
	defer node.mutex.RUnlock()
	return node.state
}

// Platform returns the detected platform facts. Facts are empty until initialization completes.
func (node *Node) Platform() Platform {
	node.mutex.RLock()
	defer node.mutex.RUnlock()
	return node.platform
}

// Descriptor returns the attached connection descriptor.
func (node *Node) Descriptor() (connection.Descriptor, bool) {
	node.mutex.RLock()
	defer node.mutex.RUnlock()
	if node.descriptor == nil {
		return connection.Descriptor{}, false
	}
	return *node.descriptor, true
}

// WorkingPath returns the resolved run directory. It is empty until initialization completes.
func (node *Node) WorkingPath() string {
	node.mutex.RLock()
	defer node.mutex.RUnlock()
	return node.workingPath
}

// ToolPath returns the directory staging tool files: <working path>/tool[/<name>].
// Non-Linux remote nodes use backslash separators.
func (node *Node) ToolPath(toolName string) string {
	workingPath := node.WorkingPath()
	segments := []string{workingPath, toolDirectoryNameConstant}
	if trimmedName := strings.TrimSpace(toolName); len(trimmedName) > 0 {
		segments = append(segments, trimmedName)
	}
	if !node.isRemote {
		return filepath.Join(segments...)
	}
	if !node.currentIsLinux() {
		return runcontext.JoinWindowsPath(segments...)
	}
	return path.Join(segments...)
}

// AttachConnection binds the remote shell session to the descriptor. It may be called once, before initialization.
func (node *Node) AttachConnection(descriptor connection.Descriptor) error {
	if !node.isRemote {
		return nodeerrors.ConfigurationError{Field: connectionFieldConstant, Reason: localWithConnectionReasonConstant}
	}
	node.mutex.Lock()
	defer node.mutex.Unlock()
	if node.descriptor != nil {
		return nodeerrors.ErrAlreadyConnected
	}
	if node.state != StateCreated {
		return fmt.Errorf(attachAfterCreatedTemplateConstant, nodeerrors.ErrAlreadyConnected, node.state)
	}
	node.descriptor = &descriptor
	node.shell = node.dependencies.RemoteShellFactory(descriptor)
	return nil
}

// EnsureInitialized connects the shell, probes the platform, and creates the working directory.
// It runs once; calls made while initialization is in progress return immediately so bootstrap
// tools can issue commands through the node. A failed initialization is not retried: later calls
// return ErrInitializationIncomplete wrapping the original failure until ResetInitialization.
func (node *Node) EnsureInitialized(executionContext context.Context) error {
	node.mutex.Lock()
	switch node.state {
	case StateReady:
		node.mutex.Unlock()
		return nil
	case StateClosed:
		node.mutex.Unlock()
		return nodeerrors.ErrNodeClosed
	case StateInitializing:
		initializationError := node.initializationError
		node.mutex.Unlock()
		if initializationError != nil {
			return fmt.Errorf(incompleteErrorTemplateConstant, nodeerrors.ErrInitializationIncomplete, initializationError)
		}
		return nil
	}
	node.state = StateInitializing
	node.mutex.Unlock()

	initializationError := node.initialize(executionContext)

	node.mutex.Lock()
	if initializationError != nil {
		node.initializationError = initializationError
	} else {
		node.state = StateReady
	}
	node.mutex.Unlock()

	node.dependencies.Metrics.RecordInitialization(node.identifier, initializationError == nil)
	if initializationError != nil {
		node.logger.Error(initializationFailedMessageConstant, zap.Error(initializationError))
	}
	return initializationError
}

// ResetInitialization returns a node whose initialization failed to Created so it can be retried.
func (node *Node) ResetInitialization() error {
	node.mutex.Lock()
	defer node.mutex.Unlock()
	if node.state != StateInitializing || node.initializationError == nil {
		return ErrResetNotAllowed
	}
	node.state = StateCreated
	node.initializationError = nil
	node.platform = Platform{}
	node.platformDetected = false
	node.workingPath = ""
	node.logger.Debug(initializationResetMessageConstant)
	return nil
}

// IsLinux initializes the node and reports its classification. While initialization is in
// progress the node is assumed to be Linux.
func (node *Node) IsLinux(executionContext context.Context) (bool, error) {
	if initializationError := node.EnsureInitialized(executionContext); initializationError != nil {
		return false, initializationError
	}
	return node.currentIsLinux(), nil
}

// Execute runs the command and waits for it to exit.
func (node *Node) Execute(executionContext context.Context, commandLine string, options process.Options) (execshell.ExecutionResult, error) {
	commandProcess, startError := node.ExecuteAsync(executionContext, commandLine, options)
	if startError != nil {
		return execshell.ExecutionResult{}, startError
	}
	return commandProcess.Wait()
}

// ExecuteAsync starts the command and returns its handle without waiting.
func (node *Node) ExecuteAsync(executionContext context.Context, commandLine string, options process.Options) (*process.Process, error) {
	if initializationError := node.EnsureInitialized(executionContext); initializationError != nil {
		return nil, initializationError
	}
	shell, shellError := node.currentShell()
	if shellError != nil {
		return nil, shellError
	}
	commandProcess, creationError := process.New(
		process.NewCommandIdentifier(),
		shell,
		node.logger,
		node.currentIsLinux(),
		node.dependencies.Metrics.CommandObserver(node.identifier),
	)
	if creationError != nil {
		return nil, creationError
	}
	if startError := commandProcess.Start(executionContext, commandLine, options); startError != nil {
		return nil, startError
	}
	return commandProcess, nil
}

// CreateDirectory creates the directory and its parents on the node, tolerating an existing directory.
func (node *Node) CreateDirectory(executionContext context.Context, directoryPath string) error {
	if initializationError := node.EnsureInitialized(executionContext); initializationError != nil {
		return initializationError
	}
	return node.mkdir(executionContext, directoryPath)
}

// Tool resolves a tool on the node, installing it on first use.
func (node *Node) Tool(executionContext context.Context, request tools.Request) (tools.Tool, error) {
	if initializationError := node.EnsureInitialized(executionContext); initializationError != nil {
		return nil, initializationError
	}
	return node.registry.Resolve(executionContext, request)
}

// Close tears down the shell session. The node cannot be used afterwards. Closing while
// commands are outstanding is not supported.
func (node *Node) Close() error {
	node.mutex.Lock()
	if node.state == StateClosed {
		node.mutex.Unlock()
		return nil
	}
	node.state = StateClosed
	shell := node.shell
	node.mutex.Unlock()

	if shell == nil {
		return nil
	}
	return shell.Close()
}

func (node *Node) initialize(executionContext context.Context) error {
	node.logger.Debug(initializingMessageConstant)

	shell, shellError := node.currentShell()
	if shellError != nil {
		return shellError
	}
	if connectError := shell.Connect(executionContext); connectError != nil {
		return fmt.Errorf(connectErrorTemplateConstant, node.identifier, connectError)
	}

	uname, resolutionError := tools.ResolveAs[*tools.Uname](executionContext, node, tools.ByType(tools.UnameDefinition))
	if resolutionError != nil {
		return fmt.Errorf(probeErrorTemplateConstant, node.identifier, resolutionError)
	}
	facts, probeError := uname.LinuxInformation(executionContext, true)
	if probeError != nil {
		return fmt.Errorf(probeErrorTemplateConstant, node.identifier, probeError)
	}
	platform := Platform{
		KernelRelease:    facts.KernelRelease,
		KernelVersion:    facts.KernelVersion,
		HardwarePlatform: facts.HardwarePlatform,
		OperatingSystem:  facts.OperatingSystem,
		IsLinux:          facts.IsLinux(),
	}
	node.mutex.Lock()
	node.platform = platform
	node.platformDetected = true
	node.mutex.Unlock()

	if platform.IsLinux {
		node.logger.Info(
			initializedLinuxMessageConstant,
			zap.String(kernelReleaseFieldConstant, platform.KernelRelease),
			zap.String(kernelVersionFieldConstant, platform.KernelVersion),
			zap.String(hardwarePlatformFieldConstant, platform.HardwarePlatform),
		)
	} else {
		node.logger.Info(initializedNonLinuxMessageConstant, zap.String(operatingSystemFieldConstant, platform.OperatingSystem))
	}

	workingPath, workingPathError := node.resolveWorkingPath(executionContext, platform.IsLinux)
	if workingPathError != nil {
		return workingPathError
	}
	node.mutex.Lock()
	node.workingPath = workingPath
	node.mutex.Unlock()
	node.logger.Debug(workingPathMessageConstant, zap.String(workingPathFieldConstant, workingPath))

	if mkdirError := node.mkdir(executionContext, workingPath); mkdirError != nil {
		return fmt.Errorf(mkdirErrorTemplateConstant, workingPath, node.identifier, mkdirError)
	}
	return nil
}

func (node *Node) resolveWorkingPath(executionContext context.Context, isLinux bool) (string, error) {
	runContext := node.dependencies.RunContext
	if !node.isRemote {
		return runContext.LocalRunPath(), nil
	}

	template := runContext.RemoteWorkingPathTemplate(isLinux)
	echo, resolutionError := tools.ResolveAs[*tools.Echo](executionContext, node, tools.ByType(tools.EchoDefinition))
	if resolutionError != nil {
		return "", fmt.Errorf(expandErrorTemplateConstant, template, node.identifier, resolutionError)
	}
	expanded, expandError := echo.Expand(executionContext, template)
	if expandError != nil {
		return "", fmt.Errorf(expandErrorTemplateConstant, template, node.identifier, expandError)
	}
	if len(expanded) == 0 {
		return "", nodeerrors.ConfigurationError{Field: workingPathConfigurationFieldConstant, Reason: emptyWorkingPathReasonConstant}
	}
	return expanded, nil
}

func (node *Node) mkdir(executionContext context.Context, directoryPath string) error {
	shell, shellError := node.currentShell()
	if shellError != nil {
		return shellError
	}
	node.logger.Debug(node.formatter.BuildDirectoryMessage(directoryPath, nil, false))
	if mkdirError := shell.Mkdir(executionContext, directoryPath, execshell.MkdirOptions{Parents: true, ExistOK: true}); mkdirError != nil {
		node.logger.Debug(node.formatter.BuildDirectoryMessage(directoryPath, mkdirError, false))
		return mkdirError
	}
	return nil
}

func (node *Node) currentShell() (execshell.Shell, error) {
	node.mutex.RLock()
	defer node.mutex.RUnlock()
	if node.shell == nil {
		return nil, nodeerrors.ConfigurationError{Field: connectionFieldConstant, Reason: remoteWithoutConnectionReasonConstant}
	}
	return node.shell, nil
}

// currentIsLinux defaults to true until the probe has classified the node.
func (node *Node) currentIsLinux() bool {
	node.mutex.RLock()
	defer node.mutex.RUnlock()
	if !node.platformDetected {
		return true
	}
	return node.platform.IsLinux
}
