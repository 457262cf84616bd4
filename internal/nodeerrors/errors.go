package nodeerrors

import (
	"errors"
	"fmt"
)

const (
	alreadyConnectedMessageConstant         = "node connection information is already set"
	initializationIncompleteMessageConstant = "node initialization did not complete"
	nodeClosedMessageConstant               = "node is closed"
	configurationErrorTemplateConstant      = "invalid configuration: %s"
	configurationFieldErrorTemplateConstant = "invalid configuration for %s: %s"
	toolUnsupportedTemplateConstant         = "tool %s does not support install on Node(%s), Linux(%t), Remote(%t)"
	toolInstallTemplateConstant             = "tool %s failed to install on Node(%s)"
	toolInstallCauseTemplateConstant        = "tool %s failed to install on Node(%s): %v"
	unknownToolTemplateConstant             = "tool %s cannot be found; resolve it by definition or script before looking it up by name"
	invalidToolRequestTemplateConstant      = "invalid tool request: %s"
)

// ErrAlreadyConnected indicates connection information was attached to a node twice.
var ErrAlreadyConnected = errors.New(alreadyConnectedMessageConstant)

// ErrInitializationIncomplete indicates an earlier initialization attempt failed and was not reset.
var ErrInitializationIncomplete = errors.New(initializationIncompleteMessageConstant)

// ErrNodeClosed indicates the node was used after Close.
var ErrNodeClosed = errors.New(nodeClosedMessageConstant)

// ConfigurationError reports missing or malformed descriptor fields.
type ConfigurationError struct {
	Field  string
	Reason string
}

// Error describes the configuration problem.
func (configurationError ConfigurationError) Error() string {
	if len(configurationError.Field) == 0 {
		return fmt.Sprintf(configurationErrorTemplateConstant, configurationError.Reason)
	}
	return fmt.Sprintf(configurationFieldErrorTemplateConstant, configurationError.Field, configurationError.Reason)
}

// ToolUnsupportedError reports a tool that is missing and cannot be installed on the node.
type ToolUnsupportedError struct {
	Tool           string
	NodeIdentifier string
	IsLinux        bool
	IsRemote       bool
}

// Error describes the unsupported tool together with node diagnostics.
func (unsupportedError ToolUnsupportedError) Error() string {
	return fmt.Sprintf(toolUnsupportedTemplateConstant, unsupportedError.Tool, unsupportedError.NodeIdentifier, unsupportedError.IsLinux, unsupportedError.IsRemote)
}

// ToolInstallError reports a failed install routine.
type ToolInstallError struct {
	Tool           string
	NodeIdentifier string
	Cause          error
}

// Error describes the failed install.
func (installError ToolInstallError) Error() string {
	if installError.Cause == nil {
		return fmt.Sprintf(toolInstallTemplateConstant, installError.Tool, installError.NodeIdentifier)
	}
	return fmt.Sprintf(toolInstallCauseTemplateConstant, installError.Tool, installError.NodeIdentifier, installError.Cause)
}

// Unwrap exposes the install failure cause.
func (installError ToolInstallError) Unwrap() error {
	return installError.Cause
}

// UnknownToolError reports a lookup by bare key for a tool that was never resolved.
type UnknownToolError struct {
	Key string
}

// Error describes the unknown key.
func (unknownError UnknownToolError) Error() string {
	return fmt.Sprintf(unknownToolTemplateConstant, unknownError.Key)
}

// InvalidToolRequestError reports caller misuse of the tool registry.
type InvalidToolRequestError struct {
	Reason string
}

// Error describes the invalid request.
func (invalidError InvalidToolRequestError) Error() string {
	return fmt.Sprintf(invalidToolRequestTemplateConstant, invalidError.Reason)
}
