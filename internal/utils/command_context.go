package utils

import "context"

const (
	configurationFilePathContextKeyConstant = commandContextKey("configurationFilePath")
	nodeNameContextKeyConstant              = commandContextKey("nodeName")
)

type commandContextKey string

// CommandContextAccessor stores CLI selections on the command context so subcommands
// can read them without reparsing persistent flags.
type CommandContextAccessor struct{}

// NewCommandContextAccessor constructs a CommandContextAccessor instance.
func NewCommandContextAccessor() CommandContextAccessor {
	return CommandContextAccessor{}
}

// WithConfigurationFilePath attaches the configuration file path.
func (accessor CommandContextAccessor) WithConfigurationFilePath(parentContext context.Context, configurationFilePath string) context.Context {
	return withStringValue(parentContext, configurationFilePathContextKeyConstant, configurationFilePath)
}

// ConfigurationFilePath extracts the configuration file path.
func (accessor CommandContextAccessor) ConfigurationFilePath(executionContext context.Context) (string, bool) {
	return stringValue(executionContext, configurationFilePathContextKeyConstant)
}

// WithNodeName attaches the node selected with --node.
func (accessor CommandContextAccessor) WithNodeName(parentContext context.Context, nodeName string) context.Context {
	return withStringValue(parentContext, nodeNameContextKeyConstant, nodeName)
}

// NodeName extracts the selected node. An empty selection reports false.
func (accessor CommandContextAccessor) NodeName(executionContext context.Context) (string, bool) {
	nodeName, found := stringValue(executionContext, nodeNameContextKeyConstant)
	if !found || len(nodeName) == 0 {
		return "", false
	}
	return nodeName, true
}

func withStringValue(parentContext context.Context, key commandContextKey, value string) context.Context {
	if parentContext == nil {
		parentContext = context.Background()
	}
	return context.WithValue(parentContext, key, value)
}

func stringValue(executionContext context.Context, key commandContextKey) (string, bool) {
	if executionContext == nil {
		return "", false
	}
	value, available := executionContext.Value(key).(string)
	return value, available
}
