package nodes

import (
	"errors"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temirov/testnode/internal/node"
	"github.com/temirov/testnode/internal/utils"
)

const (
	sessionUnavailableMessageConstant = "node session is not configured"
	nodeCloseFailedMessageConstant    = "failed to close node"
	nodeFieldConstant                 = "node"
)

// LoggerProvider yields a zap logger for command execution.
type LoggerProvider func() *zap.Logger

// SessionProvider yields the session built from the loaded configuration.
type SessionProvider func() (Session, error)

func resolveLogger(provider LoggerProvider) *zap.Logger {
	if provider == nil {
		return zap.NewNop()
	}
	logger := provider()
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}

func resolveSession(provider SessionProvider) (Session, error) {
	if provider == nil {
		return Session{}, errors.New(sessionUnavailableMessageConstant)
	}
	return provider()
}

// selectedNodeName reads the root --node selection stored on the command context.
func selectedNodeName(command *cobra.Command) string {
	nodeName, _ := utils.NewCommandContextAccessor().NodeName(command.Context())
	return nodeName
}

func closeNode(logger *zap.Logger, target *node.Node) {
	if closeError := target.Close(); closeError != nil {
		logger.Warn(nodeCloseFailedMessageConstant, zap.String(nodeFieldConstant, target.Identifier()), zap.Error(closeError))
	}
}
