package node

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/temirov/testnode/internal/connection"
	"github.com/temirov/testnode/internal/execshell"
	"github.com/temirov/testnode/internal/observability"
	"github.com/temirov/testnode/internal/runcontext"
)

const (
	nodeLoggerNameConstant      = "node"
	toolLoggerNameConstant      = "tool"
	defaultLocalRootDirConstant = "testnode"
)

// RemoteShellFactory builds the shell session bound to a connection descriptor.
type RemoteShellFactory func(descriptor connection.Descriptor) execshell.Shell

// LocalShellFactory builds the shell session used by local nodes.
type LocalShellFactory func() execshell.Shell

// Dependencies carries the collaborators shared by nodes of one run.
type Dependencies struct {
	Logger             *zap.Logger
	RunContext         runcontext.RunContext
	RemoteShellFactory RemoteShellFactory
	LocalShellFactory  LocalShellFactory
	SSHConfiguration   execshell.SSHConfiguration
	Metrics            *observability.Metrics
}

func (dependencies Dependencies) withDefaults() (Dependencies, error) {
	if dependencies.Logger == nil {
		dependencies.Logger = zap.NewNop()
	}
	if len(dependencies.RunContext.RunIdentifier) == 0 {
		runContext, runContextError := runcontext.New(filepath.Join(os.TempDir(), defaultLocalRootDirConstant), runcontext.DefaultRemoteRootConstant)
		if runContextError != nil {
			return Dependencies{}, runContextError
		}
		dependencies.RunContext = runContext
	}
	if dependencies.RemoteShellFactory == nil {
		sshConfiguration := dependencies.SSHConfiguration
		dependencies.RemoteShellFactory = func(descriptor connection.Descriptor) execshell.Shell {
			return execshell.NewSSHShell(descriptor, sshConfiguration)
		}
	}
	if dependencies.LocalShellFactory == nil {
		dependencies.LocalShellFactory = func() execshell.Shell {
			return execshell.NewLocalShell()
		}
	}
	return dependencies, nil
}
