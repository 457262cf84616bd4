package nodes

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/temirov/testnode/internal/node"
)

const (
	probeUseConstant              = "probe [node ...]"
	probeShortDescriptionConstant = "Connect to nodes and report their platform"
	probeLongDescriptionConstant  = "probe initializes each node: it connects, detects the platform with uname, and creates the run working directory. Without arguments the selected or default node is probed."
	probeAllFlagNameConstant      = "all"
	probeAllFlagUsageConstant     = "Probe every node in the inventory"
	probeReadyTemplateConstant    = "%s\t%s\tlinux=%t\tkernel=%s\tplatform=%s\tworking=%s\n"
	probeFailedTemplateConstant   = "%s\tfailed\t%v\n"
	probeFailureTemplateConstant  = "probe %s: %w"
	probeCompletedMessageConstant = "probe completed"
	probeFailedCountFieldConstant = "failed_count"
	probeNodeCountFieldConstant   = "node_count"
)

// ProbeCommandBuilder assembles the probe command.
type ProbeCommandBuilder struct {
	LoggerProvider        LoggerProvider
	SessionProvider       SessionProvider
	ConfigurationProvider func() ProbeConfiguration
}

type probeResult struct {
	nodeName    string
	state       node.State
	platform    node.Platform
	workingPath string
	failure     error
}

// Build constructs the probe command.
func (builder *ProbeCommandBuilder) Build() (*cobra.Command, error) {
	command := &cobra.Command{
		Use:   probeUseConstant,
		Short: probeShortDescriptionConstant,
		Long:  probeLongDescriptionConstant,
		RunE:  builder.run,
	}
	command.Flags().Bool(probeAllFlagNameConstant, false, probeAllFlagUsageConstant)
	return command, nil
}

func (builder *ProbeCommandBuilder) run(command *cobra.Command, arguments []string) error {
	probeAll, _ := command.Flags().GetBool(probeAllFlagNameConstant)

	logger := resolveLogger(builder.LoggerProvider)
	session, sessionError := resolveSession(builder.SessionProvider)
	if sessionError != nil {
		return sessionError
	}

	nodeNames := arguments
	switch {
	case probeAll:
		nodeNames = session.NodeNames()
	case len(nodeNames) == 0:
		nodeNames = []string{selectedNodeName(command)}
	}

	results := make([]probeResult, len(nodeNames))
	var probeGroup errgroup.Group
	probeGroup.SetLimit(builder.parallelism())
	for nodeIndex, nodeName := range nodeNames {
		probeGroup.Go(func() error {
			results[nodeIndex] = probeNode(command.Context(), logger, session, nodeName)
			return nil
		})
	}
	_ = probeGroup.Wait()

	output := command.OutOrStdout()
	var failures []error
	for _, result := range results {
		if result.failure != nil {
			fmt.Fprintf(output, probeFailedTemplateConstant, result.nodeName, result.failure)
			failures = append(failures, fmt.Errorf(probeFailureTemplateConstant, result.nodeName, result.failure))
			continue
		}
		fmt.Fprintf(
			output,
			probeReadyTemplateConstant,
			result.nodeName,
			result.state,
			result.platform.IsLinux,
			result.platform.KernelRelease,
			result.platform.HardwarePlatform,
			result.workingPath,
		)
	}

	logger.Info(probeCompletedMessageConstant, zap.Int(probeNodeCountFieldConstant, len(results)), zap.Int(probeFailedCountFieldConstant, len(failures)))
	return errors.Join(failures...)
}

func (builder *ProbeCommandBuilder) parallelism() int {
	if builder.ConfigurationProvider == nil {
		return defaultProbeParallelism
	}
	configured := builder.ConfigurationProvider().Parallelism
	if configured <= 0 {
		return defaultProbeParallelism
	}
	return configured
}

func probeNode(executionContext context.Context, logger *zap.Logger, session Session, nodeName string) probeResult {
	target, creationError := session.Node(nodeName)
	if creationError != nil {
		return probeResult{nodeName: displayName(nodeName), failure: creationError}
	}
	defer closeNode(logger, target)

	result := probeResult{nodeName: target.Identifier()}
	if initializationError := target.EnsureInitialized(executionContext); initializationError != nil {
		result.failure = initializationError
		return result
	}
	result.state = target.State()
	result.platform = target.Platform()
	result.workingPath = target.WorkingPath()
	return result
}

func displayName(nodeName string) string {
	if len(nodeName) == 0 {
		return LocalNodeNameConstant
	}
	return nodeName
}
