package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/temirov/testnode/internal/execshell"
)

const (
	metricsNamespaceConstant    = "testnode"
	outcomeSuccessLabelConstant = "success"
	outcomeFailureLabelConstant = "failure"
	outcomeErrorLabelConstant   = "error"
	nodeLabelConstant           = "node"
	toolLabelConstant           = "tool"
	outcomeLabelConstant        = "outcome"
	interpreterLabelConstant    = "interpreter"
)

// Metrics records node, command, and tool install activity in Prometheus collectors.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	gatherer            prometheus.Gatherer
	commandsTotal       *prometheus.CounterVec
	toolInstallDuration *prometheus.HistogramVec
	initializations     *prometheus.CounterVec
}

// NewMetrics registers the collectors on a fresh registry.
func NewMetrics() (*Metrics, error) {
	registry := prometheus.NewRegistry()
	metrics := &Metrics{
		gatherer: registry,
		commandsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespaceConstant,
				Subsystem: "process",
				Name:      "commands_total",
				Help:      "Commands executed on nodes by outcome.",
			},
			[]string{nodeLabelConstant, interpreterLabelConstant, outcomeLabelConstant},
		),
		toolInstallDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespaceConstant,
				Subsystem: "tools",
				Name:      "install_duration_seconds",
				Help:      "Tool install duration in seconds.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{nodeLabelConstant, toolLabelConstant, outcomeLabelConstant},
		),
		initializations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespaceConstant,
				Subsystem: "node",
				Name:      "initializations_total",
				Help:      "Node initializations by outcome.",
			},
			[]string{nodeLabelConstant, outcomeLabelConstant},
		),
	}

	for _, collector := range []prometheus.Collector{metrics.commandsTotal, metrics.toolInstallDuration, metrics.initializations} {
		if registerError := registry.Register(collector); registerError != nil {
			return nil, registerError
		}
	}
	return metrics, nil
}

// Gatherer exposes the registry backing the collectors.
func (metrics *Metrics) Gatherer() prometheus.Gatherer {
	if metrics == nil {
		return prometheus.NewRegistry()
	}
	return metrics.gatherer
}

// RecordToolInstall observes one install attempt.
func (metrics *Metrics) RecordToolInstall(nodeIdentifier string, toolName string, duration time.Duration, succeeded bool) {
	if metrics == nil {
		return
	}
	metrics.toolInstallDuration.WithLabelValues(nodeIdentifier, toolName, outcomeLabel(succeeded)).Observe(duration.Seconds())
}

// RecordInitialization counts one node initialization attempt.
func (metrics *Metrics) RecordInitialization(nodeIdentifier string, succeeded bool) {
	if metrics == nil {
		return
	}
	metrics.initializations.WithLabelValues(nodeIdentifier, outcomeLabel(succeeded)).Inc()
}

// CommandObserver returns an observer counting commands executed on the node.
func (metrics *Metrics) CommandObserver(nodeIdentifier string) execshell.CommandEventObserver {
	if metrics == nil {
		return execshell.NoopCommandEventObserver{}
	}
	return commandMetricsObserver{metrics: metrics, nodeIdentifier: nodeIdentifier}
}

// WriteTextfile exports the current metric values in the node exporter textfile format.
func (metrics *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, metrics.Gatherer())
}

type commandMetricsObserver struct {
	metrics        *Metrics
	nodeIdentifier string
}

func (observer commandMetricsObserver) CommandStarted(execshell.ShellCommand) {}

func (observer commandMetricsObserver) CommandCompleted(command execshell.ShellCommand, result execshell.ExecutionResult) {
	observer.metrics.commandsTotal.WithLabelValues(observer.nodeIdentifier, strconv.FormatBool(command.UseShellInterpreter), outcomeLabel(result.ExitCode == 0)).Inc()
}

func (observer commandMetricsObserver) CommandExecutionFailed(command execshell.ShellCommand, _ error) {
	observer.metrics.commandsTotal.WithLabelValues(observer.nodeIdentifier, strconv.FormatBool(command.UseShellInterpreter), outcomeErrorLabelConstant).Inc()
}

func outcomeLabel(succeeded bool) string {
	if succeeded {
		return outcomeSuccessLabelConstant
	}
	return outcomeFailureLabelConstant
}
