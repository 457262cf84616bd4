package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/temirov/testnode/cmd/cli/nodes"
	"github.com/temirov/testnode/internal/execshell"
	"github.com/temirov/testnode/internal/inventory"
	"github.com/temirov/testnode/internal/node"
	"github.com/temirov/testnode/internal/observability"
	"github.com/temirov/testnode/internal/runcontext"
	"github.com/temirov/testnode/internal/tools"
	"github.com/temirov/testnode/internal/utils"
	pathutils "github.com/temirov/testnode/internal/utils/path"
)

const (
	applicationNameConstant                 = "testnode"
	applicationShortDescriptionConstant     = "Drive local and SSH test nodes"
	applicationLongDescriptionConstant      = "testnode connects to the nodes of a test run, detects their platform, prepares per-run working directories, runs commands, and installs tools on demand."
	configFileFlagNameConstant              = "config"
	configFileFlagUsageConstant             = "Optional path to a configuration file (YAML or JSON)."
	logLevelFlagNameConstant                = "log-level"
	logLevelFlagUsageConstant               = "Override the configured log level."
	logFormatFlagNameConstant               = "log-format"
	logFormatFlagUsageConstant              = "Override the configured log format (structured or console)."
	nodeFlagNameConstant                    = "node"
	nodeFlagUsageConstant                   = "Inventory node to operate on; defaults to the inventory default or the local machine."
	inventoryFlagNameConstant               = "inventory"
	inventoryFlagUsageConstant              = "Override the configured inventory file."
	commonConfigurationKeyConstant          = "common"
	commonLogLevelConfigKeyConstant         = commonConfigurationKeyConstant + ".log_level"
	commonLogFormatConfigKeyConstant        = commonConfigurationKeyConstant + ".log_format"
	probeConfigurationKeyConstant           = "probe"
	environmentPrefixConstant               = "TESTNODE"
	configurationNameConstant               = "config"
	configurationTypeConstant               = "yaml"
	configurationInitializedMessageConstant = "configuration initialized"
	configurationLogLevelFieldConstant      = "log_level"
	configurationLogFormatFieldConstant     = "log_format"
	configurationFileFieldConstant          = "config_file"
	configurationLoadErrorTemplateConstant  = "unable to load configuration: %w"
	loggerCreationErrorTemplateConstant     = "unable to create logger: %w"
	loggerSyncErrorTemplateConstant         = "unable to flush logger: %w"
	inventoryLoadErrorTemplateConstant      = "unable to load inventory: %w"
	scriptsLoadErrorTemplateConstant        = "unable to load tool scripts: %w"
	runContextErrorTemplateConstant         = "unable to prepare run context: %w"
	metricsCreationErrorTemplateConstant    = "unable to create metrics: %w"
	metricsExportFailedMessageConstant      = "unable to write metrics textfile"
	metricsPathFieldConstant                = "metrics_path"
	sessionCreatedMessageConstant           = "session created"
	runIdentifierFieldConstant              = "run_id"
	inventoryPathFieldConstant              = "inventory_path"
	scriptCountFieldConstant                = "script_count"
	loggerNotInitializedMessageConstant     = "logger not initialized"
	defaultConfigurationSearchPathConstant  = "."
	userConfigurationSearchPathConstant     = "~/.config/testnode"
	defaultLocalRootDirectoryNameConstant   = "testnode"
)

// ApplicationConfiguration describes the persisted configuration for the CLI entrypoint.
type ApplicationConfiguration struct {
	Common    ApplicationCommonConfiguration    `mapstructure:"common"`
	Run       ApplicationRunConfiguration       `mapstructure:"run"`
	Inventory ApplicationInventoryConfiguration `mapstructure:"inventory"`
	SSH       ApplicationSSHConfiguration       `mapstructure:"ssh"`
	Tools     ApplicationToolsConfiguration     `mapstructure:"tools"`
	Metrics   ApplicationMetricsConfiguration   `mapstructure:"metrics"`
	Probe     nodes.ProbeConfiguration          `mapstructure:"probe"`
}

// ApplicationCommonConfiguration stores logging configuration shared across commands.
type ApplicationCommonConfiguration struct {
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
}

// ApplicationRunConfiguration locates the per-run working directories.
// An empty identifier generates a fresh one per invocation.
type ApplicationRunConfiguration struct {
	Identifier string `mapstructure:"identifier"`
	LocalRoot  string `mapstructure:"local_root"`
	RemoteRoot string `mapstructure:"remote_root"`
}

// ApplicationInventoryConfiguration points at the node inventory file.
type ApplicationInventoryConfiguration struct {
	Path string `mapstructure:"path"`
}

// ApplicationSSHConfiguration controls SSH host verification and dialing.
type ApplicationSSHConfiguration struct {
	KnownHostsPath              string        `mapstructure:"known_hosts_path"`
	InsecureSkipHostKeyChecking bool          `mapstructure:"insecure_skip_host_key_checking"`
	Timeout                     time.Duration `mapstructure:"timeout"`
}

// ApplicationToolsConfiguration points at script tool descriptors.
type ApplicationToolsConfiguration struct {
	ScriptsPath string `mapstructure:"scripts_path"`
}

// ApplicationMetricsConfiguration selects where run metrics are exported.
type ApplicationMetricsConfiguration struct {
	TextfilePath string `mapstructure:"textfile_path"`
}

// Application wires the Cobra root command, configuration loader, and structured logger.
type Application struct {
	rootCommand            *cobra.Command
	configurationLoader    *utils.ConfigurationLoader
	loggerFactory          *utils.LoggerFactory
	logger                 *zap.Logger
	configuration          ApplicationConfiguration
	configurationMetadata  utils.LoadedConfiguration
	configurationFilePath  string
	logLevelFlagValue      string
	logFormatFlagValue     string
	nodeFlagValue          string
	inventoryFlagValue     string
	commandContextAccessor utils.CommandContextAccessor
	pathExpander           *pathutils.HomeExpander
	nodeSession            *nodes.Session
	metrics                *observability.Metrics
}

// NewApplication assembles a fully wired CLI application instance.
func NewApplication() *Application {
	configurationLoader := utils.NewConfigurationLoader(
		configurationNameConstant,
		configurationTypeConstant,
		environmentPrefixConstant,
		[]string{defaultConfigurationSearchPathConstant, userConfigurationSearchPathConstant},
	)
	configurationLoader.SetEmbeddedConfiguration(EmbeddedDefaultConfiguration())

	application := &Application{
		configurationLoader:    configurationLoader,
		loggerFactory:          utils.NewLoggerFactory(),
		logger:                 zap.NewNop(),
		commandContextAccessor: utils.NewCommandContextAccessor(),
		pathExpander:           pathutils.NewHomeExpander(),
	}

	cobraCommand := &cobra.Command{
		Use:           applicationNameConstant,
		Short:         applicationShortDescriptionConstant,
		Long:          applicationLongDescriptionConstant,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(command *cobra.Command, arguments []string) error {
			return application.initializeConfiguration(command)
		},
		RunE: func(command *cobra.Command, arguments []string) error {
			return application.runRootCommand(command, arguments)
		},
	}

	cobraCommand.SetContext(context.Background())
	cobraCommand.PersistentFlags().StringVar(&application.configurationFilePath, configFileFlagNameConstant, "", configFileFlagUsageConstant)
	cobraCommand.PersistentFlags().StringVar(&application.logLevelFlagValue, logLevelFlagNameConstant, "", logLevelFlagUsageConstant)
	cobraCommand.PersistentFlags().StringVar(&application.logFormatFlagValue, logFormatFlagNameConstant, "", logFormatFlagUsageConstant)
	cobraCommand.PersistentFlags().StringVar(&application.nodeFlagValue, nodeFlagNameConstant, "", nodeFlagUsageConstant)
	cobraCommand.PersistentFlags().StringVar(&application.inventoryFlagValue, inventoryFlagNameConstant, "", inventoryFlagUsageConstant)

	loggerProvider := func() *zap.Logger {
		return application.logger
	}

	listBuilder := nodes.ListCommandBuilder{
		LoggerProvider:  loggerProvider,
		SessionProvider: application.session,
	}
	listCommand, listBuildError := listBuilder.Build()
	if listBuildError == nil {
		cobraCommand.AddCommand(listCommand)
	}

	probeBuilder := nodes.ProbeCommandBuilder{
		LoggerProvider:  loggerProvider,
		SessionProvider: application.session,
		ConfigurationProvider: func() nodes.ProbeConfiguration {
			return application.configuration.Probe
		},
	}
	probeCommand, probeBuildError := probeBuilder.Build()
	if probeBuildError == nil {
		cobraCommand.AddCommand(probeCommand)
	}

	execBuilder := nodes.ExecCommandBuilder{
		LoggerProvider:  loggerProvider,
		SessionProvider: application.session,
	}
	execCommand, execBuildError := execBuilder.Build()
	if execBuildError == nil {
		cobraCommand.AddCommand(execCommand)
	}

	toolBuilder := nodes.ToolCommandBuilder{
		LoggerProvider:  loggerProvider,
		SessionProvider: application.session,
	}
	toolCommand, toolBuildError := toolBuilder.Build()
	if toolBuildError == nil {
		cobraCommand.AddCommand(toolCommand)
	}

	application.rootCommand = cobraCommand

	return application
}

// Execute runs the configured Cobra command hierarchy, exports metrics, and flushes the logger.
func (application *Application) Execute() error {
	executionError := application.rootCommand.Execute()
	application.exportMetrics()
	if syncError := application.flushLogger(); syncError != nil {
		return fmt.Errorf(loggerSyncErrorTemplateConstant, syncError)
	}
	return executionError
}

// Execute builds a fresh application instance and executes the root command hierarchy.
func Execute() error {
	return NewApplication().Execute()
}

func (application *Application) initializeConfiguration(command *cobra.Command) error {
	defaultValues := map[string]any{
		commonLogLevelConfigKeyConstant:  string(utils.LogLevelInfo),
		commonLogFormatConfigKeyConstant: string(utils.LogFormatConsole),
	}
	for configurationKey, configurationValue := range nodes.DefaultConfigurationValues(probeConfigurationKeyConstant) {
		defaultValues[configurationKey] = configurationValue
	}

	loadedConfiguration, loadError := application.configurationLoader.LoadConfiguration(application.configurationFilePath, defaultValues, &application.configuration)
	if loadError != nil {
		return fmt.Errorf(configurationLoadErrorTemplateConstant, loadError)
	}

	application.configurationMetadata = loadedConfiguration

	if application.persistentFlagChanged(command, logLevelFlagNameConstant) {
		application.configuration.Common.LogLevel = application.logLevelFlagValue
	}

	if application.persistentFlagChanged(command, logFormatFlagNameConstant) {
		application.configuration.Common.LogFormat = application.logFormatFlagValue
	}

	if application.persistentFlagChanged(command, inventoryFlagNameConstant) {
		application.configuration.Inventory.Path = application.inventoryFlagValue
	}

	logLevel, levelError := utils.ParseLogLevel(application.configuration.Common.LogLevel)
	if levelError != nil {
		return fmt.Errorf(loggerCreationErrorTemplateConstant, levelError)
	}
	logFormat, formatError := utils.ParseLogFormat(application.configuration.Common.LogFormat)
	if formatError != nil {
		return fmt.Errorf(loggerCreationErrorTemplateConstant, formatError)
	}

	logger, loggerCreationError := application.loggerFactory.CreateLogger(logLevel, logFormat)
	if loggerCreationError != nil {
		return fmt.Errorf(loggerCreationErrorTemplateConstant, loggerCreationError)
	}

	application.logger = logger

	application.logger.Debug(
		configurationInitializedMessageConstant,
		zap.String(configurationLogLevelFieldConstant, application.configuration.Common.LogLevel),
		zap.String(configurationLogFormatFieldConstant, application.configuration.Common.LogFormat),
		zap.String(configurationFileFieldConstant, application.configurationMetadata.ConfigFileUsed),
	)

	if command != nil {
		updatedContext := application.commandContextAccessor.WithConfigurationFilePath(
			command.Context(),
			application.configurationMetadata.ConfigFileUsed,
		)
		updatedContext = application.commandContextAccessor.WithNodeName(updatedContext, strings.TrimSpace(application.nodeFlagValue))
		command.SetContext(updatedContext)
		if rootCommand := command.Root(); rootCommand != nil {
			rootCommand.SetContext(updatedContext)
		}
	}

	return nil
}

// session builds the node session once per invocation from the loaded configuration.
func (application *Application) session() (nodes.Session, error) {
	if application.nodeSession != nil {
		return *application.nodeSession, nil
	}

	var nodeInventory inventory.Inventory
	inventoryPath := strings.TrimSpace(application.configuration.Inventory.Path)
	if len(inventoryPath) > 0 {
		loadedInventory, loadError := inventory.Load(application.pathExpander.Expand(inventoryPath))
		if loadError != nil {
			return nodes.Session{}, fmt.Errorf(inventoryLoadErrorTemplateConstant, loadError)
		}
		nodeInventory = loadedInventory
	}

	var scriptDescriptors []tools.ScriptDescriptor
	scriptsPath := strings.TrimSpace(application.configuration.Tools.ScriptsPath)
	if len(scriptsPath) > 0 {
		loadedDescriptors, loadError := tools.LoadScriptDescriptors(application.pathExpander.Expand(scriptsPath))
		if loadError != nil {
			return nodes.Session{}, fmt.Errorf(scriptsLoadErrorTemplateConstant, loadError)
		}
		scriptDescriptors = loadedDescriptors
	}

	runContext, runContextError := application.runContext()
	if runContextError != nil {
		return nodes.Session{}, fmt.Errorf(runContextErrorTemplateConstant, runContextError)
	}

	metrics, metricsError := observability.NewMetrics()
	if metricsError != nil {
		return nodes.Session{}, fmt.Errorf(metricsCreationErrorTemplateConstant, metricsError)
	}
	application.metrics = metrics

	sshConfiguration := application.configuration.SSH
	session := nodes.Session{
		Inventory: nodeInventory,
		Dependencies: node.Dependencies{
			Logger:     application.logger,
			RunContext: runContext,
			SSHConfiguration: execshell.SSHConfiguration{
				KnownHostsPath:              application.pathExpander.Expand(strings.TrimSpace(sshConfiguration.KnownHostsPath)),
				InsecureSkipHostKeyChecking: sshConfiguration.InsecureSkipHostKeyChecking,
				Timeout:                     sshConfiguration.Timeout,
			},
			Metrics: metrics,
		},
		ScriptDescriptors: scriptDescriptors,
	}
	application.nodeSession = &session

	application.logger.Debug(
		sessionCreatedMessageConstant,
		zap.String(runIdentifierFieldConstant, runContext.RunIdentifier),
		zap.String(inventoryPathFieldConstant, inventoryPath),
		zap.Int(scriptCountFieldConstant, len(scriptDescriptors)),
	)
	return session, nil
}

func (application *Application) runContext() (runcontext.RunContext, error) {
	runConfiguration := application.configuration.Run
	localRoot := application.pathExpander.Expand(strings.TrimSpace(runConfiguration.LocalRoot))
	if len(localRoot) == 0 {
		localRoot = filepath.Join(os.TempDir(), defaultLocalRootDirectoryNameConstant)
	}
	if len(strings.TrimSpace(runConfiguration.Identifier)) > 0 {
		return runcontext.NewWithIdentifier(runConfiguration.Identifier, localRoot, runConfiguration.RemoteRoot)
	}
	return runcontext.New(localRoot, runConfiguration.RemoteRoot)
}

func (application *Application) exportMetrics() {
	textfilePath := strings.TrimSpace(application.configuration.Metrics.TextfilePath)
	if application.metrics == nil || len(textfilePath) == 0 {
		return
	}
	expandedPath := application.pathExpander.Expand(textfilePath)
	if exportError := application.metrics.WriteTextfile(expandedPath); exportError != nil {
		application.logger.Warn(metricsExportFailedMessageConstant, zap.String(metricsPathFieldConstant, expandedPath), zap.Error(exportError))
	}
}

func (application *Application) runRootCommand(command *cobra.Command, arguments []string) error {
	if application.logger == nil {
		return errors.New(loggerNotInitializedMessageConstant)
	}
	return command.Help()
}

func (application *Application) flushLogger() error {
	if application.logger == nil {
		return nil
	}

	syncError := application.logger.Sync()
	switch {
	case syncError == nil:
		return nil
	case errors.Is(syncError, syscall.ENOTSUP):
		return nil
	case errors.Is(syncError, syscall.EINVAL):
		return nil
	default:
		return syncError
	}
}

func (application *Application) persistentFlagChanged(command *cobra.Command, flagName string) bool {
	if command == nil {
		return false
	}

	flagSetsToInspect := []*pflag.FlagSet{
		command.PersistentFlags(),
		command.InheritedFlags(),
	}

	rootCommand := command.Root()
	if rootCommand != nil {
		flagSetsToInspect = append(flagSetsToInspect, rootCommand.PersistentFlags())
	}

	for _, flagSet := range flagSetsToInspect {
		if flagSet == nil {
			continue
		}

		if flagSet.Changed(flagName) {
			return true
		}
	}

	return false
}
