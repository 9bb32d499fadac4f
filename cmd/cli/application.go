package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/itcpr/cloudsync/internal/clone"
	"github.com/itcpr/cloudsync/internal/overview"
	"github.com/itcpr/cloudsync/internal/registry"
	"github.com/itcpr/cloudsync/internal/remoteapi"
	"github.com/itcpr/cloudsync/internal/syncer"
	"github.com/itcpr/cloudsync/internal/utils"
	pathutils "github.com/itcpr/cloudsync/internal/utils/path"
)

const (
	applicationNameConstant                 = "cloudsync"
	applicationShortDescriptionConstant     = "Keep assigned GitHub repositories synchronized on this device"
	applicationLongDescriptionConstant      = "cloudsync clones repositories assigned to this device and keeps local and remote history converged through fetch, commit, rebase, and push cycles."
	configFileFlagNameConstant              = "config"
	configFileFlagUsageConstant             = "Optional path to a configuration file (YAML or JSON)."
	logLevelFlagNameConstant                = "log-level"
	logLevelFlagUsageConstant               = "Override the configured log level."
	logFormatFlagNameConstant               = "log-format"
	logFormatFlagUsageConstant              = "Override the configured log format (structured or console)."
	commonConfigurationKeyConstant          = "common"
	commonLogLevelConfigKeyConstant         = commonConfigurationKeyConstant + ".log_level"
	commonLogFormatConfigKeyConstant        = commonConfigurationKeyConstant + ".log_format"
	remoteConfigurationKeyConstant          = "remote"
	remoteBaseURLConfigKeyConstant          = remoteConfigurationKeyConstant + ".base_url"
	remoteDeviceTokenConfigKeyConstant      = remoteConfigurationKeyConstant + ".device_token"
	registryConfigurationKeyConstant        = "registry"
	registryPathConfigKeyConstant           = registryConfigurationKeyConstant + ".path"
	defaultRemoteBaseURLConstant            = "https://cloud.itcpr.org"
	defaultRegistryPathConstant             = "~/.cloudsync/registry.yaml"
	environmentPrefixConstant               = "CLOUDSYNC"
	configurationNameConstant               = "config"
	configurationTypeConstant               = "yaml"
	configurationInitializedMessageConstant = "configuration initialized"
	configurationLogLevelFieldConstant      = "log_level"
	configurationLogFormatFieldConstant     = "log_format"
	configurationFileFieldConstant          = "config_file"
	configurationLoadErrorTemplateConstant  = "unable to load configuration: %w"
	loggerCreationErrorTemplateConstant     = "unable to create logger: %w"
	loggerSyncErrorTemplateConstant         = "unable to flush logger: %w"
	rootCommandInfoMessageConstant          = "cloudsync CLI executed"
	rootCommandDebugMessageConstant         = "cloudsync CLI diagnostics"
	logFieldCommandNameConstant             = "command_name"
	logFieldArgumentCountConstant           = "argument_count"
	logFieldArgumentsConstant               = "arguments"
	loggerNotInitializedMessageConstant     = "logger not initialized"
	defaultConfigurationSearchPathConstant  = "."
	toolsConfigurationKeyConstant           = "tools"
	syncConfigurationKeyConstant            = toolsConfigurationKeyConstant + ".sync"
	cloneConfigurationKeyConstant           = toolsConfigurationKeyConstant + ".clone"
)

// ApplicationConfiguration describes the persisted configuration for the CLI entrypoint.
type ApplicationConfiguration struct {
	Common   ApplicationCommonConfiguration   `mapstructure:"common"`
	Remote   ApplicationRemoteConfiguration   `mapstructure:"remote"`
	Registry ApplicationRegistryConfiguration `mapstructure:"registry"`
	Tools    ApplicationToolsConfiguration    `mapstructure:"tools"`
}

// ApplicationCommonConfiguration stores logging configuration shared across commands.
type ApplicationCommonConfiguration struct {
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
}

// ApplicationRemoteConfiguration stores cloud service connection settings.
type ApplicationRemoteConfiguration struct {
	BaseURL     string `mapstructure:"base_url"`
	DeviceToken string `mapstructure:"device_token"`
}

// ApplicationRegistryConfiguration stores the location of the repository registry file.
type ApplicationRegistryConfiguration struct {
	Path string `mapstructure:"path"`
}

// ApplicationToolsConfiguration holds configuration for CLI subcommands grouped by tool family.
type ApplicationToolsConfiguration struct {
	Sync  syncer.CommandConfiguration `mapstructure:"sync"`
	Clone clone.CommandConfiguration  `mapstructure:"clone"`
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
	commandContextAccessor utils.CommandContextAccessor
	homeExpander           *pathutils.HomeExpander
}

// NewApplication assembles a fully wired CLI application instance.
func NewApplication() *Application {
	configurationLoader := utils.NewConfigurationLoader(
		configurationNameConstant,
		configurationTypeConstant,
		environmentPrefixConstant,
		[]string{defaultConfigurationSearchPathConstant},
	)

	application := &Application{
		configurationLoader:    configurationLoader,
		loggerFactory:          utils.NewLoggerFactory(),
		logger:                 zap.NewNop(),
		commandContextAccessor: utils.NewCommandContextAccessor(),
		homeExpander:           pathutils.NewHomeExpander(),
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

	syncBuilder := syncer.CommandBuilder{
		LoggerProvider: func() *zap.Logger {
			return application.logger
		},
		HumanReadableLoggingProvider: application.humanReadableLoggingEnabled,
		RegistryProvider: func() (syncer.RegistryStore, error) {
			return application.buildRegistryStore()
		},
		ConfigurationProvider: func() syncer.CommandConfiguration {
			return application.configuration.Tools.Sync
		},
	}
	syncCommand, syncBuildError := syncBuilder.Build()
	if syncBuildError == nil {
		cobraCommand.AddCommand(syncCommand)
	}

	cloneBuilder := clone.CommandBuilder{
		LoggerProvider: func() *zap.Logger {
			return application.logger
		},
		HumanReadableLoggingProvider: application.humanReadableLoggingEnabled,
		RemoteClientProvider: func() (clone.RemoteClient, error) {
			return application.buildRemoteClient()
		},
		RegistryProvider: func() (clone.RegistryStore, error) {
			return application.buildRegistryStore()
		},
		ConfigurationProvider: func() clone.CommandConfiguration {
			return application.configuration.Tools.Clone
		},
	}
	cloneCommand, cloneBuildError := cloneBuilder.Build()
	if cloneBuildError == nil {
		cobraCommand.AddCommand(cloneCommand)
	}

	overviewBuilder := overview.CommandBuilder{
		LoggerProvider: func() *zap.Logger {
			return application.logger
		},
		HumanReadableLoggingProvider: application.humanReadableLoggingEnabled,
		RemoteClientProvider: func() (overview.RemoteClient, error) {
			return application.buildRemoteClient()
		},
		RegistryProvider: func() (overview.RegistryStore, error) {
			return application.buildRegistryStore()
		},
	}
	reposCommand, reposBuildError := overviewBuilder.BuildReposCommand()
	if reposBuildError == nil {
		cobraCommand.AddCommand(reposCommand)
	}
	statusCommand, statusBuildError := overviewBuilder.BuildStatusCommand()
	if statusBuildError == nil {
		cobraCommand.AddCommand(statusCommand)
	}

	application.rootCommand = cobraCommand

	return application
}

// Execute runs the configured Cobra command hierarchy and ensures logger flushing.
func (application *Application) Execute() error {
	executionError := application.rootCommand.Execute()
	if syncError := application.flushLogger(); syncError != nil {
		return fmt.Errorf(loggerSyncErrorTemplateConstant, syncError)
	}
	return executionError
}

// ExecuteContext runs the command hierarchy under the provided context so
// watch-mode sync passes stop when the context is cancelled.
func (application *Application) ExecuteContext(executionContext context.Context) error {
	application.rootCommand.SetContext(executionContext)
	return application.Execute()
}

// Execute builds a fresh application instance and executes the root command
// hierarchy, cancelling long-running commands on interrupt signals.
func Execute() error {
	executionContext, stopSignalHandling := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignalHandling()
	return NewApplication().ExecuteContext(executionContext)
}

func (application *Application) initializeConfiguration(command *cobra.Command) error {
	defaultValues := map[string]any{
		commonLogLevelConfigKeyConstant:    string(utils.LogLevelInfo),
		commonLogFormatConfigKeyConstant:   string(utils.LogFormatStructured),
		remoteBaseURLConfigKeyConstant:     defaultRemoteBaseURLConstant,
		remoteDeviceTokenConfigKeyConstant: "",
		registryPathConfigKeyConstant:      defaultRegistryPathConstant,
	}
	for configurationKey, configurationValue := range syncer.DefaultConfigurationValues(syncConfigurationKeyConstant) {
		defaultValues[configurationKey] = configurationValue
	}
	for configurationKey, configurationValue := range clone.DefaultConfigurationValues(cloneConfigurationKeyConstant) {
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

	createdLogger, loggerCreationError := application.loggerFactory.CreateLogger(
		utils.LogLevel(application.configuration.Common.LogLevel),
		utils.LogFormat(application.configuration.Common.LogFormat),
	)
	if loggerCreationError != nil {
		return fmt.Errorf(loggerCreationErrorTemplateConstant, loggerCreationError)
	}

	application.logger = createdLogger

	application.logger.Info(
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
		command.SetContext(updatedContext)
		if rootCommand := command.Root(); rootCommand != nil {
			rootCommand.SetContext(updatedContext)
		}
	}

	return nil
}

func (application *Application) humanReadableLoggingEnabled() bool {
	logFormatValue := strings.TrimSpace(application.configuration.Common.LogFormat)
	return strings.EqualFold(logFormatValue, string(utils.LogFormatConsole))
}

func (application *Application) buildRemoteClient() (*remoteapi.Client, error) {
	return remoteapi.NewClient(
		application.configuration.Remote.BaseURL,
		application.configuration.Remote.DeviceToken,
		nil,
	)
}

func (application *Application) buildRegistryStore() (*registry.Store, error) {
	expandedRegistryPath := application.homeExpander.Expand(strings.TrimSpace(application.configuration.Registry.Path))
	return registry.NewStore(expandedRegistryPath)
}

func (application *Application) runRootCommand(command *cobra.Command, arguments []string) error {
	if application.logger == nil {
		return errors.New(loggerNotInitializedMessageConstant)
	}

	application.logger.Info(
		rootCommandInfoMessageConstant,
		zap.String(logFieldCommandNameConstant, command.Name()),
		zap.Int(logFieldArgumentCountConstant, len(arguments)),
	)

	debugFields := []zap.Field{
		zap.Strings(logFieldArgumentsConstant, arguments),
	}
	if configurationFilePathValue, configurationFilePathFound := application.commandContextAccessor.ConfigurationFilePath(command.Context()); configurationFilePathFound {
		debugFields = append(debugFields, zap.String(configurationFileFieldConstant, configurationFilePathValue))
	}

	application.logger.Debug(rootCommandDebugMessageConstant, debugFields...)

	if len(arguments) == 0 {
		return command.Help()
	}

	return nil
}

func (application *Application) flushLogger() error {
	if syncError := application.syncLoggerInstance(application.logger); syncError != nil {
		return syncError
	}
	return nil
}

func (application *Application) syncLoggerInstance(logger *zap.Logger) error {
	if logger == nil {
		return nil
	}

	syncError := logger.Sync()
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
