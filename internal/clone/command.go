package clone

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/itcpr/cloudsync/internal/dependencies"
)

const (
	commandUseConstant                     = "clone REPOSITORY"
	commandShortDescriptionConstant        = "Clone an assigned repository"
	commandLongDescriptionConstant         = "clone resolves a repository assigned to this device, obtains a short-lived access token, clones it locally, and registers it for automatic sync."
	pathFlagNameConstant                   = "path"
	pathFlagDescriptionConstant            = "Destination path for the clone"
	remoteProviderMissingMessageConstant   = "remote client provider not configured"
	registryProviderMissingMessageConstant = "registry store provider not configured"
	cloneSuccessMessageTemplateConstant    = "CLONED: %s -> %s\n"
	configurationPathKeyConstant           = "path"
	configurationKeySeparatorConstant      = "."
)

var (
	// ErrRemoteProviderNotConfigured indicates the command was built without a remote client provider.
	ErrRemoteProviderNotConfigured = errors.New(remoteProviderMissingMessageConstant)
	// ErrRegistryProviderNotConfigured indicates the command was built without a registry provider.
	ErrRegistryProviderNotConfigured = errors.New(registryProviderMissingMessageConstant)
)

// LoggerProvider yields a zap logger for command execution.
type LoggerProvider func() *zap.Logger

// RemoteClientProvider yields the cloud service client.
type RemoteClientProvider func() (RemoteClient, error)

// RegistryProvider yields the registry store recording clones.
type RegistryProvider func() (RegistryStore, error)

// CommandConfiguration captures persistent settings for the clone command.
type CommandConfiguration struct {
	DestinationPath string `mapstructure:"path"`
}

// DefaultCommandConfiguration returns baseline configuration values for the clone command.
func DefaultCommandConfiguration() CommandConfiguration {
	return CommandConfiguration{DestinationPath: ""}
}

// DefaultConfigurationValues exposes the clone defaults keyed beneath the provided configuration root.
func DefaultConfigurationValues(rootKey string) map[string]any {
	defaults := DefaultCommandConfiguration()
	return map[string]any{
		rootKey + configurationKeySeparatorConstant + configurationPathKeyConstant: defaults.DestinationPath,
	}
}

// Sanitize trims whitespace from configuration values.
func (configuration CommandConfiguration) Sanitize() CommandConfiguration {
	sanitized := configuration
	sanitized.DestinationPath = strings.TrimSpace(configuration.DestinationPath)
	return sanitized
}

// CommandBuilder assembles the clone command.
type CommandBuilder struct {
	LoggerProvider               LoggerProvider
	RemoteClientProvider         RemoteClientProvider
	RegistryProvider             RegistryProvider
	Cloner                       RepositoryCloner
	ConfigurationProvider        func() CommandConfiguration
	HumanReadableLoggingProvider func() bool
}

// Build constructs the clone command.
func (builder *CommandBuilder) Build() (*cobra.Command, error) {
	command := &cobra.Command{
		Use:   commandUseConstant,
		Short: commandShortDescriptionConstant,
		Long:  commandLongDescriptionConstant,
		Args:  cobra.ExactArgs(1),
		RunE:  builder.run,
	}

	command.Flags().String(pathFlagNameConstant, "", pathFlagDescriptionConstant)

	return command, nil
}

func (builder *CommandBuilder) run(command *cobra.Command, arguments []string) error {
	configuration := builder.resolveConfiguration()

	destinationPath := configuration.DestinationPath
	if command.Flags().Changed(pathFlagNameConstant) {
		flagValue, flagError := command.Flags().GetString(pathFlagNameConstant)
		if flagError != nil {
			return flagError
		}
		destinationPath = strings.TrimSpace(flagValue)
	}

	logger := builder.resolveLogger()

	if builder.RemoteClientProvider == nil {
		return ErrRemoteProviderNotConfigured
	}
	remoteClient, remoteError := builder.RemoteClientProvider()
	if remoteError != nil {
		return remoteError
	}

	if builder.RegistryProvider == nil {
		return ErrRegistryProviderNotConfigured
	}
	registryStore, registryError := builder.RegistryProvider()
	if registryError != nil {
		return registryError
	}

	humanReadableLogging := false
	if builder.HumanReadableLoggingProvider != nil {
		humanReadableLogging = builder.HumanReadableLoggingProvider()
	}

	cloner := builder.Cloner
	if cloner == nil {
		gitExecutor, executorError := dependencies.ResolveGitExecutor(nil, logger, humanReadableLogging)
		if executorError != nil {
			return executorError
		}
		repositoryManager, managerError := dependencies.ResolveRepositoryManager(gitExecutor, nil)
		if managerError != nil {
			return managerError
		}
		cloner = repositoryManager
	}

	service, serviceCreationError := NewService(Dependencies{
		RemoteClient: remoteClient,
		Cloner:       cloner,
		Registry:     registryStore,
		Logger:       logger,
	})
	if serviceCreationError != nil {
		return serviceCreationError
	}

	result, cloneError := service.Clone(command.Context(), Options{
		RepositoryReference: arguments[0],
		DestinationPath:     destinationPath,
	})
	if cloneError != nil {
		return cloneError
	}

	fmt.Fprintf(command.OutOrStdout(), cloneSuccessMessageTemplateConstant, result.Repository.FullName, result.Repository.LocalPath)
	return nil
}

func (builder *CommandBuilder) resolveConfiguration() CommandConfiguration {
	if builder.ConfigurationProvider == nil {
		return DefaultCommandConfiguration()
	}
	return builder.ConfigurationProvider().Sanitize()
}

func (builder *CommandBuilder) resolveLogger() *zap.Logger {
	if builder.LoggerProvider == nil {
		return zap.NewNop()
	}
	logger := builder.LoggerProvider()
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}
