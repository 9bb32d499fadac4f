package syncer

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/itcpr/cloudsync/internal/dependencies"
	"github.com/itcpr/cloudsync/internal/utils"
)

const (
	commandUseConstant                   = "sync"
	commandShortDescriptionConstant      = "Reconcile registered repositories with their remotes"
	commandLongDescriptionConstant       = "sync fetches, commits, rebases, and pushes each registered repository so local and remote history converge. Conflicting histories are reported, never force pushed."
	nameFlagNameConstant                 = "name"
	nameFlagDescriptionConstant          = "Sync only the named repository"
	watchFlagNameConstant                = "watch"
	watchFlagDescriptionConstant         = "Repeat sync passes until interrupted"
	intervalFlagNameConstant             = "interval"
	intervalFlagDescriptionConstant      = "Seconds between watch mode passes"
	registryNotConfiguredMessageConstant = "registry store provider not configured"
	passFailureMessageTemplateConstant   = "sync finished with %d failed repositories"
	outcomeLineTemplateConstant          = "%s: %s\n"
	outcomeDetailLineTemplateConstant    = "%s: %s (%s)\n"
)

// ErrRegistryProviderNotConfigured indicates the command was built without a registry provider.
var ErrRegistryProviderNotConfigured = errors.New(registryNotConfiguredMessageConstant)

// LoggerProvider yields a zap logger for command execution.
type LoggerProvider func() *zap.Logger

// RegistryProvider yields the registry store backing sync passes.
type RegistryProvider func() (RegistryStore, error)

// CommandBuilder assembles the sync command.
type CommandBuilder struct {
	LoggerProvider               LoggerProvider
	RepositoryManager            RepositoryManager
	RegistryProvider             RegistryProvider
	Clock                        Clock
	ConfigurationProvider        func() CommandConfiguration
	HumanReadableLoggingProvider func() bool
}

// Build constructs the sync command.
func (builder *CommandBuilder) Build() (*cobra.Command, error) {
	command := &cobra.Command{
		Use:   commandUseConstant,
		Short: commandShortDescriptionConstant,
		Long:  commandLongDescriptionConstant,
		Args:  cobra.NoArgs,
		RunE:  builder.run,
	}

	command.Flags().String(nameFlagNameConstant, "", nameFlagDescriptionConstant)
	command.Flags().Bool(watchFlagNameConstant, false, watchFlagDescriptionConstant)
	command.Flags().Int(intervalFlagNameConstant, defaultWatchIntervalSecondsConstant, intervalFlagDescriptionConstant)

	return command, nil
}

func (builder *CommandBuilder) run(command *cobra.Command, arguments []string) error {
	configuration := builder.resolveConfiguration()

	if command.Flags().Changed(nameFlagNameConstant) {
		flagValue, flagError := command.Flags().GetString(nameFlagNameConstant)
		if flagError != nil {
			return flagError
		}
		configuration.RepositoryName = strings.TrimSpace(flagValue)
	}
	if command.Flags().Changed(watchFlagNameConstant) {
		flagValue, flagError := command.Flags().GetBool(watchFlagNameConstant)
		if flagError != nil {
			return flagError
		}
		configuration.Watch = flagValue
	}
	if command.Flags().Changed(intervalFlagNameConstant) {
		flagValue, flagError := command.Flags().GetInt(intervalFlagNameConstant)
		if flagError != nil {
			return flagError
		}
		configuration.IntervalSeconds = flagValue
	}
	configuration = configuration.Sanitize()

	logger := builder.resolveLogger()

	humanReadableLogging := false
	if builder.HumanReadableLoggingProvider != nil {
		humanReadableLogging = builder.HumanReadableLoggingProvider()
	}

	repositoryManager := builder.RepositoryManager
	if repositoryManager == nil {
		gitExecutor, executorError := dependencies.ResolveGitExecutor(nil, logger, humanReadableLogging)
		if executorError != nil {
			return executorError
		}
		defaultManager, managerError := dependencies.ResolveRepositoryManager(gitExecutor, nil)
		if managerError != nil {
			return managerError
		}
		repositoryManager = defaultManager
	}

	if builder.RegistryProvider == nil {
		return ErrRegistryProviderNotConfigured
	}
	registryStore, registryError := builder.RegistryProvider()
	if registryError != nil {
		return registryError
	}

	service, serviceCreationError := NewService(Dependencies{
		RepositoryManager: repositoryManager,
		Registry:          registryStore,
		Logger:            logger,
		Clock:             builder.Clock,
	})
	if serviceCreationError != nil {
		return serviceCreationError
	}
	service.SetCommitMessage(configuration.CommitMessage)

	if configuration.Watch {
		watchInterval := time.Duration(configuration.IntervalSeconds) * time.Second
		return service.Watch(command.Context(), configuration.RepositoryName, watchInterval)
	}

	summary, passError := service.RunPass(command.Context(), configuration.RepositoryName)
	if passError != nil {
		return passError
	}

	outputWriter := utils.NewFlushingWriter(command.OutOrStdout())
	for _, outcome := range summary.Outcomes {
		if outcome.Err != nil {
			fmt.Fprintf(outputWriter, outcomeDetailLineTemplateConstant, outcome.RepositoryName, outcome.Kind, outcome.Err)
			continue
		}
		fmt.Fprintf(outputWriter, outcomeLineTemplateConstant, outcome.RepositoryName, outcome.Kind)
	}

	if failureCount := summary.FailureCount(); failureCount > 0 {
		return fmt.Errorf(passFailureMessageTemplateConstant, failureCount)
	}
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
