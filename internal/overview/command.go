package overview

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/itcpr/cloudsync/internal/dependencies"
)

const (
	reposCommandUseConstant                = "repos"
	reposCommandShortDescriptionConstant   = "List assigned repositories and their clone state"
	statusCommandUseConstant               = "status"
	statusCommandShortDescriptionConstant  = "Show device identity, assignments, and local repository state"
	remoteProviderMissingMessageConstant   = "remote client provider not configured"
	registryProviderMissingMessageConstant = "registry store provider not configured"
	noAssignmentsMessageConstant           = "No repositories assigned to this device.\n"
	assignedHeaderTemplateConstant         = "Assigned Repositories (%d):\n"
	clonedLineTemplateConstant             = "  [cloned]     %s\n"
	notClonedLineTemplateConstant          = "  [not cloned] %s\n"
	localPathLineTemplateConstant          = "               path: %s\n"
	lastSyncLineTemplateConstant           = "               last sync: %s\n"
	deviceHeaderConstant                   = "Device\n"
	deviceIdentifierLineTemplateConstant   = "  id: %s\n"
	deviceUserLineTemplateConstant         = "  user: %s <%s>\n"
	localHeaderTemplateConstant            = "Local Repositories (%d):\n"
	localRepositoryLineTemplateConstant    = "  %s (%s)\n"
	localSyncModeLineTemplateConstant      = "    sync mode: %s\n"
	localLastSyncLineTemplateConstant      = "    last sync: %s\n"
	localBranchLineTemplateConstant        = "    branch: %s dirty=%t ahead=%d behind=%d\n"
	localStatusErrorLineTemplateConstant   = "    status unavailable: %v\n"
	lastSyncNeverLabelConstant             = "never"
	lastSyncTimestampLayoutConstant        = time.RFC3339
)

var (
	// ErrRemoteProviderNotConfigured indicates a command was built without a remote client provider.
	ErrRemoteProviderNotConfigured = errors.New(remoteProviderMissingMessageConstant)
	// ErrRegistryProviderNotConfigured indicates a command was built without a registry provider.
	ErrRegistryProviderNotConfigured = errors.New(registryProviderMissingMessageConstant)
)

// LoggerProvider yields a zap logger for command execution.
type LoggerProvider func() *zap.Logger

// RemoteClientProvider yields the cloud service client.
type RemoteClientProvider func() (RemoteClient, error)

// RegistryProvider yields the registry store backing overviews.
type RegistryProvider func() (RegistryStore, error)

// CommandBuilder assembles the repos and status commands.
type CommandBuilder struct {
	LoggerProvider               LoggerProvider
	RemoteClientProvider         RemoteClientProvider
	RegistryProvider             RegistryProvider
	StatusInspector              StatusInspector
	HumanReadableLoggingProvider func() bool
}

// BuildReposCommand constructs the repos command.
func (builder *CommandBuilder) BuildReposCommand() (*cobra.Command, error) {
	command := &cobra.Command{
		Use:   reposCommandUseConstant,
		Short: reposCommandShortDescriptionConstant,
		Args:  cobra.NoArgs,
		RunE:  builder.runRepos,
	}
	return command, nil
}

// BuildStatusCommand constructs the status command.
func (builder *CommandBuilder) BuildStatusCommand() (*cobra.Command, error) {
	command := &cobra.Command{
		Use:   statusCommandUseConstant,
		Short: statusCommandShortDescriptionConstant,
		Args:  cobra.NoArgs,
		RunE:  builder.runStatus,
	}
	return command, nil
}

func (builder *CommandBuilder) runRepos(command *cobra.Command, arguments []string) error {
	service, serviceError := builder.buildService(false)
	if serviceError != nil {
		return serviceError
	}

	overviews, listError := service.ListAssigned(command.Context())
	if listError != nil {
		return listError
	}

	if len(overviews) == 0 {
		fmt.Fprint(command.OutOrStdout(), noAssignmentsMessageConstant)
		return nil
	}

	fmt.Fprintf(command.OutOrStdout(), assignedHeaderTemplateConstant, len(overviews))
	for _, overview := range overviews {
		if !overview.Cloned {
			fmt.Fprintf(command.OutOrStdout(), notClonedLineTemplateConstant, overview.FullName)
			continue
		}
		fmt.Fprintf(command.OutOrStdout(), clonedLineTemplateConstant, overview.FullName)
		fmt.Fprintf(command.OutOrStdout(), localPathLineTemplateConstant, overview.LocalPath)
		fmt.Fprintf(command.OutOrStdout(), lastSyncLineTemplateConstant, formatLastSync(overview.LastSync))
	}
	return nil
}

func (builder *CommandBuilder) runStatus(command *cobra.Command, arguments []string) error {
	service, serviceError := builder.buildService(true)
	if serviceError != nil {
		return serviceError
	}

	report, reportError := service.BuildStatusReport(command.Context())
	if reportError != nil {
		return reportError
	}

	fmt.Fprint(command.OutOrStdout(), deviceHeaderConstant)
	fmt.Fprintf(command.OutOrStdout(), deviceIdentifierLineTemplateConstant, report.Identity.DeviceID)
	fmt.Fprintf(command.OutOrStdout(), deviceUserLineTemplateConstant, report.Identity.User.Name, report.Identity.User.Email)

	fmt.Fprintf(command.OutOrStdout(), assignedHeaderTemplateConstant, len(report.Assigned))
	for _, assignment := range report.Assigned {
		fmt.Fprintf(command.OutOrStdout(), notClonedLineTemplateConstant, assignment.FullName)
	}

	fmt.Fprintf(command.OutOrStdout(), localHeaderTemplateConstant, len(report.Local))
	for _, localStatus := range report.Local {
		fmt.Fprintf(command.OutOrStdout(), localRepositoryLineTemplateConstant, localStatus.Repository.Name, localStatus.Repository.LocalPath)
		fmt.Fprintf(command.OutOrStdout(), localSyncModeLineTemplateConstant, localStatus.Repository.SyncMode)
		fmt.Fprintf(command.OutOrStdout(), localLastSyncLineTemplateConstant, formatLastSync(localStatus.Repository.LastSync))
		if localStatus.StatusError != nil {
			fmt.Fprintf(command.OutOrStdout(), localStatusErrorLineTemplateConstant, localStatus.StatusError)
			continue
		}
		fmt.Fprintf(command.OutOrStdout(), localBranchLineTemplateConstant,
			localStatus.Status.CurrentBranch,
			!localStatus.Status.WorktreeClean,
			localStatus.Status.AheadCount,
			localStatus.Status.BehindCount,
		)
	}
	return nil
}

func (builder *CommandBuilder) buildService(withStatusInspector bool) (*Service, error) {
	logger := builder.resolveLogger()

	if builder.RemoteClientProvider == nil {
		return nil, ErrRemoteProviderNotConfigured
	}
	remoteClient, remoteError := builder.RemoteClientProvider()
	if remoteError != nil {
		return nil, remoteError
	}

	if builder.RegistryProvider == nil {
		return nil, ErrRegistryProviderNotConfigured
	}
	registryStore, registryError := builder.RegistryProvider()
	if registryError != nil {
		return nil, registryError
	}

	statusInspector := builder.StatusInspector
	if withStatusInspector && statusInspector == nil {
		humanReadableLogging := false
		if builder.HumanReadableLoggingProvider != nil {
			humanReadableLogging = builder.HumanReadableLoggingProvider()
		}
		gitExecutor, executorError := dependencies.ResolveGitExecutor(nil, logger, humanReadableLogging)
		if executorError != nil {
			return nil, executorError
		}
		repositoryManager, managerError := dependencies.ResolveRepositoryManager(gitExecutor, nil)
		if managerError != nil {
			return nil, managerError
		}
		statusInspector = repositoryManager
	}

	return NewService(Dependencies{
		RemoteClient:    remoteClient,
		Registry:        registryStore,
		StatusInspector: statusInspector,
		Logger:          logger,
	})
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

func formatLastSync(lastSync *time.Time) string {
	if lastSync == nil {
		return lastSyncNeverLabelConstant
	}
	return lastSync.Format(lastSyncTimestampLayoutConstant)
}
