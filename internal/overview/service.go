package overview

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/itcpr/cloudsync/internal/gitrepo"
	"github.com/itcpr/cloudsync/internal/registry"
	"github.com/itcpr/cloudsync/internal/remoteapi"
)

const (
	remoteClientMissingMessageConstant  = "remote client not configured"
	registryStoreMissingMessageConstant = "registry store not configured"
)

var (
	// ErrRemoteClientNotConfigured indicates the service was constructed without a remote client.
	ErrRemoteClientNotConfigured = errors.New(remoteClientMissingMessageConstant)
	// ErrRegistryStoreNotConfigured indicates the service was constructed without a registry store.
	ErrRegistryStoreNotConfigured = errors.New(registryStoreMissingMessageConstant)
)

// RemoteClient enumerates the cloud service operations overviews require.
type RemoteClient interface {
	GetDeviceIdentity(requestContext context.Context) (remoteapi.DeviceIdentity, error)
	GetAssignedRepositories(requestContext context.Context) ([]remoteapi.AssignedRepository, error)
}

// RegistryStore enumerates the registry operations overviews require.
type RegistryStore interface {
	ListRepositories() ([]registry.Repository, error)
}

// StatusInspector derives git status for a local working copy.
type StatusInspector interface {
	GetStatus(executionContext context.Context, repositoryPath string) (gitrepo.RepositoryStatus, error)
}

// AssignedOverview pairs a repository assignment with its local clone state.
type AssignedOverview struct {
	Name      string
	FullName  string
	Cloned    bool
	LocalPath string
	LastSync  *time.Time
}

// LocalRepositoryStatus pairs a registered repository with its derived git
// state. StatusError records inspection failures without aborting the report.
type LocalRepositoryStatus struct {
	Repository  registry.Repository
	Status      gitrepo.RepositoryStatus
	StatusError error
}

// StatusReport aggregates device identity, assignments, and local state.
type StatusReport struct {
	Identity remoteapi.DeviceIdentity
	Assigned []remoteapi.AssignedRepository
	Local    []LocalRepositoryStatus
}

// Dependencies enumerates external collaborators required by the overview service.
type Dependencies struct {
	RemoteClient    RemoteClient
	Registry        RegistryStore
	StatusInspector StatusInspector
	Logger          *zap.Logger
}

// Service assembles repository overviews from the cloud service and registry.
type Service struct {
	remoteClient    RemoteClient
	registryStore   RegistryStore
	statusInspector StatusInspector
	logger          *zap.Logger
}

// NewService constructs a Service from the provided dependencies. The status
// inspector is optional; without one, local git state is omitted from reports.
func NewService(dependencies Dependencies) (*Service, error) {
	if dependencies.RemoteClient == nil {
		return nil, ErrRemoteClientNotConfigured
	}
	if dependencies.Registry == nil {
		return nil, ErrRegistryStoreNotConfigured
	}

	logger := dependencies.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Service{
		remoteClient:    dependencies.RemoteClient,
		registryStore:   dependencies.Registry,
		statusInspector: dependencies.StatusInspector,
		logger:          logger,
	}, nil
}

// ListAssigned reports every assigned repository together with its clone state.
func (service *Service) ListAssigned(executionContext context.Context) ([]AssignedOverview, error) {
	assignedRepositories, assignmentError := service.remoteClient.GetAssignedRepositories(executionContext)
	if assignmentError != nil {
		return nil, assignmentError
	}

	localRepositories, listError := service.registryStore.ListRepositories()
	if listError != nil {
		return nil, listError
	}

	localByName := make(map[string]registry.Repository, len(localRepositories))
	for _, localRepository := range localRepositories {
		localByName[localRepository.Name] = localRepository
	}

	overviews := make([]AssignedOverview, 0, len(assignedRepositories))
	for _, assignment := range assignedRepositories {
		overview := AssignedOverview{Name: assignment.Name, FullName: assignment.FullName}
		if localRepository, cloned := localByName[assignment.Name]; cloned {
			overview.Cloned = true
			overview.LocalPath = localRepository.LocalPath
			overview.LastSync = localRepository.LastSync
		}
		overviews = append(overviews, overview)
	}
	return overviews, nil
}

// BuildStatusReport collects device identity, assignments, and per-repository
// git state into a single report.
func (service *Service) BuildStatusReport(executionContext context.Context) (StatusReport, error) {
	identity, identityError := service.remoteClient.GetDeviceIdentity(executionContext)
	if identityError != nil {
		return StatusReport{}, identityError
	}

	assignedRepositories, assignmentError := service.remoteClient.GetAssignedRepositories(executionContext)
	if assignmentError != nil {
		return StatusReport{}, assignmentError
	}

	localRepositories, listError := service.registryStore.ListRepositories()
	if listError != nil {
		return StatusReport{}, listError
	}

	report := StatusReport{Identity: identity, Assigned: assignedRepositories}
	for _, localRepository := range localRepositories {
		localStatus := LocalRepositoryStatus{Repository: localRepository}
		if service.statusInspector != nil {
			localStatus.Status, localStatus.StatusError = service.statusInspector.GetStatus(executionContext, localRepository.LocalPath)
		}
		report.Local = append(report.Local, localStatus)
	}
	return report, nil
}
