package clone

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/itcpr/cloudsync/internal/registry"
	"github.com/itcpr/cloudsync/internal/remoteapi"
)

const (
	remoteClientMissingMessageConstant       = "remote client not configured"
	clonerMissingMessageConstant             = "repository cloner not configured"
	registryStoreMissingMessageConstant      = "registry store not configured"
	referenceRequiredMessageConstant         = "repository name or full name must be provided"
	remoteURLUnavailableMessageConstant      = "repository URL not available"
	notAssignedMessageTemplateConstant       = "repository %s is not assigned to this device"
	alreadyRegisteredMessageTemplateConstant = "repository %s is already cloned at %s"
	cloningMessageConstant                   = "cloning repository"
	clonedMessageConstant                    = "repository cloned"
	repositoryFieldConstant                  = "repository"
	destinationFieldConstant                 = "destination"
)

var (
	// ErrRemoteClientNotConfigured indicates the service was constructed without a remote client.
	ErrRemoteClientNotConfigured = errors.New(remoteClientMissingMessageConstant)
	// ErrClonerNotConfigured indicates the service was constructed without a cloner.
	ErrClonerNotConfigured = errors.New(clonerMissingMessageConstant)
	// ErrRegistryStoreNotConfigured indicates the service was constructed without a registry store.
	ErrRegistryStoreNotConfigured = errors.New(registryStoreMissingMessageConstant)
	// ErrRepositoryReferenceRequired indicates no repository was named.
	ErrRepositoryReferenceRequired = errors.New(referenceRequiredMessageConstant)
	// ErrRemoteURLUnavailable indicates the assignment carried no usable clone URL.
	ErrRemoteURLUnavailable = errors.New(remoteURLUnavailableMessageConstant)
)

// NotAssignedError indicates the requested repository is not assigned to this device.
type NotAssignedError struct {
	Reference string
}

// Error describes the missing assignment.
func (assignmentError NotAssignedError) Error() string {
	return fmt.Sprintf(notAssignedMessageTemplateConstant, assignmentError.Reference)
}

// AlreadyRegisteredError indicates the repository was cloned previously.
type AlreadyRegisteredError struct {
	Name      string
	LocalPath string
}

// Error describes the existing registration.
func (registeredError AlreadyRegisteredError) Error() string {
	return fmt.Sprintf(alreadyRegisteredMessageTemplateConstant, registeredError.Name, registeredError.LocalPath)
}

// RemoteClient enumerates the cloud service operations cloning requires.
type RemoteClient interface {
	GetAssignedRepositories(requestContext context.Context) ([]remoteapi.AssignedRepository, error)
	GetCloneToken(requestContext context.Context, repositoryName string) (string, error)
}

// RepositoryCloner clones a remote into a local destination.
type RepositoryCloner interface {
	Clone(executionContext context.Context, remoteURL string, destinationPath string, accessToken string) error
}

// RegistryStore enumerates the registry operations cloning requires.
type RegistryStore interface {
	GetRepository(repositoryName string) (registry.Repository, bool, error)
	AddRepository(repository registry.Repository) error
}

// WorkingDirectoryResolver reports the directory default clone destinations
// are resolved against.
type WorkingDirectoryResolver func() (string, error)

// Dependencies enumerates external collaborators required by the clone service.
type Dependencies struct {
	RemoteClient             RemoteClient
	Cloner                   RepositoryCloner
	Registry                 RegistryStore
	Logger                   *zap.Logger
	WorkingDirectoryResolver WorkingDirectoryResolver
}

// Options configures a clone operation.
type Options struct {
	// RepositoryReference matches either the short or the owner-qualified name
	// of an assigned repository.
	RepositoryReference string
	// DestinationPath overrides the default destination in the working directory.
	DestinationPath string
}

// Result captures the observable outcome of a clone.
type Result struct {
	Repository registry.Repository
}

// Service clones assigned repositories and records them in the registry.
type Service struct {
	remoteClient             RemoteClient
	cloner                   RepositoryCloner
	registryStore            RegistryStore
	logger                   *zap.Logger
	workingDirectoryResolver WorkingDirectoryResolver
}

// NewService constructs a Service from the provided dependencies.
func NewService(dependencies Dependencies) (*Service, error) {
	if dependencies.RemoteClient == nil {
		return nil, ErrRemoteClientNotConfigured
	}
	if dependencies.Cloner == nil {
		return nil, ErrClonerNotConfigured
	}
	if dependencies.Registry == nil {
		return nil, ErrRegistryStoreNotConfigured
	}

	logger := dependencies.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	workingDirectoryResolver := dependencies.WorkingDirectoryResolver
	if workingDirectoryResolver == nil {
		workingDirectoryResolver = os.Getwd
	}

	return &Service{
		remoteClient:             dependencies.RemoteClient,
		cloner:                   dependencies.Cloner,
		registryStore:            dependencies.Registry,
		logger:                   logger,
		workingDirectoryResolver: workingDirectoryResolver,
	}, nil
}

// Clone resolves the assignment, obtains a short-lived token, clones the
// repository, and registers it for automatic sync.
func (service *Service) Clone(executionContext context.Context, options Options) (Result, error) {
	trimmedReference := strings.TrimSpace(options.RepositoryReference)
	if len(trimmedReference) == 0 {
		return Result{}, ErrRepositoryReferenceRequired
	}

	assignedRepositories, assignmentError := service.remoteClient.GetAssignedRepositories(executionContext)
	if assignmentError != nil {
		return Result{}, assignmentError
	}

	var assignment *remoteapi.AssignedRepository
	for repositoryIndex := range assignedRepositories {
		if assignedRepositories[repositoryIndex].Name == trimmedReference || assignedRepositories[repositoryIndex].FullName == trimmedReference {
			assignment = &assignedRepositories[repositoryIndex]
			break
		}
	}
	if assignment == nil {
		return Result{}, NotAssignedError{Reference: trimmedReference}
	}

	remoteURL := assignment.RemoteURL()
	if len(strings.TrimSpace(remoteURL)) == 0 {
		return Result{}, ErrRemoteURLUnavailable
	}

	existingRepository, alreadyRegistered, lookupError := service.registryStore.GetRepository(assignment.Name)
	if lookupError != nil {
		return Result{}, lookupError
	}
	if alreadyRegistered {
		return Result{}, AlreadyRegisteredError{Name: existingRepository.Name, LocalPath: existingRepository.LocalPath}
	}

	destinationPath := strings.TrimSpace(options.DestinationPath)
	if len(destinationPath) == 0 {
		workingDirectory, workingDirectoryError := service.workingDirectoryResolver()
		if workingDirectoryError != nil {
			return Result{}, workingDirectoryError
		}
		destinationPath = filepath.Join(workingDirectory, assignment.Name)
	}

	cloneToken, tokenError := service.remoteClient.GetCloneToken(executionContext, assignment.Name)
	if tokenError != nil {
		return Result{}, tokenError
	}

	service.logger.Info(cloningMessageConstant,
		zap.String(repositoryFieldConstant, assignment.FullName),
		zap.String(destinationFieldConstant, destinationPath),
	)
	if cloneError := service.cloner.Clone(executionContext, remoteURL, destinationPath, cloneToken); cloneError != nil {
		return Result{}, cloneError
	}

	repositoryRecord := registry.Repository{
		Name:      assignment.Name,
		FullName:  assignment.FullName,
		LocalPath: destinationPath,
		RemoteURL: remoteURL,
		SyncMode:  registry.SyncModeAuto,
	}
	if registrationError := service.registryStore.AddRepository(repositoryRecord); registrationError != nil {
		return Result{}, registrationError
	}

	service.logger.Info(clonedMessageConstant,
		zap.String(repositoryFieldConstant, assignment.FullName),
		zap.String(destinationFieldConstant, destinationPath),
	)
	return Result{Repository: repositoryRecord}, nil
}
