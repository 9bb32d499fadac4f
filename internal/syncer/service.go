package syncer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/itcpr/cloudsync/internal/gitrepo"
	"github.com/itcpr/cloudsync/internal/registry"
)

const (
	repositoryManagerMissingMessageConstant = "repository manager not configured"
	registryStoreMissingMessageConstant     = "registry store not configured"
	defaultCommitMessageConstant            = "Auto-commit from cloudsync"
	divergedHistoryMessageTemplateConstant  = "repository %s still diverges from %s after rebase"
	repositoryNameFieldConstant             = "repository"
	outcomeFieldConstant                    = "outcome"
	reasonFieldConstant                     = "reason"
	passFailureCountFieldConstant           = "failures"
	passRepositoryCountFieldConstant        = "repositories"
	syncPassCompletedMessageConstant        = "sync pass completed"
	repositoryOutcomeMessageConstant        = "repository sync finished"
	lastSyncUpdateFailedMessageConstant     = "failed to record last sync time"
	watchPassFailedMessageConstant          = "sync pass reported failures"
	watchStoppedMessageConstant             = "watch loop stopped"
)

var (
	// ErrRepositoryManagerNotConfigured indicates the service was constructed without a repository manager.
	ErrRepositoryManagerNotConfigured = errors.New(repositoryManagerMissingMessageConstant)
	// ErrRegistryStoreNotConfigured indicates the service was constructed without a registry store.
	ErrRegistryStoreNotConfigured = errors.New(registryStoreMissingMessageConstant)
)

// DivergedHistoryError indicates local and remote history still diverge after
// a successful rebase, which only a force push could resolve.
type DivergedHistoryError struct {
	RepositoryPath    string
	TrackingReference string
}

// Error describes the divergence.
func (divergedError DivergedHistoryError) Error() string {
	return fmt.Sprintf(divergedHistoryMessageTemplateConstant, divergedError.RepositoryPath, divergedError.TrackingReference)
}

// RepositoryManager enumerates the git operations the orchestrator drives.
type RepositoryManager interface {
	Fetch(executionContext context.Context, repositoryPath string) error
	GetStatus(executionContext context.Context, repositoryPath string) (gitrepo.RepositoryStatus, error)
	PullRebase(executionContext context.Context, repositoryPath string) error
	CommitIfChanges(executionContext context.Context, repositoryPath string, commitMessage string) (bool, error)
	Push(executionContext context.Context, repositoryPath string) error
}

// RegistryStore enumerates the registry operations the orchestrator needs.
type RegistryStore interface {
	ListRepositories() ([]registry.Repository, error)
	GetRepository(repositoryName string) (registry.Repository, bool, error)
	UpdateLastSync(repositoryName string, syncTime time.Time) error
}

// Dependencies enumerates external collaborators required by the sync service.
type Dependencies struct {
	RepositoryManager RepositoryManager
	Registry          RegistryStore
	Logger            *zap.Logger
	Clock             Clock
}

// Service reconciles registered repositories with their remotes.
type Service struct {
	repositoryManager RepositoryManager
	registryStore     RegistryStore
	logger            *zap.Logger
	clock             Clock
	commitMessage     string
}

// NewService constructs a Service from the provided dependencies. A nil logger
// selects a no-op logger and a nil clock selects the system clock.
func NewService(dependencies Dependencies) (*Service, error) {
	if dependencies.RepositoryManager == nil {
		return nil, ErrRepositoryManagerNotConfigured
	}
	if dependencies.Registry == nil {
		return nil, ErrRegistryStoreNotConfigured
	}

	logger := dependencies.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := dependencies.Clock
	if clock == nil {
		clock = SystemClock{}
	}

	return &Service{
		repositoryManager: dependencies.RepositoryManager,
		registryStore:     dependencies.Registry,
		logger:            logger,
		clock:             clock,
		commitMessage:     defaultCommitMessageConstant,
	}, nil
}

// SetCommitMessage overrides the message used for automatic commits.
func (service *Service) SetCommitMessage(commitMessage string) {
	if service == nil || len(commitMessage) == 0 {
		return
	}
	service.commitMessage = commitMessage
}

// SyncRepository reconciles a single repository and reports the outcome.
//
// Local changes are committed before any rebase, and the rebase always
// precedes the push. A rebase that stops on conflicting changes, or history
// that still diverges afterwards, yields a conflict outcome; the orchestrator
// never force pushes.
func (service *Service) SyncRepository(executionContext context.Context, repository registry.Repository) Outcome {
	outcome := Outcome{RepositoryName: repository.Name, Kind: OutcomeUpToDate}

	outcome.Actions = append(outcome.Actions, SyncActionFetch)
	if fetchError := service.repositoryManager.Fetch(executionContext, repository.LocalPath); fetchError != nil {
		return service.failedOutcome(outcome, fetchError)
	}

	repositoryStatus, statusError := service.repositoryManager.GetStatus(executionContext, repository.LocalPath)
	if statusError != nil {
		return service.failedOutcome(outcome, statusError)
	}

	mutated := false
	if !repositoryStatus.WorktreeClean {
		outcome.Actions = append(outcome.Actions, SyncActionCommit)
		committed, commitError := service.repositoryManager.CommitIfChanges(executionContext, repository.LocalPath, service.commitMessage)
		if commitError != nil {
			return service.failedOutcome(outcome, commitError)
		}
		mutated = mutated || committed

		repositoryStatus, statusError = service.repositoryManager.GetStatus(executionContext, repository.LocalPath)
		if statusError != nil {
			return service.failedOutcome(outcome, statusError)
		}
	}

	if repositoryStatus.BehindCount > 0 {
		outcome.Actions = append(outcome.Actions, SyncActionPullRebase)
		if rebaseError := service.repositoryManager.PullRebase(executionContext, repository.LocalPath); rebaseError != nil {
			return service.failedOutcome(outcome, rebaseError)
		}
		mutated = true

		repositoryStatus, statusError = service.repositoryManager.GetStatus(executionContext, repository.LocalPath)
		if statusError != nil {
			return service.failedOutcome(outcome, statusError)
		}
		if repositoryStatus.BehindCount > 0 {
			return service.failedOutcome(outcome, DivergedHistoryError{
				RepositoryPath:    repository.LocalPath,
				TrackingReference: repositoryStatus.TrackingReference,
			})
		}
	}

	if repositoryStatus.AheadCount > 0 {
		outcome.Actions = append(outcome.Actions, SyncActionPush)
		if pushError := service.repositoryManager.Push(executionContext, repository.LocalPath); pushError != nil {
			return service.failedOutcome(outcome, pushError)
		}
		mutated = true
	}

	if mutated {
		outcome.Kind = OutcomeSynced
	}
	return outcome
}

func (service *Service) failedOutcome(outcome Outcome, failure error) Outcome {
	outcome.Err = failure
	outcome.Reason = classifyFailure(failure)

	var divergedError DivergedHistoryError
	switch {
	case outcome.Reason == FailureReasonMergeConflict:
		outcome.Kind = OutcomeConflict
	case errors.As(failure, &divergedError):
		outcome.Kind = OutcomeConflict
		outcome.Reason = FailureReasonDivergedHistory
	default:
		outcome.Kind = OutcomeError
	}
	return outcome
}

// RunPass syncs every auto-mode registered repository, or the single named
// repository when repositoryName is non-empty. Individual failures are
// recorded as outcomes; the pass only stops early on context cancellation.
func (service *Service) RunPass(executionContext context.Context, repositoryName string) (PassSummary, error) {
	repositories, selectionError := service.selectRepositories(repositoryName)
	if selectionError != nil {
		return PassSummary{}, selectionError
	}

	summary := PassSummary{}
	for _, repository := range repositories {
		if contextError := executionContext.Err(); contextError != nil {
			return summary, contextError
		}

		outcome := service.SyncRepository(executionContext, repository)
		summary.Outcomes = append(summary.Outcomes, outcome)
		service.logOutcome(outcome)

		if updateError := service.registryStore.UpdateLastSync(repository.Name, service.clock.Now()); updateError != nil {
			service.logger.Warn(lastSyncUpdateFailedMessageConstant,
				zap.String(repositoryNameFieldConstant, repository.Name),
				zap.Error(updateError),
			)
		}
	}

	service.logger.Info(syncPassCompletedMessageConstant,
		zap.Int(passRepositoryCountFieldConstant, len(summary.Outcomes)),
		zap.Int(passFailureCountFieldConstant, summary.FailureCount()),
	)
	return summary, nil
}

func (service *Service) selectRepositories(repositoryName string) ([]registry.Repository, error) {
	if len(repositoryName) > 0 {
		repository, found, lookupError := service.registryStore.GetRepository(repositoryName)
		if lookupError != nil {
			return nil, lookupError
		}
		if !found {
			return nil, registry.RepositoryNotFoundError{Name: repositoryName}
		}
		return []registry.Repository{repository}, nil
	}

	allRepositories, listError := service.registryStore.ListRepositories()
	if listError != nil {
		return nil, listError
	}

	selectedRepositories := make([]registry.Repository, 0, len(allRepositories))
	for _, repository := range allRepositories {
		if repository.SyncMode == registry.SyncModeAuto {
			selectedRepositories = append(selectedRepositories, repository)
		}
	}
	return selectedRepositories, nil
}

func (service *Service) logOutcome(outcome Outcome) {
	fields := []zap.Field{
		zap.String(repositoryNameFieldConstant, outcome.RepositoryName),
		zap.String(outcomeFieldConstant, string(outcome.Kind)),
	}
	if outcome.Err == nil {
		service.logger.Info(repositoryOutcomeMessageConstant, fields...)
		return
	}
	fields = append(fields,
		zap.String(reasonFieldConstant, string(outcome.Reason)),
		zap.Error(outcome.Err),
	)
	service.logger.Warn(repositoryOutcomeMessageConstant, fields...)
}

// Watch repeats sync passes on a fixed interval until the context is
// cancelled. Cancellation is honored between passes; failures within a pass
// are logged and the loop continues.
func (service *Service) Watch(executionContext context.Context, repositoryName string, interval time.Duration) error {
	intervalTicker := time.NewTicker(interval)
	defer intervalTicker.Stop()

	for {
		summary, passError := service.RunPass(executionContext, repositoryName)
		if passError != nil {
			if errors.Is(passError, context.Canceled) || errors.Is(passError, context.DeadlineExceeded) {
				service.logger.Info(watchStoppedMessageConstant)
				return nil
			}
			service.logger.Warn(watchPassFailedMessageConstant, zap.Error(passError))
		} else if summary.FailureCount() > 0 {
			service.logger.Warn(watchPassFailedMessageConstant, zap.Int(passFailureCountFieldConstant, summary.FailureCount()))
		}

		select {
		case <-executionContext.Done():
			service.logger.Info(watchStoppedMessageConstant)
			return nil
		case <-intervalTicker.C:
		}
	}
}
