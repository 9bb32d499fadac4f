package syncer_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/itcpr/cloudsync/internal/execshell"
	"github.com/itcpr/cloudsync/internal/gitrepo"
	"github.com/itcpr/cloudsync/internal/registry"
	"github.com/itcpr/cloudsync/internal/syncer"
)

const (
	testRepositoryNameConstant       = "widget"
	testRepositoryPathConstant       = "/workspace/widget"
	testSecondRepositoryNameConstant = "gadget"
	testSecondRepositoryPathConstant = "/workspace/gadget"
	fetchCallNameConstant            = "fetch"
	statusCallNameConstant           = "status"
	commitCallNameConstant           = "commit"
	rebaseCallNameConstant           = "rebase"
	pushCallNameConstant             = "push"
)

type repositoryBehavior struct {
	statuses     []gitrepo.RepositoryStatus
	statusIndex  int
	fetchError   error
	commitResult bool
	commitError  error
	rebaseError  error
	pushError    error
}

type stubRepositoryManager struct {
	behaviors map[string]*repositoryBehavior
	calls     []string
}

func newStubRepositoryManager() *stubRepositoryManager {
	return &stubRepositoryManager{behaviors: map[string]*repositoryBehavior{}}
}

func (manager *stubRepositoryManager) behaviorFor(repositoryPath string) *repositoryBehavior {
	behavior, found := manager.behaviors[repositoryPath]
	if !found {
		behavior = &repositoryBehavior{statuses: []gitrepo.RepositoryStatus{{WorktreeClean: true}}}
		manager.behaviors[repositoryPath] = behavior
	}
	return behavior
}

func (manager *stubRepositoryManager) record(callName string, repositoryPath string) {
	manager.calls = append(manager.calls, callName+" "+repositoryPath)
}

func (manager *stubRepositoryManager) Fetch(executionContext context.Context, repositoryPath string) error {
	manager.record(fetchCallNameConstant, repositoryPath)
	return manager.behaviorFor(repositoryPath).fetchError
}

func (manager *stubRepositoryManager) GetStatus(executionContext context.Context, repositoryPath string) (gitrepo.RepositoryStatus, error) {
	manager.record(statusCallNameConstant, repositoryPath)
	behavior := manager.behaviorFor(repositoryPath)
	statusIndex := behavior.statusIndex
	if statusIndex >= len(behavior.statuses) {
		statusIndex = len(behavior.statuses) - 1
	}
	behavior.statusIndex++
	return behavior.statuses[statusIndex], nil
}

func (manager *stubRepositoryManager) PullRebase(executionContext context.Context, repositoryPath string) error {
	manager.record(rebaseCallNameConstant, repositoryPath)
	return manager.behaviorFor(repositoryPath).rebaseError
}

func (manager *stubRepositoryManager) CommitIfChanges(executionContext context.Context, repositoryPath string, commitMessage string) (bool, error) {
	manager.record(commitCallNameConstant, repositoryPath)
	behavior := manager.behaviorFor(repositoryPath)
	return behavior.commitResult, behavior.commitError
}

func (manager *stubRepositoryManager) Push(executionContext context.Context, repositoryPath string) error {
	manager.record(pushCallNameConstant, repositoryPath)
	return manager.behaviorFor(repositoryPath).pushError
}

type stubRegistryStore struct {
	repositories    []registry.Repository
	lastSyncUpdates []string
}

func (store *stubRegistryStore) ListRepositories() ([]registry.Repository, error) {
	return store.repositories, nil
}

func (store *stubRegistryStore) GetRepository(repositoryName string) (registry.Repository, bool, error) {
	for _, repository := range store.repositories {
		if repository.Name == repositoryName {
			return repository, true, nil
		}
	}
	return registry.Repository{}, false, nil
}

func (store *stubRegistryStore) UpdateLastSync(repositoryName string, syncTime time.Time) error {
	store.lastSyncUpdates = append(store.lastSyncUpdates, repositoryName)
	return nil
}

type fixedClock struct {
	current time.Time
}

func (clock fixedClock) Now() time.Time {
	return clock.current
}

func testRepositoryRecord(name string, path string, mode registry.SyncMode) registry.Repository {
	return registry.Repository{
		Name:      name,
		FullName:  "acme/" + name,
		LocalPath: path,
		RemoteURL: "https://github.com/acme/" + name + ".git",
		SyncMode:  mode,
	}
}

func newTestService(testInstance *testing.T, manager syncer.RepositoryManager, store syncer.RegistryStore) *syncer.Service {
	testInstance.Helper()
	service, creationError := syncer.NewService(syncer.Dependencies{
		RepositoryManager: manager,
		Registry:          store,
		Logger:            zap.NewNop(),
		Clock:             fixedClock{current: time.Date(2026, time.March, 14, 9, 30, 0, 0, time.UTC)},
	})
	require.NoError(testInstance, creationError)
	return service
}

func TestNewServiceValidation(testInstance *testing.T) {
	testCases := []struct {
		name          string
		dependencies  syncer.Dependencies
		expectedError error
	}{
		{
			name:          "missing_repository_manager",
			dependencies:  syncer.Dependencies{Registry: &stubRegistryStore{}},
			expectedError: syncer.ErrRepositoryManagerNotConfigured,
		},
		{
			name:          "missing_registry",
			dependencies:  syncer.Dependencies{RepositoryManager: newStubRepositoryManager()},
			expectedError: syncer.ErrRegistryStoreNotConfigured,
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			service, creationError := syncer.NewService(testCase.dependencies)
			require.Nil(testInstance, service)
			require.ErrorIs(testInstance, creationError, testCase.expectedError)
		})
	}
}

func TestSyncRepositoryStateMachine(testInstance *testing.T) {
	testCases := []struct {
		name            string
		behavior        repositoryBehavior
		expectedKind    syncer.OutcomeKind
		expectedReason  syncer.FailureReason
		expectedActions []syncer.SyncAction
		forbiddenCalls  []string
	}{
		{
			name: "clean_repository_is_up_to_date",
			behavior: repositoryBehavior{
				statuses: []gitrepo.RepositoryStatus{{WorktreeClean: true}},
			},
			expectedKind:    syncer.OutcomeUpToDate,
			expectedActions: []syncer.SyncAction{syncer.SyncActionFetch},
			forbiddenCalls:  []string{commitCallNameConstant, rebaseCallNameConstant, pushCallNameConstant},
		},
		{
			name: "local_changes_are_committed_and_pushed",
			behavior: repositoryBehavior{
				statuses: []gitrepo.RepositoryStatus{
					{WorktreeClean: false},
					{WorktreeClean: true, AheadCount: 1},
				},
				commitResult: true,
			},
			expectedKind: syncer.OutcomeSynced,
			expectedActions: []syncer.SyncAction{
				syncer.SyncActionFetch,
				syncer.SyncActionCommit,
				syncer.SyncActionPush,
			},
			forbiddenCalls: []string{rebaseCallNameConstant},
		},
		{
			name: "remote_ahead_triggers_rebase",
			behavior: repositoryBehavior{
				statuses: []gitrepo.RepositoryStatus{
					{WorktreeClean: true, BehindCount: 2},
					{WorktreeClean: true},
				},
			},
			expectedKind: syncer.OutcomeSynced,
			expectedActions: []syncer.SyncAction{
				syncer.SyncActionFetch,
				syncer.SyncActionPullRebase,
			},
			forbiddenCalls: []string{commitCallNameConstant, pushCallNameConstant},
		},
		{
			name: "local_ahead_triggers_push",
			behavior: repositoryBehavior{
				statuses: []gitrepo.RepositoryStatus{{WorktreeClean: true, AheadCount: 3}},
			},
			expectedKind: syncer.OutcomeSynced,
			expectedActions: []syncer.SyncAction{
				syncer.SyncActionFetch,
				syncer.SyncActionPush,
			},
			forbiddenCalls: []string{commitCallNameConstant, rebaseCallNameConstant},
		},
		{
			name: "rebase_conflict_reports_conflict",
			behavior: repositoryBehavior{
				statuses: []gitrepo.RepositoryStatus{
					{WorktreeClean: true, AheadCount: 1, BehindCount: 1},
				},
				rebaseError: gitrepo.MergeConflictError{Path: testRepositoryPathConstant},
			},
			expectedKind:   syncer.OutcomeConflict,
			expectedReason: syncer.FailureReasonMergeConflict,
			expectedActions: []syncer.SyncAction{
				syncer.SyncActionFetch,
				syncer.SyncActionPullRebase,
			},
			forbiddenCalls: []string{pushCallNameConstant},
		},
		{
			name: "persistent_divergence_reports_conflict",
			behavior: repositoryBehavior{
				statuses: []gitrepo.RepositoryStatus{
					{WorktreeClean: true, AheadCount: 1, BehindCount: 1, TrackingReference: "origin/main"},
					{WorktreeClean: true, AheadCount: 1, BehindCount: 1, TrackingReference: "origin/main"},
				},
			},
			expectedKind:   syncer.OutcomeConflict,
			expectedReason: syncer.FailureReasonDivergedHistory,
			expectedActions: []syncer.SyncAction{
				syncer.SyncActionFetch,
				syncer.SyncActionPullRebase,
			},
			forbiddenCalls: []string{pushCallNameConstant},
		},
		{
			name: "fetch_failure_reports_error",
			behavior: repositoryBehavior{
				statuses: []gitrepo.RepositoryStatus{{WorktreeClean: true}},
				fetchError: execshell.CommandFailedError{
					Result: execshell.ExecutionResult{ExitCode: 128, StandardError: "remote unreachable"},
				},
			},
			expectedKind:    syncer.OutcomeError,
			expectedReason:  syncer.FailureReasonCommandFailed,
			expectedActions: []syncer.SyncAction{syncer.SyncActionFetch},
			forbiddenCalls:  []string{commitCallNameConstant, rebaseCallNameConstant, pushCallNameConstant},
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			manager := newStubRepositoryManager()
			behavior := testCase.behavior
			manager.behaviors[testRepositoryPathConstant] = &behavior

			service := newTestService(testInstance, manager, &stubRegistryStore{})

			outcome := service.SyncRepository(context.Background(), testRepositoryRecord(testRepositoryNameConstant, testRepositoryPathConstant, registry.SyncModeAuto))
			require.Equal(testInstance, testCase.expectedKind, outcome.Kind)
			require.Equal(testInstance, testCase.expectedReason, outcome.Reason)
			require.Equal(testInstance, testCase.expectedActions, outcome.Actions)

			for _, forbiddenCall := range testCase.forbiddenCalls {
				require.NotContains(testInstance, manager.calls, forbiddenCall+" "+testRepositoryPathConstant)
			}
		})
	}
}

func TestSyncRepositoryOrdersCommitRebasePush(testInstance *testing.T) {
	manager := newStubRepositoryManager()
	manager.behaviors[testRepositoryPathConstant] = &repositoryBehavior{
		statuses: []gitrepo.RepositoryStatus{
			{WorktreeClean: false, AheadCount: 1, BehindCount: 2},
			{WorktreeClean: true, AheadCount: 2, BehindCount: 2},
			{WorktreeClean: true, AheadCount: 2},
		},
		commitResult: true,
	}

	service := newTestService(testInstance, manager, &stubRegistryStore{})

	outcome := service.SyncRepository(context.Background(), testRepositoryRecord(testRepositoryNameConstant, testRepositoryPathConstant, registry.SyncModeAuto))
	require.Equal(testInstance, syncer.OutcomeSynced, outcome.Kind)
	require.Equal(testInstance, []syncer.SyncAction{
		syncer.SyncActionFetch,
		syncer.SyncActionCommit,
		syncer.SyncActionPullRebase,
		syncer.SyncActionPush,
	}, outcome.Actions)

	commitIndex := indexOfCall(manager.calls, commitCallNameConstant)
	rebaseIndex := indexOfCall(manager.calls, rebaseCallNameConstant)
	pushIndex := indexOfCall(manager.calls, pushCallNameConstant)
	require.Less(testInstance, commitIndex, rebaseIndex)
	require.Less(testInstance, rebaseIndex, pushIndex)
}

func indexOfCall(calls []string, callName string) int {
	for callIndex, call := range calls {
		if call == callName+" "+testRepositoryPathConstant {
			return callIndex
		}
	}
	return -1
}

func TestRunPassContinuesPastFailures(testInstance *testing.T) {
	manager := newStubRepositoryManager()
	manager.behaviors[testRepositoryPathConstant] = &repositoryBehavior{
		statuses: []gitrepo.RepositoryStatus{{WorktreeClean: true}},
		fetchError: execshell.CommandFailedError{
			Result: execshell.ExecutionResult{ExitCode: 1, StandardError: "network down"},
		},
	}
	manager.behaviors[testSecondRepositoryPathConstant] = &repositoryBehavior{
		statuses: []gitrepo.RepositoryStatus{{WorktreeClean: true, AheadCount: 1}},
	}

	store := &stubRegistryStore{repositories: []registry.Repository{
		testRepositoryRecord(testRepositoryNameConstant, testRepositoryPathConstant, registry.SyncModeAuto),
		testRepositoryRecord(testSecondRepositoryNameConstant, testSecondRepositoryPathConstant, registry.SyncModeAuto),
	}}

	service := newTestService(testInstance, manager, store)

	summary, passError := service.RunPass(context.Background(), "")
	require.NoError(testInstance, passError)
	require.Len(testInstance, summary.Outcomes, 2)
	require.Equal(testInstance, 1, summary.FailureCount())
	require.Equal(testInstance, syncer.OutcomeError, summary.Outcomes[0].Kind)
	require.Equal(testInstance, syncer.OutcomeSynced, summary.Outcomes[1].Kind)
	require.Equal(testInstance, []string{testRepositoryNameConstant, testSecondRepositoryNameConstant}, store.lastSyncUpdates)
}

func TestRunPassSelectsAutoModeRepositories(testInstance *testing.T) {
	manager := newStubRepositoryManager()
	store := &stubRegistryStore{repositories: []registry.Repository{
		testRepositoryRecord(testRepositoryNameConstant, testRepositoryPathConstant, registry.SyncModeAuto),
		testRepositoryRecord(testSecondRepositoryNameConstant, testSecondRepositoryPathConstant, registry.SyncModeManual),
	}}

	service := newTestService(testInstance, manager, store)

	summary, passError := service.RunPass(context.Background(), "")
	require.NoError(testInstance, passError)
	require.Len(testInstance, summary.Outcomes, 1)
	require.Equal(testInstance, testRepositoryNameConstant, summary.Outcomes[0].RepositoryName)
	require.NotContains(testInstance, manager.calls, fetchCallNameConstant+" "+testSecondRepositoryPathConstant)
}

func TestRunPassSyncsNamedRepositoryRegardlessOfMode(testInstance *testing.T) {
	manager := newStubRepositoryManager()
	store := &stubRegistryStore{repositories: []registry.Repository{
		testRepositoryRecord(testSecondRepositoryNameConstant, testSecondRepositoryPathConstant, registry.SyncModeManual),
	}}

	service := newTestService(testInstance, manager, store)

	summary, passError := service.RunPass(context.Background(), testSecondRepositoryNameConstant)
	require.NoError(testInstance, passError)
	require.Len(testInstance, summary.Outcomes, 1)
	require.Equal(testInstance, testSecondRepositoryNameConstant, summary.Outcomes[0].RepositoryName)
}

func TestRunPassReportsUnknownRepository(testInstance *testing.T) {
	service := newTestService(testInstance, newStubRepositoryManager(), &stubRegistryStore{})

	_, passError := service.RunPass(context.Background(), "missing")
	require.Error(testInstance, passError)

	var notFoundError registry.RepositoryNotFoundError
	require.ErrorAs(testInstance, passError, &notFoundError)
}

func TestRunPassStopsOnCancelledContext(testInstance *testing.T) {
	manager := newStubRepositoryManager()
	store := &stubRegistryStore{repositories: []registry.Repository{
		testRepositoryRecord(testRepositoryNameConstant, testRepositoryPathConstant, registry.SyncModeAuto),
	}}

	service := newTestService(testInstance, manager, store)

	cancelledContext, cancelFunction := context.WithCancel(context.Background())
	cancelFunction()

	summary, passError := service.RunPass(cancelledContext, "")
	require.ErrorIs(testInstance, passError, context.Canceled)
	require.Empty(testInstance, summary.Outcomes)
	require.Empty(testInstance, manager.calls)
}

func TestWatchStopsOnCancellation(testInstance *testing.T) {
	manager := newStubRepositoryManager()
	store := &stubRegistryStore{repositories: []registry.Repository{
		testRepositoryRecord(testRepositoryNameConstant, testRepositoryPathConstant, registry.SyncModeAuto),
	}}

	service := newTestService(testInstance, manager, store)

	watchContext, cancelFunction := context.WithCancel(context.Background())
	cancelFunction()

	watchError := service.Watch(watchContext, "", 10*time.Millisecond)
	require.NoError(testInstance, watchError)
}
