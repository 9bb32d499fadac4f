package syncer_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/itcpr/cloudsync/internal/gitrepo"
	"github.com/itcpr/cloudsync/internal/registry"
	"github.com/itcpr/cloudsync/internal/syncer"
)

func buildTestCommandBuilder(manager syncer.RepositoryManager, store syncer.RegistryStore) *syncer.CommandBuilder {
	return &syncer.CommandBuilder{
		LoggerProvider:    func() *zap.Logger { return zap.NewNop() },
		RepositoryManager: manager,
		RegistryProvider:  func() (syncer.RegistryStore, error) { return store, nil },
	}
}

func TestSyncCommandDeclaresFlags(testInstance *testing.T) {
	builder := buildTestCommandBuilder(newStubRepositoryManager(), &stubRegistryStore{})

	command, buildError := builder.Build()
	require.NoError(testInstance, buildError)
	require.Equal(testInstance, "sync", command.Use)
	require.NotNil(testInstance, command.Flags().Lookup("name"))
	require.NotNil(testInstance, command.Flags().Lookup("watch"))
	require.NotNil(testInstance, command.Flags().Lookup("interval"))
}

func TestSyncCommandReportsOutcomes(testInstance *testing.T) {
	manager := newStubRepositoryManager()
	manager.behaviors[testRepositoryPathConstant] = &repositoryBehavior{
		statuses: []gitrepo.RepositoryStatus{{WorktreeClean: true, AheadCount: 1}},
	}
	store := &stubRegistryStore{repositories: []registry.Repository{
		testRepositoryRecord(testRepositoryNameConstant, testRepositoryPathConstant, registry.SyncModeAuto),
	}}

	builder := buildTestCommandBuilder(manager, store)
	command, buildError := builder.Build()
	require.NoError(testInstance, buildError)

	var outputBuffer bytes.Buffer
	command.SetOut(&outputBuffer)
	command.SetErr(&outputBuffer)
	command.SetArgs([]string{})

	require.NoError(testInstance, command.ExecuteContext(context.Background()))
	require.Contains(testInstance, outputBuffer.String(), "widget: synced")
}

func TestSyncCommandFailsWhenOutcomesFail(testInstance *testing.T) {
	manager := newStubRepositoryManager()
	manager.behaviors[testRepositoryPathConstant] = &repositoryBehavior{
		statuses:    []gitrepo.RepositoryStatus{{WorktreeClean: true, BehindCount: 1}},
		rebaseError: gitrepo.MergeConflictError{Path: testRepositoryPathConstant},
	}
	store := &stubRegistryStore{repositories: []registry.Repository{
		testRepositoryRecord(testRepositoryNameConstant, testRepositoryPathConstant, registry.SyncModeAuto),
	}}

	builder := buildTestCommandBuilder(manager, store)
	command, buildError := builder.Build()
	require.NoError(testInstance, buildError)

	var outputBuffer bytes.Buffer
	command.SetOut(&outputBuffer)
	command.SetErr(&outputBuffer)
	command.SetArgs([]string{})

	executionError := command.ExecuteContext(context.Background())
	require.Error(testInstance, executionError)
	require.Contains(testInstance, executionError.Error(), "1 failed")
	require.Contains(testInstance, outputBuffer.String(), "widget: conflict")
}

func TestSyncCommandRequiresRegistryProvider(testInstance *testing.T) {
	builder := &syncer.CommandBuilder{
		LoggerProvider:    func() *zap.Logger { return zap.NewNop() },
		RepositoryManager: newStubRepositoryManager(),
	}
	command, buildError := builder.Build()
	require.NoError(testInstance, buildError)

	command.SetArgs([]string{})
	command.SetOut(&bytes.Buffer{})
	command.SetErr(&bytes.Buffer{})

	executionError := command.ExecuteContext(context.Background())
	require.ErrorIs(testInstance, executionError, syncer.ErrRegistryProviderNotConfigured)
}

func TestSyncCommandNameFlagSelectsRepository(testInstance *testing.T) {
	manager := newStubRepositoryManager()
	store := &stubRegistryStore{repositories: []registry.Repository{
		testRepositoryRecord(testRepositoryNameConstant, testRepositoryPathConstant, registry.SyncModeManual),
		testRepositoryRecord(testSecondRepositoryNameConstant, testSecondRepositoryPathConstant, registry.SyncModeAuto),
	}}

	builder := buildTestCommandBuilder(manager, store)
	command, buildError := builder.Build()
	require.NoError(testInstance, buildError)

	var outputBuffer bytes.Buffer
	command.SetOut(&outputBuffer)
	command.SetErr(&outputBuffer)
	command.SetArgs([]string{"--name", testRepositoryNameConstant})

	require.NoError(testInstance, command.ExecuteContext(context.Background()))
	require.Contains(testInstance, manager.calls, fetchCallNameConstant+" "+testRepositoryPathConstant)
	require.NotContains(testInstance, manager.calls, fetchCallNameConstant+" "+testSecondRepositoryPathConstant)
}
