package clone_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/itcpr/cloudsync/internal/clone"
)

func buildTestCommandBuilder(remoteClient clone.RemoteClient, cloner clone.RepositoryCloner, store clone.RegistryStore) *clone.CommandBuilder {
	return &clone.CommandBuilder{
		RemoteClientProvider: func() (clone.RemoteClient, error) { return remoteClient, nil },
		RegistryProvider:     func() (clone.RegistryStore, error) { return store, nil },
		Cloner:               cloner,
	}
}

func TestCloneCommandDeclaresPathFlag(testInstance *testing.T) {
	builder := buildTestCommandBuilder(&stubRemoteClient{}, &stubCloner{}, &stubRegistryStore{})

	command, buildError := builder.Build()
	require.NoError(testInstance, buildError)
	require.NotNil(testInstance, command.Flags().Lookup("path"))
}

func TestCloneCommandReportsClonedRepository(testInstance *testing.T) {
	remoteClient := &stubRemoteClient{assignments: defaultAssignments(), cloneToken: testCloneTokenConstant}
	cloner := &stubCloner{}
	store := &stubRegistryStore{}

	builder := buildTestCommandBuilder(remoteClient, cloner, store)
	command, buildError := builder.Build()
	require.NoError(testInstance, buildError)

	var outputBuffer bytes.Buffer
	command.SetOut(&outputBuffer)
	command.SetErr(&outputBuffer)
	command.SetArgs([]string{testRepositoryNameConstant, "--path", testDestinationOverrideConstant})

	require.NoError(testInstance, command.ExecuteContext(context.Background()))
	require.Contains(testInstance, outputBuffer.String(), "CLONED: "+testRepositoryFullNameConstant+" -> "+testDestinationOverrideConstant)
	require.Len(testInstance, store.added, 1)
}

func TestCloneCommandRequiresRemoteProvider(testInstance *testing.T) {
	builder := &clone.CommandBuilder{
		RegistryProvider: func() (clone.RegistryStore, error) { return &stubRegistryStore{}, nil },
		Cloner:           &stubCloner{},
	}
	command, buildError := builder.Build()
	require.NoError(testInstance, buildError)

	command.SetArgs([]string{testRepositoryNameConstant})
	executionError := command.ExecuteContext(context.Background())
	require.ErrorIs(testInstance, executionError, clone.ErrRemoteProviderNotConfigured)
}
