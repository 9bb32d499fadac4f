package utils_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/itcpr/cloudsync/internal/utils"
)

const (
	commandContextConfigurationFilePathConstant = "/home/developer/.cloudsync/config.yaml"
)

func TestCommandContextAccessorConfigurationFilePathRoundTrip(testInstance *testing.T) {
	accessor := utils.NewCommandContextAccessor()

	updatedContext := accessor.WithConfigurationFilePath(context.Background(), commandContextConfigurationFilePathConstant)

	storedPath, pathFound := accessor.ConfigurationFilePath(updatedContext)
	require.True(testInstance, pathFound)
	require.Equal(testInstance, commandContextConfigurationFilePathConstant, storedPath)
}

func TestCommandContextAccessorConfigurationFilePathMissingValue(testInstance *testing.T) {
	accessor := utils.NewCommandContextAccessor()

	testCases := []struct {
		name             string
		executionContext context.Context
	}{
		{
			name:             "nil_context",
			executionContext: nil,
		},
		{
			name:             "context_without_value",
			executionContext: context.Background(),
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			storedPath, pathFound := accessor.ConfigurationFilePath(testCase.executionContext)
			require.False(testInstance, pathFound)
			require.Empty(testInstance, storedPath)
		})
	}
}

func TestCommandContextAccessorWithConfigurationFilePathAcceptsNilParent(testInstance *testing.T) {
	accessor := utils.NewCommandContextAccessor()

	updatedContext := accessor.WithConfigurationFilePath(nil, commandContextConfigurationFilePathConstant)
	require.NotNil(testInstance, updatedContext)

	storedPath, pathFound := accessor.ConfigurationFilePath(updatedContext)
	require.True(testInstance, pathFound)
	require.Equal(testInstance, commandContextConfigurationFilePathConstant, storedPath)
}
