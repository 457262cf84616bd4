package connection_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/testnode/internal/connection"
	"github.com/temirov/testnode/internal/nodeerrors"
)

const (
	testPrivateAddressConstant = "10.0.0.5"
	testPublicAddressConstant  = "203.0.113.7"
	testUsernameConstant       = "root"
	testPasswordConstant       = "x"
)

func TestBuildMirrorsMissingPairMembers(testInstance *testing.T) {
	testCases := []struct {
		name                  string
		parameters            connection.Parameters
		expectedAddress       string
		expectedPublicAddress string
		expectedPort          int
		expectedPublicPort    int
	}{
		{
			name:                  "address_only",
			parameters:            connection.Parameters{Address: testPrivateAddressConstant, Port: 22},
			expectedAddress:       testPrivateAddressConstant,
			expectedPublicAddress: testPrivateAddressConstant,
			expectedPort:          22,
			expectedPublicPort:    22,
		},
		{
			name:                  "public_only",
			parameters:            connection.Parameters{PublicAddress: testPublicAddressConstant, PublicPort: 2222},
			expectedAddress:       testPublicAddressConstant,
			expectedPublicAddress: testPublicAddressConstant,
			expectedPort:          2222,
			expectedPublicPort:    2222,
		},
		{
			name:                  "both_supplied",
			parameters:            connection.Parameters{Address: testPrivateAddressConstant, Port: 22, PublicAddress: testPublicAddressConstant, PublicPort: 50022},
			expectedAddress:       testPrivateAddressConstant,
			expectedPublicAddress: testPublicAddressConstant,
			expectedPort:          22,
			expectedPublicPort:    50022,
		},
		{
			name:                  "crossed_pairs",
			parameters:            connection.Parameters{Address: testPrivateAddressConstant, PublicPort: 2200},
			expectedAddress:       testPrivateAddressConstant,
			expectedPublicAddress: testPrivateAddressConstant,
			expectedPort:          2200,
			expectedPublicPort:    2200,
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			descriptor, buildError := connection.Build(testCase.parameters)
			require.NoError(testInstance, buildError)
			require.Equal(testInstance, testCase.expectedAddress, descriptor.Address())
			require.Equal(testInstance, testCase.expectedPublicAddress, descriptor.PublicAddress())
			require.Equal(testInstance, testCase.expectedPort, descriptor.Port())
			require.Equal(testInstance, testCase.expectedPublicPort, descriptor.PublicPort())
		})
	}
}

func TestBuildRejectsMissingPairs(testInstance *testing.T) {
	testCases := []struct {
		name          string
		parameters    connection.Parameters
		expectedField string
	}{
		{
			name:          "no_address",
			parameters:    connection.Parameters{Port: 22, PublicPort: 22},
			expectedField: "address",
		},
		{
			name:          "blank_address",
			parameters:    connection.Parameters{Address: "  ", Port: 22},
			expectedField: "address",
		},
		{
			name:          "no_port",
			parameters:    connection.Parameters{Address: testPrivateAddressConstant},
			expectedField: "port",
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			_, buildError := connection.Build(testCase.parameters)
			require.Error(testInstance, buildError)

			var configurationError nodeerrors.ConfigurationError
			require.ErrorAs(testInstance, buildError, &configurationError)
			require.Equal(testInstance, testCase.expectedField, configurationError.Field)
		})
	}
}

func TestBuildKeepsCredentialsAndEndpoint(testInstance *testing.T) {
	parameters := connection.DefaultParameters()
	parameters.Address = testPrivateAddressConstant
	parameters.Password = testPasswordConstant
	parameters.PrivateKeyFile = "/keys/id_ed25519"

	descriptor, buildError := connection.Build(parameters)
	require.NoError(testInstance, buildError)
	require.Equal(testInstance, testUsernameConstant, descriptor.Username())
	require.Equal(testInstance, testPasswordConstant, descriptor.Password())
	require.Equal(testInstance, "/keys/id_ed25519", descriptor.PrivateKeyFile())
	require.Equal(testInstance, "10.0.0.5:22", descriptor.Endpoint())
}
