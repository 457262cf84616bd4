package inventory_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/temirov/testnode/internal/inventory"
	"github.com/temirov/testnode/internal/node"
	"github.com/temirov/testnode/internal/nodeerrors"
)

const (
	inventoryContentConstant = `nodes:
  - name: local
    type: local
  - name: vm1
    type: remote
    address: 10.0.0.4
    port: "2222"
    username: lisa
    privateKeyFile: ~/.ssh/lisa_key
    isDefault: true
  - name: vm2
    type: remote
    publicAddress: vm2.example.com
`
	inventoryFileNameConstant = "inventory.yaml"
)

func writeInventory(testInstance *testing.T, content string) string {
	testInstance.Helper()
	inventoryPath := filepath.Join(testInstance.TempDir(), inventoryFileNameConstant)
	require.NoError(testInstance, os.WriteFile(inventoryPath, []byte(content), 0o600))
	return inventoryPath
}

func TestLoadInventory(testInstance *testing.T) {
	loadedInventory, loadError := inventory.Load(writeInventory(testInstance, inventoryContentConstant))
	require.NoError(testInstance, loadError)

	require.Equal(testInstance, []string{"local", "vm1", "vm2"}, loadedInventory.Names())

	defaultName, defaultError := loadedInventory.DefaultName()
	require.NoError(testInstance, defaultError)
	require.Equal(testInstance, "vm1", defaultName)

	entry, found := loadedInventory.Find("vm2")
	require.True(testInstance, found)
	require.Equal(testInstance, node.TypeRemoteConstant, entry.Type())
	require.False(testInstance, entry.IsDefault())
	require.NotContains(testInstance, entry.Descriptor, "name")

	_, found = loadedInventory.Find("missing")
	require.False(testInstance, found)
}

func TestLoadInventoryExpandsPrivateKeyPath(testInstance *testing.T) {
	homeDirectory, homeError := os.UserHomeDir()
	if homeError != nil || len(homeDirectory) == 0 {
		testInstance.Skip("home directory unavailable")
	}

	loadedInventory, loadError := inventory.Load(writeInventory(testInstance, inventoryContentConstant))
	require.NoError(testInstance, loadError)

	entry, found := loadedInventory.Find("vm1")
	require.True(testInstance, found)
	require.Equal(testInstance, filepath.Join(homeDirectory, ".ssh", "lisa_key"), entry.Descriptor["privateKeyFile"])
}

func TestLoadInventoryRejectsInvalidContent(testInstance *testing.T) {
	testCases := []struct {
		name            string
		content         string
		expectedMessage string
	}{
		{
			name:            "missing_name",
			content:         "nodes:\n  - type: local\n",
			expectedMessage: "missing node name",
		},
		{
			name:            "duplicate_name",
			content:         "nodes:\n  - name: a\n    type: local\n  - name: a\n    type: local\n",
			expectedMessage: "more than once",
		},
		{
			name:            "two_defaults",
			content:         "nodes:\n  - name: a\n    type: local\n    isDefault: true\n  - name: b\n    type: local\n    isDefault: \"true\"\n",
			expectedMessage: "as default",
		},
		{
			name:            "malformed_yaml",
			content:         "nodes: [",
			expectedMessage: "failed to parse inventory",
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			_, loadError := inventory.Load(writeInventory(testInstance, testCase.content))
			require.ErrorContains(testInstance, loadError, testCase.expectedMessage)
		})
	}
}

func TestLoadInventoryRequiresPath(testInstance *testing.T) {
	_, loadError := inventory.Load("  ")
	require.ErrorContains(testInstance, loadError, "path must be provided")

	_, loadError = inventory.Load(filepath.Join(testInstance.TempDir(), "absent.yaml"))
	require.ErrorContains(testInstance, loadError, "failed to load inventory")
}

func TestInventoryWithoutDefault(testInstance *testing.T) {
	loadedInventory, parseError := inventory.Parse([]byte("nodes:\n  - name: a\n    type: local\n"))
	require.NoError(testInstance, parseError)

	_, defaultError := loadedInventory.DefaultName()
	require.ErrorIs(testInstance, defaultError, inventory.ErrNoDefaultNode)
}

func TestInventoryBuildNodes(testInstance *testing.T) {
	loadedInventory, loadError := inventory.Load(writeInventory(testInstance, inventoryContentConstant))
	require.NoError(testInstance, loadError)

	dependencies := node.Dependencies{Logger: zap.NewNop()}

	localNode, localError := loadedInventory.Build("local", dependencies)
	require.NoError(testInstance, localError)
	require.False(testInstance, localNode.IsRemote())
	require.Equal(testInstance, "local", localNode.Identifier())

	remoteNode, remoteError := loadedInventory.Build("vm1", dependencies)
	require.NoError(testInstance, remoteError)
	require.True(testInstance, remoteNode.IsRemote())
	require.True(testInstance, remoteNode.IsDefault())
	descriptor, attached := remoteNode.Descriptor()
	require.True(testInstance, attached)
	require.Equal(testInstance, "10.0.0.4", descriptor.Address())
	require.Equal(testInstance, 2222, descriptor.Port())
	require.Equal(testInstance, "lisa", descriptor.Username())

	mirroredNode, mirroredError := loadedInventory.Build("vm2", dependencies)
	require.NoError(testInstance, mirroredError)
	mirroredDescriptor, _ := mirroredNode.Descriptor()
	require.Equal(testInstance, "vm2.example.com", mirroredDescriptor.Address())
	require.Equal(testInstance, 22, mirroredDescriptor.Port())

	_, unknownError := loadedInventory.Build("vm9", dependencies)
	require.ErrorContains(testInstance, unknownError, "vm9")
}

func TestInventoryBuildSurfacesConfigurationErrors(testInstance *testing.T) {
	loadedInventory, parseError := inventory.Parse([]byte("nodes:\n  - name: broken\n    type: remote\n"))
	require.NoError(testInstance, parseError)

	_, buildError := loadedInventory.Build("broken", node.Dependencies{Logger: zap.NewNop()})
	var configurationError nodeerrors.ConfigurationError
	require.ErrorAs(testInstance, buildError, &configurationError)
	require.Equal(testInstance, "address", configurationError.Field)
}
