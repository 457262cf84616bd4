package nodes

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/temirov/testnode/internal/inventory"
	"github.com/temirov/testnode/internal/node"
	"github.com/temirov/testnode/internal/nodeerrors"
	"github.com/temirov/testnode/internal/tools"
)

const (
	testSessionInventoryConstant = `nodes:
  - name: builder
    type: local
  - name: vm1
    type: remote
    address: 10.0.0.4
    password: secret
    isDefault: true
`
)

func newTestSession(testInstance *testing.T, inventoryContent string) Session {
	testInstance.Helper()
	parsedInventory, parseError := inventory.Parse([]byte(inventoryContent))
	require.NoError(testInstance, parseError)
	return Session{
		Inventory:    parsedInventory,
		Dependencies: node.Dependencies{Logger: zap.NewNop()},
		ScriptDescriptors: []tools.ScriptDescriptor{
			{Name: "Lscpu", Command: "lscpu", InstallCommands: []string{"apt-get install -y util-linux"}},
		},
	}
}

func TestSessionNodeSelection(testInstance *testing.T) {
	testCases := []struct {
		name               string
		inventoryContent   string
		requestedName      string
		expectedIdentifier string
		expectedRemote     bool
	}{
		{
			name:               "inventory_default",
			inventoryContent:   testSessionInventoryConstant,
			expectedIdentifier: "vm1",
			expectedRemote:     true,
		},
		{
			name:               "named_inventory_node",
			inventoryContent:   testSessionInventoryConstant,
			requestedName:      "builder",
			expectedIdentifier: "builder",
		},
		{
			name:               "implicit_local_without_default",
			inventoryContent:   "nodes: []\n",
			expectedIdentifier: LocalNodeNameConstant,
		},
		{
			name:               "implicit_local_by_name",
			inventoryContent:   testSessionInventoryConstant,
			requestedName:      LocalNodeNameConstant,
			expectedIdentifier: LocalNodeNameConstant,
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			session := newTestSession(testInstance, testCase.inventoryContent)
			selectedNode, selectionError := session.Node(testCase.requestedName)
			require.NoError(testInstance, selectionError)
			require.Equal(testInstance, testCase.expectedIdentifier, selectedNode.Identifier())
			require.Equal(testInstance, testCase.expectedRemote, selectedNode.IsRemote())
			require.Equal(testInstance, node.StateCreated, selectedNode.State())
		})
	}
}

func TestSessionNodeRejectsUnknownName(testInstance *testing.T) {
	session := newTestSession(testInstance, testSessionInventoryConstant)
	_, selectionError := session.Node("vm9")
	require.ErrorContains(testInstance, selectionError, `"vm9"`)
}

func TestSessionNodeNames(testInstance *testing.T) {
	require.Equal(testInstance, []string{"builder", "vm1"}, newTestSession(testInstance, testSessionInventoryConstant).NodeNames())
	require.Equal(testInstance, []string{LocalNodeNameConstant}, Session{}.NodeNames())
}

func TestSessionToolRequest(testInstance *testing.T) {
	session := newTestSession(testInstance, testSessionInventoryConstant)

	builtinRequest, builtinError := session.ToolRequest("Systemctl")
	require.NoError(testInstance, builtinError)
	builtinKey, _ := builtinRequest.Key()
	require.Equal(testInstance, tools.SystemctlKeyConstant, builtinKey)

	scriptRequest, scriptError := session.ToolRequest("lscpu")
	require.NoError(testInstance, scriptError)
	scriptKey, _ := scriptRequest.Key()
	require.Equal(testInstance, "lscpu", scriptKey)

	bareRequest, bareError := session.ToolRequest("  gcc ")
	require.NoError(testInstance, bareError)
	bareKey, _ := bareRequest.Key()
	require.Equal(testInstance, "gcc", bareKey)

	blankRequest, blankError := session.ToolRequest("  ")
	require.NoError(testInstance, blankError)
	_, keyError := blankRequest.Key()
	var invalidError nodeerrors.InvalidToolRequestError
	require.ErrorAs(testInstance, keyError, &invalidError)
}

func TestBuildCommandLine(testInstance *testing.T) {
	testCases := []struct {
		name         string
		arguments    []string
		useShell     bool
		expectedLine string
		expectError  bool
	}{
		{name: "single_argument_verbatim", arguments: []string{"ls -la /tmp"}, expectedLine: "ls -la /tmp"},
		{name: "joined_arguments", arguments: []string{"echo", "hi"}, expectedLine: "echo hi"},
		{name: "quoted_argument", arguments: []string{"echo", "a b", "it's"}, expectedLine: `echo 'a b' 'it'"'"'s'`},
		{name: "shell_snippet", arguments: []string{"echo $HOME | wc -c"}, useShell: true, expectedLine: "echo $HOME | wc -c"},
		{name: "unbalanced_quote", arguments: []string{`echo "open`}, expectError: true},
		{name: "missing", arguments: nil, expectError: true},
		{name: "blank", arguments: []string{"  "}, expectError: true},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			commandLine, buildError := buildCommandLine(testCase.arguments, testCase.useShell)
			if testCase.expectError {
				require.Error(testInstance, buildError)
				return
			}
			require.NoError(testInstance, buildError)
			require.Equal(testInstance, testCase.expectedLine, commandLine)
		})
	}
}

func TestSessionRemoteNodeWithoutAddressFails(testInstance *testing.T) {
	session := newTestSession(testInstance, "nodes:\n  - name: broken\n    type: remote\n")
	_, selectionError := session.Node("broken")
	var configurationError nodeerrors.ConfigurationError
	require.ErrorAs(testInstance, selectionError, &configurationError)
}
