package nodes

import (
	"fmt"
	"strings"

	"github.com/temirov/testnode/internal/inventory"
	"github.com/temirov/testnode/internal/node"
	"github.com/temirov/testnode/internal/tools"
)

const (
	// LocalNodeNameConstant names the implicit local node used when the inventory has no default.
	LocalNodeNameConstant = "local"

	unknownNodeTemplateConstant = "node %q is not defined in the inventory"
)

// Session carries what one CLI invocation needs to build nodes and tool requests.
type Session struct {
	Inventory         inventory.Inventory
	Dependencies      node.Dependencies
	ScriptDescriptors []tools.ScriptDescriptor
}

// Node builds the named node. An empty name selects the inventory default and
// falls back to a local node when the inventory marks none.
func (session Session) Node(name string) (*node.Node, error) {
	nodeName := strings.TrimSpace(name)
	if len(nodeName) == 0 {
		defaultName, defaultError := session.Inventory.DefaultName()
		if defaultError != nil {
			return session.localNode()
		}
		nodeName = defaultName
	}

	if _, found := session.Inventory.Find(nodeName); found {
		return session.Inventory.Build(nodeName, session.Dependencies)
	}
	if nodeName == LocalNodeNameConstant {
		return session.localNode()
	}
	return nil, fmt.Errorf(unknownNodeTemplateConstant, nodeName)
}

// NodeNames lists every addressable node, or only the implicit local node for an empty inventory.
func (session Session) NodeNames() []string {
	names := session.Inventory.Names()
	if len(names) == 0 {
		return []string{LocalNodeNameConstant}
	}
	return names
}

// ToolRequest maps a tool name to a built-in definition, a configured script, or a bare key lookup.
func (session Session) ToolRequest(name string) (tools.Request, error) {
	if definition, found := tools.FindBuiltinDefinition(name); found {
		return tools.ByType(definition), nil
	}
	trimmedName := strings.TrimSpace(name)
	for _, descriptor := range session.ScriptDescriptors {
		if !strings.EqualFold(descriptor.Name, trimmedName) {
			continue
		}
		builder, builderError := tools.NewScriptBuilder(descriptor)
		if builderError != nil {
			return tools.Request{}, builderError
		}
		return tools.ByScript(builder), nil
	}
	return tools.ByKey(trimmedName), nil
}

func (session Session) localNode() (*node.Node, error) {
	return node.Create(LocalNodeNameConstant, node.TypeLocalConstant, true, nil, session.Dependencies)
}
