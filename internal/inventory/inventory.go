package inventory

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/temirov/testnode/internal/node"
	pathutils "github.com/temirov/testnode/internal/utils/path"
)

const (
	nameFieldConstant                    = "name"
	typeFieldConstant                    = "type"
	isDefaultFieldConstant               = "isDefault"
	privateKeyFileFieldConstant          = "privateKeyFile"
	inventoryPathRequiredMessageConstant = "inventory path must be provided"
	inventoryLoadErrorTemplateConstant   = "failed to load inventory: %w"
	inventoryParseErrorTemplateConstant  = "failed to parse inventory: %w"
	nodeNameMissingTemplateConstant      = "inventory entry %d missing node name"
	duplicateNodeNameTemplateConstant    = "inventory defines node %q more than once"
	multipleDefaultNodesTemplateConstant = "inventory marks both %q and %q as default"
	unknownNodeTemplateConstant          = "inventory has no node named %q"
)

// ErrNoDefaultNode indicates the inventory marks no node as default.
var ErrNoDefaultNode = errors.New("inventory defines no default node")

var inventoryHomeDirectoryExpander = pathutils.NewHomeExpander()

// Entry is one named node descriptor as written in the inventory file.
type Entry struct {
	Name       string
	Descriptor map[string]any
}

// Inventory lists the nodes an operator can address by name.
type Inventory struct {
	entries     []Entry
	entryLookup map[string]Entry
	defaultName string
}

type inventoryDocument struct {
	Nodes []map[string]any `yaml:"nodes"`
}

// Load reads a YAML inventory with a top-level nodes list.
func Load(filePath string) (Inventory, error) {
	trimmedPath := strings.TrimSpace(filePath)
	if len(trimmedPath) == 0 {
		return Inventory{}, errors.New(inventoryPathRequiredMessageConstant)
	}

	contentBytes, readError := os.ReadFile(inventoryHomeDirectoryExpander.Expand(trimmedPath))
	if readError != nil {
		return Inventory{}, fmt.Errorf(inventoryLoadErrorTemplateConstant, readError)
	}
	return Parse(contentBytes)
}

// Parse decodes inventory YAML and validates node names and the default marker.
func Parse(contentBytes []byte) (Inventory, error) {
	var document inventoryDocument
	if unmarshalError := yaml.Unmarshal(contentBytes, &document); unmarshalError != nil {
		return Inventory{}, fmt.Errorf(inventoryParseErrorTemplateConstant, unmarshalError)
	}

	inventory := Inventory{
		entries:     make([]Entry, 0, len(document.Nodes)),
		entryLookup: make(map[string]Entry, len(document.Nodes)),
	}
	for entryIndex, rawDescriptor := range document.Nodes {
		rawName, _ := rawDescriptor[nameFieldConstant].(string)
		name := strings.TrimSpace(rawName)
		if len(name) == 0 {
			return Inventory{}, fmt.Errorf(nodeNameMissingTemplateConstant, entryIndex)
		}
		if _, exists := inventory.entryLookup[name]; exists {
			return Inventory{}, fmt.Errorf(duplicateNodeNameTemplateConstant, name)
		}

		descriptor := make(map[string]any, len(rawDescriptor))
		for key, value := range rawDescriptor {
			if key == nameFieldConstant {
				continue
			}
			descriptor[key] = value
		}
		if keyFile, isString := descriptor[privateKeyFileFieldConstant].(string); isString {
			descriptor[privateKeyFileFieldConstant] = inventoryHomeDirectoryExpander.Expand(strings.TrimSpace(keyFile))
		}

		if isDefaultEntry(descriptor) {
			if len(inventory.defaultName) > 0 {
				return Inventory{}, fmt.Errorf(multipleDefaultNodesTemplateConstant, inventory.defaultName, name)
			}
			inventory.defaultName = name
		}

		entry := Entry{Name: name, Descriptor: descriptor}
		inventory.entries = append(inventory.entries, entry)
		inventory.entryLookup[name] = entry
	}
	return inventory, nil
}

// Names lists node names in file order.
func (inventory Inventory) Names() []string {
	names := make([]string, 0, len(inventory.entries))
	for _, entry := range inventory.entries {
		names = append(names, entry.Name)
	}
	return names
}

// Entries returns a copy of the entries in file order.
func (inventory Inventory) Entries() []Entry {
	entries := make([]Entry, len(inventory.entries))
	copy(entries, inventory.entries)
	return entries
}

// Find returns the entry with the given name.
func (inventory Inventory) Find(name string) (Entry, bool) {
	entry, exists := inventory.entryLookup[strings.TrimSpace(name)]
	return entry, exists
}

// DefaultName returns the name of the node marked isDefault.
func (inventory Inventory) DefaultName() (string, error) {
	if len(inventory.defaultName) == 0 {
		return "", ErrNoDefaultNode
	}
	return inventory.defaultName, nil
}

// Build creates the named node from its descriptor.
func (inventory Inventory) Build(name string, dependencies node.Dependencies) (*node.Node, error) {
	entry, exists := inventory.Find(name)
	if !exists {
		return nil, fmt.Errorf(unknownNodeTemplateConstant, name)
	}
	return node.FromConfig(entry.Name, entry.Descriptor, dependencies)
}

// Type returns the node type written in the descriptor.
func (entry Entry) Type() string {
	nodeType, _ := entry.Descriptor[typeFieldConstant].(string)
	return strings.TrimSpace(nodeType)
}

// IsDefault reports whether the entry carries a truthy isDefault marker.
func (entry Entry) IsDefault() bool {
	return isDefaultEntry(entry.Descriptor)
}

func isDefaultEntry(descriptor map[string]any) bool {
	switch value := descriptor[isDefaultFieldConstant].(type) {
	case bool:
		return value
	case string:
		return strings.EqualFold(strings.TrimSpace(value), "true")
	default:
		return false
	}
}
