package node

import (
	"fmt"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"go.uber.org/zap"

	"github.com/temirov/testnode/internal/connection"
	"github.com/temirov/testnode/internal/nodeerrors"
	"github.com/temirov/testnode/internal/tools"
)

const (
	// TypeLocalConstant selects a node running commands on this machine.
	TypeLocalConstant = "local"
	// TypeRemoteConstant selects a node reached over SSH.
	TypeRemoteConstant = "remote"
	// SpecIdentifierConstant identifies nodes created from a spec payload.
	SpecIdentifierConstant = "spec"

	typeFieldConstant                      = "type"
	identifierFieldConstant                = "identifier"
	descriptorFieldConstant                = "descriptor"
	typeRequiredReasonConstant             = "node type must be provided"
	typeUnsupportedTemplateConstant        = "unsupported node type '%s'"
	identifierRequiredReasonConstant       = "node identifier must be provided"
	descriptorDecodeReasonTemplateConstant = "cannot decode node descriptor: %v"
	createdMessageConstant                 = "created node"
	isDefaultFieldConstant                 = "is_default"
	isRemoteFieldConstant                  = "is_remote"
	nodeTypeFieldConstant                  = "node_type"
)

type nodeKind struct {
	Type      string `mapstructure:"type"`
	IsDefault bool   `mapstructure:"isDefault"`
}

// Create builds a node in the Created state. Remote nodes need AttachConnection before use.
func Create(identifier string, nodeType string, isDefault bool, spec map[string]any, dependencies Dependencies) (*Node, error) {
	trimmedIdentifier := strings.TrimSpace(identifier)
	if len(trimmedIdentifier) == 0 {
		return nil, nodeerrors.ConfigurationError{Field: identifierFieldConstant, Reason: identifierRequiredReasonConstant}
	}

	var isRemote bool
	switch strings.TrimSpace(nodeType) {
	case TypeRemoteConstant:
		isRemote = true
	case TypeLocalConstant:
		isRemote = false
	case "":
		return nil, nodeerrors.ConfigurationError{Field: typeFieldConstant, Reason: typeRequiredReasonConstant}
	default:
		return nil, nodeerrors.ConfigurationError{Field: typeFieldConstant, Reason: fmt.Sprintf(typeUnsupportedTemplateConstant, nodeType)}
	}

	resolvedDependencies, dependenciesError := dependencies.withDefaults()
	if dependenciesError != nil {
		return nil, dependenciesError
	}

	nodeLogger := resolvedDependencies.Logger.Named(nodeLoggerNameConstant).With(zap.String(nodeFieldConstant, trimmedIdentifier))
	node := &Node{
		identifier:   trimmedIdentifier,
		isRemote:     isRemote,
		isDefault:    isDefault,
		spec:         spec,
		dependencies: resolvedDependencies,
		logger:       nodeLogger,
		state:        StateCreated,
	}
	if !isRemote {
		node.shell = resolvedDependencies.LocalShellFactory()
	}
	node.registry = tools.NewRegistry(node, nodeLogger.Named(toolLoggerNameConstant), resolvedDependencies.Metrics)

	nodeLogger.Debug(
		createdMessageConstant,
		zap.String(nodeTypeFieldConstant, nodeType),
		zap.Bool(isDefaultFieldConstant, isDefault),
		zap.Bool(isRemoteFieldConstant, isRemote),
	)
	return node, nil
}

// FromConfig builds a node from a descriptor map. The type field selects local or remote;
// remote nodes read the connection fields and ignore any other keys. Values are weakly typed,
// so ports may be given as strings.
func FromConfig(identifier string, descriptor map[string]any, dependencies Dependencies) (*Node, error) {
	var kind nodeKind
	if decodeError := decodeDescriptor(descriptor, &kind); decodeError != nil {
		return nil, decodeError
	}

	node, creationError := Create(identifier, kind.Type, kind.IsDefault, nil, dependencies)
	if creationError != nil {
		return nil, creationError
	}
	if !node.isRemote {
		return node, nil
	}

	parameters := connection.DefaultParameters()
	if decodeError := decodeDescriptor(descriptor, &parameters); decodeError != nil {
		return nil, decodeError
	}
	connectionDescriptor, buildError := connection.Build(parameters)
	if buildError != nil {
		return nil, buildError
	}
	if attachError := node.AttachConnection(connectionDescriptor); attachError != nil {
		return nil, attachError
	}
	return node, nil
}

// FromSpec builds a node carrying the spec payload for higher layers. Only isDefault is read from it.
func FromSpec(spec map[string]any, nodeType string, dependencies Dependencies) (*Node, error) {
	var kind nodeKind
	if decodeError := decodeDescriptor(spec, &kind); decodeError != nil {
		return nil, decodeError
	}
	return Create(SpecIdentifierConstant, nodeType, kind.IsDefault, spec, dependencies)
}

func decodeDescriptor(descriptor map[string]any, target any) error {
	decoder, decoderError := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           target,
	})
	if decoderError != nil {
		return decoderError
	}
	if decodeError := decoder.Decode(descriptor); decodeError != nil {
		return nodeerrors.ConfigurationError{Field: descriptorFieldConstant, Reason: fmt.Sprintf(descriptorDecodeReasonTemplateConstant, decodeError)}
	}
	return nil
}
