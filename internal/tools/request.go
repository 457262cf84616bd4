package tools

import (
	"github.com/temirov/testnode/internal/nodeerrors"
)

const (
	emptyRequestReasonConstant       = "tool request must name a definition, key, or script"
	emptyDefinitionKeyReasonConstant = "tool definition must provide a key"
	nilFactoryReasonConstant         = "tool definition must provide a factory"
	emptyKeyReasonConstant           = "tool key must not be empty"
	unboundBuilderReasonConstant     = "script builder must be bound to a script descriptor; request the built script, not the builder"
)

type requestKind int

const (
	requestKindUnset requestKind = iota
	requestKindType
	requestKindKey
	requestKindScript
)

// Request identifies the tool a caller wants resolved.
type Request struct {
	kind       requestKind
	definition Definition
	key        string
	builder    *ScriptBuilder
}

// ByType requests a compiled tool, constructing and installing it when not cached.
func ByType(definition Definition) Request {
	return Request{kind: requestKindType, definition: definition}
}

// ByKey requests a tool previously resolved by type or by script.
func ByKey(key string) Request {
	return Request{kind: requestKindKey, key: key}
}

// ByScript requests a script tool built from the bound descriptor.
func ByScript(builder *ScriptBuilder) Request {
	return Request{kind: requestKindScript, builder: builder}
}

// Key returns the normalized capability key for the request.
func (request Request) Key() (string, error) {
	switch request.kind {
	case requestKindType:
		if request.definition.Factory == nil {
			return "", nodeerrors.InvalidToolRequestError{Reason: nilFactoryReasonConstant}
		}
		key := normalizeKey(request.definition.Key)
		if len(key) == 0 {
			return "", nodeerrors.InvalidToolRequestError{Reason: emptyDefinitionKeyReasonConstant}
		}
		return key, nil
	case requestKindKey:
		key := normalizeKey(request.key)
		if len(key) == 0 {
			return "", nodeerrors.InvalidToolRequestError{Reason: emptyKeyReasonConstant}
		}
		return key, nil
	case requestKindScript:
		if request.builder == nil || !request.builder.bound() {
			return "", nodeerrors.InvalidToolRequestError{Reason: unboundBuilderReasonConstant}
		}
		return normalizeKey(request.builder.descriptor.Name), nil
	default:
		return "", nodeerrors.InvalidToolRequestError{Reason: emptyRequestReasonConstant}
	}
}
