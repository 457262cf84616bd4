package tools

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/temirov/testnode/internal/nodeerrors"
)

const (
	toolFieldConstant                     = "tool"
	durationFieldConstant                 = "duration"
	toolInitializingMessageConstant       = "is initializing"
	toolInstalledAlreadyMessageConstant   = "installed already"
	toolNotInstalledMessageConstant       = "not installed"
	toolInstallingMessageConstant         = "installing"
	toolInstalledMessageConstant          = "installed"
	toolInstallFailedMessageConstant      = "install failed"
	toolUnsupportedMessageConstant        = "install not supported"
	selfResolutionReasonTemplateConstant  = "tool %s resolves itself while being resolved"
	resolutionCycleReasonTemplateConstant = "tool %s waits on %s which is waiting on it"
	nilToolReasonTemplateConstant         = "tool %s constructor returned no tool"
	constructionErrorTemplateConstant     = "construct tool %s: %w"
	initializationErrorTemplateConstant   = "initialize tool %s: %w"
)

// InstallRecorder receives the duration and outcome of every install attempt.
type InstallRecorder interface {
	RecordToolInstall(nodeIdentifier string, toolName string, duration time.Duration, succeeded bool)
}

type resolutionChainKey struct{}

// Registry caches tool instances for one host and installs missing tools on first use.
type Registry struct {
	host     Host
	logger   *zap.Logger
	recorder InstallRecorder
	flights  singleflight.Group

	mutex     sync.RWMutex
	instances map[string]Tool
	failures  map[string]error

	waitMutex sync.Mutex
	waits     map[string]map[string]int
}

// NewRegistry creates an empty registry bound to the host.
func NewRegistry(host Host, logger *zap.Logger, recorder InstallRecorder) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		host:      host,
		logger:    logger,
		recorder:  recorder,
		instances: make(map[string]Tool),
		failures:  make(map[string]error),
		waits:     make(map[string]map[string]int),
	}
}

// Cached returns the installed tool stored under key, if any. Failed resolutions are not cached instances.
func (registry *Registry) Cached(key string) (Tool, bool) {
	registry.mutex.RLock()
	defer registry.mutex.RUnlock()
	tool, found := registry.instances[normalizeKey(key)]
	return tool, found
}

// Resolve returns the tool for the request, constructing and installing it at most once per key.
// A failed construction or install is remembered and returned again without retry.
func (registry *Registry) Resolve(executionContext context.Context, request Request) (Tool, error) {
	key, keyError := request.Key()
	if keyError != nil {
		return nil, keyError
	}

	if tool, found, failure := registry.lookup(key); found {
		return tool, failure
	}
	if request.kind == requestKindKey {
		return nil, nodeerrors.UnknownToolError{Key: key}
	}

	chain := resolutionChain(executionContext)
	if slices.Contains(chain, key) {
		return nil, nodeerrors.InvalidToolRequestError{Reason: fmt.Sprintf(selfResolutionReasonTemplateConstant, key)}
	}
	if waitError := registry.beginWait(chain, key); waitError != nil {
		return nil, waitError
	}
	defer registry.endWait(chain, key)
	resolutionContext := context.WithValue(executionContext, resolutionChainKey{}, append(slices.Clone(chain), key))

	resolved, resolutionError, _ := registry.flights.Do(key, func() (any, error) {
		if tool, found, failure := registry.lookup(key); found {
			return tool, failure
		}
		return registry.construct(resolutionContext, key, request)
	})
	if resolutionError != nil {
		return nil, resolutionError
	}
	return resolved.(Tool), nil
}

func (registry *Registry) lookup(key string) (Tool, bool, error) {
	registry.mutex.RLock()
	defer registry.mutex.RUnlock()
	if tool, found := registry.instances[key]; found {
		return tool, true, nil
	}
	if failure, found := registry.failures[key]; found {
		return nil, true, failure
	}
	return nil, false, nil
}

func (registry *Registry) construct(executionContext context.Context, key string, request Request) (Tool, error) {
	toolLogger := registry.logger.With(zap.String(toolFieldConstant, key))
	toolLogger.Debug(toolInitializingMessageConstant)

	tool, instantiationError := registry.instantiate(executionContext, key, request)
	if instantiationError != nil {
		return nil, registry.rememberFailure(key, instantiationError)
	}
	if tool == nil {
		return nil, registry.rememberFailure(key, nodeerrors.InvalidToolRequestError{Reason: fmt.Sprintf(nilToolReasonTemplateConstant, key)})
	}

	if tool.IsInstalled(executionContext) {
		toolLogger.Debug(toolInstalledAlreadyMessageConstant)
		return registry.rememberInstance(key, tool), nil
	}

	toolLogger.Debug(toolNotInstalledMessageConstant)
	if !tool.CanInstall() {
		isLinux, _ := registry.host.IsLinux(executionContext)
		toolLogger.Debug(toolUnsupportedMessageConstant)
		return nil, registry.rememberFailure(key, nodeerrors.ToolUnsupportedError{
			Tool:           key,
			NodeIdentifier: registry.host.Identifier(),
			IsLinux:        isLinux,
			IsRemote:       registry.host.IsRemote(),
		})
	}

	toolLogger.Debug(toolInstallingMessageConstant)
	installStarted := time.Now()
	installError := tool.Install(executionContext)
	installDuration := time.Since(installStarted)
	if registry.recorder != nil {
		registry.recorder.RecordToolInstall(registry.host.Identifier(), key, installDuration, installError == nil)
	}
	if installError != nil {
		toolLogger.Debug(toolInstallFailedMessageConstant, zap.Duration(durationFieldConstant, installDuration), zap.Error(installError))
		return nil, registry.rememberFailure(key, nodeerrors.ToolInstallError{
			Tool:           key,
			NodeIdentifier: registry.host.Identifier(),
			Cause:          installError,
		})
	}
	toolLogger.Debug(toolInstalledMessageConstant, zap.Duration(durationFieldConstant, installDuration))
	return registry.rememberInstance(key, tool), nil
}

func (registry *Registry) instantiate(executionContext context.Context, key string, request Request) (Tool, error) {
	switch request.kind {
	case requestKindType:
		tool, constructionError := request.definition.Factory(executionContext, registry.host)
		if constructionError != nil {
			return nil, fmt.Errorf(constructionErrorTemplateConstant, key, constructionError)
		}
		if initializer, ok := tool.(Initializer); ok {
			if initializationError := initializer.Initialize(executionContext); initializationError != nil {
				return nil, fmt.Errorf(initializationErrorTemplateConstant, key, initializationError)
			}
		}
		return tool, nil
	case requestKindScript:
		tool, buildError := request.builder.Build(executionContext, registry.host)
		if buildError != nil {
			return nil, fmt.Errorf(constructionErrorTemplateConstant, key, buildError)
		}
		return tool, nil
	default:
		return nil, nodeerrors.UnknownToolError{Key: key}
	}
}

func (registry *Registry) rememberInstance(key string, tool Tool) Tool {
	registry.mutex.Lock()
	defer registry.mutex.Unlock()
	registry.instances[key] = tool
	return tool
}

func (registry *Registry) rememberFailure(key string, failure error) error {
	registry.mutex.Lock()
	defer registry.mutex.Unlock()
	registry.failures[key] = failure
	return failure
}

// beginWait records that the resolution owning the last key of chain waits on key.
// Waits form one graph across goroutines and an edge closing a cycle is refused.
func (registry *Registry) beginWait(chain []string, key string) error {
	if len(chain) == 0 {
		return nil
	}
	waiter := chain[len(chain)-1]

	registry.waitMutex.Lock()
	defer registry.waitMutex.Unlock()

	if registry.reachesChain(key, chain) {
		return nodeerrors.InvalidToolRequestError{Reason: fmt.Sprintf(resolutionCycleReasonTemplateConstant, waiter, key)}
	}
	targets := registry.waits[waiter]
	if targets == nil {
		targets = make(map[string]int)
		registry.waits[waiter] = targets
	}
	targets[key]++
	return nil
}

func (registry *Registry) endWait(chain []string, key string) {
	if len(chain) == 0 {
		return
	}
	waiter := chain[len(chain)-1]

	registry.waitMutex.Lock()
	defer registry.waitMutex.Unlock()

	targets := registry.waits[waiter]
	targets[key]--
	if targets[key] <= 0 {
		delete(targets, key)
	}
	if len(targets) == 0 {
		delete(registry.waits, waiter)
	}
}

// reachesChain walks the wait graph from start and reports whether it meets a key of chain.
func (registry *Registry) reachesChain(start string, chain []string) bool {
	visited := map[string]bool{}
	pending := []string{start}
	for len(pending) > 0 {
		current := pending[len(pending)-1]
		pending = pending[:len(pending)-1]
		if visited[current] {
			continue
		}
		visited[current] = true
		if slices.Contains(chain, current) {
			return true
		}
		for target := range registry.waits[current] {
			pending = append(pending, target)
		}
	}
	return false
}

func resolutionChain(executionContext context.Context) []string {
	chain, _ := executionContext.Value(resolutionChainKey{}).([]string)
	return chain
}
