package node

// State is the lifecycle position of a node.
type State int

// Lifecycle states. A node moves Created → Initializing → Ready and ends Closed.
// A node whose initialization failed stays Initializing until ResetInitialization.
const (
	StateCreated State = iota
	StateInitializing
	StateReady
	StateClosed
)

const (
	stateCreatedNameConstant      = "created"
	stateInitializingNameConstant = "initializing"
	stateReadyNameConstant        = "ready"
	stateClosedNameConstant       = "closed"
	stateUnknownNameConstant      = "unknown"
)

// String returns the lower-case state name.
func (state State) String() string {
	switch state {
	case StateCreated:
		return stateCreatedNameConstant
	case StateInitializing:
		return stateInitializingNameConstant
	case StateReady:
		return stateReadyNameConstant
	case StateClosed:
		return stateClosedNameConstant
	default:
		return stateUnknownNameConstant
	}
}

// Platform holds the facts detected by the bootstrap probe.
type Platform struct {
	KernelRelease    string
	KernelVersion    string
	HardwarePlatform string
	OperatingSystem  string
	IsLinux          bool
}
