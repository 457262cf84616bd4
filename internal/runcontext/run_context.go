package runcontext

import (
	"errors"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultRemoteRootConstant is the directory under the remote base holding run directories.
	DefaultRemoteRootConstant           = "lisa_working"
	runIdentifierTimeLayoutConstant     = "20060102-150405"
	runIdentifierSeparatorConstant      = "-"
	runIdentifierSuffixLengthConstant   = 8
	linuxRemoteBaseConstant             = "$HOME"
	nonLinuxRemoteBaseConstant          = "%TEMP%"
	windowsPathSeparatorConstant        = `\`
	localRootRequiredMessageConstant    = "local run root must be provided"
	runIdentifierInvalidMessageConstant = "run identifier must not contain path separators"
)

// ErrLocalRootRequired indicates an empty local run root.
var ErrLocalRootRequired = errors.New(localRootRequiredMessageConstant)

// ErrInvalidRunIdentifier indicates a run identifier that would escape the run root.
var ErrInvalidRunIdentifier = errors.New(runIdentifierInvalidMessageConstant)

// RunContext identifies one harness run and the directory roots scoped to it.
type RunContext struct {
	RunIdentifier string
	LocalRoot     string
	RemoteRoot    string
}

// New creates a run context with a fresh run identifier.
func New(localRoot string, remoteRoot string) (RunContext, error) {
	return NewWithIdentifier(GenerateRunIdentifier(time.Now()), localRoot, remoteRoot)
}

// NewWithIdentifier creates a run context around an existing run identifier.
func NewWithIdentifier(runIdentifier string, localRoot string, remoteRoot string) (RunContext, error) {
	trimmedLocalRoot := strings.TrimSpace(localRoot)
	if len(trimmedLocalRoot) == 0 {
		return RunContext{}, ErrLocalRootRequired
	}
	trimmedIdentifier := strings.TrimSpace(runIdentifier)
	if len(trimmedIdentifier) == 0 || strings.ContainsAny(trimmedIdentifier, `/\`) {
		return RunContext{}, ErrInvalidRunIdentifier
	}
	trimmedRemoteRoot := strings.Trim(strings.TrimSpace(remoteRoot), "/")
	if len(trimmedRemoteRoot) == 0 {
		trimmedRemoteRoot = DefaultRemoteRootConstant
	}
	return RunContext{RunIdentifier: trimmedIdentifier, LocalRoot: trimmedLocalRoot, RemoteRoot: trimmedRemoteRoot}, nil
}

// GenerateRunIdentifier combines a UTC timestamp with a random suffix.
func GenerateRunIdentifier(moment time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), runIdentifierSeparatorConstant, "")[:runIdentifierSuffixLengthConstant]
	return moment.UTC().Format(runIdentifierTimeLayoutConstant) + runIdentifierSeparatorConstant + suffix
}

// RemoteWorkingPathTemplate returns the unexpanded remote working path. The
// environment variable in the result must be expanded by the remote shell.
func (runContext RunContext) RemoteWorkingPathTemplate(isLinux bool) string {
	if isLinux {
		return path.Join(linuxRemoteBaseConstant, runContext.RemoteRoot, runContext.RunIdentifier)
	}
	return JoinWindowsPath(nonLinuxRemoteBaseConstant, strings.ReplaceAll(runContext.RemoteRoot, "/", windowsPathSeparatorConstant), runContext.RunIdentifier)
}

// JoinWindowsPath joins non-empty segments with backslashes regardless of the local platform.
func JoinWindowsPath(segments ...string) string {
	trimmedSegments := make([]string, 0, len(segments))
	for segmentIndex, segment := range segments {
		if segmentIndex == 0 {
			segment = strings.TrimRight(segment, `\/`)
		} else {
			segment = strings.Trim(segment, `\/`)
		}
		if len(segment) > 0 {
			trimmedSegments = append(trimmedSegments, segment)
		}
	}
	return strings.Join(trimmedSegments, windowsPathSeparatorConstant)
}

// LocalRunPath returns the working path used by local nodes.
func (runContext RunContext) LocalRunPath() string {
	return filepath.Join(runContext.LocalRoot, runContext.RunIdentifier)
}
