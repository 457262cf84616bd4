package pathutils

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const (
	tildeSymbolConstant             = "~"
	tildeForwardSlashPrefixConstant = "~/"
	tildeBackslashPrefixConstant    = `~\`
)

// HomeDirectoryProvider resolves the current user's home directory path.
type HomeDirectoryProvider func() (string, error)

// EnvironmentLookup resolves environment variables referenced as $NAME or ${NAME}.
type EnvironmentLookup func(string) string

// HomeExpander turns configured local paths such as ~/.ssh/id_rsa or
// $XDG_CONFIG_HOME/testnode into absolute paths. Unknown variables expand to
// the empty string, as in a POSIX shell.
type HomeExpander struct {
	homeDirectoryProvider HomeDirectoryProvider
	environmentLookup     EnvironmentLookup
	homeDirectoryOnce     sync.Once
	homeDirectory         string
}

// NewHomeExpander constructs a HomeExpander using the operating system lookups.
func NewHomeExpander() *HomeExpander {
	return NewHomeExpanderWithProvider(os.UserHomeDir, os.Getenv)
}

// NewHomeExpanderWithProvider constructs a HomeExpander with custom lookups; nil
// arguments fall back to the operating system.
func NewHomeExpanderWithProvider(provider HomeDirectoryProvider, environmentLookup EnvironmentLookup) *HomeExpander {
	if provider == nil {
		provider = os.UserHomeDir
	}
	if environmentLookup == nil {
		environmentLookup = os.Getenv
	}
	return &HomeExpander{homeDirectoryProvider: provider, environmentLookup: environmentLookup}
}

// Expand resolves a leading tilde and any environment references. Paths naming
// another user's home (~alice) are returned with only variables expanded.
func (expander *HomeExpander) Expand(candidatePath string) string {
	if expander == nil || len(candidatePath) == 0 {
		return candidatePath
	}

	expandedPath := os.Expand(candidatePath, expander.environmentLookup)
	if !strings.HasPrefix(expandedPath, tildeSymbolConstant) {
		return expandedPath
	}

	homeDirectory := expander.resolveHomeDirectory()
	if len(homeDirectory) == 0 {
		return expandedPath
	}

	switch {
	case expandedPath == tildeSymbolConstant:
		return homeDirectory
	case strings.HasPrefix(expandedPath, tildeForwardSlashPrefixConstant):
		return filepath.Join(homeDirectory, expandedPath[len(tildeForwardSlashPrefixConstant):])
	case filepath.Separator == '\\' && strings.HasPrefix(expandedPath, tildeBackslashPrefixConstant):
		return filepath.Join(homeDirectory, expandedPath[len(tildeBackslashPrefixConstant):])
	default:
		return expandedPath
	}
}

func (expander *HomeExpander) resolveHomeDirectory() string {
	expander.homeDirectoryOnce.Do(func() {
		homeDirectory, lookupError := expander.homeDirectoryProvider()
		if lookupError == nil {
			expander.homeDirectory = homeDirectory
		}
	})
	return expander.homeDirectory
}
