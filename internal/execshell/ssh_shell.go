package execshell

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/temirov/testnode/internal/connection"
)

const (
	sshNetworkConstant                      = "tcp"
	sshUsernameRequiredMessageConstant      = "ssh username is required"
	sshCredentialsRequiredMessageConstant   = "ssh password or private key file is required"
	sshHomeUnavailableMessageConstant       = "known hosts path not set and home directory unavailable"
	sshDialErrorTemplateConstant            = "unable to connect to %s: %w"
	sshSessionErrorTemplateConstant         = "unable to open ssh session on %s: %w"
	sshPrivateKeyErrorTemplateConstant      = "unable to read private key %s: %w"
	sshMkdirErrorTemplateConstant           = "unable to create directory %s on %s (exit code %d%s)"
	sshKnownHostsDirectoryConstant          = ".ssh"
	sshKnownHostsFileNameConstant           = "known_hosts"
	posixChangeDirectoryTemplateConstant    = "cd %s && %s"
	posixInterpreterTemplateConstant        = "sh -c %s"
	posixEnvironmentAssignmentConstant      = "%s=%s "
	posixMkdirParentsTemplateConstant       = "mkdir -p %s"
	posixMkdirParentsStrictTemplateConstant = "[ ! -e %s ] && mkdir -p %s"
	posixMkdirExistOKTemplateConstant       = "[ -d %s ] || mkdir %s"
	posixMkdirTemplateConstant              = "mkdir %s"
	windowsChangeDirectoryTemplateConstant  = "cd /d \"%s\" && %s"
)

// SSHConfiguration controls host verification and dial behavior of SSH sessions.
type SSHConfiguration struct {
	KnownHostsPath              string
	InsecureSkipHostKeyChecking bool
	Timeout                     time.Duration
}

// SSHShell executes commands on a remote node over one SSH client connection.
// Every command uses its own SSH session, so commands may run concurrently.
// Closing the shell while commands are outstanding is not supported.
type SSHShell struct {
	descriptor    connection.Descriptor
	configuration SSHConfiguration

	mutex  sync.Mutex
	client *ssh.Client
}

// NewSSHShell binds a shell to the supplied connection descriptor.
func NewSSHShell(descriptor connection.Descriptor, configuration SSHConfiguration) *SSHShell {
	return &SSHShell{descriptor: descriptor, configuration: configuration}
}

// IsRemote reports true for SSH sessions.
func (shell *SSHShell) IsRemote() bool {
	return true
}

// Descriptor returns the connection descriptor the shell is bound to.
func (shell *SSHShell) Descriptor() connection.Descriptor {
	return shell.descriptor
}

// Connect dials the remote endpoint once; later calls reuse the client.
func (shell *SSHShell) Connect(executionContext context.Context) error {
	shell.mutex.Lock()
	defer shell.mutex.Unlock()

	if shell.client != nil {
		return nil
	}

	clientConfiguration, configurationError := shell.clientConfig()
	if configurationError != nil {
		return configurationError
	}

	endpoint := shell.descriptor.Endpoint()
	dialer := net.Dialer{Timeout: shell.configuration.Timeout}
	networkConnection, dialError := dialer.DialContext(executionContext, sshNetworkConstant, endpoint)
	if dialError != nil {
		return fmt.Errorf(sshDialErrorTemplateConstant, endpoint, dialError)
	}

	if handshakeDeadline, bounded := shell.handshakeDeadline(executionContext); bounded {
		if deadlineError := networkConnection.SetDeadline(handshakeDeadline); deadlineError != nil {
			networkConnection.Close()
			return fmt.Errorf(sshDialErrorTemplateConstant, endpoint, deadlineError)
		}
	}
	clientConnection, channels, requests, handshakeError := ssh.NewClientConn(networkConnection, endpoint, clientConfiguration)
	if handshakeError != nil {
		networkConnection.Close()
		return fmt.Errorf(sshDialErrorTemplateConstant, endpoint, handshakeError)
	}
	if clearError := networkConnection.SetDeadline(time.Time{}); clearError != nil {
		clientConnection.Close()
		return fmt.Errorf(sshDialErrorTemplateConstant, endpoint, clearError)
	}

	shell.client = ssh.NewClient(clientConnection, channels, requests)
	return nil
}

// handshakeDeadline is the earlier of the configured timeout and the context deadline.
func (shell *SSHShell) handshakeDeadline(executionContext context.Context) (time.Time, bool) {
	deadline, bounded := executionContext.Deadline()
	if shell.configuration.Timeout > 0 {
		timeoutDeadline := time.Now().Add(shell.configuration.Timeout)
		if !bounded || timeoutDeadline.Before(deadline) {
			deadline = timeoutDeadline
			bounded = true
		}
	}
	return deadline, bounded
}

// Run executes the command line through the remote login shell.
func (shell *SSHShell) Run(executionContext context.Context, command ShellCommand) (ExecutionResult, error) {
	if len(strings.TrimSpace(command.CommandLine)) == 0 {
		return ExecutionResult{}, ErrEmptyCommand
	}

	client, clientError := shell.connectedClient()
	if clientError != nil {
		return ExecutionResult{}, clientError
	}

	session, sessionError := client.NewSession()
	if sessionError != nil {
		return ExecutionResult{}, fmt.Errorf(sshSessionErrorTemplateConstant, shell.descriptor.Endpoint(), sessionError)
	}
	defer session.Close()

	var standardOutputBuffer bytes.Buffer
	var standardErrorBuffer bytes.Buffer
	session.Stdout = &standardOutputBuffer
	session.Stderr = &standardErrorBuffer

	runCompleted := make(chan error, 1)
	go func() {
		runCompleted <- session.Run(buildRemoteCommandLine(command))
	}()

	var runError error
	select {
	case runError = <-runCompleted:
	case <-executionContext.Done():
		_ = session.Close()
		return ExecutionResult{}, executionContext.Err()
	}

	if runError != nil {
		var exitError *ssh.ExitError
		if errors.As(runError, &exitError) {
			return ExecutionResult{
				StandardOutput: standardOutputBuffer.String(),
				StandardError:  standardErrorBuffer.String(),
				ExitCode:       exitError.ExitStatus(),
			}, nil
		}
		return ExecutionResult{}, runError
	}

	return ExecutionResult{
		StandardOutput: standardOutputBuffer.String(),
		StandardError:  standardErrorBuffer.String(),
		ExitCode:       0,
	}, nil
}

// Mkdir creates a directory on the remote node with POSIX mkdir semantics.
func (shell *SSHShell) Mkdir(executionContext context.Context, path string, options MkdirOptions) error {
	trimmedPath := strings.TrimSpace(path)
	if len(trimmedPath) == 0 {
		return ErrDirectoryPathRequired
	}

	escapedPath := shellEscape(trimmedPath)
	var commandLine string
	switch {
	case options.Parents && options.ExistOK:
		commandLine = fmt.Sprintf(posixMkdirParentsTemplateConstant, escapedPath)
	case options.Parents:
		commandLine = fmt.Sprintf(posixMkdirParentsStrictTemplateConstant, escapedPath, escapedPath)
	case options.ExistOK:
		commandLine = fmt.Sprintf(posixMkdirExistOKTemplateConstant, escapedPath, escapedPath)
	default:
		commandLine = fmt.Sprintf(posixMkdirTemplateConstant, escapedPath)
	}

	result, runError := shell.Run(executionContext, ShellCommand{CommandLine: commandLine, IsLinux: true})
	if runError != nil {
		return runError
	}
	if result.ExitCode != 0 {
		return fmt.Errorf(sshMkdirErrorTemplateConstant, trimmedPath, shell.descriptor.Endpoint(), result.ExitCode, CommandMessageFormatter{}.formatStandardErrorSuffix(result.StandardError))
	}
	return nil
}

// Close tears down the SSH client; in-flight commands fail with a connection error.
func (shell *SSHShell) Close() error {
	shell.mutex.Lock()
	defer shell.mutex.Unlock()

	if shell.client == nil {
		return nil
	}
	closeError := shell.client.Close()
	shell.client = nil
	if closeError != nil && !errors.Is(closeError, net.ErrClosed) {
		return closeError
	}
	return nil
}

func (shell *SSHShell) connectedClient() (*ssh.Client, error) {
	shell.mutex.Lock()
	defer shell.mutex.Unlock()

	if shell.client == nil {
		return nil, ErrShellNotConnected
	}
	return shell.client, nil
}

func (shell *SSHShell) clientConfig() (*ssh.ClientConfig, error) {
	username := strings.TrimSpace(shell.descriptor.Username())
	if len(username) == 0 {
		return nil, errors.New(sshUsernameRequiredMessageConstant)
	}

	authenticationMethods, authenticationError := shell.authenticationMethods()
	if authenticationError != nil {
		return nil, authenticationError
	}

	var hostKeyCallback ssh.HostKeyCallback
	if shell.configuration.InsecureSkipHostKeyChecking {
		hostKeyCallback = ssh.InsecureIgnoreHostKey()
	} else {
		callback, callbackError := shell.knownHostsCallback()
		if callbackError != nil {
			return nil, callbackError
		}
		hostKeyCallback = callback
	}

	return &ssh.ClientConfig{
		User:            username,
		Auth:            authenticationMethods,
		HostKeyCallback: hostKeyCallback,
		Timeout:         shell.configuration.Timeout,
	}, nil
}

func (shell *SSHShell) authenticationMethods() ([]ssh.AuthMethod, error) {
	var authenticationMethods []ssh.AuthMethod

	privateKeyFile := strings.TrimSpace(shell.descriptor.PrivateKeyFile())
	if len(privateKeyFile) > 0 {
		privateKey, readError := os.ReadFile(privateKeyFile)
		if readError != nil {
			return nil, fmt.Errorf(sshPrivateKeyErrorTemplateConstant, privateKeyFile, readError)
		}
		signer, parseError := ssh.ParsePrivateKey(privateKey)
		if parseError != nil {
			return nil, fmt.Errorf(sshPrivateKeyErrorTemplateConstant, privateKeyFile, parseError)
		}
		authenticationMethods = append(authenticationMethods, ssh.PublicKeys(signer))
	}

	if len(shell.descriptor.Password()) > 0 {
		authenticationMethods = append(authenticationMethods, ssh.Password(shell.descriptor.Password()))
	}

	if len(authenticationMethods) == 0 {
		return nil, errors.New(sshCredentialsRequiredMessageConstant)
	}
	return authenticationMethods, nil
}

func (shell *SSHShell) knownHostsCallback() (ssh.HostKeyCallback, error) {
	knownHostsPath := strings.TrimSpace(shell.configuration.KnownHostsPath)
	if len(knownHostsPath) == 0 {
		homeDirectory, homeError := os.UserHomeDir()
		if homeError != nil {
			return nil, errors.New(sshHomeUnavailableMessageConstant)
		}
		knownHostsPath = filepath.Join(homeDirectory, sshKnownHostsDirectoryConstant, sshKnownHostsFileNameConstant)
	}
	return knownhosts.New(knownHostsPath)
}

func buildRemoteCommandLine(command ShellCommand) string {
	commandLine := strings.TrimSpace(command.CommandLine)
	if !command.IsLinux {
		if len(command.WorkingDirectory) > 0 {
			return fmt.Sprintf(windowsChangeDirectoryTemplateConstant, command.WorkingDirectory, commandLine)
		}
		return commandLine
	}

	if command.UseShellInterpreter {
		commandLine = fmt.Sprintf(posixInterpreterTemplateConstant, shellEscape(commandLine))
	}

	if len(command.EnvironmentVariables) > 0 {
		environmentKeys := make([]string, 0, len(command.EnvironmentVariables))
		for environmentKey := range command.EnvironmentVariables {
			environmentKeys = append(environmentKeys, environmentKey)
		}
		sort.Strings(environmentKeys)

		var assignments strings.Builder
		for _, environmentKey := range environmentKeys {
			assignments.WriteString(fmt.Sprintf(posixEnvironmentAssignmentConstant, environmentKey, shellEscape(command.EnvironmentVariables[environmentKey])))
		}
		commandLine = assignments.String() + commandLine
	}

	if len(command.WorkingDirectory) > 0 {
		commandLine = fmt.Sprintf(posixChangeDirectoryTemplateConstant, shellEscape(command.WorkingDirectory), commandLine)
	}
	return commandLine
}

func shellEscape(value string) string {
	if value == "" {
		return "''"
	}

	return "'" + strings.ReplaceAll(value, "'", `'"'"'`) + "'"
}
