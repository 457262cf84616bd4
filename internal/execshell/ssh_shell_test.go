package execshell

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/temirov/testnode/internal/connection"
)

func buildTestDescriptor(testInstance *testing.T, parameters connection.Parameters) connection.Descriptor {
	testInstance.Helper()
	descriptor, buildError := connection.Build(parameters)
	require.NoError(testInstance, buildError)
	return descriptor
}

func TestShellEscapeQuotesValues(t *testing.T) {
	require.Equal(t, "''", shellEscape(""))
	require.Equal(t, "'a b'", shellEscape("a b"))
	require.Equal(t, "'quote'\"'\"'v'", shellEscape("quote'v"))
}

func TestBuildRemoteCommandLine(t *testing.T) {
	testCases := []struct {
		name     string
		command  ShellCommand
		expected string
	}{
		{
			name:     "plain_linux",
			command:  ShellCommand{CommandLine: "uname -vrio", IsLinux: true},
			expected: "uname -vrio",
		},
		{
			name:     "interpreter_linux",
			command:  ShellCommand{CommandLine: "echo $HOME/lisa_working/run", UseShellInterpreter: true, IsLinux: true},
			expected: "sh -c 'echo $HOME/lisa_working/run'",
		},
		{
			name:     "working_directory_and_environment",
			command:  ShellCommand{CommandLine: "make", WorkingDirectory: "/srv/build", EnvironmentVariables: map[string]string{"B": "2", "A": "1"}, IsLinux: true},
			expected: "cd '/srv/build' && A='1' B='2' make",
		},
		{
			name:     "windows_working_directory",
			command:  ShellCommand{CommandLine: "dir", WorkingDirectory: `C:\work`},
			expected: `cd /d "C:\work" && dir`,
		},
		{
			name:     "windows_plain",
			command:  ShellCommand{CommandLine: "echo %TEMP%", UseShellInterpreter: true},
			expected: "echo %TEMP%",
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			require.Equal(t, testCase.expected, buildRemoteCommandLine(testCase.command))
		})
	}
}

func TestSSHShellClientConfigValidation(t *testing.T) {
	noUsername := buildTestDescriptor(t, connection.Parameters{Address: "node-a", Port: 22, Password: "x"})
	_, configurationError := NewSSHShell(noUsername, SSHConfiguration{}).clientConfig()
	require.ErrorContains(t, configurationError, "username")

	noCredentials := buildTestDescriptor(t, connection.Parameters{Address: "node-a", Port: 22, Username: "root"})
	_, configurationError = NewSSHShell(noCredentials, SSHConfiguration{InsecureSkipHostKeyChecking: true}).clientConfig()
	require.ErrorContains(t, configurationError, "password or private key")

	missingKey := buildTestDescriptor(t, connection.Parameters{Address: "node-a", Port: 22, Username: "root", PrivateKeyFile: filepath.Join(t.TempDir(), "missing")})
	_, configurationError = NewSSHShell(missingKey, SSHConfiguration{InsecureSkipHostKeyChecking: true}).clientConfig()
	require.ErrorContains(t, configurationError, "private key")
}

func TestSSHShellClientConfigUsesKnownHostsFile(t *testing.T) {
	knownHostsPath := filepath.Join(t.TempDir(), "known_hosts")
	require.NoError(t, os.WriteFile(knownHostsPath, nil, 0o600))

	descriptor := buildTestDescriptor(t, connection.Parameters{Address: "node-a", Port: 22, Username: "root", Password: "x"})
	clientConfiguration, configurationError := NewSSHShell(descriptor, SSHConfiguration{KnownHostsPath: knownHostsPath}).clientConfig()
	require.NoError(t, configurationError)
	require.Equal(t, "root", clientConfiguration.User)
	require.Len(t, clientConfiguration.Auth, 1)
	require.NotNil(t, clientConfiguration.HostKeyCallback)
}

func TestSSHShellRequiresConnection(t *testing.T) {
	descriptor := buildTestDescriptor(t, connection.Parameters{Address: "node-a", Port: 22, Username: "root", Password: "x"})
	shell := NewSSHShell(descriptor, SSHConfiguration{InsecureSkipHostKeyChecking: true})

	require.True(t, shell.IsRemote())
	_, runError := shell.Run(context.Background(), ShellCommand{CommandLine: "true", IsLinux: true})
	require.ErrorIs(t, runError, ErrShellNotConnected)

	mkdirError := shell.Mkdir(context.Background(), "/tmp/run", MkdirOptions{Parents: true, ExistOK: true})
	require.ErrorIs(t, mkdirError, ErrShellNotConnected)

	require.NoError(t, shell.Close())
}

func TestSSHShellConnectTimesOutOnStalledHandshake(t *testing.T) {
	listener, listenError := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, listenError)
	t.Cleanup(func() { listener.Close() })

	acceptedConnections := make(chan net.Conn, 1)
	go func() {
		acceptedConnection, acceptError := listener.Accept()
		if acceptError != nil {
			return
		}
		acceptedConnections <- acceptedConnection
	}()
	t.Cleanup(func() {
		select {
		case acceptedConnection := <-acceptedConnections:
			acceptedConnection.Close()
		default:
		}
	})

	listenerAddress := listener.Addr().(*net.TCPAddr)
	descriptor := buildTestDescriptor(t, connection.Parameters{Address: "127.0.0.1", Port: listenerAddress.Port, Username: "root", Password: "x"})
	shell := NewSSHShell(descriptor, SSHConfiguration{InsecureSkipHostKeyChecking: true, Timeout: 200 * time.Millisecond})

	connectResult := make(chan error, 1)
	go func() { connectResult <- shell.Connect(context.Background()) }()

	select {
	case connectError := <-connectResult:
		require.ErrorContains(t, connectError, net.JoinHostPort("127.0.0.1", strconv.Itoa(listenerAddress.Port)))
	case <-time.After(5 * time.Second):
		require.FailNow(t, "connect did not honour the handshake timeout")
	}
}

func TestSSHShellHandshakeDeadline(t *testing.T) {
	descriptor := buildTestDescriptor(t, connection.Parameters{Address: "node-a", Port: 22, Username: "root", Password: "x"})

	_, bounded := NewSSHShell(descriptor, SSHConfiguration{}).handshakeDeadline(context.Background())
	require.False(t, bounded)

	contextDeadline := time.Now().Add(50 * time.Millisecond)
	boundedContext, cancel := context.WithDeadline(context.Background(), contextDeadline)
	defer cancel()
	deadline, bounded := NewSSHShell(descriptor, SSHConfiguration{Timeout: time.Hour}).handshakeDeadline(boundedContext)
	require.True(t, bounded)
	require.Equal(t, contextDeadline, deadline)

	deadline, bounded = NewSSHShell(descriptor, SSHConfiguration{Timeout: time.Second}).handshakeDeadline(context.Background())
	require.True(t, bounded)
	require.WithinDuration(t, time.Now().Add(time.Second), deadline, 500*time.Millisecond)
}
