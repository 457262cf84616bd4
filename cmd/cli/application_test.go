package cli_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/temirov/testnode/cmd/cli"
)

type embeddedConfigurationFixture struct {
	Common struct {
		LogLevel  string `yaml:"log_level"`
		LogFormat string `yaml:"log_format"`
	} `yaml:"common"`
	Run struct {
		RemoteRoot string `yaml:"remote_root"`
	} `yaml:"run"`
	SSH struct {
		KnownHostsPath string `yaml:"known_hosts_path"`
		Timeout        string `yaml:"timeout"`
	} `yaml:"ssh"`
	Probe struct {
		Parallelism int `yaml:"parallelism"`
	} `yaml:"probe"`
}

func TestEmbeddedDefaultConfiguration(testInstance *testing.T) {
	content, configurationType := cli.EmbeddedDefaultConfiguration()
	require.Equal(testInstance, "yaml", configurationType)

	var fixture embeddedConfigurationFixture
	require.NoError(testInstance, yaml.Unmarshal(content, &fixture))
	require.Equal(testInstance, "info", fixture.Common.LogLevel)
	require.Equal(testInstance, "console", fixture.Common.LogFormat)
	require.Equal(testInstance, "lisa_working", fixture.Run.RemoteRoot)
	require.Equal(testInstance, "~/.ssh/known_hosts", fixture.SSH.KnownHostsPath)
	require.Equal(testInstance, 4, fixture.Probe.Parallelism)

	timeout, parseError := time.ParseDuration(fixture.SSH.Timeout)
	require.NoError(testInstance, parseError)
	require.Equal(testInstance, 30*time.Second, timeout)

	content[0] = '#'
	pristineContent, _ := cli.EmbeddedDefaultConfiguration()
	require.NotEqual(testInstance, byte('#'), pristineContent[0])
}
