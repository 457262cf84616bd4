package pathutils_test

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	pathutils "github.com/temirov/testnode/internal/utils/path"
)

const (
	testHomeDirectoryConstant = "/home/lisa"
)

func TestHomeExpanderExpand(testInstance *testing.T) {
	environment := map[string]string{"KEYS": "/srv/keys"}
	expander := pathutils.NewHomeExpanderWithProvider(
		func() (string, error) { return testHomeDirectoryConstant, nil },
		func(name string) string { return environment[name] },
	)

	testCases := []struct {
		name         string
		candidate    string
		expectedPath string
	}{
		{name: "empty", candidate: "", expectedPath: ""},
		{name: "bare_tilde", candidate: "~", expectedPath: testHomeDirectoryConstant},
		{name: "tilde_prefix", candidate: "~/.ssh/id_rsa", expectedPath: filepath.Join(testHomeDirectoryConstant, ".ssh", "id_rsa")},
		{name: "other_user", candidate: "~alice/key", expectedPath: "~alice/key"},
		{name: "absolute", candidate: "/etc/testnode.yaml", expectedPath: "/etc/testnode.yaml"},
		{name: "variable", candidate: "$KEYS/id_rsa", expectedPath: "/srv/keys/id_rsa"},
		{name: "braced_variable", candidate: "${KEYS}/id_rsa", expectedPath: "/srv/keys/id_rsa"},
		{name: "unknown_variable", candidate: "$MISSING/id_rsa", expectedPath: "/id_rsa"},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			require.Equal(testInstance, testCase.expectedPath, expander.Expand(testCase.candidate))
		})
	}
}

func TestHomeExpanderWithoutHomeDirectory(testInstance *testing.T) {
	expander := pathutils.NewHomeExpanderWithProvider(
		func() (string, error) { return "", errors.New("no home") },
		func(string) string { return "" },
	)
	require.Equal(testInstance, "~/.ssh/id_rsa", expander.Expand("~/.ssh/id_rsa"))

	var nilExpander *pathutils.HomeExpander
	require.Equal(testInstance, "~/x", nilExpander.Expand("~/x"))
}
