package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRootCmd_RegistersAllSubcommands(t *testing.T) {
	// Given: the root command
	root := NewRootCmd()

	// When: looking up each expected subcommand by name
	for _, name := range []string{"index", "query", "chat", "watch", "sessions", "version"} {
		found, _, err := root.Find([]string{name})

		// Then: each one resolves to its own command, not the root fallback
		require.NoError(t, err, "Find(%q) should not error", name)
		assert.Equal(t, name, found.Name(), "subcommand %q should be registered", name)
	}
}

func TestNewRootCmd_HasDebugFlag(t *testing.T) {
	root := NewRootCmd()

	flag := root.PersistentFlags().Lookup("debug")

	require.NotNil(t, flag, "--debug should be a persistent flag")
	assert.Equal(t, "false", flag.DefValue)
}

func TestSessionsCmd_RegistersListAndPrune(t *testing.T) {
	sessions := newSessionsCmd()

	for _, name := range []string{"list", "prune"} {
		found, _, err := sessions.Find([]string{name})
		require.NoError(t, err)
		assert.Equal(t, name, found.Name())
	}
}
