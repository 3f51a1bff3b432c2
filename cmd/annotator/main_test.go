package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// unsetenv clears key for the test and restores it afterwards.
func unsetenv(t *testing.T, key string) {
	t.Helper()
	t.Setenv(key, "")
	require.NoError(t, os.Unsetenv(key))
}

func relayCommand(t *testing.T, args ...string) *cobra.Command {
	t.Helper()

	cmd := &cobra.Command{Use: "test"}
	addRelayFlags(cmd)
	require.NoError(t, cmd.ParseFlags(args))
	require.NoError(t, loadConfig(cmd, nil))
	return cmd
}

func TestRelayClientReadsDotEnv(t *testing.T) {
	unsetenv(t, "RELAY_URL")
	unsetenv(t, "RELAY_TIMEOUT")

	dir := t.TempDir()
	env := "RELAY_URL=http://relay.internal:9000\nRELAY_TIMEOUT=3s\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte(env), 0o600))
	t.Chdir(dir)

	c := relayClient(relayCommand(t))

	assert.Equal(t, "http://relay.internal:9000", c.BaseURL)
	assert.Equal(t, 3*time.Second, c.Timeout)
}

func TestRelayClientFlagsOverrideEnvironment(t *testing.T) {
	t.Setenv("RELAY_URL", "http://relay.internal:9000")
	t.Setenv("RELAY_TIMEOUT", "3s")
	t.Chdir(t.TempDir())

	c := relayClient(relayCommand(t, "--relay", "http://127.0.0.1:7000/", "--timeout", "40s"))

	assert.Equal(t, "http://127.0.0.1:7000", c.BaseURL)
	assert.Equal(t, 40*time.Second, c.Timeout)
}

func TestRelayClientDefaults(t *testing.T) {
	unsetenv(t, "RELAY_URL")
	unsetenv(t, "RELAY_TIMEOUT")
	t.Chdir(t.TempDir())

	c := relayClient(relayCommand(t))

	assert.Equal(t, "http://localhost:8080", c.BaseURL)
	assert.Equal(t, 15*time.Second, c.Timeout)
}
