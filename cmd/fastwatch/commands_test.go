package main

import (
	"bytes"
	"context"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rpggio/fastwatch/internal/config"
	"github.com/rpggio/fastwatch/internal/domain/fast"
	"github.com/stretchr/testify/require"
)

func setupEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"FASTWATCH_CONFIG_PATH",
		"FASTWATCH_LOG_PATH",
		"FASTWATCH_TRANSPORT",
		"FASTWATCH_PROTOCOLS_PATH",
		"FASTWATCH_AUTH_ENABLED",
	} {
		t.Setenv(key, "")
	}
	t.Setenv("FASTWATCH_DB_PATH", filepath.Join(t.TempDir(), "data", "fastwatch.db"))
	t.Setenv("FASTWATCH_DEFAULT_USER", "tester")
	t.Setenv("FASTWATCH_TIMEZONE", "UTC")
	t.Setenv("FASTWATCH_LOG_LEVEL", "error")
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCommands_FastLifecycle(t *testing.T) {
	setupEnv(t)

	out, err := run(t, "start", "--protocol", "16:8")
	require.NoError(t, err)
	require.Contains(t, out, "Started fast")

	_, err = run(t, "start")
	require.ErrorIs(t, err, fast.ErrActiveFastExists)

	out, err = run(t, "list")
	require.NoError(t, err)
	require.Contains(t, out, "active")
	require.Contains(t, out, "16:8")

	out, err = run(t, "end", "--mood", "4")
	require.NoError(t, err)
	require.Contains(t, out, "Ended fast")

	_, err = run(t, "end")
	require.ErrorContains(t, err, "no active fast")

	out, err = run(t, "stats")
	require.NoError(t, err)
	require.Contains(t, out, "1 (1 completed)")

	out, err = run(t, "activity")
	require.NoError(t, err)
	require.Contains(t, out, "fast_started")
	require.Contains(t, out, "fast_ended")

	out, err = run(t, "leaderboard")
	require.NoError(t, err)
	require.Contains(t, out, "tester")

	_, err = run(t, "clear")
	require.ErrorContains(t, err, "--yes")

	out, err = run(t, "clear", "--yes")
	require.NoError(t, err)
	require.Contains(t, out, "Cleared all fasts for tester")

	out, err = run(t, "list")
	require.NoError(t, err)
	require.Contains(t, out, "No fasts recorded.")
}

func TestCommands_UserFlag(t *testing.T) {
	setupEnv(t)

	_, err := run(t, "--user", "alice", "start")
	require.NoError(t, err)

	out, err := run(t, "list")
	require.NoError(t, err)
	require.Contains(t, out, "No fasts recorded.")

	out, err = run(t, "--user", "alice", "list")
	require.NoError(t, err)
	require.Contains(t, out, "active")
}

func TestCommands_UnknownProtocol(t *testing.T) {
	setupEnv(t)

	_, err := run(t, "start", "-p", "48:0")
	require.ErrorIs(t, err, fast.ErrUnknownProtocol)
}

func TestCommands_DeleteMissingFastIsIdempotent(t *testing.T) {
	setupEnv(t)

	out, err := run(t, "delete", "nope")
	require.NoError(t, err)
	require.Contains(t, out, "Deleted fast nope")
}

func TestCommands_ProtocolsAndKeys(t *testing.T) {
	setupEnv(t)

	out, err := run(t, "protocols")
	require.NoError(t, err)
	require.Contains(t, out, "omad")
	require.Contains(t, out, "custom")

	out, err = run(t, "keys", "add", "--description", "laptop")
	require.NoError(t, err)
	token := strings.TrimSpace(out)
	require.True(t, strings.HasPrefix(token, "fw_"))

	a, err := openApp(&rootOptions{}, func(*config.Config) io.Writer { return io.Discard })
	require.NoError(t, err)
	defer a.Close()
	userID, err := a.keys.ResolveUser(context.Background(), token)
	require.NoError(t, err)
	require.Equal(t, "tester", userID)
}
