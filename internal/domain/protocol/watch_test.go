package protocol_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rpggio/fastwatch/internal/domain/protocol"
	"github.com/stretchr/testify/require"
)

func TestWatch_ReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "protocols.yaml")
	require.NoError(t, os.WriteFile(path, []byte("protocols: []\n"), 0o644))

	reg := protocol.NewRegistry()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- protocol.Watch(ctx, path, reg, nil) }()
	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-done)
	})

	require.Eventually(t, func() bool {
		_ = os.WriteFile(path, []byte("protocols:\n  - id: \"5:2\"\n    fasting_hours: 24\n"), 0o644)
		_, ok := reg.Lookup("5:2")
		return ok
	}, 5*time.Second, 100*time.Millisecond)
}
