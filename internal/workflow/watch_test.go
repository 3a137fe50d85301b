package workflow_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/CZERTAINLY/Paperwork/internal/workflow"

	"github.com/stretchr/testify/require"
)

func TestWatch(t *testing.T) {
	t.Parallel()
	workdir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(workdir, "20240101_1200_00_1"), 0o755))
	require.NoError(t, os.Mkdir(filepath.Join(workdir, ".index"), 0o755))

	triggered := make(chan struct{}, 8)
	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() {
		done <- workflow.Watch(ctx, workdir, 100*time.Millisecond, func() {
			triggered <- struct{}{}
		})
	}()
	defer func() {
		cancel()
		require.NoError(t, <-done)
	}()

	expect := func(want bool) {
		t.Helper()
		select {
		case <-triggered:
			require.True(t, want, "unexpected reindex")
		case <-time.After(time.Second):
			require.False(t, want, "reindex was not triggered")
		}
	}

	// give the watcher time to register
	time.Sleep(100 * time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(workdir, ".index", "index.db"), []byte("db"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(workdir, ".paperwork.lock"), nil, 0o644))
	expect(false)

	require.NoError(t, os.WriteFile(filepath.Join(workdir, "20240101_1200_00_1", "labels"), []byte("x,#ff0000\n"), 0o644))
	expect(true)

	newDoc := filepath.Join(workdir, "20240102_1200_00_1")
	require.NoError(t, os.Mkdir(newDoc, 0o755))
	expect(true)

	require.NoError(t, os.WriteFile(filepath.Join(newDoc, "paper.1.png"), []byte("png"), 0o644))
	expect(true)
}

func TestWatch_MissingWorkdir(t *testing.T) {
	t.Parallel()
	err := workflow.Watch(t.Context(), filepath.Join(t.TempDir(), "missing"), time.Millisecond, func() {})
	require.Error(t, err)
}
