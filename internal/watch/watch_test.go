package watch_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/oxhq/indexchan/internal/config"
	"github.com/oxhq/indexchan/internal/ignore"
	"github.com/oxhq/indexchan/internal/lang"
	"github.com/oxhq/indexchan/internal/lang/typescript"
	"github.com/oxhq/indexchan/internal/store"
	"github.com/oxhq/indexchan/internal/watch"
)

func TestWatcher_DebouncesAndRefreshes(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.ts"), []byte("export function f() {}\n"), 0o644))

	cfg := config.Default()
	registry := lang.NewRegistry()
	require.NoError(t, registry.Register(typescript.New()))
	policy, err := ignore.Load(dir)
	require.NoError(t, err)

	s, err := store.Open(dir)
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Refresh(registry, policy, cfg)
	require.NoError(t, err)

	logger := zap.NewNop()
	w, err := watch.New(dir, registry, policy, cfg, s, logger, 50*time.Millisecond)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// Give Run time to install watches before the write lands.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.ts"), []byte("export function g() {}\n"), 0o644))

	// Wait out the debounce window plus refresh time, then confirm the new
	// file's entity shows up in the store.
	deadline := time.Now().Add(3 * time.Second)
	var found bool
	for time.Now().Before(deadline) {
		g, _, err := s.LoadGraph()
		require.NoError(t, err)
		for _, e := range g.Entities {
			if e.SimpleName == "g" {
				found = true
			}
		}
		if found {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}
	require.True(t, found, "watcher did not pick up the new file in time")

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("watcher.Run did not return after context cancellation")
	}
}

func TestWatcher_StopReturnsRun(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	dir := t.TempDir()
	cfg := config.Default()
	registry := lang.NewRegistry()
	require.NoError(t, registry.Register(typescript.New()))
	policy, err := ignore.Load(dir)
	require.NoError(t, err)

	s, err := store.Open(dir)
	require.NoError(t, err)
	defer s.Close()

	w, err := watch.New(dir, registry, policy, cfg, s, zap.NewNop(), 50*time.Millisecond)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- w.Run(context.Background()) }()
	time.Sleep(50 * time.Millisecond)

	w.Stop()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("watcher.Run did not return after Stop")
	}
}
