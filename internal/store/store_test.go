package store_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxhq/indexchan/internal/config"
	"github.com/oxhq/indexchan/internal/ignore"
	"github.com/oxhq/indexchan/internal/lang"
	"github.com/oxhq/indexchan/internal/lang/typescript"
	"github.com/oxhq/indexchan/internal/store"
)

func newRegistry(t *testing.T) *lang.Registry {
	t.Helper()
	r := lang.NewRegistry()
	require.NoError(t, r.Register(typescript.New()))
	return r
}

func TestStore_RefreshAndIncrementalEquivalence(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.ts"), []byte(
		"export function used() { helper(); }\nfunction helper() {}\nfunction dead() {}\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.ts"), []byte(
		"import {used} from './a';\nused();\n"), 0o644))

	cfg := config.Default()
	registry := newRegistry(t)
	policy, err := ignore.Load(dir)
	require.NoError(t, err)

	s, err := store.Open(dir)
	require.NoError(t, err)
	defer s.Close()

	report, err := s.Refresh(registry, policy, cfg)
	require.NoError(t, err)
	assert.Equal(t, 2, report.FilesScanned)
	assert.Equal(t, 2, report.FilesDirty)

	g, unresolved, err := s.LoadGraph()
	require.NoError(t, err)
	assert.Len(t, g.Entities, 3) // used, helper, dead (b.ts declares no entities of its own)

	// Second refresh with nothing changed should report zero dirty files
	// and leave the graph's entity count stable (incremental equivalence,
	// spec.md §8).
	report2, err := s.Refresh(registry, policy, cfg)
	require.NoError(t, err)
	assert.Equal(t, 0, report2.FilesDirty)

	g2, _, err := s.LoadGraph()
	require.NoError(t, err)
	assert.Equal(t, len(g.Entities), len(g2.Entities))
	_ = unresolved
}

func TestStore_IncrementalRefreshOnRename(t *testing.T) {
	dir := t.TempDir()
	aPath := filepath.Join(dir, "a.ts")
	require.NoError(t, os.WriteFile(aPath, []byte("export function oldName() {}\n"), 0o644))

	cfg := config.Default()
	registry := newRegistry(t)
	policy, err := ignore.Load(dir)
	require.NoError(t, err)

	s, err := store.Open(dir)
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Refresh(registry, policy, cfg)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(aPath, []byte("export function newName() {}\n"), 0o644))
	report, err := s.Refresh(registry, policy, cfg)
	require.NoError(t, err)
	assert.Equal(t, 1, report.FilesDirty)

	g, _, err := s.LoadGraph()
	require.NoError(t, err)
	var sawOld, sawNew bool
	for _, e := range g.Entities {
		if e.SimpleName == "oldName" {
			sawOld = true
		}
		if e.SimpleName == "newName" {
			sawNew = true
		}
	}
	assert.False(t, sawOld)
	assert.True(t, sawNew)
}

func TestStore_DeletedFileCascades(t *testing.T) {
	dir := t.TempDir()
	aPath := filepath.Join(dir, "a.ts")
	require.NoError(t, os.WriteFile(aPath, []byte("export function f() {}\n"), 0o644))

	cfg := config.Default()
	registry := newRegistry(t)
	policy, err := ignore.Load(dir)
	require.NoError(t, err)

	s, err := store.Open(dir)
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Refresh(registry, policy, cfg)
	require.NoError(t, err)

	require.NoError(t, os.Remove(aPath))
	report, err := s.Refresh(registry, policy, cfg)
	require.NoError(t, err)
	assert.Equal(t, 1, report.FilesDeleted)

	g, _, err := s.LoadGraph()
	require.NoError(t, err)
	assert.Empty(t, g.Entities)
}

func TestStore_IgnoreHonoured(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "vendor"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "vendor", "lib.ts"), []byte("export function libFn() {}\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".indexchanignore"), []byte("vendor/\n"), 0o644))

	cfg := config.Default()
	registry := newRegistry(t)
	policy, err := ignore.Load(dir)
	require.NoError(t, err)

	s, err := store.Open(dir)
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Refresh(registry, policy, cfg)
	require.NoError(t, err)

	g, _, err := s.LoadGraph()
	require.NoError(t, err)
	for _, e := range g.Entities {
		assert.NotContains(t, e.FilePath, "vendor")
	}
}
