package clean_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxhq/indexchan/internal/clean"
	"github.com/oxhq/indexchan/internal/graph"
	"github.com/oxhq/indexchan/internal/reachability"
)

func deadEntity(path string, start, end int) *graph.Entity {
	return &graph.Entity{
		ID: "dead1", FilePath: path, Kind: graph.KindFunction, SimpleName: "dead",
		QualifiedName: "dead", Span: graph.Span{StartByte: start, EndByte: end},
	}
}

func TestPlan_FiltersByTier(t *testing.T) {
	g := graph.New([]*graph.Entity{deadEntity("a.ts", 0, 5)}, nil)
	report := &reachability.Report{Tier: map[string]graph.SafetyTier{"dead1": graph.ProbablySafe}}

	safeOnly := clean.Plan(g, report, map[graph.SafetyTier]bool{graph.DefinitelySafe: true})
	assert.Empty(t, safeOnly)

	both := clean.Plan(g, report, map[graph.SafetyTier]bool{graph.DefinitelySafe: true, graph.ProbablySafe: true})
	require.Len(t, both, 1)
	assert.Equal(t, graph.ProbablySafe, both[0].Tier)
}

func TestApplyAndUndo_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	original := "export function used() {}\nfunction dead() {}\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.ts"), []byte(original), 0o644))

	start := len("export function used() {}\n")
	end := start + len("function dead() {}\n")
	deletions := []clean.Deletion{{Entity: deadEntity("a.ts", start, end), Tier: graph.DefinitelySafe}}

	result, err := clean.Apply(dir, deletions, false)
	require.NoError(t, err)
	require.Len(t, result.FilesChanged, 1)
	require.NotEmpty(t, result.ManifestID)

	rewritten, err := os.ReadFile(filepath.Join(dir, "a.ts"))
	require.NoError(t, err)
	assert.Equal(t, "export function used() {}\n", string(rewritten))

	manifest, err := clean.LatestManifest(dir)
	require.NoError(t, err)
	assert.Equal(t, result.ManifestID, manifest.ID)

	require.NoError(t, clean.Undo(dir, manifest))
	restored, err := os.ReadFile(filepath.Join(dir, "a.ts"))
	require.NoError(t, err)
	assert.Equal(t, original, string(restored))
}

func TestApply_DryRunDoesNotWrite(t *testing.T) {
	dir := t.TempDir()
	original := "function dead() {}\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.ts"), []byte(original), 0o644))

	deletions := []clean.Deletion{{Entity: deadEntity("a.ts", 0, len(original)), Tier: graph.DefinitelySafe}}
	result, err := clean.Apply(dir, deletions, true)
	require.NoError(t, err)
	assert.Len(t, result.FilesChanged, 1)
	assert.Empty(t, result.ManifestID)

	untouched, err := os.ReadFile(filepath.Join(dir, "a.ts"))
	require.NoError(t, err)
	assert.Equal(t, original, string(untouched))
}

func TestPreview_RendersUnifiedDiff(t *testing.T) {
	dir := t.TempDir()
	original := "function dead() {}\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.ts"), []byte(original), 0o644))

	deletions := []clean.Deletion{{Entity: deadEntity("a.ts", 0, len(original)), Tier: graph.DefinitelySafe}}
	diffs, err := clean.Preview(dir, deletions)
	require.NoError(t, err)
	require.Contains(t, diffs, "a.ts")
	assert.Contains(t, diffs["a.ts"], "-function dead() {}")
}
