package annotate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxhq/indexchan/internal/annotate"
	"github.com/oxhq/indexchan/internal/graph"
	"github.com/oxhq/indexchan/internal/reachability"
)

func TestPlan_SelectsOnlyProbablySafeAndNeedsReview(t *testing.T) {
	g := graph.New([]*graph.Entity{
		{ID: "e1", FilePath: "a.ts", FileID: "f1", QualifiedName: "a.probably", SimpleName: "probably"},
		{ID: "e2", FilePath: "a.ts", FileID: "f1", QualifiedName: "a.review", SimpleName: "review"},
		{ID: "e3", FilePath: "a.ts", FileID: "f1", QualifiedName: "a.safe", SimpleName: "safe"},
	}, nil)
	report := &reachability.Report{Tier: map[string]graph.SafetyTier{
		"e1": graph.ProbablySafe,
		"e2": graph.NeedsReview,
		"e3": graph.DefinitelySafe,
	}}

	insertions := annotate.Plan(g, report, func(string) string { return "typescript" })
	require.Len(t, insertions, 2)
	for _, ins := range insertions {
		assert.Contains(t, []string{"e1", "e2"}, ins.Entity.ID)
		assert.True(t, strings.HasPrefix(ins.Comment, "// indexchan:"))
	}
}

func TestApply_InsertsIndentedComment(t *testing.T) {
	dir := t.TempDir()
	src := "class C {\n  function dead() {}\n}\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.ts"), []byte(src), 0o644))

	start := strings.Index(src, "function dead")
	insertions := []annotate.Insertion{{
		Entity: &graph.Entity{
			ID: "e1", FilePath: "a.ts", QualifiedName: "C.dead",
			Span: graph.Span{StartByte: start},
		},
		Tier:    graph.ProbablySafe,
		Comment: "// indexchan:probably-dead C.dead",
	}}

	result, err := annotate.Apply(dir, insertions, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.ts"}, result.FilesChanged)

	out, err := os.ReadFile(filepath.Join(dir, "a.ts"))
	require.NoError(t, err)
	assert.Equal(t, "class C {\n  // indexchan:probably-dead C.dead\n  function dead() {}\n}\n", string(out))
}

func TestApply_DryRunLeavesFileUntouched(t *testing.T) {
	dir := t.TempDir()
	src := "function dead() {}\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.ts"), []byte(src), 0o644))

	insertions := []annotate.Insertion{{
		Entity:  &graph.Entity{ID: "e1", FilePath: "a.ts", Span: graph.Span{StartByte: 0}},
		Tier:    graph.NeedsReview,
		Comment: "// indexchan:needs-review dead",
	}}
	_, err := annotate.Apply(dir, insertions, true)
	require.NoError(t, err)

	out, err := os.ReadFile(filepath.Join(dir, "a.ts"))
	require.NoError(t, err)
	assert.Equal(t, src, string(out))
}
