package contextgather_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxhq/indexchan/internal/config"
	"github.com/oxhq/indexchan/internal/contextgather"
	"github.com/oxhq/indexchan/internal/graph"
	"github.com/oxhq/indexchan/internal/lang/typescript"
	"github.com/oxhq/indexchan/internal/parser"
	"github.com/oxhq/indexchan/internal/resolver"
)

func build(t *testing.T, cfg *config.Config, files map[string]string) (*graph.Graph, map[string][]byte) {
	t.Helper()
	p := parser.New(typescript.New(), cfg)
	var batches []parser.EntityBatch
	contents := map[string][]byte{}
	for path, src := range files {
		f := graph.File{ID: uuid.NewString(), Path: path, Grammar: "typescript"}
		b, err := p.Parse(f, []byte(src))
		require.NoError(t, err)
		batches = append(batches, b)
		contents[f.ID] = []byte(src)
	}
	result := resolver.New(cfg, batches).Resolve()
	var entities []*graph.Entity
	for _, b := range batches {
		for i := range b.Entities {
			entities = append(entities, &b.Entities[i])
		}
	}
	var refs []*graph.Reference
	for i := range result.References {
		refs = append(refs, &result.References[i])
	}
	return graph.New(entities, refs), contents
}

func TestGather_BundleQuality(t *testing.T) {
	cfg := config.Default()
	g, contents := build(t, cfg, map[string]string{
		"a.ts": "function processOrder() { validateOrder(); }\nfunction validateOrder() {}\nfunction callerOfProcessOrder() { processOrder(); }\n",
	})

	bundle, err := contextgather.Gather(g, cfg, contents, "processOrder", contextgather.Options{})
	require.NoError(t, err)
	require.NotEmpty(t, bundle.Groups)
	assert.GreaterOrEqual(t, bundle.SignalToNoise, 2.0)
	assert.Equal(t, contextgather.High, bundle.Classification)
}

func TestGather_LowSignalRecommendsOffendingFile(t *testing.T) {
	cfg := config.Default()
	g, contents := build(t, cfg, map[string]string{
		"x.ts": "function f() { g(); }\nfunction g() {}\n",
	})

	bundle, err := contextgather.Gather(g, cfg, contents, "f", contextgather.Options{})
	require.NoError(t, err)
	if bundle.Classification == contextgather.Low {
		assert.Contains(t, bundle.Recommendation, "x.ts")
	}
}

func TestGather_BudgetInvariant(t *testing.T) {
	cfg := config.Default()
	g, contents := build(t, cfg, map[string]string{
		"a.ts": "function anchorFunction() { calleeOne(); calleeTwo(); }\nfunction calleeOne() {}\nfunction calleeTwo() {}\n",
	})

	bundle, err := contextgather.Gather(g, cfg, contents, "anchorFunction", contextgather.Options{TokenBudget: 5})
	require.NoError(t, err)
	assert.LessOrEqual(t, bundle.ByteLength, 4*5)
}

func TestGather_UnknownAnchorErrors(t *testing.T) {
	cfg := config.Default()
	g, contents := build(t, cfg, map[string]string{
		"a.ts": "function f() {}\n",
	})
	_, err := contextgather.Gather(g, cfg, contents, "doesNotExist", contextgather.Options{})
	assert.Error(t, err)
}
