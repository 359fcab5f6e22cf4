package export_test

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxhq/indexchan/internal/export"
	"github.com/oxhq/indexchan/internal/graph"
)

func sampleGraph() *graph.Graph {
	caller := &graph.Entity{ID: "e1", QualifiedName: "a.caller", Kind: graph.KindFunction, FilePath: "a.ts", Exported: true}
	callee := &graph.Entity{ID: "e2", QualifiedName: "a.callee", Kind: graph.KindFunction, FilePath: "a.ts"}
	ref := &graph.Reference{SourceID: "e1", TargetID: "e2", Kind: graph.RefCalls}
	return graph.New([]*graph.Entity{caller, callee}, []*graph.Reference{ref})
}

func TestBuild_MarksLiveness(t *testing.T) {
	g := sampleGraph()
	doc := export.Build(g, map[string]bool{"e1": true})

	require.Len(t, doc.Nodes, 2)
	require.Len(t, doc.Edges, 1)
	for _, n := range doc.Nodes {
		if n.ID == "e1" {
			assert.True(t, n.Live)
		} else {
			assert.False(t, n.Live)
		}
	}
	assert.Equal(t, "e1", doc.Edges[0].Source)
	assert.Equal(t, "e2", doc.Edges[0].Target)
}

func TestWrite_JSON(t *testing.T) {
	doc := export.Build(sampleGraph(), map[string]bool{"e1": true})
	var buf bytes.Buffer
	require.NoError(t, export.Write(&buf, doc, export.JSON))

	var decoded export.Document
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Len(t, decoded.Nodes, 2)
}

func TestWrite_DOT(t *testing.T) {
	doc := export.Build(sampleGraph(), nil)
	var buf bytes.Buffer
	require.NoError(t, export.Write(&buf, doc, export.DOT))

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "digraph codegraph {"))
	assert.Contains(t, out, `"e1" -> "e2"`)
}

func TestWrite_GraphML(t *testing.T) {
	doc := export.Build(sampleGraph(), nil)
	var buf bytes.Buffer
	require.NoError(t, export.Write(&buf, doc, export.GraphML))

	out := buf.String()
	assert.Contains(t, out, "<graphml")
	assert.Contains(t, out, `<node id="e1">`)
}

func TestWrite_UnknownFormat(t *testing.T) {
	var buf bytes.Buffer
	err := export.Write(&buf, export.Document{}, export.Format("yaml"))
	assert.Error(t, err)
}
