// Package export serializes a code graph to one of the three formats
// spec.md §6 names: GraphML, DOT, and JSON. Every format carries the
// same node attributes {id, name, kind, file, start_line, end_line,
// exported, live} and edge attributes {source, target, kind}; unresolved
// references are never exported, matching spec.md §6's "unresolved
// references are not exported" clause. Grounded on viant-linager's
// analyzer/graph_exporter.go IRNode/IREdge shape (node/edge property
// maps), reimplemented against stdlib encoding/xml and encoding/json
// since the pack has no GraphML writer and DOT is plain text.
package export

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"sort"

	"github.com/oxhq/indexchan/internal/graph"
)

// Format is the closed set of export formats spec.md §6 requires.
type Format string

const (
	GraphML Format = "graphml"
	DOT     Format = "dot"
	JSON    Format = "json"
)

// Node is the exported representation of one entity.
type Node struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Kind       string `json:"kind"`
	File       string `json:"file"`
	StartLine  int    `json:"start_line"`
	EndLine    int    `json:"end_line"`
	Exported   bool   `json:"exported"`
	Live       bool   `json:"live"`
}

// Edge is the exported representation of one reference.
type Edge struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Kind   string `json:"kind"`
}

// Document is the format-agnostic export payload built once and rendered
// by whichever Format the caller chose.
type Document struct {
	Nodes []Node
	Edges []Edge
}

// Build projects g (deduplicated) into a Document, marking each node live
// according to the liveness set a reachability.Report produced.
func Build(g *graph.Graph, live map[string]bool) Document {
	var doc Document
	ids := make([]string, 0, len(g.Entities))
	for id := range g.Entities {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		e := g.Entities[id]
		doc.Nodes = append(doc.Nodes, Node{
			ID: e.ID, Name: e.QualifiedName, Kind: string(e.Kind), File: e.FilePath,
			StartLine: e.Span.StartLine, EndLine: e.Span.EndLine,
			Exported: e.Exported, Live: live[e.ID],
		})
	}
	for _, r := range g.Deduplicated() {
		doc.Edges = append(doc.Edges, Edge{Source: r.SourceID, Target: r.TargetID, Kind: string(r.Kind)})
	}
	return doc
}

// Write renders doc in format to w.
func Write(w io.Writer, doc Document, format Format) error {
	switch format {
	case JSON:
		return writeJSON(w, doc)
	case DOT:
		return writeDOT(w, doc)
	case GraphML:
		return writeGraphML(w, doc)
	default:
		return fmt.Errorf("export: unknown format %q", format)
	}
}

func writeJSON(w io.Writer, doc Document) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

func writeDOT(w io.Writer, doc Document) error {
	if _, err := fmt.Fprintln(w, "digraph codegraph {"); err != nil {
		return err
	}
	for _, n := range doc.Nodes {
		if _, err := fmt.Fprintf(w, "  %q [label=%q kind=%q file=%q exported=%t live=%t];\n",
			n.ID, n.Name, n.Kind, n.File, n.Exported, n.Live); err != nil {
			return err
		}
	}
	for _, e := range doc.Edges {
		if _, err := fmt.Fprintf(w, "  %q -> %q [kind=%q];\n", e.Source, e.Target, e.Kind); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w, "}")
	return err
}

// graphmlDoc, graphmlGraph, graphmlNode, graphmlEdge, and graphmlData
// mirror the minimal GraphML schema (a <graph> of <node>/<edge> elements,
// each carrying <data key="..."> attributes) well-formed readers like
// Gephi and yEd expect.
type graphmlDoc struct {
	XMLName xml.Name     `xml:"graphml"`
	Xmlns   string       `xml:"xmlns,attr"`
	Keys    []graphmlKey `xml:"key"`
	Graph   graphmlGraph `xml:"graph"`
}

type graphmlKey struct {
	ID     string `xml:"id,attr"`
	For    string `xml:"for,attr"`
	Name   string `xml:"attr.name,attr"`
	Type   string `xml:"attr.type,attr"`
}

type graphmlGraph struct {
	EdgeDefault string        `xml:"edgedefault,attr"`
	Nodes       []graphmlNode `xml:"node"`
	Edges       []graphmlEdge `xml:"edge"`
}

type graphmlNode struct {
	ID   string        `xml:"id,attr"`
	Data []graphmlData `xml:"data"`
}

type graphmlEdge struct {
	Source string        `xml:"source,attr"`
	Target string        `xml:"target,attr"`
	Data   []graphmlData `xml:"data"`
}

type graphmlData struct {
	Key  string `xml:"key,attr"`
	Text string `xml:",chardata"`
}

var nodeKeys = []graphmlKey{
	{ID: "name", For: "node", Name: "name", Type: "string"},
	{ID: "kind", For: "node", Name: "kind", Type: "string"},
	{ID: "file", For: "node", Name: "file", Type: "string"},
	{ID: "start_line", For: "node", Name: "start_line", Type: "int"},
	{ID: "end_line", For: "node", Name: "end_line", Type: "int"},
	{ID: "exported", For: "node", Name: "exported", Type: "boolean"},
	{ID: "live", For: "node", Name: "live", Type: "boolean"},
	{ID: "ekind", For: "edge", Name: "kind", Type: "string"},
}

func writeGraphML(w io.Writer, doc Document) error {
	g := graphmlDoc{
		Xmlns: "http://graphml.graphdrawing.org/xmlns",
		Keys:  nodeKeys,
		Graph: graphmlGraph{EdgeDefault: "directed"},
	}
	for _, n := range doc.Nodes {
		g.Graph.Nodes = append(g.Graph.Nodes, graphmlNode{
			ID: n.ID,
			Data: []graphmlData{
				{Key: "name", Text: n.Name},
				{Key: "kind", Text: n.Kind},
				{Key: "file", Text: n.File},
				{Key: "start_line", Text: fmt.Sprint(n.StartLine)},
				{Key: "end_line", Text: fmt.Sprint(n.EndLine)},
				{Key: "exported", Text: fmt.Sprint(n.Exported)},
				{Key: "live", Text: fmt.Sprint(n.Live)},
			},
		})
	}
	for _, e := range doc.Edges {
		g.Graph.Edges = append(g.Graph.Edges, graphmlEdge{
			Source: e.Source, Target: e.Target,
			Data: []graphmlData{{Key: "ekind", Text: e.Kind}},
		})
	}
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(g); err != nil {
		return err
	}
	_, err := w.Write([]byte("\n"))
	return err
}
