// Package base provides the scope-detection and span-conversion helpers
// shared by every concrete grammar adapter, the way the teacher's
// provider.BaseProvider provides shared defaults that language providers
// embed and override selectively.
package base

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/oxhq/indexchan/internal/graph"
)

// Span converts a tree-sitter node's position into a graph.Span.
func Span(node *sitter.Node) graph.Span {
	return graph.Span{
		StartLine: int(node.StartPoint().Row) + 1,
		EndLine:   int(node.EndPoint().Row) + 1,
		StartByte: int(node.StartByte()),
		EndByte:   int(node.EndByte()),
	}
}

// ErrorRatio walks tree counting bytes covered by ERROR or MISSING nodes
// and returns that as a fraction of the file's total byte length. Shared
// across adapters since tree-sitter's error-node convention is
// grammar-independent.
func ErrorRatio(root *sitter.Node, totalBytes int) float64 {
	if totalBytes == 0 {
		return 0
	}
	var errBytes int
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if n.IsError() || n.IsMissing() {
			errBytes += int(n.EndByte() - n.StartByte())
			return
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			walk(n.Child(i))
		}
	}
	walk(root)
	return float64(errBytes) / float64(totalBytes)
}

// IsClassScope reports whether nodeType names a class/struct/interface-like
// declaration, the common pattern across curly-brace grammars.
func IsClassScope(nodeType string) bool {
	return strings.Contains(nodeType, "class") ||
		strings.Contains(nodeType, "interface") ||
		strings.Contains(nodeType, "struct")
}

// IsFunctionScope reports whether nodeType names a function/method-like
// declaration.
func IsFunctionScope(nodeType string) bool {
	return strings.Contains(nodeType, "function") ||
		strings.Contains(nodeType, "method")
}

// FindEnclosingScope walks up from node to the nearest ancestor whose
// scope, as determined by scopeOf, equals want.
func FindEnclosingScope(node *sitter.Node, want graph.ScopeType, scopeOf func(*sitter.Node) graph.ScopeType) *sitter.Node {
	current := node.Parent()
	for current != nil {
		if scopeOf(current) == want {
			return current
		}
		current = current.Parent()
	}
	return nil
}

// LeadingComment returns the text of the comment node(s) immediately
// preceding node (no blank line in between), joined and trimmed of
// comment syntax. isComment classifies a sibling node as a comment for
// the grammar in question.
func LeadingComment(node *sitter.Node, source []byte, isComment func(*sitter.Node) bool) string {
	parent := node.Parent()
	if parent == nil {
		return ""
	}
	idx := childIndex(parent, node)
	if idx <= 0 {
		return ""
	}
	var lines []string
	row := int(node.StartPoint().Row)
	for i := idx - 1; i >= 0; i-- {
		sib := parent.Child(i)
		if !isComment(sib) {
			break
		}
		if int(sib.EndPoint().Row) < row-1 {
			break
		}
		lines = append([]string{cleanComment(string(source[sib.StartByte():sib.EndByte()]))}, lines...)
		row = int(sib.StartPoint().Row)
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func childIndex(parent, node *sitter.Node) int {
	for i := 0; i < int(parent.ChildCount()); i++ {
		if parent.Child(i) == node {
			return i
		}
	}
	return -1
}

func cleanComment(raw string) string {
	t := strings.TrimSpace(raw)
	for _, prefix := range []string{"///", "//", "/**", "/*", "#"} {
		t = strings.TrimPrefix(t, prefix)
	}
	t = strings.TrimSuffix(t, "*/")
	t = strings.TrimSpace(t)
	var lines []string
	for _, l := range strings.Split(t, "\n") {
		l = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(l), "*"))
		if l != "" {
			lines = append(lines, l)
		}
	}
	return strings.Join(lines, " ")
}
