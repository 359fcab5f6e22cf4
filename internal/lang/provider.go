// Package lang defines the Grammar Adapter contract (spec.md §4.1): a
// uniform query interface over one or more concrete tree-sitter grammars.
// Concrete adapters live in subpackages (internal/lang/typescript,
// internal/lang/golang); adding a language means supplying one adapter
// that satisfies Provider, not touching the parser, resolver, or any
// downstream component.
package lang

import (
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/oxhq/indexchan/internal/graph"
)

// EntityCapture is one declaration the adapter found while walking a
// parse tree.
type EntityCapture struct {
	Kind          graph.EntityKind
	Name          string
	SignatureSpan graph.Span
	FullSpan      graph.Span
	Exported      bool
	Node          *sitter.Node

	// Anonymous marks a closure with no named binding (an inline callback,
	// an IIFE, an IIFE-like default export): Name still carries the
	// synthetic "<anon@L12>"-style label so it can be qualified and
	// resolved like any other entity, but the parser consults this flag
	// rather than an empty Name to decide whether Config.IncludeClosuresAsEntities
	// gates it.
	Anonymous bool
}

// ReferenceCapture is one reference site the adapter found in a parse
// tree, inside an entity's span or at the file's top level.
type ReferenceCapture struct {
	SiteSpan          graph.Span
	EnclosingSpan     graph.Span
	TargetName        string
	Hint              graph.ReferenceHint
	Kind              graph.ReferenceKind
	Qualifier         string // set for HintQualifiedCall: the receiver/qualifier identifier

	// Speculative marks a site whose target name is a best-effort guess
	// (e.g. traced through a string literal behind bracket notation) that
	// must never be treated as a confident edge: the resolver records it
	// directly as unresolved instead of running it through the normal
	// scoping layers, per spec.md §1's dynamic-dispatch non-goal.
	Speculative bool
}

// Provider is the capability object every grammar adapter implements,
// modeling spec.md §9's "polymorphism over grammars" design note.
type Provider interface {
	// Lang returns the canonical grammar identifier ("typescript", "go").
	Lang() string

	// Extensions returns the file extensions routed to this provider.
	Extensions() []string

	// Parse parses source text into a tree-sitter parse tree.
	Parse(source []byte) (*sitter.Tree, error)

	// FindEntities walks tree and yields every recognized declaration.
	FindEntities(tree *sitter.Tree, source []byte) []EntityCapture

	// FindReferences walks tree and yields every reference site it
	// recognizes, including sites outside every entity in entities.
	FindReferences(tree *sitter.Tree, source []byte, entities []EntityCapture) []ReferenceCapture

	// FindDocumentation extracts a leading-comment documentation string
	// for the declaration at span, if any.
	FindDocumentation(tree *sitter.Tree, source []byte, span graph.Span) string

	// GetNodeScope determines the scope type of node.
	GetNodeScope(node *sitter.Node) graph.ScopeType

	// FindEnclosingScope walks up from node to the nearest ancestor of
	// the given scope type.
	FindEnclosingScope(node *sitter.Node, scope graph.ScopeType) *sitter.Node

	// ErrorRatio reports the fraction of tree covered by ERROR/MISSING
	// nodes, used by the parser to detect MALFORMED_INPUT.
	ErrorRatio(tree *sitter.Tree) float64
}
