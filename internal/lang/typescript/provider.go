// Package typescript adapts the tree-sitter TypeScript grammar to the
// lang.Provider contract. It is the primary grammar target named in
// spec.md §1; its node-type mapping table is grounded on the teacher's
// providers/typescript/config.go alias map.
package typescript

import (
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	tsgrammar "github.com/smacker/go-tree-sitter/typescript/typescript"

	"github.com/oxhq/indexchan/internal/graph"
	"github.com/oxhq/indexchan/internal/lang"
	"github.com/oxhq/indexchan/internal/lang/base"
)

// Provider implements lang.Provider for TypeScript (.ts, .tsx).
type Provider struct {
	language *sitter.Language
}

// New constructs a TypeScript grammar adapter.
func New() *Provider {
	return &Provider{language: tsgrammar.GetLanguage()}
}

func (p *Provider) Lang() string         { return "typescript" }
func (p *Provider) Extensions() []string { return []string{".ts", ".tsx"} }

// Parse parses source text into a TypeScript parse tree.
func (p *Provider) Parse(source []byte) (*sitter.Tree, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(p.language)
	return parser.ParseCtx(nil, nil, source)
}

// ErrorRatio reports the fraction of the file covered by ERROR/MISSING
// nodes, used by the parser to flag spec.md §4.2 MALFORMED_INPUT.
func (p *Provider) ErrorRatio(tree *sitter.Tree) float64 {
	return base.ErrorRatio(tree.RootNode(), int(tree.RootNode().EndByte()))
}

// entityNodeTypes maps a declaration's tree-sitter node type to the
// universal EntityKind it represents. Grounded on the teacher's
// providers/typescript/config.go aliasMap, narrowed to declaration-only
// node types (the teacher's map also covers statements/expressions the
// graph doesn't model as entities).
var entityNodeTypes = map[string]graph.EntityKind{
	"function_declaration":   graph.KindFunction,
	"method_definition":      graph.KindMethod,
	"method_signature":       graph.KindMethod,
	"class_declaration":      graph.KindClass,
	"interface_declaration":  graph.KindInterface,
	"type_alias_declaration": graph.KindTypeAlias,
	"module_declaration":     graph.KindModule,
}

// FindEntities walks tree and emits one EntityCapture per recognized
// declaration, plus one per closure (arrow function or function
// expression). internal/parser drops the anonymous closures when
// Config.IncludeClosuresAsEntities is false; closures bound to a name are
// kept whatever that flag says.
func (p *Provider) FindEntities(tree *sitter.Tree, source []byte) []lang.EntityCapture {
	var out []lang.EntityCapture
	var walk func(n *sitter.Node, enclosingClass string)
	walk = func(n *sitter.Node, enclosingClass string) {
		if kind, ok := entityNodeTypes[n.Type()]; ok {
			name := p.extractName(n, source)
			if name != "" {
				out = append(out, lang.EntityCapture{
					Kind:          kind,
					Name:          qualify(enclosingClass, name),
					SignatureSpan: signatureSpan(n, source),
					FullSpan:      base.Span(n),
					Exported:      p.isExported(n, source),
					Node:          n,
				})
			}
			nextEnclosing := enclosingClass
			if kind == graph.KindClass || kind == graph.KindInterface {
				nextEnclosing = qualify(enclosingClass, name)
			}
			for i := 0; i < int(n.ChildCount()); i++ {
				walk(n.Child(i), nextEnclosing)
			}
			return
		}
		// Closures: `const f = () => {}` gets f's name from the binding;
		// anything else (inline callback, IIFE, anonymous default export)
		// is anonymous and gets a synthetic <anon@L12>-style label so it
		// can still be a resolution target per SPEC_FULL.md's Open
		// Questions decision on closures as first-class entities.
		if n.Type() == "arrow_function" || n.Type() == "function_expression" {
			name, anonymous := closureName(n, source)
			out = append(out, lang.EntityCapture{
				Kind:          graph.KindFunction,
				Name:          qualify(enclosingClass, name),
				SignatureSpan: signatureSpan(n, source),
				FullSpan:      base.Span(n),
				Exported:      p.isExported(n, source),
				Node:          n,
				Anonymous:     anonymous,
			})
			for i := 0; i < int(n.ChildCount()); i++ {
				walk(n.Child(i), enclosingClass)
			}
			return
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			walk(n.Child(i), enclosingClass)
		}
	}
	walk(tree.RootNode(), "")
	return out
}

// closureName names a closure from its binding (`const f = () => {}`)
// when one exists, or synthesizes an `<anon@L<line>>` label when the
// closure has no name of its own.
func closureName(n *sitter.Node, source []byte) (string, bool) {
	if parent := n.Parent(); parent != nil && parent.Type() == "variable_declarator" {
		if idNode := parent.ChildByFieldName("id"); idNode != nil {
			return string(source[idNode.StartByte():idNode.EndByte()]), false
		}
	}
	return fmt.Sprintf("<anon@L%d>", int(n.StartPoint().Row)+1), true
}

func qualify(enclosing, name string) string {
	if enclosing == "" {
		return name
	}
	return enclosing + "::" + name
}

// signatureSpan returns the span of the declaration header (up to, but
// excluding, the body block), matching the Entity.Signature contract in
// spec.md §3.
func signatureSpan(n *sitter.Node, source []byte) graph.Span {
	body := n.ChildByFieldName("body")
	if body == nil {
		return base.Span(n)
	}
	return graph.Span{
		StartLine: int(n.StartPoint().Row) + 1,
		EndLine:   int(body.StartPoint().Row) + 1,
		StartByte: int(n.StartByte()),
		EndByte:   int(body.StartByte()),
	}
}

func (p *Provider) extractName(n *sitter.Node, source []byte) string {
	switch n.Type() {
	case "function_declaration", "class_declaration", "interface_declaration",
		"type_alias_declaration", "module_declaration":
		if nameNode := n.ChildByFieldName("name"); nameNode != nil {
			return string(source[nameNode.StartByte():nameNode.EndByte()])
		}
	case "method_definition", "method_signature":
		if keyNode := n.ChildByFieldName("name"); keyNode != nil {
			return string(source[keyNode.StartByte():keyNode.EndByte()])
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			if c := n.Child(i); c.Type() == "property_identifier" {
				return string(source[c.StartByte():c.EndByte()])
			}
		}
	}
	return ""
}

// isExported reports whether a declaration (or its containing statement)
// is reachable from an `export` keyword, the TypeScript visibility
// boundary spec.md §3's Entity.visibility attribute names.
func (p *Provider) isExported(n *sitter.Node, source []byte) bool {
	for cur := n; cur != nil; cur = cur.Parent() {
		if cur.Type() == "export_statement" {
			return true
		}
		// Class members use a `public`/`private`/`protected`/no-modifier
		// convention rather than `export`; default to exported unless an
		// explicit non-public accessibility modifier is present.
		if cur.Type() == "method_definition" || cur.Type() == "method_signature" {
			for i := 0; i < int(cur.ChildCount()); i++ {
				c := cur.Child(i)
				if c.Type() != "accessibility_modifier" {
					continue
				}
				if m := string(source[c.StartByte():c.EndByte()]); m == "private" || m == "protected" {
					return false
				}
			}
		}
	}
	return n.Type() == "method_definition" || n.Type() == "method_signature"
}

// FindReferences walks tree and emits one ReferenceCapture per call,
// instantiation, import, extends/implements, and type-position reference
// site in the whole tree; entities is not consulted, and sites outside
// every entity are attributed to the file by internal/parser.
func (p *Provider) FindReferences(tree *sitter.Tree, source []byte, entities []lang.EntityCapture) []lang.ReferenceCapture {
	var out []lang.ReferenceCapture
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		switch n.Type() {
		case "call_expression":
			if ref, ok := p.callReference(n, source); ok {
				ref.EnclosingSpan = base.Span(n)
				out = append(out, ref)
			}
		case "new_expression":
			if ref, ok := p.newReference(n, source); ok {
				out = append(out, ref)
			}
		case "import_statement":
			out = append(out, p.importReferences(n, source)...)
		case "class_heritage":
			out = append(out, p.heritageReferences(n, source)...)
		case "type_annotation":
			if ref, ok := p.typeReference(n, source); ok {
				out = append(out, ref)
			}
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			walk(n.Child(i))
		}
	}
	walk(tree.RootNode())
	return out
}

func (p *Provider) callReference(n *sitter.Node, source []byte) (lang.ReferenceCapture, bool) {
	fn := n.ChildByFieldName("function")
	if fn == nil {
		return lang.ReferenceCapture{}, false
	}
	switch fn.Type() {
	case "identifier":
		name := string(source[fn.StartByte():fn.EndByte()])
		return lang.ReferenceCapture{
			SiteSpan:   base.Span(n),
			TargetName: name,
			Hint:       graph.HintUnqualifiedCall,
			Kind:       graph.RefCalls,
		}, true
	case "member_expression":
		prop := fn.ChildByFieldName("property")
		obj := fn.ChildByFieldName("object")
		if prop == nil {
			return lang.ReferenceCapture{}, false
		}
		name := string(source[prop.StartByte():prop.EndByte()])
		qualifier := ""
		if obj != nil {
			qualifier = string(source[obj.StartByte():obj.EndByte()])
			// `new C().m()`: the receiver is a fresh C, so C is the qualifier.
			if obj.Type() == "new_expression" {
				if ctor := obj.ChildByFieldName("constructor"); ctor != nil {
					qualifier = string(source[ctor.StartByte():ctor.EndByte()])
				}
			}
		}
		return lang.ReferenceCapture{
			SiteSpan:   base.Span(n),
			TargetName: name,
			Hint:       graph.HintQualifiedCall,
			Qualifier:  qualifier,
			Kind:       graph.RefCalls,
		}, true
	case "subscript_expression":
		// Bracket-notation dynamic dispatch (`globalThis[name]()`,
		// `handlers["onClick"]()`): spec.md §1 explicitly disclaims exact
		// guarantees here, but a best-effort syntactic guess keeps the
		// scenario in spec.md §8 from producing no reference at all. The
		// index is either a string literal directly, or an identifier whose
		// value can be traced to one via a same-file constant lookup.
		index := fn.ChildByFieldName("index")
		if index == nil {
			return lang.ReferenceCapture{}, false
		}
		name, ok := computedPropertyName(index, source)
		if !ok {
			return lang.ReferenceCapture{}, false
		}
		return lang.ReferenceCapture{
			SiteSpan:    base.Span(n),
			TargetName:  name,
			Hint:        graph.HintUnqualifiedCall,
			Kind:        graph.RefCalls,
			Speculative: true,
		}, true
	}
	return lang.ReferenceCapture{}, false
}

// computedPropertyName resolves a subscript index expression to a static
// name when possible: directly for a string literal, or by tracing an
// identifier back to a same-file `const x = "..."` binding. Returns false
// when the index can't be reduced to a literal, the honest "we don't know"
// case spec.md §1's dynamic-dispatch non-goal describes.
func computedPropertyName(index *sitter.Node, source []byte) (string, bool) {
	if lit, ok := stringLiteralValue(index, source); ok {
		return lit, true
	}
	if index.Type() != "identifier" {
		return "", false
	}
	varName := string(source[index.StartByte():index.EndByte()])
	root := index
	for root.Parent() != nil {
		root = root.Parent()
	}
	return findConstStringBinding(root, source, varName)
}

func stringLiteralValue(n *sitter.Node, source []byte) (string, bool) {
	if n.Type() != "string" {
		return "", false
	}
	return strings.Trim(string(source[n.StartByte():n.EndByte()]), `"'`+"`"), true
}

// findConstStringBinding searches root for a variable_declarator binding
// varName to a string literal, the narrow same-file constant-propagation
// step bracket-notation dispatch needs.
func findConstStringBinding(root *sitter.Node, source []byte, varName string) (string, bool) {
	var found string
	var ok bool
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if ok {
			return
		}
		if n.Type() == "variable_declarator" {
			if idNode := n.ChildByFieldName("id"); idNode != nil &&
				string(source[idNode.StartByte():idNode.EndByte()]) == varName {
				if valueNode := n.ChildByFieldName("value"); valueNode != nil {
					if lit, litOK := stringLiteralValue(valueNode, source); litOK {
						found, ok = lit, true
						return
					}
				}
			}
		}
		for i := 0; i < int(n.ChildCount()) && !ok; i++ {
			walk(n.Child(i))
		}
	}
	walk(root)
	return found, ok
}

func (p *Provider) newReference(n *sitter.Node, source []byte) (lang.ReferenceCapture, bool) {
	ctor := n.ChildByFieldName("constructor")
	if ctor == nil || ctor.Type() != "identifier" {
		return lang.ReferenceCapture{}, false
	}
	return lang.ReferenceCapture{
		SiteSpan:      base.Span(n),
		EnclosingSpan: base.Span(n),
		TargetName:    string(source[ctor.StartByte():ctor.EndByte()]),
		Hint:          graph.HintUnqualifiedCall,
		Kind:          graph.RefInstantiates,
	}, true
}

func (p *Provider) importReferences(n *sitter.Node, source []byte) []lang.ReferenceCapture {
	sourceNode := n.ChildByFieldName("source")
	if sourceNode == nil {
		return nil
	}
	path := strings.Trim(string(source[sourceNode.StartByte():sourceNode.EndByte()]), `"'`)
	var refs []lang.ReferenceCapture
	clause := n.ChildByFieldName("import_clause")
	if clause == nil {
		// bare `import 'x'` — no bound names, nothing to resolve.
		return nil
	}
	var collectNames func(*sitter.Node)
	collectNames = func(c *sitter.Node) {
		switch c.Type() {
		case "import_specifier":
			bound := c.ChildByFieldName("alias")
			if bound == nil {
				bound = c.ChildByFieldName("name")
			}
			if bound != nil {
				refs = append(refs, lang.ReferenceCapture{
					SiteSpan:      base.Span(c),
					EnclosingSpan: base.Span(n),
					TargetName:    path,
					Qualifier:     string(source[bound.StartByte():bound.EndByte()]),
					Hint:          graph.HintImportTarget,
					Kind:          graph.RefImports,
				})
			}
		case "identifier":
			refs = append(refs, lang.ReferenceCapture{
				SiteSpan:      base.Span(c),
				EnclosingSpan: base.Span(n),
				TargetName:    path,
				Qualifier:     string(source[c.StartByte():c.EndByte()]),
				Hint:          graph.HintImportTarget,
				Kind:          graph.RefImports,
			})
		}
		for i := 0; i < int(c.ChildCount()); i++ {
			collectNames(c.Child(i))
		}
	}
	collectNames(clause)
	return refs
}

func (p *Provider) heritageReferences(n *sitter.Node, source []byte) []lang.ReferenceCapture {
	var refs []lang.ReferenceCapture
	for i := 0; i < int(n.ChildCount()); i++ {
		clause := n.Child(i)
		kind := graph.RefExtends
		if clause.Type() == "implements_clause" {
			kind = graph.RefImplements
		} else if clause.Type() != "extends_clause" {
			continue
		}
		for j := 0; j < int(clause.ChildCount()); j++ {
			target := clause.Child(j)
			if target.Type() != "identifier" && target.Type() != "type_identifier" {
				continue
			}
			refs = append(refs, lang.ReferenceCapture{
				SiteSpan:      base.Span(target),
				EnclosingSpan: base.Span(n),
				TargetName:    string(source[target.StartByte():target.EndByte()]),
				Hint:          graph.HintTypePosition,
				Kind:          kind,
			})
		}
	}
	return refs
}

func (p *Provider) typeReference(n *sitter.Node, source []byte) (lang.ReferenceCapture, bool) {
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		if c.Type() == "type_identifier" {
			return lang.ReferenceCapture{
				SiteSpan:      base.Span(c),
				EnclosingSpan: base.Span(n),
				TargetName:    string(source[c.StartByte():c.EndByte()]),
				Hint:          graph.HintTypePosition,
				Kind:          graph.RefReferences,
			}, true
		}
	}
	return lang.ReferenceCapture{}, false
}

// FindDocumentation returns the leading comment text immediately above
// span, if any.
func (p *Provider) FindDocumentation(tree *sitter.Tree, source []byte, span graph.Span) string {
	node := nodeAt(tree.RootNode(), span)
	if node == nil {
		return ""
	}
	return base.LeadingComment(node, source, func(n *sitter.Node) bool { return n.Type() == "comment" })
}

func nodeAt(root *sitter.Node, span graph.Span) *sitter.Node {
	var found *sitter.Node
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if int(n.StartByte()) == span.StartByte && int(n.EndByte()) <= span.EndByte {
			if found == nil || n.EndByte()-n.StartByte() > found.EndByte()-found.StartByte() {
				// no-op: only the exact-span check below sets found, and the
				// walk visits parents before children, so the innermost exact
				// match wins
			}
		}
		if int(n.StartByte()) == span.StartByte && int(n.EndByte()) == span.EndByte {
			found = n
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			walk(n.Child(i))
		}
	}
	walk(root)
	return found
}

// GetNodeScope determines the scope type of node, following the teacher's
// BaseProvider.GetNodeScope default chain.
func (p *Provider) GetNodeScope(node *sitter.Node) graph.ScopeType {
	switch {
	case node.Type() == "program":
		return graph.ScopeFile
	case base.IsClassScope(node.Type()) || node.Type() == "interface_declaration":
		return graph.ScopeClass
	case base.IsFunctionScope(node.Type()) || node.Type() == "arrow_function":
		return graph.ScopeFunction
	case node.Type() == "statement_block":
		return graph.ScopeBlock
	default:
		if parent := node.Parent(); parent != nil {
			return p.GetNodeScope(parent)
		}
		return graph.ScopeFile
	}
}

// FindEnclosingScope walks up from node to the nearest ancestor of the
// given scope type.
func (p *Provider) FindEnclosingScope(node *sitter.Node, scope graph.ScopeType) *sitter.Node {
	return base.FindEnclosingScope(node, scope, p.GetNodeScope)
}
