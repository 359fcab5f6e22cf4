// Package golang adapts the tree-sitter Go grammar to the lang.Provider
// contract, demonstrating the grammar-pluggability spec.md §9 calls for.
// Node-type handling is grounded on the teacher's providers/golang/config.go
// aliasMap (function_declaration/method_declaration/type_spec/...).
package golang

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	gogrammar "github.com/smacker/go-tree-sitter/golang"

	"github.com/oxhq/indexchan/internal/graph"
	"github.com/oxhq/indexchan/internal/lang"
	"github.com/oxhq/indexchan/internal/lang/base"
)

// Provider implements lang.Provider for Go source (.go).
type Provider struct {
	language *sitter.Language
}

// New constructs a Go grammar adapter.
func New() *Provider {
	return &Provider{language: gogrammar.GetLanguage()}
}

func (p *Provider) Lang() string         { return "go" }
func (p *Provider) Extensions() []string { return []string{".go"} }

func (p *Provider) Parse(source []byte) (*sitter.Tree, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(p.language)
	return parser.ParseCtx(nil, nil, source)
}

func (p *Provider) ErrorRatio(tree *sitter.Tree) float64 {
	return base.ErrorRatio(tree.RootNode(), int(tree.RootNode().EndByte()))
}

// FindEntities walks tree and emits one EntityCapture per top-level
// function/method declaration and per type_spec (struct or interface).
// It also returns func literals bound to a name (see findLocalFunctions).
// internal/parser drops only anonymous captures when
// Config.IncludeClosuresAsEntities is false, and this adapter never marks
// a capture anonymous, so these named closures are kept either way.
func (p *Provider) FindEntities(tree *sitter.Tree, source []byte) []lang.EntityCapture {
	var out []lang.EntityCapture
	root := tree.RootNode()
	for i := 0; i < int(root.NamedChildCount()); i++ {
		child := root.NamedChild(i)
		switch child.Type() {
		case "function_declaration":
			if cap, ok := p.functionCapture(child, source); ok {
				out = append(out, cap)
			}
		case "method_declaration":
			if cap, ok := p.methodCapture(child, source); ok {
				out = append(out, cap)
			}
		case "type_declaration":
			out = append(out, p.typeSpecCaptures(child, source)...)
		}
	}
	p.findLocalFunctions(root, source, &out)
	return out
}

func (p *Provider) functionCapture(n *sitter.Node, source []byte) (lang.EntityCapture, bool) {
	nameNode := n.ChildByFieldName("name")
	if nameNode == nil {
		return lang.EntityCapture{}, false
	}
	name := string(source[nameNode.StartByte():nameNode.EndByte()])
	return lang.EntityCapture{
		Kind:          graph.KindFunction,
		Name:          name,
		SignatureSpan: signatureSpan(n),
		FullSpan:      base.Span(n),
		Exported:      isGoExported(name),
		Node:          n,
	}, true
}

func (p *Provider) methodCapture(n *sitter.Node, source []byte) (lang.EntityCapture, bool) {
	nameNode := n.ChildByFieldName("name")
	recvNode := n.ChildByFieldName("receiver")
	if nameNode == nil {
		return lang.EntityCapture{}, false
	}
	name := string(source[nameNode.StartByte():nameNode.EndByte()])
	recv := receiverTypeName(recvNode, source)
	qualified := name
	if recv != "" {
		qualified = recv + "::" + name
	}
	return lang.EntityCapture{
		Kind:          graph.KindMethod,
		Name:          qualified,
		SignatureSpan: signatureSpan(n),
		FullSpan:      base.Span(n),
		Exported:      isGoExported(name),
		Node:          n,
	}, true
}

func receiverTypeName(recv *sitter.Node, source []byte) string {
	if recv == nil {
		return ""
	}
	for i := 0; i < int(recv.NamedChildCount()); i++ {
		param := recv.NamedChild(i)
		if param.Type() != "parameter_declaration" {
			continue
		}
		typeNode := param.ChildByFieldName("type")
		if typeNode == nil {
			continue
		}
		if typeNode.Type() == "pointer_type" {
			typeNode = typeNode.NamedChild(0)
		}
		if typeNode != nil {
			return string(source[typeNode.StartByte():typeNode.EndByte()])
		}
	}
	return ""
}

func (p *Provider) typeSpecCaptures(typeDecl *sitter.Node, source []byte) []lang.EntityCapture {
	var out []lang.EntityCapture
	for i := 0; i < int(typeDecl.NamedChildCount()); i++ {
		spec := typeDecl.NamedChild(i)
		if spec.Type() != "type_spec" {
			continue
		}
		nameNode := spec.ChildByFieldName("name")
		typeNode := spec.ChildByFieldName("type")
		if nameNode == nil || typeNode == nil {
			continue
		}
		name := string(source[nameNode.StartByte():nameNode.EndByte()])
		kind := graph.KindTypeAlias
		switch typeNode.Type() {
		case "struct_type":
			kind = graph.KindClass
		case "interface_type":
			kind = graph.KindInterface
		}
		out = append(out, lang.EntityCapture{
			Kind:          kind,
			Name:          name,
			SignatureSpan: base.Span(spec),
			FullSpan:      base.Span(spec),
			Exported:      isGoExported(name),
			Node:          spec,
		})
	}
	return out
}

// findLocalFunctions recurses into function/method bodies and surfaces
// func_literal assignments bound to an identifier, the Go analogue of
// TypeScript's closure-binding entities.
func (p *Provider) findLocalFunctions(n *sitter.Node, source []byte, out *[]lang.EntityCapture) {
	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		if child.Type() == "short_var_declaration" || child.Type() == "var_spec" {
			left := child.ChildByFieldName("left")
			right := child.ChildByFieldName("right")
			if left == nil {
				left = child.ChildByFieldName("name")
			}
			if right == nil {
				right = child.ChildByFieldName("value")
			}
			if left != nil && left.Type() == "expression_list" && left.NamedChildCount() == 1 {
				left = left.NamedChild(0)
			}
			if right != nil && right.Type() == "expression_list" && right.NamedChildCount() == 1 {
				right = right.NamedChild(0)
			}
			if left != nil && right != nil && right.Type() == "func_literal" {
				name := string(source[left.StartByte():left.EndByte()])
				*out = append(*out, lang.EntityCapture{
					Kind:          graph.KindFunction,
					Name:          name,
					SignatureSpan: signatureSpan(right),
					FullSpan:      base.Span(right),
					Exported:      false,
					Node:          right,
				})
			}
		}
		p.findLocalFunctions(child, source, out)
	}
}

func signatureSpan(n *sitter.Node) graph.Span {
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

func isGoExported(name string) bool {
	if name == "" {
		return false
	}
	r := rune(name[0])
	return r >= 'A' && r <= 'Z'
}

// FindReferences walks tree for call_expression, composite_literal
// (instantiation), import_spec, and type-embedding/interface-satisfaction
// sites.
func (p *Provider) FindReferences(tree *sitter.Tree, source []byte, entities []lang.EntityCapture) []lang.ReferenceCapture {
	var out []lang.ReferenceCapture
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		switch n.Type() {
		case "call_expression":
			if ref, ok := p.callReference(n, source); ok {
				out = append(out, ref)
			}
		case "composite_literal":
			if ref, ok := p.compositeReference(n, source); ok {
				out = append(out, ref)
			}
		case "import_spec":
			if ref, ok := p.importReference(n, source); ok {
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
		return lang.ReferenceCapture{
			SiteSpan:      base.Span(n),
			EnclosingSpan: base.Span(n),
			TargetName:    string(source[fn.StartByte():fn.EndByte()]),
			Hint:          graph.HintUnqualifiedCall,
			Kind:          graph.RefCalls,
		}, true
	case "selector_expression":
		operand := fn.ChildByFieldName("operand")
		field := fn.ChildByFieldName("field")
		if field == nil {
			return lang.ReferenceCapture{}, false
		}
		qualifier := ""
		if operand != nil {
			qualifier = string(source[operand.StartByte():operand.EndByte()])
		}
		return lang.ReferenceCapture{
			SiteSpan:      base.Span(n),
			EnclosingSpan: base.Span(n),
			TargetName:    string(source[field.StartByte():field.EndByte()]),
			Hint:          graph.HintQualifiedCall,
			Qualifier:     qualifier,
			Kind:          graph.RefCalls,
		}, true
	}
	return lang.ReferenceCapture{}, false
}

func (p *Provider) compositeReference(n *sitter.Node, source []byte) (lang.ReferenceCapture, bool) {
	typeNode := n.ChildByFieldName("type")
	if typeNode == nil {
		return lang.ReferenceCapture{}, false
	}
	name := string(source[typeNode.StartByte():typeNode.EndByte()])
	if idx := strings.LastIndex(name, "."); idx >= 0 {
		name = name[idx+1:]
	}
	return lang.ReferenceCapture{
		SiteSpan:      base.Span(n),
		EnclosingSpan: base.Span(n),
		TargetName:    name,
		Hint:          graph.HintTypePosition,
		Kind:          graph.RefInstantiates,
	}, true
}

func (p *Provider) importReference(n *sitter.Node, source []byte) (lang.ReferenceCapture, bool) {
	pathNode := n.ChildByFieldName("path")
	if pathNode == nil {
		return lang.ReferenceCapture{}, false
	}
	path := strings.Trim(string(source[pathNode.StartByte():pathNode.EndByte()]), `"`)
	qualifier := path
	if idx := strings.LastIndex(path, "/"); idx >= 0 {
		qualifier = path[idx+1:]
	}
	if nameNode := n.ChildByFieldName("name"); nameNode != nil {
		qualifier = string(source[nameNode.StartByte():nameNode.EndByte()])
	}
	return lang.ReferenceCapture{
		SiteSpan:      base.Span(n),
		EnclosingSpan: base.Span(n),
		TargetName:    path,
		Qualifier:     qualifier,
		Hint:          graph.HintImportTarget,
		Kind:          graph.RefImports,
	}, true
}

// FindDocumentation returns the leading `//`-comment block above span.
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

func (p *Provider) GetNodeScope(node *sitter.Node) graph.ScopeType {
	switch {
	case node.Type() == "source_file":
		return graph.ScopeFile
	case node.Type() == "type_spec":
		return graph.ScopeClass
	case node.Type() == "function_declaration", node.Type() == "method_declaration", node.Type() == "func_literal":
		return graph.ScopeFunction
	case node.Type() == "block":
		return graph.ScopeBlock
	default:
		if parent := node.Parent(); parent != nil {
			return p.GetNodeScope(parent)
		}
		return graph.ScopeFile
	}
}

func (p *Provider) FindEnclosingScope(node *sitter.Node, scope graph.ScopeType) *sitter.Node {
	return base.FindEnclosingScope(node, scope, p.GetNodeScope)
}
