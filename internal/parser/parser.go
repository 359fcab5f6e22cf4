// Package parser lifts a single file's content to a typed EntityBatch,
// stateless across files (spec.md §4.2). It drives a lang.Provider but
// never consults the store or any other file's content, the same
// separation the teacher keeps between internal/parser/universal.go (the
// language-agnostic driver) and the provider-supplied node mappings.
package parser

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/oxhq/indexchan/internal/config"
	"github.com/oxhq/indexchan/internal/graph"
	"github.com/oxhq/indexchan/internal/lang"
	"github.com/oxhq/indexchan/internal/model"
)

// RawReference is a reference site still keyed by its enclosing entity's
// span rather than a resolved entity identity; the resolver turns these
// into graph.Reference or graph.Unresolved records.
type RawReference struct {
	SourceEntityID string
	SiteSpan       graph.Span
	TargetName     string
	Hint           graph.ReferenceHint
	Kind           graph.ReferenceKind
	Qualifier      string
	Speculative    bool
}

// EntityBatch is one file's parse output: its entities in start-byte
// order, plus every reference site found inside any of them.
type EntityBatch struct {
	File           graph.File
	Entities       []graph.Entity
	References     []RawReference
	MalformedInput bool
	ErrorRatio     float64
}

// Parser drives a single lang.Provider. It holds no per-file state; the
// same instance parses every file of its language across a project.
type Parser struct {
	provider lang.Provider
	cfg      *config.Config
}

// New constructs a Parser bound to provider, consulting cfg for the
// malformed-input threshold and whether to keep closure entities.
func New(provider lang.Provider, cfg *config.Config) *Parser {
	return &Parser{provider: provider, cfg: cfg}
}

// Parse parses file's content and returns its EntityBatch. A ratio of
// ERROR/MISSING coverage above cfg.MalformedInputThreshold sets
// MalformedInput but still returns whatever entities were recovered, per
// spec.md §4.2's "partially-parsed files still emit entities" clause.
func (p *Parser) Parse(file graph.File, content []byte) (EntityBatch, error) {
	tree, err := p.provider.Parse(content)
	if err != nil {
		return EntityBatch{}, model.Wrap(model.ECParse, fmt.Errorf("parse %s: %w", file.Path, err))
	}
	ratio := p.provider.ErrorRatio(tree)
	malformed := ratio > p.cfg.MalformedInputThreshold

	captures := p.provider.FindEntities(tree, content)
	entities := make([]graph.Entity, 0, len(captures))
	for _, c := range captures {
		if c.Anonymous && !p.cfg.IncludeClosuresAsEntities {
			continue
		}
		e := graph.Entity{
			ID:            uuid.NewString(),
			FileID:        file.ID,
			FilePath:      file.Path,
			Kind:          c.Kind,
			SimpleName:    simpleName(c.Name),
			QualifiedName: c.Name,
			Span:          c.FullSpan,
			Signature:     string(content[c.SignatureSpan.StartByte:c.SignatureSpan.EndByte]),
			Exported:      c.Exported,
			Doc:           p.provider.FindDocumentation(tree, content, c.FullSpan),
		}
		entities = append(entities, e)
	}
	sortByStartByte(entities)

	refCaptures := p.provider.FindReferences(tree, content, captures)
	refs := make([]RawReference, 0, len(refCaptures))
	for _, rc := range refCaptures {
		sourceID, ok := enclosingEntityID(rc.EnclosingSpan, entities)
		if !ok {
			// No declaration encloses this site: it belongs to the file's
			// implicit module/top-level scope rather than being dropped.
			// The resolver treats a file's own ID as that scope's identity.
			sourceID = file.ID
		}
		refs = append(refs, RawReference{
			SourceEntityID: sourceID,
			SiteSpan:       rc.SiteSpan,
			TargetName:     rc.TargetName,
			Hint:           rc.Hint,
			Kind:           rc.Kind,
			Qualifier:      rc.Qualifier,
			Speculative:    rc.Speculative,
		})
	}

	return EntityBatch{
		File:           file,
		Entities:       entities,
		References:     refs,
		MalformedInput: malformed,
		ErrorRatio:     ratio,
	}, nil
}

func simpleName(qualified string) string {
	for i := len(qualified) - 1; i >= 1; i-- {
		if qualified[i-1] == ':' && qualified[i] == ':' {
			return qualified[i+1:]
		}
	}
	return qualified
}

// enclosingEntityID finds the entity whose span most tightly contains
// site among entities, the syntactic equivalent of the teacher's
// node-to-owning-match lookup.
func enclosingEntityID(site graph.Span, entities []graph.Entity) (string, bool) {
	var bestID string
	bestWidth := -1
	for _, e := range entities {
		if site.StartByte >= e.Span.StartByte && site.EndByte <= e.Span.EndByte {
			width := e.Span.EndByte - e.Span.StartByte
			if bestWidth == -1 || width < bestWidth {
				bestWidth = width
				bestID = e.ID
			}
		}
	}
	return bestID, bestWidth != -1
}

func sortByStartByte(entities []graph.Entity) {
	for i := 1; i < len(entities); i++ {
		for j := i; j > 0 && entities[j].Span.StartByte < entities[j-1].Span.StartByte; j-- {
			entities[j], entities[j-1] = entities[j-1], entities[j]
		}
	}
}
