// Package resolver implements the two-pass name resolution algorithm of
// spec.md §4.3: Pass 1 indexes names (global, per-file local, and
// per-file import tables); Pass 2 walks every reference site and resolves
// it against four scoping layers in order, breaking ties deterministically.
// Resolution is purely syntactic: no import path is ever walked to a real
// file on disk beyond a best-effort suffix match, and no type is ever
// inferred.
package resolver

import (
	"path"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/oxhq/indexchan/internal/config"
	"github.com/oxhq/indexchan/internal/graph"
	"github.com/oxhq/indexchan/internal/parser"
)

// layer identifies which of the four scoping layers produced a match, in
// the priority order spec.md §4.3 fixes.
type layer int

const (
	layerClassScope layer = iota
	layerSameFile
	layerImport
	layerGlobal
	layerCount
)

func (l layer) label() string {
	switch l {
	case layerClassScope:
		return "class_scope"
	case layerSameFile:
		return "same_file"
	case layerImport:
		return "import"
	case layerGlobal:
		return "global"
	default:
		return "unknown"
	}
}

// importBinding is one locally-bound name introduced by an import
// statement, mapping to the import path it was bound from.
type importBinding struct {
	localName string
	path      string
}

// Resolver holds the Pass 1 indexes built from every file's EntityBatch.
type Resolver struct {
	cfg *config.Config

	entitiesByID   map[string]*graph.Entity
	globalByName   map[string][]*graph.Entity
	localByFile    map[string]map[string][]*graph.Entity // fileID -> simpleName -> entities
	importsByFile  map[string][]importBinding             // fileID -> bindings
	pathToFileID   map[string]string                      // normalized basename -> fileID
	allReferences  []parser.RawReference
	sourceFileByID map[string]string // entity ID -> file ID, for reference site context
}

// Result is the output of a full Pass 2 run.
type Result struct {
	References []graph.Reference
	Unresolved []graph.Unresolved
}

// New builds Pass 1's indexes from batches. Clean-file batches (from a
// previous run, unchanged this refresh) and dirty-file batches may be
// mixed freely; New does not care which files are dirty, only
// internal/store's incremental refresh does.
func New(cfg *config.Config, batches []parser.EntityBatch) *Resolver {
	r := &Resolver{
		cfg:            cfg,
		entitiesByID:   map[string]*graph.Entity{},
		globalByName:   map[string][]*graph.Entity{},
		localByFile:    map[string]map[string][]*graph.Entity{},
		importsByFile:  map[string][]importBinding{},
		pathToFileID:   map[string]string{},
		sourceFileByID: map[string]string{},
	}
	for _, b := range batches {
		r.pathToFileID[normalizeStem(b.File.Path)] = b.File.ID
		// A reference site with no enclosing declaration is attributed to
		// the file itself (module/top-level scope); self-mapping its ID
		// lets same-file and import lookups still find fileID below.
		r.sourceFileByID[b.File.ID] = b.File.ID
		for i := range b.Entities {
			e := &b.Entities[i]
			r.entitiesByID[e.ID] = e
			r.sourceFileByID[e.ID] = b.File.ID
			r.globalByName[e.SimpleName] = append(r.globalByName[e.SimpleName], e)
			if r.localByFile[b.File.ID] == nil {
				r.localByFile[b.File.ID] = map[string][]*graph.Entity{}
			}
			r.localByFile[b.File.ID][e.SimpleName] = append(r.localByFile[b.File.ID][e.SimpleName], e)
		}
		for _, rawRef := range b.References {
			if rawRef.Kind == graph.RefImports {
				r.importsByFile[b.File.ID] = append(r.importsByFile[b.File.ID], importBinding{
					localName: rawRef.Qualifier,
					path:      rawRef.TargetName,
				})
			}
		}
		r.allReferences = append(r.allReferences, b.References...)
	}
	return r
}

func normalizeStem(p string) string {
	base := path.Base(p)
	if idx := strings.LastIndex(base, "."); idx > 0 {
		base = base[:idx]
	}
	return base
}

// Resolve runs Pass 2 over every reference site collected in Pass 1 and
// returns the resolved edges and the unresolved diagnostics.
func (r *Resolver) Resolve() Result {
	var res Result
	for _, raw := range r.allReferences {
		if raw.Kind == graph.RefImports {
			// Import sites are consumed into the import table in Pass 1;
			// they are not themselves graph edges between entities.
			continue
		}
		ref, unresolved, ok := r.resolveOne(raw)
		if ok {
			res.References = append(res.References, ref)
		} else {
			res.Unresolved = append(res.Unresolved, unresolved)
		}
	}
	return res
}

func (r *Resolver) resolveOne(raw parser.RawReference) (graph.Reference, graph.Unresolved, bool) {
	source := r.entitiesByID[raw.SourceEntityID]
	fileID := r.sourceFileByID[raw.SourceEntityID]

	if raw.Speculative {
		// A guessed target name (bracket-notation dispatch traced through a
		// string literal) never earns a confident edge: it always surfaces
		// as unresolved so the reachability safety tiers see it, even when
		// the guessed name happens to match a real declaration.
		return graph.Reference{}, graph.Unresolved{
			ID:            uuid.NewString(),
			SourceID:      raw.SourceEntityID,
			AttemptedName: raw.TargetName,
			Hint:          raw.Hint,
			Site:          raw.SiteSpan,
			LayersTried:   nil,
		}, false
	}

	var triedLayers []string
	var winner *graph.Entity

	for l := layer(0); l < layerCount && winner == nil; l++ {
		var candidates []*graph.Entity
		switch l {
		case layerClassScope:
			candidates = r.classScopeCandidates(source, fileID, raw.TargetName)
		case layerSameFile:
			candidates = r.localByFile[fileID][raw.TargetName]
		case layerImport:
			candidates = r.importCandidates(fileID, raw)
		case layerGlobal:
			candidates = r.globalByName[raw.TargetName]
		}
		if len(candidates) == 0 {
			triedLayers = append(triedLayers, l.label())
			continue
		}
		triedLayers = append(triedLayers, l.label())
		candidates = applyHintFilter(candidates, raw)
		winner = breakTie(candidates, fileID)
	}

	if winner == nil {
		return graph.Reference{}, graph.Unresolved{
			ID:            uuid.NewString(),
			SourceID:      raw.SourceEntityID,
			AttemptedName: raw.TargetName,
			Hint:          raw.Hint,
			Site:          raw.SiteSpan,
			LayersTried:   triedLayers,
		}, false
	}

	return graph.Reference{
		ID:       uuid.NewString(),
		SourceID: raw.SourceEntityID,
		TargetID: winner.ID,
		Kind:     raw.Kind,
		Site:     raw.SiteSpan,
	}, graph.Unresolved{}, true
}

// classScopeCandidates looks up entities sharing the enclosing
// class/namespace of the reference's source entity, spec.md §4.3 layer 1.
// Class scope is derived from the source entity's fully-qualified local
// name: an entity named "C::m" encloses reference sites inside C.
func (r *Resolver) classScopeCandidates(source *graph.Entity, fileID, targetName string) []*graph.Entity {
	if source == nil {
		return nil
	}
	idx := strings.LastIndex(source.QualifiedName, "::")
	if idx < 0 {
		return nil
	}
	class := source.QualifiedName[:idx]
	var out []*graph.Entity
	for _, e := range r.localByFile[fileID][targetName] {
		if strings.HasPrefix(e.QualifiedName, class+"::") {
			out = append(out, e)
		}
	}
	return out
}

// importCandidates resolves a reference through this file's import
// table. Per SPEC_FULL.md's Open Questions decision, resolution goes
// through the locally-bound (possibly aliased) name, not the original
// export name.
func (r *Resolver) importCandidates(fileID string, raw parser.RawReference) []*graph.Entity {
	lookupName := raw.TargetName
	if raw.Qualifier != "" {
		lookupName = raw.Qualifier
	}
	for _, binding := range r.importsByFile[fileID] {
		if binding.localName != lookupName && binding.localName != raw.TargetName {
			continue
		}
		targetFileID, ok := r.pathToFileID[normalizeStem(binding.path)]
		if !ok {
			continue
		}
		if candidates := r.localByFile[targetFileID][raw.TargetName]; len(candidates) > 0 {
			return candidates
		}
	}
	return nil
}

// applyHintFilter narrows candidates using the reference's hint, per
// spec.md §4.3's "ties within a layer are broken by matching the
// reference hint" clause.
func applyHintFilter(candidates []*graph.Entity, raw parser.RawReference) []*graph.Entity {
	switch raw.Hint {
	case graph.HintQualifiedCall:
		if raw.Qualifier == "" {
			return candidates
		}
		want := raw.Qualifier + "::" + raw.TargetName
		var narrowed []*graph.Entity
		for _, c := range candidates {
			if c.QualifiedName == want {
				narrowed = append(narrowed, c)
			}
		}
		if len(narrowed) > 0 {
			return narrowed
		}
	case graph.HintTypePosition:
		var narrowed []*graph.Entity
		for _, c := range candidates {
			if c.Kind == graph.KindClass || c.Kind == graph.KindInterface || c.Kind == graph.KindTypeAlias {
				narrowed = append(narrowed, c)
			}
		}
		if len(narrowed) > 0 {
			return narrowed
		}
	}
	return candidates
}

// breakTie applies the deterministic three-way tie-break of spec.md
// §4.3: exported over local, same-file over cross-file, then
// lexicographically-first fully-qualified name.
func breakTie(candidates []*graph.Entity, sourceFileID string) *graph.Entity {
	if len(candidates) == 0 {
		return nil
	}
	if len(candidates) == 1 {
		return candidates[0]
	}
	sorted := make([]*graph.Entity, len(candidates))
	copy(sorted, candidates)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.Exported != b.Exported {
			return a.Exported
		}
		aSame := a.FileID == sourceFileID
		bSame := b.FileID == sourceFileID
		if aSame != bSame {
			return aSame
		}
		return a.QualifiedName < b.QualifiedName
	})
	return sorted[0]
}
