// Package contextgather implements the anchor-centered bounded traversal
// of spec.md §4.5: given an anchor entity, produce a subgraph of callees,
// callers, and co-located siblings, render it to a textual bundle grouped
// by file, and score the bundle's signal-to-noise ratio.
package contextgather

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/oxhq/indexchan/internal/config"
	"github.com/oxhq/indexchan/internal/graph"
)

// RenderMode is whether an entity is rendered in full or elided to its
// signature.
type RenderMode string

const (
	ModeFull     RenderMode = "full"
	ModeSkeleton RenderMode = "skeleton"
)

// Classification is the bundle-level signal-to-noise grade.
type Classification string

const (
	High   Classification = "HIGH"
	Medium Classification = "MEDIUM"
	Low    Classification = "LOW"
)

// EntityRender is one entity's rendered slice inside the bundle.
type EntityRender struct {
	Entity   *graph.Entity
	Mode     RenderMode
	Text     string
	Distance int
}

// FileGroup is every rendered entity belonging to one source file, in
// source order.
type FileGroup struct {
	FilePath string
	Entities []EntityRender
}

// Bundle is the complete rendered context package for one or more
// anchors.
type Bundle struct {
	Groups         []FileGroup
	SignalToNoise  float64
	Classification Classification
	Recommendation string
	ByteLength     int
}

// Options overrides the config defaults for a single gather call; zero
// values fall back to cfg.
type Options struct {
	ForwardDepth   int
	BackwardDepth  int
	TokenBudget    int
	SkeletonAfterK int
}

func resolveOptions(cfg *config.Config, opts Options) Options {
	if opts.ForwardDepth <= 0 {
		opts.ForwardDepth = cfg.ForwardDepth
	}
	if opts.BackwardDepth <= 0 {
		opts.BackwardDepth = cfg.BackwardDepth
	}
	if opts.TokenBudget <= 0 {
		opts.TokenBudget = cfg.TokenBudget
	}
	if opts.SkeletonAfterK <= 0 {
		opts.SkeletonAfterK = cfg.SkeletonAfterK
	}
	return opts
}

// ResolveAnchors implements spec.md §4.5 step 1: simple name, file::name,
// or Type::name anchor specifiers.
func ResolveAnchors(g *graph.Graph, spec string) []*graph.Entity {
	idx := strings.LastIndex(spec, "::")
	if idx < 0 {
		return g.ByName[spec]
	}
	qualifier, name := spec[:idx], spec[idx+2:]

	var byFile []*graph.Entity
	for _, e := range g.ByName[name] {
		if strings.HasSuffix(e.FilePath, qualifier) || strings.HasSuffix(strings.TrimSuffix(e.FilePath, pathExt(e.FilePath)), qualifier) {
			byFile = append(byFile, e)
		}
	}
	if len(byFile) > 0 {
		return byFile
	}

	var byType []*graph.Entity
	want := qualifier + "::" + name
	for _, e := range g.ByName[name] {
		if e.QualifiedName == want || strings.HasPrefix(e.QualifiedName, qualifier+"::") {
			byType = append(byType, e)
		}
	}
	return byType
}

func pathExt(p string) string {
	if idx := strings.LastIndex(p, "."); idx >= 0 {
		return p[idx:]
	}
	return ""
}

// Gather runs the full traversal-and-render pipeline for anchorSpec.
// contents maps a file's ID to its current byte content, used to render
// entity bodies.
func Gather(g *graph.Graph, cfg *config.Config, contents map[string][]byte, anchorSpec string, opts Options) (*Bundle, error) {
	anchors := ResolveAnchors(g, anchorSpec)
	if len(anchors) == 0 {
		return nil, fmt.Errorf("no entity matches anchor %q", anchorSpec)
	}
	opts = resolveOptions(cfg, opts)

	distance := map[string]int{}
	for _, a := range anchors {
		distance[a.ID] = 0
	}

	forwardBFS(g, anchors, opts.ForwardDepth, distance)
	backwardBFS(g, anchors, opts.BackwardDepth, distance)
	expandCoLocation(g, distance, opts.TokenBudget)

	renders := renderAll(g, contents, distance, opts.SkeletonAfterK)
	renders = enforceBudget(renders, distance, opts.TokenBudget)

	bundle := group(renders)
	bundle.SignalToNoise, bundle.Classification, bundle.Recommendation = score(bundle)
	bundle.ByteLength = totalBytes(bundle)
	return bundle, nil
}

func forwardBFS(g *graph.Graph, anchors []*graph.Entity, depth int, distance map[string]int) {
	frontier := make([]string, 0, len(anchors))
	for _, a := range anchors {
		frontier = append(frontier, a.ID)
	}
	for hop := 1; hop <= depth && len(frontier) > 0; hop++ {
		var next []string
		for _, id := range frontier {
			for _, ref := range g.Out(id, graph.RefCalls, graph.RefReferences, graph.RefInstantiates) {
				if _, seen := distance[ref.TargetID]; !seen {
					distance[ref.TargetID] = hop
					next = append(next, ref.TargetID)
				}
			}
		}
		frontier = next
	}
}

func backwardBFS(g *graph.Graph, anchors []*graph.Entity, depth int, distance map[string]int) {
	frontier := make([]string, 0, len(anchors))
	for _, a := range anchors {
		frontier = append(frontier, a.ID)
	}
	for hop := 1; hop <= depth && len(frontier) > 0; hop++ {
		var next []string
		for _, id := range frontier {
			for _, ref := range g.In(id, graph.RefCalls, graph.RefReferences) {
				if _, seen := distance[ref.SourceID]; !seen {
					distance[ref.SourceID] = hop
					next = append(next, ref.SourceID)
				}
			}
		}
		frontier = next
	}
}

// expandCoLocation adds sibling entities sharing the same enclosing
// class/namespace as an already-visited entity, guarded by a rough
// token-budget estimate per spec.md §4.5 step 4's "when budget permits".
func expandCoLocation(g *graph.Graph, distance map[string]int, tokenBudget int) {
	estimate := 0
	for id := range distance {
		if e := g.Entities[id]; e != nil {
			estimate += (e.Span.EndByte - e.Span.StartByte) / 4
		}
	}
	if estimate >= tokenBudget {
		return
	}
	additions := map[string]int{}
	for id, d := range distance {
		e := g.Entities[id]
		if e == nil {
			continue
		}
		idx := strings.LastIndex(e.QualifiedName, "::")
		if idx < 0 {
			continue
		}
		class := e.QualifiedName[:idx]
		for _, sib := range g.Entities {
			if sib.FileID != e.FileID {
				continue
			}
			if !strings.HasPrefix(sib.QualifiedName, class+"::") {
				continue
			}
			if _, seen := distance[sib.ID]; seen {
				continue
			}
			if _, added := additions[sib.ID]; added {
				continue
			}
			cost := (sib.Span.EndByte - sib.Span.StartByte) / 4
			if estimate+cost >= tokenBudget {
				continue
			}
			estimate += cost
			additions[sib.ID] = d
		}
	}
	for id, d := range additions {
		distance[id] = d
	}
}

func renderAll(g *graph.Graph, contents map[string][]byte, distance map[string]int, skeletonAfterK int) []*EntityRender {
	var out []*EntityRender
	for id, d := range distance {
		e := g.Entities[id]
		if e == nil {
			continue
		}
		content := contents[e.FileID]
		mode := ModeFull
		if d > skeletonAfterK {
			mode = ModeSkeleton
		}
		out = append(out, &EntityRender{
			Entity:   e,
			Mode:     mode,
			Text:     render(e, content, mode),
			Distance: d,
		})
	}
	return out
}

func render(e *graph.Entity, content []byte, mode RenderMode) string {
	if content == nil || e.Span.EndByte > len(content) {
		return e.Signature
	}
	if mode == ModeFull {
		return string(content[e.Span.StartByte:e.Span.EndByte])
	}
	return e.Signature + " /* ... elided ... */"
}

// enforceBudget implements spec.md §4.5's overflow handling: demote
// full-body entities to skeleton by descending rendered size, then drop
// entities by descending graph distance (ties by descending rendered
// size), until the bundle fits 4*T bytes. The size counted is each
// entity's rendered text plus each distinct file path once, the same
// bytes the bundle's length counts. Returns the (possibly shrunk)
// slice; callers must use the return value, since eviction removes
// elements.
func enforceBudget(renders []*EntityRender, distance map[string]int, tokenBudget int) []*EntityRender {
	limit := 4 * tokenBudget
	size := func() int {
		total := 0
		paths := map[string]bool{}
		for _, r := range renders {
			total += len(r.Text)
			if !paths[r.Entity.FilePath] {
				paths[r.Entity.FilePath] = true
				total += len(r.Entity.FilePath)
			}
		}
		return total
	}

	for size() > limit {
		idx := -1
		largest := -1
		for i, r := range renders {
			if r.Mode == ModeFull && len(r.Text) > largest {
				largest = len(r.Text)
				idx = i
			}
		}
		if idx == -1 {
			break
		}
		renders[idx].Mode = ModeSkeleton
		renders[idx].Text = renders[idx].Entity.Signature + " /* ... elided ... */"
	}

	for size() > limit && len(renders) > 0 {
		idx := 0
		for i := 1; i < len(renders); i++ {
			if renders[i].Distance > renders[idx].Distance ||
				(renders[i].Distance == renders[idx].Distance && len(renders[i].Text) > len(renders[idx].Text)) {
				idx = i
			}
		}
		renders = append(renders[:idx], renders[idx+1:]...)
	}
	return renders
}

func group(renders []*EntityRender) *Bundle {
	byFile := map[string][]EntityRender{}
	var order []string
	for _, r := range renders {
		fp := r.Entity.FilePath
		if _, seen := byFile[fp]; !seen {
			order = append(order, fp)
		}
		byFile[fp] = append(byFile[fp], *r)
	}
	sort.Strings(order)
	bundle := &Bundle{}
	for _, fp := range order {
		group := byFile[fp]
		sort.SliceStable(group, func(i, j int) bool {
			return group[i].Entity.Span.StartLine < group[j].Entity.Span.StartLine
		})
		bundle.Groups = append(bundle.Groups, FileGroup{FilePath: fp, Entities: group})
	}
	return bundle
}

var identifierRE = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_]*`)

// score implements spec.md §4.5 step 6's signal-to-noise metric.
func score(bundle *Bundle) (float64, Classification, string) {
	var long, short int
	shortByFile := map[string]int{}
	for _, g := range bundle.Groups {
		for _, e := range g.Entities {
			for _, tok := range identifierRE.FindAllString(e.Text, -1) {
				if len(tok) >= 3 {
					long++
				} else {
					short++
					shortByFile[g.FilePath]++
				}
			}
		}
	}
	var ratio float64
	if short == 0 {
		ratio = float64(long + 1)
	} else {
		ratio = float64(long) / float64(short)
	}

	var class Classification
	switch {
	case ratio > 2.0:
		class = High
	case ratio >= 1.0:
		class = Medium
	default:
		class = Low
	}

	var recommendation string
	if class == Low {
		offender, max := "", -1
		for fp, n := range shortByFile {
			if n > max {
				max, offender = n, fp
			}
		}
		if offender != "" {
			recommendation = fmt.Sprintf("low signal-to-noise: %s contributes the most short identifiers, consider descriptive renames there", offender)
		}
	}
	return ratio, class, recommendation
}

func totalBytes(bundle *Bundle) int {
	total := 0
	for _, g := range bundle.Groups {
		total += len(g.FilePath)
		for _, e := range g.Entities {
			total += len(e.Text)
		}
	}
	return total
}
