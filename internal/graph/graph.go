package graph

// Graph is the in-memory, read-only projection of a project's code graph
// that the reachability analyzer and context gatherer operate on. It is
// built once from a store query and discarded after the query completes;
// callers must not retain it past the store lease that produced it.
type Graph struct {
	Entities map[string]*Entity // by entity ID
	ByName   map[string][]*Entity // by simple name, for resolver/gatherer lookups

	// Refs holds the full multigraph; outEdges and inEdges index every
	// one of those references by source and by target, duplicates
	// included. Deduplicated returns the collapsed projection.
	Refs     []*Reference
	outEdges map[string][]*Reference
	inEdges  map[string][]*Reference
}

// New builds a Graph projection from the flat entity and reference lists
// the store returns.
func New(entities []*Entity, refs []*Reference) *Graph {
	g := &Graph{
		Entities: make(map[string]*Entity, len(entities)),
		ByName:   make(map[string][]*Entity),
		Refs:     refs,
		outEdges: make(map[string][]*Reference),
		inEdges:  make(map[string][]*Reference),
	}
	for _, e := range entities {
		g.Entities[e.ID] = e
		g.ByName[e.SimpleName] = append(g.ByName[e.SimpleName], e)
	}
	for _, r := range refs {
		g.outEdges[r.SourceID] = append(g.outEdges[r.SourceID], r)
		g.inEdges[r.TargetID] = append(g.inEdges[r.TargetID], r)
	}
	return g
}

// Out returns the references whose source is entityID, optionally
// restricted to a set of kinds (all kinds if kinds is empty).
func (g *Graph) Out(entityID string, kinds ...ReferenceKind) []*Reference {
	return filterKind(g.outEdges[entityID], kinds)
}

// In returns the references whose target is entityID, optionally
// restricted to a set of kinds (all kinds if kinds is empty).
func (g *Graph) In(entityID string, kinds ...ReferenceKind) []*Reference {
	return filterKind(g.inEdges[entityID], kinds)
}

func filterKind(refs []*Reference, kinds []ReferenceKind) []*Reference {
	if len(kinds) == 0 {
		return refs
	}
	want := make(map[ReferenceKind]bool, len(kinds))
	for _, k := range kinds {
		want[k] = true
	}
	out := make([]*Reference, 0, len(refs))
	for _, r := range refs {
		if want[r.Kind] {
			out = append(out, r)
		}
	}
	return out
}

// Deduplicated returns the graph's edges collapsed to a single edge per
// distinct (source, target, kind) triple, for queries that operate on the
// deduplicated projection per spec.md §3.
func (g *Graph) Deduplicated() []*Reference {
	seen := make(map[string]bool, len(g.Refs))
	out := make([]*Reference, 0, len(g.Refs))
	for _, r := range g.Refs {
		key := string(r.Kind) + "|" + r.SourceID + "|" + r.TargetID
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, r)
	}
	return out
}
