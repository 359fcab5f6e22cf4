// Package reachability computes liveness from an entry-point set and
// grades every non-live entity's deletion risk, per spec.md §4.4. The
// traversal is a plain forward BFS over graph.Reference edges with a
// visited set, the shape spec.md §9 calls out for cyclic call graphs.
package reachability

import (
	"path"
	"strings"

	"github.com/oxhq/indexchan/internal/config"
	"github.com/oxhq/indexchan/internal/graph"
)

// Report is the classification of every entity in a graph.
type Report struct {
	Live    map[string]bool
	Tier    map[string]graph.SafetyTier
	entries []string
}

// EntryPoints computes the entry-point set of g: exported entities,
// entities whose simple name matches a configured convention (e.g.
// "main"), and entities defined in a file matching a test path pattern.
func EntryPoints(g *graph.Graph, cfg *config.Config) []string {
	var out []string
	for id, e := range g.Entities {
		if e.Exported {
			out = append(out, id)
			continue
		}
		if matchesAny(e.SimpleName, cfg.EntryPointConventions) {
			out = append(out, id)
			continue
		}
		if matchesGlobAny(e.FilePath, cfg.TestPathPatterns) {
			out = append(out, id)
			continue
		}
	}
	return out
}

func matchesAny(name string, patterns []string) bool {
	for _, p := range patterns {
		if name == p {
			return true
		}
	}
	return false
}

func matchesGlobAny(filePath string, patterns []string) bool {
	base := path.Base(filePath)
	for _, p := range patterns {
		if ok, _ := path.Match(p, base); ok {
			return true
		}
		if strings.Contains(p, "**") && strings.Contains(filePath, strings.Trim(p, "*/")) {
			return true
		}
	}
	return false
}

// Analyze runs forward BFS from entryPoints over g and classifies every
// non-live entity into a SafetyTier.
func Analyze(g *graph.Graph, cfg *config.Config, entryPoints []string, unresolved []graph.Unresolved) *Report {
	report := &Report{
		Live:    map[string]bool{},
		Tier:    map[string]graph.SafetyTier{},
		entries: entryPoints,
	}

	queue := make([]string, 0, len(entryPoints))
	for _, id := range entryPoints {
		if !report.Live[id] {
			report.Live[id] = true
			queue = append(queue, id)
		}
	}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, ref := range g.Out(id, graph.RefCalls, graph.RefReferences, graph.RefInstantiates, graph.RefExtends, graph.RefImplements, graph.RefContains) {
			if !report.Live[ref.TargetID] {
				report.Live[ref.TargetID] = true
				queue = append(queue, ref.TargetID)
			}
		}
	}

	unresolvedNames := map[string]bool{}
	for _, u := range unresolved {
		if cfg.StringLiteralHintsCountTowardSafety || u.Hint != graph.HintUnqualifiedCall {
			unresolvedNames[u.AttemptedName] = true
		}
	}

	for id, e := range g.Entities {
		if report.Live[id] {
			continue
		}
		report.Tier[id] = classify(e, cfg, unresolvedNames)
	}
	return report
}

// classify implements spec.md §3's Dead-Code Classification, enforcing
// the "every exported entity is at least NEEDS_REVIEW" invariant from
// spec.md §8 (safety conservatism).
func classify(e *graph.Entity, cfg *config.Config, unresolvedNames map[string]bool) graph.SafetyTier {
	if e.Exported {
		return graph.NeedsReview
	}
	if matchesGlobAny(e.FilePath, cfg.TestPathPatterns) {
		return graph.NeedsReview
	}
	if matchesGlobAny(e.FilePath, cfg.PreservePatterns) {
		return graph.NeedsReview
	}
	if unresolvedNames[e.SimpleName] {
		return graph.ProbablySafe
	}
	return graph.DefinitelySafe
}

// Oracle is the optional external collaborator consulted for refinement,
// per spec.md §4.4 and §9's "oracle behind a capability" design note.
type Oracle interface {
	Classify(e *graph.Entity, context OracleContext) (graph.OracleCategory, float64, error)
}

// OracleContext is the surrounding evidence offered to the oracle.
type OracleContext struct {
	Signature      string
	FilePath       string
	Doc            string
	RecentComments []string
}

// Refine consults oracle for each non-live entity in report and applies
// spec.md §4.4's fixed combination policy: KEEP_* at confidence ≥ 0.75
// promotes to NEEDS_REVIEW; SAFE_TO_DELETE at confidence ≥ 0.95 permits
// demoting a syntactic NEEDS_REVIEW to PROBABLY_SAFE, never to
// DEFINITELY_SAFE.
func Refine(report *Report, g *graph.Graph, oracle Oracle) error {
	if oracle == nil {
		return nil
	}
	for id, tier := range report.Tier {
		e := g.Entities[id]
		category, confidence, err := oracle.Classify(e, OracleContext{
			Signature: e.Signature,
			FilePath:  e.FilePath,
			Doc:       e.Doc,
		})
		if err != nil {
			return err
		}
		switch {
		case isKeepCategory(category) && confidence >= 0.75:
			report.Tier[id] = graph.NeedsReview
		case category == graph.OracleSafeToDelete && confidence >= 0.95 && tier == graph.NeedsReview:
			report.Tier[id] = graph.ProbablySafe
		}
	}
	return nil
}

func isKeepCategory(c graph.OracleCategory) bool {
	return c == graph.OracleKeepForFuture || c == graph.OracleExperimental || c == graph.OracleWorkInProgress
}
