// Package annotate inserts language-appropriate suppression comments
// before entities classified PROBABLY_SAFE or NEEDS_REVIEW, the `annotate`
// subcommand of spec.md §6. Unlike clean, it never removes source; it
// only prepends a comment line, so it is safe to run speculatively before
// a future clean pass. Grounded on the teacher's
// internal/lang/base.LeadingComment reading side (this is its write-side
// counterpart) for the comment-syntax-per-grammar convention.
package annotate

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/oxhq/indexchan/internal/graph"
	"github.com/oxhq/indexchan/internal/model"
	"github.com/oxhq/indexchan/internal/reachability"
)

// lineCommentPrefix maps a grammar identifier to its single-line comment
// syntax. Both grammars this repository ships (typescript, golang) use
// C-style "//"; a future adapter for a grammar that doesn't would add an
// entry here without touching any other component.
var lineCommentPrefix = map[string]string{
	"typescript": "//",
	"go":         "//",
}

func commentPrefix(grammar string) string {
	if p, ok := lineCommentPrefix[grammar]; ok {
		return p
	}
	return "//"
}

// Insertion is one suppression comment to add before an entity.
type Insertion struct {
	Entity  *graph.Entity
	Tier    graph.SafetyTier
	Comment string
}

// Plan selects every entity classified PROBABLY_SAFE or NEEDS_REVIEW and
// builds the comment line to insert before its declaration.
func Plan(g *graph.Graph, report *reachability.Report, grammarFor func(fileID string) string) []Insertion {
	var out []Insertion
	for id, tier := range report.Tier {
		if tier != graph.ProbablySafe && tier != graph.NeedsReview {
			continue
		}
		e := g.Entities[id]
		if e == nil {
			continue
		}
		prefix := commentPrefix(grammarFor(e.FileID))
		out = append(out, Insertion{
			Entity:  e,
			Tier:    tier,
			Comment: fmt.Sprintf("%s indexchan:%s %s", prefix, tierSlug(tier), e.QualifiedName),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Entity.FilePath != out[j].Entity.FilePath {
			return out[i].Entity.FilePath < out[j].Entity.FilePath
		}
		return out[i].Entity.Span.StartByte > out[j].Entity.Span.StartByte
	})
	return out
}

func tierSlug(t graph.SafetyTier) string {
	switch t {
	case graph.ProbablySafe:
		return "probably-dead"
	case graph.NeedsReview:
		return "needs-review"
	default:
		return "unknown"
	}
}

// Result summarizes one Apply invocation.
type Result struct {
	FilesChanged []string
}

// Apply inserts every insertion's comment line immediately before its
// entity's declaration, processing insertions within a file in
// descending start-byte order so earlier insertions don't shift later
// offsets. dryRun computes the same file list without writing.
func Apply(root string, insertions []Insertion, dryRun bool) (*Result, error) {
	byFile := map[string][]Insertion{}
	for _, ins := range insertions {
		byFile[ins.Entity.FilePath] = append(byFile[ins.Entity.FilePath], ins)
	}

	result := &Result{}
	for path, fileInsertions := range byFile {
		abs := filepath.Join(root, path)
		original, err := os.ReadFile(abs)
		if err != nil {
			return nil, model.Wrap(model.ECIO, fmt.Errorf("read %s: %w", path, err))
		}
		sort.Slice(fileInsertions, func(i, j int) bool {
			return fileInsertions[i].Entity.Span.StartByte > fileInsertions[j].Entity.Span.StartByte
		})
		modified := append([]byte(nil), original...)
		for _, ins := range fileInsertions {
			at := ins.Entity.Span.StartByte
			if at < 0 || at > len(modified) {
				continue
			}
			indent := leadingWhitespace(modified, at)
			line := []byte(indent + ins.Comment + "\n")
			modified = append(modified[:at-len(indent)], append(line, modified[at-len(indent):]...)...)
		}
		result.FilesChanged = append(result.FilesChanged, path)
		if dryRun {
			continue
		}
		if err := os.WriteFile(abs, modified, 0o644); err != nil {
			return nil, model.Wrap(model.ECIO, fmt.Errorf("write %s: %w", path, err))
		}
	}
	sort.Strings(result.FilesChanged)
	return result, nil
}

// leadingWhitespace returns the run of spaces/tabs immediately before
// position pos on its line, so the inserted comment matches the
// declaration's indentation.
func leadingWhitespace(content []byte, pos int) string {
	start := pos
	for start > 0 && (content[start-1] == ' ' || content[start-1] == '\t') {
		start--
	}
	return string(content[start:pos])
}
