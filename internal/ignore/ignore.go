// Package ignore loads and evaluates .indexchanignore, spec.md §6's
// project-local ignore policy file: glob patterns relative to project
// root, `#` comments, leading `!` negation, trailing `/` restricting a
// pattern to directories, `**` crossing path segments.
package ignore

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Rule is one parsed line of the ignore file.
type Rule struct {
	Pattern   string
	Negate    bool
	DirOnly   bool
}

// Policy is a compiled, ordered set of rules. Later rules override
// earlier ones on conflicting matches, the conventional gitignore
// semantics.
type Policy struct {
	rules []Rule
}

// Load reads root/.indexchanignore. A missing file yields an empty,
// always-permissive Policy.
func Load(root string) (*Policy, error) {
	path := filepath.Join(root, ".indexchanignore")
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Policy{}, nil
		}
		return nil, err
	}
	defer f.Close()

	var rules []Rule
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		rule := Rule{Pattern: line}
		if strings.HasPrefix(rule.Pattern, "!") {
			rule.Negate = true
			rule.Pattern = rule.Pattern[1:]
		}
		if strings.HasSuffix(rule.Pattern, "/") {
			rule.DirOnly = true
			rule.Pattern = strings.TrimSuffix(rule.Pattern, "/")
		}
		rule.Pattern = strings.TrimPrefix(rule.Pattern, "/")
		rules = append(rules, rule)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return &Policy{rules: rules}, nil
}

// Ignored reports whether relPath (project-root-relative, forward-slash
// separated) is excluded by p. isDir tells whether relPath names a
// directory, needed for trailing-`/` rules.
func (p *Policy) Ignored(relPath string, isDir bool) bool {
	if p == nil {
		return false
	}
	relPath = filepath.ToSlash(relPath)
	ignored := false
	for _, r := range p.rules {
		if r.DirOnly && !isDir {
			// A directory-only rule can still match an ancestor directory of
			// a file; doublestar match is evaluated against the path itself
			// so we also check every ancestor segment below.
			if !matchesAnyAncestor(r.Pattern, relPath) {
				continue
			}
		} else if !matches(r.Pattern, relPath) {
			continue
		}
		ignored = !r.Negate
	}
	return ignored
}

func matches(pattern, relPath string) bool {
	if ok, _ := doublestar.Match(pattern, relPath); ok {
		return true
	}
	// Bare-segment patterns like "node_modules" should match at any depth,
	// mirroring gitignore's implicit "**/" prefix for patterns with no
	// embedded slash.
	if !strings.Contains(pattern, "/") {
		if ok, _ := doublestar.Match("**/"+pattern, relPath); ok {
			return true
		}
	}
	return false
}

func matchesAnyAncestor(pattern, relPath string) bool {
	parts := strings.Split(relPath, "/")
	for i := range parts {
		prefix := strings.Join(parts[:i+1], "/")
		if matches(pattern, prefix) {
			return true
		}
	}
	return false
}
