package resolver_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxhq/indexchan/internal/config"
	"github.com/oxhq/indexchan/internal/graph"
	"github.com/oxhq/indexchan/internal/lang/typescript"
	"github.com/oxhq/indexchan/internal/parser"
	"github.com/oxhq/indexchan/internal/resolver"
)

func parseFile(t *testing.T, cfg *config.Config, path string, src string) parser.EntityBatch {
	t.Helper()
	p := parser.New(typescript.New(), cfg)
	file := graph.File{ID: uuid.NewString(), Path: path, Grammar: "typescript"}
	batch, err := p.Parse(file, []byte(src))
	require.NoError(t, err)
	return batch
}

func TestResolve_CrossFileImport(t *testing.T) {
	cfg := config.Default()
	a := parseFile(t, cfg, "a.ts", "export function used() { helper(); }\nfunction helper() {}\nfunction dead() {}\n")
	b := parseFile(t, cfg, "b.ts", "import {used} from './a';\nused();\n")

	r := resolver.New(cfg, []parser.EntityBatch{a, b})
	result := r.Resolve()

	byName := func(batch parser.EntityBatch, name string) graph.Entity {
		for _, e := range batch.Entities {
			if e.SimpleName == name {
				return e
			}
		}
		t.Fatalf("entity %q not found", name)
		return graph.Entity{}
	}

	used := byName(a, "used")
	helper := byName(a, "helper")

	var usedCalledFromB, helperCalledFromUsed bool
	for _, ref := range result.References {
		if ref.TargetID == used.ID {
			usedCalledFromB = true
		}
		if ref.SourceID == used.ID && ref.TargetID == helper.ID {
			helperCalledFromUsed = true
		}
	}
	assert.True(t, usedCalledFromB, "expected b.ts's call to resolve to a.ts's used()")
	assert.True(t, helperCalledFromUsed, "expected used() to resolve its call to helper()")
}

func TestResolve_QualifiedCallPrefersMatchingReceiver(t *testing.T) {
	cfg := config.Default()
	batch := parseFile(t, cfg, "a.ts", "class C { m(){} }\nclass D { m(){} }\nnew C().m();\n")

	r := resolver.New(cfg, []parser.EntityBatch{batch})
	result := r.Resolve()

	var cMethod, dMethod graph.Entity
	for _, e := range batch.Entities {
		if e.QualifiedName == "C::m" {
			cMethod = e
		}
		if e.QualifiedName == "D::m" {
			dMethod = e
		}
	}
	require.NotEmpty(t, cMethod.ID)
	require.NotEmpty(t, dMethod.ID)

	var resolvedToC, resolvedToD bool
	for _, ref := range result.References {
		if ref.Kind == graph.RefCalls && ref.TargetID == cMethod.ID {
			resolvedToC = true
		}
		if ref.Kind == graph.RefCalls && ref.TargetID == dMethod.ID {
			resolvedToD = true
		}
	}
	assert.True(t, resolvedToC, "expected new C().m() to resolve to C::m")
	assert.False(t, resolvedToD, "did not expect the call to resolve to D::m")
}

func TestResolve_DeterministicAcrossPresentationOrder(t *testing.T) {
	cfg := config.Default()
	a := parseFile(t, cfg, "a.ts", "export function used() { helper(); }\nfunction helper() {}\n")
	b := parseFile(t, cfg, "b.ts", "import {used} from './a';\nused();\n")

	forward := resolver.New(cfg, []parser.EntityBatch{a, b}).Resolve()
	backward := resolver.New(cfg, []parser.EntityBatch{b, a}).Resolve()

	assert.Equal(t, len(forward.References), len(backward.References))
	assert.Equal(t, len(forward.Unresolved), len(backward.Unresolved))
}

func TestResolve_UnresolvedDeadFunctionHasNoIncomingEdge(t *testing.T) {
	cfg := config.Default()
	a := parseFile(t, cfg, "a.ts", "export function used() { helper(); }\nfunction helper() {}\nfunction dead() {}\n")

	r := resolver.New(cfg, []parser.EntityBatch{a})
	result := r.Resolve()

	var deadID string
	for _, e := range a.Entities {
		if e.SimpleName == "dead" {
			deadID = e.ID
		}
	}
	require.NotEmpty(t, deadID)
	for _, ref := range result.References {
		assert.NotEqual(t, deadID, ref.TargetID, "dead() should have no incoming reference")
	}
}
