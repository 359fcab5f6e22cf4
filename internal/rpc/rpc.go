// Package rpc implements the RPC surface of spec.md §6: a JSON-RPC-like
// request/response protocol spoken over stdio, exposing scan, search,
// stats, gather_context, get_dependencies, get_dependents,
// validate_changes, preview_changes, apply_changes, and a
// graph-augmented search. Message envelope field names ("method",
// "params", "id", "result", "error") follow spec.md §6 exactly; the
// dispatch-table shape (method name -> handler func) is grounded on the
// teacher's mcp/router.go / mcp/tools/registry.go method-to-handler
// lookup, reimplemented against the smaller tool set this spec names
// rather than morfx's file-transformation tools.
package rpc

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/oxhq/indexchan/internal/clean"
	"github.com/oxhq/indexchan/internal/config"
	"github.com/oxhq/indexchan/internal/contextgather"
	"github.com/oxhq/indexchan/internal/graph"
	"github.com/oxhq/indexchan/internal/ignore"
	"github.com/oxhq/indexchan/internal/lang"
	"github.com/oxhq/indexchan/internal/model"
	"github.com/oxhq/indexchan/internal/reachability"
	"github.com/oxhq/indexchan/internal/scanner"
	"github.com/oxhq/indexchan/internal/store"
)

// Request is one incoming call, spec.md §6's exact envelope shape.
type Request struct {
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
	ID     any             `json:"id"`
}

// Response is the reply envelope: exactly one of Result or Error is set.
type Response struct {
	Result any          `json:"result,omitempty"`
	Error  *ErrorObject `json:"error,omitempty"`
	ID     any          `json:"id"`
}

// ErrorObject carries the partitioned error code spec.md §7 defines.
type ErrorObject struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Server binds one project's store and config to the RPC method table.
type Server struct {
	root     string
	store    *store.Store
	cfg      *config.Config
	registry *lang.Registry
	policy   *ignore.Policy
	logger   *zap.Logger
}

// NewServer constructs a Server bound to an already-open store.
func NewServer(root string, s *store.Store, cfg *config.Config, registry *lang.Registry, policy *ignore.Policy, logger *zap.Logger) *Server {
	return &Server{root: root, store: s, cfg: cfg, registry: registry, policy: policy, logger: logger}
}

// Serve reads newline-delimited JSON requests from r and writes responses
// to w until r is exhausted or produces an unrecoverable decode error.
func (s *Server) Serve(r io.Reader, w io.Writer) error {
	dec := json.NewDecoder(bufio.NewReader(r))
	bw := bufio.NewWriter(w)
	defer bw.Flush()

	for {
		var req Request
		if err := dec.Decode(&req); err != nil {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("rpc: decode request: %w", err)
		}
		resp := s.dispatch(req)
		enc := json.NewEncoder(bw)
		if err := enc.Encode(resp); err != nil {
			return fmt.Errorf("rpc: encode response: %w", err)
		}
		if err := bw.Flush(); err != nil {
			return err
		}
	}
}

func (s *Server) dispatch(req Request) Response {
	handler, ok := methods[req.Method]
	if !ok {
		return errorResponse(req.ID, model.ECInput, fmt.Errorf("unknown method %q", req.Method))
	}
	result, err := handler(s, req.Params)
	if err != nil {
		code := model.ECInvariant
		var coded *model.CodedError
		if e, ok := err.(*model.CodedError); ok {
			coded = e
			code = coded.Code
		}
		return errorResponse(req.ID, code, err)
	}
	return Response{Result: result, ID: req.ID}
}

func errorResponse(id any, code model.ErrorCode, err error) Response {
	return Response{ID: id, Error: &ErrorObject{Code: code.RPCCode(), Message: err.Error()}}
}

type handlerFunc func(*Server, json.RawMessage) (any, error)

var methods = map[string]handlerFunc{
	"scan":             (*Server).handleScan,
	"search":           (*Server).handleSearch,
	"stats":            (*Server).handleStats,
	"gather_context":   (*Server).handleGatherContext,
	"get_dependencies": (*Server).handleGetDependencies,
	"get_dependents":   (*Server).handleGetDependents,
	"validate_changes": (*Server).handleValidateChanges,
	"preview_changes":  (*Server).handlePreviewChanges,
	"apply_changes":    (*Server).handleApplyChanges,
	"graph_search":     (*Server).handleGraphSearch,
}

func decodeParams(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return model.Wrap(model.ECInput, err)
	}
	return nil
}

func (s *Server) handleScan(raw json.RawMessage) (any, error) {
	report, err := s.store.Refresh(s.registry, s.policy, s.cfg)
	if err != nil {
		return nil, err
	}
	return report, nil
}

type searchParams struct {
	Query string `json:"query"`
}

type searchHit struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Kind       string `json:"kind"`
	File       string `json:"file"`
	StartLine  int    `json:"start_line"`
	Exported   bool   `json:"exported"`
}

func (s *Server) handleSearch(raw json.RawMessage) (any, error) {
	var p searchParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	g, _, err := s.store.LoadGraph()
	if err != nil {
		return nil, err
	}
	return matchEntities(g, p.Query), nil
}

func matchEntities(g *graph.Graph, query string) []searchHit {
	var hits []searchHit
	q := strings.ToLower(query)
	for _, e := range g.Entities {
		if q != "" && !strings.Contains(strings.ToLower(e.QualifiedName), q) {
			continue
		}
		hits = append(hits, searchHit{
			ID: e.ID, Name: e.QualifiedName, Kind: string(e.Kind), File: e.FilePath,
			StartLine: e.Span.StartLine, Exported: e.Exported,
		})
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].Name < hits[j].Name })
	return hits
}

type statsResult struct {
	EntitiesByKind    map[string]int    `json:"entities_by_kind"`
	ReferencesByKind  map[string]int    `json:"references_by_kind"`
	DeadCodeByTier    map[string]int    `json:"dead_code_by_tier"`
	UnresolvedCount   int               `json:"unresolved_count"`
}

func (s *Server) handleStats(raw json.RawMessage) (any, error) {
	g, unresolved, err := s.store.LoadGraph()
	if err != nil {
		return nil, err
	}
	entryPoints := reachability.EntryPoints(g, s.cfg)
	report := reachability.Analyze(g, s.cfg, entryPoints, unresolved)

	result := statsResult{
		EntitiesByKind:   map[string]int{},
		ReferencesByKind: map[string]int{},
		DeadCodeByTier:   map[string]int{},
		UnresolvedCount:  len(unresolved),
	}
	for _, e := range g.Entities {
		result.EntitiesByKind[string(e.Kind)]++
	}
	for _, r := range g.Refs {
		result.ReferencesByKind[string(r.Kind)]++
	}
	for _, tier := range report.Tier {
		result.DeadCodeByTier[string(tier)]++
	}
	return result, nil
}

type gatherParams struct {
	Anchor        string `json:"anchor"`
	ForwardDepth  int    `json:"forward_depth"`
	BackwardDepth int    `json:"backward_depth"`
	TokenBudget   int    `json:"token_budget"`
}

func (s *Server) handleGatherContext(raw json.RawMessage) (any, error) {
	var p gatherParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	g, _, err := s.store.LoadGraph()
	if err != nil {
		return nil, err
	}
	contents, err := s.store.FileContents()
	if err != nil {
		return nil, err
	}
	bundle, err := contextgather.Gather(g, s.cfg, contents, p.Anchor, contextgather.Options{
		ForwardDepth: p.ForwardDepth, BackwardDepth: p.BackwardDepth, TokenBudget: p.TokenBudget,
	})
	if err != nil {
		return nil, model.Wrap(model.ECInput, err)
	}
	return bundle, nil
}

type anchorParams struct {
	Anchor string `json:"anchor"`
}

type dependencyHit struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Kind string `json:"kind"`
	File string `json:"file"`
}

func (s *Server) handleGetDependencies(raw json.RawMessage) (any, error) {
	return s.directNeighbors(raw, true)
}

func (s *Server) handleGetDependents(raw json.RawMessage) (any, error) {
	return s.directNeighbors(raw, false)
}

// directNeighbors returns the direct (depth-1) callees (forward=true) or
// callers (forward=false) of the named anchor, the non-traversal
// counterpart to gather_context for callers that just want an adjacency
// list.
func (s *Server) directNeighbors(raw json.RawMessage, forward bool) (any, error) {
	var p anchorParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	g, _, err := s.store.LoadGraph()
	if err != nil {
		return nil, err
	}
	anchors := contextgather.ResolveAnchors(g, p.Anchor)
	if len(anchors) == 0 {
		return nil, model.Wrap(model.ECInput, fmt.Errorf("no entity matches anchor %q", p.Anchor))
	}
	seen := map[string]bool{}
	var out []dependencyHit
	for _, a := range anchors {
		var refs []*graph.Reference
		if forward {
			refs = g.Out(a.ID, graph.RefCalls, graph.RefReferences, graph.RefInstantiates)
		} else {
			refs = g.In(a.ID, graph.RefCalls, graph.RefReferences)
		}
		for _, r := range refs {
			id := r.TargetID
			if !forward {
				id = r.SourceID
			}
			if seen[id] {
				continue
			}
			seen[id] = true
			if e := g.Entities[id]; e != nil {
				out = append(out, dependencyHit{ID: e.ID, Name: e.QualifiedName, Kind: string(e.Kind), File: e.FilePath})
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

type validateChangesParams struct {
	Files []struct {
		Path            string `json:"path"`
		ExpectedSHA256  string `json:"expected_sha256"`
	} `json:"files"`
}

type validateChangesResult struct {
	Valid bool     `json:"valid"`
	Stale []string `json:"stale"`
}

func (s *Server) handleValidateChanges(raw json.RawMessage) (any, error) {
	var p validateChangesParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	contents, err := s.store.FileContents()
	if err != nil {
		return nil, err
	}
	byPath := map[string][]byte{}
	g, _, err := s.store.LoadGraph()
	if err != nil {
		return nil, err
	}
	for _, e := range g.Entities {
		if c, ok := contents[e.FileID]; ok {
			byPath[e.FilePath] = c
		}
	}
	result := validateChangesResult{Valid: true}
	for _, f := range p.Files {
		content, ok := byPath[f.Path]
		if !ok {
			result.Valid = false
			result.Stale = append(result.Stale, f.Path)
			continue
		}
		if currentHash(content) != f.ExpectedSHA256 {
			result.Valid = false
			result.Stale = append(result.Stale, f.Path)
		}
	}
	if !result.Valid {
		return result, model.Wrap(model.ECPolicy, model.ErrStaleChangeSet)
	}
	return result, nil
}

type tierSetParams struct {
	Tiers  []string `json:"tiers"`
	DryRun bool     `json:"dry_run"`
}

func (s *Server) deletionsForTiers(tiers []string) ([]clean.Deletion, error) {
	g, unresolved, err := s.store.LoadGraph()
	if err != nil {
		return nil, err
	}
	entryPoints := reachability.EntryPoints(g, s.cfg)
	report := reachability.Analyze(g, s.cfg, entryPoints, unresolved)
	want := map[graph.SafetyTier]bool{}
	for _, t := range tiers {
		want[graph.SafetyTier(t)] = true
	}
	if len(want) == 0 {
		want[graph.DefinitelySafe] = true
	}
	return clean.Plan(g, report, want), nil
}

func (s *Server) handlePreviewChanges(raw json.RawMessage) (any, error) {
	var p tierSetParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	deletions, err := s.deletionsForTiers(p.Tiers)
	if err != nil {
		return nil, err
	}
	diffs, err := clean.Preview(s.root, deletions)
	if err != nil {
		return nil, err
	}
	return map[string]any{"diffs": diffs}, nil
}

func (s *Server) handleApplyChanges(raw json.RawMessage) (any, error) {
	var p tierSetParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	deletions, err := s.deletionsForTiers(p.Tiers)
	if err != nil {
		return nil, err
	}
	result, err := clean.Apply(s.root, deletions, p.DryRun)
	if err != nil {
		return nil, err
	}
	return result, nil
}

type graphSearchParams struct {
	Query string `json:"query"`
}

type graphSearchHit struct {
	searchHit
	Callers []dependencyHit `json:"callers"`
	Callees []dependencyHit `json:"callees"`
}

// handleGraphSearch is the "graph-augmented search" tool spec.md §6 names
// without detail: it runs the same name match as search, but attaches
// each hit's immediate callers/callees so a caller gets adjacency context
// in one round trip instead of a search followed by N get_dependencies
// calls.
func (s *Server) handleGraphSearch(raw json.RawMessage) (any, error) {
	var p graphSearchParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	g, _, err := s.store.LoadGraph()
	if err != nil {
		return nil, err
	}
	hits := matchEntities(g, p.Query)
	out := make([]graphSearchHit, 0, len(hits))
	for _, h := range hits {
		out = append(out, graphSearchHit{
			searchHit: h,
			Callers:   neighbors(g, h.ID, false),
			Callees:   neighbors(g, h.ID, true),
		})
	}
	return out, nil
}

func neighbors(g *graph.Graph, id string, forward bool) []dependencyHit {
	var refs []*graph.Reference
	if forward {
		refs = g.Out(id, graph.RefCalls, graph.RefReferences, graph.RefInstantiates)
	} else {
		refs = g.In(id, graph.RefCalls, graph.RefReferences)
	}
	seen := map[string]bool{}
	var out []dependencyHit
	for _, r := range refs {
		nid := r.TargetID
		if !forward {
			nid = r.SourceID
		}
		if seen[nid] {
			continue
		}
		seen[nid] = true
		if e := g.Entities[nid]; e != nil {
			out = append(out, dependencyHit{ID: e.ID, Name: e.QualifiedName, Kind: string(e.Kind), File: e.FilePath})
		}
	}
	return out
}

func currentHash(content []byte) string {
	return scanner.HashContent(content)
}
