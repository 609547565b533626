// Package query implements the graph query engine: definition,
// references, BFS callers/callees, routes, schema, and impact analysis,
// all built on top of the record store.
package query

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/kodemap/exgraph/internal/record"
	"github.com/kodemap/exgraph/internal/store"
)

// Engine answers graph queries against one project's store.
type Engine struct {
	s *store.Store
}

// New returns a query Engine over s. Callers are responsible for
// checking s.IndexExists() (or calling a refresh) before querying;
// every method here returns xerr.ErrNoIndex via the underlying stream
// if the index is missing.
func New(s *store.Store) *Engine { return &Engine{s: s} }

func decodeInto[T any](data json.RawMessage) (T, bool) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		var zero T
		return zero, false
	}
	return v, true
}

// Definition returns at most one FunctionDef for mfa.
func (e *Engine) Definition(mfa string) ([]record.FunctionDef, error) {
	module, name, arity, ok := record.ParseMFA(mfa)
	if !ok {
		return nil, nil
	}

	var found *record.FunctionDef
	err := e.s.StreamRecords(func(l store.Line) bool {
		if l.Kind != record.KindFunction {
			return true
		}
		fn, ok := decodeInto[record.FunctionDef](l.Data)
		if !ok {
			return true
		}
		if fn.Module == module && fn.Name == name && fn.Arity == arity {
			found = &fn
			return false
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, nil
	}
	return []record.FunctionDef{*found}, nil
}

// References returns every CallRef whose callee equals mfa, sorted by
// (file, line).
func (e *Engine) References(mfa string) ([]record.CallRef, error) {
	var out []record.CallRef
	err := e.s.StreamRecords(func(l store.Line) bool {
		if l.Kind != record.KindCall {
			return true
		}
		c, ok := decodeInto[record.CallRef](l.Data)
		if !ok || c.Callee != mfa {
			return true
		}
		out = append(out, c)
		return true
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].File != out[j].File {
			return out[i].File < out[j].File
		}
		return out[i].Line < out[j].Line
	})
	return out, nil
}

// Hop is one discovered node in a BFS traversal.
type Hop struct {
	MFA   string `json:"mfa"`
	Depth int    `json:"depth"`
}

func (e *Engine) loadCalls() ([]record.CallRef, error) {
	var out []record.CallRef
	err := e.s.StreamRecords(func(l store.Line) bool {
		if l.Kind != record.KindCall {
			return true
		}
		if c, ok := decodeInto[record.CallRef](l.Data); ok && c.Callee != "" {
			out = append(out, c)
		}
		return true
	})
	return out, err
}

// bfs walks adjacency from start up to depth levels, returning newly
// discovered nodes in BFS insertion order with their hop distance.
func bfs(start string, depth int, adjacency map[string][]string) []Hop {
	if depth <= 0 {
		return nil
	}
	visited := map[string]bool{start: true}
	type frontier struct {
		mfa string
		d   int
	}
	queue := []frontier{{start, 0}}
	var out []Hop

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur.d >= depth {
			continue
		}
		for _, next := range adjacency[cur.mfa] {
			if visited[next] {
				continue
			}
			visited[next] = true
			out = append(out, Hop{MFA: next, Depth: cur.d + 1})
			queue = append(queue, frontier{next, cur.d + 1})
		}
	}
	return out
}

func dedupEdges(edges [][2]string) [][2]string {
	seen := make(map[[2]string]bool)
	var out [][2]string
	for _, e := range edges {
		if seen[e] {
			continue
		}
		seen[e] = true
		out = append(out, e)
	}
	return out
}

// Callers returns callers of mfa up to depth BFS levels.
func (e *Engine) Callers(mfa string, depth int) ([]Hop, error) {
	calls, err := e.loadCalls()
	if err != nil {
		return nil, err
	}
	var edges [][2]string
	for _, c := range calls {
		edges = append(edges, [2]string{c.Callee, c.Caller}) // callee -> callers
	}
	return e.bfsFromEdges(mfa, depth, edges)
}

// Callees returns callees of mfa up to depth BFS levels.
func (e *Engine) Callees(mfa string, depth int) ([]Hop, error) {
	calls, err := e.loadCalls()
	if err != nil {
		return nil, err
	}
	var edges [][2]string
	for _, c := range calls {
		edges = append(edges, [2]string{c.Caller, c.Callee}) // caller -> callees
	}
	return e.bfsFromEdges(mfa, depth, edges)
}

func (e *Engine) bfsFromEdges(start string, depth int, rawEdges [][2]string) ([]Hop, error) {
	edges := dedupEdges(rawEdges)
	adjacency := make(map[string][]string)
	for _, e := range edges {
		adjacency[e[0]] = append(adjacency[e[0]], e[1])
	}
	for k := range adjacency {
		sort.Strings(adjacency[k])
	}
	return bfs(start, depth, adjacency), nil
}

// Routes returns every Route, sorted by (verb, path).
func (e *Engine) Routes() ([]record.Route, error) {
	var out []record.Route
	err := e.s.StreamRecords(func(l store.Line) bool {
		if l.Kind != record.KindRoute {
			return true
		}
		if r, ok := decodeInto[record.Route](l.Data); ok {
			out = append(out, r)
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Verb != out[j].Verb {
			return out[i].Verb < out[j].Verb
		}
		return out[i].Path < out[j].Path
	})
	return out, nil
}

// Schema returns the first Schema record matching module, if any.
func (e *Engine) Schema(module string) ([]record.Schema, error) {
	var found *record.Schema
	err := e.s.StreamRecords(func(l store.Line) bool {
		if l.Kind != record.KindSchema {
			return true
		}
		sch, ok := decodeInto[record.Schema](l.Data)
		if !ok || sch.Module != module {
			return true
		}
		found = &sch
		return false
	})
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, nil
	}
	return []record.Schema{*found}, nil
}

// FunctionSpec returns every TypeSpec matching mfa.
func (e *Engine) FunctionSpec(mfa string) ([]record.TypeSpec, error) {
	module, name, arity, ok := record.ParseMFA(mfa)
	if !ok {
		return nil, nil
	}
	var out []record.TypeSpec
	err := e.s.StreamRecords(func(l store.Line) bool {
		if l.Kind != record.KindTypeSpec {
			return true
		}
		ts, ok := decodeInto[record.TypeSpec](l.Data)
		if ok && ts.Module == module && ts.Name == name && ts.Arity == arity {
			out = append(out, ts)
		}
		return true
	})
	return out, err
}

// ModuleTypes returns every TypeDef declared in module.
func (e *Engine) ModuleTypes(module string) ([]record.TypeDef, error) {
	var out []record.TypeDef
	err := e.s.StreamRecords(func(l store.Line) bool {
		if l.Kind != record.KindTypeDef {
			return true
		}
		td, ok := decodeInto[record.TypeDef](l.Data)
		if ok && td.Module == module {
			out = append(out, td)
		}
		return true
	})
	return out, err
}

// TypeErrors returns every Diagnostic record.
func (e *Engine) TypeErrors() ([]record.Diagnostic, error) {
	var out []record.Diagnostic
	err := e.s.StreamRecords(func(l store.Line) bool {
		if l.Kind != record.KindDiag {
			return true
		}
		if d, ok := decodeInto[record.Diagnostic](l.Data); ok {
			out = append(out, d)
		}
		return true
	})
	return out, err
}

// Impact is the result of an impact-analysis query.
type Impact struct {
	ChangedModules  []string `json:"changed_modules"`
	AffectedModules []string `json:"affected_modules"`
	TestFiles       []string `json:"test_files"`
}

// Impact computes the transitive dependent closure of the modules
// defined in files, plus the test files that reference any affected
// module through an alias/import/use directive.
func (e *Engine) Impact(files []string, testRootPrefix string) (Impact, error) {
	fileSet := make(map[string]bool, len(files))
	for _, f := range files {
		fileSet[f] = true
	}

	var changedModules []string
	reverseDeps := make(map[string][]string) // to -> from
	var directives []record.DirectiveRef

	err := e.s.StreamRecords(func(l store.Line) bool {
		switch l.Kind {
		case record.KindModule:
			if m, ok := decodeInto[record.ModuleDef](l.Data); ok && fileSet[m.File] {
				changedModules = append(changedModules, m.Module)
			}
		case record.KindDepEdge:
			if d, ok := decodeInto[record.DepEdge](l.Data); ok {
				reverseDeps[d.To] = append(reverseDeps[d.To], d.From)
			}
		case record.KindDirective:
			if d, ok := decodeInto[record.DirectiveRef](l.Data); ok {
				switch d.Kind {
				case record.DirectiveAlias, record.DirectiveImport, record.DirectiveUse:
					directives = append(directives, d)
				}
			}
		}
		return true
	})
	if err != nil {
		return Impact{}, err
	}

	sort.Strings(changedModules)

	affectedSet := make(map[string]bool)
	for _, m := range changedModules {
		affectedSet[m] = true
	}
	queue := append([]string{}, changedModules...)
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, dependent := range reverseDeps[cur] {
			if affectedSet[dependent] {
				continue
			}
			affectedSet[dependent] = true
			queue = append(queue, dependent)
		}
	}
	affectedModules := make([]string, 0, len(affectedSet))
	for m := range affectedSet {
		affectedModules = append(affectedModules, m)
	}
	sort.Strings(affectedModules)

	testFileSet := make(map[string]bool)
	for _, d := range directives {
		if !affectedSet[d.Target] {
			continue
		}
		if testRootPrefix != "" && !strings.HasPrefix(d.File, testRootPrefix) {
			continue
		}
		testFileSet[d.File] = true
	}
	testFiles := make([]string, 0, len(testFileSet))
	for f := range testFileSet {
		testFiles = append(testFiles, f)
	}
	sort.Strings(testFiles)

	return Impact{
		ChangedModules:  changedModules,
		AffectedModules: affectedModules,
		TestFiles:       testFiles,
	}, nil
}
