// Package pipeline orchestrates the full indexing run: discovery, the
// seven extraction phases, the merge/confidence layer, and the
// manifest+index persistence step, plus the incremental-refresh path
// used by ensure_index_current.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/kodemap/exgraph/internal/change"
	"github.com/kodemap/exgraph/internal/discover"
	"github.com/kodemap/exgraph/internal/extract/diagnostic"
	"github.com/kodemap/exgraph/internal/extract/routes"
	"github.com/kodemap/exgraph/internal/extract/schemadsl"
	"github.com/kodemap/exgraph/internal/extract/syntactic"
	"github.com/kodemap/exgraph/internal/extract/tracer"
	"github.com/kodemap/exgraph/internal/extract/typespec"
	"github.com/kodemap/exgraph/internal/extract/xref"
	"github.com/kodemap/exgraph/internal/merge"
	"github.com/kodemap/exgraph/internal/record"
	"github.com/kodemap/exgraph/internal/store"
)

// Version is stamped into every manifest this pipeline writes.
const Version = "0.1.0"

// Pipeline orchestrates one project's indexing run.
type Pipeline struct {
	ctx      context.Context
	Store    *store.Store
	RepoPath string
}

// New creates a Pipeline rooted at repoPath, backed by s.
func New(ctx context.Context, s *store.Store, repoPath string) *Pipeline {
	return &Pipeline{ctx: ctx, Store: s, RepoPath: repoPath}
}

// Run indexes the project: a full rebuild if no index exists or the
// schema version has drifted, otherwise an incremental refresh scoped
// to changed files and their dependents.
func (p *Pipeline) Run() error {
	slog.Info("pipeline.start", "path", p.RepoPath)

	files, err := discover.Discover(p.ctx, p.RepoPath, nil)
	if err != nil {
		return fmt.Errorf("pipeline: discover: %w", err)
	}
	slog.Info("pipeline.discovered", "files", len(files))

	manifest, err := p.Store.ReadManifest()
	needsFull := err != nil || !manifest.SchemaCompatible()
	if needsFull {
		return p.runFull(files)
	}

	return p.runIncremental(files, manifest)
}

func (p *Pipeline) runFull(files []discover.FileInfo) error {
	t := time.Now()
	result, err := p.extractAll(files)
	if err != nil {
		return fmt.Errorf("pipeline: extract: %w", err)
	}
	slog.Info("pipeline.extracted", "elapsed", time.Since(t))

	lines, err := toLines(result)
	if err != nil {
		return fmt.Errorf("pipeline: encode records: %w", err)
	}
	if err := p.Store.WriteRecords(lines); err != nil {
		return fmt.Errorf("pipeline: write records: %w", err)
	}

	manifest, err := p.buildManifest(files, result, nil, nil, nil)
	if err != nil {
		return fmt.Errorf("pipeline: build manifest: %w", err)
	}
	if err := p.Store.WriteManifest(manifest); err != nil {
		return fmt.Errorf("pipeline: write manifest: %w", err)
	}

	slog.Info("pipeline.done", "records", len(lines), "files", len(files))
	return nil
}

func (p *Pipeline) runIncremental(files []discover.FileInfo, manifest *store.Manifest) error {
	var relPaths []string
	for _, f := range files {
		relPaths = append(relPaths, f.RelPath)
	}

	set, err := change.Detect(relPaths, manifest, p.RepoPath)
	if err != nil {
		return fmt.Errorf("pipeline: detect changes: %w", err)
	}

	toReindex := set.FilesToReindex()
	if len(toReindex) == 0 && len(set.Deleted) == 0 {
		slog.Info("pipeline.noop", "reason", "no_changes")
		return nil
	}
	slog.Info("pipeline.incremental", "added", len(set.Added), "modified", len(set.Modified),
		"deleted", len(set.Deleted), "affected", len(set.Affected))

	byRel := make(map[string]discover.FileInfo, len(files))
	for _, f := range files {
		byRel[f.RelPath] = f
	}
	var reindexFiles []discover.FileInfo
	for _, rel := range toReindex {
		if f, ok := byRel[rel]; ok {
			reindexFiles = append(reindexFiles, f)
		}
	}

	result, err := p.extractAll(reindexFiles)
	if err != nil {
		return fmt.Errorf("pipeline: extract: %w", err)
	}

	removed := make(map[string]bool)
	for _, rel := range set.FilesToRemove() {
		removed[rel] = true
	}
	if err := p.Store.RemoveRecordsForFiles(removed); err != nil {
		return fmt.Errorf("pipeline: remove stale records: %w", err)
	}

	lines, err := toLines(result)
	if err != nil {
		return fmt.Errorf("pipeline: encode records: %w", err)
	}
	if err := p.Store.AppendRecords(lines); err != nil {
		return fmt.Errorf("pipeline: append records: %w", err)
	}

	reindexed := make(map[string]bool, len(toReindex))
	for _, rel := range toReindex {
		reindexed[rel] = true
	}

	newManifest, err := p.buildManifest(files, result, manifest, reindexed, removed)
	if err != nil {
		return fmt.Errorf("pipeline: build manifest: %w", err)
	}
	if err := p.Store.WriteManifest(newManifest); err != nil {
		return fmt.Errorf("pipeline: write manifest: %w", err)
	}

	slog.Info("pipeline.done", "reindexed", len(reindexFiles))
	return nil
}

// extractionResult buckets every record kind a run produces, pre-merge.
type extractionResult struct {
	Modules     []record.ModuleDef
	Functions   []record.FunctionDef
	Calls       []record.CallRef
	Directives  []record.DirectiveRef
	Structs     []record.StructDef
	Routes      []record.Route
	Schemas     []record.Schema
	TypeSpecs   []record.TypeSpec
	TypeDefs    []record.TypeDef
	Diagnostics []record.Diagnostic
	DepEdges    []record.DepEdge
}

// extractAll runs all seven extraction phases over files and merges
// their call/dep-edge outputs by source-confidence priority.
func (p *Pipeline) extractAll(files []discover.FileInfo) (extractionResult, error) {
	syn, err := syntactic.Extract(p.ctx, files)
	if err != nil {
		return extractionResult{}, fmt.Errorf("syntactic: %w", err)
	}

	xrefEdges, err := xref.Extract(p.ctx, p.RepoPath)
	if err != nil {
		slog.Warn("pipeline.xref_failed", "error", err)
	}

	compilerCalls, err := tracer.Extract(p.ctx, p.RepoPath)
	if err != nil {
		slog.Warn("pipeline.tracer_failed", "error", err)
	}

	routeList, err := routes.Extract(files)
	if err != nil {
		slog.Warn("pipeline.routes_failed", "error", err)
	}

	schemaList, err := schemadsl.Extract(files)
	if err != nil {
		slog.Warn("pipeline.schema_failed", "error", err)
	}

	typeResult, err := typespec.Extract(files)
	if err != nil {
		slog.Warn("pipeline.typespec_failed", "error", err)
	}

	diagnostics, err := diagnostic.Extract(p.ctx, p.RepoPath)
	if err != nil {
		slog.Warn("pipeline.diagnostic_failed", "error", err)
	}

	mergedCalls := merge.Calls(syn.Calls, nil, compilerCalls)
	mergedDeps := merge.DepEdges(xrefEdges, nil)

	return extractionResult{
		Modules:     syn.Modules,
		Functions:   syn.Functions,
		Calls:       mergedCalls,
		Directives:  syn.Directives,
		Structs:     syn.Structs,
		Routes:      routeList,
		Schemas:     schemaList,
		TypeSpecs:   typeResult.Specs,
		TypeDefs:    typeResult.Types,
		Diagnostics: diagnostics,
		DepEdges:    mergedDeps,
	}, nil
}

// toLines encodes every record in r into store.Line values, in a
// fixed, deterministic kind order.
func toLines(r extractionResult) ([]store.Line, error) {
	var lines []store.Line
	add := func(kind record.Kind, data any) error {
		l, err := store.NewLine(kind, data, record.SourceSyntactic, record.ConfidenceHigh)
		if err != nil {
			return err
		}
		lines = append(lines, l)
		return nil
	}

	for _, m := range r.Modules {
		if err := add(record.KindModule, m); err != nil {
			return nil, err
		}
	}
	for _, f := range r.Functions {
		if err := add(record.KindFunction, f); err != nil {
			return nil, err
		}
	}
	for _, c := range r.Calls {
		l, err := store.NewLine(record.KindCall, c, c.Source, c.Confidence)
		if err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	for _, d := range r.Directives {
		if err := add(record.KindDirective, d); err != nil {
			return nil, err
		}
	}
	for _, s := range r.Structs {
		if err := add(record.KindStruct, s); err != nil {
			return nil, err
		}
	}
	for _, rt := range r.Routes {
		if err := add(record.KindRoute, rt); err != nil {
			return nil, err
		}
	}
	for _, s := range r.Schemas {
		if err := add(record.KindSchema, s); err != nil {
			return nil, err
		}
	}
	for _, ts := range r.TypeSpecs {
		if err := add(record.KindTypeSpec, ts); err != nil {
			return nil, err
		}
	}
	for _, td := range r.TypeDefs {
		if err := add(record.KindTypeDef, td); err != nil {
			return nil, err
		}
	}
	for _, diag := range r.Diagnostics {
		if err := add(record.KindDiag, diag); err != nil {
			return nil, err
		}
	}
	for _, e := range r.DepEdges {
		l, err := store.NewLine(record.KindDepEdge, e, record.SourceXref, record.ConfidenceHigh)
		if err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, nil
}

// buildManifest computes per-file fingerprints and the module→file,
// module→deps, and module→dependents maps for the project.
//
// On a full run prior is nil and r covers every file, so the maps are
// built from r alone. On an incremental run r only covers the files in
// reindexed (plus whatever xref/tracer/diagnostic saw project-wide);
// modules and edges belonging to files that weren't reindexed this
// round are carried forward from prior rather than dropped, since they
// still live in index.jsonl untouched. Entries for files in removed
// are dropped either way.
func (p *Pipeline) buildManifest(files []discover.FileInfo, r extractionResult, prior *store.Manifest, reindexed, removed map[string]bool) (*store.Manifest, error) {
	m := store.NewManifest(p.RepoPath, Version)

	moduleFile := make(map[string]string)
	staleModules := make(map[string]bool)
	if prior != nil {
		for mod, file := range prior.ModuleToFile {
			if removed[file] || reindexed[file] {
				staleModules[mod] = true
				continue
			}
			moduleFile[mod] = file
		}
	}
	for _, mod := range r.Modules {
		moduleFile[mod.Module] = mod.File
		staleModules[mod.Module] = true
	}
	m.ModuleToFile = moduleFile

	deps := make(map[string]map[string]bool)
	dependents := make(map[string]map[string]bool)
	addEdge := func(from, to string) {
		if deps[from] == nil {
			deps[from] = make(map[string]bool)
		}
		deps[from][to] = true
		if dependents[to] == nil {
			dependents[to] = make(map[string]bool)
		}
		dependents[to][from] = true
	}
	if prior != nil {
		for from, tos := range prior.ModuleDeps {
			if staleModules[from] {
				continue
			}
			for _, to := range tos {
				addEdge(from, to)
			}
		}
	}
	for _, e := range r.DepEdges {
		addEdge(e.From, e.To)
	}
	for _, d := range r.Directives {
		addEdge(d.Module, d.Target)
	}

	m.ModuleDeps = flatten(deps)
	m.Dependents = flatten(dependents)

	reindexedModules := make(map[string][]string, len(r.Modules))
	for _, mod := range r.Modules {
		reindexedModules[mod.File] = append(reindexedModules[mod.File], mod.Module)
	}

	for _, f := range files {
		abs := f.Path
		if !filepath.IsAbs(abs) {
			abs = filepath.Join(p.RepoPath, f.RelPath)
		}
		info, err := os.Stat(abs)
		if err != nil {
			continue
		}
		fp, err := store.Fingerprint(abs)
		if err != nil {
			continue
		}

		var mods []string
		if reindexed == nil || reindexed[f.RelPath] {
			mods = reindexedModules[f.RelPath]
		} else if prior != nil {
			if fs, ok := prior.Files[f.RelPath]; ok {
				mods = fs.Modules
			}
		}

		m.Files[f.RelPath] = record.FileState{
			Path:        f.RelPath,
			MTime:       info.ModTime().UnixNano(),
			Size:        info.Size(),
			Fingerprint: fp,
			Modules:     mods,
		}
	}
	m.FileCount = len(m.Files)
	m.RecordCount = len(r.Modules) + len(r.Functions) + len(r.Calls) + len(r.Directives) +
		len(r.Structs) + len(r.Routes) + len(r.Schemas) + len(r.TypeSpecs) + len(r.TypeDefs) +
		len(r.Diagnostics) + len(r.DepEdges)
	m.GeneratedAtRFC = time.Now().UTC().Format(time.RFC3339)
	return m, nil
}

func flatten(m map[string]map[string]bool) map[string][]string {
	out := make(map[string][]string, len(m))
	for k, set := range m {
		var list []string
		for v := range set {
			list = append(list, v)
		}
		out[k] = list
	}
	return out
}
