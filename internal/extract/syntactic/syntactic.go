// Package syntactic implements the syntactic extraction phase: a
// recursive-descent walk over each file's tree-sitter parse tree that
// emits module, function, call, directive, and struct records.
package syntactic

import (
	"context"
	"runtime"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/kodemap/exgraph/internal/discover"
	"github.com/kodemap/exgraph/internal/lang"
	"github.com/kodemap/exgraph/internal/parser"
	"github.com/kodemap/exgraph/internal/record"
)

// Result collects every record kind this phase produces.
type Result struct {
	Modules    []record.ModuleDef
	Functions  []record.FunctionDef
	Calls      []record.CallRef
	Directives []record.DirectiveRef
	Structs    []record.StructDef
}

func (r *Result) merge(other Result) {
	r.Modules = append(r.Modules, other.Modules...)
	r.Functions = append(r.Functions, other.Functions...)
	r.Calls = append(r.Calls, other.Calls...)
	r.Directives = append(r.Directives, other.Directives...)
	r.Structs = append(r.Structs, other.Structs...)
}

func (r *Result) sort() {
	sort.Slice(r.Modules, func(i, j int) bool { return r.Modules[i].Module < r.Modules[j].Module })
	sort.Slice(r.Functions, func(i, j int) bool {
		a, b := r.Functions[i], r.Functions[j]
		if a.Module != b.Module {
			return a.Module < b.Module
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.Arity < b.Arity
	})
	sort.Slice(r.Calls, func(i, j int) bool {
		a, b := r.Calls[i], r.Calls[j]
		if a.File != b.File {
			return a.File < b.File
		}
		return a.Line < b.Line
	})
	sort.Slice(r.Directives, func(i, j int) bool {
		a, b := r.Directives[i], r.Directives[j]
		if a.File != b.File {
			return a.File < b.File
		}
		return a.Line < b.Line
	})
	sort.Slice(r.Structs, func(i, j int) bool {
		a, b := r.Structs[i], r.Structs[j]
		if a.File != b.File {
			return a.File < b.File
		}
		return a.Line < b.Line
	})
}

// Extract parses every file in parallel (bounded by runtime.NumCPU) and
// returns the union of their contributions, sorted into a deterministic
// output order. A file that fails to read or parse contributes nothing:
// there is no retry and no fatal error.
func Extract(ctx context.Context, files []discover.FileInfo) (Result, error) {
	var (
		mu  sync.Mutex
		out Result
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())

	for _, f := range files {
		f := f
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			partial := extractFile(f)
			mu.Lock()
			out.merge(partial)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	out.sort()
	return out, nil
}

func extractFile(f discover.FileInfo) Result {
	source, err := readFile(f.Path)
	if err != nil {
		return Result{}
	}

	tree, err := parser.Parse(lang.Elixir, source)
	if err != nil {
		return Result{}
	}
	defer tree.Close()

	w := &walker{file: f.RelPath, source: source}
	w.walkTopLevel(tree.RootNode())
	return w.result
}
