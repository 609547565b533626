// Package xref implements the cross-reference extraction phase: it
// prefers reading the project's compile manifest directly and falls
// back to shelling out to `mix xref graph --format json`.
package xref

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/kodemap/exgraph/internal/extract/denylist"
	"github.com/kodemap/exgraph/internal/record"
)

// graphDocument mirrors the shape of `mix xref graph --format json`'s output.
type graphDocument struct {
	Sources []struct {
		Source       string   `json:"source"`
		Compile      []string `json:"compile"`
		Export       []string `json:"export"`
		Runtime      []string `json:"runtime"`
	} `json:"sources"`
}

// Extract resolves module dependency edges for projectRoot. It first
// looks for a precomputed manifest JSON file under _build (cheap, no
// subprocess); if absent it shells out to `mix xref graph --format json`.
// Any failure yields an empty result.
func Extract(ctx context.Context, projectRoot string) ([]record.DepEdge, error) {
	if doc, ok := readManifest(projectRoot); ok {
		return edgesFromDocument(doc), nil
	}

	doc, err := runMixXref(ctx, projectRoot)
	if err != nil {
		slog.Debug("xref.run_failed", "error", err)
		return nil, nil
	}
	return edgesFromDocument(doc), nil
}

func readManifest(projectRoot string) (graphDocument, bool) {
	candidates := []string{
		filepath.Join(projectRoot, "_build", "dev", ".mix", "xref_graph.json"),
		filepath.Join(projectRoot, "_build", "test", ".mix", "xref_graph.json"),
	}
	for _, path := range candidates {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var doc graphDocument
		if err := json.Unmarshal(data, &doc); err != nil {
			continue
		}
		return doc, true
	}
	return graphDocument{}, false
}

func runMixXref(ctx context.Context, projectRoot string) (graphDocument, error) {
	mixPath, err := exec.LookPath("mix")
	if err != nil {
		return graphDocument{}, fmt.Errorf("mix not found in PATH: install elixir to enable xref extraction")
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, mixPath, "xref", "graph", "--format", "json")
	cmd.Dir = projectRoot

	output, err := cmd.Output()
	if err != nil {
		return graphDocument{}, fmt.Errorf("mix xref graph: %w", err)
	}

	var doc graphDocument
	if err := json.Unmarshal(output, &doc); err != nil {
		return graphDocument{}, fmt.Errorf("decode mix xref graph output: %w", err)
	}
	return doc, nil
}

// edgesFromDocument applies the same module denylist as the
// compiler-trace phase: neither extractor emits edges touching
// Kernel/Kernel.SpecialForms/Access.
func edgesFromDocument(doc graphDocument) []record.DepEdge {
	var out []record.DepEdge
	for _, src := range doc.Sources {
		from := moduleFromPath(src.Source)
		if denylist.Contains(from) {
			continue
		}
		emit := func(dep string, typ record.DepEdgeType) {
			to := moduleFromPath(dep)
			if denylist.Contains(to) {
				return
			}
			out = append(out, record.DepEdge{From: from, To: to, Type: typ})
		}
		for _, dep := range src.Compile {
			emit(dep, record.DepCompile)
		}
		for _, dep := range src.Export {
			emit(dep, record.DepExport)
		}
		for _, dep := range src.Runtime {
			emit(dep, record.DepRuntime)
		}
	}
	return out
}

// moduleFromPath converts a lib-relative file path into a best-effort
// CamelCase module guess (lib/app/user.ex -> App.User), used only when
// the xref document references files rather than module names directly.
func moduleFromPath(s string) string {
	if !strings.Contains(s, "/") && !strings.HasSuffix(s, ".ex") && !strings.HasSuffix(s, ".exs") {
		return s
	}
	s = strings.TrimPrefix(s, "lib/")
	s = strings.TrimSuffix(s, ".ex")
	s = strings.TrimSuffix(s, ".exs")
	parts := strings.Split(s, "/")
	for i, p := range parts {
		parts[i] = camelize(p)
	}
	return strings.Join(parts, ".")
}

func camelize(s string) string {
	parts := strings.Split(s, "_")
	for i, p := range parts {
		if p == "" {
			continue
		}
		parts[i] = strings.ToUpper(p[:1]) + p[1:]
	}
	return strings.Join(parts, "")
}
