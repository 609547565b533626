// Package merge implements the confidence layer that folds call records
// from all three extraction sources into one deduplicated set and dedups
// dependency edges.
package merge

import (
	"sort"

	"github.com/kodemap/exgraph/internal/record"
)

// Calls folds syntactic, xref-sourced, and compiler-trace call records
// into a single table keyed by call-site key (file, line, callee).
// Insertion order is syntactic, then xref, then compiler, so later
// sources overwrite earlier ones: higher-confidence entries win. A
// resolved xref or compiler call also replaces the syntactic pass's
// unresolved-local-call marker (empty callee) at the same file and line.
// Only call records carry a source; xref contributes DepEdges, not
// CallRefs, but the signature accepts all three for callers that bucket
// their raw extraction output by phase.
func Calls(syntactic, xrefCalls, compiler []record.CallRef) []record.CallRef {
	table := make(map[[3]string]record.CallRef)
	dropMarker := func(c record.CallRef) {
		if c.Callee != "" {
			delete(table, record.CallRef{File: c.File, Line: c.Line}.SiteKey())
		}
	}

	for _, c := range syntactic {
		table[c.SiteKey()] = c
	}
	for _, c := range xrefCalls {
		dropMarker(c)
		table[c.SiteKey()] = c
	}
	for _, c := range compiler {
		dropMarker(c)
		table[c.SiteKey()] = c
	}

	out := make([]record.CallRef, 0, len(table))
	for _, c := range table {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].File != out[j].File {
			return out[i].File < out[j].File
		}
		return out[i].Line < out[j].Line
	})
	return out
}

// DepEdges concatenates xref and compiler-trace dependency edges and
// dedups by (from, to, type).
func DepEdges(xrefEdges, compilerEdges []record.DepEdge) []record.DepEdge {
	seen := make(map[[3]string]record.DepEdge)
	for _, e := range xrefEdges {
		seen[e.Key()] = e
	}
	for _, e := range compilerEdges {
		seen[e.Key()] = e
	}

	out := make([]record.DepEdge, 0, len(seen))
	for _, e := range seen {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].From != out[j].From {
			return out[i].From < out[j].From
		}
		if out[i].To != out[j].To {
			return out[i].To < out[j].To
		}
		return out[i].Type < out[j].Type
	})
	return out
}
