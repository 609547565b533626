// Package schemadsl implements the Ecto-style schema DSL extraction
// phase: schema/embedded_schema blocks, field declarations, timestamps,
// and the six association macros.
package schemadsl

import (
	"bytes"
	"os"
	"sort"
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/kodemap/exgraph/internal/discover"
	"github.com/kodemap/exgraph/internal/lang"
	"github.com/kodemap/exgraph/internal/parser"
	"github.com/kodemap/exgraph/internal/record"
)

// Markers identify a file worth parsing for schemas: a `schema "..."` or
// "schema(" call, an embedded_schema block, or a "use Ecto.Schema"
// directive.
var markers = []string{"schema \"", "schema(", "embedded_schema", "use Ecto.Schema"}

var assocMacros = map[string]record.AssocKind{
	"belongs_to":   record.AssocBelongsTo,
	"has_one":      record.AssocHasOne,
	"has_many":     record.AssocHasMany,
	"many_to_many": record.AssocManyToMany,
	"embeds_one":   record.AssocEmbedsOne,
	"embeds_many":  record.AssocEmbedsMany,
}

// Extract parses every candidate file and returns a sorted list of Schemas.
func Extract(files []discover.FileInfo) ([]record.Schema, error) {
	var out []record.Schema
	for _, f := range files {
		source, err := os.ReadFile(f.Path)
		if err != nil || !hasMarker(source) {
			continue
		}
		tree, err := parser.Parse(lang.Elixir, source)
		if err != nil {
			continue
		}
		out = append(out, extractFromTree(tree.RootNode(), source, f.RelPath)...)
		tree.Close()
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Module < out[j].Module })
	return out, nil
}

func hasMarker(source []byte) bool {
	for _, m := range markers {
		if bytes.Contains(source, []byte(m)) {
			return true
		}
	}
	return false
}

func extractFromTree(root *tree_sitter.Node, source []byte, file string) []record.Schema {
	var out []record.Schema
	var currentModule string

	parser.Walk(root, func(n *tree_sitter.Node) bool {
		if n.Kind() != "call" {
			return true
		}
		target := n.ChildByFieldName("target")
		if target == nil || target.Kind() != "identifier" {
			return true
		}
		name := parser.NodeText(target, source)

		if name == "defmodule" {
			args := findChildByKind(n, "arguments")
			if args != nil {
				if aliasNode := findChildByKind(args, "alias"); aliasNode != nil {
					currentModule = parser.NodeText(aliasNode, source)
				}
			}
			return true
		}

		if name == "schema" || name == "embedded_schema" {
			if s, ok := handleSchema(n, name, source, currentModule, file); ok {
				out = append(out, s)
			}
			return false
		}
		return true
	})
	return out
}

func findChildByKind(node *tree_sitter.Node, kind string) *tree_sitter.Node {
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child != nil && child.Kind() == kind {
			return child
		}
	}
	return nil
}

func argsNode(n *tree_sitter.Node) *tree_sitter.Node {
	if a := n.ChildByFieldName("arguments"); a != nil {
		return a
	}
	return findChildByKind(n, "arguments")
}

func doBlockNode(n *tree_sitter.Node) *tree_sitter.Node {
	return findChildByKind(n, "do_block")
}

func handleSchema(n *tree_sitter.Node, kind string, source []byte, module, file string) (record.Schema, bool) {
	if module == "" {
		return record.Schema{}, false
	}
	var source_ string
	if kind == "schema" {
		args := argsNode(n)
		if args != nil {
			if str := findChildByKind(args, "string"); str != nil {
				source_ = strings.Trim(parser.NodeText(str, source), "\"")
			}
		}
	}

	body := doBlockNode(n)
	if body == nil {
		return record.Schema{}, false
	}

	var fields []record.SchemaField
	var assocs []record.SchemaAssoc

	for i := uint(0); i < body.NamedChildCount(); i++ {
		child := body.NamedChild(i)
		if child == nil || child.Kind() != "call" {
			continue
		}
		target := child.ChildByFieldName("target")
		if target == nil || target.Kind() != "identifier" {
			continue
		}
		callee := parser.NodeText(target, source)
		cargs := argsNode(child)

		switch {
		case callee == "field":
			fields = append(fields, extractField(cargs, source))
		case callee == "timestamps":
			fields = append(fields,
				record.SchemaField{Name: "inserted_at", Type: "naive_datetime"},
				record.SchemaField{Name: "updated_at", Type: "naive_datetime"},
			)
		case assocMacros[callee] != "":
			assocs = append(assocs, extractAssoc(assocMacros[callee], cargs, source))
		}
	}

	return record.Schema{
		Module:    module,
		Source:    source_,
		File:      file,
		StartLine: parser.StartLine(n),
		EndLine:   parser.EndLine(n),
		Fields:    fields,
		Assocs:    assocs,
	}, true
}

func extractField(args *tree_sitter.Node, source []byte) record.SchemaField {
	if args == nil || args.NamedChildCount() == 0 {
		return record.SchemaField{}
	}
	name := strings.TrimPrefix(parser.NodeText(args.NamedChild(0), source), ":")
	typ := "string"
	if args.NamedChildCount() > 1 {
		typ = renderType(args.NamedChild(1), source)
	}
	return record.SchemaField{Name: name, Type: typ}
}

func extractAssoc(kind record.AssocKind, args *tree_sitter.Node, source []byte) record.SchemaAssoc {
	if args == nil || args.NamedChildCount() < 2 {
		return record.SchemaAssoc{Kind: kind}
	}
	name := strings.TrimPrefix(parser.NodeText(args.NamedChild(0), source), ":")
	related := parser.NodeText(args.NamedChild(1), source)
	return record.SchemaAssoc{Kind: kind, Name: name, Related: related}
}

// renderType renders a type-argument node to a stable textual form: an
// atom strips its leading colon, an alias (module reference) is kept
// as its dotted text.
func renderType(n *tree_sitter.Node, source []byte) string {
	text := parser.NodeText(n, source)
	return strings.TrimPrefix(text, ":")
}
