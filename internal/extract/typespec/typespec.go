// Package typespec implements the type-annotation extraction phase:
// @spec, @type, @typep, @opaque, @callback, @macrocallback module
// attributes, rendered as textual TypeSpec/TypeDef records.
package typespec

import (
	"os"
	"sort"
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/kodemap/exgraph/internal/discover"
	"github.com/kodemap/exgraph/internal/lang"
	"github.com/kodemap/exgraph/internal/parser"
	"github.com/kodemap/exgraph/internal/record"
)

var typeDefKinds = map[string]record.TypeDefKind{
	"type":          record.TypeDefType,
	"typep":         record.TypeDefPrivate,
	"opaque":        record.TypeDefOpaque,
	"callback":      record.TypeDefCallback,
	"macrocallback": record.TypeDefMacroCallback,
}

// Result holds everything a single run produces, split by record kind.
type Result struct {
	Specs []record.TypeSpec
	Types []record.TypeDef
}

// Extract walks every file's parse tree looking for @spec/@type/...
// module attributes and returns them sorted: specs by (module, name,
// arity, line), type definitions by (module, name, line).
func Extract(files []discover.FileInfo) (Result, error) {
	var out Result
	for _, f := range files {
		source, err := os.ReadFile(f.Path)
		if err != nil {
			continue
		}
		tree, err := parser.Parse(lang.Elixir, source)
		if err != nil {
			continue
		}
		specs, types := extractFromTree(tree.RootNode(), source, f.RelPath)
		out.Specs = append(out.Specs, specs...)
		out.Types = append(out.Types, types...)
		tree.Close()
	}

	sort.Slice(out.Specs, func(i, j int) bool {
		a, b := out.Specs[i], out.Specs[j]
		if a.Module != b.Module {
			return a.Module < b.Module
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		if a.Arity != b.Arity {
			return a.Arity < b.Arity
		}
		return a.Line < b.Line
	})
	sort.Slice(out.Types, func(i, j int) bool {
		a, b := out.Types[i], out.Types[j]
		if a.Module != b.Module {
			return a.Module < b.Module
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.Line < b.Line
	})
	return out, nil
}

func extractFromTree(root *tree_sitter.Node, source []byte, file string) ([]record.TypeSpec, []record.TypeDef) {
	var specs []record.TypeSpec
	var types []record.TypeDef
	var currentModule string

	parser.Walk(root, func(n *tree_sitter.Node) bool {
		if n.Kind() == "call" {
			target := n.ChildByFieldName("target")
			if target != nil && target.Kind() == "identifier" && parser.NodeText(target, source) == "defmodule" {
				if args := findChildByKind(n, "arguments"); args != nil {
					if aliasNode := findChildByKind(args, "alias"); aliasNode != nil {
						currentModule = parser.NodeText(aliasNode, source)
					}
				}
			}
			return true
		}

		if n.Kind() != "unary_operator" {
			return true
		}
		opNode := n.ChildByFieldName("operator")
		if opNode == nil || parser.NodeText(opNode, source) != "@" {
			return true
		}
		operand := n.ChildByFieldName("operand")
		if operand == nil || operand.Kind() != "call" {
			return true
		}
		attrTarget := operand.ChildByFieldName("target")
		if attrTarget == nil || attrTarget.Kind() != "identifier" {
			return true
		}
		attrName := parser.NodeText(attrTarget, source)
		attrArgs := findChildByKind(operand, "arguments")
		if attrArgs == nil || attrArgs.NamedChildCount() == 0 {
			return false
		}
		sig := attrArgs.NamedChild(0)

		if attrName == "spec" || attrName == "callback" || attrName == "macrocallback" {
			if spec, ok := buildSpec(sig, source, currentModule, file, n); ok {
				if attrName == "spec" {
					specs = append(specs, spec)
				} else {
					types = append(types, record.TypeDef{
						Module:     spec.Module,
						Name:       spec.Name,
						Arity:      spec.Arity,
						Kind:       typeDefKinds[attrName],
						Definition: renderSig(sig, source),
						File:       file,
						Line:       parser.StartLine(n),
					})
				}
			}
			return false
		}

		if kind, ok := typeDefKinds[attrName]; ok {
			if def, ok := buildTypeDef(sig, source, currentModule, kind, file, n); ok {
				types = append(types, def)
			}
			return false
		}
		return false
	})
	return specs, types
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

// buildSpec renders a `name(arg, ...) :: returnType` signature node into
// a TypeSpec. The signature is a "::" binary_operator whose left side is
// the call head and right side the return type spelling.
func buildSpec(sig *tree_sitter.Node, source []byte, module, file string, attr *tree_sitter.Node) (record.TypeSpec, bool) {
	if module == "" || sig == nil || sig.Kind() != "binary_operator" {
		return record.TypeSpec{}, false
	}
	left := sig.ChildByFieldName("left")
	right := sig.ChildByFieldName("right")
	if left == nil || right == nil {
		return record.TypeSpec{}, false
	}

	name, params := headNameAndParams(left, source)
	if name == "" {
		return record.TypeSpec{}, false
	}

	return record.TypeSpec{
		Module:     module,
		Name:       name,
		Arity:      len(params),
		ParamTypes: params,
		ReturnType: parser.NodeText(right, source),
		File:       file,
		Line:       parser.StartLine(attr),
	}, true
}

// buildTypeDef renders a `name :: definition` or `name(p) :: definition`
// signature node into a TypeDef.
func buildTypeDef(sig *tree_sitter.Node, source []byte, module string, kind record.TypeDefKind, file string, attr *tree_sitter.Node) (record.TypeDef, bool) {
	if module == "" || sig == nil || sig.Kind() != "binary_operator" {
		return record.TypeDef{}, false
	}
	left := sig.ChildByFieldName("left")
	right := sig.ChildByFieldName("right")
	if left == nil || right == nil {
		return record.TypeDef{}, false
	}

	name, params := headNameAndParams(left, source)
	if name == "" {
		return record.TypeDef{}, false
	}

	return record.TypeDef{
		Module:     module,
		Name:       name,
		Arity:      len(params),
		Kind:       kind,
		ParamNames: params,
		Definition: parser.NodeText(right, source),
		File:       file,
		Line:       parser.StartLine(attr),
	}, true
}

// headNameAndParams extracts the name and positional parameter
// spellings from the left-hand side of a type/spec signature, which is
// either a bare identifier (arity 0) or a call-shaped `name(p1, p2)`.
func headNameAndParams(n *tree_sitter.Node, source []byte) (string, []string) {
	if n.Kind() == "identifier" {
		return parser.NodeText(n, source), nil
	}
	if n.Kind() != "call" {
		return "", nil
	}
	target := n.ChildByFieldName("target")
	if target == nil || target.Kind() != "identifier" {
		return "", nil
	}
	name := parser.NodeText(target, source)

	var params []string
	args := findChildByKind(n, "arguments")
	if args != nil {
		for i := uint(0); i < args.NamedChildCount(); i++ {
			params = append(params, parser.NodeText(args.NamedChild(i), source))
		}
	}
	return name, params
}

// renderSig renders a full `name(p) :: type` signature back to text,
// used for callback/macrocallback TypeDef definitions.
func renderSig(sig *tree_sitter.Node, source []byte) string {
	if sig == nil {
		return ""
	}
	return strings.TrimSpace(parser.NodeText(sig, source))
}
