package syntactic

import (
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/kodemap/exgraph/internal/parser"
	"github.com/kodemap/exgraph/internal/record"
)

// reservedControlFlow are call-shaped forms that are never themselves
// recorded as a CallRef, but whose bodies may contain nested definitions
// or calls worth descending into.
var reservedControlFlow = map[string]bool{
	"if": true, "unless": true, "case": true, "cond": true,
	"for": true, "with": true, "receive": true, "try": true,
	"quote": true, "unquote": true, "unquote_splicing": true,
	"fn": true, "defoverridable": true, "defdelegate": true,
	"defguard": true, "defguardp": true, "defexception": true,
	"defprotocol": true, "defimpl": true,
}

var directiveKinds = map[string]record.DirectiveKind{
	"alias":   record.DirectiveAlias,
	"import":  record.DirectiveImport,
	"require": record.DirectiveRequire,
	"use":     record.DirectiveUse,
}

type walker struct {
	file   string
	source []byte
	result Result

	module   string // current module name, "" if none
	function string // current function MFA, "" if none
}

// walkTopLevel walks the root "source" node for top-level defmodule/call forms.
func (w *walker) walkTopLevel(root *tree_sitter.Node) {
	parser.Walk(root, func(n *tree_sitter.Node) bool {
		if n.Id() == root.Id() {
			return true
		}
		return w.visit(n)
	})
}

// visit handles one node and returns whether the default walk should
// descend into its children. Branches that need custom recursion return
// false and walk the relevant subtree themselves.
func (w *walker) visit(n *tree_sitter.Node) bool {
	switch n.Kind() {
	case "call":
		return w.visitCall(n)
	case "binary_operator":
		// Arithmetic/comparison/boolean/pipe/match operators are reserved;
		// recurse so nested calls on either side are still found.
		w.walkChildren(n)
		return false
	default:
		return true
	}
}

func (w *walker) walkChildren(n *tree_sitter.Node) {
	for i := uint(0); i < n.NamedChildCount(); i++ {
		child := n.NamedChild(i)
		if child == nil {
			continue
		}
		parser.Walk(child, w.visit)
	}
}

func callTarget(n *tree_sitter.Node) *tree_sitter.Node {
	return n.ChildByFieldName("target")
}

func (w *walker) targetName(target *tree_sitter.Node) string {
	if target == nil {
		return ""
	}
	if target.Kind() == "identifier" {
		return parser.NodeText(target, w.source)
	}
	return ""
}

func (w *walker) visitCall(n *tree_sitter.Node) bool {
	target := callTarget(n)
	name := w.targetName(target)

	switch name {
	case "defmodule":
		w.handleDefModule(n)
		return false
	case "def", "defp", "defmacro", "defmacrop":
		w.handleDef(n, name)
		return false
	case "alias", "import", "require", "use":
		w.handleDirective(n, directiveKinds[name])
		return false
	case "defstruct":
		w.handleDefStruct(n)
		return false
	}

	if reservedControlFlow[name] {
		w.walkChildren(n)
		return false
	}

	// A real call expression (qualified or unqualified).
	if w.function != "" {
		w.emitCall(n, target)
	}
	w.walkChildren(n)
	return false
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
	if b := n.ChildByFieldName("do"); b != nil {
		return b
	}
	return findChildByKind(n, "do_block")
}

// handleDefModule extracts a ModuleDef and descends into its do-block
// under the new module context, restoring the prior context afterward.
func (w *walker) handleDefModule(n *tree_sitter.Node) {
	args := argsNode(n)
	if args == nil {
		return
	}
	aliasNode := findChildByKind(args, "alias")
	if aliasNode == nil {
		return
	}
	name := parser.NodeText(aliasNode, w.source)
	if name == "" {
		return
	}

	w.result.Modules = append(w.result.Modules, record.ModuleDef{
		Module:    name,
		File:      w.file,
		StartLine: parser.StartLine(n),
		EndLine:   parser.EndLine(n),
	})

	prevModule, prevFunc := w.module, w.function
	w.module = name
	w.function = ""

	if body := doBlockNode(n); body != nil {
		w.walkChildren(body)
	}

	w.module, w.function = prevModule, prevFunc
}

// handleDef extracts a FunctionDef and descends into its body under the
// new function context.
func (w *walker) handleDef(n *tree_sitter.Node, keyword string) {
	if w.module == "" {
		return
	}
	args := argsNode(n)
	if args == nil {
		return
	}

	var name string
	var arity int
	var bodyFrom *tree_sitter.Node = n

	if nameCall := findChildByKind(args, "call"); nameCall != nil {
		name = w.targetName(callTarget(nameCall))
		if inner := argsNode(nameCall); inner != nil {
			arity = int(inner.NamedChildCount())
		}
	} else if id := findChildByKind(args, "identifier"); id != nil {
		name = parser.NodeText(id, w.source)
	}
	if name == "" {
		return
	}

	visibility := record.Public
	macro := keyword == "defmacro" || keyword == "defmacrop"
	if keyword == "defp" || keyword == "defmacrop" {
		visibility = record.Private
	}

	w.result.Functions = append(w.result.Functions, record.FunctionDef{
		Module:     w.module,
		Name:       name,
		Arity:      arity,
		Visibility: visibility,
		Macro:      macro,
		File:       w.file,
		StartLine:  parser.StartLine(n),
		EndLine:    parser.EndLine(n),
	})

	prevFunc := w.function
	w.function = record.Format(w.module, name, arity)

	if body := doBlockNode(bodyFrom); body != nil {
		w.walkChildren(body)
	} else {
		// `def greet(x), do: x`: the do: clause lives in the arguments
		// keyword list, not a do_block.
		w.walkChildren(args)
	}

	w.function = prevFunc
}

func (w *walker) handleDirective(n *tree_sitter.Node, kind record.DirectiveKind) {
	if w.module == "" {
		return
	}
	args := argsNode(n)
	if args == nil {
		return
	}

	var target string
	var renamedAs string
	var only, except []string

	for i := uint(0); i < args.NamedChildCount(); i++ {
		child := args.NamedChild(i)
		if child == nil {
			continue
		}
		switch child.Kind() {
		case "alias":
			if target == "" {
				target = parser.NodeText(child, w.source)
			}
		case "keywords", "keyword_list":
			only, except, renamedAs = parseDirectiveOptions(child, w.source)
		}
	}
	if target == "" {
		return
	}

	w.result.Directives = append(w.result.Directives, record.DirectiveRef{
		Kind:      kind,
		Module:    w.module,
		Target:    target,
		File:      w.file,
		Line:      parser.StartLine(n),
		RenamedAs: renamedAs,
		Only:      only,
		Except:    except,
	})
}

// parseDirectiveOptions walks an `as:`/`only:`/`except:` keyword list,
// rendering atom list values to plain name/arity strings.
func parseDirectiveOptions(kw *tree_sitter.Node, source []byte) (only, except []string, renamedAs string) {
	for i := uint(0); i < kw.NamedChildCount(); i++ {
		pair := kw.NamedChild(i)
		if pair == nil {
			continue
		}
		text := parser.NodeText(pair, source)
		switch {
		case strings.HasPrefix(text, "as:"):
			renamedAs = strings.TrimSpace(strings.TrimPrefix(text, "as:"))
		case strings.HasPrefix(text, "only:"):
			only = extractAtomList(pair, source)
		case strings.HasPrefix(text, "except:"):
			except = extractAtomList(pair, source)
		}
	}
	return only, except, renamedAs
}

func extractAtomList(pair *tree_sitter.Node, source []byte) []string {
	list := findDescendantByKind(pair, "list")
	if list == nil {
		return nil
	}
	var out []string
	for i := uint(0); i < list.NamedChildCount(); i++ {
		item := list.NamedChild(i)
		if item != nil {
			out = append(out, parser.NodeText(item, source))
		}
	}
	return out
}

func findDescendantByKind(node *tree_sitter.Node, kind string) *tree_sitter.Node {
	if node.Kind() == kind {
		return node
	}
	for i := uint(0); i < node.NamedChildCount(); i++ {
		if found := findDescendantByKind(node.NamedChild(i), kind); found != nil {
			return found
		}
	}
	return nil
}

func (w *walker) handleDefStruct(n *tree_sitter.Node) {
	if w.module == "" {
		return
	}
	args := argsNode(n)
	if args == nil {
		return
	}
	list := findChildByKind(args, "list")
	if list == nil {
		return
	}

	var fields []record.StructField
	for i := uint(0); i < list.NamedChildCount(); i++ {
		item := list.NamedChild(i)
		if item == nil {
			continue
		}
		switch item.Kind() {
		case "keywords", "pair":
			// name: default
			key, val := splitPair(item, w.source)
			fields = append(fields, record.StructField{Name: key, Default: val})
		default:
			fields = append(fields, record.StructField{Name: parser.NodeText(item, w.source)})
		}
	}

	w.result.Structs = append(w.result.Structs, record.StructDef{
		Module: w.module,
		File:   w.file,
		Line:   parser.StartLine(n),
		Fields: fields,
	})
}

func splitPair(item *tree_sitter.Node, source []byte) (key, val string) {
	if k := item.ChildByFieldName("key"); k != nil {
		key = parser.NodeText(k, source)
	}
	if v := item.ChildByFieldName("value"); v != nil {
		val = parser.NodeText(v, source)
	}
	return key, val
}

// emitCall records a CallRef for a real call expression. Qualified calls
// (`Module.func(...)`) resolve a callee MFA; unqualified calls
// (`helper(...)`) leave Callee empty as the "unresolved local call"
// marker.
func (w *walker) emitCall(n, target *tree_sitter.Node) {
	args := argsNode(n)
	arity := 0
	if args != nil {
		arity = int(args.NamedChildCount())
	}

	var callee string
	var confidence record.Confidence = record.ConfidenceLow

	if target != nil && target.Kind() == "dot" {
		left := target.ChildByFieldName("left")
		right := target.ChildByFieldName("right")
		if left != nil && right != nil {
			module := parser.NodeText(left, w.source)
			fn := parser.NodeText(right, w.source)
			if module != "" && fn != "" {
				callee = record.Format(module, fn, arity)
				confidence = record.ConfidenceMedium
			}
		}
	}

	w.result.Calls = append(w.result.Calls, record.CallRef{
		Caller:     w.function,
		Callee:     callee,
		File:       w.file,
		Line:       parser.StartLine(n),
		Source:     record.SourceSyntactic,
		Confidence: confidence,
	})
}
