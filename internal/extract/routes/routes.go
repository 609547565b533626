// Package routes implements the router DSL extraction phase: it folds
// nested scope prefixes and verb/resources/live macros into a globally
// sorted list of concrete routes.
package routes

import (
	"bytes"
	"sort"
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/kodemap/exgraph/internal/discover"
	"github.com/kodemap/exgraph/internal/lang"
	"github.com/kodemap/exgraph/internal/parser"
	"github.com/kodemap/exgraph/internal/record"
)

// Marker is the substring that identifies a router file; only files
// whose source contains it are parsed for routes.
const Marker = "Phoenix.Router"

var verbs = map[string]bool{
	"get": true, "post": true, "put": true, "patch": true, "delete": true,
	"head": true, "options": true, "connect": true, "trace": true,
}

var crudActions = []struct {
	Action string
	Verb   string
	Path   string // relative to the resource base
}{
	{"index", "GET", ""},
	{"new", "GET", "/new"},
	{"create", "POST", ""},
	{"show", "GET", "/:id"},
	{"edit", "GET", "/:id/edit"},
	{"update", "PUT", "/:id"},
	{"update", "PATCH", "/:id"},
	{"delete", "DELETE", "/:id"},
}

// Extract parses every router file and returns a globally sorted,
// deduplicated list of routes.
func Extract(files []discover.FileInfo) ([]record.Route, error) {
	var all []record.Route
	for _, f := range files {
		source, err := readFile(f.Path)
		if err != nil || !bytes.Contains(source, []byte(Marker)) {
			continue
		}
		tree, err := parser.Parse(lang.Elixir, source)
		if err != nil {
			continue
		}
		all = append(all, extractFromTree(tree.RootNode(), source, f.RelPath)...)
		tree.Close()
	}

	seen := make(map[[4]string]record.Route)
	for _, r := range all {
		seen[r.Key()] = r
	}
	out := make([]record.Route, 0, len(seen))
	for _, r := range seen {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Verb != out[j].Verb {
			return out[i].Verb < out[j].Verb
		}
		return out[i].Path < out[j].Path
	})
	return out, nil
}

type foldCtx struct {
	pathPrefix  string
	aliasPrefix string
	router      string
	file        string
}

func extractFromTree(root *tree_sitter.Node, source []byte, file string) []record.Route {
	var out []record.Route
	parser.Walk(root, func(n *tree_sitter.Node) bool {
		if n.Kind() != "call" {
			return true
		}
		target := n.ChildByFieldName("target")
		if target == nil || target.Kind() != "identifier" {
			return true
		}
		if parser.NodeText(target, source) != "defmodule" {
			return true
		}
		args := findChildByKind(n, "arguments")
		if args == nil {
			return false
		}
		aliasNode := findChildByKind(args, "alias")
		if aliasNode == nil {
			return false
		}
		router := parser.NodeText(aliasNode, source)
		body := findChildByKind(n, "do_block")
		if body != nil {
			out = append(out, walkBody(body, source, foldCtx{router: router, file: file})...)
		}
		return false
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

func walkBody(body *tree_sitter.Node, source []byte, ctx foldCtx) []record.Route {
	var out []record.Route
	for i := uint(0); i < body.NamedChildCount(); i++ {
		child := body.NamedChild(i)
		if child == nil || child.Kind() != "call" {
			continue
		}
		target := child.ChildByFieldName("target")
		name := ""
		if target != nil && target.Kind() == "identifier" {
			name = parser.NodeText(target, source)
		}
		args := argsNode(child)

		switch {
		case name == "scope":
			out = append(out, handleScope(child, args, source, ctx)...)
		case verbs[name]:
			if r, ok := handleVerb(strings.ToUpper(name), args, source, child, ctx); ok {
				out = append(out, r)
			}
		case name == "resources":
			out = append(out, handleResources(args, child, source, ctx)...)
		case name == "live":
			if r, ok := handleLive(args, child, source, ctx); ok {
				out = append(out, r)
			}
		}
	}
	return out
}

func handleScope(n, args *tree_sitter.Node, source []byte, ctx foldCtx) []record.Route {
	if args == nil {
		return nil
	}
	var localPath, aliasMod string
	for i := uint(0); i < args.NamedChildCount(); i++ {
		c := args.NamedChild(i)
		if c == nil {
			continue
		}
		switch c.Kind() {
		case "string":
			if localPath == "" {
				localPath = stringLiteral(c, source)
			}
		case "alias":
			aliasMod = parser.NodeText(c, source)
		}
	}

	newCtx := ctx
	newCtx.pathPrefix = joinPath(ctx.pathPrefix, localPath)
	if aliasMod != "" {
		newCtx.aliasPrefix = joinAlias(ctx.aliasPrefix, aliasMod)
	}

	body := doBlockNode(n)
	if body == nil {
		return nil
	}
	return walkBody(body, source, newCtx)
}

func handleVerb(verb string, args *tree_sitter.Node, source []byte, n *tree_sitter.Node, ctx foldCtx) (record.Route, bool) {
	if args == nil || args.NamedChildCount() < 3 {
		return record.Route{}, false
	}
	localPath := stringLiteral(args.NamedChild(0), source)
	controller := resolveController(args.NamedChild(1), source, ctx)
	action := strings.TrimPrefix(parser.NodeText(args.NamedChild(2), source), ":")

	return record.Route{
		Verb:       verb,
		Path:       joinPath(ctx.pathPrefix, localPath),
		Controller: controller,
		Action:     action,
		Router:     ctx.router,
		File:       ctx.file,
		Line:       parser.StartLine(n),
	}, true
}

func handleLive(args *tree_sitter.Node, n *tree_sitter.Node, source []byte, ctx foldCtx) (record.Route, bool) {
	if args == nil || args.NamedChildCount() < 2 {
		return record.Route{}, false
	}
	return record.Route{
		Verb:       "GET",
		Path:       joinPath(ctx.pathPrefix, stringLiteral(args.NamedChild(0), source)),
		Controller: resolveController(args.NamedChild(1), source, ctx),
		Action:     "live",
		Router:     ctx.router,
		File:       ctx.file,
		Line:       parser.StartLine(n),
	}, true
}

func handleResources(args, n *tree_sitter.Node, source []byte, ctx foldCtx) []record.Route {
	if args == nil || args.NamedChildCount() < 2 {
		return nil
	}
	localPath := stringLiteral(args.NamedChild(0), source)
	controller := resolveController(args.NamedChild(1), source, ctx)

	var only, except []string
	for i := uint(2); i < args.NamedChildCount(); i++ {
		c := args.NamedChild(i)
		if c == nil {
			continue
		}
		if strings.Contains(parser.NodeText(c, source), "only:") {
			only = extractAtomNames(c, source)
		}
		if strings.Contains(parser.NodeText(c, source), "except:") {
			except = extractAtomNames(c, source)
		}
	}

	base := joinPath(ctx.pathPrefix, localPath)
	var out []record.Route
	for _, a := range crudActions {
		if !actionAllowed(a.Action, only, except) {
			continue
		}
		out = append(out, record.Route{
			Verb:       a.Verb,
			Path:       base + a.Path,
			Controller: controller,
			Action:     a.Action,
			Router:     ctx.router,
			File:       ctx.file,
			Line:       parser.StartLine(n),
		})
	}

	if body := doBlockNode(n); body != nil {
		nestedCtx := ctx
		nestedCtx.pathPrefix = base + "/:" + singularize(trimSlashes(localPath)) + "_id"
		out = append(out, walkBody(body, source, nestedCtx)...)
	}
	return out
}

func actionAllowed(action string, only, except []string) bool {
	if len(only) > 0 {
		return containsStr(only, action)
	}
	if len(except) > 0 {
		return !containsStr(except, action)
	}
	return true
}

func containsStr(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func extractAtomNames(n *tree_sitter.Node, source []byte) []string {
	list := findDescendantByKind(n, "list")
	if list == nil {
		return nil
	}
	var out []string
	for i := uint(0); i < list.NamedChildCount(); i++ {
		item := list.NamedChild(i)
		if item != nil {
			out = append(out, strings.TrimPrefix(parser.NodeText(item, source), ":"))
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

func resolveController(n *tree_sitter.Node, source []byte, ctx foldCtx) string {
	text := parser.NodeText(n, source)
	if strings.Contains(text, ".") || ctx.aliasPrefix == "" {
		return text
	}
	return joinAlias(ctx.aliasPrefix, text)
}

func stringLiteral(n *tree_sitter.Node, source []byte) string {
	if n == nil {
		return ""
	}
	text := parser.NodeText(n, source)
	return strings.Trim(text, "\"")
}

func joinPath(prefix, local string) string {
	prefix = strings.TrimSuffix(prefix, "/")
	local = strings.TrimPrefix(local, "/")
	switch {
	case prefix == "" && local == "":
		return "/"
	case prefix == "":
		return "/" + local
	case local == "":
		return prefix
	default:
		return prefix + "/" + local
	}
}

func joinAlias(prefix, mod string) string {
	if prefix == "" {
		return mod
	}
	return prefix + "." + mod
}

func trimSlashes(s string) string {
	return strings.Trim(s, "/")
}

// singularize applies a purely syntactic rule: ies->y, else es->"",
// else s->"", else identity. No irregular-noun table.
func singularize(s string) string {
	switch {
	case strings.HasSuffix(s, "ies"):
		return strings.TrimSuffix(s, "ies") + "y"
	case strings.HasSuffix(s, "es"):
		return strings.TrimSuffix(s, "es")
	case strings.HasSuffix(s, "s"):
		return strings.TrimSuffix(s, "s")
	default:
		return s
	}
}
