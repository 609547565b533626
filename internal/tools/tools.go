// Package tools exposes the indexer's graph queries as MCP tools: each
// handler calls ensure_index_current before answering, so a client
// never sees results against a stale index.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/kodemap/exgraph/internal/pipeline"
	"github.com/kodemap/exgraph/internal/query"
	"github.com/kodemap/exgraph/internal/store"
	"github.com/kodemap/exgraph/internal/xerr"
)

// Version is the current release version, referenced by the MCP handshake.
const Version = "0.1.0"

// Server wraps the MCP server with the eleven graph tool handlers bound
// to a single project's store.
type Server struct {
	mcp      *mcp.Server
	store    *store.Store
	engine   *query.Engine
	repoPath string
	handlers map[string]mcp.ToolHandler
	indexMu  sync.Mutex
}

// NewServer creates an MCP server rooted at repoPath, registering the
// full set of query and indexing tools.
func NewServer(s *store.Store, repoPath string) *Server {
	srv := &Server{
		store:    s,
		engine:   query.New(s),
		repoPath: repoPath,
		handlers: make(map[string]mcp.ToolHandler),
	}

	srv.mcp = mcp.NewServer(
		&mcp.Implementation{Name: "exgraph-mcp", Version: Version},
		&mcp.ServerOptions{},
	)

	srv.registerTools()
	return srv
}

// MCPServer returns the underlying MCP server, for use with a transport.
func (s *Server) MCPServer() *mcp.Server { return s.mcp }

// ensureIndexCurrent runs an incremental refresh before every tool call.
// This is the only place this repo triggers indexing work: there is no
// background watcher.
func (s *Server) ensureIndexCurrent(ctx context.Context) error {
	s.indexMu.Lock()
	defer s.indexMu.Unlock()
	p := pipeline.New(ctx, s.store, s.repoPath)
	if err := p.Run(); err != nil {
		return fmt.Errorf("ensure_index_current: %w", err)
	}
	return nil
}

func (s *Server) addTool(tool *mcp.Tool, handler mcp.ToolHandler) {
	s.mcp.AddTool(tool, handler)
	s.handlers[tool.Name] = handler
}

// CallTool invokes a tool handler directly by name, bypassing MCP
// transport. Used by the CLI's `query` subcommand.
func (s *Server) CallTool(ctx context.Context, name string, argsJSON json.RawMessage) (*mcp.CallToolResult, error) {
	handler, ok := s.handlers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", xerr.ErrUnknownTool, name)
	}
	if len(argsJSON) == 0 {
		argsJSON = json.RawMessage(`{}`)
	}
	req := &mcp.CallToolRequest{
		Params: &mcp.CallToolParamsRaw{Name: name, Arguments: argsJSON},
	}
	return handler(ctx, req)
}

// ToolNames returns all registered tool names, sorted.
func (s *Server) ToolNames() []string {
	names := make([]string, 0, len(s.handlers))
	for name := range s.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *Server) registerTools() {
	s.addTool(&mcp.Tool{
		Name:        "index",
		Description: "Index the project: discover source files, run all extraction phases, and persist the result. Runs incrementally if an index already exists.",
		InputSchema: json.RawMessage(`{"type":"object","properties":{}}`),
	}, s.handleIndex)

	s.addTool(&mcp.Tool{
		Name:        "function_definition",
		Description: "Look up the definition site of a function by its Module.name/arity identifier.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"mfa": {"type": "string", "description": "Module.name/arity, e.g. App.Accounts.get_user/1"}
			},
			"required": ["mfa"]
		}`),
	}, s.handleFunctionDefinition)

	s.addTool(&mcp.Tool{
		Name:        "function_references",
		Description: "List every call site that references a function, sorted by file then line.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"mfa": {"type": "string"}
			},
			"required": ["mfa"]
		}`),
	}, s.handleFunctionReferences)

	s.addTool(&mcp.Tool{
		Name:        "function_callers",
		Description: "Breadth-first search over the call graph for functions that (transitively) call this one, up to depth hops.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"mfa":   {"type": "string"},
				"depth": {"type": "integer", "description": "default 1"}
			},
			"required": ["mfa"]
		}`),
	}, s.handleFunctionCallers)

	s.addTool(&mcp.Tool{
		Name:        "function_callees",
		Description: "Breadth-first search over the call graph for functions this one (transitively) calls, up to depth hops.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"mfa":   {"type": "string"},
				"depth": {"type": "integer", "description": "default 1"}
			},
			"required": ["mfa"]
		}`),
	}, s.handleFunctionCallees)

	s.addTool(&mcp.Tool{
		Name:        "routes",
		Description: "List every HTTP route the router DSL extractor resolved, sorted by verb then path.",
		InputSchema: json.RawMessage(`{"type":"object","properties":{}}`),
	}, s.handleRoutes)

	s.addTool(&mcp.Tool{
		Name:        "schema",
		Description: "Look up the Ecto-style schema (fields and associations) declared by a module.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"module": {"type": "string"}
			},
			"required": ["module"]
		}`),
	}, s.handleSchema)

	s.addTool(&mcp.Tool{
		Name:        "impact_analysis",
		Description: "Given a set of changed files, compute the affected modules and the test files that exercise them.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"files":            {"type": "array", "items": {"type": "string"}},
				"test_root_prefix": {"type": "string", "description": "default test/"}
			},
			"required": ["files"]
		}`),
	}, s.handleImpactAnalysis)

	s.addTool(&mcp.Tool{
		Name:        "function_spec",
		Description: "Look up the @spec type signature for a function by its Module.name/arity identifier.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"mfa": {"type": "string"}
			},
			"required": ["mfa"]
		}`),
	}, s.handleFunctionSpec)

	s.addTool(&mcp.Tool{
		Name:        "module_types",
		Description: "List every @type/@typep/@opaque/@callback/@macrocallback declared by a module.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"module": {"type": "string"}
			},
			"required": ["module"]
		}`),
	}, s.handleModuleTypes)

	s.addTool(&mcp.Tool{
		Name:        "type_errors",
		Description: "List every compiler-reported diagnostic collected by the last index run.",
		InputSchema: json.RawMessage(`{"type":"object","properties":{}}`),
	}, s.handleTypeErrors)
}

// --- helpers ---

func jsonResult(data any) *mcp.CallToolResult {
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return errResult("json marshal: " + err.Error())
	}
	return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: string(b)}}}
}

func errResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: msg}}, IsError: true}
}

func parseArgs(req *mcp.CallToolRequest) (map[string]any, error) {
	if len(req.Params.Arguments) == 0 {
		return map[string]any{}, nil
	}
	var m map[string]any
	if err := json.Unmarshal(req.Params.Arguments, &m); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}
	return m, nil
}

func getStringArg(args map[string]any, key string) string {
	v, ok := args[key].(string)
	if !ok {
		return ""
	}
	return v
}

func getIntArg(args map[string]any, key string, defaultVal int) int {
	v, ok := args[key]
	if !ok {
		return defaultVal
	}
	f, ok := v.(float64)
	if !ok {
		return defaultVal
	}
	return int(f)
}

func getStringSliceArg(args map[string]any, key string) []string {
	raw, ok := args[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func (s *Server) withFreshIndex(ctx context.Context) *mcp.CallToolResult {
	if err := s.ensureIndexCurrent(ctx); err != nil {
		slog.Warn("tools.ensure_index_failed", "error", err)
		return errResult(err.Error())
	}
	return nil
}
