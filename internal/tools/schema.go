package tools

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func (s *Server) handleRoutes(ctx context.Context, _ *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if r := s.withFreshIndex(ctx); r != nil {
		return r, nil
	}
	routes, err := s.engine.Routes()
	if err != nil {
		return errResult(err.Error()), nil
	}
	return jsonResult(routes), nil
}

func (s *Server) handleSchema(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if r := s.withFreshIndex(ctx); r != nil {
		return r, nil
	}
	args, err := parseArgs(req)
	if err != nil {
		return errResult(err.Error()), nil
	}
	module := getStringArg(args, "module")
	if module == "" {
		return errResult("module is required"), nil
	}

	schemas, err := s.engine.Schema(module)
	if err != nil {
		return errResult(err.Error()), nil
	}
	return jsonResult(schemas), nil
}
