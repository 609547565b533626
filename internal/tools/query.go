package tools

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func (s *Server) handleFunctionDefinition(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if r := s.withFreshIndex(ctx); r != nil {
		return r, nil
	}
	args, err := parseArgs(req)
	if err != nil {
		return errResult(err.Error()), nil
	}
	mfa := getStringArg(args, "mfa")
	if mfa == "" {
		return errResult("mfa is required"), nil
	}

	defs, err := s.engine.Definition(mfa)
	if err != nil {
		return errResult(err.Error()), nil
	}
	return jsonResult(defs), nil
}

func (s *Server) handleFunctionReferences(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if r := s.withFreshIndex(ctx); r != nil {
		return r, nil
	}
	args, err := parseArgs(req)
	if err != nil {
		return errResult(err.Error()), nil
	}
	mfa := getStringArg(args, "mfa")
	if mfa == "" {
		return errResult("mfa is required"), nil
	}

	refs, err := s.engine.References(mfa)
	if err != nil {
		return errResult(err.Error()), nil
	}
	return jsonResult(refs), nil
}

func (s *Server) handleFunctionCallers(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if r := s.withFreshIndex(ctx); r != nil {
		return r, nil
	}
	args, err := parseArgs(req)
	if err != nil {
		return errResult(err.Error()), nil
	}
	mfa := getStringArg(args, "mfa")
	if mfa == "" {
		return errResult("mfa is required"), nil
	}
	depth := getIntArg(args, "depth", 1)

	hops, err := s.engine.Callers(mfa, depth)
	if err != nil {
		return errResult(err.Error()), nil
	}
	return jsonResult(hops), nil
}

func (s *Server) handleFunctionCallees(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if r := s.withFreshIndex(ctx); r != nil {
		return r, nil
	}
	args, err := parseArgs(req)
	if err != nil {
		return errResult(err.Error()), nil
	}
	mfa := getStringArg(args, "mfa")
	if mfa == "" {
		return errResult("mfa is required"), nil
	}
	depth := getIntArg(args, "depth", 1)

	hops, err := s.engine.Callees(mfa, depth)
	if err != nil {
		return errResult(err.Error()), nil
	}
	return jsonResult(hops), nil
}

func (s *Server) handleFunctionSpec(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if r := s.withFreshIndex(ctx); r != nil {
		return r, nil
	}
	args, err := parseArgs(req)
	if err != nil {
		return errResult(err.Error()), nil
	}
	mfa := getStringArg(args, "mfa")
	if mfa == "" {
		return errResult("mfa is required"), nil
	}

	specs, err := s.engine.FunctionSpec(mfa)
	if err != nil {
		return errResult(err.Error()), nil
	}
	return jsonResult(specs), nil
}

func (s *Server) handleModuleTypes(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
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

	types, err := s.engine.ModuleTypes(module)
	if err != nil {
		return errResult(err.Error()), nil
	}
	return jsonResult(types), nil
}

func (s *Server) handleTypeErrors(ctx context.Context, _ *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if r := s.withFreshIndex(ctx); r != nil {
		return r, nil
	}
	diags, err := s.engine.TypeErrors()
	if err != nil {
		return errResult(err.Error()), nil
	}
	return jsonResult(diags), nil
}
