package tools

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func (s *Server) handleImpactAnalysis(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if r := s.withFreshIndex(ctx); r != nil {
		return r, nil
	}
	args, err := parseArgs(req)
	if err != nil {
		return errResult(err.Error()), nil
	}
	files := getStringSliceArg(args, "files")
	if len(files) == 0 {
		return errResult("files is required"), nil
	}
	testRootPrefix := getStringArg(args, "test_root_prefix")
	if testRootPrefix == "" {
		testRootPrefix = "test/"
	}

	impact, err := s.engine.Impact(files, testRootPrefix)
	if err != nil {
		return errResult(err.Error()), nil
	}
	return jsonResult(impact), nil
}
