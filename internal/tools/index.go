package tools

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func (s *Server) handleIndex(ctx context.Context, _ *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if r := s.withFreshIndex(ctx); r != nil {
		return r, nil
	}
	manifest, err := s.store.ReadManifest()
	if err != nil {
		return errResult(err.Error()), nil
	}
	return jsonResult(map[string]any{
		"file_count":   manifest.FileCount,
		"record_count": manifest.RecordCount,
		"generated_at": manifest.GeneratedAtRFC,
	}), nil
}
