package tools

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kodemap/exgraph/internal/store"
)

func newTestServer(t *testing.T) (*Server, string) {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "lib", "app"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "lib", "app", "math.ex"), []byte(`defmodule App.Math do
  @spec add(integer, integer) :: integer
  def add(a, b), do: a + b
end
`), 0o644))

	s, err := store.Open(root)
	require.NoError(t, err)
	return NewServer(s, root), root
}

func TestToolNamesIncludesAllEleven(t *testing.T) {
	srv, _ := newTestServer(t)
	names := srv.ToolNames()
	require.Len(t, names, 11)
	require.Contains(t, names, "index")
	require.Contains(t, names, "function_definition")
	require.Contains(t, names, "function_callers")
	require.Contains(t, names, "function_callees")
	require.Contains(t, names, "routes")
	require.Contains(t, names, "schema")
	require.Contains(t, names, "impact_analysis")
	require.Contains(t, names, "function_spec")
	require.Contains(t, names, "module_types")
	require.Contains(t, names, "type_errors")
}

func TestCallToolIndexThenFunctionDefinition(t *testing.T) {
	srv, _ := newTestServer(t)
	ctx := context.Background()

	_, err := srv.CallTool(ctx, "index", nil)
	require.NoError(t, err)

	args, _ := json.Marshal(map[string]string{"mfa": "App.Math.add/2"})
	res, err := srv.CallTool(ctx, "function_definition", args)
	require.NoError(t, err)
	require.False(t, res.IsError)
}

func TestCallToolUnknownToolErrors(t *testing.T) {
	srv, _ := newTestServer(t)
	_, err := srv.CallTool(context.Background(), "not_a_tool", nil)
	require.Error(t, err)
}

func TestCallToolFunctionDefinitionRequiresMFA(t *testing.T) {
	srv, _ := newTestServer(t)
	res, err := srv.CallTool(context.Background(), "function_definition", nil)
	require.NoError(t, err)
	require.True(t, res.IsError)
}
