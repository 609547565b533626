package typespec

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kodemap/exgraph/internal/discover"
	"github.com/kodemap/exgraph/internal/lang"
	"github.com/kodemap/exgraph/internal/record"
)

func writeModule(t *testing.T, dir, name, content string) discover.FileInfo {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return discover.FileInfo{Path: path, RelPath: name, Language: lang.Elixir}
}

func TestExtractSpec(t *testing.T) {
	dir := t.TempDir()
	f := writeModule(t, dir, "math.ex", `defmodule App.Math do
  @spec add(integer, integer) :: integer
  def add(a, b), do: a + b
end
`)

	out, err := Extract([]discover.FileInfo{f})
	require.NoError(t, err)
	require.Len(t, out.Specs, 1)

	s := out.Specs[0]
	require.Equal(t, "App.Math", s.Module)
	require.Equal(t, "add", s.Name)
	require.Equal(t, 2, s.Arity)
	require.Equal(t, "integer", s.ReturnType)
	require.Len(t, s.ParamTypes, 2)
}

func TestExtractTypeDef(t *testing.T) {
	dir := t.TempDir()
	f := writeModule(t, dir, "ids.ex", `defmodule App.Ids do
  @type id :: integer
  @typep internal_id :: integer
  @opaque token :: binary
end
`)

	out, err := Extract([]discover.FileInfo{f})
	require.NoError(t, err)
	require.Len(t, out.Types, 3)

	kinds := map[string]record.TypeDefKind{}
	for _, td := range out.Types {
		kinds[td.Name] = td.Kind
	}
	require.Equal(t, record.TypeDefType, kinds["id"])
	require.Equal(t, record.TypeDefPrivate, kinds["internal_id"])
	require.Equal(t, record.TypeDefOpaque, kinds["token"])
}

func TestExtractCallback(t *testing.T) {
	dir := t.TempDir()
	f := writeModule(t, dir, "behaviour.ex", `defmodule App.Handler do
  @callback handle(term) :: :ok | :error
end
`)

	out, err := Extract([]discover.FileInfo{f})
	require.NoError(t, err)
	require.Empty(t, out.Specs)
	require.Len(t, out.Types, 1)
	require.Equal(t, record.TypeDefCallback, out.Types[0].Kind)
	require.Equal(t, "handle", out.Types[0].Name)
}

func TestExtractNoAnnotationsYieldsEmpty(t *testing.T) {
	dir := t.TempDir()
	f := writeModule(t, dir, "plain.ex", "defmodule Plain do\nend\n")

	out, err := Extract([]discover.FileInfo{f})
	require.NoError(t, err)
	require.Empty(t, out.Specs)
	require.Empty(t, out.Types)
}
