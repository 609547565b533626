package syntactic

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kodemap/exgraph/internal/discover"
	"github.com/kodemap/exgraph/internal/lang"
)

func writeFixture(t *testing.T, dir, name, content string) discover.FileInfo {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return discover.FileInfo{Path: path, RelPath: name, Language: lang.Elixir}
}

func TestExtractModuleAndFunctions(t *testing.T) {
	dir := t.TempDir()
	f := writeFixture(t, dir, "greeter.ex", `defmodule MyApp.Greeter do
  def greet(name) do
    IO.puts(name)
    helper(name)
  end

  defp helper(x) do
    x
  end
end
`)

	result, err := Extract(context.Background(), []discover.FileInfo{f})
	require.NoError(t, err)

	require.Len(t, result.Modules, 1)
	require.Equal(t, "MyApp.Greeter", result.Modules[0].Module)

	require.Len(t, result.Functions, 2)
	require.Equal(t, "greet", result.Functions[0].Name)
	require.Equal(t, 1, result.Functions[0].Arity)
	require.Equal(t, "helper", result.Functions[1].Name)
	require.Equal(t, false, bool(result.Functions[1].Visibility == "public"))

	require.Len(t, result.Calls, 2)
	var sawResolved, sawUnresolved bool
	for _, c := range result.Calls {
		if c.Callee == "IO.puts/1" {
			sawResolved = true
		}
		if c.Callee == "" {
			sawUnresolved = true
		}
	}
	require.True(t, sawResolved, "expected a resolved IO.puts/1 call")
	require.True(t, sawUnresolved, "expected an unresolved local call")
}

func TestExtractDirectives(t *testing.T) {
	dir := t.TempDir()
	f := writeFixture(t, dir, "repo.ex", `defmodule MyApp.Repo do
  alias MyApp.Accounts
  import Ecto.Query
  use Ecto.Repo
end
`)

	result, err := Extract(context.Background(), []discover.FileInfo{f})
	require.NoError(t, err)

	require.Len(t, result.Directives, 3)
	kinds := map[string]bool{}
	for _, d := range result.Directives {
		kinds[string(d.Kind)] = true
		require.Equal(t, "MyApp.Repo", d.Module)
	}
	require.True(t, kinds["alias"])
	require.True(t, kinds["import"])
	require.True(t, kinds["use"])
}

func TestExtractParseFailureYieldsEmpty(t *testing.T) {
	dir := t.TempDir()
	f := discover.FileInfo{Path: filepath.Join(dir, "missing.ex"), RelPath: "missing.ex", Language: lang.Elixir}

	result, err := Extract(context.Background(), []discover.FileInfo{f})
	require.NoError(t, err)
	require.Empty(t, result.Modules)
	require.Empty(t, result.Functions)
}

func TestExtractDeterministicOrdering(t *testing.T) {
	dir := t.TempDir()
	f := writeFixture(t, dir, "multi.ex", `defmodule B do
  def z, do: :ok
  def a, do: :ok
end

defmodule A do
  def only, do: :ok
end
`)

	result, err := Extract(context.Background(), []discover.FileInfo{f})
	require.NoError(t, err)
	require.Len(t, result.Modules, 2)
	require.Equal(t, "A", result.Modules[0].Module)
	require.Equal(t, "B", result.Modules[1].Module)
}
