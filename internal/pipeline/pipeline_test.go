package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kodemap/exgraph/internal/store"
)

func writeProjectFile(t *testing.T, root, relPath, content string) {
	t.Helper()
	full := filepath.Join(root, relPath)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
}

func TestRunFullIndexWritesManifestAndRecords(t *testing.T) {
	root := t.TempDir()
	writeProjectFile(t, root, "lib/app/math.ex", `defmodule App.Math do
  @spec add(integer, integer) :: integer
  def add(a, b), do: a + b
end
`)

	s, err := store.Open(root)
	require.NoError(t, err)

	p := New(context.Background(), s, root)
	require.NoError(t, p.Run())

	require.True(t, s.IndexExists())
	manifest, err := s.ReadManifest()
	require.NoError(t, err)
	require.Equal(t, 1, manifest.FileCount)
	require.Contains(t, manifest.ModuleToFile, "App.Math")

	lines, err := s.ReadAllRecords()
	require.NoError(t, err)
	require.NotEmpty(t, lines)
}

func TestRunIncrementalNoopWhenNothingChanged(t *testing.T) {
	root := t.TempDir()
	writeProjectFile(t, root, "lib/app/math.ex", "defmodule App.Math do\nend\n")

	s, err := store.Open(root)
	require.NoError(t, err)
	p := New(context.Background(), s, root)
	require.NoError(t, p.Run())

	before, err := s.ReadManifest()
	require.NoError(t, err)

	require.NoError(t, p.Run())

	after, err := s.ReadManifest()
	require.NoError(t, err)
	require.Equal(t, before.FileCount, after.FileCount)
}

func TestRunIncrementalPicksUpNewFile(t *testing.T) {
	root := t.TempDir()
	writeProjectFile(t, root, "lib/app/math.ex", "defmodule App.Math do\nend\n")

	s, err := store.Open(root)
	require.NoError(t, err)
	p := New(context.Background(), s, root)
	require.NoError(t, p.Run())

	writeProjectFile(t, root, "lib/app/string_utils.ex", "defmodule App.StringUtils do\nend\n")
	require.NoError(t, p.Run())

	manifest, err := s.ReadManifest()
	require.NoError(t, err)
	require.Equal(t, 2, manifest.FileCount)
	require.Contains(t, manifest.ModuleToFile, "App.StringUtils")
	require.Contains(t, manifest.ModuleToFile, "App.Math")
}

func TestRunIncrementalPreservesUnchangedModuleGraph(t *testing.T) {
	root := t.TempDir()
	writeProjectFile(t, root, "lib/app/math.ex", "defmodule App.Math do\nend\n")
	writeProjectFile(t, root, "lib/app/calc.ex", "defmodule App.Calc do\n  alias App.Math\nend\n")

	s, err := store.Open(root)
	require.NoError(t, err)
	p := New(context.Background(), s, root)
	require.NoError(t, p.Run())

	before, err := s.ReadManifest()
	require.NoError(t, err)
	require.Contains(t, before.Dependents, "App.Math")
	require.Contains(t, before.Dependents["App.Math"], "App.Calc")

	writeProjectFile(t, root, "lib/app/string_utils.ex", "defmodule App.StringUtils do\nend\n")
	require.NoError(t, p.Run())

	after, err := s.ReadManifest()
	require.NoError(t, err)
	require.Contains(t, after.ModuleToFile, "App.Math")
	require.Contains(t, after.ModuleToFile, "App.Calc")
	require.Contains(t, after.Dependents, "App.Math")
	require.Contains(t, after.Dependents["App.Math"], "App.Calc")
}
