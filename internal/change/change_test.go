package change

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kodemap/exgraph/internal/record"
	"github.com/kodemap/exgraph/internal/store"
)

func writeFile(t *testing.T, dir, rel, content string) record.FileState {
	t.Helper()
	path := filepath.Join(dir, rel)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	info, err := os.Stat(path)
	require.NoError(t, err)
	hash, err := store.Fingerprint(path)
	require.NoError(t, err)
	return record.FileState{Path: rel, MTime: info.ModTime().UnixNano(), Size: info.Size(), Fingerprint: hash}
}

func TestDetectAddedAndDeleted(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "new.ex", "defmodule New do\nend\n")

	m := store.NewManifest(dir, "v1")
	m.Files["gone.ex"] = record.FileState{Path: "gone.ex"}

	set, err := Detect([]string{"new.ex"}, m, dir)
	require.NoError(t, err)
	require.Equal(t, []string{"new.ex"}, set.Added)
	require.Equal(t, []string{"gone.ex"}, set.Deleted)
	require.Empty(t, set.Modified)
}

func TestDetectUnmodifiedWhenStatAndHashMatch(t *testing.T) {
	dir := t.TempDir()
	state := writeFile(t, dir, "a.ex", "defmodule A do\nend\n")

	m := store.NewManifest(dir, "v1")
	m.Files["a.ex"] = state

	set, err := Detect([]string{"a.ex"}, m, dir)
	require.NoError(t, err)
	require.Empty(t, set.Modified)
	require.Empty(t, set.Added)
	require.Empty(t, set.Deleted)
}

func TestDetectModifiedOnContentChange(t *testing.T) {
	dir := t.TempDir()
	state := writeFile(t, dir, "a.ex", "defmodule A do\nend\n")
	m := store.NewManifest(dir, "v1")
	m.Files["a.ex"] = state

	// Force mtime/size to differ by rewriting with different content.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.ex"), []byte("defmodule AChanged do\nend\n"), 0o644))

	set, err := Detect([]string{"a.ex"}, m, dir)
	require.NoError(t, err)
	require.Equal(t, []string{"a.ex"}, set.Modified)
}

func TestDetectAffectedViaDependents(t *testing.T) {
	dir := t.TempDir()
	stateB := writeFile(t, dir, "b.ex", "defmodule B do\nend\n")

	stateA := writeFile(t, dir, "a.ex", "defmodule A do\nend\n")

	m := store.NewManifest(dir, "v1")
	m.Files["b.ex"] = stateB
	m.Files["a.ex"] = stateA
	m.ModuleToFile["B"] = "b.ex"
	m.ModuleToFile["A"] = "a.ex"
	m.Dependents["B"] = []string{"A"}

	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.ex"), []byte("defmodule BChanged do\nend\n"), 0o644))

	set, err := Detect([]string{"a.ex", "b.ex"}, m, dir)
	require.NoError(t, err)
	require.Equal(t, []string{"b.ex"}, set.Modified)
	require.Equal(t, []string{"a.ex"}, set.Affected)
	require.ElementsMatch(t, []string{"b.ex", "a.ex"}, set.FilesToReindex())
}
