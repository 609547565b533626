package store

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kodemap/exgraph/internal/record"
)

func TestWriteAndStreamRecords(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)

	line1, err := NewLine(record.KindModule, record.ModuleDef{Module: "A", File: "a.ex"}, record.SourceSyntactic, record.ConfidenceHigh)
	require.NoError(t, err)
	line2, err := NewLine(record.KindFunction, record.FunctionDef{Module: "A", Name: "foo", Arity: 0, File: "a.ex"}, record.SourceSyntactic, record.ConfidenceHigh)
	require.NoError(t, err)

	require.NoError(t, s.WriteRecords([]Line{line1, line2}))
	require.True(t, fileExists(s.IndexPath()))

	var got []Line
	require.NoError(t, s.StreamRecords(func(l Line) bool {
		got = append(got, l)
		return true
	}))
	require.Len(t, got, 2)
	require.Equal(t, record.KindModule, got[0].Kind)
	require.Equal(t, record.KindFunction, got[1].Kind)
}

func TestWriteRecordsIsAtomicRewrite(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)

	l1, _ := NewLine(record.KindModule, record.ModuleDef{Module: "A"}, record.SourceSyntactic, record.ConfidenceHigh)
	require.NoError(t, s.WriteRecords([]Line{l1, l1, l1}))

	l2, _ := NewLine(record.KindModule, record.ModuleDef{Module: "B"}, record.SourceSyntactic, record.ConfidenceHigh)
	require.NoError(t, s.WriteRecords([]Line{l2}))

	all, err := s.ReadAllRecords()
	require.NoError(t, err)
	require.Len(t, all, 1)
}

func TestRemoveRecordsForFiles(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)

	keep, _ := NewLine(record.KindModule, record.ModuleDef{Module: "Keep", File: "keep.ex"}, record.SourceSyntactic, record.ConfidenceHigh)
	drop, _ := NewLine(record.KindModule, record.ModuleDef{Module: "Drop", File: "drop.ex"}, record.SourceSyntactic, record.ConfidenceHigh)
	require.NoError(t, s.WriteRecords([]Line{keep, drop}))

	require.NoError(t, s.RemoveRecordsForFiles(map[string]bool{"drop.ex": true}))

	all, err := s.ReadAllRecords()
	require.NoError(t, err)
	require.Len(t, all, 1)
}

func TestManifestRoundTrip(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)

	m := NewManifest(s.Root(), "test-1.0")
	m.Files["lib/a.ex"] = record.FileState{Path: "lib/a.ex", Size: 10, Fingerprint: "deadbeef"}
	m.ModuleToFile["A"] = "lib/a.ex"
	m.RecordCount = 5

	require.NoError(t, s.WriteManifest(m))

	got, err := s.ReadManifest()
	require.NoError(t, err)
	require.Equal(t, m.SchemaVersion, got.SchemaVersion)
	require.Equal(t, m.ProjectRoot, got.ProjectRoot)
	require.Equal(t, m.Files, got.Files)
	require.Equal(t, m.ModuleToFile, got.ModuleToFile)
	require.Equal(t, m.RecordCount, got.RecordCount)
}

func TestSchemaCompatible(t *testing.T) {
	m := NewManifest("/tmp/proj", "v1")
	require.True(t, m.SchemaCompatible())
	m.SchemaVersion = SchemaVersion + 1
	require.False(t, m.SchemaCompatible())
}

func TestIndexExists(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	require.False(t, s.IndexExists())

	require.NoError(t, s.WriteManifest(NewManifest(s.Root(), "v1")))
	require.False(t, s.IndexExists())

	require.NoError(t, s.WriteRecords(nil))
	require.True(t, s.IndexExists())
}

func TestClear(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, s.WriteRecords(nil))
	require.NoError(t, s.Clear())
	require.False(t, s.IndexExists())
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
