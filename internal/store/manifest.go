package store

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/kodemap/exgraph/internal/record"
	"github.com/kodemap/exgraph/internal/xerr"
)

// Manifest is the index's metadata: schema version, host version, the
// project root it was built from, per-file fingerprints, the
// module→file and module→dependents maps, and summary counts.
type Manifest struct {
	SchemaVersion  int                         `json:"schema_version"`
	HostVersion    string                      `json:"host_version"`
	ProjectRoot    string                      `json:"project_root"`
	Files          map[string]record.FileState `json:"files"`           // path -> state
	ModuleToFile   map[string]string           `json:"module_to_file"`  // module -> file
	ModuleDeps     map[string][]string         `json:"module_deps"`     // module -> modules it depends on
	Dependents     map[string][]string         `json:"dependents"`      // module -> modules that depend on it
	RecordCount    int                         `json:"record_count"`
	FileCount      int                         `json:"file_count"`
	GeneratedAtRFC string                      `json:"generated_at"`
}

// NewManifest returns an empty manifest stamped with the current schema
// version and host version.
func NewManifest(projectRoot, hostVersion string) *Manifest {
	return &Manifest{
		SchemaVersion: SchemaVersion,
		HostVersion:   hostVersion,
		ProjectRoot:   projectRoot,
		Files:         map[string]record.FileState{},
		ModuleToFile:  map[string]string{},
		ModuleDeps:    map[string][]string{},
		Dependents:    map[string][]string{},
	}
}

// SchemaCompatible reports whether m's schema version matches the
// current code's SchemaVersion. An incompatible manifest must trigger a
// full rebuild rather than an incremental refresh.
func (m *Manifest) SchemaCompatible() bool {
	return m.SchemaVersion == SchemaVersion
}

// WriteManifest encodes m as JSON and atomically rewrites manifest.json.
func (s *Store) WriteManifest(m *Manifest) error {
	if err := ensureDir(s.dir); err != nil {
		return fmt.Errorf("store: %w", err)
	}
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("store: marshal manifest: %w", err)
	}
	tmp, err := os.CreateTemp(s.dir, "manifest-*.json.tmp")
	if err != nil {
		return fmt.Errorf("store: create temp manifest: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return fmt.Errorf("store: write manifest: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("store: close temp manifest: %w", err)
	}
	if err := os.Rename(tmpPath, s.ManifestPath()); err != nil {
		return fmt.Errorf("store: rename manifest: %w", err)
	}
	return nil
}

// ReadManifest decodes manifest.json. A missing file is reported via
// xerr.ErrNoIndex so callers can distinguish "no index yet" from a
// genuine I/O failure.
func (s *Store) ReadManifest() (*Manifest, error) {
	b, err := os.ReadFile(s.ManifestPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, xerr.ErrNoIndex
		}
		return nil, fmt.Errorf("store: read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("store: decode manifest: %w", err)
	}
	return &m, nil
}
