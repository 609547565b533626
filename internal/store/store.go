// Package store implements the on-disk persistence layer: a manifest
// file plus a line-delimited record file, written atomically and read
// as a lazy stream.
package store

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kodemap/exgraph/internal/record"
	"github.com/kodemap/exgraph/internal/xerr"
)

// SchemaVersion is bumped whenever the on-disk record shape changes in a
// way that is not forward-compatible; a mismatch triggers a full rebuild.
const SchemaVersion = 1

// DirName is the hidden directory every store lives under, rooted at a
// project's root.
const DirName = ".exgraph"

const (
	manifestFile = "manifest.json"
	indexFile    = "index.jsonl"
	cacheDir     = "cache"
)

// Store is a handle on one project's on-disk index.
type Store struct {
	root string // project root
	dir  string // <root>/.exgraph
}

// Open returns a Store rooted at projectRoot. It does not require the
// index to already exist.
func Open(projectRoot string) (*Store, error) {
	abs, err := filepath.Abs(projectRoot)
	if err != nil {
		return nil, fmt.Errorf("store: resolve root: %w", err)
	}
	return &Store{root: abs, dir: filepath.Join(abs, DirName)}, nil
}

// Root returns the project root this store is rooted at.
func (s *Store) Root() string { return s.root }

// Dir returns the hidden index directory.
func (s *Store) Dir() string { return s.dir }

// ManifestPath returns the absolute path to manifest.json.
func (s *Store) ManifestPath() string { return filepath.Join(s.dir, manifestFile) }

// IndexPath returns the absolute path to index.jsonl.
func (s *Store) IndexPath() string { return filepath.Join(s.dir, indexFile) }

// CacheDir returns the extractor-owned scratch directory, creating it if
// necessary.
func (s *Store) CacheDir() (string, error) {
	dir := filepath.Join(s.dir, cacheDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("store: create cache dir: %w", err)
	}
	return dir, nil
}

// IndexExists reports whether both the manifest and index files are present.
func (s *Store) IndexExists() bool {
	if _, err := os.Stat(s.ManifestPath()); err != nil {
		return false
	}
	if _, err := os.Stat(s.IndexPath()); err != nil {
		return false
	}
	return true
}

// Clear removes the entire hidden index directory.
func (s *Store) Clear() error {
	if err := os.RemoveAll(s.dir); err != nil {
		return fmt.Errorf("store: clear: %w", err)
	}
	return nil
}

// Line is one JSONL record: a tagged variant over the record package's
// concrete record types.
type Line struct {
	Kind       record.Kind       `json:"kind"`
	Data       json.RawMessage   `json:"data"`
	Source     record.Source     `json:"source,omitempty"`
	Confidence record.Confidence `json:"confidence,omitempty"`
}

// EncodeLine marshals a Line to one JSON line (no trailing newline).
func EncodeLine(l Line) ([]byte, error) {
	return json.Marshal(l)
}

// NewLine builds a Line by marshaling data under kind.
func NewLine(kind record.Kind, data any, source record.Source, confidence record.Confidence) (Line, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Line{}, fmt.Errorf("store: marshal %s record: %w", kind, err)
	}
	return Line{Kind: kind, Data: raw, Source: source, Confidence: confidence}, nil
}

func ensureDir(dir string) error {
	return os.MkdirAll(dir, 0o755)
}

// WriteRecords truncates and rewrites index.jsonl atomically with the
// given lines, in the order given.
func (s *Store) WriteRecords(lines []Line) error {
	if err := ensureDir(s.dir); err != nil {
		return fmt.Errorf("store: %w", err)
	}
	tmp, err := os.CreateTemp(s.dir, "index-*.jsonl.tmp")
	if err != nil {
		return fmt.Errorf("store: create temp index: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once the rename below succeeds

	w := bufio.NewWriter(tmp)
	for _, l := range lines {
		b, err := EncodeLine(l)
		if err != nil {
			tmp.Close()
			return fmt.Errorf("store: encode line: %w", err)
		}
		if _, err := w.Write(b); err != nil {
			tmp.Close()
			return fmt.Errorf("store: write line: %w", err)
		}
		if err := w.WriteByte('\n'); err != nil {
			tmp.Close()
			return fmt.Errorf("store: write newline: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return fmt.Errorf("store: flush: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("store: close temp index: %w", err)
	}
	if err := os.Rename(tmpPath, s.IndexPath()); err != nil {
		return fmt.Errorf("store: rename index: %w", err)
	}
	return nil
}

// RewriteRecords is an alias for WriteRecords: both perform a full atomic
// rewrite; the distinction is purely one of caller intent.
func (s *Store) RewriteRecords(lines []Line) error { return s.WriteRecords(lines) }

// AppendRecords appends lines to the existing index.jsonl, creating it if
// absent. This is not atomic across the whole file: only WriteRecords
// gives that guarantee.
func (s *Store) AppendRecords(lines []Line) error {
	if err := ensureDir(s.dir); err != nil {
		return fmt.Errorf("store: %w", err)
	}
	f, err := os.OpenFile(s.IndexPath(), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("store: open index for append: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, l := range lines {
		b, err := EncodeLine(l)
		if err != nil {
			return fmt.Errorf("store: encode line: %w", err)
		}
		if _, err := w.Write(b); err != nil {
			return fmt.Errorf("store: write line: %w", err)
		}
		if err := w.WriteByte('\n'); err != nil {
			return fmt.Errorf("store: write newline: %w", err)
		}
	}
	return w.Flush()
}

// StreamRecords calls fn once per line in index.jsonl, in file order,
// stopping early (without error) if fn returns false. Malformed lines
// are skipped.
func (s *Store) StreamRecords(fn func(Line) bool) error {
	f, err := os.Open(s.IndexPath())
	if err != nil {
		if os.IsNotExist(err) {
			return xerr.ErrNoIndex
		}
		return fmt.Errorf("store: open index: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		var l Line
		if err := json.Unmarshal(scanner.Bytes(), &l); err != nil {
			continue
		}
		if !fn(l) {
			break
		}
	}
	return scanner.Err()
}

// ReadAllRecords materializes every line; graph-building queries that
// need random access use this, everything else should prefer
// StreamRecords.
func (s *Store) ReadAllRecords() ([]Line, error) {
	var out []Line
	err := s.StreamRecords(func(l Line) bool {
		out = append(out, l)
		return true
	})
	return out, err
}

// RemoveRecordsForFiles streams the index, drops any line whose
// data.file is in files, and atomically rewrites the remainder.
func (s *Store) RemoveRecordsForFiles(files map[string]bool) error {
	kept, err := s.filterOutFiles(files)
	if err != nil {
		return err
	}
	return s.WriteRecords(kept)
}

func (s *Store) filterOutFiles(files map[string]bool) ([]Line, error) {
	var kept []Line
	err := s.StreamRecords(func(l Line) bool {
		var fileHolder struct {
			File string `json:"file"`
		}
		if err := json.Unmarshal(l.Data, &fileHolder); err == nil && files[fileHolder.File] {
			return true
		}
		kept = append(kept, l)
		return true
	})
	if err != nil {
		return nil, err
	}
	return kept, nil
}
