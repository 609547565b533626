// Package change implements the incremental-refresh change detector: a
// per-file fingerprint diff plus the transitive-dependent closure over
// the module dependency graph.
package change

import (
	"os"
	"path/filepath"

	"github.com/kodemap/exgraph/internal/record"
	"github.com/kodemap/exgraph/internal/store"
)

// Set is the result of a change-detection pass.
type Set struct {
	Added    []string // current \ stored
	Modified []string // stat or hash mismatch
	Deleted  []string // stored \ current
	Affected []string // dependents of changed modules, translated back to files
}

// FilesToReindex returns added ∪ modified ∪ affected.
func (s Set) FilesToReindex() []string {
	return union(s.Added, s.Modified, s.Affected)
}

// FilesToRemove returns modified ∪ deleted ∪ affected.
func (s Set) FilesToRemove() []string {
	return union(s.Modified, s.Deleted, s.Affected)
}

func union(sets ...[]string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, set := range sets {
		for _, f := range set {
			if !seen[f] {
				seen[f] = true
				out = append(out, f)
			}
		}
	}
	return out
}

// Detect compares the current file set against the manifest's stored
// per-file state: added, deleted, modified, then affected-by-BFS.
func Detect(currentFiles []string, manifest *store.Manifest, projectRoot string) (Set, error) {
	current := toSet(currentFiles)
	stored := make(map[string]bool, len(manifest.Files))
	for path := range manifest.Files {
		stored[path] = true
	}

	var set Set
	for f := range current {
		if !stored[f] {
			set.Added = append(set.Added, f)
		}
	}
	for f := range stored {
		if !current[f] {
			set.Deleted = append(set.Deleted, f)
		}
	}

	for f := range current {
		if !stored[f] {
			continue
		}
		prior := manifest.Files[f]
		modified, err := isModified(projectRoot, f, prior)
		if err != nil {
			// Unreadable file: treat like a deletion candidate, not a
			// hard failure. Extraction swallows I/O errors the same way.
			set.Deleted = append(set.Deleted, f)
			continue
		}
		if modified {
			set.Modified = append(set.Modified, f)
		}
	}

	changed := union(set.Modified, set.Deleted)
	changedModules := collectModules(changed, manifest)
	dependentModules := bfsDependents(changedModules, manifest.Dependents)

	changedOrAdded := toSet(union(changed, set.Added))
	for _, m := range dependentModules {
		f, ok := manifest.ModuleToFile[m]
		if !ok || changedOrAdded[f] {
			continue
		}
		set.Affected = append(set.Affected, f)
	}

	return set, nil
}

func toSet(files []string) map[string]bool {
	m := make(map[string]bool, len(files))
	for _, f := range files {
		m[f] = true
	}
	return m
}

// isModified applies the two-stage fast-path check: (mtime, size) first,
// content hash only on a mismatch.
func isModified(projectRoot, relPath string, prior record.FileState) (bool, error) {
	absPath := relPath
	if projectRoot != "" {
		absPath = filepath.Join(projectRoot, relPath)
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return false, err
	}
	if info.ModTime().UnixNano() == prior.MTime && info.Size() == prior.Size {
		return false, nil
	}
	hash, err := store.Fingerprint(absPath)
	if err != nil {
		return false, err
	}
	return hash != prior.Fingerprint, nil
}

func collectModules(files []string, manifest *store.Manifest) []string {
	fileSet := toSet(files)
	var modules []string
	for mod, f := range manifest.ModuleToFile {
		if fileSet[f] {
			modules = append(modules, mod)
		}
	}
	return modules
}

// bfsDependents returns the transitive closure of dependents reachable
// from start, excluding start itself, via a standard visited-set BFS.
func bfsDependents(start []string, dependents map[string][]string) []string {
	visited := make(map[string]bool)
	for _, m := range start {
		visited[m] = true
	}
	queue := append([]string{}, start...)
	var out []string

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, dep := range dependents[cur] {
			if visited[dep] {
				continue
			}
			visited[dep] = true
			out = append(out, dep)
			queue = append(queue, dep)
		}
	}
	return out
}
