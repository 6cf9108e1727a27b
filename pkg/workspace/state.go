// Package workspace holds the authoritative in-memory view of a project's
// files (WorkspaceState) and the per-task copy-on-write
// overlay layered over it (TaskWorkspace). Both are grounded
// on the scratch-arena idiom in pkg/orchestra's workdir manager: construct,
// fill, and dispose wholesale, generalized here from a filesystem scratch
// directory to an in-memory overlay map.
package workspace

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/ternarybob/merlin/pkg/core"
)

// State is the canonical path->content mapping for a project root. Every
// mutation bumps that path's version counter; apply_changes is atomic over
// its whole batch.
type State struct {
	mu       sync.RWMutex
	root     string
	files    map[string]string
	versions map[string]uint64
}

// Load reads every regular file under root into memory, skipping dot
// directories (.git, .merlin, ...). This is the single initial-load file
// I/O the component performs; subsequent reads never touch disk.
func Load(root string) (*State, error) {
	s := &State{
		root:     root,
		files:    make(map[string]string),
		versions: make(map[string]uint64),
	}

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			base := d.Name()
			if base != "." && len(base) > 0 && base[0] == '.' {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil
		}
		s.files[rel] = string(data)
		s.versions[rel] = 1
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load workspace: %w", err)
	}
	return s, nil
}

// Root returns the project root path.
func (s *State) Root() string { return s.root }

// Read returns a path's current content and whether it exists.
func (s *State) Read(path string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	content, ok := s.files[path]
	return content, ok
}

// SnapshotVersion returns the monotonically increasing version number for
// path, bumped on each mutation. Unknown paths have version 0.
func (s *State) SnapshotVersion(path string) uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.versions[path]
}

// ApplyChanges applies a batch of changes atomically: readers observe
// either the full pre-state or the full post-state, never a subset. On
// commit, content is additionally flushed to disk before the lock is
// released, so readers wait for that flush.
func (s *State) ApplyChanges(batch []core.FileChange) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, ch := range batch {
		switch ch.Kind {
		case core.ChangeCreate, core.ChangeModify:
			s.files[ch.Path] = ch.Content
			s.versions[ch.Path]++
		case core.ChangeDelete:
			delete(s.files, ch.Path)
			s.versions[ch.Path]++
		}
	}

	for _, ch := range batch {
		full := filepath.Join(s.root, ch.Path)
		switch ch.Kind {
		case core.ChangeCreate, core.ChangeModify:
			if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
				return fmt.Errorf("apply_changes: mkdir %s: %w", full, err)
			}
			if err := os.WriteFile(full, []byte(ch.Content), 0o644); err != nil {
				return fmt.Errorf("apply_changes: write %s: %w", full, err)
			}
		case core.ChangeDelete:
			if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("apply_changes: remove %s: %w", full, err)
			}
		}
	}
	return nil
}

// Paths returns every tracked relative path, in no particular order.
func (s *State) Paths() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.files))
	for p := range s.files {
		out = append(out, p)
	}
	return out
}
