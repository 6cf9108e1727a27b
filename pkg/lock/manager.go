// Package lock arbitrates per-path write locks across tasks: a mapping
// from path to a lock record, exposing all-or-nothing, non-blocking
// acquisition of a path set and scope-tied release.
package lock

import (
	"fmt"
	"sort"
	"sync"

	"github.com/ternarybob/merlin/pkg/core"
)

// record holds the current holders of one path's lock.
type record struct {
	writer  core.TaskId
	readers map[core.TaskId]struct{}
}

func (r *record) empty() bool {
	return r.writer == "" && len(r.readers) == 0
}

// Manager is the file lock manager. The zero value is not usable; use New.
type Manager struct {
	mu    sync.Mutex
	paths map[string]*record
}

// New constructs an empty lock manager.
func New() *Manager {
	return &Manager{paths: make(map[string]*record)}
}

// Scope is a released-on-drop handle over a set of locks acquired together.
// Calling Release is idempotent.
type Scope struct {
	mgr    *Manager
	owner  core.TaskId
	write  []string
	read   []string
	released bool
}

// Release drops every lock this scope holds, atomically with respect to
// other callers of the same Manager.
func (s *Scope) Release() {
	if s == nil || s.released {
		return
	}
	s.mgr.release(s.owner, s.write, s.read)
	s.released = true
}

// AcquireWrite attempts to take write locks on every path in paths on
// behalf of owner. It is all-or-nothing: on any conflict, no lock is held
// and a *core.ConflictError names the first conflicting path.
func (m *Manager) AcquireWrite(owner core.TaskId, paths []string) (*Scope, error) {
	sorted := sortedCopy(paths)

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, p := range sorted {
		if rec, ok := m.paths[p]; ok {
			if rec.writer != "" && rec.writer != owner {
				return nil, &core.ConflictError{Path: p, Holder: rec.writer}
			}
			if rec.writer == "" && len(rec.readers) > 0 {
				for holder := range rec.readers {
					if holder != owner {
						return nil, &core.ConflictError{Path: p, Holder: holder}
					}
				}
			}
		}
	}

	for _, p := range sorted {
		rec, ok := m.paths[p]
		if !ok {
			rec = &record{readers: make(map[core.TaskId]struct{})}
			m.paths[p] = rec
		}
		rec.writer = owner
	}

	return &Scope{mgr: m, owner: owner, write: sorted}, nil
}

// AcquireRead attempts to take read locks on every path in paths on behalf
// of owner. All-or-nothing, fails fast on a writer held by another task.
func (m *Manager) AcquireRead(owner core.TaskId, paths []string) (*Scope, error) {
	sorted := sortedCopy(paths)

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, p := range sorted {
		if rec, ok := m.paths[p]; ok && rec.writer != "" && rec.writer != owner {
			return nil, &core.ConflictError{Path: p, Holder: rec.writer}
		}
	}

	for _, p := range sorted {
		rec, ok := m.paths[p]
		if !ok {
			rec = &record{readers: make(map[core.TaskId]struct{})}
			m.paths[p] = rec
		}
		rec.readers[owner] = struct{}{}
	}

	return &Scope{mgr: m, owner: owner, read: sorted}, nil
}

func (m *Manager) release(owner core.TaskId, write, read []string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, p := range write {
		if rec, ok := m.paths[p]; ok && rec.writer == owner {
			rec.writer = ""
			if rec.empty() {
				delete(m.paths, p)
			}
		}
	}
	for _, p := range read {
		if rec, ok := m.paths[p]; ok {
			delete(rec.readers, owner)
			if rec.empty() {
				delete(m.paths, p)
			}
		}
	}
}

// HolderOf reports who currently holds the write lock on path, if any.
// Intended for diagnostics, not for making locking decisions (acquisition
// is the only safe decision point: HolderOf can be stale the instant after
// it returns).
func (m *Manager) HolderOf(path string) (core.TaskId, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.paths[path]
	if !ok || rec.writer == "" {
		return "", false
	}
	return rec.writer, true
}

func sortedCopy(paths []string) []string {
	out := make([]string, len(paths))
	copy(out, paths)
	sort.Strings(out)
	return out
}

// String is a debugging aid; not part of the stable API.
func (m *Manager) String() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fmt.Sprintf("lock.Manager{%d paths held}", len(m.paths))
}
