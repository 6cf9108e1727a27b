package workspace

import (
	"fmt"
	"sort"
	"sync"

	"github.com/ternarybob/merlin/pkg/core"
	"github.com/ternarybob/merlin/pkg/lock"
)

// TaskWorkspace is a per-task copy-on-write overlay over a State, owned by
// one task for its whole lifetime. Constructing one acquires write locks
// on every path in its set; failure aborts construction. commit verifies
// each overlaid path's base version is unchanged since construction before
// converting the overlay into a FileChange batch.
type TaskWorkspace struct {
	mu      sync.Mutex
	owner   core.TaskId
	base    *State
	locks   *lock.Manager
	scope   *lock.Scope
	atCtor  map[string]uint64 // path -> base version recorded at construction
	overlay map[string]core.FileState
	done    bool
}

// New acquires write locks on paths and returns a fresh, empty overlay for
// owner. On any lock conflict, no lock is held and the error is returned.
func New(owner core.TaskId, paths []string, base *State, locks *lock.Manager) (*TaskWorkspace, error) {
	scope, err := locks.AcquireWrite(owner, paths)
	if err != nil {
		return nil, err
	}

	atCtor := make(map[string]uint64, len(paths))
	for _, p := range paths {
		atCtor[p] = base.SnapshotVersion(p)
	}

	return &TaskWorkspace{
		owner:   owner,
		base:    base,
		locks:   locks,
		scope:   scope,
		atCtor:  atCtor,
		overlay: make(map[string]core.FileState),
	}, nil
}

// Read returns the overlay entry for path if present, else the base
// workspace value.
func (w *TaskWorkspace) Read(path string) (string, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if fs, ok := w.overlay[path]; ok {
		if fs.Kind == core.FileDeleted {
			return "", false
		}
		return fs.Content, true
	}
	return w.base.Read(path)
}

// Create records a new file in the overlay.
func (w *TaskWorkspace) Create(path, content string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.overlay[path] = core.FileState{Kind: core.FileCreated, Content: content}
}

// Modify records a changed file in the overlay.
func (w *TaskWorkspace) Modify(path, content string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.overlay[path] = core.FileState{Kind: core.FileModified, Content: content}
}

// Delete records a path's removal in the overlay.
func (w *TaskWorkspace) Delete(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.overlay[path] = core.FileState{Kind: core.FileDeleted}
}

// Commit verifies that every overlaid path's base version still matches
// the version recorded at construction, then applies the overlay to the
// base workspace as a single atomic batch and releases this workspace's
// locks. On a version mismatch it returns *core.ConflictError and the
// overlay is left untouched (the caller decides whether to retry).
func (w *TaskWorkspace) Commit() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.done {
		return fmt.Errorf("task workspace already closed")
	}

	paths := make([]string, 0, len(w.overlay))
	for p := range w.overlay {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	for _, p := range paths {
		if w.base.SnapshotVersion(p) != w.atCtor[p] {
			return &core.ConflictError{Path: p, Holder: w.owner}
		}
	}

	batch := make([]core.FileChange, 0, len(paths))
	for _, p := range paths {
		fs := w.overlay[p]
		switch fs.Kind {
		case core.FileCreated:
			batch = append(batch, core.FileChange{Kind: core.ChangeCreate, Path: p, Content: fs.Content})
		case core.FileModified:
			batch = append(batch, core.FileChange{Kind: core.ChangeModify, Path: p, Content: fs.Content})
		case core.FileDeleted:
			batch = append(batch, core.FileChange{Kind: core.ChangeDelete, Path: p})
		}
	}

	if err := w.base.ApplyChanges(batch); err != nil {
		return err
	}

	w.close()
	return nil
}

// Rollback discards the overlay and releases locks without touching the
// base workspace.
func (w *TaskWorkspace) Rollback() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.overlay = nil
	w.close()
}

// close releases the lock scope exactly once. Callers must hold w.mu.
func (w *TaskWorkspace) close() {
	if w.done {
		return
	}
	w.scope.Release()
	w.done = true
}
