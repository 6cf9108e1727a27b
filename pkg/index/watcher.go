package index

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher monitors filesystem changes under a project root and triggers
// incremental re-embedding of changed files through a HybridIndex,
// debounced so a burst of saves from one edit doesn't re-embed repeatedly.
type Watcher struct {
	idx        *HybridIndex
	root       string
	watcher    *fsnotify.Watcher
	debounceMs int

	running bool
	stopCh  chan struct{}
	mu      sync.RWMutex

	pending   map[string]time.Time
	pendingMu sync.Mutex
}

// NewWatcher creates a watcher that re-indexes into idx.
func NewWatcher(idx *HybridIndex, root string, debounceMs int) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if debounceMs <= 0 {
		debounceMs = 500
	}
	return &Watcher{
		idx:        idx,
		root:       root,
		watcher:    fsWatcher,
		debounceMs: debounceMs,
		stopCh:     make(chan struct{}),
		pending:    make(map[string]time.Time),
	}, nil
}

// Start begins watching for file changes.
func (w *Watcher) Start() error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	if err := w.addDirectories(); err != nil {
		return fmt.Errorf("add directories: %w", err)
	}

	go w.processEvents()
	go w.processDebounced()
	return nil
}

// Stop stops the file watcher.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.running {
		return nil
	}
	w.running = false
	close(w.stopCh)
	return w.watcher.Close()
}

// IsRunning returns whether the watcher is active.
func (w *Watcher) IsRunning() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.running
}

func (w *Watcher) addDirectories() error {
	return filepath.Walk(w.root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return nil
		}
		rel, _ := filepath.Rel(w.root, path)
		if w.shouldSkipDir(rel) {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			fmt.Fprintf(os.Stderr, "warning: cannot watch %s: %v\n", path, err)
		}
		return nil
	})
}

func (w *Watcher) shouldSkipDir(relPath string) bool {
	skipDirs := []string{"vendor", ".git", "node_modules", ".merlin"}
	for _, dir := range skipDirs {
		if relPath == dir || strings.HasPrefix(relPath, dir+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

func (w *Watcher) processEvents() {
	for {
		select {
		case <-w.stopCh:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.pendingMu.Lock()
			w.pending[event.Name] = time.Now()
			w.pendingMu.Unlock()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			fmt.Fprintf(os.Stderr, "watcher error: %v\n", err)
		}
	}
}

func (w *Watcher) processDebounced() {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.processPendingFiles()
		}
	}
}

func (w *Watcher) processPendingFiles() {
	w.pendingMu.Lock()
	defer w.pendingMu.Unlock()

	now := time.Now()
	debounce := time.Duration(w.debounceMs) * time.Millisecond

	for path, ts := range w.pending {
		if now.Sub(ts) < debounce {
			continue
		}
		delete(w.pending, path)

		content, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		rel, err := filepath.Rel(w.root, path)
		if err != nil {
			rel = path
		}
		if err := w.idx.IndexFile(context.Background(), rel, content); err != nil {
			fmt.Fprintf(os.Stderr, "error indexing %s: %v\n", rel, err)
		}
	}
}
