// Package persist serializes task state to disk: compressed per-task
// snapshot files under .merlin/tasks/, indexed by a small embedded
// database so a restart can list recent tasks without decompressing
// every file. Thread state is not persisted. Grounded on the donor's
// pkg/session file-snapshot idiom,
// generalized from one JSON file per session into a compressed binary
// file per task plus a bbolt index, matching the index cache's existing
// choice of klauspost/compress.
package persist

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zstd"
	bolt "go.etcd.io/bbolt"

	"github.com/ternarybob/merlin/pkg/core"
)

const snapshotVersion = 1

var tasksBucket = []byte("tasks")

// TaskSnapshot is the durable record of one task's state: enough to
// resume progress reporting or answer "what happened to this task"
// after a restart. It is never partially written — SaveTask replaces
// the whole file.
type TaskSnapshot struct {
	TaskId      core.TaskId
	Task        *core.Task
	List        *core.TaskList
	StepResults []core.StepResult
	Result      *core.TaskResult
	CreatedAt   int64
	UpdatedAt   int64
}

type snapshotFile struct {
	Version  int
	Snapshot TaskSnapshot
}

// indexEntry is the small record kept in the bbolt index, enough to
// list and filter tasks without touching the compressed snapshot file.
type indexEntry struct {
	TaskId    core.TaskId
	Status    core.TaskListStatus
	Success   bool
	UpdatedAt int64
}

// Store persists TaskSnapshots as one zstd-compressed gob file per task
// under dir, with a bbolt database at dir/index.db tracking metadata for
// fast listing. Safe for concurrent use.
type Store struct {
	dir string
	db  *bolt.DB
}

// Open creates dir if needed and opens (creating if absent) its index
// database.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create task store dir: %w", err)
	}
	db, err := bolt.Open(filepath.Join(dir, "index.db"), 0o644, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open task index: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(tasksBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init task index bucket: %w", err)
	}
	return &Store{dir: dir, db: db}, nil
}

// Close releases the index database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) path(id core.TaskId) string {
	return filepath.Join(s.dir, string(id)+".snap")
}

// SaveTask writes snap's compressed file and updates the index entry.
// Called on an interval by a caller-owned ticker and again on every
// terminal event (TaskCompleted/TaskFailed), so the on-disk state never
// lags more than one interval behind a still-running task.
func (s *Store) SaveTask(snap TaskSnapshot) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(snapshotFile{Version: snapshotVersion, Snapshot: snap}); err != nil {
		return fmt.Errorf("encode task snapshot: %w", err)
	}

	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return fmt.Errorf("create zstd encoder: %w", err)
	}
	defer enc.Close()
	compressed := enc.EncodeAll(buf.Bytes(), nil)

	if err := os.WriteFile(s.path(snap.TaskId), compressed, 0o644); err != nil {
		return fmt.Errorf("write task snapshot: %w", err)
	}

	entry := indexEntry{TaskId: snap.TaskId, UpdatedAt: snap.UpdatedAt}
	if snap.List != nil {
		entry.Status = snap.List.Status()
	}
	if snap.Result != nil {
		entry.Success = snap.Result.Success
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		var eb bytes.Buffer
		if err := gob.NewEncoder(&eb).Encode(entry); err != nil {
			return fmt.Errorf("encode index entry: %w", err)
		}
		return tx.Bucket(tasksBucket).Put([]byte(snap.TaskId), eb.Bytes())
	})
}

// LoadTask reads back a task's full snapshot from its compressed file.
func (s *Store) LoadTask(id core.TaskId) (*TaskSnapshot, error) {
	data, err := os.ReadFile(s.path(id))
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("load task %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read task snapshot: %w", err)
	}

	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	defer dec.Close()
	raw, err := dec.DecodeAll(data, nil)
	if err != nil {
		return nil, &core.CacheInvalidError{Reason: fmt.Sprintf("corrupt snapshot: %s", s.path(id))}
	}

	var sf snapshotFile
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&sf); err != nil {
		return nil, &core.CacheInvalidError{Reason: fmt.Sprintf("undecodable snapshot: %s", s.path(id))}
	}
	if sf.Version != snapshotVersion {
		return nil, &core.CacheInvalidError{Reason: fmt.Sprintf("version mismatch: %s", s.path(id))}
	}
	return &sf.Snapshot, nil
}

// ListTasks returns every indexed task's metadata without reading any
// compressed snapshot file, used to populate a startup summary.
func (s *Store) ListTasks() ([]indexEntry, error) {
	var out []indexEntry
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(tasksBucket).ForEach(func(k, v []byte) error {
			var e indexEntry
			if err := gob.NewDecoder(bytes.NewReader(v)).Decode(&e); err != nil {
				return nil // skip a corrupt index entry rather than fail the whole listing
			}
			out = append(out, e)
			return nil
		})
	})
	return out, err
}

// DeleteTask removes a task's snapshot file and index entry.
func (s *Store) DeleteTask(id core.TaskId) error {
	if err := os.Remove(s.path(id)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove task snapshot: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(tasksBucket).Delete([]byte(id))
	})
}
