package persist

import (
	"context"
	"sync"
	"time"

	"github.com/ternarybob/merlin/pkg/core"
)

// SnapshotProvider supplies the current durable state of a task on
// demand; the orchestrator implements this over its own in-flight task
// state so the scheduler never has to reach into live task internals.
type SnapshotProvider interface {
	Snapshot(taskId core.TaskId) (TaskSnapshot, bool)
}

// Scheduler saves task snapshots on a fixed interval for every task it
// has seen TaskStarted for, plus immediately on every terminal event
// (TaskCompleted/TaskFailed), matching pkg/agent's original loop
// controller's preference for a single ticker driving periodic work over
// one goroutine per task.
type Scheduler struct {
	store    *Store
	provider SnapshotProvider
	events   <-chan core.Event
	interval time.Duration

	mu     sync.Mutex
	active map[core.TaskId]struct{}
}

// NewScheduler constructs a Scheduler. interval <= 0 defaults to 30s.
func NewScheduler(store *Store, provider SnapshotProvider, events <-chan core.Event, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Scheduler{
		store:    store,
		provider: provider,
		events:   events,
		interval: interval,
		active:   make(map[core.TaskId]struct{}),
	}
}

// Run drains events and saves snapshots until ctx is cancelled or the
// event channel closes. Intended to run in its own goroutine.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.saveAll()
			return
		case <-ticker.C:
			s.saveAll()
		case e, ok := <-s.events:
			if !ok {
				return
			}
			s.handle(e)
		}
	}
}

func (s *Scheduler) handle(e core.Event) {
	switch e.Kind {
	case core.EventTaskStarted:
		s.mu.Lock()
		s.active[e.TaskId] = struct{}{}
		s.mu.Unlock()
	case core.EventTaskCompleted, core.EventTaskFailed:
		s.saveOne(e.TaskId)
		s.mu.Lock()
		delete(s.active, e.TaskId)
		s.mu.Unlock()
	}
}

func (s *Scheduler) saveAll() {
	s.mu.Lock()
	ids := make([]core.TaskId, 0, len(s.active))
	for id := range s.active {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	for _, id := range ids {
		s.saveOne(id)
	}
}

func (s *Scheduler) saveOne(id core.TaskId) {
	snap, ok := s.provider.Snapshot(id)
	if !ok {
		return
	}
	_ = s.store.SaveTask(snap) // best-effort: a failed snapshot write never aborts the task
}
