// Package scheduler maintains the task dependency DAG and the
// file-conflict view over a submitted Task batch. It performs cycle
// detection once on ingest and exposes a ready-set query the orchestrator
// polls as tasks complete.
package scheduler

import (
	"sort"

	orderedmap "github.com/wk8/go-ordered-map/v2"
	"github.com/ternarybob/merlin/pkg/core"
)

// color marks DFS visitation state for cycle detection.
type color int

const (
	white color = iota
	grey
	black
)

// Scheduler holds the dependency view and file-conflict view for one
// submitted batch. It is not safe for concurrent mutation of the same
// batch from multiple goroutines beyond the read-only queries it exposes;
// the orchestrator owns a single Scheduler per process_request call.
type Scheduler struct {
	// tasks preserves submission order via an ordered map, which keeps
	// cycle detection and IsComplete iteration deterministic. Dispatch
	// order comes from ReadyNonConflicting, which sorts its candidates by
	// task id on every poll.
	tasks   *orderedmap.OrderedMap[core.TaskId, *core.Task]
	depends map[core.TaskId][]core.TaskId // task -> its dependencies
	writes  map[core.TaskId][]string      // task -> declared write-set
	maxConcurrent int
}

// Option configures a Scheduler at construction.
type Option func(*Scheduler)

// WithMaxConcurrentTasks overrides the default max_concurrent_tasks bound.
func WithMaxConcurrentTasks(n int) Option {
	return func(s *Scheduler) { s.maxConcurrent = n }
}

// New ingests a task batch, builds the dependency and file-conflict views,
// and runs cycle detection once. It returns *core.CyclicDependencyError if
// the dependency digraph contains a cycle; the batch is rejected wholesale
// in that case and no Scheduler is usable from it.
func New(batch []*core.Task, opts ...Option) (*Scheduler, error) {
	s := &Scheduler{
		tasks:         orderedmap.New[core.TaskId, *core.Task](),
		depends:       make(map[core.TaskId][]core.TaskId),
		writes:        make(map[core.TaskId][]string),
		maxConcurrent: 4,
	}
	for _, opt := range opts {
		opt(s)
	}

	for _, t := range batch {
		s.tasks.Set(t.ID, t)
		s.depends[t.ID] = append([]core.TaskId(nil), t.DependsOn...)
		if t.Context != nil {
			s.writes[t.ID] = append([]string(nil), t.Context.WriteSet...)
		}
	}

	if cycle := s.detectCycle(); cycle != nil {
		return nil, &core.CyclicDependencyError{Cycle: cycle}
	}

	return s, nil
}

// detectCycle runs a grey/black-marked depth-first search over the
// dependency digraph, returning the first cycle found (as a path of task
// ids) or nil if the digraph is acyclic.
func (s *Scheduler) detectCycle() []core.TaskId {
	colors := make(map[core.TaskId]color, s.tasks.Len())
	var path []core.TaskId
	var cycle []core.TaskId

	var visit func(id core.TaskId) bool
	visit = func(id core.TaskId) bool {
		colors[id] = grey
		path = append(path, id)
		for _, dep := range s.depends[id] {
			switch colors[dep] {
			case grey:
				cycle = append(append([]core.TaskId(nil), path...), dep)
				return true
			case white:
				if visit(dep) {
					return true
				}
			}
		}
		path = path[:len(path)-1]
		colors[id] = black
		return false
	}

	for pair := s.tasks.Oldest(); pair != nil; pair = pair.Next() {
		if colors[pair.Key] == white {
			if visit(pair.Key) {
				return cycle
			}
		}
	}
	return nil
}

// MaxConcurrentTasks returns the configured in-flight task bound.
func (s *Scheduler) MaxConcurrentTasks() int { return s.maxConcurrent }

// IsComplete reports whether every task id in the batch is in completed.
func (s *Scheduler) IsComplete(completed map[core.TaskId]bool) bool {
	for pair := s.tasks.Oldest(); pair != nil; pair = pair.Next() {
		if !completed[pair.Key] {
			return false
		}
	}
	return true
}

// ReadyNonConflicting returns every task whose dependencies are a subset of
// completed and whose write-set is disjoint from the union of running
// tasks' write-sets. Ties among conflict-blocked tasks are broken in favor
// of the lexicographically smaller task id; the caller is free to dispatch
// any subset of the returned slice up to MaxConcurrentTasks.
func (s *Scheduler) ReadyNonConflicting(completed, running map[core.TaskId]bool) []*core.Task {
	runningWrites := make(map[string]bool)
	for id := range running {
		for _, p := range s.writes[id] {
			runningWrites[p] = true
		}
	}

	var candidates []*core.Task
	for pair := s.tasks.Oldest(); pair != nil; pair = pair.Next() {
		id := pair.Key
		if completed[id] || running[id] {
			continue
		}
		if !depsSatisfied(s.depends[id], completed) {
			continue
		}
		if conflictsWithRunning(s.writes[id], runningWrites) {
			continue
		}
		candidates = append(candidates, pair.Value)
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].ID < candidates[j].ID
	})

	// Drop candidates whose write-sets mutually conflict with an
	// already-selected, smaller-id candidate, so the returned set is
	// itself internally conflict-free and safe to dispatch in full.
	selectedWrites := make(map[string]bool)
	result := make([]*core.Task, 0, len(candidates))
	for _, t := range candidates {
		ws := s.writes[t.ID]
		if conflictsWithRunning(ws, selectedWrites) {
			continue
		}
		for _, p := range ws {
			selectedWrites[p] = true
		}
		result = append(result, t)
	}
	return result
}

func depsSatisfied(deps []core.TaskId, completed map[core.TaskId]bool) bool {
	for _, d := range deps {
		if !completed[d] {
			return false
		}
	}
	return true
}

func conflictsWithRunning(writeSet []string, running map[string]bool) bool {
	for _, p := range writeSet {
		if running[p] {
			return true
		}
	}
	return false
}
