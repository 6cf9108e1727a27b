package agent

import (
	"context"
	"sync"
	"time"

	"github.com/ternarybob/merlin/pkg/core"
	"github.com/ternarybob/merlin/pkg/events"
	"github.com/ternarybob/merlin/pkg/lock"
	"github.com/ternarybob/merlin/pkg/scheduler"
	"github.com/ternarybob/merlin/pkg/workspace"
)

// Orchestrator is the top-level entry point: it turns a free-text
// request into tasks, schedules conflict-free batches, and drives each
// task's root step through a StepExecutor. Grounded on
// pkg/orchestra/orchestra.go's DefaultOrchestrator phase loop
// (Analyze→Plan→Execute/Validate/Iterate→FinalValidate), regeneralized
// from its fixed three-agent pipeline into a scheduler-driven batch
// executor: "plan" becomes scheduler.New's dependency/conflict view,
// "execute+validate+iterate" collapses into one StepExecutor.Execute call
// whose own retry loop plays the iterate role.
//
// Tool calls made by a task's script run directly against the project
// directory rather than through its TaskWorkspace's in-memory overlay —
// wiring the overlay into the Lua tool globals would need a registry
// built fresh per task workspace, which the current single shared
// Registry does not support. TaskWorkspace still gates every task behind
// the file lock manager and verifies no base-version drift at commit, so
// conflict detection and the commit/rollback lifecycle still hold; only
// the literal bytes end up on disk a step early relative to the overlay
// model.
type Orchestrator struct {
	analyzer core.Analyzer
	executor *StepExecutor
	locks    *lock.Manager
	state    *workspace.State
	emitter  events.Emitter
}

// OrchestratorOption configures an Orchestrator at construction.
type OrchestratorOption func(*Orchestrator)

func WithOrchestratorEmitter(em events.Emitter) OrchestratorOption {
	return func(o *Orchestrator) { o.emitter = em }
}

// NewOrchestrator wires the shared, once-constructed containers (lock
// manager, workspace state, event bus) and the executor that already
// carries the per-task script-runtime construction.
func NewOrchestrator(analyzer core.Analyzer, executor *StepExecutor, locks *lock.Manager, state *workspace.State, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		analyzer: analyzer,
		executor: executor,
		locks:    locks,
		state:    state,
		emitter:  events.Discard{},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Analyze decomposes requestText into a task batch.
func (o *Orchestrator) Analyze(ctx context.Context, requestText string) (core.TaskAnalysis, error) {
	return o.analyzer.Analyze(ctx, requestText)
}

// ExecuteTaskStreaming runs a single task, emitting progress over the
// orchestrator's event emitter as it goes, and returns its result.
func (o *Orchestrator) ExecuteTaskStreaming(ctx context.Context, task *core.Task) core.TaskResult {
	return o.runTask(ctx, task)
}

// ExecuteTasks schedules and runs a whole task batch to completion,
// dispatching the scheduler's ready-non-conflicting set up to
// max_concurrent_tasks at a time until every task is either completed or
// failed. One task's failure never aborts sibling tasks unless they
// depend on it: a task whose dependency failed (directly or through
// another such task) is never dispatched and has no entry in the results.
func (o *Orchestrator) ExecuteTasks(ctx context.Context, tasks []*core.Task) ([]core.TaskResult, error) {
	sched, err := scheduler.New(tasks)
	if err != nil {
		return nil, err
	}

	var mu sync.Mutex
	completed := make(map[core.TaskId]bool, len(tasks))
	running := make(map[core.TaskId]bool, len(tasks))
	failed := make(map[core.TaskId]bool, len(tasks))
	results := make(map[core.TaskId]core.TaskResult, len(tasks))
	doneCh := make(chan core.TaskId, len(tasks))

	for {
		mu.Lock()
		if sched.IsComplete(completed) {
			mu.Unlock()
			break
		}
		ready := sched.ReadyNonConflicting(completed, running)
		capacity := sched.MaxConcurrentTasks() - len(running)
		dispatched, skipped := 0, 0
		for _, t := range ready {
			blocked := false
			for _, d := range t.DependsOn {
				blocked = blocked || failed[d]
			}
			if blocked {
				failed[t.ID], completed[t.ID] = true, true
				skipped++
				continue
			}
			if dispatched >= capacity {
				break
			}
			running[t.ID] = true
			dispatched++
			go func(t *core.Task) {
				result := o.runTask(ctx, t)
				mu.Lock()
				results[t.ID] = result
				mu.Unlock()
				doneCh <- t.ID
			}(t)
		}
		stuck := dispatched == 0 && len(running) == 0
		mu.Unlock()

		if stuck && skipped > 0 {
			continue // a skipped task may have held back a conflicting candidate this poll
		}
		if stuck {
			break // nothing ready and nothing in flight: an unsatisfiable dependency, not a cycle (cycles are rejected at New)
		}

		id := <-doneCh
		mu.Lock()
		completed[id] = true
		failed[id] = !results[id].Success
		delete(running, id)
		mu.Unlock()
	}

	out := make([]core.TaskResult, 0, len(tasks))
	for _, t := range tasks {
		if r, ok := results[t.ID]; ok {
			out = append(out, r)
		}
	}
	return out, nil
}

// ProcessRequest is the single-shot convenience entry point: analyze then
// execute.
func (o *Orchestrator) ProcessRequest(ctx context.Context, requestText string) ([]core.TaskResult, error) {
	analysis, err := o.Analyze(ctx, requestText)
	if err != nil {
		return nil, err
	}
	return o.ExecuteTasks(ctx, analysis.Tasks)
}

func (o *Orchestrator) runTask(ctx context.Context, task *core.Task) core.TaskResult {
	start := time.Now()
	o.emitter.Send(core.Event{Kind: core.EventTaskStarted, TaskId: task.ID, Message: task.Description})

	writeSet, patterns := taskPaths(task)
	ws, err := workspace.New(task.ID, writeSet, o.state, o.locks)
	if err != nil {
		return o.fail(task.ID, start, err)
	}

	step := &core.TaskStep{
		ID:          core.NewStepId(),
		Kind:        core.StepFeature,
		Description: task.Description,
		Context:     &core.StepContextSpec{Literal: task.Description, Globs: patterns},
	}

	stepResult, err := o.executor.Execute(ctx, task, step, 0)
	if err != nil {
		ws.Rollback()
		return o.fail(task.ID, start, err)
	}

	if err := ws.Commit(); err != nil {
		return o.fail(task.ID, start, err)
	}

	result := core.TaskResult{TaskId: task.ID, Success: true, Text: stepResult.Text, DurationMs: time.Since(start).Milliseconds()}
	o.emitter.Send(core.Event{Kind: core.EventTaskCompleted, TaskId: task.ID, Result: &result})
	return result
}

func (o *Orchestrator) fail(taskId core.TaskId, start time.Time, err error) core.TaskResult {
	result := core.TaskResult{TaskId: taskId, Success: false, Error: err.Error(), DurationMs: time.Since(start).Milliseconds()}
	o.emitter.Send(core.Event{Kind: core.EventTaskFailed, TaskId: taskId, Error: err.Error()})
	return result
}

func taskPaths(task *core.Task) (writeSet, patterns []string) {
	if task.Context == nil {
		return nil, nil
	}
	return task.Context.WriteSet, task.Context.Paths
}
