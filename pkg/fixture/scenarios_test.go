package fixture

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ternarybob/merlin/pkg/agent"
	"github.com/ternarybob/merlin/pkg/core"
	"github.com/ternarybob/merlin/pkg/script"
	"github.com/ternarybob/merlin/pkg/validate"
)

// Scenario A — simple implementation: a fresh project with lib.rs,
// and a provider that writes bar.rs and returns "done". Expect the
// file to exist with the given content, a successful TaskResult carrying
// that text, and exactly one TaskCompleted event for the task.
func TestScenarioA_SimpleImplementation(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "lib.rs"), []byte("pub fn foo() {}"), 0o644))

	provider := NewMockProvider("mock", "```lua\nwriteFile({path=\"bar.rs\", content=\"pub fn bar() {}\"})\nreturn \"done\"\n```")
	h, err := NewHarness(root, provider)
	require.NoError(t, err)

	task := &core.Task{ID: core.NewTaskId(), Description: "implement bar"}
	results, err := h.Orchestrator.ExecuteTasks(context.Background(), []*core.Task{task})
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.True(t, results[0].Success)
	require.Equal(t, "done", results[0].Text)

	content, err := os.ReadFile(filepath.Join(root, "bar.rs"))
	require.NoError(t, err)
	require.Equal(t, "pub fn bar() {}", string(content))

	completed := 0
	for _, k := range h.Recorder.Kinds() {
		if k == core.EventTaskCompleted {
			completed++
		}
	}
	require.Equal(t, 1, completed)
}

// Scenario B — cyclic rejection: two tasks depending on each other are
// rejected wholesale before any task starts.
func TestScenarioB_CyclicRejection(t *testing.T) {
	root := t.TempDir()
	provider := NewMockProvider("mock")
	h, err := NewHarness(root, provider)
	require.NoError(t, err)

	a := core.NewTaskId()
	b := core.NewTaskId()
	tasks := []*core.Task{
		{ID: a, Description: "a", DependsOn: []core.TaskId{b}},
		{ID: b, Description: "b", DependsOn: []core.TaskId{a}},
	}

	_, err = h.Orchestrator.ExecuteTasks(context.Background(), tasks)
	require.Error(t, err)
	var cycleErr *core.CyclicDependencyError
	require.ErrorAs(t, err, &cycleErr)

	for _, k := range h.Recorder.Kinds() {
		require.NotEqual(t, core.EventTaskStarted, k)
	}
}

// Scenario C — file conflict serialization: two tasks both declaring
// write-set {shared.rs} must be dispatched strictly in sequence; the
// first task's completion event precedes the second task's start event.
func TestScenarioC_FileConflictSerialization(t *testing.T) {
	root := t.TempDir()
	provider := NewMockProvider("mock", "```lua\nreturn \"ok\"\n```")
	h, err := NewHarness(root, provider)
	require.NoError(t, err)

	first := core.TaskId("task-a")
	second := core.TaskId("task-b")
	tasks := []*core.Task{
		{ID: first, Description: "first", Context: &core.TaskContextSpec{WriteSet: []string{"shared.rs"}}},
		{ID: second, Description: "second", Context: &core.TaskContextSpec{WriteSet: []string{"shared.rs"}}},
	}

	results, err := h.Orchestrator.ExecuteTasks(context.Background(), tasks)
	require.NoError(t, err)
	require.Len(t, results, 2)

	completedAt := map[core.TaskId]int{}
	startedAt := map[core.TaskId]int{}
	for i, e := range h.Recorder.Events() {
		switch e.Kind {
		case core.EventTaskStarted:
			if _, ok := startedAt[e.TaskId]; !ok {
				startedAt[e.TaskId] = i
			}
		case core.EventTaskCompleted:
			if _, ok := completedAt[e.TaskId]; !ok {
				completedAt[e.TaskId] = i
			}
		}
	}

	require.Contains(t, completedAt, first)
	require.Contains(t, startedAt, second)
	require.Less(t, completedAt[first], startedAt[second],
		"the conflicting write-set forces the second task to start only after the first commits or rolls back")
}

// Scenario D — retry on soft validation failure: the first script attempt
// writes a failing marker and returns "x"; the fixed exit command greps
// for a passing marker and fails, which is a soft (retryable) error. The
// second attempt writes a passing marker and returns "y"; the same exit
// command now passes. Final result: success, text "y", after exactly two
// attempts.
func TestScenarioD_RetryOnSoftValidationFailure(t *testing.T) {
	root := t.TempDir()
	provider := NewMockProvider("mock",
		"```lua\nwriteFile({path=\"marker.txt\", content=\"FAIL\"})\nreturn \"x\"\n```",
		"```lua\nwriteFile({path=\"marker.txt\", content=\"PASS\"})\nreturn \"y\"\n```",
	)
	rec := &Recorder{}
	executor := agent.NewStepExecutor(
		provider,
		script.NewRegistryWithFileTools(root),
		literalAssembler{},
		validate.New(nil),
		root,
		agent.WithEmitter(rec),
	)

	task := &core.Task{ID: core.NewTaskId(), Description: "flaky"}
	step := &core.TaskStep{
		ID:          core.NewStepId(),
		Kind:        core.StepFeature,
		Description: "flaky",
		ExitCommand: "grep -q PASS marker.txt",
	}

	result, err := executor.Execute(context.Background(), task, step, 0)
	require.NoError(t, err)
	require.True(t, result.Success)
	require.Equal(t, "y", result.Text)
	require.Equal(t, 2, result.Attempts)
	require.Equal(t, 2, provider.CallCount())
}

// Scenario E — recursive task list: a step's script returns a TaskList of
// two sub-steps, each of whose own script returns the direct text "ok".
// Both sub-steps complete at one recursion level below the list-bearing
// step (depth 1 passed to Execute, i.e. "the second level" if the
// list-bearing step itself is counted as the first). The wrapping step's
// own start/completion events are additional to the two sub-steps' pairs,
// since Execute always brackets whichever step it was given — a
// documented simplification relative to counting only leaf sub-steps.
func TestScenarioE_RecursiveTaskList(t *testing.T) {
	root := t.TempDir()
	provider := NewMockProvider("mock",
		"```lua\nreturn {id='list', title='split', steps={{description='first half'}, {description='second half'}}}\n```",
		"```lua\nreturn \"ok\"\n```",
		"```lua\nreturn \"ok\"\n```",
	)
	rec := &Recorder{}
	executor := agent.NewStepExecutor(
		provider,
		script.NewRegistryWithFileTools(root),
		literalAssembler{},
		validate.New(nil),
		root,
		agent.WithEmitter(rec),
	)

	task := &core.Task{ID: core.NewTaskId(), Description: "split into two"}
	step := &core.TaskStep{ID: core.NewStepId(), Kind: core.StepFeature, Description: "split into two"}

	result, err := executor.Execute(context.Background(), task, step, 0)
	require.NoError(t, err)
	require.True(t, result.Success)
	require.Equal(t, "ok", result.Text)
	require.Equal(t, 3, provider.CallCount())

	started, completed := 0, 0
	for _, k := range rec.Kinds() {
		switch k {
		case core.EventTaskStepStarted:
			started++
		case core.EventTaskStepCompleted:
			completed++
		}
	}
	require.Equal(t, 3, started)
	require.Equal(t, 3, completed)
}
