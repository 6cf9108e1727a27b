package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ternarybob/merlin/pkg/core"
	"github.com/ternarybob/merlin/pkg/lock"
	"github.com/ternarybob/merlin/pkg/script"
	"github.com/ternarybob/merlin/pkg/validate"
	"github.com/ternarybob/merlin/pkg/workspace"
)

type fakeAnalyzer struct {
	tasks []*core.Task
}

func (f fakeAnalyzer) Analyze(ctx context.Context, requestText string) (core.TaskAnalysis, error) {
	return core.TaskAnalysis{Tasks: f.tasks}, nil
}

func newTestOrchestrator(t *testing.T, provider core.ModelProvider) *Orchestrator {
	t.Helper()
	state, err := workspace.Load(t.TempDir())
	require.NoError(t, err)
	locks := lock.New()
	exec := NewStepExecutor(provider, script.NewRegistry(), literalAssembler{}, validate.New(nil), t.TempDir())
	return NewOrchestrator(nil, exec, locks, state)
}

func TestExecuteTasksRunsIndependentTasksToCompletion(t *testing.T) {
	provider := fakeProvider{text: "return \"ok\""}
	orch := newTestOrchestrator(t, provider)

	tasks := []*core.Task{
		{ID: core.NewTaskId(), Description: "first"},
		{ID: core.NewTaskId(), Description: "second"},
	}

	results, err := orch.ExecuteTasks(context.Background(), tasks)
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, r := range results {
		require.True(t, r.Success)
	}
}

func TestExecuteTasksRespectsDependencyOrder(t *testing.T) {
	provider := fakeProvider{text: "return \"ok\""}
	orch := newTestOrchestrator(t, provider)

	root := core.NewTaskId()
	dependent := core.NewTaskId()
	tasks := []*core.Task{
		{ID: root, Description: "root"},
		{ID: dependent, Description: "dependent", DependsOn: []core.TaskId{root}},
	}

	results, err := orch.ExecuteTasks(context.Background(), tasks)
	require.NoError(t, err)
	require.Len(t, results, 2)
}

func TestProcessRequestAnalyzesThenExecutes(t *testing.T) {
	provider := fakeProvider{text: "return \"ok\""}
	state, err := workspace.Load(t.TempDir())
	require.NoError(t, err)
	locks := lock.New()
	exec := NewStepExecutor(provider, script.NewRegistry(), literalAssembler{}, validate.New(nil), t.TempDir())
	task := &core.Task{ID: core.NewTaskId(), Description: "from request"}
	orch := NewOrchestrator(fakeAnalyzer{tasks: []*core.Task{task}}, exec, locks, state)

	results, err := orch.ProcessRequest(context.Background(), "please do the thing")
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.True(t, results[0].Success)
}
