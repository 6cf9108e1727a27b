package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ternarybob/merlin/pkg/core"
	"github.com/ternarybob/merlin/pkg/script"
	"github.com/ternarybob/merlin/pkg/validate"
)

type fakeProvider struct {
	text string
	err  error
	name string
}

func (f fakeProvider) Generate(ctx context.Context, query, context_ string) (core.Response, error) {
	if f.err != nil {
		return core.Response{}, f.err
	}
	return core.Response{Text: f.text, Provider: f.name}, nil
}
func (f fakeProvider) IsAvailable() bool               { return true }
func (f fakeProvider) Name() string                    { return f.name }
func (f fakeProvider) EstimateCost(_ string) float64   { return 0 }

type literalAssembler struct{}

func (literalAssembler) Assemble(ctx context.Context, spec *core.StepContextSpec) (string, error) {
	if spec == nil {
		return "", nil
	}
	return spec.Literal, nil
}

func newStep() *core.TaskStep {
	return &core.TaskStep{ID: core.NewStepId(), Kind: core.StepFeature, Description: "do a thing", Context: &core.StepContextSpec{Literal: "ctx"}}
}

func newTask() *core.Task {
	return &core.Task{ID: core.NewTaskId(), Description: "do a thing"}
}

func TestExecutorRunsDirectScriptResponse(t *testing.T) {
	provider := fakeProvider{text: "```lua\nreturn \"all done\"\n```", name: "fake"}
	exec := NewStepExecutor(provider, script.NewRegistry(), literalAssembler{}, validate.New(nil), t.TempDir())

	result, err := exec.Execute(context.Background(), newTask(), newStep(), 0)
	require.NoError(t, err)
	require.True(t, result.Success)
	require.Equal(t, "all done", result.Text)
}

func TestExecutorRetriesOnSoftProviderError(t *testing.T) {
	calls := 0
	provider := &countingProvider{onCall: func() (core.Response, error) {
		calls++
		if calls < 2 {
			return core.Response{}, assertErr{}
		}
		return core.Response{Text: "return \"ok\""}, nil
	}}
	exec := NewStepExecutor(provider, script.NewRegistry(), literalAssembler{}, validate.New(nil), t.TempDir())

	result, err := exec.Execute(context.Background(), newTask(), newStep(), 0)
	require.NoError(t, err)
	require.True(t, result.Success)
	require.Equal(t, 2, calls)
}

func TestExecutorRecursionLimitStopsDeepTaskLists(t *testing.T) {
	provider := fakeProvider{text: "return {id='x', title='t', steps={{description='loop'}}}"}
	exec := NewStepExecutor(provider, script.NewRegistry(), literalAssembler{}, validate.New(nil), t.TempDir(), WithMaxDepth(1))

	_, err := exec.Execute(context.Background(), newTask(), newStep(), 0)
	require.Error(t, err)
	var recErr *core.RecursionLimitError
	require.ErrorAs(t, err, &recErr)
}

type countingProvider struct {
	onCall func() (core.Response, error)
}

func (c *countingProvider) Generate(ctx context.Context, query, context_ string) (core.Response, error) {
	return c.onCall()
}
func (c *countingProvider) IsAvailable() bool             { return true }
func (c *countingProvider) Name() string                  { return "counting" }
func (c *countingProvider) EstimateCost(_ string) float64 { return 0 }

type assertErr struct{}

func (assertErr) Error() string { return "transient" }
