package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/merlin/pkg/core"
	"github.com/ternarybob/merlin/pkg/events"
	"github.com/ternarybob/merlin/pkg/script"
	"github.com/ternarybob/merlin/pkg/validate"
)

// MaxRecursionDepth bounds how deep a script's emitted TaskList may
// recurse back into the step executor before a task is abandoned.
const MaxRecursionDepth = 10

// MaxRetryAttempts bounds how many attempts one step gets in total. A
// soft (recoverable) failure starts another attempt while the budget
// lasts; any other failure marks the step failed at once.
const MaxRetryAttempts = 3

// ContextAssembler builds the literal text passed to the model for one
// step's context spec (implemented by QueryBuilder over pkg/context).
type ContextAssembler interface {
	Assemble(ctx context.Context, spec *core.StepContextSpec) (string, error)
}

// StepExecutor drives one TaskStep to completion: assemble
// context, call the model, extract and run its script response, check the
// exit requirement, and recurse into any emitted TaskList. Grounded on
// pkg/orchestra/worker.go's Execute/Iterate retry shape and
// pkg/orchestra/step.go's markdown-parsing convention, generalized from a
// fixed Worker/Validator split into script execution plus a pluggable
// validation pipeline.
type StepExecutor struct {
	provider  core.ModelProvider
	tools     *script.Registry
	queries   ContextAssembler
	validator *validate.Pipeline
	workdir   string
	emitter   events.Emitter
	maxDepth  int
	maxRetry  int
}

// ExecutorOption configures a StepExecutor at construction.
type ExecutorOption func(*StepExecutor)

func WithMaxDepth(n int) ExecutorOption { return func(e *StepExecutor) { e.maxDepth = n } }
func WithMaxRetry(n int) ExecutorOption { return func(e *StepExecutor) { e.maxRetry = n } }
func WithEmitter(em events.Emitter) ExecutorOption {
	return func(e *StepExecutor) { e.emitter = em }
}

// NewStepExecutor constructs a StepExecutor. workdir is the project root
// exit commands run in; it is independent of any task's in-memory
// TaskWorkspace overlay, which never touches disk until a commit.
func NewStepExecutor(provider core.ModelProvider, tools *script.Registry, queries ContextAssembler, validator *validate.Pipeline, workdir string, opts ...ExecutorOption) *StepExecutor {
	e := &StepExecutor{
		provider:  provider,
		tools:     tools,
		queries:   queries,
		validator: validator,
		workdir:   workdir,
		emitter:   events.Discard{},
		maxDepth:  MaxRecursionDepth,
		maxRetry:  MaxRetryAttempts,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs step to completion at the given recursion depth against
// task (used for its id and, when the step carries no exit predicate of
// its own, as the validation pipeline's subject). A step whose script
// emits a TaskList recurses into Execute for each sub-step at depth+1
// rather than returning directly.
func (e *StepExecutor) Execute(ctx context.Context, task *core.Task, step *core.TaskStep, depth int) (*core.StepResult, error) {
	start := time.Now()

	if depth >= e.maxDepth {
		err := &core.RecursionLimitError{Depth: depth, Limit: e.maxDepth}
		step.Status = core.StepFailed
		step.Error = err.Error()
		return &core.StepResult{StepId: step.ID, Success: false, Error: err.Error(), DurationMs: time.Since(start).Milliseconds()}, err
	}

	step.Status = core.StepInProgress
	e.emitter.Send(core.Event{Kind: core.EventTaskStepStarted, TaskId: task.ID, StepId: step.ID})

	var lastErr error
	attempts := 0
	for attempt := 1; attempt <= e.maxRetry; attempt++ {
		attempts = attempt
		text, err := e.attempt(ctx, task, step, depth)
		if err == nil {
			step.Status = core.StepCompleted
			step.Result = text
			e.emitter.Send(core.Event{Kind: core.EventTaskStepCompleted, TaskId: task.ID, StepId: step.ID})
			return &core.StepResult{StepId: step.ID, Success: true, Text: text, DurationMs: time.Since(start).Milliseconds(), Attempts: attempts}, nil
		}
		lastErr = err
		if !core.IsSoft(err) {
			break
		}
	}

	step.Status = core.StepFailed
	step.Error = lastErr.Error()
	e.emitter.Send(core.Event{Kind: core.EventTaskStepFailed, TaskId: task.ID, StepId: step.ID, Error: lastErr.Error()})
	return &core.StepResult{StepId: step.ID, Success: false, Error: lastErr.Error(), DurationMs: time.Since(start).Milliseconds(), Attempts: attempts}, lastErr
}

func (e *StepExecutor) attempt(ctx context.Context, task *core.Task, step *core.TaskStep, depth int) (string, error) {
	query, err := e.queries.Assemble(ctx, step.Context)
	if err != nil {
		return "", fmt.Errorf("assemble context: %w", err)
	}

	resp, err := e.provider.Generate(ctx, step.Description, query)
	if err != nil {
		return "", &core.ProviderError{Provider: e.provider.Name(), Message: "generate", Err: err}
	}

	source := extractScript(resp.Text)
	rt := script.NewRuntime(ctx, e.tools)
	defer rt.Close()

	agentResp, err := rt.Run(source)
	if err != nil {
		return "", &core.ToolError{Kind: core.ToolExecutionFailed, Tool: "script", Err: err}
	}

	if !agentResp.IsDirect() {
		return e.executeList(ctx, task, agentResp.List, depth)
	}

	if err := e.checkExit(ctx, task, step, rt, agentResp.Direct); err != nil {
		return "", err
	}
	return agentResp.Direct, nil
}

func (e *StepExecutor) executeList(ctx context.Context, task *core.Task, list *core.TaskList, depth int) (string, error) {
	var lastText string
	for _, sub := range list.Steps {
		result, err := e.Execute(ctx, task, sub, depth+1)
		if err != nil {
			return "", err
		}
		lastText = result.Text
	}
	return lastText, nil
}

// checkExit runs the step's exit requirement, preferring a retained
// script predicate over an opaque shell command when both are present
// (per the exit-requirement precedence rule), and falling back to the
// validation pipeline when the step declares neither.
func (e *StepExecutor) checkExit(ctx context.Context, task *core.Task, step *core.TaskStep, rt *script.Runtime, responseText string) error {
	if step.ExitRequirement != 0 {
		ok, err := rt.Invoke(step.ExitRequirement)
		if err != nil {
			return &core.ValidationHardError{Stage: "exit_requirement", Reason: err.Error()}
		}
		if !ok {
			return &core.ValidationSoftError{Stage: "exit_requirement", Reason: "predicate returned false"}
		}
		return nil
	}
	if step.ExitCommand != "" {
		return validate.RunExitCommand(ctx, e.workdir, step.ExitCommand)
	}
	if e.validator == nil {
		return nil
	}
	result := e.validator.Run(ctx, responseText, task)
	if !result.Passed {
		return &core.ValidationSoftError{Stage: "pipeline", Reason: "validation pipeline rejected response"}
	}
	return nil
}
