// Package merlin is an embeddable SDK for an agentic code-assistant
// runtime: a conflict-aware task scheduler, a recursive step executor
// that drives a model through a scripted tool-call loop, a transactional
// copy-on-write task workspace, and a pluggable validation pipeline.
//
// # Quick Start
//
//	rt, err := merlin.New(".", merlin.WithAnthropicKey(apiKey))
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	task := &merlin.Task{ID: merlin.NewTaskId(), Description: "add a health check endpoint"}
//	results, err := rt.ExecuteTasks(ctx, []*merlin.Task{task})
//
// # Architecture
//
// A request is decomposed into a batch of Tasks by an Analyzer. The
// scheduler orders tasks by their declared dependencies and groups
// tasks with disjoint write-sets for concurrent execution. Each task
// runs inside its own TaskWorkspace, a copy-on-write overlay over the
// shared on-disk state; a StepExecutor drives the task's steps through
// a model, executing whatever tool script the model returns, validating
// the result, and retrying soft failures before the workspace commits
// or rolls back as a unit.
package merlin

import (
	"context"
	"errors"

	"github.com/ternarybob/merlin/pkg/agent"
	"github.com/ternarybob/merlin/pkg/core"
	"github.com/ternarybob/merlin/pkg/events"
	"github.com/ternarybob/merlin/pkg/llm"
	"github.com/ternarybob/merlin/pkg/lock"
	"github.com/ternarybob/merlin/pkg/script"
	"github.com/ternarybob/merlin/pkg/validate"
	"github.com/ternarybob/merlin/pkg/workspace"
)

// Task, TaskStep, and the event/result types are re-exported from
// pkg/core so callers outside this module never need to import it
// directly for everyday use.
type (
	Task       = core.Task
	TaskStep   = core.TaskStep
	TaskResult = core.TaskResult
	Event      = core.Event
)

// NewTaskId generates a fresh task identifier.
func NewTaskId() core.TaskId { return core.NewTaskId() }

// Runtime wires the scheduler, workspace, step executor, and
// orchestrator into one entry point over a working directory.
type Runtime struct {
	workdir      string
	locks        *lock.Manager
	state        *workspace.State
	tools        *script.Registry
	provider     core.ModelProvider
	executor     *agent.StepExecutor
	orchestrator *agent.Orchestrator
	bus          *events.Bus
}

// literalAssembler passes a step's literal context text straight through
// to the model without consulting the retrieval index. Runtimes that
// want codebase-aware context assembly supply their own agent.ContextAssembler
// via WithContextAssembler, built over a wired pkg/context.Builder and
// pkg/index.HybridIndex.
type literalAssembler struct{}

func (literalAssembler) Assemble(_ context.Context, spec *core.StepContextSpec) (string, error) {
	if spec == nil {
		return "", nil
	}
	return spec.Literal, nil
}

// Option configures a Runtime during New.
type Option func(*runtimeConfig) error

type runtimeConfig struct {
	provider  core.ModelProvider
	assembler agent.ContextAssembler
	analyzer  core.Analyzer
	maxDepth  int
	maxRetry  int
	stages    []validate.Stage
	eventBuf  int
}

// WithAnthropicKey configures Claude as the model provider.
func WithAnthropicKey(apiKey string) Option {
	return func(c *runtimeConfig) error {
		c.provider = llm.NewModelProviderAdapter(llm.NewRouter(llm.NewAnthropicProvider(apiKey)), "")
		return nil
	}
}

// WithOllama configures a local Ollama model as the model provider.
func WithOllama(baseURL string) Option {
	return func(c *runtimeConfig) error {
		c.provider = llm.NewModelProviderAdapter(llm.NewRouter(llm.NewOllamaProvider(baseURL)), "")
		return nil
	}
}

// WithModelProvider sets an already-constructed core.ModelProvider,
// bypassing the llm package's own provider constructors entirely.
func WithModelProvider(p core.ModelProvider) Option {
	return func(c *runtimeConfig) error {
		c.provider = p
		return nil
	}
}

// WithContextAssembler overrides the default literal-only context
// assembler with one backed by a real retrieval index.
func WithContextAssembler(a agent.ContextAssembler) Option {
	return func(c *runtimeConfig) error {
		c.assembler = a
		return nil
	}
}

// WithAnalyzer overrides the default LLM-backed request analyzer.
func WithAnalyzer(a core.Analyzer) Option {
	return func(c *runtimeConfig) error {
		c.analyzer = a
		return nil
	}
}

// WithMaxStepDepth bounds how deep a step's own sub-steps may recurse.
func WithMaxStepDepth(n int) Option {
	return func(c *runtimeConfig) error { c.maxDepth = n; return nil }
}

// WithMaxStepRetry sets how many attempts a step gets in total; a soft
// validation failure starts another attempt until that many have failed.
func WithMaxStepRetry(n int) Option {
	return func(c *runtimeConfig) error { c.maxRetry = n; return nil }
}

// WithValidationStages sets the validation pipeline's stages, run in
// order after a step's script returns a result, for steps that declare
// neither an exit predicate nor an exit command.
func WithValidationStages(stages ...validate.Stage) Option {
	return func(c *runtimeConfig) error { c.stages = stages; return nil }
}

// WithEventBuffer sets the internal event bus's channel buffer size.
func WithEventBuffer(n int) Option {
	return func(c *runtimeConfig) error { c.eventBuf = n; return nil }
}

// New builds a Runtime rooted at workdir. A model provider must be
// supplied via WithAnthropicKey, WithOllama, or WithModelProvider.
func New(workdir string, opts ...Option) (*Runtime, error) {
	cfg := &runtimeConfig{maxDepth: 3, maxRetry: 2, eventBuf: 256}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}
	if cfg.provider == nil {
		return nil, errors.New("merlin: no model provider configured: pass WithAnthropicKey, WithOllama, or WithModelProvider")
	}
	if cfg.assembler == nil {
		cfg.assembler = literalAssembler{}
	}

	state, err := workspace.Load(workdir)
	if err != nil {
		return nil, err
	}

	locks := lock.New()
	tools := script.NewRegistryWithFileTools(workdir)
	bus := events.New(cfg.eventBuf)

	executor := agent.NewStepExecutor(
		cfg.provider,
		tools,
		cfg.assembler,
		validate.New(cfg.stages),
		workdir,
		agent.WithMaxDepth(cfg.maxDepth),
		agent.WithMaxRetry(cfg.maxRetry),
		agent.WithEmitter(bus),
	)

	var analyzer core.Analyzer
	if cfg.analyzer != nil {
		analyzer = cfg.analyzer
	} else {
		analyzer = agent.NewRequestAnalyzer(cfg.provider)
	}

	orchestrator := agent.NewOrchestrator(analyzer, executor, locks, state, agent.WithOrchestratorEmitter(bus))

	return &Runtime{
		workdir:      workdir,
		locks:        locks,
		state:        state,
		tools:        tools,
		provider:     cfg.provider,
		executor:     executor,
		orchestrator: orchestrator,
		bus:          bus,
	}, nil
}

// Events returns the runtime's event stream. Callers that never drain it
// are unaffected: the bus drops events once its buffer is full rather
// than blocking task execution.
func (r *Runtime) Events() <-chan core.Event { return r.bus.Events() }

// ExecuteTasks schedules and runs an already-decomposed batch of tasks,
// honoring their declared dependencies and write-set conflicts.
func (r *Runtime) ExecuteTasks(ctx context.Context, tasks []*core.Task) ([]core.TaskResult, error) {
	return r.orchestrator.ExecuteTasks(ctx, tasks)
}

// ProcessRequest decomposes a free-text request into tasks via the
// configured Analyzer, then executes them.
func (r *Runtime) ProcessRequest(ctx context.Context, requestText string) ([]core.TaskResult, error) {
	return r.orchestrator.ProcessRequest(ctx, requestText)
}

// Workdir returns the runtime's working directory root.
func (r *Runtime) Workdir() string { return r.workdir }
