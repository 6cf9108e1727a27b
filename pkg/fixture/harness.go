package fixture

import (
	"context"
	"sync"

	"github.com/ternarybob/merlin/pkg/agent"
	"github.com/ternarybob/merlin/pkg/core"
	"github.com/ternarybob/merlin/pkg/lock"
	"github.com/ternarybob/merlin/pkg/script"
	"github.com/ternarybob/merlin/pkg/validate"
	"github.com/ternarybob/merlin/pkg/workspace"
)

// literalAssembler feeds a step's literal text straight through as its
// context, skipping real retrieval so a fixture exercises only the
// scheduler/workspace/executor/orchestrator path.
type literalAssembler struct{}

func (literalAssembler) Assemble(ctx context.Context, spec *core.StepContextSpec) (string, error) {
	if spec == nil {
		return "", nil
	}
	return spec.Literal, nil
}

// Recorder is an events.Emitter that stores every event it receives in
// arrival order, for asserting on event ordering and counts.
type Recorder struct {
	mu     sync.Mutex
	events []core.Event
}

func (r *Recorder) Send(e core.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

// Events returns a snapshot of every event recorded so far, in order.
func (r *Recorder) Events() []core.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]core.Event, len(r.events))
	copy(out, r.events)
	return out
}

// Kinds returns just the recorded events' Kind values, in order.
func (r *Recorder) Kinds() []core.EventKind {
	evts := r.Events()
	kinds := make([]core.EventKind, len(evts))
	for i, e := range evts {
		kinds[i] = e.Kind
	}
	return kinds
}

// Harness wires a real scheduler, lock manager, workspace, step executor,
// and orchestrator around a root directory and a provider, recording
// every emitted event. It is the fixture runner's standard rig: every
// scenario test builds one Harness; scenarios A-C drive it through
// Orchestrator.ExecuteTasks, while D and E drive a StepExecutor directly.
type Harness struct {
	Root         string
	Recorder     *Recorder
	State        *workspace.State
	Locks        *lock.Manager
	Orchestrator *agent.Orchestrator
}

// NewHarness builds a Harness rooted at root, driven by provider.
func NewHarness(root string, provider core.ModelProvider) (*Harness, error) {
	state, err := workspace.Load(root)
	if err != nil {
		return nil, err
	}
	locks := lock.New()
	rec := &Recorder{}
	executor := agent.NewStepExecutor(
		provider,
		script.NewRegistryWithFileTools(root),
		literalAssembler{},
		validate.New(nil),
		root,
		agent.WithEmitter(rec),
	)
	orch := agent.NewOrchestrator(nil, executor, locks, state, agent.WithOrchestratorEmitter(rec))
	return &Harness{Root: root, Recorder: rec, State: state, Locks: locks, Orchestrator: orch}, nil
}
