package core

// Task is a user-facing unit of requested work, created by the analyzer and
// consumed by the scheduler. It is never mutated after creation.
type Task struct {
	ID          TaskId   `json:"id"`
	Description string   `json:"description"`
	Complexity  int      `json:"complexity"` // 1-10; the source's "complexity"/"difficulty" fields are synonymous
	Context     *TaskContextSpec `json:"context,omitempty"`
	DependsOn   []TaskId `json:"depends_on,omitempty"`
}

// TaskContextSpec declares the explicit context a Task requires. The
// WriteSet field is what the scheduler's file-conflict view reads.
type TaskContextSpec struct {
	Paths    []string `json:"paths,omitempty"`
	Symbols  []string `json:"symbols,omitempty"`
	Patterns []string `json:"patterns,omitempty"`
	WriteSet []string `json:"write_set,omitempty"`
}

// StepKind classifies a TaskStep and determines its default exit command.
type StepKind string

const (
	StepDebug    StepKind = "debug"
	StepFeature  StepKind = "feature"
	StepRefactor StepKind = "refactor"
	StepVerify   StepKind = "verify"
	StepTest     StepKind = "test"
)

// DefaultExitCommand returns the default opaque shell command for a step
// kind, per the exit-command table. The vocabulary is inherited verbatim
// from the source project; an implementer may rename it for another
// ecosystem without changing any semantics here.
func DefaultExitCommand(kind StepKind) string {
	switch kind {
	case StepRefactor:
		return "cargo clippy -- -D warnings"
	case StepTest:
		return "cargo test"
	default:
		return "cargo check"
	}
}

// StepStatus is the lifecycle state of a TaskStep.
type StepStatus string

const (
	StepPending     StepStatus = "pending"
	StepInProgress  StepStatus = "in_progress"
	StepCompleted   StepStatus = "completed"
	StepFailed      StepStatus = "failed"
	StepSkipped     StepStatus = "skipped"
)

// TaskStep is one unit of model-driven work inside a TaskList.
type TaskStep struct {
	ID          StepId     `json:"id"`
	Kind        StepKind   `json:"kind"`
	Description string     `json:"description"`
	Context     *StepContextSpec `json:"context,omitempty"`

	// ExitCommand is an opaque shell string; mutually exclusive in practice
	// with ExitRequirement, though both may be set (requirement checked first).
	ExitCommand string `json:"exit_command,omitempty"`
	// ExitRequirement, when non-zero, names a script-value handle to call.
	ExitRequirement JsValueHandle `json:"exit_requirement,omitempty"`

	Status StepStatus `json:"status"`
	Result string     `json:"result,omitempty"`
	Error  string      `json:"error,omitempty"`
}

// StepContextSpec describes how to assemble the context for one step.
type StepContextSpec struct {
	Globs          []string `json:"globs,omitempty"`
	PreviousSteps  []int    `json:"previous_steps,omitempty"` // indices into the owning TaskList, doubles as a dependency list
	Literal        string   `json:"literal,omitempty"`
}

// TaskListStatus is the aggregate status of a TaskList, always recomputed
// from its steps — see AggregateStatus. The stored field is a cache, never
// a source of truth.
type TaskListStatus string

const (
	ListNotStarted       TaskListStatus = "not_started"
	ListInProgress       TaskListStatus = "in_progress"
	ListPartiallyComplete TaskListStatus = "partially_complete"
	ListCompleted        TaskListStatus = "completed"
	ListFailed           TaskListStatus = "failed"
)

// TaskList is an ordered, possibly dependency-bearing sequence of steps
// emitted by a model, with an identifier and title.
type TaskList struct {
	ID     string     `json:"id"`
	Title  string     `json:"title"`
	Steps  []*TaskStep `json:"steps"`
	status TaskListStatus
}

// AggregateStatus recomputes the TaskList's status as a pure function of
// its steps' statuses: failed if any failed; completed if all completed;
// in-progress if any in-progress; partial if any completed and the rest
// pending; not-started otherwise.
func AggregateStatus(steps []*TaskStep) TaskListStatus {
	if len(steps) == 0 {
		return ListNotStarted
	}
	var completed, inProgress, pending, failed int
	for _, s := range steps {
		switch s.Status {
		case StepFailed:
			failed++
		case StepCompleted:
			completed++
		case StepInProgress:
			inProgress++
		default:
			pending++
		}
	}
	switch {
	case failed > 0:
		return ListFailed
	case completed == len(steps):
		return ListCompleted
	case inProgress > 0:
		return ListInProgress
	case completed > 0 && pending > 0:
		return ListPartiallyComplete
	default:
		return ListNotStarted
	}
}

// Status returns the TaskList's current aggregate status, recomputing it
// from its steps rather than trusting any cached field.
func (l *TaskList) Status() TaskListStatus {
	l.status = AggregateStatus(l.Steps)
	return l.status
}

// AgentResponse is the tagged union the script runtime returns to the step
// executor: either a final string or a structured TaskList. Exactly one of
// Direct or List is set.
type AgentResponse struct {
	Direct string
	List   *TaskList
}

// IsDirect reports whether the response is a DirectResult.
func (r AgentResponse) IsDirect() bool { return r.List == nil }

// TaskResult is returned from orchestrator entry points for a single task.
type TaskResult struct {
	TaskId      TaskId `json:"task_id"`
	Success     bool   `json:"success"`
	Text        string `json:"text,omitempty"`
	PartialText string `json:"partial_text,omitempty"`
	Error       string `json:"error,omitempty"`
	Cancelled   bool   `json:"cancelled,omitempty"`
	DurationMs  int64  `json:"duration_ms"`
}

// StepResult is the outcome of executing a single TaskStep.
type StepResult struct {
	StepId     StepId `json:"step_id"`
	Success    bool   `json:"success"`
	Text       string `json:"text,omitempty"`
	Error      string `json:"error,omitempty"`
	DurationMs int64  `json:"duration_ms"`
	Attempts   int    `json:"attempts"`
}
