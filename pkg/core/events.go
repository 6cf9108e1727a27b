package core

// EventKind discriminates the Event union.
type EventKind string

const (
	EventTaskStarted        EventKind = "task_started"
	EventTaskProgress       EventKind = "task_progress"
	EventTaskOutput         EventKind = "task_output"
	EventTaskStepStarted    EventKind = "task_step_started"
	EventTaskStepCompleted  EventKind = "task_step_completed"
	EventTaskStepFailed     EventKind = "task_step_failed"
	EventToolCallStarted    EventKind = "tool_call_started"
	EventToolCallCompleted  EventKind = "tool_call_completed"
	EventSystemMessage      EventKind = "system_message"
	EventTaskCompleted      EventKind = "task_completed"
	EventTaskFailed         EventKind = "task_failed"
)

// Event is the single wire shape for everything sent over the event bus.
// Only the fields relevant to Kind are populated; one flat struct beats
// per-kind structs once the payload is marshaled straight to JSON for an
// external UI.
type Event struct {
	Kind       EventKind `json:"kind"`
	TaskId     TaskId    `json:"task_id,omitempty"`
	ParentId   TaskId    `json:"parent_id,omitempty"`
	StepId     StepId    `json:"step_id,omitempty"`
	Stage      string    `json:"stage,omitempty"`
	Current    int       `json:"current,omitempty"`
	Total      *int      `json:"total,omitempty"`
	Message    string    `json:"message,omitempty"`
	Text       string    `json:"text,omitempty"`
	Level      string    `json:"level,omitempty"`
	ToolName   string    `json:"tool_name,omitempty"`
	Result     *TaskResult `json:"result,omitempty"`
	Error      string    `json:"error,omitempty"`
	Cancelled  bool      `json:"cancelled,omitempty"`
}
