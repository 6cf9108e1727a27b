// Package core holds the shared data model for the agent runtime: task and
// step definitions, file-change and file-context shapes, and the error
// taxonomy every other package reports through.
package core

import "github.com/google/uuid"

// TaskId identifies a Task, unique process-wide and stable for its life.
type TaskId string

// StepId identifies a TaskStep within a TaskList.
type StepId string

// MessageId identifies a single message within a thread.
type MessageId string

// ThreadId identifies a persisted conversation thread.
type ThreadId string

// NewTaskId generates a fresh, process-wide unique task identifier.
func NewTaskId() TaskId { return TaskId(uuid.NewString()) }

// NewStepId generates a fresh step identifier.
func NewStepId() StepId { return StepId(uuid.NewString()) }

// NewMessageId generates a fresh message identifier.
func NewMessageId() MessageId { return MessageId(uuid.NewString()) }

// NewThreadId generates a fresh thread identifier.
func NewThreadId() ThreadId { return ThreadId(uuid.NewString()) }

// JsValueHandle references a value retained inside a script runtime (for
// example a function registered as an exit predicate). Unlike the other
// identifiers it is process-local and runtime-scoped: a monotonic counter
// is sufficient since handles are never compared or persisted across
// runtimes.
type JsValueHandle uint64
