// Package script is the tool registry and script runtime.
// Model output runs as a script against registered host tools; the host
// embeds github.com/yuin/gopher-lua as its scripting VM, the closest real,
// already-present embeddable interpreter in the dependency graph to the
// JavaScript/TypeScript VM the original design called for. Tools are
// presented to scripts as global functions that marshal arguments to JSON,
// call the host, and return the host's JSON result, matching the JSON-
// first tool-call convention already used by pkg/llm's Tool/ToolCall
// shapes.
package script

import (
	"context"
	"encoding/json"

	"github.com/ternarybob/merlin/pkg/core"
)

// Tool is a named unit of host functionality a script may call.
type Tool interface {
	Name() string
	Description() string
	// Schema is the tool's JSON-schema input description, used both for
	// prompting and for validating arguments before Execute runs.
	Schema() map[string]any
	// Declaration is a TypeScript-style function declaration string,
	// included in prompts so the model knows the tool's shape.
	Declaration() string
	Execute(ctx context.Context, input json.RawMessage) (json.RawMessage, error)
}

// Registry maps tool name to Tool and exposes list/execute.
type Registry struct {
	tools map[string]Tool
	order []string
}

// NewRegistry constructs an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool, replacing any existing tool of the same name.
func (r *Registry) Register(t Tool) {
	if _, exists := r.tools[t.Name()]; !exists {
		r.order = append(r.order, t.Name())
	}
	r.tools[t.Name()] = t
}

// ListTools returns every registered tool in registration order.
func (r *Registry) ListTools() []Tool {
	out := make([]Tool, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name])
	}
	return out
}

// Execute runs a named tool. core.ToolError{NotFound} if the tool is
// unregistered; the tool's own Execute may return core.ToolError{InvalidInput}
// or core.ToolError{ExecutionFailed}.
func (r *Registry) Execute(ctx context.Context, name string, input json.RawMessage) (json.RawMessage, error) {
	t, ok := r.tools[name]
	if !ok {
		return nil, &core.ToolError{Kind: core.ToolNotFound, Tool: name}
	}
	return t.Execute(ctx, input)
}

// NewRegistryWithFileTools builds a Registry carrying the standard file
// and shell tools rooted at root: readFile, writeFile, listFiles, delete,
// edit, show, bash. This is the registry shape every task currently
// shares; a future per-task registry (see pkg/workspace's TaskWorkspace
// overlay note) would construct one of these per task root instead of
// once per process.
func NewRegistryWithFileTools(root string) *Registry {
	r := NewRegistry()
	r.Register(NewReadFileTool(root))
	r.Register(NewWriteFileTool(root))
	r.Register(NewListFilesTool(root))
	r.Register(NewDeleteTool(root))
	r.Register(NewEditTool(root))
	r.Register(NewShowTool(root))
	r.Register(NewBashTool(root))
	return r
}
