package script

import (
	"context"
	"encoding/json"

	"github.com/ternarybob/merlin/pkg/core"
)

// ContextProvider is the minimal surface requestContext needs from the
// context-retrieval engine. Declared here rather than
// imported from pkg/context to keep pkg/script free of a dependency on
// the retrieval engine; pkg/agent supplies the concrete implementation
// when it wires the tool registry for a task.
type ContextProvider interface {
	RequestContext(ctx context.Context, pattern, reason string, maxFiles int) ([]core.FileContext, error)
}

type requestContextTool struct {
	provider ContextProvider
}

// NewRequestContextTool exposes a running retrieval engine to scripts as
// the requestContext(pattern, reason, max_files?) tool: a step that finds
// it needs more context than it was given asks for it by pattern instead
// of failing outright.
func NewRequestContextTool(provider ContextProvider) Tool {
	return requestContextTool{provider: provider}
}

func (requestContextTool) Name() string { return "requestContext" }
func (requestContextTool) Description() string {
	return "Request additional file context matching a pattern, with a reason for the request."
}
func (requestContextTool) Declaration() string {
	return "declare function requestContext(params: { pattern: string; reason: string; max_files?: number }): Promise<{ files: { path: string; content: string }[] }>;"
}
func (requestContextTool) Schema() map[string]any {
	return map[string]any{"type": "object", "properties": map[string]any{
		"pattern":   map[string]any{"type": "string"},
		"reason":    map[string]any{"type": "string"},
		"max_files": map[string]any{"type": "integer"},
	}, "required": []string{"pattern", "reason"}}
}

func (t requestContextTool) Execute(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
	var req struct {
		Pattern  string `json:"pattern"`
		Reason   string `json:"reason"`
		MaxFiles int    `json:"max_files"`
	}
	if err := json.Unmarshal(input, &req); err != nil {
		return nil, &core.ToolError{Kind: core.ToolInvalidInput, Tool: "requestContext", Err: err}
	}
	if req.MaxFiles == 0 {
		req.MaxFiles = 10
	}
	files, err := t.provider.RequestContext(ctx, req.Pattern, req.Reason, req.MaxFiles)
	if err != nil {
		return nil, &core.ToolError{Kind: core.ToolExecutionFailed, Tool: "requestContext", Err: err}
	}
	out := make([]map[string]string, 0, len(files))
	for _, f := range files {
		out = append(out, map[string]string{"path": f.Path, "content": f.Content})
	}
	return json.Marshal(map[string]any{"files": out})
}
