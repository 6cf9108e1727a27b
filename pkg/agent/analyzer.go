package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ternarybob/merlin/pkg/core"
)

// RequestAnalyzer implements core.Analyzer by asking a model to decompose
// a free-text request into a JSON task list, then resolving each task's
// local, human-readable dependency references into generated TaskIds.
// Grounded on pkg/orchestra/architect.go's Architect.Analyze: a fixed
// system prompt plus one completion call, generalized from that stage's
// markdown requirements document into a structured task batch the
// scheduler can ingest directly.
type RequestAnalyzer struct {
	provider core.ModelProvider
}

// NewRequestAnalyzer builds a RequestAnalyzer backed by provider.
func NewRequestAnalyzer(provider core.ModelProvider) *RequestAnalyzer {
	return &RequestAnalyzer{provider: provider}
}

const analyzerSystemPrompt = `You are a planning agent that decomposes a software change request into a batch of independent, schedulable tasks.

Respond with a single JSON array and nothing else. Each element has:
  "id": a short local identifier, unique within this array (e.g. "t1")
  "description": one sentence describing the task
  "complexity": an integer 1-10
  "depends_on": local ids of tasks that must complete first (omit if none)
  "write_set": file paths this task will modify (omit if unknown)
  "paths": file paths this task should read for context (omit if unknown)

Keep tasks as independent as possible; only declare a dependency when the
later task genuinely needs the earlier task's output. Prefer several small
tasks with disjoint write_sets over one large task, since tasks with
disjoint write_sets run concurrently.`

type analyzedTask struct {
	ID          string   `json:"id"`
	Description string   `json:"description"`
	Complexity  int      `json:"complexity"`
	DependsOn   []string `json:"depends_on"`
	WriteSet    []string `json:"write_set"`
	Paths       []string `json:"paths"`
}

// Analyze decomposes requestText into a core.TaskAnalysis.
func (a *RequestAnalyzer) Analyze(ctx context.Context, requestText string) (core.TaskAnalysis, error) {
	resp, err := a.provider.Generate(ctx, requestText, analyzerSystemPrompt)
	if err != nil {
		return core.TaskAnalysis{}, &core.ProviderError{Provider: a.provider.Name(), Message: "analyze", Err: err}
	}

	raw := extractJSONArray(resp.Text)
	var parsed []analyzedTask
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return core.TaskAnalysis{}, fmt.Errorf("parse task analysis: %w", err)
	}

	ids := make(map[string]core.TaskId, len(parsed))
	for _, pt := range parsed {
		ids[pt.ID] = core.NewTaskId()
	}

	tasks := make([]*core.Task, 0, len(parsed))
	for _, pt := range parsed {
		dependsOn := make([]core.TaskId, 0, len(pt.DependsOn))
		for _, ref := range pt.DependsOn {
			if id, ok := ids[ref]; ok {
				dependsOn = append(dependsOn, id)
			}
		}
		var ctxSpec *core.TaskContextSpec
		if len(pt.WriteSet) > 0 || len(pt.Paths) > 0 {
			ctxSpec = &core.TaskContextSpec{Paths: pt.Paths, WriteSet: pt.WriteSet}
		}
		tasks = append(tasks, &core.Task{
			ID:          ids[pt.ID],
			Description: pt.Description,
			Complexity:  pt.Complexity,
			Context:     ctxSpec,
			DependsOn:   dependsOn,
		})
	}

	return core.TaskAnalysis{Tasks: tasks}, nil
}

// extractJSONArray trims a model response down to its first top-level JSON
// array, tolerating a surrounding ```json fence or prose the model adds
// despite being asked for raw JSON.
func extractJSONArray(text string) string {
	start := strings.IndexByte(text, '[')
	end := strings.LastIndexByte(text, ']')
	if start == -1 || end == -1 || end < start {
		return text
	}
	return text[start : end+1]
}
