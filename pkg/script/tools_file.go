package script

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/ternarybob/merlin/pkg/core"
)

// rootGuard resolves path within root, rejecting any traversal outside it.
// Every file tool runs a path through this before touching the
// filesystem, per the safety requirement that path-traversal attempts
// fail before any I/O.
func rootGuard(root, path string) (string, error) {
	full := filepath.Join(root, path)
	cleanRoot, err := filepath.Abs(root)
	if err != nil {
		return "", &core.ToolError{Kind: core.ToolInvalidInput, Err: err}
	}
	cleanFull, err := filepath.Abs(full)
	if err != nil {
		return "", &core.ToolError{Kind: core.ToolInvalidInput, Err: err}
	}
	if cleanFull != cleanRoot && !strings.HasPrefix(cleanFull, cleanRoot+string(filepath.Separator)) {
		return "", &core.ToolError{Kind: core.ToolInvalidInput, Err: fmt.Errorf("path escapes project root: %s", path)}
	}
	return cleanFull, nil
}

type readFileTool struct{ root string }

func NewReadFileTool(root string) Tool { return readFileTool{root} }

func (readFileTool) Name() string        { return "readFile" }
func (readFileTool) Description() string { return "Read a file's full text content." }
func (readFileTool) Declaration() string {
	return "declare function readFile(params: { path: string }): Promise<{ content: string }>;"
}
func (readFileTool) Schema() map[string]any {
	return map[string]any{"type": "object", "properties": map[string]any{"path": map[string]any{"type": "string"}}, "required": []string{"path"}}
}

func (t readFileTool) Execute(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
	var req struct{ Path string `json:"path"` }
	if err := json.Unmarshal(input, &req); err != nil {
		return nil, &core.ToolError{Kind: core.ToolInvalidInput, Tool: "readFile", Err: err}
	}
	full, err := rootGuard(t.root, req.Path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(full)
	if err != nil {
		return nil, &core.ToolError{Kind: core.ToolExecutionFailed, Tool: "readFile", Err: err}
	}
	return json.Marshal(map[string]string{"content": string(data)})
}

type writeFileTool struct{ root string }

func NewWriteFileTool(root string) Tool { return writeFileTool{root} }

func (writeFileTool) Name() string        { return "writeFile" }
func (writeFileTool) Description() string { return "Create or overwrite a file with the given content." }
func (writeFileTool) Declaration() string {
	return "declare function writeFile(params: { path: string; content: string }): Promise<{ ok: boolean }>;"
}
func (writeFileTool) Schema() map[string]any {
	return map[string]any{"type": "object", "properties": map[string]any{
		"path": map[string]any{"type": "string"}, "content": map[string]any{"type": "string"},
	}, "required": []string{"path", "content"}}
}

func (t writeFileTool) Execute(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
	var req struct {
		Path    string `json:"path"`
		Content string `json:"content"`
	}
	if err := json.Unmarshal(input, &req); err != nil {
		return nil, &core.ToolError{Kind: core.ToolInvalidInput, Tool: "writeFile", Err: err}
	}
	full, err := rootGuard(t.root, req.Path)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return nil, &core.ToolError{Kind: core.ToolExecutionFailed, Tool: "writeFile", Err: err}
	}
	if err := os.WriteFile(full, []byte(req.Content), 0o644); err != nil {
		return nil, &core.ToolError{Kind: core.ToolExecutionFailed, Tool: "writeFile", Err: err}
	}
	return json.Marshal(map[string]bool{"ok": true})
}

type listFilesTool struct{ root string }

func NewListFilesTool(root string) Tool { return listFilesTool{root} }

func (listFilesTool) Name() string        { return "listFiles" }
func (listFilesTool) Description() string { return "List files under a directory, relative to the project root." }
func (listFilesTool) Declaration() string {
	return "declare function listFiles(params: { dir: string }): Promise<{ files: string[] }>;"
}
func (listFilesTool) Schema() map[string]any {
	return map[string]any{"type": "object", "properties": map[string]any{"dir": map[string]any{"type": "string"}}}
}

func (t listFilesTool) Execute(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
	var req struct{ Dir string `json:"dir"` }
	_ = json.Unmarshal(input, &req)
	if req.Dir == "" {
		req.Dir = "."
	}
	full, err := rootGuard(t.root, req.Dir)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(full)
	if err != nil {
		return nil, &core.ToolError{Kind: core.ToolExecutionFailed, Tool: "listFiles", Err: err}
	}
	files := make([]string, 0, len(entries))
	for _, e := range entries {
		files = append(files, e.Name())
	}
	return json.Marshal(map[string][]string{"files": files})
}

type deleteTool struct{ root string }

func NewDeleteTool(root string) Tool { return deleteTool{root} }

func (deleteTool) Name() string        { return "delete" }
func (deleteTool) Description() string { return "Delete a file." }
func (deleteTool) Declaration() string {
	return "declare function delete(params: { path: string }): Promise<{ ok: boolean }>;"
}
func (deleteTool) Schema() map[string]any {
	return map[string]any{"type": "object", "properties": map[string]any{"path": map[string]any{"type": "string"}}, "required": []string{"path"}}
}

func (t deleteTool) Execute(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
	var req struct{ Path string `json:"path"` }
	if err := json.Unmarshal(input, &req); err != nil {
		return nil, &core.ToolError{Kind: core.ToolInvalidInput, Tool: "delete", Err: err}
	}
	full, err := rootGuard(t.root, req.Path)
	if err != nil {
		return nil, err
	}
	if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
		return nil, &core.ToolError{Kind: core.ToolExecutionFailed, Tool: "delete", Err: err}
	}
	return json.Marshal(map[string]bool{"ok": true})
}

type editTool struct{ root string }

func NewEditTool(root string) Tool { return editTool{root} }

func (editTool) Name() string        { return "edit" }
func (editTool) Description() string { return "Replace the first occurrence of oldText with newText in a file." }
func (editTool) Declaration() string {
	return "declare function edit(params: { path: string; oldText: string; newText: string }): Promise<{ ok: boolean }>;"
}
func (editTool) Schema() map[string]any {
	return map[string]any{"type": "object", "properties": map[string]any{
		"path": map[string]any{"type": "string"}, "oldText": map[string]any{"type": "string"}, "newText": map[string]any{"type": "string"},
	}, "required": []string{"path", "oldText", "newText"}}
}

func (t editTool) Execute(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
	var req struct {
		Path    string `json:"path"`
		OldText string `json:"oldText"`
		NewText string `json:"newText"`
	}
	if err := json.Unmarshal(input, &req); err != nil {
		return nil, &core.ToolError{Kind: core.ToolInvalidInput, Tool: "edit", Err: err}
	}
	full, err := rootGuard(t.root, req.Path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(full)
	if err != nil {
		return nil, &core.ToolError{Kind: core.ToolExecutionFailed, Tool: "edit", Err: err}
	}
	content := string(data)
	if !strings.Contains(content, req.OldText) {
		return nil, &core.ToolError{Kind: core.ToolExecutionFailed, Tool: "edit", Err: fmt.Errorf("oldText not found")}
	}
	content = strings.Replace(content, req.OldText, req.NewText, 1)
	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		return nil, &core.ToolError{Kind: core.ToolExecutionFailed, Tool: "edit", Err: err}
	}
	return json.Marshal(map[string]bool{"ok": true})
}

type showTool struct{ root string }

func NewShowTool(root string) Tool { return showTool{root} }

func (showTool) Name() string        { return "show" }
func (showTool) Description() string { return "Show a file's content with line numbers." }
func (showTool) Declaration() string {
	return "declare function show(params: { path: string }): Promise<{ content: string }>;"
}
func (showTool) Schema() map[string]any {
	return map[string]any{"type": "object", "properties": map[string]any{"path": map[string]any{"type": "string"}}, "required": []string{"path"}}
}

func (t showTool) Execute(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
	var req struct{ Path string `json:"path"` }
	if err := json.Unmarshal(input, &req); err != nil {
		return nil, &core.ToolError{Kind: core.ToolInvalidInput, Tool: "show", Err: err}
	}
	full, err := rootGuard(t.root, req.Path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(full)
	if err != nil {
		return nil, &core.ToolError{Kind: core.ToolExecutionFailed, Tool: "show", Err: err}
	}
	lines := strings.Split(string(data), "\n")
	var b strings.Builder
	for i, l := range lines {
		fmt.Fprintf(&b, "%4d| %s\n", i+1, l)
	}
	return json.Marshal(map[string]string{"content": b.String()})
}

type bashTool struct{ root string }

func NewBashTool(root string) Tool { return bashTool{root} }

func (bashTool) Name() string        { return "bash" }
func (bashTool) Description() string { return "Run a shell command in the project root and return stdout/stderr/exit." }
func (bashTool) Declaration() string {
	return "declare function bash(params: { command: string }): Promise<{ stdout: string; stderr: string; exit: number }>;"
}
func (bashTool) Schema() map[string]any {
	return map[string]any{"type": "object", "properties": map[string]any{"command": map[string]any{"type": "string"}}, "required": []string{"command"}}
}

func (t bashTool) Execute(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
	var req struct{ Command string `json:"command"` }
	if err := json.Unmarshal(input, &req); err != nil {
		return nil, &core.ToolError{Kind: core.ToolInvalidInput, Tool: "bash", Err: err}
	}
	cmd := exec.CommandContext(ctx, "sh", "-c", req.Command)
	cmd.Dir = t.root
	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	exitCode := 0
	if err := cmd.Run(); err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			return nil, &core.ToolError{Kind: core.ToolExecutionFailed, Tool: "bash", Err: err}
		}
	}
	return json.Marshal(map[string]any{"stdout": stdout.String(), "stderr": stderr.String(), "exit": exitCode})
}
