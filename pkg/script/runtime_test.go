package script

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRunDirectStringResponse(t *testing.T) {
	rt := NewRuntime(context.Background(), NewRegistry())
	defer rt.Close()

	resp, err := rt.Run(`return "hello"`)
	require.NoError(t, err)
	require.True(t, resp.IsDirect())
	require.Equal(t, "hello", resp.Direct)
}

func TestRunTaskListResponse(t *testing.T) {
	rt := NewRuntime(context.Background(), NewRegistry())
	defer rt.Close()

	resp, err := rt.Run(`
		return {
			id = "t1",
			title = "Add feature",
			steps = {
				{ description = "write code", kind = "feature", exitCommand = "cargo check" },
				{ description = "add tests", kind = "test", exitCommand = "cargo test" },
			},
		}
	`)
	require.NoError(t, err)
	require.False(t, resp.IsDirect())
	require.Equal(t, "t1", resp.List.ID)
	require.Len(t, resp.List.Steps, 2)
	require.Equal(t, "cargo test", resp.List.Steps[1].ExitCommand)
}

func TestRunUnsupportedReturnIsError(t *testing.T) {
	rt := NewRuntime(context.Background(), NewRegistry())
	defer rt.Close()

	_, err := rt.Run(`return 42`)
	require.Error(t, err)
}

func TestToolCallRoundTrip(t *testing.T) {
	root := t.TempDir()
	reg := NewRegistry()
	reg.Register(NewWriteFileTool(root))
	reg.Register(NewReadFileTool(root))

	rt := NewRuntime(context.Background(), reg)
	defer rt.Close()

	resp, err := rt.Run(`
		writeFile({ path = "hello.txt", content = "world" })
		local result = readFile({ path = "hello.txt" })
		return result.content
	`)
	require.NoError(t, err)
	require.Equal(t, "world", resp.Direct)

	data, err := os.ReadFile(filepath.Join(root, "hello.txt"))
	require.NoError(t, err)
	require.Equal(t, "world", string(data))
}

func TestToolNotFoundRaisesScriptError(t *testing.T) {
	rt := NewRuntime(context.Background(), NewRegistry())
	defer rt.Close()

	_, err := rt.Run(`missingTool({})`)
	require.Error(t, err)
}

func TestRetainAndInvokeHandle(t *testing.T) {
	rt := NewRuntime(context.Background(), NewRegistry())
	defer rt.Close()

	require.NoError(t, rt.state.DoString(`function alwaysTrue() return true end`))
	fn := rt.state.GetGlobal("alwaysTrue")
	h := rt.Retain(fn)

	ok, err := rt.Invoke(h)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestBashToolReportsExitCode(t *testing.T) {
	root := t.TempDir()
	reg := NewRegistry()
	reg.Register(NewBashTool(root))

	rt := NewRuntime(context.Background(), reg)
	defer rt.Close()

	resp, err := rt.Run(`
		local result = bash({ command = "exit 3" })
		return tostring(result.exit)
	`)
	require.NoError(t, err)
	require.Equal(t, "3", resp.Direct)
}

func TestEditToolReplacesFirstOccurrence(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "f.txt")
	require.NoError(t, os.WriteFile(path, []byte("foo bar foo"), 0o644))

	reg := NewRegistry()
	reg.Register(NewEditTool(root))
	rt := NewRuntime(context.Background(), reg)
	defer rt.Close()

	_, err := rt.Run(`
		edit({ path = "f.txt", oldText = "foo", newText = "baz" })
		return "ok"
	`)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "baz bar foo", string(data))
}

func TestPathTraversalRejected(t *testing.T) {
	root := t.TempDir()
	reg := NewRegistry()
	reg.Register(NewReadFileTool(root))
	rt := NewRuntime(context.Background(), reg)
	defer rt.Close()

	_, err := rt.Run(`return readFile({ path = "../../etc/passwd" }).content`)
	require.Error(t, err)
}

func TestJSONRoundTripHelpers(t *testing.T) {
	in := map[string]any{"a": float64(1), "b": []any{"x", "y"}}
	data, err := json.Marshal(in)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	require.Equal(t, in["a"], out["a"])
}
