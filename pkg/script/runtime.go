package script

import (
	"context"
	"encoding/json"
	"fmt"

	lua "github.com/yuin/gopher-lua"

	"github.com/ternarybob/merlin/pkg/core"
)

// Runtime is one script execution environment. A fresh Runtime is
// constructed per task/step: state is never shared across tasks, so a
// script from one task can't observe another's retained handles.
type Runtime struct {
	state    *lua.LState
	registry *Registry
	ctx      context.Context

	handles    map[core.JsValueHandle]lua.LValue
	nextHandle core.JsValueHandle
}

// NewRuntime builds a Runtime wired to registry, exposing every
// registered tool as a global Lua function of the same name.
func NewRuntime(ctx context.Context, registry *Registry) *Runtime {
	rt := &Runtime{
		state:    lua.NewState(),
		registry: registry,
		ctx:      ctx,
		handles:  make(map[core.JsValueHandle]lua.LValue),
	}
	for _, t := range registry.ListTools() {
		rt.state.SetGlobal(t.Name(), rt.state.NewFunction(rt.callTool(t.Name())))
	}
	return rt
}

// Close releases the underlying Lua state. Safe to call once per Runtime.
func (rt *Runtime) Close() {
	rt.state.Close()
}

// callTool adapts a registered Tool into a lua.LGFunction: the script
// calls it with a single table argument, the table is marshaled to JSON,
// the tool runs, and its JSON result is pushed back as a table.
func (rt *Runtime) callTool(name string) lua.LGFunction {
	return func(L *lua.LState) int {
		var input json.RawMessage
		if L.GetTop() >= 1 {
			arg := L.CheckAny(1)
			input = []byte(luaValueToJSON(arg))
		} else {
			input = []byte("{}")
		}

		out, err := rt.registry.Execute(rt.ctx, name, input)
		if err != nil {
			L.RaiseError("%s", err.Error())
			return 0
		}

		var decoded any
		if uerr := json.Unmarshal(out, &decoded); uerr != nil {
			L.RaiseError("tool %s returned non-JSON result: %v", name, uerr)
			return 0
		}
		L.Push(jsonToLuaValue(L, decoded))
		return 1
	}
}

// Retain stores a Lua value (typically a function) under a new handle
// and returns it. This is the host side of JsValueHandle: a script hands
// back a closure (an exit-requirement predicate, say), the host retains
// it opaquely, and later calls Invoke(handle) to run it without ever
// inspecting its contents.
func (rt *Runtime) Retain(v lua.LValue) core.JsValueHandle {
	rt.nextHandle++
	h := rt.nextHandle
	rt.handles[h] = v
	return h
}

// Invoke calls a previously retained function handle with no arguments
// and reports whether it returned a truthy value. Used to evaluate a
// script-supplied exit requirement.
func (rt *Runtime) Invoke(h core.JsValueHandle) (bool, error) {
	fn, ok := rt.handles[h]
	if !ok {
		return false, &core.ToolError{Kind: core.ToolInvalidInput, Err: fmt.Errorf("unknown script handle %d", h)}
	}
	if err := rt.state.CallByParam(lua.P{Fn: fn, NRet: 1, Protect: true}); err != nil {
		return false, &core.ToolError{Kind: core.ToolExecutionFailed, Err: err}
	}
	ret := rt.state.Get(-1)
	rt.state.Pop(1)
	return lua.LVAsBool(ret), nil
}

// Run executes source as a Lua chunk and interprets its single return
// value as an core.AgentResponse: a string becomes a direct answer; a
// table shaped like {id, title, steps} becomes a TaskList; anything else
// is an error, matching the dispatch rule a model's script output is
// checked against.
func (rt *Runtime) Run(source string) (*core.AgentResponse, error) {
	if err := rt.state.DoString(source); err != nil {
		return nil, &core.ToolError{Kind: core.ToolExecutionFailed, Err: err}
	}
	top := rt.state.GetTop()
	if top == 0 {
		return nil, &core.ToolError{Kind: core.ToolInvalidInput, Err: fmt.Errorf("script produced no return value")}
	}
	ret := rt.state.Get(-1)
	rt.state.Pop(1)

	switch v := ret.(type) {
	case lua.LString:
		return &core.AgentResponse{Direct: string(v)}, nil
	case *lua.LTable:
		list, err := tableToTaskList(v)
		if err != nil {
			return nil, err
		}
		return &core.AgentResponse{List: list}, nil
	default:
		return nil, &core.ToolError{Kind: core.ToolInvalidInput, Err: fmt.Errorf("script returned unsupported type %s", ret.Type().String())}
	}
}

func tableToTaskList(t *lua.LTable) (*core.TaskList, error) {
	id, _ := t.RawGetString("id").(lua.LString)
	title, _ := t.RawGetString("title").(lua.LString)
	stepsVal := t.RawGetString("steps")
	stepsTable, ok := stepsVal.(*lua.LTable)
	if !ok {
		return nil, &core.ToolError{Kind: core.ToolInvalidInput, Err: fmt.Errorf("task list table missing steps array")}
	}

	list := &core.TaskList{ID: string(id), Title: string(title)}
	var idx int
	stepsTable.ForEach(func(_, stepVal lua.LValue) {
		idx++
		stepTable, ok := stepVal.(*lua.LTable)
		if !ok {
			return
		}
		desc, _ := stepTable.RawGetString("description").(lua.LString)
		kindStr, _ := stepTable.RawGetString("kind").(lua.LString)
		exitCmd, _ := stepTable.RawGetString("exitCommand").(lua.LString)
		list.Steps = append(list.Steps, &core.TaskStep{
			ID:          core.NewStepId(),
			Kind:        stepKindFromString(string(kindStr)),
			Description: string(desc),
			ExitCommand: string(exitCmd),
			Status:      core.StepPending,
		})
	})
	return list, nil
}

func stepKindFromString(s string) core.StepKind {
	switch s {
	case "debug":
		return core.StepDebug
	case "refactor":
		return core.StepRefactor
	case "verify":
		return core.StepVerify
	case "test":
		return core.StepTest
	default:
		return core.StepFeature
	}
}

// luaValueToJSON converts an LValue into a JSON text. Only used for
// marshaling tool-call arguments, so it covers the subset Lua tables
// built from JSON-like literals actually produce.
func luaValueToJSON(v lua.LValue) string {
	data, _ := json.Marshal(luaToGo(v))
	return string(data)
}

func luaToGo(v lua.LValue) any {
	switch val := v.(type) {
	case lua.LBool:
		return bool(val)
	case lua.LNumber:
		return float64(val)
	case lua.LString:
		return string(val)
	case *lua.LTable:
		if isLuaArray(val) {
			var arr []any
			val.ForEach(func(_, elem lua.LValue) { arr = append(arr, luaToGo(elem)) })
			return arr
		}
		obj := make(map[string]any)
		val.ForEach(func(k, elem lua.LValue) { obj[k.String()] = luaToGo(elem) })
		return obj
	default:
		return nil
	}
}

func isLuaArray(t *lua.LTable) bool {
	isArray := true
	n := 0
	t.ForEach(func(k, _ lua.LValue) {
		n++
		if _, ok := k.(lua.LNumber); !ok {
			isArray = false
		}
	})
	return isArray && n == t.Len()
}

func jsonToLuaValue(L *lua.LState, v any) lua.LValue {
	switch val := v.(type) {
	case nil:
		return lua.LNil
	case bool:
		return lua.LBool(val)
	case float64:
		return lua.LNumber(val)
	case string:
		return lua.LString(val)
	case []any:
		tbl := L.NewTable()
		for i, elem := range val {
			tbl.RawSetInt(i+1, jsonToLuaValue(L, elem))
		}
		return tbl
	case map[string]any:
		tbl := L.NewTable()
		for k, elem := range val {
			tbl.RawSetString(k, jsonToLuaValue(L, elem))
		}
		return tbl
	default:
		return lua.LNil
	}
}
