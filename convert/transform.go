package convert

import (
	"fmt"
	"sort"
	"sync"

	"github.com/nimh-dsst/dataset-browser/entity"
	lua "github.com/yuin/gopher-lua"
	luajson "layeh.com/gopher-json"
)

// LuaTransformer rewrites rows through a user-provided lua script
// during conversion. The script MUST define a function named
// `transform_row` taking a table (one row, keyed by column name) and
// returning either a table (the replacement row, which may add or drop
// columns) or nil to drop the row entirely.
// The script has access to a JSON helper via `local json = require("json")`.
type LuaTransformer struct {
	scriptPath string
	pool       *sync.Pool
}

func NewLuaTransformer(scriptPath string) (*LuaTransformer, error) {
	first, err := newScriptState(scriptPath)
	if err != nil {
		return nil, err
	}

	if first.GetGlobal("transform_row").Type() != lua.LTFunction {
		first.Close()
		return nil, fmt.Errorf("script %s does not define a transform_row function", scriptPath)
	}

	pool := &sync.Pool{
		New: func() any {
			L, err := newScriptState(scriptPath)
			if err != nil {
				// The script loaded fine during construction; a failure
				// now means it changed or vanished underneath us.
				panic(err)
			}

			return L
		},
	}
	pool.Put(first)

	return &LuaTransformer{scriptPath: scriptPath, pool: pool}, nil
}

// newScriptState builds a sandboxed VM with the user's script loaded.
func newScriptState(scriptPath string) (*lua.LState, error) {
	L := lua.NewState(lua.Options{
		SkipOpenLibs: true, // Don't load anything by default
	})

	// Manually open only the safe libraries.
	// We skip 'os' and 'io' to prevent system commands/file access.
	for _, lib := range []struct {
		name string
		fn   lua.LGFunction
	}{
		{lua.LoadLibName, lua.OpenPackage},  // Allows 'require'
		{lua.BaseLibName, lua.OpenBase},     // Allows 'print', 'pairs', etc.
		{lua.TabLibName, lua.OpenTable},     // Allows 'table.insert', etc.
		{lua.StringLibName, lua.OpenString}, // Allows string manipulation
		{lua.MathLibName, lua.OpenMath},     // Allows 'math.floor', etc.
	} {
		L.Push(L.NewFunction(lib.fn))
		L.Push(lua.LString(lib.name))
		L.Call(1, 0)
	}

	// Pre-register the JSON module in this VM.
	luajson.Preload(L)

	if err := L.DoFile(scriptPath); err != nil {
		L.Close()
		return nil, fmt.Errorf("cannot load script %s: %w", scriptPath, err)
	}

	return L, nil
}

// TransformRow runs one row through the script. The second return
// value is false when the script dropped the row.
func (t *LuaTransformer) TransformRow(row map[string]any) (map[string]any, bool, error) {
	L := t.pool.Get().(*lua.LState)
	defer t.pool.Put(L)

	err := L.CallByParam(lua.P{
		Fn:      L.GetGlobal("transform_row"),
		NRet:    1,
		Protect: true,
	}, mapToLuaTable(L, row))

	if err != nil {
		return nil, false, fmt.Errorf("lua script error: %w", err)
	}

	ret := L.Get(-1)
	L.Pop(1)

	if ret == lua.LNil {
		return nil, false, nil
	}

	table, ok := ret.(*lua.LTable)
	if !ok {
		return nil, false, fmt.Errorf("transform_row must return a table or nil, got %s", ret.Type())
	}

	return luaTableToMap(table), true, nil
}

// Apply transforms every row of the result. Dropped rows disappear;
// columns the script introduces are appended after the originals in
// first-seen order.
func (t *LuaTransformer) Apply(result entity.Result) (entity.Result, error) {
	out := entity.Result{Columns: append([]string(nil), result.Columns...)}

	seen := make(map[string]bool, len(result.Columns))
	for _, col := range result.Columns {
		seen[col] = true
	}

	for _, row := range result.Rows {
		transformed, keep, err := t.TransformRow(row)
		if err != nil {
			return entity.Result{}, err
		}
		if !keep {
			continue
		}

		var added []string
		for col := range transformed {
			if !seen[col] {
				seen[col] = true
				added = append(added, col)
			}
		}
		// Map iteration order is random; keep the output deterministic.
		sort.Strings(added)
		out.Columns = append(out.Columns, added...)

		out.Rows = append(out.Rows, transformed)
	}

	return out, nil
}

func mapToLuaTable(L *lua.LState, row map[string]any) *lua.LTable {
	table := L.NewTable()
	for key, value := range row {
		table.RawSetString(key, goValueToLua(L, value))
	}

	return table
}

func goValueToLua(L *lua.LState, value any) lua.LValue {
	switch v := value.(type) {
	case nil:
		return lua.LNil
	case bool:
		return lua.LBool(v)
	case int:
		return lua.LNumber(v)
	case int64:
		return lua.LNumber(v)
	case float64:
		return lua.LNumber(v)
	case string:
		return lua.LString(v)
	case map[string]any:
		return mapToLuaTable(L, v)
	default:
		return lua.LString(fmt.Sprint(v))
	}
}

func luaTableToMap(table *lua.LTable) map[string]any {
	res := make(map[string]any)
	table.ForEach(func(key, value lua.LValue) {
		res[key.String()] = convertLuaValue(value)
	})
	return res
}

func convertLuaValue(value lua.LValue) any {
	switch v := value.(type) {
	case *lua.LTable:
		return luaTableToMap(v)
	case lua.LNumber:
		return float64(v)
	case lua.LString:
		return string(v)
	case lua.LBool:
		return bool(v)
	case *lua.LNilType:
		return nil
	default:
		if value == lua.LNil {
			return nil
		}

		// Fallback for types we don't explicitly handle (like functions or userdata)
		return v.String()
	}
}
