package luavm

import (
	"errors"
	"fmt"
	"math"
	"sort"

	lua "github.com/yuin/gopher-lua"
)

const maxConvertDepth = 100

var errCycle = errors.New("table nesting too deep or cyclic")

// toGo converts a Lua value into the plain Go shape used by the codecs:
// nil, bool, float64, string, []any and map[string]any. Tables whose keys
// are exactly 1..n become slices. Functions, threads and userdata without
// a string form are dropped.
func toGo(lv lua.LValue) (any, error) {
	return toGoDepth(lv, 0)
}

func toGoDepth(lv lua.LValue, depth int) (any, error) {
	if depth > maxConvertDepth {
		return nil, errCycle
	}
	switch v := lv.(type) {
	case *lua.LNilType:
		return nil, nil
	case lua.LBool:
		return bool(v), nil
	case lua.LNumber:
		return float64(v), nil
	case lua.LString:
		return string(v), nil
	case *lua.LTable:
		return tableToGo(v, depth)
	case *lua.LUserData:
		if s, ok := v.Value.(fmt.Stringer); ok {
			return s.String(), nil
		}
	}
	return nil, nil
}

func tableToGo(t *lua.LTable, depth int) (any, error) {
	count := 0
	isArray := true
	t.ForEach(func(k, _ lua.LValue) {
		count++
		n, ok := k.(lua.LNumber)
		if !ok || float64(n) != math.Trunc(float64(n)) || n < 1 {
			isArray = false
		}
	})
	if isArray && count == t.Len() {
		out := make([]any, 0, count)
		for i := 1; i <= count; i++ {
			v, err := toGoDepth(t.RawGetInt(i), depth+1)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	}

	out := make(map[string]any, count)
	var convErr error
	t.ForEach(func(k, v lua.LValue) {
		if convErr != nil {
			return
		}
		gv, err := toGoDepth(v, depth+1)
		if err != nil {
			convErr = err
			return
		}
		out[lua.LVAsString(k)] = gv
	})
	if convErr != nil {
		return nil, convErr
	}
	return out, nil
}

// fromGo converts a decoded Go value into a Lua value.
func fromGo(L *lua.LState, v any) lua.LValue {
	switch x := v.(type) {
	case nil:
		return lua.LNil
	case bool:
		return lua.LBool(x)
	case float64:
		return lua.LNumber(x)
	case float32:
		return lua.LNumber(x)
	case int:
		return lua.LNumber(x)
	case int64:
		return lua.LNumber(x)
	case uint64:
		return lua.LNumber(x)
	case string:
		return lua.LString(x)
	case []byte:
		return lua.LString(x)
	case []string:
		t := L.CreateTable(len(x), 0)
		for _, s := range x {
			t.Append(lua.LString(s))
		}
		return t
	case []any:
		t := L.CreateTable(len(x), 0)
		for i, e := range x {
			t.RawSetInt(i+1, fromGo(L, e))
		}
		return t
	case map[string]string:
		t := L.CreateTable(0, len(x))
		for _, k := range sortedKeys(x) {
			t.RawSetString(k, lua.LString(x[k]))
		}
		return t
	case map[string]any:
		t := L.CreateTable(0, len(x))
		for k, e := range x {
			t.RawSetString(k, fromGo(L, e))
		}
		return t
	}
	return lua.LString(fmt.Sprint(v))
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
