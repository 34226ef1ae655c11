package luavm

import (
	lua "github.com/yuin/gopher-lua"

	"github.com/me/corohost/internal/jsoncodec"
)

func (r *Runtime) openJSON(L *lua.LState) {
	L.SetGlobal("json", L.SetFuncs(L.NewTable(), map[string]lua.LGFunction{
		"parse": func(L *lua.LState) int {
			v, err := jsoncodec.Decode(L.CheckString(1))
			if err != nil {
				raiseErr(L, err)
			}
			L.Push(fromGo(L, v))
			return 1
		},
		"tostring": func(L *lua.LState) int {
			v, err := toGo(L.CheckAny(1))
			if err != nil {
				raiseErr(L, err)
			}
			s, err := jsoncodec.Encode(v, L.OptString(2, ""))
			if err != nil {
				raiseErr(L, err)
			}
			L.Push(lua.LString(s))
			return 1
		},
	}))
}

func (r *Runtime) openYAML(L *lua.LState) {
	L.SetGlobal("yaml", L.SetFuncs(L.NewTable(), map[string]lua.LGFunction{
		"parse": func(L *lua.LState) int {
			v, err := jsoncodec.DecodeYAML(L.CheckString(1))
			if err != nil {
				raiseErr(L, err)
			}
			L.Push(fromGo(L, v))
			return 1
		},
		"tostring": func(L *lua.LState) int {
			v, err := toGo(L.CheckAny(1))
			if err != nil {
				raiseErr(L, err)
			}
			s, err := jsoncodec.EncodeYAML(v)
			if err != nil {
				raiseErr(L, err)
			}
			L.Push(lua.LString(s))
			return 1
		},
	}))
}
