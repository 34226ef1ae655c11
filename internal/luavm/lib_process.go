package luavm

import (
	lua "github.com/yuin/gopher-lua"
)

func (r *Runtime) openProcess(L *lua.LState) {
	p := r.proc
	L.SetGlobal("process", L.SetFuncs(L.NewTable(), map[string]lua.LGFunction{
		"system": func(L *lua.LState) int {
			_ = r.console.Flush()
			code, err := p.System(r.ctx, L.CheckString(1))
			if err != nil {
				raiseErr(L, err)
			}
			L.Push(lua.LNumber(code))
			return 1
		},
		"args": func(L *lua.LState) int {
			L.Push(fromGo(L, p.Args()))
			return 1
		},
		"arg_iterator": func(L *lua.LState) int {
			args := p.Args()
			i := 0
			L.Push(L.NewFunction(func(L *lua.LState) int {
				if i >= len(args) {
					return 0
				}
				L.Push(lua.LString(args[i]))
				i++
				return 1
			}))
			return 1
		},
		"sleep_for": func(L *lua.LState) int {
			if err := p.SleepFor(r.ctx, float64(L.CheckNumber(1))); err != nil {
				raiseErr(L, err)
			}
			return 0
		},
		"exit": func(L *lua.LState) int {
			code := L.OptInt(1, 0)
			r.requestExit(p.Exit(code))
			L.RaiseError("exit %d", code)
			return 0
		},
	}))
}
