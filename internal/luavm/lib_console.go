package luavm

import (
	lua "github.com/yuin/gopher-lua"
)

func (r *Runtime) openConsole(L *lua.LState) {
	c := r.console
	L.SetGlobal("console", L.SetFuncs(L.NewTable(), map[string]lua.LGFunction{
		"write": func(L *lua.LState) int {
			if err := c.Write(L.ToStringMeta(L.Get(1)).String()); err != nil {
				raiseErr(L, err)
			}
			return 0
		},
		"err_write": func(L *lua.LState) int {
			if err := c.ErrWrite(L.ToStringMeta(L.Get(1)).String()); err != nil {
				raiseErr(L, err)
			}
			return 0
		},
		"read": func(L *lua.LState) int {
			s, err := c.Read(L.OptInt(1, 0))
			if err != nil {
				raiseErr(L, err)
			}
			L.Push(lua.LString(s))
			return 1
		},
		"scan": func(L *lua.LState) int {
			s, err := c.Scan()
			if err != nil {
				raiseErr(L, err)
			}
			L.Push(lua.LString(s))
			return 1
		},
		"read_line": func(L *lua.LState) int {
			line, ok, err := c.ReadLine()
			if err != nil {
				raiseErr(L, err)
			}
			if !ok {
				L.Push(lua.LNil)
				return 1
			}
			L.Push(lua.LString(line))
			return 1
		},
	}))
}
