package luavm

import (
	"fmt"
	"time"

	lua "github.com/yuin/gopher-lua"
)

var clockStart = time.Now()

func (r *Runtime) openTask(L *lua.LState) {
	L.SetGlobal("task", L.SetFuncs(L.NewTable(), map[string]lua.LGFunction{
		"spawn": func(L *lua.LState) int {
			fn := L.CheckFunction(1)
			args := collectArgs(L, 2)
			co := r.newCoroutine(r.childName(fn), fn, args)
			if err := r.sched.EnqueueCoroutine(co); err != nil {
				raiseErr(L, err)
			}
			return 0
		},
		"defer": func(L *lua.LState) int {
			fn := L.CheckFunction(1)
			args := collectArgs(L, 2)
			name := r.childName(fn)
			if err := r.sched.Enqueue(func() { r.callDeferred(name, fn, args) }); err != nil {
				raiseErr(L, err)
			}
			return 0
		},
		"pending": func(L *lua.LState) int {
			L.Push(lua.LNumber(r.sched.Len()))
			return 1
		},
		"yield": func(L *lua.LState) int {
			return L.Yield()
		},
		"_now": func(L *lua.LState) int {
			L.Push(lua.LNumber(time.Since(clockStart).Seconds()))
			return 1
		},
	}))
}

func collectArgs(L *lua.LState, from int) []lua.LValue {
	var args []lua.LValue
	for i := from; i <= L.GetTop(); i++ {
		args = append(args, L.Get(i))
	}
	return args
}

func (r *Runtime) childName(fn *lua.LFunction) string {
	if fn.Proto != nil {
		return fmt.Sprintf("%s:%d", r.script, fn.Proto.LineDefined)
	}
	return r.script
}

// callDeferred runs fn on the main state. It cannot yield.
func (r *Runtime) callDeferred(name string, fn *lua.LFunction, args []lua.LValue) {
	err := r.L.CallByParam(lua.P{Fn: fn, NRet: 0, Protect: true}, args...)
	if err != nil {
		r.coroutineFailed(&luaCoroutine{name: name}, err)
	}
}
