package luavm

import (
	"context"

	lua "github.com/yuin/gopher-lua"

	"github.com/me/corohost/internal/scheduler"
)

// luaCoroutine is a Lua thread driven by the scheduler.
type luaCoroutine struct {
	rt     *Runtime
	name   string
	thread *lua.LState
	cancel context.CancelFunc
	fn     *lua.LFunction
	args   []lua.LValue
}

func (r *Runtime) newCoroutine(name string, fn *lua.LFunction, args []lua.LValue) *luaCoroutine {
	th, cancel := r.L.NewThread()
	return &luaCoroutine{rt: r, name: name, thread: th, cancel: cancel, fn: fn, args: args}
}

// Resume implements scheduler.Coroutine. Arguments are passed on the first
// resume only.
func (c *luaCoroutine) Resume() scheduler.ResumeStatus {
	args := c.args
	c.args = nil
	st, err, _ := c.rt.L.Resume(c.thread, c.fn, args...)
	switch st {
	case lua.ResumeYield:
		return scheduler.Yielded
	case lua.ResumeError:
		c.rt.coroutineFailed(c, err)
		return scheduler.Errored
	}
	return scheduler.Finished
}

// Close implements scheduler.Closer.
func (c *luaCoroutine) Close() {
	if c.cancel != nil {
		c.cancel()
	}
}
