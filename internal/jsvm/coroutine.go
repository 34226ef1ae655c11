package jsvm

import (
	"github.com/dop251/goja"

	"github.com/me/corohost/internal/scheduler"
)

// jsCoroutine drives a generator. The function is called on the first
// resume; when it returns an iterator that iterator is stepped once per
// resume, otherwise the call itself was the whole body.
type jsCoroutine struct {
	rt   *Runtime
	name string
	fn   goja.Callable
	args []goja.Value

	gen  *goja.Object
	next goja.Callable
}

func (r *Runtime) newCoroutine(name string, fn goja.Callable, args []goja.Value) *jsCoroutine {
	return &jsCoroutine{rt: r, name: name, fn: fn, args: args}
}

// Resume implements scheduler.Coroutine.
func (c *jsCoroutine) Resume() scheduler.ResumeStatus {
	if c.gen == nil {
		v, err := c.fn(goja.Undefined(), c.args...)
		c.fn, c.args = nil, nil
		if err != nil {
			c.rt.coroutineFailed(c, err)
			return scheduler.Errored
		}
		gen, next, ok := c.rt.iterator(v)
		if !ok {
			return scheduler.Finished
		}
		c.gen, c.next = gen, next
	}

	res, err := c.next(c.gen)
	if err != nil {
		c.rt.coroutineFailed(c, err)
		return scheduler.Errored
	}
	if res.ToObject(c.rt.vm).Get("done").ToBoolean() {
		return scheduler.Finished
	}
	return scheduler.Yielded
}

// Close implements scheduler.Closer.
func (c *jsCoroutine) Close() {
	c.gen, c.next, c.fn, c.args = nil, nil, nil, nil
}

// iterator reports whether v is an object with a callable next.
func (r *Runtime) iterator(v goja.Value) (*goja.Object, goja.Callable, bool) {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return nil, nil, false
	}
	obj, ok := v.(*goja.Object)
	if !ok {
		return nil, nil, false
	}
	next, ok := goja.AssertFunction(obj.Get("next"))
	if !ok {
		return nil, nil, false
	}
	return obj, next, true
}
