package luavm

import (
	"context"
	"time"

	lua "github.com/yuin/gopher-lua"

	"github.com/me/corohost/internal/httpc"
	"github.com/me/corohost/internal/jsoncodec"
)

func (r *Runtime) defineHTTP() {
	t := r.types
	ms := func(set func(*httpc.Client, time.Duration)) func(*lua.LState, *httpc.Client, lua.LValue) {
		return func(L *lua.LState, c *httpc.Client, v lua.LValue) {
			n, ok := v.(lua.LNumber)
			if !ok {
				L.RaiseError("timeout must be a number of milliseconds")
			}
			set(c, time.Duration(float64(n)*float64(time.Millisecond)))
		}
	}
	flag := func(set func(*httpc.Client, bool)) func(*lua.LState, *httpc.Client, lua.LValue) {
		return func(L *lua.LState, c *httpc.Client, v lua.LValue) {
			set(c, lua.LVAsBool(v))
		}
	}

	t.client.
		getter("host", func(L *lua.LState, c *httpc.Client) int {
			L.Push(lua.LString(c.Host()))
			return 1
		}).
		getter("port", func(L *lua.LState, c *httpc.Client) int {
			L.Push(lua.LNumber(c.Port()))
			return 1
		}).
		getter("isvalid", func(L *lua.LState, c *httpc.Client) int {
			L.Push(lua.LBool(c.IsValid()))
			return 1
		}).
		setter("encodeurl", flag((*httpc.Client).SetEncodeURL)).
		setter("keepalive", flag((*httpc.Client).SetKeepAlive)).
		setter("connectiontimeout", ms((*httpc.Client).SetConnectionTimeout)).
		setter("readtimeout", ms((*httpc.Client).SetReadTimeout)).
		setter("writetimeout", ms((*httpc.Client).SetWriteTimeout)).
		setter("maxtimeout", ms((*httpc.Client).SetMaxTimeout)).
		method("get", func(L *lua.LState) int {
			c := t.client.check(L, 1)
			ctx, cancel := r.requestContext()
			defer cancel()
			resp, err := c.Get(ctx, L.OptString(2, "/"))
			return r.pushResponse(L, resp, err)
		}).
		method("post", func(L *lua.LState) int {
			c := t.client.check(L, 1)
			body, err := toGo(L.Get(3))
			if err != nil {
				raiseErr(L, err)
			}
			ctx, cancel := r.requestContext()
			defer cancel()
			resp, err := c.Post(ctx, L.CheckString(2), body)
			return r.pushResponse(L, resp, err)
		}).
		method("stop", func(L *lua.LState) int {
			t.client.check(L, 1).Stop()
			return 0
		})

	str := func(fn func(*httpc.Response) string) func(*lua.LState, *httpc.Response) int {
		return func(L *lua.LState, resp *httpc.Response) int {
			L.Push(lua.LString(fn(resp)))
			return 1
		}
	}
	t.response.
		getter("body", str(func(r *httpc.Response) string { return r.Body })).
		getter("reason", str(func(r *httpc.Response) string { return r.Reason })).
		getter("version", str(func(r *httpc.Response) string { return r.Version })).
		getter("location", str(func(r *httpc.Response) string { return r.Location })).
		getter("status", func(L *lua.LState, resp *httpc.Response) int {
			L.Push(lua.LNumber(resp.Status))
			return 1
		}).
		method("getheaders", func(L *lua.LState) int {
			L.Push(fromGo(L, t.response.check(L, 1).Headers))
			return 1
		}).
		method("getheadervalue", func(L *lua.LState) int {
			resp := t.response.check(L, 1)
			L.Push(lua.LString(resp.HeaderValue(L.CheckString(2), L.OptString(3, ""))))
			return 1
		}).
		metamethod("__tostring", func(L *lua.LState) int {
			resp := t.response.check(L, 1)
			L.Push(lua.LString(resp.Version + " " + resp.Reason))
			return 1
		})

	t.fetch.
		method("done", func(L *lua.LState) int {
			L.Push(lua.LBool(t.fetch.check(L, 1).Done()))
			return 1
		}).
		method("result", func(L *lua.LState) int {
			op := t.fetch.check(L, 1)
			if !op.Done() {
				L.RaiseError("fetch still in flight")
			}
			resp, err := op.Result()
			return r.pushResponse(L, resp, err)
		})
}

func (r *Runtime) requestContext() (context.Context, context.CancelFunc) {
	if r.cfg.HTTPTimeout > 0 {
		return context.WithTimeout(r.ctx, r.cfg.HTTPTimeout)
	}
	return context.WithCancel(r.ctx)
}

// pushResponse pushes the response, or nil and a message when the request
// failed.
func (r *Runtime) pushResponse(L *lua.LState, resp *httpc.Response, err error) int {
	if err != nil {
		L.Push(lua.LNil)
		L.Push(lua.LString("error occurred (" + err.Error() + ")"))
		return 2
	}
	r.types.response.push(L, resp)
	return 1
}

// startFetch issues a GET on its own goroutine and hands the result back
// to the script through a scheduler callback.
func (r *Runtime) startFetch(url string) *httpc.Pending {
	runCtx := r.ctx
	ctx, cancel := r.requestContext()
	return httpc.Start(ctx, url, func(complete func()) {
		defer cancel()
		if err := r.deliver(runCtx, complete); err != nil {
			r.logger.Debug("fetch completion dropped", "url", url, "error", err)
		}
	})
}

func (r *Runtime) openHTTP(L *lua.LState) {
	t := r.types
	L.SetGlobal("http", L.SetFuncs(L.NewTable(), map[string]lua.LGFunction{
		"urlinfo": func(L *lua.LState) int {
			info, err := httpc.ParseURL(L.CheckString(1))
			if err != nil {
				return 0
			}
			tbl := L.NewTable()
			tbl.RawSetString("scheme", lua.LString(info.Scheme))
			tbl.RawSetString("host", lua.LString(info.Host))
			tbl.RawSetString("port", lua.LNumber(info.Port))
			tbl.RawSetString("path", lua.LString(info.Path))
			L.Push(tbl)
			return 1
		},
		"client": func(L *lua.LState) int {
			c, err := httpc.NewClient(L.CheckString(1))
			if err != nil {
				raiseErr(L, err)
			}
			t.client.push(L, c)
			return 1
		},
		"get": func(L *lua.LState) int {
			url := L.CheckString(1)
			if _, err := httpc.ParseURL(url); err != nil {
				raiseErr(L, err)
			}
			ctx, cancel := r.requestContext()
			defer cancel()
			resp, err := httpc.Get(ctx, url)
			return r.pushResponse(L, resp, err)
		},
		"post": func(L *lua.LState) int {
			url := L.CheckString(1)
			if _, err := httpc.ParseURL(url); err != nil {
				raiseErr(L, err)
			}
			body, err := toGo(L.Get(2))
			if err != nil {
				raiseErr(L, err)
			}
			ctx, cancel := r.requestContext()
			defer cancel()
			resp, err := httpc.Post(ctx, url, body)
			if err != nil {
				L.Push(lua.LNil)
				L.Push(lua.LString("request failed"))
				return 2
			}
			L.Push(lua.LNumber(resp.Status))
			if resp.Body == "" {
				return 1
			}
			if v, err := jsoncodec.Decode(resp.Body); err == nil {
				L.Push(fromGo(L, v))
			} else {
				L.Push(lua.LString(resp.Body))
			}
			return 2
		},
		"_fetchstart": func(L *lua.LState) int {
			url := L.CheckString(1)
			if _, err := httpc.ParseURL(url); err != nil {
				raiseErr(L, err)
			}
			t.fetch.push(L, r.startFetch(url))
			return 1
		},
	}))
}
