package jsvm

import (
	"context"
	"time"

	"github.com/dop251/goja"

	"github.com/me/corohost/internal/fileio"
	"github.com/me/corohost/internal/fsys"
	"github.com/me/corohost/internal/httpc"
	"github.com/me/corohost/internal/jsoncodec"
)

var clockStart = time.Now()

func millis(ms int) time.Duration { return time.Duration(ms) * time.Millisecond }

func (r *Runtime) openFS() error {
	fs := map[string]any{
		"exists":  func(p goja.Value) bool { return fsys.Exists(pathArg(p)) },
		"type":    func(p goja.Value) string { return fsys.Type(pathArg(p)) },
		"path":    func(p goja.Value) fsys.Path { return fsys.NewPath(pathArg(p)) },
		"currdir": fsys.CurrentDir,
		"tmpdir":  fsys.TempDir,
		"homedir": fsys.HomeDir,
		"canonical": func(p goja.Value, weak bool) (fsys.Path, error) {
			return fsys.Canonical(pathArg(p), weak)
		},
		"absolute": func(p goja.Value) (fsys.Path, error) { return fsys.Absolute(pathArg(p)) },
		"readsym":  func(p goja.Value) (fsys.Path, error) { return fsys.ReadLink(pathArg(p)) },
		"equivalent": func(a, b goja.Value) (bool, error) {
			return fsys.Equivalent(pathArg(a), pathArg(b))
		},
		"getenv": func(key string) any {
			if p, ok := fsys.Getenv(key); ok {
				return p
			}
			return nil
		},
		"subpaths": func(p goja.Value, recursive bool) ([]fsys.Path, error) {
			return fsys.Subpaths(pathArg(p), recursive)
		},
	}
	if !r.cfg.Sandbox {
		fs["remove"] = func(p goja.Value, recursive bool) (int, error) { return fsys.Remove(pathArg(p), recursive) }
		fs["rename"] = func(from, to goja.Value) error { return fsys.Rename(pathArg(from), pathArg(to)) }
		fs["newdir"] = func(p goja.Value, recursive bool) (bool, error) { return fsys.Mkdir(pathArg(p), recursive) }
		fs["newsym"] = func(target, link goja.Value) error { return fsys.Symlink(pathArg(target), pathArg(link)) }
		fs["copy"] = func(from, to goja.Value, opts string) error {
			return fsys.Copy(pathArg(from), pathArg(to), fsys.ParseCopyOption(opts))
		}
	}
	return r.setModule("fs", fs)
}

func (r *Runtime) openIO() error {
	io := map[string]any{
		"filereader": func(p goja.Value) (*reader, error) {
			rd, err := fileio.OpenReader(pathArg(p))
			if err != nil {
				return nil, err
			}
			return &reader{r: rd}, nil
		},
		"stdout": r.console.Out,
		"stderr": r.console.Err,
		"stdin":  &reader{r: r.console.In},
	}
	if !r.cfg.Sandbox {
		io["filewriter"] = func(p goja.Value, appendMode bool) (*fileio.Writer, error) {
			return fileio.OpenWriter(pathArg(p), appendMode)
		}
	}
	return r.setModule("io", io)
}

func (r *Runtime) requestContext() (context.Context, context.CancelFunc) {
	if r.cfg.HTTPTimeout > 0 {
		return context.WithTimeout(r.ctx, r.cfg.HTTPTimeout)
	}
	return context.WithCancel(r.ctx)
}

func (r *Runtime) openHTTP() error {
	return r.setModule("http", map[string]any{
		"urlinfo": func(raw string) any {
			info, err := httpc.ParseURL(raw)
			if err != nil {
				return nil
			}
			return info
		},
		"client": func(base string) (*client, error) {
			c, err := httpc.NewClient(base)
			if err != nil {
				return nil, err
			}
			return &client{rt: r, c: c}, nil
		},
		"get": func(url string) (*httpc.Response, error) {
			ctx, cancel := r.requestContext()
			defer cancel()
			return httpc.Get(ctx, url)
		},
		"post": func(url string, body any) (*httpc.Response, error) {
			ctx, cancel := r.requestContext()
			defer cancel()
			return httpc.Post(ctx, url, body)
		},
		"_fetchStart": func(url string) (*httpc.Pending, error) {
			if _, err := httpc.ParseURL(url); err != nil {
				return nil, err
			}
			runCtx := r.ctx
			ctx, cancel := r.requestContext()
			return httpc.Start(ctx, url, func(complete func()) {
				defer cancel()
				if err := r.deliver(runCtx, complete); err != nil {
					r.logger.Debug("fetch completion dropped", "url", url, "error", err)
				}
			}), nil
		},
	})
}

func (r *Runtime) openJSON() error {
	return r.setModule("json", map[string]any{
		"parse": func(s string) (any, error) { return jsoncodec.Decode(s) },
		"tostring": func(v goja.Value, indent string) (string, error) {
			return jsoncodec.Encode(v.Export(), indent)
		},
	})
}

func (r *Runtime) openYAML() error {
	return r.setModule("yaml", map[string]any{
		"parse": func(s string) (any, error) { return jsoncodec.DecodeYAML(s) },
		"tostring": func(v goja.Value) (string, error) {
			return jsoncodec.EncodeYAML(jsoncodec.Normalize(v.Export()))
		},
	})
}

func (r *Runtime) openProcess() error {
	p := r.proc
	return r.setModule("process", map[string]any{
		"system": func(cmd string) (int, error) {
			_ = r.console.Flush()
			return p.System(r.ctx, cmd)
		},
		"args":      p.Args,
		"sleep_for": func(seconds float64) error { return p.SleepFor(r.ctx, seconds) },
		"exit": func(code int) error {
			err := p.Exit(code)
			r.requestExit(err)
			return err
		},
	})
}

// openConsole adds the stream functions to the console object installed by
// goja_nodejs.
func (r *Runtime) openConsole() error {
	obj := r.vm.Get("console")
	if obj == nil || goja.IsUndefined(obj) {
		return nil
	}
	c := r.console
	con := obj.ToObject(r.vm)
	for name, fn := range map[string]any{
		"write":     func(s string) error { return c.Write(s) },
		"err_write": func(s string) error { return c.ErrWrite(s) },
		"read":      func(n int) (string, error) { return c.Read(n) },
		"scan":      c.Scan,
		"read_line": func() (any, error) {
			line, ok, err := c.ReadLine()
			if err != nil || !ok {
				return nil, err
			}
			return line, nil
		},
	} {
		if err := con.Set(name, fn); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runtime) openTask() error {
	return r.setModule("task", map[string]any{
		"spawn": func(call goja.FunctionCall) goja.Value {
			fn, ok := goja.AssertFunction(call.Argument(0))
			if !ok {
				panic(r.vm.NewTypeError("task.spawn expects a function"))
			}
			args := append([]goja.Value(nil), call.Arguments[1:]...)
			co := r.newCoroutine(r.childName(call.Argument(0)), fn, args)
			if err := r.sched.EnqueueCoroutine(co); err != nil {
				panic(r.vm.NewGoError(err))
			}
			return goja.Undefined()
		},
		"defer": func(call goja.FunctionCall) goja.Value {
			fn, ok := goja.AssertFunction(call.Argument(0))
			if !ok {
				panic(r.vm.NewTypeError("task.defer expects a function"))
			}
			name := r.childName(call.Argument(0))
			args := append([]goja.Value(nil), call.Arguments[1:]...)
			if err := r.sched.Enqueue(func() {
				if _, err := fn(goja.Undefined(), args...); err != nil {
					r.coroutineFailed(&jsCoroutine{name: name}, err)
				}
			}); err != nil {
				panic(r.vm.NewGoError(err))
			}
			return goja.Undefined()
		},
		"pending": r.sched.Len,
		"_now":    func() float64 { return time.Since(clockStart).Seconds() },
	})
}

// setModule installs members as a plain script object so scripts can
// extend it.
func (r *Runtime) setModule(name string, members map[string]any) error {
	obj := r.vm.NewObject()
	for k, v := range members {
		if err := obj.Set(k, v); err != nil {
			return err
		}
	}
	return r.vm.Set(name, obj)
}

func (r *Runtime) childName(fn goja.Value) string {
	if obj, ok := fn.(*goja.Object); ok {
		if n := obj.Get("name"); n != nil && n.String() != "" {
			return r.script + ":" + n.String()
		}
	}
	return r.script
}
