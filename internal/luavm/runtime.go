// Package luavm hosts Lua scripts on a cooperative scheduler. Each script,
// and every function passed to task.spawn, runs in its own Lua thread that
// the scheduler resumes once per tick until it returns or errors.
package luavm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	lua "github.com/yuin/gopher-lua"

	"github.com/me/corohost/internal/console"
	"github.com/me/corohost/internal/engine"
	"github.com/me/corohost/internal/process"
	"github.com/me/corohost/internal/scheduler"
	"github.com/me/corohost/pkg/model"
)

func init() {
	engine.Register(engine.Lua, func(cfg engine.Config, logger *slog.Logger) (engine.Engine, error) {
		return New(cfg, logger)
	})
}

// Runtime is a Lua state bound to a scheduler.
type Runtime struct {
	L        *lua.LState
	cfg      engine.Config
	sched    *scheduler.Scheduler
	registry *scheduler.Registry
	console  *console.Console
	proc     *process.Process
	logger   *slog.Logger
	types    *luaTypes

	// bgMu orders background deliveries against the end of a run.
	bgMu sync.Mutex

	// Per-run state. Only touched from the goroutine driving the loop.
	ctx     context.Context
	cancel  context.CancelFunc
	script  string
	main    *luaCoroutine
	mainErr *model.ScriptError
	errs    []*model.ScriptError
	exit    *process.ExitError
}

// New creates a Lua runtime with the libraries enabled by cfg.
func New(cfg engine.Config, logger *slog.Logger) (*Runtime, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = scheduler.DefaultConfig().TickInterval
	}
	logger = logger.With("component", "luavm")

	reg := scheduler.NewRegistry()
	con := cfg.Console
	if con == nil {
		con = console.Std()
	}
	proc := process.New(cfg.Args)
	proc.SetOutput(con.Out.Stream(), con.Err.Stream())

	r := &Runtime{
		L:        lua.NewState(lua.Options{SkipOpenLibs: true}),
		cfg:      cfg,
		sched:    scheduler.New(reg, logger),
		registry: reg,
		console:  con,
		proc:     proc,
		logger:   logger,
		ctx:      context.Background(),
	}
	if err := r.openLibs(); err != nil {
		r.L.Close()
		return nil, &engine.EngineError{Kind: engine.ErrInit, Message: "opening libraries", Cause: err}
	}
	return r, nil
}

func (r *Runtime) openLibs() error {
	L := r.L
	for _, open := range []lua.LGFunction{lua.OpenBase, lua.OpenTable, lua.OpenString, lua.OpenMath, lua.OpenCoroutine} {
		open(L)
	}
	if !r.cfg.Sandbox {
		lua.OpenPackage(L)
		if r.cfg.ModuleDir != "" {
			pkg := L.GetGlobal("package")
			path := filepath.Join(r.cfg.ModuleDir, "?.lua") + ";" + lua.LVAsString(L.GetField(pkg, "path"))
			L.SetField(pkg, "path", lua.LString(path))
		}
	} else {
		for _, name := range []string{"dofile", "loadfile", "load", "loadstring", "collectgarbage", "require"} {
			L.SetGlobal(name, lua.LNil)
		}
	}
	L.SetTop(0)
	L.SetGlobal("print", L.NewFunction(r.print))

	r.registerTypes()
	libs := []struct {
		name string
		open func(*lua.LState)
	}{
		{engine.LibFS, r.openFS},
		{engine.LibIO, r.openIO},
		{engine.LibHTTP, r.openHTTP},
		{engine.LibJSON, r.openJSON},
		{engine.LibYAML, r.openYAML},
		{engine.LibProcess, r.openProcess},
		{engine.LibConsole, r.openConsole},
		{engine.LibTask, r.openTask},
	}
	for _, lib := range libs {
		if r.cfg.Enabled(lib.name) {
			lib.open(L)
			r.logger.Debug("library opened", "name", lib.name)
		}
	}
	return L.DoString(prelude)
}

// Name implements engine.Engine.
func (r *Runtime) Name() engine.Name { return engine.Lua }

// Scheduler implements engine.Engine.
func (r *Runtime) Scheduler() *scheduler.Scheduler { return r.sched }

// Live returns the number of coroutines still pinned by the runtime.
func (r *Runtime) Live() int { return r.registry.Live() }

// Close releases the Lua state.
func (r *Runtime) Close() error {
	_ = r.console.Flush()
	r.L.Close()
	return nil
}

// RunFile implements engine.Engine.
func (r *Runtime) RunFile(ctx context.Context, path string) (*model.RunResult, error) {
	fn, err := r.L.LoadFile(path)
	if err != nil {
		return nil, &engine.EngineError{Kind: engine.ErrEval, Message: err.Error(), Cause: err}
	}
	return r.run(ctx, filepath.Base(path), fn)
}

// RunString implements engine.Engine.
func (r *Runtime) RunString(ctx context.Context, name, code string) (*model.RunResult, error) {
	fn, err := r.L.Load(strings.NewReader(code), name)
	if err != nil {
		return nil, &engine.EngineError{Kind: engine.ErrEval, Message: err.Error(), Cause: err}
	}
	return r.run(ctx, name, fn)
}

func (r *Runtime) run(ctx context.Context, name string, fn *lua.LFunction) (*model.RunResult, error) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	r.ctx, r.cancel = runCtx, cancel
	r.script, r.mainErr, r.errs, r.exit = name, nil, nil, nil
	r.L.SetContext(runCtx)
	defer func() {
		r.bgMu.Lock()
		cancel()
		r.bgMu.Unlock()
		r.L.RemoveContext()
		if n := r.sched.Clear(); n > 0 {
			r.logger.Debug("dropped unfinished tasks", "count", n)
		}
		r.ctx, r.cancel = context.Background(), nil
		_ = r.console.Flush()
	}()

	args := make([]lua.LValue, 0, len(r.cfg.Args))
	for _, a := range r.cfg.Args {
		args = append(args, lua.LString(a))
	}
	r.main = r.newCoroutine(name, fn, args)
	if err := r.sched.EnqueueCoroutine(r.main); err != nil {
		return nil, &engine.EngineError{Kind: engine.ErrInternal, Message: "enqueue main", Cause: err}
	}

	started := time.Now()
	loop := scheduler.NewLoop(r.sched, scheduler.Config{
		TickInterval:  r.cfg.TickInterval,
		ExitWhenEmpty: true,
	}, r.logger)
	loopErr := loop.Start(runCtx)

	res := &model.RunResult{State: model.RunStateFinished, Ticks: loop.Ticks(), Errors: r.errs}
	r.logger.Debug("run complete", "script", name, "ticks", res.Ticks, "elapsed", time.Since(started))

	switch {
	case r.exit != nil:
		if r.exit.Code != 0 {
			res.State = model.RunStateErrored
		}
		return res, r.exit
	case ctx.Err() != nil:
		res.State = model.RunStateErrored
		return res, &engine.EngineError{Kind: engine.ErrRuntime, Message: "run interrupted", Cause: ctx.Err()}
	case r.mainErr != nil:
		res.State = model.RunStateErrored
		return res, r.mainErr
	case loopErr != nil:
		res.State = model.RunStateErrored
		return res, &engine.EngineError{Kind: engine.ErrRuntime, Message: "run interrupted", Cause: loopErr}
	}
	return res, nil
}

// deliver enqueues fn for a background goroutine working on behalf of the
// run bound to runCtx. It fails once that run has ended.
func (r *Runtime) deliver(runCtx context.Context, fn func()) error {
	r.bgMu.Lock()
	defer r.bgMu.Unlock()
	if err := runCtx.Err(); err != nil {
		return err
	}
	return r.sched.Enqueue(fn)
}

// coroutineFailed records an error raised inside a coroutine.
func (r *Runtime) coroutineFailed(co *luaCoroutine, err error) {
	if r.exit != nil {
		return
	}
	se := &model.ScriptError{Script: co.name, Message: errorMessage(err)}
	var apiErr *lua.ApiError
	if errors.As(err, &apiErr) {
		se.Traceback = apiErr.StackTrace
	}
	r.errs = append(r.errs, se)
	if co == r.main {
		r.mainErr = se
	}
	r.logger.Error("coroutine errored", "script", co.name, "error", se.Message)
}

// requestExit stops the current run once the raising coroutine unwinds.
func (r *Runtime) requestExit(err error) {
	var exitErr *process.ExitError
	if r.exit == nil && errors.As(err, &exitErr) {
		r.exit = exitErr
	}
	if r.cancel != nil {
		r.cancel()
	}
}

func (r *Runtime) print(L *lua.LState) int {
	n := L.GetTop()
	for i := 1; i <= n; i++ {
		if i > 1 {
			_ = r.console.Out.Write("\t")
		}
		_ = r.console.Out.Write(L.ToStringMeta(L.Get(i)).String())
	}
	_ = r.console.Out.Write("\n")
	return 0
}

func raiseErr(L *lua.LState, err error) {
	L.RaiseError("%s", err.Error())
}

func argError(L *lua.LState, n int, format string, args ...any) {
	L.ArgError(n, fmt.Sprintf(format, args...))
}

// errorMessage returns the value a script raised, without the traceback
// gopher-lua appends to ApiError.Error.
func errorMessage(err error) string {
	var apiErr *lua.ApiError
	if errors.As(err, &apiErr) && apiErr.Object != nil {
		return apiErr.Object.String()
	}
	return strings.TrimSpace(err.Error())
}
