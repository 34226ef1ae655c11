// Package jsvm hosts JavaScript on the cooperative scheduler using goja.
// Coroutines are generator objects: a script suspends itself with yield
// and the scheduler calls next once per tick.
package jsvm

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/console"
	"github.com/dop251/goja_nodejs/require"

	hostconsole "github.com/me/corohost/internal/console"
	"github.com/me/corohost/internal/engine"
	"github.com/me/corohost/internal/process"
	"github.com/me/corohost/internal/scheduler"
	"github.com/me/corohost/pkg/model"
)

func init() {
	engine.Register(engine.JS, func(cfg engine.Config, logger *slog.Logger) (engine.Engine, error) {
		return New(cfg, logger)
	})
}

// Runtime is a goja VM bound to a scheduler.
type Runtime struct {
	vm       *goja.Runtime
	cfg      engine.Config
	sched    *scheduler.Scheduler
	registry *scheduler.Registry
	console  *hostconsole.Console
	proc     *process.Process
	logger   *slog.Logger

	// bgMu orders background deliveries against the end of a run.
	bgMu sync.Mutex

	ctx     context.Context
	cancel  context.CancelFunc
	script  string
	main    *jsCoroutine
	mainErr *model.ScriptError
	errs    []*model.ScriptError
	exit    *process.ExitError
}

// New creates a JavaScript runtime with the libraries enabled by cfg.
func New(cfg engine.Config, logger *slog.Logger) (*Runtime, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = scheduler.DefaultConfig().TickInterval
	}
	logger = logger.With("component", "jsvm")

	con := cfg.Console
	if con == nil {
		con = hostconsole.Std()
	}
	proc := process.New(cfg.Args)
	proc.SetOutput(con.Out.Stream(), con.Err.Stream())

	reg := scheduler.NewRegistry()
	vm := goja.New()
	vm.SetFieldNameMapper(goja.TagFieldNameMapper("json", true))

	r := &Runtime{
		vm:       vm,
		cfg:      cfg,
		sched:    scheduler.New(reg, logger),
		registry: reg,
		console:  con,
		proc:     proc,
		logger:   logger,
		ctx:      context.Background(),
	}
	if err := r.openLibs(); err != nil {
		return nil, &engine.EngineError{Kind: engine.ErrInit, Message: "opening libraries", Cause: err}
	}
	return r, nil
}

func (r *Runtime) openLibs() error {
	opts := []require.Option{}
	if r.cfg.Sandbox {
		opts = append(opts, require.WithLoader(func(string) ([]byte, error) {
			return nil, require.ModuleFileDoesNotExistError
		}))
	} else if r.cfg.ModuleDir != "" {
		opts = append(opts, require.WithGlobalFolders(r.cfg.ModuleDir))
	}
	reg := require.NewRegistry(opts...)
	reg.RegisterNativeModule("console", console.RequireWithPrinter(&printer{c: r.console}))
	reg.Enable(r.vm)
	console.Enable(r.vm)

	libs := []struct {
		name string
		open func() error
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
		if !r.cfg.Enabled(lib.name) {
			continue
		}
		if err := lib.open(); err != nil {
			return err
		}
		r.logger.Debug("library opened", "name", lib.name)
	}
	_, err := r.vm.RunScript("prelude.js", prelude)
	return err
}

// Name implements engine.Engine.
func (r *Runtime) Name() engine.Name { return engine.JS }

// Scheduler implements engine.Engine.
func (r *Runtime) Scheduler() *scheduler.Scheduler { return r.sched }

// Live returns the number of coroutines still pinned by the runtime.
func (r *Runtime) Live() int { return r.registry.Live() }

// Close flushes output. The VM itself is garbage collected.
func (r *Runtime) Close() error {
	return r.console.Flush()
}

// RunFile implements engine.Engine.
func (r *Runtime) RunFile(ctx context.Context, path string) (*model.RunResult, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, &engine.EngineError{Kind: engine.ErrEval, Message: err.Error(), Cause: err}
	}
	return r.RunString(ctx, filepath.Base(path), string(src))
}

// RunString implements engine.Engine. The source becomes the body of a
// generator function so top-level code may yield.
func (r *Runtime) RunString(ctx context.Context, name, code string) (*model.RunResult, error) {
	v, err := r.vm.RunScript(name, "(function*(){"+code+"\n})")
	if err != nil {
		return nil, &engine.EngineError{Kind: engine.ErrEval, Message: err.Error(), Cause: err}
	}
	fn, ok := goja.AssertFunction(v)
	if !ok {
		return nil, &engine.EngineError{Kind: engine.ErrInternal, Message: "script did not compile to a function"}
	}
	args := make([]goja.Value, 0, len(r.cfg.Args))
	for _, a := range r.cfg.Args {
		args = append(args, r.vm.ToValue(a))
	}
	return r.run(ctx, name, r.newCoroutine(name, fn, args))
}

func (r *Runtime) run(ctx context.Context, name string, main *jsCoroutine) (*model.RunResult, error) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	r.ctx, r.cancel = runCtx, cancel
	r.script, r.main, r.mainErr, r.errs, r.exit = name, main, nil, nil, nil

	stop, watcherDone := make(chan struct{}), make(chan struct{})
	go func() {
		defer close(watcherDone)
		select {
		case <-runCtx.Done():
			r.vm.Interrupt(runCtx.Err())
		case <-stop:
		}
	}()
	defer func() {
		r.bgMu.Lock()
		cancel()
		r.bgMu.Unlock()
		close(stop)
		<-watcherDone
		r.vm.ClearInterrupt()
		if n := r.sched.Clear(); n > 0 {
			r.logger.Debug("dropped unfinished tasks", "count", n)
		}
		r.ctx, r.cancel = context.Background(), nil
		_ = r.console.Flush()
	}()

	if err := r.sched.EnqueueCoroutine(main); err != nil {
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

// coroutineFailed records an exception thrown out of a coroutine.
func (r *Runtime) coroutineFailed(co *jsCoroutine, err error) {
	if r.exit != nil {
		return
	}
	se := &model.ScriptError{Script: co.name, Message: err.Error()}
	var exc *goja.Exception
	if errors.As(err, &exc) {
		se.Message = exc.Value().String()
		se.Traceback = exc.String()
	}
	r.errs = append(r.errs, se)
	if co == r.main {
		r.mainErr = se
	}
	r.logger.Error("coroutine errored", "script", co.name, "error", se.Message)
}

func (r *Runtime) requestExit(err error) {
	var exitErr *process.ExitError
	if r.exit == nil && errors.As(err, &exitErr) {
		r.exit = exitErr
	}
	if r.cancel != nil {
		r.cancel()
	}
}

// printer routes goja_nodejs console output to the host console.
type printer struct {
	c *hostconsole.Console
}

func (p *printer) Log(s string)   { _ = p.c.Write(s + "\n") }
func (p *printer) Warn(s string)  { _ = p.c.ErrWrite(s + "\n") }
func (p *printer) Error(s string) { _ = p.c.ErrWrite(s + "\n") }

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
