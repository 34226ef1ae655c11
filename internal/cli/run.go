package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/me/corohost/internal/console"
	"github.com/me/corohost/internal/engine"
	"github.com/me/corohost/internal/process"
	"github.com/me/corohost/internal/store"
	"github.com/me/corohost/pkg/model"
)

// runFlags are shared by run and eval.
type runFlags struct {
	engine    string
	sandbox   bool
	libraries []string
	timeout   time.Duration
}

func (f *runFlags) register(cmd *cobra.Command, defaultEngine string) {
	cmd.Flags().StringVar(&f.engine, "engine", defaultEngine, "Script engine (lua, js)")
	cmd.Flags().BoolVar(&f.sandbox, "sandbox", false, "Hide process control and filesystem mutation")
	cmd.Flags().StringSliceVar(&f.libraries, "lib", nil, "Libraries to open (default: all)")
	cmd.Flags().DurationVar(&f.timeout, "timeout", 0, "Abort the script after this long (0 = no limit)")
}

// runSpec describes one script execution.
type runSpec struct {
	engine engine.Name
	script string // file path, or a label for inline code
	code   string // inline source; empty runs script as a file
	args   []string
}

func newRunCmd() *cobra.Command {
	var flags runFlags
	cmd := &cobra.Command{
		Use:   "run <script> [args...]",
		Short: "Run a script file",
		Long: `Run a Lua or JavaScript file. The engine is picked from the file
extension unless --engine is given. Arguments after the script are passed
to it and are available through process.args().`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			spec := runSpec{script: args[0], args: args[1:]}
			name, err := resolveEngine(flags.engine, spec.script)
			if err != nil {
				return err
			}
			spec.engine = name
			return execute(cmd, flags, spec)
		},
	}
	cmd.Flags().SetInterspersed(false)
	flags.register(cmd, "")
	return cmd
}

func newEvalCmd() *cobra.Command {
	var flags runFlags
	cmd := &cobra.Command{
		Use:   "eval <code> [args...]",
		Short: "Run inline source",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := flags.engine
			if name == "" {
				name = cfg.Engine
			}
			if name == "" {
				name = string(engine.Lua)
			}
			spec := runSpec{
				engine: engine.Name(strings.ToLower(name)),
				script: "eval",
				code:   args[0],
				args:   args[1:],
			}
			return execute(cmd, flags, spec)
		},
	}
	cmd.Flags().SetInterspersed(false)
	flags.register(cmd, "")
	return cmd
}

// resolveEngine applies --engine, then the config, then the extension.
func resolveEngine(flag, script string) (engine.Name, error) {
	for _, n := range []string{flag, cfg.Engine} {
		if n != "" {
			return engine.Name(strings.ToLower(n)), nil
		}
	}
	if name, ok := engine.DetectName(script); ok {
		return name, nil
	}
	return "", fmt.Errorf("cannot tell the engine for %s: use --engine", filepath.Base(script))
}

func execute(cmd *cobra.Command, flags runFlags, spec runSpec) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if flags.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, flags.timeout)
		defer cancel()
	}

	libs := cfg.Libraries
	if len(flags.libraries) > 0 {
		libs = flags.libraries
	}
	moduleDir := cfg.ModuleDir
	if moduleDir == "" && spec.code == "" {
		moduleDir = filepath.Dir(spec.script)
	}
	eng, err := engine.New(engine.Config{
		Name:         spec.engine,
		Libraries:    libs,
		Sandbox:      cfg.Sandbox || flags.sandbox,
		Args:         spec.args,
		TickInterval: cfg.TickInterval,
		HTTPTimeout:  cfg.HTTPTimeout,
		ModuleDir:    moduleDir,
		Console:      console.New(cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr()),
	}, logger)
	if err != nil {
		return err
	}
	defer eng.Close()

	history, err := openHistory(ctx)
	if err != nil {
		logger.Warn("run history disabled", "error", err)
	}
	if history != nil {
		defer history.Close()
	}

	run := &model.Run{
		ID:        store.NewRunID(),
		Script:    spec.script,
		Engine:    string(spec.engine),
		Args:      spec.args,
		State:     model.RunStateRunning,
		StartedAt: time.Now().UTC(),
	}
	if history != nil {
		if err := history.CreateRun(ctx, run); err != nil {
			logger.Warn("record run", "id", run.ID, "error", err)
			history = nil
		}
	}
	logger.Info("run started", "id", run.ID, "script", spec.script, "engine", spec.engine)

	var res *model.RunResult
	if spec.code != "" {
		res, err = eng.RunString(ctx, spec.script, spec.code)
	} else {
		res, err = eng.RunFile(ctx, spec.script)
	}

	run.State = model.RunStateErrored
	if res != nil {
		run.State = res.State
		run.Ticks = res.Ticks
		reportScriptErrors(cmd, res, err)
	}
	var exitErr *process.ExitError
	if err != nil && !(errors.As(err, &exitErr) && exitErr.Code == 0) {
		run.Error = err.Error()
	}
	if history != nil {
		// The run context may already be done; recording should still land.
		if ferr := history.FinishRun(context.WithoutCancel(ctx), run); ferr != nil {
			logger.Warn("record run result", "id", run.ID, "error", ferr)
		}
	}
	logger.Info("run finished", "id", run.ID, "state", run.State, "ticks", run.Ticks)

	if errors.As(err, &exitErr) && exitErr.Code == 0 {
		return nil
	}
	return err
}

// reportScriptErrors prints errors raised by spawned tasks. The main
// script's error is returned to the caller instead.
func reportScriptErrors(cmd *cobra.Command, res *model.RunResult, mainErr error) {
	var se *model.ScriptError
	errors.As(mainErr, &se)
	for _, e := range res.Errors {
		if e == se {
			continue
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "task error: %s\n", e.Error())
	}
}

func openHistory(ctx context.Context) (store.Store, error) {
	if cfg.HistoryDB == "" {
		return nil, nil
	}
	if dir := filepath.Dir(cfg.HistoryDB); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create history dir: %w", err)
		}
	}
	st, err := store.NewSQLiteStore(cfg.HistoryDB, logger)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, fmt.Errorf("migrate history: %w", err)
	}
	return st, nil
}
