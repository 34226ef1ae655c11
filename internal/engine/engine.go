// Package engine defines the host-facing abstraction over embedded script
// runtimes and a registry of runtime constructors.
package engine

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/me/corohost/internal/console"
	"github.com/me/corohost/internal/scheduler"
	"github.com/me/corohost/pkg/model"
)

// Name identifies a runtime implementation.
type Name string

const (
	Lua Name = "lua"
	JS  Name = "js"
)

// Library names accepted in Config.Libraries.
const (
	LibFS      = "fs"
	LibIO      = "io"
	LibHTTP    = "http"
	LibJSON    = "json"
	LibYAML    = "yaml"
	LibProcess = "process"
	LibConsole = "console"
	LibTask    = "task"
)

// AllLibraries lists every native library in registration order.
var AllLibraries = []string{LibFS, LibIO, LibHTTP, LibJSON, LibYAML, LibProcess, LibConsole, LibTask}

// Config is the runtime-independent engine configuration.
type Config struct {
	Name         Name
	Libraries    []string         // empty opens all libraries
	Sandbox      bool             // hide process control and filesystem mutation
	Args         []string         // script arguments
	TickInterval time.Duration    // scheduler cadence
	HTTPTimeout  time.Duration    // bound on a single request
	ModuleDir    string           // search root for require
	Console      *console.Console // nil uses the process streams
}

// Enabled reports whether lib should be opened under this config.
func (c Config) Enabled(lib string) bool {
	if c.Sandbox && lib == LibProcess {
		return false
	}
	if len(c.Libraries) == 0 {
		return true
	}
	for _, l := range c.Libraries {
		if strings.EqualFold(l, lib) {
			return true
		}
	}
	return false
}

// Engine runs scripts as coroutines on a cooperative scheduler.
type Engine interface {
	Name() Name

	// RunFile loads the script at path and drives it until every task it
	// spawned has finished, or ctx is done.
	RunFile(ctx context.Context, path string) (*model.RunResult, error)
	// RunString is RunFile for inline source; name labels errors.
	RunString(ctx context.Context, name, code string) (*model.RunResult, error)

	// Scheduler exposes the task queue so the host can enqueue work.
	Scheduler() *scheduler.Scheduler

	Close() error
}

// DetectName picks an engine from a script's extension.
func DetectName(path string) (Name, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".lua", ".luau":
		return Lua, true
	case ".js", ".mjs", ".cjs":
		return JS, true
	}
	return "", false
}

// Constructor builds an engine from a config.
type Constructor func(cfg Config, logger *slog.Logger) (Engine, error)
