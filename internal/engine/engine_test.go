package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/me/corohost/internal/scheduler"
	"github.com/me/corohost/pkg/model"
)

type stubEngine struct{ name Name }

func (s *stubEngine) Name() Name { return s.name }
func (s *stubEngine) RunFile(context.Context, string) (*model.RunResult, error) {
	return &model.RunResult{State: model.RunStateFinished}, nil
}
func (s *stubEngine) RunString(context.Context, string, string) (*model.RunResult, error) {
	return &model.RunResult{State: model.RunStateFinished}, nil
}
func (s *stubEngine) Scheduler() *scheduler.Scheduler { return nil }
func (s *stubEngine) Close() error                    { return nil }

func TestNew_Registered(t *testing.T) {
	const name Name = "stub"
	Register(name, func(cfg Config, logger *slog.Logger) (Engine, error) {
		return &stubEngine{name: cfg.Name}, nil
	})

	e, err := New(Config{Name: name}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if e.Name() != name {
		t.Errorf("Name() = %q, want %q", e.Name(), name)
	}

	found := false
	for _, n := range Registered() {
		if n == name {
			found = true
		}
	}
	if !found {
		t.Errorf("Registered() = %v, missing %q", Registered(), name)
	}
}

func TestNew_Unknown(t *testing.T) {
	_, err := New(Config{Name: "cobol"}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	var ee *EngineError
	if !errors.As(err, &ee) || ee.Kind != ErrInit {
		t.Fatalf("New(cobol) = %v, want init EngineError", err)
	}
}

func TestDetectName(t *testing.T) {
	tests := []struct {
		path string
		want Name
		ok   bool
	}{
		{"main.lua", Lua, true},
		{"lib/x.LUAU", Lua, true},
		{"app.js", JS, true},
		{"app.mjs", JS, true},
		{"README.md", "", false},
	}
	for _, tt := range tests {
		got, ok := DetectName(tt.path)
		if got != tt.want || ok != tt.ok {
			t.Errorf("DetectName(%q) = %q, %v; want %q, %v", tt.path, got, ok, tt.want, tt.ok)
		}
	}
}

func TestConfig_Enabled(t *testing.T) {
	all := Config{}
	for _, lib := range AllLibraries {
		if !all.Enabled(lib) {
			t.Errorf("default config should enable %s", lib)
		}
	}

	sandboxed := Config{Sandbox: true}
	if sandboxed.Enabled(LibProcess) {
		t.Error("sandbox must hide process")
	}
	if !sandboxed.Enabled(LibFS) {
		t.Error("sandbox keeps read-only fs")
	}

	picked := Config{Libraries: []string{"JSON", "task"}}
	if !picked.Enabled(LibJSON) || !picked.Enabled(LibTask) || picked.Enabled(LibHTTP) {
		t.Error("explicit library list not honored")
	}
}

func TestEngineError(t *testing.T) {
	cause := errors.New("boom")
	err := &EngineError{Kind: ErrEval, Message: "syntax", Cause: cause}
	if err.Error() != "eval: syntax" {
		t.Errorf("Error() = %q", err.Error())
	}
	if !errors.Is(err, cause) {
		t.Error("Unwrap should expose cause")
	}
}
