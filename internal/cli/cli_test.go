package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/me/corohost/internal/config"
	"github.com/me/corohost/internal/process"
)

// execCLI runs the root command with args and returns stdout and stderr.
func execCLI(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv(config.EnvPath, "")
	var out, errOut bytes.Buffer
	root := NewRootCmd()
	root.SetArgs(args)
	root.SetIn(strings.NewReader(stdin))
	root.SetOut(&out)
	root.SetErr(&errOut)
	err := root.Execute()
	return out.String(), errOut.String(), err
}

func writeScript(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRun_LuaFile(t *testing.T) {
	script := writeScript(t, "hello.lua", `
		task.spawn(function(...) print("child", ...) end, process.args()[1])
		print("main")
	`)
	out, _, err := execCLI(t, "", "run", script, "--flag-for-script")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if out != "main\nchild\t--flag-for-script\n" {
		t.Errorf("stdout = %q", out)
	}
}

func TestRun_JSFile(t *testing.T) {
	script := writeScript(t, "hello.js", `
		const name = console.read_line();
		console.log("hi " + name);
	`)
	out, _, err := execCLI(t, "world\n", "run", script)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if out != "hi world\n" {
		t.Errorf("stdout = %q", out)
	}
}

func TestRun_UnknownExtension(t *testing.T) {
	script := writeScript(t, "notes.txt", "print(1)")
	if _, _, err := execCLI(t, "", "run", script); err == nil || !strings.Contains(err.Error(), "--engine") {
		t.Errorf("err = %v, want hint about --engine", err)
	}

	out, _, err := execCLI(t, "", "run", "--engine", "lua", script)
	if err != nil {
		t.Fatalf("run with --engine: %v", err)
	}
	if out != "1\n" {
		t.Errorf("stdout = %q", out)
	}
}

func TestEval(t *testing.T) {
	out, _, err := execCLI(t, "", "eval", `print(json.tostring({1, 2}))`)
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	if out != "[1,2]\n" {
		t.Errorf("stdout = %q", out)
	}

	out, _, err = execCLI(t, "", "eval", "--engine", "js", `console.log(task.pending())`)
	if err != nil {
		t.Fatalf("eval js: %v", err)
	}
	if out != "0\n" {
		t.Errorf("stdout = %q", out)
	}
}

func TestRun_ExitCode(t *testing.T) {
	_, _, err := execCLI(t, "", "eval", `process.exit(5)`)
	var exitErr *process.ExitError
	if !errors.As(err, &exitErr) || exitErr.Code != 5 {
		t.Fatalf("err = %v, want exit status 5", err)
	}

	if _, _, err := execCLI(t, "", "eval", `process.exit(0)`); err != nil {
		t.Errorf("exit(0) should succeed, got %v", err)
	}
}

func TestRun_TaskErrorsReported(t *testing.T) {
	_, errOut, err := execCLI(t, "", "eval", `task.spawn(function() error("child broke") end)`)
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	if !strings.Contains(errOut, "task error:") || !strings.Contains(errOut, "child broke") {
		t.Errorf("stderr = %q", errOut)
	}
}

func TestRun_Sandbox(t *testing.T) {
	out, _, err := execCLI(t, "", "eval", "--sandbox", `print(process == nil)`)
	if err != nil {
		t.Fatal(err)
	}
	if out != "true\n" {
		t.Errorf("stdout = %q", out)
	}
}

func TestHistory(t *testing.T) {
	db := filepath.Join(t.TempDir(), "runs", "history.db")

	if _, _, err := execCLI(t, "", "--history-db", db, "eval", `print("ok")`); err != nil {
		t.Fatalf("eval: %v", err)
	}
	if _, _, err := execCLI(t, "", "--history-db", db, "eval", `error("bad")`); err == nil {
		t.Fatal("failing eval should return an error")
	}

	out, _, err := execCLI(t, "", "--history-db", db, "history", "--json")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	var runs []struct {
		State  string `json:"state"`
		Engine string `json:"engine"`
		Error  string `json:"error"`
	}
	if err := json.Unmarshal([]byte(out), &runs); err != nil {
		t.Fatalf("decode history: %v\n%s", err, out)
	}
	if len(runs) != 2 {
		t.Fatalf("runs = %d, want 2", len(runs))
	}
	states := map[string]bool{runs[0].State: true, runs[1].State: true}
	if !states["FINISHED"] || !states["ERRORED"] {
		t.Errorf("states = %v", states)
	}

	table, _, err := execCLI(t, "", "--history-db", db, "history", "-n", "1")
	if err != nil {
		t.Fatalf("history table: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(table), "\n")
	if len(lines) != 3 || !strings.HasPrefix(lines[0], "ID") || lines[2] != "(runs 1-1 of 2 shown; next: --offset 1)" {
		t.Errorf("table = %q", table)
	}

	seen := map[string]bool{}
	for _, offset := range []string{"0", "1"} {
		page, _, err := execCLI(t, "", "--history-db", db, "history", "-n", "1", "--offset", offset, "--json")
		if err != nil {
			t.Fatalf("history --offset %s: %v", offset, err)
		}
		runs = nil
		if err := json.Unmarshal([]byte(page), &runs); err != nil {
			t.Fatal(err)
		}
		if len(runs) != 1 {
			t.Fatalf("offset %s: runs = %d, want 1", offset, len(runs))
		}
		seen[runs[0].State] = true
	}
	if !seen["FINISHED"] || !seen["ERRORED"] {
		t.Errorf("paged states = %v, want both runs", seen)
	}

	errored, _, err := execCLI(t, "", "--history-db", db, "history", "--state", "errored", "--json")
	if err != nil {
		t.Fatalf("history --state: %v", err)
	}
	runs = nil
	if err := json.Unmarshal([]byte(errored), &runs); err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 || runs[0].State != "ERRORED" || !strings.Contains(runs[0].Error, "bad") {
		t.Errorf("errored runs = %+v", runs)
	}
}

func TestHistory_NotConfigured(t *testing.T) {
	if _, _, err := execCLI(t, "", "history"); err == nil {
		t.Error("history without a database should fail")
	}
}

func TestConfigFile(t *testing.T) {
	cfgPath := writeScript(t, "corohost.yaml", "engine: js\nlibraries: [json]\n")
	out, _, err := execCLI(t, "", "--config", cfgPath, "eval", `console.log(typeof fs, typeof json)`)
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	if out != "undefined object\n" {
		t.Errorf("stdout = %q", out)
	}
}

func TestVersion(t *testing.T) {
	out, _, err := execCLI(t, "", "version")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "corohost dev") || !strings.Contains(out, "js, lua") {
		t.Errorf("stdout = %q", out)
	}
}

func TestServe_NotConfigured(t *testing.T) {
	if _, _, err := execCLI(t, "", "serve"); err == nil {
		t.Error("serve without a database should fail")
	}
}

func TestServe_StopsOnCancel(t *testing.T) {
	t.Setenv(config.EnvPath, "")
	db := filepath.Join(t.TempDir(), "history.db")

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	var out bytes.Buffer
	root := NewRootCmd()
	root.SetArgs([]string{"--history-db", db, "serve", "--addr", "127.0.0.1:0"})
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	if err := root.ExecuteContext(ctx); err != nil {
		t.Fatalf("serve: %v", err)
	}
	if !strings.HasPrefix(out.String(), "serving run history on http://127.0.0.1:") {
		t.Errorf("stdout = %q", out.String())
	}
}
