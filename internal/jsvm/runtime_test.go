package jsvm

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/me/corohost/internal/console"
	"github.com/me/corohost/internal/engine"
	"github.com/me/corohost/internal/process"
	"github.com/me/corohost/pkg/model"
)

func newTestRuntime(t *testing.T, cfg engine.Config, stdin string) (*Runtime, *bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	var out, errOut bytes.Buffer
	cfg.Console = console.New(strings.NewReader(stdin), &out, &errOut)
	if cfg.TickInterval == 0 {
		cfg.TickInterval = time.Millisecond
	}
	r, err := New(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { r.Close() })
	return r, &out, &errOut
}

func runString(t *testing.T, r *Runtime, code string) (*model.RunResult, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return r.RunString(ctx, "test.js", code)
}

func TestRunString_ConsoleLog(t *testing.T) {
	r, out, errOut := newTestRuntime(t, engine.Config{}, "")
	res, err := runString(t, r, `console.log("hello", 42); console.error("bad");`)
	if err != nil {
		t.Fatalf("RunString: %v", err)
	}
	if res.State != model.RunStateFinished {
		t.Errorf("State = %s", res.State)
	}
	if out.String() != "hello 42\n" {
		t.Errorf("stdout = %q", out.String())
	}
	if errOut.String() != "bad\n" {
		t.Errorf("stderr = %q", errOut.String())
	}
	if r.Live() != 0 {
		t.Errorf("Live = %d, want 0", r.Live())
	}
}

func TestRunString_SyntaxError(t *testing.T) {
	r, _, _ := newTestRuntime(t, engine.Config{}, "")
	_, err := runString(t, r, `let = ;`)
	var ee *engine.EngineError
	if !errors.As(err, &ee) || ee.Kind != engine.ErrEval {
		t.Fatalf("err = %v, want eval EngineError", err)
	}
}

func TestRunString_Throw(t *testing.T) {
	r, _, _ := newTestRuntime(t, engine.Config{}, "")
	res, err := runString(t, r, `throw new Error("kaput");`)
	var se *model.ScriptError
	if !errors.As(err, &se) || !strings.Contains(se.Message, "kaput") {
		t.Fatalf("err = %v, want ScriptError mentioning kaput", err)
	}
	if res.State != model.RunStateErrored {
		t.Errorf("State = %s", res.State)
	}
}

func TestTask_SpawnInterleaves(t *testing.T) {
	r, out, _ := newTestRuntime(t, engine.Config{}, "")
	_, err := runString(t, r, `
		for (const name of ["a", "b"]) {
			task.spawn(function* () {
				for (let i = 1; i <= 3; i++) {
					io.stdout.write(name + i + " ");
					yield* task.wait();
				}
			});
		}
	`)
	if err != nil {
		t.Fatalf("RunString: %v", err)
	}
	if got := out.String(); got != "a1 b1 a2 b2 a3 b3 " {
		t.Errorf("output = %q", got)
	}
}

func TestTask_TopLevelYield(t *testing.T) {
	r, out, _ := newTestRuntime(t, engine.Config{}, "")
	res, err := runString(t, r, `
		task.spawn(function () { console.log("child"); });
		console.log("before");
		yield;
		console.log("after");
	`)
	if err != nil {
		t.Fatal(err)
	}
	if out.String() != "before\nchild\nafter\n" {
		t.Errorf("output = %q", out.String())
	}
	if res.Ticks < 2 {
		t.Errorf("Ticks = %d, want at least 2", res.Ticks)
	}
}

func TestTask_DeferAndArgs(t *testing.T) {
	r, out, _ := newTestRuntime(t, engine.Config{}, "")
	_, err := runString(t, r, `
		task.defer(function (x) { console.log("deferred", x); }, "D");
		task.spawn(function* (x, y) { console.log("spawned", x + y); }, 1, 2);
		console.log("main", task.pending());
	`)
	if err != nil {
		t.Fatal(err)
	}
	want := "main 2\ndeferred D\nspawned 3\n"
	if out.String() != want {
		t.Errorf("output = %q, want %q", out.String(), want)
	}
}

func TestTask_SpawnedErrorRecorded(t *testing.T) {
	r, out, _ := newTestRuntime(t, engine.Config{}, "")
	res, err := runString(t, r, `
		task.spawn(function* worker() { throw new Error("child failed"); });
		yield;
		console.log("survived");
	`)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Errors) != 1 || !strings.Contains(res.Errors[0].Message, "child failed") {
		t.Errorf("Errors = %+v", res.Errors)
	}
	if res.Errors[0].Script != "test.js:worker" {
		t.Errorf("Script = %q", res.Errors[0].Script)
	}
	if out.String() != "survived\n" {
		t.Errorf("output = %q", out.String())
	}
}

func TestProcess_Exit(t *testing.T) {
	r, out, _ := newTestRuntime(t, engine.Config{Args: []string{"one"}}, "")
	_, err := runString(t, r, `
		console.log(process.args()[0]);
		process.exit(4);
		console.log("unreachable");
	`)
	var exitErr *process.ExitError
	if !errors.As(err, &exitErr) || exitErr.Code != 4 {
		t.Fatalf("err = %v, want exit status 4", err)
	}
	if out.String() != "one\n" {
		t.Errorf("output = %q", out.String())
	}
}

func TestContextTimeout(t *testing.T) {
	r, _, _ := newTestRuntime(t, engine.Config{}, "")
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := r.RunString(ctx, "forever.js", `while (true) { yield; }`)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}

	if r.Live() != 0 || !r.Scheduler().Empty() {
		t.Errorf("Live = %d, pending = %d after timeout", r.Live(), r.Scheduler().Len())
	}

	// The interrupt must not leak into the next run.
	if _, err := runString(t, r, `console.log("again");`); err != nil {
		t.Fatalf("second run: %v", err)
	}
}

func TestFSAndIO(t *testing.T) {
	dir := t.TempDir()
	r, out, _ := newTestRuntime(t, engine.Config{}, "")
	code := `
		const root = fs.path(DIR);
		const file = root.join("notes.txt");
		const w = io.filewriter(file, false);
		w.write("one\ntwo\n");
		w.close();
		console.log(fs.exists(file), fs.type(file), file.extension(), file.stem());
		const rd = io.filereader(file);
		console.log(rd.lines().join("|"));
		rd.close();
		console.log(fs.subpaths(root, false).length);
		console.log(fs.remove(file, false), fs.exists(file));
	`
	code = strings.ReplaceAll(code, "DIR", `"`+filepath.ToSlash(dir)+`"`)
	if _, err := runString(t, r, code); err != nil {
		t.Fatalf("RunString: %v", err)
	}
	want := "true file .txt notes\none|two\n1\n1 false\n"
	if out.String() != want {
		t.Errorf("output = %q, want %q", out.String(), want)
	}
}

func TestJSONAndYAML(t *testing.T) {
	r, out, _ := newTestRuntime(t, engine.Config{}, "")
	_, err := runString(t, r, `
		const v = json.parse('{"a":[1,2],"s":"x"}');
		console.log(v.a[1], v.s);
		console.log(json.tostring({k: "v"}, ""));
		const y = yaml.parse("n: 3\n");
		console.log(y.n);
	`)
	if err != nil {
		t.Fatal(err)
	}
	if out.String() != "2 x\n{\"k\":\"v\"}\n3\n" {
		t.Errorf("output = %q", out.String())
	}
}

func TestHTTPFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Write([]byte("body:" + req.URL.Path))
	}))
	defer srv.Close()

	r, out, _ := newTestRuntime(t, engine.Config{}, "")
	code := `
		console.log(http.urlinfo(URL + "/p").path);
		console.log(http.get(URL + "/sync").body);
		const resp = yield* http.fetch(URL + "/async");
		console.log(resp.status, resp.body);
	`
	code = strings.ReplaceAll(code, "URL", `"`+srv.URL+`"`)
	if _, err := runString(t, r, code); err != nil {
		t.Fatalf("RunString: %v", err)
	}
	want := "/p\nbody:/sync\n200 body:/async\n"
	if out.String() != want {
		t.Errorf("output = %q, want %q", out.String(), want)
	}
}

func TestHTTPFetch_LateCompletionDropped(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		select {
		case <-release:
		case <-req.Context().Done():
		}
		w.Write([]byte("late"))
	}))
	defer srv.Close()
	defer close(release)

	var logs lockedBuffer
	var out bytes.Buffer
	r, err := New(engine.Config{
		TickInterval: time.Millisecond,
		Console:      console.New(strings.NewReader(""), &out, io.Discard),
	}, slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug})))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { r.Close() })

	// The script ends without waiting, so the request outlives the run.
	code := strings.ReplaceAll(`http._fetchStart(URL + "/slow"); console.log("started");`, "URL", `"`+srv.URL+`"`)
	if _, err := runString(t, r, code); err != nil {
		t.Fatalf("RunString: %v", err)
	}
	waitForLog(t, &logs, "fetch completion dropped")
	if n := r.Scheduler().Len(); n != 0 {
		t.Fatalf("queue holds %d tasks after the run ended", n)
	}

	out.Reset()
	if _, err := runString(t, r, `console.log("next")`); err != nil {
		t.Fatalf("second run: %v", err)
	}
	if out.String() != "next\n" {
		t.Errorf("second run output = %q", out.String())
	}
}

// lockedBuffer collects log output written from background goroutines.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func waitForLog(t *testing.T, logs *lockedBuffer, msg string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !strings.Contains(logs.String(), msg) {
		if time.Now().After(deadline) {
			t.Fatalf("log %q never written; logs:\n%s", msg, logs.String())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestSandbox(t *testing.T) {
	r, out, _ := newTestRuntime(t, engine.Config{Sandbox: true}, "")
	_, err := runString(t, r, `
		let blocked = false;
		try { require("./anything"); } catch (e) { blocked = true; }
		console.log(typeof process, fs.remove === undefined, io.filewriter === undefined, blocked);
	`)
	if err != nil {
		t.Fatal(err)
	}
	if out.String() != "undefined true true true\n" {
		t.Errorf("output = %q", out.String())
	}
}

func TestRunFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "main.js")
	if err := os.WriteFile(path, []byte(`console.log("from file")`), 0o644); err != nil {
		t.Fatal(err)
	}
	r, out, _ := newTestRuntime(t, engine.Config{}, "")
	if _, err := r.RunFile(context.Background(), path); err != nil {
		t.Fatalf("RunFile: %v", err)
	}
	if out.String() != "from file\n" {
		t.Errorf("output = %q", out.String())
	}
}

func TestConsoleInput(t *testing.T) {
	r, out, _ := newTestRuntime(t, engine.Config{}, "tok rest\n")
	_, err := runString(t, r, `
		const a = console.scan();
		const line = console.read_line();
		console.write(a + "|" + line + "|" + console.read_line());
	`)
	if err != nil {
		t.Fatal(err)
	}
	if out.String() != "tok|rest|null" {
		t.Errorf("output = %q", out.String())
	}
}
