package httpc

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
)

// newTestServer serves a few fixed routes for client tests.
func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	r := chi.NewRouter()
	r.Get("/hello", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Test", "yes")
		io.WriteString(w, "hello world")
	})
	r.Get("/files/{name}", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, chi.URLParam(r, "name"))
	})
	r.Get("/old", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/hello", http.StatusFound)
	})
	r.Get("/slow", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
	})
	r.Post("/echo", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		if r.ContentLength > 0 {
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]any{
			"content_type": r.Header.Get("Content-Type"),
			"body":         body,
		})
	})
	ts := httptest.NewServer(r)
	t.Cleanup(ts.Close)
	return ts
}

func TestParseURL(t *testing.T) {
	tests := []struct {
		in      string
		want    URLInfo
		wantErr bool
	}{
		{"http://example.com", URLInfo{"http", "example.com", 80, "/"}, false},
		{"https://example.com/a/b", URLInfo{"https", "example.com", 443, "/a/b"}, false},
		{"http://localhost:8080/x?y=1", URLInfo{"http", "localhost", 8080, "/x?y=1"}, false},
		{"ftp://example.com", URLInfo{}, true},
		{"example.com", URLInfo{}, true},
	}
	for _, tt := range tests {
		got, err := ParseURL(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseURL(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if tt.wantErr {
			if !errors.Is(err, ErrInvalidURL) {
				t.Errorf("ParseURL(%q) error = %v, want ErrInvalidURL", tt.in, err)
			}
			continue
		}
		if got != tt.want {
			t.Errorf("ParseURL(%q) = %+v, want %+v", tt.in, got, tt.want)
		}
	}
}

func TestClient_Get(t *testing.T) {
	ts := newTestServer(t)
	c, err := NewClient(ts.URL)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer c.Stop()

	resp, err := c.Get(context.Background(), "/hello")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if resp.Status != 200 || resp.Body != "hello world" {
		t.Errorf("resp = %d %q", resp.Status, resp.Body)
	}
	if resp.Reason != "OK" {
		t.Errorf("Reason = %q, want OK", resp.Reason)
	}
	if resp.Version != "HTTP/1.1" {
		t.Errorf("Version = %q", resp.Version)
	}
	if got := resp.HeaderValue("x-test", ""); got != "yes" {
		t.Errorf("HeaderValue(x-test) = %q", got)
	}
	if got := resp.HeaderValue("X-Missing", "dflt"); got != "dflt" {
		t.Errorf("HeaderValue(X-Missing) = %q", got)
	}
}

func TestClient_EncodeURL(t *testing.T) {
	ts := newTestServer(t)
	c, _ := NewClient(ts.URL)
	defer c.Stop()

	resp, err := c.Get(context.Background(), "/files/my file.txt")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if resp.Status != 200 || resp.Body != "my file.txt" {
		t.Errorf("resp = %d %q", resp.Status, resp.Body)
	}
}

func TestClient_FollowsRedirect(t *testing.T) {
	ts := newTestServer(t)
	resp, err := Get(context.Background(), ts.URL+"/old")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if resp.Location != ts.URL+"/hello" {
		t.Errorf("Location = %q, want %q", resp.Location, ts.URL+"/hello")
	}
}

func TestPost_JSONBody(t *testing.T) {
	ts := newTestServer(t)

	resp, err := Post(context.Background(), ts.URL+"/echo", map[string]any{"n": 1.0})
	if err != nil {
		t.Fatalf("Post: %v", err)
	}
	if resp.Status != http.StatusCreated {
		t.Fatalf("Status = %d", resp.Status)
	}
	var got map[string]any
	if err := json.Unmarshal([]byte(resp.Body), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got["content_type"] != "application/json" {
		t.Errorf("content_type = %v", got["content_type"])
	}
	if body, _ := got["body"].(map[string]any); body["n"] != 1.0 {
		t.Errorf("body = %v", got["body"])
	}

	resp, err = Post(context.Background(), ts.URL+"/echo", nil)
	if err != nil || resp.Status != http.StatusCreated {
		t.Errorf("empty Post = %v, %v", resp, err)
	}
}

func TestClient_ReadTimeout(t *testing.T) {
	ts := newTestServer(t)
	c, _ := NewClient(ts.URL)
	defer c.Stop()
	c.SetReadTimeout(20 * time.Millisecond)

	if _, err := c.Get(context.Background(), "/slow"); err == nil {
		t.Error("expected timeout error")
	}
}

func TestClient_Stop(t *testing.T) {
	ts := newTestServer(t)
	c, _ := NewClient(ts.URL)
	if !c.IsValid() {
		t.Fatal("new client should be valid")
	}
	c.Stop()
	if c.IsValid() {
		t.Error("stopped client should be invalid")
	}
	if _, err := c.Get(context.Background(), "/hello"); !errors.Is(err, ErrStopped) {
		t.Errorf("Get after Stop = %v, want ErrStopped", err)
	}
}

func TestStart_DeliversCompletion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("async"))
	}))
	defer srv.Close()

	completions := make(chan func(), 1)
	p := Start(context.Background(), srv.URL+"/x", func(complete func()) {
		completions <- complete
	})
	if p.Done() {
		t.Fatal("Done before completion ran")
	}
	if _, err := p.Result(); err == nil {
		t.Error("Result before completion should fail")
	}

	select {
	case complete := <-completions:
		complete()
	case <-time.After(5 * time.Second):
		t.Fatal("completion never delivered")
	}
	resp, err := p.Result()
	if err != nil {
		t.Fatalf("Result: %v", err)
	}
	if resp.Body != "async" {
		t.Errorf("Body = %q", resp.Body)
	}
}
