package fileio

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWriter_NumbersRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nums.bin")
	w, err := OpenWriter(path, false)
	if err != nil {
		t.Fatalf("OpenWriter: %v", err)
	}

	values := []struct {
		kind string
		v    float64
	}{
		{"u8", 200},
		{"i8", -5},
		{"u16", 65000},
		{"i16", -1234},
		{"u32", 4000000000},
		{"i32", -70000},
		{"f32", 1.5},
		{"f64", 3.141592653589793},
	}
	for _, tt := range values {
		if _, err := w.WriteNumber(tt.kind, tt.v); err != nil {
			t.Fatalf("WriteNumber(%s): %v", tt.kind, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	r, err := OpenReader(path)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer r.Close()
	for _, tt := range values {
		got, err := r.ReadNumber(tt.kind)
		if err != nil {
			t.Fatalf("ReadNumber(%s): %v", tt.kind, err)
		}
		if got != tt.v {
			t.Errorf("ReadNumber(%s) = %v, want %v", tt.kind, got, tt.v)
		}
	}
	if r.EOF() {
		t.Error("EOF() should stay false after reading exactly to the end")
	}
	if _, err := r.ReadNumber("u8"); !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("read past end = %v, want ErrUnexpectedEOF", err)
	}
	if !r.EOF() {
		t.Error("EOF() should be true after reading past end")
	}
}

func TestWriter_UnknownKind(t *testing.T) {
	w := NewWriter(&bytes.Buffer{})
	if _, err := w.WriteNumber("u64", 1); err == nil {
		t.Error("u64 should be rejected")
	}
}

func TestWriter_AppendAndTell(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.txt")
	for _, line := range []string{"one\n", "two\n"} {
		w, err := OpenWriter(path, true)
		if err != nil {
			t.Fatalf("OpenWriter: %v", err)
		}
		if err := w.Write(line); err != nil {
			t.Fatalf("Write: %v", err)
		}
		if err := w.Close(); err != nil {
			t.Fatalf("Close: %v", err)
		}
	}
	data, _ := os.ReadFile(path)
	if string(data) != "one\ntwo\n" {
		t.Errorf("file = %q", data)
	}

	w, err := OpenWriter(path, false)
	if err != nil {
		t.Fatalf("OpenWriter: %v", err)
	}
	w.WriteValues("a", "b", "c")
	pos, err := w.Tell()
	if err != nil || pos != int64(len("a, b, c")) {
		t.Errorf("Tell = %d, %v", pos, err)
	}
	if err := w.SeekTo(0); err != nil {
		t.Fatalf("SeekTo: %v", err)
	}
	w.Write("A")
	w.Close()
	if w.IsOpen() {
		t.Error("writer should be closed")
	}
	if err := w.Write("x"); !errors.Is(err, ErrClosed) {
		t.Errorf("Write after Close = %v, want ErrClosed", err)
	}
	data, _ = os.ReadFile(path)
	if string(data) != "A, b, c" {
		t.Errorf("file = %q, want %q", data, "A, b, c")
	}
}

func TestReader_ScanAndLines(t *testing.T) {
	r := NewReader(strings.NewReader("  hello   world\nsecond line\r\nlast"))

	tok, err := r.Scan()
	if err != nil || tok != "hello" {
		t.Fatalf("Scan = %q, %v", tok, err)
	}
	tok, _ = r.Scan()
	if tok != "world" {
		t.Errorf("Scan = %q, want world", tok)
	}

	var lines []string
	for {
		line, ok, err := r.ReadLine()
		if err != nil {
			t.Fatalf("ReadLine: %v", err)
		}
		if !ok {
			break
		}
		lines = append(lines, line)
	}
	want := []string{"second line", "last"}
	if len(lines) != len(want) {
		t.Fatalf("lines = %q, want %q", lines, want)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("lines[%d] = %q, want %q", i, lines[i], want[i])
		}
	}
	if !r.EOF() {
		t.Error("EOF() should be true")
	}
	if _, err := r.Scan(); err != io.EOF {
		t.Errorf("Scan at end = %v, want io.EOF", err)
	}
}

func TestOpenReader_Missing(t *testing.T) {
	_, err := OpenReader(filepath.Join(t.TempDir(), "nope"))
	if err == nil || !strings.Contains(err.Error(), "failed to open file") {
		t.Errorf("OpenReader missing = %v", err)
	}
}
