// Package fileio provides the stream types scripts read from and write to:
// console streams and files, with raw little-endian number helpers.
package fileio

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strings"
)

// ErrClosed is returned by operations on a closed file.
var ErrClosed = errors.New("file is closed")

// Writer is a buffered output stream.
type Writer struct {
	w     *bufio.Writer
	seek  io.Seeker
	close io.Closer
}

// NewWriter wraps w. Seek and Close work when w supports them.
func NewWriter(w io.Writer) *Writer {
	out := &Writer{w: bufio.NewWriter(w)}
	if s, ok := w.(io.Seeker); ok {
		out.seek = s
	}
	if c, ok := w.(io.Closer); ok {
		out.close = c
	}
	return out
}

// Write writes s.
func (w *Writer) Write(s string) error {
	if w.w == nil {
		return ErrClosed
	}
	_, err := w.w.WriteString(s)
	return err
}

// WriteValues writes vals joined by ", ", the way a writer object
// behaves when called directly from a script.
func (w *Writer) WriteValues(vals ...string) error {
	return w.Write(strings.Join(vals, ", "))
}

// Stream returns an io.Writer that writes through w and flushes after each
// write, keeping output in order with what scripts wrote before.
func (w *Writer) Stream() io.Writer {
	return flushWriter{w}
}

type flushWriter struct{ w *Writer }

func (f flushWriter) Write(p []byte) (int, error) {
	if f.w.w == nil {
		return 0, ErrClosed
	}
	n, err := f.w.w.Write(p)
	if err != nil {
		return n, err
	}
	return n, f.w.w.Flush()
}

// Flush flushes buffered output.
func (w *Writer) Flush() error {
	if w.w == nil {
		return ErrClosed
	}
	return w.w.Flush()
}

// WriteNumber writes v encoded as kind, one of u8 i8 u16 i16 u32 i32 f32 f64.
// It returns the number of bytes written.
func (w *Writer) WriteNumber(kind string, v float64) (int, error) {
	if w.w == nil {
		return 0, ErrClosed
	}
	buf, err := encodeNumber(kind, v)
	if err != nil {
		return 0, err
	}
	return w.w.Write(buf)
}

// SeekTo flushes and moves the write position to an absolute offset.
func (w *Writer) SeekTo(offset int64) error {
	if w.seek == nil {
		return errors.New("stream is not seekable")
	}
	if err := w.Flush(); err != nil {
		return err
	}
	_, err := w.seek.Seek(offset, io.SeekStart)
	return err
}

// Tell returns the current write position, including buffered bytes.
func (w *Writer) Tell() (int64, error) {
	if w.seek == nil {
		return 0, errors.New("stream is not seekable")
	}
	pos, err := w.seek.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, err
	}
	return pos + int64(w.w.Buffered()), nil
}

// IsOpen reports whether the writer can still be written to.
func (w *Writer) IsOpen() bool {
	return w.w != nil
}

// Close flushes and closes the underlying stream when it is closable.
func (w *Writer) Close() error {
	if w.w == nil {
		return nil
	}
	err := w.w.Flush()
	w.w = nil
	if w.close != nil {
		if cerr := w.close.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// Reader is a buffered input stream.
type Reader struct {
	r     *bufio.Reader
	close io.Closer
	eof   bool
}

// NewReader wraps r.
func NewReader(r io.Reader) *Reader {
	in := &Reader{r: bufio.NewReader(r)}
	if c, ok := r.(io.Closer); ok {
		in.close = c
	}
	return in
}

// Scan reads one whitespace-delimited token.
func (r *Reader) Scan() (string, error) {
	if r.r == nil {
		return "", ErrClosed
	}
	var sb strings.Builder
	for {
		b, err := r.r.ReadByte()
		if err == io.EOF {
			r.eof = true
			if sb.Len() == 0 {
				return "", io.EOF
			}
			return sb.String(), nil
		}
		if err != nil {
			return "", err
		}
		if isSpace(b) {
			if sb.Len() == 0 {
				continue
			}
			return sb.String(), nil
		}
		sb.WriteByte(b)
	}
}

// ReadLine reads one line without its terminator. ok is false at end of input.
func (r *Reader) ReadLine() (line string, ok bool, err error) {
	if r.r == nil {
		return "", false, ErrClosed
	}
	s, err := r.r.ReadString('\n')
	if err == io.EOF {
		r.eof = true
		if s == "" {
			return "", false, nil
		}
		return strings.TrimSuffix(s, "\r"), true, nil
	}
	if err != nil {
		return "", false, err
	}
	s = strings.TrimSuffix(s, "\n")
	return strings.TrimSuffix(s, "\r"), true, nil
}

// Read reads exactly n bytes, or fewer at end of input.
func (r *Reader) Read(n int) ([]byte, error) {
	if r.r == nil {
		return nil, ErrClosed
	}
	buf := make([]byte, n)
	got, err := io.ReadFull(r.r, buf)
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		r.eof = true
		return buf[:got], nil
	}
	return buf[:got], err
}

// ReadAll reads the remaining input.
func (r *Reader) ReadAll() (string, error) {
	if r.r == nil {
		return "", ErrClosed
	}
	b, err := io.ReadAll(r.r)
	r.eof = true
	return string(b), err
}

// ReadNumber reads one value encoded as kind; see Writer.WriteNumber.
func (r *Reader) ReadNumber(kind string) (float64, error) {
	size, err := numberSize(kind)
	if err != nil {
		return 0, err
	}
	buf, err := r.Read(size)
	if err != nil {
		return 0, err
	}
	if len(buf) < size {
		return 0, io.ErrUnexpectedEOF
	}
	return decodeNumber(kind, buf)
}

// EOF reports whether a read has run into the end of input. Reading
// exactly the remaining bytes does not set it; the next read does.
func (r *Reader) EOF() bool {
	return r.eof
}

// IsOpen reports whether the reader can still be read from.
func (r *Reader) IsOpen() bool {
	return r.r != nil
}

// Close closes the underlying stream when it is closable.
func (r *Reader) Close() error {
	if r.r == nil {
		return nil
	}
	r.r = nil
	if r.close != nil {
		return r.close.Close()
	}
	return nil
}

// OpenWriter opens path for writing, truncating unless append is set.
func OpenWriter(path string, appendMode bool) (*Writer, error) {
	flags := os.O_WRONLY | os.O_CREATE
	if appendMode {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open file '%s': %w", path, err)
	}
	return NewWriter(f), nil
}

// OpenReader opens path for reading.
func OpenReader(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file '%s': %w", path, err)
	}
	return NewReader(f), nil
}

func isSpace(b byte) bool {
	switch b {
	case ' ', '\t', '\n', '\r', '\v', '\f':
		return true
	}
	return false
}

func numberSize(kind string) (int, error) {
	switch kind {
	case "u8", "i8":
		return 1, nil
	case "u16", "i16":
		return 2, nil
	case "u32", "i32", "f32":
		return 4, nil
	case "f64":
		return 8, nil
	}
	return 0, fmt.Errorf("unknown number kind %q", kind)
}

func encodeNumber(kind string, v float64) ([]byte, error) {
	size, err := numberSize(kind)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, size)
	le := binary.LittleEndian
	switch kind {
	case "u8":
		buf[0] = uint8(v)
	case "i8":
		buf[0] = uint8(int8(v))
	case "u16":
		le.PutUint16(buf, uint16(v))
	case "i16":
		le.PutUint16(buf, uint16(int16(v)))
	case "u32":
		le.PutUint32(buf, uint32(v))
	case "i32":
		le.PutUint32(buf, uint32(int32(v)))
	case "f32":
		le.PutUint32(buf, math.Float32bits(float32(v)))
	case "f64":
		le.PutUint64(buf, math.Float64bits(v))
	}
	return buf, nil
}

func decodeNumber(kind string, buf []byte) (float64, error) {
	le := binary.LittleEndian
	switch kind {
	case "u8":
		return float64(buf[0]), nil
	case "i8":
		return float64(int8(buf[0])), nil
	case "u16":
		return float64(le.Uint16(buf)), nil
	case "i16":
		return float64(int16(le.Uint16(buf))), nil
	case "u32":
		return float64(le.Uint32(buf)), nil
	case "i32":
		return float64(int32(le.Uint32(buf))), nil
	case "f32":
		return float64(math.Float32frombits(le.Uint32(buf))), nil
	case "f64":
		return math.Float64frombits(le.Uint64(buf)), nil
	}
	return 0, fmt.Errorf("unknown number kind %q", kind)
}
