// Package console gives scripts line-oriented access to the process's
// standard streams.
package console

import (
	"io"
	"os"

	"github.com/me/corohost/internal/fileio"
)

// Console bundles the three standard streams.
type Console struct {
	In  *fileio.Reader
	Out *fileio.Writer
	Err *fileio.Writer
}

// New creates a console over the given streams. The streams are never
// closed or seeked through the console.
func New(in io.Reader, out, errOut io.Writer) *Console {
	return &Console{
		In:  fileio.NewReader(inStream{in}),
		Out: fileio.NewWriter(outStream{out}),
		Err: fileio.NewWriter(outStream{errOut}),
	}
}

// Std returns a console over os.Stdin, os.Stdout and os.Stderr.
func Std() *Console {
	return New(os.Stdin, os.Stdout, os.Stderr)
}

// inStream and outStream hide Close and Seek so scripts cannot close the
// process streams.
type inStream struct{ r io.Reader }

func (s inStream) Read(p []byte) (int, error) { return s.r.Read(p) }

type outStream struct{ w io.Writer }

func (s outStream) Write(p []byte) (int, error) { return s.w.Write(p) }

// Write writes s to standard output and flushes.
func (c *Console) Write(s string) error {
	if err := c.Out.Write(s); err != nil {
		return err
	}
	return c.Out.Flush()
}

// ErrWrite writes s to standard error and flushes.
func (c *Console) ErrWrite(s string) error {
	if err := c.Err.Write(s); err != nil {
		return err
	}
	return c.Err.Flush()
}

// Read reads n bytes from standard input. With n <= 0 it reads one token.
func (c *Console) Read(n int) (string, error) {
	if n <= 0 {
		return c.Scan()
	}
	b, err := c.In.Read(n)
	return string(b), err
}

// Scan reads one whitespace-delimited token. It returns "" at end of input.
func (c *Console) Scan() (string, error) {
	tok, err := c.In.Scan()
	if err == io.EOF {
		return "", nil
	}
	return tok, err
}

// ReadLine reads one line. ok is false at end of input.
func (c *Console) ReadLine() (string, bool, error) {
	return c.In.ReadLine()
}

// Flush flushes both output streams.
func (c *Console) Flush() error {
	if err := c.Out.Flush(); err != nil {
		return err
	}
	return c.Err.Flush()
}
