package jsvm

import (
	"github.com/dop251/goja"

	"github.com/me/corohost/internal/fileio"
	"github.com/me/corohost/internal/fsys"
	"github.com/me/corohost/internal/httpc"
)

// pathArg accepts a string or a wrapped fsys.Path.
func pathArg(v goja.Value) string {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return ""
	}
	if p, ok := v.Export().(fsys.Path); ok {
		return p.String()
	}
	return v.String()
}

// reader adapts fileio.Reader to signatures that read well from script:
// end of input is null rather than an exception.
type reader struct {
	r *fileio.Reader
}

func (rd *reader) Scan() any {
	tok, err := rd.r.Scan()
	if err != nil {
		return nil
	}
	return tok
}

func (rd *reader) ReadLine() (any, error) {
	line, ok, err := rd.r.ReadLine()
	if err != nil || !ok {
		return nil, err
	}
	return line, nil
}

// Lines returns the remaining lines.
func (rd *reader) Lines() ([]string, error) {
	var out []string
	for {
		line, ok, err := rd.r.ReadLine()
		if err != nil {
			return out, err
		}
		if !ok {
			return out, nil
		}
		out = append(out, line)
	}
}

func (rd *reader) Read(n int) (string, error) {
	b, err := rd.r.Read(n)
	return string(b), err
}

func (rd *reader) ReadAll() (string, error)                { return rd.r.ReadAll() }
func (rd *reader) ReadNumber(kind string) (float64, error) { return rd.r.ReadNumber(kind) }
func (rd *reader) Eof() bool                               { return rd.r.EOF() }
func (rd *reader) IsOpen() bool                            { return rd.r.IsOpen() }
func (rd *reader) Close() error                            { return rd.r.Close() }

// client wraps httpc.Client with millisecond timeouts and the run context.
type client struct {
	rt *Runtime
	c  *httpc.Client
}

func (c *client) Host() string                { return c.c.Host() }
func (c *client) Port() int                   { return c.c.Port() }
func (c *client) IsValid() bool               { return c.c.IsValid() }
func (c *client) SetEncodeURL(on bool)        { c.c.SetEncodeURL(on) }
func (c *client) SetKeepAlive(on bool)        { c.c.SetKeepAlive(on) }
func (c *client) SetConnectionTimeout(ms int) { c.c.SetConnectionTimeout(millis(ms)) }
func (c *client) SetReadTimeout(ms int)       { c.c.SetReadTimeout(millis(ms)) }
func (c *client) SetWriteTimeout(ms int)      { c.c.SetWriteTimeout(millis(ms)) }
func (c *client) SetMaxTimeout(ms int)        { c.c.SetMaxTimeout(millis(ms)) }
func (c *client) Stop()                       { c.c.Stop() }

func (c *client) Get(path string) (*httpc.Response, error) {
	ctx, cancel := c.rt.requestContext()
	defer cancel()
	if path == "" {
		path = "/"
	}
	return c.c.Get(ctx, path)
}

func (c *client) Post(path string, body any) (*httpc.Response, error) {
	ctx, cancel := c.rt.requestContext()
	defer cancel()
	return c.c.Post(ctx, path, body)
}
