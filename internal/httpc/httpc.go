// Package httpc is the HTTP client surface exposed to scripts.
package httpc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/me/corohost/internal/jsoncodec"
)

// ErrInvalidURL is returned for URLs that are not http(s)://host[:port][/path].
var ErrInvalidURL = errors.New("invalid url format")

// ErrStopped is returned by a client after Stop.
var ErrStopped = errors.New("client stopped")

var urlPattern = regexp.MustCompile(`^(http|https)://([^:/]+)(?::(\d+))?(/.*)?$`)

// URLInfo is the decomposition of an http(s) URL.
type URLInfo struct {
	Scheme string `json:"scheme"`
	Host   string `json:"host"`
	Port   int    `json:"port"`
	Path   string `json:"path"`
}

// HostPort returns scheme://host:port.
func (u URLInfo) HostPort() string {
	return fmt.Sprintf("%s://%s:%d", u.Scheme, u.Host, u.Port)
}

// ParseURL splits raw into its parts. The port defaults to 80 or 443 and
// the path to "/".
func ParseURL(raw string) (URLInfo, error) {
	m := urlPattern.FindStringSubmatch(raw)
	if m == nil {
		return URLInfo{}, ErrInvalidURL
	}
	info := URLInfo{Scheme: m[1], Host: m[2], Path: m[4]}
	if m[3] != "" {
		port, err := strconv.Atoi(m[3])
		if err != nil {
			return URLInfo{}, ErrInvalidURL
		}
		info.Port = port
	} else if info.Scheme == "https" {
		info.Port = 443
	} else {
		info.Port = 80
	}
	if info.Path == "" {
		info.Path = "/"
	}
	return info, nil
}

// Response is a completed HTTP exchange.
type Response struct {
	Status   int               `json:"status"`
	Reason   string            `json:"reason"`
	Version  string            `json:"version"`
	Location string            `json:"location"`
	Body     string            `json:"body"`
	Headers  map[string]string `json:"headers"`
}

// HeaderValue returns the named header, or def when it is absent.
func (r *Response) HeaderValue(name, def string) string {
	if v, ok := r.Headers[http.CanonicalHeaderKey(name)]; ok {
		return v
	}
	return def
}

// Client talks to one scheme://host:port.
type Client struct {
	mu sync.Mutex

	base      URLInfo
	hc        *http.Client
	stopped   bool
	encodeURL bool
	keepAlive bool

	connectionTimeout time.Duration
	readTimeout       time.Duration
	writeTimeout      time.Duration
	maxTimeout        time.Duration
}

// DefaultTimeout bounds a whole request when no timeouts are configured.
const DefaultTimeout = 30 * time.Second

// NewClient creates a client for base, which must be an http(s) URL.
// Any path in base is ignored.
func NewClient(base string) (*Client, error) {
	info, err := ParseURL(base)
	if err != nil {
		return nil, err
	}
	return &Client{
		base:              info,
		encodeURL:         true,
		keepAlive:         true,
		connectionTimeout: 5 * time.Second,
		maxTimeout:        DefaultTimeout,
	}, nil
}

// Host returns the client's host name.
func (c *Client) Host() string { return c.base.Host }

// Port returns the client's port.
func (c *Client) Port() int { return c.base.Port }

// IsValid reports whether the client can still send requests.
func (c *Client) IsValid() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.base.Host != "" && !c.stopped
}

// SetEncodeURL toggles escaping of request paths.
func (c *Client) SetEncodeURL(on bool) { c.set(func() { c.encodeURL = on }) }

// SetKeepAlive toggles connection reuse.
func (c *Client) SetKeepAlive(on bool) { c.set(func() { c.keepAlive = on }) }

// SetConnectionTimeout bounds dialing.
func (c *Client) SetConnectionTimeout(d time.Duration) { c.set(func() { c.connectionTimeout = d }) }

// SetReadTimeout bounds the wait for response headers.
func (c *Client) SetReadTimeout(d time.Duration) { c.set(func() { c.readTimeout = d }) }

// SetWriteTimeout bounds the wait for a 100-continue reply while sending.
func (c *Client) SetWriteTimeout(d time.Duration) { c.set(func() { c.writeTimeout = d }) }

// SetMaxTimeout bounds the whole request. Zero means DefaultTimeout.
func (c *Client) SetMaxTimeout(d time.Duration) { c.set(func() { c.maxTimeout = d }) }

// set applies a configuration change and drops the cached transport.
func (c *Client) set(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn()
	if c.hc != nil {
		c.hc.CloseIdleConnections()
		c.hc = nil
	}
}

func (c *Client) client() (*http.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return nil, ErrStopped
	}
	if c.hc != nil {
		return c.hc, nil
	}

	dialer := &net.Dialer{Timeout: c.connectionTimeout}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		DisableKeepAlives:     !c.keepAlive,
		ResponseHeaderTimeout: c.readTimeout,
		ExpectContinueTimeout: c.writeTimeout,
		TLSHandshakeTimeout:   c.connectionTimeout,
	}
	timeout := c.maxTimeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	c.hc = &http.Client{Transport: transport, Timeout: timeout}
	return c.hc, nil
}

func (c *Client) url(path string) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if c.encodeURL {
		query := ""
		if i := strings.IndexByte(path, '?'); i >= 0 {
			path, query = path[:i], path[i:]
		}
		path = (&url.URL{Path: path}).EscapedPath() + query
	}
	return c.base.HostPort() + path
}

// Get requests path on the client's host.
func (c *Client) Get(ctx context.Context, path string) (*Response, error) {
	return c.do(ctx, http.MethodGet, path, nil, "")
}

// Post sends body to path. A nil body sends an empty request; anything
// else is encoded as JSON.
func (c *Client) Post(ctx context.Context, path string, body any) (*Response, error) {
	if body == nil {
		return c.do(ctx, http.MethodPost, path, nil, "")
	}
	payload, err := jsoncodec.Encode(body, "")
	if err != nil {
		return nil, err
	}
	return c.do(ctx, http.MethodPost, path, strings.NewReader(payload), "application/json")
}

// Stop closes idle connections and invalidates the client.
func (c *Client) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.hc != nil {
		c.hc.CloseIdleConnections()
		c.hc = nil
	}
	c.stopped = true
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string) (*Response, error) {
	hc, err := c.client()
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, method, c.url(path), body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, resp.Body); err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	headers := make(map[string]string, len(resp.Header))
	for k, v := range resp.Header {
		headers[k] = strings.Join(v, ", ")
	}
	reason := strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)))
	if reason == "" {
		reason = http.StatusText(resp.StatusCode)
	}
	return &Response{
		Status:   resp.StatusCode,
		Reason:   reason,
		Version:  resp.Proto,
		Location: resp.Request.URL.String(),
		Body:     buf.String(),
		Headers:  headers,
	}, nil
}

// Get fetches an absolute URL with a one-shot client.
func Get(ctx context.Context, rawURL string) (*Response, error) {
	info, err := ParseURL(rawURL)
	if err != nil {
		return nil, err
	}
	c, err := NewClient(info.HostPort())
	if err != nil {
		return nil, err
	}
	defer c.Stop()
	c.SetEncodeURL(false)
	return c.Get(ctx, info.Path)
}

// Post sends body to an absolute URL with a one-shot client.
func Post(ctx context.Context, rawURL string, body any) (*Response, error) {
	info, err := ParseURL(rawURL)
	if err != nil {
		return nil, err
	}
	c, err := NewClient(info.HostPort())
	if err != nil {
		return nil, err
	}
	defer c.Stop()
	c.SetEncodeURL(false)
	return c.Post(ctx, info.Path, body)
}

// Pending is a GET running on its own goroutine. Its fields are written
// by the completion func handed to the deliver callback, so a caller that
// runs completions on its own goroutine can read them without locking.
type Pending struct {
	done bool
	resp *Response
	err  error
}

// Done reports whether the completion has been delivered.
func (p *Pending) Done() bool { return p.done }

// Result returns the response once Done.
func (p *Pending) Result() (*Response, error) {
	if !p.done {
		return nil, errors.New("request still in flight")
	}
	return p.resp, p.err
}

// Start issues a GET for rawURL in the background. When it completes the
// result is passed to deliver as a func that records it; deliver decides
// which goroutine runs that func.
func Start(ctx context.Context, rawURL string, deliver func(complete func())) *Pending {
	p := &Pending{}
	go func() {
		resp, err := Get(ctx, rawURL)
		deliver(func() { p.resp, p.err, p.done = resp, err, true })
	}()
	return p
}
