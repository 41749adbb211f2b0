// Package fetch performs the HTTP requests of a crawl.
//
// The Client applies a caller supplied timeout to every request, sends a
// fixed set of headers taken from its Config, decodes compressed and
// non UTF-8 bodies, and reports failures as *Error values whose Kind tells
// timeouts, transport failures, HTTP status errors and unreadable bodies
// apart. A non-2xx status is an error, never a panic.
package fetch

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	"golang.org/x/net/html/charset"
	"golang.org/x/time/rate"
)

// Default values used when Config fields are left empty.
const (
	// DefaultTimeout is applied when Fetch is called with a non-positive timeout.
	DefaultTimeout = 20 * time.Second

	// DefaultUserAgent is the desktop browser string the crawler identifies as.
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/58.0.3029.110 Safari/537.3"

	// DefaultMaxBodySize caps how many bytes of a body are read.
	DefaultMaxBodySize = 5 * 1024 * 1024
)

// DialContextFunc dials a network connection, e.g. through a SOCKS5 proxy.
type DialContextFunc func(ctx context.Context, network, addr string) (net.Conn, error)

// Config holds everything the Client sends or enforces on each request.
// It is copied at construction; later changes have no effect.
type Config struct {
	// UserAgent is sent on every request. Empty means DefaultUserAgent.
	UserAgent string

	// Headers are extra request headers.
	Headers map[string]string

	// Cookie is sent verbatim in the Cookie header when non-empty.
	Cookie string

	// MaxBodySize limits the decoded body size. Zero means DefaultMaxBodySize.
	MaxBodySize int64

	// CrawlDelay is the minimum interval between two requests issued by
	// this Client across all goroutines. Zero disables the limiter.
	CrawlDelay time.Duration

	// DialContext overrides the transport dialer (proxying).
	DialContext DialContextFunc

	// Logger receives debug output. Nil means slog.Default().
	Logger *slog.Logger
}

// Client is safe for concurrent use.
type Client struct {
	http        *http.Client
	userAgent   string
	headers     map[string]string
	cookie      string
	maxBodySize int64
	limiter     *rate.Limiter
	logger      *slog.Logger
}

// New creates a Client from cfg.
func New(cfg Config) *Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.MaxIdleConnsPerHost = 16
	if cfg.DialContext != nil {
		transport.DialContext = cfg.DialContext
		transport.Proxy = nil
	}

	c := &Client{
		http: &http.Client{
			Transport: transport,
		},
		userAgent:   cfg.UserAgent,
		headers:     make(map[string]string, len(cfg.Headers)),
		cookie:      cfg.Cookie,
		maxBodySize: cfg.MaxBodySize,
		logger:      cfg.Logger,
	}
	for k, v := range cfg.Headers {
		c.headers[k] = v
	}
	if c.userAgent == "" {
		c.userAgent = DefaultUserAgent
	}
	if c.maxBodySize <= 0 {
		c.maxBodySize = DefaultMaxBodySize
	}
	if cfg.CrawlDelay > 0 {
		c.limiter = rate.NewLimiter(rate.Every(cfg.CrawlDelay), 1)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// Fetch GETs rawURL and returns the decoded body.
// The timeout covers the whole exchange including reading the body.
func (c *Client) Fetch(ctx context.Context, rawURL string, timeout time.Duration) (string, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// The limiter only fails when the deadline cannot be met.
	if err := c.wait(ctx); err != nil {
		return "", &Error{Kind: KindTimeout, URL: rawURL, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", &Error{Kind: KindConnectionFailed, URL: rawURL, Err: fmt.Errorf("build request: %w", err)}
	}
	c.setHeaders(req)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")
	req.Header.Set("Accept-Encoding", "gzip, deflate, br")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return "", &Error{Kind: classifyTransport(ctx, err), URL: rawURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096)) //nolint:errcheck // drain for connection reuse
		return "", &Error{Kind: KindHTTPStatus, URL: rawURL, StatusCode: resp.StatusCode}
	}

	body, err := c.readBody(resp)
	if err != nil {
		kind := KindInvalidResponse
		if ctx.Err() != nil {
			kind = KindTimeout
		}
		return "", &Error{Kind: kind, URL: rawURL, Err: err}
	}

	c.logger.Debug("fetched page",
		"url", rawURL,
		"status", resp.StatusCode,
		"bytes", len(body),
		"elapsed", time.Since(start),
	)
	return body, nil
}

// Probe issues a HEAD request and reports only transport failures.
// Any HTTP status, including 4xx and 5xx, counts as reachable.
func (c *Client) Probe(ctx context.Context, rawURL string, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return &Error{Kind: KindConnectionFailed, URL: rawURL, Err: err}
	}
	c.setHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return &Error{Kind: classifyTransport(ctx, err), URL: rawURL, Err: err}
	}
	return resp.Body.Close()
}

// CloseIdleConnections releases pooled keep-alive connections.
func (c *Client) CloseIdleConnections() {
	c.http.CloseIdleConnections()
}

func (c *Client) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("User-Agent", c.userAgent)
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	if c.cookie != "" {
		req.Header.Set("Cookie", c.cookie)
	}
}

// readBody decodes Content-Encoding and charset, enforcing maxBodySize.
func (c *Client) readBody(resp *http.Response) (string, error) {
	reader := io.Reader(resp.Body)

	switch strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding"))) {
	case "gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return "", fmt.Errorf("gzip decode: %w", err)
		}
		defer gz.Close()
		reader = gz
	case "deflate":
		fl := flate.NewReader(resp.Body)
		defer fl.Close()
		reader = fl
	case "br":
		reader = brotli.NewReader(resp.Body)
	}

	data, err := io.ReadAll(io.LimitReader(reader, c.maxBodySize+1))
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	if int64(len(data)) > c.maxBodySize {
		return "", errors.New("response body exceeds size limit")
	}

	// Unknown charset labels leave the bytes as they are.
	if utf8Reader, err := charset.NewReader(bytes.NewReader(data), resp.Header.Get("Content-Type")); err == nil {
		if decoded, err := io.ReadAll(utf8Reader); err == nil {
			data = decoded
		}
	}
	return string(data), nil
}
