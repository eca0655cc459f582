// Package httpclient issues TLS-fingerprinted HTTP requests with Worker
// rewriting, Chrome-shaped headers, and a curl-style retry classifier.
package httpclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	fhttp "github.com/bogdanfinn/fhttp"
	tls_client "github.com/bogdanfinn/tls-client"
	"github.com/bogdanfinn/tls-client/profiles"
)

// Response is the result of a successful Get/Post.
type Response struct {
	StatusCode int
	Body       []byte
	Header     fhttp.Header
}

// Text returns Body decoded as UTF-8 text.
func (r *Response) Text() string { return string(r.Body) }

// Client wraps a TLS-impersonating HTTP client.
type Client struct {
	inner          tls_client.HttpClient
	defaultUA      string
	cfWorker       string
	defaultHeaders map[string]string
}

// Options configures a new Client.
type Options struct {
	Profile   profiles.ClientProfile
	UserAgent string
	CFWorker  string
	Proxy     string
	TimeoutS  int
}

// New builds a stealth HTTP client impersonating the given TLS profile.
func New(opts Options) (*Client, error) {
	jar := tls_client.NewCookieJar()
	timeout := opts.TimeoutS
	if timeout <= 0 {
		timeout = 15
	}
	clientOpts := []tls_client.HttpClientOption{
		tls_client.WithTimeoutSeconds(timeout),
		tls_client.WithClientProfile(opts.Profile),
		tls_client.WithCookieJar(jar),
		tls_client.WithInsecureSkipVerify(),
	}
	if opts.Proxy != "" {
		clientOpts = append(clientOpts, tls_client.WithProxyUrl(opts.Proxy))
	}
	inner, err := tls_client.NewHttpClient(nil, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("httpclient: tls-client init: %w", err)
	}

	ua := opts.UserAgent
	if ua == "" {
		ua = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	}
	return &Client{
		inner:     inner,
		defaultUA: ua,
		cfWorker:  opts.CFWorker,
		defaultHeaders: map[string]string{
			"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
			"Accept-Language": "zh-CN,zh;q=0.9,en;q=0.8",
			"Accept-Encoding": "gzip, deflate, br",
			"Connection":      "close",
		},
	}, nil
}

// ProfileForName resolves a CURL_IMPERSONATE-style profile name (e.g.
// "chrome110") to a tls-client profile, defaulting to Chrome 120.
func ProfileForName(name string) profiles.ClientProfile {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "chrome110":
		return profiles.Chrome_110
	case "chrome120":
		return profiles.Chrome_120
	case "chrome124":
		return profiles.Chrome_124
	case "chrome131":
		return profiles.Chrome_131
	case "firefox120":
		return profiles.Firefox_120
	default:
		return profiles.Chrome_120
	}
}

// targetURL rewrites u through the configured Worker, if any.
func (c *Client) targetURL(u string) string {
	if c.cfWorker == "" {
		return u
	}
	return c.cfWorker + "?url=" + url.QueryEscape(u)
}

// Get performs a GET with curl-style retry classification. headers
// override the client's defaults per key. retries is the total number of
// attempts (at least one). timeout seeds the effective timeout that retryGet
// doubles (or raises by 10s, whichever is larger) after each retryable
// failure; Get does not apply that value to the request, so each attempt is
// bounded only by the client's own timeout and by ctx.
func (c *Client) Get(ctx context.Context, rawURL string, headers map[string]string, timeout time.Duration, retries int) (*Response, error) {
	target := c.targetURL(rawURL)
	return retryGet(ctx, timeout, retries, func(_ time.Duration) (*Response, error) {
		return c.do(ctx, "GET", target, headers, nil)
	})
}

// retryGet implements the curl-style retry policy from spec §4.2, decoupled
// from the transport so it can be exercised with a fake attempt function in
// tests. attempt receives the effective timeout for that try (informational
// only — actual per-attempt deadlines are enforced by ctx upstream).
func retryGet(ctx context.Context, timeout time.Duration, retries int, attempt func(timeout time.Duration) (*Response, error)) (*Response, error) {
	maxAttempts := retries
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	effectiveTimeout := timeout
	if effectiveTimeout <= 0 {
		effectiveTimeout = 15 * time.Second
	}

	var lastErr error
	for try := 1; try <= maxAttempts; try++ {
		resp, err := attempt(effectiveTimeout)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if _, retryable := classify(err); !retryable || try == maxAttempts {
			return nil, err
		}
		nextTimeout := effectiveTimeout * 2
		if effectiveTimeout+10*time.Second > nextTimeout {
			nextTimeout = effectiveTimeout + 10*time.Second
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(300*try) * time.Millisecond):
		}
		effectiveTimeout = nextTimeout
	}
	return nil, lastErr
}

// Post issues a POST with a JSON or raw body, no retry (used by the AI
// bridge, which handles its own streaming/partial-result semantics).
func (c *Client) Post(ctx context.Context, rawURL string, headers map[string]string, body io.Reader) (*Response, error) {
	return c.do(ctx, "POST", rawURL, headers, body)
}

// StreamResponse is a response whose body is handed to the caller
// unbuffered, for callers (the SSE-consuming AI bridge) that need to
// observe and keep bytes read before a mid-stream I/O failure instead of
// losing them to a single io.ReadAll call.
type StreamResponse struct {
	StatusCode int
	Header     fhttp.Header
	Body       io.ReadCloser
}

// PostStream issues a POST and returns the live response body without
// buffering it, so a read failure partway through the stream only cuts off
// what the caller hasn't consumed yet rather than discarding everything.
// The caller must close Body.
func (c *Client) PostStream(ctx context.Context, rawURL string, headers map[string]string, body io.Reader) (*StreamResponse, error) {
	req, err := c.buildRequest(ctx, "POST", rawURL, headers, body)
	if err != nil {
		return nil, err
	}

	resp, err := c.inner.Do(req)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	if resp.StatusCode >= 400 {
		data, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, &statusError{Code: resp.StatusCode, Body: data}
	}
	return &StreamResponse{StatusCode: resp.StatusCode, Header: resp.Header, Body: resp.Body}, nil
}

func (c *Client) buildRequest(ctx context.Context, method, rawURL string, headers map[string]string, body io.Reader) (*fhttp.Request, error) {
	req, err := fhttp.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, fmt.Errorf("httpclient: build request: %w", err)
	}

	req.Header.Set("User-Agent", c.defaultUA)
	for k, v := range c.defaultHeaders {
		req.Header.Set(k, v)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	req.Header[fhttp.HeaderOrderKey] = []string{
		"accept", "accept-language", "accept-encoding", "referer", "cookie", "user-agent",
	}
	return req, nil
}

func (c *Client) do(ctx context.Context, method, rawURL string, headers map[string]string, body io.Reader) (*Response, error) {
	req, err := c.buildRequest(ctx, method, rawURL, headers, body)
	if err != nil {
		return nil, err
	}

	resp, err := c.inner.Do(req)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, &statusError{Code: resp.StatusCode, Body: data}
	}
	return &Response{StatusCode: resp.StatusCode, Body: data, Header: resp.Header}, nil
}

// statusError represents an HTTP status >= 400.
type statusError struct {
	Code int
	Body []byte
}

func (e *statusError) Error() string {
	return fmt.Sprintf("http status %d", e.Code)
}

// classifyTransportError maps a transport-level failure from c.inner.Do
// (DNS, dial, TLS handshake, timeout) to the curl-style "curl: (N) message"
// shape that classify expects, distinguishing retryable timeouts from
// non-retryable resolution/connection/handshake failures instead of
// collapsing everything into a single fixed code.
func classifyTransportError(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("curl: (28) Operation timed out: %w", err)
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return fmt.Errorf("curl: (6) Could not resolve host: %w", err)
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		if opErr.Op == "dial" {
			return fmt.Errorf("curl: (7) Failed to connect: %w", err)
		}
		if opErr.Op == "read" || opErr.Op == "write" {
			return fmt.Errorf("curl: (35) SSL connect error: %w", err)
		}
	}

	if strings.Contains(err.Error(), "connection refused") {
		return fmt.Errorf("curl: (7) Failed to connect: %w", err)
	}

	return fmt.Errorf("httpclient: request failed: %w", err)
}

var curlCodeRe = regexp.MustCompile(`curl:\s*\((\d+)\)`)

var retryableCodes = map[int]bool{18: true, 23: true, 28: true}

var retryableHints = []string{
	"Failed reading the chunked-encoded stream",
	"Operation timed out",
	"transfer closed with",
}

// classify extracts a curl-style numeric error code from err's message (if
// present) and decides retryability per the spec's code-or-hint rule.
func classify(err error) (code int, retryable bool) {
	msg := err.Error()
	if m := curlCodeRe.FindStringSubmatch(msg); m != nil {
		code, _ = strconv.Atoi(m[1])
	}
	if retryableCodes[code] {
		return code, true
	}
	for _, hint := range retryableHints {
		if strings.Contains(msg, hint) {
			return code, true
		}
	}
	return code, false
}

// DefaultHeaders returns a copy of the client's default header set
// (User-Agent plus Accept/Accept-Language/Accept-Encoding/Connection), for callers that
// build requests through a different transport (e.g. the plain JSON path).
func (c *Client) DefaultHeaders() map[string]string {
	out := make(map[string]string, len(c.defaultHeaders)+1)
	out["User-Agent"] = c.defaultUA
	for k, v := range c.defaultHeaders {
		out[k] = v
	}
	return out
}
