package poller

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"syscall"
	"time"
)

const maxResponseBodySize = 1 << 20 // 1MB

// DefaultTimeout is the per-request timeout applied when none is configured.
const DefaultTimeout = 5 * time.Second

// connection pooling limits; a single endpoint is polled, so keep them small
const (
	defaultMaxIdleConns        = 10
	defaultMaxIdleConnsPerHost = 4
	defaultMaxConnsPerHost     = 4
	defaultIdleConnTimeout     = 60 * time.Second // conservative: matches common ALB defaults
)

// Transport error codes reported in place of an HTTP status.
const (
	ErrCodeTimeout     = "TIMEOUT"
	ErrCodeRefused     = "ECONNREFUSED"
	ErrCodeNotFound    = "ENOTFOUND"
	ErrCodeNetwork     = "ERR_NETWORK"
	ErrCodeBadRequest  = "ERR_BAD_REQUEST"
	ErrCodeCanceled    = "ERR_CANCELED"
	ErrCodeReadFailure = "ERR_BAD_RESPONSE"
)

// Request describes one poll.
type Request struct {
	// Method is GET or POST. Empty defaults to GET.
	Method string

	URL string

	// AuthToken is sent in the Authorization header. A token without a
	// scheme is sent as a bearer token.
	AuthToken string

	// Timeout bounds the whole exchange. Zero means [DefaultTimeout].
	Timeout time.Duration
}

// Response holds the result of an HTTP request made by a [Fetcher].
type Response struct {
	// Body contains the HTTP response body, limited to 1MB.
	Body []byte

	// StatusCode is the HTTP status code (e.g., 200, 404, 500).
	// Zero if the request failed before receiving a response.
	StatusCode int

	// Latency is the total time taken for the request.
	Latency time.Duration

	// Err contains any transport error.
	// nil indicates the request completed (though status may indicate an error).
	Err error

	// ErrCode classifies Err; empty when Err is nil.
	ErrCode string
}

// OK reports whether the exchange completed with a 2xx status.
func (r Response) OK() bool {
	return r.Err == nil && r.StatusCode >= 200 && r.StatusCode < 300
}

// Fetcher performs a single HTTP exchange.
//
// Fetch must honour ctx cancellation and must not return a Go error: failures
// are reported in [Response.Err].
type Fetcher interface {
	Fetch(ctx context.Context, req Request) Response
}

// Client is an HTTP client wrapper for polling a telemetry endpoint.
//
// Client uses per-request timeouts via context rather than a global timeout.
// Response bodies are limited to 1MB to prevent memory issues.
type Client struct {
	httpClient *http.Client
}

// NewClient creates a new polling [Client].
func NewClient() *Client {
	return &Client{
		httpClient: &http.Client{
			// no default timeout - we use per-request timeouts via context
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        defaultMaxIdleConns,
				MaxIdleConnsPerHost: defaultMaxIdleConnsPerHost,
				MaxConnsPerHost:     defaultMaxConnsPerHost,
				IdleConnTimeout:     defaultIdleConnTimeout,
			},
		},
	}
}

// Fetch performs an HTTP request and returns a structured [Response].
//
// Fetch always returns a Response; errors are captured in the Err field
// together with a classification code.
func (c *Client) Fetch(ctx context.Context, r Request) Response {
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()

	method := r.Method
	if method == "" {
		method = http.MethodGet
	}

	req, err := http.NewRequestWithContext(ctx, method, r.URL, nil)
	if err != nil {
		return Response{
			Latency: time.Since(start),
			Err:     fmt.Errorf("failed to create request: %w", err),
			ErrCode: ErrCodeBadRequest,
		}
	}

	req.Header.Set("Accept", "application/json")
	if method == http.MethodPost {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth := AuthorizationHeader(r.AuthToken); auth != "" {
		req.Header.Set("Authorization", auth)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Response{
			Latency: time.Since(start),
			Err:     fmt.Errorf("request failed: %w", err),
			ErrCode: Classify(err),
		}
	}
	defer func() { _ = resp.Body.Close() }()

	// read body with size limit
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
	if err != nil {
		code := Classify(err)
		if code == ErrCodeNetwork {
			code = ErrCodeReadFailure
		}
		return Response{
			StatusCode: resp.StatusCode,
			Latency:    time.Since(start),
			Err:        fmt.Errorf("failed to read response body: %w", err),
			ErrCode:    code,
		}
	}

	return Response{
		Body:       body,
		StatusCode: resp.StatusCode,
		Latency:    time.Since(start),
	}
}

// Close closes all idle connections in the client's connection pool.
// Safe to call multiple times and on a nil receiver.
func (c *Client) Close() {
	if c == nil || c.httpClient == nil {
		return
	}
	if transport, ok := c.httpClient.Transport.(*http.Transport); ok {
		transport.CloseIdleConnections()
	}
}

// AuthorizationHeader returns the Authorization header value for token.
// Tokens that already carry a scheme ("Basic abc") are sent unchanged.
func AuthorizationHeader(token string) string {
	token = strings.TrimSpace(token)
	if token == "" {
		return ""
	}
	if strings.ContainsRune(token, ' ') {
		return token
	}
	return "Bearer " + token
}

// Classify maps a transport error to one of the ErrCode constants.
func Classify(err error) string {
	if err == nil {
		return ""
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ErrCodeTimeout
	}
	if errors.Is(err, context.Canceled) {
		return ErrCodeCanceled
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrCodeTimeout
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		if dnsErr.IsTimeout {
			return ErrCodeTimeout
		}
		return ErrCodeNotFound
	}

	if errors.Is(err, syscall.ECONNREFUSED) {
		return ErrCodeRefused
	}

	return ErrCodeNetwork
}
