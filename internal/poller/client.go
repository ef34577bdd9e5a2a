package poller

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// UserAgent is sent with every upstream API request.
const UserAgent = "Apispark.net/1.0"

const maxResponseBodySize = 8 << 20 // 8MB

// connection pooling limits to prevent resource exhaustion when polling many APIs
const (
	defaultMaxIdleConns        = 100
	defaultMaxIdleConnsPerHost = 10
	defaultMaxConnsPerHost     = 10
	defaultIdleConnTimeout     = 60 * time.Second // conservative: matches common ALB defaults
)

var (
	// ErrInvalidJSON is returned by [Response.JSON] when the body is not a JSON document.
	ErrInvalidJSON = errors.New("response body is not valid JSON")

	// ErrBodyTooLarge is set on a [Response] whose body exceeds 8MB.
	ErrBodyTooLarge = errors.New("response body exceeds 8MB")
)

// Response holds the result of an HTTP request made by [Client].
//
// Response captures the body (limited to 8MB), status code, latency, and any
// error that occurred while talking to the upstream API.
type Response struct {
	// Body contains the HTTP response body, limited to 8MB.
	Body []byte

	// StatusCode is the HTTP status code (e.g., 200, 404, 500).
	// Zero if the request failed before receiving a response.
	StatusCode int

	// Latency is the total time taken for the request.
	Latency time.Duration

	// Error contains any transport error that occurred during the request.
	// nil indicates the request completed (though status may indicate an error).
	Error error
}

// JSON returns the body as a raw JSON document ready to be forwarded.
//
// It fails if the request errored, the upstream answered with a non-2xx
// status, or the body is not valid JSON. The returned bytes are the body
// verbatim; no re-encoding takes place.
func (r Response) JSON() (json.RawMessage, error) {
	if r.Error != nil {
		return nil, r.Error
	}
	if r.StatusCode < 200 || r.StatusCode > 299 {
		return nil, fmt.Errorf("unexpected status code %d", r.StatusCode)
	}
	if !json.Valid(r.Body) {
		return nil, ErrInvalidJSON
	}
	return json.RawMessage(r.Body), nil
}

// Client is an HTTP client wrapper for calling upstream JSON APIs.
//
// Client uses per-request timeouts via context rather than a global timeout,
// allowing different jobs to have different timeout configurations.
type Client struct {
	httpClient *http.Client
}

// NewClient creates a new API [Client].
//
// The client is configured with connection pooling limits to prevent resource
// exhaustion when polling many APIs. Timeouts are applied per-request via
// the timeout parameter in [Client.Fetch], not as a global client timeout.
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

// Fetch performs a GET request against url and returns a structured [Response].
//
// The User-Agent header is always set to [UserAgent]; caller supplied headers
// are applied afterwards, so a caller value wins on key collision. A timeout
// of zero or less means the request is bounded only by ctx.
//
// Fetch always returns a Response; errors are captured in the Error field
// rather than returned separately.
func (c *Client) Fetch(ctx context.Context, url string, headers map[string]string, timeout time.Duration) Response {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Response{
			Latency: time.Since(start),
			Error:   fmt.Errorf("failed to create request: %w", err),
		}
	}

	req.Header.Set("User-Agent", UserAgent)
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Response{
			Latency: time.Since(start),
			Error:   fmt.Errorf("request failed: %w", err),
		}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize+1))
	if err != nil {
		return Response{
			StatusCode: resp.StatusCode,
			Latency:    time.Since(start),
			Error:      fmt.Errorf("failed to read response body: %w", err),
		}
	}
	if len(body) > maxResponseBodySize {
		return Response{
			StatusCode: resp.StatusCode,
			Latency:    time.Since(start),
			Error:      ErrBodyTooLarge,
		}
	}

	return Response{
		Body:       body,
		StatusCode: resp.StatusCode,
		Latency:    time.Since(start),
	}
}

// Close closes all idle connections in the client's connection pool.
//
// Safe to call multiple times. After Close, the client remains usable but
// new connections will be established as needed.
func (c *Client) Close() {
	if c == nil || c.httpClient == nil {
		return
	}
	if transport, ok := c.httpClient.Transport.(*http.Transport); ok {
		transport.CloseIdleConnections()
	}
}
