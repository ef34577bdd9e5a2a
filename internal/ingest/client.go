package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	structuredIngestPath = "/api/v1/ingest/humio-structured"

	// maxErrorBodySize bounds how much of a rejected response is kept for the error message.
	maxErrorBodySize = 4 << 10
)

// ErrEmptyToken is returned when an ingest call is attempted without a token.
var ErrEmptyToken = errors.New("ingest token is empty")

// Client posts envelopes to the structured ingest API.
//
// A Client is safe for concurrent use. The base URL and token are supplied
// per call because every job may target a different repository.
type Client struct {
	httpClient *http.Client
	timeout    time.Duration
	now        func() time.Time
}

// NewClient creates an ingest [Client]. A timeout of zero or less means each
// call is bounded only by the caller's context.
func NewClient(timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 5,
				IdleConnTimeout:     60 * time.Second,
			},
		},
		timeout: timeout,
		now:     time.Now,
	}
}

// Ingest wraps attributes in an [Envelope] stamped with the current UTC time
// and submits it to baseURL using token as bearer credential.
//
// Any non-2xx answer from the backend is returned as an error that includes
// the status code and the start of the response body.
func (c *Client) Ingest(ctx context.Context, baseURL, token string, attributes json.RawMessage) error {
	if token == "" {
		return ErrEmptyToken
	}

	payload, err := json.Marshal([]Envelope{NewEnvelope(attributes, c.now())})
	if err != nil {
		return fmt.Errorf("failed to encode envelope: %w", err)
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	endpoint := strings.TrimRight(baseURL, "/") + structuredIngestPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create ingest request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ingest request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		return fmt.Errorf("ingest rejected with status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	// drain so the connection can be reused
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBodySize))
	return nil
}

// Close closes idle connections held by the client.
func (c *Client) Close() {
	if c == nil || c.httpClient == nil {
		return
	}
	c.httpClient.CloseIdleConnections()
}
