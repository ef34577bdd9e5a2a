package poller

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/http/httptrace"
	"strings"
	"testing"
	"time"
)

func TestClient_Fetch_SetsUserAgent(t *testing.T) {
	var gotUA, gotMethod string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotMethod = r.Method
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	resp := NewClient().Fetch(context.Background(), server.URL, nil, time.Second)
	if resp.Error != nil {
		t.Fatalf("Fetch() error = %v", resp.Error)
	}
	if gotUA != "Apispark.net/1.0" {
		t.Errorf("User-Agent = %q, want %q", gotUA, "Apispark.net/1.0")
	}
	if gotMethod != http.MethodGet {
		t.Errorf("Method = %q, want GET", gotMethod)
	}
	if string(resp.Body) != `{"ok":true}` {
		t.Errorf("Body = %q", resp.Body)
	}
}

func TestClient_Fetch_CallerHeadersOverride(t *testing.T) {
	var got http.Header
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	headers := map[string]string{
		"User-Agent": "custom/2.0",
		"X-Api-Key":  "secret",
	}
	resp := NewClient().Fetch(context.Background(), server.URL, headers, time.Second)
	if resp.Error != nil {
		t.Fatalf("Fetch() error = %v", resp.Error)
	}

	if got.Get("User-Agent") != "custom/2.0" {
		t.Errorf("User-Agent = %q, want caller override", got.Get("User-Agent"))
	}
	if got.Get("X-Api-Key") != "secret" {
		t.Errorf("X-Api-Key = %q, want %q", got.Get("X-Api-Key"), "secret")
	}
}

func TestClient_Fetch_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	resp := NewClient().Fetch(context.Background(), server.URL, nil, 50*time.Millisecond)
	if resp.Error == nil {
		t.Fatal("Fetch() expected timeout error, got nil")
	}
	if resp.StatusCode != 0 {
		t.Errorf("StatusCode = %d, want 0", resp.StatusCode)
	}
}

func TestClient_Fetch_BodySizeLimit(t *testing.T) {
	tests := []struct {
		name    string
		size    int
		wantErr error
	}{
		{"at limit", maxResponseBodySize, nil},
		{"over limit", maxResponseBodySize + 1, ErrBodyTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// a JSON string literal padded to exactly tt.size bytes
			body := `"` + strings.Repeat("a", tt.size-2) + `"`
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(body))
			}))
			defer server.Close()

			resp := NewClient().Fetch(context.Background(), server.URL, nil, 5*time.Second)
			if !errors.Is(resp.Error, tt.wantErr) {
				t.Fatalf("Fetch() error = %v, want %v", resp.Error, tt.wantErr)
			}

			_, err := resp.JSON()
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("JSON() error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr != nil && errors.Is(err, ErrInvalidJSON) {
				t.Error("JSON() reported ErrInvalidJSON for an oversized body")
			}
			if resp.StatusCode != http.StatusOK {
				t.Errorf("StatusCode = %d, want 200", resp.StatusCode)
			}
		})
	}
}

func TestClient_Fetch_InvalidURL(t *testing.T) {
	resp := NewClient().Fetch(context.Background(), "://bad", nil, time.Second)
	if resp.Error == nil {
		t.Fatal("Fetch() expected error for invalid URL, got nil")
	}
	if !strings.Contains(resp.Error.Error(), "failed to create request") {
		t.Errorf("Error = %q, want to contain 'failed to create request'", resp.Error)
	}
}

func TestResponse_JSON(t *testing.T) {
	transportErr := errors.New("connection refused")

	tests := []struct {
		name    string
		resp    Response
		want    string
		wantErr string
	}{
		{
			name: "object body",
			resp: Response{StatusCode: 200, Body: []byte(`{"a": 1}`)},
			want: `{"a": 1}`,
		},
		{
			name: "array body",
			resp: Response{StatusCode: 204, Body: []byte(`[1,2]`)},
			want: `[1,2]`,
		},
		{
			name:    "transport error",
			resp:    Response{Error: transportErr},
			wantErr: "connection refused",
		},
		{
			name:    "server error",
			resp:    Response{StatusCode: 503, Body: []byte(`{}`)},
			wantErr: "unexpected status code 503",
		},
		{
			name:    "malformed body",
			resp:    Response{StatusCode: 200, Body: []byte(`<html>`)},
			wantErr: "not valid JSON",
		},
		{
			name:    "empty body",
			resp:    Response{StatusCode: 200},
			wantErr: "not valid JSON",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.resp.JSON()
			if tt.wantErr != "" {
				if err == nil {
					t.Fatal("JSON() expected error, got nil")
				}
				if !strings.Contains(err.Error(), tt.wantErr) {
					t.Errorf("error = %q, want to contain %q", err.Error(), tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("JSON() error = %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("JSON() = %s, want %s", got, tt.want)
			}
		})
	}
}

// TestClient_ConnectionReuse verifies that the HTTP client reuses connections
// when making sequential requests to the same host.
func TestClient_ConnectionReuse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("{}"))
	}))
	defer server.Close()

	client := NewClient()

	var reusedCount int
	trace := &httptrace.ClientTrace{
		GotConn: func(info httptrace.GotConnInfo) {
			if info.Reused {
				reusedCount++
			}
		},
	}

	const numRequests = 5

	for i := 0; i < numRequests; i++ {
		ctx := httptrace.WithClientTrace(context.Background(), trace)
		resp := client.Fetch(ctx, server.URL, nil, 5*time.Second)
		if resp.Error != nil {
			t.Fatalf("request %d failed: %v", i, resp.Error)
		}
	}

	expectedMinReuse := numRequests - 2 // allow some tolerance
	if reusedCount < expectedMinReuse {
		t.Errorf("expected at least %d reused connections, got %d out of %d requests",
			expectedMinReuse, reusedCount, numRequests)
	}
}

// TestClient_Close verifies that Close() is safe to call and idempotent.
func TestClient_Close(t *testing.T) {
	client := NewClient()

	client.Close()
	client.Close()

	var nilClient *Client
	nilClient.Close()
}
