// Package fetch loads external documents for the cross-document render
// helpers. The engine only ever needs "the bytes at this URL", so the
// surface is a single-method interface; auth, retries and proxying stay
// with the caller's http.Client.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Fetcher retrieves an external document as raw bytes.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Func adapts a plain function to the Fetcher interface.
type Func func(ctx context.Context, url string) ([]byte, error)

func (f Func) Fetch(ctx context.Context, url string) ([]byte, error) {
	return f(ctx, url)
}

// HTTPFetcher is the default Fetcher, backed by net/http.
type HTTPFetcher struct {
	// Client issues the requests. Nil falls back to a client with a
	// 30-second timeout.
	Client *http.Client

	// UserAgent is sent as the User-Agent header when non-empty.
	UserAgent string

	// MaxBodySize caps the response body in bytes. Zero means the
	// default of 10 MiB.
	MaxBodySize int64
}

const defaultMaxBodySize = 10 << 20

// NewHTTPFetcher returns an HTTPFetcher with default client settings.
func NewHTTPFetcher() *HTTPFetcher {
	return &HTTPFetcher{
		Client: &http.Client{Timeout: 30 * time.Second},
	}
}

// Fetch issues a GET for url and returns the response body. Non-2xx
// statuses and over-limit bodies are errors.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	if f.UserAgent != "" {
		req.Header.Set("User-Agent", f.UserAgent)
	}

	client := f.Client
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fetch %s: unexpected status %s", url, resp.Status)
	}

	limit := f.MaxBodySize
	if limit <= 0 {
		limit = defaultMaxBodySize
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, fmt.Errorf("fetch %s: read body: %w", url, err)
	}
	if int64(len(body)) > limit {
		return nil, fmt.Errorf("fetch %s: body exceeds %d bytes", url, limit)
	}
	return body, nil
}
