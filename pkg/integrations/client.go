package integrations

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/matzehuels/pyvalidate/pkg/cache"
	"github.com/matzehuels/pyvalidate/pkg/httputil"
	"github.com/matzehuels/pyvalidate/pkg/observability"
)

// Client provides shared HTTP functionality for the release catalog client.
// It handles response caching, opt-in retries, and common request headers.
type Client struct {
	http     *http.Client
	cache    cache.Cache
	prefix   string
	ttl      time.Duration
	attempts int
	headers  map[string]string
}

// NewClient creates a Client that caches decoded responses in backend under
// keys prefixed with prefix. A ttl of 0 disables caching entirely.
// Headers are applied to all requests; pass nil if none are needed.
func NewClient(backend cache.Cache, prefix string, ttl time.Duration, headers map[string]string) *Client {
	if backend == nil {
		backend = cache.NewNullCache()
	}
	return &Client{
		http:     NewHTTPClient(),
		cache:    backend,
		prefix:   prefix,
		ttl:      ttl,
		attempts: 1,
		headers:  headers,
	}
}

// SetAttempts sets how many times a retryable failure is attempted.
// Values below 1 are treated as 1 (no retry).
func (c *Client) SetAttempts(n int) { c.attempts = max(n, 1) }

// SetHTTPClient replaces the underlying HTTP client.
func (c *Client) SetHTTPClient(h *http.Client) {
	if h != nil {
		c.http = h
	}
}

// Cached retrieves v from the cache or runs fetch and caches the result.
// If refresh is true, the cache is bypassed and fetch is always called.
// fetch must populate v; on success v is stored as JSON.
func (c *Client) Cached(ctx context.Context, key string, refresh bool, v any, fetch func() error) error {
	key = c.prefix + key
	if !refresh && c.ttl > 0 {
		if data, hit, err := c.cache.Get(ctx, key); err == nil && hit {
			if json.Unmarshal(data, v) == nil {
				observability.Cache().OnCacheHit(ctx, c.prefix)
				return nil
			}
		}
		observability.Cache().OnCacheMiss(ctx, c.prefix)
	}

	if err := httputil.Retry(ctx, c.attempts, time.Second, fetch); err != nil {
		return err
	}

	if c.ttl > 0 {
		if data, err := json.Marshal(v); err == nil {
			if c.cache.Set(ctx, key, data, c.ttl) == nil {
				observability.Cache().OnCacheSet(ctx, c.prefix, len(data))
			}
		}
	}
	return nil
}

// Get performs an HTTP GET request and JSON-decodes the response into v.
func (c *Client) Get(ctx context.Context, rawURL string, v any) error {
	return c.GetWithHeaders(ctx, rawURL, nil, v)
}

// GetWithHeaders performs an HTTP GET with additional headers merged with defaults.
// Request-specific headers override client defaults for the same key.
func (c *Client) GetWithHeaders(ctx context.Context, rawURL string, headers map[string]string, v any) error {
	body, err := c.doRequest(ctx, rawURL, headers)
	if err != nil {
		return err
	}
	defer body.Close()
	if err := json.NewDecoder(body).Decode(v); err != nil {
		return fmt.Errorf("decode %s: %w", rawURL, err)
	}
	return nil
}

func (c *Client) doRequest(ctx context.Context, rawURL string, headers map[string]string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	host, path := splitURL(rawURL)
	hooks := observability.HTTP()
	hooks.OnRequest(ctx, http.MethodGet, host, path)
	start := time.Now()

	resp, err := c.http.Do(req)
	if err != nil {
		hooks.OnError(ctx, http.MethodGet, host, path, err)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, httputil.Retryable(fmt.Errorf("%w: %v", ErrNetwork, err))
	}
	hooks.OnResponse(ctx, http.MethodGet, host, path, resp.StatusCode, time.Since(start))

	if err := checkStatus(resp.StatusCode); err != nil {
		resp.Body.Close()
		return nil, err
	}
	return resp.Body, nil
}

func checkStatus(code int) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusNotFound:
		return ErrNotFound
	case code >= 500:
		return httputil.Retryable(fmt.Errorf("%w: status %d", ErrNetwork, code))
	default:
		return fmt.Errorf("%w: status %d", ErrNetwork, code)
	}
}

func splitURL(rawURL string) (host, path string) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", rawURL
	}
	return u.Host, u.Path
}
