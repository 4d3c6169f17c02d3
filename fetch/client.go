// Package fetch is a caching HTTP client for a read-only JSON API.
//
// Every fetch is keyed. A cached value is returned without touching the
// network; concurrent misses for the same key share one request; failed
// attempts are retried with exponential backoff. Successful bodies are
// written to the cache with a caller-supplied TTL.
package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/IvanBrykalov/dexcache/cache"
	"github.com/IvanBrykalov/dexcache/internal/singleflight"
	"go.uber.org/zap"
)

// Request describes one keyed fetch.
type Request struct {
	// Key identifies the resource in the cache and the in-flight registry.
	Key string
	// URL builds the address; it is called only when the network is used.
	URL func() string
	// TTL for the cached body (<= 0 uses the cache default).
	TTL time.Duration
	// Transform, if set, rewrites a valid JSON body before it is cached,
	// e.g. to keep only the fields a caller needs. Its output must be JSON.
	Transform func(body []byte) ([]byte, error)
}

// Client fetches JSON resources through a cache.
type Client struct {
	cache   *cache.Cache[json.RawMessage]
	http    *http.Client
	opt     Options
	metrics Metrics
	log     *zap.Logger

	flight singleflight.Group[string, json.RawMessage]
}

// New constructs a client with the provided Options.
func New(opt Options) *Client {
	if opt.Logger == nil {
		opt.Logger = zap.NewNop()
	}
	if opt.Cache == nil {
		opt.Cache = cache.New[json.RawMessage](cache.Options[json.RawMessage]{Logger: opt.Logger})
	}
	if opt.HTTPClient == nil {
		opt.HTTPClient = newHTTPClient(opt.Logger)
	}
	if opt.MaxAttempts <= 0 {
		opt.MaxAttempts = DefaultMaxAttempts
	}
	if opt.BaseDelay <= 0 {
		opt.BaseDelay = DefaultBaseDelay
	}
	if opt.RequestTimeout <= 0 {
		opt.RequestTimeout = DefaultRequestTimeout
	}
	if opt.MaxBodyBytes <= 0 {
		opt.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if opt.UserAgent == "" {
		opt.UserAgent = DefaultUserAgent
	}
	if opt.Metrics == nil {
		opt.Metrics = NoopMetrics{}
	}
	return &Client{
		cache:   opt.Cache,
		http:    opt.HTTPClient,
		opt:     opt,
		metrics: opt.Metrics,
		log:     opt.Logger,
	}
}

// Cache returns the cache backing the client.
func (c *Client) Cache() *cache.Cache[json.RawMessage] { return c.cache }

// FetchResource returns the JSON body for key, from the cache when present,
// otherwise from urlFn() with retry. See Do.
func (c *Client) FetchResource(ctx context.Context, key string, urlFn func() string, ttl time.Duration) (json.RawMessage, error) {
	return c.Do(ctx, Request{Key: key, URL: urlFn, TTL: ttl})
}

// Do runs req. A cache hit returns immediately. On a miss, callers with the
// same key share one in-flight request and receive the same value or error.
// The leader re-checks the cache, fetches with retry, validates the body and
// caches it. Errors are *ExhaustedError, *DecodeError or the ctx error.
func (c *Client) Do(ctx context.Context, req Request) (json.RawMessage, error) {
	if v, ok := c.cache.Get(req.Key); ok {
		return v, nil
	}
	v, joined, err := c.flight.Do(ctx, req.Key, func(ctx context.Context) (json.RawMessage, error) {
		return c.load(ctx, req)
	})
	if joined {
		c.metrics.Coalesced()
	}
	return v, err
}

// Fetch is Do with the body decoded into T.
func Fetch[T any](ctx context.Context, c *Client, key string, urlFn func() string, ttl time.Duration) (T, error) {
	var out T
	raw, err := c.FetchResource(ctx, key, urlFn, ttl)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, &DecodeError{URL: urlFn(), Err: err}
	}
	return out, nil
}

func (c *Client) load(ctx context.Context, req Request) (json.RawMessage, error) {
	// Another leader may have finished between our miss and registering.
	if c.cache.Has(req.Key) {
		if v, ok := c.cache.Get(req.Key); ok {
			return v, nil
		}
	}

	url := req.URL()
	body, err := c.getWithRetry(ctx, url)
	if err != nil {
		return nil, err
	}
	if !json.Valid(body) {
		return nil, &DecodeError{URL: url, Err: errNotJSON}
	}
	if req.Transform != nil {
		if body, err = req.Transform(body); err != nil {
			return nil, &DecodeError{URL: url, Err: err}
		}
		if !json.Valid(body) {
			return nil, &DecodeError{URL: url, Err: errNotJSON}
		}
	}

	v := json.RawMessage(body)
	c.cache.Set(req.Key, v, req.TTL)
	return v, nil
}

// getWithRetry performs up to MaxAttempts GETs. Cancellation ends the loop
// immediately with the ctx error.
func (c *Client) getWithRetry(ctx context.Context, url string) ([]byte, error) {
	var last error
	for attempt := 1; attempt <= c.opt.MaxAttempts; attempt++ {
		body, err := c.get(ctx, url)
		if err == nil {
			return body, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		last = err
		if attempt == c.opt.MaxAttempts {
			break
		}

		delay := c.opt.BaseDelay << (attempt - 1)
		c.metrics.Retry()
		c.log.Debug("retrying fetch",
			zap.String("url", url),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", delay),
			zap.Error(err))
		if err := sleep(ctx, delay); err != nil {
			return nil, err
		}
	}
	c.metrics.Exhausted()
	return nil, &ExhaustedError{URL: url, Attempts: c.opt.MaxAttempts, Last: last}
}

// get performs a single attempt.
func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	if c.opt.Limiter != nil {
		if err := c.opt.Limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	ctx, cancel := context.WithTimeout(ctx, c.opt.RequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &TransportError{URL: url, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.opt.UserAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		c.metrics.Request("error")
		return nil, &TransportError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	c.metrics.Request(strconv.Itoa(resp.StatusCode))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return nil, &HTTPStatusError{StatusCode: resp.StatusCode, Status: resp.Status, URL: url}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.opt.MaxBodyBytes+1))
	if err != nil {
		return nil, &TransportError{URL: url, Err: err}
	}
	if int64(len(body)) > c.opt.MaxBodyBytes {
		return nil, &TransportError{URL: url, Err: fmt.Errorf("body exceeds %d bytes", c.opt.MaxBodyBytes)}
	}
	return body, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
