package fetch

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/IvanBrykalov/dexcache/cache"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Defaults applied by New for zero-valued Options fields.
const (
	DefaultMaxAttempts    = 3
	DefaultBaseDelay      = time.Second
	DefaultRequestTimeout = 10 * time.Second
	DefaultMaxBodyBytes   = 8 << 20
	DefaultUserAgent      = "dexcache/1.0"
)

// Metrics exposes client-level observability hooks.
// A NoopMetrics implementation is provided and used by default.
type Metrics interface {
	// Request is called once per HTTP attempt with the status code as a
	// string, or "error" when no response was received.
	Request(status string)
	Retry()
	Coalesced()
	Exhausted()
}

// NoopMetrics is a Metrics implementation that does nothing.
type NoopMetrics struct{}

func (NoopMetrics) Request(string) {}
func (NoopMetrics) Retry()         {}
func (NoopMetrics) Coalesced()     {}
func (NoopMetrics) Exhausted()     {}

var _ Metrics = NoopMetrics{}

// Options configures the client. Zero values are safe; New applies:
//   - nil Cache            => memory-only cache with cache defaults
//   - nil HTTPClient       => pooled HTTP/2-capable client
//   - MaxAttempts <= 0     => 3
//   - BaseDelay <= 0       => 1s
//   - RequestTimeout <= 0  => 10s (per attempt)
//   - MaxBodyBytes <= 0    => 8 MiB
//   - empty UserAgent      => DefaultUserAgent
//   - nil Limiter          => unlimited
//   - nil Metrics          => NoopMetrics
//   - nil Logger           => zap.NewNop()
type Options struct {
	Cache      *cache.Cache[json.RawMessage]
	HTTPClient *http.Client

	// MaxAttempts bounds the number of GETs per fetch. After a failed
	// attempt a (1-based) the client waits BaseDelay×2^(a-1).
	MaxAttempts int
	BaseDelay   time.Duration

	RequestTimeout time.Duration
	MaxBodyBytes   int64
	UserAgent      string

	// Limiter paces outgoing attempts across all callers.
	Limiter *rate.Limiter

	// MaxConcurrency caps concurrent fetches in FetchMany (0 = unlimited).
	MaxConcurrency int

	Metrics Metrics
	Logger  *zap.Logger
}
