// Package prom exports cache and fetch client signals to Prometheus.
package prom

import (
	"github.com/IvanBrykalov/dexcache/cache"
	"github.com/IvanBrykalov/dexcache/fetch"
	"github.com/prometheus/client_golang/prometheus"
)

// Adapter implements cache.Metrics and exports Prometheus counters/gauges.
// Safe for concurrent use; all Prometheus metric types are goroutine-safe.
type Adapter struct {
	hits    prometheus.Counter
	misses  prometheus.Counter
	writes  prometheus.Counter
	evicts  *prometheus.CounterVec
	sizeEnt prometheus.Gauge
}

// New constructs a Prometheus metrics adapter for a cache.
//   - reg:          registry to register metrics with (nil => prometheus.DefaultRegisterer)
//   - ns, sub:      Prometheus namespace and subsystem
//   - constLabels:  static labels applied to all metrics (may be nil)
func New(reg prometheus.Registerer, ns, sub string, constLabels prometheus.Labels) *Adapter {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	a := &Adapter{
		hits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "hits_total",
			Help:        "Cache hits",
			ConstLabels: constLabels,
		}),
		misses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "misses_total",
			Help:        "Cache misses, expired entries included",
			ConstLabels: constLabels,
		}),
		writes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "writes_total",
			Help:        "Cache writes",
			ConstLabels: constLabels,
		}),
		evicts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   sub,
				Name:        "evictions_total",
				Help:        "Cache evictions by reason",
				ConstLabels: constLabels,
			},
			[]string{"reason"},
		),
		sizeEnt: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "size_entries",
			Help:        "Number of memory-tier entries",
			ConstLabels: constLabels,
		}),
	}
	reg.MustRegister(a.hits, a.misses, a.writes, a.evicts, a.sizeEnt)
	return a
}

// Hit increments the hit counter.
func (a *Adapter) Hit() { a.hits.Inc() }

// Miss increments the miss counter.
func (a *Adapter) Miss() { a.misses.Inc() }

// Write increments the write counter.
func (a *Adapter) Write() { a.writes.Inc() }

// Evict increments the eviction counter with a reason label.
func (a *Adapter) Evict(r cache.EvictReason) {
	a.evicts.WithLabelValues(r.String()).Inc()
}

// Size updates the memory-tier entry gauge.
func (a *Adapter) Size(entries int) {
	a.sizeEnt.Set(float64(entries))
}

// FetchAdapter implements fetch.Metrics.
type FetchAdapter struct {
	requests  *prometheus.CounterVec
	retries   prometheus.Counter
	coalesced prometheus.Counter
	exhausted prometheus.Counter
}

// NewFetch constructs a Prometheus adapter for a fetch client. Arguments
// follow New.
func NewFetch(reg prometheus.Registerer, ns, sub string, constLabels prometheus.Labels) *FetchAdapter {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	a := &FetchAdapter{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   sub,
				Name:        "requests_total",
				Help:        "Upstream HTTP requests by status code (\"error\" for transport failures)",
				ConstLabels: constLabels,
			},
			[]string{"status"},
		),
		retries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "retries_total",
			Help:        "Retried upstream requests",
			ConstLabels: constLabels,
		}),
		coalesced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "coalesced_total",
			Help:        "Calls that joined an in-flight request for the same key",
			ConstLabels: constLabels,
		}),
		exhausted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "exhausted_total",
			Help:        "Requests that failed after all attempts",
			ConstLabels: constLabels,
		}),
	}
	reg.MustRegister(a.requests, a.retries, a.coalesced, a.exhausted)
	return a
}

// Request counts one HTTP attempt by status label.
func (a *FetchAdapter) Request(status string) { a.requests.WithLabelValues(status).Inc() }

// Retry increments the retry counter.
func (a *FetchAdapter) Retry() { a.retries.Inc() }

// Coalesced increments the coalesced counter.
func (a *FetchAdapter) Coalesced() { a.coalesced.Inc() }

// Exhausted increments the exhausted counter.
func (a *FetchAdapter) Exhausted() { a.exhausted.Inc() }

// Compile-time checks.
var (
	_ cache.Metrics = (*Adapter)(nil)
	_ fetch.Metrics = (*FetchAdapter)(nil)
)
