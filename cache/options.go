package cache

import (
	"time"

	"github.com/IvanBrykalov/dexcache/policy"
	"github.com/IvanBrykalov/dexcache/store"
	"go.uber.org/zap"
)

// EvictReason explains why an entry was removed.
type EvictReason int

const (
	// EvictPolicy: removed by the eviction policy because the memory tier was over capacity.
	EvictPolicy EvictReason = iota
	// EvictTTL: expired (lazily on read or by CleanExpired).
	EvictTTL
)

func (r EvictReason) String() string {
	switch r {
	case EvictTTL:
		return "ttl"
	default:
		return "policy"
	}
}

// Metrics exposes cache-level observability hooks.
// A NoopMetrics implementation is provided and used by default.
type Metrics interface {
	Hit()
	Miss()
	Write()
	Evict(reason EvictReason)
	Size(entries int)
}

// Clock provides time in UnixNano; useful for deterministic tests.
type Clock interface{ NowUnixNano() int64 }

// Defaults applied by New for zero-valued Options fields.
const (
	DefaultMaxEntries    = 500
	DefaultTTL           = 5 * time.Minute
	DefaultNamespace     = "dexcache"
	DefaultEvictFraction = 0.2
)

// Options configures the cache. Zero values are safe; New applies:
//   - MaxEntries <= 0          => DefaultMaxEntries
//   - DefaultTTL <= 0          => DefaultTTL (5m)
//   - nil Store                => store.Noop (memory only)
//   - empty Namespace          => "dexcache"
//   - nil Policy               => least-used
//   - EvictFraction outside (0,1] => 0.2
//   - nil Metrics              => NoopMetrics
//   - nil Logger               => zap.NewNop()
type Options[V any] struct {
	// MaxEntries is the memory tier's entry limit.
	MaxEntries int

	// DefaultTTL applies to Set calls with a non-positive ttl.
	DefaultTTL time.Duration

	// Store is the persistent tier. Entries are mirrored as one JSON blob
	// under Namespace.
	Store     store.Store
	Namespace string

	// Policy ranks entries for eviction; EvictFraction of the memory tier
	// (at least one entry) is removed each time it overflows.
	Policy        policy.Policy
	EvictFraction float64

	// OnEvict is called for every eviction under the cache lock; keep callbacks lightweight.
	OnEvict func(key string, v V, reason EvictReason)
	Metrics Metrics
	Logger  *zap.Logger

	// Clock allows overriding time source (tests). Nil => time.Now().
	Clock Clock
}
