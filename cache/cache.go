package cache

import (
	"encoding/json"
	"math"
	"slices"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/IvanBrykalov/dexcache/policy"
	"github.com/IvanBrykalov/dexcache/policy/leastused"
	"github.com/IvanBrykalov/dexcache/store"
	"go.uber.org/zap"
)

// Cache is a two-tier TTL cache: a bounded in-memory map mirrored to a
// persistent store. All methods are safe for concurrent use; one lock
// guards both tiers so they change together.
type Cache[V any] struct {
	mu sync.Mutex
	m  map[string]*entry[V]

	opt        Options[V]
	log        *zap.Logger
	persistent bool
	closed     atomic.Bool

	// ---- guarded by mu ----
	hits      uint64
	misses    uint64
	writes    uint64
	evictions uint64
	expired   uint64
}

// New constructs a cache with the provided Options and purges expired
// entries from both tiers.
func New[V any](opt Options[V]) *Cache[V] {
	if opt.MaxEntries <= 0 {
		opt.MaxEntries = DefaultMaxEntries
	}
	if opt.DefaultTTL <= 0 {
		opt.DefaultTTL = DefaultTTL
	}
	if opt.Store == nil {
		opt.Store = store.Noop{}
	}
	if opt.Namespace == "" {
		opt.Namespace = DefaultNamespace
	}
	if opt.Policy == nil {
		opt.Policy = leastused.New()
	}
	if opt.EvictFraction <= 0 || opt.EvictFraction > 1 {
		opt.EvictFraction = DefaultEvictFraction
	}
	if opt.Metrics == nil {
		opt.Metrics = NoopMetrics{}
	}
	if opt.Logger == nil {
		opt.Logger = zap.NewNop()
	}
	_, noop := opt.Store.(store.Noop)

	c := &Cache[V]{
		m:          make(map[string]*entry[V], opt.MaxEntries),
		opt:        opt,
		log:        opt.Logger.With(zap.String("cache", opt.Namespace)),
		persistent: !noop,
	}
	c.CleanExpired()
	return c
}

// Set stores v under key until now+ttl (DefaultTTL if ttl <= 0) in both
// tiers. Overwriting resets the entry's access metadata. When the memory
// tier overflows, the lowest-ranked entries are evicted before returning.
// The new entry is ranked like any other and may be a victim itself; its
// persisted copy is kept, so a later Get promotes it back.
func (c *Cache[V]) Set(key string, v V, ttl time.Duration) {
	if c.closed.Load() {
		return
	}
	if ttl <= 0 {
		ttl = c.opt.DefaultTTL
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	e := &entry[V]{key: key, val: v, created: now, expires: now + int64(ttl)}
	c.m[key] = e
	c.writes++
	c.opt.Metrics.Write()

	var victims []string
	if len(c.m) > c.opt.MaxEntries {
		victims = c.evictLocked()
	}

	if c.persistent {
		raw, err := json.Marshal(v)
		if err != nil {
			c.warn(&StorageError{Op: "encode", Key: key, Err: err})
		} else {
			c.mutateStoreLocked(func(blob map[string]persisted) {
				for _, k := range victims {
					delete(blob, k)
				}
				// Written after the deletes: a self-evicted key stays promotable.
				blob[key] = persisted{Value: raw, CreatedAt: e.created, ExpiresAt: e.expires}
			})
		}
	}
	c.opt.Metrics.Size(len(c.m))
}

// Get returns the value for key if present and not expired. The memory
// tier is consulted first, then the persistent tier; a persistent hit is
// promoted into memory. Expired entries are deleted from both tiers.
func (c *Cache[V]) Get(key string) (V, bool) {
	var zero V
	if c.closed.Load() {
		return zero, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	e, ok := c.m[key]
	promoted := false
	if !ok {
		e, ok = c.loadLocked(key)
		promoted = ok
	}
	if !ok {
		c.missLocked()
		return zero, false
	}
	if e.expired(now) {
		delete(c.m, key)
		c.deleteFromStoreLocked(key)
		c.expired++
		c.opt.Metrics.Evict(EvictTTL)
		c.missLocked()
		return zero, false
	}

	e.accesses++
	e.last = now
	if promoted {
		c.m[key] = e
		if len(c.m) > c.opt.MaxEntries {
			victims := c.evictLocked(key)
			c.mutateStoreLocked(func(blob map[string]persisted) {
				for _, k := range victims {
					delete(blob, k)
				}
			})
		}
		c.opt.Metrics.Size(len(c.m))
	}
	c.hits++
	c.opt.Metrics.Hit()
	return e.val, true
}

// Has reports whether key is present and not expired in either tier.
// Unlike Get it does not touch access metadata or statistics.
func (c *Cache[V]) Has(key string) bool {
	if c.closed.Load() {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if e, ok := c.m[key]; ok {
		return !e.expired(now)
	}
	if !c.persistent {
		return false
	}
	blob, ok := c.readBlobLocked()
	if !ok {
		return false
	}
	p, ok := blob[key]
	return ok && !p.expired(now)
}

// Delete removes key from both tiers.
func (c *Cache[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.m, key)
	c.deleteFromStoreLocked(key)
	c.opt.Metrics.Size(len(c.m))
}

// Clear empties both tiers and resets statistics.
func (c *Cache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.m)
	if c.persistent {
		if err := c.opt.Store.Delete(c.opt.Namespace); err != nil {
			c.warn(&StorageError{Op: "delete", Key: c.opt.Namespace, Err: err})
		}
	}
	c.hits, c.misses, c.writes, c.evictions, c.expired = 0, 0, 0, 0, 0
	c.opt.Metrics.Size(0)
}

// EvictLeastUsed removes max(1, floor(n×EvictFraction)) memory entries in
// policy order (by default ascending access count, then creation time) and
// drops them from the persistent tier. It returns the evicted keys.
func (c *Cache[V]) EvictLeastUsed() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	victims := c.evictLocked()
	c.mutateStoreLocked(func(blob map[string]persisted) {
		for _, k := range victims {
			delete(blob, k)
		}
	})
	c.opt.Metrics.Size(len(c.m))
	return victims
}

// CleanExpired purges expired entries from both tiers and returns how many
// distinct keys were removed.
func (c *Cache[V]) CleanExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := make(map[string]struct{})
	for k, e := range c.m {
		if e.expired(now) {
			delete(c.m, k)
			removed[k] = struct{}{}
			c.opt.Metrics.Evict(EvictTTL)
		}
	}
	c.mutateStoreLocked(func(blob map[string]persisted) {
		for k, p := range blob {
			if p.expired(now) {
				delete(blob, k)
				removed[k] = struct{}{}
			}
		}
	})
	c.expired += uint64(len(removed))
	c.opt.Metrics.Size(len(c.m))
	if len(removed) > 0 {
		c.log.Debug("purged expired entries", zap.Int("count", len(removed)))
	}
	return len(removed)
}

// Len returns the number of memory-tier entries (expired ones included
// until they are touched or purged).
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.m)
}

// Keys returns the memory-tier keys in ascending order.
func (c *Cache[V]) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := make([]string, 0, len(c.m))
	for k := range c.m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Close marks the cache closed; Set becomes a no-op and Get always misses.
func (c *Cache[V]) Close() error {
	c.closed.Store(true)
	return nil
}

// ---- internals (mu held) ----

func (c *Cache[V]) now() int64 {
	if c.opt.Clock != nil {
		return c.opt.Clock.NowUnixNano()
	}
	return time.Now().UnixNano()
}

func (c *Cache[V]) missLocked() {
	c.misses++
	c.opt.Metrics.Miss()
}

// evictLocked removes the policy's lowest-ranked memory entries, never
// choosing a protected key. Promotion protects the promoted key; Set and
// EvictLeastUsed rank every entry. It returns the removed keys; the caller drops them
// from the persistent tier.
func (c *Cache[V]) evictLocked(protect ...string) []string {
	candidates := make([]*entry[V], 0, len(c.m))
	for k, e := range c.m {
		if !slices.Contains(protect, k) {
			candidates = append(candidates, e)
		}
	}
	if len(candidates) == 0 {
		return nil
	}
	n := int(math.Floor(float64(len(c.m)) * c.opt.EvictFraction))
	if n < 1 {
		n = 1
	}
	victims := policy.Victims(c.opt.Policy, candidates, n)

	keys := make([]string, 0, len(victims))
	for _, e := range victims {
		delete(c.m, e.key)
		keys = append(keys, e.key)
		c.evictions++
		c.opt.Metrics.Evict(EvictPolicy)
		if cb := c.opt.OnEvict; cb != nil {
			cb(e.key, e.val, EvictPolicy)
		}
	}
	c.log.Debug("evicted entries",
		zap.String("policy", c.opt.Policy.Name()),
		zap.Int("count", len(keys)),
		zap.Int("remaining", len(c.m)))
	return keys
}

func (c *Cache[V]) warn(err *StorageError) {
	c.log.Warn("persistent tier unavailable, serving from memory", zap.Error(err))
}
