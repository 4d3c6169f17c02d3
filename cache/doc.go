// Package cache provides a generic two-tier TTL cache: a bounded in-memory
// map mirrored to a persistent key/value store, with least-used eviction,
// lightweight metrics hooks and statistics.
//
// Design
//
//   - Concurrency: a single mutex guards both tiers so that an entry is
//     never visible in one tier and stale in the other. Eviction ranks the
//     whole memory tier at once, which rules out per-shard locking.
//
//   - Tiers: the memory tier is a map[string]*entry. The persistent tier is
//     one JSON object stored under Options.Namespace in a store.Store (a
//     file, a SQLite table, an in-memory map with a quota, or store.Noop).
//     Get consults memory first, then the store, and promotes store hits.
//
//   - Eviction: when the memory tier exceeds MaxEntries, EvictFraction of it
//     (at least one entry) is removed in policy order. The default policy
//     (policy/leastused) ranks by ascending access count, then creation time,
//     then key. policy/lru ranks by recency instead.
//
//   - TTL: every entry has an absolute deadline (UnixNano). Expiration is
//     lazy on read; CleanExpired purges both tiers and runs from New.
//
//   - Failures: store I/O, quota and (de)serialization errors are wrapped in
//     *StorageError and logged at warn level. They are never returned; the
//     cache keeps serving from memory.
//
//   - Metrics: Options.Metrics receives Hit/Miss/Write/Evict/Size signals.
//     NoopMetrics is the default; metrics/prom exports them to Prometheus.
//
// Basic usage
//
//	c := cache.New[string](cache.Options[string]{MaxEntries: 500})
//	c.Set("a", "1", time.Minute)
//	if v, ok := c.Get("a"); ok {
//	    _ = v
//	}
//	c.Delete("a")
//
// With a persistent tier
//
//	fs, err := filestore.New(dir, 5<<20)
//	if err != nil {
//	    return err
//	}
//	c := cache.New[json.RawMessage](cache.Options[json.RawMessage]{
//	    Store:  fs,
//	    Logger: logger,
//	})
//
// Values must be JSON-serializable when a persistent store is configured.
package cache
