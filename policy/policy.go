// Package policy defines how the cache ranks entries for eviction.
package policy

import "slices"

// Entry is the read-only view of a cache entry that a policy ranks.
// Timestamps are UnixNano.
type Entry interface {
	Key() string
	AccessCount() int64
	CreatedAt() int64
	LastAccess() int64
}

// Policy orders entries for eviction. The cache evicts a batch at a time, so
// a policy is a comparator rather than a queue.
//
// Semantics:
//   - Less(a, b) reports whether a should be evicted before b.
//   - Entries that compare equal are ordered by key so the outcome is
//     deterministic regardless of map iteration order.
type Policy interface {
	Name() string
	Less(a, b Entry) bool
}

// Victims returns the first n entries of es in eviction order.
// es is sorted in place. n is clamped to [0, len(es)].
func Victims[E Entry](p Policy, es []E, n int) []E {
	slices.SortStableFunc(es, func(a, b E) int {
		switch {
		case p.Less(a, b):
			return -1
		case p.Less(b, a):
			return 1
		}
		if a.Key() < b.Key() {
			return -1
		}
		if a.Key() > b.Key() {
			return 1
		}
		return 0
	})
	n = max(0, min(n, len(es)))
	return es[:n]
}
