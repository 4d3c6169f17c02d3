// Package lru implements recency-based eviction ranking.
package lru

import "github.com/IvanBrykalov/dexcache/policy"

// lru ranks the least recently accessed entries first. Entries never read
// fall back to their creation time, older first.
type lru struct{}

// New returns the LRU ranking policy.
func New() policy.Policy { return lru{} }

func (lru) Name() string { return "lru" }

// Less orders by last access, then creation time, ascending.
func (lru) Less(a, b policy.Entry) bool {
	la, lb := touched(a), touched(b)
	if la != lb {
		return la < lb
	}
	return a.CreatedAt() < b.CreatedAt()
}

func touched(e policy.Entry) int64 {
	if t := e.LastAccess(); t != 0 {
		return t
	}
	return e.CreatedAt()
}
