// Package leastused implements popularity-based eviction ranking: the least
// accessed entries go first, and among equally popular entries the oldest.
package leastused

import "github.com/IvanBrykalov/dexcache/policy"

type leastUsed struct{}

// New returns the least-used ranking policy (the cache default).
func New() policy.Policy { return leastUsed{} }

func (leastUsed) Name() string { return "least-used" }

// Less orders by (AccessCount, CreatedAt) ascending.
func (leastUsed) Less(a, b policy.Entry) bool {
	if a.AccessCount() != b.AccessCount() {
		return a.AccessCount() < b.AccessCount()
	}
	return a.CreatedAt() < b.CreatedAt()
}
