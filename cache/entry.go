package cache

import (
	"encoding/json"

	"github.com/IvanBrykalov/dexcache/policy"
)

// entry is a memory-tier cache entry. Timestamps are UnixNano.
// Access metadata is mutated on every read hit under the cache lock.
type entry[V any] struct {
	key string
	val V

	created int64
	expires int64

	accesses int64
	last     int64 // zero until the first read hit
}

func (e *entry[V]) Key() string        { return e.key }
func (e *entry[V]) AccessCount() int64 { return e.accesses }
func (e *entry[V]) CreatedAt() int64   { return e.created }
func (e *entry[V]) LastAccess() int64  { return e.last }

func (e *entry[V]) expired(now int64) bool { return now > e.expires }

var _ policy.Entry = (*entry[int])(nil)

// persisted is the persistent-tier form of an entry inside the namespace blob.
type persisted struct {
	Value       json.RawMessage `json:"value"`
	CreatedAt   int64           `json:"createdAt"`
	ExpiresAt   int64           `json:"expiresAt"`
	AccessCount int64           `json:"accessCount"`
	LastAccess  int64           `json:"lastAccessed,omitempty"`
}

func (p persisted) expired(now int64) bool { return now > p.ExpiresAt }
